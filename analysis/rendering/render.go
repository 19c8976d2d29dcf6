// Copyright the Treeflow authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package render writes control-flow graphs in graphviz dot form, optionally
// annotated with analysis results, and rasterizes them.
package render

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/flowlabs/treeflow/analysis/cfg"
)

// An Annotator contributes extra per-block text to the dot output, typically the
// stores of an analysis result. A nil Annotator renders the bare graph.
type Annotator interface {
	BlockAnnotation(b *cfg.Block) []string
}

// AnnotatorFunc adapts a function to the Annotator interface.
type AnnotatorFunc func(b *cfg.Block) []string

// BlockAnnotation implements Annotator.
func (f AnnotatorFunc) BlockAnnotation(b *cfg.Block) []string { return f(b) }

func blockTitle(b *cfg.Block) string {
	switch b.Special() {
	case cfg.EntrySpecial:
		return "entry"
	case cfg.ExitSpecial:
		return "exit"
	case cfg.ExceptionalExitSpecial:
		return "exceptional exit"
	}
	return fmt.Sprintf("block %d", b.ID())
}

var dotEscaper = strings.NewReplacer("\\", "\\\\", "\"", "\\\"", "\n", "\\l")

func escape(s string) string {
	return dotEscaper.Replace(s)
}

// WriteGraphviz writes a graphviz representation of the control-flow graph to w.
// Blocks are boxes listing their nodes; true and false edges are labeled, and
// exceptional edges are dashed and labeled with their cause.
func WriteGraphviz(g *cfg.Graph, ann Annotator, w io.Writer) error {
	write := func(format string, args ...any) error {
		_, err := fmt.Fprintf(w, format, args...)
		if err != nil {
			return fmt.Errorf("error while writing in file: %w", err)
		}
		return nil
	}
	if err := write("digraph cfg {\n  node [shape=box, fontname=\"monospace\"];\n"); err != nil {
		return err
	}
	for _, b := range g.Blocks() {
		var lines []string
		lines = append(lines, blockTitle(b))
		for _, n := range g.BlockNodes(b) {
			lines = append(lines, fmt.Sprintf("%d: %s", n.ID(), n.String()))
		}
		if ann != nil {
			lines = append(lines, ann.BlockAnnotation(b)...)
		}
		shape := ""
		if b.Special() != cfg.NotSpecial {
			shape = ", shape=ellipse"
		}
		label := escape(strings.Join(lines, "\n")) + "\\l"
		if err := write("  b%d [label=\"%s\"%s];\n", b.ID(), label, shape); err != nil {
			return err
		}
	}
	for _, b := range g.Blocks() {
		for _, e := range b.Succs() {
			attr := ""
			switch e.Kind {
			case cfg.TrueBranch:
				attr = " [label=\"true\"]"
			case cfg.FalseBranch:
				attr = " [label=\"false\"]"
			case cfg.ExceptionalEdge:
				attr = fmt.Sprintf(" [style=dashed, label=\"%s\"]", escape(e.Cause))
			}
			if err := write("  b%d -> b%d%s;\n", b.ID(), e.To, attr); err != nil {
				return err
			}
		}
	}
	return write("}\n")
}

// GraphvizToFile writes the dot representation of the graph to a file.
func GraphvizToFile(g *cfg.Graph, ann Annotator, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()

	if err := WriteGraphviz(g, ann, w); err != nil {
		return fmt.Errorf("error while writing graph: %w", err)
	}
	return nil
}

// DotToPDF runs the dot executable over a previously written dot file to produce a
// PDF. It requires graphviz to be installed on the host.
func DotToPDF(dotFile, pdfFile string) error {
	out, err := exec.Command("dot", "-Tpdf", "-o", pdfFile, dotFile).CombinedOutput()
	if err != nil {
		return fmt.Errorf("dot failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
