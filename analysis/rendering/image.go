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

package render

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-graphviz"

	"github.com/flowlabs/treeflow/analysis/cfg"
)

// RenderImage rasterizes the graph to filename through the embedded graphviz layout
// engine. Unlike DotToPDF it does not depend on a dot executable being installed.
// Supported formats include graphviz.PNG and graphviz.SVG.
func RenderImage(g *cfg.Graph, ann Annotator, format graphviz.Format, filename string) error {
	var buf bytes.Buffer
	if err := WriteGraphviz(g, ann, &buf); err != nil {
		return err
	}
	gv := graphviz.New()
	graph, err := graphviz.ParseBytes(buf.Bytes())
	if err != nil {
		return fmt.Errorf("could not lay out graph: %w", err)
	}
	defer func() {
		graph.Close()
		gv.Close()
	}()
	if err := gv.RenderFilename(graph, format, filename); err != nil {
		return fmt.Errorf("could not render %s: %w", filename, err)
	}
	return nil
}
