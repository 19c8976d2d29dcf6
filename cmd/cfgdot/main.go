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

// cfgdot: a tool for rendering control-flow graphs of procedures, optionally
// annotated with a dataflow fixed point.
// -method  Selects the function to extract from a .go input file.
// -analysis Runs an analysis over the graph before rendering: constant or liveness.
// -o       Output path for the dot file.
// -pdf/-png/-svg Additional rendered outputs next to the dot file.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-graphviz"

	"github.com/flowlabs/treeflow/analysis/cfg"
	"github.com/flowlabs/treeflow/analysis/config"
	"github.com/flowlabs/treeflow/analysis/constant"
	"github.com/flowlabs/treeflow/analysis/liveness"
	render "github.com/flowlabs/treeflow/analysis/rendering"
	"github.com/flowlabs/treeflow/analysis/tree"
	"github.com/flowlabs/treeflow/internal/formatutil"
)

var (
	methodFlag   = flag.String("method", "", "Function to extract from a .go input (required for .go inputs)")
	analysisFlag = flag.String("analysis", "", "Analysis to annotate the graph with. One of: constant, liveness")
	dotOut       = flag.String("o", "cfg.dot", "Output file for the dot rendering")
	pdfOut       = flag.String("pdf", "", "Also render a PDF to this path (requires a dot executable)")
	pngOut       = flag.String("png", "", "Also render a PNG to this path")
	svgOut       = flag.String("svg", "", "Also render an SVG to this path")
	configPath   = flag.String("config", "", "Config file")
)

const usage = ` Render the control-flow graph of a procedure.
Usage:
    cfgdot [options] <input file>
The input is either a .go file (select the function with -method) or a .yaml tree.
Examples:
% cfgdot -method main -analysis constant -o main.dot -pdf main.pdf example.go
% cfgdot -o tree.dot testdata/loop.yaml
`

func main() {
	flag.Parse()

	if flag.NArg() != 1 {
		_, _ = fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
		os.Exit(2)
	}
	input := flag.Arg(0)

	cfgConfig := config.NewDefault()
	if *configPath != "" {
		config.SetGlobalConfig(*configPath)
		loaded, err := config.LoadGlobal()
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not load config %s: %v\n", *configPath, err)
			os.Exit(1)
		}
		cfgConfig = loaded
	}
	logger := config.NewLogGroup(cfgConfig)

	body, name, err := loadBody(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, formatutil.Red(fmt.Sprintf("Could not load input: %v", err))+"\n")
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, formatutil.Faint("Building control-flow graph of "+formatutil.Sanitize(name))+"\n")
	start := time.Now()
	g, err := cfg.Build(body)
	if err != nil {
		fmt.Fprintf(os.Stderr, formatutil.Red(fmt.Sprintf("Could not build graph: %v", err))+"\n")
		os.Exit(1)
	}
	logger.Debugf("built %d blocks, %d nodes in %.3f s", g.NumBlocks(), g.NumNodes(),
		time.Since(start).Seconds())

	ann, err := runAnalysis(*analysisFlag, g, cfgConfig, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, formatutil.Red(fmt.Sprintf("Analysis failed: %v", err))+"\n")
		os.Exit(1)
	}

	dotPath := cfgConfig.ReportPath(*dotOut)
	fmt.Fprintf(os.Stderr, formatutil.Faint("Writing graph in "+dotPath)+"\n")
	if err := render.GraphvizToFile(g, ann, dotPath); err != nil {
		fmt.Fprintf(os.Stderr, formatutil.Red(fmt.Sprintf("Could not write graph: %v", err))+"\n")
		os.Exit(1)
	}
	if *pdfOut != "" {
		if err := render.DotToPDF(dotPath, cfgConfig.ReportPath(*pdfOut)); err != nil {
			fmt.Fprintf(os.Stderr, formatutil.Red(fmt.Sprintf("Could not render PDF: %v", err))+"\n")
			os.Exit(1)
		}
	}
	if *pngOut != "" {
		if err := render.RenderImage(g, ann, graphviz.PNG, cfgConfig.ReportPath(*pngOut)); err != nil {
			fmt.Fprintf(os.Stderr, formatutil.Red(fmt.Sprintf("Could not render PNG: %v", err))+"\n")
			os.Exit(1)
		}
	}
	if *svgOut != "" {
		if err := render.RenderImage(g, ann, graphviz.SVG, cfgConfig.ReportPath(*svgOut)); err != nil {
			fmt.Fprintf(os.Stderr, formatutil.Red(fmt.Sprintf("Could not render SVG: %v", err))+"\n")
			os.Exit(1)
		}
	}
	fmt.Fprintf(os.Stderr, formatutil.Green("Done")+"\n")
}

func loadBody(input string) (*tree.Node, string, error) {
	switch strings.ToLower(filepath.Ext(input)) {
	case ".go":
		if *methodFlag == "" {
			return nil, "", fmt.Errorf("-method is required for .go inputs")
		}
		proc, err := tree.FromGoFile(input, *methodFlag)
		if err != nil {
			return nil, "", err
		}
		return proc.Body, proc.Name, nil
	case ".yaml", ".yml":
		root, _, err := tree.LoadYAMLFile(input)
		if err != nil {
			return nil, "", err
		}
		return root, filepath.Base(input), nil
	default:
		return nil, "", fmt.Errorf("unsupported input %q: expected a .go or .yaml file", input)
	}
}

func runAnalysis(mode string, g *cfg.Graph, c *config.Config, logger *config.LogGroup) (render.Annotator, error) {
	switch mode {
	case "":
		return nil, nil
	case "constant":
		a := constant.NewAnalysis(g, logger)
		a.MaxIterations = c.MaxIterations
		res, err := a.Run(constant.NewStore())
		if err != nil {
			return nil, err
		}
		return render.ResultAnnotator(res), nil
	case "liveness":
		a := liveness.NewAnalysis(g, logger)
		a.MaxIterations = c.MaxIterations
		res, err := a.Run(liveness.NewStore())
		if err != nil {
			return nil, err
		}
		return render.ResultAnnotator(res), nil
	default:
		return nil, fmt.Errorf("analysis %s not recognized", mode)
	}
}
