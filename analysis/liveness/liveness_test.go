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

package liveness

import (
	"testing"

	"github.com/flowlabs/treeflow/analysis/cfg"
	"github.com/flowlabs/treeflow/analysis/dataflow"
	"github.com/flowlabs/treeflow/analysis/tree"
)

func ident(name string) *tree.Node {
	return &tree.Node{Kind: tree.Ident, Name: name}
}

func intLit(text string) *tree.Node {
	return &tree.Node{Kind: tree.Literal, Value: text, Type: "int"}
}

func assign(name string, rhs *tree.Node) *tree.Node {
	return &tree.Node{Kind: tree.ExprStmt,
		Expr: &tree.Node{Kind: tree.Assign, X: ident(name), Y: rhs}}
}

func block(stmts ...*tree.Node) *tree.Node {
	return &tree.Node{Kind: tree.BlockStmt, Body: stmts}
}

func runOn(t *testing.T, root *tree.Node) (*cfg.Graph, *dataflow.Result[Value, Store]) {
	t.Helper()
	tree.Renumber(root)
	g, err := cfg.Build(root)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	res, err := NewAnalysis(g, nil).Run(NewStore())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	return g, res
}

// assignValues returns the liveness verdicts of all assignments to name, in block
// order, which is program order for straight-line bodies.
func assignValues(g *cfg.Graph, res *dataflow.Result[Value, Store], name string) []bool {
	var out []bool
	for _, b := range g.Blocks() {
		for _, n := range g.BlockNodes(b) {
			if n.Kind() == cfg.KindAssign && n.Target() == name {
				out = append(out, res.ValueOfNode(n.ID()).Value().Live)
			}
		}
	}
	return out
}

func TestDeadStore(t *testing.T) {
	// x = 1; x = 2; return x
	g, res := runOn(t, block(
		assign("x", intLit("1")),
		assign("x", intLit("2")),
		&tree.Node{Kind: tree.ReturnStmt, Expr: ident("x")},
	))
	got := assignValues(g, res, "x")
	want := []bool{false, true}
	if len(got) != len(want) {
		t.Fatalf("got %d assignments, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("assignment %d live: got %t, want %t", i, got[i], want[i])
		}
	}
}

func TestLiveAcrossLoop(t *testing.T) {
	// x = 1; while (b) { y = x }; return y
	g, res := runOn(t, block(
		assign("x", intLit("1")),
		&tree.Node{Kind: tree.WhileStmt,
			Cond: ident("b"),
			Then: block(assign("y", ident("x"))),
		},
		&tree.Node{Kind: tree.ReturnStmt, Expr: ident("y")},
	))
	got := assignValues(g, res, "x")
	if len(got) != 1 || !got[0] {
		t.Errorf("x is read in the loop body, assignment should be live: %v", got)
	}
	// x is live at the loop header
	var header *cfg.Block
	for _, b := range g.Blocks() {
		if b.Kind() == cfg.ConditionalBlock {
			header = b
		}
	}
	if header == nil {
		t.Fatal("no loop header block")
	}
	out := res.StoreAt(header.ID(), dataflow.StoreAfter)
	if out.IsNone() || !out.Value().Has("x") {
		t.Errorf("x should be live at the loop header, store %v", out)
	}
}

func TestLiveIntoThrow(t *testing.T) {
	// x = 1; throw E(x)
	// the only path ends at the exceptional exit, yet the assignment gets a verdict
	g, res := runOn(t, block(
		assign("x", intLit("1")),
		&tree.Node{Kind: tree.ThrowStmt, Sel: "E", Expr: ident("x")},
	))
	if got := assignValues(g, res, "x"); len(got) != 1 || !got[0] {
		t.Errorf("x feeds the raise, assignment should be live: %v", got)
	}
	for _, b := range g.Blocks() {
		if in := res.StoreAt(b.ID(), dataflow.StoreBefore); in.IsNone() {
			t.Errorf("block %d has no input store", b.ID())
		}
	}
}

func TestUnreadVariableIsDead(t *testing.T) {
	// x = 1; y = 2; return x
	g, res := runOn(t, block(
		assign("x", intLit("1")),
		assign("y", intLit("2")),
		&tree.Node{Kind: tree.ReturnStmt, Expr: ident("x")},
	))
	if got := assignValues(g, res, "y"); len(got) != 1 || got[0] {
		t.Errorf("y is never read, assignment should be dead: %v", got)
	}
	if got := assignValues(g, res, "x"); len(got) != 1 || !got[0] {
		t.Errorf("x is returned, assignment should be live: %v", got)
	}
}
