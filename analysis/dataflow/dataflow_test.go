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

package dataflow

import (
	"errors"
	"testing"

	"github.com/flowlabs/treeflow/analysis/cfg"
	"github.com/flowlabs/treeflow/analysis/tree"
)

// parity is a toy three-point lattice: bottom < {even, odd} < top, encoded as a
// bitmask so that join is bitwise or.
type parity struct {
	mask uint8
}

var (
	parityBottom = parity{0}
	parityEven   = parity{1}
	parityOdd    = parity{2}
	parityTop    = parity{3}
)

func (p parity) Join(o parity) parity { return parity{p.mask | o.mask} }
func (p parity) Equal(o parity) bool  { return p == o }

// counter is a store that remembers how many times each variable was written.
type counter struct {
	writes map[string]int
}

func newCounter() counter { return counter{writes: map[string]int{}} }

func (c counter) Join(o counter) counter {
	out := newCounter()
	for k, v := range c.writes {
		out.writes[k] = v
	}
	for k, v := range o.writes {
		if v > out.writes[k] {
			out.writes[k] = v
		}
	}
	return out
}

func (c counter) Equal(o counter) bool {
	if len(c.writes) != len(o.writes) {
		return false
	}
	for k, v := range c.writes {
		if o.writes[k] != v {
			return false
		}
	}
	return true
}

func (c counter) Copy() counter {
	out := counter{writes: make(map[string]int, len(c.writes))}
	for k, v := range c.writes {
		out.writes[k] = v
	}
	return out
}

// countWrites records assignment counts and tags every node with the parity of its id.
type countWrites struct{}

func (countWrites) Apply(n *cfg.Node, in counter, args []parity) (parity, counter) {
	if n.Kind() == cfg.KindAssign {
		in.writes[n.Target()]++
	}
	if n.ID()%2 == 0 {
		return parityEven, in
	}
	return parityOdd, in
}

func (countWrites) Branch(test *cfg.Node, v parity, in counter) (counter, counter) {
	return in, in.Copy()
}

func (countWrites) Raise(n *cfg.Node, cause string, in counter) counter {
	return in
}

func buildGraph(t *testing.T, root *tree.Node) *cfg.Graph {
	t.Helper()
	tree.Renumber(root)
	g, err := cfg.Build(root)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	return g
}

func assignStmt(name, lit string) *tree.Node {
	return &tree.Node{Kind: tree.ExprStmt,
		Expr: &tree.Node{Kind: tree.Assign,
			X: &tree.Node{Kind: tree.Ident, Name: name},
			Y: &tree.Node{Kind: tree.Literal, Value: lit, Type: "int"}}}
}

func TestParityJoinLaws(t *testing.T) {
	points := []parity{parityBottom, parityEven, parityOdd, parityTop}
	for _, a := range points {
		if !a.Join(a).Equal(a) {
			t.Errorf("join not idempotent at %v", a)
		}
		for _, b := range points {
			if !a.Join(b).Equal(b.Join(a)) {
				t.Errorf("join not commutative at %v, %v", a, b)
			}
			for _, c := range points {
				if !a.Join(b).Join(c).Equal(a.Join(b.Join(c))) {
					t.Errorf("join not associative at %v, %v, %v", a, b, c)
				}
			}
		}
	}
}

func TestRunStraightLine(t *testing.T) {
	g := buildGraph(t, &tree.Node{Kind: tree.BlockStmt, Body: []*tree.Node{
		assignStmt("x", "1"),
		assignStmt("x", "2"),
		assignStmt("y", "3"),
	}})
	a := &Analysis[parity, counter]{Graph: g, Transfer: countWrites{}}
	res, err := a.Run(newCounter())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	exit := res.ExitStore()
	if exit.IsNone() {
		t.Fatal("exit store absent for a straight-line body")
	}
	if got := exit.Value().writes["x"]; got != 2 {
		t.Errorf("writes of x at exit: got %d, want 2", got)
	}
	for i := 0; i < g.NumNodes(); i++ {
		if res.ValueOfNode(cfg.NodeID(i)).IsNone() {
			t.Errorf("node %d has no value after the fixed point", i)
		}
	}
}

func TestRunDeterministic(t *testing.T) {
	root := &tree.Node{Kind: tree.BlockStmt, Body: []*tree.Node{
		&tree.Node{Kind: tree.IfStmt,
			Cond: &tree.Node{Kind: tree.Ident, Name: "b"},
			Then: &tree.Node{Kind: tree.BlockStmt, Body: []*tree.Node{assignStmt("x", "1")}},
			Else: &tree.Node{Kind: tree.BlockStmt, Body: []*tree.Node{assignStmt("x", "2")}},
		},
		assignStmt("y", "3"),
	}}
	g := buildGraph(t, root)

	run := func() *Result[parity, counter] {
		a := &Analysis[parity, counter]{Graph: g, Transfer: countWrites{}}
		res, err := a.Run(newCounter())
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
		return res
	}
	r1, r2 := run(), run()
	for i := 0; i < g.NumNodes(); i++ {
		v1, v2 := r1.ValueOfNode(cfg.NodeID(i)), r2.ValueOfNode(cfg.NodeID(i))
		if v1.IsSome() != v2.IsSome() || (v1.IsSome() && !v1.Value().Equal(v2.Value())) {
			t.Errorf("node %d: runs disagree: %v vs %v", i, v1, v2)
		}
	}
	for i := 0; i < g.NumBlocks(); i++ {
		s1 := r1.StoreAt(cfg.BlockID(i), StoreBefore)
		s2 := r2.StoreAt(cfg.BlockID(i), StoreBefore)
		if s1.IsSome() != s2.IsSome() || (s1.IsSome() && !s1.Value().Equal(s2.Value())) {
			t.Errorf("block %d: runs disagree on input store", i)
		}
	}
}

func TestDeadCodeHasNoValue(t *testing.T) {
	dead := assignStmt("y", "1")
	root := &tree.Node{Kind: tree.BlockStmt, Body: []*tree.Node{
		&tree.Node{Kind: tree.ReturnStmt, Expr: &tree.Node{Kind: tree.Ident, Name: "x"}},
		dead,
	}}
	g := buildGraph(t, root)
	a := &Analysis[parity, counter]{Graph: g, Transfer: countWrites{}}
	res, err := a.Run(newCounter())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if v := res.ValueOf(dead.Expr.ID); v.IsSome() {
		t.Errorf("dead assignment has a value: %v", v)
	}
}

// diverge grows its store on every visit, so a loop never stabilizes.
type diverge struct{}

func (diverge) Apply(n *cfg.Node, in counter, args []parity) (parity, counter) {
	in.writes["ticks"]++
	return parityTop, in
}

func (diverge) Branch(test *cfg.Node, v parity, in counter) (counter, counter) {
	return in, in.Copy()
}

func (diverge) Raise(n *cfg.Node, cause string, in counter) counter { return in }

func TestFixpointCutoff(t *testing.T) {
	g := buildGraph(t, &tree.Node{Kind: tree.BlockStmt, Body: []*tree.Node{
		&tree.Node{Kind: tree.WhileStmt,
			Cond: &tree.Node{Kind: tree.Ident, Name: "b"},
			Then: &tree.Node{Kind: tree.BlockStmt, Body: []*tree.Node{assignStmt("x", "1")}},
		},
	}})
	a := &Analysis[parity, counter]{Graph: g, Transfer: diverge{}, MaxIterations: 50}
	_, err := a.Run(newCounter())
	var ferr *FixpointError
	if !errors.As(err, &ferr) {
		t.Fatalf("got %v, want a FixpointError", err)
	}
	if ferr.Iterations != 50 {
		t.Errorf("iterations: got %d, want 50", ferr.Iterations)
	}
}

func TestContractErrors(t *testing.T) {
	g := buildGraph(t, &tree.Node{Kind: tree.BlockStmt, Body: []*tree.Node{assignStmt("x", "1")}})
	tests := []struct {
		name string
		a    *Analysis[parity, counter]
	}{
		{"nil graph", &Analysis[parity, counter]{Transfer: countWrites{}}},
		{"nil transfer", &Analysis[parity, counter]{Graph: g}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.a.Run(newCounter())
			var cerr *ContractError
			if !errors.As(err, &cerr) {
				t.Errorf("got %v, want a ContractError", err)
			}
		})
	}
}
