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

package constant

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

func runOn(t *testing.T, root *tree.Node) *dataflow.Result[Value, Store] {
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
	return res
}

func exitBinding(t *testing.T, res *dataflow.Result[Value, Store], name string) Value {
	t.Helper()
	exit := res.ExitStore()
	if exit.IsNone() {
		t.Fatal("exit store absent")
	}
	return exit.Value().Get(name)
}

func TestConstantJoinOverBranches(t *testing.T) {
	// x = 1; if (b) { y = 1 } else { y = -1 }; z = x
	res := runOn(t, block(
		assign("x", intLit("1")),
		&tree.Node{Kind: tree.IfStmt,
			Cond: ident("b"),
			Then: block(assign("y", intLit("1"))),
			Else: block(assign("y", &tree.Node{Kind: tree.Unary, Op: "-", X: intLit("1")})),
		},
		assign("z", ident("x")),
	))

	tests := []struct {
		name string
		want Value
	}{
		{"x", Int(1)},
		{"y", Top()},
		{"z", Int(1)},
	}
	for _, tt := range tests {
		if got := exitBinding(t, res, tt.name); !got.Equal(tt.want) {
			t.Errorf("%s at exit: got %v, want %v", tt.name, got, tt.want)
		}
	}

	// before the join, each arm still sees its own constant
	g := res.Graph()
	var cond *cfg.Block
	for _, b := range g.Blocks() {
		if b.Kind() == cfg.ConditionalBlock {
			cond = b
		}
	}
	if cond == nil {
		t.Fatal("no conditional block")
	}
	arms := []struct {
		kind cfg.EdgeKind
		want Value
	}{
		{cfg.TrueBranch, Int(1)},
		{cfg.FalseBranch, Int(-1)},
	}
	for _, arm := range arms {
		var to cfg.BlockID
		for _, e := range cond.Succs() {
			if e.Kind == arm.kind {
				to = e.To
			}
		}
		out := res.StoreAt(to, dataflow.StoreAfter)
		if out.IsNone() {
			t.Fatalf("%s arm has no output store", arm.kind)
		}
		if got := out.Value().Get("y"); !got.Equal(arm.want) {
			t.Errorf("y after %s arm: got %v, want %v", arm.kind, got, arm.want)
		}
	}
}

func TestConstantFolding(t *testing.T) {
	// x = 2 + 3 * 4; y = -x; b = x == 14
	res := runOn(t, block(
		assign("x", &tree.Node{Kind: tree.Binary, Op: "+",
			X: intLit("2"),
			Y: &tree.Node{Kind: tree.Binary, Op: "*", X: intLit("3"), Y: intLit("4")}}),
		assign("y", &tree.Node{Kind: tree.Unary, Op: "-", X: ident("x")}),
		assign("b", &tree.Node{Kind: tree.Binary, Op: "==", X: ident("x"), Y: intLit("14")}),
	))
	if got := exitBinding(t, res, "x"); !got.Equal(Int(14)) {
		t.Errorf("x: got %v, want 14", got)
	}
	if got := exitBinding(t, res, "y"); !got.Equal(Int(-14)) {
		t.Errorf("y: got %v, want -14", got)
	}
	if got := exitBinding(t, res, "b"); !got.Equal(Bool(true)) {
		t.Errorf("b: got %v, want true", got)
	}
}

func TestConstantWhileTrueBreak(t *testing.T) {
	// x = 0; while (true) { x = 1; if (c) break }; y = x
	res := runOn(t, block(
		assign("x", intLit("0")),
		&tree.Node{Kind: tree.WhileStmt,
			Cond: &tree.Node{Kind: tree.Literal, Value: "true", Type: "bool"},
			Then: block(
				assign("x", intLit("1")),
				&tree.Node{Kind: tree.IfStmt,
					Cond: ident("c"),
					Then: block(&tree.Node{Kind: tree.BreakStmt})},
			),
		},
		assign("y", ident("x")),
	))
	// the loop can only be left right after x = 1
	if got := exitBinding(t, res, "y"); !got.Equal(Int(1)) {
		t.Errorf("y: got %v, want 1", got)
	}
}

func TestConstantTryCatchFinally(t *testing.T) {
	// try { x = f() } catch (E e) { x = 0 } finally { y = 5 }
	finallyLit := intLit("5")
	res := runOn(t, block(
		&tree.Node{Kind: tree.TryStmt,
			Then: block(assign("x", &tree.Node{Kind: tree.Call, Sel: "f"})),
			Body: []*tree.Node{
				{Kind: tree.CatchClause, Sel: "E", Name: "e",
					Then: block(assign("x", intLit("0")))},
			},
			Else: block(&tree.Node{Kind: tree.ExprStmt,
				Expr: &tree.Node{Kind: tree.Assign, X: ident("y"), Y: finallyLit}}),
		},
	))
	if got := exitBinding(t, res, "y"); !got.Equal(Int(5)) {
		t.Errorf("y: got %v, want 5", got)
	}
	if got := exitBinding(t, res, "x"); !got.Equal(Top()) {
		t.Errorf("x: got %v, want top (call joins with catch value)", got)
	}
	// the duplicated finally copies all evaluate the literal to the same constant
	if v := res.ValueOf(finallyLit.ID); v.IsNone() || !v.Value().Equal(Int(5)) {
		t.Errorf("finally literal: got %v, want 5", v)
	}
}

func TestConstantCatchReturnRunsFinally(t *testing.T) {
	// try { throw E } catch (E e) { return e } finally { y = 5 }
	// leaving through the handler's return still runs the finally
	res := runOn(t, block(
		&tree.Node{Kind: tree.TryStmt,
			Then: block(&tree.Node{Kind: tree.ThrowStmt, Sel: "E", Expr: ident("err")}),
			Body: []*tree.Node{
				{Kind: tree.CatchClause, Sel: "E", Name: "e",
					Then: block(&tree.Node{Kind: tree.ReturnStmt, Expr: ident("e")})},
			},
			Else: block(assign("y", intLit("5"))),
		},
	))
	if got := exitBinding(t, res, "y"); !got.Equal(Int(5)) {
		t.Errorf("y: got %v, want 5", got)
	}
}

func TestBranchPinsBooleanVariable(t *testing.T) {
	// if (b) { y = 1 }
	root := block(
		&tree.Node{Kind: tree.IfStmt,
			Cond: ident("b"),
			Then: block(assign("y", intLit("1"))),
		},
	)
	tree.Renumber(root)
	g, err := cfg.Build(root)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	res, err := NewAnalysis(g, nil).Run(NewStore())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	var cond *cfg.Block
	for _, b := range g.Blocks() {
		if b.Kind() == cfg.ConditionalBlock {
			cond = b
		}
	}
	if cond == nil {
		t.Fatal("no conditional block")
	}
	var thenTo cfg.BlockID
	for _, e := range cond.Succs() {
		if e.Kind == cfg.TrueBranch {
			thenTo = e.To
		}
	}
	in := res.StoreAt(thenTo, dataflow.StoreBefore)
	if in.IsNone() {
		t.Fatal("then branch has no input store")
	}
	if got := in.Value().Get("b"); !got.Equal(Bool(true)) {
		t.Errorf("b in then branch: got %v, want true", got)
	}
}

func TestValueLatticeLaws(t *testing.T) {
	points := []Value{Bottom(), Int(0), Int(1), Bool(true), Bool(false), Top()}
	for _, a := range points {
		if !a.Join(a).Equal(a) {
			t.Errorf("join not idempotent at %v", a)
		}
		if !a.Join(Bottom()).Equal(a) {
			t.Errorf("bottom not neutral at %v", a)
		}
		if !a.Join(Top()).Equal(Top()) {
			t.Errorf("top not absorbing at %v", a)
		}
		for _, b := range points {
			if !a.Join(b).Equal(b.Join(a)) {
				t.Errorf("join not commutative at %v, %v", a, b)
			}
		}
	}
}
