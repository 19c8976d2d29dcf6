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

// Package tree defines the procedure-body syntax trees consumed by the control-flow
// graph builder. The package is a frontend-neutral taxonomy of statement and expression
// kinds; trees can be loaded from a yaml document (see LoadYAML) or imported from the
// body of a Go function (see FromGoFile). A tree is immutable once handed to the
// builder.
package tree

import (
	"fmt"
)

// NodeID is the stable identity of a syntax-tree node within one procedure body.
// Identities are assigned by Renumber in preorder, so they are deterministic for a
// given tree shape.
type NodeID int

// NoID is the id of nodes that have not been numbered.
const NoID NodeID = -1

// Position is a source position. Frontends that have no file information leave File
// empty.
type Position struct {
	File string
	Line int
	Col  int
}

func (p Position) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Kind discriminates syntax-tree nodes.
type Kind int

const (
	// BadNode is the zero Kind; it never appears in a well-formed tree.
	BadNode Kind = iota

	// Statement kinds

	// BlockStmt is a sequence of statements (field Body).
	BlockStmt
	// IfStmt has a test (Cond) and one or two arms (Then, Else; Else may be nil).
	IfStmt
	// WhileStmt has a test (Cond) and a body (Then).
	WhileStmt
	// DoWhileStmt has a body (Then) executed before its test (Cond).
	DoWhileStmt
	// ForStmt has optional Init, Cond and Post, and a body (Then).
	ForStmt
	// SwitchStmt has a subject (Cond) and a list of CaseClause children (Body).
	SwitchStmt
	// CaseClause has an optional match value (Expr, nil for default) and a body (Body).
	// Control falls through to the next clause unless the body transfers it elsewhere.
	CaseClause
	// BreakStmt exits the enclosing loop or switch, or the one labeled Label.
	BreakStmt
	// ContinueStmt jumps to the continuation point of the enclosing loop, or the one
	// labeled Label.
	ContinueStmt
	// ReturnStmt returns from the procedure with an optional value (Expr).
	ReturnStmt
	// ThrowStmt raises the exception type named Sel with an optional value (Expr).
	ThrowStmt
	// TryStmt has a body (Then), a list of CatchClause children (Body) and an optional
	// finally block (Else).
	TryStmt
	// CatchClause handles exceptions of the type named Sel ("" matches any); its handler
	// body is Then and the caught variable is Name.
	CatchClause
	// LabeledStmt attaches Label to its single statement (Then).
	LabeledStmt
	// ExprStmt evaluates Expr for its effect.
	ExprStmt

	// Expression kinds

	// Ident is a variable reference (Name).
	Ident
	// Literal is a constant (Value holds its text, Type its type descriptor).
	Literal
	// Unary applies Op to X.
	Unary
	// Binary applies Op to X and Y. The short-circuit operators "&&" and "||" are
	// Binary nodes; the builder desugars them into branches.
	Binary
	// Assign stores Y into the variable referenced by X.
	Assign
	// Call invokes the procedure named Sel with arguments Args. Calls may raise.
	Call
	// Cond is the ternary conditional: Cond, then X, else Y.
	Cond
)

var kindNames = map[Kind]string{
	BadNode:      "bad",
	BlockStmt:    "block",
	IfStmt:       "if",
	WhileStmt:    "while",
	DoWhileStmt:  "do-while",
	ForStmt:      "for",
	SwitchStmt:   "switch",
	CaseClause:   "case",
	BreakStmt:    "break",
	ContinueStmt: "continue",
	ReturnStmt:   "return",
	ThrowStmt:    "throw",
	TryStmt:      "try",
	CatchClause:  "catch",
	LabeledStmt:  "labeled",
	ExprStmt:     "expr",
	Ident:        "ident",
	Literal:      "literal",
	Unary:        "unary",
	Binary:       "binary",
	Assign:       "assign",
	Call:         "call",
	Cond:         "cond",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// KindFromString returns the Kind whose name is s, or BadNode when s names no kind.
func KindFromString(s string) Kind {
	for k, name := range kindNames {
		if name == s && k != BadNode {
			return k
		}
	}
	return BadNode
}

// IsStmt returns true for statement kinds.
func (k Kind) IsStmt() bool {
	return k >= BlockStmt && k <= ExprStmt
}

// IsExpr returns true for expression kinds.
func (k Kind) IsExpr() bool {
	return k >= Ident && k <= Cond
}

// A Node is one syntax-tree node. Which fields are meaningful depends on Kind; see the
// Kind constants. Unused fields are nil or zero.
type Node struct {
	ID   NodeID
	Kind Kind
	Pos  Position

	// Cond is the test of if/while/do-while/for/cond nodes and the subject of a switch.
	Cond *Node
	// Then is the first arm: if-then, loop body, try body, catch handler, labeled
	// statement, cond-true arm.
	Then *Node
	// Else is the second arm: if-else, try-finally.
	Else *Node
	// Init and Post are the for-loop clauses.
	Init *Node
	Post *Node
	// Body holds block statements, switch cases and try catch clauses.
	Body []*Node
	// Expr is the single expression of expr/return/throw statements and the match value
	// of a case clause.
	Expr *Node

	// X and Y are expression operands.
	X *Node
	Y *Node
	// Args are call arguments.
	Args []*Node

	// Name is an identifier or caught-variable name.
	Name string
	// Sel is a call target or exception type name.
	Sel string
	// Label is a statement label or jump target.
	Label string
	// Op is a unary or binary operator.
	Op string
	// Value is a literal's text.
	Value string
	// Type is a static type descriptor, when the frontend knows one.
	Type string
}

func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	switch n.Kind {
	case Ident:
		return n.Name
	case Literal:
		return n.Value
	case Unary:
		return fmt.Sprintf("%s%s", n.Op, n.X)
	case Binary:
		return fmt.Sprintf("%s %s %s", n.X, n.Op, n.Y)
	case Assign:
		return fmt.Sprintf("%s = %s", n.X, n.Y)
	case Call:
		args := ""
		for i, a := range n.Args {
			if i > 0 {
				args += ", "
			}
			args += a.String()
		}
		return fmt.Sprintf("%s(%s)", n.Sel, args)
	case Cond:
		return fmt.Sprintf("%s ? %s : %s", n.Cond, n.X, n.Y)
	default:
		return n.Kind.String()
	}
}

// children returns the direct children of n in deterministic order.
func (n *Node) children() []*Node {
	var cs []*Node
	add := func(m *Node) {
		if m != nil {
			cs = append(cs, m)
		}
	}
	add(n.Init)
	add(n.Cond)
	add(n.Expr)
	add(n.X)
	add(n.Y)
	for _, a := range n.Args {
		add(a)
	}
	add(n.Then)
	add(n.Post)
	for _, b := range n.Body {
		add(b)
	}
	add(n.Else)
	return cs
}

// Walk calls f on n and all its descendants in preorder. Traversal of a subtree is
// skipped when f returns false on its root.
func Walk(n *Node, f func(*Node) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, c := range n.children() {
		Walk(c, f)
	}
}

// Renumber assigns preorder ids to all nodes of the tree rooted at root and returns the
// number of nodes. Frontends call it once before handing the tree to consumers.
func Renumber(root *Node) int {
	next := NodeID(0)
	Walk(root, func(n *Node) bool {
		n.ID = next
		next++
		return true
	})
	return int(next)
}
