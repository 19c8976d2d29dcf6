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

package cfg

import (
	"fmt"

	"github.com/flowlabs/treeflow/analysis/tree"
)

// NodeID is the stable identity of a node inside one Graph.
type NodeID int

// NoNode marks the absence of a node reference.
const NoNode NodeID = -1

// NodeKind discriminates the atomic computation steps held in basic blocks.
type NodeKind int

const (
	// KindLiteral is a constant value.
	KindLiteral NodeKind = iota + 1
	// KindVarRef reads a variable (Target).
	KindVarRef
	// KindUnary applies Op to one operand.
	KindUnary
	// KindBinary applies Op to two operands. The builder also emits synthetic
	// KindBinary "==" nodes for desugared switch tests.
	KindBinary
	// KindAssign writes its operand into the variable Target. Catch-clause entry is an
	// assign of the caught value with no operand.
	KindAssign
	// KindCall invokes the procedure Target. Calls may raise.
	KindCall
	// KindMerge is the synthetic result of a short-circuit operator or a conditional
	// expression at its join point.
	KindMerge
	// KindReturn leaves the procedure; its operand, if any, is the returned value.
	KindReturn
	// KindThrow raises the exception type Target; its operand, if any, is the raised
	// value.
	KindThrow
)

var nodeKindNames = map[NodeKind]string{
	KindLiteral: "literal",
	KindVarRef:  "varref",
	KindUnary:   "unary",
	KindBinary:  "binary",
	KindAssign:  "assign",
	KindCall:    "call",
	KindMerge:   "merge",
	KindReturn:  "return",
	KindThrow:   "throw",
}

func (k NodeKind) String() string {
	if s, ok := nodeKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("nodekind(%d)", int(k))
}

// A Node is one evaluation step extracted from the syntax tree. Nodes never own
// control-flow edges; they are values held inside blocks, created once during graph
// construction and immutable thereafter.
type Node struct {
	id       NodeID
	kind     NodeKind
	op       string
	target   string
	text     string
	typ      string
	treeID   tree.NodeID
	pos      tree.Position
	operands []NodeID
}

// ID returns the node's identity within its graph.
func (n *Node) ID() NodeID { return n.id }

// Kind returns the node's kind.
func (n *Node) Kind() NodeKind { return n.kind }

// Op returns the operator of unary, binary and merge nodes.
func (n *Node) Op() string { return n.op }

// Target returns the variable read or written, the call target, or the raised exception
// type, depending on the node's kind.
func (n *Node) Target() string { return n.target }

// Type returns the static result-type descriptor the frontend attached to the
// originating syntax node, or the empty string.
func (n *Node) Type() string { return n.typ }

// TreeID returns the identity of the originating syntax-tree node. The relation is
// non-owning: the tree's lifetime is managed by the caller.
func (n *Node) TreeID() tree.NodeID { return n.treeID }

// Pos returns the source position of the originating syntax-tree node.
func (n *Node) Pos() tree.Position { return n.pos }

// Operands returns the ids of the nodes computing this node's operands, in evaluation
// order. The slice must not be mutated.
func (n *Node) Operands() []NodeID { return n.operands }

func (n *Node) String() string {
	if n.text != "" {
		return n.text
	}
	return fmt.Sprintf("%s#%d", n.kind, n.id)
}
