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
	"strings"
)

// BlockID is the stable identity of a basic block inside one Graph.
type BlockID int

// NoBlock marks the absence of a block reference.
const NoBlock BlockID = -1

// BlockKind discriminates basic blocks.
type BlockKind int

const (
	// RegularBlock is an ordinary statement sequence with a single outgoing edge.
	RegularBlock BlockKind = iota + 1
	// ConditionalBlock ends in a two-way branch over a boolean test node.
	ConditionalBlock
	// ExceptionalBlock can transfer control to a handler or to the exceptional exit on
	// failure of its last node.
	ExceptionalBlock
	// SpecialBlock is a zero-node marker: entry, exit or exceptional exit.
	SpecialBlock
)

func (k BlockKind) String() string {
	switch k {
	case RegularBlock:
		return "regular"
	case ConditionalBlock:
		return "conditional"
	case ExceptionalBlock:
		return "exceptional"
	case SpecialBlock:
		return "special"
	default:
		return fmt.Sprintf("blockkind(%d)", int(k))
	}
}

// SpecialKind identifies the special blocks of a graph.
type SpecialKind int

const (
	// NotSpecial is the SpecialKind of all non-special blocks.
	NotSpecial SpecialKind = iota
	// EntrySpecial is the procedure entry.
	EntrySpecial
	// ExitSpecial is the normal exit.
	ExitSpecial
	// ExceptionalExitSpecial is the exit taken by unhandled exceptions.
	ExceptionalExitSpecial
)

// EdgeKind discriminates control edges.
type EdgeKind int

const (
	// Unconditional transfers control always.
	Unconditional EdgeKind = iota + 1
	// TrueBranch is taken when a conditional block's test is true.
	TrueBranch
	// FalseBranch is taken when a conditional block's test is false.
	FalseBranch
	// ExceptionalEdge is taken when the source block's last node raises; Cause names the
	// raised condition's type, or "*" when it is statically unknown.
	ExceptionalEdge
)

func (k EdgeKind) String() string {
	switch k {
	case Unconditional:
		return "goto"
	case TrueBranch:
		return "true"
	case FalseBranch:
		return "false"
	case ExceptionalEdge:
		return "exc"
	default:
		return fmt.Sprintf("edgekind(%d)", int(k))
	}
}

// An Edge is a directed control relation between two blocks. Edges are owned by their
// source block and reference their target by identity.
type Edge struct {
	Kind  EdgeKind
	To    BlockID
	Cause string
}

func (e Edge) String() string {
	if e.Kind == ExceptionalEdge {
		return fmt.Sprintf("exc(%s)->%d", e.Cause, e.To)
	}
	return fmt.Sprintf("%s->%d", e.Kind, e.To)
}

// A Block is an ordered sequence of nodes with single-entry semantics and an ordered
// list of outgoing edges. Blocks are immutable once their graph is built.
type Block struct {
	id      BlockID
	kind    BlockKind
	special SpecialKind
	nodes   []NodeID
	succs   []Edge
	// test is the node whose value decides the branch of a conditional block, NoNode
	// otherwise. It usually is the block's last node but can sit in an earlier block
	// when the test expression contains a call.
	test NodeID
}

// ID returns the block's identity within its graph.
func (b *Block) ID() BlockID { return b.id }

// Kind returns the block's kind.
func (b *Block) Kind() BlockKind { return b.kind }

// Special returns which special block this is, or NotSpecial.
func (b *Block) Special() SpecialKind { return b.special }

// Nodes returns the ids of the block's nodes in execution order. The slice must not be
// mutated.
func (b *Block) Nodes() []NodeID { return b.nodes }

// Succs returns the block's outgoing edges in order. The slice must not be mutated.
func (b *Block) Succs() []Edge { return b.succs }

// Test returns the id of the boolean test node of a conditional block, or NoNode.
func (b *Block) Test() NodeID { return b.test }

func (b *Block) String() string {
	var sb strings.Builder
	switch b.special {
	case EntrySpecial:
		fmt.Fprintf(&sb, "entry#%d", b.id)
	case ExitSpecial:
		fmt.Fprintf(&sb, "exit#%d", b.id)
	case ExceptionalExitSpecial:
		fmt.Fprintf(&sb, "exc-exit#%d", b.id)
	default:
		fmt.Fprintf(&sb, "block#%d[%d nodes]", b.id, len(b.nodes))
	}
	return sb.String()
}
