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
	"github.com/flowlabs/treeflow/internal/funcutil"
	"github.com/flowlabs/treeflow/internal/graphutil"
)

// A Graph is the control-flow graph of one procedure body. It owns the arena of blocks
// and nodes reachable from its entry block. A Graph is immutable once built and may be
// shared read-only across analysis runs.
type Graph struct {
	blocks []*Block
	nodes  []*Node

	entry   BlockID
	exit    BlockID
	excExit BlockID

	preds map[BlockID][]BlockID
}

// Entry returns the designated entry block.
func (g *Graph) Entry() *Block { return g.blocks[g.entry] }

// Exit returns the designated normal-exit block.
func (g *Graph) Exit() *Block { return g.blocks[g.exit] }

// ExceptionalExit returns the designated exceptional-exit block.
func (g *Graph) ExceptionalExit() *Block { return g.blocks[g.excExit] }

// Block returns the block with the given id.
func (g *Graph) Block(id BlockID) *Block { return g.blocks[id] }

// Node returns the node with the given id.
func (g *Graph) Node(id NodeID) *Node { return g.nodes[id] }

// Blocks returns all blocks of the graph in id order. The slice must not be mutated.
func (g *Graph) Blocks() []*Block { return g.blocks }

// NumBlocks returns the number of blocks in the graph.
func (g *Graph) NumBlocks() int { return len(g.blocks) }

// NumNodes returns the number of nodes in the graph's arena.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// Preds returns the ids of the blocks with an edge into the block with the given id.
// The slice must not be mutated.
func (g *Graph) Preds(id BlockID) []BlockID { return g.preds[id] }

// BlockNodes returns the nodes of block b in execution order.
func (g *Graph) BlockNodes(b *Block) []*Node {
	out := make([]*Node, len(b.nodes))
	for i, id := range b.nodes {
		out[i] = g.nodes[id]
	}
	return out
}

// CGraph returns the block-level adjacency abstraction of the graph, for use with the
// graph utilities.
func (g *Graph) CGraph() graphutil.CGraph {
	return graphutil.NewCGraph(len(g.blocks), func(i int) []int {
		var succs []int
		for _, e := range g.blocks[i].succs {
			succs = append(succs, int(e.To))
		}
		return succs
	})
}

// BackEdges returns the retreating edges of the graph created by loops, as (from, to)
// block id pairs.
func (g *Graph) BackEdges() [][2]BlockID {
	return funcutil.Map(graphutil.BackEdges(g.CGraph(), int(g.entry)), func(e [2]int) [2]BlockID {
		return [2]BlockID{BlockID(e[0]), BlockID(e[1])}
	})
}

// Loops returns all elementary cycles of the graph. Each cycle is a block id sequence
// starting and ending at the same block.
func (g *Graph) Loops() [][]BlockID {
	return funcutil.Map(graphutil.FindAllElementaryCycles(g.CGraph()), func(c []int) []BlockID {
		return funcutil.Map(c, func(v int) BlockID { return BlockID(v) })
	})
}

// computePreds fills the predecessor map. Called once at the end of construction.
func (g *Graph) computePreds() {
	g.preds = make(map[BlockID][]BlockID, len(g.blocks))
	for _, b := range g.blocks {
		for _, e := range b.succs {
			g.preds[e.To] = append(g.preds[e.To], b.id)
		}
	}
}
