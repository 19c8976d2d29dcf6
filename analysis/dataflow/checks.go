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
	"fmt"

	"github.com/flowlabs/treeflow/analysis/cfg"
)

// A ContractError reports a malformed Analysis: a missing graph or transfer function,
// or a graph that violates the shape the engine relies on. Graphs produced by
// cfg.Build satisfy these checks; the error exists for hand-built graphs.
type ContractError struct {
	Block cfg.BlockID // offending block, or cfg.NoBlock
	Msg   string
}

func (e *ContractError) Error() string {
	if e.Block == cfg.NoBlock {
		return "analysis contract: " + e.Msg
	}
	return fmt.Sprintf("analysis contract: block %d: %s", e.Block, e.Msg)
}

func contractErr(b cfg.BlockID, format string, args ...any) error {
	return &ContractError{Block: b, Msg: fmt.Sprintf(format, args...)}
}

// validate checks the analysis inputs before iteration starts, so the worklist loop
// can index blocks and nodes without bounds failures.
//
//gocyclo:ignore
func (a *Analysis[V, S]) validate() error {
	if a.Graph == nil {
		return contractErr(cfg.NoBlock, "nil graph")
	}
	if a.Transfer == nil {
		return contractErr(cfg.NoBlock, "nil transfer function")
	}
	g := a.Graph
	nb, nn := g.NumBlocks(), g.NumNodes()
	if g.Entry().Special() != cfg.EntrySpecial {
		return contractErr(g.Entry().ID(), "entry block is not the entry special block")
	}
	if g.Exit().Special() != cfg.ExitSpecial {
		return contractErr(g.Exit().ID(), "exit block is not the exit special block")
	}
	if g.ExceptionalExit().Special() != cfg.ExceptionalExitSpecial {
		return contractErr(g.ExceptionalExit().ID(), "exceptional exit block is not the exceptional exit special block")
	}

	for i := 0; i < nb; i++ {
		id := cfg.BlockID(i)
		blk := g.Block(id)
		for _, n := range blk.Nodes() {
			if n < 0 || int(n) >= nn {
				return contractErr(id, "node %d out of range", n)
			}
		}
		var nTrue, nFalse, nExc, nPlain int
		for _, e := range blk.Succs() {
			if e.To < 0 || int(e.To) >= nb {
				return contractErr(id, "edge to block %d out of range", e.To)
			}
			switch e.Kind {
			case cfg.TrueBranch:
				nTrue++
			case cfg.FalseBranch:
				nFalse++
			case cfg.ExceptionalEdge:
				nExc++
			default:
				nPlain++
			}
		}
		switch blk.Kind() {
		case cfg.ConditionalBlock:
			if nTrue != 1 || nFalse != 1 || nExc != 0 || nPlain != 0 {
				return contractErr(id, "conditional block must have exactly one true and one false edge")
			}
			t := blk.Test()
			if t == cfg.NoNode || int(t) >= nn {
				return contractErr(id, "conditional block without a test node")
			}
		case cfg.ExceptionalBlock:
			if len(blk.Nodes()) == 0 {
				return contractErr(id, "exceptional block without a raising node")
			}
			if nExc == 0 {
				return contractErr(id, "exceptional block without exceptional edges")
			}
			if nTrue != 0 || nFalse != 0 || nPlain > 1 {
				return contractErr(id, "exceptional block with branch edges or multiple continuations")
			}
		default:
			if nTrue != 0 || nFalse != 0 || nExc != 0 {
				return contractErr(id, "non-conditional block with branch or exceptional edges")
			}
		}
	}
	return nil
}

// blockQueue is the worklist: a min-heap of block ids ordered by their precomputed
// iteration rank.
type blockQueue struct {
	ids      []int
	priority []int
}

func (q *blockQueue) Len() int           { return len(q.ids) }
func (q *blockQueue) Less(i, j int) bool { return q.priority[q.ids[i]] < q.priority[q.ids[j]] }
func (q *blockQueue) Swap(i, j int)      { q.ids[i], q.ids[j] = q.ids[j], q.ids[i] }
func (q *blockQueue) Push(x any)         { q.ids = append(q.ids, x.(int)) }
func (q *blockQueue) Pop() any {
	last := len(q.ids) - 1
	v := q.ids[last]
	q.ids = q.ids[:last]
	return v
}
