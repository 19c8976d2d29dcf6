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
	"github.com/flowlabs/treeflow/analysis/cfg"
	"github.com/flowlabs/treeflow/analysis/tree"
	"github.com/flowlabs/treeflow/internal/funcutil"
)

// StorePoint names one of the two stores attached to a block in a Result.
type StorePoint int

const (
	// StoreBefore is the store at block entry, after joining the contributions of all
	// visited in-edges.
	StoreBefore StorePoint = iota
	// StoreAfter is the store after the block's last node, before any branch
	// refinement or exceptional splitting.
	StoreAfter
)

// A Result holds the fixed point computed by Analysis.Run: an abstract value per
// graph node and a pair of stores per block. Accessors return absent options for
// blocks and nodes the fixed point never reached, i.e. dead code.
type Result[V Value[V], S Store[S]] struct {
	graph     *cfg.Graph
	direction Direction

	values   []V
	hasValue []bool
	in, out  []S
	hasIn    []bool
	hasOut   []bool

	byTree map[tree.NodeID][]cfg.NodeID
}

// Graph returns the graph the result was computed over.
func (r *Result[V, S]) Graph() *cfg.Graph { return r.graph }

// Direction returns the direction the analysis ran in.
func (r *Result[V, S]) Direction() Direction { return r.direction }

// ValueOfNode returns the abstract value computed for one graph node.
func (r *Result[V, S]) ValueOfNode(id cfg.NodeID) funcutil.Optional[V] {
	if id == cfg.NoNode || int(id) >= len(r.values) || !r.hasValue[id] {
		return funcutil.None[V]()
	}
	return funcutil.Some(r.values[id])
}

// ValueOf returns the abstract value computed for a syntax-tree node. Constructs whose
// evaluation the builder duplicated (finally bodies, most notably) map to several
// graph nodes; their values are joined. The option is absent when no reachable graph
// node evaluates the tree node.
func (r *Result[V, S]) ValueOf(id tree.NodeID) funcutil.Optional[V] {
	if r.byTree == nil {
		r.byTree = make(map[tree.NodeID][]cfg.NodeID)
		for _, blk := range r.graph.Blocks() {
			for _, nid := range blk.Nodes() {
				tid := r.graph.Node(nid).TreeID()
				r.byTree[tid] = append(r.byTree[tid], nid)
			}
		}
	}
	var acc V
	found := false
	for _, nid := range r.byTree[id] {
		if !r.hasValue[nid] {
			continue
		}
		if !found {
			acc = r.values[nid]
			found = true
		} else {
			acc = acc.Join(r.values[nid])
		}
	}
	if !found {
		return funcutil.None[V]()
	}
	return funcutil.Some(acc)
}

// StoreAt returns one of the two stores attached to a block. For backward analyses
// "before" and "after" follow iteration order, not control flow: StoreBefore is the
// join over out-edges and StoreAfter the store past the first node of the block.
func (r *Result[V, S]) StoreAt(id cfg.BlockID, p StorePoint) funcutil.Optional[S] {
	if id == cfg.NoBlock || int(id) >= len(r.in) {
		return funcutil.None[S]()
	}
	if p == StoreBefore {
		if !r.hasIn[id] {
			return funcutil.None[S]()
		}
		return funcutil.Some(r.in[id])
	}
	if !r.hasOut[id] {
		return funcutil.None[S]()
	}
	return funcutil.Some(r.out[id])
}

// ExitStore returns the store reaching the exit block: the analysis result for the
// procedure as a whole. It is absent when the exit is unreachable, e.g. a body that
// always loops or always raises.
func (r *Result[V, S]) ExitStore() funcutil.Optional[S] {
	return r.StoreAt(r.graph.Exit().ID(), StoreBefore)
}
