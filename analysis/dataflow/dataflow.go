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

// Package dataflow implements a generic worklist fixed-point engine over control-flow
// graphs. Clients describe an analysis by the abstract value and store types of its
// lattice and by a transfer function; the engine owns iteration order, store
// propagation and termination.
package dataflow

import (
	"container/heap"
	"fmt"

	"github.com/flowlabs/treeflow/analysis/cfg"
	"github.com/flowlabs/treeflow/analysis/config"
	"github.com/flowlabs/treeflow/internal/graphutil"
)

// Value is the abstract-value side of an analysis lattice. Join must be commutative,
// associative and idempotent; Equal must be an equivalence relation consistent with
// Join. Implementations are value types: Join returns a new value.
type Value[V any] interface {
	Join(other V) V
	Equal(other V) bool
}

// Store is the flow-sensitive state carried along edges, typically a map from
// variables to abstract values. The same lattice laws as for Value apply. Copy must
// return a store that can be mutated without observing or affecting the receiver.
type Store[S any] interface {
	Join(other S) S
	Equal(other S) bool
	Copy() S
}

// Transfer is the client-supplied transfer function of an analysis.
//
// Apply processes one node given the store before it and returns the node's abstract
// value together with the store after it. args holds the values already computed for
// the node's operands, indexed like cfg.Node.Operands; an operand without a value yet
// (possible on backward analyses, where operands are visited after their users)
// contributes the zero value of V.
//
// Branch refines the store at a conditional block given the already-computed value of
// its test; it is only called on forward analyses. Raise produces the store
// propagated along one exceptional edge, given the store before the raising node;
// cause is the edge's exception type, or "*" when it is statically unknown.
type Transfer[V Value[V], S Store[S]] interface {
	Apply(n *cfg.Node, in S, args []V) (V, S)
	Branch(test *cfg.Node, testValue V, in S) (onTrue, onFalse S)
	Raise(n *cfg.Node, cause string, in S) S
}

// Direction selects whether stores flow with or against the edges of the graph.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// An Analysis binds a graph to a transfer function. The zero values of Logger and
// MaxIterations select a default logger and config.DefaultMaxIterations.
type Analysis[V Value[V], S Store[S]] struct {
	Graph         *cfg.Graph
	Transfer      Transfer[V, S]
	Direction     Direction
	Logger        *config.LogGroup
	MaxIterations int
}

// A FixpointError reports that the worklist did not stabilize within the iteration
// budget, which for a monotone transfer function over a finite-height lattice
// indicates a transfer or lattice bug.
type FixpointError struct {
	Iterations int
}

func (e *FixpointError) Error() string {
	return fmt.Sprintf("analysis did not reach a fixed point after %d block visits", e.Iterations)
}

// Run iterates the analysis to a fixed point and returns its result. The initial
// store seeds the entry block; backward analyses are seeded at both the exit and
// the exceptional exit, so paths ending in an uncaught raise are analyzed too.
//
// Blocks are visited in reverse postorder (postorder for backward analyses), so on
// reducible graphs a block is normally visited after all its non-back-edge
// predecessors. Visiting a block threads a store through its nodes with Transfer.Apply
// and joins the resulting stores into the block's successors; successors whose input
// changed are re-enqueued. Termination is guaranteed for monotone transfer functions
// over finite-height lattices, and enforced by the iteration budget otherwise.
func (a *Analysis[V, S]) Run(initial S) (*Result[V, S], error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	log := a.Logger
	if log == nil {
		log = config.NewLogGroup(config.NewDefault())
	}
	maxIter := a.MaxIterations
	if maxIter <= 0 {
		maxIter = config.DefaultMaxIterations
	}

	r := newRun(a, log)
	r.seed(initial)

	visits := 0
	for r.queue.Len() > 0 {
		visits++
		if visits > maxIter {
			return nil, &FixpointError{Iterations: visits - 1}
		}
		id := r.pop()
		if a.Direction == Forward {
			r.visitForward(id)
		} else {
			r.visitBackward(id)
		}
	}
	log.Debugf("%s analysis stabilized after %d block visits over %d blocks",
		a.Direction, visits, a.Graph.NumBlocks())

	return r.result(), nil
}

// run is the mutable state of one Run call.
type run[V Value[V], S Store[S]] struct {
	a   *Analysis[V, S]
	log *config.LogGroup

	priority []int // priority[block] = worklist rank
	queue    *blockQueue
	queued   []bool

	in, out  []S
	hasIn    []bool
	hasOut   []bool
	values   []V
	hasValue []bool
}

func newRun[V Value[V], S Store[S]](a *Analysis[V, S], log *config.LogGroup) *run[V, S] {
	g := a.Graph
	nb := g.NumBlocks()

	roots := []int{int(g.Entry().ID())}
	cg := g.CGraph()
	if a.Direction == Backward {
		cg = reverseCGraph(g)
		roots = []int{int(g.Exit().ID()), int(g.ExceptionalExit().ID())}
	}
	order := graphutil.ReversePostOrder(cg, roots...)
	// blocks unreachable from every root in the chosen direction rank after all
	// ordered ones
	priority := make([]int, nb)
	for i := range priority {
		priority[i] = nb + i
	}
	for rank, blk := range order {
		priority[blk] = rank
	}

	r := &run[V, S]{
		a:        a,
		log:      log,
		priority: priority,
		queue:    &blockQueue{priority: priority},
		queued:   make([]bool, nb),
		in:       make([]S, nb),
		out:      make([]S, nb),
		hasIn:    make([]bool, nb),
		hasOut:   make([]bool, nb),
		values:   make([]V, g.NumNodes()),
		hasValue: make([]bool, g.NumNodes()),
	}
	return r
}

// seed installs the initial store at the roots of the run: the entry block going
// forward, both the exit and the exceptional exit going backward. Paths that only
// reach the exceptional exit would otherwise never be visited.
func (r *run[V, S]) seed(initial S) {
	g := r.a.Graph
	starts := []cfg.BlockID{g.Entry().ID()}
	if r.a.Direction == Backward {
		starts = []cfg.BlockID{g.Exit().ID(), g.ExceptionalExit().ID()}
	}
	for _, start := range starts {
		r.in[start] = initial.Copy()
		r.hasIn[start] = true
		r.push(start)
	}
}

func (r *run[V, S]) push(id cfg.BlockID) {
	if !r.queued[id] {
		r.queued[id] = true
		heap.Push(r.queue, int(id))
	}
}

func (r *run[V, S]) pop() cfg.BlockID {
	id := cfg.BlockID(heap.Pop(r.queue).(int))
	r.queued[id] = false
	return id
}

// propagate joins a store into the input of a block, enqueueing it when the input
// grew. The store is copied so callers may keep mutating their own.
func (r *run[V, S]) propagate(to cfg.BlockID, s S) {
	if !r.hasIn[to] {
		r.in[to] = s.Copy()
		r.hasIn[to] = true
		r.push(to)
		return
	}
	joined := r.in[to].Join(s)
	if joined.Equal(r.in[to]) {
		return
	}
	r.in[to] = joined
	r.push(to)
}

// thread runs the transfer function over the block's nodes in the given order,
// recording per-node values, and returns the final store plus the store before the
// last node (needed by Raise on exceptional blocks).
func (r *run[V, S]) thread(s S, order []cfg.NodeID) (post, preLast S) {
	preLast = s
	for i, id := range order {
		if i == len(order)-1 {
			preLast = s.Copy()
		}
		n := r.a.Graph.Node(id)
		ops := n.Operands()
		args := make([]V, len(ops))
		for j, op := range ops {
			if op != cfg.NoNode && r.hasValue[op] {
				args[j] = r.values[op]
			}
		}
		var v V
		v, s = r.a.Transfer.Apply(n, s, args)
		r.values[id] = v
		r.hasValue[id] = true
	}
	return s, preLast
}

func (r *run[V, S]) visitForward(id cfg.BlockID) {
	g := r.a.Graph
	blk := g.Block(id)
	s := r.in[id].Copy()
	s, preLast := r.thread(s, blk.Nodes())
	r.out[id] = s
	r.hasOut[id] = true

	switch blk.Kind() {
	case cfg.ConditionalBlock:
		test := g.Node(blk.Test())
		onTrue, onFalse := r.a.Transfer.Branch(test, r.values[blk.Test()], s)
		for _, e := range blk.Succs() {
			switch e.Kind {
			case cfg.TrueBranch:
				r.propagate(e.To, onTrue)
			case cfg.FalseBranch:
				r.propagate(e.To, onFalse)
			}
		}
	case cfg.ExceptionalBlock:
		nodes := blk.Nodes()
		last := g.Node(nodes[len(nodes)-1])
		for _, e := range blk.Succs() {
			if e.Kind == cfg.ExceptionalEdge {
				r.propagate(e.To, r.a.Transfer.Raise(last, e.Cause, preLast.Copy()))
			} else {
				r.propagate(e.To, s)
			}
		}
	default:
		for _, e := range blk.Succs() {
			r.propagate(e.To, s)
		}
	}
}

// visitBackward threads the block's nodes in reverse and propagates the result to all
// predecessors. Branch refinement and exceptional-store splitting have no backward
// counterpart; every in-edge receives the same store.
func (r *run[V, S]) visitBackward(id cfg.BlockID) {
	g := r.a.Graph
	blk := g.Block(id)
	s := r.in[id].Copy()

	nodes := blk.Nodes()
	rev := make([]cfg.NodeID, len(nodes))
	for i, n := range nodes {
		rev[len(nodes)-1-i] = n
	}
	s, _ = r.thread(s, rev)
	r.out[id] = s
	r.hasOut[id] = true

	for _, p := range g.Preds(id) {
		r.propagate(p, s)
	}
}

func (r *run[V, S]) result() *Result[V, S] {
	return &Result[V, S]{
		graph:     r.a.Graph,
		direction: r.a.Direction,
		values:    r.values,
		hasValue:  r.hasValue,
		in:        r.in,
		out:       r.out,
		hasIn:     r.hasIn,
		hasOut:    r.hasOut,
	}
}

// reverseCGraph builds the edge-reversed graph used to order backward analyses.
func reverseCGraph(g *cfg.Graph) graphutil.CGraph {
	return graphutil.NewCGraph(g.NumBlocks(), func(v int) []int {
		preds := g.Preds(cfg.BlockID(v))
		out := make([]int, len(preds))
		for i, p := range preds {
			out[i] = int(p)
		}
		return out
	})
}
