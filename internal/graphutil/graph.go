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

// Package graphutil provides graph utilities for the control-flow graphs built in this
// module. Graphs are abstracted as a CGraph, a plain adjacency structure over integer
// node ids, to work with existing graph libraries.
package graphutil

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
)

// CGraph is an abstraction over a directed graph with dense integer node ids.
// It implements the methods to satisfy yourbasic's graph.Iterator, and converts to a
// Gonum graph for traversals.
type CGraph struct {
	// The order of the graph
	order int

	// Keys are all the node ids, sorted
	Keys []int

	// Edges is an adjacency structure: Edges[x][y] means there is a directed edge from x to y
	Edges map[int]map[int]bool
}

// NewCGraph builds a CGraph with nodes 0..order-1 and the edges given by succs.
func NewCGraph(order int, succs func(int) []int) CGraph {
	keys := make([]int, order)
	edges := make(map[int]map[int]bool, order)
	for i := 0; i < order; i++ {
		keys[i] = i
		edges[i] = map[int]bool{}
		for _, j := range succs(i) {
			edges[i][j] = true
		}
	}
	return CGraph{order: order, Keys: keys, Edges: edges}
}

// Subgraph returns a new graph that is the original graph with only the nodes in include. Only the edges that have
// both the origin and destination nodes in the include nodes are kept in the resulting graph.
// The subgraph's order is the same as in the original, meaning that node ids stay consistent across subgraphs.
func Subgraph(original CGraph, include []int) CGraph {
	in := make(map[int]bool, len(include))
	keys := make([]int, len(include))
	for j, i := range include {
		keys[j] = i
		in[i] = true
	}

	edges := make(map[int]map[int]bool, len(include))
	for _, i := range include {
		edges[i] = map[int]bool{}
		for e := range original.Edges[i] {
			if in[e] {
				edges[i][e] = true
			}
		}
	}

	return CGraph{
		order: original.Order(),
		Keys:  keys,
		Edges: edges,
	}
}

// Order implements the order of the graph.Iterator interface for the CGraph
func (c CGraph) Order() int {
	return c.order
}

// Visit implements the graph.Iterator interface for the CGraph
func (c CGraph) Visit(v int, do func(w int, cost int64) (skip bool)) (aborted bool) {
	for w := range c.Edges[v] {
		if do(w, 1) {
			return true
		}
	}
	return false
}

// Gonum converts the CGraph into a Gonum directed graph. Self edges are skipped since
// simple.DirectedGraph does not represent them; they are irrelevant for reachability.
func (c CGraph) Gonum() *simple.DirectedGraph {
	g := simple.NewDirectedGraph()
	for _, i := range c.Keys {
		g.AddNode(simple.Node(int64(i)))
	}
	for _, i := range c.Keys {
		for j := range c.Edges[i] {
			if i != j {
				g.SetEdge(g.NewEdge(simple.Node(int64(i)), simple.Node(int64(j))))
			}
		}
	}
	return g
}

// Reachable returns the set of node ids reachable from the node from, including from itself.
func Reachable(c CGraph, from int) map[int]bool {
	reached := map[int]bool{}
	df := traverse.DepthFirst{
		Visit: func(n graph.Node) { reached[int(n.ID())] = true },
	}
	df.Walk(c.Gonum(), simple.Node(int64(from)), nil)
	return reached
}

// ReversePostOrder returns the nodes reachable from the roots in reverse postorder of
// a depth-first traversal. The roots are taken in order over a shared visited set, and
// successors are visited in increasing id order, so the result is deterministic.
func ReversePostOrder(c CGraph, roots ...int) []int {
	seen := make(map[int]bool, c.order)
	var post []int
	var visit func(v int)
	visit = func(v int) {
		seen[v] = true
		next := make([]int, 0, len(c.Edges[v]))
		for w := range c.Edges[v] {
			next = append(next, w)
		}
		sort.Ints(next)
		for _, w := range next {
			if !seen[w] {
				visit(w)
			}
		}
		post = append(post, v)
	}
	for _, root := range roots {
		if !seen[root] {
			visit(root)
		}
	}
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

// BackEdges returns the edges (v, w) such that w is an ancestor of v in a depth-first
// traversal from root, i.e. the retreating edges created by loops.
func BackEdges(c CGraph, root int) [][2]int {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make(map[int]int, c.order)
	var backs [][2]int
	var visit func(v int)
	visit = func(v int) {
		color[v] = grey
		next := make([]int, 0, len(c.Edges[v]))
		for w := range c.Edges[v] {
			next = append(next, w)
		}
		sort.Ints(next)
		for _, w := range next {
			switch color[w] {
			case white:
				visit(w)
			case grey:
				backs = append(backs, [2]int{v, w})
			}
		}
		color[v] = black
	}
	visit(root)
	return backs
}
