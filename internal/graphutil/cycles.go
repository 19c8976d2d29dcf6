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

package graphutil

import (
	"sort"

	"github.com/yourbasic/graph"
)

// FindAllElementaryCycles finds all elementary cycles in the graph cg.
// This uses Donald B. Johnson's algorithm presented in
// "Finding All The Elementary Circuits of a Directed Graph", 1975
//
//	cg : the graph with cycles
func FindAllElementaryCycles(cg CGraph) [][]int {
	s := &cycleState{
		blocked: map[int]bool{},
		blist:   map[int]map[int]bool{},
		stack:   []int{},
		cycles:  [][]int{},
	}
	// Self loops are elementary cycles that the SCC decomposition does not surface.
	for _, v := range cg.Keys {
		if cg.Edges[v][v] {
			s.cycles = append(s.cycles, []int{v, v})
		}
	}
	keys := make([]int, len(cg.Keys))
	copy(keys, cg.Keys)
	sort.Ints(keys)
	for start := 0; start < len(keys); {
		fg := Subgraph(cg, keys[start:])
		components := graph.StrongComponents(fg)
		least := -1
		for _, component := range components {
			if len(component) >= 2 {
				sort.Ints(component)
				if least < 0 || component[0] < least {
					least = component[0]
				}
			}
		}
		if least < 0 {
			return s.cycles
		}
		s.stack = []int{}
		s.blocked = map[int]bool{}
		s.blist = map[int]map[int]bool{}
		s.circuit(least, least, fg)
		for start < len(keys) && keys[start] <= least {
			start++
		}
	}
	return s.cycles
}

type cycleState struct {
	blocked map[int]bool
	blist   map[int]map[int]bool
	stack   []int
	cycles  [][]int
}

func (s *cycleState) unblock(u int) {
	s.blocked[u] = false
	for w := range s.blist[u] {
		if s.blocked[w] {
			s.unblock(w)
		}
	}
	s.blist[u] = map[int]bool{}
}

func (s *cycleState) circuit(v int, i int, g CGraph) bool {
	f := false
	s.stack = append(s.stack, v)
	s.blocked[v] = true
	for w := range g.Edges[v] {
		if w == i {
			stackCopy := make([]int, len(s.stack))
			copy(stackCopy, s.stack)
			stackCopy = append(stackCopy, w)
			s.cycles = append(s.cycles, stackCopy)
			f = true
		} else if !s.blocked[w] {
			if s.circuit(w, i, g) {
				f = true
			}
		}
	}
	if f {
		s.unblock(v)
	} else {
		for w := range g.Edges[v] {
			if s.blist[w] == nil {
				s.blist[w] = map[int]bool{}
			}
			s.blist[w][v] = true
		}
	}
	s.stack = s.stack[:len(s.stack)-1]
	return f
}
