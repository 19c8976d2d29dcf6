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

// Package liveness implements live-variable analysis as a backward dataflow pass.
// Its main client payload is dead-store detection: the value attached to an
// assignment node records whether the assigned variable is live afterwards.
package liveness

import (
	"strings"

	"github.com/flowlabs/treeflow/analysis/cfg"
	"github.com/flowlabs/treeflow/analysis/config"
	"github.com/flowlabs/treeflow/analysis/dataflow"
	"github.com/flowlabs/treeflow/internal/funcutil"
)

// Value marks, per node, whether the node matters to a live variable: for assignments
// whether the target is live after the store, for variable references always live.
type Value struct {
	Live bool
}

// Join implements dataflow.Value as logical or.
func (v Value) Join(o Value) Value { return Value{Live: v.Live || o.Live} }

// Equal implements dataflow.Value.
func (v Value) Equal(o Value) bool { return v == o }

// Store is the set of variables live at a point.
type Store struct {
	live map[string]bool
}

// NewStore returns the empty live set, the initial store at the exit block.
func NewStore() Store { return Store{live: map[string]bool{}} }

// Has reports whether a variable is in the live set.
func (s Store) Has(name string) bool { return s.live[name] }

// Join implements set union.
func (s Store) Join(o Store) Store {
	out := s.Copy()
	funcutil.Union(out.live, o.live)
	return out
}

// Equal implements set equality.
func (s Store) Equal(o Store) bool {
	if len(s.live) != len(o.live) {
		return false
	}
	for name := range s.live {
		if !o.live[name] {
			return false
		}
	}
	return true
}

// Copy implements dataflow.Store.
func (s Store) Copy() Store {
	out := Store{live: make(map[string]bool, len(s.live))}
	for name := range s.live {
		out.live[name] = true
	}
	return out
}

func (s Store) String() string {
	return "{" + strings.Join(funcutil.SortedKeys(s.live), ", ") + "}"
}

type transfer struct{}

// Apply runs gen/kill against iteration order: the engine hands nodes to a backward
// analysis last to first, so an assignment's kill is applied before the gens of the
// uses on its right-hand side.
func (transfer) Apply(n *cfg.Node, in Store, args []Value) (Value, Store) {
	switch n.Kind() {
	case cfg.KindVarRef:
		in.live[n.Target()] = true
		return Value{Live: true}, in
	case cfg.KindAssign:
		wasLive := in.live[n.Target()]
		delete(in.live, n.Target())
		return Value{Live: wasLive}, in
	default:
		return Value{}, in
	}
}

func (transfer) Branch(test *cfg.Node, testValue Value, in Store) (Store, Store) {
	return in, in.Copy()
}

func (transfer) Raise(n *cfg.Node, cause string, in Store) Store {
	return in
}

// NewAnalysis builds a backward live-variable analysis over the graph.
func NewAnalysis(g *cfg.Graph, log *config.LogGroup) *dataflow.Analysis[Value, Store] {
	return &dataflow.Analysis[Value, Store]{
		Graph:     g,
		Transfer:  transfer{},
		Direction: dataflow.Backward,
		Logger:    log,
	}
}
