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

// Package constant implements intraprocedural constant propagation as a forward
// analysis over the flat lattice bottom < {each int, each bool} < top.
package constant

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/flowlabs/treeflow/analysis/cfg"
	"github.com/flowlabs/treeflow/analysis/config"
	"github.com/flowlabs/treeflow/analysis/dataflow"
	"github.com/flowlabs/treeflow/internal/funcutil"
)

type kind int

const (
	bottom kind = iota // no evaluation seen yet
	constInt
	constBool
	top // more than one value possible
)

// Value is one point of the flat constant lattice.
type Value struct {
	kind kind
	i    int64
	b    bool
}

// Bottom is the lattice bottom, the value of expressions no execution reaches.
func Bottom() Value { return Value{} }

// Top is the lattice top, the value of expressions that are not compile-time
// constants.
func Top() Value { return Value{kind: top} }

// Int returns the lattice point of a known integer.
func Int(i int64) Value { return Value{kind: constInt, i: i} }

// Bool returns the lattice point of a known boolean.
func Bool(b bool) Value { return Value{kind: constBool, b: b} }

// IsConst reports whether the value is a single known constant.
func (v Value) IsConst() bool { return v.kind == constInt || v.kind == constBool }

// AsInt returns the known integer, if the value is one.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == constInt }

// AsBool returns the known boolean, if the value is one.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == constBool }

// Join implements the lattice join of the flat lattice.
func (v Value) Join(o Value) Value {
	switch {
	case v.kind == bottom:
		return o
	case o.kind == bottom:
		return v
	case v.Equal(o):
		return v
	default:
		return Top()
	}
}

// Equal implements lattice equality.
func (v Value) Equal(o Value) bool { return v == o }

func (v Value) String() string {
	switch v.kind {
	case bottom:
		return "⊥"
	case constInt:
		return strconv.FormatInt(v.i, 10)
	case constBool:
		return strconv.FormatBool(v.b)
	default:
		return "⊤"
	}
}

// Store maps variable names to lattice values. Variables absent from the map are
// unknown, which joins as top with any binding.
type Store struct {
	m map[string]Value
}

// NewStore returns an empty store, the usual initial store of the analysis.
func NewStore() Store { return Store{m: map[string]Value{}} }

// Get returns the binding of a variable; unbound variables are top.
func (s Store) Get(name string) Value {
	if v, ok := s.m[name]; ok {
		return v
	}
	return Top()
}

// Join implements the pointwise join; a variable bound on only one side is top.
func (s Store) Join(o Store) Store {
	out := s.Copy()
	funcutil.Merge(out.m, o.m, Value.Join)
	for name := range out.m {
		_, inS := s.m[name]
		_, inO := o.m[name]
		if !inS || !inO {
			out.m[name] = Top()
		}
	}
	return out
}

// Equal implements pointwise equality, treating absent bindings as top.
func (s Store) Equal(o Store) bool {
	for name, v := range s.m {
		if !v.Equal(o.Get(name)) {
			return false
		}
	}
	for name, v := range o.m {
		if !v.Equal(s.Get(name)) {
			return false
		}
	}
	return true
}

// Copy implements dataflow.Store.
func (s Store) Copy() Store {
	out := Store{m: make(map[string]Value, len(s.m))}
	for name, v := range s.m {
		out.m[name] = v
	}
	return out
}

func (s Store) String() string {
	parts := funcutil.Map(funcutil.SortedKeys(s.m), func(name string) string {
		return fmt.Sprintf("%s=%s", name, s.m[name])
	})
	return "{" + strings.Join(parts, ", ") + "}"
}

// transfer is the constant-propagation transfer function.
type transfer struct{}

func (transfer) Apply(n *cfg.Node, in Store, args []Value) (Value, Store) {
	switch n.Kind() {
	case cfg.KindLiteral:
		return literal(n), in
	case cfg.KindVarRef:
		return in.Get(n.Target()), in
	case cfg.KindUnary:
		return foldUnary(n.Op(), args[0]), in
	case cfg.KindBinary:
		return foldBinary(n.Op(), args[0], args[1]), in
	case cfg.KindMerge:
		return args[0].Join(args[1]), in
	case cfg.KindAssign:
		v := Top() // assignments without a right-hand node bind caught exceptions
		if len(args) == 1 {
			v = args[0]
		}
		in.m[n.Target()] = v
		return v, in
	case cfg.KindReturn, cfg.KindThrow:
		if len(args) == 1 {
			return args[0], in
		}
		return Top(), in
	default: // calls and anything future
		return Top(), in
	}
}

func foldUnary(op string, x Value) Value {
	if !x.IsConst() {
		return x
	}
	switch op {
	case "-":
		if i, ok := x.AsInt(); ok {
			return Int(-i)
		}
	case "+":
		if _, ok := x.AsInt(); ok {
			return x
		}
	case "!":
		if b, ok := x.AsBool(); ok {
			return Bool(!b)
		}
	}
	return Top()
}

//gocyclo:ignore
func foldBinary(op string, x, y Value) Value {
	if !x.IsConst() || !y.IsConst() {
		// bottom operands mean the operand node was never evaluated; keep the result
		// unreachable rather than unknown
		if x.kind == bottom || y.kind == bottom {
			return Bottom()
		}
		return Top()
	}
	if a, ok := x.AsInt(); ok {
		b, ok := y.AsInt()
		if !ok {
			return Top()
		}
		switch op {
		case "+":
			return Int(a + b)
		case "-":
			return Int(a - b)
		case "*":
			return Int(a * b)
		case "/":
			if b != 0 {
				return Int(a / b)
			}
		case "%":
			if b != 0 {
				return Int(a % b)
			}
		case "==":
			return Bool(a == b)
		case "!=":
			return Bool(a != b)
		case "<":
			return Bool(a < b)
		case "<=":
			return Bool(a <= b)
		case ">":
			return Bool(a > b)
		case ">=":
			return Bool(a >= b)
		}
		return Top()
	}
	if a, ok := x.AsBool(); ok {
		b, ok := y.AsBool()
		if !ok {
			return Top()
		}
		switch op {
		case "==":
			return Bool(a == b)
		case "!=":
			return Bool(a != b)
		case "&&":
			return Bool(a && b)
		case "||":
			return Bool(a || b)
		}
	}
	return Top()
}

func (transfer) Branch(test *cfg.Node, testValue Value, in Store) (Store, Store) {
	// a branch over a plain boolean variable pins its value on each arm
	if test.Kind() == cfg.KindVarRef {
		onTrue := in.Copy()
		onTrue.m[test.Target()] = Bool(true)
		onFalse := in.Copy()
		onFalse.m[test.Target()] = Bool(false)
		return onTrue, onFalse
	}
	return in, in.Copy()
}

func (transfer) Raise(n *cfg.Node, cause string, in Store) Store {
	return in
}

func literal(n *cfg.Node) Value {
	switch n.Type() {
	case "bool":
		if b, err := strconv.ParseBool(n.String()); err == nil {
			return Bool(b)
		}
	case "int", "int8", "int16", "int32", "int64", "uint", "byte", "rune":
		if i, err := strconv.ParseInt(n.String(), 0, 64); err == nil {
			return Int(i)
		}
	}
	return Top()
}

// NewAnalysis builds a forward constant-propagation analysis over the graph.
func NewAnalysis(g *cfg.Graph, log *config.LogGroup) *dataflow.Analysis[Value, Store] {
	return &dataflow.Analysis[Value, Store]{
		Graph:     g,
		Transfer:  transfer{},
		Direction: dataflow.Forward,
		Logger:    log,
	}
}
