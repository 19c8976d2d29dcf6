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

package tree

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"

	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
	"golang.org/x/tools/go/packages"
)

// A Procedure is a procedure body imported from a frontend, together with the names of
// its parameters.
type Procedure struct {
	Name     string
	Params   []string
	Body     *Node
	NumNodes int
}

// FromGoFile parses the Go source file at path and imports the body of the function
// named funcName into the tree taxonomy. No type information is computed; literal nodes
// carry a type descriptor derived from their token kind only.
func FromGoFile(path string, funcName string) (*Procedure, error) {
	fset := token.NewFileSet()
	dec := decorator.NewDecorator(fset)
	file, err := dec.ParseFile(path, nil, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", path, err)
	}
	return procFromFile(dec, fset, nil, file, funcName)
}

// FromGoPackage loads the Go package matching pattern and imports the body of the
// function named funcName. Unlike FromGoFile, expression nodes carry type descriptors
// from the type checker.
func FromGoPackage(pattern string, funcName string) (*Procedure, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedSyntax |
			packages.NeedTypes | packages.NeedTypesInfo,
	}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, fmt.Errorf("could not load %s: %w", pattern, err)
	}
	for _, pkg := range pkgs {
		for _, file := range pkg.Syntax {
			dec := decorator.NewDecorator(pkg.Fset)
			dstFile, err := dec.DecorateFile(file)
			if err != nil {
				return nil, fmt.Errorf("could not decorate file: %w", err)
			}
			proc, err := procFromFile(dec, pkg.Fset, pkg.TypesInfo, dstFile, funcName)
			if err == nil {
				return proc, nil
			}
		}
	}
	return nil, fmt.Errorf("function %s not found in %s", funcName, pattern)
}

func procFromFile(dec *decorator.Decorator, fset *token.FileSet, info *types.Info,
	file *dst.File, funcName string) (*Procedure, error) {
	var fn *dst.FuncDecl
	for _, decl := range file.Decls {
		if fd, ok := decl.(*dst.FuncDecl); ok && fd.Name.Name == funcName {
			fn = fd
			break
		}
	}
	if fn == nil || fn.Body == nil {
		return nil, fmt.Errorf("function %s not found", funcName)
	}

	conv := &goConverter{dec: dec, fset: fset, info: info}
	body := conv.stmt(fn.Body)
	if conv.err != nil {
		return nil, conv.err
	}

	var params []string
	for _, field := range fn.Type.Params.List {
		for _, name := range field.Names {
			params = append(params, name.Name)
		}
	}
	return &Procedure{
		Name:     funcName,
		Params:   params,
		Body:     body,
		NumNodes: Renumber(body),
	}, nil
}

// goConverter translates dst statements and expressions into tree nodes. The first
// unsupported construct aborts the conversion.
type goConverter struct {
	dec  *decorator.Decorator
	fset *token.FileSet
	info *types.Info
	err  error
}

func (c *goConverter) fail(n dst.Node, format string, args ...any) *Node {
	if c.err == nil {
		c.err = fmt.Errorf("%s: %s", c.pos(n), fmt.Sprintf(format, args...))
	}
	return nil
}

// pos maps a dst node back to its source position through the decorator.
func (c *goConverter) pos(n dst.Node) Position {
	if an, ok := c.dec.Ast.Nodes[n]; ok {
		p := c.fset.Position(an.Pos())
		return Position{File: p.Filename, Line: p.Line, Col: p.Column}
	}
	return Position{}
}

// typeOf returns the type descriptor of a dst expression, when type information is
// available.
func (c *goConverter) typeOf(e dst.Expr) string {
	if c.info == nil {
		return ""
	}
	if an, ok := c.dec.Ast.Nodes[e]; ok {
		if ae, ok := an.(ast.Expr); ok {
			if t := c.info.TypeOf(ae); t != nil {
				return t.String()
			}
		}
	}
	return ""
}

func (c *goConverter) node(n dst.Node, kind Kind) *Node {
	return &Node{ID: NoID, Kind: kind, Pos: c.pos(n)}
}

//gocyclo:ignore
func (c *goConverter) stmt(s dst.Stmt) *Node {
	if s == nil || c.err != nil {
		return nil
	}
	switch st := s.(type) {
	case *dst.BlockStmt:
		out := c.node(st, BlockStmt)
		for _, inner := range st.List {
			if converted := c.stmt(inner); converted != nil {
				out.Body = append(out.Body, converted)
			}
		}
		return out
	case *dst.IfStmt:
		out := c.node(st, IfStmt)
		out.Cond = c.expr(st.Cond)
		out.Then = c.stmt(st.Body)
		out.Else = c.stmt(st.Else)
		if st.Init != nil {
			wrap := c.node(st, BlockStmt)
			wrap.Body = []*Node{c.stmt(st.Init), out}
			return wrap
		}
		return out
	case *dst.ForStmt:
		if st.Init == nil && st.Post == nil {
			out := c.node(st, WhileStmt)
			if st.Cond == nil {
				out.Cond = &Node{ID: NoID, Kind: Literal, Pos: c.pos(st), Value: "true", Type: "bool"}
			} else {
				out.Cond = c.expr(st.Cond)
			}
			out.Then = c.stmt(st.Body)
			return out
		}
		out := c.node(st, ForStmt)
		out.Init = c.stmt(st.Init)
		if st.Cond != nil {
			out.Cond = c.expr(st.Cond)
		}
		out.Post = c.stmt(st.Post)
		out.Then = c.stmt(st.Body)
		return out
	case *dst.SwitchStmt:
		return c.switchStmt(st)
	case *dst.BranchStmt:
		switch st.Tok {
		case token.BREAK:
			out := c.node(st, BreakStmt)
			if st.Label != nil {
				out.Label = st.Label.Name
			}
			return out
		case token.CONTINUE:
			out := c.node(st, ContinueStmt)
			if st.Label != nil {
				out.Label = st.Label.Name
			}
			return out
		default:
			return c.fail(st, "unsupported branch statement %s", st.Tok)
		}
	case *dst.ReturnStmt:
		out := c.node(st, ReturnStmt)
		if len(st.Results) > 1 {
			return c.fail(st, "multiple return values not supported")
		}
		if len(st.Results) == 1 {
			out.Expr = c.expr(st.Results[0])
		}
		return out
	case *dst.LabeledStmt:
		out := c.node(st, LabeledStmt)
		out.Label = st.Label.Name
		out.Then = c.stmt(st.Stmt)
		return out
	case *dst.ExprStmt:
		if call, ok := st.X.(*dst.CallExpr); ok {
			if id, ok := call.Fun.(*dst.Ident); ok && id.Name == "panic" {
				out := c.node(st, ThrowStmt)
				out.Sel = "panic"
				if len(call.Args) == 1 {
					out.Expr = c.expr(call.Args[0])
				}
				return out
			}
		}
		out := c.node(st, ExprStmt)
		out.Expr = c.expr(st.X)
		return out
	case *dst.AssignStmt:
		return c.assignStmt(st)
	case *dst.IncDecStmt:
		op := "+"
		if st.Tok == token.DEC {
			op = "-"
		}
		out := c.node(st, Assign)
		out.X = c.expr(st.X)
		out.Y = &Node{ID: NoID, Kind: Binary, Pos: c.pos(st), Op: op, X: c.expr(st.X),
			Y: &Node{ID: NoID, Kind: Literal, Pos: c.pos(st), Value: "1", Type: "int"}}
		return out
	case *dst.DeclStmt:
		return c.declStmt(st)
	case *dst.EmptyStmt:
		return nil
	default:
		return c.fail(s, "unsupported statement %T", s)
	}
}

// switchStmt converts a Go switch. Go cases do not fall through, so a break is appended
// to each clause body unless the clause ends in an explicit fallthrough.
func (c *goConverter) switchStmt(st *dst.SwitchStmt) *Node {
	if st.Init != nil {
		return c.fail(st, "switch with init statement not supported")
	}
	out := c.node(st, SwitchStmt)
	if st.Tag != nil {
		out.Cond = c.expr(st.Tag)
	}
	for _, raw := range st.Body.List {
		clause, ok := raw.(*dst.CaseClause)
		if !ok {
			return c.fail(raw, "unsupported switch clause %T", raw)
		}
		if len(clause.List) > 1 {
			return c.fail(clause, "multi-value case clauses not supported")
		}
		cc := c.node(clause, CaseClause)
		if len(clause.List) == 1 {
			cc.Expr = c.expr(clause.List[0])
		}
		ccBody := c.node(clause, BlockStmt)
		fallsThrough := false
		for i, inner := range clause.Body {
			if br, ok := inner.(*dst.BranchStmt); ok && br.Tok == token.FALLTHROUGH {
				if i != len(clause.Body)-1 {
					return c.fail(br, "fallthrough must be the last statement")
				}
				fallsThrough = true
				break
			}
			if converted := c.stmt(inner); converted != nil {
				ccBody.Body = append(ccBody.Body, converted)
			}
		}
		if !fallsThrough {
			ccBody.Body = append(ccBody.Body, c.node(clause, BreakStmt))
		}
		cc.Body = []*Node{ccBody}
		out.Body = append(out.Body, cc)
	}
	return out
}

func (c *goConverter) assignStmt(st *dst.AssignStmt) *Node {
	if len(st.Lhs) != 1 || len(st.Rhs) != 1 {
		return c.fail(st, "multi-assignments not supported")
	}
	target, ok := st.Lhs[0].(*dst.Ident)
	if !ok {
		return c.fail(st, "only assignments to variables are supported")
	}
	out := c.node(st, Assign)
	out.X = &Node{ID: NoID, Kind: Ident, Pos: c.pos(st.Lhs[0]), Name: target.Name,
		Type: c.typeOf(st.Lhs[0])}
	rhs := c.expr(st.Rhs[0])
	switch st.Tok {
	case token.ASSIGN, token.DEFINE:
		out.Y = rhs
	default:
		// compound assignment, e.g. x += e
		opTok := st.Tok.String()
		op := opTok[:len(opTok)-1]
		out.Y = &Node{ID: NoID, Kind: Binary, Pos: c.pos(st), Op: op,
			X: &Node{ID: NoID, Kind: Ident, Pos: c.pos(st.Lhs[0]), Name: target.Name}, Y: rhs}
	}
	return out
}

func (c *goConverter) declStmt(st *dst.DeclStmt) *Node {
	decl, ok := st.Decl.(*dst.GenDecl)
	if !ok || decl.Tok != token.VAR || len(decl.Specs) != 1 {
		return c.fail(st, "unsupported declaration")
	}
	spec, ok := decl.Specs[0].(*dst.ValueSpec)
	if !ok || len(spec.Names) != 1 {
		return c.fail(st, "unsupported declaration")
	}
	if len(spec.Values) == 0 {
		return nil // declaration without initializer has no effect on the graph
	}
	out := c.node(st, Assign)
	out.X = &Node{ID: NoID, Kind: Ident, Pos: c.pos(spec.Names[0]), Name: spec.Names[0].Name}
	out.Y = c.expr(spec.Values[0])
	return out
}

func (c *goConverter) expr(e dst.Expr) *Node {
	if e == nil || c.err != nil {
		return nil
	}
	switch ex := e.(type) {
	case *dst.ParenExpr:
		return c.expr(ex.X)
	case *dst.Ident:
		if ex.Name == "true" || ex.Name == "false" {
			out := c.node(ex, Literal)
			out.Value = ex.Name
			out.Type = "bool"
			return out
		}
		out := c.node(ex, Ident)
		out.Name = ex.Name
		out.Type = c.typeOf(ex)
		return out
	case *dst.BasicLit:
		out := c.node(ex, Literal)
		out.Value = ex.Value
		switch ex.Kind {
		case token.INT:
			out.Type = "int"
		case token.FLOAT:
			out.Type = "float"
		case token.STRING:
			out.Type = "string"
		case token.CHAR:
			out.Type = "char"
		}
		return out
	case *dst.BinaryExpr:
		out := c.node(ex, Binary)
		out.Op = ex.Op.String()
		out.X = c.expr(ex.X)
		out.Y = c.expr(ex.Y)
		out.Type = c.typeOf(ex)
		return out
	case *dst.UnaryExpr:
		out := c.node(ex, Unary)
		out.Op = ex.Op.String()
		out.X = c.expr(ex.X)
		out.Type = c.typeOf(ex)
		return out
	case *dst.CallExpr:
		out := c.node(ex, Call)
		switch fun := ex.Fun.(type) {
		case *dst.Ident:
			out.Sel = fun.Name
		case *dst.SelectorExpr:
			if recv, ok := fun.X.(*dst.Ident); ok {
				out.Sel = recv.Name + "." + fun.Sel.Name
			} else {
				return c.fail(ex, "unsupported call target")
			}
		default:
			return c.fail(ex, "unsupported call target %T", ex.Fun)
		}
		for _, arg := range ex.Args {
			out.Args = append(out.Args, c.expr(arg))
		}
		out.Type = c.typeOf(ex)
		return out
	default:
		return c.fail(e, "unsupported expression %T", e)
	}
}
