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

	"github.com/flowlabs/treeflow/analysis/tree"
	"github.com/flowlabs/treeflow/internal/graphutil"
)

// A BuildError reports malformed input to the builder: an unresolvable jump target or
// an unsupported syntax construct. Construction aborts on the first such error and no
// partial graph is returned.
type BuildError struct {
	Pos tree.Position
	Msg string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// Build converts the syntax tree of one procedure body into a control-flow graph.
//
// The build has two phases. Phase 1 walks the tree, case-splitting on node kind, and
// emits blocks whose forward references (loop exits, catch handlers, join points) are
// pre-allocated empty blocks in the arena. Phase 2 verifies those placeholders were
// filled, discards blocks that ended up unreachable, and compacts the arena.
//
// The input tree is never mutated. The tree must be numbered (see tree.Renumber); trees
// returned by the tree package frontends already are.
func Build(body *tree.Node) (*Graph, error) {
	if body == nil {
		return nil, &BuildError{Msg: "empty procedure body"}
	}
	b := &builder{g: &Graph{}}

	entry := b.newBlock(SpecialBlock)
	entry.special = EntrySpecial
	exit := b.newBlock(SpecialBlock)
	exit.special = ExitSpecial
	excExit := b.newBlock(SpecialBlock)
	excExit.special = ExceptionalExitSpecial
	b.g.entry, b.g.exit, b.g.excExit = entry.id, exit.id, excExit.id

	first := b.newBlock(RegularBlock)
	entry.succs = []Edge{{Kind: Unconditional, To: first.id}}
	b.cur = first

	b.walkStmt(body)
	if b.err != nil {
		return nil, b.err
	}
	// falling off the end of the body is an implicit return
	b.jump(b.g.exit)

	return b.finalize()
}

// frameKind discriminates the entries of the builder's enclosing-construct stack.
type frameKind int

const (
	loopF frameKind = iota + 1
	breakF
	tryF
)

type catchTarget struct {
	typ   string // exception type matched by the clause; "" matches any
	block BlockID
}

// A frame records one enclosing loop, breakable statement or try statement during the
// walk. Jumps are resolved against this stack; finally bodies of crossed try frames are
// inlined on the way out.
type frame struct {
	kind  frameKind
	label string

	// loop and break frames
	brk  BlockID
	cont BlockID

	// try frames
	catches    []catchTarget
	finally    *tree.Node
	finallyExc BlockID // duplicated finally on the unhandled-exception path
}

type builder struct {
	g   *Graph
	cur *Block // block being filled; nil while the walk is past a control transfer

	frames       []frame
	pendingLabel string

	err error
}

func (b *builder) fail(n *tree.Node, format string, args ...any) {
	if b.err == nil {
		var pos tree.Position
		if n != nil {
			pos = n.Pos
		}
		b.err = &BuildError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
	}
}

func (b *builder) newBlock(kind BlockKind) *Block {
	blk := &Block{id: BlockID(len(b.g.blocks)), kind: kind, test: NoNode}
	b.g.blocks = append(b.g.blocks, blk)
	return blk
}

// ensureCur opens a fresh block when the previous one was terminated. Statements after
// an unconditional transfer land in such a block; it has no predecessors and phase 2
// discards it.
func (b *builder) ensureCur() {
	if b.cur == nil {
		b.cur = b.newBlock(RegularBlock)
	}
}

func (b *builder) emit(kind NodeKind, op, target string, tn *tree.Node, operands ...NodeID) NodeID {
	if b.err != nil {
		return NoNode
	}
	b.ensureCur()
	n := &Node{
		id:       NodeID(len(b.g.nodes)),
		kind:     kind,
		op:       op,
		target:   target,
		treeID:   tn.ID,
		pos:      tn.Pos,
		typ:      tn.Type,
		text:     tn.String(),
		operands: operands,
	}
	b.g.nodes = append(b.g.nodes, n)
	b.cur.nodes = append(b.cur.nodes, n.id)
	return n.id
}

// jump terminates the current block with an unconditional edge. It is a no-op when the
// current path is already terminated.
func (b *builder) jump(to BlockID) {
	if b.cur == nil || b.err != nil {
		return
	}
	b.cur.succs = append(b.cur.succs, Edge{Kind: Unconditional, To: to})
	b.cur = nil
}

// branchOn evaluates a condition and terminates the current block on it. Boolean
// literal conditions are folded: the block ends in an unconditional edge to the only
// arm that can run, which leaves the other arm for unreachable-block pruning.
func (b *builder) branchOn(owner, cond *tree.Node, onTrue, onFalse BlockID) {
	if cond == nil {
		b.fail(owner, "missing condition in %s", owner.Kind)
		return
	}
	test := b.walkExpr(cond)
	if cond.Kind == tree.Literal && cond.Type == "bool" {
		switch cond.Value {
		case "true":
			b.jump(onTrue)
			return
		case "false":
			b.jump(onFalse)
			return
		}
	}
	b.branch(test, onTrue, onFalse)
}

// branch terminates the current block with a two-way branch over the test node.
func (b *builder) branch(test NodeID, onTrue, onFalse BlockID) {
	if b.err != nil {
		return
	}
	b.ensureCur()
	b.cur.kind = ConditionalBlock
	b.cur.test = test
	b.cur.succs = append(b.cur.succs,
		Edge{Kind: TrueBranch, To: onTrue},
		Edge{Kind: FalseBranch, To: onFalse})
	b.cur = nil
}

func (b *builder) takeLabel() string {
	l := b.pendingLabel
	b.pendingLabel = ""
	return l
}

// raiseEdges appends the exceptional edges for a raise of the given cause to the
// current block. The cause "*" stands for a statically unknown exception type, as
// raised by calls.
//
// The edges follow the enclosing try frames inside out: the first clause of a frame
// whose type matches takes the exception (declaration order, exact name or catch-all;
// handlers are expected most-specific-first). An unmatched exception leaves through the
// frame's duplicated finally block when there is one, otherwise it keeps unwinding,
// ultimately to the exceptional exit.
func (b *builder) raiseEdges(cause string) {
	exc := func(c string, to BlockID) {
		b.cur.succs = append(b.cur.succs, Edge{Kind: ExceptionalEdge, To: to, Cause: c})
	}
	for i := len(b.frames) - 1; i >= 0; i-- {
		fr := &b.frames[i]
		if fr.kind != tryF {
			continue
		}
		if cause == "*" {
			// any clause may end up matching an unknown exception type
			for _, c := range fr.catches {
				if c.typ == "" {
					exc("*", c.block)
					return
				}
				exc(c.typ, c.block)
			}
		} else {
			for _, c := range fr.catches {
				if c.typ == cause || c.typ == "" {
					exc(cause, c.block)
					return
				}
			}
		}
		if fr.finally != nil {
			exc(cause, fr.finallyExc)
			return
		}
	}
	exc(cause, b.g.excExit)
}

// unwindFinallys inlines the finally bodies of the try frames above the frame index
// downTo, innermost first. Each body is walked with the stack truncated to its own
// enclosing context.
func (b *builder) unwindFinallys(downTo int) {
	saved := b.frames
	for i := len(saved) - 1; i > downTo; i-- {
		fr := saved[i]
		if fr.kind == tryF && fr.finally != nil {
			b.frames = saved[:i]
			b.walkStmt(fr.finally)
		}
	}
	b.frames = saved
}

//gocyclo:ignore
func (b *builder) walkStmt(n *tree.Node) {
	if n == nil || b.err != nil {
		return
	}
	if n.Kind.IsExpr() {
		b.walkExpr(n)
		return
	}
	switch n.Kind {
	case tree.BlockStmt:
		for _, s := range n.Body {
			b.walkStmt(s)
		}
	case tree.ExprStmt:
		if n.Expr != nil {
			b.walkExpr(n.Expr)
		}
	case tree.IfStmt:
		b.ifStmt(n)
	case tree.WhileStmt:
		b.whileStmt(n)
	case tree.DoWhileStmt:
		b.doWhileStmt(n)
	case tree.ForStmt:
		b.forStmt(n)
	case tree.SwitchStmt:
		b.switchStmt(n)
	case tree.BreakStmt:
		b.breakStmt(n)
	case tree.ContinueStmt:
		b.continueStmt(n)
	case tree.ReturnStmt:
		b.returnStmt(n)
	case tree.ThrowStmt:
		b.throwStmt(n)
	case tree.TryStmt:
		b.tryStmt(n)
	case tree.LabeledStmt:
		b.labeledStmt(n)
	default:
		b.fail(n, "unsupported statement kind %s", n.Kind)
	}
}

func (b *builder) ifStmt(n *tree.Node) {
	thenB := b.newBlock(RegularBlock)
	join := b.newBlock(RegularBlock)
	if n.Else == nil {
		b.branchOn(n, n.Cond, thenB.id, join.id)
	} else {
		elseB := b.newBlock(RegularBlock)
		b.branchOn(n, n.Cond, thenB.id, elseB.id)
		b.cur = elseB
		b.walkStmt(n.Else)
		b.jump(join.id)
	}
	b.cur = thenB
	b.walkStmt(n.Then)
	b.jump(join.id)
	b.cur = join
}

func (b *builder) whileStmt(n *tree.Node) {
	label := b.takeLabel()
	header := b.newBlock(RegularBlock)
	b.jump(header.id)
	b.cur = header
	body := b.newBlock(RegularBlock)
	exitB := b.newBlock(RegularBlock)
	b.branchOn(n, n.Cond, body.id, exitB.id)

	b.frames = append(b.frames, frame{kind: loopF, label: label, brk: exitB.id, cont: header.id})
	b.cur = body
	b.walkStmt(n.Then)
	b.jump(header.id) // back-edge
	b.frames = b.frames[:len(b.frames)-1]

	b.cur = exitB
}

func (b *builder) doWhileStmt(n *tree.Node) {
	label := b.takeLabel()
	body := b.newBlock(RegularBlock)
	testB := b.newBlock(RegularBlock)
	exitB := b.newBlock(RegularBlock)
	b.jump(body.id)

	b.frames = append(b.frames, frame{kind: loopF, label: label, brk: exitB.id, cont: testB.id})
	b.cur = body
	b.walkStmt(n.Then)
	b.jump(testB.id)
	b.frames = b.frames[:len(b.frames)-1]

	b.cur = testB
	b.branchOn(n, n.Cond, body.id, exitB.id) // true edge is the back-edge
	b.cur = exitB
}

func (b *builder) forStmt(n *tree.Node) {
	label := b.takeLabel()
	if n.Init != nil {
		b.walkStmt(n.Init)
	}
	header := b.newBlock(RegularBlock)
	b.jump(header.id)
	b.cur = header
	body := b.newBlock(RegularBlock)
	exitB := b.newBlock(RegularBlock)
	postB := b.newBlock(RegularBlock)
	if n.Cond != nil {
		b.branchOn(n, n.Cond, body.id, exitB.id)
	} else {
		b.jump(body.id)
	}

	b.frames = append(b.frames, frame{kind: loopF, label: label, brk: exitB.id, cont: postB.id})
	b.cur = body
	b.walkStmt(n.Then)
	b.jump(postB.id)
	b.frames = b.frames[:len(b.frames)-1]

	b.cur = postB
	if n.Post != nil {
		b.walkStmt(n.Post)
	}
	b.jump(header.id) // back-edge
	b.cur = exitB
}

// switchStmt desugars a switch into a chain of equality tests over the subject, with
// explicit fallthrough edges between adjacent case bodies.
//
//gocyclo:ignore
func (b *builder) switchStmt(n *tree.Node) {
	label := b.takeLabel()
	subject := NoNode
	if n.Cond != nil {
		subject = b.walkExpr(n.Cond)
	}

	clauses := n.Body
	defaultIdx := -1
	for i, c := range clauses {
		if c.Kind != tree.CaseClause {
			b.fail(c, "switch body must consist of case clauses, got %s", c.Kind)
			return
		}
		if c.Expr == nil {
			if defaultIdx >= 0 {
				b.fail(c, "duplicate default clause")
				return
			}
			defaultIdx = i
		}
	}

	afterB := b.newBlock(RegularBlock)
	bodyBlocks := make([]*Block, len(clauses))
	for i := range clauses {
		bodyBlocks[i] = b.newBlock(RegularBlock)
	}
	testBlocks := make([]*Block, 0, len(clauses))
	testedIdx := make([]int, 0, len(clauses))
	for i, c := range clauses {
		if c.Expr != nil {
			testBlocks = append(testBlocks, b.newBlock(RegularBlock))
			testedIdx = append(testedIdx, i)
		}
	}

	// where a failed test chain (or an empty one) lands
	noMatch := afterB.id
	if defaultIdx >= 0 {
		noMatch = bodyBlocks[defaultIdx].id
	}
	if len(testBlocks) > 0 {
		b.jump(testBlocks[0].id)
	} else {
		b.jump(noMatch)
	}

	for ti, i := range testedIdx {
		clause := clauses[i]
		b.cur = testBlocks[ti]
		caseVal := b.walkExpr(clause.Expr)
		test := caseVal
		if subject != NoNode {
			test = b.emit(KindBinary, "==", "", clause, subject, caseVal)
		}
		next := noMatch
		if ti+1 < len(testBlocks) {
			next = testBlocks[ti+1].id
		}
		b.branch(test, bodyBlocks[i].id, next)
	}

	b.frames = append(b.frames, frame{kind: breakF, label: label, brk: afterB.id})
	for i, clause := range clauses {
		b.cur = bodyBlocks[i]
		for _, s := range clause.Body {
			b.walkStmt(s)
		}
		if i+1 < len(clauses) {
			b.jump(bodyBlocks[i+1].id) // fallthrough
		} else {
			b.jump(afterB.id)
		}
	}
	b.frames = b.frames[:len(b.frames)-1]

	b.cur = afterB
}

func (b *builder) breakStmt(n *tree.Node) {
	for i := len(b.frames) - 1; i >= 0; i-- {
		fr := b.frames[i]
		if (fr.kind == loopF || fr.kind == breakF) && (n.Label == "" || fr.label == n.Label) {
			b.ensureCur()
			b.unwindFinallys(i)
			b.jump(fr.brk)
			return
		}
	}
	if n.Label != "" {
		b.fail(n, "break target %q not found", n.Label)
	} else {
		b.fail(n, "break outside loop or switch")
	}
}

func (b *builder) continueStmt(n *tree.Node) {
	for i := len(b.frames) - 1; i >= 0; i-- {
		fr := b.frames[i]
		if fr.kind == loopF && (n.Label == "" || fr.label == n.Label) {
			b.ensureCur()
			b.unwindFinallys(i)
			b.jump(fr.cont)
			return
		}
	}
	if n.Label != "" {
		b.fail(n, "continue target %q not found", n.Label)
	} else {
		b.fail(n, "continue outside loop")
	}
}

func (b *builder) returnStmt(n *tree.Node) {
	var operands []NodeID
	if n.Expr != nil {
		operands = append(operands, b.walkExpr(n.Expr))
	}
	b.emit(KindReturn, "", "", n, operands...)
	b.unwindFinallys(-1)
	b.jump(b.g.exit)
}

func (b *builder) throwStmt(n *tree.Node) {
	cause := n.Sel
	if cause == "" {
		cause = "*"
	}
	var operands []NodeID
	if n.Expr != nil {
		operands = append(operands, b.walkExpr(n.Expr))
	}
	b.emit(KindThrow, "", cause, n, operands...)
	if b.err != nil {
		return
	}
	b.cur.kind = ExceptionalBlock
	b.raiseEdges(cause)
	b.cur = nil
}

//gocyclo:ignore
func (b *builder) tryStmt(n *tree.Node) {
	tf := frame{kind: tryF, finally: n.Else, finallyExc: NoBlock}
	for _, c := range n.Body {
		if c.Kind != tree.CatchClause {
			b.fail(c, "try body must list catch clauses, got %s", c.Kind)
			return
		}
		tf.catches = append(tf.catches, catchTarget{typ: c.Sel, block: b.newBlock(RegularBlock).id})
	}
	if tf.finally != nil {
		tf.finallyExc = b.newBlock(RegularBlock).id
	}

	b.frames = append(b.frames, tf)
	b.walkStmt(n.Then)
	b.frames = b.frames[:len(b.frames)-1]
	if b.err != nil {
		return
	}

	afterB := b.newBlock(RegularBlock)

	// normal exit of the try body runs its own copy of the finally block
	if b.cur != nil {
		if tf.finally != nil {
			b.walkStmt(tf.finally)
		}
		b.jump(afterB.id)
	}

	// handlers, each with its own finally copy; exceptions raised inside a handler
	// propagate to the enclosing context, not to this try's clauses. A frame with the
	// clauses cleared stays on the stack so a return, break, continue or raise inside
	// a handler still runs this try's finally on the way out.
	hf := frame{kind: tryF, finally: tf.finally, finallyExc: tf.finallyExc}
	for i, c := range n.Body {
		b.cur = b.g.blocks[tf.catches[i].block]
		if c.Name != "" {
			b.emit(KindAssign, "", c.Name, c)
		}
		if tf.finally != nil {
			b.frames = append(b.frames, hf)
		}
		b.walkStmt(c.Then)
		if tf.finally != nil {
			b.frames = b.frames[:len(b.frames)-1]
		}
		if b.cur != nil {
			if tf.finally != nil {
				b.walkStmt(tf.finally)
			}
			b.jump(afterB.id)
		}
	}

	// the duplicated finally on the unhandled-exception path rethrows when it completes
	if tf.finally != nil {
		b.cur = b.g.blocks[tf.finallyExc]
		b.walkStmt(tf.finally)
		if b.cur != nil {
			b.cur.kind = ExceptionalBlock
			b.raiseEdges("*")
			b.cur = nil
		}
	}

	b.cur = afterB
}

func (b *builder) labeledStmt(n *tree.Node) {
	if n.Then == nil {
		b.fail(n, "labeled statement without statement")
		return
	}
	switch n.Then.Kind {
	case tree.WhileStmt, tree.DoWhileStmt, tree.ForStmt, tree.SwitchStmt:
		b.pendingLabel = n.Label
		b.walkStmt(n.Then)
	default:
		afterB := b.newBlock(RegularBlock)
		b.frames = append(b.frames, frame{kind: breakF, label: n.Label, brk: afterB.id})
		b.walkStmt(n.Then)
		b.frames = b.frames[:len(b.frames)-1]
		b.jump(afterB.id)
		b.cur = afterB
	}
}

//gocyclo:ignore
func (b *builder) walkExpr(n *tree.Node) NodeID {
	if n == nil || b.err != nil {
		return NoNode
	}
	switch n.Kind {
	case tree.Ident:
		return b.emit(KindVarRef, "", n.Name, n)
	case tree.Literal:
		return b.emit(KindLiteral, "", "", n)
	case tree.Unary:
		x := b.walkExpr(n.X)
		return b.emit(KindUnary, n.Op, "", n, x)
	case tree.Binary:
		if n.Op == "&&" || n.Op == "||" {
			return b.shortCircuit(n)
		}
		x := b.walkExpr(n.X)
		y := b.walkExpr(n.Y)
		return b.emit(KindBinary, n.Op, "", n, x, y)
	case tree.Assign:
		if n.X == nil || n.X.Kind != tree.Ident {
			b.fail(n, "unsupported assignment target")
			return NoNode
		}
		y := b.walkExpr(n.Y)
		return b.emit(KindAssign, "", n.X.Name, n, y)
	case tree.Call:
		return b.callExpr(n)
	case tree.Cond:
		if n.Cond == nil {
			b.fail(n, "missing condition in %s", n.Kind)
			return NoNode
		}
		test := b.walkExpr(n.Cond)
		thenB := b.newBlock(RegularBlock)
		elseB := b.newBlock(RegularBlock)
		join := b.newBlock(RegularBlock)
		b.branch(test, thenB.id, elseB.id)
		b.cur = thenB
		tv := b.walkExpr(n.X)
		b.jump(join.id)
		b.cur = elseB
		fv := b.walkExpr(n.Y)
		b.jump(join.id)
		b.cur = join
		return b.emit(KindMerge, "?:", "", n, tv, fv)
	default:
		b.fail(n, "unsupported expression kind %s", n.Kind)
		return NoNode
	}
}

// shortCircuit desugars && and || into a conditional block. The right operand is only
// reachable along the edge where evaluation must continue; the operator's result is a
// merge node at the join point.
func (b *builder) shortCircuit(n *tree.Node) NodeID {
	left := b.walkExpr(n.X)
	rhs := b.newBlock(RegularBlock)
	join := b.newBlock(RegularBlock)
	if n.Op == "&&" {
		b.branch(left, rhs.id, join.id)
	} else {
		b.branch(left, join.id, rhs.id)
	}
	b.cur = rhs
	right := b.walkExpr(n.Y)
	b.jump(join.id)
	b.cur = join
	return b.emit(KindMerge, n.Op, "", n, left, right)
}

// callExpr emits a call node and seals its block: calls may raise, so the call must be
// the block's last node and the block carries the exceptional edges of the raise.
func (b *builder) callExpr(n *tree.Node) NodeID {
	args := make([]NodeID, 0, len(n.Args))
	for _, a := range n.Args {
		args = append(args, b.walkExpr(a))
	}
	id := b.emit(KindCall, "", n.Sel, n, args...)
	if b.err != nil {
		return NoNode
	}
	b.cur.kind = ExceptionalBlock
	b.raiseEdges("*")
	next := b.newBlock(RegularBlock)
	b.cur.succs = append(b.cur.succs, Edge{Kind: Unconditional, To: next.id})
	b.cur = next
	return id
}

// finalize is phase 2: it checks that every block was terminated, discards the blocks
// that ended up unreachable from entry, compacts the arenas and computes predecessors.
func (b *builder) finalize() (*Graph, error) {
	g := b.g
	reached := graphutil.Reachable(g.CGraph(), int(g.entry))

	keepBlock := make([]bool, len(g.blocks))
	for i := range g.blocks {
		keepBlock[i] = reached[i]
	}
	// the special blocks always survive, even when degenerate bodies (e.g. an infinite
	// loop with no break) leave an exit unreached
	keepBlock[g.entry] = true
	keepBlock[g.exit] = true
	keepBlock[g.excExit] = true

	for i, blk := range g.blocks {
		if !keepBlock[i] || blk.special != NotSpecial {
			continue
		}
		if len(blk.succs) == 0 {
			return nil, &BuildError{Msg: fmt.Sprintf("internal: block %d has no successors", i)}
		}
	}

	// compact blocks
	blockMap := make([]BlockID, len(g.blocks))
	var blocks []*Block
	for i, blk := range g.blocks {
		if keepBlock[i] {
			blockMap[i] = BlockID(len(blocks))
			blocks = append(blocks, blk)
		} else {
			blockMap[i] = NoBlock
		}
	}

	// compact nodes to those held by surviving blocks
	keepNode := make([]bool, len(g.nodes))
	for _, blk := range blocks {
		for _, id := range blk.nodes {
			keepNode[id] = true
		}
	}
	nodeMap := make([]NodeID, len(g.nodes))
	var nodes []*Node
	for i, n := range g.nodes {
		if keepNode[i] {
			nodeMap[i] = NodeID(len(nodes))
			nodes = append(nodes, n)
		} else {
			nodeMap[i] = NoNode
		}
	}

	remapNode := func(id NodeID) NodeID {
		if id == NoNode {
			return NoNode
		}
		return nodeMap[id]
	}
	for _, n := range nodes {
		n.id = remapNode(n.id)
		for j, op := range n.operands {
			// operands in pruned blocks stay behind as absent references
			n.operands[j] = remapNode(op)
		}
	}
	for _, blk := range blocks {
		blk.id = blockMap[blk.id]
		blk.test = remapNode(blk.test)
		for j, id := range blk.nodes {
			blk.nodes[j] = nodeMap[id]
		}
		for j, e := range blk.succs {
			blk.succs[j].To = blockMap[e.To]
		}
	}

	g.blocks = blocks
	g.nodes = nodes
	g.entry = blockMap[g.entry]
	g.exit = blockMap[g.exit]
	g.excExit = blockMap[g.excExit]
	g.computePreds()
	return g, nil
}
