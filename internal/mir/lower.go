package mir

import (
	"errors"
	"fmt"

	"fortio.org/safecast"

	"moonc/internal/ast"
)

var (
	// ErrBreakOutsideLoop reports a break with no enclosing loop.
	ErrBreakOutsideLoop = errors.New("mir: break outside of a loop")
	// ErrMalformed reports a syntax tree that violates the resolver's contract.
	ErrMalformed = errors.New("mir: malformed syntax tree")
)

// LowerChunk translates a resolved chunk into a module: one Func for the root
// body and one per nested function literal.
func LowerChunk(chunk *ast.Chunk) (*Module, error) {
	if chunk == nil || chunk.Body == nil {
		return nil, fmt.Errorf("%w: empty chunk", ErrMalformed)
	}
	b := NewBuilder()
	if err := b.Reserve(RootID); err != nil {
		return nil, err
	}
	if err := lowerFunc(b, RootID, chunk.Body, nil); err != nil {
		return nil, err
	}
	return b.Finish()
}

type funcLowerer struct {
	b    *Builder
	body *ast.FuncBody
	f    *Func
	cur  Label

	locals map[ast.LocalID]Var
	upvals []UpVar

	loopStack []Label
	scopes    []*labelScope
	// unresolved holds gotos that left the outermost block without a label.
	unresolved []pendingGoto
	children   int
}

// labelScope holds the labels of one block and the forward gotos from it and
// its nested blocks that no visible label has matched yet.
type labelScope struct {
	defined map[string]Label
	pending []pendingGoto
}

// pendingGoto is a forward goto. from is an empty block that the goto jumps
// to; it gets a jump to the label once the label is defined.
type pendingGoto struct {
	name string
	line int32
	from Label
}

// lowerFunc lowers body as function id and defines it in b. parent is nil for
// the root chunk.
func lowerFunc(b *Builder, id FunctionID, body *ast.FuncBody, parent *funcLowerer) error {
	l := &funcLowerer{
		b:       b,
		body:    body,
		f:      &Func{ID: id, Name: body.Name, VarArgs: body.VarArgs, NextID: 1},
		locals: make(map[ast.LocalID]Var),
	}

	for _, u := range body.Upvals {
		if u.Kind == ast.UpvalEnv && parent != nil {
			return fmt.Errorf("%w: %s: environment upvalue %q in a nested function", ErrMalformed, id, u.Name)
		}
		up := UpVar(l.f.fresh())
		l.upvals = append(l.upvals, up)
		l.f.UpVars = append(l.f.UpVars, up)
	}
	for _, p := range body.Params {
		if _, dup := l.locals[p]; dup {
			return fmt.Errorf("%w: %s: duplicate parameter %d", ErrMalformed, id, p)
		}
		l.f.Params = append(l.f.Params, l.declare(p))
	}

	entry := l.newBlock()
	l.f.Entry = entry
	l.startBlock(entry)

	if err := l.lowerBlock(&body.Block); err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}

	// Implicit fallthrough.
	if !l.curBlock().Terminated() {
		l.setTerm(&Terminator{Kind: TermReturn})
	}

	if len(l.unresolved) > 0 {
		g := l.unresolved[0]
		return fmt.Errorf("%w: %s: line %d: goto %q has no visible label", ErrMalformed, id, g.line, g.name)
	}
	for i := range l.f.Blocks {
		if l.f.Blocks[i].Term.Kind == TermNone {
			l.f.Blocks[i].Term.Kind = TermReturn
		}
	}
	return b.Define(l.f)
}

func (l *funcLowerer) curBlock() *Block {
	idx := int(l.cur)
	if idx < 0 || idx >= len(l.f.Blocks) {
		return nil
	}
	return &l.f.Blocks[idx]
}

func (l *funcLowerer) newBlock() Label {
	raw, err := safecast.Conv[int32](len(l.f.Blocks))
	if err != nil {
		panic(fmt.Errorf("mir: block id overflow: %w", err))
	}
	id := Label(raw)
	l.f.Blocks = append(l.f.Blocks, Block{Label: id, Term: Terminator{Kind: TermNone}})
	return id
}

func (l *funcLowerer) startBlock(id Label) {
	l.cur = id
}

// ensureOpen starts a fresh block when the current one already ended, so code
// after return, break or goto still has somewhere to go. Such blocks are
// unreachable unless a label makes them reachable.
func (l *funcLowerer) ensureOpen() {
	if l.curBlock().Terminated() {
		l.startBlock(l.newBlock())
	}
}

func (l *funcLowerer) setTerm(t *Terminator) {
	b := l.curBlock()
	if b == nil || b.Terminated() || t == nil {
		return
	}
	b.Term = *t
}

func (l *funcLowerer) emit(ins *Instr) {
	b := l.curBlock()
	if b == nil || b.Terminated() || ins == nil {
		return
	}
	b.Instrs = append(b.Instrs, *ins)
}

func (l *funcLowerer) jump(target Label) {
	l.setTerm(&Terminator{Kind: TermJump, Jump: JumpTerm{Target: target}})
}

func (l *funcLowerer) branch(cond Val, then, els Label) {
	l.setTerm(&Terminator{Kind: TermBranch, Branch: BranchTerm{Cond: cond, Then: then, Else: els}})
}

func (l *funcLowerer) newVal() Val { return Val(l.f.fresh()) }
func (l *funcLowerer) newPhi() PhiVal { return PhiVal(l.f.fresh()) }
func (l *funcLowerer) newMulti() MultiVal { return MultiVal(l.f.fresh()) }

// declare returns the Var of a local, allocating it on first declaration.
// A declaration executed again (inside a loop) reuses the same Var.
func (l *funcLowerer) declare(id ast.LocalID) Var {
	if x, ok := l.locals[id]; ok {
		return x
	}
	x := Var(l.f.fresh())
	l.locals[id] = x
	return x
}

func (l *funcLowerer) local(id ast.LocalID) (Var, error) {
	x, ok := l.locals[id]
	if !ok {
		return 0, fmt.Errorf("%w: local %d used before declaration", ErrMalformed, id)
	}
	return x, nil
}

func (l *funcLowerer) upval(idx int32) (UpVar, error) {
	if idx < 0 || int(idx) >= len(l.upvals) {
		return 0, fmt.Errorf("%w: upvalue %d out of range (%d captured)", ErrMalformed, idx, len(l.upvals))
	}
	return l.upvals[idx], nil
}

func (l *funcLowerer) pushScope() {
	l.scopes = append(l.scopes, &labelScope{defined: make(map[string]Label)})
}

// popScope closes the innermost block. Its labels go out of sight and its
// unmatched gotos move to the enclosing block.
func (l *funcLowerer) popScope() {
	top := l.scopes[len(l.scopes)-1]
	l.scopes = l.scopes[:len(l.scopes)-1]
	if len(l.scopes) == 0 {
		l.unresolved = append(l.unresolved, top.pending...)
		return
	}
	parent := l.scopes[len(l.scopes)-1]
	parent.pending = append(parent.pending, top.pending...)
}

// gotoLabel jumps to the innermost visible label called name. A label not
// defined yet is looked up again when one with that name appears.
func (l *funcLowerer) gotoLabel(name string, line int32) {
	for i := len(l.scopes) - 1; i >= 0; i-- {
		if lbl, ok := l.scopes[i].defined[name]; ok {
			l.jump(lbl)
			return
		}
	}
	from := l.newBlock()
	l.jump(from)
	top := l.scopes[len(l.scopes)-1]
	top.pending = append(top.pending, pendingGoto{name: name, line: line, from: from})
}

// defineLabel starts a new block for name in the innermost scope and binds
// the pending gotos waiting for it.
func (l *funcLowerer) defineLabel(name string, line int32) error {
	top := l.scopes[len(l.scopes)-1]
	if _, dup := top.defined[name]; dup {
		return fmt.Errorf("%w: line %d: label %q defined twice", ErrMalformed, line, name)
	}
	target := l.newBlock()
	top.defined[name] = target
	l.jump(target)
	l.startBlock(target)

	kept := top.pending[:0]
	for _, g := range top.pending {
		if g.name != name {
			kept = append(kept, g)
			continue
		}
		l.f.Blocks[int(g.from)].Term = Terminator{Kind: TermJump, Jump: JumpTerm{Target: target}}
	}
	top.pending = kept
	return nil
}

func (l *funcLowerer) constant(c Const) Val {
	dst := l.newVal()
	l.emit(&Instr{Kind: InstrLoadConst, LoadConst: LoadConstInstr{Dst: dst, Const: c}})
	return dst
}

// lowerClosure translates a nested function literal and emits its closure.
func (l *funcLowerer) lowerClosure(body *ast.FuncBody) (Val, error) {
	if body == nil {
		return 0, fmt.Errorf("%w: function literal without body", ErrMalformed)
	}
	id := l.f.ID.Child(l.children)
	l.children++

	caps := make([]Capture, 0, len(body.Upvals))
	for _, u := range body.Upvals {
		switch u.Kind {
		case ast.UpvalLocal:
			x, err := l.local(u.Local)
			if err != nil {
				return 0, fmt.Errorf("capture %q: %w", u.Name, err)
			}
			caps = append(caps, Capture{Kind: CaptureVar, Var: x})
		case ast.UpvalOuter:
			up, err := l.upval(u.Index)
			if err != nil {
				return 0, fmt.Errorf("capture %q: %w", u.Name, err)
			}
			caps = append(caps, Capture{Kind: CaptureUpVar, UpVar: up})
		default:
			return 0, fmt.Errorf("%w: capture %q has kind %d", ErrMalformed, u.Name, u.Kind)
		}
	}

	if err := l.b.Reserve(id); err != nil {
		return 0, err
	}
	if err := lowerFunc(l.b, id, body, l); err != nil {
		return 0, err
	}

	dst := l.newVal()
	l.emit(&Instr{Kind: InstrClosure, Closure: ClosureInstr{Dst: dst, Func: id, Captures: caps}})
	return dst, nil
}
