package mir

import (
	"fmt"

	"moonc/internal/ast"
)

func (l *funcLowerer) lowerBlock(b *ast.Block) error {
	if b == nil {
		return nil
	}
	l.pushScope()
	defer l.popScope()
	for i := range b.Stmts {
		l.ensureOpen()
		if err := l.lowerStmt(&b.Stmts[i]); err != nil {
			return err
		}
	}
	return nil
}

func (l *funcLowerer) lowerStmt(st *ast.Stmt) error {
	switch st.Kind {
	case ast.StmtLocal:
		if st.Local == nil {
			return fmt.Errorf("%w: line %d: local without payload", ErrMalformed, st.Line)
		}
		return l.lowerLocal(st.Local)

	case ast.StmtAssign:
		if st.Assign == nil {
			return fmt.Errorf("%w: line %d: assignment without payload", ErrMalformed, st.Line)
		}
		return l.lowerAssign(st.Assign)

	case ast.StmtCall:
		if st.Call == nil || st.Call.Kind != ast.ExprCall {
			return fmt.Errorf("%w: line %d: call statement without a call", ErrMalformed, st.Line)
		}
		_, err := l.lowerCall(st.Call.Call)
		return err

	case ast.StmtDo:
		return l.lowerBlock(st.Do)

	case ast.StmtWhile:
		if st.While == nil {
			return fmt.Errorf("%w: line %d: while without payload", ErrMalformed, st.Line)
		}
		return l.lowerWhile(st.While)

	case ast.StmtRepeat:
		if st.Repeat == nil {
			return fmt.Errorf("%w: line %d: repeat without payload", ErrMalformed, st.Line)
		}
		return l.lowerRepeat(st.Repeat)

	case ast.StmtIf:
		if st.If == nil || len(st.If.Clauses) == 0 {
			return fmt.Errorf("%w: line %d: if without clauses", ErrMalformed, st.Line)
		}
		return l.lowerIf(st.If)

	case ast.StmtNumericFor:
		if st.NumericFor == nil {
			return fmt.Errorf("%w: line %d: numeric for without payload", ErrMalformed, st.Line)
		}
		return l.lowerNumericFor(st.NumericFor)

	case ast.StmtGenericFor:
		if st.GenericFor == nil || len(st.GenericFor.Vars) == 0 || len(st.GenericFor.Exprs) == 0 {
			return fmt.Errorf("%w: line %d: generic for without variables or iterator", ErrMalformed, st.Line)
		}
		return l.lowerGenericFor(st.GenericFor)

	case ast.StmtBreak:
		if len(l.loopStack) == 0 {
			return fmt.Errorf("line %d: %w", st.Line, ErrBreakOutsideLoop)
		}
		l.jump(l.loopStack[len(l.loopStack)-1])
		return nil

	case ast.StmtGoto:
		l.gotoLabel(st.Label, st.Line)
		return nil

	case ast.StmtLabel:
		return l.defineLabel(st.Label, st.Line)

	case ast.StmtReturn:
		return l.lowerReturn(st.Return)

	case ast.StmtLocalFunc:
		if st.LocalFunc == nil {
			return fmt.Errorf("%w: line %d: local function without payload", ErrMalformed, st.Line)
		}
		// local f; f = function ... end. The closure captures the freshly
		// declared variable and is stored into it afterwards.
		x := l.declare(st.LocalFunc.Name)
		l.storeVar(x, l.constant(NilConst()), true)
		clo, err := l.lowerClosure(st.LocalFunc.Func)
		if err != nil {
			return err
		}
		l.storeVar(x, clo, false)
		return nil

	default:
		return fmt.Errorf("%w: line %d: unknown statement kind %d", ErrMalformed, st.Line, st.Kind)
	}
}

func (l *funcLowerer) storeVar(x Var, v Val, fresh bool) {
	l.emit(&Instr{Kind: InstrStoreVar, StoreVar: StoreVarInstr{Dst: x, Src: v, Fresh: fresh}})
}

func (l *funcLowerer) lowerLocal(st *ast.LocalStmt) error {
	// Values are evaluated before the new names come into scope.
	vals, err := l.lowerExprList(st.Values, len(st.Names))
	if err != nil {
		return err
	}
	for i, name := range st.Names {
		l.storeVar(l.declare(name), vals[i], true)
	}
	return nil
}

type placeKind uint8

const (
	placeVar placeKind = iota
	placeUpVar
	placeIndex
)

// place is an assignment target whose table and key are already evaluated.
type place struct {
	kind  placeKind
	v     Var
	up    UpVar
	table Val
	key   Val
}

func (l *funcLowerer) lowerPlace(e *ast.Expr) (place, error) {
	switch e.Kind {
	case ast.ExprLocal:
		x, err := l.local(e.Local)
		if err != nil {
			return place{}, err
		}
		return place{kind: placeVar, v: x}, nil
	case ast.ExprUpval:
		up, err := l.upval(e.Upval)
		if err != nil {
			return place{}, err
		}
		return place{kind: placeUpVar, up: up}, nil
	case ast.ExprIndex:
		if e.Index == nil {
			return place{}, fmt.Errorf("%w: line %d: index without payload", ErrMalformed, e.Line)
		}
		tbl, err := l.lowerValue(&e.Index.Object)
		if err != nil {
			return place{}, err
		}
		key, err := l.lowerValue(&e.Index.Key)
		if err != nil {
			return place{}, err
		}
		return place{kind: placeIndex, table: tbl, key: key}, nil
	default:
		return place{}, fmt.Errorf("%w: line %d: cannot assign to expression kind %d", ErrMalformed, e.Line, e.Kind)
	}
}

func (l *funcLowerer) store(p place, v Val) {
	switch p.kind {
	case placeVar:
		l.storeVar(p.v, v, false)
	case placeUpVar:
		l.emit(&Instr{Kind: InstrStoreUpVar, StoreUpVar: StoreUpVarInstr{Dst: p.up, Src: v}})
	case placeIndex:
		l.emit(&Instr{Kind: InstrSetTable, SetTable: SetTableInstr{Table: p.table, Key: p.key, Value: v}})
	}
}

func (l *funcLowerer) lowerAssign(st *ast.AssignStmt) error {
	if len(st.Targets) == 0 {
		return fmt.Errorf("%w: assignment without targets", ErrMalformed)
	}
	places := make([]place, len(st.Targets))
	for i := range st.Targets {
		p, err := l.lowerPlace(&st.Targets[i])
		if err != nil {
			return err
		}
		places[i] = p
	}
	vals, err := l.lowerExprList(st.Values, len(places))
	if err != nil {
		return err
	}
	// Stores happen right to left, as the reference interpreter does.
	for i := len(places) - 1; i >= 0; i-- {
		l.store(places[i], vals[i])
	}
	return nil
}

func (l *funcLowerer) lowerWhile(st *ast.WhileStmt) error {
	head := l.newBlock()
	l.jump(head)
	l.startBlock(head)

	cond, err := l.lowerValue(&st.Cond)
	if err != nil {
		return err
	}
	body := l.newBlock()
	exit := l.newBlock()
	l.branch(cond, body, exit)

	l.startBlock(body)
	l.loopStack = append(l.loopStack, exit)
	err = l.lowerBlock(&st.Body)
	l.loopStack = l.loopStack[:len(l.loopStack)-1]
	if err != nil {
		return err
	}
	l.jump(head)

	l.startBlock(exit)
	return nil
}

func (l *funcLowerer) lowerRepeat(st *ast.RepeatStmt) error {
	body := l.newBlock()
	exit := l.newBlock()
	l.jump(body)
	l.startBlock(body)

	l.loopStack = append(l.loopStack, exit)
	err := l.lowerBlock(&st.Body)
	if err == nil {
		// The condition sees the body's locals.
		l.ensureOpen()
		var cond Val
		cond, err = l.lowerValue(&st.Cond)
		if err == nil {
			l.branch(cond, exit, body)
		}
	}
	l.loopStack = l.loopStack[:len(l.loopStack)-1]
	if err != nil {
		return err
	}

	l.startBlock(exit)
	return nil
}

func (l *funcLowerer) lowerIf(st *ast.IfStmt) error {
	exit := l.newBlock()
	for i := range st.Clauses {
		cl := &st.Clauses[i]
		cond, err := l.lowerValue(&cl.Cond)
		if err != nil {
			return err
		}
		then := l.newBlock()
		next := l.newBlock()
		l.branch(cond, then, next)

		l.startBlock(then)
		if err := l.lowerBlock(&cl.Body); err != nil {
			return err
		}
		l.jump(exit)
		l.startBlock(next)
	}
	if st.Else != nil {
		if err := l.lowerBlock(st.Else); err != nil {
			return err
		}
	}
	l.jump(exit)
	l.startBlock(exit)
	return nil
}

// lowerNumericFor lowers
//
//	for v = init, limit, step do body end
//
// into a hidden control variable that starts one step early, so the head can
// always increment before testing:
//
//	ctl = tonumber(init) - step
//	head: next = ctl + step; ctl = next; if loop_end(next, limit, step) goto exit
//	body: v = next; ...; goto head
func (l *funcLowerer) lowerNumericFor(st *ast.NumericForStmt) error {
	init, err := l.lowerValue(&st.Init)
	if err != nil {
		return err
	}
	limit, err := l.lowerValue(&st.Limit)
	if err != nil {
		return err
	}
	var step Val
	if st.Step != nil {
		if step, err = l.lowerValue(st.Step); err != nil {
			return err
		}
	} else {
		step = l.constant(IntConst(1))
	}

	// Conversion order is limit, step, then the initial value.
	limit = l.toNumber(limit)
	step = l.toNumber(step)
	init = l.toNumber(init)

	start := l.newVal()
	l.emit(&Instr{Kind: InstrBinOp, BinOp: BinOpInstr{Dst: start, Op: ast.BinarySub, Left: init, Right: step}})
	ctl := Var(l.f.fresh())
	l.storeVar(ctl, start, true)

	head := l.newBlock()
	l.jump(head)
	l.startBlock(head)

	cur := l.newVal()
	l.emit(&Instr{Kind: InstrLoadVar, LoadVar: LoadVarInstr{Dst: cur, Src: ctl}})
	next := l.newVal()
	l.emit(&Instr{Kind: InstrBinOp, BinOp: BinOpInstr{Dst: next, Op: ast.BinaryAdd, Left: cur, Right: step}})
	l.storeVar(ctl, next, false)
	done := l.newVal()
	l.emit(&Instr{Kind: InstrLoopEnd, LoopEnd: LoopEndInstr{Dst: done, Index: next, Limit: limit, Step: step}})

	body := l.newBlock()
	exit := l.newBlock()
	l.branch(done, exit, body)

	l.startBlock(body)
	l.storeVar(l.declare(st.Var), next, true)
	l.loopStack = append(l.loopStack, exit)
	err = l.lowerBlock(&st.Body)
	l.loopStack = l.loopStack[:len(l.loopStack)-1]
	if err != nil {
		return err
	}
	l.jump(head)

	l.startBlock(exit)
	return nil
}

func (l *funcLowerer) toNumber(v Val) Val {
	dst := l.newVal()
	l.emit(&Instr{Kind: InstrToNumber, ToNumber: ToNumberInstr{Dst: dst, Src: v}})
	return dst
}

// lowerGenericFor lowers the iterator protocol:
//
//	f, s, ctl = explist
//	head: v1, ..., vn = f(s, ctl); if v1 == nil goto exit
//	body: ctl = v1; ...; goto head
func (l *funcLowerer) lowerGenericFor(st *ast.GenericForStmt) error {
	vals, err := l.lowerExprList(st.Exprs, 3)
	if err != nil {
		return err
	}
	iter, state := vals[0], vals[1]
	ctl := Var(l.f.fresh())
	l.storeVar(ctl, vals[2], true)

	head := l.newBlock()
	l.jump(head)
	l.startBlock(head)

	cur := l.newVal()
	l.emit(&Instr{Kind: InstrLoadVar, LoadVar: LoadVarInstr{Dst: cur, Src: ctl}})
	res := l.newMulti()
	l.emit(&Instr{Kind: InstrCall, Call: CallInstr{Dst: res, Func: iter, Args: []Val{state, cur}}})
	got := make([]Val, len(st.Vars))
	for i := range st.Vars {
		got[i] = l.project(res, i)
	}
	nilv := l.constant(NilConst())
	done := l.newVal()
	l.emit(&Instr{Kind: InstrBinOp, BinOp: BinOpInstr{Dst: done, Op: ast.BinaryEq, Left: got[0], Right: nilv}})

	body := l.newBlock()
	exit := l.newBlock()
	l.branch(done, exit, body)

	l.startBlock(body)
	l.storeVar(ctl, got[0], false)
	for i, name := range st.Vars {
		l.storeVar(l.declare(name), got[i], true)
	}
	l.loopStack = append(l.loopStack, exit)
	err = l.lowerBlock(&st.Body)
	l.loopStack = l.loopStack[:len(l.loopStack)-1]
	if err != nil {
		return err
	}
	l.jump(head)

	l.startBlock(exit)
	return nil
}

func (l *funcLowerer) lowerReturn(values []ast.Expr) error {
	if len(values) == 1 && values[0].Kind == ast.ExprCall {
		call := values[0].Call
		if call == nil {
			return fmt.Errorf("%w: line %d: call without payload", ErrMalformed, values[0].Line)
		}
		fn, args, trailing, err := l.lowerCallParts(call)
		if err != nil {
			return err
		}
		l.setTerm(&Terminator{Kind: TermTailCall, TailCall: TailCallTerm{Func: fn, Args: args, Trailing: trailing}})
		return nil
	}
	vals, trailing, err := l.lowerArgs(values)
	if err != nil {
		return err
	}
	l.setTerm(&Terminator{Kind: TermReturn, Return: ReturnTerm{Values: vals, Trailing: trailing}})
	return nil
}
