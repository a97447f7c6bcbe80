package mir

import (
	"fmt"

	"fortio.org/safecast"

	"moonc/internal/ast"
)

// exprResult describes what an expression produced: either one value or a
// variable-arity result that still has to be projected.
type exprResult struct {
	val   Val
	multi MultiVal
}

func (r exprResult) isMulti() bool { return r.multi != NoMultiVal }

// lowerValue lowers e and truncates a multi-value result to its first value.
func (l *funcLowerer) lowerValue(e *ast.Expr) (Val, error) {
	r, err := l.lowerExpr(e)
	if err != nil {
		return 0, err
	}
	if r.isMulti() {
		return l.project(r.multi, 0), nil
	}
	return r.val, nil
}

func (l *funcLowerer) project(m MultiVal, i int) Val {
	idx, err := safecast.Conv[int32](i)
	if err != nil {
		panic(fmt.Errorf("mir: projection index overflow: %w", err))
	}
	dst := l.newVal()
	l.emit(&Instr{Kind: InstrProject, Project: ProjectInstr{Dst: dst, Src: m, Index: idx}})
	return dst
}

// lowerExprList evaluates exprs left to right and adjusts the results to
// exactly want values: a trailing multi-value expression fills the missing
// positions, any still missing become nil, and extra values are evaluated for
// their effects and dropped.
func (l *funcLowerer) lowerExprList(exprs []ast.Expr, want int) ([]Val, error) {
	out := make([]Val, 0, want)
	for i := range exprs {
		e := &exprs[i]
		last := i == len(exprs)-1
		if last && e.IsMulti() && len(out) < want {
			r, err := l.lowerExpr(e)
			if err != nil {
				return nil, err
			}
			if !r.isMulti() {
				out = append(out, r.val)
				continue
			}
			for k := 0; len(out) < want; k++ {
				out = append(out, l.project(r.multi, k))
			}
			continue
		}
		v, err := l.lowerValue(e)
		if err != nil {
			return nil, err
		}
		if len(out) < want {
			out = append(out, v)
		}
	}
	for len(out) < want {
		out = append(out, l.constant(NilConst()))
	}
	return out, nil
}

// lowerArgs evaluates an argument or return list. A trailing call or vararg
// expression stays unexpanded and is returned as the trailing MultiVal.
func (l *funcLowerer) lowerArgs(exprs []ast.Expr) ([]Val, MultiVal, error) {
	vals := make([]Val, 0, len(exprs))
	for i := range exprs {
		e := &exprs[i]
		if i == len(exprs)-1 && e.IsMulti() {
			r, err := l.lowerExpr(e)
			if err != nil {
				return nil, NoMultiVal, err
			}
			if r.isMulti() {
				return vals, r.multi, nil
			}
			return append(vals, r.val), NoMultiVal, nil
		}
		v, err := l.lowerValue(e)
		if err != nil {
			return nil, NoMultiVal, err
		}
		vals = append(vals, v)
	}
	return vals, NoMultiVal, nil
}

func (l *funcLowerer) lowerExpr(e *ast.Expr) (exprResult, error) {
	single := func(v Val) (exprResult, error) { return exprResult{val: v}, nil }
	switch e.Kind {
	case ast.ExprNil:
		return single(l.constant(NilConst()))
	case ast.ExprTrue:
		return single(l.constant(BoolConst(true)))
	case ast.ExprFalse:
		return single(l.constant(BoolConst(false)))
	case ast.ExprInt:
		return single(l.constant(IntConst(e.Int)))
	case ast.ExprFloat:
		return single(l.constant(FloatConst(e.Float)))
	case ast.ExprString:
		return single(l.constant(StringConst(e.Str)))

	case ast.ExprVarArgs:
		if !l.body.VarArgs {
			return exprResult{}, fmt.Errorf("%w: line %d: '...' outside a vararg function", ErrMalformed, e.Line)
		}
		dst := l.newMulti()
		l.emit(&Instr{Kind: InstrVarArgs, VarArgs: VarArgsInstr{Dst: dst}})
		return exprResult{multi: dst}, nil

	case ast.ExprLocal:
		x, err := l.local(e.Local)
		if err != nil {
			return exprResult{}, err
		}
		dst := l.newVal()
		l.emit(&Instr{Kind: InstrLoadVar, LoadVar: LoadVarInstr{Dst: dst, Src: x}})
		return single(dst)

	case ast.ExprUpval:
		up, err := l.upval(e.Upval)
		if err != nil {
			return exprResult{}, err
		}
		dst := l.newVal()
		l.emit(&Instr{Kind: InstrLoadUpVar, LoadUpVar: LoadUpVarInstr{Dst: dst, Src: up}})
		return single(dst)

	case ast.ExprIndex:
		if e.Index == nil {
			return exprResult{}, fmt.Errorf("%w: line %d: index without payload", ErrMalformed, e.Line)
		}
		tbl, err := l.lowerValue(&e.Index.Object)
		if err != nil {
			return exprResult{}, err
		}
		key, err := l.lowerValue(&e.Index.Key)
		if err != nil {
			return exprResult{}, err
		}
		dst := l.newVal()
		l.emit(&Instr{Kind: InstrGetTable, GetTable: GetTableInstr{Dst: dst, Table: tbl, Key: key}})
		return single(dst)

	case ast.ExprCall:
		if e.Call == nil {
			return exprResult{}, fmt.Errorf("%w: line %d: call without payload", ErrMalformed, e.Line)
		}
		m, err := l.lowerCall(e.Call)
		if err != nil {
			return exprResult{}, err
		}
		return exprResult{multi: m}, nil

	case ast.ExprFunc:
		v, err := l.lowerClosure(e.Func)
		if err != nil {
			return exprResult{}, err
		}
		return single(v)

	case ast.ExprBinary:
		if e.Binary == nil {
			return exprResult{}, fmt.Errorf("%w: line %d: binary expression without payload", ErrMalformed, e.Line)
		}
		v, err := l.lowerBinary(e.Binary)
		if err != nil {
			return exprResult{}, err
		}
		return single(v)

	case ast.ExprUnary:
		if e.Unary == nil {
			return exprResult{}, fmt.Errorf("%w: line %d: unary expression without payload", ErrMalformed, e.Line)
		}
		x, err := l.lowerValue(&e.Unary.Operand)
		if err != nil {
			return exprResult{}, err
		}
		dst := l.newVal()
		l.emit(&Instr{Kind: InstrUnOp, UnOp: UnOpInstr{Dst: dst, Op: e.Unary.Op, Operand: x}})
		return single(dst)

	case ast.ExprTable:
		if e.Table == nil {
			return exprResult{}, fmt.Errorf("%w: line %d: table constructor without payload", ErrMalformed, e.Line)
		}
		v, err := l.lowerTable(e.Table)
		if err != nil {
			return exprResult{}, err
		}
		return single(v)

	case ast.ExprParen:
		if e.Paren == nil {
			return exprResult{}, fmt.Errorf("%w: line %d: empty parentheses", ErrMalformed, e.Line)
		}
		v, err := l.lowerValue(e.Paren)
		if err != nil {
			return exprResult{}, err
		}
		return single(v)

	default:
		return exprResult{}, fmt.Errorf("%w: line %d: unknown expression kind %d", ErrMalformed, e.Line, e.Kind)
	}
}

// lowerBinary lowers a binary operator. and/or become a join value stored on
// both paths and loaded at the join block.
func (l *funcLowerer) lowerBinary(b *ast.BinaryExpr) (Val, error) {
	left, err := l.lowerValue(&b.Left)
	if err != nil {
		return 0, err
	}
	if b.Op != ast.BinaryAnd && b.Op != ast.BinaryOr {
		right, err := l.lowerValue(&b.Right)
		if err != nil {
			return 0, err
		}
		dst := l.newVal()
		l.emit(&Instr{Kind: InstrBinOp, BinOp: BinOpInstr{Dst: dst, Op: b.Op, Left: left, Right: right}})
		return dst, nil
	}

	phi := l.newPhi()
	l.emit(&Instr{Kind: InstrStorePhi, StorePhi: StorePhiInstr{Dst: phi, Src: left}})
	rhs := l.newBlock()
	join := l.newBlock()
	if b.Op == ast.BinaryAnd {
		l.branch(left, rhs, join)
	} else {
		l.branch(left, join, rhs)
	}

	l.startBlock(rhs)
	right, err := l.lowerValue(&b.Right)
	if err != nil {
		return 0, err
	}
	l.emit(&Instr{Kind: InstrStorePhi, StorePhi: StorePhiInstr{Dst: phi, Src: right}})
	l.jump(join)

	l.startBlock(join)
	dst := l.newVal()
	l.emit(&Instr{Kind: InstrLoadPhi, LoadPhi: LoadPhiInstr{Dst: dst, Src: phi}})
	return dst, nil
}

// lowerCallParts evaluates the callee and arguments of a call. A method call
// evaluates its receiver once and passes it as the first argument.
func (l *funcLowerer) lowerCallParts(c *ast.CallExpr) (fn Val, args []Val, trailing MultiVal, err error) {
	if c.Func.Kind == ast.ExprNil && c.Method == "" {
		return 0, nil, NoMultiVal, fmt.Errorf("%w: line %d: call of a nil literal", ErrMalformed, c.Func.Line)
	}
	var self Val
	if c.Method != "" {
		self, err = l.lowerValue(&c.Func)
		if err != nil {
			return 0, nil, NoMultiVal, err
		}
		key := l.constant(StringConst(c.Method))
		fn = l.newVal()
		l.emit(&Instr{Kind: InstrGetTable, GetTable: GetTableInstr{Dst: fn, Table: self, Key: key}})
	} else {
		fn, err = l.lowerValue(&c.Func)
		if err != nil {
			return 0, nil, NoMultiVal, err
		}
	}
	rest, trailing, err := l.lowerArgs(c.Args)
	if err != nil {
		return 0, nil, NoMultiVal, err
	}
	if c.Method != "" {
		args = make([]Val, 0, len(rest)+1)
		args = append(args, self)
		args = append(args, rest...)
	} else {
		args = rest
	}
	return fn, args, trailing, nil
}

func (l *funcLowerer) lowerCall(c *ast.CallExpr) (MultiVal, error) {
	if c == nil {
		return NoMultiVal, fmt.Errorf("%w: call without payload", ErrMalformed)
	}
	fn, args, trailing, err := l.lowerCallParts(c)
	if err != nil {
		return NoMultiVal, err
	}
	dst := l.newMulti()
	l.emit(&Instr{Kind: InstrCall, Call: CallInstr{Dst: dst, Func: fn, Args: args, Trailing: trailing}})
	return dst, nil
}

// lowerTable fills keyed entries first, then positional ones. A trailing
// multi-value positional entry is appended whole.
func (l *funcLowerer) lowerTable(t *ast.TableExpr) (Val, error) {
	var nArray, nHash int
	for i := range t.Fields {
		if t.Fields[i].Kind == ast.FieldKeyed {
			nHash++
		} else {
			nArray++
		}
	}
	arrayHint, err := safecast.Conv[int32](nArray)
	if err != nil {
		return 0, fmt.Errorf("mir: table constructor too large: %w", err)
	}
	hashHint, err := safecast.Conv[int32](nHash)
	if err != nil {
		return 0, fmt.Errorf("mir: table constructor too large: %w", err)
	}
	tbl := l.newVal()
	l.emit(&Instr{Kind: InstrNewTable, NewTable: NewTableInstr{Dst: tbl, ArrayHint: arrayHint, HashHint: hashHint}})

	for i := range t.Fields {
		f := &t.Fields[i]
		if f.Kind != ast.FieldKeyed {
			continue
		}
		key, err := l.lowerValue(&f.Key)
		if err != nil {
			return 0, err
		}
		val, err := l.lowerValue(&f.Value)
		if err != nil {
			return 0, err
		}
		l.emit(&Instr{Kind: InstrSetTable, SetTable: SetTableInstr{Table: tbl, Key: key, Value: val}})
	}

	var pos int64
	lastPos := -1
	for i := range t.Fields {
		if t.Fields[i].Kind == ast.FieldPositional {
			lastPos = i
		}
	}
	for i := range t.Fields {
		f := &t.Fields[i]
		if f.Kind != ast.FieldPositional {
			continue
		}
		pos++
		if i == lastPos && f.Value.IsMulti() {
			r, err := l.lowerExpr(&f.Value)
			if err != nil {
				return 0, err
			}
			if r.isMulti() {
				l.emit(&Instr{Kind: InstrAppendMulti, AppendMulti: AppendMultiInstr{Table: tbl, Start: pos, Src: r.multi}})
				continue
			}
			key := l.constant(IntConst(pos))
			l.emit(&Instr{Kind: InstrSetTable, SetTable: SetTableInstr{Table: tbl, Key: key, Value: r.val}})
			continue
		}
		val, err := l.lowerValue(&f.Value)
		if err != nil {
			return 0, err
		}
		key := l.constant(IntConst(pos))
		l.emit(&Instr{Kind: InstrSetTable, SetTable: SetTableInstr{Table: tbl, Key: key, Value: val}})
	}
	return tbl, nil
}
