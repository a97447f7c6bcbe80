package mir

// ForEachUse calls fn for every Val, PhiVal and Var read by ins.
func ForEachUse(ins *Instr, fn func(Entity)) {
	val := func(v Val) { fn(ValEntity(v)) }
	switch ins.Kind {
	case InstrLoadVar:
		fn(VarEntity(ins.LoadVar.Src))
	case InstrStoreVar:
		val(ins.StoreVar.Src)
	case InstrStoreUpVar:
		val(ins.StoreUpVar.Src)
	case InstrStorePhi:
		val(ins.StorePhi.Src)
	case InstrLoadPhi:
		fn(PhiEntity(ins.LoadPhi.Src))
	case InstrGetTable:
		val(ins.GetTable.Table)
		val(ins.GetTable.Key)
	case InstrSetTable:
		val(ins.SetTable.Table)
		val(ins.SetTable.Key)
		val(ins.SetTable.Value)
	case InstrAppendMulti:
		val(ins.AppendMulti.Table)
	case InstrBinOp:
		val(ins.BinOp.Left)
		val(ins.BinOp.Right)
	case InstrUnOp:
		val(ins.UnOp.Operand)
	case InstrToNumber:
		val(ins.ToNumber.Src)
	case InstrLoopEnd:
		val(ins.LoopEnd.Index)
		val(ins.LoopEnd.Limit)
		val(ins.LoopEnd.Step)
	case InstrCall:
		val(ins.Call.Func)
		for _, a := range ins.Call.Args {
			val(a)
		}
	case InstrClosure:
		for _, c := range ins.Closure.Captures {
			if c.Kind == CaptureVar {
				fn(VarEntity(c.Var))
			}
		}
	}
}

// ForEachDef calls fn for every Val, PhiVal and Var written by ins.
func ForEachDef(ins *Instr, fn func(Entity)) {
	switch ins.Kind {
	case InstrStoreVar:
		fn(VarEntity(ins.StoreVar.Dst))
	case InstrStorePhi:
		fn(PhiEntity(ins.StorePhi.Dst))
	default:
		if v, ok := ins.Dst(); ok {
			fn(ValEntity(v))
		}
	}
}

// ForEachTermUse calls fn for every value read by t.
func ForEachTermUse(t *Terminator, fn func(Entity)) {
	switch t.Kind {
	case TermBranch:
		fn(ValEntity(t.Branch.Cond))
	case TermReturn:
		for _, v := range t.Return.Values {
			fn(ValEntity(v))
		}
	case TermTailCall:
		fn(ValEntity(t.TailCall.Func))
		for _, v := range t.TailCall.Args {
			fn(ValEntity(v))
		}
	}
}

// ForEachMultiUse calls fn for every MultiVal read by ins.
func ForEachMultiUse(ins *Instr, fn func(MultiVal)) {
	switch ins.Kind {
	case InstrAppendMulti:
		fn(ins.AppendMulti.Src)
	case InstrProject:
		fn(ins.Project.Src)
	case InstrCall:
		if ins.Call.Trailing != NoMultiVal {
			fn(ins.Call.Trailing)
		}
	}
}

// ForEachTermMultiUse calls fn for the trailing MultiVal of t, if any.
func ForEachTermMultiUse(t *Terminator, fn func(MultiVal)) {
	switch t.Kind {
	case TermReturn:
		if t.Return.Trailing != NoMultiVal {
			fn(t.Return.Trailing)
		}
	case TermTailCall:
		if t.TailCall.Trailing != NoMultiVal {
			fn(t.TailCall.Trailing)
		}
	}
}

// MultiDef returns the MultiVal defined by ins, if any.
func MultiDef(ins *Instr) (MultiVal, bool) {
	switch ins.Kind {
	case InstrCall:
		return ins.Call.Dst, true
	case InstrVarArgs:
		return ins.VarArgs.Dst, true
	default:
		return NoMultiVal, false
	}
}

// CapturedVars returns the Vars captured by closures anywhere in f.
func CapturedVars(f *Func) map[Var]bool {
	out := make(map[Var]bool)
	for i := range f.Blocks {
		for j := range f.Blocks[i].Instrs {
			ins := &f.Blocks[i].Instrs[j]
			if ins.Kind != InstrClosure {
				continue
			}
			for _, c := range ins.Closure.Captures {
				if c.Kind == CaptureVar {
					out[c.Var] = true
				}
			}
		}
	}
	return out
}
