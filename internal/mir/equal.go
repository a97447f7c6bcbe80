package mir

import "slices"

// Equal reports whether a and b are structurally identical: same signature,
// entry, and the same blocks in the same order with identical instructions.
// Id counters are not compared.
func Equal(a, b *Func) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.ID != b.ID || a.Name != b.Name || a.VarArgs != b.VarArgs || a.Entry != b.Entry {
		return false
	}
	if !slices.Equal(a.Params, b.Params) || !slices.Equal(a.UpVars, b.UpVars) {
		return false
	}
	if len(a.Blocks) != len(b.Blocks) {
		return false
	}
	for i := range a.Blocks {
		if !blockEqual(&a.Blocks[i], &b.Blocks[i]) {
			return false
		}
	}
	return true
}

func blockEqual(a, b *Block) bool {
	if a.Label != b.Label || len(a.Instrs) != len(b.Instrs) {
		return false
	}
	for i := range a.Instrs {
		if !InstrEqual(&a.Instrs[i], &b.Instrs[i]) {
			return false
		}
	}
	return TermEqual(&a.Term, &b.Term)
}

// InstrEqual compares the kind and the payload that kind uses.
func InstrEqual(a, b *Instr) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case InstrLoadConst:
		return a.LoadConst.Dst == b.LoadConst.Dst && a.LoadConst.Const.Same(b.LoadConst.Const)
	case InstrLoadVar:
		return a.LoadVar == b.LoadVar
	case InstrStoreVar:
		return a.StoreVar == b.StoreVar
	case InstrLoadUpVar:
		return a.LoadUpVar == b.LoadUpVar
	case InstrStoreUpVar:
		return a.StoreUpVar == b.StoreUpVar
	case InstrStorePhi:
		return a.StorePhi == b.StorePhi
	case InstrLoadPhi:
		return a.LoadPhi == b.LoadPhi
	case InstrNewTable:
		return a.NewTable == b.NewTable
	case InstrGetTable:
		return a.GetTable == b.GetTable
	case InstrSetTable:
		return a.SetTable == b.SetTable
	case InstrAppendMulti:
		return a.AppendMulti == b.AppendMulti
	case InstrBinOp:
		return a.BinOp == b.BinOp
	case InstrUnOp:
		return a.UnOp == b.UnOp
	case InstrToNumber:
		return a.ToNumber == b.ToNumber
	case InstrLoopEnd:
		return a.LoopEnd == b.LoopEnd
	case InstrCall:
		x, y := &a.Call, &b.Call
		return x.Dst == y.Dst && x.Func == y.Func && x.Trailing == y.Trailing && slices.Equal(x.Args, y.Args)
	case InstrVarArgs:
		return a.VarArgs == b.VarArgs
	case InstrProject:
		return a.Project == b.Project
	case InstrClosure:
		x, y := &a.Closure, &b.Closure
		return x.Dst == y.Dst && x.Func == y.Func && slices.Equal(x.Captures, y.Captures)
	case InstrCPUAccount:
		return a.CPUAccount == b.CPUAccount
	default:
		return false
	}
}

// TermEqual compares the kind and the payload that kind uses.
func TermEqual(a, b *Terminator) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case TermNone:
		return true
	case TermJump:
		return a.Jump == b.Jump
	case TermBranch:
		return a.Branch == b.Branch
	case TermReturn:
		return a.Return.Trailing == b.Return.Trailing && slices.Equal(a.Return.Values, b.Return.Values)
	case TermTailCall:
		x, y := &a.TailCall, &b.TailCall
		return x.Func == y.Func && x.Trailing == y.Trailing && slices.Equal(x.Args, y.Args)
	default:
		return false
	}
}
