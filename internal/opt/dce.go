package opt

import (
	"moonc/internal/analysis"
	"moonc/internal/ast"
	"moonc/internal/mir"
)

// PruneDead removes instructions whose results are dead right after them and
// that have no observable effect. Calls, table accesses, upvalue writes,
// accounting and stores to captured variables always stay, as do operators
// whose operand types could raise an error or reach a metamethod.
func PruneDead(f *mir.Func, types *analysis.TypeInfo) (*mir.Func, error) {
	lv, err := analysis.ComputeLiveness(f)
	if err != nil {
		return nil, err
	}
	captured := mir.CapturedVars(f)

	dead := make(map[int][]bool)
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		for j := range bb.Instrs {
			ins := &bb.Instrs[j]
			if !removable(ins, types, captured) {
				continue
			}
			out := lv.LiveOut(bb.Label, j)
			live := false
			mir.ForEachDef(ins, func(e mir.Entity) {
				live = live || out.IsSet(int(e.ID))
			})
			if live {
				continue
			}
			if dead[i] == nil {
				dead[i] = make([]bool, len(bb.Instrs))
			}
			dead[i][j] = true
		}
	}
	if len(dead) == 0 {
		return f, nil
	}

	out := mir.Clone(f)
	for i, drop := range dead {
		bb := &out.Blocks[i]
		kept := bb.Instrs[:0]
		for j := range bb.Instrs {
			if !drop[j] {
				kept = append(kept, bb.Instrs[j])
			}
		}
		bb.Instrs = kept
	}
	return out, nil
}

func removable(ins *mir.Instr, types *analysis.TypeInfo, captured map[mir.Var]bool) bool {
	switch ins.Kind {
	case mir.InstrLoadConst, mir.InstrLoadVar, mir.InstrLoadUpVar,
		mir.InstrStorePhi, mir.InstrLoadPhi, mir.InstrNewTable,
		mir.InstrLoopEnd, mir.InstrProject, mir.InstrClosure:
		return true
	case mir.InstrStoreVar:
		return !captured[ins.StoreVar.Dst]
	case mir.InstrToNumber:
		return types.Of(ins.ToNumber.Src).Within(analysis.TypeNumber)
	case mir.InstrBinOp:
		return pureBinary(ins.BinOp.Op, types.Of(ins.BinOp.Left), types.Of(ins.BinOp.Right))
	case mir.InstrUnOp:
		return pureUnary(ins.UnOp.Op, types.Of(ins.UnOp.Operand))
	default:
		return false
	}
}

// pureBinary reports whether l op r can neither fail nor call a metamethod.
func pureBinary(op ast.BinaryOp, l, r analysis.Type) bool {
	const objects = analysis.TypeTable | analysis.TypeOther
	switch {
	case op == ast.BinaryEq || op == ast.BinaryNotEq:
		return l&objects == 0 || r&objects == 0
	case op.IsComparison():
		numbers := l.Within(analysis.TypeNumber) && r.Within(analysis.TypeNumber)
		strs := l.Within(analysis.TypeString) && r.Within(analysis.TypeString)
		return numbers || strs
	case op == ast.BinaryConcat:
		return l.Within(analysis.TypeNumber|analysis.TypeString) && r.Within(analysis.TypeNumber|analysis.TypeString)
	case op.IsBitwise():
		return l.Within(analysis.TypeInt) && r.Within(analysis.TypeInt)
	case op == ast.BinaryIDiv || op == ast.BinaryMod:
		// Integer division by zero raises an error.
		numbers := l.Within(analysis.TypeNumber) && r.Within(analysis.TypeNumber)
		return numbers && (l.Within(analysis.TypeFloat) || r.Within(analysis.TypeFloat))
	case analysis.MathRuleFor(op) != analysis.MathNone:
		return l.Within(analysis.TypeNumber) && r.Within(analysis.TypeNumber)
	}
	return false
}

func pureUnary(op ast.UnaryOp, x analysis.Type) bool {
	switch op {
	case ast.UnaryNot:
		return true
	case ast.UnaryMinus:
		return x.Within(analysis.TypeNumber)
	case ast.UnaryBitNot:
		return x.Within(analysis.TypeInt)
	case ast.UnaryLen:
		return x.Within(analysis.TypeString)
	}
	return false
}
