package opt

import (
	"math"
	"strconv"

	"moonc/internal/ast"
	"moonc/internal/mir"
)

// FoldConstants replaces operators over literal operands with a LoadConst of
// the result. Blocks are walked in reverse postorder, so chains such as
// 1 + 2 + 3 collapse in one pass. Anything that could raise an error at run
// time (integer division by zero, string coercion, comparing unrelated
// types) is left in place.
func FoldConstants(f *mir.Func) *mir.Func {
	consts := make(map[mir.Val]mir.Const)
	for i := range f.Blocks {
		for j := range f.Blocks[i].Instrs {
			if ins := &f.Blocks[i].Instrs[j]; ins.Kind == mir.InstrLoadConst {
				consts[ins.LoadConst.Dst] = ins.LoadConst.Const
			}
		}
	}

	var out *mir.Func
	idx := f.BlockIndex()
	for _, lbl := range mir.ReversePostorder(f) {
		bi := idx[lbl]
		for j := range f.Blocks[bi].Instrs {
			ins := &f.Blocks[bi].Instrs[j]
			c, ok := foldInstr(ins, consts)
			if !ok {
				continue
			}
			dst, _ := ins.Dst()
			consts[dst] = c
			if out == nil {
				out = mir.Clone(f)
			}
			out.Blocks[bi].Instrs[j] = mir.Instr{
				Kind:      mir.InstrLoadConst,
				LoadConst: mir.LoadConstInstr{Dst: dst, Const: c},
			}
		}
	}
	if out == nil {
		return f
	}
	return out
}

func foldInstr(ins *mir.Instr, consts map[mir.Val]mir.Const) (mir.Const, bool) {
	switch ins.Kind {
	case mir.InstrBinOp:
		a, okA := consts[ins.BinOp.Left]
		b, okB := consts[ins.BinOp.Right]
		if !okA || !okB {
			return mir.Const{}, false
		}
		return FoldBinary(ins.BinOp.Op, a, b)
	case mir.InstrUnOp:
		a, ok := consts[ins.UnOp.Operand]
		if !ok {
			return mir.Const{}, false
		}
		return FoldUnary(ins.UnOp.Op, a)
	case mir.InstrToNumber:
		a, ok := consts[ins.ToNumber.Src]
		if !ok || !isNumber(a) {
			return mir.Const{}, false
		}
		return a, true
	}
	return mir.Const{}, false
}

// FoldBinary evaluates a op b with Lua 5.3 semantics. The second result is
// false when the operation must be left to run time.
func FoldBinary(op ast.BinaryOp, a, b mir.Const) (mir.Const, bool) {
	switch {
	case op == ast.BinaryEq:
		return constEqual(a, b)
	case op == ast.BinaryNotEq:
		c, ok := constEqual(a, b)
		return mir.BoolConst(!c.Bool), ok
	case op == ast.BinaryLess:
		return constLess(a, b, false)
	case op == ast.BinaryLessEq:
		return constLess(a, b, true)
	case op == ast.BinaryGreater:
		return constLess(b, a, false)
	case op == ast.BinaryGreaterEq:
		return constLess(b, a, true)
	case op == ast.BinaryConcat:
		return concat(a, b)
	case op.IsBitwise():
		return bitwise(op, a, b)
	default:
		return arith(op, a, b)
	}
}

// FoldUnary evaluates op a; see FoldBinary.
func FoldUnary(op ast.UnaryOp, a mir.Const) (mir.Const, bool) {
	switch op {
	case ast.UnaryNot:
		return mir.BoolConst(!a.Truthy()), true
	case ast.UnaryMinus:
		switch a.Kind {
		case mir.ConstInt:
			return mir.IntConst(-a.Int), true
		case mir.ConstFloat:
			return mir.FloatConst(-a.Float), true
		}
	case ast.UnaryBitNot:
		if x, ok := toInteger(a); ok {
			return mir.IntConst(^x), true
		}
	case ast.UnaryLen:
		if a.Kind == mir.ConstString {
			return mir.IntConst(int64(len(a.String))), true
		}
	}
	return mir.Const{}, false
}

func isNumber(c mir.Const) bool {
	return c.Kind == mir.ConstInt || c.Kind == mir.ConstFloat
}

// maxExact is the largest magnitude every int64 below it converts to float64
// without rounding.
const maxExact = 1 << 53

// exactFloat converts a number without losing precision.
func exactFloat(c mir.Const) (float64, bool) {
	switch c.Kind {
	case mir.ConstFloat:
		return c.Float, true
	case mir.ConstInt:
		if c.Int >= -maxExact && c.Int <= maxExact {
			return float64(c.Int), true
		}
	}
	return 0, false
}

func toFloat(c mir.Const) float64 {
	if c.Kind == mir.ConstInt {
		return float64(c.Int)
	}
	return c.Float
}

// toInteger converts integers and floats with an exact integer value.
func toInteger(c mir.Const) (int64, bool) {
	switch c.Kind {
	case mir.ConstInt:
		return c.Int, true
	case mir.ConstFloat:
		f := c.Float
		if math.Floor(f) != f || f < math.MinInt64 || f >= -math.MinInt64 {
			return 0, false
		}
		return int64(f), true
	}
	return 0, false
}

func constEqual(a, b mir.Const) (mir.Const, bool) {
	if isNumber(a) && isNumber(b) {
		if a.Kind == mir.ConstInt && b.Kind == mir.ConstInt {
			return mir.BoolConst(a.Int == b.Int), true
		}
		x, okX := exactFloat(a)
		y, okY := exactFloat(b)
		if !okX || !okY {
			return mir.Const{}, false
		}
		return mir.BoolConst(x == y), true
	}
	if a.Kind != b.Kind {
		return mir.BoolConst(false), true
	}
	switch a.Kind {
	case mir.ConstNil:
		return mir.BoolConst(true), true
	case mir.ConstBool:
		return mir.BoolConst(a.Bool == b.Bool), true
	default:
		return mir.BoolConst(a.String == b.String), true
	}
}

func constLess(a, b mir.Const, orEqual bool) (mir.Const, bool) {
	switch {
	case a.Kind == mir.ConstString && b.Kind == mir.ConstString:
		if orEqual {
			return mir.BoolConst(a.String <= b.String), true
		}
		return mir.BoolConst(a.String < b.String), true
	case a.Kind == mir.ConstInt && b.Kind == mir.ConstInt:
		if orEqual {
			return mir.BoolConst(a.Int <= b.Int), true
		}
		return mir.BoolConst(a.Int < b.Int), true
	case isNumber(a) && isNumber(b):
		x, okX := exactFloat(a)
		y, okY := exactFloat(b)
		if !okX || !okY {
			return mir.Const{}, false
		}
		if orEqual {
			return mir.BoolConst(x <= y), true
		}
		return mir.BoolConst(x < y), true
	}
	return mir.Const{}, false
}

func concat(a, b mir.Const) (mir.Const, bool) {
	x, okX := concatString(a)
	y, okY := concatString(b)
	if !okX || !okY {
		return mir.Const{}, false
	}
	return mir.StringConst(x + y), true
}

func concatString(c mir.Const) (string, bool) {
	switch c.Kind {
	case mir.ConstString:
		return c.String, true
	case mir.ConstInt:
		return strconv.FormatInt(c.Int, 10), true
	case mir.ConstFloat:
		return mir.FormatFloat(c.Float), true
	}
	return "", false
}

func arith(op ast.BinaryOp, a, b mir.Const) (mir.Const, bool) {
	if !isNumber(a) || !isNumber(b) {
		return mir.Const{}, false
	}
	if a.Kind == mir.ConstInt && b.Kind == mir.ConstInt {
		x, y := a.Int, b.Int
		switch op {
		case ast.BinaryAdd:
			return mir.IntConst(x + y), true
		case ast.BinarySub:
			return mir.IntConst(x - y), true
		case ast.BinaryMul:
			return mir.IntConst(x * y), true
		case ast.BinaryIDiv:
			if y == 0 {
				return mir.Const{}, false
			}
			q := x / y
			if x%y != 0 && (x < 0) != (y < 0) {
				q--
			}
			return mir.IntConst(q), true
		case ast.BinaryMod:
			if y == 0 {
				return mir.Const{}, false
			}
			m := x % y
			if m != 0 && (m^y) < 0 {
				m += y
			}
			return mir.IntConst(m), true
		}
	}
	x, y := toFloat(a), toFloat(b)
	switch op {
	case ast.BinaryAdd:
		return mir.FloatConst(x + y), true
	case ast.BinarySub:
		return mir.FloatConst(x - y), true
	case ast.BinaryMul:
		return mir.FloatConst(x * y), true
	case ast.BinaryDiv:
		return mir.FloatConst(x / y), true
	case ast.BinaryPow:
		return mir.FloatConst(math.Pow(x, y)), true
	case ast.BinaryIDiv:
		return mir.FloatConst(math.Floor(x / y)), true
	case ast.BinaryMod:
		m := math.Mod(x, y)
		if m*y < 0 {
			m += y
		}
		return mir.FloatConst(m), true
	}
	return mir.Const{}, false
}

func bitwise(op ast.BinaryOp, a, b mir.Const) (mir.Const, bool) {
	x, okX := toInteger(a)
	y, okY := toInteger(b)
	if !okX || !okY {
		return mir.Const{}, false
	}
	switch op {
	case ast.BinaryBitAnd:
		return mir.IntConst(x & y), true
	case ast.BinaryBitOr:
		return mir.IntConst(x | y), true
	case ast.BinaryBitXor:
		return mir.IntConst(x ^ y), true
	case ast.BinaryShiftLeft:
		return mir.IntConst(shiftLeft(x, y)), true
	case ast.BinaryShiftRight:
		return mir.IntConst(shiftLeft(x, -y)), true
	}
	return mir.Const{}, false
}

// shiftLeft is a logical shift; negative counts shift right.
func shiftLeft(x, n int64) int64 {
	switch {
	case n <= -64 || n >= 64:
		return 0
	case n >= 0:
		return int64(uint64(x) << uint64(n))
	default:
		return int64(uint64(x) >> uint64(-n))
	}
}
