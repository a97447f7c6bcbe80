package mir

import (
	"math"
	"strconv"
)

// ConstKind enumerates literal constant kinds.
type ConstKind uint8

const (
	ConstNil ConstKind = iota
	ConstBool
	ConstInt
	ConstFloat
	ConstString
)

// Const is a literal value.
type Const struct {
	Kind   ConstKind
	Bool   bool
	Int    int64
	Float  float64
	String string
}

func NilConst() Const { return Const{Kind: ConstNil} }
func BoolConst(b bool) Const { return Const{Kind: ConstBool, Bool: b} }
func IntConst(v int64) Const { return Const{Kind: ConstInt, Int: v} }
func FloatConst(v float64) Const { return Const{Kind: ConstFloat, Float: v} }
func StringConst(s string) Const { return Const{Kind: ConstString, String: s} }

// Truthy reports Lua truthiness: everything except nil and false.
func (c Const) Truthy() bool {
	switch c.Kind {
	case ConstNil:
		return false
	case ConstBool:
		return c.Bool
	default:
		return true
	}
}

// Same reports identity of constants. Floats compare bit for bit so that NaN
// constants are stable under comparison.
func (c Const) Same(o Const) bool {
	if c.Kind != o.Kind {
		return false
	}
	switch c.Kind {
	case ConstNil:
		return true
	case ConstBool:
		return c.Bool == o.Bool
	case ConstInt:
		return c.Int == o.Int
	case ConstFloat:
		return math.Float64bits(c.Float) == math.Float64bits(o.Float)
	default:
		return c.String == o.String
	}
}

func (c Const) Format() string {
	switch c.Kind {
	case ConstNil:
		return "nil"
	case ConstBool:
		return strconv.FormatBool(c.Bool)
	case ConstInt:
		return strconv.FormatInt(c.Int, 10)
	case ConstFloat:
		return FormatFloat(c.Float)
	default:
		return strconv.Quote(c.String)
	}
}

// FormatFloat renders a float the way tostring does: %.14g, with ".0" added to
// integral values.
func FormatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsNaN(v):
		return "nan"
	}
	s := strconv.FormatFloat(v, 'g', 14, 64)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', 'e', 'n', 'i':
			return s
		}
	}
	return s + ".0"
}
