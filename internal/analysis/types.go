// Package analysis holds the data-flow analyses run over MIR functions:
// type inference, liveness and nested-function dependencies.
package analysis

import (
	"errors"
	"fmt"
	"strings"

	"moonc/internal/ast"
	"moonc/internal/mir"
)

// ErrInternal marks a broken analysis invariant. It signals a compiler defect,
// never a problem with user input.
var ErrInternal = errors.New("analysis: internal error")

// Type is a set of runtime types. Union is bitwise or; the empty set means
// "not yet known".
type Type uint16

const (
	TypeNil Type = 1 << iota
	TypeBool
	TypeInt
	TypeFloat
	TypeString
	TypeTable
	TypeFunc
	// TypeOther covers userdata, threads and anything else.
	TypeOther

	TypeNone   Type = 0
	TypeNumber      = TypeInt | TypeFloat
	TypeAny         = TypeNil | TypeBool | TypeNumber | TypeString | TypeTable | TypeFunc | TypeOther
)

var typeNames = []struct {
	t    Type
	name string
}{
	{TypeNil, "nil"},
	{TypeBool, "boolean"},
	{TypeInt, "integer"},
	{TypeFloat, "float"},
	{TypeString, "string"},
	{TypeTable, "table"},
	{TypeFunc, "function"},
	{TypeOther, "other"},
}

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeAny:
		return "any"
	case TypeNumber:
		return "number"
	}
	var parts []string
	for _, n := range typeNames {
		if t&n.t != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Within reports whether every type in t is also in u.
func (t Type) Within(u Type) bool { return t&^u == 0 }

// AlwaysFalsy reports whether a value of type t is certainly nil.
func (t Type) AlwaysFalsy() bool { return t != TypeNone && t.Within(TypeNil) }

// AlwaysTruthy reports whether a value of type t is certainly neither nil nor a boolean.
func (t Type) AlwaysTruthy() bool { return t != TypeNone && t&(TypeNil|TypeBool) == 0 }

// ConstType returns the type of a literal.
func ConstType(c mir.Const) Type {
	switch c.Kind {
	case mir.ConstNil:
		return TypeNil
	case mir.ConstBool:
		return TypeBool
	case mir.ConstInt:
		return TypeInt
	case mir.ConstFloat:
		return TypeFloat
	default:
		return TypeString
	}
}

// MathRule says how an arithmetic operator treats integer operands.
type MathRule uint8

const (
	// MathNone marks operators that are not arithmetic.
	MathNone MathRule = iota
	// MathMayStayInt operators give an integer for integer operands and a float otherwise.
	MathMayStayInt
	// MathAlwaysFloat operators convert to float first.
	MathAlwaysFloat
	// MathAlwaysInt operators convert to integer first.
	MathAlwaysInt
)

// MathRuleFor returns the static math rule of a binary operator.
func MathRuleFor(op ast.BinaryOp) MathRule {
	switch op {
	case ast.BinaryAdd, ast.BinarySub, ast.BinaryMul, ast.BinaryMod, ast.BinaryIDiv:
		return MathMayStayInt
	case ast.BinaryDiv, ast.BinaryPow:
		return MathAlwaysFloat
	case ast.BinaryBitAnd, ast.BinaryBitOr, ast.BinaryBitXor, ast.BinaryShiftLeft, ast.BinaryShiftRight:
		return MathAlwaysInt
	default:
		return MathNone
	}
}

// coercible are the operand types arithmetic accepts without metamethods.
const coercible = TypeNumber | TypeString

func numericResult(rule MathRule, l, r Type) Type {
	if !l.Within(coercible) || !r.Within(coercible) {
		return TypeAny
	}
	switch rule {
	case MathAlwaysFloat:
		return TypeFloat
	case MathAlwaysInt:
		return TypeInt
	}
	if l.Within(TypeInt) && r.Within(TypeInt) {
		return TypeInt
	}
	if l.Within(TypeNumber) && r.Within(TypeNumber) && (l.Within(TypeFloat) || r.Within(TypeFloat)) {
		return TypeFloat
	}
	return TypeNumber
}

// BinaryResult returns the result type of l op r.
func BinaryResult(op ast.BinaryOp, l, r Type) Type {
	if op.IsComparison() {
		return TypeBool
	}
	if op == ast.BinaryConcat {
		if l.Within(coercible) && r.Within(coercible) {
			return TypeString
		}
		return TypeAny
	}
	if rule := MathRuleFor(op); rule != MathNone {
		return numericResult(rule, l, r)
	}
	return TypeAny
}

// UnaryResult returns the result type of op x.
func UnaryResult(op ast.UnaryOp, x Type) Type {
	switch op {
	case ast.UnaryNot:
		return TypeBool
	case ast.UnaryMinus:
		return numericResult(MathMayStayInt, x, TypeInt)
	case ast.UnaryBitNot:
		return numericResult(MathAlwaysInt, x, TypeInt)
	case ast.UnaryLen:
		if x.Within(TypeString) {
			return TypeInt
		}
		return TypeAny
	default:
		return TypeAny
	}
}

// TypeInfo maps every value of a function to its inferred type.
type TypeInfo struct {
	Values map[mir.Entity]Type
	Vars   map[mir.Var]Type
}

// Of returns the type of v, or TypeAny when v was never seen.
func (ti *TypeInfo) Of(v mir.Val) Type {
	return ti.entity(mir.ValEntity(v))
}

// OfPhi returns the type of p, or TypeAny when p was never seen.
func (ti *TypeInfo) OfPhi(p mir.PhiVal) Type {
	return ti.entity(mir.PhiEntity(p))
}

// OfVar returns the union of everything stored into x.
func (ti *TypeInfo) OfVar(x mir.Var) Type {
	if t, ok := ti.Vars[x]; ok && t != TypeNone {
		return t
	}
	return TypeAny
}

// OfEntity returns the type of any entity.
func (ti *TypeInfo) OfEntity(e mir.Entity) Type {
	if e.Kind == mir.EntityVar {
		return ti.OfVar(mir.Var(e.ID))
	}
	return ti.entity(e)
}

func (ti *TypeInfo) entity(e mir.Entity) Type {
	if ti == nil {
		return TypeAny
	}
	if t, ok := ti.Values[e]; ok && t != TypeNone {
		return t
	}
	return TypeAny
}

// InferTypes computes types for every value in f. Blocks are visited in
// reverse postorder so values are seen at their definition before any use.
// Variables and join values take the union of every store, which is
// flow-insensitive, so the walk repeats until those unions are stable.
func InferTypes(f *mir.Func) (*TypeInfo, error) {
	ti := &TypeInfo{
		Values: make(map[mir.Entity]Type),
		Vars:   make(map[mir.Var]Type),
	}
	for _, x := range f.Params {
		ti.Vars[x] = TypeAny
	}
	for x := range mir.CapturedVars(f) {
		ti.Vars[x] = TypeAny
	}

	order := mir.ReversePostorder(f)
	idx := f.BlockIndex()
	for {
		changed := false
		for _, lbl := range order {
			bb := &f.Blocks[idx[lbl]]
			for i := range bb.Instrs {
				c, err := ti.step(&bb.Instrs[i])
				if err != nil {
					return nil, fmt.Errorf("%s: %s: %w", f.ID, bb.Label, err)
				}
				changed = changed || c
			}
			if err := ti.checkTerm(&bb.Term); err != nil {
				return nil, fmt.Errorf("%s: %s: %w", f.ID, bb.Label, err)
			}
		}
		if !changed {
			return ti, nil
		}
	}
}

func (ti *TypeInfo) val(v mir.Val) (Type, error) {
	t, ok := ti.Values[mir.ValEntity(v)]
	if !ok {
		return TypeNone, fmt.Errorf("%w: %s used before definition", ErrInternal, v)
	}
	return t, nil
}

// set records t for e and reports whether the recorded type grew.
func (ti *TypeInfo) set(e mir.Entity, t Type) bool {
	old, ok := ti.Values[e]
	ti.Values[e] = old | t
	return !ok || old|t != old
}

func (ti *TypeInfo) step(ins *mir.Instr) (bool, error) {
	var err error
	mir.ForEachUse(ins, func(e mir.Entity) {
		if err == nil && e.Kind == mir.EntityVal {
			_, err = ti.val(mir.Val(e.ID))
		}
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", mir.FormatInstr(ins), err)
	}

	switch ins.Kind {
	case mir.InstrStoreVar:
		t := ti.Values[mir.ValEntity(ins.StoreVar.Src)]
		old := ti.Vars[ins.StoreVar.Dst]
		ti.Vars[ins.StoreVar.Dst] = old | t
		return old|t != old, nil
	case mir.InstrStorePhi:
		return ti.set(mir.PhiEntity(ins.StorePhi.Dst), ti.Values[mir.ValEntity(ins.StorePhi.Src)]), nil
	}

	dst, ok := ins.Dst()
	if !ok {
		return false, nil
	}
	var t Type
	switch ins.Kind {
	case mir.InstrLoadConst:
		t = ConstType(ins.LoadConst.Const)
	case mir.InstrLoadVar:
		t = ti.Vars[ins.LoadVar.Src]
	case mir.InstrLoadPhi:
		t = ti.Values[mir.PhiEntity(ins.LoadPhi.Src)]
	case mir.InstrNewTable:
		t = TypeTable
	case mir.InstrBinOp:
		t = BinaryResult(ins.BinOp.Op, ti.Values[mir.ValEntity(ins.BinOp.Left)], ti.Values[mir.ValEntity(ins.BinOp.Right)])
	case mir.InstrUnOp:
		t = UnaryResult(ins.UnOp.Op, ti.Values[mir.ValEntity(ins.UnOp.Operand)])
	case mir.InstrToNumber:
		t = ti.Values[mir.ValEntity(ins.ToNumber.Src)] & TypeNumber
		if t == TypeNone {
			t = TypeNumber
		}
	case mir.InstrLoopEnd:
		t = TypeBool
	case mir.InstrClosure:
		t = TypeFunc
	default:
		// Upvalue loads, table reads and projections can be anything.
		t = TypeAny
	}
	return ti.set(mir.ValEntity(dst), t), nil
}

func (ti *TypeInfo) checkTerm(t *mir.Terminator) error {
	var err error
	mir.ForEachTermUse(t, func(e mir.Entity) {
		if err == nil {
			_, err = ti.val(mir.Val(e.ID))
		}
	})
	return err
}
