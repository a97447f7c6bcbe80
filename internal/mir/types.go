package mir

import (
	"strconv"
	"strings"
)

// FunctionID is the path of child indices from the module root, joined by dots.
// The root function has the empty path.
type FunctionID string

// RootID identifies the chunk's root function.
const RootID FunctionID = ""

// IsRoot reports whether id names the root function.
func (id FunctionID) IsRoot() bool { return id == RootID }

// Child returns the id of the i-th nested function literal of id.
func (id FunctionID) Child(i int) FunctionID {
	if id.IsRoot() {
		return FunctionID(strconv.Itoa(i))
	}
	return id + "." + FunctionID(strconv.Itoa(i))
}

// Parent returns the enclosing function id. The root has no parent.
func (id FunctionID) Parent() (FunctionID, bool) {
	if id.IsRoot() {
		return RootID, false
	}
	if i := strings.LastIndexByte(string(id), '.'); i >= 0 {
		return id[:i], true
	}
	return RootID, true
}

// Path returns the child indices from the root.
func (id FunctionID) Path() []int {
	if id.IsRoot() {
		return nil
	}
	parts := strings.Split(string(id), ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil
		}
		out[i] = n
	}
	return out
}

func (id FunctionID) String() string {
	if id.IsRoot() {
		return "root"
	}
	return "root." + string(id)
}

// CompareFunctionID orders ids by path, parents before children.
func CompareFunctionID(a, b FunctionID) int {
	pa, pb := a.Path(), b.Path()
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] != pb[i] {
			if pa[i] < pb[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(pa) < len(pb):
		return -1
	case len(pa) > len(pb):
		return 1
	default:
		return 0
	}
}

// Label names a basic block; it is the only valid jump target.
type Label int32

// NoLabel marks a missing block reference.
const NoLabel Label = -1

func (l Label) String() string { return "bb" + strconv.Itoa(int(l)) }

// Entity identifiers share one per-function counter starting at 1, so ids of
// different kinds never collide. Zero means "none".
type (
	// Val is a single-assignment value.
	Val int32
	// PhiVal is a join value stored on every incoming path and read with LoadPhi.
	PhiVal int32
	// MultiVal is a variable-arity result; it is consumed by projection or as a trailing operand.
	MultiVal int32
	// Var is a mutable local variable.
	Var int32
	// UpVar is a variable captured from an enclosing function.
	UpVar int32
)

// NoMultiVal marks an absent trailing multi-value operand.
const NoMultiVal MultiVal = 0

func (v Val) String() string { return "v" + strconv.Itoa(int(v)) }
func (p PhiVal) String() string { return "p" + strconv.Itoa(int(p)) }
func (m MultiVal) String() string { return "m" + strconv.Itoa(int(m)) }
func (x Var) String() string { return "x" + strconv.Itoa(int(x)) }
func (u UpVar) String() string { return "u" + strconv.Itoa(int(u)) }

// EntityKind distinguishes the slot-carrying entities.
type EntityKind uint8

const (
	// EntityVal is a Val.
	EntityVal EntityKind = iota
	// EntityPhi is a PhiVal.
	EntityPhi
	// EntityVar is a Var.
	EntityVar
)

// Entity is a Val, PhiVal or Var: everything that is tracked by liveness and gets a slot.
// Val and PhiVal together are the abstract values; see IsValue.
type Entity struct {
	Kind EntityKind
	ID   int32
}

// ValEntity wraps a Val.
func ValEntity(v Val) Entity { return Entity{Kind: EntityVal, ID: int32(v)} }

// PhiEntity wraps a PhiVal.
func PhiEntity(p PhiVal) Entity { return Entity{Kind: EntityPhi, ID: int32(p)} }

// VarEntity wraps a Var.
func VarEntity(x Var) Entity { return Entity{Kind: EntityVar, ID: int32(x)} }

// IsValue reports whether e is an abstract value (Val or PhiVal).
func (e Entity) IsValue() bool { return e.Kind != EntityVar }

func (e Entity) String() string {
	switch e.Kind {
	case EntityVal:
		return Val(e.ID).String()
	case EntityPhi:
		return PhiVal(e.ID).String()
	default:
		return Var(e.ID).String()
	}
}

// CompareEntity orders entities by id.
func CompareEntity(a, b Entity) int {
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	default:
		return int(a.Kind) - int(b.Kind)
	}
}
