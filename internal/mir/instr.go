package mir

import "moonc/internal/ast"

// InstrKind enumerates instruction kinds in MIR.
type InstrKind uint8

const (
	// InstrLoadConst loads a literal constant.
	InstrLoadConst InstrKind = iota
	// InstrLoadVar reads a local variable.
	InstrLoadVar
	// InstrStoreVar writes a local variable.
	InstrStoreVar
	// InstrLoadUpVar reads a captured variable.
	InstrLoadUpVar
	// InstrStoreUpVar writes a captured variable.
	InstrStoreUpVar
	// InstrStorePhi stores one incoming value of a join value.
	InstrStorePhi
	// InstrLoadPhi reads a join value after all incoming stores.
	InstrLoadPhi
	// InstrNewTable creates an empty table.
	InstrNewTable
	// InstrGetTable reads table[key].
	InstrGetTable
	// InstrSetTable writes table[key] = value.
	InstrSetTable
	// InstrAppendMulti stores every value of a multi-value at consecutive integer keys.
	InstrAppendMulti
	// InstrBinOp applies a binary operator.
	InstrBinOp
	// InstrUnOp applies a unary operator.
	InstrUnOp
	// InstrToNumber converts a numeric for control value to a number or fails.
	InstrToNumber
	// InstrLoopEnd tests whether a numeric for loop is finished, honoring the step sign.
	InstrLoopEnd
	// InstrCall calls a function and captures all results.
	InstrCall
	// InstrVarArgs captures the function's extra arguments.
	InstrVarArgs
	// InstrProject extracts one position of a multi-value, nil when missing.
	InstrProject
	// InstrClosure creates a closure over a nested function.
	InstrClosure
	// InstrCPUAccount charges work to the scheduler's budget.
	InstrCPUAccount
)

// Instr represents a MIR instruction.
type Instr struct {
	Kind InstrKind

	LoadConst   LoadConstInstr
	LoadVar     LoadVarInstr
	StoreVar    StoreVarInstr
	LoadUpVar   LoadUpVarInstr
	StoreUpVar  StoreUpVarInstr
	StorePhi    StorePhiInstr
	LoadPhi     LoadPhiInstr
	NewTable    NewTableInstr
	GetTable    GetTableInstr
	SetTable    SetTableInstr
	AppendMulti AppendMultiInstr
	BinOp       BinOpInstr
	UnOp        UnOpInstr
	ToNumber    ToNumberInstr
	LoopEnd     LoopEndInstr
	Call        CallInstr
	VarArgs     VarArgsInstr
	Project     ProjectInstr
	Closure     ClosureInstr
	CPUAccount  CPUAccountInstr
}

// LoadConstInstr loads Const into Dst.
type LoadConstInstr struct {
	Dst   Val
	Const Const
}

// LoadVarInstr reads Src into Dst.
type LoadVarInstr struct {
	Dst Val
	Src Var
}

// StoreVarInstr writes Src into Dst. Fresh marks the declaration of a local,
// so each loop iteration gets a new variable when it is captured.
type StoreVarInstr struct {
	Dst   Var
	Src   Val
	Fresh bool
}

// LoadUpVarInstr reads upvalue Src into Dst.
type LoadUpVarInstr struct {
	Dst Val
	Src UpVar
}

// StoreUpVarInstr writes Src into upvalue Dst.
type StoreUpVarInstr struct {
	Dst UpVar
	Src Val
}

// StorePhiInstr stores Src into the join value Dst.
type StorePhiInstr struct {
	Dst PhiVal
	Src Val
}

// LoadPhiInstr reads the join value Src into Dst.
type LoadPhiInstr struct {
	Dst Val
	Src PhiVal
}

// NewTableInstr creates a table with size hints for the array and hash parts.
type NewTableInstr struct {
	Dst       Val
	ArrayHint int32
	HashHint  int32
}

// GetTableInstr reads Table[Key].
type GetTableInstr struct {
	Dst   Val
	Table Val
	Key   Val
}

// SetTableInstr writes Table[Key] = Value.
type SetTableInstr struct {
	Table Val
	Key   Val
	Value Val
}

// AppendMultiInstr stores Src[i] at Table[Start+i] for every value of Src.
type AppendMultiInstr struct {
	Table Val
	Start int64
	Src   MultiVal
}

// BinOpInstr computes Left Op Right. Op is never and/or.
type BinOpInstr struct {
	Dst   Val
	Op    ast.BinaryOp
	Left  Val
	Right Val
}

// UnOpInstr computes Op Operand.
type UnOpInstr struct {
	Dst     Val
	Op      ast.UnaryOp
	Operand Val
}

// ToNumberInstr converts Src to a number; non-numbers raise a for-loop error.
type ToNumberInstr struct {
	Dst Val
	Src Val
}

// LoopEndInstr sets Dst to true when Index has passed Limit in the direction of Step.
type LoopEndInstr struct {
	Dst   Val
	Index Val
	Limit Val
	Step  Val
}

// CallInstr calls Func with Args followed by every value of Trailing, if set.
type CallInstr struct {
	Dst      MultiVal
	Func     Val
	Args     []Val
	Trailing MultiVal
}

// VarArgsInstr captures the vararg list into Dst.
type VarArgsInstr struct {
	Dst MultiVal
}

// ProjectInstr reads position Index of Src into Dst.
type ProjectInstr struct {
	Dst   Val
	Src   MultiVal
	Index int32
}

// CaptureKind says where a closure capture comes from in the creating function.
type CaptureKind uint8

const (
	// CaptureVar captures a local variable of the creating function.
	CaptureVar CaptureKind = iota
	// CaptureUpVar forwards an upvalue of the creating function.
	CaptureUpVar
)

// Capture is one closure argument; it becomes the child's UpVar at the same position.
type Capture struct {
	Kind  CaptureKind
	Var   Var
	UpVar UpVar
}

// ClosureInstr creates a closure of the nested function Func.
type ClosureInstr struct {
	Dst      Val
	Func     FunctionID
	Captures []Capture
}

// CPUAccountInstr charges Cost units of work.
type CPUAccountInstr struct {
	Cost int32
}

// Dst returns the single value defined by ins, if any.
func (ins *Instr) Dst() (Val, bool) {
	switch ins.Kind {
	case InstrLoadConst:
		return ins.LoadConst.Dst, true
	case InstrLoadVar:
		return ins.LoadVar.Dst, true
	case InstrLoadUpVar:
		return ins.LoadUpVar.Dst, true
	case InstrLoadPhi:
		return ins.LoadPhi.Dst, true
	case InstrNewTable:
		return ins.NewTable.Dst, true
	case InstrGetTable:
		return ins.GetTable.Dst, true
	case InstrBinOp:
		return ins.BinOp.Dst, true
	case InstrUnOp:
		return ins.UnOp.Dst, true
	case InstrToNumber:
		return ins.ToNumber.Dst, true
	case InstrLoopEnd:
		return ins.LoopEnd.Dst, true
	case InstrProject:
		return ins.Project.Dst, true
	case InstrClosure:
		return ins.Closure.Dst, true
	default:
		return 0, false
	}
}

func (k InstrKind) String() string {
	switch k {
	case InstrLoadConst:
		return "const"
	case InstrLoadVar:
		return "load_var"
	case InstrStoreVar:
		return "store_var"
	case InstrLoadUpVar:
		return "load_upvar"
	case InstrStoreUpVar:
		return "store_upvar"
	case InstrStorePhi:
		return "store_phi"
	case InstrLoadPhi:
		return "load_phi"
	case InstrNewTable:
		return "new_table"
	case InstrGetTable:
		return "get_table"
	case InstrSetTable:
		return "set_table"
	case InstrAppendMulti:
		return "append_multi"
	case InstrBinOp:
		return "binop"
	case InstrUnOp:
		return "unop"
	case InstrToNumber:
		return "to_number"
	case InstrLoopEnd:
		return "loop_end"
	case InstrCall:
		return "call"
	case InstrVarArgs:
		return "varargs"
	case InstrProject:
		return "project"
	case InstrClosure:
		return "closure"
	case InstrCPUAccount:
		return "cpu_account"
	default:
		return "?"
	}
}
