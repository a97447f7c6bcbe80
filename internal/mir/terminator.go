package mir

type TermKind uint8

const (
	TermNone TermKind = iota
	TermJump
	TermBranch
	TermReturn
	TermTailCall
)

// Terminator ends a block; exactly one per block.
type Terminator struct {
	Kind TermKind

	Jump     JumpTerm
	Branch   BranchTerm
	Return   ReturnTerm
	TailCall TailCallTerm
}

type JumpTerm struct {
	Target Label
}

// BranchTerm goes to Then when Cond is truthy and to Else otherwise.
type BranchTerm struct {
	Cond Val
	Then Label
	Else Label
}

// ReturnTerm returns Values followed by every value of Trailing, if set.
type ReturnTerm struct {
	Values   []Val
	Trailing MultiVal
}

// TailCallTerm returns the results of Func(Args..., Trailing...) reusing the frame.
type TailCallTerm struct {
	Func     Val
	Args     []Val
	Trailing MultiVal
}

// Successors returns the labels the terminator may transfer control to.
func (t *Terminator) Successors() []Label {
	switch t.Kind {
	case TermJump:
		return []Label{t.Jump.Target}
	case TermBranch:
		if t.Branch.Then == t.Branch.Else {
			return []Label{t.Branch.Then}
		}
		return []Label{t.Branch.Then, t.Branch.Else}
	default:
		return nil
	}
}

// IsExit reports whether the terminator leaves the function.
func (t *Terminator) IsExit() bool {
	return t.Kind == TermReturn || t.Kind == TermTailCall
}

func (k TermKind) String() string {
	switch k {
	case TermNone:
		return "none"
	case TermJump:
		return "jump"
	case TermBranch:
		return "branch"
	case TermReturn:
		return "return"
	case TermTailCall:
		return "tailcall"
	default:
		return "?"
	}
}
