package mir

import "slices"

// Clone returns a deep copy of f. Passes clone before rewriting so their
// input stays untouched.
func Clone(f *Func) *Func {
	if f == nil {
		return nil
	}
	out := *f
	out.Params = slices.Clone(f.Params)
	out.UpVars = slices.Clone(f.UpVars)
	out.Blocks = make([]Block, len(f.Blocks))
	for i := range f.Blocks {
		out.Blocks[i] = cloneBlock(&f.Blocks[i])
	}
	return &out
}

func cloneBlock(b *Block) Block {
	out := Block{Label: b.Label, Term: cloneTerm(b.Term)}
	if b.Instrs != nil {
		out.Instrs = make([]Instr, len(b.Instrs))
		for i := range b.Instrs {
			out.Instrs[i] = CloneInstr(b.Instrs[i])
		}
	}
	return out
}

// CloneInstr copies ins including its slices.
func CloneInstr(ins Instr) Instr {
	switch ins.Kind {
	case InstrCall:
		ins.Call.Args = slices.Clone(ins.Call.Args)
	case InstrClosure:
		ins.Closure.Captures = slices.Clone(ins.Closure.Captures)
	}
	return ins
}

func cloneTerm(t Terminator) Terminator {
	switch t.Kind {
	case TermReturn:
		t.Return.Values = slices.Clone(t.Return.Values)
	case TermTailCall:
		t.TailCall.Args = slices.Clone(t.TailCall.Args)
	}
	return t
}
