package opt

import (
	"moonc/internal/analysis"
	"moonc/internal/mir"
)

// InlineBranches turns a conditional branch into a jump when the type of its
// condition settles the outcome. Conditions computed by LoopEnd are left
// alone: their value depends on run-time magnitudes.
func InlineBranches(f *mir.Func, types *analysis.TypeInfo) *mir.Func {
	loopEnds := make(map[mir.Val]bool)
	for i := range f.Blocks {
		for j := range f.Blocks[i].Instrs {
			if ins := &f.Blocks[i].Instrs[j]; ins.Kind == mir.InstrLoopEnd {
				loopEnds[ins.LoopEnd.Dst] = true
			}
		}
	}

	jumps := make(map[int]mir.Label)
	for i := range f.Blocks {
		t := &f.Blocks[i].Term
		if t.Kind != mir.TermBranch {
			continue
		}
		switch {
		case t.Branch.Then == t.Branch.Else:
			jumps[i] = t.Branch.Then
		case loopEnds[t.Branch.Cond]:
		case types.Of(t.Branch.Cond).AlwaysFalsy():
			jumps[i] = t.Branch.Else
		case types.Of(t.Branch.Cond).AlwaysTruthy():
			jumps[i] = t.Branch.Then
		}
	}
	if len(jumps) == 0 {
		return f
	}
	out := mir.Clone(f)
	for i, target := range jumps {
		out.Blocks[i].Term = mir.Terminator{Kind: mir.TermJump, Jump: mir.JumpTerm{Target: target}}
	}
	return out
}
