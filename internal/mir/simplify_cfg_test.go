package mir_test

import (
	"testing"

	"moonc/internal/mir"
)

func jumpTo(l mir.Label) mir.Terminator {
	return mir.Terminator{Kind: mir.TermJump, Jump: mir.JumpTerm{Target: l}}
}

func constInstr(dst mir.Val, v int64) mir.Instr {
	return mir.Instr{Kind: mir.InstrLoadConst, LoadConst: mir.LoadConstInstr{Dst: dst, Const: mir.IntConst(v)}}
}

// TestMergeBlocks_Chain merges bb0 -> bb1 -> bb2 into a single block.
func TestMergeBlocks_Chain(t *testing.T) {
	f := &mir.Func{
		Entry: 0,
		Blocks: []mir.Block{
			{Label: 0, Instrs: []mir.Instr{constInstr(1, 1)}, Term: jumpTo(1)},
			{Label: 1, Instrs: []mir.Instr{constInstr(2, 2)}, Term: jumpTo(2)},
			{Label: 2, Term: mir.Terminator{Kind: mir.TermReturn, Return: mir.ReturnTerm{Values: []mir.Val{1, 2}}}},
		},
		NextID: 3,
	}
	before := mir.Clone(f)

	got := mir.MergeBlocks(f)
	if len(got.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(got.Blocks))
	}
	if len(got.Blocks[0].Instrs) != 2 || got.Blocks[0].Term.Kind != mir.TermReturn {
		t.Errorf("merged block has wrong contents: %d instrs, %s", len(got.Blocks[0].Instrs), got.Blocks[0].Term.Kind)
	}
	if !mir.Equal(f, before) {
		t.Errorf("MergeBlocks mutated its input")
	}
	if again := mir.MergeBlocks(got); again != got {
		t.Errorf("MergeBlocks on a merged function should return it unchanged")
	}
}

// TestMergeBlocks_SharedSuccessor keeps a join block that has two predecessors.
func TestMergeBlocks_SharedSuccessor(t *testing.T) {
	f := &mir.Func{
		Entry: 0,
		Blocks: []mir.Block{
			{Label: 0, Instrs: []mir.Instr{constInstr(1, 1)}, Term: mir.Terminator{
				Kind: mir.TermBranch, Branch: mir.BranchTerm{Cond: 1, Then: 1, Else: 2},
			}},
			{Label: 1, Term: jumpTo(3)},
			{Label: 2, Term: jumpTo(3)},
			{Label: 3, Term: mir.Terminator{Kind: mir.TermReturn}},
		},
	}
	if got := mir.MergeBlocks(f); got != f {
		t.Errorf("expected no merge, got %d blocks", len(got.Blocks))
	}
}

// TestMergeBlocks_EntryTarget folds a loop latch into the entry but never merges the entry away.
func TestMergeBlocks_EntryTarget(t *testing.T) {
	f := &mir.Func{
		Entry: 0,
		Blocks: []mir.Block{
			{Label: 0, Term: jumpTo(1)},
			{Label: 1, Term: jumpTo(0)},
		},
	}
	got := mir.MergeBlocks(f)
	if len(got.Blocks) != 1 || got.Blocks[0].Label != 0 {
		t.Fatalf("expected entry to absorb bb1, got %d blocks", len(got.Blocks))
	}
	if got.Blocks[0].Term.Kind != mir.TermJump || got.Blocks[0].Term.Jump.Target != 0 {
		t.Errorf("merged loop should jump to itself")
	}
}

func TestPruneUnreachable(t *testing.T) {
	f := &mir.Func{
		Entry: 0,
		Blocks: []mir.Block{
			{Label: 0, Term: jumpTo(2)},
			{Label: 1, Instrs: []mir.Instr{constInstr(1, 1)}, Term: jumpTo(2)},
			{Label: 2, Term: mir.Terminator{Kind: mir.TermReturn}},
		},
	}
	got := mir.PruneUnreachable(f)
	if len(got.Blocks) != 2 || got.Block(1) != nil {
		t.Fatalf("expected bb1 removed, got %d blocks", len(got.Blocks))
	}
	if len(f.Blocks) != 3 {
		t.Errorf("PruneUnreachable mutated its input")
	}
	if again := mir.PruneUnreachable(got); again != got {
		t.Errorf("fully reachable function should be returned unchanged")
	}
}

func TestReversePostorder(t *testing.T) {
	f := &mir.Func{
		Entry: 0,
		Blocks: []mir.Block{
			{Label: 0, Term: mir.Terminator{Kind: mir.TermBranch, Branch: mir.BranchTerm{Cond: 1, Then: 1, Else: 2}}},
			{Label: 1, Term: jumpTo(3)},
			{Label: 2, Term: jumpTo(3)},
			{Label: 3, Term: mir.Terminator{Kind: mir.TermReturn}},
			{Label: 4, Term: jumpTo(3)},
		},
	}
	rpo := mir.ReversePostorder(f)
	if len(rpo) != 4 {
		t.Fatalf("expected 4 reachable blocks, got %v", mir.FormatLabels(rpo))
	}
	if rpo[0] != 0 || rpo[3] != 3 {
		t.Errorf("entry must come first and the join last, got %v", mir.FormatLabels(rpo))
	}
	preds := mir.Predecessors(f)
	if len(preds[3]) != 3 {
		t.Errorf("expected 3 predecessors of bb3, got %v", mir.FormatLabels(preds[3]))
	}
}
