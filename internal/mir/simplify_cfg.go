package mir

// PruneUnreachable drops blocks that cannot be reached from the entry.
// It returns f itself when every block is reachable.
func PruneUnreachable(f *Func) *Func {
	if f == nil || len(f.Blocks) == 0 {
		return f
	}
	reachable := Reachable(f)
	if len(reachable) == len(f.Blocks) {
		return f
	}
	out := *f
	out.Blocks = make([]Block, 0, len(reachable))
	for i := range f.Blocks {
		if reachable[f.Blocks[i].Label] {
			out.Blocks = append(out.Blocks, cloneBlock(&f.Blocks[i]))
		}
	}
	return &out
}

// MergeBlocks folds a block that ends in a jump into its target when the target
// has no other predecessor and is not the entry. Labels are kept as they are.
// It returns f itself when nothing merges.
func MergeBlocks(f *Func) *Func {
	if f == nil || len(f.Blocks) < 2 {
		return f
	}
	var out *Func
	for {
		cur := f
		if out != nil {
			cur = out
		}
		i, j, ok := findMerge(cur)
		if !ok {
			break
		}
		if out == nil {
			out = Clone(f)
		}
		dst := &out.Blocks[i]
		src := &out.Blocks[j]
		dst.Instrs = append(dst.Instrs, src.Instrs...)
		dst.Term = src.Term
		out.Blocks = append(out.Blocks[:j], out.Blocks[j+1:]...)
	}
	if out == nil {
		return f
	}
	return out
}

// findMerge returns the block positions of the first mergeable jump.
func findMerge(f *Func) (from, to int, ok bool) {
	preds := Predecessors(f)
	idx := f.BlockIndex()
	for i := range f.Blocks {
		b := &f.Blocks[i]
		if b.Term.Kind != TermJump {
			continue
		}
		target := b.Term.Jump.Target
		if target == b.Label || target == f.Entry {
			continue
		}
		j, exists := idx[target]
		if !exists || len(preds[target]) != 1 {
			continue
		}
		return i, j, true
	}
	return 0, 0, false
}
