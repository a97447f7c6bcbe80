package mir

import "slices"

// Predecessors maps every block label to the labels of blocks that may jump to it.
// Only blocks present in f are considered, in block order.
func Predecessors(f *Func) map[Label][]Label {
	preds := make(map[Label][]Label, len(f.Blocks))
	for i := range f.Blocks {
		b := &f.Blocks[i]
		for _, s := range b.Term.Successors() {
			preds[s] = append(preds[s], b.Label)
		}
	}
	return preds
}

// Postorder returns the labels reachable from the entry in DFS postorder.
// Successors are visited in terminator order, so the result is deterministic.
func Postorder(f *Func) []Label {
	idx := f.BlockIndex()
	if _, ok := idx[f.Entry]; !ok {
		return nil
	}
	type frame struct {
		label Label
		next  int
	}
	visited := make(map[Label]bool, len(f.Blocks))
	order := make([]Label, 0, len(f.Blocks))
	stack := []frame{{label: f.Entry}}
	visited[f.Entry] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		succs := f.Blocks[idx[top.label]].Term.Successors()
		if top.next < len(succs) {
			s := succs[top.next]
			top.next++
			if _, ok := idx[s]; ok && !visited[s] {
				visited[s] = true
				stack = append(stack, frame{label: s})
			}
			continue
		}
		order = append(order, top.label)
		stack = stack[:len(stack)-1]
	}
	return order
}

// ReversePostorder returns the reachable labels with every block before its
// successors, back edges aside.
func ReversePostorder(f *Func) []Label {
	order := Postorder(f)
	slices.Reverse(order)
	return order
}

// Reachable returns the set of labels reachable from the entry.
func Reachable(f *Func) map[Label]bool {
	order := Postorder(f)
	out := make(map[Label]bool, len(order))
	for _, l := range order {
		out[l] = true
	}
	return out
}
