package analysis

import (
	"fmt"
	"slices"

	"nikand.dev/go/heap"

	"moonc/internal/bitset"
	"moonc/internal/mir"
)

// Liveness holds live sets for every block and instruction of a function.
// Sets are indexed by entity id; ids are unique across Val, PhiVal and Var.
type Liveness struct {
	blocks map[mir.Label]*BlockLiveness
	kinds  map[int32]mir.EntityKind
}

// BlockLiveness is the liveness of one block.
type BlockLiveness struct {
	In  bitset.Set
	Out bitset.Set
	// At[i] is the live-in set of instruction i; At[len(Instrs)] belongs to the terminator.
	At []bitset.Set

	use bitset.Set
	def bitset.Set
}

// Block returns the liveness of block l, or nil for an unknown label.
func (lv *Liveness) Block(l mir.Label) *BlockLiveness {
	return lv.blocks[l]
}

// LiveIn returns the entities live before instruction i of block l.
// i == len(Instrs) addresses the terminator.
func (lv *Liveness) LiveIn(l mir.Label, i int) bitset.Set {
	b := lv.blocks[l]
	if b == nil || i < 0 || i >= len(b.At) {
		return bitset.Set{}
	}
	return b.At[i]
}

// LiveOut returns the entities live right after instruction i of block l.
func (lv *Liveness) LiveOut(l mir.Label, i int) bitset.Set {
	b := lv.blocks[l]
	if b == nil || i < 0 || i >= len(b.At) {
		return bitset.Set{}
	}
	if i+1 < len(b.At) {
		return b.At[i+1]
	}
	return b.Out
}

// Known reports whether e appears anywhere in the function.
func (lv *Liveness) Known(e mir.Entity) bool {
	k, ok := lv.kinds[e.ID]
	return ok && k == e.Kind
}

// Entity decodes a set member.
func (lv *Liveness) Entity(id int) mir.Entity {
	return mir.Entity{Kind: lv.kinds[int32(id)], ID: int32(id)}
}

// Entities decodes every member of s in id order.
func (lv *Liveness) Entities(s bitset.Set) []mir.Entity {
	out := make([]mir.Entity, 0, s.Size())
	s.Range(func(id int) bool {
		out = append(out, lv.Entity(id))
		return true
	})
	return out
}

// Vars returns the variables in s.
func (lv *Liveness) Vars(s bitset.Set) []mir.Var {
	var out []mir.Var
	for _, e := range lv.Entities(s) {
		if e.Kind == mir.EntityVar {
			out = append(out, mir.Var(e.ID))
		}
	}
	return out
}

// Values returns the Vals and PhiVals in s.
func (lv *Liveness) Values(s bitset.Set) []mir.Entity {
	var out []mir.Entity
	for _, e := range lv.Entities(s) {
		if e.IsValue() {
			out = append(out, e)
		}
	}
	return out
}

// AllEntities lists every entity of the function in id order.
func (lv *Liveness) AllEntities() []mir.Entity {
	out := make([]mir.Entity, 0, len(lv.kinds))
	for id, k := range lv.kinds {
		out = append(out, mir.Entity{Kind: k, ID: id})
	}
	slices.SortFunc(out, mir.CompareEntity)
	return out
}

// ComputeLiveness runs the backward fixed point over the block graph and then
// derives per-instruction sets.
//
// Variables captured by a closure are treated as read at every exit, so the
// closure sees their storage for the rest of the call. Upvalues and
// multi-values are not tracked.
func ComputeLiveness(f *mir.Func) (*Liveness, error) {
	lv := &Liveness{
		blocks: make(map[mir.Label]*BlockLiveness, len(f.Blocks)),
		kinds:  make(map[int32]mir.EntityKind),
	}
	captured := bitset.New(int(f.NextID))
	for x := range mir.CapturedVars(f) {
		captured.Set(int(x))
	}
	for _, x := range f.Params {
		lv.note(mir.VarEntity(x))
	}

	for i := range f.Blocks {
		bb := &f.Blocks[i]
		bl := &BlockLiveness{}
		for j := range bb.Instrs {
			ins := &bb.Instrs[j]
			mir.ForEachUse(ins, func(e mir.Entity) {
				lv.note(e)
				if !bl.def.IsSet(int(e.ID)) {
					bl.use.Set(int(e.ID))
				}
			})
			mir.ForEachDef(ins, func(e mir.Entity) {
				lv.note(e)
				bl.def.Set(int(e.ID))
			})
		}
		termUses(&bb.Term, captured, func(id int32, k mir.EntityKind) {
			lv.note(mir.Entity{Kind: k, ID: id})
			if !bl.def.IsSet(int(id)) {
				bl.use.Set(int(id))
			}
		})
		lv.blocks[bb.Label] = bl
	}

	lv.solve(f)

	for i := range f.Blocks {
		lv.fillInstrs(&f.Blocks[i], captured)
	}

	if err := lv.checkEntry(f, captured); err != nil {
		return nil, err
	}
	return lv, nil
}

func (lv *Liveness) note(e mir.Entity) {
	lv.kinds[e.ID] = e.Kind
}

func termUses(t *mir.Terminator, captured bitset.Set, fn func(int32, mir.EntityKind)) {
	mir.ForEachTermUse(t, func(e mir.Entity) { fn(e.ID, e.Kind) })
	if t.IsExit() {
		captured.Range(func(id int) bool {
			fn(int32(id), mir.EntityVar)
			return true
		})
	}
}

// solve iterates In = use | (Out &^ def), Out = union of successor Ins.
// Blocks are taken from a heap ordered by postorder rank, so successors are
// usually settled before their predecessors.
func (lv *Liveness) solve(f *mir.Func) {
	rank := make(map[mir.Label]int, len(f.Blocks))
	for i, l := range mir.Postorder(f) {
		rank[l] = i
	}
	for i := range f.Blocks {
		if _, ok := rank[f.Blocks[i].Label]; !ok {
			rank[f.Blocks[i].Label] = len(rank)
		}
	}
	preds := mir.Predecessors(f)
	idx := f.BlockIndex()

	queued := make(map[mir.Label]bool, len(f.Blocks))
	work := heap.Heap[mir.Label]{Less: func(d []mir.Label, i, j int) bool {
		return rank[d[i]] < rank[d[j]]
	}}
	for i := range f.Blocks {
		work.Push(f.Blocks[i].Label)
		queued[f.Blocks[i].Label] = true
	}

	for work.Len() != 0 {
		l := work.Pop()
		queued[l] = false
		bl := lv.blocks[l]

		for _, s := range f.Blocks[idx[l]].Term.Successors() {
			if sb := lv.blocks[s]; sb != nil {
				bl.Out.Or(sb.In)
			}
		}
		in := bl.Out.Copy()
		in.AndNot(bl.def)
		in.Or(bl.use)
		if in.Equal(bl.In) {
			continue
		}
		bl.In = in
		for _, p := range preds[l] {
			if !queued[p] {
				queued[p] = true
				work.Push(p)
			}
		}
	}
}

func (lv *Liveness) fillInstrs(bb *mir.Block, captured bitset.Set) {
	bl := lv.blocks[bb.Label]
	bl.At = make([]bitset.Set, len(bb.Instrs)+1)

	live := bl.Out.Copy()
	termUses(&bb.Term, captured, func(id int32, _ mir.EntityKind) { live.Set(int(id)) })
	bl.At[len(bb.Instrs)] = live.Copy()

	for i := len(bb.Instrs) - 1; i >= 0; i-- {
		ins := &bb.Instrs[i]
		mir.ForEachDef(ins, func(e mir.Entity) { live.Clear(int(e.ID)) })
		mir.ForEachUse(ins, func(e mir.Entity) { live.Set(int(e.ID)) })
		bl.At[i] = live.Copy()
	}
}

// checkEntry rejects anything live on entry except parameters and captured
// variables: that would be a read with no prior definition.
func (lv *Liveness) checkEntry(f *mir.Func, captured bitset.Set) error {
	entry := lv.blocks[f.Entry]
	if entry == nil {
		return nil
	}
	bad := entry.In.Copy()
	for _, x := range f.Params {
		bad.Clear(int(x))
	}
	bad.AndNot(captured)
	if bad.Empty() {
		return nil
	}
	return fmt.Errorf("%w: %s: %v live on entry without a definition", ErrInternal, f.ID, lv.Entities(bad))
}
