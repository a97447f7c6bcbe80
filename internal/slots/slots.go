// Package slots packs the values and variables of a function into a frame of
// numbered storage slots.
//
// Slots come from first-fit colouring of an interference graph rather than a
// scan that frees slots instruction by instruction. Entities live on entry to
// the same block always conflict, so the graph is at least as strict as the
// scan: no two entities live before one instruction share a slot, but an
// entity may be kept out of a slot the scan would have reused.
package slots

import (
	"fmt"
	"slices"

	"moonc/internal/analysis"
	"moonc/internal/bitset"
	"moonc/internal/mir"
)

// Alloc is the slot assignment of one function.
type Alloc struct {
	Slots map[mir.Entity]int
	// Size is the frame size: one more than the highest slot used.
	Size int
}

// Slot returns the slot of e. Asking for an entity the allocator never saw is
// a compiler defect.
func (a *Alloc) Slot(e mir.Entity) (int, error) {
	s, ok := a.Slots[e]
	if !ok {
		return 0, fmt.Errorf("%w: no slot for %s", analysis.ErrInternal, e)
	}
	return s, nil
}

// Allocate assigns slots first-fit. Parameters take slots 0..k-1 in order.
// Every other entity gets the lowest slot not held by an entity it
// interferes with, visiting definitions in reverse postorder.
//
// Two entities interfere when one is defined while the other is live right
// after the definition, or when both are live on entry to the same block.
func Allocate(f *mir.Func, lv *analysis.Liveness) (*Alloc, error) {
	a := &Alloc{Slots: make(map[mir.Entity]int)}
	g := newGraph(lv)

	for i := range f.Blocks {
		bb := &f.Blocks[i]
		bl := lv.Block(bb.Label)
		if bl == nil {
			return nil, fmt.Errorf("%w: %s: %s has no liveness", analysis.ErrInternal, f.ID, bb.Label)
		}
		g.clique(bl.In)
		for j := range bb.Instrs {
			out := lv.LiveOut(bb.Label, j)
			var err error
			mir.ForEachDef(&bb.Instrs[j], func(d mir.Entity) {
				if err == nil && !lv.Known(d) {
					err = fmt.Errorf("%w: %s: %s has no liveness", analysis.ErrInternal, f.ID, d)
				}
				g.against(d.ID, out)
			})
			if err != nil {
				return nil, err
			}
		}
	}

	for i, x := range f.Params {
		e := mir.VarEntity(x)
		if !lv.Known(e) {
			return nil, fmt.Errorf("%w: %s: parameter %s has no liveness", analysis.ErrInternal, f.ID, x)
		}
		a.Slots[e] = i
	}

	order := blockOrder(f)
	idx := f.BlockIndex()
	for _, lbl := range order {
		bb := &f.Blocks[idx[lbl]]
		for _, e := range lv.Entities(lv.Block(lbl).In) {
			a.assign(g, e)
		}
		for j := range bb.Instrs {
			mir.ForEachDef(&bb.Instrs[j], func(d mir.Entity) { a.assign(g, d) })
		}
	}

	// Entities only read, never defined nor live anywhere, still need a home.
	for _, e := range lv.AllEntities() {
		a.assign(g, e)
	}

	a.Size = len(f.Params)
	for _, s := range a.Slots {
		if s+1 > a.Size {
			a.Size = s + 1
		}
	}
	return a, nil
}

// blockOrder is reverse postorder followed by any unreachable blocks.
func blockOrder(f *mir.Func) []mir.Label {
	order := mir.ReversePostorder(f)
	seen := make(map[mir.Label]bool, len(order))
	for _, l := range order {
		seen[l] = true
	}
	for i := range f.Blocks {
		if l := f.Blocks[i].Label; !seen[l] {
			order = append(order, l)
		}
	}
	return order
}

func (a *Alloc) assign(g *graph, e mir.Entity) {
	if _, ok := a.Slots[e]; ok {
		return
	}
	var used bitset.Set
	for _, n := range g.neighbors(e.ID) {
		if s, ok := a.Slots[n]; ok {
			used.Set(s)
		}
	}
	a.Slots[e] = used.FirstClear()
}

// graph is an interference graph over entity ids.
type graph struct {
	lv    *analysis.Liveness
	edges map[int32]*bitset.Set
}

func newGraph(lv *analysis.Liveness) *graph {
	return &graph{lv: lv, edges: make(map[int32]*bitset.Set)}
}

func (g *graph) add(a, b int32) {
	if a == b {
		return
	}
	g.set(a).Set(int(b))
	g.set(b).Set(int(a))
}

func (g *graph) set(id int32) *bitset.Set {
	s := g.edges[id]
	if s == nil {
		s = &bitset.Set{}
		g.edges[id] = s
	}
	return s
}

func (g *graph) against(d int32, live bitset.Set) {
	live.Range(func(id int) bool {
		g.add(d, int32(id))
		return true
	})
}

func (g *graph) clique(live bitset.Set) {
	ids := live.Elems()
	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			g.add(int32(ids[i]), int32(ids[j]))
		}
	}
}

func (g *graph) neighbors(id int32) []mir.Entity {
	s := g.edges[id]
	if s == nil {
		return nil
	}
	out := g.lv.Entities(*s)
	slices.SortFunc(out, mir.CompareEntity)
	return out
}
