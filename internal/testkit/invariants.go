package testkit

import (
	"fmt"

	"moonc/internal/analysis"
	"moonc/internal/mir"
	"moonc/internal/slots"
)

// CheckSingleAssignment verifies that every Val is defined by exactly one
// instruction and every MultiVal by at most one.
func CheckSingleAssignment(f *mir.Func) error {
	if f == nil {
		return fmt.Errorf("nil function")
	}
	vals := make(map[int32]mir.Label)
	multis := make(map[mir.MultiVal]mir.Label)
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		for j := range bb.Instrs {
			ins := &bb.Instrs[j]
			if d, ok := ins.Dst(); ok {
				if prev, dup := vals[int32(d)]; dup {
					return fmt.Errorf("%s: %s defined in %s and again in %s", f.ID, d, prev, bb.Label)
				}
				vals[int32(d)] = bb.Label
			}
			if m, ok := mir.MultiDef(ins); ok {
				if prev, dup := multis[m]; dup {
					return fmt.Errorf("%s: %s defined in %s and again in %s", f.ID, m, prev, bb.Label)
				}
				multis[m] = bb.Label
			}
		}
	}
	return nil
}

// CheckLivenessSound verifies that everything an instruction or terminator
// reads is live on entry to it, and that nothing but parameters and captured
// variables is live on entry to the function.
func CheckLivenessSound(f *mir.Func, lv *analysis.Liveness) error {
	if f == nil || lv == nil {
		return fmt.Errorf("nil function or liveness")
	}
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		if lv.Block(bb.Label) == nil {
			return fmt.Errorf("%s: %s has no liveness", f.ID, bb.Label)
		}
		var err error
		check := func(at int, e mir.Entity) {
			if err != nil {
				return
			}
			if !lv.LiveIn(bb.Label, at).IsSet(int(e.ID)) {
				err = fmt.Errorf("%s: %s[%d]: %s read but not live", f.ID, bb.Label, at, e)
			}
		}
		for j := range bb.Instrs {
			mir.ForEachUse(&bb.Instrs[j], func(e mir.Entity) { check(j, e) })
		}
		mir.ForEachTermUse(&bb.Term, func(e mir.Entity) { check(len(bb.Instrs), e) })
		if err != nil {
			return err
		}
	}

	allowed := mir.CapturedVars(f)
	for _, x := range f.Params {
		allowed[x] = true
	}
	for _, e := range lv.Entities(lv.Block(f.Entry).In) {
		if e.Kind != mir.EntityVar || !allowed[mir.Var(e.ID)] {
			return fmt.Errorf("%s: %s live on entry", f.ID, e)
		}
	}
	return nil
}

// CheckSlotSafety verifies that parameters occupy the leading slots and that
// no two entities live before the same instruction share a slot.
func CheckSlotSafety(f *mir.Func, lv *analysis.Liveness, a *slots.Alloc) error {
	if f == nil || lv == nil || a == nil {
		return fmt.Errorf("nil function, liveness or allocation")
	}
	for i, x := range f.Params {
		s, err := a.Slot(mir.VarEntity(x))
		if err != nil {
			return err
		}
		if s != i {
			return fmt.Errorf("%s: parameter %s in slot %d, want %d", f.ID, x, s, i)
		}
	}
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		for j := 0; j <= len(bb.Instrs); j++ {
			owner := make(map[int]mir.Entity)
			for _, e := range lv.Entities(lv.LiveIn(bb.Label, j)) {
				s, err := a.Slot(e)
				if err != nil {
					return err
				}
				if s >= a.Size {
					return fmt.Errorf("%s: %s in slot %d beyond frame size %d", f.ID, e, s, a.Size)
				}
				if other, taken := owner[s]; taken {
					return fmt.Errorf("%s: %s[%d]: %s and %s share slot %d", f.ID, bb.Label, j, other, e, s)
				}
				owner[s] = e
			}
		}
	}
	return nil
}
