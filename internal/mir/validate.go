package mir

import (
	"errors"
	"fmt"
)

// Validate checks MIR module invariants.
// Returns error if any invariant is violated.
func Validate(m *Module) error {
	if m == nil {
		return nil
	}
	var errs []error
	if _, ok := m.Funcs[m.Root]; !ok {
		errs = append(errs, ErrNoRoot)
	}
	for _, id := range m.IDs() {
		f := m.Funcs[id]
		if f.ID != id {
			errs = append(errs, fmt.Errorf("function %s: registered under %s", f.ID, id))
		}
		if err := ValidateFunc(f); err != nil {
			errs = append(errs, fmt.Errorf("function %s: %w", id, err))
		}
		if err := validateClosureTargets(m, f); err != nil {
			errs = append(errs, fmt.Errorf("function %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// ValidateFunc checks the invariants of a single function.
func ValidateFunc(f *Func) error {
	if f == nil {
		return nil
	}
	var errs []error

	// 1. Check every block is terminated and labels are unique
	if err := validateBlocks(f); err != nil {
		errs = append(errs, err)
	}

	// 2. Check block targets exist
	if err := validateBlockTargets(f); err != nil {
		errs = append(errs, err)
	}

	// 3. Check single definition of values
	if err := validateDefinitions(f); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateBlocks(f *Func) error {
	var errs []error
	seen := make(map[Label]bool, len(f.Blocks))
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		if seen[bb.Label] {
			errs = append(errs, fmt.Errorf("%s: duplicate label", bb.Label))
		}
		seen[bb.Label] = true
		if bb.Term.Kind == TermNone {
			errs = append(errs, fmt.Errorf("%s: unterminated block", bb.Label))
		}
	}
	if len(f.Blocks) > 0 && !seen[f.Entry] {
		errs = append(errs, fmt.Errorf("entry %s does not exist", f.Entry))
	}
	return errors.Join(errs...)
}

func validateBlockTargets(f *Func) error {
	idx := f.BlockIndex()
	var errs []error
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		for _, s := range bb.Term.Successors() {
			if _, ok := idx[s]; !ok {
				errs = append(errs, fmt.Errorf("%s: jump to missing block %s", bb.Label, s))
			}
		}
	}
	return errors.Join(errs...)
}

// validateDefinitions checks every Val is defined once, every PhiVal has at
// least one store and every MultiVal is defined once.
func validateDefinitions(f *Func) error {
	var errs []error
	vals := make(map[int32]int)
	phis := make(map[int32]bool)
	multis := make(map[MultiVal]int)
	for i := range f.Blocks {
		for j := range f.Blocks[i].Instrs {
			ins := &f.Blocks[i].Instrs[j]
			ForEachDef(ins, func(e Entity) {
				switch e.Kind {
				case EntityVal:
					vals[e.ID]++
				case EntityPhi:
					phis[e.ID] = true
				}
			})
			if m, ok := MultiDef(ins); ok {
				multis[m]++
			}
		}
	}
	for id, n := range vals {
		if n > 1 {
			errs = append(errs, fmt.Errorf("%s defined %d times", Val(id), n))
		}
	}
	for m, n := range multis {
		if n > 1 {
			errs = append(errs, fmt.Errorf("%s defined %d times", m, n))
		}
	}
	for i := range f.Blocks {
		for j := range f.Blocks[i].Instrs {
			ins := &f.Blocks[i].Instrs[j]
			if ins.Kind == InstrLoadPhi && !phis[int32(ins.LoadPhi.Src)] {
				errs = append(errs, fmt.Errorf("%s: %s loaded without a store", f.Blocks[i].Label, ins.LoadPhi.Src))
			}
		}
	}
	return errors.Join(errs...)
}

func validateClosureTargets(m *Module, f *Func) error {
	var errs []error
	for i := range f.Blocks {
		for j := range f.Blocks[i].Instrs {
			ins := &f.Blocks[i].Instrs[j]
			if ins.Kind != InstrClosure {
				continue
			}
			if _, ok := m.Funcs[ins.Closure.Func]; !ok {
				errs = append(errs, fmt.Errorf("%s: closure of unknown function %s", f.Blocks[i].Label, ins.Closure.Func))
			}
		}
	}
	return errors.Join(errs...)
}
