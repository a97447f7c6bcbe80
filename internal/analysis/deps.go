package analysis

import (
	"slices"

	"moonc/internal/mir"
)

// Deps lists the nested functions a function creates closures of, sorted and
// without duplicates.
type Deps []mir.FunctionID

// Dependencies collects the targets of every Closure instruction in f.
func Dependencies(f *mir.Func) Deps {
	var out Deps
	for i := range f.Blocks {
		for j := range f.Blocks[i].Instrs {
			ins := &f.Blocks[i].Instrs[j]
			if ins.Kind == mir.InstrClosure {
				out = append(out, ins.Closure.Func)
			}
		}
	}
	slices.SortFunc(out, mir.CompareFunctionID)
	return slices.Compact(out)
}

// Contains reports whether id is a dependency.
func (d Deps) Contains(id mir.FunctionID) bool {
	_, ok := slices.BinarySearchFunc(d, id, mir.CompareFunctionID)
	return ok
}
