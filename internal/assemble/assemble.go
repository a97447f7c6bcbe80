// Package assemble decides which compiled functions make it into a module.
package assemble

import (
	"errors"
	"fmt"
	"slices"

	"moonc/internal/analysis"
	"moonc/internal/mir"
)

// ErrUnknownDependency reports a closure target that was never compiled.
var ErrUnknownDependency = errors.New("assemble: unknown dependency")

// Unit is one compiled function as the assembler sees it.
type Unit struct {
	ID   mir.FunctionID
	Deps analysis.Deps
}

// Reachable walks dependencies breadth-first from root and returns every
// function it reaches, ordered by FunctionID. Duplicate ids, a missing root
// or a dependency on an unknown function fail the module.
func Reachable(root mir.FunctionID, units []Unit) ([]mir.FunctionID, error) {
	byID := make(map[mir.FunctionID]*Unit, len(units))
	for i := range units {
		u := &units[i]
		if _, dup := byID[u.ID]; dup {
			return nil, fmt.Errorf("%w: %s", mir.ErrDuplicateFunction, u.ID)
		}
		byID[u.ID] = u
	}
	if _, ok := byID[root]; !ok {
		return nil, fmt.Errorf("%w: %s", mir.ErrNoRoot, root)
	}

	seen := map[mir.FunctionID]bool{root: true}
	queue := []mir.FunctionID{root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, dep := range byID[id].Deps {
			if seen[dep] {
				continue
			}
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("%w: %s needs %s", ErrUnknownDependency, id, dep)
			}
			seen[dep] = true
			queue = append(queue, dep)
		}
	}

	out := make([]mir.FunctionID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	slices.SortFunc(out, mir.CompareFunctionID)
	return out, nil
}
