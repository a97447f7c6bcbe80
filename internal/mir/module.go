package mir

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrDuplicateFunction reports two functions with the same id.
	ErrDuplicateFunction = errors.New("mir: duplicate function id")
	// ErrNoRoot reports a module without a root function.
	ErrNoRoot = errors.New("mir: no root function")
)

// Module is the set of functions produced from one chunk.
type Module struct {
	Root  FunctionID
	Funcs map[FunctionID]*Func
}

// IDs returns the function ids in path order.
func (m *Module) IDs() []FunctionID {
	ids := make([]FunctionID, 0, len(m.Funcs))
	for id := range m.Funcs {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, CompareFunctionID)
	return ids
}

// Builder collects functions while a chunk is translated. A child id is
// reserved before its body is lowered, so closures may name it early.
type Builder struct {
	funcs    map[FunctionID]*Func
	reserved map[FunctionID]bool
}

func NewBuilder() *Builder {
	return &Builder{
		funcs:    make(map[FunctionID]*Func),
		reserved: make(map[FunctionID]bool),
	}
}

// Reserve registers a placeholder for id.
func (b *Builder) Reserve(id FunctionID) error {
	if b.reserved[id] {
		return fmt.Errorf("%w: %s", ErrDuplicateFunction, id)
	}
	b.reserved[id] = true
	return nil
}

// Define fills the placeholder for f.ID.
func (b *Builder) Define(f *Func) error {
	if !b.reserved[f.ID] {
		return fmt.Errorf("mir: function %s defined without reservation", f.ID)
	}
	if _, ok := b.funcs[f.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFunction, f.ID)
	}
	b.funcs[f.ID] = f
	return nil
}

// Finish checks every placeholder was defined and returns the module.
func (b *Builder) Finish() (*Module, error) {
	var errs []error
	for id := range b.reserved {
		if _, ok := b.funcs[id]; !ok {
			errs = append(errs, fmt.Errorf("mir: function %s reserved but never defined", id))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if _, ok := b.funcs[RootID]; !ok {
		return nil, ErrNoRoot
	}
	return &Module{Root: RootID, Funcs: b.funcs}, nil
}
