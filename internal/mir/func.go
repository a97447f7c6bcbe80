package mir

import "fortio.org/safecast"

// Func is one function's compiled unit.
type Func struct {
	ID      FunctionID
	Name    string
	Params  []Var
	VarArgs bool
	UpVars  []UpVar

	Entry  Label
	Blocks []Block

	// NextID is the next unused entity id; ids below it may be in use.
	NextID int32
}

// Block returns the block labeled l, or nil.
func (f *Func) Block(l Label) *Block {
	for i := range f.Blocks {
		if f.Blocks[i].Label == l {
			return &f.Blocks[i]
		}
	}
	return nil
}

// BlockIndex maps labels to positions in Blocks.
func (f *Func) BlockIndex() map[Label]int {
	idx := make(map[Label]int, len(f.Blocks))
	for i := range f.Blocks {
		idx[f.Blocks[i].Label] = i
	}
	return idx
}

// NumInstrs counts body instructions plus terminators.
func (f *Func) NumInstrs() int {
	n := 0
	for i := range f.Blocks {
		n += len(f.Blocks[i].Instrs) + 1
	}
	return n
}

func (f *Func) fresh() int32 {
	if f.NextID <= 0 {
		f.NextID = 1
	}
	id := f.NextID
	next, err := safecast.Conv[int32](int64(id) + 1)
	if err != nil {
		panic(err)
	}
	f.NextID = next
	return id
}
