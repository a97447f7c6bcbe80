package driver

import (
	"slices"

	"moonc/internal/analysis"
	"moonc/internal/config"
	"moonc/internal/mir"
)

// ArtifactSchema is bumped whenever Artifact's encoding changes.
const ArtifactSchema uint16 = 1

// Artifact is the serialized form of a Result, handed to the emitter and
// stored in the disk cache.
type Artifact struct {
	Schema uint16 `msgpack:"schema"`
	Name   string `msgpack:"name"`
	// Root is the path of the root function, always "" today.
	Root    mir.FunctionID `msgpack:"root"`
	Options string         `msgpack:"options"`
	// ConstCaching is passed through for the emitter.
	ConstCaching bool             `msgpack:"const_caching"`
	Funcs        []FuncArtifact   `msgpack:"funcs"`
	Dropped      []mir.FunctionID `msgpack:"dropped,omitempty"`
}

// FuncArtifact is one function in an Artifact.
type FuncArtifact struct {
	ID        mir.FunctionID   `msgpack:"id"`
	Func      *mir.Func        `msgpack:"func"`
	FrameSize int              `msgpack:"frame_size"`
	Slots     []SlotEntry      `msgpack:"slots"`
	Types     []TypeEntry      `msgpack:"types"`
	Deps      []mir.FunctionID `msgpack:"deps"`
	Rounds    int              `msgpack:"rounds"`
	Capped    bool             `msgpack:"capped,omitempty"`
}

// SlotEntry places one entity in the frame.
type SlotEntry struct {
	Entity mir.Entity `msgpack:"entity"`
	Slot   int        `msgpack:"slot"`
}

// TypeEntry is the inferred type of one entity.
type TypeEntry struct {
	Entity mir.Entity    `msgpack:"entity"`
	Type   analysis.Type `msgpack:"type"`
}

// ToArtifact flattens res. Maps become slices sorted by entity id so equal
// results encode to equal bytes.
func ToArtifact(res *Result, opts config.Options) *Artifact {
	art := &Artifact{
		Schema:       ArtifactSchema,
		Name:         res.Name,
		Root:         res.Root,
		Options:      opts.Key(),
		ConstCaching: opts.ConstCaching,
		Dropped:      slices.Clone(res.Dropped),
	}
	for _, id := range res.Order {
		fr := res.Funcs[id]
		fa := FuncArtifact{
			ID:     id,
			Func:   fr.Func,
			Deps:   slices.Clone(fr.Deps),
			Rounds: fr.Stats.Rounds,
			Capped: fr.Stats.Capped,
		}
		if fr.Slots != nil {
			fa.FrameSize = fr.Slots.Size
			for e, s := range fr.Slots.Slots {
				fa.Slots = append(fa.Slots, SlotEntry{Entity: e, Slot: s})
				if fr.Types != nil {
					fa.Types = append(fa.Types, TypeEntry{Entity: e, Type: fr.Types.OfEntity(e)})
				}
			}
			slices.SortFunc(fa.Slots, func(a, b SlotEntry) int { return mir.CompareEntity(a.Entity, b.Entity) })
			slices.SortFunc(fa.Types, func(a, b TypeEntry) int { return mir.CompareEntity(a.Entity, b.Entity) })
		}
		art.Funcs = append(art.Funcs, fa)
	}
	return art
}

// Func returns the artifact of id.
func (a *Artifact) Func(id mir.FunctionID) (*FuncArtifact, bool) {
	for i := range a.Funcs {
		if a.Funcs[i].ID == id {
			return &a.Funcs[i], true
		}
	}
	return nil, false
}
