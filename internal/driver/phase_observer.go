package driver

import "time"

// PhaseStatus says what a PhaseEvent reports.
type PhaseStatus int

const (
	// PhaseStart indicates that a compilation phase has begun.
	PhaseStart PhaseStatus = iota
	PhaseEnd
	// FileDone, FileCached and FileFailed close out one file of a batch.
	FileDone
	FileCached
	FileFailed
)

func (s PhaseStatus) String() string {
	switch s {
	case PhaseStart:
		return "start"
	case PhaseEnd:
		return "end"
	case FileDone:
		return "done"
	case FileCached:
		return "cached"
	case FileFailed:
		return "error"
	default:
		return "unknown"
	}
}

// PhaseEvent describes a phase boundary of one chunk. File is only set for
// chunks compiled through CompileFiles.
type PhaseEvent struct {
	File    string
	Chunk   string
	Name    string
	Status  PhaseStatus
	Elapsed time.Duration
}

// PhaseObserver receives phase events emitted by Compile. Parallel batches
// call it from several goroutines.
type PhaseObserver func(PhaseEvent)
