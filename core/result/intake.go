package result

import (
	"sync"
	"sync/atomic"
)

// Intake orders the decodes of an upload action: each decode is tagged with a sequence number
// and the completion of a decode older than the newest one begun is discarded.
type Intake struct {
	seq atomic.Uint64
	mu  sync.Mutex
}

// Begin tags a new decode; it supersedes every decode begun before it.
func (in *Intake) Begin() uint64 {
	return in.seq.Add(1)
}

// Complete runs apply if seq is still the newest decode and reports whether it did.
func (in *Intake) Complete(seq uint64, apply func()) bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	if seq != in.seq.Load() {
		return false
	}
	apply()
	return true
}

// Latest returns the sequence number of the newest decode begun.
func (in *Intake) Latest() uint64 {
	return in.seq.Load()
}
