// Package ledger tracks per-chunk lifecycle status and metrics, shared by all
// workers and polled by the progress reporter.
package ledger

import (
	"sync"
	"time"
)

// Status is a chunk lifecycle state.
type Status int

const (
	// Pending means the chunk is queued and unstarted.
	Pending Status = iota
	// Running means a worker currently owns the chunk.
	Running
	// Done is terminal success.
	Done
	// Failed is a failure; terminal unless Retryable is set on the entry.
	Failed
)

// String returns a string representation of the status.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can occur from s, given the
// entry's retryability.
func (s Status) Terminal(retryable bool) bool {
	return s == Done || (s == Failed && !retryable)
}

// Entry is the ledger's view of one chunk.
type Entry struct {
	Status    Status
	Retryable bool
	Attempts  int
	Frames    int
	Bytes     uint64
	Warning   string
	Err       error
	StartedAt time.Time
	Elapsed   time.Duration
}

// Ledger is a concurrently accessible mapping from chunk index to Entry.
// Transitions use compare-and-set semantics so a superseded retry can never
// overwrite a fresher state. A single mutex suffices: update frequency is
// bounded by chunk count, not frame count.
type Ledger struct {
	mu      sync.RWMutex
	entries map[int]Entry
}

// New creates a ledger with every listed chunk index Pending.
func New(indices []int) *Ledger {
	entries := make(map[int]Entry, len(indices))
	for _, idx := range indices {
		entries[idx] = Entry{Status: Pending}
	}
	return &Ledger{entries: entries}
}

// Transition atomically moves idx from the expected status to next and
// applies update to the entry while the lock is held. It returns false, and
// changes nothing, if the current status does not match expected.
func (l *Ledger) Transition(idx int, expected, next Status, update func(*Entry)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[idx]
	if !ok || e.Status != expected {
		return false
	}

	e.Status = next
	switch next {
	case Running:
		e.StartedAt = time.Now()
		e.Attempts++
	case Done, Failed:
		if !e.StartedAt.IsZero() {
			e.Elapsed = time.Since(e.StartedAt)
		}
	}
	if update != nil {
		update(&e)
	}
	l.entries[idx] = e
	return true
}

// MarkDone records terminal success for a running chunk.
func (l *Ledger) MarkDone(idx, frames int, bytes uint64, warning string) bool {
	return l.Transition(idx, Running, Done, func(e *Entry) {
		e.Frames = frames
		e.Bytes = bytes
		e.Warning = warning
		e.Err = nil
		e.Retryable = false
	})
}

// MarkFailed records a failure for a running chunk.
func (l *Ledger) MarkFailed(idx int, err error, retryable bool) bool {
	return l.Transition(idx, Running, Failed, func(e *Entry) {
		e.Err = err
		e.Retryable = retryable
	})
}

// MarkPending re-enqueues a retryable failed chunk. Non-retryable failures
// are terminal and stay put.
func (l *Ledger) MarkPending(idx int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[idx]
	if !ok || e.Status != Failed || !e.Retryable {
		return false
	}
	e.Status = Pending
	e.Err = nil
	e.Retryable = false
	l.entries[idx] = e
	return true
}

// SeedDone records a chunk completed by an earlier run.
func (l *Ledger) SeedDone(idx, frames int, bytes uint64, warning string) bool {
	return l.Transition(idx, Pending, Done, func(e *Entry) {
		e.Frames = frames
		e.Bytes = bytes
		e.Warning = warning
	})
}

// Get returns the entry for idx.
func (l *Ledger) Get(idx int) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[idx]
	return e, ok
}

// Snapshot returns a copy of all entries. Safe to poll from any goroutine;
// the critical section is a map copy, never an encode.
func (l *Ledger) Snapshot() map[int]Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[int]Entry, len(l.entries))
	for idx, e := range l.entries {
		out[idx] = e
	}
	return out
}

// Counts returns how many chunks are in each status.
func (l *Ledger) Counts() (pending, running, done, failed int) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, e := range l.entries {
		switch e.Status {
		case Pending:
			pending++
		case Running:
			running++
		case Done:
			done++
		case Failed:
			failed++
		}
	}
	return
}

// AllTerminal reports whether every chunk reached a terminal state.
func (l *Ledger) AllTerminal() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, e := range l.entries {
		if !e.Status.Terminal(e.Retryable) {
			return false
		}
	}
	return true
}
