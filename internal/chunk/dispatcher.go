package chunk

import (
	"sync"
)

// Dispatcher is the work queue feeding the worker pool. It is seeded with all
// pending chunks in ascending index order and hands out the chunk nearest to
// any completed chunk, which keeps quality-search predictions grounded in
// neighboring results. Retried chunks re-enter the queue via Requeue.
type Dispatcher struct {
	mu        sync.Mutex
	ready     map[int]Chunk
	completed map[int]bool
}

// NewDispatcher creates a dispatcher seeded with the given chunks.
func NewDispatcher(chunks []Chunk) *Dispatcher {
	ready := make(map[int]Chunk, len(chunks))
	for _, ch := range chunks {
		ready[ch.Idx] = ch
	}
	return &Dispatcher{
		ready:     ready,
		completed: make(map[int]bool),
	}
}

// Next returns the next chunk to process, or false if none remain queued.
// With no completions yet it falls back to the lowest index, which biases
// early availability of early chunks.
func (d *Dispatcher) Next() (Chunk, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.ready) == 0 {
		return Chunk{}, false
	}

	if len(d.completed) == 0 {
		return d.pickLowest(), true
	}

	var bestChunk Chunk
	bestDist := -1
	for _, ch := range d.ready {
		dist := d.minDistToCompleted(ch.Idx)
		if bestDist < 0 || dist < bestDist || (dist == bestDist && ch.Idx < bestChunk.Idx) {
			bestChunk = ch
			bestDist = dist
		}
	}

	delete(d.ready, bestChunk.Idx)
	return bestChunk, true
}

// Requeue returns a chunk to the queue for another attempt.
func (d *Dispatcher) Requeue(ch Chunk) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ready[ch.Idx] = ch
}

// MarkComplete records a chunk as completed.
func (d *Dispatcher) MarkComplete(idx int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.completed[idx] = true
}

// Remaining returns the count of queued chunks.
func (d *Dispatcher) Remaining() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ready)
}

// Drain empties the queue, abandoning unstarted chunks. Used on cancellation.
func (d *Dispatcher) Drain() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ready = make(map[int]Chunk)
}

func (d *Dispatcher) pickLowest() Chunk {
	lowestIdx := -1
	var lowestChunk Chunk
	for idx, ch := range d.ready {
		if lowestIdx < 0 || idx < lowestIdx {
			lowestIdx = idx
			lowestChunk = ch
		}
	}
	delete(d.ready, lowestIdx)
	return lowestChunk
}

func (d *Dispatcher) minDistToCompleted(idx int) int {
	minDist := -1
	for c := range d.completed {
		dist := idx - c
		if dist < 0 {
			dist = -dist
		}
		if minDist < 0 || dist < minDist {
			minDist = dist
		}
	}
	return minDist
}
