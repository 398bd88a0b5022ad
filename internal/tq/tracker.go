package tq

import "sync"

// Tracker holds the accepted parameter values of completed chunks and
// predicts a starting point for new chunks from their nearest neighbors.
// Scenes close together tend to need similar parameters, so a good
// prediction shrinks the initial bracket and saves probe encodes.
type Tracker struct {
	mu      sync.RWMutex
	results map[int]float64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{results: make(map[int]float64)}
}

// Record stores the accepted parameter value for a completed chunk.
func (t *Tracker) Record(chunkIdx int, value float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.results[chunkIdx] = value
}

// Predict returns a distance-weighted average of up to 4 nearest completed
// chunks, or 0 when nothing has completed yet.
func (t *Tracker) Predict(chunkIdx int) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.results) == 0 {
		return 0
	}

	type neighbor struct {
		dist  int
		value float64
	}

	neighbors := make([]neighbor, 0, len(t.results))
	for idx, value := range t.results {
		dist := chunkIdx - idx
		if dist < 0 {
			dist = -dist
		}
		if dist == 0 {
			return value
		}
		neighbors = append(neighbors, neighbor{dist, value})
	}

	for i := 1; i < len(neighbors); i++ {
		for j := i; j > 0 && neighbors[j].dist < neighbors[j-1].dist; j-- {
			neighbors[j], neighbors[j-1] = neighbors[j-1], neighbors[j]
		}
	}
	if len(neighbors) > 4 {
		neighbors = neighbors[:4]
	}

	var weightedSum, weightSum float64
	for _, n := range neighbors {
		weight := 1.0 / float64(n.dist)
		weightedSum += n.value * weight
		weightSum += weight
	}
	if weightSum == 0 {
		return 0
	}
	return weightedSum / weightSum
}

// Count returns the number of recorded results.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.results)
}
