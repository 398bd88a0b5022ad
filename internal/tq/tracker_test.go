package tq

import (
	"math"
	"sync"
	"testing"
)

func TestTrackerEmptyPredictsZero(t *testing.T) {
	tr := NewTracker()
	if got := tr.Predict(5); got != 0 {
		t.Errorf("Predict on empty tracker = %v, want 0", got)
	}
}

func TestTrackerExactMatch(t *testing.T) {
	tr := NewTracker()
	tr.Record(5, 27)
	if got := tr.Predict(5); got != 27 {
		t.Errorf("Predict(5) = %v, want exact recorded value 27", got)
	}
}

func TestTrackerWeightsByDistance(t *testing.T) {
	tr := NewTracker()
	tr.Record(4, 20) // distance 1
	tr.Record(8, 32) // distance 3

	// Weighted: (20*1 + 32*(1/3)) / (1 + 1/3) = 23
	got := tr.Predict(5)
	if math.Abs(got-23) > 1e-9 {
		t.Errorf("Predict(5) = %v, want 23", got)
	}
}

func TestTrackerUsesFourNearest(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 10; i++ {
		tr.Record(i, float64(10+i))
	}
	// All four nearest to 100 are far; prediction must still be finite and
	// inside the recorded range.
	got := tr.Predict(100)
	if got < 10 || got > 19 {
		t.Errorf("Predict(100) = %v, want within recorded range", got)
	}
}

func TestTrackerConcurrent(t *testing.T) {
	tr := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			tr.Record(idx, float64(20+idx%10))
			_ = tr.Predict(idx + 1)
		}(i)
	}
	wg.Wait()

	if tr.Count() != 50 {
		t.Errorf("Count() = %d, want 50", tr.Count())
	}
}
