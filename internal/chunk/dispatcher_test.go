package chunk

import (
	"sync"
	"testing"
)

func TestDispatcherSeededAscending(t *testing.T) {
	chunks := []Chunk{
		{Idx: 2, StartFrame: 200, EndFrame: 300},
		{Idx: 0, StartFrame: 0, EndFrame: 100},
		{Idx: 1, StartFrame: 100, EndFrame: 200},
	}

	d := NewDispatcher(chunks)

	for want := 0; want < 3; want++ {
		ch, ok := d.Next()
		if !ok || ch.Idx != want {
			t.Errorf("Next() = %v, %v, want idx %d, true", ch.Idx, ok, want)
		}
	}

	if _, ok := d.Next(); ok {
		t.Error("Next() on empty queue should return false")
	}
}

func TestDispatcherPrefersNeighborsOfCompleted(t *testing.T) {
	var chunks []Chunk
	for i := 0; i < 10; i++ {
		if i != 5 {
			chunks = append(chunks, Chunk{Idx: i, StartFrame: uint64(i * 100), EndFrame: uint64((i + 1) * 100)})
		}
	}

	d := NewDispatcher(chunks)
	d.MarkComplete(5)

	ch, ok := d.Next()
	if !ok {
		t.Fatal("expected a chunk")
	}
	if ch.Idx != 4 && ch.Idx != 6 {
		t.Errorf("Next() = %d, want 4 or 6 (adjacent to completed 5)", ch.Idx)
	}
}

func TestDispatcherRequeue(t *testing.T) {
	d := NewDispatcher([]Chunk{{Idx: 0, StartFrame: 0, EndFrame: 100}})

	ch, ok := d.Next()
	if !ok {
		t.Fatal("expected a chunk")
	}
	if d.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", d.Remaining())
	}

	d.Requeue(ch)
	if d.Remaining() != 1 {
		t.Errorf("Remaining() after Requeue = %d, want 1", d.Remaining())
	}

	again, ok := d.Next()
	if !ok || again.Idx != 0 {
		t.Errorf("Next() after Requeue = %v, %v, want idx 0, true", again.Idx, ok)
	}
}

func TestDispatcherDrain(t *testing.T) {
	d := NewDispatcher([]Chunk{
		{Idx: 0, StartFrame: 0, EndFrame: 100},
		{Idx: 1, StartFrame: 100, EndFrame: 200},
	})

	d.Drain()
	if d.Remaining() != 0 {
		t.Errorf("Remaining() after Drain = %d, want 0", d.Remaining())
	}
	if _, ok := d.Next(); ok {
		t.Error("Next() after Drain should return false")
	}
}

func TestDispatcherConcurrent(t *testing.T) {
	const n = 200
	chunks := make([]Chunk, n)
	for i := 0; i < n; i++ {
		chunks[i] = Chunk{Idx: i, StartFrame: uint64(i * 10), EndFrame: uint64((i + 1) * 10)}
	}

	d := NewDispatcher(chunks)

	var mu sync.Mutex
	seen := make(map[int]int)

	var wg sync.WaitGroup
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				ch, ok := d.Next()
				if !ok {
					return
				}
				mu.Lock()
				seen[ch.Idx]++
				mu.Unlock()
				d.MarkComplete(ch.Idx)
			}
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("dispatched %d distinct chunks, want %d", len(seen), n)
	}
	for idx, count := range seen {
		if count != 1 {
			t.Errorf("chunk %d dispatched %d times", idx, count)
		}
	}
}
