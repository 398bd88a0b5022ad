// Package pool drives chunk encoding across a fixed set of worker slots,
// each bound to a CPU affinity set, with per-chunk retry policy and
// cooperative cancellation.
package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/emrakyz/Av1an/internal/chunk"
	"github.com/emrakyz/Av1an/internal/errors"
	"github.com/emrakyz/Av1an/internal/ledger"
	"github.com/emrakyz/Av1an/internal/logging"
	"github.com/emrakyz/Av1an/internal/util"
)

// Slot is one concurrent execution lane. Affinity sets are assigned at pool
// construction and stay fixed for the run.
type Slot struct {
	ID     int
	CPUSet []int
}

// Completion describes one successful chunk attempt.
type Completion struct {
	Frames  int
	Bytes   uint64
	Warning string

	// SearchValue is the accepted quality-search parameter, 0 when the run
	// has no quality target.
	SearchValue float64
}

// RunFunc executes one attempt of a chunk on a slot: either a direct encode
// or the full quality search.
type RunFunc func(ctx context.Context, ch chunk.Chunk, slot Slot) (*Completion, error)

// Config holds pool construction options.
type Config struct {
	// Workers is the slot count; clamped to logical cores and chunk count.
	// Zero means one slot per two logical cores.
	Workers int

	// RetryCeiling is how many re-attempts a transiently failed chunk gets
	// beyond its first try.
	RetryCeiling int

	// FailFast aborts the whole run on the first terminal chunk failure.
	FailFast bool

	// PinCPUs partitions logical cores across slots. Best-effort; platforms
	// without affinity support run unpinned.
	PinCPUs bool
}

// DefaultRetryCeiling bounds re-attempts after transient failures.
const DefaultRetryCeiling = 3

// Pool owns the chunk execution lifecycle from dispatch through terminal
// status.
type Pool struct {
	cfg    Config
	slots  []Slot
	queue  *chunk.Dispatcher
	ledger *ledger.Ledger
	run    RunFunc

	// OnChunkDone, when set, is called after each chunk reaches Done. Used
	// for resume records and progress pushes; errors are the callback's
	// problem.
	OnChunkDone func(ch chunk.Chunk, c Completion)
}

// New creates a pool over the pending chunks. Chunks already Done in the
// ledger (resumed) must not be included in pending.
func New(cfg Config, pending []chunk.Chunk, led *ledger.Ledger, run RunFunc) *Pool {
	cores := util.LogicalCores()

	workers := cfg.Workers
	if workers <= 0 {
		workers = max(cores/2, 1)
	}
	if workers > cores {
		workers = cores
	}
	if len(pending) > 0 && workers > len(pending) {
		workers = len(pending)
	}
	if workers < 1 {
		workers = 1
	}

	if cfg.RetryCeiling < 0 {
		cfg.RetryCeiling = DefaultRetryCeiling
	}

	slots := make([]Slot, workers)
	var sets [][]int
	if cfg.PinCPUs && util.AffinitySupported() {
		sets = util.PartitionCores(cores, workers)
	}
	for i := range slots {
		slots[i] = Slot{ID: i}
		if i < len(sets) {
			slots[i].CPUSet = sets[i]
		}
	}

	return &Pool{
		cfg:    cfg,
		slots:  slots,
		queue:  chunk.NewDispatcher(pending),
		ledger: led,
		run:    run,
	}
}

// Workers returns the effective slot count.
func (p *Pool) Workers() int {
	return len(p.slots)
}

// Run processes the queue until every chunk is terminal, the context is
// cancelled, or a terminal failure aborts a fail-fast run. The returned
// error is the aborting failure in fail-fast mode; per-chunk failures are
// otherwise reported through the ledger, not the return value.
func (p *Pool) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var abortErr error
	var abortOnce sync.Once

	var wg sync.WaitGroup
	for _, slot := range p.slots {
		wg.Add(1)
		go func(slot Slot) {
			defer wg.Done()
			p.work(ctx, slot, func(err error) {
				abortOnce.Do(func() {
					abortErr = err
					cancel()
				})
			})
		}(slot)
	}
	wg.Wait()

	if ctx.Err() != nil && abortErr == nil {
		// Cancelled externally: abandon what never started, keep what
		// finished.
		p.queue.Drain()
	}
	return abortErr
}

// work is one slot's dequeue loop.
func (p *Pool) work(ctx context.Context, slot Slot, abort func(error)) {
	log := logging.Global().WithPrefix(fmt.Sprintf("worker%d", slot.ID))
	for {
		if ctx.Err() != nil {
			p.queue.Drain()
			return
		}

		ch, ok := p.queue.Next()
		if !ok {
			return
		}

		p.process(ctx, slot, ch, log, abort)
	}
}

func (p *Pool) process(ctx context.Context, slot Slot, ch chunk.Chunk, log *logging.Logger, abort func(error)) {
	// The dispatcher guarantees no two slots hold the same index, so this
	// transition only fails if the chunk was seeded Done by a resume.
	if !p.ledger.Transition(ch.Idx, ledger.Pending, ledger.Running, nil) {
		return
	}

	comp, err := p.run(ctx, ch, slot)
	if err == nil {
		p.ledger.MarkDone(ch.Idx, comp.Frames, comp.Bytes, comp.Warning)
		p.queue.MarkComplete(ch.Idx)
		log.Debug("chunk done", "chunk", ch.Idx, "bytes", comp.Bytes)
		if p.OnChunkDone != nil {
			p.OnChunkDone(ch, *comp)
		}
		return
	}

	if errors.IsCancelled(err) || ctx.Err() != nil {
		p.ledger.MarkFailed(ch.Idx, errors.NewCancelledError(), false)
		return
	}

	entry, _ := p.ledger.Get(ch.Idx)
	retry := errors.IsRetryable(err) && entry.Attempts <= p.cfg.RetryCeiling

	p.ledger.MarkFailed(ch.Idx, err, retry)
	if retry {
		log.Warn("chunk failed, requeueing",
			"chunk", ch.Idx, "attempt", entry.Attempts, "error", err)
		p.ledger.MarkPending(ch.Idx)
		p.queue.Requeue(ch)
		return
	}

	log.Error("chunk failed terminally", "chunk", ch.Idx, "attempts", entry.Attempts, "error", err)
	if p.cfg.FailFast {
		abort(err)
	}
}
