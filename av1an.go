// Package av1an provides scene-based chunked video encoding with parallel
// worker scheduling and per-chunk quality targeting.
//
// The input is split at scene cuts into independently encodable chunks, each
// driven through an external encoder process by a fixed pool of workers. When
// a quality target is set, each chunk runs a bounded bisection over the
// quantizer until the measured score lands inside the target window. Finished
// chunks are recorded for crash-safe resume and reassembled in order into the
// final output.
//
// Basic usage:
//
//	cfg := config.New("input.mkv", "output.ivf")
//	cfg.TotalFrames = 14400
//	cfg.ScenesFile = "scenes.txt"
//
//	runner, err := av1an.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := runner.RunFromConfig(ctx)
package av1an

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emrakyz/Av1an/internal/chunk"
	"github.com/emrakyz/Av1an/internal/concat"
	"github.com/emrakyz/Av1an/internal/config"
	"github.com/emrakyz/Av1an/internal/encoder"
	"github.com/emrakyz/Av1an/internal/errors"
	"github.com/emrakyz/Av1an/internal/ledger"
	"github.com/emrakyz/Av1an/internal/logging"
	"github.com/emrakyz/Av1an/internal/metric"
	"github.com/emrakyz/Av1an/internal/pool"
	"github.com/emrakyz/Av1an/internal/reporter"
	"github.com/emrakyz/Av1an/internal/scene"
	"github.com/emrakyz/Av1an/internal/tq"
)

// Runner is the main entry point for an encoding run.
type Runner struct {
	cfg      *config.Config
	rep      reporter.Reporter
	adapter  encoder.Adapter
	measurer metric.Measurer
}

// ChunkFailure describes one chunk that ended Failed.
type ChunkFailure struct {
	Index    int
	Attempts int
	Err      error
}

// RunResult contains the outcome of a run.
type RunResult struct {
	OutputPath    string
	TotalChunks   int
	Completed     int
	Failed        []ChunkFailure
	FramesEncoded int
	BytesWritten  int64
	Elapsed       time.Duration

	// Partial means the output was assembled with failed chunks skipped.
	Partial bool
	// Cancelled means the run stopped on context cancellation; completed
	// chunks are kept on disk for resume and no output was assembled.
	Cancelled bool
}

// Success reports whether every chunk completed and the output was written.
func (r *RunResult) Success() bool {
	return !r.Cancelled && len(r.Failed) == 0 && r.Completed == r.TotalChunks
}

// Option configures the runner.
type Option func(*Runner)

// WithReporter sets the progress reporter.
func WithReporter(rep reporter.Reporter) Option {
	return func(r *Runner) { r.rep = rep }
}

// WithAdapter replaces the encoder process adapter.
func WithAdapter(a encoder.Adapter) Option {
	return func(r *Runner) { r.adapter = a }
}

// WithMeasurer replaces the quality metric implementation.
func WithMeasurer(m metric.Measurer) Option {
	return func(r *Runner) { r.measurer = m }
}

// New creates a Runner for the given configuration.
func New(cfg *config.Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewConfigError(err.Error())
	}

	r := &Runner{
		cfg: cfg,
		rep: reporter.NullReporter{},
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.adapter == nil {
		r.adapter = &encoder.ProcessAdapter{
			Bin:    cfg.EncoderBin,
			Source: &encoder.FFmpegSource{Input: cfg.Input},
		}
	}
	if r.measurer == nil && cfg.Target != nil {
		r.measurer = &metric.FFmpegVMAF{Reference: cfg.Input, WorkDir: cfg.EffectiveWorkDir()}
	}
	return r, nil
}

// RunFromConfig loads scenes and zones from the configured files and runs.
func (r *Runner) RunFromConfig(ctx context.Context) (*RunResult, error) {
	if r.cfg.TotalFrames == 0 {
		return nil, errors.NewConfigError("total frame count required")
	}

	var cuts []uint64
	if r.cfg.ScenesFile != "" {
		var err error
		cuts, err = scene.LoadCuts(r.cfg.ScenesFile)
		if err != nil {
			return nil, err
		}
	}
	scenes, err := scene.FromCuts(cuts, r.cfg.TotalFrames)
	if err != nil {
		return nil, err
	}

	var zones []scene.Zone
	if r.cfg.ZonesFile != "" {
		zones, err = config.LoadZones(r.cfg.ZonesFile)
		if err != nil {
			return nil, errors.NewConfigError(err.Error())
		}
	}

	return r.Run(ctx, scenes, zones)
}

// Run executes the full pipeline over the given scenes: chunk derivation,
// resume verification, parallel encoding, and final assembly.
func (r *Runner) Run(ctx context.Context, scenes []scene.Scene, zones []scene.Zone) (*RunResult, error) {
	started := time.Now()
	cfg := r.cfg
	workDir := cfg.EffectiveWorkDir()

	if len(scenes) == 0 {
		return nil, errors.NewConfigError("no scenes to encode")
	}
	totalFrames := scenes[len(scenes)-1].EndFrame

	zoned, err := scene.ApplyZones(scenes, zones)
	if err != nil {
		return nil, err
	}

	chunks, err := chunk.Build(zoned, cfg.BaseParams(), totalFrames, cfg.MinChunkFrames)
	if err != nil {
		return nil, err
	}
	if err := chunk.EnsureWorkDirs(workDir); err != nil {
		return nil, errors.NewIOError("failed to create work directory", err)
	}

	r.rep.RunConfig(reporter.RunConfigSummary{
		InputFile:   cfg.Input,
		OutputFile:  cfg.Output,
		Encoder:     cfg.EncoderBin,
		EncoderArgs: strings.Join(cfg.BaseParams().Args(), " "),
		Target:      describeTarget(cfg.Target),
		Workers:     cfg.Workers,
		PinCPUs:     cfg.PinCPUs,
	})
	r.rep.ChunksBuilt(reporter.ChunkPlanSummary{
		Scenes:      len(scenes),
		Chunks:      len(chunks),
		TotalFrames: totalFrames,
		Zones:       len(zones),
	})

	indices := make([]int, len(chunks))
	for i, ch := range chunks {
		indices[i] = ch.Idx
	}
	led := ledger.New(indices)

	pending := chunks
	if cfg.Resume {
		pending, err = r.seedResume(chunks, led, workDir)
		if err != nil {
			return nil, err
		}
	}

	tracker := tq.NewTracker()
	run := func(ctx context.Context, ch chunk.Chunk, slot pool.Slot) (*pool.Completion, error) {
		if cfg.Target == nil {
			return r.encodeDirect(ctx, ch, slot, workDir)
		}
		return r.encodeTargeted(ctx, ch, slot, workDir, tracker)
	}

	p := pool.New(pool.Config{
		Workers:      cfg.Workers,
		RetryCeiling: cfg.RetryCeiling,
		FailFast:     cfg.FailFast,
		PinCPUs:      cfg.PinCPUs,
	}, pending, led, run)
	p.OnChunkDone = func(ch chunk.Chunk, c pool.Completion) {
		if err := chunk.AppendDone(chunk.DoneRecord{
			Idx:         ch.Idx,
			Frames:      c.Frames,
			Size:        c.Bytes,
			Fingerprint: ch.Params.Fingerprint(),
			Warning:     c.Warning,
		}, workDir); err != nil {
			logging.Warn("failed to record completion", "chunk", ch.Idx, "error", err)
		}
		entry, _ := led.Get(ch.Idx)
		r.rep.ChunkFinished(reporter.ChunkResult{
			Index:       ch.Idx,
			Frames:      c.Frames,
			Bytes:       c.Bytes,
			Elapsed:     entry.Elapsed,
			SearchValue: c.SearchValue,
			Warning:     c.Warning,
		})
	}

	r.rep.EncodingStarted(totalFrames, p.Workers())
	stopProgress := r.pollProgress(chunks, led, started)
	abortErr := p.Run(ctx)
	stopProgress()

	res := r.collect(chunks, led, started)
	res.Cancelled = ctx.Err() != nil && abortErr == nil

	if abortErr != nil {
		r.reportOutcome(res)
		return res, abortErr
	}
	if res.Cancelled {
		logging.Info("run cancelled", "completed", res.Completed, "total", res.TotalChunks)
		r.reportOutcome(res)
		return res, nil
	}

	out, err := concat.AssembleFile(cfg.Output, workDir, chunks, led, concat.Options{
		AllowPartial: cfg.AllowPartial,
	})
	if err != nil {
		r.reportOutcome(res)
		return res, err
	}
	res.OutputPath = cfg.Output
	res.BytesWritten = out.BytesWritten
	res.Partial = len(out.Skipped) > 0
	res.Elapsed = time.Since(started)

	r.reportOutcome(res)
	return res, nil
}

// seedResume marks verified chunks from an earlier run Done and returns the
// chunks that still need encoding.
func (r *Runner) seedResume(chunks []chunk.Chunk, led *ledger.Ledger, workDir string) ([]chunk.Chunk, error) {
	done, err := chunk.LoadDone(workDir)
	if err != nil {
		return nil, err
	}
	valid := chunk.VerifyResume(done, chunks, workDir)

	var pending []chunk.Chunk
	var framesReused int
	for _, ch := range chunks {
		rec, ok := valid[ch.Idx]
		if !ok {
			pending = append(pending, ch)
			continue
		}
		led.SeedDone(ch.Idx, rec.Frames, rec.Size, rec.Warning)
		framesReused += rec.Frames
	}

	if len(valid) > 0 || len(done) > 0 {
		r.rep.Resumed(reporter.ResumeSummary{
			ChunksReused:   len(valid),
			FramesReused:   framesReused,
			ChunksRejected: len(done) - len(valid),
		})
		logging.Info("resuming from earlier run",
			"reused", len(valid), "rejected", len(done)-len(valid))
	}
	return pending, nil
}

// encodeDirect runs one fixed-parameter encode straight to the artifact path.
func (r *Runner) encodeDirect(ctx context.Context, ch chunk.Chunk, slot pool.Slot, workDir string) (*pool.Completion, error) {
	res, err := r.adapter.Encode(ctx, ch, ch.Params, chunk.ArtifactPath(workDir, ch.Idx), slot.CPUSet)
	if err != nil {
		return nil, err
	}
	return &pool.Completion{
		Frames: ch.Frames(),
		Bytes:  res.BytesWritten,
	}, nil
}

// encodeTargeted runs the quality search for one chunk and promotes the
// accepted probe to the artifact path.
func (r *Runner) encodeTargeted(ctx context.Context, ch chunk.Chunk, slot pool.Slot, workDir string, tracker *tq.Tracker) (*pool.Completion, error) {
	tgt := r.cfg.Target
	st := tq.NewState(tgt, tracker.Predict(ch.Idx))

	probe := func(ctx context.Context, value float64) (string, uint64, error) {
		path := chunk.ProbePath(workDir, ch.Idx, value)
		res, err := r.adapter.Encode(ctx, ch, ch.Params.WithSearchValue(value), path, slot.CPUSet)
		if err != nil {
			return "", 0, err
		}
		return path, res.BytesWritten, nil
	}
	measure := func(ctx context.Context, path string) (float64, error) {
		return r.measurer.Measure(ctx, path, ch.StartFrame, ch.EndFrame)
	}

	outcome, err := tq.Search(ctx, ch.Idx, tgt, st, probe, measure)
	if err != nil {
		return nil, err
	}

	artifact := chunk.ArtifactPath(workDir, ch.Idx)
	if err := os.Rename(outcome.Path, artifact); err != nil {
		return nil, errors.NewIOError("failed to promote accepted probe", err)
	}
	removeStaleProbes(workDir, ch.Idx)
	tracker.Record(ch.Idx, outcome.Value)

	return &pool.Completion{
		Frames:      ch.Frames(),
		Bytes:       outcome.Bytes,
		Warning:     outcome.Warning,
		SearchValue: outcome.Value,
	}, nil
}

// removeStaleProbes deletes the rejected probe encodes for a chunk.
func removeStaleProbes(workDir string, idx int) {
	pattern := filepath.Join(workDir, "probe", fmt.Sprintf("%05d_*.ivf", idx))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return
	}
	for _, m := range matches {
		_ = os.Remove(m)
	}
}

// pollProgress pushes ledger snapshots to the reporter until stopped.
func (r *Runner) pollProgress(chunks []chunk.Chunk, led *ledger.Ledger, started time.Time) func() {
	totalFrames := 0
	for _, ch := range chunks {
		totalFrames += ch.Frames()
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				r.rep.EncodingProgress(snapshotProgress(led, totalFrames, len(chunks), started))
			}
		}
	}()
	return func() {
		close(stop)
		<-done
	}
}

func snapshotProgress(led *ledger.Ledger, totalFrames, totalChunks int, started time.Time) reporter.ProgressSnapshot {
	var framesDone int
	var chunksDone, chunksFailed int
	for _, e := range led.Snapshot() {
		switch e.Status {
		case ledger.Done:
			framesDone += e.Frames
			chunksDone++
		case ledger.Failed:
			if !e.Retryable {
				chunksFailed++
			}
		}
	}

	elapsed := time.Since(started)
	var fps float32
	var eta time.Duration
	if elapsed > 0 && framesDone > 0 {
		fps = float32(float64(framesDone) / elapsed.Seconds())
		remaining := totalFrames - framesDone
		eta = time.Duration(float64(remaining) / float64(fps) * float64(time.Second))
	}

	var percent float32
	if totalFrames > 0 {
		percent = float32(framesDone) / float32(totalFrames) * 100
	}
	return reporter.ProgressSnapshot{
		FramesDone:   uint64(framesDone),
		TotalFrames:  uint64(totalFrames),
		Percent:      percent,
		FPS:          fps,
		ETA:          eta,
		ChunksDone:   chunksDone,
		ChunksFailed: chunksFailed,
		ChunksTotal:  totalChunks,
	}
}

// collect builds the RunResult from the ledger's final state.
func (r *Runner) collect(chunks []chunk.Chunk, led *ledger.Ledger, started time.Time) *RunResult {
	res := &RunResult{
		TotalChunks: len(chunks),
		Elapsed:     time.Since(started),
	}
	for _, ch := range chunks {
		entry, ok := led.Get(ch.Idx)
		if !ok {
			continue
		}
		switch entry.Status {
		case ledger.Done:
			res.Completed++
			res.FramesEncoded += entry.Frames
		case ledger.Failed:
			res.Failed = append(res.Failed, ChunkFailure{
				Index:    ch.Idx,
				Attempts: entry.Attempts,
				Err:      entry.Err,
			})
		}
	}
	return res
}

func (r *Runner) reportOutcome(res *RunResult) {
	var fps float32
	if res.Elapsed > 0 {
		fps = float32(float64(res.FramesEncoded) / res.Elapsed.Seconds())
	}
	r.rep.RunComplete(reporter.RunOutcome{
		OutputFile:   res.OutputPath,
		ChunksDone:   res.Completed,
		ChunksFailed: len(res.Failed),
		ChunksTotal:  res.TotalChunks,
		BytesWritten: res.BytesWritten,
		TotalTime:    res.Elapsed,
		AverageFPS:   fps,
		Partial:      res.Partial,
		Cancelled:    res.Cancelled,
	})
}

func describeTarget(t *tq.Target) string {
	if t == nil {
		return ""
	}
	return fmt.Sprintf("%s %.1f±%.1f in [%g, %g]",
		t.Metric, t.Score, t.Tolerance, t.BoundMin, t.BoundMax)
}
