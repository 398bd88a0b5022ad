package av1an

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/emrakyz/Av1an/internal/chunk"
	"github.com/emrakyz/Av1an/internal/config"
	"github.com/emrakyz/Av1an/internal/encoder"
	"github.com/emrakyz/Av1an/internal/errors"
	"github.com/emrakyz/Av1an/internal/metric"
	"github.com/emrakyz/Av1an/internal/params"
	"github.com/emrakyz/Av1an/internal/scene"
	"github.com/emrakyz/Av1an/internal/tq"
)

// fakeAdapter writes one byte per frame to the output path. FailFor makes
// specific chunk indices fail transiently for the first N attempts.
type fakeAdapter struct {
	mu       sync.Mutex
	attempts map[int]int
	failFor  map[int]int
	calls    atomic.Int64
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{attempts: map[int]int{}, failFor: map[int]int{}}
}

func (a *fakeAdapter) Encode(ctx context.Context, ch chunk.Chunk, p params.Set, outPath string, cpus []int) (*encoder.Result, error) {
	a.calls.Add(1)
	a.mu.Lock()
	a.attempts[ch.Idx]++
	n := a.attempts[ch.Idx]
	limit := a.failFor[ch.Idx]
	a.mu.Unlock()

	if n <= limit {
		return nil, errors.NewCrashError("fake-encoder", 1, "synthetic crash")
	}

	payload := make([]byte, ch.Frames())
	for i := range payload {
		payload[i] = byte(ch.Idx)
	}
	if err := os.WriteFile(outPath, payload, 0o644); err != nil {
		return nil, err
	}
	return &encoder.Result{BytesWritten: uint64(len(payload))}, nil
}

// pathMeasurer derives a score from the quantizer value embedded in the probe
// filename, simulating a monotonically decreasing quality curve.
type pathMeasurer struct{}

func (pathMeasurer) Measure(ctx context.Context, encodedPath string, startFrame, endFrame uint64) (float64, error) {
	base := strings.TrimSuffix(filepath.Base(encodedPath), ".ivf")
	parts := strings.SplitN(base, "_", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("no value in probe path %q", encodedPath)
	}
	value, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, err
	}
	return 100 - value, nil
}

func testConfig(t *testing.T, totalFrames uint64) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.New(filepath.Join(dir, "in.mkv"), filepath.Join(dir, "out.ivf"))
	cfg.WorkDir = filepath.Join(dir, "work")
	cfg.TotalFrames = totalFrames
	cfg.PinCPUs = false
	return cfg
}

// tenScenes returns cut points producing ten 100-frame scenes.
func tenScenes(t *testing.T) []scene.Scene {
	t.Helper()
	cuts := []uint64{100, 200, 300, 400, 500, 600, 700, 800, 900}
	scenes, err := scene.FromCuts(cuts, 1000)
	if err != nil {
		t.Fatal(err)
	}
	return scenes
}

func TestRunEncodesAllScenes(t *testing.T) {
	cfg := testConfig(t, 1000)
	cfg.Workers = 3

	adapter := newFakeAdapter()
	runner, err := New(cfg, WithAdapter(adapter))
	if err != nil {
		t.Fatal(err)
	}

	res, err := runner.Run(context.Background(), tenScenes(t), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Success() {
		t.Fatalf("result = %+v, want success", res)
	}
	if res.Completed != 10 || res.FramesEncoded != 1000 {
		t.Errorf("completed = %d frames = %d, want 10/1000", res.Completed, res.FramesEncoded)
	}

	out, err := os.ReadFile(cfg.Output)
	if err != nil {
		t.Fatal(err)
	}
	// One byte per frame, chunks in index order.
	if len(out) != 1000 {
		t.Fatalf("output length = %d, want 1000", len(out))
	}
	for i, b := range out {
		if want := byte(i / 100); b != want {
			t.Fatalf("byte %d = %d, want %d: chunks out of order", i, b, want)
		}
	}
}

func TestRunRetryCeilingDecidesOutcome(t *testing.T) {
	cases := []struct {
		name     string
		failures int
		ceiling  int
		wantOK   bool
	}{
		{"recovers within ceiling", 4, 4, true},
		{"exceeds ceiling", 4, 3, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t, 1000)
			cfg.Workers = 2
			cfg.RetryCeiling = tc.ceiling

			adapter := newFakeAdapter()
			adapter.failFor[4] = tc.failures

			runner, err := New(cfg, WithAdapter(adapter))
			if err != nil {
				t.Fatal(err)
			}

			res, err := runner.Run(context.Background(), tenScenes(t), nil)
			if tc.wantOK {
				if err != nil || !res.Success() {
					t.Fatalf("Run = %+v, %v, want success", res, err)
				}
				return
			}

			if err == nil {
				t.Fatal("Run succeeded, want assembly refusal")
			}
			if !errors.IsKind(err, errors.KindConcat) {
				t.Errorf("error = %v, want concat kind", err)
			}
			if len(res.Failed) != 1 || res.Failed[0].Index != 4 {
				t.Errorf("Failed = %+v, want chunk 4", res.Failed)
			}
			if res.Completed != 9 {
				t.Errorf("Completed = %d, want 9", res.Completed)
			}
		})
	}
}

func TestRunPartialOutputSkipsFailed(t *testing.T) {
	cfg := testConfig(t, 1000)
	cfg.Workers = 2
	cfg.RetryCeiling = 0
	cfg.AllowPartial = true

	adapter := newFakeAdapter()
	adapter.failFor[4] = 100 // never recovers

	runner, err := New(cfg, WithAdapter(adapter))
	if err != nil {
		t.Fatal(err)
	}

	res, err := runner.Run(context.Background(), tenScenes(t), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Partial {
		t.Error("result not marked partial")
	}
	out, err := os.ReadFile(cfg.Output)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 900 {
		t.Errorf("output length = %d, want 900 (chunk 4 skipped)", len(out))
	}
}

func TestRunCancellationKeepsProgress(t *testing.T) {
	cfg := testConfig(t, 1000)
	cfg.Workers = 1

	ctx, cancel := context.WithCancel(context.Background())

	adapter := newFakeAdapter()
	runner, err := New(cfg, WithAdapter(adapter))
	if err != nil {
		t.Fatal(err)
	}

	// Wrap the adapter so the second chunk triggers cancellation.
	runner.adapter = adapterFunc(func(ctx context.Context, ch chunk.Chunk, p params.Set, outPath string, cpus []int) (*encoder.Result, error) {
		if ch.Idx >= 1 {
			cancel()
			return nil, errors.NewCancelledError()
		}
		return adapter.Encode(ctx, ch, p, outPath, cpus)
	})

	res, err := runner.Run(ctx, tenScenes(t), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Cancelled {
		t.Error("result not marked cancelled")
	}
	if res.Completed != 1 {
		t.Errorf("Completed = %d, want 1", res.Completed)
	}
	if _, serr := os.Stat(cfg.Output); !os.IsNotExist(serr) {
		t.Error("cancelled run assembled an output")
	}
	// The finished chunk's artifact survives for resume.
	if _, serr := os.Stat(chunk.ArtifactPath(cfg.EffectiveWorkDir(), 0)); serr != nil {
		t.Errorf("completed artifact missing: %v", serr)
	}
}

type adapterFunc func(ctx context.Context, ch chunk.Chunk, p params.Set, outPath string, cpus []int) (*encoder.Result, error)

func (f adapterFunc) Encode(ctx context.Context, ch chunk.Chunk, p params.Set, outPath string, cpus []int) (*encoder.Result, error) {
	return f(ctx, ch, p, outPath, cpus)
}

func TestRunResumeSkipsVerifiedChunks(t *testing.T) {
	cfg := testConfig(t, 1000)
	cfg.Workers = 2
	cfg.Resume = true

	adapter := newFakeAdapter()
	runner, err := New(cfg, WithAdapter(adapter))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := runner.Run(context.Background(), tenScenes(t), nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstCalls := adapter.calls.Load()
	if firstCalls != 10 {
		t.Fatalf("first run calls = %d, want 10", firstCalls)
	}

	// Re-run over the same work directory: everything verifies, nothing
	// re-encodes.
	runner2, err := New(cfg, WithAdapter(adapter))
	if err != nil {
		t.Fatal(err)
	}
	res, err := runner2.Run(context.Background(), tenScenes(t), nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !res.Success() {
		t.Fatalf("second run result = %+v", res)
	}
	if got := adapter.calls.Load(); got != firstCalls {
		t.Errorf("second run re-encoded %d chunks", got-firstCalls)
	}
}

func TestRunResumeReencodesOnParamChange(t *testing.T) {
	cfg := testConfig(t, 1000)
	cfg.Workers = 2
	cfg.Resume = true

	adapter := newFakeAdapter()
	runner, err := New(cfg, WithAdapter(adapter))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := runner.Run(context.Background(), tenScenes(t), nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstCalls := adapter.calls.Load()

	// Different encoder flags invalidate every fingerprint.
	cfg.EncoderArgs = map[string]string{"--preset": "2"}
	runner2, err := New(cfg, WithAdapter(adapter))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := runner2.Run(context.Background(), tenScenes(t), nil); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := adapter.calls.Load() - firstCalls; got != 10 {
		t.Errorf("re-encoded %d chunks after param change, want 10", got)
	}
}

func TestRunTargetQualityPromotesAcceptedProbe(t *testing.T) {
	cfg := testConfig(t, 1000)
	cfg.Workers = 2
	cfg.Target = &tq.Target{
		Metric:        metric.VMAF,
		Score:         70,
		Tolerance:     1,
		BoundMin:      8,
		BoundMax:      48,
		Step:          1,
		MaxIterations: 10,
	}

	adapter := newFakeAdapter()
	runner, err := New(cfg, WithAdapter(adapter), WithMeasurer(pathMeasurer{}))
	if err != nil {
		t.Fatal(err)
	}

	res, err := runner.Run(context.Background(), tenScenes(t), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Success() {
		t.Fatalf("result = %+v, want success", res)
	}

	workDir := cfg.EffectiveWorkDir()
	for i := 0; i < 10; i++ {
		if _, serr := os.Stat(chunk.ArtifactPath(workDir, i)); serr != nil {
			t.Errorf("chunk %d artifact missing after search: %v", i, serr)
		}
	}
	// Rejected probes are cleaned up after promotion.
	leftovers, err := filepath.Glob(filepath.Join(workDir, "probe", "*.ivf"))
	if err != nil {
		t.Fatal(err)
	}
	if len(leftovers) != 0 {
		t.Errorf("stale probes left behind: %v", leftovers)
	}
}

func TestRunZoneOverridesSurviveChunking(t *testing.T) {
	cfg := testConfig(t, 1000)
	cfg.Workers = 2

	var mu sync.Mutex
	seen := map[int]string{}
	runner, err := New(cfg, WithAdapter(adapterFunc(
		func(ctx context.Context, ch chunk.Chunk, p params.Set, outPath string, cpus []int) (*encoder.Result, error) {
			mu.Lock()
			seen[ch.Idx] = p.Flags["--preset"]
			mu.Unlock()
			payload := make([]byte, ch.Frames())
			if err := os.WriteFile(outPath, payload, 0o644); err != nil {
				return nil, err
			}
			return &encoder.Result{BytesWritten: uint64(len(payload))}, nil
		})))
	if err != nil {
		t.Fatal(err)
	}

	zones := []scene.Zone{{
		StartFrame: 200,
		EndFrame:   400,
		Patch:      params.New(map[string]string{"--preset": "2"}),
	}}
	res, err := runner.Run(context.Background(), tenScenes(t), zones)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Success() {
		t.Fatalf("result = %+v", res)
	}

	for idx, preset := range seen {
		zoned := idx == 2 || idx == 3
		if zoned && preset != "2" {
			t.Errorf("chunk %d preset = %q, want zone override", idx, preset)
		}
		if !zoned && preset == "2" {
			t.Errorf("chunk %d unexpectedly zoned", idx)
		}
	}
}
