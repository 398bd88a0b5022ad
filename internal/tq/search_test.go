package tq

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/emrakyz/Av1an/internal/errors"
	"github.com/emrakyz/Av1an/internal/metric"
)

// syntheticProbe fabricates an artifact path per value without encoding.
func syntheticProbe(t *testing.T) ProbeFunc {
	t.Helper()
	return func(_ context.Context, value float64) (string, uint64, error) {
		return fmt.Sprintf("/tmp/probe_%v.ivf", value), 1000, nil
	}
}

// linearMetric maps a probe path back to its value and returns a score that
// falls linearly as the parameter rises, like a real quantizer.
func linearMetric(t *testing.T) MeasureFunc {
	t.Helper()
	return func(_ context.Context, path string) (float64, error) {
		var value float64
		if n, _ := fmt.Sscanf(path, "/tmp/probe_%f.ivf", &value); n != 1 {
			t.Fatalf("bad probe path %q", path)
		}
		return 100 - value*1.5, nil
	}
}

func testTarget() *Target {
	return &Target{
		Metric:        metric.VMAF,
		Score:         70,
		Tolerance:     1,
		BoundMin:      8,
		BoundMax:      48,
		Step:          1,
		MaxIterations: 10,
	}
}

func TestSearchConverges(t *testing.T) {
	tgt := testTarget()
	st := NewState(tgt, 0)

	out, err := Search(context.Background(), 0, tgt, st, syntheticProbe(t), linearMetric(t))
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if !out.Converged {
		t.Errorf("search did not converge: %+v", out)
	}
	if math.Abs(out.Score-tgt.Score) > tgt.Tolerance {
		t.Errorf("score %v outside tolerance of target %v", out.Score, tgt.Score)
	}
	if out.Warning != "" {
		t.Errorf("converged outcome should carry no warning, got %q", out.Warning)
	}

	// Bisection bound: ceil(log2(range/step)) iterations suffice for a
	// clean monotonic metric.
	bound := int(math.Ceil(math.Log2((tgt.BoundMax - tgt.BoundMin) / tgt.Step)))
	if out.Trials > bound {
		t.Errorf("took %d trials, bisection bound is %d", out.Trials, bound)
	}
	if out.Trials > tgt.MaxIterations {
		t.Errorf("took %d trials, exceeding max iterations %d", out.Trials, tgt.MaxIterations)
	}
}

func TestSearchFirstTrialShortCircuits(t *testing.T) {
	tgt := testTarget()
	st := NewState(tgt, 0)

	probes := 0
	probe := func(_ context.Context, value float64) (string, uint64, error) {
		probes++
		return "/tmp/p.ivf", 10, nil
	}
	measure := func(_ context.Context, _ string) (float64, error) {
		return tgt.Score, nil // already on target
	}

	out, err := Search(context.Background(), 0, tgt, st, probe, measure)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if probes != 1 {
		t.Errorf("probes = %d, want 1 (first satisfied trial short-circuits)", probes)
	}
	if !out.Converged || out.Trials != 1 {
		t.Errorf("outcome = %+v, want converged in 1 trial", out)
	}
}

func TestSearchAcceptsBestOnExhaustion(t *testing.T) {
	tgt := testTarget()
	tgt.MaxIterations = 3
	tgt.Tolerance = 0.1
	st := NewState(tgt, 0)

	// An offset metric whose integer-step scores never land inside the
	// tight tolerance window.
	measure := func(_ context.Context, path string) (float64, error) {
		var value float64
		_, _ = fmt.Sscanf(path, "/tmp/probe_%f.ivf", &value)
		return 100 - value*1.5 + 0.3, nil
	}

	out, err := Search(context.Background(), 0, tgt, st, syntheticProbe(t), measure)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if out.Converged {
		t.Error("outcome should not be marked converged")
	}
	if out.Warning == "" {
		t.Error("best-effort outcome must carry a warning")
	}
	if out.Trials != 3 {
		t.Errorf("trials = %d, want 3", out.Trials)
	}

	// The accepted trial must be the one closest to target.
	bestDiff := math.Abs(out.Score - tgt.Score)
	for _, tr := range st.Trials {
		if math.Abs(tr.Score-tgt.Score) < bestDiff {
			t.Errorf("trial at %v (score %v) beats accepted %v (score %v)",
				tr.Value, tr.Score, out.Value, out.Score)
		}
	}
}

func TestSearchMeasurementFailuresConsumeIterations(t *testing.T) {
	tgt := testTarget()
	tgt.MaxIterations = 4
	st := NewState(tgt, 0)

	calls := 0
	measure := func(_ context.Context, path string) (float64, error) {
		calls++
		if calls <= 2 {
			return 0, &metric.MeasurementError{Underlying: fmt.Errorf("decoder crashed")}
		}
		return linearMetric(t)(context.Background(), path)
	}

	out, err := Search(context.Background(), 0, tgt, st, syntheticProbe(t), measure)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	// Two iterations were burned by failed measurements; the bracket was not
	// narrowed by them, so the first successful trial probes the same
	// midpoint again and the budget only leaves 4-2=2 scoring trials.
	if out.Trials > 2 {
		t.Errorf("trials = %d, want at most 2 after two discarded iterations", out.Trials)
	}
	if st.Iteration > tgt.MaxIterations {
		t.Errorf("iterations = %d, exceeding budget %d", st.Iteration, tgt.MaxIterations)
	}
}

func TestSearchAllMeasurementsFailUnmeasurable(t *testing.T) {
	tgt := testTarget()
	tgt.MaxIterations = 5
	st := NewState(tgt, 0)

	measure := func(_ context.Context, _ string) (float64, error) {
		return 0, &metric.MeasurementError{Underlying: fmt.Errorf("metric tool broken")}
	}

	_, err := Search(context.Background(), 0, tgt, st, syntheticProbe(t), measure)
	if !errors.IsKind(err, errors.KindUnmeasurable) {
		t.Errorf("expected unmeasurable error, got %v", err)
	}
	if st.Iteration != 5 {
		t.Errorf("iterations = %d, want full budget 5 consumed", st.Iteration)
	}
}

func TestSearchProbeErrorPropagates(t *testing.T) {
	tgt := testTarget()
	st := NewState(tgt, 0)

	probe := func(_ context.Context, _ float64) (string, uint64, error) {
		return "", 0, errors.NewCrashError("encoder", 139, "")
	}

	_, err := Search(context.Background(), 0, tgt, st, probe, linearMetric(t))
	if !errors.IsKind(err, errors.KindCrash) {
		t.Errorf("expected crash error to propagate, got %v", err)
	}
}

func TestSearchCancellation(t *testing.T) {
	tgt := testTarget()
	st := NewState(tgt, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Search(ctx, 0, tgt, st, syntheticProbe(t), linearMetric(t))
	if !errors.IsKind(err, errors.KindCancelled) {
		t.Errorf("expected cancellation error, got %v", err)
	}
}
