package tq

import (
	"context"
	"fmt"

	"github.com/emrakyz/Av1an/internal/errors"
	"github.com/emrakyz/Av1an/internal/logging"
	"github.com/emrakyz/Av1an/internal/metric"
)

// ProbeFunc encodes the chunk at the given parameter value and returns the
// artifact path and its size.
type ProbeFunc func(ctx context.Context, value float64) (path string, bytes uint64, err error)

// MeasureFunc scores an encoded artifact against the source frames.
type MeasureFunc func(ctx context.Context, path string) (float64, error)

// Outcome is the accepted result of a quality search.
type Outcome struct {
	Value     float64
	Score     float64
	Path      string
	Bytes     uint64
	Converged bool
	Trials    int

	// Warning is set when the search accepted a best-effort trial instead of
	// converging. The chunk is still Done; a usable encode exists.
	Warning string
}

// Search runs the bounded bisection for one chunk. At most
// tgt.MaxIterations encode attempts are made; measurement failures consume an
// iteration without narrowing the bracket. If every attempt fails to
// measure, the search errors as unmeasurable and the chunk fails terminally.
func Search(ctx context.Context, chunkIdx int, tgt *Target, st *State, probe ProbeFunc, measure MeasureFunc) (*Outcome, error) {
	for st.Iteration < tgt.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelledError()
		}

		value := st.NextValue()
		if st.Probed(value) {
			// The bracket has pinched onto an already-trialled value.
			break
		}

		st.Iteration++

		path, size, err := probe(ctx, value)
		if err != nil {
			return nil, err
		}

		score, err := measure(ctx, path)
		if err != nil {
			if errors.IsCancelled(err) {
				return nil, err
			}
			if metric.IsMeasurementError(err) {
				// Discard the trial; it consumes the iteration budget but
				// must not narrow the bracket.
				logging.Warn("quality probe unmeasurable",
					"chunk", chunkIdx, "value", value, "error", err)
				continue
			}
			return nil, err
		}

		st.AddTrial(Trial{Value: value, Score: score, Path: path, Bytes: size})
		logging.Debug("quality probe",
			"chunk", chunkIdx, "value", value, "score", score, "iteration", st.Iteration)

		if st.Converged(score) {
			return &Outcome{
				Value:     value,
				Score:     score,
				Path:      path,
				Bytes:     size,
				Converged: true,
				Trials:    len(st.Trials),
			}, nil
		}

		if st.Narrow(value, score) {
			// Bracket crossed: no untried value can do better.
			break
		}
	}

	best := st.BestTrial()
	if best == nil {
		return nil, errors.NewUnmeasurableError(chunkIdx, st.Iteration)
	}

	return &Outcome{
		Value:  best.Value,
		Score:  best.Score,
		Path:   best.Path,
		Bytes:  best.Bytes,
		Trials: len(st.Trials),
		Warning: fmt.Sprintf("quality search did not converge after %d trials; accepted %v (score %.2f, target %.2f)",
			len(st.Trials), best.Value, best.Score, tgt.Score),
	}, nil
}
