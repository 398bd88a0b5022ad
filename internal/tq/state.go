package tq

import "math"

// Trial records one encode-and-measure attempt at a parameter value.
type Trial struct {
	Value float64
	Score float64
	Path  string
	Bytes uint64
}

// State tracks the iterative search bracket for a single chunk. The bracket
// endpoints are the only thing narrowing moves; no running averages, so the
// search cannot oscillate.
type State struct {
	Trials []Trial

	// SearchMin and SearchMax are the current bracket.
	SearchMin float64
	SearchMax float64

	// Iteration counts consumed encode attempts, including discarded ones.
	Iteration int

	target *Target
}

// NewState creates search state for a chunk. A predicted value from nearby
// completed chunks narrows the initial bracket around the prediction; zero
// means no prediction and the full bounds are used.
func NewState(tgt *Target, predicted float64) *State {
	searchMin := tgt.BoundMin
	searchMax := tgt.BoundMax

	if predicted > 0 {
		window := 5 * tgt.Step
		searchMin = math.Max(tgt.BoundMin, predicted-window)
		searchMax = math.Min(tgt.BoundMax, predicted+window)
	}

	return &State{
		Trials:    make([]Trial, 0, 8),
		SearchMin: searchMin,
		SearchMax: searchMax,
		target:    tgt,
	}
}

// NextValue returns the bracket midpoint quantized to the search step and
// clamped to the bracket.
func (s *State) NextValue() float64 {
	mid := (s.SearchMin + s.SearchMax) / 2
	step := s.target.Step
	quantized := math.Round(mid/step) * step
	return clamp(quantized, s.SearchMin, s.SearchMax)
}

// Probed reports whether value was already trialled.
func (s *State) Probed(value float64) bool {
	for _, tr := range s.Trials {
		if tr.Value == value {
			return true
		}
	}
	return false
}

// AddTrial records a completed trial.
func (s *State) AddTrial(tr Trial) {
	s.Trials = append(s.Trials, tr)
}

// BestTrial returns the trial whose score is closest to the target, or nil
// if no trial produced a measurement.
func (s *State) BestTrial() *Trial {
	if len(s.Trials) == 0 {
		return nil
	}

	best := &s.Trials[0]
	bestDiff := math.Abs(best.Score - s.target.Score)
	for i := 1; i < len(s.Trials); i++ {
		diff := math.Abs(s.Trials[i].Score - s.target.Score)
		if diff < bestDiff {
			best = &s.Trials[i]
			bestDiff = diff
		}
	}
	return best
}

// Narrow moves the bracket toward the side consistent with the metric's
// direction: the score falls as the parameter rises, so a low score pulls the
// upper endpoint down and a high score pushes the lower endpoint up.
// Returns true when the bracket has crossed and no untried value remains.
func (s *State) Narrow(value, score float64) bool {
	tgt := s.target
	if score < tgt.Score-tgt.Tolerance {
		s.SearchMax = value - tgt.Step
	} else if score > tgt.Score+tgt.Tolerance {
		s.SearchMin = value + tgt.Step
	}
	return s.SearchMin > s.SearchMax
}

// Converged checks if the score is within tolerance of the target.
func (s *State) Converged(score float64) bool {
	return math.Abs(score-s.target.Score) <= s.target.Tolerance
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
