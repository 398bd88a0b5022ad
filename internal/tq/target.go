// Package tq implements the per-chunk quality search: a bounded bisection
// over one encoder parameter against a perceptual metric target.
package tq

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/emrakyz/Av1an/internal/errors"
	"github.com/emrakyz/Av1an/internal/metric"
)

// Target holds the quality goal attached to a run.
type Target struct {
	// Metric selects the perceptual metric.
	Metric metric.Kind

	// Score is the desired metric score and Tolerance the acceptable
	// distance from it.
	Score     float64
	Tolerance float64

	// BoundMin and BoundMax are the hard search bounds for the parameter.
	BoundMin float64
	BoundMax float64

	// Step quantizes probed parameter values (1 for integer quantizers).
	Step float64

	// MaxIterations caps encode attempts per chunk.
	MaxIterations int
}

// DefaultTarget returns a Target with the usual quantizer bounds.
func DefaultTarget() *Target {
	return &Target{
		Metric:        metric.VMAF,
		BoundMin:      8,
		BoundMax:      48,
		Step:          1,
		MaxIterations: 10,
	}
}

// Validate checks the target for configuration errors before any work starts.
func (t *Target) Validate() error {
	if t.BoundMin >= t.BoundMax {
		return errors.NewConfigError(
			fmt.Sprintf("search bound min (%v) must be less than max (%v)", t.BoundMin, t.BoundMax))
	}
	if t.Tolerance <= 0 {
		return errors.NewConfigError("quality tolerance must be positive")
	}
	if t.Step <= 0 {
		return errors.NewConfigError("search step must be positive")
	}
	if t.MaxIterations < 1 {
		return errors.NewConfigError("quality search needs at least one iteration")
	}
	return nil
}

// ParseTargetRange parses a quality range string (e.g. "70-75") into a score
// midpoint and tolerance.
func ParseTargetRange(s string) (score, tolerance float64, err error) {
	minVal, maxVal, err := parseRange(s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid target quality %q: %w", s, err)
	}
	return (minVal + maxVal) / 2, (maxVal - minVal) / 2, nil
}

// ParseBounds parses a parameter search range string (e.g. "8-48").
func ParseBounds(s string) (min, max float64, err error) {
	min, max, err = parseRange(s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid search bounds %q: %w", s, err)
	}
	return min, max, nil
}

func parseRange(s string) (min, max float64, err error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected 'min-max'")
	}
	min, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, err
	}
	max, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, err
	}
	if min >= max {
		return 0, 0, fmt.Errorf("min (%v) must be less than max (%v)", min, max)
	}
	return min, max, nil
}
