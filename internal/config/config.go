// Package config provides configuration types and defaults for the
// encoding run.
package config

import (
	"fmt"

	"github.com/emrakyz/Av1an/internal/params"
	"github.com/emrakyz/Av1an/internal/tq"
)

// Default constants
const (
	// DefaultRetryCeiling is how many re-attempts a transiently failed
	// chunk gets beyond its first try.
	DefaultRetryCeiling = 3

	// DefaultMinChunkFrames is the shortest chunk emitted before an
	// undersized scene is merged into a neighbor.
	DefaultMinChunkFrames = 24

	// DefaultEncoderBin is the encoder executable invoked per chunk.
	DefaultEncoderBin = "SvtAv1EncApp"

	// DefaultSearchParam is the quantizer flag driven by the quality search.
	DefaultSearchParam = "--crf"

	// DefaultSearchValue is the quantizer used when no quality target is set.
	DefaultSearchValue = 27
)

// Config holds all configuration for an encoding run.
type Config struct {
	// Input/output paths
	Input   string
	Output  string
	WorkDir string // Scratch space; defaults beside Output
	LogDir  string

	// Scene inputs
	TotalFrames uint64 // Frame count of the input
	ScenesFile  string // One frame index per line
	ZonesFile   string // Optional YAML zone overrides

	// Encoder invocation
	EncoderBin  string
	EncoderArgs map[string]string // Base flags merged under zone patches

	// Quality search; nil means fixed-quantizer encoding
	Target *tq.Target

	// Scheduling options
	Workers        int // 0 auto-detects from logical cores
	RetryCeiling   int
	FailFast       bool
	AllowPartial   bool
	PinCPUs        bool
	MinChunkFrames int

	// Resume from an earlier interrupted run's records
	Resume bool
}

// New creates a Config with default values.
func New(input, output string) *Config {
	return &Config{
		Input:          input,
		Output:         output,
		EncoderBin:     DefaultEncoderBin,
		RetryCeiling:   DefaultRetryCeiling,
		MinChunkFrames: DefaultMinChunkFrames,
		PinCPUs:        true,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Input == "" {
		return ErrMissingInput
	}
	if c.Output == "" {
		return ErrMissingOutput
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidWorkers, c.Workers)
	}
	if c.RetryCeiling < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidRetryCeiling, c.RetryCeiling)
	}
	if c.MinChunkFrames < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidMinChunkFrames, c.MinChunkFrames)
	}
	if c.Target != nil {
		if err := c.Target.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTarget, err)
		}
	}
	return nil
}

// BaseParams returns the parameter set every chunk starts from, before zone
// patches and quality-search mutation.
func (c *Config) BaseParams() params.Set {
	base := params.New(c.EncoderArgs)
	base.SearchName = DefaultSearchParam
	base.SearchValue = DefaultSearchValue
	if c.Target != nil {
		base.SearchValue = (c.Target.BoundMin + c.Target.BoundMax) / 2
	}
	return base
}

// EffectiveWorkDir returns the scratch directory, defaulting beside the
// output file.
func (c *Config) EffectiveWorkDir() string {
	if c.WorkDir != "" {
		return c.WorkDir
	}
	return c.Output + ".work"
}
