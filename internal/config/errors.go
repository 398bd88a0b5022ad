package config

import "errors"

// Sentinel errors for configuration validation.
var (
	// ErrMissingInput indicates no input path was provided.
	ErrMissingInput = errors.New("input path required")

	// ErrMissingOutput indicates no output path was provided.
	ErrMissingOutput = errors.New("output path required")

	// ErrInvalidWorkers indicates a negative worker count.
	ErrInvalidWorkers = errors.New("worker count out of range")

	// ErrInvalidRetryCeiling indicates a negative retry ceiling.
	ErrInvalidRetryCeiling = errors.New("retry ceiling out of range")

	// ErrInvalidMinChunkFrames indicates a non-positive minimum chunk length.
	ErrInvalidMinChunkFrames = errors.New("minimum chunk frames out of range")

	// ErrInvalidTarget indicates an unusable quality target.
	ErrInvalidTarget = errors.New("quality target invalid")

	// ErrInvalidZone indicates an unusable zones file entry.
	ErrInvalidZone = errors.New("zone definition invalid")
)
