// Package reporter provides progress reporting interfaces and implementations.
package reporter

import "time"

// RunConfigSummary describes the run before any work starts.
type RunConfigSummary struct {
	InputFile   string
	OutputFile  string
	Encoder     string
	EncoderArgs string
	Target      string // Empty when no quality search
	Workers     int
	PinCPUs     bool
}

// ChunkPlanSummary contains the derived chunk plan.
type ChunkPlanSummary struct {
	Scenes      int
	Chunks      int
	TotalFrames uint64
	Zones       int
}

// ResumeSummary contains how much of an earlier run was reused.
type ResumeSummary struct {
	ChunksReused   int
	FramesReused   int
	ChunksRejected int
}

// ProgressSnapshot contains encoding progress information.
type ProgressSnapshot struct {
	FramesDone   uint64
	TotalFrames  uint64
	Percent      float32
	FPS          float32
	ETA          time.Duration
	ChunksDone   int
	ChunksFailed int
	ChunksTotal  int
}

// ChunkResult contains one finished chunk.
type ChunkResult struct {
	Index       int
	Frames      int
	Bytes       uint64
	Elapsed     time.Duration
	SearchValue float64 // 0 when no quality search ran
	Warning     string
}

// RunOutcome contains final run results.
type RunOutcome struct {
	OutputFile   string
	ChunksDone   int
	ChunksFailed int
	ChunksTotal  int
	BytesWritten int64
	TotalTime    time.Duration
	AverageFPS   float32
	Partial      bool
	Cancelled    bool
}

// ReporterError contains error information.
type ReporterError struct {
	Title      string
	Message    string
	Context    string
	Suggestion string
}
