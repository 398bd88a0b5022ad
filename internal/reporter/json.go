package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// JSONReporter outputs NDJSON events for machine consumers wrapping the CLI.
type JSONReporter struct {
	writer             io.Writer
	mu                 sync.Mutex
	lastProgressBucket int
}

// NewJSONReporter creates a new JSON reporter that writes to stdout.
func NewJSONReporter() *JSONReporter {
	return &JSONReporter{
		writer:             os.Stdout,
		lastProgressBucket: -1,
	}
}

// NewJSONReporterWithWriter creates a JSON reporter with a custom writer.
func NewJSONReporterWithWriter(w io.Writer) *JSONReporter {
	return &JSONReporter{
		writer:             w,
		lastProgressBucket: -1,
	}
}

func (r *JSONReporter) timestamp() int64 {
	return time.Now().Unix()
}

func (r *JSONReporter) write(v map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintln(r.writer, string(data))
}

func (r *JSONReporter) RunConfig(summary RunConfigSummary) {
	r.write(map[string]interface{}{
		"type":      "run_config",
		"input":     summary.InputFile,
		"output":    summary.OutputFile,
		"encoder":   summary.Encoder,
		"target":    summary.Target,
		"workers":   summary.Workers,
		"timestamp": r.timestamp(),
	})
}

func (r *JSONReporter) ChunksBuilt(summary ChunkPlanSummary) {
	r.write(map[string]interface{}{
		"type":         "chunk_plan",
		"scenes":       summary.Scenes,
		"chunks":       summary.Chunks,
		"total_frames": summary.TotalFrames,
		"zones":        summary.Zones,
		"timestamp":    r.timestamp(),
	})
}

func (r *JSONReporter) Resumed(summary ResumeSummary) {
	r.write(map[string]interface{}{
		"type":            "resumed",
		"chunks_reused":   summary.ChunksReused,
		"frames_reused":   summary.FramesReused,
		"chunks_rejected": summary.ChunksRejected,
		"timestamp":       r.timestamp(),
	})
}

func (r *JSONReporter) EncodingStarted(totalFrames uint64, workers int) {
	r.mu.Lock()
	r.lastProgressBucket = -1
	r.mu.Unlock()

	r.write(map[string]interface{}{
		"type":         "encoding_started",
		"total_frames": totalFrames,
		"workers":      workers,
		"timestamp":    r.timestamp(),
	})
}

func (r *JSONReporter) EncodingProgress(progress ProgressSnapshot) {
	// Emit at most one event per 5% bucket to keep the stream small.
	bucket := int(progress.Percent) / 5
	r.mu.Lock()
	if bucket == r.lastProgressBucket {
		r.mu.Unlock()
		return
	}
	r.lastProgressBucket = bucket
	r.mu.Unlock()

	r.write(map[string]interface{}{
		"type":          "progress",
		"frames_done":   progress.FramesDone,
		"total_frames":  progress.TotalFrames,
		"percent":       progress.Percent,
		"fps":           progress.FPS,
		"eta_seconds":   int64(progress.ETA.Seconds()),
		"chunks_done":   progress.ChunksDone,
		"chunks_failed": progress.ChunksFailed,
		"chunks_total":  progress.ChunksTotal,
		"timestamp":     r.timestamp(),
	})
}

func (r *JSONReporter) ChunkFinished(result ChunkResult) {
	event := map[string]interface{}{
		"type":            "chunk_finished",
		"index":           result.Index,
		"frames":          result.Frames,
		"bytes":           result.Bytes,
		"elapsed_seconds": result.Elapsed.Seconds(),
		"timestamp":       r.timestamp(),
	}
	if result.SearchValue != 0 {
		event["search_value"] = result.SearchValue
	}
	if result.Warning != "" {
		event["warning"] = result.Warning
	}
	r.write(event)
}

func (r *JSONReporter) RunComplete(summary RunOutcome) {
	r.write(map[string]interface{}{
		"type":          "run_complete",
		"output":        summary.OutputFile,
		"chunks_done":   summary.ChunksDone,
		"chunks_failed": summary.ChunksFailed,
		"chunks_total":  summary.ChunksTotal,
		"bytes_written": summary.BytesWritten,
		"total_seconds": summary.TotalTime.Seconds(),
		"average_fps":   summary.AverageFPS,
		"partial":       summary.Partial,
		"cancelled":     summary.Cancelled,
		"timestamp":     r.timestamp(),
	})
}

func (r *JSONReporter) Warning(message string) {
	r.write(map[string]interface{}{
		"type":      "warning",
		"message":   message,
		"timestamp": r.timestamp(),
	})
}

func (r *JSONReporter) Error(err ReporterError) {
	r.write(map[string]interface{}{
		"type":       "error",
		"title":      err.Title,
		"message":    err.Message,
		"context":    err.Context,
		"suggestion": err.Suggestion,
		"timestamp":  r.timestamp(),
	})
}
