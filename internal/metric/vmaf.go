package metric

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/emrakyz/Av1an/internal/errors"
)

// MeasurementError wraps a failed metric run. The quality search treats it as
// a discarded trial, not a chunk failure.
type MeasurementError struct {
	Underlying error
}

func (e *MeasurementError) Error() string {
	return fmt.Sprintf("metric measurement failed: %v", e.Underlying)
}

func (e *MeasurementError) Unwrap() error {
	return e.Underlying
}

// IsMeasurementError reports whether err is a measurement failure.
func IsMeasurementError(err error) bool {
	var me *MeasurementError
	return stderrors.As(err, &me)
}

// Measurer scores an encoded chunk artifact against its source frames.
type Measurer interface {
	Measure(ctx context.Context, encodedPath string, startFrame, endFrame uint64) (float64, error)
}

// FFmpegVMAF measures VMAF through ffmpeg's libvmaf filter, writing a JSON
// log per probe and reading the pooled mean back out.
type FFmpegVMAF struct {
	// Reference is the source video file.
	Reference string
	// WorkDir holds per-probe log files.
	WorkDir string
	// Threads caps libvmaf worker threads, 0 for the filter default.
	Threads int
}

type vmafLog struct {
	PooledMetrics struct {
		VMAF struct {
			Mean float64 `json:"mean"`
		} `json:"vmaf"`
	} `json:"pooled_metrics"`
}

// Measure runs one measurement process for the artifact at encodedPath
// against the reference's [startFrame, endFrame) range.
func (m *FFmpegVMAF) Measure(ctx context.Context, encodedPath string, startFrame, endFrame uint64) (float64, error) {
	logPath := filepath.Join(m.WorkDir, fmt.Sprintf("vmaf_%d_%d.json", startFrame, endFrame))

	filter := fmt.Sprintf(
		"[1:v]select=between(n\\,%d\\,%d),setpts=N/FRAME_RATE/TB[ref];[0:v][ref]libvmaf=log_fmt=json:log_path=%s",
		startFrame, endFrame-1, logPath)
	if m.Threads > 0 {
		filter += fmt.Sprintf(":n_threads=%d", m.Threads)
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", encodedPath,
		"-i", m.Reference,
		"-lavfi", filter,
		"-f", "null", "-",
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.WaitDelay = 5 * time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, errors.NewCancelledError()
		}
		return 0, &MeasurementError{Underlying: errors.WrapExecError("ffmpeg", err, stderr.String())}
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		return 0, &MeasurementError{Underlying: err}
	}
	defer func() { _ = os.Remove(logPath) }()

	var parsed vmafLog
	if err := json.Unmarshal(data, &parsed); err != nil {
		return 0, &MeasurementError{Underlying: fmt.Errorf("failed to parse vmaf log: %w", err)}
	}

	return parsed.PooledMetrics.VMAF.Mean, nil
}
