package encoder

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/emrakyz/Av1an/internal/errors"
)

// FFmpegSource decodes a frame range of the input file to a raw y4m stream by
// spawning an ffmpeg process per request. The select filter picks the chunk's
// frames by index, so ranges are exact regardless of keyframe placement.
type FFmpegSource struct {
	Input string
	// Filter is an optional extra video filter (crop and the like) applied
	// before frame selection.
	Filter string
}

// Open starts the decode pipe for [startFrame, endFrame). The returned reader
// closes the underlying process when closed; cancelling ctx kills it.
func (s *FFmpegSource) Open(ctx context.Context, startFrame, endFrame uint64) (io.ReadCloser, error) {
	filter := fmt.Sprintf("select=between(n\\,%d\\,%d),setpts=N/FRAME_RATE/TB", startFrame, endFrame-1)
	if s.Filter != "" {
		filter = s.Filter + "," + filter
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", s.Input,
		"-vf", filter,
		"-pix_fmt", "yuv420p10le",
		"-strict", "-1",
		"-f", "yuv4mpegpipe", "-",
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.WaitDelay = 5 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.NewSpawnError("ffmpeg", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.NewSpawnError("ffmpeg", err)
	}

	return &pipeReader{reader: stdout, cmd: cmd}, nil
}

// pipeReader couples a process stdout with process teardown. Close reaps the
// child even when the consumer stopped reading early.
type pipeReader struct {
	reader io.ReadCloser
	cmd    *exec.Cmd
}

func (p *pipeReader) Read(b []byte) (int, error) {
	return p.reader.Read(b)
}

func (p *pipeReader) Close() error {
	_ = p.reader.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	return p.cmd.Wait()
}
