// Package encoder spawns one external encoder process per encode attempt and
// maps process failures to typed errors. It owns process lifecycle only;
// retry policy lives in the worker pool.
package encoder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/emrakyz/Av1an/internal/chunk"
	"github.com/emrakyz/Av1an/internal/errors"
	"github.com/emrakyz/Av1an/internal/logging"
	"github.com/emrakyz/Av1an/internal/params"
	"github.com/emrakyz/Av1an/internal/util"
)

// FrameSource yields the decoded frames for a chunk's frame range as a byte
// stream suitable for the encoder's stdin.
type FrameSource interface {
	Open(ctx context.Context, startFrame, endFrame uint64) (io.ReadCloser, error)
}

// Result describes a successful encode attempt.
type Result struct {
	BytesWritten uint64
	WallTime     time.Duration
}

// Adapter encodes one chunk attempt to a given artifact path.
type Adapter interface {
	Encode(ctx context.Context, ch chunk.Chunk, p params.Set, outPath string, cpus []int) (*Result, error)
}

// ProcessAdapter drives an external encoder binary that reads frames from
// stdin and writes the encoded bitstream to an output path argument.
type ProcessAdapter struct {
	// Bin is the encoder binary, e.g. "SvtAv1EncApp".
	Bin string

	// Source decodes chunk frame ranges.
	Source FrameSource

	// InputArgs are prepended plumbing flags, e.g. width/height/fps of the
	// raw stream. The stdin and output flags are appended by the adapter.
	InputArgs []string
}

// Encode launches exactly one encoder process for the chunk. The artifact at
// outPath is overwritten, never appended; a retry leaves no stale bytes
// behind. The process is guaranteed dead by the time Encode returns, on
// every path including cancellation.
func (a *ProcessAdapter) Encode(ctx context.Context, ch chunk.Chunk, p params.Set, outPath string, cpus []int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelledError()
	}

	if err := os.Remove(outPath); err != nil && !os.IsNotExist(err) {
		return nil, errors.NewIOError(fmt.Sprintf("failed to clear stale artifact %s", outPath), err)
	}

	frames, err := a.Source.Open(ctx, ch.StartFrame, ch.EndFrame)
	if err != nil {
		return nil, errors.NewIOError(fmt.Sprintf("failed to open frame source for %s", ch.Name()), err)
	}
	defer func() { _ = frames.Close() }()

	args := make([]string, 0, len(a.InputArgs)+len(p.Args())+4)
	args = append(args, a.InputArgs...)
	args = append(args, p.Args()...)
	args = append(args, "-i", "stdin", "-b", outPath)

	cmd := exec.CommandContext(ctx, a.Bin, args...)
	// Guarantee the child never outlives a cancelled context.
	cmd.WaitDelay = 5 * time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.NewSpawnError(a.Bin, err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, errors.NewSpawnError(a.Bin, err)
	}

	if len(cpus) > 0 {
		if err := util.PinProcess(cmd.Process.Pid, cpus); err != nil {
			logging.Debug("cpu pinning skipped", "chunk", ch.Idx, "error", err)
		}
	}

	_, copyErr := io.Copy(stdin, frames)
	_ = stdin.Close()

	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return nil, errors.NewCancelledError()
	}
	if waitErr != nil {
		return nil, errors.WrapExecError(a.Bin, waitErr, stderr.String())
	}
	if copyErr != nil {
		return nil, errors.NewInputWriteError(a.Bin, copyErr)
	}

	info, err := os.Stat(outPath)
	if err != nil || info.Size() == 0 {
		return nil, errors.NewOutputEmptyError(outPath)
	}

	return &Result{
		BytesWritten: uint64(info.Size()),
		WallTime:     time.Since(start),
	}, nil
}
