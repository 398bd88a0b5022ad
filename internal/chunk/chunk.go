// Package chunk derives executable encoding units from scenes and tracks
// their artifacts in the work directory.
package chunk

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/emrakyz/Av1an/internal/params"
)

// Chunk is the executable unit derived from a scene. Index defines the final
// reassembly order: dense, zero-based, monotonic with StartFrame. Chunks are
// immutable once built; lifecycle status lives in the progress ledger.
type Chunk struct {
	Idx        int
	StartFrame uint64
	EndFrame   uint64
	Params     params.Set
}

// Frames returns the number of frames in the chunk.
func (c Chunk) Frames() int {
	return int(c.EndFrame - c.StartFrame)
}

// Name returns a short identifier used in logs.
func (c Chunk) Name() string {
	return fmt.Sprintf("chunk %05d [%d..%d)", c.Idx, c.StartFrame, c.EndFrame)
}

// ArtifactPath returns the deterministic output path for a chunk index.
// Retries overwrite this path rather than accumulating stale artifacts.
func ArtifactPath(workDir string, idx int) string {
	return filepath.Join(workDir, "encode", fmt.Sprintf("%05d.ivf", idx))
}

// ProbePath returns the path for one quality-search probe encode. Paths are
// value-specific so the accepted trial's encode survives later probes and can
// be promoted to the artifact path by rename.
func ProbePath(workDir string, idx int, value float64) string {
	return filepath.Join(workDir, "probe", fmt.Sprintf("%05d_%g.ivf", idx, value))
}

// EnsureWorkDirs creates the work directory layout.
func EnsureWorkDirs(workDir string) error {
	for _, sub := range []string{"encode", "probe"} {
		if err := os.MkdirAll(filepath.Join(workDir, sub), 0o755); err != nil {
			return err
		}
	}
	return nil
}
