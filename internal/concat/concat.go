// Package concat reassembles completed chunk artifacts into the final
// output in index order.
package concat

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/emrakyz/Av1an/internal/chunk"
	"github.com/emrakyz/Av1an/internal/errors"
	"github.com/emrakyz/Av1an/internal/ledger"
	"github.com/emrakyz/Av1an/internal/logging"
)

// Options controls how missing chunks are handled.
type Options struct {
	// AllowPartial emits the Done chunks and skips Failed ones instead of
	// refusing to produce output.
	AllowPartial bool
}

// Result summarizes what was assembled.
type Result struct {
	Chunks       int
	BytesWritten int64
	Skipped      []int
}

// Assemble streams completed artifacts from workDir into w in ascending
// chunk index order. Statuses come from the ledger; the chunk slice defines
// the full expected sequence. Without AllowPartial, any non-Done chunk makes
// Assemble fail with a single error naming every failed index.
func Assemble(w io.Writer, workDir string, chunks []chunk.Chunk, led *ledger.Ledger, opts Options) (*Result, error) {
	ordered := make([]chunk.Chunk, len(chunks))
	copy(ordered, chunks)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Idx < ordered[j].Idx })

	var missing []int
	for _, ch := range ordered {
		entry, ok := led.Get(ch.Idx)
		if !ok || entry.Status != ledger.Done {
			missing = append(missing, ch.Idx)
		}
	}
	if len(missing) > 0 && !opts.AllowPartial {
		return nil, errors.NewConcatError(
			fmt.Sprintf("cannot assemble output, %d chunk(s) failed: %s",
				len(missing), formatIndices(missing)), nil)
	}

	res := &Result{Skipped: missing}
	for _, ch := range ordered {
		if entry, ok := led.Get(ch.Idx); !ok || entry.Status != ledger.Done {
			logging.Warn("skipping incomplete chunk in partial output", "chunk", ch.Idx)
			continue
		}

		n, err := copyArtifact(w, chunk.ArtifactPath(workDir, ch.Idx))
		if err != nil {
			return nil, errors.NewConcatError(
				fmt.Sprintf("failed to append chunk %d", ch.Idx), err)
		}
		res.Chunks++
		res.BytesWritten += n
	}

	logging.Info("output assembled",
		"chunks", res.Chunks, "skipped", len(res.Skipped), "bytes", res.BytesWritten)
	return res, nil
}

// AssembleFile is Assemble writing to a freshly created file. The file is
// removed on failure so a broken run never leaves a truncated output behind.
func AssembleFile(outPath, workDir string, chunks []chunk.Chunk, led *ledger.Ledger, opts Options) (*Result, error) {
	f, err := os.Create(outPath)
	if err != nil {
		return nil, errors.NewIOError("failed to create output file", err)
	}

	res, aerr := Assemble(f, workDir, chunks, led, opts)
	cerr := f.Close()
	if aerr != nil {
		os.Remove(outPath)
		return nil, aerr
	}
	if cerr != nil {
		os.Remove(outPath)
		return nil, errors.NewIOError("failed to finalize output file", cerr)
	}
	return res, nil
}

func copyArtifact(w io.Writer, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(w, f)
}

func formatIndices(idxs []int) string {
	parts := make([]string, len(idxs))
	for i, idx := range idxs {
		parts[i] = fmt.Sprintf("%d", idx)
	}
	return strings.Join(parts, ", ")
}
