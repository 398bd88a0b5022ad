package chunk

import (
	"fmt"

	"github.com/emrakyz/Av1an/internal/errors"
	"github.com/emrakyz/Av1an/internal/params"
	"github.com/emrakyz/Av1an/internal/scene"
)

// Build converts a validated scene sequence into chunks whose frame ranges
// exactly partition [0, totalFrames). Scenes shorter than minFrames are
// merged into a neighbor to avoid pathological per-process overhead; the
// earlier neighbor wins when both qualify, for determinism. Scenes only merge
// when their effective parameters match, so zone overrides are never diluted.
func Build(scenes []scene.Scene, base params.Set, totalFrames uint64, minFrames int) ([]Chunk, error) {
	if err := scene.Validate(scenes, totalFrames); err != nil {
		return nil, err
	}

	chunks := make([]Chunk, 0, len(scenes))
	for _, s := range scenes {
		p := base
		if s.Override != nil {
			p = base.Merge(*s.Override)
		} else {
			p = base.Clone()
		}

		if len(chunks) > 0 {
			prev := &chunks[len(chunks)-1]
			undersized := s.Frames() < minFrames || prev.Frames() < minFrames
			if undersized && sameParams(prev.Params, p) {
				prev.EndFrame = s.EndFrame
				continue
			}
		}

		chunks = append(chunks, Chunk{
			StartFrame: s.StartFrame,
			EndFrame:   s.EndFrame,
			Params:     p,
		})
	}

	for i := range chunks {
		chunks[i].Idx = i
	}

	if err := verifyPartition(chunks, totalFrames); err != nil {
		return nil, err
	}
	return chunks, nil
}

// verifyPartition checks the builder's own output: dense indices and an exact
// gap-free partition of [0, totalFrames).
func verifyPartition(chunks []Chunk, totalFrames uint64) error {
	var prevEnd uint64
	for i, c := range chunks {
		if c.Idx != i {
			return errors.NewConfigError(
				fmt.Sprintf("chunk index %d at position %d is not dense", c.Idx, i))
		}
		if c.StartFrame != prevEnd {
			return errors.NewConfigError(
				fmt.Sprintf("chunk %d starts at frame %d, expected %d", i, c.StartFrame, prevEnd))
		}
		if c.EndFrame <= c.StartFrame {
			return errors.NewConfigError(
				fmt.Sprintf("chunk %d has empty frame range", i))
		}
		prevEnd = c.EndFrame
	}
	if prevEnd != totalFrames {
		return errors.NewConfigError(
			fmt.Sprintf("chunks end at frame %d, expected %d", prevEnd, totalFrames))
	}
	return nil
}

func sameParams(a, b params.Set) bool {
	return a.Fingerprint() == b.Fingerprint()
}
