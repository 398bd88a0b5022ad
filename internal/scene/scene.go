// Package scene models detected scene boundaries and user zone overrides.
// Scene detection itself is external; this package consumes its cut points.
package scene

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/emrakyz/Av1an/internal/errors"
	"github.com/emrakyz/Av1an/internal/params"
)

// Scene is a contiguous frame range treated as one encoding unit.
// EndFrame is exclusive.
type Scene struct {
	StartFrame uint64
	EndFrame   uint64
	Override   *params.Set
}

// Frames returns the number of frames in the scene.
func (s Scene) Frames() int {
	return int(s.EndFrame - s.StartFrame)
}

// FromCuts converts an ordered cut-point sequence into scenes covering
// [0, totalFrames). Cut points at 0 or beyond the frame count are rejected,
// as are unordered or duplicate cuts.
func FromCuts(cuts []uint64, totalFrames uint64) ([]Scene, error) {
	if totalFrames == 0 {
		return nil, errors.NewConfigError("total frame count is zero")
	}

	scenes := make([]Scene, 0, len(cuts)+1)
	var start uint64
	for _, cut := range cuts {
		if cut <= start {
			return nil, errors.NewConfigError(
				fmt.Sprintf("cut point %d is not strictly after frame %d", cut, start))
		}
		if cut >= totalFrames {
			return nil, errors.NewConfigError(
				fmt.Sprintf("cut point %d is beyond total frames %d", cut, totalFrames))
		}
		scenes = append(scenes, Scene{StartFrame: start, EndFrame: cut})
		start = cut
	}
	scenes = append(scenes, Scene{StartFrame: start, EndFrame: totalFrames})

	return scenes, nil
}

// Validate checks that scenes are contiguous, non-overlapping and cover
// [0, totalFrames) in ascending order.
func Validate(scenes []Scene, totalFrames uint64) error {
	if len(scenes) == 0 {
		return errors.NewConfigError("scene list is empty")
	}
	if scenes[0].StartFrame != 0 {
		return errors.NewConfigError(
			fmt.Sprintf("first scene starts at frame %d, expected 0", scenes[0].StartFrame))
	}

	var prevEnd uint64
	for i, s := range scenes {
		if s.EndFrame <= s.StartFrame {
			return errors.NewConfigError(
				fmt.Sprintf("scene %d has empty frame range [%d, %d)", i, s.StartFrame, s.EndFrame))
		}
		if s.StartFrame != prevEnd {
			return errors.NewConfigError(
				fmt.Sprintf("scene %d starts at frame %d, expected %d", i, s.StartFrame, prevEnd))
		}
		prevEnd = s.EndFrame
	}
	if prevEnd != totalFrames {
		return errors.NewConfigError(
			fmt.Sprintf("scenes end at frame %d, expected %d", prevEnd, totalFrames))
	}
	return nil
}

// LoadCuts reads cut points from a scene detector output file, one frame
// index per line. Blank lines and '#' comments are skipped.
func LoadCuts(path string) ([]uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError(fmt.Sprintf("failed to open scene file %s", path), err)
	}
	defer func() { _ = f.Close() }()

	var cuts []uint64
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		cut, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return nil, errors.NewConfigError(
				fmt.Sprintf("scene file %s line %d: invalid frame index %q", path, line, text))
		}
		cuts = append(cuts, cut)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewIOError(fmt.Sprintf("failed to read scene file %s", path), err)
	}

	return cuts, nil
}
