package scene

import (
	"fmt"

	"github.com/emrakyz/Av1an/internal/errors"
	"github.com/emrakyz/Av1an/internal/params"
)

// Zone is a user override applying a parameter patch to a frame range.
// EndFrame is exclusive.
type Zone struct {
	StartFrame uint64
	EndFrame   uint64
	Patch      params.Set
}

// ApplyZones attaches zone parameter patches to the scenes they cover.
// Zone edges must coincide with scene boundaries: an override that straddles
// a scene boundary is ambiguous and rejected rather than silently resolved.
// Zones must be ordered and non-overlapping.
func ApplyZones(scenes []Scene, zones []Zone) ([]Scene, error) {
	if len(zones) == 0 {
		return scenes, nil
	}

	boundaries := make(map[uint64]bool, len(scenes)+1)
	for _, s := range scenes {
		boundaries[s.StartFrame] = true
		boundaries[s.EndFrame] = true
	}

	var prevEnd uint64
	for i, z := range zones {
		if z.EndFrame <= z.StartFrame {
			return nil, errors.NewConfigError(
				fmt.Sprintf("zone %d has empty frame range [%d, %d)", i, z.StartFrame, z.EndFrame))
		}
		if z.StartFrame < prevEnd {
			return nil, errors.NewConfigError(
				fmt.Sprintf("zone %d overlaps the previous zone", i))
		}
		if !boundaries[z.StartFrame] || !boundaries[z.EndFrame] {
			return nil, errors.NewConfigError(
				fmt.Sprintf("zone %d [%d, %d) straddles a scene boundary", i, z.StartFrame, z.EndFrame))
		}
		prevEnd = z.EndFrame
	}

	out := make([]Scene, len(scenes))
	copy(out, scenes)
	for zi := range zones {
		z := zones[zi]
		for si := range out {
			s := &out[si]
			if s.StartFrame >= z.StartFrame && s.EndFrame <= z.EndFrame {
				patch := z.Patch.Clone()
				s.Override = &patch
			}
		}
	}
	return out, nil
}
