package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/emrakyz/Av1an/internal/params"
	"github.com/emrakyz/Av1an/internal/scene"
)

// zoneFile is the on-disk YAML shape of a zones file:
//
//	zones:
//	  - start: 0
//	    end: 480
//	    flags:
//	      --preset: "4"
//	  - start: 1200
//	    end: 1680
//	    crf: 22
type zoneFile struct {
	Zones []zoneEntry `yaml:"zones"`
}

type zoneEntry struct {
	Start uint64            `yaml:"start"`
	End   uint64            `yaml:"end"`
	Flags map[string]string `yaml:"flags"`
	CRF   *float64          `yaml:"crf"`
}

// LoadZones parses a YAML zones file into frame-range parameter overrides.
// Range validity against the scene list is checked later when the overrides
// are applied; this only rejects entries that are malformed on their own.
func LoadZones(path string) ([]scene.Zone, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read zones file: %w", err)
	}

	var zf zoneFile
	if err := yaml.Unmarshal(data, &zf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidZone, err)
	}

	zones := make([]scene.Zone, 0, len(zf.Zones))
	for i, e := range zf.Zones {
		if e.End <= e.Start {
			return nil, fmt.Errorf("%w: zone %d has empty range [%d, %d)", ErrInvalidZone, i, e.Start, e.End)
		}
		patch := params.New(e.Flags)
		if e.CRF != nil {
			patch.SearchName = DefaultSearchParam
			patch.SearchValue = *e.CRF
		}
		zones = append(zones, scene.Zone{
			StartFrame: e.Start,
			EndFrame:   e.End,
			Patch:      patch,
		})
	}
	return zones, nil
}
