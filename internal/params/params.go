// Package params models the opaque encoder parameter payload carried by each
// chunk. Flags are passed through to the encoder untouched; at most one
// numeric search parameter is varied by the quality search.
package params

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
)

// Set is an opaque mapping of encoder flag name to value, plus an optional
// numeric search parameter.
type Set struct {
	// Flags are fixed encoder arguments, keyed by flag name.
	Flags map[string]string

	// SearchName is the flag mutated by the quality search ("" when the run
	// has no quality target).
	SearchName string

	// SearchValue is the current value of the search parameter.
	SearchValue float64
}

// New creates a parameter set with a copy of the given flags.
func New(flags map[string]string) Set {
	s := Set{Flags: make(map[string]string, len(flags))}
	for k, v := range flags {
		s.Flags[k] = v
	}
	return s
}

// Clone returns a deep copy of the set.
func (s Set) Clone() Set {
	c := New(s.Flags)
	c.SearchName = s.SearchName
	c.SearchValue = s.SearchValue
	return c
}

// Merge returns a copy of s with patch's flags overlaid and, when the patch
// carries a search parameter, the search parameter replaced.
func (s Set) Merge(patch Set) Set {
	merged := s.Clone()
	for k, v := range patch.Flags {
		merged.Flags[k] = v
	}
	if patch.SearchName != "" {
		merged.SearchName = patch.SearchName
		merged.SearchValue = patch.SearchValue
	}
	return merged
}

// WithSearchValue returns a copy of s with the search parameter set to value.
func (s Set) WithSearchValue(value float64) Set {
	c := s.Clone()
	c.SearchValue = value
	return c
}

// Args renders the set as encoder command-line arguments, flags in sorted
// order for determinism, search parameter last.
func (s Set) Args() []string {
	keys := make([]string, 0, len(s.Flags))
	for k := range s.Flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, 2*len(keys)+2)
	for _, k := range keys {
		args = append(args, k)
		if v := s.Flags[k]; v != "" {
			args = append(args, v)
		}
	}
	if s.SearchName != "" {
		args = append(args, s.SearchName, formatValue(s.SearchValue))
	}
	return args
}

// Fingerprint returns a stable digest of the set, used to decide whether a
// pre-existing chunk artifact from an earlier run is still valid.
func (s Set) Fingerprint() string {
	h := sha256.New()
	for _, arg := range s.Args() {
		h.Write([]byte(arg))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func (s Set) String() string {
	return fmt.Sprintf("params(%v)", s.Args())
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
