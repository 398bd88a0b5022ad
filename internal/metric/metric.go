// Package metric measures perceptual quality of encoded chunks against their
// source frames via an external measurement tool.
package metric

import (
	"fmt"
	"strings"
)

// Kind identifies the perceptual metric driving the quality search.
type Kind int

const (
	// VMAF is the libvmaf score in [0, 100].
	VMAF Kind = iota
	// SSIMULACRA2 is the ssimulacra2 score, roughly [-inf, 100].
	SSIMULACRA2
)

// String returns the metric name.
func (k Kind) String() string {
	switch k {
	case VMAF:
		return "vmaf"
	case SSIMULACRA2:
		return "ssimulacra2"
	default:
		return "unknown"
	}
}

// ParseKind converts a metric name to a Kind (case-insensitive).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vmaf":
		return VMAF, nil
	case "ssimulacra2", "ssim2":
		return SSIMULACRA2, nil
	default:
		return 0, fmt.Errorf("unknown metric %q, expected vmaf or ssimulacra2", s)
	}
}
