//go:build linux

package util

import "golang.org/x/sys/unix"

// PinProcess restricts the process with the given pid to the supplied logical
// core IDs. Best-effort: an empty set is a no-op and callers treat errors as
// advisory.
func PinProcess(pid int, cpus []int) error {
	if len(cpus) == 0 {
		return nil
	}

	var set unix.CPUSet
	set.Zero()
	for _, cpu := range cpus {
		set.Set(cpu)
	}
	return unix.SchedSetaffinity(pid, &set)
}

// AffinitySupported reports whether CPU pinning is available on this platform.
func AffinitySupported() bool {
	return true
}
