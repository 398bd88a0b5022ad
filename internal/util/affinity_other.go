//go:build !linux

package util

// PinProcess is a no-op on platforms without sched_setaffinity. Pinning is
// best-effort and unsupported platforms skip it without failing.
func PinProcess(pid int, cpus []int) error {
	return nil
}

// AffinitySupported reports whether CPU pinning is available on this platform.
func AffinitySupported() bool {
	return false
}
