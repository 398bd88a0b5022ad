// Package util provides system probing and formatting helpers.
package util

import (
	"os"
	"runtime"
	"strconv"
	"strings"
)

// SystemInfo contains information about the host system.
type SystemInfo struct {
	Hostname string
	NumCPU   int
	OS       string
	Arch     string
}

// GetSystemInfo collects system information.
func GetSystemInfo() SystemInfo {
	hostname, _ := os.Hostname()
	return SystemInfo{
		Hostname: hostname,
		NumCPU:   runtime.NumCPU(),
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
	}
}

// LogicalCores returns the number of logical CPU cores (includes hyperthreads).
func LogicalCores() int {
	return runtime.NumCPU()
}

// PhysicalCores returns the number of physical CPU cores.
// On systems with SMT/hyperthreading, this will be less than LogicalCores().
// Falls back to LogicalCores()/2 if detection fails.
func PhysicalCores() int {
	if runtime.GOOS == "linux" {
		if cores := physicalCoresLinux(); cores > 0 {
			return cores
		}
	}
	logical := LogicalCores()
	if logical > 1 {
		return logical / 2
	}
	return 1
}

// physicalCoresLinux reads physical core count from sysfs topology.
// Returns 0 if detection fails.
func physicalCoresLinux() int {
	cpuDir := "/sys/devices/system/cpu"
	entries, err := os.ReadDir(cpuDir)
	if err != nil {
		return 0
	}

	coreIDs := make(map[string]struct{})
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "cpu") {
			continue
		}
		suffix := name[3:]
		if suffix == "" {
			continue
		}
		if _, err := strconv.Atoi(suffix); err != nil {
			continue
		}

		data, err := os.ReadFile(cpuDir + "/" + name + "/topology/core_id")
		if err != nil {
			continue
		}

		pkgData, err := os.ReadFile(cpuDir + "/" + name + "/topology/physical_package_id")
		if err != nil {
			coreIDs[strings.TrimSpace(string(data))] = struct{}{}
		} else {
			key := strings.TrimSpace(string(pkgData)) + ":" + strings.TrimSpace(string(data))
			coreIDs[key] = struct{}{}
		}
	}

	return len(coreIDs)
}

// PartitionCores splits the logical core IDs [0, total) into count affinity
// sets of near-equal size, in ascending core order. Sets are assigned at pool
// construction and stay fixed for the run.
func PartitionCores(total, count int) [][]int {
	if count <= 0 || total <= 0 {
		return nil
	}
	if count > total {
		count = total
	}

	sets := make([][]int, count)
	base := total / count
	extra := total % count

	core := 0
	for i := 0; i < count; i++ {
		size := base
		if i < extra {
			size++
		}
		set := make([]int, 0, size)
		for j := 0; j < size; j++ {
			set = append(set, core)
			core++
		}
		sets[i] = set
	}
	return sets
}
