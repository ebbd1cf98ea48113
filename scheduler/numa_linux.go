//go:build linux

package scheduler

import (
	"os"
	"runtime"
	"strings"

	"golang.org/x/sys/unix"
)

// numCPU returns the number of CPUs actually available to this process per
// its scheduler affinity mask, falling back to runtime.NumCPU on any
// syscall failure (e.g. running under a restrictive sandbox).
func numCPU() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return runtime.NumCPU()
	}
	n := set.Count()
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// numaNodeCount reads /sys/devices/system/node for the number of online
// NUMA nodes. Single-node and non-NUMA machines (the common case) report 1.
func numaNodeCount() int {
	entries, err := os.ReadDir("/sys/devices/system/node")
	if err != nil {
		return 1
	}
	count := 0
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "node") {
			count++
		}
	}
	if count == 0 {
		return 1
	}
	return count
}

// numaNodeOf assigns worker i to a node by splitting the worker range into
// numaNodeCount contiguous bands, approximating the common NUMA layout
// where consecutive logical CPUs belong to the same package.
func numaNodeOf(i, total int) int {
	nodes := numaNodeCount()
	if nodes <= 1 || total <= 0 {
		return 0
	}
	band := (total + nodes - 1) / nodes
	if band == 0 {
		return 0
	}
	n := i / band
	if n >= nodes {
		n = nodes - 1
	}
	return n
}
