//go:build !linux

package scheduler

import "runtime"

// numCPU falls back to runtime.NumCPU on platforms without a sysfs-style
// affinity API available through golang.org/x/sys.
func numCPU() int { return runtime.NumCPU() }

// numaNodeCount and numaNodeOf treat the machine as single-node outside
// Linux; there is no portable topology query in golang.org/x/sys/unix for
// the BSD/Darwin targets this build tag covers.
func numaNodeCount() int          { return 1 }
func numaNodeOf(i, total int) int { return 0 }
