package scheduler

import "sync/atomic"

// atomicCursor is a tiny round-robin counter used to spread newly scheduled
// tasks with no NUMA preference evenly across workers.
type atomicCursor struct {
	v atomic.Uint64
}

func (c *atomicCursor) next(n int) int {
	if n <= 0 {
		return 0
	}
	return int(c.v.Add(1)-1) % n
}
