package scheduler

import "sync"

// The engine's join operators submit work to one process-wide scheduler
// rather than each owning a pool, mirroring how the storage and
// transaction managers this core is embedded in are also expected to be
// process-wide singletons, each with a reset() lifecycle hook for tests.
var (
	defaultMu   sync.Mutex
	defaultInst *Scheduler
)

// Default returns the process-wide scheduler, creating and starting it on
// first use with one worker per available CPU.
func Default() *Scheduler {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultInst == nil {
		defaultInst = New(0)
		defaultInst.Start()
	}
	return defaultInst
}

// ResetDefault stops the current process-wide scheduler, if any, and clears
// it so the next Default() call builds a fresh one. Intended for tests that
// need isolation between cases.
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultInst != nil {
		defaultInst.Stop()
		defaultInst = nil
	}
}
