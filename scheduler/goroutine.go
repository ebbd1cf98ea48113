package scheduler

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// workerOf maps a goroutine id to the *Worker running on that goroutine,
// for the lifetime of that worker's run loop. Go has no built-in
// goroutine-local storage, so WaitForTasks uses this to tell whether its
// caller is itself a worker (and should keep draining its own queue while
// it waits) or an outside caller (who should just block).
var workerOf sync.Map

// goroutineID extracts the numeric id from the "goroutine NNN [running]:"
// header of a single-goroutine runtime.Stack dump.
func goroutineID() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	if i := bytes.IndexByte(buf, ' '); i >= 0 {
		buf = buf[:i]
	}
	id, _ := strconv.ParseUint(string(buf), 10, 64)
	return id
}

func registerWorker(w *Worker) {
	workerOf.Store(goroutineID(), w)
}

func deregisterWorker() {
	workerOf.Delete(goroutineID())
}

// callingWorker returns the Worker running on the calling goroutine, if
// any.
func callingWorker() (*Worker, bool) {
	v, ok := workerOf.Load(goroutineID())
	if !ok {
		return nil, false
	}
	return v.(*Worker), true
}
