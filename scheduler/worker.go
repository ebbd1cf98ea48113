package scheduler

import (
	"log/slog"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"

	"github.com/dot5enko/colengine/task"
	"github.com/dot5enko/colengine/telemetry"
)

// Worker owns one local taskQueue and runs a pop-or-steal loop until told
// to stop: no central dispatcher hands out work, each worker drains its
// own queue and falls back to stealing from siblings when it runs dry.
type Worker struct {
	id   int
	node int

	queue *taskQueue

	// sameNode and otherNode are populated by the owning Scheduler once
	// every worker exists, so a starved worker steals from its own NUMA
	// node before reaching across to another.
	sameNode  []*Worker
	otherNode []*Worker

	stop chan struct{}
}

func newWorker(id, node int) *Worker {
	return &Worker{
		id:    id,
		node:  node,
		queue: newTaskQueue(),
		stop:  make(chan struct{}),
	}
}

// ID and Node expose placement for tests and NUMA-aware task submission.
func (w *Worker) ID() int   { return w.id }
func (w *Worker) Node() int { return w.node }

// submit enqueues t on this worker's own queue.
func (w *Worker) submit(t *task.Task) {
	w.queue.push(t)
}

// run drains the local queue, falling back to stealing from siblings when
// it is empty, until Stop is called. Each executed task's successors that
// became ready are pushed back onto this worker's own queue — the inline
// fast path (Scheduler.ExecuteNext) handles the cooperative-continuation
// case separately.
func (w *Worker) run() {
	slog.Info("scheduler: worker started", "worker_id", w.id, "node", w.node)
	defer slog.Info("scheduler: worker stopped", "worker_id", w.id)

	registerWorker(w)
	defer deregisterWorker()

	backoff := time.Microsecond
	const maxBackoff = 2 * time.Millisecond

	for {
		select {
		case <-w.stop:
			return
		default:
		}

		t := w.queue.popOwn()
		if t == nil {
			t = w.steal()
		}
		if t == nil {
			time.Sleep(backoff)
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Microsecond
		w.runTask(t)
	}
}

func (w *Worker) runTask(t *task.Task) {
	if !t.TryAssignToWorker() {
		// Lost the race to another worker or a stealing sibling; nothing
		// to do.
		return
	}

	ev := telemetry.Event{TaskID: t.ID(), Description: t.Description()}
	telemetry.Enter(ev)
	defer telemetry.Exit(ev)

	t.Run(func(ready *task.Task) {
		w.submit(ready)
	})

	if t.Err() != nil {
		color.Red("scheduler: task %q failed: %s", t.Description(), t.Err())
		slog.Error("scheduler: task failed", "task_id", t.ID(), "description", t.Description(), "error", t.Err())
		spew.Dump(t.Predecessors())
	}
}

// steal tries same-node siblings first, then falls back cross-node.
func (w *Worker) steal() *task.Task {
	if t := stealFrom(w.sameNode); t != nil {
		return t
	}
	return stealFrom(w.otherNode)
}

func stealFrom(victims []*Worker) *task.Task {
	for _, v := range victims {
		if t := v.queue.steal(); t != nil {
			return t
		}
	}
	return nil
}

func (w *Worker) idle() bool {
	return w.queue.empty()
}

func (w *Worker) Stop() {
	close(w.stop)
}
