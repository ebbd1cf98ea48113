// Package scheduler implements the work-stealing task scheduler: per-node
// pools of workers, each with its own FIFO-priority queue, that pull ready
// tasks and steal from siblings when idle. Instead of N identical threads
// draining one shared channel, each of the N workers owns its own queue
// and carries a NUMA node label that orders stealing and placement; the
// worker goroutines are not bound to CPUs or nodes.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dot5enko/colengine/task"
)

// Scheduler owns the full worker pool and the round-robin cursor used to
// place newly scheduled tasks.
type Scheduler struct {
	workers []*Worker
	next    atomicCursor
}

// New builds a scheduler with the given number of workers, distributed
// across the detected NUMA nodes by numaNodeOf (numa_linux.go / numa_other.go
// depending on build target). workers <= 0 falls back to numCPU: the
// affinity-mask CPU count on linux, runtime.NumCPU elsewhere.
func New(workers int) *Scheduler {
	if workers <= 0 {
		workers = numCPU()
	}

	s := &Scheduler{}
	for i := 0; i < workers; i++ {
		s.workers = append(s.workers, newWorker(i, numaNodeOf(i, workers)))
	}

	for _, w := range s.workers {
		for _, other := range s.workers {
			if other == w {
				continue
			}
			if other.node == w.node {
				w.sameNode = append(w.sameNode, other)
			} else {
				w.otherNode = append(w.otherNode, other)
			}
		}
	}

	slog.Info("scheduler: pool created", "workers", len(s.workers), "nodes", numaNodeCount())
	return s
}

// Start launches every worker's run loop as its own goroutine.
func (s *Scheduler) Start() {
	for _, w := range s.workers {
		go w.run()
	}
}

// Stop signals every worker to exit its loop after finishing its current
// task.
func (s *Scheduler) Stop() {
	for _, w := range s.workers {
		w.Stop()
	}
}

// Schedule transitions t (any Created task reachable only through its own
// predecessor chain is left untouched — callers are responsible for
// scheduling every node of a DAG they build) to Scheduled and places it
// on a worker's queue, honoring PreferredNode when set. A task with zero
// pending predecessors is immediately eligible to run; one with
// outstanding predecessors merely becomes visible and is picked up by
// Task.Run's onReady callback once its last predecessor completes.
func (s *Scheduler) Schedule(t *task.Task) error {
	if err := t.MarkScheduled(); err != nil {
		return err
	}
	// A task with outstanding predecessors is now visible (Scheduled) but
	// must not be queued yet: Worker.runTask's onReady callback enqueues it
	// the moment its last predecessor finishes, which is also what keeps a
	// completed predecessor's successor on the same worker for cache
	// locality.
	if !t.IsReady() {
		return nil
	}
	w := s.pickWorker(t)
	w.submit(t)
	return nil
}

func (s *Scheduler) pickWorker(t *task.Task) *Worker {
	if n := t.PreferredNode(); n >= 0 {
		for _, w := range s.workers {
			if w.node == n {
				return w
			}
		}
	}
	return s.workers[s.next.next(len(s.workers))]
}

// WaitForTasks blocks until every task in ts is Done. A non-worker caller
// (tests, the demo's main goroutine) fans out across tasks with errgroup
// and blocks on plain Task.Wait. A caller that is itself a worker —
// detected via callingWorker, the goroutine-local registry Worker.run
// populates — instead keeps draining its own queue through ExecuteNext
// between checks, so a worker never idles while one of its own
// descendants is still waiting to run: cooperative multitasking rather
// than outright blocking.
func (s *Scheduler) WaitForTasks(ctx context.Context, ts ...*task.Task) error {
	if w, ok := callingWorker(); ok {
		return s.waitCooperatively(ctx, w, ts)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, t := range ts {
		t := t
		g.Go(func() error {
			waitCh := make(chan struct{})
			go func() {
				t.Wait()
				close(waitCh)
			}()
			select {
			case <-waitCh:
				if err := t.Err(); err != nil {
					return fmt.Errorf("task %q: %w", t.Description(), err)
				}
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	return g.Wait()
}

// waitCooperatively is WaitForTasks' worker-caller path: between checking
// ts for completion, it runs whatever is on the calling worker's own
// queue via ExecuteNext, falling back to a short sleep only once that
// queue is empty too (e.g. everything left is running on other workers).
func (s *Scheduler) waitCooperatively(ctx context.Context, w *Worker, ts []*task.Task) error {
	backoff := time.Microsecond
	const maxBackoff = time.Millisecond
	for {
		done := true
		for _, t := range ts {
			if !t.IsDone() {
				done = false
				break
			}
		}
		if done {
			for _, t := range ts {
				if err := t.Err(); err != nil {
					return fmt.Errorf("task %q: %w", t.Description(), err)
				}
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if s.ExecuteNext(w.ID()) {
			backoff = time.Microsecond
			continue
		}
		time.Sleep(backoff)
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

// ExecuteNext is the cooperative fast path for direct execution: a
// worker goroutine waiting on a task it could itself be running pops and
// runs one task from its own queue instead of blocking.
// It returns false when the worker's queue is empty, so the caller
// (waitCooperatively) knows to back off with a short sleep.
func (s *Scheduler) ExecuteNext(workerID int) bool {
	w := s.workers[workerID]
	t := w.queue.popOwn()
	if t == nil {
		return false
	}
	w.runTask(t)
	return true
}

func (s *Scheduler) WorkerCount() int { return len(s.workers) }
