// Package task implements the DAG node type the scheduler executes:
// predecessor tracking, a lock-free state machine, and an ownership
// scheme where successors are owned by their predecessors' successor
// list while predecessors are held only as weak back-references.
package task

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// State is a node's position in the strict DAG
// Created -> Scheduled -> (Enqueued -> AssignedToWorker)? -> Started -> Done.
type State int32

const (
	Created State = iota
	Scheduled
	Enqueued
	AssignedToWorker
	Started
	Done
)

func (s State) String() string {
	switch s {
	case Created:
		return "Created"
	case Scheduled:
		return "Scheduled"
	case Enqueued:
		return "Enqueued"
	case AssignedToWorker:
		return "AssignedToWorker"
	case Started:
		return "Started"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// ID identifies a task for the lifetime of a scheduler run.
type ID = uuid.UUID

// ErrContractViolation wraps every error returned for programmer-error
// conditions: illegal state transitions, predecessor misuse, and other
// API contract violations.
var ErrContractViolation = errors.New("task: contract violation")

// Task is one node of the execution DAG.
type Task struct {
	id            ID
	description   string
	preferredNode int32 // -1 = none
	priority      int
	stealable     bool

	state               atomic.Int32
	pendingPredecessors atomic.Int32

	predecessors []*Task // weak in spirit: never walked to discover successors
	successors   []*Task // owning

	body   func() error
	err    error
	doneCB func(*Task)

	doneMu   sync.Mutex
	doneCond *sync.Cond
	done     bool
}

// New creates a task in the Created state, wrapping body as its execution
// unit. Stealable defaults to true, matching "most work is stealable" —
// callers opt individual tasks out via SetStealable(false).
func New(description string, body func() error) *Task {
	t := &Task{
		id:            uuid.New(),
		description:   description,
		preferredNode: -1,
		stealable:     true,
		body:          body,
	}
	t.doneCond = sync.NewCond(&t.doneMu)
	return t
}

func (t *Task) ID() ID              { return t.id }
func (t *Task) Description() string { return t.description }
func (t *Task) State() State        { return State(t.state.Load()) }
func (t *Task) Priority() int       { return t.priority }
func (t *Task) Stealable() bool     { return t.stealable }
func (t *Task) PreferredNode() int  { return int(t.preferredNode) }
func (t *Task) Err() error          { return t.err }

func (t *Task) SetPriority(p int)          { t.priority = p }
func (t *Task) SetStealable(s bool)        { t.stealable = s }
func (t *Task) SetPreferredNode(n int)     { t.preferredNode = int32(n) }
func (t *Task) SetDoneCallback(cb func(*Task)) { t.doneCB = cb }

// IsReady reports whether every predecessor has completed.
func (t *Task) IsReady() bool { return t.pendingPredecessors.Load() == 0 }

// IsScheduled reports whether the task has left Created.
func (t *Task) IsScheduled() bool { return State(t.state.Load()) >= Scheduled }

// IsDone reports whether the task has finished, synchronized against the
// done-mutex/condvar pair used by Wait: completion is published by
// setting done=true under the done-mutex, then broadcasting.
func (t *Task) IsDone() bool {
	t.doneMu.Lock()
	defer t.doneMu.Unlock()
	return t.done
}

// Wait blocks the calling goroutine until the task is Done. Non-worker
// callers use this directly; worker goroutines instead go through the
// scheduler's cooperative WaitForTasks so they keep draining their own
// queue while waiting.
func (t *Task) Wait() {
	t.doneMu.Lock()
	for !t.done {
		t.doneCond.Wait()
	}
	t.doneMu.Unlock()
}

// SetAsPredecessorOf registers t as a predecessor of succ. This is only
// legal while succ is still Created — once succ has been scheduled, its
// predecessor set (and therefore its pending-predecessor count) is
// frozen, since the scheduler may already be evaluating whether succ is
// ready to run.
func (t *Task) SetAsPredecessorOf(succ *Task) error {
	if succ.State() != Created {
		return fmt.Errorf("%w: cannot add a predecessor to task %s after it left Created (state=%s)",
			ErrContractViolation, succ.id, succ.State())
	}
	t.successors = append(t.successors, succ)
	succ.predecessors = append(succ.predecessors, t)
	succ.pendingPredecessors.Add(1)
	return nil
}

// Predecessors and Successors expose the DAG edges for schedulers and
// tests; callers must not mutate the returned slices.
func (t *Task) Predecessors() []*Task { return t.predecessors }
func (t *Task) Successors() []*Task   { return t.successors }

// MarkScheduled transitions Created -> Scheduled. Called exactly once by
// the scheduler at the start of Schedule(); a second call is a contract
// violation (a task scheduled twice).
func (t *Task) MarkScheduled() error {
	if !t.state.CompareAndSwap(int32(Created), int32(Scheduled)) {
		return fmt.Errorf("%w: task %s scheduled from state %s, want Created", ErrContractViolation, t.id, t.State())
	}
	return nil
}

// TryEnqueue transitions Scheduled -> Enqueued. Idempotent: if the task is
// already Enqueued or AssignedToWorker, it returns false without changing
// state or failing, so two workers racing to claim a task from sibling
// queues doesn't blow up.
func (t *Task) TryEnqueue() bool {
	for {
		cur := State(t.state.Load())
		if cur == Enqueued || cur == AssignedToWorker {
			return false
		}
		if cur != Scheduled {
			return false
		}
		if t.state.CompareAndSwap(int32(cur), int32(Enqueued)) {
			return true
		}
	}
}

// TryAssignToWorker transitions Scheduled/Enqueued -> AssignedToWorker,
// idempotent the same way TryEnqueue is.
func (t *Task) TryAssignToWorker() bool {
	for {
		cur := State(t.state.Load())
		if cur == AssignedToWorker {
			return false
		}
		if cur != Scheduled && cur != Enqueued {
			return false
		}
		if t.state.CompareAndSwap(int32(cur), int32(AssignedToWorker)) {
			return true
		}
	}
}

// tryStart transitions to Started. Unlike Enqueued/AssignedToWorker this
// is monotonic, not idempotent: exactly one caller wins when two workers
// race to run the same task, and everyone else gets false. A task with
// outstanding predecessors never starts: callers (the scheduler, or a
// direct Run) are expected to hold off on a not-ready task until its last
// predecessor's onReady callback hands it off, but the check is enforced
// here too so a caller mistake fails closed rather than reordering a DAG.
func (t *Task) tryStart() bool {
	if !t.IsReady() {
		return false
	}
	for {
		cur := State(t.state.Load())
		if cur != Scheduled && cur != Enqueued && cur != AssignedToWorker {
			return false
		}
		if t.state.CompareAndSwap(int32(cur), int32(Started)) {
			return true
		}
	}
}

// Run executes the full lifecycle: transition to Started, run the body,
// transition to Done, decrement each successor's pending-predecessor
// count (invoking onReady for the ones that became ready), invoke the
// done callback, and finally publish completion to waiters. onReady is
// called once per successor that became ready as a direct result of this
// completion and was already scheduled; the caller (a Worker) decides
// whether to execute it inline or leave it queued.
func (t *Task) Run(onReady func(*Task)) {
	if !t.tryStart() {
		return
	}

	if err := t.body(); err != nil {
		t.err = err
	}

	if !t.state.CompareAndSwap(int32(Started), int32(Done)) {
		panic(fmt.Sprintf("task: %s failed to transition Started->Done, state=%s", t.id, t.State()))
	}

	for _, succ := range t.successors {
		if succ.pendingPredecessors.Add(-1) == 0 && succ.IsScheduled() && onReady != nil {
			onReady(succ)
		}
	}

	if t.doneCB != nil {
		t.doneCB(t)
	}

	t.doneMu.Lock()
	t.done = true
	t.doneMu.Unlock()
	t.doneCond.Broadcast()
}
