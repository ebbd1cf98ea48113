package task

import (
	"sync"
	"sync/atomic"
	"testing"
)

func schedule(t *Task) {
	if err := t.MarkScheduled(); err != nil {
		panic(err)
	}
}

// runInline drives a task to completion directly, bypassing any worker/scheduler
// so these tests exercise Task's own state machine in isolation.
func runInline(t *Task, onReady func(*Task)) {
	t.Run(onReady)
}

func TestStateSequenceIsAPrefixOfTheCanonicalOrder(t *testing.T) {
	var seen []State
	tk := New("t", func() error { return nil })

	seen = append(seen, tk.State())
	schedule(tk)
	seen = append(seen, tk.State())
	if !tk.TryEnqueue() {
		t.Fatalf("expected first TryEnqueue to succeed")
	}
	seen = append(seen, tk.State())
	runInline(tk, nil)
	seen = append(seen, tk.State())

	want := []State{Created, Scheduled, Enqueued, Done}
	if len(seen) != len(want) {
		t.Fatalf("got %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("step %d: got %s, want %s", i, seen[i], want[i])
		}
	}
}

func TestReentryToEnqueuedAndAssignedIsIdempotent(t *testing.T) {
	tk := New("t", func() error { return nil })
	schedule(tk)

	if !tk.TryEnqueue() {
		t.Fatalf("first TryEnqueue should succeed")
	}
	if tk.TryEnqueue() {
		t.Errorf("second TryEnqueue should return false")
	}
	if tk.State() != Enqueued {
		t.Errorf("state should remain Enqueued, got %s", tk.State())
	}

	if !tk.TryAssignToWorker() {
		t.Fatalf("first TryAssignToWorker should succeed")
	}
	if tk.TryAssignToWorker() {
		t.Errorf("second TryAssignToWorker should return false")
	}
	if tk.State() != AssignedToWorker {
		t.Errorf("state should remain AssignedToWorker, got %s", tk.State())
	}
}

func TestPredecessorAfterSchedulingIsAContractViolation(t *testing.T) {
	pred := New("pred", func() error { return nil })
	succ := New("succ", func() error { return nil })
	schedule(succ)

	err := pred.SetAsPredecessorOf(succ)
	if err == nil {
		t.Fatalf("expected contract violation error")
	}
}

func TestDoneCallbackFiresExactlyOnceAfterDone(t *testing.T) {
	var calls int32
	var observedState State

	tk := New("t", func() error { return nil })
	tk.SetDoneCallback(func(done *Task) {
		atomic.AddInt32(&calls, 1)
		observedState = done.State()
	})
	schedule(tk)
	runInline(tk, nil)

	if calls != 1 {
		t.Fatalf("expected done callback exactly once, got %d", calls)
	}
	if observedState != Done {
		t.Errorf("expected callback to observe Done state, got %s", observedState)
	}
}

// TestChainExecutesInOrderRegardlessOfScheduleOrder covers three tasks
// a -> b -> c, scheduled out of dependency order (c, a, b). All must
// complete, and done(a) happens-before start(b), done(b) happens-before
// start(c).
func TestChainExecutesInOrderRegardlessOfScheduleOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string

	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	a := New("a", func() error { record("a"); return nil })
	b := New("b", func() error { record("b"); return nil })
	c := New("c", func() error { record("c"); return nil })

	if err := a.SetAsPredecessorOf(b); err != nil {
		t.Fatal(err)
	}
	if err := b.SetAsPredecessorOf(c); err != nil {
		t.Fatal(err)
	}

	// schedule in order c, a, b
	schedule(c)
	schedule(a)
	schedule(b)

	var run func(*Task)
	run = func(tk *Task) {
		tk.Run(func(ready *Task) { run(ready) })
	}
	run(a)

	if len(order) != 3 {
		t.Fatalf("expected all three tasks to run, got %v", order)
	}
	if order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("expected order [a b c], got %v", order)
	}

	for _, tk := range []*Task{a, b, c} {
		if tk.State() != Done {
			t.Errorf("task %s expected Done, got %s", tk.Description(), tk.State())
		}
	}
}

func TestWaitUnblocksAfterDone(t *testing.T) {
	tk := New("t", func() error { return nil })
	schedule(tk)

	done := make(chan struct{})
	go func() {
		tk.Wait()
		close(done)
	}()

	runInline(tk, nil)
	<-done
}
