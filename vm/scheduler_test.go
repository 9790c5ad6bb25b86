package vm

import (
	"fmt"
	"testing"

	"github.com/chazu/oxido/pkg/bytecode"
)

func testClosure(name string) *Closure {
	return &Closure{Fn: &bytecode.Function{Name: name, Locals: 1}}
}

func TestSchedulerFIFO(t *testing.T) {
	s := NewScheduler(0, nil)
	if s.Quantum != DefaultQuantum {
		t.Errorf("quantum = %d, want default", s.Quantum)
	}
	for _, name := range []string{"a", "b", "c"} {
		s.spawn(testClosure(name), nil, 0)
	}

	var order []int
	for i := 0; i < 6; i++ {
		th := s.next()
		if th.State != Running || th.budget != s.Quantum {
			t.Fatalf("dequeued %d in state %s budget %d", th.ID, th.State, th.budget)
		}
		order = append(order, th.ID)
		s.requeue(th, endQuantum)
	}
	if got := fmt.Sprint(order); got != "[1 2 3 1 2 3]" {
		t.Errorf("turn order = %s", got)
	}
}

func TestSchedulerBlockAndWake(t *testing.T) {
	tr := NewTrace()
	s := NewScheduler(5, tr)
	a := s.spawn(testClosure("a"), nil, 0)
	b := s.spawn(testClosure("b"), nil, 1)

	s.next() // a
	a.waitSem = 1
	s.block(a, 1)
	if a.State != Blocked || a.blockReason() != "waiting on sem 1" {
		t.Errorf("a = %s, %q", a.State, a.blockReason())
	}

	if s.next() != b {
		t.Fatal("b not next")
	}
	if got := s.blocked(); len(got) != 1 || got[0].ID != a.ID {
		t.Errorf("blocked = %v", got)
	}
	s.wake(a, b.ID)
	s.requeue(b, endYield)
	if a.State != Ready || a.waitSem != 0 {
		t.Errorf("woken a = %s waitSem %d", a.State, a.waitSem)
	}
	if s.next() != a || s.next() != b || s.next() != nil {
		t.Error("ready queue out of order after wake")
	}

	kinds := map[EventKind]int{EventSpawn: 2, EventRun: 4, EventBlock: 1, EventWake: 1, EventYield: 1}
	for k, n := range kinds {
		if tr.Count(k) != n {
			t.Errorf("%s events = %d, want %d", k, tr.Count(k), n)
		}
	}
	if got := fmt.Sprint(tr.Turns()); got != "[1 2 1 2]" {
		t.Errorf("turns = %s", got)
	}
}

func TestSchedulerTerminateWakesJoiners(t *testing.T) {
	s := NewScheduler(1, nil)
	main := s.spawn(testClosure("main"), nil, 0)
	child := s.spawn(testClosure("child"), nil, main.ID)

	s.next()
	child.joiners = append(child.joiners, main)
	main.waitFor = child.ID
	s.block(main, child.ID)
	if main.blockReason() != "joining thread 2" {
		t.Errorf("reason = %q", main.blockReason())
	}

	s.next()
	child.Result = Int(9)
	s.terminate(child)
	if child.State != Terminated || child.Depth() != 0 || len(child.joiners) != 0 {
		t.Errorf("child after terminate: %s depth %d", child.State, child.Depth())
	}
	if main.State != Ready || s.next() != main {
		t.Error("joiner not woken")
	}
	if s.Thread(2) != child || s.Thread(3) != nil || s.Thread(0) != nil {
		t.Error("thread lookup")
	}
}

func TestThreadStackUnderflow(t *testing.T) {
	th := newThread(1, testClosure("f"), nil)
	th.push(Int(1))
	if v := th.pop(); v.AsInt() != 1 {
		t.Fatalf("pop = %s", v)
	}
	defer func() {
		if f, ok := recover().(fault); !ok || f.err != ErrStackUnderflow {
			t.Errorf("recovered %v, want stack underflow", f.err)
		}
	}()
	th.pop()
}
