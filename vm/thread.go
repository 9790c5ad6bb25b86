package vm

import "fmt"

// ThreadState is the scheduling state of a logical thread.
type ThreadState uint8

const (
	Ready ThreadState = iota
	Running
	Blocked
	Terminated
)

func (s ThreadState) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("ThreadState(%d)", s)
}

// MainThread is the ID of the thread that runs the program entry.
const MainThread = 1

// Thread is a logical thread: a private call stack and operand stack
// multiplexed onto the single dispatch loop. Everything needed to resume
// it lives here, so a suspended thread is just this snapshot.
type Thread struct {
	ID    int
	State ThreadState

	frames []*Frame
	stack  []Value

	budget  int       // Instructions left in the current turn
	waitSem int       // Semaphore ID while blocked in wait, else 0
	waitFor int       // Thread ID while blocked in join, else 0
	joiners []*Thread // Threads blocked joining this one

	Result Value // Final value of the entry function
	Fault  error // Set if the thread terminated on a runtime error
}

func newThread(id int, entry *Closure, args []Value) *Thread {
	t := &Thread{ID: id, State: Ready, stack: make([]Value, 0, 32)}
	t.frames = []*Frame{newFrame(entry, args, 0)}
	return t
}

// Depth returns the number of active frames.
func (t *Thread) Depth() int {
	return len(t.frames)
}

// blockReason describes what a blocked thread waits on.
func (t *Thread) blockReason() string {
	switch {
	case t.waitSem != 0:
		return fmt.Sprintf("waiting on sem %d", t.waitSem)
	case t.waitFor != 0:
		return fmt.Sprintf("joining thread %d", t.waitFor)
	}
	return "blocked"
}

// ---------------------------------------------------------------------------
// Operand stack
// ---------------------------------------------------------------------------

func (t *Thread) push(v Value) {
	t.stack = append(t.stack, v)
}

func (t *Thread) pop() Value {
	n := len(t.stack)
	if n <= t.frame().Base {
		raise(ErrStackUnderflow)
	}
	v := t.stack[n-1]
	t.stack = t.stack[:n-1]
	return v
}

// popN removes the top n values, returned bottom first.
func (t *Thread) popN(n int) []Value {
	if len(t.stack)-n < t.frame().Base {
		raise(ErrStackUnderflow)
	}
	vals := make([]Value, n)
	copy(vals, t.stack[len(t.stack)-n:])
	t.stack = t.stack[:len(t.stack)-n]
	return vals
}

func (t *Thread) frame() *Frame {
	if len(t.frames) == 0 {
		raise(ErrFrameUnderflow)
	}
	return t.frames[len(t.frames)-1]
}
