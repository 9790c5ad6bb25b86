package vm

// ---------------------------------------------------------------------------
// Scheduler: cooperative round-robin over logical threads
// ---------------------------------------------------------------------------

// DefaultQuantum is the instruction budget of one turn.
const DefaultQuantum = 100

// turnEnd says why a thread's turn ended.
type turnEnd uint8

const (
	endQuantum turnEnd = iota
	endYield
	endBlocked
	endTerminated
	endFault
)

// Scheduler owns every thread and the FIFO ready queue. A thread is in
// the queue exactly when its state is Ready.
type Scheduler struct {
	Quantum int

	threads []*Thread // indexed by ID-1
	ready   []*Thread
	trace   *Trace
	steps   uint64 // instructions executed so far, across all threads
}

// NewScheduler creates a scheduler; a quantum below 1 means DefaultQuantum.
func NewScheduler(quantum int, trace *Trace) *Scheduler {
	if quantum < 1 {
		quantum = DefaultQuantum
	}
	return &Scheduler{Quantum: quantum, trace: trace}
}

// Threads returns every thread ever created, in ID order.
func (s *Scheduler) Threads() []*Thread {
	return s.threads
}

// Thread returns the thread with the given ID, or nil.
func (s *Scheduler) Thread(id int) *Thread {
	if id < 1 || id > len(s.threads) {
		return nil
	}
	return s.threads[id-1]
}

// Steps returns the number of instructions executed so far.
func (s *Scheduler) Steps() uint64 {
	return s.steps
}

// spawn creates a thread running entry(args) and queues it behind every
// thread already ready.
func (s *Scheduler) spawn(entry *Closure, args []Value, parent int) *Thread {
	t := newThread(len(s.threads)+1, entry, args)
	s.threads = append(s.threads, t)
	s.ready = append(s.ready, t)
	s.trace.record(s.steps, EventSpawn, t.ID, parent)
	return t
}

// next dequeues the head of the ready queue and marks it running.
func (s *Scheduler) next() *Thread {
	if len(s.ready) == 0 {
		return nil
	}
	t := s.ready[0]
	s.ready[0] = nil
	s.ready = s.ready[1:]
	t.State = Running
	t.budget = s.Quantum
	s.trace.record(s.steps, EventRun, t.ID, 0)
	return t
}

// requeue puts a thread whose turn ended back at the tail.
func (s *Scheduler) requeue(t *Thread, end turnEnd) {
	kind := EventPreempt
	if end == endYield {
		kind = EventYield
	}
	s.trace.record(s.steps, kind, t.ID, 0)
	t.State = Ready
	s.ready = append(s.ready, t)
}

func (s *Scheduler) block(t *Thread, on int) {
	t.State = Blocked
	s.trace.record(s.steps, EventBlock, t.ID, on)
}

// wake moves a blocked thread to the tail of the ready queue.
func (s *Scheduler) wake(t *Thread, by int) {
	t.waitSem = 0
	t.waitFor = 0
	t.State = Ready
	s.ready = append(s.ready, t)
	s.trace.record(s.steps, EventWake, t.ID, by)
}

// terminate finishes t and releases every thread joining it.
func (s *Scheduler) terminate(t *Thread) {
	t.State = Terminated
	t.frames = nil
	t.stack = nil
	kind := EventExit
	if t.Fault != nil {
		kind = EventFault
	}
	s.trace.record(s.steps, kind, t.ID, 0)

	for _, j := range t.joiners {
		s.wake(j, t.ID)
	}
	t.joiners = nil
}

// blocked lists the threads currently blocked, in ID order.
func (s *Scheduler) blocked() []BlockedThread {
	var out []BlockedThread
	for _, t := range s.threads {
		if t.State == Blocked {
			out = append(out, BlockedThread{ID: t.ID, Reason: t.blockReason()})
		}
	}
	return out
}
