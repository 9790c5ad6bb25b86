package vm

// ---------------------------------------------------------------------------
// Semaphore: counting semaphore with a FIFO wait queue
// ---------------------------------------------------------------------------

// DefaultSemaphoreCount is the initial count of sem_create().
const DefaultSemaphoreCount = 1

// Semaphore is a counter plus the IDs of the threads blocked on it, in
// the order they will be woken.
type Semaphore struct {
	ID      int
	Count   int64
	waiters []int
}

// Waiters returns the blocked thread IDs, head first.
func (s *Semaphore) Waiters() []int {
	return append([]int(nil), s.waiters...)
}

// tryAcquire decrements a positive count and reports whether it did.
func (s *Semaphore) tryAcquire() bool {
	if s.Count > 0 {
		s.Count--
		return true
	}
	return false
}

func (s *Semaphore) enqueue(id int) {
	s.waiters = append(s.waiters, id)
}

// release increments the count and, if a thread is waiting, hands the
// unit straight to the head of the queue. It returns the woken thread ID,
// or 0.
func (s *Semaphore) release() int {
	s.Count++
	if len(s.waiters) == 0 {
		return 0
	}
	id := s.waiters[0]
	s.waiters = s.waiters[1:]
	s.Count--
	return id
}

// set overwrites the count, then hands units to waiters while any are
// left. It returns the woken thread IDs.
func (s *Semaphore) set(count int64) []int {
	s.Count = count
	var woken []int
	for s.Count > 0 && len(s.waiters) > 0 {
		woken = append(woken, s.waiters[0])
		s.waiters = s.waiters[1:]
		s.Count--
	}
	return woken
}

// ---------------------------------------------------------------------------
// Heap: state shared by every thread
// ---------------------------------------------------------------------------

// Heap holds the global slots and the semaphore table. It is owned by
// one VM and only touched by the thread holding the dispatch loop.
type Heap struct {
	Globals []Value
	sems    []*Semaphore
}

// NewHeap creates a heap with n global slots, none of them initialized.
func NewHeap(n int) *Heap {
	h := &Heap{Globals: make([]Value, n)}
	for i := range h.Globals {
		h.Globals[i] = uninitialized
	}
	return h
}

// NewSemaphore allocates a semaphore and returns its handle.
func (h *Heap) NewSemaphore(count int64) Value {
	s := &Semaphore{ID: len(h.sems) + 1, Count: count}
	h.sems = append(h.sems, s)
	return SemHandle(s.ID)
}

// Semaphore resolves a handle value.
func (h *Heap) Semaphore(v Value) (*Semaphore, error) {
	if v.Kind() != KindSem {
		return nil, ErrBadHandle
	}
	id := v.Handle()
	if id < 1 || id > len(h.sems) {
		return nil, ErrBadHandle
	}
	return h.sems[id-1], nil
}

// Semaphores returns every semaphore allocated so far.
func (h *Heap) Semaphores() []*Semaphore {
	return h.sems
}

func (h *Heap) global(slot int) Value {
	if slot >= len(h.Globals) {
		raisef(ErrBadSlot, "global %d", slot)
	}
	return h.Globals[slot]
}

func (h *Heap) setGlobal(slot int, v Value) {
	if slot >= len(h.Globals) {
		raisef(ErrBadSlot, "global %d", slot)
	}
	h.Globals[slot] = v
}
