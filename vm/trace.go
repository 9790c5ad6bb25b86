package vm

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Trace: scheduler event log
// ---------------------------------------------------------------------------

// EventKind names a scheduler event.
type EventKind string

const (
	EventSpawn   EventKind = "spawn"   // Other is the spawning thread
	EventRun     EventKind = "run"     // a turn begins
	EventPreempt EventKind = "preempt" // quantum expired
	EventYield   EventKind = "yield"
	EventBlock   EventKind = "block" // Other is the semaphore or joined thread
	EventWake    EventKind = "wake"  // Other is the posting or terminating thread
	EventExit    EventKind = "exit"
	EventFault   EventKind = "fault"
)

// Event is one entry of a trace.
type Event struct {
	Step   uint64    `cbor:"1,keyasint"`
	Kind   EventKind `cbor:"2,keyasint"`
	Thread int       `cbor:"3,keyasint"`
	Other  int       `cbor:"4,keyasint,omitempty"`
}

// Trace records what the scheduler did during one run.
type Trace struct {
	RunID   string  `cbor:"1,keyasint"`
	File    string  `cbor:"2,keyasint,omitempty"`
	Quantum int     `cbor:"3,keyasint"`
	Events  []Event `cbor:"4,keyasint"`
}

var traceEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	traceEncMode = em
}

// NewTrace creates an empty trace stamped with a fresh run ID.
func NewTrace() *Trace {
	return &Trace{RunID: uuid.New().String()}
}

func (tr *Trace) record(step uint64, kind EventKind, thread, other int) {
	if tr == nil {
		return
	}
	tr.Events = append(tr.Events, Event{Step: step, Kind: kind, Thread: thread, Other: other})
}

// Turns returns the thread ID of every turn, in scheduling order.
func (tr *Trace) Turns() []int {
	var ids []int
	for _, e := range tr.Events {
		if e.Kind == EventRun {
			ids = append(ids, e.Thread)
		}
	}
	return ids
}

// Count returns how many events of the given kind were recorded.
func (tr *Trace) Count(kind EventKind) int {
	n := 0
	for _, e := range tr.Events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Marshal encodes the trace as canonical CBOR.
func (tr *Trace) Marshal() ([]byte, error) {
	return traceEncMode.Marshal(tr)
}

// WriteTo writes the CBOR encoding of the trace to w.
func (tr *Trace) WriteTo(w io.Writer) (int64, error) {
	data, err := tr.Marshal()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// ReadTrace decodes a trace written by WriteTo.
func ReadTrace(r io.Reader) (*Trace, error) {
	var tr Trace
	if err := cbor.NewDecoder(r).Decode(&tr); err != nil {
		return nil, fmt.Errorf("vm: read trace: %w", err)
	}
	return &tr, nil
}
