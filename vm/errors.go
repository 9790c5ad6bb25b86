package vm

import (
	"errors"
	"fmt"

	"github.com/chazu/oxido/pkg/bytecode"
)

// Runtime failure causes. A RuntimeError wraps exactly one of these.
var (
	ErrDivideByZero   = errors.New("integer division by zero")
	ErrFrameUnderflow = errors.New("return with no active frame")
	ErrStackUnderflow = errors.New("operand stack underflow")
	ErrStackOverflow  = errors.New("call stack exhausted")
	ErrBadHandle      = errors.New("invalid thread or semaphore handle")
	ErrBadSlot        = errors.New("slot index out of range")
	ErrUninitialized  = errors.New("read of uninitialized global")
	ErrTypeMismatch   = errors.New("operand type mismatch")
	ErrBadInstruction = errors.New("invalid instruction")
	ErrConversion     = errors.New("conversion failed")
	ErrDeadlock       = errors.New("deadlock: every live thread is blocked")
)

// RuntimeError is a fault raised while a thread executes an instruction.
type RuntimeError struct {
	Thread int             // ID of the faulting thread
	Op     bytecode.Opcode // Instruction being executed
	Offset int             // Code offset of that instruction
	File   string          // Source file, when the artifact carries debug info
	Line   int             // Source line, 0 if unknown
	Column int
	Err    error
}

func (e *RuntimeError) Error() string {
	var where string
	switch {
	case e.Line > 0 && e.File != "":
		where = fmt.Sprintf("%s:%d:%d", e.File, e.Line, e.Column)
	case e.Line > 0:
		where = fmt.Sprintf("%d:%d", e.Line, e.Column)
	default:
		where = fmt.Sprintf("[%04x]", e.Offset)
	}
	return fmt.Sprintf("%s: thread %d: %s: %v", where, e.Thread, e.Op, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// fault is raised inside the dispatch loop and converted to a
// RuntimeError at the instruction boundary.
type fault struct {
	err error
}

func raise(err error) {
	panic(fault{err})
}

func raisef(err error, format string, args ...interface{}) {
	panic(fault{fmt.Errorf("%w: "+format, append([]interface{}{err}, args...)...)})
}

// DeadlockError reports the threads left blocked when the ready queue
// drained before main terminated.
type DeadlockError struct {
	Blocked []BlockedThread
}

// BlockedThread describes one thread stuck in a deadlock.
type BlockedThread struct {
	ID     int
	Reason string
}

func (e *DeadlockError) Error() string {
	msg := ErrDeadlock.Error()
	for i, b := range e.Blocked {
		sep := "; "
		if i == 0 {
			sep = ": "
		}
		msg += fmt.Sprintf("%sthread %d %s", sep, b.ID, b.Reason)
	}
	return msg
}

func (e *DeadlockError) Unwrap() error {
	return ErrDeadlock
}
