package vm

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/oxido/pkg/bytecode"
)

var log = commonlog.GetLogger("oxido.vm")

// MaxDepth bounds the call stack of a single thread.
const MaxDepth = 10000

// VM executes one artifact. All of its state lives here: the heap shared
// by the program's threads, the scheduler, and the I/O the builtins use.
// A VM is not safe for concurrent use and runs its artifact once.
type VM struct {
	// Quantum is the per-turn instruction budget; 0 means DefaultQuantum.
	Quantum int

	Stdout io.Writer
	Stdin  io.Reader
	Stderr io.Writer

	// Debug prints every dispatched instruction to Stderr.
	Debug bool

	// Trace, when set, receives the scheduler's events.
	Trace *Trace

	art    *bytecode.Artifact
	consts []Value
	heap   *Heap
	sched  *Scheduler
	faults []*RuntimeError
	in     *bufio.Reader
}

// New creates a VM for art.
func New(art *bytecode.Artifact) *VM {
	return &VM{
		art:    art,
		Stdout: os.Stdout,
		Stdin:  os.Stdin,
		Stderr: os.Stderr,
	}
}

// Run executes the program until main terminates. It returns main's
// result. A fault in main, a deadlock or ctx cancellation ends the run
// with an error; faults in other threads are collected in Faults.
func (vm *VM) Run(ctx context.Context) (Value, error) {
	if err := vm.art.Validate(); err != nil {
		return Unit, err
	}
	main := vm.load()
	log.Debugf("running %s with quantum %d", vm.art.File, vm.sched.Quantum)

	for {
		if err := ctx.Err(); err != nil {
			return Unit, err
		}

		t := vm.sched.next()
		if t == nil {
			err := &DeadlockError{Blocked: vm.sched.blocked()}
			log.Debugf("%s", err)
			return Unit, err
		}

		end, rerr := vm.execute(t)
		switch end {
		case endQuantum, endYield:
			vm.sched.requeue(t, end)
		case endBlocked:
			// Queued on a semaphore or a joined thread.
		case endTerminated:
			vm.sched.terminate(t)
			log.Debugf("thread %d terminated", t.ID)
		case endFault:
			t.Fault = rerr
			vm.sched.terminate(t)
			if t != main {
				log.Errorf("%s", rerr)
				vm.faults = append(vm.faults, rerr)
			}
		}

		if main.State == Terminated {
			if main.Fault != nil {
				return Unit, main.Fault
			}
			return main.Result, nil
		}
	}
}

// load resets the run state and spawns the main thread.
func (vm *VM) load() *Thread {
	vm.consts = make([]Value, len(vm.art.Constants))
	for i, c := range vm.art.Constants {
		vm.consts[i] = fromConstant(c)
	}
	vm.heap = NewHeap(int(vm.art.GlobalCount))
	vm.sched = NewScheduler(vm.Quantum, vm.Trace)
	if vm.Trace != nil {
		vm.Trace.File = vm.art.File
		vm.Trace.Quantum = vm.sched.Quantum
	}
	vm.faults = nil
	return vm.sched.spawn(&Closure{Fn: &vm.art.Functions[0]}, nil, 0)
}

// Faults returns the runtime errors of threads other than main.
func (vm *VM) Faults() []*RuntimeError {
	return vm.faults
}

// Heap returns the globals and semaphores of the last run.
func (vm *VM) Heap() *Heap {
	return vm.heap
}

// Threads returns every thread of the last run, in ID order.
func (vm *VM) Threads() []*Thread {
	if vm.sched == nil {
		return nil
	}
	return vm.sched.Threads()
}

// Steps returns the number of instructions the last run executed.
func (vm *VM) Steps() uint64 {
	if vm.sched == nil {
		return 0
	}
	return vm.sched.Steps()
}

func (vm *VM) stdin() *bufio.Reader {
	if vm.in == nil {
		vm.in = bufio.NewReader(vm.Stdin)
	}
	return vm.in
}

// runtimeError attaches the position of the faulting instruction.
func (vm *VM) runtimeError(t *Thread, op bytecode.Opcode, offset int, err error) *RuntimeError {
	re := &RuntimeError{Thread: t.ID, Op: op, Offset: offset, Err: err, File: vm.art.File}
	line, col := vm.art.GetSourceLocation(uint32(offset))
	re.Line, re.Column = int(line), int(col)
	return re
}
