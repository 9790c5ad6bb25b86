package vm

import (
	"fmt"

	"github.com/chazu/oxido/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Interpreter: the dispatch loop shared by every thread
// ---------------------------------------------------------------------------

// execute runs t's top frame until its turn ends. Faults raised by an
// instruction come back as endFault with the RuntimeError.
func (vm *VM) execute(t *Thread) (end turnEnd, rerr *RuntimeError) {
	var (
		op     bytecode.Opcode
		offset int
	)
	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(fault)
			if !ok {
				panic(r)
			}
			end, rerr = endFault, vm.runtimeError(t, op, offset, f.err)
		}
	}()

	code := vm.art.Code
	for t.budget > 0 {
		fr := t.frame()
		offset = fr.IP
		if offset >= len(code) {
			op = bytecode.OpNop
			raisef(ErrBadInstruction, "ip %04x past end of code", offset)
		}
		op = bytecode.Opcode(code[offset])
		if offset+op.InstructionLen() > len(code) {
			raisef(ErrBadInstruction, "truncated %s", op)
		}
		fr.IP += op.InstructionLen()
		t.budget--
		vm.sched.steps++

		if vm.Debug {
			fmt.Fprintf(vm.Stderr, "[%04x] %-14s t=%d sp=%d\n", offset, op, t.ID, len(t.stack))
		}

		switch op {
		// ============ Stack ============
		case bytecode.OpNop:

		case bytecode.OpPop:
			t.pop()

		case bytecode.OpUnit:
			t.push(Unit)

		// ============ Constants ============
		case bytecode.OpConst:
			idx := int(vm.art.ReadUint16(offset + 1))
			if idx >= len(vm.consts) {
				raisef(ErrBadInstruction, "constant %d", idx)
			}
			t.push(vm.consts[idx])

		case bytecode.OpConstTrue:
			t.push(Bool(true))

		case bytecode.OpConstFalse:
			t.push(Bool(false))

		// ============ Variables ============
		case bytecode.OpLoadLocal:
			slot := int(vm.art.ReadUint16(offset + 1))
			if slot >= len(fr.Locals) {
				raisef(ErrBadSlot, "local %d", slot)
			}
			t.push(fr.Locals[slot])

		case bytecode.OpStoreLocal:
			slot := int(vm.art.ReadUint16(offset + 1))
			if slot >= len(fr.Locals) {
				raisef(ErrBadSlot, "local %d", slot)
			}
			fr.Locals[slot] = t.pop()

		case bytecode.OpLoadGlobal:
			slot := int(vm.art.ReadUint16(offset + 1))
			v := vm.heap.global(slot)
			if v.kind == kindUninit {
				raisef(ErrUninitialized, "%s", vm.globalName(slot))
			}
			t.push(v)

		case bytecode.OpStoreGlobal:
			vm.heap.setGlobal(int(vm.art.ReadUint16(offset+1)), t.pop())

		case bytecode.OpLoadCapture:
			idx := int(vm.art.ReadUint16(offset + 1))
			if idx >= len(fr.Closure.Env) {
				raisef(ErrBadSlot, "capture %d", idx)
			}
			t.push(fr.Closure.Env[idx])

		case bytecode.OpLoadSelf:
			t.push(ClosureValue(fr.Closure))

		// ============ Arithmetic and comparison ============
		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv:
			b := t.pop()
			a := t.pop()
			t.push(arith(op, a, b))

		case bytecode.OpNeg:
			switch a := t.pop(); a.Kind() {
			case KindInt:
				t.push(Int(-a.AsInt()))
			case KindFloat:
				t.push(Float(-a.AsFloat()))
			default:
				raisef(ErrTypeMismatch, "NEG on %s", a.Kind())
			}

		case bytecode.OpEq:
			b := t.pop()
			a := t.pop()
			t.push(Bool(Equal(a, b)))

		case bytecode.OpLt, bytecode.OpGt:
			b := t.pop()
			a := t.pop()
			c := compare(op, a, b)
			t.push(Bool(op == bytecode.OpLt && c < 0 || op == bytecode.OpGt && c > 0))

		case bytecode.OpNot:
			t.push(Bool(!wantKind(t.pop(), KindBool).AsBool()))

		// ============ Control flow ============
		case bytecode.OpJump:
			fr.IP += int(vm.art.ReadInt16(offset + 1))

		case bytecode.OpJumpFalse:
			if !wantKind(t.pop(), KindBool).AsBool() {
				fr.IP += int(vm.art.ReadInt16(offset + 1))
			}

		// ============ Functions ============
		case bytecode.OpClosure:
			idx := int(vm.art.ReadUint16(offset + 1))
			if idx >= len(vm.art.Functions) {
				raisef(ErrBadInstruction, "function %d", idx)
			}
			t.push(ClosureValue(newClosure(vm.art, idx, fr)))

		case bytecode.OpCall:
			argc := int(code[offset+1])
			args := t.popN(argc)
			c := callee(t.pop(), argc)
			if len(t.frames) >= MaxDepth {
				raisef(ErrStackOverflow, "depth %d", len(t.frames))
			}
			t.frames = append(t.frames, newFrame(c, args, len(t.stack)))

		case bytecode.OpCallBuiltin:
			id := bytecode.BuiltinID(code[offset+1])
			args := t.popN(int(code[offset+2]))
			t.push(vm.callBuiltin(t, id, args))

		case bytecode.OpReturn:
			result := t.pop()
			t.stack = t.stack[:fr.Base]
			t.frames = t.frames[:len(t.frames)-1]
			if len(t.frames) == 0 {
				t.Result = result
				return endTerminated, nil
			}
			t.push(result)

		// ============ Concurrency ============
		case bytecode.OpSpawn:
			argc := int(code[offset+1])
			args := t.popN(argc)
			c := callee(t.pop(), argc)
			child := vm.sched.spawn(c, args, t.ID)
			log.Debugf("thread %d spawned thread %d running %s", t.ID, child.ID, functionName(c))
			t.push(ThreadHandle(child.ID))

		case bytecode.OpJoin:
			h := t.pop()
			target := vm.sched.Thread(h.Handle())
			if h.Kind() != KindThread || target == nil {
				raisef(ErrBadHandle, "join on %s", h)
			}
			t.push(Unit)
			if target.State != Terminated {
				target.joiners = append(target.joiners, t)
				t.waitFor = target.ID
				vm.sched.block(t, target.ID)
				return endBlocked, nil
			}

		case bytecode.OpYield:
			t.push(Unit)
			return endYield, nil

		case bytecode.OpSemCreate:
			t.push(vm.heap.NewSemaphore(DefaultSemaphoreCount))

		case bytecode.OpWait:
			s := vm.semaphore(t.pop())
			t.push(Unit)
			if !s.tryAcquire() {
				s.enqueue(t.ID)
				t.waitSem = s.ID
				vm.sched.block(t, s.ID)
				return endBlocked, nil
			}

		case bytecode.OpPost:
			s := vm.semaphore(t.pop())
			t.push(Unit)
			if id := s.release(); id != 0 {
				if w := vm.sched.Thread(id); w != nil {
					vm.sched.wake(w, t.ID)
				}
			}

		default:
			raisef(ErrBadInstruction, "opcode 0x%02x", byte(op))
		}
	}
	return endQuantum, nil
}

func (vm *VM) semaphore(v Value) *Semaphore {
	s, err := vm.heap.Semaphore(v)
	if err != nil {
		raisef(err, "%s", v)
	}
	return s
}

// callee checks that v is a closure taking argc arguments.
func callee(v Value, argc int) *Closure {
	c := wantKind(v, KindClosure).AsClosure()
	if int(c.Fn.Arity) != argc {
		raisef(ErrTypeMismatch, "%s takes %d arguments, called with %d", functionName(c), c.Fn.Arity, argc)
	}
	return c
}

// globalName names a global slot for diagnostics.
func (vm *VM) globalName(slot int) string {
	if slot < len(vm.art.GlobalNames) && vm.art.GlobalNames[slot] != "" {
		return vm.art.GlobalNames[slot]
	}
	return fmt.Sprintf("global %d", slot)
}

func functionName(c *Closure) string {
	if c.Fn.Name == "" {
		return "function literal"
	}
	return c.Fn.Name
}

// arith applies + - * / to two ints or two floats. Integer division
// truncates; float division follows IEEE 754.
func arith(op bytecode.Opcode, a, b Value) Value {
	if a.Kind() != b.Kind() {
		raisef(ErrTypeMismatch, "%s on %s and %s", op, a.Kind(), b.Kind())
	}
	switch a.Kind() {
	case KindInt:
		x, y := a.AsInt(), b.AsInt()
		switch op {
		case bytecode.OpAdd:
			return Int(x + y)
		case bytecode.OpSub:
			return Int(x - y)
		case bytecode.OpMul:
			return Int(x * y)
		}
		if y == 0 {
			raise(ErrDivideByZero)
		}
		return Int(x / y)
	case KindFloat:
		x, y := a.AsFloat(), b.AsFloat()
		switch op {
		case bytecode.OpAdd:
			return Float(x + y)
		case bytecode.OpSub:
			return Float(x - y)
		case bytecode.OpMul:
			return Float(x * y)
		}
		return Float(x / y)
	}
	raisef(ErrTypeMismatch, "%s on %s", op, a.Kind())
	return Unit
}

// compare orders two ints, floats or strings.
func compare(op bytecode.Opcode, a, b Value) int {
	if a.Kind() != b.Kind() {
		raisef(ErrTypeMismatch, "%s on %s and %s", op, a.Kind(), b.Kind())
	}
	switch a.Kind() {
	case KindInt:
		return cmp3(a.AsInt() < b.AsInt(), a.AsInt() > b.AsInt())
	case KindFloat:
		return cmp3(a.AsFloat() < b.AsFloat(), a.AsFloat() > b.AsFloat())
	case KindString:
		return cmp3(a.AsString() < b.AsString(), a.AsString() > b.AsString())
	}
	raisef(ErrTypeMismatch, "%s on %s", op, a.Kind())
	return 0
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}
