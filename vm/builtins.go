package vm

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/oxido/pkg/bytecode"
)

// builtinArity is the argument count every builtin is called with.
var builtinArity = map[bytecode.BuiltinID]int{
	bytecode.BuiltinPrint:      1,
	bytecode.BuiltinPrintln:    1,
	bytecode.BuiltinStringLen:  1,
	bytecode.BuiltinMin:        2,
	bytecode.BuiltinMax:        2,
	bytecode.BuiltinAbs:        1,
	bytecode.BuiltinSqrt:       1,
	bytecode.BuiltinSin:        1,
	bytecode.BuiltinCos:        1,
	bytecode.BuiltinTan:        1,
	bytecode.BuiltinLog:        1,
	bytecode.BuiltinPow:        2,
	bytecode.BuiltinItoa:       1,
	bytecode.BuiltinAtoi:       1,
	bytecode.BuiltinFloatToInt: 1,
	bytecode.BuiltinIntToFloat: 1,
	bytecode.BuiltinSemSet:     2,
	bytecode.BuiltinReadLine:   0,
}

// callBuiltin runs a native function on behalf of t.
func (vm *VM) callBuiltin(t *Thread, id bytecode.BuiltinID, args []Value) Value {
	if want, ok := builtinArity[id]; !ok || want != len(args) {
		raisef(ErrBadInstruction, "%s called with %d arguments", id, len(args))
	}

	switch id {
	case bytecode.BuiltinPrint:
		vm.write(args[0].String())
		return Unit
	case bytecode.BuiltinPrintln:
		vm.write(args[0].String() + "\n")
		return Unit

	case bytecode.BuiltinStringLen:
		return Int(int64(len(wantKind(args[0], KindString).AsString())))

	case bytecode.BuiltinMin, bytecode.BuiltinMax:
		a, b := args[0], args[1]
		if a.Kind() != b.Kind() {
			raisef(ErrTypeMismatch, "%s(%s, %s)", id, a.Kind(), b.Kind())
		}
		less := false
		switch a.Kind() {
		case KindInt:
			less = a.AsInt() < b.AsInt()
		case KindFloat:
			less = a.AsFloat() < b.AsFloat()
		default:
			raisef(ErrTypeMismatch, "%s on %s", id, a.Kind())
		}
		if less == (id == bytecode.BuiltinMin) {
			return a
		}
		return b

	case bytecode.BuiltinAbs:
		switch a := args[0]; a.Kind() {
		case KindInt:
			if a.AsInt() < 0 {
				return Int(-a.AsInt())
			}
			return a
		case KindFloat:
			return Float(math.Abs(a.AsFloat()))
		}
		raisef(ErrTypeMismatch, "abs on %s", args[0].Kind())

	case bytecode.BuiltinSqrt:
		return Float(math.Sqrt(floatArg(args[0])))
	case bytecode.BuiltinSin:
		return Float(math.Sin(floatArg(args[0])))
	case bytecode.BuiltinCos:
		return Float(math.Cos(floatArg(args[0])))
	case bytecode.BuiltinTan:
		return Float(math.Tan(floatArg(args[0])))
	case bytecode.BuiltinLog:
		return Float(math.Log(floatArg(args[0])))
	case bytecode.BuiltinPow:
		return Float(math.Pow(floatArg(args[0]), floatArg(args[1])))

	case bytecode.BuiltinItoa:
		return String(strconv.FormatInt(wantKind(args[0], KindInt).AsInt(), 10))
	case bytecode.BuiltinAtoi:
		s := wantKind(args[0], KindString).AsString()
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			raisef(ErrConversion, "atoi(%q)", s)
		}
		return Int(n)
	case bytecode.BuiltinFloatToInt:
		return Int(int64(floatArg(args[0])))
	case bytecode.BuiltinIntToFloat:
		return Float(float64(wantKind(args[0], KindInt).AsInt()))

	case bytecode.BuiltinSemSet:
		s, err := vm.heap.Semaphore(args[0])
		if err != nil {
			raise(err)
		}
		for _, woken := range s.set(wantKind(args[1], KindInt).AsInt()) {
			if w := vm.sched.Thread(woken); w != nil {
				vm.sched.wake(w, t.ID)
			}
		}
		return Unit

	case bytecode.BuiltinReadLine:
		return String(vm.readLine())
	}

	raisef(ErrBadInstruction, "unknown builtin %d", id)
	return Unit
}

func (vm *VM) write(s string) {
	if _, err := io.WriteString(vm.Stdout, s); err != nil {
		log.Warningf("write to program output failed: %s", err)
	}
}

func (vm *VM) readLine() string {
	if vm.Stdin == nil {
		return ""
	}
	line, err := vm.stdin().ReadString('\n')
	if err != nil && err != io.EOF {
		log.Warningf("read_line: %s", err)
	}
	return strings.TrimRight(line, "\r\n")
}

func wantKind(v Value, k Kind) Value {
	if v.Kind() != k {
		raise(fmt.Errorf("%w: want %s, have %s", ErrTypeMismatch, k, v.Kind()))
	}
	return v
}

func floatArg(v Value) float64 {
	return wantKind(v, KindFloat).AsFloat()
}
