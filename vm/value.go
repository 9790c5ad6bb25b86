package vm

import (
	"fmt"
	"strconv"

	"github.com/chazu/oxido/pkg/bytecode"
)

// Kind is the runtime tag of a Value.
type Kind uint8

const (
	KindUnit Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindClosure
	KindThread
	KindSem

	// kindUninit marks a global slot no store has reached yet.
	kindUninit
)

var kindNames = [...]string{
	KindUnit:    "unit",
	KindInt:     "int",
	KindFloat:   "float",
	KindBool:    "bool",
	KindString:  "string",
	KindClosure: "closure",
	KindThread:  "thread",
	KindSem:     "sem",
	kindUninit:  "uninitialized",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Value is a tagged runtime value. Ints, bools and handles share the n
// payload; the zero Value is Unit.
type Value struct {
	kind Kind
	n    int64
	f    float64
	s    string
	fn   *Closure
}

// Unit is the value of expressions that produce nothing.
var Unit = Value{}

var uninitialized = Value{kind: kindUninit}

// Constructors

func Int(v int64) Value { return Value{kind: KindInt, n: v} }
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }
func String(v string) Value { return Value{kind: KindString, s: v} }

func Bool(v bool) Value {
	if v {
		return Value{kind: KindBool, n: 1}
	}
	return Value{kind: KindBool}
}

func ClosureValue(c *Closure) Value { return Value{kind: KindClosure, fn: c} }
func ThreadHandle(id int) Value { return Value{kind: KindThread, n: int64(id)} }
func SemHandle(id int) Value { return Value{kind: KindSem, n: int64(id)} }

// fromConstant converts a constant pool entry.
func fromConstant(c bytecode.Constant) Value {
	switch c.Kind {
	case bytecode.ConstInt:
		return Int(c.Int)
	case bytecode.ConstFloat:
		return Float(c.Float)
	case bytecode.ConstString:
		return String(c.Str)
	case bytecode.ConstBool:
		return Bool(c.Bool)
	}
	return Unit
}

// Accessors

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsUnit() bool { return v.kind == KindUnit }
func (v Value) AsInt() int64 { return v.n }
func (v Value) AsFloat() float64 { return v.f }
func (v Value) AsBool() bool { return v.n != 0 }
func (v Value) AsString() string { return v.s }
func (v Value) AsClosure() *Closure { return v.fn }
func (v Value) Handle() int { return int(v.n) }

// Equal reports whether a and b are the same value. Values of different
// kinds are never equal.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindUnit:
		return true
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindClosure:
		return a.fn == b.fn
	}
	return a.n == b.n
}

// String renders v the way print shows it.
func (v Value) String() string {
	switch v.kind {
	case KindUnit:
		return "()"
	case KindInt:
		return strconv.FormatInt(v.n, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.n != 0)
	case KindString:
		return v.s
	case KindClosure:
		if v.fn == nil || v.fn.Fn.Name == "" {
			return "<fn>"
		}
		return "<fn " + v.fn.Fn.Name + ">"
	case KindThread:
		return fmt.Sprintf("<thread %d>", v.n)
	case KindSem:
		return fmt.Sprintf("<sem %d>", v.n)
	}
	return fmt.Sprintf("<%s>", v.kind)
}
