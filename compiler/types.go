package compiler

import "strings"

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Kind classifies a Type.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindBool
	KindString
	KindUnit
	KindThread
	KindSem
	KindFunc
	KindNever // type of return and break
)

// Type is an oxido type. Basic types are shared singletons and compare
// nominally; function types compare structurally. Types are immutable.
type Type struct {
	Kind   Kind
	Params []*Type // function types only
	Result *Type   // function types only
}

// Basic types.
var (
	TypeInt    = &Type{Kind: KindInt}
	TypeFloat  = &Type{Kind: KindFloat}
	TypeBool   = &Type{Kind: KindBool}
	TypeString = &Type{Kind: KindString}
	TypeUnit   = &Type{Kind: KindUnit}
	TypeThread = &Type{Kind: KindThread}
	TypeSem    = &Type{Kind: KindSem}
	TypeNever  = &Type{Kind: KindNever}
)

// basicTypes maps annotation names to types.
var basicTypes = map[string]*Type{
	"int":    TypeInt,
	"float":  TypeFloat,
	"bool":   TypeBool,
	"string": TypeString,
	"thread": TypeThread,
	"sem":    TypeSem,
}

// FuncType returns the function type fn(params) -> result.
func FuncType(params []*Type, result *Type) *Type {
	return &Type{Kind: KindFunc, Params: params, Result: result}
}

// Equal reports whether t and o are the same type.
func (t *Type) Equal(o *Type) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil || t.Kind != o.Kind {
		return false
	}
	if t.Kind != KindFunc {
		return true
	}
	if len(t.Params) != len(o.Params) {
		return false
	}
	for i := range t.Params {
		if !t.Params[i].Equal(o.Params[i]) {
			return false
		}
	}
	return t.Result.Equal(o.Result)
}

// IsNumeric reports whether t is int or float.
func (t *Type) IsNumeric() bool {
	return t.Kind == KindInt || t.Kind == KindFloat
}

// IsNever reports whether t is the never type.
func (t *Type) IsNever() bool {
	return t.Kind == KindNever
}

// AssignableTo reports whether a value of type t may be used where want is
// expected. Never flows into anything.
func (t *Type) AssignableTo(want *Type) bool {
	return t.IsNever() || t.Equal(want)
}

// unify returns the common type of two branches.
func unify(a, b *Type) (*Type, bool) {
	switch {
	case a.IsNever():
		return b, true
	case b.IsNever():
		return a, true
	case a.Equal(b):
		return a, true
	}
	return nil, false
}

func (t *Type) String() string {
	if t == nil {
		return "<unchecked>"
	}
	switch t.Kind {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindUnit:
		return "()"
	case KindThread:
		return "thread"
	case KindSem:
		return "sem"
	case KindNever:
		return "!"
	case KindFunc:
		var sb strings.Builder
		sb.WriteString("fn(")
		for i, p := range t.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.String())
		}
		sb.WriteString(")")
		if t.Result.Kind != KindUnit {
			sb.WriteString(" -> ")
			sb.WriteString(t.Result.String())
		}
		return sb.String()
	}
	return "?"
}
