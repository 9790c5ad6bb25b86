package compiler

import (
	"math"
	"sort"

	"github.com/chazu/oxido/pkg/bytecode"
)

// builtinSig is the static signature of a native function.
type builtinSig struct {
	ID      bytecode.BuiltinID
	Params  []*Type // a nil entry accepts any type
	Result  *Type   // nil means the type of the first argument
	Numeric bool    // every argument shares one int or float type
}

var builtinSigs = map[string]builtinSig{
	"print":        {ID: bytecode.BuiltinPrint, Params: []*Type{nil}, Result: TypeUnit},
	"println":      {ID: bytecode.BuiltinPrintln, Params: []*Type{nil}, Result: TypeUnit},
	"string_len":   {ID: bytecode.BuiltinStringLen, Params: []*Type{TypeString}, Result: TypeInt},
	"min":          {ID: bytecode.BuiltinMin, Params: []*Type{nil, nil}, Numeric: true},
	"max":          {ID: bytecode.BuiltinMax, Params: []*Type{nil, nil}, Numeric: true},
	"abs":          {ID: bytecode.BuiltinAbs, Params: []*Type{nil}, Numeric: true},
	"sqrt":         {ID: bytecode.BuiltinSqrt, Params: []*Type{TypeFloat}, Result: TypeFloat},
	"sin":          {ID: bytecode.BuiltinSin, Params: []*Type{TypeFloat}, Result: TypeFloat},
	"cos":          {ID: bytecode.BuiltinCos, Params: []*Type{TypeFloat}, Result: TypeFloat},
	"tan":          {ID: bytecode.BuiltinTan, Params: []*Type{TypeFloat}, Result: TypeFloat},
	"log":          {ID: bytecode.BuiltinLog, Params: []*Type{TypeFloat}, Result: TypeFloat},
	"pow":          {ID: bytecode.BuiltinPow, Params: []*Type{TypeFloat, TypeFloat}, Result: TypeFloat},
	"itoa":         {ID: bytecode.BuiltinItoa, Params: []*Type{TypeInt}, Result: TypeString},
	"atoi":         {ID: bytecode.BuiltinAtoi, Params: []*Type{TypeString}, Result: TypeInt},
	"float_to_int": {ID: bytecode.BuiltinFloatToInt, Params: []*Type{TypeFloat}, Result: TypeInt},
	"int_to_float": {ID: bytecode.BuiltinIntToFloat, Params: []*Type{TypeInt}, Result: TypeFloat},
	"sem_set":      {ID: bytecode.BuiltinSemSet, Params: []*Type{TypeSem, TypeInt}, Result: TypeUnit},
	"read_line":    {ID: bytecode.BuiltinReadLine, Params: []*Type{}, Result: TypeString},
}

// builtinConst is a predeclared constant inlined at each use.
type builtinConst struct {
	Type  *Type
	Value bytecode.Constant
}

var builtinConsts = map[string]builtinConst{
	"PI":      {Type: TypeFloat, Value: bytecode.FloatConst(math.Pi)},
	"MAX_INT": {Type: TypeInt, Value: bytecode.IntConst(math.MaxInt64)},
}

// Predeclared returns the names of all builtins and constants, sorted.
func Predeclared() []string {
	names := make([]string, 0, len(builtinSigs)+len(builtinConsts)+1)
	for name := range builtinSigs {
		names = append(names, name)
	}
	for name := range builtinConsts {
		names = append(names, name)
	}
	names = append(names, "sem_create")
	sort.Strings(names)
	return names
}

// BuiltinSignature renders the signature of a builtin for tooling.
func BuiltinSignature(name string) (string, bool) {
	if name == "sem_create" {
		return "sem_create() -> sem", true
	}
	if c, ok := builtinConsts[name]; ok {
		return name + ": " + c.Type.String(), true
	}
	sig, ok := builtinSigs[name]
	if !ok {
		return "", false
	}
	params := "("
	for i, p := range sig.Params {
		if i > 0 {
			params += ", "
		}
		switch {
		case p != nil:
			params += p.String()
		case sig.Numeric:
			params += "T"
		default:
			params += "any"
		}
	}
	params += ")"
	result := "T"
	if sig.Result != nil {
		result = sig.Result.String()
	}
	return name + params + " -> " + result, true
}
