package bytecode

// BuiltinID identifies a native function invoked by OpCallBuiltin.
// The numbering is part of the artifact format.
type BuiltinID uint8

const (
	BuiltinPrint BuiltinID = iota
	BuiltinPrintln
	BuiltinStringLen
	BuiltinMin
	BuiltinMax
	BuiltinAbs
	BuiltinSqrt
	BuiltinSin
	BuiltinCos
	BuiltinTan
	BuiltinLog
	BuiltinPow
	BuiltinItoa
	BuiltinAtoi
	BuiltinFloatToInt
	BuiltinIntToFloat
	BuiltinSemSet
	BuiltinReadLine

	builtinCount
)

var builtinNames = [...]string{
	BuiltinPrint:      "print",
	BuiltinPrintln:    "println",
	BuiltinStringLen:  "string_len",
	BuiltinMin:        "min",
	BuiltinMax:        "max",
	BuiltinAbs:        "abs",
	BuiltinSqrt:       "sqrt",
	BuiltinSin:        "sin",
	BuiltinCos:        "cos",
	BuiltinTan:        "tan",
	BuiltinLog:        "log",
	BuiltinPow:        "pow",
	BuiltinItoa:       "itoa",
	BuiltinAtoi:       "atoi",
	BuiltinFloatToInt: "float_to_int",
	BuiltinIntToFloat: "int_to_float",
	BuiltinSemSet:     "sem_set",
	BuiltinReadLine:   "read_line",
}

// String returns the source-level name of the builtin.
func (b BuiltinID) String() string {
	if b < builtinCount {
		return builtinNames[b]
	}
	return "builtin?"
}

// Valid reports whether b names a known builtin.
func (b BuiltinID) Valid() bool {
	return b < builtinCount
}

// LookupBuiltin returns the builtin with the given source name.
func LookupBuiltin(name string) (BuiltinID, bool) {
	for i, n := range builtinNames {
		if n == name {
			return BuiltinID(i), true
		}
	}
	return 0, false
}

// BuiltinNames returns every builtin name in ID order.
func BuiltinNames() []string {
	names := make([]string, len(builtinNames))
	copy(names, builtinNames[:])
	return names
}
