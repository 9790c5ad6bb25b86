package bytecode

import (
	"errors"
	"fmt"
	"math"
)

// BytecodeVersion is the current artifact format version.
// Increment when making incompatible changes to the format.
const BytecodeVersion uint16 = 1

// Magic bytes for artifact files: "OXBC" (OXido ByteCode)
var BytecodeMagic = []byte{'O', 'X', 'B', 'C'}

// ErrJumpTooFar is returned when a jump offset does not fit in 16 bits.
var ErrJumpTooFar = errors.New("jump offset exceeds 16 bits")

// ArtifactFlags contains compilation flags for an artifact.
type ArtifactFlags uint16

const (
	// FlagDebug indicates the debug section is present.
	FlagDebug ArtifactFlags = 1 << 0

	// FlagConcurrent indicates the code contains concurrency instructions.
	FlagConcurrent ArtifactFlags = 1 << 1
)

// ConstKind tags a constant pool entry.
type ConstKind uint8

const (
	ConstInt    ConstKind = 1
	ConstFloat  ConstKind = 2
	ConstString ConstKind = 3
	ConstBool   ConstKind = 4
)

// String returns a human-readable name for ConstKind.
func (k ConstKind) String() string {
	switch k {
	case ConstInt:
		return "int"
	case ConstFloat:
		return "float"
	case ConstString:
		return "string"
	case ConstBool:
		return "bool"
	default:
		return fmt.Sprintf("ConstKind(%d)", k)
	}
}

// Constant is a tagged literal in the constant pool.
type Constant struct {
	Kind  ConstKind
	Int   int64
	Float float64
	Str   string
	Bool  bool
}

// IntConst returns an int constant.
func IntConst(v int64) Constant { return Constant{Kind: ConstInt, Int: v} }

// FloatConst returns a float constant.
func FloatConst(v float64) Constant { return Constant{Kind: ConstFloat, Float: v} }

// StringConst returns a string constant.
func StringConst(v string) Constant { return Constant{Kind: ConstString, Str: v} }

// BoolConst returns a bool constant.
func BoolConst(v bool) Constant { return Constant{Kind: ConstBool, Bool: v} }

// Same reports whether two constants are the same pool entry.
// Floats compare by bit pattern so -0.0 and NaN payloads stay distinct.
func (c Constant) Same(o Constant) bool {
	if c.Kind != o.Kind {
		return false
	}
	switch c.Kind {
	case ConstInt:
		return c.Int == o.Int
	case ConstFloat:
		return math.Float64bits(c.Float) == math.Float64bits(o.Float)
	case ConstString:
		return c.Str == o.Str
	case ConstBool:
		return c.Bool == o.Bool
	}
	return false
}

func (c Constant) String() string {
	switch c.Kind {
	case ConstInt:
		return fmt.Sprintf("%d", c.Int)
	case ConstFloat:
		return fmt.Sprintf("%g", c.Float)
	case ConstString:
		return fmt.Sprintf("%q", c.Str)
	case ConstBool:
		return fmt.Sprintf("%t", c.Bool)
	}
	return "?"
}

// CaptureSource indicates where a captured value is copied from when a
// closure is created.
type CaptureSource uint8

const (
	// CaptureLocal copies a local slot of the creating frame.
	CaptureLocal CaptureSource = 0

	// CaptureOuter copies an entry of the creating closure's own environment.
	CaptureOuter CaptureSource = 1
)

// String returns a human-readable name for CaptureSource.
func (s CaptureSource) String() string {
	switch s {
	case CaptureLocal:
		return "local"
	case CaptureOuter:
		return "capture"
	default:
		return fmt.Sprintf("CaptureSource(%d)", s)
	}
}

// Capture describes one environment entry of a closure.
type Capture struct {
	Source CaptureSource
	Index  uint16
}

// Function is an entry of the function table.
type Function struct {
	Name     string    // Declared name, empty for anonymous functions
	Arity    uint8     // Number of parameters (occupying slots 0..Arity-1)
	Locals   uint16    // Total local slots, parameters included
	Entry    uint32    // Code offset of the first instruction
	Captures []Capture // Environment layout, in LOAD_CAPTURE index order
}

// SourceLocation maps a code offset to a source position for diagnostics.
type SourceLocation struct {
	BytecodeOffset uint32 // Offset in code section
	Line           uint32 // Source line number (1-based)
	Column         uint16 // Source column number (1-based)
}

// Artifact is a compiled program: constant pool, function table and a
// flat instruction stream. It is immutable once compilation finishes and
// is shared read-only by every thread of the VM.
type Artifact struct {
	// Header
	Version uint16
	Flags   ArtifactFlags

	Constants   []Constant
	Functions   []Function // Functions[0] is the program entry
	GlobalCount uint16
	Code        []byte

	// Debug information (present if FlagDebug is set)
	File        string
	GlobalNames []string
	SourceMap   []SourceLocation
}

// NewArtifact creates an empty artifact with the current version.
func NewArtifact() *Artifact {
	return &Artifact{
		Version:   BytecodeVersion,
		Code:      make([]byte, 0, 256),
		Constants: make([]Constant, 0, 8),
	}
}

// AddConstant adds a constant to the pool and returns its index.
// If the constant already exists, returns the existing index.
func (a *Artifact) AddConstant(c Constant) uint16 {
	for i, existing := range a.Constants {
		if existing.Same(c) {
			return uint16(i)
		}
	}
	idx := uint16(len(a.Constants))
	a.Constants = append(a.Constants, c)
	return idx
}

// GetConstant returns the constant at the given index.
// Panics if the index is out of bounds.
func (a *Artifact) GetConstant(index uint16) Constant {
	return a.Constants[index]
}

// AddFunction appends a function table entry and returns its index.
func (a *Artifact) AddFunction(fn Function) uint16 {
	idx := uint16(len(a.Functions))
	a.Functions = append(a.Functions, fn)
	return idx
}

// Main returns the program entry function.
func (a *Artifact) Main() *Function {
	if len(a.Functions) == 0 {
		return nil
	}
	return &a.Functions[0]
}

// Emit appends a single-byte opcode to the code section.
func (a *Artifact) Emit(op Opcode) int {
	offset := len(a.Code)
	a.Code = append(a.Code, byte(op))
	if op.IsConcurrency() {
		a.Flags |= FlagConcurrent
	}
	return offset
}

// EmitWithOperand appends an opcode with operand bytes.
func (a *Artifact) EmitWithOperand(op Opcode, operands ...byte) int {
	offset := a.Emit(op)
	a.Code = append(a.Code, operands...)
	return offset
}

// EmitUint16 appends an opcode with a big-endian u16 operand.
func (a *Artifact) EmitUint16(op Opcode, v uint16) int {
	return a.EmitWithOperand(op, byte(v>>8), byte(v))
}

// EmitConstant emits an OpConst instruction for the given value.
// Adds the constant to the pool if not already present.
func (a *Artifact) EmitConstant(c Constant) int {
	return a.EmitUint16(OpConst, a.AddConstant(c))
}

// EmitJump emits a jump instruction with a placeholder offset.
// Returns the offset of the placeholder for later patching.
func (a *Artifact) EmitJump(op Opcode) int {
	offset := a.Emit(op)
	a.Code = append(a.Code, 0xFF, 0xFF) // Placeholder
	return offset + 1
}

// PatchJump patches a jump instruction's offset to jump to the current position.
func (a *Artifact) PatchJump(placeholderOffset int) error {
	return a.PatchJumpTo(placeholderOffset, len(a.Code))
}

// PatchJumpTo patches a jump to go to a specific offset.
func (a *Artifact) PatchJumpTo(placeholderOffset int, target int) error {
	delta := target - (placeholderOffset + 2)
	if delta < math.MinInt16 || delta > math.MaxInt16 {
		return fmt.Errorf("%w: %d", ErrJumpTooFar, delta)
	}
	a.Code[placeholderOffset] = byte(delta >> 8)
	a.Code[placeholderOffset+1] = byte(delta)
	return nil
}

// EmitLoop emits a backward jump to the given loop start.
func (a *Artifact) EmitLoop(loopStart int) error {
	placeholder := a.EmitJump(OpJump)
	return a.PatchJumpTo(placeholder, loopStart)
}

// CurrentOffset returns the current offset in the code section.
func (a *Artifact) CurrentOffset() int {
	return len(a.Code)
}

// ReadUint16 decodes the u16 operand stored at offset.
func (a *Artifact) ReadUint16(offset int) uint16 {
	return uint16(a.Code[offset])<<8 | uint16(a.Code[offset+1])
}

// ReadInt16 decodes the signed jump operand stored at offset.
func (a *Artifact) ReadInt16(offset int) int16 {
	return int16(a.ReadUint16(offset))
}

// AddSourceLocation records the source position of the instruction at
// bytecodeOffset. Consecutive instructions on the same position share
// one entry.
func (a *Artifact) AddSourceLocation(bytecodeOffset uint32, line uint32, column uint16) {
	a.Flags |= FlagDebug
	if n := len(a.SourceMap); n > 0 {
		last := a.SourceMap[n-1]
		if last.Line == line && last.Column == column {
			return
		}
	}
	a.SourceMap = append(a.SourceMap, SourceLocation{
		BytecodeOffset: bytecodeOffset,
		Line:           line,
		Column:         column,
	})
}

// GetSourceLocation returns the source location for a bytecode offset.
// Returns line 0, column 0 if no mapping exists.
func (a *Artifact) GetSourceLocation(offset uint32) (line uint32, column uint16) {
	// Find the nearest mapping at or before the offset
	for i := len(a.SourceMap) - 1; i >= 0; i-- {
		if a.SourceMap[i].BytecodeOffset <= offset {
			return a.SourceMap[i].Line, a.SourceMap[i].Column
		}
	}
	return 0, 0
}

// FunctionAt returns the index of the function whose body contains
// offset, or -1. Function bodies are contiguous in the code stream, so
// the closest entry at or before offset wins.
func (a *Artifact) FunctionAt(offset uint32) int {
	best := -1
	for i, fn := range a.Functions {
		if fn.Entry <= offset && (best < 0 || fn.Entry >= a.Functions[best].Entry) {
			best = i
		}
	}
	return best
}
