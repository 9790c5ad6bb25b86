package bytecode

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
)

// sampleArtifact builds a small two-function program by hand:
//
//	fn0 main:  CONST 0; CLOSURE fn1; CALL... (shape only, not executed here)
//	fn1 add1:  LOAD_LOCAL 0; CONST 1; ADD; RETURN
func sampleArtifact() *Artifact {
	a := NewArtifact()
	a.GlobalCount = 1
	a.File = "sample.ox"
	a.GlobalNames = []string{"add1"}

	a.AddFunction(Function{Name: "main", Entry: 0})
	a.EmitUint16(OpClosure, 1)
	a.AddSourceLocation(0, 1, 1)
	a.EmitUint16(OpStoreGlobal, 0)
	a.EmitUint16(OpLoadGlobal, 0)
	a.EmitConstant(IntConst(41))
	a.EmitWithOperand(OpCall, 1)
	a.Emit(OpReturn)

	entry := uint32(a.CurrentOffset())
	a.AddFunction(Function{Name: "add1", Arity: 1, Locals: 1, Entry: entry})
	a.EmitUint16(OpLoadLocal, 0)
	a.AddSourceLocation(entry, 2, 5)
	a.EmitConstant(IntConst(1))
	a.Emit(OpAdd)
	a.Emit(OpReturn)

	a.AddConstant(FloatConst(2.5))
	a.AddConstant(StringConst("héllo\n"))
	a.AddConstant(BoolConst(true))
	return a
}

func TestNewArtifact(t *testing.T) {
	a := NewArtifact()

	if a.Version != BytecodeVersion {
		t.Errorf("Version = %d, want %d", a.Version, BytecodeVersion)
	}
	if a.Code == nil {
		t.Error("Code is nil")
	}
	if a.Main() != nil {
		t.Error("empty artifact has a main function")
	}
}

func TestAddConstantDeduplicates(t *testing.T) {
	a := NewArtifact()

	i0 := a.AddConstant(IntConst(7))
	i1 := a.AddConstant(StringConst("7"))
	i2 := a.AddConstant(IntConst(7))
	i3 := a.AddConstant(FloatConst(7))

	if i0 != 0 || i1 != 1 || i2 != 0 || i3 != 2 {
		t.Errorf("indices = %d %d %d %d, want 0 1 0 2", i0, i1, i2, i3)
	}
	if len(a.Constants) != 3 {
		t.Errorf("len(Constants) = %d, want 3", len(a.Constants))
	}
}

func TestAddConstantFloatBits(t *testing.T) {
	a := NewArtifact()
	pos := a.AddConstant(FloatConst(0))
	neg := a.AddConstant(FloatConst(math.Copysign(0, -1)))
	if pos == neg {
		t.Error("0.0 and -0.0 share a pool entry")
	}
}

func TestPatchJump(t *testing.T) {
	a := NewArtifact()
	a.Emit(OpConstTrue)
	placeholder := a.EmitJump(OpJumpFalse)
	a.Emit(OpUnit)
	a.Emit(OpPop)
	if err := a.PatchJump(placeholder); err != nil {
		t.Fatalf("PatchJump: %v", err)
	}

	if got := a.ReadInt16(placeholder); got != 2 {
		t.Errorf("jump delta = %d, want 2", got)
	}
}

func TestEmitLoopBackward(t *testing.T) {
	a := NewArtifact()
	start := a.CurrentOffset()
	a.Emit(OpNop)
	a.Emit(OpNop)
	if err := a.EmitLoop(start); err != nil {
		t.Fatalf("EmitLoop: %v", err)
	}

	delta := a.ReadInt16(3)
	if target := 5 + int(delta); target != start {
		t.Errorf("loop target = %d, want %d", target, start)
	}
}

func TestPatchJumpTooFar(t *testing.T) {
	a := NewArtifact()
	placeholder := a.EmitJump(OpJump)
	if err := a.PatchJumpTo(placeholder, 40000); !errors.Is(err, ErrJumpTooFar) {
		t.Errorf("PatchJumpTo = %v, want ErrJumpTooFar", err)
	}
}

func TestSourceLocation(t *testing.T) {
	a := sampleArtifact()

	line, col := a.GetSourceLocation(3)
	if line != 1 || col != 1 {
		t.Errorf("location(3) = %d:%d, want 1:1", line, col)
	}
	entry := a.Functions[1].Entry
	line, col = a.GetSourceLocation(entry + 3)
	if line != 2 || col != 5 {
		t.Errorf("location(entry+3) = %d:%d, want 2:5", line, col)
	}
}

func TestFunctionAt(t *testing.T) {
	a := sampleArtifact()
	if got := a.FunctionAt(0); got != 0 {
		t.Errorf("FunctionAt(0) = %d, want 0", got)
	}
	if got := a.FunctionAt(a.Functions[1].Entry + 1); got != 1 {
		t.Errorf("FunctionAt(add1 body) = %d, want 1", got)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	a := sampleArtifact()

	data, err := a.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if !bytes.HasPrefix(data, BytecodeMagic) {
		t.Fatalf("missing magic, got %q", data[:4])
	}

	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if got.GlobalCount != 1 || got.File != "sample.ox" {
		t.Errorf("header = %d %q", got.GlobalCount, got.File)
	}
	if len(got.Functions) != 2 || got.Functions[1].Name != "add1" || got.Functions[1].Arity != 1 {
		t.Errorf("functions = %+v", got.Functions)
	}
	if len(got.Constants) != len(a.Constants) {
		t.Fatalf("constants = %d, want %d", len(got.Constants), len(a.Constants))
	}
	for i := range a.Constants {
		if !got.Constants[i].Same(a.Constants[i]) {
			t.Errorf("constant %d = %v, want %v", i, got.Constants[i], a.Constants[i])
		}
	}
	if !bytes.Equal(got.Code, a.Code) {
		t.Error("code mismatch")
	}

	again, err := got.Serialize()
	if err != nil {
		t.Fatalf("re-Serialize: %v", err)
	}
	if !bytes.Equal(again, data) {
		t.Error("re-serialized artifact differs from the original bytes")
	}
}

func TestSerializeWithCaptures(t *testing.T) {
	a := sampleArtifact()
	a.Functions[1].Captures = []Capture{{Source: CaptureLocal, Index: 3}, {Source: CaptureOuter, Index: 0}}

	data, err := a.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	caps := got.Functions[1].Captures
	if len(caps) != 2 || caps[0] != (Capture{CaptureLocal, 3}) || caps[1] != (Capture{CaptureOuter, 0}) {
		t.Errorf("captures = %+v", caps)
	}
}

func TestSerializeWithoutDebug(t *testing.T) {
	a := NewArtifact()
	a.AddFunction(Function{Name: "main"})
	a.Emit(OpUnit)
	a.Emit(OpReturn)

	data, err := a.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if data[len(data)-1] != 0 {
		t.Error("debug marker set without FlagDebug")
	}
	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if got.SourceMap != nil || got.File != "" {
		t.Error("debug section decoded from artifact without one")
	}
}

func TestDeserializeErrors(t *testing.T) {
	good, err := sampleArtifact().Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	newer := append([]byte(nil), good...)
	newer[5] = 0x09

	// Debug section present, FlagDebug cleared.
	unflagged := append([]byte(nil), good...)
	unflagged[7] &^= byte(FlagDebug)

	bare := NewArtifact()
	bare.AddFunction(Function{Name: "main"})
	bare.Emit(OpUnit)
	bare.Emit(OpReturn)
	plain, err := bare.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	// Marker set on an artifact without FlagDebug or a debug section.
	marked := append([]byte(nil), plain...)
	marked[len(marked)-1] = 1
	badMarker := append([]byte(nil), plain...)
	badMarker[len(badMarker)-1] = 2

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"short", []byte("OXB"), "too short"},
		{"magic", append([]byte("TTBC"), good[4:]...), "invalid bytecode magic"},
		{"version", newer, "newer than supported"},
		{"truncated", good[:len(good)-3], "unexpected end of bytecode"},
		{"trailing", append(append([]byte(nil), good...), 0), "trailing"},
		{"flag cleared", unflagged, "disagrees with flags"},
		{"marker without flag", marked, "disagrees with flags"},
		{"marker value", badMarker, "invalid debug marker 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Deserialize(tt.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestSerializeLengthLimits(t *testing.T) {
	long := strings.Repeat("x", math.MaxUint16+1)

	tests := []struct {
		name string
		edit func(a *Artifact)
		want string
	}{
		{"function name", func(a *Artifact) { a.Functions[1].Name = long }, "function 1 name is 65536 bytes"},
		{"file name", func(a *Artifact) { a.File = long }, "file name is 65536 bytes"},
		{"global name", func(a *Artifact) { a.GlobalNames[0] = long }, "global name 0 is 65536 bytes"},
		{"global names", func(a *Artifact) { a.GlobalNames = make([]string, math.MaxUint16+1) }, "too many global names"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := sampleArtifact()
			tt.edit(a)
			_, err := a.Serialize()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}

	// The limit itself still fits.
	a := sampleArtifact()
	a.File = long[:math.MaxUint16]
	data, err := a.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if got.File != a.File {
		t.Errorf("file name length = %d, want %d", len(got.File), len(a.File))
	}
}

func TestValidate(t *testing.T) {
	if err := sampleArtifact().Validate(); err != nil {
		t.Fatalf("Validate(sample) = %v", err)
	}

	bad := sampleArtifact()
	bad.Code[0] = 0xEE
	if err := bad.Validate(); err == nil || !strings.Contains(err.Error(), "invalid opcode") {
		t.Errorf("bad opcode: %v", err)
	}

	bad = sampleArtifact()
	bad.GlobalCount = 0
	if err := bad.Validate(); err == nil || !strings.Contains(err.Error(), "global slot") {
		t.Errorf("bad global: %v", err)
	}

	bad = sampleArtifact()
	j := bad.EmitJump(OpJump)
	bad.Code[j] = 0
	bad.Code[j+1] = 1 // lands inside nothing
	if err := bad.Validate(); err == nil || !strings.Contains(err.Error(), "not an instruction") {
		t.Errorf("bad jump: %v", err)
	}
}
