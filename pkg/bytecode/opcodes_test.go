package bytecode

import (
	"strings"
	"testing"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	// Ensure every defined opcode has metadata
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || strings.HasPrefix(info.Name, "UNKNOWN") {
			t.Errorf("Opcode 0x%02X has no metadata", op)
		}
	}
}

func TestOpcodeNamesUnique(t *testing.T) {
	seen := make(map[string]Opcode)
	for _, op := range AllOpcodes() {
		name := op.String()
		if prev, ok := seen[name]; ok {
			t.Errorf("opcodes 0x%02X and 0x%02X share name %q", prev, op, name)
		}
		seen[name] = op
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{OpNop, "NOP"},
		{OpPop, "POP"},
		{OpUnit, "UNIT"},
		{OpConst, "CONST"},
		{OpAdd, "ADD"},
		{OpEq, "EQ"},
		{OpJumpFalse, "JUMP_FALSE"},
		{OpClosure, "CLOSURE"},
		{OpReturn, "RETURN"},
		{OpSpawn, "SPAWN"},
		{OpSemCreate, "SEM_CREATE"},
	}

	for _, tt := range tests {
		got := tt.op.String()
		if got != tt.want {
			t.Errorf("Opcode(0x%02X).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestUnknownOpcodeString(t *testing.T) {
	// Test an undefined opcode value
	op := Opcode(0xEE) // Not defined
	got := op.String()
	if !strings.HasPrefix(got, "UNKNOWN") {
		t.Errorf("Unknown opcode should return UNKNOWN, got %q", got)
	}
	if op.IsValid() {
		t.Error("0xEE reported as valid")
	}
}

func TestOpcodeOperandLen(t *testing.T) {
	tests := []struct {
		op   Opcode
		want int
	}{
		{OpNop, 0},
		{OpPop, 0},
		{OpConst, 2},       // u16 index
		{OpLoadLocal, 2},   // u16 slot
		{OpLoadGlobal, 2},  // u16 slot
		{OpJump, 2},        // i16 offset
		{OpClosure, 2},     // u16 function
		{OpCall, 1},        // u8 argc
		{OpCallBuiltin, 2}, // u8 id + u8 argc
		{OpSpawn, 1},       // u8 argc
		{OpWait, 0},
	}

	for _, tt := range tests {
		got := tt.op.OperandLen()
		if got != tt.want {
			t.Errorf("%s.OperandLen() = %d, want %d", tt.op, got, tt.want)
		}
		if tt.op.InstructionLen() != tt.want+1 {
			t.Errorf("%s.InstructionLen() = %d, want %d", tt.op, tt.op.InstructionLen(), tt.want+1)
		}
	}
}

func TestConcurrencyOpcodes(t *testing.T) {
	for _, op := range []Opcode{OpSpawn, OpJoin, OpYield, OpSemCreate, OpWait, OpPost} {
		if !op.IsConcurrency() {
			t.Errorf("%s.IsConcurrency() = false", op)
		}
		// Every concurrency form is an expression with one result
		if info := GetOpcodeInfo(op); info.StackPush != 1 {
			t.Errorf("%s pushes %d values, want 1", op, info.StackPush)
		}
	}
	if OpCall.IsConcurrency() {
		t.Error("CALL reported as a concurrency opcode")
	}
}

func TestBuiltinLookup(t *testing.T) {
	for i, name := range BuiltinNames() {
		id, ok := LookupBuiltin(name)
		if !ok || int(id) != i {
			t.Errorf("LookupBuiltin(%q) = %d, %v; want %d", name, id, ok, i)
		}
		if id.String() != name {
			t.Errorf("BuiltinID(%d).String() = %q, want %q", i, id.String(), name)
		}
	}
	if _, ok := LookupBuiltin("no_such_builtin"); ok {
		t.Error("unexpected builtin no_such_builtin")
	}
	if BuiltinID(200).Valid() {
		t.Error("BuiltinID(200) reported valid")
	}
}
