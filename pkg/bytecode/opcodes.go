package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Stack manipulation (0x00-0x0F)
	// ========================================================================

	OpNop  Opcode = 0x00 // No operation
	OpPop  Opcode = 0x01 // Pop top of stack
	OpUnit Opcode = 0x02 // Push the unit value

	// ========================================================================
	// Constants (0x10-0x1F)
	// ========================================================================

	OpConst      Opcode = 0x10 // Push constant from pool: OpConst <index:u16>
	OpConstTrue  Opcode = 0x11 // Push true
	OpConstFalse Opcode = 0x12 // Push false

	// ========================================================================
	// Variables (0x20-0x2F)
	// ========================================================================

	OpLoadLocal   Opcode = 0x20 // Push local slot: OpLoadLocal <slot:u16>
	OpStoreLocal  Opcode = 0x21 // Pop into local slot: OpStoreLocal <slot:u16>
	OpLoadGlobal  Opcode = 0x22 // Push global slot: OpLoadGlobal <slot:u16>
	OpStoreGlobal Opcode = 0x23 // Pop into global slot: OpStoreGlobal <slot:u16>
	OpLoadCapture Opcode = 0x24 // Push captured value: OpLoadCapture <index:u16>
	OpLoadSelf    Opcode = 0x25 // Push the closure of the running frame

	// ========================================================================
	// Arithmetic (0x30-0x3F)
	// ========================================================================

	OpAdd Opcode = 0x30 // Pop two, push sum
	OpSub Opcode = 0x31 // Pop two, push difference (a - b where b is TOS)
	OpMul Opcode = 0x32 // Pop two, push product
	OpDiv Opcode = 0x33 // Pop two, push quotient (integer division truncates)
	OpNeg Opcode = 0x34 // Negate top of stack

	// ========================================================================
	// Comparison and logic (0x40-0x4F)
	// ========================================================================

	OpEq  Opcode = 0x40 // Pop two, push a == b
	OpLt  Opcode = 0x41 // Pop two, push a < b
	OpGt  Opcode = 0x42 // Pop two, push a > b
	OpNot Opcode = 0x43 // Pop bool, push its negation

	// ========================================================================
	// Control flow (0x50-0x5F)
	// ========================================================================

	OpJump      Opcode = 0x50 // Unconditional jump: OpJump <offset:i16>
	OpJumpFalse Opcode = 0x51 // Pop, jump if false: OpJumpFalse <offset:i16>

	// ========================================================================
	// Functions (0x60-0x6F)
	// ========================================================================

	OpClosure     Opcode = 0x60 // Build closure over captures: OpClosure <fn:u16>
	OpCall        Opcode = 0x61 // Call closure below args: OpCall <argc:u8>
	OpCallBuiltin Opcode = 0x62 // Call builtin: OpCallBuiltin <id:u8> <argc:u8>
	OpReturn      Opcode = 0x63 // Pop result, pop frame, push result on caller

	// ========================================================================
	// Concurrency (0x70-0x7F)
	// ========================================================================

	OpSpawn     Opcode = 0x70 // Start thread running closure below args: OpSpawn <argc:u8>
	OpJoin      Opcode = 0x71 // Pop thread handle, block until it terminates
	OpYield     Opcode = 0x72 // Requeue the running thread
	OpSemCreate Opcode = 0x73 // Allocate a semaphore, push its handle
	OpWait      Opcode = 0x74 // Pop semaphore, decrement or block
	OpPost      Opcode = 0x75 // Pop semaphore, increment and wake one waiter
)

// OpcodeInfo contains metadata about an opcode.
type OpcodeInfo struct {
	Name       string // Human-readable name
	StackPop   int    // Number of values popped (-1 = variable)
	StackPush  int    // Number of values pushed
	OperandLen int    // Number of operand bytes
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Stack
	OpNop:  {"NOP", 0, 0, 0},
	OpPop:  {"POP", 1, 0, 0},
	OpUnit: {"UNIT", 0, 1, 0},

	// Constants
	OpConst:      {"CONST", 0, 1, 2},
	OpConstTrue:  {"TRUE", 0, 1, 0},
	OpConstFalse: {"FALSE", 0, 1, 0},

	// Variables
	OpLoadLocal:   {"LOAD_LOCAL", 0, 1, 2},
	OpStoreLocal:  {"STORE_LOCAL", 1, 0, 2},
	OpLoadGlobal:  {"LOAD_GLOBAL", 0, 1, 2},
	OpStoreGlobal: {"STORE_GLOBAL", 1, 0, 2},
	OpLoadCapture: {"LOAD_CAPTURE", 0, 1, 2},
	OpLoadSelf:    {"LOAD_SELF", 0, 1, 0},

	// Arithmetic
	OpAdd: {"ADD", 2, 1, 0},
	OpSub: {"SUB", 2, 1, 0},
	OpMul: {"MUL", 2, 1, 0},
	OpDiv: {"DIV", 2, 1, 0},
	OpNeg: {"NEG", 1, 1, 0},

	// Comparison and logic
	OpEq:  {"EQ", 2, 1, 0},
	OpLt:  {"LT", 2, 1, 0},
	OpGt:  {"GT", 2, 1, 0},
	OpNot: {"NOT", 1, 1, 0},

	// Control flow
	OpJump:      {"JUMP", 0, 0, 2},
	OpJumpFalse: {"JUMP_FALSE", 1, 0, 2},

	// Functions
	OpClosure:     {"CLOSURE", 0, 1, 2},
	OpCall:        {"CALL", -1, 1, 1}, // Pops callee + argc args
	OpCallBuiltin: {"CALL_BUILTIN", -1, 1, 2},
	OpReturn:      {"RETURN", 1, 0, 0},

	// Concurrency
	OpSpawn:     {"SPAWN", -1, 1, 1},
	OpJoin:      {"JOIN", 1, 1, 0},
	OpYield:     {"YIELD", 0, 1, 0},
	OpSemCreate: {"SEM_CREATE", 0, 1, 0},
	OpWait:      {"WAIT", 1, 1, 0},
	OpPost:      {"POST", 1, 1, 0},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op)), StackPop: 0, StackPush: 0, OperandLen: 0}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes for this opcode.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// InstructionLen returns the total length of an instruction (1 + operand bytes).
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsValid reports whether op is a defined opcode.
func (op Opcode) IsValid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// IsJump returns true if this opcode is a jump instruction.
func (op Opcode) IsJump() bool {
	return op == OpJump || op == OpJumpFalse
}

// IsConcurrency returns true if this opcode may hand control to the scheduler.
func (op Opcode) IsConcurrency() bool {
	return op >= OpSpawn && op <= OpPost
}

// AllOpcodes returns a slice of all defined opcodes.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
