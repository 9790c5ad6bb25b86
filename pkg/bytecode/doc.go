// Package bytecode defines the compiled artifact shared by the oxido
// compiler and virtual machine: opcodes, the constant pool, the function
// table and the flat instruction stream, plus the binary "OXBC" file
// format and a disassembler.
//
// The format is designed for:
//   - Compact representation (one-byte opcodes, 0-2 operand bytes)
//   - Fast decoding (fixed operand widths per opcode)
//   - Determinism (serializing a deserialized artifact reproduces the
//     input byte for byte)
//
// # Artifact layout
//
//   - Constants: tagged literals (int64, float64, UTF-8 string, bool)
//     referenced by OpConst.
//
//   - Functions: one entry per function definition with its arity,
//     local slot count, entry offset and capture list. Entry 0 is the
//     program's top level.
//
//   - Globals: the number of global slots the program needs. Top-level
//     bindings live there and are shared by every thread.
//
//   - Code: all function bodies, each contiguous, in one stream.
//
// # Capture Semantics
//
// OpClosure copies the values named by the function's capture list out
// of the creating frame (CaptureLocal) or out of the creating closure's
// environment (CaptureOuter). Later assignments to the original variable
// are not visible through the closure.
//
// # Concurrency
//
// OpSpawn, OpJoin, OpYield, OpSemCreate, OpWait and OpPost are the only
// instructions that interact with the scheduler. Each is a single opcode
// and each leaves exactly one value on the stack (a handle or unit) so
// that every expression has the same stack effect.
package bytecode
