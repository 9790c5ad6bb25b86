package bytecode

import "fmt"

// Validate checks that the code stream decodes cleanly and that every
// operand refers to something that exists: constant and function
// indices, global slots, builtin IDs and jump targets on instruction
// boundaries. A VM only needs to trust artifacts that pass.
func (a *Artifact) Validate() error {
	if len(a.Functions) == 0 {
		return fmt.Errorf("artifact has no entry function")
	}
	if a.Functions[0].Arity != 0 {
		return fmt.Errorf("entry function takes %d parameters, want 0", a.Functions[0].Arity)
	}

	starts := make(map[int]bool)
	offset := 0
	for offset < len(a.Code) {
		op := Opcode(a.Code[offset])
		if !op.IsValid() {
			return fmt.Errorf("invalid opcode 0x%02X at %04X", byte(op), offset)
		}
		if offset+op.InstructionLen() > len(a.Code) {
			return fmt.Errorf("truncated %s at %04X", op, offset)
		}
		starts[offset] = true
		offset += op.InstructionLen()
	}
	starts[len(a.Code)] = true

	for i, fn := range a.Functions {
		if !starts[int(fn.Entry)] || int(fn.Entry) == len(a.Code) {
			return fmt.Errorf("function %d entry %04X is not an instruction", i, fn.Entry)
		}
	}

	offset = 0
	for offset < len(a.Code) {
		op := Opcode(a.Code[offset])
		switch op {
		case OpConst:
			if idx := a.ReadUint16(offset + 1); int(idx) >= len(a.Constants) {
				return fmt.Errorf("constant index %d out of range at %04X", idx, offset)
			}
		case OpLoadGlobal, OpStoreGlobal:
			if slot := a.ReadUint16(offset + 1); slot >= a.GlobalCount {
				return fmt.Errorf("global slot %d out of range at %04X", slot, offset)
			}
		case OpClosure:
			if idx := a.ReadUint16(offset + 1); int(idx) >= len(a.Functions) {
				return fmt.Errorf("function index %d out of range at %04X", idx, offset)
			}
		case OpCallBuiltin:
			if id := BuiltinID(a.Code[offset+1]); !id.Valid() {
				return fmt.Errorf("unknown builtin %d at %04X", id, offset)
			}
		case OpJump, OpJumpFalse:
			target := offset + 3 + int(a.ReadInt16(offset+1))
			if target < 0 || !starts[target] {
				return fmt.Errorf("jump at %04X lands on %04X, not an instruction", offset, target)
			}
		}
		offset += op.InstructionLen()
	}

	return nil
}
