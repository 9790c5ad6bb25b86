package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable bytecode listing for the artifact.
func (a *Artifact) Disassemble() string {
	return a.DisassembleWithName("")
}

// DisassembleWithName returns a human-readable bytecode listing with a name header.
func (a *Artifact) DisassembleWithName(name string) string {
	var sb strings.Builder

	// Header
	if name == "" {
		name = a.File
	}
	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; Oxido Bytecode v%d\n", a.Version))
	sb.WriteString(fmt.Sprintf("; Flags: 0x%04X", a.Flags))
	if a.Flags&FlagDebug != 0 {
		sb.WriteString(" [DEBUG]")
	}
	if a.Flags&FlagConcurrent != 0 {
		sb.WriteString(" [CONCURRENT]")
	}
	sb.WriteString("\n")

	if a.GlobalCount > 0 {
		sb.WriteString(fmt.Sprintf("; Globals: %d slots\n", a.GlobalCount))
	}
	sb.WriteString("\n")

	// Constants
	if len(a.Constants) > 0 {
		sb.WriteString("; Constants:\n")
		for i, c := range a.Constants {
			sb.WriteString(fmt.Sprintf(";   [%3d] %-6s %s\n", i, c.Kind, truncate(c.String(), 40)))
		}
		sb.WriteString("\n")
	}

	// Function table
	sb.WriteString("; Functions:\n")
	for i, fn := range a.Functions {
		sb.WriteString(fmt.Sprintf(";   [%3d] %-16s arity=%d locals=%d entry=%04X",
			i, functionLabel(fn), fn.Arity, fn.Locals, fn.Entry))
		if len(fn.Captures) > 0 {
			caps := make([]string, len(fn.Captures))
			for j, cap := range fn.Captures {
				caps[j] = fmt.Sprintf("%s:%d", cap.Source, cap.Index)
			}
			sb.WriteString(" captures=[" + strings.Join(caps, " ") + "]")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	// Code section, with a label wherever a function starts
	entries := a.entryLabels()
	sb.WriteString("; Code:\n")
	offset := 0
	for offset < len(a.Code) {
		if label, ok := entries[uint32(offset)]; ok {
			sb.WriteString(fmt.Sprintf("%s:\n", label))
		}

		line, instrLen := a.disassembleInstruction(offset)

		// Add source location if available
		if a.Flags&FlagDebug != 0 {
			if srcLine, srcCol := a.GetSourceLocation(uint32(offset)); srcLine > 0 {
				sb.WriteString(fmt.Sprintf("%04X  %-34s ; line %d:%d\n", offset, line, srcLine, srcCol))
			} else {
				sb.WriteString(fmt.Sprintf("%04X  %s\n", offset, line))
			}
		} else {
			sb.WriteString(fmt.Sprintf("%04X  %s\n", offset, line))
		}

		if instrLen == 0 {
			break
		}
		offset += instrLen
	}

	return sb.String()
}

func functionLabel(fn Function) string {
	if fn.Name == "" {
		return "<anon>"
	}
	return fn.Name
}

// entryLabels maps function entry offsets to their labels.
func (a *Artifact) entryLabels() map[uint32]string {
	labels := make(map[uint32]string, len(a.Functions))
	// Lowest index wins when two functions share an entry
	for i := len(a.Functions) - 1; i >= 0; i-- {
		labels[a.Functions[i].Entry] = fmt.Sprintf("fn%d %s", i, functionLabel(a.Functions[i]))
	}
	return labels
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\t", "\\t")
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

// disassembleInstruction disassembles a single instruction at the given offset.
// Returns the formatted string and the instruction length.
func (a *Artifact) disassembleInstruction(offset int) (string, int) {
	if offset >= len(a.Code) {
		return "<end of code>", 0
	}

	op := Opcode(a.Code[offset])
	info := GetOpcodeInfo(op)
	instrLen := 1 + info.OperandLen
	if offset+instrLen > len(a.Code) {
		return fmt.Sprintf("%s <truncated>", info.Name), len(a.Code) - offset
	}

	switch op {
	case OpConst:
		idx := a.ReadUint16(offset + 1)
		if int(idx) < len(a.Constants) {
			return fmt.Sprintf("CONST %d ; %s", idx, truncate(a.Constants[idx].String(), 20)), instrLen
		}
		return fmt.Sprintf("CONST %d ; <bad index>", idx), instrLen

	case OpLoadGlobal, OpStoreGlobal:
		slot := a.ReadUint16(offset + 1)
		if int(slot) < len(a.GlobalNames) && a.GlobalNames[slot] != "" {
			return fmt.Sprintf("%s %d ; %s", info.Name, slot, a.GlobalNames[slot]), instrLen
		}
		return fmt.Sprintf("%s %d", info.Name, slot), instrLen

	case OpLoadLocal, OpStoreLocal, OpLoadCapture:
		return fmt.Sprintf("%s %d", info.Name, a.ReadUint16(offset+1)), instrLen

	case OpJump, OpJumpFalse:
		delta := a.ReadInt16(offset + 1)
		target := offset + 3 + int(delta)
		return fmt.Sprintf("%s %+d (-> %04X)", info.Name, delta, target), instrLen

	case OpClosure:
		idx := a.ReadUint16(offset + 1)
		if int(idx) < len(a.Functions) {
			return fmt.Sprintf("CLOSURE fn%d ; %s", idx, functionLabel(a.Functions[idx])), instrLen
		}
		return fmt.Sprintf("CLOSURE fn%d ; <bad index>", idx), instrLen

	case OpCall, OpSpawn:
		return fmt.Sprintf("%s argc=%d", info.Name, a.Code[offset+1]), instrLen

	case OpCallBuiltin:
		id := BuiltinID(a.Code[offset+1])
		return fmt.Sprintf("CALL_BUILTIN %s argc=%d", id, a.Code[offset+2]), instrLen

	// Default: use info from table
	default:
		if info.OperandLen == 0 {
			return info.Name, instrLen
		}

		// Format operands generically
		operands := make([]string, 0, info.OperandLen)
		for i := 0; i < info.OperandLen; i++ {
			operands = append(operands, fmt.Sprintf("0x%02X", a.Code[offset+1+i]))
		}
		return fmt.Sprintf("%s %s", info.Name, strings.Join(operands, " ")), instrLen
	}
}

// DisassembleInstruction returns a human-readable representation of a single instruction.
func (a *Artifact) DisassembleInstruction(offset int) string {
	line, _ := a.disassembleInstruction(offset)
	return line
}

// InstructionCount returns the number of instructions in the code section.
func (a *Artifact) InstructionCount() int {
	count := 0
	offset := 0
	for offset < len(a.Code) {
		op := Opcode(a.Code[offset])
		offset += op.InstructionLen()
		count++
	}
	return count
}
