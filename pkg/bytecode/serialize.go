package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// Serialize encodes the artifact to bytes for storage.
// Format (all integers big-endian):
//
//	[magic:4] [version:2] [flags:2]
//	[const_count:4] [constants:...]        tag:1 then int64 | float64 | len:4 utf8 | bool:1
//	[func_count:2] [functions:...]         name_len:2 name arity:1 locals:2 entry:4 cap_count:1 caps:(source:1 index:2)*
//	[global_count:2]
//	[code_len:4] [code:...]
//	[debug_present:1] [debug_info:...]     (if FlagDebug)
func (a *Artifact) Serialize() ([]byte, error) {
	estimatedSize := 16 + len(a.Code) + len(a.Constants)*9 + len(a.Functions)*16
	buf := make([]byte, 0, estimatedSize)

	// Magic number: "OXBC"
	buf = append(buf, BytecodeMagic...)

	// Version and flags
	buf = binary.BigEndian.AppendUint16(buf, a.Version)
	buf = binary.BigEndian.AppendUint16(buf, uint16(a.Flags))

	// Constants
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(a.Constants)))
	for i, c := range a.Constants {
		buf = append(buf, byte(c.Kind))
		switch c.Kind {
		case ConstInt:
			buf = binary.BigEndian.AppendUint64(buf, uint64(c.Int))
		case ConstFloat:
			buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(c.Float))
		case ConstString:
			if !utf8.ValidString(c.Str) {
				return nil, fmt.Errorf("constant %d is not valid UTF-8", i)
			}
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(c.Str)))
			buf = append(buf, c.Str...)
		case ConstBool:
			if c.Bool {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		default:
			return nil, fmt.Errorf("constant %d has unknown kind %d", i, c.Kind)
		}
	}

	// Function table
	if len(a.Functions) > math.MaxUint16 {
		return nil, fmt.Errorf("too many functions: %d", len(a.Functions))
	}
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(a.Functions)))
	for i, fn := range a.Functions {
		if len(fn.Captures) > math.MaxUint8 {
			return nil, fmt.Errorf("function %d captures %d values, limit is %d", i, len(fn.Captures), math.MaxUint8)
		}
		var err error
		if buf, err = appendString16(buf, fn.Name, fmt.Sprintf("function %d name", i)); err != nil {
			return nil, err
		}
		buf = append(buf, fn.Arity)
		buf = binary.BigEndian.AppendUint16(buf, fn.Locals)
		buf = binary.BigEndian.AppendUint32(buf, fn.Entry)
		buf = append(buf, byte(len(fn.Captures)))
		for _, cap := range fn.Captures {
			buf = append(buf, byte(cap.Source))
			buf = binary.BigEndian.AppendUint16(buf, cap.Index)
		}
	}

	// Globals
	buf = binary.BigEndian.AppendUint16(buf, a.GlobalCount)

	// Code section
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(a.Code)))
	buf = append(buf, a.Code...)

	// Debug info (if present)
	if a.Flags&FlagDebug != 0 {
		buf = append(buf, 1) // Debug present marker

		var err error
		if buf, err = appendString16(buf, a.File, "file name"); err != nil {
			return nil, err
		}

		if len(a.GlobalNames) > math.MaxUint16 {
			return nil, fmt.Errorf("too many global names: %d", len(a.GlobalNames))
		}
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(a.GlobalNames)))
		for i, name := range a.GlobalNames {
			if buf, err = appendString16(buf, name, fmt.Sprintf("global name %d", i)); err != nil {
				return nil, err
			}
		}

		buf = binary.BigEndian.AppendUint32(buf, uint32(len(a.SourceMap)))
		for _, loc := range a.SourceMap {
			buf = binary.BigEndian.AppendUint32(buf, loc.BytecodeOffset)
			buf = binary.BigEndian.AppendUint32(buf, loc.Line)
			buf = binary.BigEndian.AppendUint16(buf, loc.Column)
		}
	} else {
		buf = append(buf, 0) // No debug info
	}

	return buf, nil
}

func appendString16(buf []byte, s, what string) ([]byte, error) {
	if len(s) > math.MaxUint16 {
		return nil, fmt.Errorf("%s is %d bytes, limit is %d", what, len(s), math.MaxUint16)
	}
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...), nil
}

// reader walks a serialized artifact with bounds checking.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) need(n int, what string) error {
	if r.pos+n > len(r.data) {
		return fmt.Errorf("unexpected end of bytecode reading %s at pos %d", what, r.pos)
	}
	return nil
}

func (r *reader) u8(what string) (uint8, error) {
	if err := r.need(1, what); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u16(what string) (uint16, error) {
	if err := r.need(2, what); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32(what string) (uint32, error) {
	if err := r.need(4, what); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) u64(what string) (uint64, error) {
	if err := r.need(8, what); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) bytes(n int, what string) ([]byte, error) {
	if err := r.need(n, what); err != nil {
		return nil, err
	}
	v := r.data[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *reader) string16(what string) (string, error) {
	n, err := r.u16(what + " length")
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n), what)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Deserialize decodes an artifact from bytes.
func Deserialize(data []byte) (*Artifact, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("bytecode too short: need at least 8 bytes, got %d", len(data))
	}

	// Check magic
	if string(data[0:4]) != string(BytecodeMagic) {
		return nil, fmt.Errorf("invalid bytecode magic: expected %q, got %q", BytecodeMagic, data[0:4])
	}

	a := &Artifact{
		Version: binary.BigEndian.Uint16(data[4:6]),
		Flags:   ArtifactFlags(binary.BigEndian.Uint16(data[6:8])),
	}

	// Version check
	if a.Version > BytecodeVersion {
		return nil, fmt.Errorf("bytecode version %d is newer than supported version %d", a.Version, BytecodeVersion)
	}

	r := &reader{data: data, pos: 8}

	// Constants
	constCount, err := r.u32("constant count")
	if err != nil {
		return nil, err
	}
	if int(constCount) > len(data) {
		return nil, fmt.Errorf("constant count %d exceeds artifact size", constCount)
	}
	a.Constants = make([]Constant, constCount)
	for i := range a.Constants {
		tag, err := r.u8(fmt.Sprintf("constant %d tag", i))
		if err != nil {
			return nil, err
		}
		c := Constant{Kind: ConstKind(tag)}
		switch c.Kind {
		case ConstInt:
			v, err := r.u64(fmt.Sprintf("constant %d", i))
			if err != nil {
				return nil, err
			}
			c.Int = int64(v)
		case ConstFloat:
			v, err := r.u64(fmt.Sprintf("constant %d", i))
			if err != nil {
				return nil, err
			}
			c.Float = math.Float64frombits(v)
		case ConstString:
			n, err := r.u32(fmt.Sprintf("constant %d length", i))
			if err != nil {
				return nil, err
			}
			b, err := r.bytes(int(n), fmt.Sprintf("constant %d", i))
			if err != nil {
				return nil, err
			}
			if !utf8.Valid(b) {
				return nil, fmt.Errorf("constant %d is not valid UTF-8", i)
			}
			c.Str = string(b)
		case ConstBool:
			v, err := r.u8(fmt.Sprintf("constant %d", i))
			if err != nil {
				return nil, err
			}
			if v > 1 {
				return nil, fmt.Errorf("constant %d has invalid bool byte %d", i, v)
			}
			c.Bool = v == 1
		default:
			return nil, fmt.Errorf("constant %d has unknown tag %d", i, tag)
		}
		a.Constants[i] = c
	}

	// Function table
	funcCount, err := r.u16("function count")
	if err != nil {
		return nil, err
	}
	a.Functions = make([]Function, funcCount)
	for i := range a.Functions {
		fn := &a.Functions[i]
		what := fmt.Sprintf("function %d", i)
		if fn.Name, err = r.string16(what + " name"); err != nil {
			return nil, err
		}
		if fn.Arity, err = r.u8(what + " arity"); err != nil {
			return nil, err
		}
		if fn.Locals, err = r.u16(what + " locals"); err != nil {
			return nil, err
		}
		if uint16(fn.Arity) > fn.Locals {
			return nil, fmt.Errorf("%s has arity %d but only %d locals", what, fn.Arity, fn.Locals)
		}
		if fn.Entry, err = r.u32(what + " entry"); err != nil {
			return nil, err
		}
		capCount, err := r.u8(what + " capture count")
		if err != nil {
			return nil, err
		}
		if capCount > 0 {
			fn.Captures = make([]Capture, capCount)
		}
		for j := range fn.Captures {
			src, err := r.u8(fmt.Sprintf("%s capture %d", what, j))
			if err != nil {
				return nil, err
			}
			if CaptureSource(src) != CaptureLocal && CaptureSource(src) != CaptureOuter {
				return nil, fmt.Errorf("%s capture %d has unknown source %d", what, j, src)
			}
			idx, err := r.u16(fmt.Sprintf("%s capture %d", what, j))
			if err != nil {
				return nil, err
			}
			fn.Captures[j] = Capture{Source: CaptureSource(src), Index: idx}
		}
	}

	// Globals
	if a.GlobalCount, err = r.u16("global count"); err != nil {
		return nil, err
	}

	// Code section
	codeLen, err := r.u32("code length")
	if err != nil {
		return nil, err
	}
	code, err := r.bytes(int(codeLen), "code section")
	if err != nil {
		return nil, err
	}
	a.Code = make([]byte, codeLen)
	copy(a.Code, code)

	for i, fn := range a.Functions {
		if int(fn.Entry) > len(a.Code) {
			return nil, fmt.Errorf("function %d entry %d is outside the code section", i, fn.Entry)
		}
	}

	// Debug info
	hasDebug, err := r.u8("debug marker")
	if err != nil {
		return nil, err
	}

	switch {
	case hasDebug > 1:
		return nil, fmt.Errorf("invalid debug marker %d", hasDebug)
	case (hasDebug == 1) != (a.Flags&FlagDebug != 0):
		return nil, fmt.Errorf("debug marker %d disagrees with flags 0x%04X", hasDebug, a.Flags)
	}

	if hasDebug != 0 {
		if a.File, err = r.string16("file name"); err != nil {
			return nil, err
		}

		nameCount, err := r.u16("global names count")
		if err != nil {
			return nil, err
		}
		a.GlobalNames = make([]string, nameCount)
		for i := range a.GlobalNames {
			if a.GlobalNames[i], err = r.string16(fmt.Sprintf("global name %d", i)); err != nil {
				return nil, err
			}
		}

		locCount, err := r.u32("source map count")
		if err != nil {
			return nil, err
		}
		if int(locCount) > len(data) {
			return nil, fmt.Errorf("source map count %d exceeds artifact size", locCount)
		}
		a.SourceMap = make([]SourceLocation, locCount)
		for i := range a.SourceMap {
			if err := r.need(10, fmt.Sprintf("source location %d", i)); err != nil {
				return nil, err
			}
			loc := &a.SourceMap[i]
			loc.BytecodeOffset, _ = r.u32("")
			loc.Line, _ = r.u32("")
			loc.Column, _ = r.u16("")
		}
	}

	if r.pos != len(data) {
		return nil, fmt.Errorf("trailing %d bytes after artifact", len(data)-r.pos)
	}

	return a, nil
}
