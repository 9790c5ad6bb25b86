package vm

import "github.com/chazu/oxido/pkg/bytecode"

// Closure pairs a function table entry with the environment copied from
// the frame that executed its CLOSURE instruction.
type Closure struct {
	Fn    *bytecode.Function
	Index int // Position in the artifact's function table
	Env   []Value
}

// newClosure captures the environment of fn from the creating frame.
func newClosure(art *bytecode.Artifact, index int, creator *Frame) *Closure {
	fn := &art.Functions[index]
	c := &Closure{Fn: fn, Index: index, Env: make([]Value, len(fn.Captures))}
	for i, src := range fn.Captures {
		switch src.Source {
		case bytecode.CaptureLocal:
			if int(src.Index) >= len(creator.Locals) {
				raisef(ErrBadSlot, "capture of local %d", src.Index)
			}
			c.Env[i] = creator.Locals[src.Index]
		case bytecode.CaptureOuter:
			env := creator.Closure.Env
			if int(src.Index) >= len(env) {
				raisef(ErrBadSlot, "capture of outer %d", src.Index)
			}
			c.Env[i] = env[src.Index]
		}
	}
	return c
}
