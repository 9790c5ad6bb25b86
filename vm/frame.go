package vm

// Frame is the activation of one closure on a thread's call stack.
type Frame struct {
	Closure *Closure
	IP      int     // Offset of the next instruction
	Locals  []Value // Parameters first, then let-bound slots
	Base    int     // Operand stack height when the frame was entered
}

func newFrame(c *Closure, args []Value, base int) *Frame {
	locals := make([]Value, c.Fn.Locals)
	copy(locals, args)
	return &Frame{
		Closure: c,
		IP:      int(c.Fn.Entry),
		Locals:  locals,
		Base:    base,
	}
}
