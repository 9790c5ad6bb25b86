package compiler

import (
	"fmt"

	"github.com/chazu/oxido/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Codegen: Compile a checked AST to bytecode
// ---------------------------------------------------------------------------

// Compiler lowers a checked program into an artifact. Storage comes from
// the checker's annotations; the compiler never resolves names itself.
//
// Main is emitted first. Function bodies are queued as their CLOSURE
// instructions are emitted and laid out one after another behind main, so
// every body is contiguous and nothing has to be jumped over.
type Compiler struct {
	art     *bytecode.Artifact
	pending []pendingFunc
	loops   []*loopLabels
	depth   int // static operand stack height in the current function
	err     error
}

type pendingFunc struct {
	index uint16
	info  *FuncInfo
	body  *Block
}

// loopLabels collects the break jumps of one loop.
type loopLabels struct {
	depth  int
	breaks []int
}

// NewCompiler creates a new compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// errorf records the first compilation error.
func (c *Compiler) errorf(format string, args ...interface{}) {
	if c.err == nil {
		c.err = fmt.Errorf(format, args...)
	}
}

// CompileProgram compiles a program that has passed Check.
func (c *Compiler) CompileProgram(prog *Program) (*bytecode.Artifact, error) {
	c.art = bytecode.NewArtifact()
	c.pending = nil
	c.loops = nil
	c.depth = 0
	c.err = nil

	if len(prog.GlobalNames) > 0xFFFF {
		return nil, fmt.Errorf("too many globals: %d", len(prog.GlobalNames))
	}
	c.art.GlobalCount = uint16(len(prog.GlobalNames))
	c.art.GlobalNames = append([]string(nil), prog.GlobalNames...)
	c.art.AddFunction(bytecode.Function{Name: "main"})

	// Closures of top-level functions exist before the first statement runs.
	for _, s := range prog.Body.Stmts {
		if d, ok := s.(*FnDecl); ok && d.Info != nil && d.Info.Hoisted {
			c.mark(d.SpanVal.Start)
			c.compileClosure(d.Info, d.Body)
			c.store(d.Info.Target)
		}
	}

	c.compileSequence(prog.Body)
	c.emit(bytecode.OpReturn, -1)

	for len(c.pending) > 0 {
		f := c.pending[0]
		c.pending = c.pending[1:]
		c.compileFunctionBody(f)
	}

	if c.err != nil {
		return nil, c.err
	}
	return c.art, nil
}

// ---------------------------------------------------------------------------
// Emission helpers
// ---------------------------------------------------------------------------

func (c *Compiler) emit(op bytecode.Opcode, delta int) {
	c.art.Emit(op)
	c.depth += delta
}

func (c *Compiler) emitUint16(op bytecode.Opcode, v int, delta int) {
	if v < 0 || v > 0xFFFF {
		c.errorf("%s operand %d out of range", op, v)
	}
	c.art.EmitUint16(op, uint16(v))
	c.depth += delta
}

func (c *Compiler) emitConstant(k bytecode.Constant) {
	if len(c.art.Constants) >= 0xFFFF {
		c.errorf("too many constants")
	}
	c.art.EmitConstant(k)
	c.depth++
}

func (c *Compiler) emitArgc(op bytecode.Opcode, argc int) byte {
	if argc > 0xFF {
		c.errorf("too many arguments to %s: %d", op, argc)
	}
	return byte(argc)
}

// patch points the jump at placeholder to the current offset.
func (c *Compiler) patch(placeholder int) {
	if err := c.art.PatchJump(placeholder); err != nil && c.err == nil {
		c.err = err
	}
}

// mark records the source position of the next instruction.
func (c *Compiler) mark(pos Position) {
	if pos.Line > 0 {
		c.art.AddSourceLocation(uint32(c.art.CurrentOffset()), uint32(pos.Line), uint16(pos.Column))
	}
}

func (c *Compiler) load(ref Ref, name string) {
	switch ref.Kind {
	case RefLocal:
		c.emitUint16(bytecode.OpLoadLocal, ref.Index, 1)
	case RefGlobal:
		c.emitUint16(bytecode.OpLoadGlobal, ref.Index, 1)
	case RefCapture:
		c.emitUint16(bytecode.OpLoadCapture, ref.Index, 1)
	case RefConst:
		c.emitConstant(builtinConsts[name].Value)
	default:
		c.errorf("unresolved identifier %s", name)
	}
}

func (c *Compiler) store(ref Ref) {
	switch ref.Kind {
	case RefLocal:
		c.emitUint16(bytecode.OpStoreLocal, ref.Index, -1)
	case RefGlobal:
		c.emitUint16(bytecode.OpStoreGlobal, ref.Index, -1)
	default:
		c.errorf("cannot store to %s slot", ref.Kind)
	}
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

// compileClosure adds a function table entry, queues its body and emits
// the CLOSURE that captures its environment.
func (c *Compiler) compileClosure(info *FuncInfo, body *Block) {
	if len(info.Type.Params) > 0xFF {
		c.errorf("function %s has too many parameters", info.Name)
	}
	index := c.art.AddFunction(bytecode.Function{
		Name:     info.Name,
		Arity:    uint8(len(info.Type.Params)),
		Locals:   uint16(info.Locals),
		Captures: append([]bytecode.Capture(nil), info.Captures...),
	})
	c.pending = append(c.pending, pendingFunc{index: index, info: info, body: body})
	c.emitUint16(bytecode.OpClosure, int(index), 1)
}

func (c *Compiler) compileFunctionBody(f pendingFunc) {
	c.art.Functions[f.index].Entry = uint32(c.art.CurrentOffset())
	c.loops = nil
	c.depth = 0

	c.mark(f.body.SpanVal.Start)
	if f.info.SelfSlot >= 0 {
		c.emit(bytecode.OpLoadSelf, 1)
		c.emitUint16(bytecode.OpStoreLocal, f.info.SelfSlot, -1)
	}
	c.compileSequence(f.body)
	c.emit(bytecode.OpReturn, -1)
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// compileSequence compiles the statements of b followed by its value.
func (c *Compiler) compileSequence(b *Block) {
	for _, s := range b.Stmts {
		c.compileStmt(s)
	}
	if b.Tail != nil {
		c.compileExpr(b.Tail)
	} else {
		c.emit(bytecode.OpUnit, 1)
	}
}

func (c *Compiler) compileStmt(stmt Stmt) {
	if d, ok := stmt.(*FnDecl); ok && d.Info.Hoisted {
		return
	}
	c.mark(stmt.Span().Start)

	switch s := stmt.(type) {
	case *LetStmt:
		c.compileExpr(s.Value)
		c.store(s.Target)

	case *AssignStmt:
		c.compileExpr(s.Value)
		c.store(s.Target)

	case *ExprStmt:
		c.compileExpr(s.X)
		c.emit(bytecode.OpPop, -1)

	case *FnDecl:
		c.compileClosure(s.Info, s.Body)
		c.store(s.Info.Target)

	case *ReturnStmt:
		if s.Value != nil {
			c.compileExpr(s.Value)
		} else {
			c.emit(bytecode.OpUnit, 1)
		}
		c.emit(bytecode.OpReturn, -1)

	case *BreakStmt:
		if len(c.loops) == 0 {
			c.errorf("break outside loop")
			return
		}
		loop := c.loops[len(c.loops)-1]
		for i := loop.depth; i < c.depth; i++ {
			c.art.Emit(bytecode.OpPop)
		}
		loop.breaks = append(loop.breaks, c.art.EmitJump(bytecode.OpJump))

	default:
		c.errorf("unexpected statement %T", stmt)
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

var binaryOps = map[TokenType]bytecode.Opcode{
	TokenPlus:  bytecode.OpAdd,
	TokenMinus: bytecode.OpSub,
	TokenStar:  bytecode.OpMul,
	TokenSlash: bytecode.OpDiv,
	TokenEqEq:  bytecode.OpEq,
	TokenLt:    bytecode.OpLt,
	TokenGt:    bytecode.OpGt,
}

// compileExpr emits code leaving exactly one value on the stack.
func (c *Compiler) compileExpr(expr Expr) {
	switch e := expr.(type) {
	case *IntLiteral:
		c.emitConstant(bytecode.IntConst(e.Value))

	case *FloatLiteral:
		c.emitConstant(bytecode.FloatConst(e.Value))

	case *StringLiteral:
		c.emitConstant(bytecode.StringConst(e.Value))

	case *BoolLiteral:
		if e.Value {
			c.emit(bytecode.OpConstTrue, 1)
		} else {
			c.emit(bytecode.OpConstFalse, 1)
		}

	case *Ident:
		c.load(e.Ref, e.Name)

	case *UnaryExpr:
		c.compileExpr(e.Operand)
		c.mark(e.SpanVal.Start)
		if e.Op == TokenMinus {
			c.emit(bytecode.OpNeg, 0)
		} else {
			c.emit(bytecode.OpNot, 0)
		}

	case *BinaryExpr:
		c.compileBinary(e)

	case *Block:
		c.compileSequence(e)

	case *IfExpr:
		c.compileIf(e)

	case *LoopExpr:
		c.compileLoop(e)

	case *CallExpr:
		c.compileCall(e, bytecode.OpCall)

	case *FnExpr:
		c.compileClosure(e.Info, e.Body)

	case *SpawnExpr:
		c.compileCall(e.Call, bytecode.OpSpawn)

	case *JoinExpr:
		c.compileExpr(e.Thread)
		c.mark(e.SpanVal.Start)
		c.emit(bytecode.OpJoin, 0)

	case *WaitExpr:
		c.compileExpr(e.Sem)
		c.mark(e.SpanVal.Start)
		c.emit(bytecode.OpWait, 0)

	case *PostExpr:
		c.compileExpr(e.Sem)
		c.mark(e.SpanVal.Start)
		c.emit(bytecode.OpPost, 0)

	case *YieldExpr:
		c.emit(bytecode.OpYield, 1)

	case *SemCreateExpr:
		c.emit(bytecode.OpSemCreate, 1)

	default:
		c.errorf("unexpected expression %T", expr)
	}
}

func (c *Compiler) compileBinary(e *BinaryExpr) {
	switch e.Op {
	case TokenAndAnd:
		// a; JUMP_FALSE f; b; JUMP end; f: FALSE; end:
		c.compileExpr(e.Left)
		toFalse := c.art.EmitJump(bytecode.OpJumpFalse)
		c.depth--
		c.compileExpr(e.Right)
		toEnd := c.art.EmitJump(bytecode.OpJump)
		c.patch(toFalse)
		c.art.Emit(bytecode.OpConstFalse)
		c.patch(toEnd)
		return

	case TokenOrOr:
		// a; JUMP_FALSE rhs; TRUE; JUMP end; rhs: b; end:
		c.compileExpr(e.Left)
		toRight := c.art.EmitJump(bytecode.OpJumpFalse)
		c.art.Emit(bytecode.OpConstTrue)
		toEnd := c.art.EmitJump(bytecode.OpJump)
		c.patch(toRight)
		c.depth--
		c.compileExpr(e.Right)
		c.patch(toEnd)
		return
	}

	c.compileExpr(e.Left)
	c.compileExpr(e.Right)
	op, ok := binaryOps[e.Op]
	if !ok {
		c.errorf("unexpected operator %s", e.Op)
		return
	}
	c.mark(e.SpanVal.Start)
	c.emit(op, -1)
}

func (c *Compiler) compileIf(e *IfExpr) {
	c.compileExpr(e.Cond)
	toElse := c.art.EmitJump(bytecode.OpJumpFalse)
	c.depth--
	base := c.depth

	c.compileSequence(e.Then)
	toEnd := c.art.EmitJump(bytecode.OpJump)

	c.patch(toElse)
	c.depth = base
	if e.Else != nil {
		c.compileExpr(e.Else)
	} else {
		c.emit(bytecode.OpUnit, 1)
	}
	c.patch(toEnd)
}

func (c *Compiler) compileLoop(e *LoopExpr) {
	base := c.depth
	loop := &loopLabels{depth: base}
	c.loops = append(c.loops, loop)

	start := c.art.CurrentOffset()
	exit := -1
	if e.Cond != nil {
		c.compileExpr(e.Cond)
		exit = c.art.EmitJump(bytecode.OpJumpFalse)
		c.depth--
	}

	c.compileSequence(e.Body)
	c.emit(bytecode.OpPop, -1)
	if err := c.art.EmitLoop(start); err != nil && c.err == nil {
		c.err = err
	}

	if exit >= 0 {
		c.patch(exit)
	}
	for _, b := range loop.breaks {
		c.patch(b)
	}
	c.loops = c.loops[:len(c.loops)-1]

	c.depth = base
	c.emit(bytecode.OpUnit, 1)
}

// compileCall emits a call, a builtin call or a spawn.
func (c *Compiler) compileCall(e *CallExpr, op bytecode.Opcode) {
	argc := c.emitArgc(op, len(e.Args))

	if e.IsBuiltin {
		for _, a := range e.Args {
			c.compileExpr(a)
		}
		c.mark(e.SpanVal.Start)
		c.art.EmitWithOperand(bytecode.OpCallBuiltin, byte(e.Builtin), argc)
		c.depth += 1 - len(e.Args)
		return
	}

	c.compileExpr(e.Callee)
	for _, a := range e.Args {
		c.compileExpr(a)
	}
	c.mark(e.SpanVal.Start)
	c.art.EmitWithOperand(op, argc)
	c.depth -= len(e.Args)
}
