package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Checker: static types and name resolution
// ---------------------------------------------------------------------------

// Checker type-checks a program and annotates the tree in place: every
// expression gets its type, every identifier its storage, every let and
// assignment its target slot, and every function its frame layout.
// Checking an already annotated tree rewrites the same annotations.
type Checker struct {
	file    string
	fn      *funcScope
	globals []string
	hoisted map[*FnDecl]bool
	diags   []*Diagnostic
}

// NewChecker creates a checker; file is used in diagnostics.
func NewChecker(file string) *Checker {
	return &Checker{file: file}
}

// Check type-checks prog and returns the first diagnostic, if any.
func (c *Checker) Check(prog *Program) error {
	c.fn = newFuncScope(nil, nil, nil)
	c.globals = nil
	c.hoisted = make(map[*FnDecl]bool)
	c.diags = nil

	// Top-level functions are visible to the whole program.
	for _, s := range prog.Body.Stmts {
		decl, ok := s.(*FnDecl)
		if !ok {
			continue
		}
		if prev := c.fn.local(decl.Name); prev != nil && prev.isFunc {
			c.errorf(decl.NamePos, "function %s redeclared", decl.Name)
			continue
		}
		sig := c.signature(decl.Params, decl.Result)
		sym := c.declare(decl.Name, sig, decl.NamePos)
		sym.isFunc = true
		c.hoisted[decl] = true
		decl.Info = &FuncInfo{
			Name:     decl.Name,
			Type:     sig,
			SelfSlot: -1,
			Target:   Ref{Kind: RefGlobal, Index: sym.slot},
			Hoisted:  true,
		}
	}

	c.checkSequence(prog.Body)
	prog.GlobalNames = c.globals

	if len(c.diags) > 0 {
		return c.diags[0]
	}
	return nil
}

// Diagnostics returns every error found by the last Check.
func (c *Checker) Diagnostics() []*Diagnostic {
	return c.diags
}

func (c *Checker) errorf(pos Position, format string, args ...interface{}) {
	d := diagnosticf(pos, format, args...)
	d.File = c.file
	c.diags = append(c.diags, d)
}

// declare binds a new name in the innermost scope and allocates its slot.
func (c *Checker) declare(name string, ty *Type, pos Position) *symbol {
	sym := &symbol{name: name, ty: ty, pos: pos}
	if c.fn.info == nil {
		sym.global = true
		sym.slot = len(c.globals)
		c.globals = append(c.globals, name)
	} else {
		sym.slot = c.fn.nextSlot
		c.fn.nextSlot++
	}
	c.fn.bind(sym)
	return sym
}

func (c *Checker) refOf(sym *symbol) Ref {
	if sym.global {
		return Ref{Kind: RefGlobal, Index: sym.slot}
	}
	return Ref{Kind: RefLocal, Index: sym.slot}
}

// ---------------------------------------------------------------------------
// Types written in source
// ---------------------------------------------------------------------------

func (c *Checker) resolveType(t TypeExpr) *Type {
	switch t := t.(type) {
	case nil:
		return TypeUnit
	case *UnitType:
		return TypeUnit
	case *NamedType:
		if ty, ok := basicTypes[t.Name]; ok {
			return ty
		}
		c.errorf(t.SpanVal.Start, "unknown type %s", t.Name)
		return TypeNever
	case *FuncTypeExpr:
		params := make([]*Type, len(t.Params))
		for i, p := range t.Params {
			params[i] = c.resolveType(p)
		}
		return FuncType(params, c.resolveType(t.Result))
	}
	return TypeNever
}

func (c *Checker) signature(params []*Param, result TypeExpr) *Type {
	types := make([]*Type, len(params))
	for i, p := range params {
		types[i] = c.resolveType(p.Type)
	}
	return FuncType(types, c.resolveType(result))
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// checkBlock checks a braced block in its own scope.
func (c *Checker) checkBlock(b *Block) *Type {
	c.fn.push()
	defer c.fn.pop()
	return c.checkSequence(b)
}

// checkSequence checks the statements and tail of b in the current scope.
func (c *Checker) checkSequence(b *Block) *Type {
	diverges := false
	for _, s := range b.Stmts {
		if c.checkStmt(s) {
			diverges = true
		}
	}

	var t *Type
	switch {
	case b.Tail != nil:
		t = c.checkExpr(b.Tail)
	case diverges:
		t = TypeNever
	default:
		t = TypeUnit
	}
	b.setType(t)
	return t
}

// checkStmt checks one statement and reports whether it always diverges.
func (c *Checker) checkStmt(s Stmt) bool {
	switch s := s.(type) {
	case *LetStmt:
		vt := c.checkExpr(s.Value)
		ty := vt
		if s.TypeAnn != nil {
			ty = c.resolveType(s.TypeAnn)
			if !vt.AssignableTo(ty) {
				c.errorf(s.Value.Span().Start, "cannot use %s value as %s in declaration of %s", vt, ty, s.Name)
			}
		} else if vt.IsNever() {
			c.errorf(s.Value.Span().Start, "cannot infer type of %s", s.Name)
		}
		sym := c.declare(s.Name, ty, s.NamePos)
		s.Target = c.refOf(sym)
		return vt.IsNever()

	case *AssignStmt:
		vt := c.checkExpr(s.Value)
		ref, sym := c.fn.resolve(s.Name)
		s.Target = ref
		switch {
		case sym == nil:
			if _, ok := builtinConsts[s.Name]; ok {
				c.errorf(s.SpanVal.Start, "cannot assign to constant %s", s.Name)
			} else {
				c.errorf(s.SpanVal.Start, "undefined: %s", s.Name)
			}
		case ref.Kind == RefCapture:
			c.errorf(s.SpanVal.Start, "cannot assign to captured variable %s", s.Name)
		case sym.isFunc:
			c.errorf(s.SpanVal.Start, "cannot assign to function %s", s.Name)
		case !vt.AssignableTo(sym.ty):
			c.errorf(s.Value.Span().Start, "cannot assign %s value to %s (type %s)", vt, s.Name, sym.ty)
		}
		return vt.IsNever()

	case *ExprStmt:
		return c.checkExpr(s.X).IsNever()

	case *FnDecl:
		c.checkFnDecl(s)
		return false

	case *ReturnStmt:
		vt := TypeUnit
		if s.Value != nil {
			vt = c.checkExpr(s.Value)
		}
		if c.fn.info == nil {
			c.errorf(s.SpanVal.Start, "return outside function")
			return true
		}
		if !vt.AssignableTo(c.fn.result) {
			c.errorf(s.SpanVal.Start, "cannot return %s from function returning %s", vt, c.fn.result)
		}
		return true

	case *BreakStmt:
		if c.fn.loops == 0 {
			c.errorf(s.SpanVal.Start, "break outside loop")
		}
		return true
	}
	panic(fmt.Sprintf("compiler: unexpected statement %T", s))
}

func (c *Checker) checkFnDecl(d *FnDecl) {
	if c.hoisted[d] {
		c.checkFunction(d.Params, d.Body, d.Info, false)
		return
	}

	sig := c.signature(d.Params, d.Result)
	d.Info = &FuncInfo{Name: d.Name, Type: sig, SelfSlot: -1}
	c.checkFunction(d.Params, d.Body, d.Info, true)

	sym := c.declare(d.Name, sig, d.NamePos)
	sym.isFunc = true
	d.Info.Target = c.refOf(sym)
}

// checkFunction checks a function body in a fresh frame. Parameters take
// slots 0..n-1; a self slot, when requested, comes next and makes the
// function's own name visible to its body.
func (c *Checker) checkFunction(params []*Param, body *Block, info *FuncInfo, self bool) {
	info.Captures = nil
	fs := newFuncScope(c.fn, info, info.Type.Result)
	c.fn = fs
	defer func() { c.fn = fs.parent }()

	if self {
		fs.bind(&symbol{name: info.Name, ty: info.Type, isFunc: true})
	}
	fs.push()
	for i, p := range params {
		if fs.blocks[len(fs.blocks)-1][p.Name] != nil {
			c.errorf(p.SpanVal.Start, "duplicate parameter %s", p.Name)
		}
		fs.bind(&symbol{name: p.Name, ty: info.Type.Params[i], slot: i, pos: p.SpanVal.Start})
	}
	fs.nextSlot = len(params)
	if self {
		info.SelfSlot = fs.nextSlot
		fs.blocks[0][info.Name].slot = fs.nextSlot
		fs.nextSlot++
	}

	bt := c.checkBlock(body)
	if !bt.AssignableTo(info.Type.Result) {
		pos := body.SpanVal.Start
		if body.Tail != nil {
			pos = body.Tail.Span().Start
		}
		name := info.Name
		if name == "" {
			name = "function literal"
		}
		c.errorf(pos, "%s returns %s, declared %s", name, bt, info.Type.Result)
	}
	info.Locals = fs.nextSlot
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// checkExpr computes, records and returns the type of e. After an error
// the expression is given the never type so the error does not cascade.
func (c *Checker) checkExpr(e Expr) *Type {
	t := c.exprType(e)
	e.setType(t)
	return t
}

func (c *Checker) exprType(e Expr) *Type {
	switch e := e.(type) {
	case *IntLiteral:
		return TypeInt
	case *FloatLiteral:
		return TypeFloat
	case *StringLiteral:
		return TypeString
	case *BoolLiteral:
		return TypeBool

	case *Ident:
		return c.checkIdent(e)

	case *UnaryExpr:
		t := c.checkExpr(e.Operand)
		switch {
		case t.IsNever():
			return TypeNever
		case e.Op == TokenMinus && t.IsNumeric():
			return t
		case e.Op == TokenBang && t.Equal(TypeBool):
			return TypeBool
		}
		c.errorf(e.SpanVal.Start, "operator %s not defined on %s", e.Op, t)
		return TypeNever

	case *BinaryExpr:
		return c.checkBinary(e)

	case *Block:
		return c.checkBlock(e)

	case *IfExpr:
		c.expectType(e.Cond, TypeBool, "if condition")
		tt := c.checkBlock(e.Then)
		if e.Else == nil {
			if !tt.AssignableTo(TypeUnit) {
				c.errorf(e.SpanVal.Start, "if without else must have type (), found %s", tt)
			}
			return TypeUnit
		}
		et := c.checkExpr(e.Else)
		t, ok := unify(tt, et)
		if !ok {
			c.errorf(e.SpanVal.Start, "if branches have different types %s and %s", tt, et)
			return TypeNever
		}
		return t

	case *LoopExpr:
		if e.Cond != nil {
			c.expectType(e.Cond, TypeBool, "loop condition")
		}
		c.fn.loops++
		c.checkBlock(e.Body)
		c.fn.loops--
		return TypeUnit

	case *CallExpr:
		return c.checkCall(e)

	case *FnExpr:
		sig := c.signature(e.Params, e.Result)
		e.Info = &FuncInfo{Type: sig, SelfSlot: -1}
		c.checkFunction(e.Params, e.Body, e.Info, false)
		return sig

	case *SpawnExpr:
		e.Call.setType(c.checkCall(e.Call))
		if e.Call.IsBuiltin {
			c.errorf(e.SpanVal.Start, "cannot spawn builtin %s", e.Call.Builtin)
		}
		return TypeThread

	case *JoinExpr:
		c.expectType(e.Thread, TypeThread, "join")
		return TypeUnit

	case *WaitExpr:
		c.expectType(e.Sem, TypeSem, "wait")
		return TypeUnit

	case *PostExpr:
		c.expectType(e.Sem, TypeSem, "post")
		return TypeUnit

	case *YieldExpr:
		return TypeUnit

	case *SemCreateExpr:
		return TypeSem
	}
	panic(fmt.Sprintf("compiler: unexpected expression %T", e))
}

// expectType checks e and reports an error unless it has type want.
func (c *Checker) expectType(e Expr, want *Type, context string) {
	t := c.checkExpr(e)
	if !t.AssignableTo(want) {
		c.errorf(e.Span().Start, "%s requires %s, found %s", context, want, t)
	}
}

func (c *Checker) checkIdent(e *Ident) *Type {
	ref, sym := c.fn.resolve(e.Name)
	if sym != nil {
		e.Ref = ref
		return sym.ty
	}
	if k, ok := builtinConsts[e.Name]; ok {
		e.Ref = Ref{Kind: RefConst}
		return k.Type
	}
	e.Ref = Ref{}
	if _, ok := builtinSigs[e.Name]; ok {
		c.errorf(e.SpanVal.Start, "builtin %s must be called", e.Name)
	} else {
		c.errorf(e.SpanVal.Start, "undefined: %s", e.Name)
	}
	return TypeNever
}

func (c *Checker) checkBinary(e *BinaryExpr) *Type {
	lt := c.checkExpr(e.Left)
	rt := c.checkExpr(e.Right)

	switch e.Op {
	case TokenAndAnd, TokenOrOr:
		if !lt.AssignableTo(TypeBool) || !rt.AssignableTo(TypeBool) {
			c.errorf(e.SpanVal.Start, "operator %s requires bool operands, found %s and %s", e.Op, lt, rt)
			return TypeNever
		}
		return TypeBool
	}

	t, ok := unify(lt, rt)
	if !ok {
		c.errorf(e.SpanVal.Start, "mismatched types %s and %s for operator %s", lt, rt, e.Op)
		return TypeNever
	}

	switch e.Op {
	case TokenPlus, TokenMinus, TokenStar, TokenSlash:
		if t.IsNever() || t.IsNumeric() {
			return t
		}
		c.errorf(e.SpanVal.Start, "operator %s not defined on %s", e.Op, t)
		return TypeNever

	case TokenEqEq:
		if t.Kind == KindFunc {
			c.errorf(e.SpanVal.Start, "cannot compare functions")
			return TypeNever
		}
		return TypeBool

	case TokenLt, TokenGt:
		if t.IsNever() || t.IsNumeric() || t.Kind == KindString {
			return TypeBool
		}
		c.errorf(e.SpanVal.Start, "operator %s not defined on %s", e.Op, t)
		return TypeNever
	}
	panic(fmt.Sprintf("compiler: unexpected operator %s", e.Op))
}

func (c *Checker) checkCall(e *CallExpr) *Type {
	e.IsBuiltin = false
	e.Builtin = 0

	if id, ok := e.Callee.(*Ident); ok && c.fn.lookup(id.Name) == nil {
		if sig, ok := builtinSigs[id.Name]; ok {
			return c.checkBuiltinCall(e, id, sig)
		}
	}

	ct := c.checkExpr(e.Callee)
	argTypes := make([]*Type, len(e.Args))
	for i, a := range e.Args {
		argTypes[i] = c.checkExpr(a)
	}

	if ct.IsNever() {
		return TypeNever
	}
	if ct.Kind != KindFunc {
		c.errorf(e.SpanVal.Start, "cannot call non-function of type %s", ct)
		return TypeNever
	}
	if len(e.Args) != len(ct.Params) {
		c.errorf(e.SpanVal.Start, "wrong number of arguments: have %d, want %d", len(e.Args), len(ct.Params))
		return ct.Result
	}
	for i, at := range argTypes {
		if !at.AssignableTo(ct.Params[i]) {
			c.errorf(e.Args[i].Span().Start, "cannot use %s as %s in argument %d", at, ct.Params[i], i+1)
		}
	}
	return ct.Result
}

func (c *Checker) checkBuiltinCall(e *CallExpr, id *Ident, sig builtinSig) *Type {
	e.IsBuiltin = true
	e.Builtin = sig.ID
	id.Ref = Ref{}
	id.setType(nil)

	argTypes := make([]*Type, len(e.Args))
	for i, a := range e.Args {
		argTypes[i] = c.checkExpr(a)
	}
	if len(e.Args) != len(sig.Params) {
		c.errorf(e.SpanVal.Start, "wrong number of arguments to %s: have %d, want %d", id.Name, len(e.Args), len(sig.Params))
		return TypeNever
	}

	result := sig.Result
	if sig.Numeric {
		t := TypeNever
		for i, at := range argTypes {
			u, ok := unify(t, at)
			if !ok {
				c.errorf(e.Args[i].Span().Start, "mismatched argument types %s and %s to %s", t, at, id.Name)
				return TypeNever
			}
			t = u
		}
		if !t.IsNever() && !t.IsNumeric() {
			c.errorf(e.SpanVal.Start, "%s requires int or float arguments, found %s", id.Name, t)
			return TypeNever
		}
		result = t
	}

	for i, want := range sig.Params {
		if want != nil && !argTypes[i].AssignableTo(want) {
			c.errorf(e.Args[i].Span().Start, "cannot use %s as %s in argument %d to %s", argTypes[i], want, i+1, id.Name)
		}
	}
	return result
}
