package compiler

import "github.com/chazu/oxido/pkg/bytecode"

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for oxido
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Contains reports whether pos falls inside the span.
func (s Span) Contains(pos Position) bool {
	return pos.Offset >= s.Start.Offset && pos.Offset < s.End.Offset
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// ---------------------------------------------------------------------------
// Checker annotations
// ---------------------------------------------------------------------------

// RefKind says where a resolved name lives at run time.
type RefKind int

const (
	RefNone    RefKind = iota // not resolved yet
	RefLocal                  // slot of the current frame
	RefGlobal                 // slot of the VM heap
	RefCapture                // entry of the current closure's environment
	RefConst                  // builtin constant, inlined
)

func (k RefKind) String() string {
	switch k {
	case RefLocal:
		return "local"
	case RefGlobal:
		return "global"
	case RefCapture:
		return "capture"
	case RefConst:
		return "const"
	}
	return "unresolved"
}

// Ref is the resolved storage of an identifier, relative to the function
// the identifier appears in.
type Ref struct {
	Kind  RefKind
	Index int
}

// FuncInfo is attached to every function declaration and function
// expression by the checker.
type FuncInfo struct {
	Name     string
	Type     *Type
	Locals   int // total slots, parameters first
	SelfSlot int // slot holding the running closure, or -1
	Captures []bytecode.Capture
	Target   Ref  // where a declaration stores its closure
	Hoisted  bool // top-level declaration created before main runs
}

// typed carries the type the checker computed for an expression.
type typed struct {
	ty *Type
}

func (t *typed) Type() *Type       { return t.ty }
func (t *typed) setType(ty *Type) { t.ty = ty }

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	Type() *Type
	setType(*Type)
	expr() // marker method
}

// IntLiteral represents an integer literal.
type IntLiteral struct {
	typed
	SpanVal Span
	Value   int64
}

func (n *IntLiteral) Span() Span { return n.SpanVal }
func (n *IntLiteral) node()      {}
func (n *IntLiteral) expr()      {}

// FloatLiteral represents a floating-point literal.
type FloatLiteral struct {
	typed
	SpanVal Span
	Value   float64
}

func (n *FloatLiteral) Span() Span { return n.SpanVal }
func (n *FloatLiteral) node()      {}
func (n *FloatLiteral) expr()      {}

// StringLiteral represents a string literal.
type StringLiteral struct {
	typed
	SpanVal Span
	Value   string
}

func (n *StringLiteral) Span() Span { return n.SpanVal }
func (n *StringLiteral) node()      {}
func (n *StringLiteral) expr()      {}

// BoolLiteral represents true or false.
type BoolLiteral struct {
	typed
	SpanVal Span
	Value   bool
}

func (n *BoolLiteral) Span() Span { return n.SpanVal }
func (n *BoolLiteral) node()      {}
func (n *BoolLiteral) expr()      {}

// Ident represents a variable reference.
type Ident struct {
	typed
	SpanVal Span
	Name    string
	Ref     Ref // set by the checker
}

func (n *Ident) Span() Span { return n.SpanVal }
func (n *Ident) node()      {}
func (n *Ident) expr()      {}

// BinaryExpr represents an infix operation.
type BinaryExpr struct {
	typed
	SpanVal Span
	Op      TokenType
	Left    Expr
	Right   Expr
}

func (n *BinaryExpr) Span() Span { return n.SpanVal }
func (n *BinaryExpr) node()      {}
func (n *BinaryExpr) expr()      {}

// UnaryExpr represents a prefix - or !.
type UnaryExpr struct {
	typed
	SpanVal Span
	Op      TokenType
	Operand Expr
}

func (n *UnaryExpr) Span() Span { return n.SpanVal }
func (n *UnaryExpr) node()      {}
func (n *UnaryExpr) expr()      {}

// Block represents { stmts; tail }. A nil Tail makes the block Unit
// (or never, when a statement diverges).
type Block struct {
	typed
	SpanVal Span
	Stmts   []Stmt
	Tail    Expr
}

func (n *Block) Span() Span { return n.SpanVal }
func (n *Block) node()      {}
func (n *Block) expr()      {}

// IfExpr represents if cond { } [else { } | else if ...].
type IfExpr struct {
	typed
	SpanVal Span
	Cond    Expr
	Then    *Block
	Else    Expr // *Block, *IfExpr or nil
}

func (n *IfExpr) Span() Span { return n.SpanVal }
func (n *IfExpr) node()      {}
func (n *IfExpr) expr()      {}

// LoopExpr represents loop [cond] { body }.
type LoopExpr struct {
	typed
	SpanVal Span
	Cond    Expr // nil for an unconditional loop
	Body    *Block
}

func (n *LoopExpr) Span() Span { return n.SpanVal }
func (n *LoopExpr) node()      {}
func (n *LoopExpr) expr()      {}

// CallExpr represents callee(args).
type CallExpr struct {
	typed
	SpanVal Span
	Callee  Expr
	Args    []Expr

	// Set by the checker when the callee names a builtin.
	IsBuiltin bool
	Builtin   bytecode.BuiltinID
}

func (n *CallExpr) Span() Span { return n.SpanVal }
func (n *CallExpr) node()      {}
func (n *CallExpr) expr()      {}

// Param is a typed function parameter.
type Param struct {
	SpanVal Span
	Name    string
	Type    TypeExpr
}

func (n *Param) Span() Span { return n.SpanVal }
func (n *Param) node()      {}

// FnExpr represents an anonymous function fn (params) -> R { body }.
type FnExpr struct {
	typed
	SpanVal Span
	Params  []*Param
	Result  TypeExpr // nil means ()
	Body    *Block
	Info    *FuncInfo
}

func (n *FnExpr) Span() Span { return n.SpanVal }
func (n *FnExpr) node()      {}
func (n *FnExpr) expr()      {}

// SpawnExpr represents spawn f(args).
type SpawnExpr struct {
	typed
	SpanVal Span
	Call    *CallExpr
}

func (n *SpawnExpr) Span() Span { return n.SpanVal }
func (n *SpawnExpr) node()      {}
func (n *SpawnExpr) expr()      {}

// JoinExpr represents join handle.
type JoinExpr struct {
	typed
	SpanVal Span
	Thread  Expr
}

func (n *JoinExpr) Span() Span { return n.SpanVal }
func (n *JoinExpr) node()      {}
func (n *JoinExpr) expr()      {}

// WaitExpr represents wait sem.
type WaitExpr struct {
	typed
	SpanVal Span
	Sem     Expr
}

func (n *WaitExpr) Span() Span { return n.SpanVal }
func (n *WaitExpr) node()      {}
func (n *WaitExpr) expr()      {}

// PostExpr represents post sem.
type PostExpr struct {
	typed
	SpanVal Span
	Sem     Expr
}

func (n *PostExpr) Span() Span { return n.SpanVal }
func (n *PostExpr) node()      {}
func (n *PostExpr) expr()      {}

// YieldExpr represents yield.
type YieldExpr struct {
	typed
	SpanVal Span
}

func (n *YieldExpr) Span() Span { return n.SpanVal }
func (n *YieldExpr) node()      {}
func (n *YieldExpr) expr()      {}

// SemCreateExpr represents sem_create().
type SemCreateExpr struct {
	typed
	SpanVal Span
}

func (n *SemCreateExpr) Span() Span { return n.SpanVal }
func (n *SemCreateExpr) node()      {}
func (n *SemCreateExpr) expr()      {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// LetStmt represents let name [: T] = value;
type LetStmt struct {
	SpanVal Span
	Name    string
	NamePos Position
	TypeAnn TypeExpr // nil when inferred
	Value   Expr
	Target  Ref // set by the checker
}

func (n *LetStmt) Span() Span { return n.SpanVal }
func (n *LetStmt) node()      {}
func (n *LetStmt) stmt()      {}

// AssignStmt represents name = value;
type AssignStmt struct {
	SpanVal Span
	Name    string
	Value   Expr
	Target  Ref // set by the checker
}

func (n *AssignStmt) Span() Span { return n.SpanVal }
func (n *AssignStmt) node()      {}
func (n *AssignStmt) stmt()      {}

// ExprStmt represents an expression evaluated for effect.
type ExprStmt struct {
	SpanVal Span
	X       Expr
}

func (n *ExprStmt) Span() Span { return n.SpanVal }
func (n *ExprStmt) node()      {}
func (n *ExprStmt) stmt()      {}

// FnDecl represents fn name(params) -> R { body }.
type FnDecl struct {
	SpanVal Span
	Name    string
	NamePos Position
	Params  []*Param
	Result  TypeExpr // nil means ()
	Body    *Block
	Info    *FuncInfo
}

func (n *FnDecl) Span() Span { return n.SpanVal }
func (n *FnDecl) node()      {}
func (n *FnDecl) stmt()      {}

// ReturnStmt represents return [value];
type ReturnStmt struct {
	SpanVal Span
	Value   Expr // nil returns ()
}

func (n *ReturnStmt) Span() Span { return n.SpanVal }
func (n *ReturnStmt) node()      {}
func (n *ReturnStmt) stmt()      {}

// BreakStmt represents break;
type BreakStmt struct {
	SpanVal Span
}

func (n *BreakStmt) Span() Span { return n.SpanVal }
func (n *BreakStmt) node()      {}
func (n *BreakStmt) stmt()      {}

// ---------------------------------------------------------------------------
// Type annotations
// ---------------------------------------------------------------------------

// TypeExpr is a written type annotation.
type TypeExpr interface {
	Node
	typeExpr() // marker method
}

// NamedType is a basic type name such as int or sem.
type NamedType struct {
	SpanVal Span
	Name    string
}

func (n *NamedType) Span() Span { return n.SpanVal }
func (n *NamedType) node()      {}
func (n *NamedType) typeExpr()  {}

// UnitType is ().
type UnitType struct {
	SpanVal Span
}

func (n *UnitType) Span() Span { return n.SpanVal }
func (n *UnitType) node()      {}
func (n *UnitType) typeExpr()  {}

// FuncTypeExpr is fn(T, ...) [-> R].
type FuncTypeExpr struct {
	SpanVal Span
	Params  []TypeExpr
	Result  TypeExpr // nil means ()
}

func (n *FuncTypeExpr) Span() Span { return n.SpanVal }
func (n *FuncTypeExpr) node()      {}
func (n *FuncTypeExpr) typeExpr()  {}

// ---------------------------------------------------------------------------
// Program
// ---------------------------------------------------------------------------

// Program is a whole source file: top-level statements and an optional
// final expression whose value is the program result.
type Program struct {
	SpanVal Span
	Body    *Block

	// Set by the checker.
	GlobalNames []string
}

func (n *Program) Span() Span { return n.SpanVal }
func (n *Program) node()      {}

// ---------------------------------------------------------------------------
// Traversal
// ---------------------------------------------------------------------------

// Inspect walks the tree depth-first, calling f for each node. If f
// returns false the children of that node are skipped.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	switch n := n.(type) {
	case *Program:
		if n.Body != nil {
			Inspect(n.Body, f)
		}
	case *Block:
		for _, s := range n.Stmts {
			Inspect(s, f)
		}
		if n.Tail != nil {
			Inspect(n.Tail, f)
		}
	case *BinaryExpr:
		Inspect(n.Left, f)
		Inspect(n.Right, f)
	case *UnaryExpr:
		Inspect(n.Operand, f)
	case *IfExpr:
		Inspect(n.Cond, f)
		Inspect(n.Then, f)
		if n.Else != nil {
			Inspect(n.Else, f)
		}
	case *LoopExpr:
		if n.Cond != nil {
			Inspect(n.Cond, f)
		}
		Inspect(n.Body, f)
	case *CallExpr:
		Inspect(n.Callee, f)
		for _, a := range n.Args {
			Inspect(a, f)
		}
	case *FnExpr:
		Inspect(n.Body, f)
	case *SpawnExpr:
		Inspect(n.Call, f)
	case *JoinExpr:
		Inspect(n.Thread, f)
	case *WaitExpr:
		Inspect(n.Sem, f)
	case *PostExpr:
		Inspect(n.Sem, f)
	case *LetStmt:
		Inspect(n.Value, f)
	case *AssignStmt:
		Inspect(n.Value, f)
	case *ExprStmt:
		Inspect(n.X, f)
	case *FnDecl:
		Inspect(n.Body, f)
	case *ReturnStmt:
		if n.Value != nil {
			Inspect(n.Value, f)
		}
	}
}
