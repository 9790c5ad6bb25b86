package compiler

import (
	"fmt"
	"strings"
	"testing"

	"github.com/chazu/oxido/pkg/bytecode"
)

func mustCheck(t *testing.T, src string) *Program {
	t.Helper()
	prog := mustParse(t, src)
	if err := NewChecker("test.ox").Check(prog); err != nil {
		t.Fatalf("Check: %v", err)
	}
	return prog
}

func checkErr(src string) error {
	prog, err := Parse(src)
	if err != nil {
		return err
	}
	return NewChecker("test.ox").Check(prog)
}

func TestCheckProgramTypes(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"2-3+4/5*6-8+9", "int"},
		{"2.5 * 1.5", "float"},
		{`"a" < "b"`, "bool"},
		{"20 + { { 40; } 30 }", "int"},
		{"if true { 1 } else { 2 }", "int"},
		{"if true { 1; }", "()"},
		{"let x = 1; loop x < 3 { x = x + 1; }", "()"},
		{"fn f(x: int) -> int { x } f", "fn(int) -> int"},
		{"fn (b: bool) { } ", "fn(bool)"},
		{"sem_create()", "sem"},
		{"fn w() {} spawn w()", "thread"},
		{"PI", "float"},
		{"max(1, 2)", "int"},
		{"abs(-2.5)", "float"},
		{"itoa(3)", "string"},
		{"let s = sem_create(); wait s", "()"},
		{"yield", "()"},
	}

	for _, tc := range tests {
		prog := mustCheck(t, tc.src)
		if got := prog.Body.Type().String(); got != tc.want {
			t.Errorf("Check(%q) = %s, want %s", tc.src, got, tc.want)
		}
	}
}

func TestCheckRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"mixed arithmetic", "1 + 2.0", "mismatched types int and float"},
		{"string arithmetic", `"a" + "b"`, "operator + not defined on string"},
		{"bool compare", "true < false", "operator < not defined on bool"},
		{"compare functions", "fn f() {} f == f", "cannot compare functions"},
		{"not int", "!1", "operator ! not defined on int"},
		{"and int", "1 && true", "requires bool operands"},
		{"undefined", "y + 1", "undefined: y"},
		{"if cond", "if 1 { }", "if condition requires bool, found int"},
		{"if branches", "if true { 1 } else { false }", "if branches have different types int and bool"},
		{"if without else", "if true { 1 }", "if without else must have type ()"},
		{"loop cond", "loop 1 { }", "loop condition requires bool"},
		{"annotation", "let x: bool = 1;", "cannot use int value as bool"},
		{"reassign type", "let x = 1; x = true;", "cannot assign bool value to x (type int)"},
		{"return type", "fn f() -> int { true }", "f returns bool, declared int"},
		{"return stmt", "fn f() -> int { return true; }", "cannot return bool from function returning int"},
		{"return at top", "return 1;", "return outside function"},
		{"break outside", "break;", "break outside loop"},
		{"break in nested fn", "loop { fn g() { break; } }", "break outside loop"},
		{"arity", "fn f(a: int) {} f(1, 2)", "wrong number of arguments: have 2, want 1"},
		{"arg type", "fn f(a: int) {} f(true)", "cannot use bool as int in argument 1"},
		{"call int", "let x = 1; x(2)", "cannot call non-function of type int"},
		{"builtin value", "let p = println;", "builtin println must be called"},
		{"builtin arity", "sqrt(1.0, 2.0)", "wrong number of arguments to sqrt"},
		{"builtin type", "sqrt(1)", "cannot use int as float in argument 1 to sqrt"},
		{"builtin numeric", `min("a", "b")`, "min requires int or float arguments"},
		{"spawn builtin", "spawn println(1)", "cannot spawn builtin println"},
		{"join int", "join 1", "join requires thread, found int"},
		{"wait int", "wait 1", "wait requires sem, found int"},
		{"post thread", "fn w() {} post spawn w()", "post requires sem, found thread"},
		{"unknown type", "let x: integer = 1;", "unknown type integer"},
		{"assign capture", "fn f(x: int) { fn g() { x = 2; } }", "cannot assign to captured variable x"},
		{"assign function", "fn f() {} f = f;", "cannot assign to function f"},
		{"assign constant", "PI = 3.0;", "cannot assign to constant PI"},
		{"duplicate param", "fn f(a: int, a: int) {}", "duplicate parameter a"},
		{"redeclared", "fn f() {} fn f() {}", "function f redeclared"},
		{"nested not hoisted", "fn f() { g(); fn g() {} }", "undefined: g"},
		{"higher-order annotation", `
			fn make(n: int) -> fn(int) -> int {
				fn h(m: int) -> int { n + m }
				h
			}
			let g: fn(int) -> bool = make(1);
		`, "cannot use fn(int) -> int value as fn(int) -> bool in declaration of g"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := checkErr(tc.src)
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %q, want %q", err, tc.want)
			}
		})
	}
}

func TestCheckDiagnosticPosition(t *testing.T) {
	err := checkErr("let a = 1;\nlet b = a + true;")
	d, ok := AsDiagnostic(err)
	if !ok {
		t.Fatalf("error %v is not a diagnostic", err)
	}
	if d.File != "test.ox" || d.Pos.Line != 2 || d.Pos.Column != 9 {
		t.Errorf("diagnostic at %s:%d:%d", d.File, d.Pos.Line, d.Pos.Column)
	}
	if !strings.HasPrefix(d.Error(), "test.ox:2:9: ") {
		t.Errorf("Error() = %q", d.Error())
	}
}

func TestCheckNeverType(t *testing.T) {
	// A block ending in return satisfies any declared result.
	mustCheck(t, `
		fn pick(b: bool) -> int {
			if b { return 1; }
			return 2;
		}
		fn find() -> int {
			loop { return 3; }
			0
		}
		pick(true)
	`)
}

func TestCheckGlobalsAndLocals(t *testing.T) {
	prog := mustCheck(t, `
		let count = 0;
		fn bump(by: int) {
			let next = count + by;
			count = next;
		}
		bump(2);
		count
	`)

	if got := strings.Join(prog.GlobalNames, ","); got != "bump,count" {
		t.Errorf("globals = %s, want bump,count", got)
	}

	let := prog.Body.Stmts[0].(*LetStmt)
	if let.Target != (Ref{Kind: RefGlobal, Index: 1}) {
		t.Errorf("count target = %+v", let.Target)
	}

	decl := prog.Body.Stmts[1].(*FnDecl)
	if !decl.Info.Hoisted || decl.Info.Target != (Ref{Kind: RefGlobal, Index: 0}) {
		t.Errorf("bump info = %+v", decl.Info)
	}
	if decl.Info.Locals != 2 || decl.Info.SelfSlot != -1 || len(decl.Info.Captures) != 0 {
		t.Errorf("bump frame = %+v", decl.Info)
	}

	inner := decl.Body.Stmts[0].(*LetStmt)
	if inner.Target != (Ref{Kind: RefLocal, Index: 1}) {
		t.Errorf("next target = %+v", inner.Target)
	}
	assign := decl.Body.Stmts[1].(*AssignStmt)
	if assign.Target != (Ref{Kind: RefGlobal, Index: 1}) {
		t.Errorf("count assignment target = %+v", assign.Target)
	}
}

func TestCheckClosureCaptures(t *testing.T) {
	prog := mustCheck(t, `
		fn f(x: int) -> fn(int) -> int {
			let z = 3;
			fn g(y: int) -> int { x + y + z }
			g
		}
		f(2)(4)
	`)

	f := prog.Body.Stmts[0].(*FnDecl)
	g := f.Body.Stmts[1].(*FnDecl)

	if g.Info.Target != (Ref{Kind: RefLocal, Index: 2}) {
		t.Errorf("g stored at %+v, want local 2", g.Info.Target)
	}
	if g.Info.SelfSlot != 1 || g.Info.Locals != 2 {
		t.Errorf("g frame = self %d locals %d", g.Info.SelfSlot, g.Info.Locals)
	}
	want := []bytecode.Capture{
		{Source: bytecode.CaptureLocal, Index: 0},
		{Source: bytecode.CaptureLocal, Index: 1},
	}
	if fmt.Sprint(g.Info.Captures) != fmt.Sprint(want) {
		t.Errorf("g captures = %v, want %v", g.Info.Captures, want)
	}
	if f.Info.Locals != 3 {
		t.Errorf("f locals = %d, want 3", f.Info.Locals)
	}
}

func TestCheckChainedCaptures(t *testing.T) {
	prog := mustCheck(t, `
		fn a(x: int) -> int {
			fn b() -> fn() -> int {
				fn c() -> int { x }
				c
			}
			b()()
		}
		a(7)
	`)

	a := prog.Body.Stmts[0].(*FnDecl)
	b := a.Body.Stmts[0].(*FnDecl)
	c := b.Body.Stmts[0].(*FnDecl)

	if len(b.Info.Captures) != 1 || b.Info.Captures[0] != (bytecode.Capture{Source: bytecode.CaptureLocal, Index: 0}) {
		t.Errorf("b captures = %v", b.Info.Captures)
	}
	if len(c.Info.Captures) != 1 || c.Info.Captures[0] != (bytecode.Capture{Source: bytecode.CaptureOuter, Index: 0}) {
		t.Errorf("c captures = %v", c.Info.Captures)
	}
}

func TestCheckRecursiveNested(t *testing.T) {
	prog := mustCheck(t, `
		fn outer(n: int) -> int {
			fn fac(k: int) -> int { if k < 2 { 1 } else { k * fac(k - 1) } }
			fac(n)
		}
		outer(4)
	`)

	fac := prog.Body.Stmts[0].(*FnDecl).Body.Stmts[0].(*FnDecl)
	var ref Ref
	Inspect(fac.Body, func(n Node) bool {
		if id, ok := n.(*Ident); ok && id.Name == "fac" {
			ref = id.Ref
		}
		return true
	})
	if ref != (Ref{Kind: RefLocal, Index: fac.Info.SelfSlot}) {
		t.Errorf("recursive reference = %+v, want self slot %d", ref, fac.Info.SelfSlot)
	}
	if len(fac.Info.Captures) != 0 {
		t.Errorf("fac captures = %v", fac.Info.Captures)
	}
}

func TestCheckShadowing(t *testing.T) {
	prog := mustCheck(t, `
		let x = 1;
		let y = { let x = true; x };
		x
	`)
	if got := prog.Body.Type().String(); got != "int" {
		t.Errorf("type = %s, want int", got)
	}
	if got := len(prog.GlobalNames); got != 3 {
		t.Errorf("globals = %v", prog.GlobalNames)
	}
}

func TestCheckIdempotent(t *testing.T) {
	src := `
		let count = 0;
		let s = sem_create();
		fn f(x: int) -> fn(int) -> int {
			let z = 3;
			fn g(y: int) -> int { x + y + z }
			g
		}
		fn worker(n: int) {
			let i = 0;
			loop i < n { wait s; count = count + 1; post s; i = i + 1; }
		}
		let h = spawn worker(10);
		join h;
		f(2)(4) + count
	`
	prog := mustParse(t, src)
	checker := NewChecker("test.ox")
	if err := checker.Check(prog); err != nil {
		t.Fatalf("Check: %v", err)
	}
	first := snapshot(prog)

	if err := checker.Check(prog); err != nil {
		t.Fatalf("re-Check: %v", err)
	}
	if second := snapshot(prog); second != first {
		t.Errorf("re-checking changed annotations:\n%s\n---\n%s", first, second)
	}
}

// snapshot renders every annotation in the tree.
func snapshot(prog *Program) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "globals %v\n", prog.GlobalNames)
	Inspect(prog, func(n Node) bool {
		switch n := n.(type) {
		case *Ident:
			fmt.Fprintf(&sb, "ident %s %s %v %s\n", n.Name, n.Ref.Kind, n.Ref.Index, n.Type())
		case *LetStmt:
			fmt.Fprintf(&sb, "let %s %+v\n", n.Name, n.Target)
		case *AssignStmt:
			fmt.Fprintf(&sb, "assign %s %+v\n", n.Name, n.Target)
		case *FnDecl:
			fmt.Fprintf(&sb, "fn %s %s locals=%d self=%d caps=%v target=%+v\n",
				n.Name, n.Info.Type, n.Info.Locals, n.Info.SelfSlot, n.Info.Captures, n.Info.Target)
		case *CallExpr:
			fmt.Fprintf(&sb, "call builtin=%v %s\n", n.IsBuiltin, n.Type())
		case Expr:
			fmt.Fprintf(&sb, "%T %s\n", n, n.Type())
		}
		return true
	})
	return sb.String()
}
