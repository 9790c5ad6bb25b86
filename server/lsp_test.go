package server

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// ---------------------------------------------------------------------------
// LSP text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		text string
		line uint32
		char uint32
		want string
	}{
		{"let count", 0, 9, "count"},
		{"pri", 0, 3, "pri"},
		{"", 0, 0, ""},
		{"first line\nsecond line\nsem_", 2, 4, "sem_"},
		{"x + yi", 0, 6, "yi"},
		{"hello", 0, 0, ""},
		{"single line", 5, 0, ""},
		{"short", 0, 99, "short"},
	}
	for _, tc := range tests {
		pos := protocol.Position{Line: tc.line, Character: tc.char}
		if got := extractPrefix(tc.text, pos); got != tc.want {
			t.Errorf("extractPrefix(%q, %d:%d) = %q, want %q", tc.text, tc.line, tc.char, got, tc.want)
		}
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		text string
		line uint32
		char uint32
		want string
	}{
		{"println(x)", 0, 3, "println"},
		{"println", 0, 7, "println"},
		{"a   b", 0, 2, ""},
		{"let value = 1", 0, 6, "value"},
		{"", 0, 0, ""},
		{"one\ntwo three", 1, 5, "three"},
		{"my_var2 = 1", 0, 3, "my_var2"},
		{"one", 3, 0, ""},
	}
	for _, tc := range tests {
		pos := protocol.Position{Line: tc.line, Character: tc.char}
		if got := extractWord(tc.text, pos); got != tc.want {
			t.Errorf("extractWord(%q, %d:%d) = %q, want %q", tc.text, tc.line, tc.char, got, tc.want)
		}
	}
}

func TestOffsetAt(t *testing.T) {
	text := "ab\ncde\n\nf"
	tests := []struct {
		line, char uint32
		want       int
	}{
		{0, 0, 0},
		{0, 1, 1},
		{1, 2, 5},
		{1, 10, 6}, // clamped to end of line
		{2, 0, 7},
		{3, 0, 8},
		{9, 0, len(text)},
	}
	for _, tc := range tests {
		if got := offsetAt(text, protocol.Position{Line: tc.line, Character: tc.char}); got != tc.want {
			t.Errorf("offsetAt(%d:%d) = %d, want %d", tc.line, tc.char, got, tc.want)
		}
	}
}

func TestBoolPtr(t *testing.T) {
	if p := boolPtr(true); p == nil || !*p {
		t.Error("boolPtr(true) should point at true")
	}
	if p := boolPtr(false); p == nil || *p {
		t.Error("boolPtr(false) should point at false")
	}
}

// ---------------------------------------------------------------------------
// Analysis-backed features
// ---------------------------------------------------------------------------

const sample = `let count = 0;
fn bump(by: int) -> int {
    count = count + by;
    count
}
bump(2)
`

func hoverAt(d *Document, line, char uint32) string {
	pos := protocol.Position{Line: line, Character: char}
	return d.Hover(extractWord(d.Text, pos), offsetAt(d.Text, pos))
}

func TestLSP_Hover(t *testing.T) {
	d := Analyze("file:///sample.ox", sample)
	if len(d.Diags) != 0 {
		t.Fatalf("sample has diagnostics: %v", d.Diags)
	}

	tests := []struct {
		name       string
		line, char uint32
		want       string
	}{
		{"global", 2, 13, "```oxido\ncount: int\n```\nglobal"},
		{"parameter", 2, 20, "```oxido\nby: int\n```\nlocal"},
		{"declaration", 1, 4, "```oxido\nfn bump: fn(int) -> int\n```"},
		{"keyword", 0, 1, "keyword `let`"},
		{"number", 5, 5, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := hoverAt(d, tc.line, tc.char); got != tc.want {
				t.Errorf("hover = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLSP_Hover_Builtin(t *testing.T) {
	d := Analyze("file:///b.ox", "println(sqrt(2.0))")
	got := hoverAt(d, 0, 10)
	if !strings.Contains(got, "sqrt(float) -> float") || !strings.HasSuffix(got, "builtin") {
		t.Errorf("hover = %q", got)
	}
}

func TestLSP_Complete(t *testing.T) {
	d := Analyze("file:///sample.ox", sample)

	got := d.Complete("co")
	if len(got) == 0 || got[0] != (Candidate{Label: "count", Detail: "int", Kind: "let"}) {
		t.Errorf("Complete(co) = %+v", got)
	}

	labels := func(cands []Candidate) string {
		var names []string
		for _, c := range cands {
			names = append(names, c.Label)
		}
		return strings.Join(names, " ")
	}
	if got := labels(d.Complete("pri")); got != "print println" {
		t.Errorf("Complete(pri) = %s", got)
	}
	if got := labels(d.Complete("lo")); got != "log loop" {
		t.Errorf("Complete(lo) = %s", got)
	}
	if got := d.Complete("zzz"); len(got) != 0 {
		t.Errorf("Complete(zzz) = %+v", got)
	}

	items := completionItems(d.Complete("b"))
	if len(items) == 0 || items[0].Label != "bump" || *items[0].Kind != protocol.CompletionItemKindFunction {
		t.Errorf("items = %+v", items)
	}
}

func TestLSP_Definition(t *testing.T) {
	d := Analyze("file:///sample.ox", sample)
	pos := protocol.Position{Line: 5, Character: 1}
	decl, ok := d.declarationOf(extractWord(d.Text, pos), offsetAt(d.Text, pos))
	if !ok || decl.kind != "fn" {
		t.Fatalf("declaration = %+v, %v", decl, ok)
	}
	if p := lspPosition(decl.pos); p.Line != 1 || p.Character != 3 {
		t.Errorf("definition at %d:%d, want 1:3", p.Line, p.Character)
	}

	if _, ok := d.declarationOf("missing", 0); ok {
		t.Error("found a declaration for an unknown name")
	}
}

func TestLSP_DefinitionHoisted(t *testing.T) {
	d := Analyze("file:///h.ox", "later()\nfn later() {}\n")
	decl, ok := d.declarationOf("later", 0)
	if !ok || decl.pos.Line != 2 {
		t.Errorf("declaration = %+v, %v", decl, ok)
	}
}

func TestLSP_Diagnostics(t *testing.T) {
	d := Analyze("file:///bad.ox", "let x = 1;\nlet y: bool = x;\nlet z: int = true;\n")
	diags := diagnostics(d)
	if len(diags) != 2 {
		t.Fatalf("diagnostics = %+v, want 2", diags)
	}
	first := diags[0]
	if first.Range.Start.Line != 1 || !strings.Contains(first.Message, "cannot use int value as bool") {
		t.Errorf("first diagnostic = %+v", first)
	}
	if *first.Severity != protocol.DiagnosticSeverityError || *first.Source != lspName {
		t.Errorf("severity %v source %v", *first.Severity, *first.Source)
	}

	// Declarations stay available for hover while the file has errors.
	if got := hoverAt(d, 0, 4); got != "```oxido\nlet x: int\n```" {
		t.Errorf("hover = %q", got)
	}
}

func TestLSP_ParseError(t *testing.T) {
	d := Analyze("file:///p.ox", "let = 3;")
	if d.Program != nil || len(d.Diags) != 1 {
		t.Fatalf("program %v diags %v", d.Program, d.Diags)
	}
	if got := diagnostics(d); len(got) != 1 || got[0].Range.Start.Line != 0 {
		t.Errorf("diagnostics = %+v", got)
	}
	if got := hoverAt(d, 0, 1); got != "keyword `let`" {
		t.Errorf("hover on unparsed file = %q", got)
	}
	if got := diagnostics(Analyze("file:///ok.ox", "1")); got == nil || len(got) != 0 {
		t.Errorf("clean file diagnostics = %#v, want empty non-nil", got)
	}
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

func TestDocuments_Store(t *testing.T) {
	ds := NewDocuments()
	defer ds.Stop()

	if _, err := ds.Update("file:///a.ox", "let a = 1;"); err != nil {
		t.Fatal(err)
	}
	if _, err := ds.Update("file:///b.ox", "let b = 2;"); err != nil {
		t.Fatal(err)
	}

	var text string
	if err := ds.Read("file:///a.ox", func(d *Document) { text = d.Text }); err != nil {
		t.Fatal(err)
	}
	if text != "let a = 1;" {
		t.Errorf("a.ox text = %q", text)
	}

	ds.Close("file:///a.ox")
	called := false
	if err := ds.Read("file:///a.ox", func(*Document) { called = true }); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("read ran on a closed document")
	}
	if err := ds.Read("file:///b.ox", func(d *Document) { text = d.Text }); err != nil || text != "let b = 2;" {
		t.Errorf("b.ox text = %q, err %v", text, err)
	}
}

func TestDocuments_UpdatesApplyInOrder(t *testing.T) {
	ds := NewDocuments()
	defer ds.Stop()

	for i := 0; i < 20; i++ {
		if _, err := ds.Update("file:///a.ox", fmt.Sprintf("let v = %d;", i)); err != nil {
			t.Fatal(err)
		}
	}
	var text string
	ds.Read("file:///a.ox", func(d *Document) { text = d.Text })
	if text != "let v = 19;" {
		t.Errorf("text = %q, want the last update", text)
	}
}

func TestDocuments_BusyDocumentDoesNotBlockOthers(t *testing.T) {
	ds := NewDocuments()
	defer ds.Stop()
	if _, err := ds.Update("file:///slow.ox", "1"); err != nil {
		t.Fatal(err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan error, 1)
	go func() {
		finished <- ds.Read("file:///slow.ox", func(*Document) {
			close(started)
			<-release
		})
	}()
	<-started

	if _, err := ds.Update("file:///fast.ox", "2"); err != nil {
		t.Fatalf("update while another document is busy: %v", err)
	}
	close(release)
	if err := <-finished; err != nil {
		t.Fatal(err)
	}
}

func TestDocuments_RecoversPanic(t *testing.T) {
	ds := NewDocuments()
	defer ds.Stop()
	ds.Update("file:///a.ox", "1")

	err := ds.Read("file:///a.ox", func(*Document) { panic("boom") })
	if err == nil || err.Error() != "boom" {
		t.Errorf("err = %v, want boom", err)
	}

	// The document keeps serving after a panic.
	var text string
	if err := ds.Read("file:///a.ox", func(d *Document) { text = d.Text }); err != nil || text != "1" {
		t.Errorf("text = %q, err %v", text, err)
	}
}

func TestDocuments_StopTwice(t *testing.T) {
	ds := NewDocuments()
	ds.Update("file:///a.ox", "1")
	ds.Stop()
	ds.Stop()
	if _, err := ds.Update("file:///a.ox", "2"); !errors.Is(err, errStopped) {
		t.Errorf("update after stop: err = %v", err)
	}
	if err := ds.Read("file:///a.ox", func(*Document) {}); !errors.Is(err, errStopped) {
		t.Errorf("read after stop: err = %v", err)
	}
}

func TestNewLSP(t *testing.T) {
	s := NewLSP("1.2.3")
	defer s.docs.Stop()
	if s.server == nil || s.handler.TextDocumentHover == nil || s.handler.TextDocumentCompletion == nil {
		t.Error("handlers not wired")
	}
	if s.version != "1.2.3" {
		t.Errorf("version = %q", s.version)
	}
}
