package server

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chazu/oxido/compiler"
)

// Document is an open source file together with the result of parsing
// and checking its current text.
type Document struct {
	URI     string
	Text    string
	Program *compiler.Program // nil when the text does not parse
	Diags   []*compiler.Diagnostic

	decls []declaration
}

// declaration is a name introduced by let, fn or a parameter.
type declaration struct {
	name string
	pos  compiler.Position
	ty   *compiler.Type // nil when the checker never reached it
	kind string         // "let", "fn" or "param"
}

// Analyze parses and checks text. Parse errors leave Program nil; type
// errors keep the partially annotated tree.
func Analyze(uri, text string) *Document {
	d := &Document{URI: uri, Text: text}

	prog, err := compiler.Parse(text)
	if err != nil {
		if diag, ok := compiler.AsDiagnostic(err); ok {
			d.Diags = []*compiler.Diagnostic{diag}
		} else {
			d.Diags = []*compiler.Diagnostic{{Pos: compiler.Position{Line: 1, Column: 1}, Msg: err.Error()}}
		}
		return d
	}
	d.Program = prog

	checker := compiler.NewChecker("")
	checker.Check(prog)
	d.Diags = checker.Diagnostics()
	d.decls = collectDeclarations(prog)
	return d
}

func collectDeclarations(prog *compiler.Program) []declaration {
	var decls []declaration
	compiler.Inspect(prog, func(n compiler.Node) bool {
		switch n := n.(type) {
		case *compiler.LetStmt:
			var ty *compiler.Type
			if n.Value != nil {
				ty = n.Value.Type()
			}
			decls = append(decls, declaration{name: n.Name, pos: n.NamePos, ty: ty, kind: "let"})
		case *compiler.FnDecl:
			var ty *compiler.Type
			if n.Info != nil {
				ty = n.Info.Type
			}
			decls = append(decls, declaration{name: n.Name, pos: n.NamePos, ty: ty, kind: "fn"})
			decls = appendParams(decls, n.Params, ty)
		case *compiler.FnExpr:
			var ty *compiler.Type
			if n.Info != nil {
				ty = n.Info.Type
			}
			decls = appendParams(decls, n.Params, ty)
		}
		return true
	})
	sort.SliceStable(decls, func(i, j int) bool { return decls[i].pos.Offset < decls[j].pos.Offset })
	return decls
}

func appendParams(decls []declaration, params []*compiler.Param, fn *compiler.Type) []declaration {
	for i, p := range params {
		var ty *compiler.Type
		if fn != nil && i < len(fn.Params) {
			ty = fn.Params[i]
		}
		decls = append(decls, declaration{name: p.Name, pos: p.SpanVal.Start, ty: ty, kind: "param"})
	}
	return decls
}

// identAt returns the innermost identifier whose span covers offset.
func (d *Document) identAt(offset int) *compiler.Ident {
	if d.Program == nil {
		return nil
	}
	pos := compiler.Position{Offset: offset}
	var found *compiler.Ident
	compiler.Inspect(d.Program, func(n compiler.Node) bool {
		if id, ok := n.(*compiler.Ident); ok && id.Span().Contains(pos) {
			found = id
		}
		return true
	})
	return found
}

// declarationOf finds the declaration a name at offset most likely
// refers to: the closest one before it, else a hoisted function after it.
func (d *Document) declarationOf(name string, offset int) (declaration, bool) {
	var best declaration
	found := false
	for _, decl := range d.decls {
		if decl.name != name {
			continue
		}
		if decl.pos.Offset <= offset {
			best, found = decl, true
		} else if !found && decl.kind == "fn" {
			best, found = decl, true
		}
	}
	return best, found
}

// Hover describes the word at offset in markdown, or returns "".
func (d *Document) Hover(word string, offset int) string {
	if id := d.identAt(offset); id != nil && id.Name == word {
		if id.Ref.Kind == compiler.RefNone || id.Ref.Kind == compiler.RefConst {
			if sig, ok := compiler.BuiltinSignature(word); ok {
				return fmt.Sprintf("```oxido\n%s\n```\nbuiltin", sig)
			}
		}
		if ty := id.Type(); ty != nil {
			return fmt.Sprintf("```oxido\n%s: %s\n```\n%s", id.Name, ty, id.Ref.Kind)
		}
	}
	if decl, ok := d.declarationOf(word, offset); ok && decl.ty != nil {
		return fmt.Sprintf("```oxido\n%s %s: %s\n```", decl.kind, decl.name, decl.ty)
	}
	if sig, ok := compiler.BuiltinSignature(word); ok {
		return fmt.Sprintf("```oxido\n%s\n```\nbuiltin", sig)
	}
	if compiler.IsKeyword(word) {
		return fmt.Sprintf("keyword `%s`", word)
	}
	return ""
}

// Candidate is one completion suggestion.
type Candidate struct {
	Label  string
	Detail string
	Kind   string // "keyword", "builtin", "fn", "let" or "param"
}

// Complete lists keywords, builtins and declared names starting with
// prefix. Declared names come first, then builtins, then keywords.
func (d *Document) Complete(prefix string) []Candidate {
	var out []Candidate
	seen := make(map[string]bool)
	for _, decl := range d.decls {
		if !strings.HasPrefix(decl.name, prefix) || seen[decl.name] {
			continue
		}
		seen[decl.name] = true
		detail := decl.kind
		if decl.ty != nil {
			detail = decl.ty.String()
		}
		out = append(out, Candidate{Label: decl.name, Detail: detail, Kind: decl.kind})
	}
	for _, name := range compiler.Predeclared() {
		if !strings.HasPrefix(name, prefix) || seen[name] {
			continue
		}
		sig, _ := compiler.BuiltinSignature(name)
		out = append(out, Candidate{Label: name, Detail: sig, Kind: "builtin"})
	}
	for _, kw := range compiler.Keywords() {
		if strings.HasPrefix(kw, prefix) {
			out = append(out, Candidate{Label: kw, Detail: "keyword", Kind: "keyword"})
		}
	}
	return out
}
