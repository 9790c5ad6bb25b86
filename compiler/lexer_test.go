package compiler

import (
	"strings"
	"testing"
)

func TestLexerBasicTokens(t *testing.T) {
	input := `( ) { } , : ; + - * / ! < > == && || = ->`
	expected := []struct {
		typ TokenType
		lit string
	}{
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenLBrace, "{"},
		{TokenRBrace, "}"},
		{TokenComma, ","},
		{TokenColon, ":"},
		{TokenSemicolon, ";"},
		{TokenPlus, "+"},
		{TokenMinus, "-"},
		{TokenStar, "*"},
		{TokenSlash, "/"},
		{TokenBang, "!"},
		{TokenLt, "<"},
		{TokenGt, ">"},
		{TokenEqEq, "=="},
		{TokenAndAnd, "&&"},
		{TokenOrOr, "||"},
		{TokenAssign, "="},
		{TokenArrow, "->"},
		{TokenEOF, ""},
	}

	l := NewLexer(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ {
			t.Errorf("token[%d] type = %v, want %v", i, tok.Type, exp.typ)
		}
		if tok.Literal != exp.lit {
			t.Errorf("token[%d] literal = %q, want %q", i, tok.Literal, exp.lit)
		}
	}
}

func TestLexerKeywords(t *testing.T) {
	for _, word := range Keywords() {
		tok := NewLexer(word).NextToken()
		if tok.Type == TokenIdentifier || tok.Type == TokenError {
			t.Errorf("Lexer(%q): type = %v, want keyword", word, tok.Type)
		}
		if tok.Type.String() != word {
			t.Errorf("Lexer(%q): type name = %q", word, tok.Type.String())
		}
	}

	tok := NewLexer("letter").NextToken()
	if tok.Type != TokenIdentifier || tok.Literal != "letter" {
		t.Errorf("letter lexed as %v", tok)
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
		want  string
	}{
		{"42", TokenInteger, "42"},
		{"0", TokenInteger, "0"},
		{"3.14", TokenFloat, "3.14"},
		{"1e10", TokenFloat, "1e10"},
		{"1.5e-3", TokenFloat, "1.5e-3"},
		{"2.0E+5", TokenFloat, "2.0E+5"},
	}

	for _, tc := range tests {
		tok := NewLexer(tc.input).NextToken()
		if tok.Type != tc.typ {
			t.Errorf("Lexer(%q): type = %v, want %v", tc.input, tok.Type, tc.typ)
		}
		if tok.Literal != tc.want {
			t.Errorf("Lexer(%q): literal = %q, want %q", tc.input, tok.Literal, tc.want)
		}
	}
}

func TestLexerIntegerFollowedByDot(t *testing.T) {
	// "1." is not a float; the dot is not a token either.
	toks := Tokenize("1.")
	if toks[0].Type != TokenInteger || toks[1].Type != TokenError {
		t.Errorf("tokens = %v", toks)
	}
}

func TestLexerStrings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"hello"`, "hello"},
		{`""`, ""},
		{`"a\nb"`, "a\nb"},
		{`"tab\there"`, "tab\there"},
		{`"say \"hi\""`, `say "hi"`},
		{`"back\\slash"`, `back\slash`},
		{`"こんにちは"`, "こんにちは"},
	}

	for _, tc := range tests {
		tok := NewLexer(tc.input).NextToken()
		if tok.Type != TokenString {
			t.Errorf("Lexer(%s): type = %v, want STRING", tc.input, tok.Type)
		}
		if tok.Literal != tc.want {
			t.Errorf("Lexer(%s): literal = %q, want %q", tc.input, tok.Literal, tc.want)
		}
	}
}

func TestLexerComments(t *testing.T) {
	input := "let // line comment\n/* block\n comment */ x"
	toks := Tokenize(input)
	if len(toks) != 3 {
		t.Fatalf("tokens = %v", toks)
	}
	if toks[0].Type != TokenLet || toks[1].Type != TokenIdentifier || toks[2].Type != TokenEOF {
		t.Errorf("tokens = %v", toks)
	}
	if toks[1].Pos.Line != 3 {
		t.Errorf("x on line %d, want 3", toks[1].Pos.Line)
	}
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"unterminated`, "unterminated string"},
		{"/* open", "unterminated block comment"},
		{`"\q"`, "unknown escape sequence"},
		{"@", "unexpected character: @"},
		{"a & b", "did you mean &&?"},
		{"1e+", "malformed exponent"},
	}

	for _, tc := range tests {
		toks := Tokenize(tc.input)
		last := toks[len(toks)-1]
		if last.Type != TokenError {
			t.Errorf("Tokenize(%q): last token %v, want error", tc.input, last)
			continue
		}
		if !strings.Contains(last.Literal, tc.want) {
			t.Errorf("Tokenize(%q): error %q, want %q", tc.input, last.Literal, tc.want)
		}
	}
}

func TestLexerPositions(t *testing.T) {
	toks := Tokenize("let x =\n  42;")
	want := []Position{
		{Offset: 0, Line: 1, Column: 1},
		{Offset: 4, Line: 1, Column: 5},
		{Offset: 6, Line: 1, Column: 7},
		{Offset: 10, Line: 2, Column: 3},
		{Offset: 12, Line: 2, Column: 5},
	}
	for i, pos := range want {
		if toks[i].Pos != pos {
			t.Errorf("token[%d] %v at %+v, want %+v", i, toks[i], toks[i].Pos, pos)
		}
	}
	if toks[3].End.Offset != 12 {
		t.Errorf("42 ends at %d, want 12", toks[3].End.Offset)
	}
}
