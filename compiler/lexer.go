package compiler

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for oxido syntax
// ---------------------------------------------------------------------------

// Lexer tokenizes oxido source code.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // line of ch (1-based)
	col     int  // column of ch (1-based)

	pending *Token // error found while skipping comments
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		if l.pos < len(l.input) {
			l.col++
		}
		l.ch = 0 // EOF
		l.pos = len(l.input)
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.col,
	}
}

func (l *Lexer) single(t TokenType, pos Position) Token {
	lit := string(l.ch)
	l.readChar()
	return Token{Type: t, Literal: lit, Pos: pos}
}

// double consumes a two-character operator whose second character is next.
func (l *Lexer) double(t TokenType, pos Position) Token {
	lit := string(l.ch) + string(l.peekChar())
	l.readChar()
	l.readChar()
	return Token{Type: t, Literal: lit, Pos: pos}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	tok := l.scan()
	tok.End = l.position()
	return tok
}

func (l *Lexer) scan() Token {
	l.skipWhitespaceAndComments()
	if l.pending != nil {
		tok := *l.pending
		l.pending = nil
		return tok
	}

	pos := l.position()

	switch {
	case l.ch == 0:
		return Token{Type: TokenEOF, Literal: "", Pos: pos}

	case l.ch == '(':
		return l.single(TokenLParen, pos)
	case l.ch == ')':
		return l.single(TokenRParen, pos)
	case l.ch == '{':
		return l.single(TokenLBrace, pos)
	case l.ch == '}':
		return l.single(TokenRBrace, pos)
	case l.ch == ',':
		return l.single(TokenComma, pos)
	case l.ch == ':':
		return l.single(TokenColon, pos)
	case l.ch == ';':
		return l.single(TokenSemicolon, pos)
	case l.ch == '+':
		return l.single(TokenPlus, pos)
	case l.ch == '*':
		return l.single(TokenStar, pos)
	case l.ch == '/':
		return l.single(TokenSlash, pos)
	case l.ch == '!':
		return l.single(TokenBang, pos)
	case l.ch == '<':
		return l.single(TokenLt, pos)
	case l.ch == '>':
		return l.single(TokenGt, pos)

	case l.ch == '-':
		if l.peekChar() == '>' {
			return l.double(TokenArrow, pos)
		}
		return l.single(TokenMinus, pos)

	case l.ch == '=':
		if l.peekChar() == '=' {
			return l.double(TokenEqEq, pos)
		}
		return l.single(TokenAssign, pos)

	case l.ch == '&':
		if l.peekChar() == '&' {
			return l.double(TokenAndAnd, pos)
		}
		l.readChar()
		return Token{Type: TokenError, Literal: "unexpected character: & (did you mean &&?)", Pos: pos}

	case l.ch == '|':
		if l.peekChar() == '|' {
			return l.double(TokenOrOr, pos)
		}
		l.readChar()
		return Token{Type: TokenError, Literal: "unexpected character: | (did you mean ||?)", Pos: pos}

	case l.ch == '"':
		return l.readString(pos)

	case isDigit(l.ch):
		return l.readNumber(pos)

	case isLetter(l.ch) || l.ch == '_':
		return l.readIdentifier(pos)

	default:
		ch := l.ch
		l.readChar()
		return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character: %c", ch), Pos: pos}
	}
}

// skipWhitespaceAndComments skips whitespace, // line comments and
// /* block */ comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}

		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			pos := l.position()
			l.readChar() // /
			l.readChar() // *
			for !(l.ch == '*' && l.peekChar() == '/') {
				if l.ch == 0 {
					l.pending = &Token{Type: TokenError, Literal: "unterminated block comment", Pos: pos}
					return
				}
				l.readChar()
			}
			l.readChar() // *
			l.readChar() // /
			continue
		}

		break
	}
}

// readString reads a double-quoted string literal with backslash escapes.
func (l *Lexer) readString(pos Position) Token {
	l.readChar() // consume opening "

	var sb strings.Builder
	for l.ch != '"' {
		switch l.ch {
		case 0:
			return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
		case '\\':
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			case '"':
				sb.WriteRune('"')
			case '\\':
				sb.WriteRune('\\')
			case '0':
				sb.WriteRune(0)
			default:
				return Token{Type: TokenError, Literal: fmt.Sprintf("unknown escape sequence: \\%c", l.ch), Pos: pos}
			}
		default:
			sb.WriteRune(l.ch)
		}
		l.readChar()
	}
	l.readChar() // consume closing "

	return Token{Type: TokenString, Literal: sb.String(), Pos: pos}
}

// readNumber reads an integer or float literal.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	isFloat := false

	for isDigit(l.ch) {
		l.readChar()
	}

	// Check for float
	if l.ch == '.' && isDigit(l.peekChar()) {
		isFloat = true
		l.readChar() // consume .
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	// Check for exponent
	if l.ch == 'e' || l.ch == 'E' {
		isFloat = true
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		if !isDigit(l.ch) {
			return Token{Type: TokenError, Literal: "malformed exponent in " + l.input[start:l.pos], Pos: pos}
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	if isFloat {
		return Token{Type: TokenFloat, Literal: l.input[start:l.pos], Pos: pos}
	}
	return Token{Type: TokenInteger, Literal: l.input[start:l.pos], Pos: pos}
}

// readIdentifier reads an identifier or reserved word.
func (l *Lexer) readIdentifier(pos Position) Token {
	start := l.pos

	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}

	literal := l.input[start:l.pos]
	if tokType, ok := reservedWords[literal]; ok {
		return Token{Type: tokType, Literal: literal, Pos: pos}
	}

	return Token{Type: TokenIdentifier, Literal: literal, Pos: pos}
}

// Helper functions

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// Tokenize returns all tokens from the input.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}
	return tokens
}
