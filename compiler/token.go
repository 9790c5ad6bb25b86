package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the oxido lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenInteger    // 42
	TokenFloat      // 3.14, 1.5e10
	TokenString     // "hello"
	TokenIdentifier // foo, int

	// Operators
	TokenPlus   // +
	TokenMinus  // -
	TokenStar   // *
	TokenSlash  // /
	TokenBang   // !
	TokenLt     // <
	TokenGt     // >
	TokenEqEq   // ==
	TokenAndAnd // &&
	TokenOrOr   // ||
	TokenAssign // =
	TokenArrow  // ->

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenComma     // ,
	TokenColon     // :
	TokenSemicolon // ;

	// Keywords
	TokenLet
	TokenFn
	TokenReturn
	TokenIf
	TokenElse
	TokenLoop
	TokenBreak
	TokenTrue
	TokenFalse
	TokenSpawn
	TokenJoin
	TokenWait
	TokenPost
	TokenYield
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenInteger:    "INTEGER",
	TokenFloat:      "FLOAT",
	TokenString:     "STRING",
	TokenIdentifier: "IDENTIFIER",
	TokenPlus:       "+",
	TokenMinus:      "-",
	TokenStar:       "*",
	TokenSlash:      "/",
	TokenBang:       "!",
	TokenLt:         "<",
	TokenGt:         ">",
	TokenEqEq:       "==",
	TokenAndAnd:     "&&",
	TokenOrOr:       "||",
	TokenAssign:     "=",
	TokenArrow:      "->",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenLBrace:     "{",
	TokenRBrace:     "}",
	TokenComma:      ",",
	TokenColon:      ":",
	TokenSemicolon:  ";",
	TokenLet:        "let",
	TokenFn:         "fn",
	TokenReturn:     "return",
	TokenIf:         "if",
	TokenElse:       "else",
	TokenLoop:       "loop",
	TokenBreak:      "break",
	TokenTrue:       "true",
	TokenFalse:      "false",
	TokenSpawn:      "spawn",
	TokenJoin:       "join",
	TokenWait:       "wait",
	TokenPost:       "post",
	TokenYield:      "yield",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text (decoded for strings)
	Pos     Position // start position
	End     Position // position just past the token
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// describe renders a token for "expected X, got Y" messages.
func (t Token) describe() string {
	switch t.Type {
	case TokenEOF:
		return "end of input"
	case TokenError:
		return t.Literal
	case TokenIdentifier, TokenInteger, TokenFloat:
		return fmt.Sprintf("'%s'", t.Literal)
	case TokenString:
		return fmt.Sprintf("%q", t.Literal)
	}
	return fmt.Sprintf("'%s'", t.Type)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"let":    TokenLet,
	"fn":     TokenFn,
	"return": TokenReturn,
	"if":     TokenIf,
	"else":   TokenElse,
	"loop":   TokenLoop,
	"break":  TokenBreak,
	"true":   TokenTrue,
	"false":  TokenFalse,
	"spawn":  TokenSpawn,
	"join":   TokenJoin,
	"wait":   TokenWait,
	"post":   TokenPost,
	"yield":  TokenYield,
}

// IsKeyword reports whether name is reserved.
func IsKeyword(name string) bool {
	_, ok := reservedWords[name]
	return ok
}

// Keywords returns the reserved words.
func Keywords() []string {
	words := make([]string, 0, len(reservedWords))
	for w := range reservedWords {
		words = append(words, w)
	}
	return words
}
