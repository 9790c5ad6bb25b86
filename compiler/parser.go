package compiler

import "strconv"

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for oxido syntax
// ---------------------------------------------------------------------------

// Parser parses oxido source code into an AST. Parsing stops at the first
// error; Errors returns it.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	prevEnd   Position // end of the last consumed token
	errors    []*Diagnostic
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{
		lexer: NewLexer(input),
	}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// nextToken advances to the next token. After an error the parser sits
// on EOF so every loop unwinds.
func (p *Parser) nextToken() {
	if p.failed() {
		return
	}
	p.prevEnd = p.curToken.End
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
	if p.curToken.Type == TokenError {
		p.errorAt(p.curToken.Pos, "%s", p.curToken.Literal)
	}
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected '%s', got %s", t, p.curToken.describe())
	return false
}

// errorf records a parse error at the current token.
func (p *Parser) errorf(format string, args ...interface{}) {
	p.errorAt(p.curToken.Pos, format, args...)
}

func (p *Parser) errorAt(pos Position, format string, args ...interface{}) {
	if p.failed() {
		return
	}
	p.errors = append(p.errors, diagnosticf(pos, format, args...))
	p.curToken = Token{Type: TokenEOF, Pos: p.curToken.Pos, End: p.curToken.Pos}
	p.peekToken = p.curToken
}

func (p *Parser) failed() bool {
	return len(p.errors) > 0
}

// Errors returns accumulated parse errors.
func (p *Parser) Errors() []*Diagnostic {
	return p.errors
}

// Err returns the first parse error, or nil.
func (p *Parser) Err() error {
	if len(p.errors) == 0 {
		return nil
	}
	return p.errors[0]
}

func (p *Parser) span(start Position) Span {
	return Span{Start: start, End: p.prevEnd}
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseProgram parses a whole source file.
func (p *Parser) ParseProgram() *Program {
	start := p.curToken.Pos
	body := &Block{}
	body.Stmts, body.Tail = p.parseStatements(TokenEOF)
	body.SpanVal = p.span(start)
	return &Program{SpanVal: body.SpanVal, Body: body}
}

// ParseExpression parses a single expression.
func (p *Parser) ParseExpression() Expr {
	return p.parseOr()
}

// parseStatements parses statements up to the end token, returning the
// trailing expression if the sequence ends with one.
func (p *Parser) parseStatements(end TokenType) ([]Stmt, Expr) {
	var stmts []Stmt

	for !p.curTokenIs(end) && !p.curTokenIs(TokenEOF) {
		switch p.curToken.Type {
		case TokenSemicolon:
			p.nextToken()
			continue
		case TokenLet:
			if s := p.parseLet(); s != nil {
				stmts = append(stmts, s)
			}
			continue
		case TokenReturn:
			if s := p.parseReturn(end); s != nil {
				stmts = append(stmts, s)
			}
			continue
		case TokenBreak:
			start := p.curToken.Pos
			p.nextToken()
			p.endStatement(end)
			stmts = append(stmts, &BreakStmt{SpanVal: p.span(start)})
			continue
		case TokenFn:
			if p.peekTokenIs(TokenIdentifier) {
				if s := p.parseFnDecl(); s != nil {
					stmts = append(stmts, s)
				}
				continue
			}
		}

		start := p.curToken.Pos
		x := p.ParseExpression()
		if x == nil {
			return stmts, nil
		}

		if p.curTokenIs(TokenAssign) {
			ident, ok := x.(*Ident)
			if !ok {
				p.errorf("cannot assign to this expression")
				return stmts, nil
			}
			p.nextToken()
			value := p.ParseExpression()
			p.endStatement(end)
			stmts = append(stmts, &AssignStmt{SpanVal: p.span(start), Name: ident.Name, Value: value})
			continue
		}

		switch {
		case p.curTokenIs(TokenSemicolon):
			p.nextToken()
			stmts = append(stmts, &ExprStmt{SpanVal: p.span(start), X: x})
		case p.curTokenIs(end):
			return stmts, x
		case blockLike(x):
			stmts = append(stmts, &ExprStmt{SpanVal: p.span(start), X: x})
		default:
			p.errorf("expected ';' after expression, got %s", p.curToken.describe())
		}
	}

	return stmts, nil
}

// blockLike reports whether x ends in a brace and may stand as a
// statement without a semicolon.
func blockLike(x Expr) bool {
	switch x.(type) {
	case *Block, *IfExpr, *LoopExpr:
		return true
	}
	return false
}

// endStatement consumes a terminating semicolon, which may be omitted
// before the end of the enclosing block.
func (p *Parser) endStatement(end TokenType) {
	if p.curTokenIs(TokenSemicolon) {
		p.nextToken()
		return
	}
	if !p.curTokenIs(end) {
		p.errorf("expected ';', got %s", p.curToken.describe())
	}
}

// parseLet parses let name [: T] = value;
func (p *Parser) parseLet() *LetStmt {
	start := p.curToken.Pos
	p.nextToken() // consume let

	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected variable name after 'let', got %s", p.curToken.describe())
		return nil
	}
	stmt := &LetStmt{Name: p.curToken.Literal, NamePos: p.curToken.Pos}
	p.nextToken()

	if p.curTokenIs(TokenColon) {
		p.nextToken()
		stmt.TypeAnn = p.parseType()
	}
	if !p.expect(TokenAssign) {
		return nil
	}
	stmt.Value = p.ParseExpression()
	if !p.expect(TokenSemicolon) {
		return nil
	}
	stmt.SpanVal = p.span(start)
	return stmt
}

// parseReturn parses return [value];
func (p *Parser) parseReturn(end TokenType) *ReturnStmt {
	start := p.curToken.Pos
	p.nextToken() // consume return

	stmt := &ReturnStmt{}
	if !p.curTokenIs(TokenSemicolon) && !p.curTokenIs(end) {
		stmt.Value = p.ParseExpression()
	}
	p.endStatement(end)
	stmt.SpanVal = p.span(start)
	return stmt
}

// parseFnDecl parses fn name(params) [-> R] { body }.
func (p *Parser) parseFnDecl() *FnDecl {
	start := p.curToken.Pos
	p.nextToken() // consume fn

	decl := &FnDecl{Name: p.curToken.Literal, NamePos: p.curToken.Pos}
	p.nextToken()

	decl.Params, decl.Result = p.parseSignature()
	decl.Body = p.parseBlock()
	if decl.Body == nil {
		return nil
	}
	decl.SpanVal = p.span(start)
	return decl
}

// parseSignature parses (p: T, ...) [-> R].
func (p *Parser) parseSignature() ([]*Param, TypeExpr) {
	if !p.expect(TokenLParen) {
		return nil, nil
	}

	var params []*Param
	for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
		if !p.curTokenIs(TokenIdentifier) {
			p.errorf("expected parameter name, got %s", p.curToken.describe())
			return nil, nil
		}
		start := p.curToken.Pos
		param := &Param{Name: p.curToken.Literal}
		p.nextToken()
		if !p.expect(TokenColon) {
			return nil, nil
		}
		param.Type = p.parseType()
		param.SpanVal = p.span(start)
		params = append(params, param)

		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	if !p.expect(TokenRParen) {
		return nil, nil
	}

	var result TypeExpr
	if p.curTokenIs(TokenArrow) {
		p.nextToken()
		result = p.parseType()
	}
	return params, result
}

// parseType parses a type annotation.
func (p *Parser) parseType() TypeExpr {
	start := p.curToken.Pos

	switch p.curToken.Type {
	case TokenIdentifier:
		name := p.curToken.Literal
		p.nextToken()
		return &NamedType{SpanVal: p.span(start), Name: name}

	case TokenLParen:
		p.nextToken()
		if !p.expect(TokenRParen) {
			return nil
		}
		return &UnitType{SpanVal: p.span(start)}

	case TokenFn:
		p.nextToken()
		if !p.expect(TokenLParen) {
			return nil
		}
		ft := &FuncTypeExpr{}
		for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
			ft.Params = append(ft.Params, p.parseType())
			if !p.curTokenIs(TokenComma) {
				break
			}
			p.nextToken()
		}
		if !p.expect(TokenRParen) {
			return nil
		}
		if p.curTokenIs(TokenArrow) {
			p.nextToken()
			ft.Result = p.parseType()
		}
		ft.SpanVal = p.span(start)
		return ft
	}

	p.errorf("expected type, got %s", p.curToken.describe())
	return nil
}

// parseBlock parses { stmts [tail] }.
func (p *Parser) parseBlock() *Block {
	start := p.curToken.Pos
	if !p.expect(TokenLBrace) {
		return nil
	}
	block := &Block{}
	block.Stmts, block.Tail = p.parseStatements(TokenRBrace)
	if !p.expect(TokenRBrace) {
		return nil
	}
	block.SpanVal = p.span(start)
	return block
}

// ---------------------------------------------------------------------------
// Expressions, lowest precedence first
// ---------------------------------------------------------------------------

// parseBinary parses a left-associative chain of operators of one level.
func (p *Parser) parseBinary(ops []TokenType, next func(*Parser) Expr) Expr {
	start := p.curToken.Pos
	left := next(p)
	if left == nil {
		return nil
	}
	for p.curTokenIn(ops) {
		op := p.curToken.Type
		p.nextToken()
		right := next(p)
		if right == nil {
			return nil
		}
		left = &BinaryExpr{SpanVal: p.span(start), Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) curTokenIn(ops []TokenType) bool {
	for _, op := range ops {
		if p.curTokenIs(op) {
			return true
		}
	}
	return false
}

var (
	orOps         = []TokenType{TokenOrOr}
	andOps        = []TokenType{TokenAndAnd}
	equalityOps   = []TokenType{TokenEqEq}
	comparisonOps = []TokenType{TokenLt, TokenGt}
	additiveOps   = []TokenType{TokenPlus, TokenMinus}
	termOps       = []TokenType{TokenStar, TokenSlash}
)

func (p *Parser) parseOr() Expr         { return p.parseBinary(orOps, (*Parser).parseAnd) }
func (p *Parser) parseAnd() Expr        { return p.parseBinary(andOps, (*Parser).parseEquality) }
func (p *Parser) parseEquality() Expr   { return p.parseBinary(equalityOps, (*Parser).parseComparison) }
func (p *Parser) parseComparison() Expr { return p.parseBinary(comparisonOps, (*Parser).parseAdditive) }
func (p *Parser) parseAdditive() Expr   { return p.parseBinary(additiveOps, (*Parser).parseTerm) }
func (p *Parser) parseTerm() Expr       { return p.parseBinary(termOps, (*Parser).parseUnary) }

// parseUnary parses prefix operators and the prefix concurrency forms.
func (p *Parser) parseUnary() Expr {
	start := p.curToken.Pos

	switch p.curToken.Type {
	case TokenMinus, TokenBang:
		op := p.curToken.Type
		p.nextToken()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return &UnaryExpr{SpanVal: p.span(start), Op: op, Operand: operand}

	case TokenJoin:
		p.nextToken()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return &JoinExpr{SpanVal: p.span(start), Thread: operand}

	case TokenWait:
		p.nextToken()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return &WaitExpr{SpanVal: p.span(start), Sem: operand}

	case TokenPost:
		p.nextToken()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return &PostExpr{SpanVal: p.span(start), Sem: operand}

	case TokenSpawn:
		p.nextToken()
		operand := p.parseCall()
		if operand == nil {
			return nil
		}
		call, ok := operand.(*CallExpr)
		if !ok {
			p.errorAt(operand.Span().Start, "spawn requires a function call")
			return nil
		}
		return &SpawnExpr{SpanVal: p.span(start), Call: call}
	}

	return p.parseCall()
}

// parseCall parses a primary followed by any number of argument lists.
func (p *Parser) parseCall() Expr {
	start := p.curToken.Pos
	x := p.parsePrimary()
	if x == nil {
		return nil
	}

	for p.curTokenIs(TokenLParen) {
		p.nextToken()
		var args []Expr
		for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
			arg := p.ParseExpression()
			if arg == nil {
				return nil
			}
			args = append(args, arg)
			if !p.curTokenIs(TokenComma) {
				break
			}
			p.nextToken()
		}
		if !p.expect(TokenRParen) {
			return nil
		}
		x = &CallExpr{SpanVal: p.span(start), Callee: x, Args: args}
	}
	return x
}

// parsePrimary parses literals, names, groups and the brace forms.
func (p *Parser) parsePrimary() Expr {
	start := p.curToken.Pos

	switch p.curToken.Type {
	case TokenInteger:
		return p.parseInteger()

	case TokenFloat:
		return p.parseFloat()

	case TokenString:
		value := p.curToken.Literal
		p.nextToken()
		return &StringLiteral{SpanVal: p.span(start), Value: value}

	case TokenTrue, TokenFalse:
		value := p.curTokenIs(TokenTrue)
		p.nextToken()
		return &BoolLiteral{SpanVal: p.span(start), Value: value}

	case TokenIdentifier:
		name := p.curToken.Literal
		p.nextToken()
		if name == "sem_create" && p.curTokenIs(TokenLParen) {
			p.nextToken()
			if !p.expect(TokenRParen) {
				return nil
			}
			return &SemCreateExpr{SpanVal: p.span(start)}
		}
		return &Ident{SpanVal: p.span(start), Name: name}

	case TokenYield:
		p.nextToken()
		return &YieldExpr{SpanVal: p.span(start)}

	case TokenLParen:
		p.nextToken()
		x := p.ParseExpression()
		if x == nil || !p.expect(TokenRParen) {
			return nil
		}
		return x

	case TokenLBrace:
		return p.parseBlock()

	case TokenIf:
		return p.parseIf()

	case TokenLoop:
		return p.parseLoop()

	case TokenFn:
		p.nextToken()
		fn := &FnExpr{}
		fn.Params, fn.Result = p.parseSignature()
		fn.Body = p.parseBlock()
		if fn.Body == nil {
			return nil
		}
		fn.SpanVal = p.span(start)
		return fn
	}

	p.errorf("unexpected %s", p.curToken.describe())
	return nil
}

func (p *Parser) parseInteger() Expr {
	start := p.curToken.Pos
	lit := p.curToken.Literal
	value, err := strconv.ParseInt(lit, 10, 64)
	if err != nil {
		p.errorf("integer literal %s out of range", lit)
		return nil
	}
	p.nextToken()
	return &IntLiteral{SpanVal: p.span(start), Value: value}
}

func (p *Parser) parseFloat() Expr {
	start := p.curToken.Pos
	lit := p.curToken.Literal
	value, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		p.errorf("invalid float literal %s", lit)
		return nil
	}
	p.nextToken()
	return &FloatLiteral{SpanVal: p.span(start), Value: value}
}

// parseIf parses if cond { } [else { } | else if ...].
func (p *Parser) parseIf() Expr {
	start := p.curToken.Pos
	p.nextToken() // consume if

	cond := p.ParseExpression()
	if cond == nil {
		return nil
	}
	then := p.parseBlock()
	if then == nil {
		return nil
	}
	n := &IfExpr{Cond: cond, Then: then}

	if p.curTokenIs(TokenElse) {
		p.nextToken()
		if p.curTokenIs(TokenIf) {
			n.Else = p.parseIf()
		} else {
			n.Else = p.parseBlock()
		}
		if n.Else == nil {
			return nil
		}
	}
	n.SpanVal = p.span(start)
	return n
}

// parseLoop parses loop [cond] { body }.
func (p *Parser) parseLoop() Expr {
	start := p.curToken.Pos
	p.nextToken() // consume loop

	n := &LoopExpr{}
	if !p.curTokenIs(TokenLBrace) {
		n.Cond = p.ParseExpression()
		if n.Cond == nil {
			return nil
		}
	}
	n.Body = p.parseBlock()
	if n.Body == nil {
		return nil
	}
	n.SpanVal = p.span(start)
	return n
}

// Parse parses a source file, returning the first syntax error.
func Parse(input string) (*Program, error) {
	p := NewParser(input)
	prog := p.ParseProgram()
	if err := p.Err(); err != nil {
		return nil, err
	}
	return prog, nil
}
