// Package parser implements the syntactic analyzer for the MathVM
// source language.
//
// It is a recursive-descent parser for statements combined with a
// Pratt (precedence-climbing) parser for expressions.
package parser

import (
	"fmt"
	"strconv"

	"github.com/mathvm/mathvm/ast"
	"github.com/mathvm/mathvm/lexer"
	"github.com/mathvm/mathvm/token"
)

const (
	_ int = iota
	Lowest
	LogicalOr  // ||
	LogicalAnd // &&
	BitOr      // |
	BitXor     // ^
	BitAnd     // &
	Equals     // == !=
	Relational // < <= > >=
	Sum        // + -
	Product    // * / %
	Prefix     // !x -x
	Call       // f(x)
)

var precedences = map[token.Type]int{
	token.OR:       LogicalOr,
	token.AND:      LogicalAnd,
	token.BIT_OR:   BitOr,
	token.BIT_XOR:  BitXor,
	token.BIT_AND:  BitAnd,
	token.EQ:       Equals,
	token.NOT_EQ:   Equals,
	token.LT:       Relational,
	token.LTE:      Relational,
	token.GT:       Relational,
	token.GTE:      Relational,
	token.PLUS:     Sum,
	token.MINUS:    Sum,
	token.SLASH:    Product,
	token.ASTERISK: Product,
	token.PERCENT:  Product,
	token.LPAREN:   Call,
}

var typeTokens = map[token.Type]ast.TypeName{
	token.INT_TYPE:    ast.IntType,
	token.DOUBLE_TYPE: ast.DoubleType,
	token.STRING_TYPE: ast.StringType,
	token.VOID_TYPE:   ast.VoidType,
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// Parser turns a token stream into an AST, accumulating any syntax
// errors it encounters rather than stopping at the first one.
type Parser struct {
	l      *lexer.Lexer
	errors []string

	currentToken token.Token
	peekToken    token.Token

	prefixParseFns map[token.Type]prefixParseFn
	infixParseFns  map[token.Type]infixParseFn
}

// New creates a Parser reading from l.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l, errors: []string{}}

	p.prefixParseFns = make(map[token.Type]prefixParseFn)
	p.registerPrefix(token.IDENT, p.parseIdentifier)
	p.registerPrefix(token.INT, p.parseIntLiteral)
	p.registerPrefix(token.DOUBLE, p.parseDoubleLiteral)
	p.registerPrefix(token.STRING, p.parseStringLiteral)
	p.registerPrefix(token.TRUE, p.parseBoolLiteral)
	p.registerPrefix(token.FALSE, p.parseBoolLiteral)
	p.registerPrefix(token.BANG, p.parseUnaryExpr)
	p.registerPrefix(token.MINUS, p.parseUnaryExpr)
	p.registerPrefix(token.LPAREN, p.parseGroupedExpression)

	p.infixParseFns = make(map[token.Type]infixParseFn)
	for _, t := range []token.Type{
		token.PLUS, token.MINUS, token.SLASH, token.ASTERISK, token.PERCENT,
		token.EQ, token.NOT_EQ, token.LT, token.LTE, token.GT, token.GTE,
		token.AND, token.OR, token.BIT_AND, token.BIT_OR, token.BIT_XOR,
	} {
		p.registerInfix(t, p.parseBinaryExpr)
	}

	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) registerPrefix(t token.Type, fn prefixParseFn) { p.prefixParseFns[t] = fn }
func (p *Parser) registerInfix(t token.Type, fn infixParseFn)   { p.infixParseFns[t] = fn }

// Errors returns every syntax error collected while parsing.
func (p *Parser) Errors() []string { return p.errors }

func (p *Parser) nextToken() {
	p.currentToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) currentTokenIs(t token.Type) bool { return p.currentToken.Type == t }
func (p *Parser) peekTokenIs(t token.Type) bool    { return p.peekToken.Type == t }

func (p *Parser) expectPeek(t token.Type) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) peekError(t token.Type) {
	p.errors = append(p.errors, fmt.Sprintf("line %d: expected next token to be %s, got %s instead",
		p.peekToken.Line, t, p.peekToken.Type))
}

func (p *Parser) errorf(tok token.Token, format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf("line %d: %s", tok.Line, fmt.Sprintf(format, args...)))
}

func (p *Parser) peekPrecedence() int {
	if pr, ok := precedences[p.peekToken.Type]; ok {
		return pr
	}
	return Lowest
}

func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.currentToken.Type]; ok {
		return pr
	}
	return Lowest
}

// ParseProgram parses a complete source file. Check Errors afterward.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{}
	for !p.currentTokenIs(token.EOF) {
		if stmt := p.parseStatement(); stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		p.nextToken()
	}
	return program
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.currentToken.Type {
	case token.INT_TYPE, token.DOUBLE_TYPE, token.STRING_TYPE:
		return p.parseVarDecl()
	case token.FUNCTION:
		return p.parseFunctionDecl()
	case token.IF:
		return p.parseIfStmt()
	case token.WHILE:
		return p.parseWhileStmt()
	case token.FOR:
		return p.parseForStmt()
	case token.RETURN:
		return p.parseReturnStmt()
	case token.PRINT:
		return p.parsePrintStmt()
	case token.LBRACE:
		return p.parseBlockStatement()
	case token.IDENT:
		if p.peekTokenIs(token.ASSIGN) || p.peekTokenIs(token.PLUS_EQ) || p.peekTokenIs(token.MINUS_EQ) {
			return p.parseAssignment()
		}
		return p.parseExprStmt()
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) parseVarDecl() *ast.VarDecl {
	decl := &ast.VarDecl{Token: p.currentToken, Type: typeTokens[p.currentToken.Type]}
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	decl.Name = &ast.Identifier{Token: p.currentToken, Value: p.currentToken.Literal}

	if p.peekTokenIs(token.ASSIGN) {
		p.nextToken()
		p.nextToken()
		decl.Value = p.parseExpression(Lowest)
	}
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	return decl
}

func (p *Parser) parseFunctionDecl() *ast.FunctionDecl {
	fd := &ast.FunctionDecl{Token: p.currentToken}
	if !isTypeToken(p.peekToken.Type) {
		p.errorf(p.peekToken, "expected a return type, got %s", p.peekToken.Type)
		return nil
	}
	p.nextToken()
	fd.ReturnType = typeTokens[p.currentToken.Type]

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	fd.Name = p.currentToken.Literal

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	fd.Params = p.parseParams()

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	fd.Body = p.parseBlockStatement()
	return fd
}

func (p *Parser) parseParams() []ast.Param {
	var params []ast.Param
	if p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		return params
	}
	p.nextToken()
	params = append(params, p.parseOneParam())
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		params = append(params, p.parseOneParam())
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return params
}

func (p *Parser) parseOneParam() ast.Param {
	if !isTypeToken(p.currentToken.Type) {
		p.errorf(p.currentToken, "expected a parameter type, got %s", p.currentToken.Type)
		return ast.Param{}
	}
	typ := typeTokens[p.currentToken.Type]
	if !p.expectPeek(token.IDENT) {
		return ast.Param{}
	}
	return ast.Param{Type: typ, Name: p.currentToken.Literal}
}

func isTypeToken(t token.Type) bool {
	_, ok := typeTokens[t]
	return ok
}

func (p *Parser) parseAssignment() *ast.Assignment {
	name := &ast.Identifier{Token: p.currentToken, Value: p.currentToken.Literal}
	p.nextToken()

	var op ast.AssignOp
	switch p.currentToken.Type {
	case token.ASSIGN:
		op = ast.Assign
	case token.PLUS_EQ:
		op = ast.AssignAdd
	case token.MINUS_EQ:
		op = ast.AssignSub
	}
	tok := p.currentToken
	p.nextToken()
	value := p.parseExpression(Lowest)
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	return &ast.Assignment{Token: tok, Name: name, Op: op, Value: value}
}

func (p *Parser) parseIfStmt() *ast.IfStmt {
	stmt := &ast.IfStmt{Token: p.currentToken}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Condition = p.parseExpression(Lowest)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Consequence = p.parseBlockStatement()

	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		if !p.expectPeek(token.LBRACE) {
			return nil
		}
		stmt.Alternative = p.parseBlockStatement()
	}
	return stmt
}

func (p *Parser) parseWhileStmt() *ast.WhileStmt {
	stmt := &ast.WhileStmt{Token: p.currentToken}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Condition = p.parseExpression(Lowest)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlockStatement()
	return stmt
}

func (p *Parser) parseForStmt() *ast.ForStmt {
	stmt := &ast.ForStmt{Token: p.currentToken}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Var = &ast.Identifier{Token: p.currentToken, Value: p.currentToken.Literal}
	if !p.expectPeek(token.IN) {
		return nil
	}
	p.nextToken()
	stmt.Low = p.parseExpression(Lowest)
	if !p.expectPeek(token.RANGE) {
		return nil
	}
	p.nextToken()
	stmt.High = p.parseExpression(Lowest)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlockStatement()
	return stmt
}

func (p *Parser) parseReturnStmt() *ast.ReturnStmt {
	stmt := &ast.ReturnStmt{Token: p.currentToken}
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
		return stmt
	}
	p.nextToken()
	stmt.Value = p.parseExpression(Lowest)
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parsePrintStmt() *ast.PrintStmt {
	stmt := &ast.PrintStmt{Token: p.currentToken}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	if !p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		stmt.Arguments = append(stmt.Arguments, p.parseExpression(Lowest))
		for p.peekTokenIs(token.COMMA) {
			p.nextToken()
			p.nextToken()
			stmt.Arguments = append(stmt.Arguments, p.parseExpression(Lowest))
		}
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	block := &ast.BlockStatement{Token: p.currentToken}
	p.nextToken()
	for !p.currentTokenIs(token.RBRACE) && !p.currentTokenIs(token.EOF) {
		if stmt := p.parseStatement(); stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}
	return block
}

func (p *Parser) parseExprStmt() *ast.ExprStmt {
	stmt := &ast.ExprStmt{Token: p.currentToken}
	stmt.Expression = p.parseExpression(Lowest)
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.currentToken.Type]
	if prefix == nil {
		p.errorf(p.currentToken, "no prefix parse function for %s found", p.currentToken.Type)
		return nil
	}
	left := prefix()
	for !p.peekTokenIs(token.SEMICOLON) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return left
		}
		p.nextToken()
		left = infix(left)
	}
	return left
}

func (p *Parser) parseIdentifier() ast.Expression {
	if p.peekTokenIs(token.LPAREN) {
		return p.parseCallExpr()
	}
	return &ast.Identifier{Token: p.currentToken, Value: p.currentToken.Literal}
}

func (p *Parser) parseCallExpr() ast.Expression {
	ce := &ast.CallExpr{Token: p.currentToken, Function: p.currentToken.Literal}
	p.nextToken() // consume ident, current is now '('
	ce.Arguments = p.parseExpressionList(token.RPAREN)
	return ce
}

func (p *Parser) parseExpressionList(end token.Type) []ast.Expression {
	var list []ast.Expression
	if p.peekTokenIs(end) {
		p.nextToken()
		return list
	}
	p.nextToken()
	list = append(list, p.parseExpression(Lowest))
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		list = append(list, p.parseExpression(Lowest))
	}
	if !p.expectPeek(end) {
		return nil
	}
	return list
}

func (p *Parser) parseIntLiteral() ast.Expression {
	lit := &ast.IntLiteral{Token: p.currentToken}
	v, err := strconv.ParseInt(p.currentToken.Literal, 10, 64)
	if err != nil {
		p.errorf(p.currentToken, "could not parse %q as an integer", p.currentToken.Literal)
		return nil
	}
	lit.Value = v
	return lit
}

func (p *Parser) parseDoubleLiteral() ast.Expression {
	lit := &ast.DoubleLiteral{Token: p.currentToken}
	v, err := strconv.ParseFloat(p.currentToken.Literal, 64)
	if err != nil {
		p.errorf(p.currentToken, "could not parse %q as a double", p.currentToken.Literal)
		return nil
	}
	lit.Value = v
	return lit
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Token: p.currentToken, Value: p.currentToken.Literal}
}

func (p *Parser) parseBoolLiteral() ast.Expression {
	return &ast.BoolLiteral{Token: p.currentToken, Value: p.currentTokenIs(token.TRUE)}
}

func (p *Parser) parseUnaryExpr() ast.Expression {
	expr := &ast.UnaryExpr{Token: p.currentToken, Operator: p.currentToken.Literal}
	p.nextToken()
	expr.Right = p.parseExpression(Prefix)
	return expr
}

func (p *Parser) parseBinaryExpr(left ast.Expression) ast.Expression {
	expr := &ast.BinaryExpr{Token: p.currentToken, Operator: p.currentToken.Literal, Left: left}
	precedence := p.curPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(precedence)
	return expr
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken()
	exp := p.parseExpression(Lowest)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return exp
}
