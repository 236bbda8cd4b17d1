package parser

import (
	"strconv"

	"github.com/xplshn/sstc/pkg/ast"
	"github.com/xplshn/sstc/pkg/config"
	"github.com/xplshn/sstc/pkg/token"
	"github.com/xplshn/sstc/pkg/util"
)

// Parser holds the state for the parsing process
type Parser struct {
	tokens   []token.Token
	pos      int
	current  token.Token
	previous token.Token
	cfg      *config.Config
	consts   map[string]bool
}

// bailout carries the first syntax error up to Parse.
type bailout struct{ err error }

// NewParser creates and initializes a new Parser from a token stream. The
// stream is expected to end with an EOF token.
func NewParser(tokens []token.Token, cfg *config.Config) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != token.EOF {
		tokens = append(tokens, token.Token{Type: token.EOF})
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Parser{tokens: tokens, current: tokens[0], cfg: cfg, consts: make(map[string]bool)}
}

// Parse reads one class declaration. Parsing stops at the first error, which
// is returned as a *util.SourceError.
func (p *Parser) Parse() (root *ast.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			root, err = nil, b.err
		}
	}()
	p.checkIllegal()
	return p.parseClass(), nil
}

// Parser helpers
func (p *Parser) errorAt(tok token.Token, format string, args ...interface{}) {
	panic(bailout{util.Errorf(tok, format, args...)})
}

func (p *Parser) checkIllegal() {
	if p.current.Type == token.Illegal {
		p.errorAt(p.current, "%s", p.current.Value)
	}
}

func (p *Parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.previous = p.current
		p.pos++
		p.current = p.tokens[p.pos]
		p.checkIllegal()
	}
}

func (p *Parser) check(tokType token.Type) bool {
	return p.current.Type == tokType
}

func (p *Parser) match(tokType token.Type) bool {
	if !p.check(tokType) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expect(tokType token.Type, message string) token.Token {
	if !p.check(tokType) {
		p.errorAt(p.current, "%s", message)
	}
	tok := p.current
	p.advance()
	return tok
}

func (p *Parser) expectIdent(what string) token.Token {
	return p.expect(token.Ident, "Expected "+what+" name.")
}

// Declarations

func (p *Parser) parseClass() *ast.Node {
	tok := p.expect(token.Class, "Expected 'class' at start of file.")
	name := p.expectIdent("class")
	p.expect(token.LBrace, "Expected '{' after class name.")

	var consts, procs []*ast.Node
	for p.check(token.Final) {
		c := p.parseConstDecl()
		name := c.Data.(ast.ConstDeclNode).Name
		if p.consts[name] {
			p.errorAt(c.Tok, "Constant '%s' is already declared.", name)
		}
		p.consts[name] = true
		consts = append(consts, c)
	}

	seen := make(map[string]bool)
	for p.check(token.Public) {
		proc := p.parseProcDecl()
		d := proc.Data.(ast.ProcDeclNode)
		if seen[d.Name] {
			p.errorAt(proc.Tok, "Procedure '%s' is already declared.", d.Name)
		}
		seen[d.Name] = true
		procs = append(procs, proc)
	}
	if p.check(token.Int) || p.check(token.Void) {
		p.errorAt(p.current, "Procedure declarations must start with 'public'.")
	}
	if p.check(token.Final) {
		p.errorAt(p.current, "Constants must be declared before procedures.")
	}

	p.expect(token.RBrace, "Expected '}' at end of class body.")
	p.expect(token.EOF, "Unexpected input after class body.")
	return ast.NewClass(tok, name.Value, consts, procs)
}

func (p *Parser) parseConstDecl() *ast.Node {
	p.expect(token.Final, "Expected 'final'.")
	p.expect(token.Int, "Expected 'int' after 'final'.")
	name := p.expectIdent("constant")
	p.expect(token.Assign, "Expected '=' in constant declaration.")
	value := p.parseExpr()
	p.expect(token.Semi, "Expected ';' after constant declaration.")
	return ast.NewConstDecl(name, name.Value, value)
}

func (p *Parser) parseProcDecl() *ast.Node {
	p.expect(token.Public, "Expected 'public'.")
	hasResult := false
	switch {
	case p.match(token.Int):
		hasResult = true
	case p.match(token.Void):
	default:
		p.errorAt(p.current, "Expected 'int' or 'void' as result type.")
	}
	name := p.expectIdent("procedure")

	declared := make(map[string]bool)
	declare := func(tok token.Token) {
		if declared[tok.Value] {
			p.errorAt(tok, "'%s' is already declared in procedure '%s'.", tok.Value, name.Value)
		}
		declared[tok.Value] = true
		if p.consts[tok.Value] {
			util.Warn(p.cfg, config.WarnShadow, tok, "'%s' hides the class constant of the same name", tok.Value)
		}
	}

	p.expect(token.LParen, "Expected '(' after procedure name.")
	var params []*ast.Node
	if !p.check(token.RParen) {
		for {
			p.expect(token.Int, "Expected 'int' before parameter name.")
			tok := p.expectIdent("parameter")
			declare(tok)
			params = append(params, ast.NewVarDecl(tok, tok.Value, nil))
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.expect(token.RParen, "Expected ')' after parameters.")

	open := p.expect(token.LBrace, "Expected '{' before procedure body.")
	var locals []*ast.Node
	for p.match(token.Int) {
		tok := p.expectIdent("variable")
		declare(tok)
		var init *ast.Node
		if p.check(token.Assign) {
			if !p.cfg.IsFeatureEnabled(config.FeatLocalInit) {
				p.errorAt(p.current, "Local initializers are not enabled (use -Flocal-init or -std=SSTx).")
			}
			p.advance()
			init = p.parseExpr()
		}
		p.expect(token.Semi, "Expected ';' after variable declaration.")
		locals = append(locals, ast.NewVarDecl(tok, tok.Value, init))
	}

	body := p.parseStmtsUntilBrace(open)
	proc := ast.NewProcDecl(name, name.Value, params, locals, body, hasResult)
	p.checkUnused(locals, body)
	return proc
}

// checkUnused warns about locals that are never read.
func (p *Parser) checkUnused(locals []*ast.Node, body *ast.Node) {
	if !p.cfg.IsWarningEnabled(config.WarnUnused) {
		return
	}
	read := make(map[string]bool)
	visit := func(n *ast.Node) bool {
		if n.Type == ast.Ident {
			read[n.Data.(ast.IdentNode).Name] = true
		}
		return true
	}
	ast.Walk(body, visit)
	for _, l := range locals {
		ast.Walk(l.Data.(ast.VarDeclNode).Init, visit)
	}
	for _, l := range locals {
		if name := l.Data.(ast.VarDeclNode).Name; !read[name] {
			util.Warn(p.cfg, config.WarnUnused, l.Tok, "local variable '%s' is never read", name)
		}
	}
}

// Statements

func (p *Parser) parseStmtsUntilBrace(open token.Token) *ast.Node {
	var stmts []*ast.Node
	for !p.check(token.RBrace) && !p.check(token.EOF) {
		if p.check(token.Int) {
			p.errorAt(p.current, "Declarations must precede statements.")
		}
		stmts = append(stmts, p.parseStmt())
	}
	p.expect(token.RBrace, "Expected '}' to close block.")
	return ast.NewBlock(open, stmts)
}

func (p *Parser) parseBlock(context string) *ast.Node {
	open := p.expect(token.LBrace, "Expected '{' after "+context+".")
	block := p.parseStmtsUntilBrace(open)
	if len(block.Data.(ast.BlockNode).Stmts) == 0 {
		util.Warn(p.cfg, config.WarnEmptyBody, open, "empty %s body", context)
	}
	return block
}

func (p *Parser) parseStmt() *ast.Node {
	tok := p.current
	switch {
	case p.match(token.Ident):
		switch {
		case p.match(token.Assign):
			rhs := p.parseExpr()
			p.expect(token.Semi, "Expected ';' after assignment.")
			return ast.NewAssign(tok, tok.Value, rhs)
		case p.check(token.LParen):
			call := p.parseCall(tok)
			p.expect(token.Semi, "Expected ';' after procedure call.")
			return call
		}
		p.errorAt(p.current, "Expected '=' or '(' after '%s'.", tok.Value)

	case p.match(token.If):
		cond := p.parseCondition("if")
		thenBody := p.parseBlock("if")
		var elseBody *ast.Node
		if p.match(token.Else) {
			elseBody = p.parseBlock("else")
		} else if !p.cfg.IsFeatureEnabled(config.FeatOptionalElse) {
			p.errorAt(p.current, "Expected 'else' after 'if' body (use -Foptional-else or -std=SSTx).")
		} else {
			util.Warn(p.cfg, config.WarnPedantic, tok, "'if' without 'else' is an SSTx extension")
		}
		return ast.NewIf(tok, cond, thenBody, elseBody)

	case p.match(token.While):
		cond := p.parseCondition("while")
		body := p.parseBlock("while")
		return ast.NewWhile(tok, cond, body)

	case p.match(token.Return):
		var expr *ast.Node
		if !p.check(token.Semi) {
			expr = p.parseExpr()
		}
		p.expect(token.Semi, "Expected ';' after return.")
		return ast.NewReturn(tok, expr)
	}
	p.errorAt(tok, "Expected a statement, got %s.", tok.Type)
	return nil
}

func (p *Parser) parseCondition(keyword string) *ast.Node {
	p.expect(token.LParen, "Expected '(' after '"+keyword+"'.")
	cond := p.parseExpr()
	p.expect(token.RParen, "Expected ')' after condition.")
	return cond
}

// Expression Parsing

func (p *Parser) parseCall(name token.Token) *ast.Node {
	p.expect(token.LParen, "Expected '(' after procedure name.")
	var args []*ast.Node
	if !p.check(token.RParen) {
		for {
			args = append(args, p.parseExpr())
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.expect(token.RParen, "Expected ')' after arguments.")
	return ast.NewCall(name, name.Value, args)
}

func isRelational(t token.Type) bool {
	switch t {
	case token.EqEq, token.Lt, token.Lte, token.Gt, token.Gte:
		return true
	}
	return false
}

// parseExpr handles a single, non-associative comparison.
func (p *Parser) parseExpr() *ast.Node {
	left := p.parseSimpleExpr()
	if isRelational(p.current.Type) {
		op := p.current
		p.advance()
		right := p.parseSimpleExpr()
		left = ast.NewBinaryOp(op, op.Type, left, right)
		if isRelational(p.current.Type) {
			p.errorAt(p.current, "Comparisons cannot be chained.")
		}
	}
	return left
}

func (p *Parser) parseSimpleExpr() *ast.Node {
	left := p.parseTerm()
	for p.check(token.Plus) || p.check(token.Minus) {
		op := p.current
		p.advance()
		left = ast.NewBinaryOp(op, op.Type, left, p.parseTerm())
	}
	return left
}

func (p *Parser) parseTerm() *ast.Node {
	left := p.parseFactor()
	for p.check(token.Star) || p.check(token.Slash) {
		op := p.current
		p.advance()
		left = ast.NewBinaryOp(op, op.Type, left, p.parseFactor())
	}
	return left
}

func (p *Parser) parseFactor() *ast.Node {
	tok := p.current
	switch {
	case p.match(token.Number):
		val, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			p.errorAt(tok, "Integer constant %s is out of range.", tok.Value)
		}
		return ast.NewNumber(tok, val)
	case p.match(token.Ident):
		if p.check(token.LParen) {
			return p.parseCall(tok)
		}
		return ast.NewIdent(tok, tok.Value)
	case p.match(token.LParen):
		expr := p.parseExpr()
		p.expect(token.RParen, "Expected ')' after expression.")
		return expr
	}
	p.errorAt(tok, "Expected an expression, got %s.", tok.Type)
	return nil
}
