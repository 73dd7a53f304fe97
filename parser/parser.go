// Package parser implements the recursive-descent, precedence-climbing
// parser that turns a token stream into an ast.Program. It buffers the
// full token vector up front and recursively descends it into a closed
// ast.Program, with no separate streaming or lookahead-buffer stage.
package parser

import (
	"strings"

	"github.com/skx/muc/ast"
	"github.com/skx/muc/diagnostics"
	"github.com/skx/muc/lexer"
	"github.com/skx/muc/token"
)

// Parser holds parse-time state: the buffered tokens, our position in
// them, and the constraint-checking state required during parsing
// (duplicate function names, return-outside-function, break/continue
// outside a loop).
type Parser struct {
	toks []token.Token
	pos  int
	lex  *lexer.Lexer

	funcNames  map[string]bool
	loopDepth  int
	inFunction bool
}

// Parse preprocesses nothing itself: it expects already-preprocessed
// source text, tokenizes it completely, and parses the result into an
// ast.Program, or returns the first diagnostics.Diagnostic encountered.
func Parse(file, source string) (*ast.Program, error) {
	return ParseWithOrigin(file, source, nil)
}

// ParseWithOrigin is Parse, but remaps every reported position through
// origin first. Callers that joined multiple files into one buffer
// (preprocess.Preprocessor) use this so diagnostics and AST node
// positions name the original file/line rather than the joined one.
func ParseWithOrigin(file, source string, origin lexer.OriginFunc) (*ast.Program, error) {
	l := lexer.NewWithOrigin(file, source, origin)

	var toks []token.Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			break
		}
	}

	p := &Parser{toks: toks, lex: l, funcNames: make(map[string]bool)}
	return p.parseProgram()
}

// ================= token cursor helpers =================

func (p *Parser) cur() token.Token {
	return p.toks[p.pos]
}

func (p *Parser) peek(n int) token.Token {
	idx := p.pos + n
	if idx >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[idx]
}

func (p *Parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) at(t token.Type) bool {
	return p.cur().Type == t
}

func (p *Parser) expect(t token.Type) (token.Token, error) {
	if !p.at(t) {
		return token.Token{}, p.errorf("expected %q, found %q (%q)", t, p.cur().Type, p.cur().Literal)
	}
	return p.advance(), nil
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	tok := p.cur()
	return diagnostics.New(diagnostics.Parse, tok.Pos.File, tok.Pos.Line, tok.Pos.Column, format, args...)
}

// ================= program / top-level =================

func (p *Parser) parseProgram() (*ast.Program, error) {
	prog := &ast.Program{}
	for !p.at(token.EOF) {
		decl, err := p.parseTopLevel()
		if err != nil {
			return nil, err
		}
		prog.Decls = append(prog.Decls, decl)
	}
	return prog, nil
}

func (p *Parser) parseTopLevel() (ast.Decl, error) {
	if p.at(token.INTERRUPT) || p.at(token.FUNCTION) {
		return p.parseFuncDecl()
	}
	return p.parseGlobalDecl()
}

func (p *Parser) parseFuncDecl() (ast.Decl, error) {
	start := p.cur().Pos
	isInterrupt := false
	if p.at(token.INTERRUPT) {
		isInterrupt = true
		p.advance()
	}
	if _, err := p.expect(token.FUNCTION); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if p.funcNames[nameTok.Literal] {
		return nil, diagnostics.New(diagnostics.Parse, nameTok.Pos.File, nameTok.Pos.Line, nameTok.Pos.Column,
			"function %q is already defined", nameTok.Literal)
	}
	p.funcNames[nameTok.Literal] = true

	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	var params []string
	if !p.at(token.RPAREN) {
		for {
			pn, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			params = append(params, pn.Literal)
			if p.at(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}

	p.inFunction = true
	body, err := p.parseBlock()
	p.inFunction = false
	if err != nil {
		return nil, err
	}

	return &ast.FuncDecl{Position: start, Name: nameTok.Literal, Params: params, Body: body, IsInterrupt: isInterrupt}, nil
}

func (p *Parser) parseGlobalDecl() (ast.Decl, error) {
	start := p.cur().Pos
	volatile := false
	if p.at(token.VOLATILE) {
		volatile = true
		p.advance()
	}
	vt, err := p.parseVarType()
	if err != nil {
		return nil, err
	}

	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}

	if p.at(token.LBRACK) {
		p.advance()
		lenTok, err := p.expect(token.NUMBER)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RBRACK); err != nil {
			return nil, err
		}
		var init []ast.Expr
		if p.at(token.ASSIGN) {
			p.advance()
			init, err = p.parseInitList()
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(token.SEMI); err != nil {
			return nil, err
		}
		return &ast.GlobalArrayDecl{Position: start, Name: nameTok.Literal, Length: int(lenTok.IntVal), Init: init}, nil
	}

	var init ast.Expr
	if p.at(token.ASSIGN) {
		p.advance()
		init, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	return &ast.GlobalVarDecl{Position: start, Name: nameTok.Literal, VarType: vt, Init: init, Volatile: volatile}, nil
}

func (p *Parser) parseVarType() (ast.VarType, error) {
	switch p.cur().Type {
	case token.UINT32:
		p.advance()
		return ast.U32, nil
	case token.INT32:
		p.advance()
		return ast.I32, nil
	default:
		return 0, p.errorf("expected a type (uint32 or int32), found %q", p.cur().Type)
	}
}

func (p *Parser) parseInitList() ([]ast.Expr, error) {
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	var list []ast.Expr
	if !p.at(token.RBRACE) {
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			list = append(list, e)
			if p.at(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return list, nil
}

// ================= statements =================

func isTypeQualifierOrType(t token.Type) bool {
	switch t {
	case token.VOLATILE, token.REGISTER, token.UINT32, token.INT32:
		return true
	default:
		return false
	}
}

func (p *Parser) parseBlock() (*ast.BlockStmt, error) {
	start, err := p.expect(token.LBRACE)
	if err != nil {
		return nil, err
	}
	block := &ast.BlockStmt{Position: start.Pos}
	for !p.at(token.RBRACE) {
		if p.at(token.EOF) {
			return nil, p.errorf("unexpected end of input, expected '}'")
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		block.Stmts = append(block.Stmts, stmt)
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return block, nil
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	switch p.cur().Type {
	case token.LBRACE:
		return p.parseBlock()
	case token.IF:
		return p.parseIf()
	case token.WHILE:
		return p.parseWhile()
	case token.DO:
		return p.parseDoWhile()
	case token.FOR:
		return p.parseFor()
	case token.RETURN:
		return p.parseReturn()
	case token.BREAK:
		return p.parseBreak()
	case token.CONTINUE:
		return p.parseContinue()
	case token.ASM:
		return p.parseAsm()
	default:
		if isTypeQualifierOrType(p.cur().Type) {
			return p.parseLocalDecl()
		}
		stmt, err := p.parseSimpleStmt()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.SEMI); err != nil {
			return nil, err
		}
		return stmt, nil
	}
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	start := p.advance().Pos // 'if'
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	then, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	var els ast.Stmt
	if p.at(token.ELSE) {
		p.advance()
		els, err = p.parseStmt()
		if err != nil {
			return nil, err
		}
	}
	return &ast.IfStmt{Position: start, Cond: cond, Then: then, Else: els}, nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	start := p.advance().Pos // 'while'
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	p.loopDepth++
	body, err := p.parseStmt()
	p.loopDepth--
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Position: start, Cond: cond, Body: body}, nil
}

func (p *Parser) parseDoWhile() (ast.Stmt, error) {
	start := p.advance().Pos // 'do'
	p.loopDepth++
	body, err := p.parseStmt()
	p.loopDepth--
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.WHILE); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	return &ast.DoWhileStmt{Position: start, Body: body, Cond: cond}, nil
}

func (p *Parser) parseFor() (ast.Stmt, error) {
	start := p.advance().Pos // 'for'
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}

	var initStmt ast.Stmt
	var err error
	if p.at(token.SEMI) {
		p.advance()
	} else if isTypeQualifierOrType(p.cur().Type) {
		initStmt, err = p.parseLocalDecl() // consumes its own ';'
		if err != nil {
			return nil, err
		}
	} else {
		initStmt, err = p.parseSimpleStmt()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.SEMI); err != nil {
			return nil, err
		}
	}

	var cond ast.Expr
	if !p.at(token.SEMI) {
		cond, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}

	var stepStmt ast.Stmt
	if !p.at(token.RPAREN) {
		stepStmt, err = p.parseSimpleStmt()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}

	p.loopDepth++
	body, err := p.parseStmt()
	p.loopDepth--
	if err != nil {
		return nil, err
	}

	return &ast.ForStmt{Position: start, Init: initStmt, Cond: cond, Step: stepStmt, Body: body}, nil
}

func (p *Parser) parseReturn() (ast.Stmt, error) {
	tok := p.advance() // 'return'
	if !p.inFunction {
		return nil, diagnostics.New(diagnostics.Parse, tok.Pos.File, tok.Pos.Line, tok.Pos.Column,
			"'return' outside of a function body")
	}
	var val ast.Expr
	if !p.at(token.SEMI) {
		var err error
		val, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	return &ast.ReturnStmt{Position: tok.Pos, Value: val}, nil
}

func (p *Parser) parseBreak() (ast.Stmt, error) {
	tok := p.advance()
	if p.loopDepth == 0 {
		return nil, diagnostics.New(diagnostics.Parse, tok.Pos.File, tok.Pos.Line, tok.Pos.Column,
			"'break' outside of a loop")
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	return &ast.BreakStmt{Position: tok.Pos}, nil
}

func (p *Parser) parseContinue() (ast.Stmt, error) {
	tok := p.advance()
	if p.loopDepth == 0 {
		return nil, diagnostics.New(diagnostics.Parse, tok.Pos.File, tok.Pos.Line, tok.Pos.Column,
			"'continue' outside of a loop")
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	return &ast.ContinueStmt{Position: tok.Pos}, nil
}

// parseAsm consumes `asm { <opaque text> };`. The body must still be
// lexable by lexer.Lexer, since the parser never switches lexing modes
// mid-stream; what "opaque" buys here is that the parser reconstructs
// the verbatim source text of the block by rune offset rather than
// re-serializing it from tokens, so whitespace and formatting inside
// the block survive unchanged into codegen.
func (p *Parser) parseAsm() (ast.Stmt, error) {
	start := p.advance().Pos // 'asm'
	open, err := p.expect(token.LBRACE)
	if err != nil {
		return nil, err
	}
	bodyStart := open.Offset + len([]rune(open.Literal))

	depth := 1
	var close token.Token
	for {
		if p.at(token.EOF) {
			return nil, diagnostics.New(diagnostics.Parse, open.Pos.File, open.Pos.Line, open.Pos.Column,
				"unterminated asm block")
		}
		if p.at(token.LBRACE) {
			depth++
			p.advance()
			continue
		}
		if p.at(token.RBRACE) {
			depth--
			if depth == 0 {
				close = p.advance()
				break
			}
			p.advance()
			continue
		}
		p.advance()
	}

	raw := p.lex.RawSlice(bodyStart, close.Offset)
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	return &ast.AsmStmt{Position: start, Text: strings.TrimSpace(raw)}, nil
}

// parseLocalDecl parses a variable, array, or pointer declaration
// statement, including its optional volatile/register qualifiers and
// its terminating ';'.
func (p *Parser) parseLocalDecl() (ast.Stmt, error) {
	start := p.cur().Pos
	volatile := false
	register := false
	for {
		switch p.cur().Type {
		case token.VOLATILE:
			volatile = true
			p.advance()
			continue
		case token.REGISTER:
			register = true
			p.advance()
			continue
		}
		break
	}

	vt, err := p.parseVarType()
	if err != nil {
		return nil, err
	}

	if p.at(token.ASTERISK) {
		p.advance()
		nameTok, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		var init ast.Expr
		if p.at(token.ASSIGN) {
			p.advance()
			init, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(token.SEMI); err != nil {
			return nil, err
		}
		return &ast.PointerDeclStmt{Position: start, Name: nameTok.Literal, Init: init}, nil
	}

	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}

	if p.at(token.LBRACK) {
		p.advance()
		lenTok, err := p.expect(token.NUMBER)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RBRACK); err != nil {
			return nil, err
		}
		var init []ast.Expr
		if p.at(token.ASSIGN) {
			p.advance()
			init, err = p.parseInitList()
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(token.SEMI); err != nil {
			return nil, err
		}
		return &ast.ArrayDeclStmt{Position: start, Name: nameTok.Literal, Length: int(lenTok.IntVal), Init: init}, nil
	}

	var registerName string
	if register {
		if !isRegisterName(nameTok.Literal) {
			return nil, diagnostics.New(diagnostics.Parse, nameTok.Pos.File, nameTok.Pos.Line, nameTok.Pos.Column,
				"'register' qualifier requires a name matching r0-r31, found %q", nameTok.Literal)
		}
		if nameTok.Literal == "r31" {
			return nil, diagnostics.New(diagnostics.Parse, nameTok.Pos.File, nameTok.Pos.Line, nameTok.Pos.Column,
				"r31 is read-only and cannot be used as a register variable")
		}
		registerName = nameTok.Literal
	}

	var init ast.Expr
	if p.at(token.ASSIGN) {
		p.advance()
		init, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	return &ast.VarDeclStmt{
		Position: start, Name: nameTok.Literal, VarType: vt, Init: init,
		Volatile: volatile, Register: register, RegisterName: registerName,
	}, nil
}

// isRegisterName reports whether name matches r0 through r31, exactly
// (no leading zeros, no extra characters).
func isRegisterName(name string) bool {
	if len(name) < 2 || len(name) > 3 || name[0] != 'r' {
		return false
	}
	digits := name[1:]
	for _, c := range digits {
		if c < '0' || c > '9' {
			return false
		}
	}
	if len(digits) > 1 && digits[0] == '0' {
		return false
	}
	n := 0
	for _, c := range digits {
		n = n*10 + int(c-'0')
	}
	return n >= 0 && n <= 31
}

// parseSimpleStmt parses an assignment, compound assignment,
// increment/decrement, or bare function-call statement, WITHOUT
// consuming the trailing ';' — callers (parseStmt, parseFor) are
// responsible for that, since a for-loop's step clause has none.
func (p *Parser) parseSimpleStmt() (ast.Stmt, error) {
	if p.at(token.INC) || p.at(token.DEC) {
		op := p.advance()
		target, err := p.parseLValue()
		if err != nil {
			return nil, err
		}
		return &ast.IncDecStmt{Position: op.Pos, Target: target, Op: op.Type, Prefix: true}, nil
	}

	start := p.cur().Pos
	lhs, err := p.parseLValue()
	if err != nil {
		return nil, err
	}

	switch p.cur().Type {
	case token.INC, token.DEC:
		op := p.advance()
		return &ast.IncDecStmt{Position: start, Target: lhs, Op: op.Type, Prefix: false}, nil

	case token.ASSIGN:
		p.advance()
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.AssignStmt{Position: start, Target: lhs, Value: val}, nil

	case token.PLUSEQ, token.MINEQ, token.MULEQ, token.DIVEQ, token.MODEQ:
		op := p.advance()
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.CompoundAssignStmt{Position: start, Target: lhs, Op: compoundBaseOp(op.Type), Value: val}, nil

	default:
		if call, ok := lhs.(*ast.CallExpr); ok {
			return &ast.ExprStmt{Position: start, X: call}, nil
		}
		return nil, p.errorf("expected ';', an assignment, or a function call, found %q", p.cur().Type)
	}
}

func compoundBaseOp(op token.Type) token.Type {
	switch op {
	case token.PLUSEQ:
		return token.PLUS
	case token.MINEQ:
		return token.MINUS
	case token.MULEQ:
		return token.ASTERISK
	case token.DIVEQ:
		return token.SLASH
	case token.MODEQ:
		return token.PERCENT
	default:
		return op
	}
}

// parseLValue parses one of the three legal l-value shapes: a bare
// identifier, an array-index expression, or a dereference — optionally
// followed by a call, in which case the result is an *ast.CallExpr
// (not itself an l-value, but the only other thing a "simple
// statement" can be).
func (p *Parser) parseLValue() (ast.Expr, error) {
	if p.at(token.ASTERISK) {
		star := p.advance()
		x, err := p.parseLValue()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Position: star.Pos, Op: token.ASTERISK, X: x}, nil
	}

	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	var x ast.Expr = &ast.Ident{Position: nameTok.Pos, Name: nameTok.Literal}

	if p.at(token.LPAREN) {
		p.advance()
		args, err := p.parseArgList()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return &ast.CallExpr{Position: nameTok.Pos, Func: nameTok.Literal, Args: args}, nil
	}

	for p.at(token.LBRACK) {
		lb := p.advance()
		idx, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RBRACK); err != nil {
			return nil, err
		}
		x = &ast.IndexExpr{Position: lb.Pos, Base: x, Index: idx}
	}
	return x, nil
}

func (p *Parser) parseArgList() ([]ast.Expr, error) {
	var args []ast.Expr
	if p.at(token.RPAREN) {
		return args, nil
	}
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, e)
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return args, nil
}

// ================= expressions (precedence climbing) =================

// parseExpr is the entry point: logical-or is the lowest-precedence
// level.
func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parseLogicalOr()
}

func (p *Parser) parseLogicalOr() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseLogicalAnd, token.OR)
}

func (p *Parser) parseLogicalAnd() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseBitwiseOr, token.AND)
}

func (p *Parser) parseBitwiseOr() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseBitwiseXor, token.PIPE)
}

func (p *Parser) parseBitwiseXor() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseBitwiseAnd, token.CARET)
}

func (p *Parser) parseBitwiseAnd() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseEquality, token.AMP)
}

func (p *Parser) parseEquality() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseRelational, token.EQ, token.NOTEQ)
}

func (p *Parser) parseRelational() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseShift, token.LT, token.LTE, token.GT, token.GTE)
}

func (p *Parser) parseShift() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseAdditive, token.SHL, token.SHR)
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseMultiplicative, token.PLUS, token.MINUS)
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseUnary, token.ASTERISK, token.SLASH, token.PERCENT)
}

// parseBinaryLevel implements one left-associative precedence level:
// parse a sub-expression via next, then while the current token is one
// of ops, consume it and fold in another sub-expression.
func (p *Parser) parseBinaryLevel(next func() (ast.Expr, error), ops ...token.Type) (ast.Expr, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for p.matchAny(ops) {
		op := p.advance()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Position: op.Pos, Op: op.Type, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) matchAny(ops []token.Type) bool {
	for _, o := range ops {
		if p.at(o) {
			return true
		}
	}
	return false
}

// parseUnary handles the expression-valued prefix operators `! ~ - & *`.
// Prefix ++/-- are statement-only (see parser.parseSimpleStmt) and are
// deliberately not accepted here.
func (p *Parser) parseUnary() (ast.Expr, error) {
	switch p.cur().Type {
	case token.BANG, token.TILDE, token.MINUS, token.AMP, token.ASTERISK:
		op := p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Position: op.Pos, Op: op.Type, X: x}, nil
	default:
		return p.parsePostfix()
	}
}

// parsePostfix handles array indexing and function calls. Postfix
// ++/-- are statement-only, per the same resolution as parseUnary.
func (p *Parser) parsePostfix() (ast.Expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().Type {
		case token.LBRACK:
			lb := p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBRACK); err != nil {
				return nil, err
			}
			x = &ast.IndexExpr{Position: lb.Pos, Base: x, Index: idx}

		case token.LPAREN:
			id, ok := x.(*ast.Ident)
			if !ok {
				return x, nil
			}
			p.advance()
			args, err := p.parseArgList()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RPAREN); err != nil {
				return nil, err
			}
			x = &ast.CallExpr{Position: id.Position, Func: id.Name, Args: args}

		default:
			return x, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	switch p.cur().Type {
	case token.NUMBER:
		tok := p.advance()
		return &ast.IntLit{Position: tok.Pos, Value: tok.IntVal}, nil
	case token.IDENT:
		tok := p.advance()
		return &ast.Ident{Position: tok.Pos, Name: tok.Literal}, nil
	case token.LPAREN:
		tok := p.advance()
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return &ast.ParenExpr{Position: tok.Pos, X: x}, nil
	default:
		return nil, p.errorf("unexpected token %q in expression", p.cur().Type)
	}
}
