package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/skx/muc/ast"
	"github.com/skx/muc/diagnostics"
	"github.com/skx/muc/interp"
	"github.com/skx/muc/regalloc"
	"github.com/skx/muc/token"
)

// regNumber parses a register name such as "r3" into its number, for
// the `register` qualifier (already validated by the parser).
func regNumber(name string) int {
	n, _ := strconv.Atoi(strings.TrimPrefix(name, "r"))
	return n
}

// lowerExpr evaluates expr and returns the number of a Temp-class
// register holding its value. The caller owns the returned register
// and must Free it once done.
func (g *Generator) lowerExpr(expr ast.Expr, fc *fnCtx) (int, error) {
	switch e := expr.(type) {
	case *ast.IntLit:
		reg, err := fc.alloc.Alloc(regalloc.Temp)
		if err != nil {
			return 0, g.exhausted(e.Position, fc)
		}
		fmt.Fprintf(&g.text, "\tmov %s, %d\n", regalloc.Name(reg), e.Value)
		return reg, nil

	case *ast.Ident:
		return g.lowerIdentValue(e, fc)

	case *ast.ParenExpr:
		return g.lowerExpr(e.X, fc)

	case *ast.UnaryExpr:
		return g.lowerUnary(e, fc)

	case *ast.BinaryExpr:
		return g.lowerBinary(e, fc)

	case *ast.IndexExpr:
		addr, err := g.computeAddress(e, fc)
		if err != nil {
			return 0, err
		}
		reg, err := fc.alloc.Alloc(regalloc.Temp)
		if err != nil {
			return 0, g.exhausted(e.Position, fc)
		}
		fmt.Fprintf(&g.text, "\tload %s, [%s]\n", regalloc.Name(reg), regalloc.Name(addr))
		fc.alloc.Free(addr)
		return reg, nil

	case *ast.CallExpr:
		return g.lowerCall(e, fc)

	default:
		return 0, diagnostics.New(diagnostics.Codegen, g.file, expr.Pos().Line, expr.Pos().Column,
			"unsupported expression type %T", expr)
	}
}

func (g *Generator) exhausted(pos token.Position, fc *fnCtx) error {
	return diagnostics.New(diagnostics.Codegen, g.file, pos.Line, pos.Column,
		"temporary register exhaustion in %q", fc.name)
}

func (g *Generator) lowerIdentValue(e *ast.Ident, fc *fnCtx) (int, error) {
	sym, ok := g.resolve(e.Name, fc)
	if !ok {
		return 0, diagnostics.New(diagnostics.Codegen, g.file, e.Position.Line, e.Position.Column,
			"undefined identifier %q", e.Name)
	}
	reg, err := fc.alloc.Alloc(regalloc.Temp)
	if err != nil {
		return 0, g.exhausted(e.Position, fc)
	}
	switch sym.kind {
	case symRegister:
		fmt.Fprintf(&g.text, "\tmov %s, %s ; %s\n", regalloc.Name(reg), regalloc.Name(sym.reg), e.Name)
	case symStackScalar:
		fmt.Fprintf(&g.text, "\tload %s, [%s-%d] ; %s\n", regalloc.Name(reg), regalloc.Name(fc.fp), sym.offset, e.Name)
	case symGlobalScalar:
		fmt.Fprintf(&g.text, "\tload %s, [%s] ; %s\n", regalloc.Name(reg), sym.label, e.Name)
	default:
		fc.alloc.Free(reg)
		return 0, diagnostics.New(diagnostics.Codegen, g.file, e.Position.Line, e.Position.Column,
			"array %q used without an index", e.Name)
	}
	return reg, nil
}

func (g *Generator) lowerUnary(e *ast.UnaryExpr, fc *fnCtx) (int, error) {
	switch e.Op {
	case token.AMP:
		return g.computeAddress(e.X, fc)

	case token.ASTERISK:
		p, err := g.lowerExpr(e.X, fc)
		if err != nil {
			return 0, err
		}
		reg, err := fc.alloc.Alloc(regalloc.Temp)
		if err != nil {
			return 0, g.exhausted(e.Position, fc)
		}
		fmt.Fprintf(&g.text, "\tload %s, [%s]\n", regalloc.Name(reg), regalloc.Name(p))
		fc.alloc.Free(p)
		return reg, nil

	case token.MINUS:
		v, err := g.lowerExpr(e.X, fc)
		if err != nil {
			return 0, err
		}
		reg, err := fc.alloc.Alloc(regalloc.Temp)
		if err != nil {
			return 0, g.exhausted(e.Position, fc)
		}
		fmt.Fprintf(&g.text, "\tmov %s, 0\n", regalloc.Name(reg))
		fmt.Fprintf(&g.text, "\tsub %s, %s, %s\n", regalloc.Name(reg), regalloc.Name(reg), regalloc.Name(v))
		fc.alloc.Free(v)
		return reg, nil

	case token.BANG:
		v, err := g.lowerExpr(e.X, fc)
		if err != nil {
			return 0, err
		}
		reg, err := fc.alloc.Alloc(regalloc.Temp)
		if err != nil {
			return 0, g.exhausted(e.Position, fc)
		}
		fmt.Fprintf(&g.text, "\tcmpe %s, 0\n", regalloc.Name(v))
		fc.alloc.Free(v)
		fmt.Fprintf(&g.text, "\tmov %s, 0\n", regalloc.Name(reg))
		fmt.Fprintf(&g.text, "\tcmove %s, 1\n", regalloc.Name(reg))
		return reg, nil

	case token.TILDE:
		v, err := g.lowerExpr(e.X, fc)
		if err != nil {
			return 0, err
		}
		reg, err := fc.alloc.Alloc(regalloc.Temp)
		if err != nil {
			return 0, g.exhausted(e.Position, fc)
		}
		fmt.Fprintf(&g.text, "\tnot %s, %s\n", regalloc.Name(reg), regalloc.Name(v))
		fc.alloc.Free(v)
		return reg, nil

	default:
		return 0, diagnostics.New(diagnostics.Codegen, g.file, e.Position.Line, e.Position.Column,
			"unsupported unary operator %q", e.Op)
	}
}

// lowerBinary evaluates both operands, scales for pointer arithmetic
// exactly as the interpreter does (interp/eval.go's evalBinary), then
// emits the operator.
func (g *Generator) lowerBinary(e *ast.BinaryExpr, fc *fnCtx) (int, error) {
	if e.Op == token.AND || e.Op == token.OR {
		return g.lowerShortCircuit(e, fc)
	}

	l, err := g.lowerExpr(e.Left, fc)
	if err != nil {
		return 0, err
	}
	r, err := g.lowerExpr(e.Right, fc)
	if err != nil {
		return 0, err
	}

	lp := g.exprIsPointer(e.Left, fc)
	rp := g.exprIsPointer(e.Right, fc)
	if e.Op == token.PLUS || e.Op == token.MINUS {
		switch {
		case lp && !rp:
			fmt.Fprintf(&g.text, "\tshl %s, %s, 2\n", regalloc.Name(r), regalloc.Name(r))
		case rp && !lp && e.Op == token.PLUS:
			fmt.Fprintf(&g.text, "\tshl %s, %s, 2\n", regalloc.Name(l), regalloc.Name(l))
		}
	}

	result, err := fc.alloc.Alloc(regalloc.Temp)
	if err != nil {
		return 0, g.exhausted(e.Position, fc)
	}
	if err := g.emitBinOp(e.Op, result, l, r, e.Position.Line, e.Position.Column); err != nil {
		return 0, err
	}
	fc.alloc.Free(l)
	fc.alloc.Free(r)
	return result, nil
}

// lowerShortCircuit lowers && and ||, skipping evaluation of the right
// operand when the left already decides the result.
func (g *Generator) lowerShortCircuit(e *ast.BinaryExpr, fc *fnCtx) (int, error) {
	result, err := fc.alloc.Alloc(regalloc.Temp)
	if err != nil {
		return 0, g.exhausted(e.Position, fc)
	}
	skip := g.nextLabel("shortcircuit_skip")

	l, err := g.lowerExpr(e.Left, fc)
	if err != nil {
		return 0, err
	}
	fmt.Fprintf(&g.text, "\tmov %s, %s\n", regalloc.Name(result), regalloc.Name(l))
	fc.alloc.Free(l)

	if e.Op == token.AND {
		fmt.Fprintf(&g.text, "\tcmpe %s, 0\n", regalloc.Name(result))
		fmt.Fprintf(&g.text, "\tcmove r31, %s\n", skip)
	} else {
		fmt.Fprintf(&g.text, "\tcmpe %s, 0\n", regalloc.Name(result))
		fmt.Fprintf(&g.text, "\tcmovne r31, %s\n", skip)
	}

	r, err := g.lowerExpr(e.Right, fc)
	if err != nil {
		return 0, err
	}
	fmt.Fprintf(&g.text, "\tcmpe %s, 0\n", regalloc.Name(r))
	fmt.Fprintf(&g.text, "\tmov %s, 0\n", regalloc.Name(result))
	fmt.Fprintf(&g.text, "\tcmovne %s, 1\n", regalloc.Name(result))
	fc.alloc.Free(r)

	fmt.Fprintf(&g.text, "%s:\n", skip)
	return result, nil
}

// exprIsPointer mirrors interp/eval.go's exprIsPointer: only a
// PointerDeclStmt-declared local is statically known to carry a
// pointer value, since µc's untyped parameter list carries no type
// information to propagate pointer-ness across a call boundary.
func (g *Generator) exprIsPointer(expr ast.Expr, fc *fnCtx) bool {
	switch e := expr.(type) {
	case *ast.Ident:
		if sym, ok := g.resolve(e.Name, fc); ok {
			return sym.isPointer
		}
		return false
	case *ast.ParenExpr:
		return g.exprIsPointer(e.X, fc)
	default:
		return false
	}
}

// emitBinOp emits the instruction for one binary operator with result
// := l op r. Relational operators are realized as compare-then-
// conditional-move, matching the if/while lowering idiom.
func (g *Generator) emitBinOp(op token.Type, result, l, r int, line, col int) error {
	rn, ln, rr := regalloc.Name(result), regalloc.Name(l), regalloc.Name(r)
	switch op {
	case token.PLUS:
		fmt.Fprintf(&g.text, "\tadd %s, %s, %s\n", rn, ln, rr)
	case token.MINUS:
		fmt.Fprintf(&g.text, "\tsub %s, %s, %s\n", rn, ln, rr)
	case token.ASTERISK:
		fmt.Fprintf(&g.text, "\tmul %s, %s, %s\n", rn, ln, rr)
	case token.SLASH:
		fmt.Fprintf(&g.text, "\tdiv %s, %s, %s\n", rn, ln, rr)
	case token.PERCENT:
		fmt.Fprintf(&g.text, "\tmod %s, %s, %s\n", rn, ln, rr)
	case token.AMP:
		fmt.Fprintf(&g.text, "\tand %s, %s, %s\n", rn, ln, rr)
	case token.PIPE:
		fmt.Fprintf(&g.text, "\tor %s, %s, %s\n", rn, ln, rr)
	case token.CARET:
		fmt.Fprintf(&g.text, "\txor %s, %s, %s\n", rn, ln, rr)
	case token.SHL:
		fmt.Fprintf(&g.text, "\tshl %s, %s, %s\n", rn, ln, rr)
	case token.SHR:
		fmt.Fprintf(&g.text, "\tshr %s, %s, %s\n", rn, ln, rr)

	case token.EQ, token.NOTEQ, token.LT, token.LTE, token.GT, token.GTE:
		fmt.Fprintf(&g.text, "\tcmp %s, %s\n", ln, rr)
		fmt.Fprintf(&g.text, "\tmov %s, 0\n", rn)
		fmt.Fprintf(&g.text, "\t%s %s, 1\n", relationalMove(op), rn)

	default:
		return diagnostics.New(diagnostics.Codegen, g.file, line, col, "unsupported binary operator %q", op)
	}
	return nil
}

// relationalMove names the conditional-move mnemonic that follows a
// `cmp` to realize each relational operator, from the cmpe/cmpa/cmpb
// conditional-move primitive family.
func relationalMove(op token.Type) string {
	switch op {
	case token.EQ:
		return "cmove"
	case token.NOTEQ:
		return "cmovne"
	case token.LT:
		return "cmovb"
	case token.LTE:
		return "cmovbe"
	case token.GT:
		return "cmova"
	case token.GTE:
		return "cmovae"
	default:
		return "cmove"
	}
}

// computeAddress returns a Temp-class register holding the absolute
// address denoted by an lvalue expression, the codegen analogue of
// interp/eval.go's addressOf/addressOfIndex.
func (g *Generator) computeAddress(target ast.Expr, fc *fnCtx) (int, error) {
	switch t := target.(type) {
	case *ast.Ident:
		sym, ok := g.resolve(t.Name, fc)
		if !ok {
			return 0, diagnostics.New(diagnostics.Codegen, g.file, t.Position.Line, t.Position.Column,
				"undefined identifier %q", t.Name)
		}
		reg, err := fc.alloc.Alloc(regalloc.Temp)
		if err != nil {
			return 0, g.exhausted(t.Position, fc)
		}
		switch sym.kind {
		case symStackScalar, symStackArray:
			fmt.Fprintf(&g.text, "\tsub %s, %s, %d ; &%s\n", regalloc.Name(reg), regalloc.Name(fc.fp), sym.offset, t.Name)
		case symGlobalScalar, symGlobalArray:
			fmt.Fprintf(&g.text, "\tmov %s, %s ; &%s\n", regalloc.Name(reg), sym.label, t.Name)
		default:
			fc.alloc.Free(reg)
			return 0, diagnostics.New(diagnostics.Codegen, g.file, t.Position.Line, t.Position.Column,
				"cannot take the address of register-resident %q", t.Name)
		}
		return reg, nil

	case *ast.IndexExpr:
		base, err := g.computeArrayBase(t.Base, fc)
		if err != nil {
			return 0, err
		}
		idx, err := g.lowerExpr(t.Index, fc)
		if err != nil {
			return 0, err
		}
		fmt.Fprintf(&g.text, "\tshl %s, %s, 2\n", regalloc.Name(idx), regalloc.Name(idx))
		fmt.Fprintf(&g.text, "\tadd %s, %s, %s\n", regalloc.Name(base), regalloc.Name(base), regalloc.Name(idx))
		fc.alloc.Free(idx)
		return base, nil

	case *ast.ParenExpr:
		return g.computeAddress(t.X, fc)

	default:
		return 0, diagnostics.New(diagnostics.Codegen, g.file, target.Pos().Line, target.Pos().Column,
			"invalid operand to address-of")
	}
}

// computeArrayBase resolves an IndexExpr's base to its starting
// address: a known array's base address, or, for a pointer-valued
// base, the pointer's own value, since a[e] is exactly *(a + 4e).
func (g *Generator) computeArrayBase(base ast.Expr, fc *fnCtx) (int, error) {
	if id, ok := base.(*ast.Ident); ok {
		if sym, ok := g.resolve(id.Name, fc); ok && (sym.kind == symStackArray || sym.kind == symGlobalArray) {
			reg, err := fc.alloc.Alloc(regalloc.Temp)
			if err != nil {
				return 0, g.exhausted(id.Position, fc)
			}
			switch sym.kind {
			case symStackArray:
				fmt.Fprintf(&g.text, "\tsub %s, %s, %d ; %s\n", regalloc.Name(reg), regalloc.Name(fc.fp), sym.offset, id.Name)
			case symGlobalArray:
				fmt.Fprintf(&g.text, "\tmov %s, %s ; %s\n", regalloc.Name(reg), sym.label, id.Name)
			}
			return reg, nil
		}
	}
	return g.lowerExpr(base, fc)
}

// storeTo writes valueReg into the storage an lvalue expression
// denotes: a named scalar, an array element, or a pointer
// dereference.
func (g *Generator) storeTo(target ast.Expr, valueReg int, fc *fnCtx) error {
	switch t := target.(type) {
	case *ast.Ident:
		sym, ok := g.resolve(t.Name, fc)
		if !ok {
			return diagnostics.New(diagnostics.Codegen, g.file, t.Position.Line, t.Position.Column,
				"undefined identifier %q", t.Name)
		}
		switch sym.kind {
		case symRegister:
			fmt.Fprintf(&g.text, "\tmov %s, %s ; %s\n", regalloc.Name(sym.reg), regalloc.Name(valueReg), t.Name)
		case symStackScalar:
			fmt.Fprintf(&g.text, "\tstore [%s-%d], %s ; %s\n", regalloc.Name(fc.fp), sym.offset, regalloc.Name(valueReg), t.Name)
		case symGlobalScalar:
			fmt.Fprintf(&g.text, "\tstore [%s], %s ; %s\n", sym.label, regalloc.Name(valueReg), t.Name)
		default:
			return diagnostics.New(diagnostics.Codegen, g.file, t.Position.Line, t.Position.Column,
				"%q is not assignable", t.Name)
		}
		return nil

	case *ast.IndexExpr:
		addr, err := g.computeAddress(t, fc)
		if err != nil {
			return err
		}
		fmt.Fprintf(&g.text, "\tstore [%s], %s\n", regalloc.Name(addr), regalloc.Name(valueReg))
		fc.alloc.Free(addr)
		return nil

	case *ast.UnaryExpr:
		if t.Op != token.ASTERISK {
			return diagnostics.New(diagnostics.Codegen, g.file, t.Position.Line, t.Position.Column,
				"invalid assignment target")
		}
		addr, err := g.lowerExpr(t.X, fc)
		if err != nil {
			return err
		}
		fmt.Fprintf(&g.text, "\tstore [%s], %s\n", regalloc.Name(addr), regalloc.Name(valueReg))
		fc.alloc.Free(addr)
		return nil

	default:
		return diagnostics.New(diagnostics.Codegen, g.file, target.Pos().Line, target.Pos().Column,
			"invalid assignment target %T", target)
	}
}

// lowerCall lowers a call expression: intrinsics named in
// interp.CodegenLowerable emit their ISA instruction directly; any
// other intrinsic name is rejected (it is interpreter-only); user
// functions lower to a call through the five-argument convention.
func (g *Generator) lowerCall(e *ast.CallExpr, fc *fnCtx) (int, error) {
	if len(e.Args) > 5 {
		return 0, diagnostics.New(diagnostics.Codegen, g.file, e.Position.Line, e.Position.Column,
			"call to %q passes %d arguments, at most 5 are supported", e.Func, len(e.Args))
	}

	if interp.IsIntrinsic(e.Func) {
		if !interp.CodegenLowerable[e.Func] {
			return 0, diagnostics.New(diagnostics.Codegen, g.file, e.Position.Line, e.Position.Column,
				"intrinsic %q has no code-generated lowering and is interpreter-only", e.Func)
		}
		return g.lowerIntrinsicCall(e, fc)
	}

	argRegs := []int{26, 27, 28, 29, 30}
	for i, a := range e.Args {
		v, err := g.lowerExpr(a, fc)
		if err != nil {
			return 0, err
		}
		fmt.Fprintf(&g.text, "\tmov %s, %s ; arg %d\n", regalloc.Name(argRegs[i]), regalloc.Name(v), i)
		fc.alloc.Free(v)
	}
	fmt.Fprintf(&g.text, "\tcall func_%s\n", e.Func)

	result, err := fc.alloc.Alloc(regalloc.Temp)
	if err != nil {
		return 0, g.exhausted(e.Position, fc)
	}
	fmt.Fprintf(&g.text, "\tmov %s, r0\n", regalloc.Name(result))
	return result, nil
}

// lowerIntrinsicCall emits the direct ISA instruction for one of the
// CodegenLowerable peripheral intrinsics.
func (g *Generator) lowerIntrinsicCall(e *ast.CallExpr, fc *fnCtx) (int, error) {
	args := make([]int, len(e.Args))
	for i, a := range e.Args {
		v, err := g.lowerExpr(a, fc)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	result, err := fc.alloc.Alloc(regalloc.Temp)
	if err != nil {
		return 0, g.exhausted(e.Position, fc)
	}

	switch e.Func {
	case "uart_set_baud":
		fmt.Fprintf(&g.text, "\tout UART_BAUD, %s\n", regalloc.Name(args[0]))
		fmt.Fprintf(&g.text, "\tmov %s, 0\n", regalloc.Name(result))
	case "uart_read":
		fmt.Fprintf(&g.text, "\tin %s, UART_DATA\n", regalloc.Name(result))
	case "uart_write":
		fmt.Fprintf(&g.text, "\tout UART_DATA, %s\n", regalloc.Name(args[0]))
		fmt.Fprintf(&g.text, "\tmov %s, 0\n", regalloc.Name(result))
	case "gpio_set":
		fmt.Fprintf(&g.text, "\tout GPIO_SET, %s\n", regalloc.Name(args[0]))
		fmt.Fprintf(&g.text, "\tmov %s, 0\n", regalloc.Name(result))
	case "gpio_read":
		fmt.Fprintf(&g.text, "\tin %s, GPIO_IN\n", regalloc.Name(result))
	case "gpio_write":
		fmt.Fprintf(&g.text, "\tout GPIO_OUT, %s\n", regalloc.Name(args[0]))
		fmt.Fprintf(&g.text, "\tmov %s, 0\n", regalloc.Name(result))
	}

	for _, a := range args {
		fc.alloc.Free(a)
	}
	return result, nil
}
