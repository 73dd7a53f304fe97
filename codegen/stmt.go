package codegen

import (
	"fmt"

	"github.com/skx/muc/ast"
	"github.com/skx/muc/diagnostics"
	"github.com/skx/muc/regalloc"
	"github.com/skx/muc/token"
)

func (g *Generator) lowerStmt(stmt ast.Stmt, fc *fnCtx) error {
	switch s := stmt.(type) {
	case *ast.VarDeclStmt:
		return g.lowerVarDecl(s, fc)
	case *ast.ArrayDeclStmt:
		return g.lowerArrayDecl(s, fc)
	case *ast.PointerDeclStmt:
		return g.lowerPointerDecl(s, fc)
	case *ast.AssignStmt:
		return g.lowerAssign(s, fc)
	case *ast.CompoundAssignStmt:
		return g.lowerCompoundAssign(s, fc)
	case *ast.IncDecStmt:
		return g.lowerIncDec(s, fc)
	case *ast.IfStmt:
		return g.lowerIf(s, fc)
	case *ast.WhileStmt:
		return g.lowerWhile(s, fc)
	case *ast.DoWhileStmt:
		return g.lowerDoWhile(s, fc)
	case *ast.ForStmt:
		return g.lowerFor(s, fc)
	case *ast.ReturnStmt:
		return g.lowerReturn(s, fc)
	case *ast.BlockStmt:
		return g.lowerBlock(s, fc)
	case *ast.AsmStmt:
		return g.lowerAsm(s, fc)
	case *ast.ExprStmt:
		reg, err := g.lowerExpr(s.X, fc)
		if err != nil {
			return err
		}
		fc.alloc.Free(reg)
		return nil
	case *ast.BreakStmt:
		if len(g.loops) == 0 {
			return diagnostics.New(diagnostics.Codegen, g.file, s.Position.Line, s.Position.Column,
				"break outside of a loop")
		}
		loop := g.loops[len(g.loops)-1]
		g.unwindStackTo(fc, loop.stackDepth)
		fmt.Fprintf(&g.text, "\tjmp %s\n", loop.breakLabel)
		return nil
	case *ast.ContinueStmt:
		if len(g.loops) == 0 {
			return diagnostics.New(diagnostics.Codegen, g.file, s.Position.Line, s.Position.Column,
				"continue outside of a loop")
		}
		loop := g.loops[len(g.loops)-1]
		g.unwindStackTo(fc, loop.stackDepth)
		fmt.Fprintf(&g.text, "\tjmp %s\n", loop.continueLabel)
		return nil
	default:
		return diagnostics.New(diagnostics.Codegen, g.file, stmt.Pos().Line, stmt.Pos().Column,
			"unsupported statement type %T", stmt)
	}
}

func (g *Generator) lowerVarDecl(s *ast.VarDeclStmt, fc *fnCtx) error {
	var initReg int
	haveInit := false
	if s.Init != nil {
		v, err := g.lowerExpr(s.Init, fc)
		if err != nil {
			return err
		}
		initReg = v
		haveInit = true
	}

	// An address-taken scalar has no address as a register, so it is
	// spilled to the stack regardless of the `register` qualifier. Any
	// other local is spilled there too once the Local class is exhausted.
	if fc.addrTaken[s.Name] || (!s.Register && !fc.alloc.Available(regalloc.Local)) {
		off := g.pushStackSlot(fc, 4)
		if haveInit {
			fmt.Fprintf(&g.text, "\tstore [%s-%d], %s ; %s\n", regalloc.Name(fc.fp), off, regalloc.Name(initReg), s.Name)
			fc.alloc.Free(initReg)
		} else {
			fmt.Fprintf(&g.text, "\tstore [%s-%d], 0 ; %s\n", regalloc.Name(fc.fp), off, s.Name)
		}
		fc.scope.declare(s.Name, &symbol{kind: symStackScalar, offset: off})
		return nil
	}

	var reg int
	var err error
	if s.Register {
		reg = regNumber(s.RegisterName)
	} else {
		reg, err = fc.alloc.Alloc(regalloc.Local)
		if err != nil {
			return diagnostics.New(diagnostics.Codegen, g.file, s.Position.Line, s.Position.Column,
				"register exhaustion declaring local %q in %q", s.Name, fc.name)
		}
		fc.locals = append(fc.locals, reg)
	}

	if haveInit {
		fmt.Fprintf(&g.text, "\tmov %s, %s ; %s\n", regalloc.Name(reg), regalloc.Name(initReg), s.Name)
		fc.alloc.Free(initReg)
	} else {
		fmt.Fprintf(&g.text, "\tmov %s, 0 ; %s\n", regalloc.Name(reg), s.Name)
	}

	fc.scope.declare(s.Name, &symbol{kind: symRegister, reg: reg})
	return nil
}

func (g *Generator) lowerPointerDecl(s *ast.PointerDeclStmt, fc *fnCtx) error {
	var initReg int
	haveInit := false
	if s.Init != nil {
		v, err := g.lowerExpr(s.Init, fc)
		if err != nil {
			return err
		}
		initReg = v
		haveInit = true
	}

	if fc.addrTaken[s.Name] || !fc.alloc.Available(regalloc.Local) {
		off := g.pushStackSlot(fc, 4)
		if haveInit {
			fmt.Fprintf(&g.text, "\tstore [%s-%d], %s ; %s\n", regalloc.Name(fc.fp), off, regalloc.Name(initReg), s.Name)
			fc.alloc.Free(initReg)
		} else {
			fmt.Fprintf(&g.text, "\tstore [%s-%d], 0 ; %s\n", regalloc.Name(fc.fp), off, s.Name)
		}
		fc.scope.declare(s.Name, &symbol{kind: symStackScalar, offset: off, isPointer: true})
		return nil
	}

	reg, err := fc.alloc.Alloc(regalloc.Local)
	if err != nil {
		return diagnostics.New(diagnostics.Codegen, g.file, s.Position.Line, s.Position.Column,
			"register exhaustion declaring pointer %q in %q", s.Name, fc.name)
	}
	fc.locals = append(fc.locals, reg)

	if haveInit {
		fmt.Fprintf(&g.text, "\tmov %s, %s ; %s\n", regalloc.Name(reg), regalloc.Name(initReg), s.Name)
		fc.alloc.Free(initReg)
	} else {
		fmt.Fprintf(&g.text, "\tmov %s, 0 ; %s\n", regalloc.Name(reg), s.Name)
	}

	fc.scope.declare(s.Name, &symbol{kind: symRegister, reg: reg, isPointer: true})
	return nil
}

// lowerArrayDecl reserves 4*length bytes on the software stack for a
// local array. The block's lowest address (element 0) is fp-offset,
// so indexing matches ordinary pointer arithmetic from &arr[0].
func (g *Generator) lowerArrayDecl(s *ast.ArrayDeclStmt, fc *fnCtx) error {
	size := 4 * s.Length
	offset := g.pushStackSlot(fc, size)
	fmt.Fprintf(&g.text, "\t; array %s[%d]\n", s.Name, s.Length)

	for i, e := range s.Init {
		v, err := g.lowerExpr(e, fc)
		if err != nil {
			return err
		}
		fmt.Fprintf(&g.text, "\tstore [%s-%d], %s ; %s[%d]\n", regalloc.Name(fc.fp), offset-i*4, regalloc.Name(v), s.Name, i)
		fc.alloc.Free(v)
	}

	fc.scope.declare(s.Name, &symbol{kind: symStackArray, offset: offset})
	return nil
}

func (g *Generator) lowerAssign(s *ast.AssignStmt, fc *fnCtx) error {
	v, err := g.lowerExpr(s.Value, fc)
	if err != nil {
		return err
	}
	if err := g.storeTo(s.Target, v, fc); err != nil {
		return err
	}
	fc.alloc.Free(v)
	return nil
}

func (g *Generator) lowerCompoundAssign(s *ast.CompoundAssignStmt, fc *fnCtx) error {
	cur, err := g.lowerExpr(s.Target, fc)
	if err != nil {
		return err
	}
	rhs, err := g.lowerExpr(s.Value, fc)
	if err != nil {
		return err
	}
	result, err := fc.alloc.Alloc(regalloc.Temp)
	if err != nil {
		return diagnostics.New(diagnostics.Codegen, g.file, s.Position.Line, s.Position.Column,
			"temporary register exhaustion in %q", fc.name)
	}
	if err := g.emitBinOp(s.Op, result, cur, rhs, s.Position.Line, s.Position.Column); err != nil {
		return err
	}
	fc.alloc.Free(cur)
	fc.alloc.Free(rhs)
	if err := g.storeTo(s.Target, result, fc); err != nil {
		return err
	}
	fc.alloc.Free(result)
	return nil
}

func (g *Generator) lowerIncDec(s *ast.IncDecStmt, fc *fnCtx) error {
	cur, err := g.lowerExpr(s.Target, fc)
	if err != nil {
		return err
	}
	if s.Op == token.INC {
		fmt.Fprintf(&g.text, "\tadd %s, %s, 1\n", regalloc.Name(cur), regalloc.Name(cur))
	} else {
		fmt.Fprintf(&g.text, "\tsub %s, %s, 1\n", regalloc.Name(cur), regalloc.Name(cur))
	}
	if err := g.storeTo(s.Target, cur, fc); err != nil {
		return err
	}
	fc.alloc.Free(cur)
	return nil
}

// lowerIf evaluates the condition into a temp, compares it with zero,
// conditional-moves the alternate branch's label into r31, emits the
// then branch, jumps to end, emits the else branch, and binds the end
// label.
func (g *Generator) lowerIf(s *ast.IfStmt, fc *fnCtx) error {
	elseLabel := g.nextLabel("if_else")
	endLabel := g.nextLabel("if_end")

	cond, err := g.lowerExpr(s.Cond, fc)
	if err != nil {
		return err
	}
	fmt.Fprintf(&g.text, "\tcmpe %s, 0\n", regalloc.Name(cond))
	fc.alloc.Free(cond)
	fmt.Fprintf(&g.text, "\tcmove r31, %s\n", elseLabel)

	if err := g.lowerStmt(s.Then, fc); err != nil {
		return err
	}
	fmt.Fprintf(&g.text, "\tjmp %s\n", endLabel)
	fmt.Fprintf(&g.text, "%s:\n", elseLabel)
	if s.Else != nil {
		if err := g.lowerStmt(s.Else, fc); err != nil {
			return err
		}
	}
	fmt.Fprintf(&g.text, "%s:\n", endLabel)
	return nil
}

func (g *Generator) lowerWhile(s *ast.WhileStmt, fc *fnCtx) error {
	startLabel := g.nextLabel("while_start")
	endLabel := g.nextLabel("while_end")

	fmt.Fprintf(&g.text, "%s:\n", startLabel)
	cond, err := g.lowerExpr(s.Cond, fc)
	if err != nil {
		return err
	}
	fmt.Fprintf(&g.text, "\tcmpe %s, 0\n", regalloc.Name(cond))
	fc.alloc.Free(cond)
	fmt.Fprintf(&g.text, "\tcmove r31, %s\n", endLabel)

	g.loops = append(g.loops, loopLabels{continueLabel: startLabel, breakLabel: endLabel, stackDepth: fc.stackOffset})
	if err := g.lowerStmt(s.Body, fc); err != nil {
		return err
	}
	g.loops = g.loops[:len(g.loops)-1]

	fmt.Fprintf(&g.text, "\tjmp %s\n", startLabel)
	fmt.Fprintf(&g.text, "%s:\n", endLabel)
	return nil
}

func (g *Generator) lowerDoWhile(s *ast.DoWhileStmt, fc *fnCtx) error {
	startLabel := g.nextLabel("do_start")
	stepLabel := g.nextLabel("do_cond")
	endLabel := g.nextLabel("do_end")

	fmt.Fprintf(&g.text, "%s:\n", startLabel)
	g.loops = append(g.loops, loopLabels{continueLabel: stepLabel, breakLabel: endLabel, stackDepth: fc.stackOffset})
	if err := g.lowerStmt(s.Body, fc); err != nil {
		return err
	}
	g.loops = g.loops[:len(g.loops)-1]

	fmt.Fprintf(&g.text, "%s:\n", stepLabel)
	cond, err := g.lowerExpr(s.Cond, fc)
	if err != nil {
		return err
	}
	fmt.Fprintf(&g.text, "\tcmpe %s, 0\n", regalloc.Name(cond))
	fc.alloc.Free(cond)
	fmt.Fprintf(&g.text, "\tcmovne r31, %s\n", startLabel)
	fmt.Fprintf(&g.text, "%s:\n", endLabel)
	return nil
}

// lowerFor lowers as a while loop with init before and the step
// emitted before the back-edge jump; continue targets the step label.
func (g *Generator) lowerFor(s *ast.ForStmt, fc *fnCtx) error {
	parent := fc.scope
	fc.scope = newScope(parent)
	before := len(fc.locals)
	stackBefore := fc.stackOffset
	defer func() {
		for i := len(fc.locals) - 1; i >= before; i-- {
			fc.alloc.Free(fc.locals[i])
		}
		fc.locals = fc.locals[:before]
		if delta := fc.stackOffset - stackBefore; delta > 0 {
			fmt.Fprintf(&g.text, "\tadd r30, r30, %d\n", delta)
			fc.stackOffset = stackBefore
		}
		fc.scope = parent
	}()

	if s.Init != nil {
		if err := g.lowerStmt(s.Init, fc); err != nil {
			return err
		}
	}

	startLabel := g.nextLabel("for_start")
	stepLabel := g.nextLabel("for_step")
	endLabel := g.nextLabel("for_end")

	fmt.Fprintf(&g.text, "%s:\n", startLabel)
	if s.Cond != nil {
		cond, err := g.lowerExpr(s.Cond, fc)
		if err != nil {
			return err
		}
		fmt.Fprintf(&g.text, "\tcmpe %s, 0\n", regalloc.Name(cond))
		fc.alloc.Free(cond)
		fmt.Fprintf(&g.text, "\tcmove r31, %s\n", endLabel)
	}

	g.loops = append(g.loops, loopLabels{continueLabel: stepLabel, breakLabel: endLabel, stackDepth: fc.stackOffset})
	if err := g.lowerStmt(s.Body, fc); err != nil {
		return err
	}
	g.loops = g.loops[:len(g.loops)-1]

	fmt.Fprintf(&g.text, "%s:\n", stepLabel)
	if s.Step != nil {
		if err := g.lowerStmt(s.Step, fc); err != nil {
			return err
		}
	}
	fmt.Fprintf(&g.text, "\tjmp %s\n", startLabel)
	fmt.Fprintf(&g.text, "%s:\n", endLabel)
	return nil
}

func (g *Generator) lowerReturn(s *ast.ReturnStmt, fc *fnCtx) error {
	if s.Value != nil {
		v, err := g.lowerExpr(s.Value, fc)
		if err != nil {
			return err
		}
		fmt.Fprintf(&g.text, "\tmov r0, %s\n", regalloc.Name(v))
		fc.alloc.Free(v)
	} else {
		fmt.Fprintf(&g.text, "\tmov r0, 0\n")
	}
	// A return reached from inside a nested block must unwind whatever
	// stack-resident locals are currently live before the fixed frame
	// pop below, since the enclosing blocks' own unwind code is
	// skipped on this path.
	if fc.stackOffset > 0 {
		fmt.Fprintf(&g.text, "\tadd r30, r30, %d ; unwind live stack locals\n", fc.stackOffset)
	}
	if fc.name == "main" {
		fmt.Fprintf(&g.text, "\thlt\n")
	} else {
		fmt.Fprintf(&g.text, "\tadd r30, r30, 4\n")
		fmt.Fprintf(&g.text, "\tload r30, [r30]\n")
		fmt.Fprintf(&g.text, "\tret\n")
	}
	return nil
}

// lowerAsm emits the opaque text verbatim, indented one tab and
// bracketed by comment markers noting the source line.
func (g *Generator) lowerAsm(s *ast.AsmStmt, fc *fnCtx) error {
	fmt.Fprintf(&g.text, "\t; asm block, line %d\n", s.Position.Line)
	for _, line := range splitLines(s.Text) {
		fmt.Fprintf(&g.text, "\t%s\n", line)
	}
	fmt.Fprintf(&g.text, "\t; end asm block\n")
	return nil
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
