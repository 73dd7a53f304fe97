package codegen

import (
	"fmt"

	"github.com/skx/muc/ast"
	"github.com/skx/muc/diagnostics"
	"github.com/skx/muc/interp"
	"github.com/skx/muc/regalloc"
)

// fnCtx carries per-function lowering state: the register allocator,
// the argument-count/locals bookkeeping needed for the calling
// convention, and the function's symbol scope.
//
// fp holds a register fixed for the function's lifetime to the stack
// pointer's value immediately after the prologue. Stack-resident
// locals (arrays, and scalars whose address is taken — a register has
// no address) are addressed as an offset below fp, so further pushes
// onto r30 never invalidate an already-computed offset.
type fnCtx struct {
	name        string
	alloc       *regalloc.Allocator
	scope       *scope
	nargs       int
	locals      []int // register numbers currently holding locals, in allocation order (for symmetric release)
	fp          int
	stackOffset int            // bytes currently pushed below fp
	addrTaken   map[string]bool // names whose address is taken somewhere in this function
}

// lowerFunction emits one function's prologue, body, and epilogue.
// Up to five arguments pass in r26-r30; the fifth slot doubles as the
// incoming link register, so the prologue spills r30 to the stack
// before binding it as argument 5 when both are needed.
func (g *Generator) lowerFunction(fn *ast.FuncDecl) error {
	if len(fn.Params) > 5 {
		return diagnostics.New(diagnostics.Codegen, g.file, fn.Position.Line, fn.Position.Column,
			"function %q takes %d parameters, at most 5 are supported", fn.Name, len(fn.Params))
	}

	fc := &fnCtx{
		name:      fn.Name,
		alloc:     regalloc.New(),
		scope:     newScope(nil),
		nargs:     len(fn.Params),
		addrTaken: interp.CollectAddressTaken(fn.Body),
	}

	label := "func_" + fn.Name
	fmt.Fprintf(&g.text, "%s:\n", label)
	fmt.Fprintf(&g.text, "\t; prologue\n")
	fmt.Fprintf(&g.text, "\tstore [r30], r30\n")
	fmt.Fprintf(&g.text, "\tsub r30, r30, 4\n")

	fp, err := fc.alloc.Alloc(regalloc.Local)
	if err != nil {
		return diagnostics.New(diagnostics.Codegen, g.file, fn.Position.Line, fn.Position.Column,
			"register exhaustion allocating frame pointer in %q", fn.Name)
	}
	fc.fp = fp
	fmt.Fprintf(&g.text, "\tmov %s, r30 ; frame pointer\n", regalloc.Name(fp))

	argRegs := []int{26, 27, 28, 29, 30}
	for i, pname := range fn.Params {
		if fc.addrTaken[pname] {
			off := g.pushStackSlot(fc, 4)
			fmt.Fprintf(&g.text, "\tstore [%s-%d], %s ; param %s\n", regalloc.Name(fc.fp), off, regalloc.Name(argRegs[i]), pname)
			fc.scope.declare(pname, &symbol{kind: symStackScalar, offset: off})
			continue
		}
		reg, err := fc.alloc.Alloc(regalloc.Local)
		if err != nil {
			return diagnostics.New(diagnostics.Codegen, g.file, fn.Position.Line, fn.Position.Column,
				"register exhaustion binding parameter %q in %q", pname, fn.Name)
		}
		fc.locals = append(fc.locals, reg)
		fmt.Fprintf(&g.text, "\tmov %s, %s ; param %s\n", regalloc.Name(reg), regalloc.Name(argRegs[i]), pname)
		fc.scope.declare(pname, &symbol{kind: symRegister, reg: reg})
	}

	if err := g.lowerBlock(fn.Body, fc); err != nil {
		return err
	}

	fmt.Fprintf(&g.text, "\t; epilogue\n")
	fmt.Fprintf(&g.text, "\tadd r30, r30, 4\n")
	fmt.Fprintf(&g.text, "\tload r30, [r30]\n")
	if fn.Name != "main" {
		fmt.Fprintf(&g.text, "\tret\n")
	}
	fmt.Fprintf(&g.text, "\n")
	return nil
}

// lowerBlock lowers each statement of a block in a child symbol scope,
// releasing any locals it declared, in reverse allocation order, on
// exit.
func (g *Generator) lowerBlock(block *ast.BlockStmt, fc *fnCtx) error {
	parent := fc.scope
	fc.scope = newScope(parent)
	before := len(fc.locals)
	stackBefore := fc.stackOffset

	for _, stmt := range block.Stmts {
		if err := g.lowerStmt(stmt, fc); err != nil {
			return err
		}
	}

	for i := len(fc.locals) - 1; i >= before; i-- {
		fc.alloc.Free(fc.locals[i])
	}
	fc.locals = fc.locals[:before]

	// Pop any stack-resident locals (arrays, address-taken scalars)
	// this block pushed, so loop bodies don't leak stack on each pass.
	if delta := fc.stackOffset - stackBefore; delta > 0 {
		fmt.Fprintf(&g.text, "\tadd r30, r30, %d\n", delta)
		fc.stackOffset = stackBefore
	}

	fc.scope = parent
	return nil
}

func (g *Generator) resolve(name string, fc *fnCtx) (*symbol, bool) {
	if sym, ok := fc.scope.lookup(name); ok {
		return sym, true
	}
	return g.globals.lookup(name)
}
