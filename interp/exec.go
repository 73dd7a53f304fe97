package interp

import (
	"github.com/skx/muc/ast"
	"github.com/skx/muc/diagnostics"
	"github.com/skx/muc/object"
)

// execBlock pushes a child frame, runs each statement in order, and
// stops draining as soon as a non-normal control signal appears,
// propagating it to the caller.
func (ip *Interp) execBlock(block *ast.BlockStmt, parent *object.Frame, taken map[string]bool) (ctrl, error) {
	frame := object.NewChildFrame(parent)
	for _, stmt := range block.Stmts {
		c, err := ip.execStmt(stmt, frame, taken)
		if err != nil {
			return ctrl{}, err
		}
		if c.kind != normalCtrl {
			return c, nil
		}
	}
	return ctrlNormal, nil
}

func (ip *Interp) execStmt(stmt ast.Stmt, frame *object.Frame, taken map[string]bool) (ctrl, error) {
	if ip.step != nil {
		ip.step(stmt, frame)
	}
	switch s := stmt.(type) {
	case *ast.VarDeclStmt:
		return ip.execVarDecl(s, frame, taken)
	case *ast.ArrayDeclStmt:
		return ip.execArrayDecl(s, frame)
	case *ast.PointerDeclStmt:
		return ip.execPointerDecl(s, frame, taken)
	case *ast.AssignStmt:
		return ip.execAssign(s, frame)
	case *ast.CompoundAssignStmt:
		return ip.execCompoundAssign(s, frame)
	case *ast.IncDecStmt:
		return ip.execIncDec(s, frame)
	case *ast.IfStmt:
		return ip.execIf(s, frame, taken)
	case *ast.WhileStmt:
		return ip.execWhile(s, frame, taken)
	case *ast.DoWhileStmt:
		return ip.execDoWhile(s, frame, taken)
	case *ast.ForStmt:
		return ip.execFor(s, frame, taken)
	case *ast.ReturnStmt:
		return ip.execReturn(s, frame)
	case *ast.BlockStmt:
		return ip.execBlock(s, frame, taken)
	case *ast.AsmStmt:
		// Inline assembly has no interpreted meaning: it is a no-op
		// here and only takes effect under codegen.
		return ctrlNormal, nil
	case *ast.ExprStmt:
		_, err := ip.evalExpr(s.X, frame)
		if err != nil {
			return ctrl{}, err
		}
		return ctrlNormal, nil
	case *ast.BreakStmt:
		return ctrl{kind: breakingCtrl}, nil
	case *ast.ContinueStmt:
		return ctrl{kind: continuingCtrl}, nil
	default:
		return ctrl{}, diagnostics.New(diagnostics.Runtime, ip.file, stmt.Pos().Line, stmt.Pos().Column,
			"unsupported statement type %T", stmt)
	}
}

func (ip *Interp) execVarDecl(s *ast.VarDeclStmt, frame *object.Frame, taken map[string]bool) (ctrl, error) {
	var v object.Value
	if s.Init != nil {
		val, err := ip.evalExpr(s.Init, frame)
		if err != nil {
			return ctrl{}, err
		}
		v = val
	}
	cell, err := ip.newCell(s.Name, taken, v, s.VarType == ast.I32, s.Volatile, s.Position.Line, s.Position.Column)
	if err != nil {
		return ctrl{}, err
	}
	frame.Declare(s.Name, cell)
	return ctrlNormal, nil
}

func (ip *Interp) execArrayDecl(s *ast.ArrayDeclStmt, frame *object.Frame) (ctrl, error) {
	addr, err := ip.mem.Alloc(4 * s.Length)
	if err != nil {
		return ctrl{}, err
	}
	for i := 0; i < s.Length; i++ {
		var v object.Value
		if s.Init != nil && i < len(s.Init) {
			val, err := ip.evalExpr(s.Init[i], frame)
			if err != nil {
				return ctrl{}, err
			}
			v = val
		}
		if err := ip.mem.WriteWord(addr+uint32(4*i), v, ip.file, s.Position.Line, s.Position.Column); err != nil {
			return ctrl{}, err
		}
	}
	frame.DeclareArray(s.Name, &object.ArrayRef{Addr: addr, Length: s.Length})
	return ctrlNormal, nil
}

func (ip *Interp) execPointerDecl(s *ast.PointerDeclStmt, frame *object.Frame, taken map[string]bool) (ctrl, error) {
	var v object.Value
	if s.Init != nil {
		val, err := ip.evalExpr(s.Init, frame)
		if err != nil {
			return ctrl{}, err
		}
		v = val
	}
	// Pointers are themselves plain unsigned words; they only need a
	// memory slot if their own address is taken.
	cell, err := ip.newCell(s.Name, taken, v, false, false, s.Position.Line, s.Position.Column)
	if err != nil {
		return ctrl{}, err
	}
	cell.IsPointer = true
	frame.Declare(s.Name, cell)
	return ctrlNormal, nil
}

func (ip *Interp) execAssign(s *ast.AssignStmt, frame *object.Frame) (ctrl, error) {
	v, err := ip.evalExpr(s.Value, frame)
	if err != nil {
		return ctrl{}, err
	}
	if err := ip.assignTo(s.Target, frame, v); err != nil {
		return ctrl{}, err
	}
	return ctrlNormal, nil
}

func (ip *Interp) execCompoundAssign(s *ast.CompoundAssignStmt, frame *object.Frame) (ctrl, error) {
	cur, err := ip.evalExpr(s.Target, frame)
	if err != nil {
		return ctrl{}, err
	}
	rhs, err := ip.evalExpr(s.Value, frame)
	if err != nil {
		return ctrl{}, err
	}
	signed := ip.exprIsSigned(s.Target, frame)
	result, err := ip.applyBinaryOp(s.Op, cur, rhs, signed, s.Position.Line, s.Position.Column)
	if err != nil {
		return ctrl{}, err
	}
	if err := ip.assignTo(s.Target, frame, result); err != nil {
		return ctrl{}, err
	}
	return ctrlNormal, nil
}

func (ip *Interp) execIncDec(s *ast.IncDecStmt, frame *object.Frame) (ctrl, error) {
	cur, err := ip.evalExpr(s.Target, frame)
	if err != nil {
		return ctrl{}, err
	}
	var next object.Value
	if s.Op == "++" {
		next = cur + 1
	} else {
		next = cur - 1
	}
	if err := ip.assignTo(s.Target, frame, next); err != nil {
		return ctrl{}, err
	}
	return ctrlNormal, nil
}

func (ip *Interp) execIf(s *ast.IfStmt, frame *object.Frame, taken map[string]bool) (ctrl, error) {
	cond, err := ip.evalExpr(s.Cond, frame)
	if err != nil {
		return ctrl{}, err
	}
	if cond != 0 {
		return ip.execStmt(s.Then, frame, taken)
	}
	if s.Else != nil {
		return ip.execStmt(s.Else, frame, taken)
	}
	return ctrlNormal, nil
}

func (ip *Interp) execWhile(s *ast.WhileStmt, frame *object.Frame, taken map[string]bool) (ctrl, error) {
	for {
		cond, err := ip.evalExpr(s.Cond, frame)
		if err != nil {
			return ctrl{}, err
		}
		if cond == 0 {
			return ctrlNormal, nil
		}
		c, err := ip.execStmt(s.Body, frame, taken)
		if err != nil {
			return ctrl{}, err
		}
		switch c.kind {
		case returningCtrl:
			return c, nil
		case breakingCtrl:
			return ctrlNormal, nil
		case continuingCtrl, normalCtrl:
			// fall through to next iteration
		}
	}
}

func (ip *Interp) execDoWhile(s *ast.DoWhileStmt, frame *object.Frame, taken map[string]bool) (ctrl, error) {
	for {
		c, err := ip.execStmt(s.Body, frame, taken)
		if err != nil {
			return ctrl{}, err
		}
		switch c.kind {
		case returningCtrl:
			return c, nil
		case breakingCtrl:
			return ctrlNormal, nil
		}
		cond, err := ip.evalExpr(s.Cond, frame)
		if err != nil {
			return ctrl{}, err
		}
		if cond == 0 {
			return ctrlNormal, nil
		}
	}
}

func (ip *Interp) execFor(s *ast.ForStmt, frame *object.Frame, taken map[string]bool) (ctrl, error) {
	// init runs in a fresh block scope that also contains the body, so
	// a variable declared in init is visible to the condition, step,
	// and body but not to code after the loop.
	loopFrame := object.NewChildFrame(frame)
	if s.Init != nil {
		if _, err := ip.execStmt(s.Init, loopFrame, taken); err != nil {
			return ctrl{}, err
		}
	}
	for {
		if s.Cond != nil {
			cond, err := ip.evalExpr(s.Cond, loopFrame)
			if err != nil {
				return ctrl{}, err
			}
			if cond == 0 {
				return ctrlNormal, nil
			}
		}
		c, err := ip.execStmt(s.Body, loopFrame, taken)
		if err != nil {
			return ctrl{}, err
		}
		switch c.kind {
		case returningCtrl:
			return c, nil
		case breakingCtrl:
			return ctrlNormal, nil
		}
		if s.Step != nil {
			if _, err := ip.execStmt(s.Step, loopFrame, taken); err != nil {
				return ctrl{}, err
			}
		}
	}
}

func (ip *Interp) execReturn(s *ast.ReturnStmt, frame *object.Frame) (ctrl, error) {
	var v object.Value
	if s.Value != nil {
		val, err := ip.evalExpr(s.Value, frame)
		if err != nil {
			return ctrl{}, err
		}
		v = val
	}
	return ctrl{kind: returningCtrl, value: v}, nil
}

// assignTo writes v to the storage location denoted by target, which
// must be one of the three l-value shapes: identifier, array index, or
// pointer dereference.
func (ip *Interp) assignTo(target ast.Expr, frame *object.Frame, v object.Value) error {
	switch t := target.(type) {
	case *ast.Ident:
		cell, ok := frame.Lookup(t.Name)
		if !ok {
			return diagnostics.New(diagnostics.Runtime, ip.file, t.Position.Line, t.Position.Column,
				"undefined identifier %q", t.Name)
		}
		return cell.Set(ip.mem, v, ip.file, t.Position.Line, t.Position.Column)

	case *ast.IndexExpr:
		addr, err := ip.addressOfIndex(t, frame)
		if err != nil {
			return err
		}
		return ip.mem.WriteWord(addr, v, ip.file, t.Position.Line, t.Position.Column)

	case *ast.UnaryExpr:
		if t.Op != "*" {
			return diagnostics.New(diagnostics.Runtime, ip.file, t.Position.Line, t.Position.Column,
				"invalid assignment target")
		}
		addr, err := ip.evalExpr(t.X, frame)
		if err != nil {
			return err
		}
		return ip.mem.WriteWord(uint32(addr), v, ip.file, t.Position.Line, t.Position.Column)

	default:
		return diagnostics.New(diagnostics.Runtime, ip.file, target.Pos().Line, target.Pos().Column,
			"invalid assignment target")
	}
}
