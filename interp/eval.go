package interp

import (
	"github.com/skx/muc/ast"
	"github.com/skx/muc/diagnostics"
	"github.com/skx/muc/object"
	"github.com/skx/muc/token"
)

func (ip *Interp) evalExpr(expr ast.Expr, frame *object.Frame) (object.Value, error) {
	switch e := expr.(type) {
	case *ast.IntLit:
		return object.Value(e.Value), nil

	case *ast.Ident:
		if cell, ok := frame.Lookup(e.Name); ok {
			return cell.Get(ip.mem, ip.file, e.Position.Line, e.Position.Column)
		}
		return 0, diagnostics.New(diagnostics.Runtime, ip.file, e.Position.Line, e.Position.Column,
			"undefined identifier %q", e.Name)

	case *ast.ParenExpr:
		return ip.evalExpr(e.X, frame)

	case *ast.UnaryExpr:
		return ip.evalUnary(e, frame)

	case *ast.BinaryExpr:
		return ip.evalBinary(e, frame)

	case *ast.IndexExpr:
		addr, err := ip.addressOfIndex(e, frame)
		if err != nil {
			return 0, err
		}
		return ip.mem.ReadWord(addr, ip.file, e.Position.Line, e.Position.Column)

	case *ast.CallExpr:
		return ip.evalCall(e, frame)

	default:
		return 0, diagnostics.New(diagnostics.Runtime, ip.file, expr.Pos().Line, expr.Pos().Column,
			"unsupported expression type %T", expr)
	}
}

func (ip *Interp) evalUnary(e *ast.UnaryExpr, frame *object.Frame) (object.Value, error) {
	switch e.Op {
	case token.AMP:
		return ip.addressOf(e.X, frame)

	case token.ASTERISK:
		addr, err := ip.evalExpr(e.X, frame)
		if err != nil {
			return 0, err
		}
		return ip.mem.ReadWord(uint32(addr), ip.file, e.Position.Line, e.Position.Column)

	case token.MINUS:
		v, err := ip.evalExpr(e.X, frame)
		if err != nil {
			return 0, err
		}
		return object.Value(uint32(-int32(v))), nil

	case token.BANG:
		v, err := ip.evalExpr(e.X, frame)
		if err != nil {
			return 0, err
		}
		if v == 0 {
			return 1, nil
		}
		return 0, nil

	case token.TILDE:
		v, err := ip.evalExpr(e.X, frame)
		if err != nil {
			return 0, err
		}
		return ^v, nil

	default:
		return 0, diagnostics.New(diagnostics.Runtime, ip.file, e.Position.Line, e.Position.Column,
			"unsupported unary operator %q", e.Op)
	}
}

// addressOf computes the storage address denoted by &x: for scalars,
// the address of their allocated cell (which always exists in memory
// because address-taken scalars are arena-allocated); for
// array-indexed lvalues, the base plus 4×index.
func (ip *Interp) addressOf(target ast.Expr, frame *object.Frame) (object.Value, error) {
	switch t := target.(type) {
	case *ast.Ident:
		if cell, ok := frame.Lookup(t.Name); ok {
			if !cell.HasAddr {
				return 0, diagnostics.New(diagnostics.Runtime, ip.file, t.Position.Line, t.Position.Column,
					"internal error: address-of a non-arena scalar %q", t.Name)
			}
			return object.Value(cell.Addr), nil
		}
		if arr, ok := frame.LookupArray(t.Name); ok {
			return object.Value(arr.Addr), nil
		}
		return 0, diagnostics.New(diagnostics.Runtime, ip.file, t.Position.Line, t.Position.Column,
			"undefined identifier %q", t.Name)

	case *ast.IndexExpr:
		addr, err := ip.addressOfIndex(t, frame)
		return object.Value(addr), err

	case *ast.ParenExpr:
		return ip.addressOf(t.X, frame)

	default:
		return 0, diagnostics.New(diagnostics.Runtime, ip.file, target.Pos().Line, target.Pos().Column,
			"invalid operand to address-of")
	}
}

// addressOfIndex computes the address of a[e]: the array's base
// address plus 4×index, since a[e] is exactly *(a + 4·e).
func (ip *Interp) addressOfIndex(e *ast.IndexExpr, frame *object.Frame) (uint32, error) {
	idxVal, err := ip.evalExpr(e.Index, frame)
	if err != nil {
		return 0, err
	}
	idx := int(int32(idxVal))

	if id, ok := e.Base.(*ast.Ident); ok {
		if arr, ok := frame.LookupArray(id.Name); ok {
			if idx < 0 || idx >= arr.Length {
				return 0, diagnostics.New(diagnostics.Runtime, ip.file, e.Position.Line, e.Position.Column,
					"array index %d out of bounds (length %d)", idx, arr.Length)
			}
			return arr.Addr + uint32(4*idx), nil
		}
	}

	// Otherwise the base is a pointer-valued expression: p[i] == *(p + 4i).
	baseVal, err := ip.evalExpr(e.Base, frame)
	if err != nil {
		return 0, err
	}
	return uint32(baseVal) + uint32(4*idx), nil
}

func (ip *Interp) evalBinary(e *ast.BinaryExpr, frame *object.Frame) (object.Value, error) {
	// Logical && and || short-circuit.
	if e.Op == token.AND {
		l, err := ip.evalExpr(e.Left, frame)
		if err != nil {
			return 0, err
		}
		if l == 0 {
			return 0, nil
		}
		r, err := ip.evalExpr(e.Right, frame)
		if err != nil {
			return 0, err
		}
		if r != 0 {
			return 1, nil
		}
		return 0, nil
	}
	if e.Op == token.OR {
		l, err := ip.evalExpr(e.Left, frame)
		if err != nil {
			return 0, err
		}
		if l != 0 {
			return 1, nil
		}
		r, err := ip.evalExpr(e.Right, frame)
		if err != nil {
			return 0, err
		}
		if r != 0 {
			return 1, nil
		}
		return 0, nil
	}

	l, err := ip.evalExpr(e.Left, frame)
	if err != nil {
		return 0, err
	}
	r, err := ip.evalExpr(e.Right, frame)
	if err != nil {
		return 0, err
	}

	// Pointer arithmetic scales the non-pointer operand by the
	// element size: p + n scales n by 4 when p is pointer-typed; for
	// two raw integers no scaling occurs.
	if e.Op == token.PLUS || e.Op == token.MINUS {
		lp := ip.exprIsPointer(e.Left, frame)
		rp := ip.exprIsPointer(e.Right, frame)
		switch {
		case lp && !rp:
			r *= 4
		case rp && !lp && e.Op == token.PLUS:
			l *= 4
		}
	}

	signed := ip.exprIsSigned(e.Left, frame) || ip.exprIsSigned(e.Right, frame)
	return ip.applyBinaryOp(e.Op, l, r, signed, e.Position.Line, e.Position.Column)
}

// exprIsPointer reports whether expr is known (via a PointerDeclStmt
// binding) to carry a pointer value, for the scaling rule above.
func (ip *Interp) exprIsPointer(expr ast.Expr, frame *object.Frame) bool {
	switch e := expr.(type) {
	case *ast.Ident:
		if cell, ok := frame.Lookup(e.Name); ok {
			return cell.IsPointer
		}
		return false
	case *ast.ParenExpr:
		return ip.exprIsPointer(e.X, frame)
	default:
		return false
	}
}

// applyBinaryOp implements the arithmetic, bitwise, and relational
// operator set in terms of a chosen signedness: if either operand is
// declared int32, the operation is signed; otherwise it is unsigned.
func (ip *Interp) applyBinaryOp(op token.Type, l, r object.Value, signed bool, line, col int) (object.Value, error) {
	switch op {
	case token.PLUS:
		return l + r, nil
	case token.MINUS:
		return l - r, nil
	case token.ASTERISK:
		return l * r, nil

	case token.SLASH:
		if r == 0 {
			return 0, diagnostics.New(diagnostics.Runtime, ip.file, line, col, "division by zero")
		}
		if signed {
			return object.Value(uint32(int32(l) / int32(r))), nil
		}
		return object.Value(uint32(l) / uint32(r)), nil

	case token.PERCENT:
		if r == 0 {
			return 0, diagnostics.New(diagnostics.Runtime, ip.file, line, col, "modulo by zero")
		}
		if signed {
			return object.Value(uint32(int32(l) % int32(r))), nil
		}
		return object.Value(uint32(l) % uint32(r)), nil

	case token.AMP:
		return l & r, nil
	case token.PIPE:
		return l | r, nil
	case token.CARET:
		return l ^ r, nil
	case token.SHL:
		return l << (uint32(r) & 31), nil
	case token.SHR:
		return l >> (uint32(r) & 31), nil

	case token.EQ:
		return boolValue(l == r), nil
	case token.NOTEQ:
		return boolValue(l != r), nil

	case token.LT:
		if signed {
			return boolValue(int32(l) < int32(r)), nil
		}
		return boolValue(uint32(l) < uint32(r)), nil
	case token.LTE:
		if signed {
			return boolValue(int32(l) <= int32(r)), nil
		}
		return boolValue(uint32(l) <= uint32(r)), nil
	case token.GT:
		if signed {
			return boolValue(int32(l) > int32(r)), nil
		}
		return boolValue(uint32(l) > uint32(r)), nil
	case token.GTE:
		if signed {
			return boolValue(int32(l) >= int32(r)), nil
		}
		return boolValue(uint32(l) >= uint32(r)), nil

	default:
		return 0, diagnostics.New(diagnostics.Runtime, ip.file, line, col, "unsupported binary operator %q", op)
	}
}

func boolValue(b bool) object.Value {
	if b {
		return 1
	}
	return 0
}

// exprIsSigned approximates the declared type of an expression for
// the purpose of choosing signed vs. unsigned comparison/division.
// Identifiers carry their declared signedness; unary minus produces a
// signed result; everything else defaults to unsigned.
func (ip *Interp) exprIsSigned(expr ast.Expr, frame *object.Frame) bool {
	switch e := expr.(type) {
	case *ast.Ident:
		if cell, ok := frame.Lookup(e.Name); ok {
			return cell.Signed
		}
		return false
	case *ast.ParenExpr:
		return ip.exprIsSigned(e.X, frame)
	case *ast.UnaryExpr:
		if e.Op == token.MINUS {
			return true
		}
		return ip.exprIsSigned(e.X, frame)
	case *ast.BinaryExpr:
		return ip.exprIsSigned(e.Left, frame) || ip.exprIsSigned(e.Right, frame)
	default:
		return false
	}
}

func (ip *Interp) evalCall(e *ast.CallExpr, frame *object.Frame) (object.Value, error) {
	args := make([]object.Value, len(e.Args))
	for i, a := range e.Args {
		v, err := ip.evalExpr(a, frame)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}

	if intr, ok := intrinsics[e.Func]; ok {
		if intr.arity != len(args) {
			return 0, diagnostics.New(diagnostics.Runtime, ip.file, e.Position.Line, e.Position.Column,
				"intrinsic %q expects %d argument(s), got %d", e.Func, intr.arity, len(args))
		}
		return intr.fn(ip, args, e.Position.Line, e.Position.Column)
	}

	fn, ok := ip.funcs[e.Func]
	if !ok {
		return 0, diagnostics.New(diagnostics.Runtime, ip.file, e.Position.Line, e.Position.Column,
			"undefined function %q", e.Func)
	}
	return ip.callFunction(fn, args, e.Position.Line, e.Position.Column)
}
