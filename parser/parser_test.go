package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/skx/muc/ast"
	"github.com/skx/muc/token"
)

// ignorePositions drops every token.Position field from the comparison,
// since fixtures describe shape, not the exact line/column a human
// happened to write the source on.
var ignorePositions = cmpopts.IgnoreTypes(token.Position{})

func TestParseFunctionASTMatchesFixture(t *testing.T) {
	src := `function add(a, b) {
		return a + b;
	}`
	prog, err := Parse("t.sc", src)
	require.NoError(t, err)

	want := &ast.Program{
		Decls: []ast.Decl{
			&ast.FuncDecl{
				Name:   "add",
				Params: []string{"a", "b"},
				Body: &ast.BlockStmt{
					Stmts: []ast.Stmt{
						&ast.ReturnStmt{
							Value: &ast.BinaryExpr{
								Op:    token.PLUS,
								Left:  &ast.Ident{Name: "a"},
								Right: &ast.Ident{Name: "b"},
							},
						},
					},
				},
			},
		},
	}

	if diff := cmp.Diff(want, prog, ignorePositions); diff != "" {
		t.Errorf("parsed AST does not match fixture (-want +got):\n%s", diff)
	}
}

func TestParseGlobalVarDecl(t *testing.T) {
	prog, err := Parse("t.sc", "uint32 counter = 10;\n")
	require.NoError(t, err)
	require.Len(t, prog.Decls, 1)

	decl, ok := prog.Decls[0].(*ast.GlobalVarDecl)
	require.True(t, ok)
	require.Equal(t, "counter", decl.Name)
	require.Equal(t, ast.U32, decl.VarType)
	require.NotNil(t, decl.Init)
}

func TestParseGlobalArrayDecl(t *testing.T) {
	prog, err := Parse("t.sc", "uint32 buf[4] = { 1, 2, 3, 4 };\n")
	require.NoError(t, err)

	decl, ok := prog.Decls[0].(*ast.GlobalArrayDecl)
	require.True(t, ok)
	require.Equal(t, 4, decl.Length)
	require.Len(t, decl.Init, 4)
}

func TestParseFunctionWithParamsAndReturn(t *testing.T) {
	src := `function add(a, b) {
		return a + b;
	}`
	prog, err := Parse("t.sc", src)
	require.NoError(t, err)

	fn, ok := prog.Decls[0].(*ast.FuncDecl)
	require.True(t, ok)
	require.Equal(t, "add", fn.Name)
	require.Equal(t, []string{"a", "b"}, fn.Params)
	require.False(t, fn.IsInterrupt)
	require.Len(t, fn.Body.Stmts, 1)

	ret, ok := fn.Body.Stmts[0].(*ast.ReturnStmt)
	require.True(t, ok)
	bin, ok := ret.Value.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, "+", string(bin.Op))
}

func TestParseDuplicateFunctionIsError(t *testing.T) {
	src := `function f() { return 1; }
function f() { return 2; }`
	_, err := Parse("t.sc", src)
	require.Error(t, err)
	require.Contains(t, err.Error(), "already defined")
}

func TestParseInterruptFunction(t *testing.T) {
	src := `interrupt function onTick() { return; }`
	prog, err := Parse("t.sc", src)
	require.NoError(t, err)
	fn := prog.Decls[0].(*ast.FuncDecl)
	require.True(t, fn.IsInterrupt)
}

func TestParseIfElse(t *testing.T) {
	src := `function f() {
		if (1 < 2) {
			return 1;
		} else {
			return 2;
		}
	}`
	prog, err := Parse("t.sc", src)
	require.NoError(t, err)
	fn := prog.Decls[0].(*ast.FuncDecl)
	ifs, ok := fn.Body.Stmts[0].(*ast.IfStmt)
	require.True(t, ok)
	require.NotNil(t, ifs.Then)
	require.NotNil(t, ifs.Else)
}

func TestParseWhileLoopWithBreakContinue(t *testing.T) {
	src := `function f() {
		uint32 i = 0;
		while (i < 10) {
			if (i == 5) { break; }
			continue;
		}
	}`
	_, err := Parse("t.sc", src)
	require.NoError(t, err)
}

func TestParseBreakOutsideLoopIsError(t *testing.T) {
	_, err := Parse("t.sc", "function f() { break; }")
	require.Error(t, err)
	require.Contains(t, err.Error(), "outside of a loop")
}

func TestParseContinueOutsideLoopIsError(t *testing.T) {
	_, err := Parse("t.sc", "function f() { continue; }")
	require.Error(t, err)
	require.Contains(t, err.Error(), "outside of a loop")
}

func TestParseReturnOutsideFunctionIsError(t *testing.T) {
	_, err := Parse("t.sc", "uint32 a = 1;\nreturn;\n")
	require.Error(t, err)
}

func TestParseForLoop(t *testing.T) {
	src := `function f() {
		for (uint32 i = 0; i < 10; i++) {
		}
	}`
	prog, err := Parse("t.sc", src)
	require.NoError(t, err)
	fn := prog.Decls[0].(*ast.FuncDecl)
	forStmt, ok := fn.Body.Stmts[0].(*ast.ForStmt)
	require.True(t, ok)
	require.NotNil(t, forStmt.Init)
	require.NotNil(t, forStmt.Cond)
	require.NotNil(t, forStmt.Step)
}

func TestParseDoWhile(t *testing.T) {
	src := `function f() {
		uint32 i = 0;
		do {
			i++;
		} while (i < 3);
	}`
	_, err := Parse("t.sc", src)
	require.NoError(t, err)
}

func TestParseArrayDeclAndIndex(t *testing.T) {
	src := `function f() {
		uint32 arr[3];
		arr[0] = 5;
	}`
	prog, err := Parse("t.sc", src)
	require.NoError(t, err)
	fn := prog.Decls[0].(*ast.FuncDecl)
	require.IsType(t, &ast.ArrayDeclStmt{}, fn.Body.Stmts[0])
	assign, ok := fn.Body.Stmts[1].(*ast.AssignStmt)
	require.True(t, ok)
	require.IsType(t, &ast.IndexExpr{}, assign.Target)
}

func TestParsePointerDeclAndDeref(t *testing.T) {
	src := `function f() {
		uint32 *p = 0;
		*p = 9;
	}`
	prog, err := Parse("t.sc", src)
	require.NoError(t, err)
	fn := prog.Decls[0].(*ast.FuncDecl)
	require.IsType(t, &ast.PointerDeclStmt{}, fn.Body.Stmts[0])
	assign, ok := fn.Body.Stmts[1].(*ast.AssignStmt)
	require.True(t, ok)
	require.IsType(t, &ast.UnaryExpr{}, assign.Target)
}

func TestParseRegisterVariable(t *testing.T) {
	src := `function f() {
		register uint32 r3 = 1;
	}`
	prog, err := Parse("t.sc", src)
	require.NoError(t, err)
	fn := prog.Decls[0].(*ast.FuncDecl)
	decl := fn.Body.Stmts[0].(*ast.VarDeclStmt)
	require.True(t, decl.Register)
	require.Equal(t, "r3", decl.RegisterName)
}

func TestParseRegisterR31IsRejected(t *testing.T) {
	_, err := Parse("t.sc", "function f() { register uint32 r31 = 1; }")
	require.Error(t, err)
	require.Contains(t, err.Error(), "read-only")
}

func TestParseRegisterBadNameIsRejected(t *testing.T) {
	_, err := Parse("t.sc", "function f() { register uint32 total = 1; }")
	require.Error(t, err)
}

func TestParseCompoundAssignment(t *testing.T) {
	src := `function f() {
		uint32 a = 1;
		a += 2;
		a *= 3;
	}`
	prog, err := Parse("t.sc", src)
	require.NoError(t, err)
	fn := prog.Decls[0].(*ast.FuncDecl)
	c1 := fn.Body.Stmts[1].(*ast.CompoundAssignStmt)
	require.Equal(t, "+", string(c1.Op))
	c2 := fn.Body.Stmts[2].(*ast.CompoundAssignStmt)
	require.Equal(t, "*", string(c2.Op))
}

func TestParseIncDecStatementForms(t *testing.T) {
	src := `function f() {
		uint32 a = 1;
		a++;
		--a;
	}`
	prog, err := Parse("t.sc", src)
	require.NoError(t, err)
	fn := prog.Decls[0].(*ast.FuncDecl)
	post := fn.Body.Stmts[1].(*ast.IncDecStmt)
	require.False(t, post.Prefix)
	pre := fn.Body.Stmts[2].(*ast.IncDecStmt)
	require.True(t, pre.Prefix)
}

func TestIncDecNotAllowedInExpressionPosition(t *testing.T) {
	_, err := Parse("t.sc", "function f() { uint32 a = 1; uint32 b = a++ + 1; }")
	require.Error(t, err)
}

func TestParseFunctionCallStatementAndExpression(t *testing.T) {
	src := `function helper() { return 1; }
	function f() {
		helper();
		uint32 a = helper() + 1;
	}`
	prog, err := Parse("t.sc", src)
	require.NoError(t, err)
	fn := prog.Decls[1].(*ast.FuncDecl)
	_, ok := fn.Body.Stmts[0].(*ast.ExprStmt)
	require.True(t, ok)
}

func TestParseOperatorPrecedence(t *testing.T) {
	// 1 + 2 * 3 should parse as 1 + (2 * 3)
	prog, err := Parse("t.sc", "uint32 a = 1 + 2 * 3;\n")
	require.NoError(t, err)
	decl := prog.Decls[0].(*ast.GlobalVarDecl)
	top, ok := decl.Init.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, "+", string(top.Op))
	right, ok := top.Right.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, "*", string(right.Op))
}

func TestParseLogicalAndBitwisePrecedence(t *testing.T) {
	// a || b && c should parse as a || (b && c)
	prog, err := Parse("t.sc", "uint32 a = 1 || 0 && 1;\n")
	require.NoError(t, err)
	decl := prog.Decls[0].(*ast.GlobalVarDecl)
	top, ok := decl.Init.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, "||", string(top.Op))
	_, ok = top.Right.(*ast.BinaryExpr)
	require.True(t, ok)
}

func TestParseUnaryOperators(t *testing.T) {
	prog, err := Parse("t.sc", "int32 a = -5;\nuint32 b = !0;\nuint32 c = ~1;\n")
	require.NoError(t, err)
	for _, d := range prog.Decls {
		gv := d.(*ast.GlobalVarDecl)
		require.IsType(t, &ast.UnaryExpr{}, gv.Init)
	}
}

func TestParseAddressOfAndDeref(t *testing.T) {
	src := `function f() {
		uint32 a = 1;
		uint32 *p = &a;
		uint32 b = *p;
	}`
	_, err := Parse("t.sc", src)
	require.NoError(t, err)
}

func TestParseParenthesizedExpr(t *testing.T) {
	prog, err := Parse("t.sc", "uint32 a = (1 + 2) * 3;\n")
	require.NoError(t, err)
	decl := prog.Decls[0].(*ast.GlobalVarDecl)
	top := decl.Init.(*ast.BinaryExpr)
	require.Equal(t, "*", string(top.Op))
	require.IsType(t, &ast.ParenExpr{}, top.Left)
}

func TestParseAsmBlockPreservesVerbatimText(t *testing.T) {
	src := "function f() {\n" +
		"\tasm {\n" +
		"\t\tloop: add r1, r1, 1\n" +
		"\t\tjmp loop\n" +
		"\t};\n" +
		"}"
	prog, err := Parse("t.sc", src)
	require.NoError(t, err)
	fn := prog.Decls[0].(*ast.FuncDecl)
	asmStmt, ok := fn.Body.Stmts[0].(*ast.AsmStmt)
	require.True(t, ok)
	require.Contains(t, asmStmt.Text, "loop:")
	require.Contains(t, asmStmt.Text, "jmp loop")
}

func TestParseAsmBlockWithNestedBraces(t *testing.T) {
	src := `function f() {
		asm {
			mov r1, { 1 }
		};
	}`
	prog, err := Parse("t.sc", src)
	require.NoError(t, err)
	fn := prog.Decls[0].(*ast.FuncDecl)
	asmStmt := fn.Body.Stmts[0].(*ast.AsmStmt)
	require.Contains(t, asmStmt.Text, "mov r1, { 1 }")
}

func TestParseUnterminatedAsmBlockIsError(t *testing.T) {
	_, err := Parse("t.sc", "function f() { asm { mov r1, 1 ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unterminated asm block")
}

func TestParseVolatileQualifier(t *testing.T) {
	prog, err := Parse("t.sc", "volatile uint32 status = 0;\n")
	require.NoError(t, err)
	decl := prog.Decls[0].(*ast.GlobalVarDecl)
	require.True(t, decl.Volatile)
}

func TestParseUnexpectedTokenIsError(t *testing.T) {
	_, err := Parse("t.sc", "uint32 a = ;\n")
	require.Error(t, err)
}

func TestParseMissingSemicolonIsError(t *testing.T) {
	_, err := Parse("t.sc", "uint32 a = 1\n")
	require.Error(t, err)
}
