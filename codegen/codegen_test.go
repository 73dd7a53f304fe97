package codegen

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skx/muc/parser"
)

func generate(t *testing.T, src string) string {
	t.Helper()
	prog, err := parser.Parse("t.sc", src)
	require.NoError(t, err)
	out, err := Generate("t.sc", prog, "")
	require.NoError(t, err)
	return out
}

func TestOutputHasHeaderAndSections(t *testing.T) {
	out := generate(t, "function main(){ return 0; }")
	require.Contains(t, out, "format m32")
	require.Contains(t, out, "include \"ISA.inc\"")
	require.Contains(t, out, "section .data")
	require.Contains(t, out, "section .text")
}

func TestEntryFunctionEmittedFirstAndHalts(t *testing.T) {
	src := `function helper(){ return 1; }
	function main(){ return helper(); }`
	out := generate(t, src)
	mainIdx := indexOf(out, "func_main:")
	helperIdx := indexOf(out, "func_helper:")
	require.GreaterOrEqual(t, mainIdx, 0)
	require.GreaterOrEqual(t, helperIdx, 0)
	require.Less(t, mainIdx, helperIdx, "entry function must be emitted first")
	require.Contains(t, out, "hlt")
}

func TestGlobalScalarAndArrayLowering(t *testing.T) {
	src := `uint32 counter = 7;
	uint32 table[3] = {1,2,3};
	function main(){ return counter; }`
	out := generate(t, src)
	require.Contains(t, out, "global_counter dd 7")
	require.Contains(t, out, "global_table dd 1, 2, 3")
}

func TestNonConstantGlobalInitializerIsCodegenError(t *testing.T) {
	src := `uint32 a = 1;
	uint32 b = a;
	function main(){ return 0; }`
	prog, err := parser.Parse("t.sc", src)
	require.NoError(t, err)
	_, err = Generate("t.sc", prog, "")
	require.Error(t, err)
}

func TestIfElseEmitsLabelPair(t *testing.T) {
	src := `function main(){ uint32 a=1; if(a) { return 1; } else { return 0; } }`
	out := generate(t, src)
	require.Contains(t, out, "if_else_0:")
	require.Contains(t, out, "if_end_0:")
	require.Contains(t, out, "cmpe")
	require.Contains(t, out, "cmove r31, if_else_0")
}

func TestWhileLoopEmitsBackEdge(t *testing.T) {
	src := `function main(){ uint32 i=0; while(i<10){ i=i+1; } return i; }`
	out := generate(t, src)
	require.Contains(t, out, "while_start_0:")
	require.Contains(t, out, "while_end_0:")
	require.Contains(t, out, "jmp while_start_0")
}

func TestBreakAndContinueTargetLoopLabels(t *testing.T) {
	src := `function main(){
		uint32 i=0;
		while(i<10){
			if(i==3) continue;
			if(i==7) break;
			i=i+1;
		}
		return i;
	}`
	out := generate(t, src)
	require.Contains(t, out, "jmp while_start_0")
	require.Contains(t, out, "jmp while_end_0")
}

func TestFunctionWithTooManyParametersIsCodegenError(t *testing.T) {
	src := `function six(a,b,c,d,e,f){ return a; }
	function main(){ return 0; }`
	prog, err := parser.Parse("t.sc", src)
	require.NoError(t, err)
	_, err = Generate("t.sc", prog, "")
	require.Error(t, err)
}

func TestNonLowerableIntrinsicIsCodegenError(t *testing.T) {
	src := `function main(){ timer_start(); return 0; }`
	prog, err := parser.Parse("t.sc", src)
	require.NoError(t, err)
	_, err = Generate("t.sc", prog, "")
	require.Error(t, err, "timer_start is interpreter-only, not CodegenLowerable")
}

func TestLowerableIntrinsicEmitsDirectInstruction(t *testing.T) {
	src := `function main(){ uart_write(65); return 0; }`
	out := generate(t, src)
	require.Contains(t, out, "out UART_DATA")
}

func TestUndefinedFunctionCallIsNotCodegenError(t *testing.T) {
	src := `function main(){ return missing(); }`
	prog, err := parser.Parse("t.sc", src)
	require.NoError(t, err)
	_, err = Generate("t.sc", prog, "")
	require.NoError(t, err, "an undefined call is only caught at interpretation time in this design; codegen lowers it as an ordinary call site")
}

func TestArrayAndPointerLoweringUsesFramePointerOffsets(t *testing.T) {
	src := `function main(){
		uint32 arr[4] = {1,2,3,4};
		uint32* p = &arr[0];
		return *p;
	}`
	out := generate(t, src)
	require.Contains(t, out, "array arr[4]")
	require.Contains(t, out, "load")
}

func TestAsmBlockPassesThroughVerbatim(t *testing.T) {
	src := `function main(){ asm { mov r1, 42 }; return 0; }`
	out := generate(t, src)
	require.Contains(t, out, "mov r1, 42")
	require.Contains(t, out, "; asm block, line")
}

func TestLocalRegisterExhaustionSpillsToStack(t *testing.T) {
	var src strings.Builder
	src.WriteString("function main(){\n")
	for i := 0; i < 40; i++ {
		src.WriteString("uint32 v" + strconv.Itoa(i) + " = " + strconv.Itoa(i) + ";\n")
	}
	src.WriteString("return v0;\n}\n")

	prog, err := parser.Parse("t.sc", src.String())
	require.NoError(t, err)
	out, err := Generate("t.sc", prog, "")
	require.NoError(t, err, "locals beyond the local register class (r11-r25, r11 being the frame pointer) spill to the software stack")
	require.Contains(t, out, "store [r11-4], r0 ; v14")
}

func indexOf(haystack, needle string) int {
	return strings.Index(haystack, needle)
}
