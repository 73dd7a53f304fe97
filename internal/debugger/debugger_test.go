package debugger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skx/muc/parser"
)

func TestStepPausesBeforeEveryStatement(t *testing.T) {
	prog, err := parser.Parse("t.sc", `
		function main() {
			uint32 a = 1;
			uint32 b = 2;
			return a + b;
		}`)
	require.NoError(t, err)

	dbg, err := New("t.sc", prog)
	require.NoError(t, err)
	dbg.Start()

	// Each Step call blocks until the interpreter reaches its next
	// paused statement (or finishes), so counting calls counts pauses.
	steps := 0
	for {
		ok := dbg.Step()
		steps++
		if !ok {
			break
		}
	}
	require.GreaterOrEqual(t, steps, 3, "expected to pause before each of the three statements")

	v, err := dbg.Result()
	require.NoError(t, err)
	require.Equal(t, uint32(3), v)
}

func TestContinueRunsToCompletion(t *testing.T) {
	prog, err := parser.Parse("t.sc", `function main() { return 41 + 1; }`)
	require.NoError(t, err)

	dbg, err := New("t.sc", prog)
	require.NoError(t, err)
	dbg.Start()

	v, err := dbg.Continue()
	require.NoError(t, err)
	require.Equal(t, uint32(42), v)
	require.True(t, dbg.Done())
}
