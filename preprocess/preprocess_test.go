package preprocess

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skx/muc/parser"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestDefineAndExpand(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.sc", "#define WIDTH 10\nuint32 a = WIDTH;\n")

	p := New(path)
	res, err := p.Process(path)
	require.NoError(t, err)
	require.Contains(t, res.Text, "uint32 a = 10;")
}

func TestDefineEmptyBody(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.sc", "#define DEBUG\nDEBUG uint32 a = 1;\n")

	p := New(path)
	res, err := p.Process(path)
	require.NoError(t, err)
	require.Contains(t, res.Text, " uint32 a = 1;")
}

func TestUndef(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.sc", "#define X 5\n#undef X\nuint32 a = X;\n")

	p := New(path)
	res, err := p.Process(path)
	require.NoError(t, err)
	// X is no longer a macro, so it survives verbatim as an identifier.
	require.Contains(t, res.Text, "uint32 a = X;")
}

func TestUndefUnknownIsSilentlyAllowed(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.sc", "#undef NEVER_DEFINED\nuint32 a = 1;\n")

	p := New(path)
	_, err := p.Process(path)
	require.NoError(t, err)
}

func TestIncludeQuoted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "helper.sc", "function helper(){ return 1; }\n")
	path := writeFile(t, dir, "main.sc", "#include \"helper.sc\"\nfunction main(){ return helper(); }\n")

	p := New(path)
	res, err := p.Process(path)
	require.NoError(t, err)
	require.Contains(t, res.Text, "function helper")
	require.Contains(t, res.Text, "function main")
}

func TestIncludeCycleDetected(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.sc", "#include \"b.sc\"\n")
	writeFile(t, dir, "b.sc", "#include \"a.sc\"\n")
	path := filepath.Join(dir, "a.sc")

	p := New(path)
	_, err := p.Process(path)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "circular include"))
}

func TestMacroRecursionCapIsHardError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.sc", "#define X Y\n#define Y X\nuint32 a = X;\n")

	p := New(path)
	_, err := p.Process(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "did not converge")
}

func TestMissingIncludeIsDiagnosed(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.sc", "#include \"missing.sc\"\n")

	p := New(path)
	_, err := p.Process(path)
	require.Error(t, err)
}

func TestIncludeLineOriginsNameTheIncludedFile(t *testing.T) {
	dir := t.TempDir()
	helperPath := writeFile(t, dir, "helper.sc", "uint32 bad = 1;\nuint32 also_bad = 2;\n")
	mainPath := writeFile(t, dir, "main.sc", "#include \"helper.sc\"\nfunction main(){ return 0; }\n")

	p := New(mainPath)
	res, err := p.Process(mainPath)
	require.NoError(t, err)

	// Text line 1 is "uint32 bad = 1;", copied from helper.sc line 1;
	// text line 3 is "function main(){ ... }", from main.sc line 2.
	require.Equal(t, helperPath, res.Lines[1].File)
	require.Equal(t, 1, res.Lines[1].Line)
	require.Equal(t, helperPath, res.Lines[2].File)
	require.Equal(t, 2, res.Lines[2].Line)
	require.Equal(t, mainPath, res.Lines[3].File)
	require.Equal(t, 2, res.Lines[3].Line)
}

func TestParserReportsOriginalFileForIncludedText(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "helper.sc", "bogus_type x;\n") // malformed: not a recognized type keyword
	mainPath := writeFile(t, dir, "main.sc", "#include \"helper.sc\"\nfunction main(){ return 0; }\n")

	p := New(mainPath)
	res, err := p.Process(mainPath)
	require.NoError(t, err)

	origin := func(textLine int) (string, int) {
		if textLine >= 1 && textLine < len(res.Lines) {
			if o := res.Lines[textLine]; o.File != "" {
				return o.File, o.Line
			}
		}
		return mainPath, textLine
	}

	_, perr := parser.ParseWithOrigin(mainPath, res.Text, origin)
	require.Error(t, perr)
	require.Contains(t, perr.Error(), filepath.Join(dir, "helper.sc"))
}
