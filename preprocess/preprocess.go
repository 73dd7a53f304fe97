// Package preprocess implements the textual preprocessor: inclusion,
// macro definition/removal, and expansion, as specified for the µc
// pipeline. Grounded on the rest of the pipeline's hand-rolled-cursor
// scanning idiom (see lexer.Lexer), but operating line-at-a-time since
// directives are column-zero, line-oriented constructs.
package preprocess

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/skx/muc/diagnostics"
)

// maxExpansionPasses bounds macro-expansion iteration; exceeding it
// without reaching a fixed point is treated as suspected recursion.
const maxExpansionPasses = 64

// LineOrigin records which source file/line a line of preprocessed
// output was copied from, so the lexer can report original positions.
type LineOrigin struct {
	File string
	Line int
}

// Result is the output of a preprocessing run.
type Result struct {
	// Text is the single concatenated, macro-expanded source text.
	Text string

	// Lines[i] gives the origin of the (1-based) i-th line of Text;
	// Lines[0] is unused so that Lines[lineNo] indexes directly.
	Lines []LineOrigin
}

// Preprocessor holds macro-table and inclusion-cycle state for one
// preprocessing run.
type Preprocessor struct {
	baseDir string
	macros  map[string]string

	// inProgress is the stack of files currently being included,
	// used to detect #include cycles.
	inProgress []string
}

// New creates a Preprocessor rooted at the directory containing the
// initial source file.
func New(initialPath string) *Preprocessor {
	return &Preprocessor{
		baseDir: filepath.Dir(initialPath),
		macros:  make(map[string]string),
	}
}

// Process preprocesses the named file and returns the concatenated,
// expanded text plus its line-origin map.
func (p *Preprocessor) Process(path string) (*Result, error) {
	var out []string
	origins := []LineOrigin{{}} // index 0 unused; line 1 of Text is origins[1]

	if err := p.processFile(path, &out, &origins); err != nil {
		return nil, err
	}

	text := strings.Join(out, "\n")
	expanded, err := p.expandMacros(text)
	if err != nil {
		return nil, err
	}

	return &Result{Text: expanded, Lines: origins}, nil
}

// processFile reads path line-by-line, resolving #include directives
// recursively and recording #define/#undef, appending plain source
// lines (with their origin) to out/origins.
func (p *Preprocessor) processFile(path string, out *[]string, origins *[]LineOrigin) error {
	resolved, err := p.resolveIncludePath(path, "")
	if err != nil {
		return err
	}

	for _, f := range p.inProgress {
		if f == resolved {
			return diagnostics.New(diagnostics.Preprocessing, path, 0, 0,
				"circular include detected: %s -> %s", strings.Join(p.inProgress, " -> "), resolved)
		}
	}
	p.inProgress = append(p.inProgress, resolved)
	defer func() { p.inProgress = p.inProgress[:len(p.inProgress)-1] }()

	raw, err := os.ReadFile(resolved)
	if err != nil {
		return diagnostics.Wrap(diagnostics.Preprocessing, path, 0, 0, err, "cannot read %q", path)
	}

	// A final newline ends the last line rather than starting an empty
	// one, so it adds no line to the output or to the origin map.
	lines := strings.Split(strings.TrimSuffix(normalizeNewlines(string(raw)), "\n"), "\n")
	for i, line := range lines {
		lineNo := i + 1
		directive, body, isDirective := splitDirective(line)
		if !isDirective {
			*out = append(*out, line)
			*origins = append(*origins, LineOrigin{File: resolved, Line: lineNo})
			continue
		}

		switch directive {
		case "include":
			incPath, err := parseIncludeOperand(body)
			if err != nil {
				return diagnostics.New(diagnostics.Preprocessing, resolved, lineNo, 1,
					"malformed #include directive: %s", err)
			}
			if err := p.processInclude(resolved, incPath, out, origins); err != nil {
				return err
			}

		case "define":
			name, value := splitDefine(body)
			if name == "" {
				return diagnostics.New(diagnostics.Preprocessing, resolved, lineNo, 1,
					"malformed #define directive")
			}
			p.macros[name] = value

		case "undef":
			name := strings.TrimSpace(body)
			delete(p.macros, name) // undefining an unknown name is silently allowed

		default:
			return diagnostics.New(diagnostics.Preprocessing, resolved, lineNo, 1,
				"unrecognized preprocessor directive %q", directive)
		}
	}

	return nil
}

// processInclude resolves and recursively processes one #include
// target relative to the including file.
func (p *Preprocessor) processInclude(includingFile, target string, out *[]string, origins *[]LineOrigin) error {
	resolved, err := p.resolveIncludePath(target, filepath.Dir(includingFile))
	if err != nil {
		return diagnostics.Wrap(diagnostics.Preprocessing, includingFile, 0, 0, err,
			"cannot find include %q", target)
	}
	return p.processFile(resolved, out, origins)
}

// resolveIncludePath searches, in order: absolute path, relative to
// the including file, relative to the initial base directory, then
// the current working directory.
func (p *Preprocessor) resolveIncludePath(target, includingDir string) (string, error) {
	if filepath.IsAbs(target) {
		if fileExists(target) {
			return target, nil
		}
		return "", os.ErrNotExist
	}

	candidates := []string{}
	if includingDir != "" {
		candidates = append(candidates, filepath.Join(includingDir, target))
	}
	candidates = append(candidates, filepath.Join(p.baseDir, target))
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, target))
	}
	candidates = append(candidates, target)

	for _, c := range candidates {
		if fileExists(c) {
			return c, nil
		}
	}
	return "", os.ErrNotExist
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// splitDirective reports whether line is a column-zero "#directive"
// line, returning the directive name and the remainder of the line.
func splitDirective(line string) (directive, rest string, ok bool) {
	if !strings.HasPrefix(line, "#") {
		return "", "", false
	}
	body := strings.TrimPrefix(line, "#")
	body = strings.TrimLeft(body, " \t")
	i := 0
	for i < len(body) && isIdentRune(rune(body[i])) {
		i++
	}
	return body[:i], body[i:], true
}

func isIdentRune(ch rune) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}

// parseIncludeOperand extracts the path from `"path"` or `<path>`.
func parseIncludeOperand(body string) (string, error) {
	body = strings.TrimSpace(body)
	if len(body) < 2 {
		return "", errNoOperand
	}
	open, close := body[0], body[len(body)-1]
	if (open == '"' && close == '"') || (open == '<' && close == '>') {
		return body[1 : len(body)-1], nil
	}
	return "", errNoOperand
}

var errNoOperand = errors.New(`expected "path" or <path>`)

// splitDefine splits `#define NAME rest-of-line` into NAME and the
// substitution body (trailing newline already stripped by our
// line-based scan). `#define NAME` alone yields an empty body.
func splitDefine(body string) (name, value string) {
	body = strings.TrimLeft(body, " \t")
	i := 0
	for i < len(body) && isIdentRune(rune(body[i])) {
		i++
	}
	name = body[:i]
	rest := body[i:]
	rest = strings.TrimLeft(rest, " \t")
	return name, rest
}

// expandMacros repeatedly substitutes identifier tokens matching a
// defined macro name with that macro's body text, until a pass makes
// no further changes or the iteration cap is hit.
func (p *Preprocessor) expandMacros(text string) (string, error) {
	if len(p.macros) == 0 {
		return text, nil
	}

	for pass := 0; pass < maxExpansionPasses; pass++ {
		expanded, changed := expandOnce(text, p.macros)
		if !changed {
			return expanded, nil
		}
		text = expanded
	}
	return "", diagnostics.New(diagnostics.Preprocessing, "", 0, 0,
		"macro expansion did not converge after %d passes (suspected recursive macro)", maxExpansionPasses)
}

// expandOnce performs a single textual pass, replacing every
// identifier-boundary token equal to a macro name with its body.
func expandOnce(text string, macros map[string]string) (string, bool) {
	var b strings.Builder
	changed := false
	i := 0
	for i < len(text) {
		ch := rune(text[i])
		if isIdentStart(ch) {
			j := i + 1
			for j < len(text) && isIdentRune(rune(text[j])) {
				j++
			}
			word := text[i:j]
			if repl, ok := macros[word]; ok {
				b.WriteString(repl)
				changed = true
			} else {
				b.WriteString(word)
			}
			i = j
			continue
		}
		b.WriteByte(text[i])
		i++
	}
	return b.String(), changed
}

func isIdentStart(ch rune) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return s
}
