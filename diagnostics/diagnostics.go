// Package diagnostics defines the uniform error representation shared
// by every stage of the pipeline: preprocessor, lexer, parser,
// interpreter, and code generator each fail with a Diagnostic rather
// than a bare error, so a driver can always print (kind, file, line,
// column, message).
package diagnostics

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies which pipeline stage raised a Diagnostic.
type Kind int

// The five diagnostic taxonomies named by the design.
const (
	Preprocessing Kind = iota
	Lex
	Parse
	Runtime
	Codegen
)

func (k Kind) String() string {
	switch k {
	case Preprocessing:
		return "PreprocessingError"
	case Lex:
		return "LexError"
	case Parse:
		return "ParseError"
	case Runtime:
		return "RuntimeError"
	case Codegen:
		return "CodegenError"
	default:
		return "Error"
	}
}

// Diagnostic is the single error type returned by every pipeline stage.
type Diagnostic struct {
	Kind    Kind
	File    string
	Line    int
	Column  int
	Message string

	// Cause holds an underlying error (e.g. an os.PathError from a
	// missing include, or a strconv error from a malformed literal),
	// wrapped with github.com/pkg/errors so callers can recover it via
	// errors.Cause or errors.As.
	Cause error
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s: %s:%d:%d: %s", d.Kind, d.File, d.Line, d.Column, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.Kind, d.File, d.Message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (d *Diagnostic) Unwrap() error {
	return d.Cause
}

// New builds a Diagnostic with no underlying cause.
func New(kind Kind, file string, line, col int, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{
		Kind:    kind,
		File:    file,
		Line:    line,
		Column:  col,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap builds a Diagnostic around an existing error, annotating it with
// pkg/errors so the original cause survives unwrapping.
func Wrap(kind Kind, file string, line, col int, cause error, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{
		Kind:    kind,
		File:    file,
		Line:    line,
		Column:  col,
		Message: fmt.Sprintf(format, args...),
		Cause:   errors.Wrap(cause, fmt.Sprintf(format, args...)),
	}
}
