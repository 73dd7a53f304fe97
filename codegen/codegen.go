// Package codegen lowers a µc AST into textual m32 assembly: a header,
// a data section for globals/arrays, and a text section holding
// per-function code emitted with a fixed three-class register
// allocator and label-based control flow.
//
// A Generator holds all build state and exposes a family of `lower*`
// methods that append assembly text directly to string
// builders rather than through a templating package; one top-level
// output() method assembles the final listing.
package codegen

import (
	"fmt"
	"strings"

	"github.com/skx/muc/ast"
	"github.com/skx/muc/diagnostics"
)

// isaIncludeDefault is the second header line's include target unless
// the caller supplies a different path.
const isaIncludeDefault = "ISA.inc"

// symbolKind records what a codegen-visible name refers to: a local
// register-resident scalar, a stack-spilled scalar, a local array
// (stack offset), or a global (by data-section label).
type symbolKind int

const (
	symRegister symbolKind = iota
	symStackScalar
	symStackArray
	symGlobalScalar
	symGlobalArray
)

type symbol struct {
	kind      symbolKind
	reg       int    // valid when kind == symRegister
	offset    int    // valid when kind is a stack kind; bytes below frame base
	label     string // valid when kind is a global kind
	isPointer bool
}

// scope is one lexical block's symbol table during lowering, chained
// to its lexical parent — mirroring object.Frame's chain shape so
// codegen's name resolution matches the interpreter's.
type scope struct {
	names  map[string]*symbol
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{names: make(map[string]*symbol), parent: parent}
}

func (s *scope) declare(name string, sym *symbol) { s.names[name] = sym }

func (s *scope) lookup(name string) (*symbol, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if sym, ok := sc.names[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// loopLabels is the per-loop (continue-target, break-target) pair
// pushed on a lowering stack so nested break/continue statements
// resolve to the innermost enclosing loop.
type loopLabels struct {
	continueLabel string
	breakLabel    string
	stackDepth    int // fc.stackOffset at loop entry, for break/continue unwind
}

// Generator holds all state for one code-generation run.
type Generator struct {
	file string

	data strings.Builder
	text strings.Builder

	globals *scope

	// label counters, one per category, scoped to the whole run so
	// output is deterministic regardless of function order.
	labelCounters map[string]int

	loops []loopLabels

	isaInclude string
}

// New creates a Generator for one compilation; isaInclude overrides
// the second header line when non-empty.
func New(file, isaInclude string) *Generator {
	if isaInclude == "" {
		isaInclude = isaIncludeDefault
	}
	return &Generator{
		file:          file,
		globals:       newScope(nil),
		labelCounters: make(map[string]int),
		isaInclude:    isaInclude,
	}
}

// pushStackSlot reserves size bytes on the software stack below fc's
// frame pointer and returns the resulting offset. When the local
// register pool is exhausted, locals spill to this same software
// stack, which is also where arrays and any scalar whose address is
// taken live, since a register has no address.
func (g *Generator) pushStackSlot(fc *fnCtx, size int) int {
	fmt.Fprintf(&g.text, "\tsub r30, r30, %d\n", size)
	fc.stackOffset += size
	return fc.stackOffset
}

// unwindStackTo pops stack-resident locals down to depth without
// touching fc.stackOffset's static bookkeeping, since a break or
// continue jump bypasses the enclosing blocks' own unwind code on
// this one control-flow path only.
func (g *Generator) unwindStackTo(fc *fnCtx, depth int) {
	if delta := fc.stackOffset - depth; delta > 0 {
		fmt.Fprintf(&g.text, "\tadd r30, r30, %d ; unwind loop-body locals\n", delta)
	}
}

// nextLabel returns the next sequentially numbered label in category,
// e.g. nextLabel("if_end") == "if_end_0", then "if_end_1", ...
func (g *Generator) nextLabel(category string) string {
	n := g.labelCounters[category]
	g.labelCounters[category] = n + 1
	return fmt.Sprintf("%s_%d", category, n)
}

// Generate lowers prog into a complete assembly listing.
func Generate(file string, prog *ast.Program, isaInclude string) (string, error) {
	g := New(file, isaInclude)
	if err := g.lowerProgram(prog); err != nil {
		return "", err
	}
	return g.output(), nil
}

func (g *Generator) lowerProgram(prog *ast.Program) error {
	var funcs []*ast.FuncDecl
	var entry *ast.FuncDecl

	for _, decl := range prog.Decls {
		switch d := decl.(type) {
		case *ast.GlobalVarDecl:
			if err := g.lowerGlobalVar(d); err != nil {
				return err
			}
		case *ast.GlobalArrayDecl:
			if err := g.lowerGlobalArray(d); err != nil {
				return err
			}
		case *ast.FuncDecl:
			if d.Name == "main" {
				entry = d
			} else {
				funcs = append(funcs, d)
			}
		}
	}

	// The entry function's body is emitted first so it starts at the
	// top of the text section.
	if entry != nil {
		if err := g.lowerFunction(entry); err != nil {
			return err
		}
		fmt.Fprintf(&g.text, "\thlt\n")
	}
	for _, fn := range funcs {
		if err := g.lowerFunction(fn); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) lowerGlobalVar(d *ast.GlobalVarDecl) error {
	label := "global_" + d.Name
	init := "0"
	if lit, ok := d.Init.(*ast.IntLit); ok {
		init = fmt.Sprintf("%d", lit.Value)
	} else if d.Init != nil {
		return diagnostics.New(diagnostics.Codegen, g.file, d.Position.Line, d.Position.Column,
			"global %q initializer must be a constant expression", d.Name)
	}
	fmt.Fprintf(&g.data, "%s dd %s\n", label, init)
	g.globals.declare(d.Name, &symbol{kind: symGlobalScalar, label: label})
	return nil
}

func (g *Generator) lowerGlobalArray(d *ast.GlobalArrayDecl) error {
	label := "global_" + d.Name
	vals := make([]string, d.Length)
	for i := range vals {
		vals[i] = "0"
	}
	for i, e := range d.Init {
		lit, ok := e.(*ast.IntLit)
		if !ok {
			return diagnostics.New(diagnostics.Codegen, g.file, d.Position.Line, d.Position.Column,
				"global array %q initializer must be constant", d.Name)
		}
		if i < len(vals) {
			vals[i] = fmt.Sprintf("%d", lit.Value)
		}
	}
	fmt.Fprintf(&g.data, "%s dd %s\n", label, strings.Join(vals, ", "))
	g.globals.declare(d.Name, &symbol{kind: symGlobalArray, label: label})
	return nil
}

// output assembles the final listing: header, data section, then text
// section.
func (g *Generator) output() string {
	var out strings.Builder
	fmt.Fprintf(&out, "; m32 assembly generated by muc\n")
	fmt.Fprintf(&out, "format m32\n")
	fmt.Fprintf(&out, "include \"%s\"\n\n", g.isaInclude)
	out.WriteString("section .data\n")
	out.WriteString(g.data.String())
	out.WriteString("\nsection .text\n")
	out.WriteString(g.text.String())
	return out.String()
}
