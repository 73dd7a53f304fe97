// Package interp implements the tree-walking evaluator over the µc
// AST: lexically-scoped environments, 32-bit modular arithmetic,
// arrays, pointers into a simulated byte-addressable memory, and
// emulated MCU peripherals.
//
// A single Interp is built from a parsed program, exposes one Run
// method, and returns the program's 32-bit result plus an error.
package interp

import (
	"io"
	"os"

	"github.com/skx/muc/ast"
	"github.com/skx/muc/diagnostics"
	"github.com/skx/muc/object"
)

// defaultMemorySize bounds the simulated address space used for
// globals, arrays, and address-taken scalars.
const defaultMemorySize = 1 << 20 // 1 MiB

// defaultRecursionCap bounds call depth so runaway recursion fails
// with a diagnostic instead of exhausting the host stack.
const defaultRecursionCap = 2048

// defaultTimerTick is how far the emulated timer advances per
// timer_expired poll, guaranteeing a program polling it makes progress.
const defaultTimerTick = 1

// gpioBankSize is the number of GPIO slots the emulated bank provides;
// Peripherals.GPIOPinCount narrows gpio_set/gpio_read/gpio_write to a
// prefix of it but can never widen past it.
const gpioBankSize = 32

// ctrlKind is the interpreter's control-flow state machine: normal,
// returning(value), breaking, continuing.
type ctrlKind int

const (
	normalCtrl ctrlKind = iota
	returningCtrl
	breakingCtrl
	continuingCtrl
)

type ctrl struct {
	kind  ctrlKind
	value object.Value
}

var ctrlNormal = ctrl{kind: normalCtrl}

// Peripherals holds the emulated MCU peripheral state shared across a
// single interpreter run: UART sink/source, a 32-slot GPIO bank, and
// one timer. internal/debugger renders this struct's live state as a
// pure observer.
type Peripherals struct {
	UARTSink   io.Writer
	UARTSource io.Reader
	UARTBaud   uint32

	GPIO [gpioBankSize]uint32

	// GPIOPinCount narrows gpio_set/gpio_read/gpio_write to pins
	// [0, GPIOPinCount) instead of the full 32-slot bank, mirroring a
	// board's actual pinout. 0 means "use every slot".
	GPIOPinCount int

	TimerMode    uint32
	TimerPeriod  uint32
	TimerValue   uint32
	TimerRunning bool
	TimerTick    uint32

	InterruptsEnabled bool
}

// NewPeripherals returns peripheral state with sensible defaults: UART
// sink bound to process stdout, UART source returning 0 when unset, and
// every GPIO slot available.
func NewPeripherals() *Peripherals {
	return &Peripherals{
		UARTSink:     os.Stdout,
		TimerTick:    defaultTimerTick,
		GPIOPinCount: gpioBankSize,
	}
}

// gpioPinCount returns the number of addressable GPIO pins, treating an
// unset or out-of-range GPIOPinCount as "use the full bank".
func (p *Peripherals) gpioPinCount() int {
	if p.GPIOPinCount <= 0 || p.GPIOPinCount > len(p.GPIO) {
		return len(p.GPIO)
	}
	return p.GPIOPinCount
}

// Interp evaluates one program: its set of function declarations, the
// global frame, and the shared simulated memory and peripheral state.
type Interp struct {
	file    string
	funcs   map[string]*ast.FuncDecl
	global  *object.Frame
	mem     *object.Memory
	periph  *Peripherals
	depth   int
	maxCall int

	// addrTaken caches, per function name, the set of local names
	// whose address is taken somewhere in that function's body. Those
	// names are allocated in the memory arena instead of living only
	// in the environment map, so &x and *p see one address space.
	addrTaken map[string]map[string]bool

	// step, when set, is called before every statement executes. It is
	// a pure observer hook for internal/debugger's single-step TUI and
	// never alters control flow or values.
	step StepFunc
}

// StepFunc observes one about-to-execute statement and its current
// frame. internal/debugger uses this to render live state and to block
// (on its own synchronization, not the interpreter's) between steps.
type StepFunc func(stmt ast.Stmt, frame *object.Frame)

// SetStepHook installs or clears (pass nil) the per-statement observer.
func (ip *Interp) SetStepHook(f StepFunc) { ip.step = f }

// Memory exposes the interpreter's simulated address space for an
// observer such as internal/debugger.
func (ip *Interp) Memory() *object.Memory { return ip.mem }

// GlobalFrame exposes the root environment frame for an observer such
// as internal/debugger.
func (ip *Interp) GlobalFrame() *object.Frame { return ip.global }

// New builds an Interp ready to run prog. Call Run to execute `main`.
func New(file string, prog *ast.Program) (*Interp, error) {
	ip := &Interp{
		file:      file,
		funcs:     make(map[string]*ast.FuncDecl),
		global:    object.NewGlobalFrame(),
		mem:       object.NewMemory(defaultMemorySize),
		periph:    NewPeripherals(),
		maxCall:   defaultRecursionCap,
		addrTaken: make(map[string]map[string]bool),
	}

	for _, decl := range prog.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			ip.funcs[d.Name] = d
		}
	}
	for _, decl := range prog.Decls {
		switch d := decl.(type) {
		case *ast.GlobalVarDecl:
			if err := ip.declareGlobalVar(d); err != nil {
				return nil, err
			}
		case *ast.GlobalArrayDecl:
			if err := ip.declareGlobalArray(d); err != nil {
				return nil, err
			}
		}
	}
	return ip, nil
}

// SetPeripherals overrides the default peripheral bindings (e.g. to
// redirect the UART sink during tests, or to apply internal/config
// defaults).
func (ip *Interp) SetPeripherals(p *Peripherals) { ip.periph = p }

// Peripherals exposes the live peripheral state for an observer such
// as internal/debugger.
func (ip *Interp) Peripherals() *Peripherals { return ip.periph }

func (ip *Interp) declareGlobalVar(d *ast.GlobalVarDecl) error {
	// Globals are always allocated in the memory arena: any global may
	// have its address taken from any function, so there is no
	// function-local prepass that could rule it out.
	addr, err := ip.mem.Alloc(4)
	if err != nil {
		return err
	}
	cell := &object.Cell{Addr: addr, HasAddr: true, Signed: d.VarType == ast.I32, Volatile: d.Volatile}
	var initVal object.Value
	if d.Init != nil {
		v, err := ip.evalExpr(d.Init, ip.global)
		if err != nil {
			return err
		}
		initVal = v
	}
	if err := cell.Set(ip.mem, initVal, ip.file, d.Position.Line, d.Position.Column); err != nil {
		return err
	}
	ip.global.Declare(d.Name, cell)
	return nil
}

func (ip *Interp) declareGlobalArray(d *ast.GlobalArrayDecl) error {
	addr, err := ip.mem.Alloc(4 * d.Length)
	if err != nil {
		return err
	}
	for i := 0; i < d.Length; i++ {
		var v object.Value
		if d.Init != nil && i < len(d.Init) {
			val, err := ip.evalExpr(d.Init[i], ip.global)
			if err != nil {
				return err
			}
			v = val
		}
		if err := ip.mem.WriteWord(addr+uint32(4*i), v, ip.file, d.Position.Line, d.Position.Column); err != nil {
			return err
		}
	}
	ip.global.DeclareArray(d.Name, &object.ArrayRef{Addr: addr, Length: d.Length})
	return nil
}

// Run executes `main` with zero arguments and returns its returned
// value, or 0 if it falls off the end without a `return`.
func (ip *Interp) Run() (uint32, error) {
	fn, ok := ip.funcs["main"]
	if !ok {
		return 0, diagnostics.New(diagnostics.Runtime, ip.file, 0, 0, "undefined function %q", "main")
	}
	v, err := ip.callFunction(fn, nil, fn.Position.Line, fn.Position.Column)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// callFunction evaluates already-computed argument values against fn,
// binding them positionally.
func (ip *Interp) callFunction(fn *ast.FuncDecl, args []object.Value, line, col int) (object.Value, error) {
	ip.depth++
	defer func() { ip.depth-- }()
	if ip.depth > ip.maxCall {
		return 0, diagnostics.New(diagnostics.Runtime, ip.file, line, col,
			"recursion depth exceeded calling %q", fn.Name)
	}
	if len(args) != len(fn.Params) {
		return 0, diagnostics.New(diagnostics.Runtime, ip.file, line, col,
			"function %q expects %d argument(s), got %d", fn.Name, len(fn.Params), len(args))
	}

	taken := ip.addressTakenNames(fn)
	base := object.NewCallFrame(ip.global)
	mark := ip.mem.Mark()
	defer ip.mem.Reset(mark)

	for i, pname := range fn.Params {
		cell, err := ip.newCell(pname, taken, args[i], false, false, line, col)
		if err != nil {
			return 0, err
		}
		base.Declare(pname, cell)
	}

	c, err := ip.execBlock(fn.Body, base, taken)
	if err != nil {
		return 0, err
	}
	if c.kind == returningCtrl {
		return c.value, nil
	}
	return 0, nil
}

// newCell builds a Cell for a just-declared scalar, allocating it in
// memory when its name is address-taken in the owning function.
func (ip *Interp) newCell(name string, taken map[string]bool, v object.Value, signed, volatile bool, line, col int) (*object.Cell, error) {
	if taken[name] {
		addr, err := ip.mem.Alloc(4)
		if err != nil {
			return nil, err
		}
		cell := &object.Cell{Addr: addr, HasAddr: true, Signed: signed, Volatile: volatile}
		if err := cell.Set(ip.mem, v, ip.file, line, col); err != nil {
			return nil, err
		}
		return cell, nil
	}
	return &object.Cell{Cached: v, Signed: signed, Volatile: volatile}, nil
}

// addressTakenNames lazily computes and caches the set of local names
// whose address is taken anywhere within fn's body or parameter list.
func (ip *Interp) addressTakenNames(fn *ast.FuncDecl) map[string]bool {
	if s, ok := ip.addrTaken[fn.Name]; ok {
		return s
	}
	s := make(map[string]bool)
	collectAddressTaken(fn.Body, s)
	ip.addrTaken[fn.Name] = s
	return s
}

// CollectAddressTaken exposes the address-taken-name analysis for
// callers outside this package (codegen uses it to decide which
// locals must be stack-resident rather than register-resident, since
// a register has no address).
func CollectAddressTaken(body *ast.BlockStmt) map[string]bool {
	out := make(map[string]bool)
	collectAddressTaken(body, out)
	return out
}

func collectAddressTaken(n ast.Node, out map[string]bool) {
	switch v := n.(type) {
	case *ast.BlockStmt:
		for _, s := range v.Stmts {
			collectAddressTaken(s, out)
		}
	case *ast.VarDeclStmt:
		if v.Init != nil {
			collectAddressTaken(v.Init, out)
		}
	case *ast.ArrayDeclStmt:
		for _, e := range v.Init {
			collectAddressTaken(e, out)
		}
	case *ast.PointerDeclStmt:
		if v.Init != nil {
			collectAddressTaken(v.Init, out)
		}
	case *ast.AssignStmt:
		collectAddressTaken(v.Target, out)
		collectAddressTaken(v.Value, out)
	case *ast.CompoundAssignStmt:
		collectAddressTaken(v.Target, out)
		collectAddressTaken(v.Value, out)
	case *ast.IncDecStmt:
		collectAddressTaken(v.Target, out)
	case *ast.IfStmt:
		collectAddressTaken(v.Cond, out)
		collectAddressTaken(v.Then, out)
		if v.Else != nil {
			collectAddressTaken(v.Else, out)
		}
	case *ast.WhileStmt:
		collectAddressTaken(v.Cond, out)
		collectAddressTaken(v.Body, out)
	case *ast.DoWhileStmt:
		collectAddressTaken(v.Body, out)
		collectAddressTaken(v.Cond, out)
	case *ast.ForStmt:
		if v.Init != nil {
			collectAddressTaken(v.Init, out)
		}
		if v.Cond != nil {
			collectAddressTaken(v.Cond, out)
		}
		if v.Step != nil {
			collectAddressTaken(v.Step, out)
		}
		collectAddressTaken(v.Body, out)
	case *ast.ReturnStmt:
		if v.Value != nil {
			collectAddressTaken(v.Value, out)
		}
	case *ast.ExprStmt:
		collectAddressTaken(v.X, out)
	case *ast.UnaryExpr:
		if v.Op == "&" {
			if id, ok := v.X.(*ast.Ident); ok {
				out[id.Name] = true
				return
			}
		}
		collectAddressTaken(v.X, out)
	case *ast.BinaryExpr:
		collectAddressTaken(v.Left, out)
		collectAddressTaken(v.Right, out)
	case *ast.PostfixExpr:
		collectAddressTaken(v.X, out)
	case *ast.CallExpr:
		for _, a := range v.Args {
			collectAddressTaken(a, out)
		}
	case *ast.IndexExpr:
		collectAddressTaken(v.Base, out)
		collectAddressTaken(v.Index, out)
	case *ast.ParenExpr:
		collectAddressTaken(v.X, out)
	}
}
