// Package debugger is a read-only, single-step inspector over a
// running interpreter: it renders the current statement's position,
// the scalar locals of its environment frame chain, and peripheral
// state without altering interpreter semantics.
//
// A Debugger holds the inspected interpreter plus pause/step
// synchronization; a separate tview-based TUI renders its state.
package debugger

import (
	"sync"

	"github.com/skx/muc/ast"
	"github.com/skx/muc/interp"
	"github.com/skx/muc/object"
)

// Debugger drives one interpreter run, pausing before every statement
// until Step is called, so an external observer can single-step the
// machine.
type Debugger struct {
	ip   *interp.Interp
	file string

	resume  chan struct{}
	stopped chan struct{}

	mu      sync.Mutex
	current ast.Stmt
	frame   *object.Frame
	result  uint32
	runErr  error
	started bool
}

// New builds a Debugger over prog, ready to Start.
func New(file string, prog *ast.Program) (*Debugger, error) {
	ip, err := interp.New(file, prog)
	if err != nil {
		return nil, err
	}
	d := &Debugger{
		ip:      ip,
		file:    file,
		resume:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
	ip.SetStepHook(d.onStep)
	return d, nil
}

// onStep is interp's per-statement observer hook: it records the
// paused position and blocks until Step lets it proceed.
func (d *Debugger) onStep(stmt ast.Stmt, frame *object.Frame) {
	d.mu.Lock()
	d.current = stmt
	d.frame = frame
	d.mu.Unlock()
	<-d.resume
}

// Start runs `main` to completion on its own goroutine, pausing before
// each statement. Call Step repeatedly (or Continue) to drive it.
func (d *Debugger) Start() {
	if d.started {
		return
	}
	d.started = true
	go func() {
		v, err := d.ip.Run()
		d.mu.Lock()
		d.result = v
		d.runErr = err
		d.mu.Unlock()
		close(d.stopped)
	}()
}

// Step unblocks the currently paused statement and waits for the
// interpreter to either pause again or finish. It reports whether
// execution is still running afterward.
func (d *Debugger) Step() bool {
	select {
	case d.resume <- struct{}{}:
	case <-d.stopped:
		return false
	}
	select {
	case <-d.stopped:
		return false
	default:
		return true
	}
}

// Continue steps repeatedly until the program finishes.
func (d *Debugger) Continue() (uint32, error) {
	for d.Step() {
	}
	return d.Result()
}

// Done reports whether the interpreted run has finished.
func (d *Debugger) Done() bool {
	select {
	case <-d.stopped:
		return true
	default:
		return false
	}
}

// Result returns main's return value and any error, valid once Done.
func (d *Debugger) Result() (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.result, d.runErr
}

// Current returns the statement paused at and its live frame.
func (d *Debugger) Current() (ast.Stmt, *object.Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current, d.frame
}

// Peripherals exposes the interpreter's live peripheral state.
func (d *Debugger) Peripherals() *interp.Peripherals { return d.ip.Peripherals() }

// Memory exposes the interpreter's simulated address space.
func (d *Debugger) Memory() *object.Memory { return d.ip.Memory() }
