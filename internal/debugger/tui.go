package debugger

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/skx/muc/ast"
	"github.com/skx/muc/interp"
	"github.com/skx/muc/object"
)

// TUI is the text interface over one Debugger: a source/position
// panel, a locals panel, a peripherals panel, and an output log,
// driven by F-key step/continue bindings.
type TUI struct {
	dbg *Debugger

	app   *tview.Application
	flex  *tview.Flex
	pos   *tview.TextView
	vars  *tview.TextView
	perip *tview.TextView
	log   *tview.TextView
}

// NewTUI builds a TUI over dbg. Call Run to start the event loop.
func NewTUI(dbg *Debugger) *TUI {
	t := &TUI{
		dbg:   dbg,
		app:   tview.NewApplication(),
		pos:   tview.NewTextView().SetDynamicColors(true),
		vars:  tview.NewTextView().SetDynamicColors(true),
		perip: tview.NewTextView().SetDynamicColors(true),
		log:   tview.NewTextView().SetDynamicColors(true).SetScrollable(true),
	}
	t.pos.SetBorder(true).SetTitle(" Position ")
	t.vars.SetBorder(true).SetTitle(" Locals ")
	t.perip.SetBorder(true).SetTitle(" Peripherals ")
	t.log.SetBorder(true).SetTitle(" Output (F11 step, F5 continue, Ctrl-C quit) ")

	top := tview.NewFlex().
		AddItem(t.pos, 0, 1, false).
		AddItem(t.vars, 0, 1, false).
		AddItem(t.perip, 0, 1, false)
	t.flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(top, 0, 1, false).
		AddItem(t.log, 0, 2, false)

	t.app.SetInputCapture(t.onKey)
	t.refresh()
	return t
}

// Run starts the interpreter and the tview event loop; it returns once
// the user quits or the program finishes and the user dismisses it.
func (t *TUI) Run() error {
	t.dbg.Start()
	return t.app.SetRoot(t.flex, true).Run()
}

func (t *TUI) onKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyF11:
		t.dbg.Step()
		t.refresh()
		return nil
	case tcell.KeyF5:
		v, err := t.dbg.Continue()
		if err != nil {
			fmt.Fprintf(t.log, "[red]error:[white] %s\n", err)
		} else {
			fmt.Fprintf(t.log, "main returned %d\n", v)
		}
		t.refresh()
		return nil
	case tcell.KeyCtrlC:
		t.app.Stop()
		return nil
	}
	return event
}

func (t *TUI) refresh() {
	stmt, frame := t.dbg.Current()
	t.pos.SetText(formatPosition(stmt, t.dbg.Done()))
	t.vars.SetText(formatFrame(frame, t.dbg.Memory()))
	t.perip.SetText(formatPeripherals(t.dbg.Peripherals()))
}

func formatPosition(stmt ast.Stmt, done bool) string {
	if done {
		return "[green]finished[white]"
	}
	if stmt == nil {
		return "not started"
	}
	pos := stmt.Pos()
	return fmt.Sprintf("%s:%d:%d\n%T", pos.File, pos.Line, pos.Column, stmt)
}

// formatFrame renders every scalar local visible from frame (its own
// declarations, then each lexical ancestor's), stopping before the
// global frame so the panel reflects the paused function, not the
// whole program.
func formatFrame(frame *object.Frame, mem *object.Memory) string {
	if frame == nil {
		return ""
	}
	var b strings.Builder
	for fr := frame; fr != nil && fr.Parent() != nil; fr = fr.Parent() {
		for _, n := range fr.Names() {
			cell, ok := fr.Lookup(n)
			if !ok {
				continue
			}
			v, _ := cell.Get(mem, "", 0, 0)
			fmt.Fprintf(&b, "%s = %d\n", n, v)
		}
	}
	return b.String()
}

func formatPeripherals(p *interp.Peripherals) string {
	var b strings.Builder
	fmt.Fprintf(&b, "uart_baud = %d\n", p.UARTBaud)
	fmt.Fprintf(&b, "timer = %d/%d (running=%t)\n", p.TimerValue, p.TimerPeriod, p.TimerRunning)
	fmt.Fprintf(&b, "interrupts_enabled = %t\n", p.InterruptsEnabled)
	fmt.Fprint(&b, "gpio =")
	for i, v := range p.GPIO {
		if v != 0 {
			fmt.Fprintf(&b, " %d:%d", i, v)
		}
	}
	b.WriteByte('\n')
	return b.String()
}
