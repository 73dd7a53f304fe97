package interp

import (
	"fmt"

	"github.com/skx/muc/diagnostics"
	"github.com/skx/muc/object"
)

// intrinsic pairs a fixed arity with a handler closure over the
// interpreter. Peripheral access is modeled as a name → (arity,
// handler) table rather than scattering switch cases through the
// evaluator, which keeps all I/O behind one seam and resolves
// intrinsic names at call time before ordinary user-function lookup.
type intrinsic struct {
	arity int
	fn    func(ip *Interp, args []object.Value, line, col int) (object.Value, error)
}

// CodegenLowerable is the subset of intrinsic names the code generator
// lowers directly to ISA instructions; every other name is
// interpreter-only and a CodegenError if used in a compiled program.
var CodegenLowerable = map[string]bool{
	"uart_set_baud": true,
	"uart_read":     true,
	"uart_write":    true,
	"gpio_set":      true,
	"gpio_read":     true,
	"gpio_write":    true,
}

var intrinsics = map[string]intrinsic{
	"uart_set_baud": {1, func(ip *Interp, a []object.Value, _, _ int) (object.Value, error) {
		ip.periph.UARTBaud = uint32(a[0])
		return 0, nil
	}},
	"uart_get_status": {0, func(ip *Interp, a []object.Value, _, _ int) (object.Value, error) {
		return 1, nil // always "ready"
	}},
	"uart_read": {0, func(ip *Interp, a []object.Value, _, _ int) (object.Value, error) {
		if ip.periph.UARTSource == nil {
			return 0, nil
		}
		var b [1]byte
		n, err := ip.periph.UARTSource.Read(b[:])
		if err != nil || n == 0 {
			return 0, nil
		}
		return object.Value(b[0]), nil
	}},
	"uart_write": {1, func(ip *Interp, a []object.Value, line, col int) (object.Value, error) {
		if ip.periph.UARTSink != nil {
			if _, err := ip.periph.UARTSink.Write([]byte{byte(a[0])}); err != nil {
				return 0, diagnostics.New(diagnostics.Runtime, ip.file, line, col,
					"uart_write: %s", err)
			}
		}
		return 0, nil
	}},

	"gpio_set": {1, func(ip *Interp, a []object.Value, line, col int) (object.Value, error) {
		pin, err := gpioPin(ip, a[0], line, col)
		if err != nil {
			return 0, err
		}
		ip.periph.GPIO[pin] = 1
		return 0, nil
	}},
	"gpio_read": {1, func(ip *Interp, a []object.Value, line, col int) (object.Value, error) {
		pin, err := gpioPin(ip, a[0], line, col)
		if err != nil {
			return 0, err
		}
		return object.Value(ip.periph.GPIO[pin]), nil
	}},
	"gpio_write": {2, func(ip *Interp, a []object.Value, line, col int) (object.Value, error) {
		pin, err := gpioPin(ip, a[0], line, col)
		if err != nil {
			return 0, err
		}
		ip.periph.GPIO[pin] = uint32(a[1])
		return 0, nil
	}},

	"timer_set_mode": {1, func(ip *Interp, a []object.Value, _, _ int) (object.Value, error) {
		ip.periph.TimerMode = uint32(a[0])
		return 0, nil
	}},
	"timer_set_period": {1, func(ip *Interp, a []object.Value, _, _ int) (object.Value, error) {
		ip.periph.TimerPeriod = uint32(a[0])
		return 0, nil
	}},
	"timer_start": {0, func(ip *Interp, a []object.Value, _, _ int) (object.Value, error) {
		ip.periph.TimerRunning = true
		return 0, nil
	}},
	"timer_stop": {0, func(ip *Interp, a []object.Value, _, _ int) (object.Value, error) {
		ip.periph.TimerRunning = false
		return 0, nil
	}},
	"timer_reset": {0, func(ip *Interp, a []object.Value, _, _ int) (object.Value, error) {
		ip.periph.TimerValue = 0
		return 0, nil
	}},
	"timer_get_value": {0, func(ip *Interp, a []object.Value, _, _ int) (object.Value, error) {
		return object.Value(ip.periph.TimerValue), nil
	}},
	"timer_expired": {0, func(ip *Interp, a []object.Value, _, _ int) (object.Value, error) {
		// The emulated timer advances by a configurable tick on each
		// poll, so a program busy-waiting on it always makes progress.
		if !ip.periph.TimerRunning {
			return 0, nil
		}
		ip.periph.TimerValue += ip.periph.TimerTick
		if ip.periph.TimerValue >= ip.periph.TimerPeriod && ip.periph.TimerPeriod > 0 {
			return 1, nil
		}
		return 0, nil
	}},

	"enable_interrupts": {0, func(ip *Interp, a []object.Value, _, _ int) (object.Value, error) {
		ip.periph.InterruptsEnabled = true
		return 0, nil
	}},
	"disable_interrupts": {0, func(ip *Interp, a []object.Value, _, _ int) (object.Value, error) {
		ip.periph.InterruptsEnabled = false
		return 0, nil
	}},

	"set_bit": {2, func(ip *Interp, a []object.Value, _, _ int) (object.Value, error) {
		return a[0] | (1 << (uint32(a[1]) & 31)), nil
	}},
	"clear_bit": {2, func(ip *Interp, a []object.Value, _, _ int) (object.Value, error) {
		return a[0] &^ (1 << (uint32(a[1]) & 31)), nil
	}},
	"toggle_bit": {2, func(ip *Interp, a []object.Value, _, _ int) (object.Value, error) {
		return a[0] ^ (1 << (uint32(a[1]) & 31)), nil
	}},
	"get_bit": {2, func(ip *Interp, a []object.Value, _, _ int) (object.Value, error) {
		if uint32(a[0])&(1<<(uint32(a[1])&31)) != 0 {
			return 1, nil
		}
		return 0, nil
	}},

	"delay_ms":     {1, noopDelay},
	"delay_us":     {1, noopDelay},
	"delay_cycles": {1, noopDelay},
}

// IsIntrinsic reports whether name is one of the peripheral intrinsics
// resolved before ordinary function lookup, for callers outside this
// package (codegen uses it to distinguish "interpreter-only intrinsic"
// from "undefined function" when rejecting a non-lowerable call).
func IsIntrinsic(name string) bool {
	_, ok := intrinsics[name]
	return ok
}

func noopDelay(ip *Interp, a []object.Value, _, _ int) (object.Value, error) {
	return 0, nil
}

func gpioPin(ip *Interp, v object.Value, line, col int) (int, error) {
	pin := int(v)
	count := ip.periph.gpioPinCount()
	if pin < 0 || pin >= count {
		return 0, diagnostics.New(diagnostics.Runtime, ip.file, line, col,
			"gpio pin %d out of range %s", pin, fmt.Sprintf("[0,%d)", count))
	}
	return pin, nil
}
