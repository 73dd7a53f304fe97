// Package config loads muc.toml, the optional settings file that
// configures interpreter peripheral emulation and the code generator's
// header without touching the source program. A missing file falls
// back to documented defaults rather than failing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// defaultISAInclude matches codegen's own fallback so an absent or
// partial muc.toml never changes generated output.
const defaultISAInclude = "ISA.inc"

// defaultTimerTick matches interp.defaultTimerTick; kept independent
// since internal/config must not import interp just for one constant.
const defaultTimerTick = 1

// Config is the full contents of muc.toml.
type Config struct {
	Peripherals struct {
		// TimerTick is how far the emulated timer advances per
		// timer_expired poll.
		TimerTick uint32 `toml:"timer_tick"`

		// UARTSinkPath, when non-empty, redirects interpreted
		// uart_write output to a file instead of process stdout.
		UARTSinkPath string `toml:"uart_sink_path"`

		// GPIOPinCount bounds which pin numbers gpio_set/gpio_read/
		// gpio_write accept; 0 means use the interpreter's built-in
		// 32-pin bank.
		GPIOPinCount int `toml:"gpio_pin_count"`
	} `toml:"peripherals"`

	Codegen struct {
		// ISAInclude overrides the second line of generated assembly,
		// `include "<name>"`.
		ISAInclude string `toml:"isa_include"`
	} `toml:"codegen"`

	Tooling struct {
		// Assembler names the external assembler command whose
		// command line `muc compile --run` prints for the listing.
		Assembler string `toml:"assembler"`

		// Emulator names the external emulator command whose command
		// line `muc compile --run` prints alongside the assembler's.
		Emulator string `toml:"emulator"`
	} `toml:"tooling"`
}

// DefaultConfig returns the settings used when no muc.toml is present.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Peripherals.TimerTick = defaultTimerTick
	cfg.Codegen.ISAInclude = defaultISAInclude
	return cfg
}

// Load reads muc.toml from path. A missing file is not an error: the
// defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.Codegen.ISAInclude == "" {
		cfg.Codegen.ISAInclude = defaultISAInclude
	}
	if cfg.Peripherals.TimerTick == 0 {
		cfg.Peripherals.TimerTick = defaultTimerTick
	}
	if cfg.Peripherals.GPIOPinCount > 32 {
		return nil, fmt.Errorf("%s: gpio_pin_count %d exceeds the 32-pin bank", path, cfg.Peripherals.GPIOPinCount)
	}
	return cfg, nil
}
