package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	require.Equal(t, uint32(defaultTimerTick), cfg.Peripherals.TimerTick)
	require.Equal(t, defaultISAInclude, cfg.Codegen.ISAInclude)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "muc.toml")
	body := `
[peripherals]
timer_tick = 4
uart_sink_path = "uart.log"
gpio_pin_count = 8

[codegen]
isa_include = "custom_isa.inc"

[tooling]
assembler = "fasm"
emulator = "m32emu"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint32(4), cfg.Peripherals.TimerTick)
	require.Equal(t, "uart.log", cfg.Peripherals.UARTSinkPath)
	require.Equal(t, 8, cfg.Peripherals.GPIOPinCount)
	require.Equal(t, "custom_isa.inc", cfg.Codegen.ISAInclude)
	require.Equal(t, "fasm", cfg.Tooling.Assembler)
	require.Equal(t, "m32emu", cfg.Tooling.Emulator)
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "muc.toml")
	require.NoError(t, os.WriteFile(path, []byte("not valid = = toml"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
