// Command muc is the driver for the µc toolchain: a cobra root command
// exposing interpret, compile, and check subcommands over the
// preprocess/lexer/parser/interp/codegen pipeline.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skx/muc/ast"
	"github.com/skx/muc/codegen"
	"github.com/skx/muc/interp"
	"github.com/skx/muc/internal/config"
	"github.com/skx/muc/internal/debugger"
	"github.com/skx/muc/lexer"
	"github.com/skx/muc/parser"
	"github.com/skx/muc/preprocess"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "muc",
		Short:         "µc: a small C-flavored language for the m32 register machine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "muc.toml", "path to muc.toml")
	root.AddCommand(newInterpretCmd(), newCompileCmd(), newCheckCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadProgram preprocesses and parses path into an AST, the common
// first half of every subcommand. Diagnostics report the file/line a
// token came from before #include joined it into one buffer, not the
// joined buffer's own line numbering.
func loadProgram(path string) (*ast.Program, error) {
	pp := preprocess.New(path)
	result, err := pp.Process(path)
	if err != nil {
		return nil, err
	}
	return parser.ParseWithOrigin(path, result.Text, originFunc(path, result.Lines))
}

// originFunc adapts a preprocess.LineOrigin map into a lexer.OriginFunc,
// falling back to the entry path and the joined line number for any
// line the preprocessor did not record an origin for (e.g. past EOF).
func originFunc(fallback string, lines []preprocess.LineOrigin) lexer.OriginFunc {
	return func(textLine int) (string, int) {
		if textLine >= 1 && textLine < len(lines) {
			if o := lines[textLine]; o.File != "" {
				return o.File, o.Line
			}
		}
		return fallback, textLine
	}
}

func newInterpretCmd() *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:   "interpret <path>",
		Short: "Run a µc program with the tree-walking interpreter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			prog, err := loadProgram(path)
			if err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			if debug {
				dbg, err := debugger.New(path, prog)
				if err != nil {
					return err
				}
				return debugger.NewTUI(dbg).Run()
			}

			ip, err := interp.New(path, prog)
			if err != nil {
				return err
			}
			periph, closePeriph, err := peripheralsFromConfig(cfg)
			if err != nil {
				return err
			}
			defer closePeriph()
			ip.SetPeripherals(periph)

			v, err := ip.Run()
			if err != nil {
				return err
			}
			fmt.Printf("Program executed successfully. Return value: %d\n", v)
			return nil
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "launch the interactive single-step debugger instead of running to completion")
	return cmd
}

func newCompileCmd() *cobra.Command {
	var run bool
	cmd := &cobra.Command{
		Use:   "compile <path> [out.asm]",
		Short: "Generate m32 assembly for a µc program",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			prog, err := loadProgram(path)
			if err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			asm, err := codegen.Generate(path, prog, cfg.Codegen.ISAInclude)
			if err != nil {
				return err
			}

			outPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".asm"
			if len(args) == 2 {
				outPath = args[1]
			}
			if err := os.WriteFile(outPath, []byte(asm), 0o644); err != nil {
				return err
			}

			if run {
				return runAssembled(cfg, outPath)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&run, "run", false, "print the assembler and emulator command lines named in muc.toml for the generated listing")
	return cmd
}

// runAssembled prints, on standard error, the command lines for the
// external assembler/emulator pair named in muc.toml, each applied to
// the listing at outPath. It does not execute either tool.
func runAssembled(cfg *config.Config, outPath string) error {
	if cfg.Tooling.Assembler == "" || cfg.Tooling.Emulator == "" {
		return fmt.Errorf("--run requires [tooling] assembler and emulator to be set in %s", configPath)
	}
	fmt.Fprintf(os.Stderr, "# %s %s\n# %s %s\n", cfg.Tooling.Assembler, outPath, cfg.Tooling.Emulator, outPath)
	return nil
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <path>",
		Short: "Parse a µc program without running or compiling it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := loadProgram(args[0])
			return err
		},
	}
}

// peripheralsFromConfig builds peripheral emulation state from cfg,
// redirecting the UART sink to a file when muc.toml names one.
func peripheralsFromConfig(cfg *config.Config) (*interp.Peripherals, func() error, error) {
	p := interp.NewPeripherals()
	p.TimerTick = cfg.Peripherals.TimerTick
	if cfg.Peripherals.GPIOPinCount > 0 {
		p.GPIOPinCount = cfg.Peripherals.GPIOPinCount
	}
	closeFn := func() error { return nil }

	if cfg.Peripherals.UARTSinkPath != "" {
		f, err := os.Create(cfg.Peripherals.UARTSinkPath)
		if err != nil {
			return nil, nil, err
		}
		p.UARTSink = f
		closeFn = f.Close
	}
	return p, closeFn, nil
}
