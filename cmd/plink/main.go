// Command plink is the CLI driver for the plink static linker (spec
// §6.3): it parses flags into a config.Config and hands off to
// linker.Run. Its own flag-parsing correctness is out of scope (spec §1);
// it exists to exercise the collaborator contract linker assumes.
//
// Grounded on Manu343726-cucaracha/cmd/root.go's cobra.Command shape,
// trimmed to a single command (no viper config file, no subcommands)
// since plink has exactly one job.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/plinkgo/plink/config"
	"github.com/plinkgo/plink/linker"
	"github.com/plinkgo/plink/object"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.New()

	var (
		entryName    string
		noEntry      bool
		pie          bool
		shared       bool
		searchPaths  []string
		debugStages  []string
		colorFlag    string
		libs         []string
		verbatimLibs []string
	)

	cmd := &cobra.Command{
		Use:           "plink [flags] <input>...",
		Short:         "a static linker for ELF objects targeting x86/x86-64 Linux",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(c *cobra.Command, args []string) error {
			for _, a := range args {
				cfg.Inputs = append(cfg.Inputs, config.PathInput(a))
			}
			for _, name := range libs {
				cfg.Inputs = append(cfg.Inputs, config.LibraryInput(name))
			}
			for _, file := range verbatimLibs {
				cfg.Inputs = append(cfg.Inputs, config.VerbatimInput(file))
			}

			switch {
			case shared:
				cfg.Mode = object.SharedLibrary
			case pie:
				cfg.Mode = object.PositionIndependent
			default:
				cfg.Mode = object.PositionDependent
			}

			switch {
			case noEntry:
				cfg.Entry = config.NoEntry()
			case entryName != "":
				cfg.Entry = config.CustomEntry(entryName)
			case shared:
				// A shared library conventionally has no program entry
				// point unless one was explicitly requested.
				cfg.Entry = config.NoEntry()
			default:
				cfg.Entry = config.DefaultEntry()
			}

			cfg.SearchPaths = searchPaths
			for _, s := range debugStages {
				cfg.EnableDebug(s)
			}

			switch colorFlag {
			case "always":
				t := true
				cfg.ColorDiagnostics = &t
			case "never":
				f := false
				cfg.ColorDiagnostics = &f
			}

			if cfg.Output == "" {
				cfg.Output = "a.out"
			}

			useColor := !color.NoColor
			if cfg.ColorDiagnostics != nil {
				useColor = *cfg.ColorDiagnostics
			}
			exitCode := linker.RunWithDiagnostics(cfg, os.Stderr, useColor)
			if exitCode != 0 {
				return fmt.Errorf("link failed")
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.Output, "output", "o", "", "output file path (default a.out)")
	flags.StringVarP(&entryName, "entry", "e", "", "entry point symbol name (default \"_start\")")
	flags.BoolVar(&noEntry, "no-entry", false, "produce an output with no entry point")
	flags.BoolVar(&pie, "pie", false, "produce a position-independent executable")
	flags.BoolVar(&shared, "shared", false, "produce a shared library")
	flags.BoolVar(&cfg.GCSections, "gc-sections", false, "remove sections unreachable from the entry point")
	flags.BoolVar(&cfg.ExecutableStack, "exec-stack", false, "mark the stack executable")
	flags.BoolVar(&cfg.ReadOnlyGOT, "read-only-got", false, "place .got inside the read-only (relro) segment")
	flags.BoolVar(&cfg.ReadOnlyGOTPLT, "read-only-got-plt", false, "place .got.plt inside the read-only (relro) segment")
	flags.StringVar(&cfg.DynamicLinker, "dynamic-linker", "/lib64/ld-linux-x86-64.so.2", "path written into .interp")
	flags.StringArrayVarP(&searchPaths, "library-path", "L", nil, "directory to search for -l inputs (repeatable)")
	flags.StringArrayVarP(&libs, "library", "l", nil, "library to search for as lib<name>.so/.a (repeatable)")
	flags.StringArrayVar(&verbatimLibs, "library-verbatim", nil, "exact library file to search for, without the lib/.so convention")
	flags.StringVar(&cfg.SharedObjectName, "soname", "", "DT_SONAME to embed when producing a shared library")
	flags.StringArrayVar(&debugStages, "debug-print", nil, "dump intermediate pipeline state for a named stage (or \"all\"), repeatable")
	flags.StringVar(&colorFlag, "color", "auto", "colorize diagnostics: auto, always, or never")

	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}
