package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"moonc/internal/prof"
	"moonc/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "moonc",
	Short:         "Middle end of the moon compiler",
	Long:          `moonc lowers resolved chunks to MIR, optimizes them and assigns frame slots`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		profiling, err = setupProfiling(cmd)
		return err
	},
}

var profiling *prof.Session

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)

	pf := rootCmd.PersistentFlags()
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.Bool("timings", false, "show timing information")
	pf.String("config", "", "path to moonc.toml (default: search upward from the working directory)")
	pf.String("cpu-accounting", "", "override cpu_accounting_mode (per-basic-block|off)")
	pf.Bool("no-fold", false, "disable constant folding and dead code removal")
	pf.String("trace", "", "trace output file (- for stderr, .ndjson for NDJSON)")
	pf.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	pf.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	pf.Int("trace-ring-size", 4096, "events kept by the ring tracer")
	pf.String("cpu-profile", "", "write a CPU profile to file")
	pf.String("mem-profile", "", "write a heap profile to file on exit")
	pf.String("runtime-trace", "", "write a Go runtime trace to file")

	err := rootCmd.ExecuteContext(context.Background())
	if stopErr := profiling.Stop(); stopErr != nil {
		printError(rootCmd.ErrOrStderr(), stopErr)
	}
	if err != nil {
		printError(rootCmd.ErrOrStderr(), err)
		os.Exit(1)
	}
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func useColor(cmd *cobra.Command, f *os.File) (bool, error) {
	flag, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, err
	}
	return flag == "on" || (flag == "auto" && isTerminal(f)), nil
}
