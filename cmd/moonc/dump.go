package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"moonc/internal/driver"
	"moonc/internal/mir"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [flags] <chunk.mpk>",
	Short: "Print the MIR of a chunk",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().Bool("raw", false, "print MIR straight from translation, before optimization")
	dumpCmd.Flags().Bool("slots", false, "append the slot assignment of every function")
}

func runDump(cmd *cobra.Command, args []string) (err error) {
	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer func() { cleanup(err != nil) }()

	raw, err := cmd.Flags().GetBool("raw")
	if err != nil {
		return fmt.Errorf("failed to get raw flag: %w", err)
	}
	withSlots, err := cmd.Flags().GetBool("slots")
	if err != nil {
		return fmt.Errorf("failed to get slots flag: %w", err)
	}
	colored, err := useColor(cmd, os.Stdout)
	if err != nil {
		return err
	}

	chunk, err := driver.LoadChunk(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	dumpOpts := mir.DumpOptions{Color: colored}

	if raw {
		m, err := mir.LowerChunk(chunk)
		if err != nil {
			return err
		}
		return mir.DumpModule(out, m, dumpOpts)
	}

	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	res, err := driver.Compile(cmd.Context(), chunk, driver.Options{Config: opts})
	if err != nil {
		return err
	}
	m := &mir.Module{Root: res.Root, Funcs: make(map[mir.FunctionID]*mir.Func, len(res.Order))}
	for _, id := range res.Order {
		m.Funcs[id] = res.Funcs[id].Func
	}
	if err := mir.DumpModule(out, m, dumpOpts); err != nil {
		return err
	}
	if !withSlots {
		return nil
	}
	art := driver.ToArtifact(res, opts)
	for _, fa := range art.Funcs {
		fmt.Fprintf(out, "slots %s (frame %d):", fa.ID, fa.FrameSize)
		for _, s := range fa.Slots {
			fmt.Fprintf(out, " %s=%d", s.Entity, s.Slot)
		}
		fmt.Fprintln(out)
	}
	return nil
}
