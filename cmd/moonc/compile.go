package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"moonc/internal/driver"
	"moonc/internal/observ"
	"moonc/internal/ui"
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags] <chunk.mpk|directory>...",
	Short: "Compile resolved chunks into MIR artifacts",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCompile,
}

func init() {
	compileCmd.Flags().StringP("out", "o", "", "output directory (default: next to each input)")
	compileCmd.Flags().Int("jobs", 0, "max parallel workers (0=auto)")
	compileCmd.Flags().Bool("disk-cache", false, "reuse artifacts from the persistent cache")
	compileCmd.Flags().Bool("drop-cache", false, "clear the persistent cache before compiling")
	compileCmd.Flags().String("progress", "auto", "show live progress on stderr (auto|on|off)")
}

// ArtifactExt is the extension of files written by compile.
const ArtifactExt = ".mir"

func runCompile(cmd *cobra.Command, args []string) (err error) {
	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer func() { cleanup(err != nil) }()

	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	outDir, err := cmd.Flags().GetString("out")
	if err != nil {
		return fmt.Errorf("failed to get out flag: %w", err)
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	useCache, err := cmd.Flags().GetBool("disk-cache")
	if err != nil {
		return fmt.Errorf("failed to get disk-cache flag: %w", err)
	}
	dropCache, err := cmd.Flags().GetBool("drop-cache")
	if err != nil {
		return fmt.Errorf("failed to get drop-cache flag: %w", err)
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	progressFlag, err := cmd.Flags().GetString("progress")
	if err != nil {
		return fmt.Errorf("failed to get progress flag: %w", err)
	}

	paths, err := expandInputs(args)
	if err != nil {
		return err
	}

	batch := driver.BatchOptions{
		Options: driver.Options{Config: opts},
		Jobs:    jobs,
		Timings: showTimings,
	}
	if useCache || dropCache {
		cache, err := driver.OpenDiskCache("moonc")
		if err != nil {
			return fmt.Errorf("disk cache: %w", err)
		}
		if dropCache {
			if err := cache.DropAll(); err != nil {
				return fmt.Errorf("disk cache: %w", err)
			}
		}
		if useCache {
			batch.Cache = cache
		}
	}

	var stopProgress func()
	if progressFlag == "on" || (progressFlag == "auto" && len(paths) > 1 && isTerminal(os.Stderr)) {
		batch.Observer, stopProgress = startProgress(paths)
	}

	timer := observ.NewTimer()
	idx := timer.Begin("batch")
	results, err := driver.CompileFiles(cmd.Context(), paths, batch)
	timer.End(idx, fmt.Sprintf("%d files", len(paths)))
	if stopProgress != nil {
		stopProgress()
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, r := range results {
		dst := artifactPath(r.Path, outDir)
		if err := driver.WriteArtifact(dst, r.Artifact); err != nil {
			return fmt.Errorf("%s: %w", dst, err)
		}
		note := ""
		if r.Cached {
			note = " (cached)"
		}
		fmt.Fprintf(out, "%s -> %s%s\n", r.Path, dst, note)
		if showTimings && r.Timing != nil {
			printTimings(cmd.ErrOrStderr(), r.Path, *r.Timing)
		}
	}
	if showTimings {
		fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
	}
	return nil
}

// expandInputs replaces directories with the chunk files under them.
func expandInputs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		st, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !st.IsDir() {
			paths = append(paths, arg)
			continue
		}
		files, err := driver.ListChunks(arg)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("%s: no %s files", arg, driver.ChunkExt)
		}
		paths = append(paths, files...)
	}
	return paths, nil
}

func artifactPath(input, outDir string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + ArtifactExt
	if outDir == "" {
		return filepath.Join(filepath.Dir(input), base)
	}
	return filepath.Join(outDir, base)
}

// startProgress runs the progress view on stderr until the returned stop
// function is called.
func startProgress(paths []string) (driver.PhaseObserver, func()) {
	events := make(chan driver.PhaseEvent, 64)
	program := tea.NewProgram(ui.NewProgressModel("compile", paths, events), tea.WithOutput(os.Stderr), tea.WithInput(nil))
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := program.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "progress: %v\n", err)
		}
		// The view may quit early; keep workers from blocking.
		for range events {
		}
	}()
	observe := func(ev driver.PhaseEvent) { events <- ev }
	stop := func() {
		close(events)
		<-done
	}
	return observe, stop
}
