package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"moonc/internal/config"
)

// loadOptions resolves compile options: defaults, then moonc.toml, then flags.
func loadOptions(cmd *cobra.Command) (config.Options, error) {
	flags := cmd.Root().PersistentFlags()

	path, err := flags.GetString("config")
	if err != nil {
		return config.Options{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return config.Options{}, err
		}
		found, ok, err := config.Find(wd)
		if err != nil {
			return config.Options{}, err
		}
		if ok {
			path = found
		}
	}

	opts := config.Default()
	if path != "" {
		if opts, err = config.Load(path); err != nil {
			return config.Options{}, err
		}
	}

	if mode, err := flags.GetString("cpu-accounting"); err != nil {
		return config.Options{}, fmt.Errorf("failed to get cpu-accounting flag: %w", err)
	} else if mode != "" {
		if opts.CPUAccounting, err = config.ParseCPUAccountingMode(mode); err != nil {
			return config.Options{}, err
		}
	}
	noFold, err := flags.GetBool("no-fold")
	if err != nil {
		return config.Options{}, fmt.Errorf("failed to get no-fold flag: %w", err)
	}
	if noFold {
		opts.ConstFolding = false
	}
	return opts, nil
}
