// Package config holds compile options and their moonc.toml representation.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the project configuration file looked up by Find.
const FileName = "moonc.toml"

// DefaultMaxOptRounds bounds the optimization loop of a single function.
const DefaultMaxOptRounds = 64

// CPUAccountingMode selects how compiled code is instrumented for the
// scheduler's work accounting.
type CPUAccountingMode uint8

const (
	CPUAccountingPerBlock CPUAccountingMode = iota
	CPUAccountingOff
)

func (m CPUAccountingMode) String() string {
	switch m {
	case CPUAccountingOff:
		return "off"
	case CPUAccountingPerBlock:
		return "per-basic-block"
	default:
		return "unknown"
	}
}

// ParseCPUAccountingMode converts a string to a CPUAccountingMode.
func ParseCPUAccountingMode(s string) (CPUAccountingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off":
		return CPUAccountingOff, nil
	case "per-basic-block":
		return CPUAccountingPerBlock, nil
	default:
		return CPUAccountingPerBlock, fmt.Errorf("invalid cpu accounting mode: %q (expected: off|per-basic-block)", s)
	}
}

// Options are the recognized compile options.
type Options struct {
	CPUAccounting CPUAccountingMode
	ConstFolding  bool
	// ConstCaching is not used by the middle end; it travels with the
	// artifact for the emitter.
	ConstCaching bool
	MaxOptRounds int
}

// Default returns per-basic-block accounting with folding and caching on.
func Default() Options {
	return Options{
		CPUAccounting: CPUAccountingPerBlock,
		ConstFolding:  true,
		ConstCaching:  true,
		MaxOptRounds:  DefaultMaxOptRounds,
	}
}

// Rounds returns the effective optimization round cap.
func (o Options) Rounds() int {
	if o.MaxOptRounds <= 0 {
		return DefaultMaxOptRounds
	}
	return o.MaxOptRounds
}

// Key renders the options compactly; it feeds the artifact cache key.
func (o Options) Key() string {
	return fmt.Sprintf("cpu=%s;fold=%t;cache=%t;rounds=%d", o.CPUAccounting, o.ConstFolding, o.ConstCaching, o.Rounds())
}

type fileConfig struct {
	Compile compileSection `toml:"compile"`
}

type compileSection struct {
	CPUAccountingMode string `toml:"cpu_accounting_mode"`
	ConstFolding      bool   `toml:"const_folding"`
	ConstCaching      bool   `toml:"const_caching"`
	MaxOptRounds      int    `toml:"max_opt_rounds"`
}

// Load reads path on top of Default. Keys missing from the file keep their
// defaults; unknown keys are rejected.
func Load(path string) (Options, error) {
	opts := Default()
	var cfg fileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return opts, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return opts, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("compile", "cpu_accounting_mode") {
		mode, err := ParseCPUAccountingMode(cfg.Compile.CPUAccountingMode)
		if err != nil {
			return opts, fmt.Errorf("%s: [compile].cpu_accounting_mode: %w", path, err)
		}
		opts.CPUAccounting = mode
	}
	if meta.IsDefined("compile", "const_folding") {
		opts.ConstFolding = cfg.Compile.ConstFolding
	}
	if meta.IsDefined("compile", "const_caching") {
		opts.ConstCaching = cfg.Compile.ConstCaching
	}
	if meta.IsDefined("compile", "max_opt_rounds") {
		if cfg.Compile.MaxOptRounds <= 0 {
			return opts, fmt.Errorf("%s: [compile].max_opt_rounds must be positive, got %d", path, cfg.Compile.MaxOptRounds)
		}
		opts.MaxOptRounds = cfg.Compile.MaxOptRounds
	}
	return opts, nil
}

// Find walks up from startDir looking for moonc.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}
