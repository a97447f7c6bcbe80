package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"moonc/internal/config"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, config.FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	opts := config.Default()
	require.Equal(t, config.CPUAccountingPerBlock, opts.CPUAccounting)
	require.True(t, opts.ConstFolding)
	require.True(t, opts.ConstCaching)
	require.Equal(t, config.DefaultMaxOptRounds, opts.Rounds())
	require.Equal(t, config.DefaultMaxOptRounds, config.Options{}.Rounds())
}

func TestParseCPUAccountingMode(t *testing.T) {
	mode, err := config.ParseCPUAccountingMode("off")
	require.NoError(t, err)
	require.Equal(t, config.CPUAccountingOff, mode)

	mode, err = config.ParseCPUAccountingMode(" Per-Basic-Block ")
	require.NoError(t, err)
	require.Equal(t, config.CPUAccountingPerBlock, mode)
	require.Equal(t, "per-basic-block", mode.String())

	_, err = config.ParseCPUAccountingMode("per-function")
	require.ErrorContains(t, err, "invalid cpu accounting mode")
}

func TestLoadOverridesOnlyDefinedKeys(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[compile]
cpu_accounting_mode = "off"
const_folding = false
`)
	opts, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, config.CPUAccountingOff, opts.CPUAccounting)
	require.False(t, opts.ConstFolding)
	require.True(t, opts.ConstCaching)
	require.Equal(t, config.DefaultMaxOptRounds, opts.MaxOptRounds)
}

func TestLoadRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	_, err := config.Load(writeConfig(t, dir, "[compile]\nconst_foldng = true\n"))
	require.ErrorContains(t, err, "unknown keys: compile.const_foldng")

	_, err = config.Load(writeConfig(t, dir, "[compile]\nmax_opt_rounds = 0\n"))
	require.ErrorContains(t, err, "max_opt_rounds must be positive")

	_, err = config.Load(writeConfig(t, dir, "[compile]\ncpu_accounting_mode = \"sometimes\"\n"))
	require.ErrorContains(t, err, "cpu_accounting_mode")

	_, err = config.Load(writeConfig(t, dir, "[compile\n"))
	require.ErrorContains(t, err, "failed to parse TOML")
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	want := writeConfig(t, root, "[compile]\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	got, ok, err := config.Find(nested)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want, got)

	_, ok, err = config.Find(t.TempDir())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestKeyDistinguishesOptions(t *testing.T) {
	a := config.Default()
	b := a
	b.ConstFolding = false
	require.NotEqual(t, a.Key(), b.Key())
}
