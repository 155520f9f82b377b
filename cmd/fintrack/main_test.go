package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"fintrack/internal/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandFiles(t *testing.T) {
	lc := log.DefaultConfig()
	lc.Output = io.Discard
	logger = log.New(lc)

	dir := t.TempDir()
	for _, name := range []string{"jan.qfx", "feb.qfx", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	files, err := expandFiles([]string{filepath.Join(dir, "*.qfx"), filepath.Join(dir, "missing.ofx")})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "jan.qfx"), filepath.Join(dir, "feb.qfx")}, files)

	_, err = expandFiles([]string{filepath.Join(dir, "*.ofx")})
	assert.EqualError(t, err, "no files found to import")

	_, err = expandFiles([]string{"[invalid"})
	assert.Error(t, err)
}

func TestSummaryCommand(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DATA_DIRECTORY", t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{"summary", "--backend", "memory", "--year", "2024", "--month", "3"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Summary for 2024-03")
	assert.Contains(t, out.String(), "0.00")
}

func TestSummaryCommand_InvalidMonth(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DATA_DIRECTORY", t.TempDir())

	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{"summary", "--backend", "memory", "--year", "2024", "--month", "13"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	assert.EqualError(t, rootCmd.Execute(), "Invalid year or month.")
}
