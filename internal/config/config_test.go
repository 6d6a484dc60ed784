package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "botty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("exit_when_empty: true\ndefault_rows: 50\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.ExitWhenEmpty)
	assert.Equal(t, 50, cfg.DefaultRows)
	assert.Equal(t, Default().DefaultCols, cfg.DefaultCols)
	assert.Equal(t, Default().TranscriptCapacity, cfg.TranscriptCapacity)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
