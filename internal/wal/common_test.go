package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileFallsBackToDefaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	require.Equal(t, NewDefaultConfig(), config)
}

func TestLoadConfigParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.toml")
	require.NoError(t, os.WriteFile(path, []byte("buffer_size = 131072\nfsync = false\n"), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	require.EqualValues(t, 131072, config.BufferSize)
	require.False(t, config.FSync)
}
