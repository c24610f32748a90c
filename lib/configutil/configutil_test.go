package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Server string `json:"server"`
	Scouts int    `json:"scouts"`
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	err := os.WriteFile(path, []byte(`{
		// comments are fine
		server: "s1.sfgame.net",
		scouts: 4,
	}`), 0o644)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](path)
	require.NoError(t, err)
	require.Equal(t, "s1.sfgame.net", cfg.Server)
	require.Equal(t, 4, cfg.Scouts)
}

func TestReadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "config.json5"),
		[]byte(`{server: "s1.sfgame.net", scouts: 4}`), 0o644)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "config.local.json5"),
		[]byte(`{scouts: 8}`), 0o644)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "s1.sfgame.net", cfg.Server)
	require.Equal(t, 8, cfg.Scouts)
}

func TestReadConfigLocalOnly(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "config.local.json5"),
		[]byte(`{server: "s2.sfgame.net"}`), 0o644)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "s2.sfgame.net", cfg.Server)
}

func TestReadConfigMissing(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.True(t, os.IsNotExist(err))
}
