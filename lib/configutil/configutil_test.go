package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	BaseUrl string `json:"base_url"`
	Login   string `json:"login"`
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "erkc63.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
		// checked-in defaults
		base_url: "https://lk.erkc63.ru",
		login: "user@example.com",
	}`), 0644))

	cfg, err := ReadConfig[testConfig](path)
	require.NoError(t, err)
	require.Equal(t, "https://lk.erkc63.ru", cfg.BaseUrl)
	require.Equal(t, "user@example.com", cfg.Login)
}

func TestReadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "erkc63.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{base_url: "https://lk.erkc63.ru", login: "checked-in"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "erkc63.local.json5"), []byte(`{login: "local"}`), 0644))

	cfg, err := ReadConfig[testConfig](path)
	require.NoError(t, err)
	require.Equal(t, "https://lk.erkc63.ru", cfg.BaseUrl)
	require.Equal(t, "local", cfg.Login)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "nope.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
