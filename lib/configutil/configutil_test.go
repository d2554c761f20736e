package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	BaseUrl string   `json:"base_url"`
	Delay   int      `json:"delay"`
	Paths   []string `json:"paths"`
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "app.json5"), []byte(`{
		// comments are allowed
		base_url: "https://example.com",
		delay: 500,
	}`), 0600)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "app.local.json5"), []byte(`{delay: 10}`), 0600)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "app.json5"))
	require.NoError(t, err)
	require.Equal(t, "https://example.com", cfg.BaseUrl)
	require.Equal(t, 10, cfg.Delay)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "missing.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestWithDefaults(t *testing.T) {
	cfg, err := WithDefaults(
		testConfig{Delay: 1},
		testConfig{BaseUrl: "https://example.com", Delay: 500, Paths: []string{"/a"}},
	)
	require.NoError(t, err)
	require.Equal(t, testConfig{BaseUrl: "https://example.com", Delay: 1, Paths: []string{"/a"}}, cfg)
}

func TestLocalName(t *testing.T) {
	require.Equal(t, "orderexport.local.json5", LocalName("orderexport.json5"))
	require.Equal(t, filepath.Join("a", "b", "telemetry.local.json5"), LocalName(filepath.Join("a", "b", "telemetry.json5")))
}

func TestReadConfigOnlyLocal(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "app.local.json5"), []byte(`{paths: ["/x"]}`), 0600)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "app.json5"))
	require.NoError(t, err)
	require.Equal(t, testConfig{Paths: []string{"/x"}}, cfg)
}
