package server

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigOverridesDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
addr: ":9000"
database: "file:forms.db"
allowedOrigins: ["app.example.com"]
sessions:
  idleTimeout: 5m
log:
  level: debug
  format: json
`))
	require.NoError(t, err)

	want := DefaultConfig()
	want.Addr = ":9000"
	want.Database = "file:forms.db"
	want.AllowedOrigins = []string{"app.example.com"}
	want.Sessions.IdleTimeout = 5 * time.Minute
	want.Log = LogConfig{Level: "debug", Format: "json"}
	assert.Equal(t, want, cfg)

	var buf bytes.Buffer
	cfg.Logger(&buf).Debug("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestParseConfigRejectsUnknownLogSettings(t *testing.T) {
	_, err := ParseConfig([]byte("log:\n  level: chatty\n"))
	assert.Error(t, err)

	_, err = ParseConfig([]byte("log:\n  format: xml\n"))
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schemaDir: ./schemas\n"), 0o600))
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "./schemas", cfg.SchemaDir)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadOptionLists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zones.txt")
	require.NoError(t, os.WriteFile(path, []byte("UTC\nEurope/Paris\tParis\n"), 0o600))

	cfg, err := ParseConfig([]byte("optionLists:\n  timezones: " + path + "\n"))
	require.NoError(t, err)
	reg, err := cfg.LoadOptionLists()
	require.NoError(t, err)
	assert.Equal(t, []string{"timezones"}, reg.Names())

	cfg.OptionLists["missing"] = filepath.Join(dir, "missing.txt")
	_, err = cfg.LoadOptionLists()
	assert.Error(t, err)
}
