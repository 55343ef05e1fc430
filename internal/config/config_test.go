package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graphstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.RDFPost.SkipEmptyLiterals)
	assert.False(t, cfg.RDFPost.ResolveRelativeIRIs)
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: "127.0.0.1:9000"
  max_body_bytes: 1024
  shutdown_timeout: 2s
storage:
  data_dir: /var/lib/graphstore
rdfpost:
  skip_empty_literals: false
  resolve_relative_iris: true
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, int64(1024), cfg.Server.MaxBodyBytes)
	assert.Equal(t, 2*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "/var/lib/graphstore", cfg.Storage.DataDir)
	assert.False(t, cfg.RDFPost.SkipEmptyLiterals)
	assert.True(t, cfg.RDFPost.ResolveRelativeIRIs)

	level, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	// Unset keys keep their defaults
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvAddr, ":7070")
	t.Setenv(EnvDataDir, "/tmp/gs")

	path := writeConfig(t, "server:\n  addr: \":9000\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "/tmp/gs", cfg.Storage.DataDir)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Addr, cfg.Server.Addr)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad yaml", "server: [", "parse config"},
		{"empty addr", "server:\n  addr: \"\"\n", "server.addr"},
		{"zero body limit", "server:\n  max_body_bytes: 0\n", "max_body_bytes"},
		{"no data dir", "storage:\n  data_dir: \"\"\n", "data_dir"},
		{"unknown level", "log:\n  level: loud\n", "unknown log level"},
		{"unknown format", "log:\n  format: xml\n", "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_InMemoryNeedsNoDataDir(t *testing.T) {
	cfg := Default()
	cfg.Storage.DataDir = ""
	cfg.Storage.InMemory = true
	assert.NoError(t, cfg.Validate())
}
