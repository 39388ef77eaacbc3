package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
port: 9000
jwt_secret: s3cret
log_config:
  level: debug
  console: true
storage:
  type: Local
  data:
    dir: /var/lib/sqlnb
    prefix: nb_
  cache:
    size: 64
auto_save:
  delay_ms: 500
document:
  author: ana
jobs:
  integrity_check_spec: "@every 1h"
cors_allowlist:
  - http://localhost:3000
max_upload_size: 1024
import_rate_limit_ms: 1500
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Port)
	require.Equal(t, "s3cret", cfg.JWTSecret)
	require.Equal(t, "debug", cfg.LogConfig.Level)
	require.Equal(t, "local", cfg.Storage.Type)
	data, ok := cfg.Storage.Data.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "/var/lib/sqlnb", data["dir"])
	require.Equal(t, 64, cfg.Storage.Cache.Size)
	require.Equal(t, 300, cfg.Storage.Cache.TTLSeconds)
	require.Equal(t, 500, cfg.AutoSave.DelayMs)
	require.Equal(t, 10000, cfg.AutoSave.SaveTimeoutMs)
	require.Equal(t, "ana", cfg.Document.Author)
	require.Equal(t, "development", cfg.Document.Environment)
	require.Equal(t, "@every 1h", cfg.Jobs.IntegrityCheckSpec)
	require.Equal(t, 4, cfg.Jobs.IntegrityWorkers)
	require.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowlist)
	require.EqualValues(t, 1024, cfg.MaxUploadSize)
	require.Equal(t, 1500, cfg.ImportRateLimitMs)
	require.Equal(t, 168, cfg.JWTTTLHours)
}

func TestLoadJSONDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.json", `{"seed_samples": true}`))
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, "memory", cfg.Storage.Type)
	require.Equal(t, 2000, cfg.AutoSave.DelayMs)
	require.Equal(t, "en", cfg.Document.Language)
	require.EqualValues(t, 5*1024*1024, cfg.MaxUploadSize)
	require.True(t, cfg.SeedSamples)
}

func TestLoadRejectsBadStorage(t *testing.T) {
	_, err := Load(writeConfig(t, "a.json", `{"storage": {"type": "ftp"}}`))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "b.json", `{"storage": {"type": "redis"}}`))
	require.ErrorContains(t, err, "storage.data is required")

	_, err = Load(writeConfig(t, "c.json", `{"auto_save": {"delay_ms": -1}}`))
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, "memory", cfg.Storage.Type)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 10000, cfg.AutoSave.SaveTimeoutMs)
}
