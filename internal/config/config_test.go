package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
catalog:
  ttl: 2m
grading:
  pass_threshold: 70
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 70.0, cfg.Grading.PassThreshold)
	assert.Equal(t, 2*time.Minute, TTLDuration(cfg.Catalog.TTL, time.Minute))
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 66.0, cfg.Grading.PassThreshold)
	assert.Equal(t, EnvDevelopment, cfg.Env)
}

func TestLoadAppliesEnvironment(t *testing.T) {
	t.Setenv("AUTH_SECRET", "s3cret")
	t.Setenv("ALLOWED_ORIGINS", "https://escola.example, http://localhost:3000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Auth.Secret)
	assert.Equal(t, []string{"https://escola.example", "http://localhost:3000"}, cfg.Server.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Grading.PassThreshold = 120
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Env = EnvProduction
	assert.Error(t, cfg.Validate())

	cfg.Auth.Secret = "x"
	assert.NoError(t, cfg.Validate())
}

func TestTTLDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, TTLDuration("", time.Minute))
	assert.Equal(t, time.Minute, TTLDuration("soon", time.Minute))
	assert.Equal(t, 90*time.Second, TTLDuration("90s", time.Minute))
}
