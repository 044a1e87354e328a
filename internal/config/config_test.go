package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	model := writeFile(t, dir, "model.json", `{}`)
	t.Setenv("MODEL_PATH", model)

	cfg, err := Load(writeFile(t, dir, "config.yaml", "log:\n  level: info\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "development", cfg.Server.Environment)
	assert.Equal(t, model, cfg.Model.Path)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 15*time.Minute, cfg.Cache.PredictionTTL)
	assert.Equal(t, 3, cfg.Model.Remote.Retry.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Model.Remote.Breaker.RecoveryTimeout)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.UsesTLS())
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	model := writeFile(t, dir, "model.json", `{}`)
	configFile := writeFile(t, dir, "config.yaml", `
server:
  port: 9000
  environment: production
  allowed_origins:
    - https://symptoms.example.com
session:
  ttl: 10m
  cookie_secure: true
model:
  path: `+model+`
  version: "2024.1"
rate_limit:
  requests_per_minute: 30
`)
	t.Setenv("SYMPTOM_LOG_LEVEL", "debug")
	t.Setenv("PORT", "9100")

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port, "env overrides the file")
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, []string{"https://symptoms.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 10*time.Minute, cfg.Session.TTL)
	assert.True(t, cfg.Session.CookieSecure)
	assert.Equal(t, "2024.1", cfg.Model.Version)
	assert.Equal(t, 30, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_PrefixedEnvWinsOverBareName(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MODEL_PATH", writeFile(t, dir, "model.json", `{}`))
	t.Setenv("SYMPTOM_SERVER_PORT", "7000")
	t.Setenv("PORT", "7001")

	cfg, err := Load(writeFile(t, dir, "config.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestLoad_RemoteModelNeedsNoArtifact(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MODEL_PATH", filepath.Join(dir, "missing.json"))
	t.Setenv("MODEL_URL", "http://models.internal:9000")

	cfg, err := Load(writeFile(t, dir, "config.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, "http://models.internal:9000", cfg.Model.Remote.BaseURL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		message string
	}{
		{
			name:    "port out of range",
			yaml:    "server:\n  port: 70000\n",
			message: "port",
		},
		{
			name:    "unknown log level",
			yaml:    "log:\n  level: loud\n",
			message: "level",
		},
		{
			name:    "unknown session backend",
			yaml:    "session:\n  backend: mongo\n",
			message: "backend",
		},
		{
			name:    "redis backend without url",
			yaml:    "session:\n  backend: redis\n",
			message: "redis.url",
		},
		{
			name:    "missing model artifact",
			yaml:    "",
			env:     map[string]string{"MODEL_PATH": "/nonexistent/model.json"},
			message: "model.path",
		},
		{
			name:    "tls cert without key",
			yaml:    "server:\n  tls_cert_file: /nonexistent/cert.pem\n",
			message: "tls",
		},
		{
			name:    "not yaml",
			yaml:    "server: [",
			message: "could not be read",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Setenv("MODEL_PATH", writeFile(t, dir, "model.json", `{}`))
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load(writeFile(t, dir, "config.yaml", tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}
