package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/medsecure/telehealth/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, ProviderOpenRouter, cfg.LLMProvider)
	assert.Equal(t, "openai/gpt-3.5-turbo", cfg.LLMModel)
	assert.Equal(t, float32(0.85), cfg.SimilarityThreshold)
	assert.Equal(t, core.MatchNormalized, cfg.StaffMatchMode)
	assert.Equal(t, 12*time.Hour, cfg.StaffTokenTTL)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("SIMILARITY_THRESHOLD", "0.9")
	t.Setenv("STAFF_TOKEN_TTL", "30m")
	t.Setenv("LLM_PROVIDER", "Gemini")
	t.Setenv("STAFF_MATCH_MODE", "exact")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.InDelta(t, 0.9, cfg.SimilarityThreshold, 1e-6)
	assert.Equal(t, 30*time.Minute, cfg.StaffTokenTTL)
	assert.Equal(t, ProviderGemini, cfg.LLMProvider)
	assert.Equal(t, core.MatchExact, cfg.StaffMatchMode)
	assert.Equal(t, 3, cfg.RedisDB)
}

func TestLoad_InvalidNumber(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SIMILARITY_THRESHOLD", "high")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SIMILARITY_THRESHOLD")
}

func TestLoad_ConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "telehealth.yaml")
	content := []byte(`
http_port: "7070"
database_url: /var/lib/telehealth/data.db
staff_token_ttl: 2h
similarity_threshold: 0.75
events_backend: redis
`)
	require.NoError(t, os.WriteFile(path, content, 0600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("HTTP_PORT", "6060")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "6060", cfg.HTTPPort, "environment wins over the file")
	assert.Equal(t, "/var/lib/telehealth/data.db", cfg.DatabaseURL)
	assert.Equal(t, 2*time.Hour, cfg.StaffTokenTTL)
	assert.InDelta(t, 0.75, cfg.SimilarityThreshold, 1e-6)
	assert.Equal(t, EventsRedis, cfg.EventsBackend)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threshold zero", func(c *Config) { c.SimilarityThreshold = 0 }},
		{"threshold above one", func(c *Config) { c.SimilarityThreshold = 1.5 }},
		{"unknown provider", func(c *Config) { c.LLMProvider = "claude" }},
		{"unknown match mode", func(c *Config) { c.StaffMatchMode = "fuzzy" }},
		{"unknown events backend", func(c *Config) { c.EventsBackend = "kafka" }},
		{"negative ttl", func(c *Config) { c.StaffTokenTTL = -time.Minute }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.JWTSecret = "secret"
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.JWTSecret = "secret"
	assert.NoError(t, cfg.Validate())
}
