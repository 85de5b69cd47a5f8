package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 50, cfg.Extraction.MinTextLength)
	assert.Empty(t, cfg.Extraction.RulesFile)
	assert.True(t, cfg.Observability.MetricsEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("EXTRACTION_RULES_FILE", "/etc/familia/rules.yaml")
	t.Setenv("EXTRACTION_WORKERS", "3")
	t.Setenv("PPROF_ENABLED", "true")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/etc/familia/rules.yaml", cfg.Extraction.RulesFile)
	assert.Equal(t, 3, cfg.Extraction.Workers)
	assert.True(t, cfg.Profiling.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("SERVER_PORT", "eighty")
	t.Setenv("METRICS_ENABLED", "maybe")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_PORT")
	assert.Contains(t, err.Error(), "METRICS_ENABLED")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss", Name: "familia", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss@db:5432/familia?sslmode=disable", d.DSN())

	d.URL = "postgres://override"
	assert.Equal(t, "postgres://override", d.DSN())
}
