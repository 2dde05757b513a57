package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambiyansyah-risyal/apicall/migration"
)

func mapLookup(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://localhost:8000", cfg.APIURL)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryBaseDelay)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.MetricsEnabled)
	assert.Empty(t, cfg.OverrideFile)
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse(mapLookup(map[string]string{
		"NEXT_PUBLIC_API_URL":  "https://api.example.com",
		"API_TIMEOUT":          "5s",
		"API_MAX_RETRIES":      "0",
		"API_RETRY_BASE_DELAY": "250ms",
		"LOG_LEVEL":            "debug",
		"API_METRICS_ENABLED":  "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.APIURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.MetricsEnabled)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad url", map[string]string{"NEXT_PUBLIC_API_URL": "not a url"}},
		{"bad duration", map[string]string{"API_TIMEOUT": "soon"}},
		{"zero timeout", map[string]string{"API_TIMEOUT": "0s"}},
		{"negative retries", map[string]string{"API_MAX_RETRIES": "-1"}},
		{"non-numeric retries", map[string]string{"API_MAX_RETRIES": "three"}},
		{"unknown log level", map[string]string{"LOG_LEVEL": "verbose"}},
		{"bad bool", map[string]string{"API_METRICS_ENABLED": "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(mapLookup(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestRead_EarlierFileWins(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, ".env.local")
	shared := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(local, []byte("API_MAX_RETRIES=5\n"), 0o644))
	require.NoError(t, os.WriteFile(shared, []byte("API_MAX_RETRIES=2\nLOG_LEVEL=warn\n"), 0o644))

	values, err := Read(local, shared, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "5", values["API_MAX_RETRIES"])
	assert.Equal(t, "warn", values["LOG_LEVEL"])

	cfg, err := Parse(mapLookup(values))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_RealEnvironmentWins(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("API_RETRY_BASE_DELAY=2s\nLOG_LEVEL=error\n"), 0o644))

	t.Setenv("LOG_LEVEL", "debug")
	t.Cleanup(func() { os.Unsetenv("API_RETRY_BASE_DELAY") })

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.RetryBaseDelay)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_MissingFilesIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	assert.NoError(t, err)
}

func TestOverrideStoreSelection(t *testing.T) {
	cfg := Default()
	store, err := cfg.OverrideStore()
	require.NoError(t, err)
	assert.IsType(t, &migration.MemoryStore{}, store)

	cfg.OverrideFile = filepath.Join(t.TempDir(), "flags.yaml")
	store, err = cfg.OverrideStore()
	require.NoError(t, err)
	assert.IsType(t, &migration.FileStore{}, store)

	cfg.OverrideRedisURL = "redis://localhost:6379/0"
	store, err = cfg.OverrideStore()
	require.NoError(t, err)
	require.IsType(t, &migration.RedisStore{}, store)
	assert.NoError(t, store.(*migration.RedisStore).Close())
}

func TestFlagSource_EnvBeatsOverride(t *testing.T) {
	ctx := context.Background()
	cfg := Default()
	cfg.OverrideFile = filepath.Join(t.TempDir(), "flags.yaml")

	flags, store, err := cfg.FlagSource(nil)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, migration.OverrideFlagKey, "true"))

	t.Setenv(migration.EnvFlagKey, "")
	os.Unsetenv(migration.EnvFlagKey)
	enabled, ok := flags.Lookup(ctx)
	assert.True(t, ok)
	assert.True(t, enabled)

	t.Setenv(migration.EnvFlagKey, "false")
	enabled, ok = flags.Lookup(ctx)
	assert.True(t, ok)
	assert.False(t, enabled)
}
