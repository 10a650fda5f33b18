package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credgate/credgate/internal/config"
)

func TestLoad_RequiresPepper(t *testing.T) {
	t.Setenv("CREDGATE_PEPPER", "")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CREDGATE_PEPPER")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CREDGATE_PEPPER", "unit-test-pepper")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "data/users.db", cfg.Store.Path)
	assert.Equal(t, 5*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 5, cfg.RateLimit.MaxAttempts)
	assert.Equal(t, "data/logs/errors.log", cfg.AuthLog.Path)
	assert.Equal(t, 24, cfg.Analyzer.HoursBack)
	assert.Equal(t, 12, cfg.Policy.MinLength)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CREDGATE_PEPPER", "unit-test-pepper")
	t.Setenv("CREDGATE_DB_PATH", "/var/lib/credgate/users.db")
	t.Setenv("CREDGATE_RATE_LIMIT_WINDOW", "10m")
	t.Setenv("CREDGATE_RATE_LIMIT_MAX_ATTEMPTS", "3")
	t.Setenv("CREDGATE_PASSWORD_MIN_LENGTH", "16")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/credgate/users.db", cfg.Store.Path)
	assert.Equal(t, 10*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 3, cfg.RateLimit.MaxAttempts)
	assert.Equal(t, 16, cfg.Policy.MinLength)
}

func TestLoad_DictionaryFile(t *testing.T) {
	dict := filepath.Join(t.TempDir(), "dictionary.yaml")
	require.NoError(t, os.WriteFile(dict, []byte(`
suspicious_usernames:
  - jenkins
  - deploy
password_policy:
  min_length: 14
`), 0o600))

	t.Setenv("CREDGATE_PEPPER", "unit-test-pepper")
	t.Setenv("CREDGATE_DICTIONARY_FILE", dict)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"jenkins", "deploy"}, cfg.Analyzer.SuspiciousUsernames)
	assert.Equal(t, 14, cfg.Policy.MinLength)
}

func TestLoad_RejectsInvalidRateLimit(t *testing.T) {
	t.Setenv("CREDGATE_PEPPER", "unit-test-pepper")
	t.Setenv("CREDGATE_RATE_LIMIT_MAX_ATTEMPTS", "-1")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_MissingDictionaryFileIsAnError(t *testing.T) {
	t.Setenv("CREDGATE_PEPPER", "unit-test-pepper")
	t.Setenv("CREDGATE_DICTIONARY_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := config.Load()
	assert.Error(t, err)
}
