package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/seal-console/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8787, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.SchedulePollInterval)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.False(t, cfg.DevMode)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("API_URL", "https://api.seal.dev/api/")
	t.Setenv("SCHEDULE_POLL_INTERVAL", "250ms")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("DEV_MODE", "true")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "https://api.seal.dev/api", cfg.APIURL)
	assert.Equal(t, 250*time.Millisecond, cfg.SchedulePollInterval)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.True(t, cfg.DevMode)
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("HTTP_TIMEOUT", "soon")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUPABASE_URL is required")
	assert.Contains(t, err.Error(), "SCHEDULING_URL is required")

	cfg.SupabaseURL = "https://xyz.supabase.co"
	cfg.SupabaseAnonKey = "anon"
	cfg.SchedulingURL = "https://cal.example/seal"
	cfg.ContractURL = "https://sign.example/seal"
	assert.NoError(t, cfg.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SEAL_TEST_KEEP=file\nSEAL_TEST_NEW=\"from file\"\n"), 0o600))

	t.Setenv("SEAL_TEST_KEEP", "env")
	t.Setenv("SEAL_TEST_NEW", "")
	os.Unsetenv("SEAL_TEST_NEW")

	require.NoError(t, config.LoadDotEnv(path))
	assert.Equal(t, "env", os.Getenv("SEAL_TEST_KEEP"))
	assert.Equal(t, "from file", os.Getenv("SEAL_TEST_NEW"))

	assert.NoError(t, config.LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}
