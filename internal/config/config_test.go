package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(t.TempDir())
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(newTestViper(t))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, StorageModeLocal, cfg.Storage.Mode)
	assert.Equal(t, 30, cfg.Generation.TryBudget)
	assert.Equal(t, "images:generate", cfg.Queue.Stream)
	assert.Equal(t, 30*time.Second, cfg.Queue.ClaimInterval)
	assert.Equal(t, time.Duration(0), cfg.Generation.Timeout)
	assert.Empty(t, cfg.Generation.APIKey)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MYTHWEAVER_GENERATION_APIKEY", "sk-test")
	t.Setenv("MYTHWEAVER_STORAGE_MODE", "remote")
	t.Setenv("MYTHWEAVER_GENERATION_RATELIMIT", "250ms")

	cfg, err := load(newTestViper(t))
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Generation.APIKey)
	assert.Equal(t, StorageModeRemote, cfg.Storage.Mode)
	assert.Equal(t, 250*time.Millisecond, cfg.Generation.RateLimit)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("storage:\n  datadir: /srv/data\nqueue:\n  maxlen: 42\nallowcorsorigins: https://a.test,https://b.test\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	cfg, err := load(v)
	require.NoError(t, err)

	assert.Equal(t, "/srv/data", cfg.Storage.DataDir)
	assert.Equal(t, int64(42), cfg.Queue.MaxLen)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.AllowCORSOrigins)
}

func TestLoadRejectsUnknownStorageMode(t *testing.T) {
	t.Setenv("MYTHWEAVER_STORAGE_MODE", "ftp")

	_, err := load(newTestViper(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.mode")
}

func TestValidateAPIRequiresSecret(t *testing.T) {
	cfg, err := load(newTestViper(t))
	require.NoError(t, err)
	assert.Error(t, cfg.ValidateAPI())

	cfg.Security.JWTAccessSecret = "   "
	assert.Error(t, cfg.ValidateAPI())

	t.Setenv("MYTHWEAVER_SECURITY_JWTACCESSSECRET", "s3cret")
	cfg, err = load(newTestViper(t))
	require.NoError(t, err)
	assert.NoError(t, cfg.ValidateAPI())
}
