package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"TAKJIL_BACKEND_URL", "TAKJIL_COLLECTION", "TAKJIL_AUTH_TIMEOUT", "TAKJIL_LOG_LEVEL",
	"TAKJIL_KV_DRIVER", "TAKJIL_KV_PATH", "TAKJIL_REDIS_ADDR", "TAKJIL_REDIS_PASSWORD",
	"TAKJIL_REDIS_DB", "TAKJIL_REDIS_NAMESPACE", "CLOUDINARY_URL",
}

// clearEnv unsets every key for the test and restores it afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func missing(t *testing.T) string {
	return filepath.Join(t.TempDir(), "none.env")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(missing(t))
	require.NoError(t, err)
	assert.True(t, cfg.Offline())
	assert.Equal(t, "venues", cfg.Collection)
	assert.Equal(t, 5*time.Second, cfg.AuthTimeout)
	assert.Equal(t, DriverFile, cfg.KV.Driver)
	assert.NotEmpty(t, cfg.KV.Path)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "takjil", cfg.KV.RedisNamespace)
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("TAKJIL_BACKEND_URL", "https://api.example.com/")
	t.Setenv("TAKJIL_AUTH_TIMEOUT", "750ms")
	t.Setenv("TAKJIL_KV_DRIVER", "redis")
	t.Setenv("TAKJIL_REDIS_DB", "3")
	t.Setenv("TAKJIL_REDIS_NAMESPACE", "kiosk-7")

	cfg, err := Load(missing(t))
	require.NoError(t, err)
	assert.False(t, cfg.Offline())
	assert.Equal(t, "https://api.example.com", cfg.BackendURL)
	assert.Equal(t, 750*time.Millisecond, cfg.AuthTimeout)
	assert.Equal(t, DriverRedis, cfg.KV.Driver)
	assert.Equal(t, 3, cfg.KV.RedisDB)
	assert.Equal(t, "kiosk-7", cfg.KV.RedisNamespace)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TAKJIL_COLLECTION=iftar\nTAKJIL_KV_DRIVER=sqlite\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "iftar", cfg.Collection)
	assert.Equal(t, DriverSQLite, cfg.KV.Driver)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string][2]string{
		"timeout":  {"TAKJIL_AUTH_TIMEOUT", "soon"},
		"negative": {"TAKJIL_AUTH_TIMEOUT", "-1s"},
		"redis db": {"TAKJIL_REDIS_DB", "zero"},
		"driver":   {"TAKJIL_KV_DRIVER", "floppy"},
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			_, err := Load(missing(t))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}
