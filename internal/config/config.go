package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrInvalid = errors.New("invalid configuration")

const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

type Config struct {
	BackendURL  string
	Collection  string
	AuthTimeout time.Duration
	LogLevel    string

	KV         KVConfig
	Cloudinary string
}

type KVConfig struct {
	Driver         string
	Path           string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisNamespace string
}

// Load reads .env files when present, then the environment. An empty
// BackendURL means offline mode.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Config{
		BackendURL: strings.TrimRight(os.Getenv("TAKJIL_BACKEND_URL"), "/"),
		Collection: envOr("TAKJIL_COLLECTION", "venues"),
		LogLevel:   envOr("TAKJIL_LOG_LEVEL", "info"),
		Cloudinary: os.Getenv("CLOUDINARY_URL"),
		KV: KVConfig{
			Driver:         envOr("TAKJIL_KV_DRIVER", DriverFile),
			Path:           envOr("TAKJIL_KV_PATH", defaultKVPath()),
			RedisAddr:      envOr("TAKJIL_REDIS_ADDR", "localhost:6379"),
			RedisPassword:  os.Getenv("TAKJIL_REDIS_PASSWORD"),
			RedisNamespace: envOr("TAKJIL_REDIS_NAMESPACE", "takjil"),
		},
	}

	cfg.AuthTimeout = 5 * time.Second
	if val, exists := os.LookupEnv("TAKJIL_AUTH_TIMEOUT"); exists {
		d, err := time.ParseDuration(val)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("%w: TAKJIL_AUTH_TIMEOUT=%q", ErrInvalid, val)
		}
		cfg.AuthTimeout = d
	}

	if val, exists := os.LookupEnv("TAKJIL_REDIS_DB"); exists {
		db, err := strconv.Atoi(val)
		if err != nil || db < 0 {
			return Config{}, fmt.Errorf("%w: TAKJIL_REDIS_DB=%q", ErrInvalid, val)
		}
		cfg.KV.RedisDB = db
	}

	switch cfg.KV.Driver {
	case DriverMemory, DriverFile, DriverSQLite, DriverRedis:
	default:
		return Config{}, fmt.Errorf("%w: unknown TAKJIL_KV_DRIVER %q", ErrInvalid, cfg.KV.Driver)
	}
	return cfg, nil
}

// Offline reports whether no backend is configured.
func (c Config) Offline() bool {
	return c.BackendURL == ""
}

func envOr(key, def string) string {
	if val, exists := os.LookupEnv(key); exists && val != "" {
		return val
	}
	return def
}

func defaultKVPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "takjil.json"
	}
	return dir + string(os.PathSeparator) + "takjil" + string(os.PathSeparator) + "state.json"
}
