package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"takjil/internal/auth"
	"takjil/internal/config"
	"takjil/internal/geo"
	"takjil/internal/kv"
	"takjil/internal/media"
	"takjil/internal/registry"
	"takjil/internal/store"
)

// ErrOffline is the degraded reason when no backend is configured.
var ErrOffline = errors.New("no backend configured")

type offline struct{}

func (offline) SignInAnonymously(context.Context) (string, error) { return "", ErrOffline }
func (offline) SignOut(context.Context, string) error             { return nil }

// Open builds a Service from configuration. Without a backend URL it runs
// against an in-process collection seeded from the cached snapshot, so
// venues survive between offline runs.
func Open(ctx context.Context, cfg config.Config, position geo.PositionSource, logger *zap.SugaredLogger) (*Service, error) {
	kvStore, closers, err := openKV(ctx, cfg.KV)
	if err != nil {
		return nil, err
	}

	var uploader media.Uploader
	if cfg.Cloudinary != "" {
		cld, err := media.NewCloudinaryUploader(cfg.Cloudinary)
		if err != nil {
			closeAll(closers)
			return nil, err
		}
		uploader = cld
	}
	images, err := media.NewImages(cfg.Collection, uploader)
	if err != nil {
		closeAll(closers)
		return nil, err
	}

	var (
		boot   *auth.Bootstrapper
		remote registry.Client
	)
	if cfg.Offline() {
		logger.Warnw("no backend configured, running offline")
		cached, err := store.ReadCached(ctx, kvStore)
		if err != nil {
			logger.Warnw("ignoring unreadable cached snapshot", "error", err)
		}
		boot = auth.NewBootstrapper(offline{}, cfg.AuthTimeout, logger.With("component", "auth"))
		remote = registry.NewMemory(cached...)
	} else {
		boot = auth.NewBootstrapper(auth.NewHTTPProvider(cfg.BackendURL, nil), cfg.AuthTimeout, logger.With("component", "auth"))
		remote = registry.NewHTTPClient(cfg.BackendURL, cfg.Collection, boot, nil, logger.With("component", "registry"))
	}

	return New(Deps{
		Auth:     boot,
		Remote:   remote,
		KV:       kvStore,
		Position: position,
		Images:   images,
		Logger:   logger,
		Closers:  closers,
	}), nil
}

func openKV(ctx context.Context, cfg config.KVConfig) (kv.Store, []io.Closer, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return kv.NewMemory(), nil, nil
	case config.DriverFile:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, nil, fmt.Errorf("kv dir: %w", err)
		}
		f, err := kv.OpenFile(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return f, nil, nil
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, nil, fmt.Errorf("kv dir: %w", err)
		}
		db, err := kv.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, []io.Closer{db}, nil
	case config.DriverRedis:
		r, err := kv.OpenRedis(ctx, kv.RedisConfig{
			Address:   cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			Namespace: cfg.RedisNamespace,
		})
		if err != nil {
			return nil, nil, err
		}
		return r, []io.Closer{r}, nil
	}
	return nil, nil, fmt.Errorf("%w: kv driver %q", config.ErrInvalid, cfg.Driver)
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}
