package storage

import (
	"context"
	"fmt"

	"github.com/bher20/stromdeals/internal/logging"
)

// Config controls how the storage backend is opened.
type Config struct {
	Driver      string
	DSN         string
	DataDir     string
	AutoMigrate bool
}

// Open constructs a Storage based on the given configuration.
func Open(ctx context.Context, cfg Config) (Storage, error) {
	log := logging.For("storage")
	drv := cfg.Driver
	if drv == "" {
		drv = "memory"
	}
	switch drv {
	case "memory":
		log.Info("using in-memory backend")
		return NewMemory(), nil

	case "file":
		log.WithField("dir", cfg.DataDir).Info("using file backend")
		return NewFileStorage(cfg.DataDir)

	case "sqlite", "postgres":
		log.WithField("driver", drv).Info("using gorm backend")
		st, err := NewGormStorage(drv, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := st.Migrate(ctx); err != nil {
				st.Close()
				return nil, fmt.Errorf("storage migrate: %w", err)
			}
		}
		return st, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", drv)
	}
}
