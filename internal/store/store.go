// Package store selects and opens the persistent counter backend.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/agilira/go-errors"

	"dockevents/internal/db"
	"dockevents/internal/kv"
	"dockevents/internal/models"
)

const ErrCodeStoreUnavailable = "DOCKEVENTS_STORE_UNAVAILABLE"

const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Store owns the rate-limit counters. Nothing else mutates them.
type Store interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Flush(ctx context.Context, window time.Duration) (int64, error)
	List(ctx context.Context) ([]models.Counter, error)
	Reset(ctx context.Context, key string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*db.Repository)(nil)
	_ Store = (*kv.Store)(nil)
)

// Open creates (if needed) and opens the counter store at path.
func Open(backend, path string, logger *slog.Logger) (Store, error) {
	switch backend {
	case BackendSQLite, "":
		sqldb, err := db.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, ErrCodeStoreUnavailable, "cannot open sqlite counter store").
				WithContext("path", path)
		}
		if err := db.Migrate(sqldb); err != nil {
			_ = sqldb.Close()
			return nil, errors.Wrap(err, ErrCodeStoreUnavailable, "cannot migrate sqlite counter store").
				WithContext("path", path)
		}
		logger.Info("limits db ready", "backend", BackendSQLite, "path", path)
		return db.NewRepository(sqldb), nil
	case BackendBadger:
		s, err := kv.Open(path, logger)
		if err != nil {
			return nil, errors.Wrap(err, ErrCodeStoreUnavailable, "cannot open badger counter store").
				WithContext("path", path)
		}
		logger.Info("limits db ready", "backend", BackendBadger, "path", path)
		return s, nil
	default:
		return nil, errors.New(ErrCodeStoreUnavailable, "unknown store backend: "+backend)
	}
}
