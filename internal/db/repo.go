package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/agilira/go-timecache"

	"dockevents/internal/models"
)

// timeLayout is fixed width so that lexical order on last_update_ts matches
// chronological order, including rows stamped by CURRENT_TIMESTAMP.
const timeLayout = "2006-01-02 15:04:05.000"

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: timecache.CachedTime}
}

func (r *Repository) DB() *sql.DB { return r.db }

func (r *Repository) stamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// IncrementAndGet creates the counter at 1 or bumps it by one, returning the
// stored value.
func (r *Repository) IncrementAndGet(ctx context.Context, key string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `INSERT INTO limits (name, count, last_update_ts) VALUES (?, 1, ?)
		ON CONFLICT(name) DO UPDATE SET count = COALESCE(count, 0) + 1, last_update_ts = excluded.last_update_ts
		RETURNING count`, key, r.stamp(r.now())).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: increment %s: %w", ErrStore, key, err)
	}
	return count, nil
}

// Flush deletes every counter last touched at or before now-window.
func (r *Repository) Flush(ctx context.Context, window time.Duration) (int64, error) {
	cutoff := r.now().Add(-window)
	res, err := r.db.ExecContext(ctx, `DELETE FROM limits WHERE last_update_ts <= ?`, r.stamp(cutoff))
	if err != nil {
		return 0, fmt.Errorf("%w: flush before %s: %w", ErrStore, r.stamp(cutoff), err)
	}
	return res.RowsAffected()
}

func (r *Repository) List(ctx context.Context) ([]models.Counter, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id,name,COALESCE(count,0),last_update_ts FROM limits ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", ErrStore, err)
	}
	defer rows.Close()
	var out []models.Counter
	for rows.Next() {
		var c models.Counter
		var last sql.NullTime
		if err := rows.Scan(&c.ID, &c.Key, &c.Count, &last); err != nil {
			return nil, fmt.Errorf("%w: list: %w", ErrStore, err)
		}
		if last.Valid {
			c.LastUpdate = last.Time.UTC()
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Reset deletes one counter, or all of them when key is empty.
func (r *Repository) Reset(ctx context.Context, key string) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if key == "" {
		res, err = r.db.ExecContext(ctx, `DELETE FROM limits`)
	} else {
		res, err = r.db.ExecContext(ctx, `DELETE FROM limits WHERE name = ?`, key)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: reset %q: %w", ErrStore, key, err)
	}
	return res.RowsAffected()
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	_, _ = r.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`)
	return r.db.Close()
}
