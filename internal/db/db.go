package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

var ErrStore = errors.New("counter store error")

func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir data dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=2000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// one writer; keeps increment-then-read on a single connection
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA synchronous=NORMAL; PRAGMA temp_store=MEMORY;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the limits table and brings databases written by older
// releases (no unique key, duplicate rows per name, UpdateLastTime trigger)
// up to the current schema.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS limits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			count INTEGER,
			last_update_ts DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`DROP TRIGGER IF EXISTS UpdateLastTime;`,
		`DELETE FROM limits WHERE id NOT IN (
			SELECT id FROM (SELECT id, MAX(COALESCE(count, 0)) FROM limits GROUP BY name)
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_limits_name ON limits(name);`,
		`CREATE INDEX IF NOT EXISTS idx_limits_last_update ON limits(last_update_ts);`,
		`CREATE TRIGGER IF NOT EXISTS limits_touch_last_update
			AFTER UPDATE ON limits
			FOR EACH ROW
			WHEN NEW.last_update_ts <= OLD.last_update_ts
			BEGIN
				UPDATE limits SET last_update_ts = strftime('%Y-%m-%d %H:%M:%f', 'now') WHERE id = OLD.id;
			END;`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate failed: %w", err)
		}
	}
	return nil
}
