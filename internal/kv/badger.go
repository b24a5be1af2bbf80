package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/agilira/go-timecache"
	"github.com/dgraph-io/badger/v4"

	"dockevents/internal/models"
)

const counterPrefix = "limits/"

var ErrStore = errors.New("counter store error")

type record struct {
	Count      int64     `json:"count"`
	LastUpdate time.Time `json:"last_update"`
}

// Store keeps rate-limit counters in a badger database, one key per counter.
type Store struct {
	db  *badger.DB
	log *slog.Logger
	now func() time.Time
}

func Open(path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create directory %s: %w", ErrStore, path, err)
	}
	opts := badger.DefaultOptions(path)
	opts.Logger = &badgerLogger{log: logger}
	// counters are tiny; keep the footprint small
	opts.ValueLogFileSize = 16 << 20
	opts.NumMemtables = 2
	opts.MemTableSize = 8 << 20

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger at %s: %w", ErrStore, path, err)
	}
	return &Store{db: db, log: logger, now: timecache.CachedTime}, nil
}

// OpenInMemory returns a store that lives only as long as the process.
func OpenInMemory(logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open in-memory badger: %w", ErrStore, err)
	}
	return &Store{db: db, log: logger, now: timecache.CachedTime}, nil
}

func (s *Store) IncrementAndGet(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: increment %s: %w", ErrStore, key, err)
	}
	var count int64
	err := s.db.Update(func(txn *badger.Txn) error {
		rec := record{}
		item, err := txn.Get([]byte(counterPrefix + key))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
				return err
			}
		}
		rec.Count++
		rec.LastUpdate = s.now().UTC()
		b, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		count = rec.Count
		return txn.Set([]byte(counterPrefix+key), b)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: increment %s: %w", ErrStore, key, err)
	}
	return count, nil
}

func (s *Store) Flush(ctx context.Context, window time.Duration) (int64, error) {
	cutoff := s.now().Add(-window)
	var stale [][]byte
	err := s.scan(ctx, func(key string, rec record, ok bool) {
		// undecodable values cannot be aged; drop them with the stale ones
		if !ok || !rec.LastUpdate.After(cutoff) {
			stale = append(stale, []byte(counterPrefix+key))
		}
	})
	if err != nil {
		return 0, fmt.Errorf("%w: flush: %w", ErrStore, err)
	}
	if len(stale) == 0 {
		return 0, nil
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range stale {
		if err := wb.Delete(k); err != nil {
			return 0, fmt.Errorf("%w: flush delete %s: %w", ErrStore, k, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("%w: flush commit: %w", ErrStore, err)
	}
	return int64(len(stale)), nil
}

func (s *Store) List(ctx context.Context) ([]models.Counter, error) {
	var out []models.Counter
	err := s.scan(ctx, func(key string, rec record, ok bool) {
		if !ok {
			return
		}
		out = append(out, models.Counter{Key: key, Count: rec.Count, LastUpdate: rec.LastUpdate})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", ErrStore, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Reset deletes one counter, or all of them when key is empty.
func (s *Store) Reset(ctx context.Context, key string) (int64, error) {
	if key != "" {
		var n int64
		err := s.db.Update(func(txn *badger.Txn) error {
			if _, err := txn.Get([]byte(counterPrefix + key)); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return nil
				}
				return err
			}
			n = 1
			return txn.Delete([]byte(counterPrefix + key))
		})
		if err != nil {
			return 0, fmt.Errorf("%w: reset %q: %w", ErrStore, key, err)
		}
		return n, nil
	}
	var keys []string
	if err := s.scan(ctx, func(k string, _ record, _ bool) { keys = append(keys, k) }); err != nil {
		return 0, fmt.Errorf("%w: reset all: %w", ErrStore, err)
	}
	if err := s.db.DropPrefix([]byte(counterPrefix)); err != nil {
		return 0, fmt.Errorf("%w: reset all: %w", ErrStore, err)
	}
	return int64(len(keys)), nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return fmt.Errorf("%w: database closed", ErrStore)
	}
	return ctx.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) scan(ctx context.Context, fn func(key string, rec record, ok bool)) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(counterPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := strings.TrimPrefix(string(item.Key()), counterPrefix)
			var rec record
			err := item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) })
			if err != nil {
				s.log.Warn("undecodable counter", "key", key, "err", err)
			}
			fn(key, rec, err == nil)
		}
		return nil
	})
}

// badgerLogger routes badger's printf-style logging into slog.
type badgerLogger struct {
	log *slog.Logger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(f, v...)))
}
