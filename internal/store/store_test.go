package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/agilira/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestOpenBackends(t *testing.T) {
	cases := []struct {
		backend string
		path    string
	}{
		{BackendSQLite, "limits.db"},
		{"", "default.db"},
		{BackendBadger, "limits-badger"},
	}
	for _, tc := range cases {
		t.Run(tc.backend, func(t *testing.T) {
			s, err := Open(tc.backend, filepath.Join(t.TempDir(), tc.path), discard())
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })

			ctx := context.Background()
			require.NoError(t, s.Ping(ctx))
			for want := int64(1); want <= 3; want++ {
				got, err := s.IncrementAndGet(ctx, "ALL")
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestOpenSQLitePersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.db")
	ctx := context.Background()

	s, err := Open(BackendSQLite, path, discard())
	require.NoError(t, err)
	_, err = s.IncrementAndGet(ctx, "web.started")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(BackendSQLite, path, discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	n, err := s.IncrementAndGet(ctx, "web.started")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("etcd", t.TempDir(), discard())
	require.Error(t, err)
	coder, ok := err.(errors.ErrorCoder)
	require.True(t, ok, "expected coded error, got %T", err)
	assert.Equal(t, ErrCodeStoreUnavailable, string(coder.ErrorCode()))
}
