package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCounter struct {
	counts map[string]int64
	calls  []string
	fail   map[string]bool
}

func newMemCounter() *memCounter {
	return &memCounter{counts: map[string]int64{}, fail: map[string]bool{}}
}

func (m *memCounter) IncrementAndGet(_ context.Context, key string) (int64, error) {
	m.calls = append(m.calls, key)
	if m.fail[key] {
		return 0, errors.New("database is locked")
	}
	m.counts[key]++
	return m.counts[key], nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNoThresholdsSkipsStore(t *testing.T) {
	c := newMemCounter()
	l := New(c, 0, 0, discard())

	d := l.Check(context.Background(), "web", "started")

	assert.False(t, d.Suppressed)
	assert.False(t, l.Enabled())
	assert.Empty(t, c.calls)
}

func TestGlobalLimitLetsThreeThrough(t *testing.T) {
	c := newMemCounter()
	l := New(c, 3, 0, discard())
	ctx := context.Background()

	var delivered []int
	for i := 1; i <= 5; i++ {
		if !l.Check(ctx, "web", "started").Suppressed {
			delivered = append(delivered, i)
		}
	}
	assert.Equal(t, []int{1, 2, 3}, delivered)
	assert.Equal(t, int64(5), c.counts[GlobalKey], "suppressed events still count")
}

func TestPerKeyLimitIsolatesContainers(t *testing.T) {
	c := newMemCounter()
	l := New(c, 0, 2, discard())
	ctx := context.Background()

	assert.False(t, l.Check(ctx, "web", "started").Suppressed)
	assert.False(t, l.Check(ctx, "web", "started").Suppressed)
	d := l.Check(ctx, "web", "started")
	assert.True(t, d.Suppressed)
	assert.Equal(t, Decision{Suppressed: true, Scope: ScopePer, Key: "web.started", Limit: 2, Count: 3}, d)

	assert.False(t, l.Check(ctx, "api", "started").Suppressed)
	assert.False(t, l.Check(ctx, "web", "died").Suppressed)
}

func TestGlobalHitSkipsPerKeyAccounting(t *testing.T) {
	c := newMemCounter()
	l := New(c, 1, 5, discard())
	ctx := context.Background()

	first := l.Check(ctx, "web", "started")
	require.False(t, first.Suppressed)
	second := l.Check(ctx, "web", "started")
	require.True(t, second.Suppressed)
	assert.Equal(t, ScopeAll, second.Scope)

	assert.Equal(t, []string{GlobalKey, "web.started", GlobalKey}, c.calls)
	assert.Equal(t, int64(1), c.counts["web.started"])
}

func TestStoreErrorFailsOpen(t *testing.T) {
	c := newMemCounter()
	c.fail[GlobalKey] = true
	c.fail["web.started"] = true
	l := New(c, 1, 1, discard())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d := l.Check(ctx, "web", "started")
		assert.False(t, d.Suppressed)
		assert.True(t, d.Degraded)
	}
}

func TestGlobalStoreErrorStillChecksPerKey(t *testing.T) {
	c := newMemCounter()
	c.fail[GlobalKey] = true
	l := New(c, 1, 1, discard())
	ctx := context.Background()

	assert.False(t, l.Check(ctx, "web", "started").Suppressed)
	d := l.Check(ctx, "web", "started")
	assert.True(t, d.Suppressed)
	assert.True(t, d.Degraded)
	assert.Equal(t, "web.started", d.Key)
}
