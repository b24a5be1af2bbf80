package retention

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dockevents/internal/metrics"
)

func TestParseWindow(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"-1 hour", time.Hour},
		{"-30 minutes", 30 * time.Minute},
		{"+2 days", 48 * time.Hour},
		{"-3600 seconds", time.Hour},
		{"1.5 Hours", 90 * time.Minute},
		{"90m", 90 * time.Minute},
		{"-1h", time.Hour},
		{"  -1 hour  ", time.Hour},
	}
	for _, tc := range cases {
		got, err := ParseWindow(tc.in)
		require.NoError(t, err, "ParseWindow(%q)", tc.in)
		assert.Equal(t, tc.want, got, "ParseWindow(%q)", tc.in)
	}
}

func TestParseWindowRejectsGarbage(t *testing.T) {
	for _, in := range []string{"soon", "-1 fortnight", "x hours", "0 hours", "0s", "1 2 3",
		"NaN hours", "Inf days", "-Inf days", "-1e12 years", "-300 years"} {
		_, err := ParseWindow(in)
		assert.Error(t, err, "ParseWindow(%q)", in)
	}
}

type fakeFlusher struct {
	calls  int
	window time.Duration
	n      int64
	err    error
}

func (f *fakeFlusher) Flush(_ context.Context, window time.Duration) (int64, error) {
	f.calls++
	f.window = window
	return f.n, f.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRunFlushesWithWindow(t *testing.T) {
	f := &fakeFlusher{n: 3}
	before := testutil.ToFloat64(metrics.CountersFlushed)

	NewService(f, time.Hour, discard()).Run(context.Background())

	assert.Equal(t, 1, f.calls)
	assert.Equal(t, time.Hour, f.window)
	assert.Equal(t, before+3, testutil.ToFloat64(metrics.CountersFlushed))
}

func TestRunIsNoopWhenDisabled(t *testing.T) {
	f := &fakeFlusher{}
	NewService(f, 0, discard()).Run(context.Background())
	NewService(nil, time.Hour, discard()).Run(context.Background())
	var nilSvc *Service
	nilSvc.Run(context.Background())

	assert.Zero(t, f.calls)
}

func TestRunSwallowsStoreErrors(t *testing.T) {
	f := &fakeFlusher{err: errors.New("disk I/O error")}
	before := testutil.ToFloat64(metrics.StoreErrors.WithLabelValues("flush"))

	NewService(f, time.Hour, discard()).Run(context.Background())

	assert.Equal(t, 1, f.calls)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.StoreErrors.WithLabelValues("flush")))
}
