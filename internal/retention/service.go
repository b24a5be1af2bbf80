package retention

import (
	"context"
	"log/slog"
	"time"

	"dockevents/internal/metrics"
)

type Flusher interface {
	Flush(ctx context.Context, window time.Duration) (int64, error)
}

// Service drops counters that have not been touched within the window. It is
// driven by event cadence: the watcher calls Run once per event, so a quiet
// daemon keeps stale counters until the next event arrives.
type Service struct {
	store  Flusher
	window time.Duration
	log    *slog.Logger
}

func NewService(store Flusher, window time.Duration, logger *slog.Logger) *Service {
	return &Service{store: store, window: window, log: logger}
}

func (s *Service) Enabled() bool {
	return s != nil && s.store != nil && s.window > 0
}

func (s *Service) Window() time.Duration {
	if s == nil {
		return 0
	}
	return s.window
}

func (s *Service) Run(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	n, err := s.store.Flush(ctx, s.window)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("flush").Inc()
		s.log.Error("limits flush failed", "err", err, "window", s.window)
		return
	}
	if n > 0 {
		metrics.CountersFlushed.Add(float64(n))
	}
	s.log.Debug("limits flushed", "deleted", n, "window", s.window)
}
