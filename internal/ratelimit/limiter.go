package ratelimit

import (
	"context"
	"log/slog"

	"dockevents/internal/metrics"
)

// GlobalKey is the counter shared by every event when LIMIT_ALL is set.
const GlobalKey = "ALL"

const (
	ScopeAll = "all"
	ScopePer = "per"
)

type Counter interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
}

// Decision is the outcome of one Check. Count and Key describe the check
// that decided; Degraded reports that at least one counter could not be read
// and the event was let through for that scope.
type Decision struct {
	Suppressed bool
	Scope      string
	Key        string
	Limit      int64
	Count      int64
	Degraded   bool
}

// Limiter applies the global and per-container thresholds. A threshold of N
// lets N events through per retention window and suppresses the rest.
type Limiter struct {
	store Counter
	all   int64
	per   int64
	log   *slog.Logger
}

func New(store Counter, limitAll, limitPer int64, logger *slog.Logger) *Limiter {
	return &Limiter{store: store, all: limitAll, per: limitPer, log: logger}
}

func (l *Limiter) Enabled() bool {
	return l.all > 0 || l.per > 0
}

func PerKey(name, status string) string {
	return name + "." + status
}

func (l *Limiter) Check(ctx context.Context, name, status string) Decision {
	var d Decision
	if !l.Enabled() {
		return d
	}
	if l.all > 0 {
		if l.exceeded(ctx, &d, ScopeAll, GlobalKey, l.all) {
			// a global hit stops here; the per-container counter is not charged
			return d
		}
	}
	if l.per > 0 {
		l.exceeded(ctx, &d, ScopePer, PerKey(name, status), l.per)
	}
	return d
}

func (l *Limiter) exceeded(ctx context.Context, d *Decision, scope, key string, limit int64) bool {
	count, err := l.store.IncrementAndGet(ctx, key)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("increment").Inc()
		l.log.Error("limit counter unavailable, allowing event", "err", err, "key", key, "limit", limit)
		d.Degraded = true
		return false
	}
	d.Scope, d.Key, d.Limit, d.Count = scope, key, limit, count
	if count > limit {
		d.Suppressed = true
		return true
	}
	return false
}
