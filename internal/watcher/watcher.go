// Package watcher runs the per-event pipeline: flush, filter, rate limit and
// notify.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agilira/go-timecache"

	"dockevents/internal/docker"
	"dockevents/internal/filter"
	"dockevents/internal/metrics"
	"dockevents/internal/models"
	"dockevents/internal/notifier"
	"dockevents/internal/ratelimit"
	"dockevents/internal/retention"
)

const Title = "Docker Event"

type Outcome string

const (
	Notified     Outcome = "notified"
	Ignored      Outcome = "ignored"
	Suppressed   Outcome = "suppressed"
	Malformed    Outcome = "malformed"
	NotifyFailed Outcome = "notify_failed"
)

type Stream interface {
	Next() (models.Event, error)
}

type Watcher struct {
	filter    *filter.Filter
	limiter   *ratelimit.Limiter
	retention *retention.Service
	notify    notifier.Notifier
	log       *slog.Logger

	loc *time.Location
	now func() time.Time
}

func New(f *filter.Filter, l *ratelimit.Limiter, r *retention.Service, n notifier.Notifier, logger *slog.Logger) *Watcher {
	return &Watcher{
		filter:    f,
		limiter:   l,
		retention: r,
		notify:    n,
		log:       logger,
		loc:       time.Local,
		now:       timecache.CachedTime,
	}
}

func Format(name, image, status, when string) string {
	return fmt.Sprintf("The container %s (%s) %s at %s", name, image, status, when)
}

// Run consumes stream until it ends. It returns nil when ctx was cancelled
// and an error for any other end of stream.
func (w *Watcher) Run(ctx context.Context, stream Stream) error {
	w.log.Info("watching docker events")
	for {
		ev, err := stream.Next()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.Is(err, docker.ErrMalformedEvent) {
				metrics.Events.WithLabelValues(string(Malformed)).Inc()
				w.log.Warn("skipping undecodable event", "err", err)
				continue
			}
			return fmt.Errorf("docker event stream ended: %w", err)
		}
		w.Handle(ctx, ev)
	}
}

func (w *Watcher) Handle(ctx context.Context, ev models.Event) Outcome {
	out := w.handle(ctx, ev)
	metrics.Events.WithLabelValues(string(out)).Inc()
	return out
}

func (w *Watcher) handle(ctx context.Context, ev models.Event) Outcome {
	status := docker.PastTense(ev.Kind)
	at := ev.Time
	if at.IsZero() {
		at = w.now()
	}
	log := w.log.With("container", docker.ShortID(ev.ID), "name", ev.Name(), "status", status)
	log.Debug("event received", "kind", ev.Kind, "attributes", ev.Attributes)

	w.retention.Run(ctx)

	if ev.Name() == "" || ev.Image() == "" {
		log.Warn("event without name or image, skipping", "kind", ev.Kind)
		return Malformed
	}
	if reason := w.filter.Reason(ev); reason != "" {
		log.Debug("event ignored", "reason", reason)
		return Ignored
	}
	if d := w.limiter.Check(ctx, ev.Name(), status); d.Suppressed {
		log.Info("rate limit reached, skipping notification", "key", d.Key, "limit", d.Limit, "count", d.Count)
		return Suppressed
	}

	msg := Format(ev.Name(), ev.Image(), status, docker.DisplayTime(at, w.loc))
	if err := w.notify.Send(ctx, Title, msg); err != nil {
		log.Error("notification failed", "err", err)
		return NotifyFailed
	}
	log.Info("notification sent", "message", msg)
	return Notified
}
