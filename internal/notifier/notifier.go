package notifier

import (
	"context"
	"time"

	"dockevents/internal/metrics"
)

// Notifier delivers one message. Delivery is best effort; implementations do
// not retry.
type Notifier interface {
	Send(ctx context.Context, title, message string) error
}

func observe(transport string, start time.Time, err error) {
	status := "sent"
	if err != nil {
		status = "failed"
	}
	metrics.Notifications.WithLabelValues(transport, status).Inc()
	metrics.NotificationDuration.WithLabelValues(transport).Observe(time.Since(start).Seconds())
}
