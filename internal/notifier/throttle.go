package notifier

import (
	"context"

	"golang.org/x/time/rate"
)

type throttled struct {
	next    Notifier
	limiter *rate.Limiter
}

// Throttle caps outbound sends at perMinute with a burst of burst. Waiting
// for a token honours ctx, so a cancelled send returns instead of blocking.
// perMinute <= 0 returns n unchanged.
func Throttle(n Notifier, perMinute, burst int) Notifier {
	if perMinute <= 0 {
		return n
	}
	return &throttled{
		next:    n,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), max(1, burst)),
	}
}

func (t *throttled) Send(ctx context.Context, title, message string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.next.Send(ctx, title, message)
}
