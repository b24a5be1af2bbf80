package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"syscall"
	"time"

	"dockevents/internal/config"
	"dockevents/internal/docker"
	"dockevents/internal/filter"
	"dockevents/internal/notifier"
	"dockevents/internal/ratelimit"
	"dockevents/internal/retention"
	"dockevents/internal/store"
	"dockevents/internal/watcher"
	"dockevents/internal/web"
)

// SignalCause is the cancellation cause set by the signal handler so the
// farewell can name the signal.
type SignalCause struct {
	Signal os.Signal
}

func (s SignalCause) Error() string { return "received " + SignalName(s.Signal) }

func SignalName(sig os.Signal) string {
	switch sig {
	case syscall.SIGTERM:
		return "SIGTERM"
	case syscall.SIGINT:
		return "SIGINT"
	case nil:
		return "shutdown"
	}
	return sig.String()
}

type App struct {
	cfg config.Config
	log *slog.Logger

	store   store.Store
	docker  *docker.Client
	notify  notifier.Notifier
	watcher *watcher.Watcher
	host    string

	httpSrv *http.Server
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	var st store.Store
	if cfg.LimitsEnabled() {
		s, err := store.Open(cfg.StoreBackend, cfg.LimitsDB, logger.With("module", "store"))
		if err != nil {
			return nil, err
		}
		st = s
	}

	n := notifier.Throttle(newNotifier(cfg), cfg.NotifyRatePerMinute, 5)
	dc := docker.NewClient(cfg.DockerSocket)

	var counters ratelimit.Counter
	var flusher retention.Flusher
	if st != nil {
		counters, flusher = st, st
	}
	w := watcher.New(
		filter.New(cfg.IgnoreLabel, cfg.IgnoreNames, cfg.Events),
		ratelimit.New(counters, cfg.LimitAll, cfg.LimitPer, logger.With("module", "ratelimit")),
		retention.NewService(flusher, cfg.FlushWindow, logger.With("module", "retention")),
		n,
		logger.With("module", "watcher"),
	)

	a := &App{
		cfg:     cfg,
		log:     logger,
		store:   st,
		docker:  dc,
		notify:  n,
		watcher: w,
	}
	if cfg.MetricsAddr != "" {
		srv := web.NewServer(st, dc, n, cfg.AppName(), logger.With("module", "web"))
		a.httpSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: srv.Routes(), ReadHeaderTimeout: 5 * time.Second}
	}
	return a, nil
}

func newNotifier(cfg config.Config) notifier.Notifier {
	if cfg.Notifier == config.NotifierTelegram {
		return notifier.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.NotifyTimeout)
	}
	return notifier.NewPushover(cfg.PushoverToken, cfg.PushoverKey, cfg.NotifyTimeout)
}

// Run watches events until ctx is cancelled, then sends the farewell and
// returns nil. Losing the event stream returns an error.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	if a.httpSrv != nil {
		go func() {
			a.log.Info("http server listening", "addr", a.cfg.MetricsAddr)
			if err := a.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.log.Error("http server failed", "err", err)
			}
		}()
	}

	a.host = a.resolveHost(ctx)
	a.log.Info("starting "+a.cfg.AppName(), "host", a.host, "events", a.cfg.Events,
		"limit_per", a.cfg.LimitPer, "limit_all", a.cfg.LimitAll, "limit_flush", a.cfg.FlushWindow)

	stream, err := a.docker.Events(ctx, docker.EventFilters{
		Types:   []string{"container"},
		Actions: a.cfg.Events,
	})
	if err != nil {
		if ctx.Err() != nil {
			a.farewell(ctx)
			return nil
		}
		return fmt.Errorf("subscribe to docker events: %w", err)
	}
	defer stream.Close()

	if err := a.watcher.Run(ctx, stream); err != nil {
		return err
	}
	a.farewell(ctx)
	return nil
}

func (a *App) resolveHost(ctx context.Context) string {
	infoCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	info, err := a.docker.Info(infoCtx)
	if err == nil && info.Name != "" {
		return info.Name
	}
	a.log.Warn("docker info unavailable, using local hostname", "err", err)
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown"
}

func (a *App) farewell(ctx context.Context) {
	var sig os.Signal
	var cause SignalCause
	if errors.As(context.Cause(ctx), &cause) {
		sig = cause.Signal
	}
	msg := fmt.Sprintf("%s received %s on %s. Goodbye!", a.cfg.AppName(), SignalName(sig), a.host)

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.FarewellTimeout)
	defer cancel()
	if err := a.notify.Send(fctx, watcher.Title, msg); err != nil {
		a.log.Error("farewell notification failed", "err", err)
		return
	}
	a.log.Info("farewell sent", "signal", SignalName(sig))
}

func (a *App) close() {
	if a.httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.httpSrv.Shutdown(shutdownCtx)
		cancel()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Error("closing limits db failed", "err", err)
		}
	}
}
