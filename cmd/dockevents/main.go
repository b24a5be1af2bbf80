// dockevents watches the Docker event stream and forwards container
// lifecycle events as push notifications.
//
// Usage:
//
//	dockevents                      run the notifier
//	dockevents counters             list rate-limit counters
//	dockevents counters flush       drop counters older than LIMIT_FLUSH
//	dockevents counters reset web   delete one counter
//	dockevents version
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dockevents/internal/app"
	"dockevents/internal/config"
)

var (
	version    = "dev"
	configPath string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dockevents",
		Short: "Forward Docker container events as notifications",
		Long: `dockevents subscribes to the local Docker daemon's event stream and sends a
notification for every container event that passes the ignore rules and the
rate limits.

Configuration is read from the environment (PUSHOVER_TOKEN, LIMIT_PER,
LIMIT_ALL, LIMIT_FLUSH, EVENTS, IGNORE_NAMES, ...) on top of an optional YAML
file given with --config or CONFIG_FILE.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runDaemon,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (overrides CONFIG_FILE)")

	cmd.AddCommand(countersCmd())
	cmd.AddCommand(versionCmd())
	return cmd
}

func getenv(k string) string {
	if k == "CONFIG_FILE" && configPath != "" {
		return configPath
	}
	return os.Getenv(k)
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFrom(getenv)
	if err != nil {
		return err
	}
	if cfg.BuildVersion == "dev" && version != "dev" {
		cfg.BuildVersion = version
	}
	logger := newLogger(cfg)

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("init failed", "err", err)
		return err
	}

	ctx, cancel := context.WithCancelCause(cmd.Context())
	defer cancel(nil)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case sig := <-sigs:
			logger.Info("signal received", "signal", app.SignalName(sig))
			cancel(app.SignalCause{Signal: sig})
		case <-ctx.Done():
		}
	}()

	if err := a.Run(ctx); err != nil {
		logger.Error("shutdown with error", "err", err)
		return err
	}
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cfg := config.Config{BuildVersion: version}
			if v := os.Getenv("BUILD_VERSION"); v != "" && version == "dev" {
				cfg.BuildVersion = v
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.AppName())
		},
	}
}
