package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"dockevents/internal/config"
	"dockevents/internal/models"
	"dockevents/internal/retention"
	"dockevents/internal/store"
)

func countersCmd() *cobra.Command {
	var outputFmt string
	cmd := &cobra.Command{
		Use:   "counters",
		Short: "Inspect and maintain the rate-limit counters",
		Long: `List the rate-limit counters kept in LIMITS_DB.

Examples:
  # Show counters
  dockevents counters

  # Drop counters idle for more than an hour
  dockevents counters flush --window "-1 hour"

  # Forget the counter for one container and status
  dockevents counters reset web.started`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(func(s store.Store, _ config.Config) error {
				counters, err := s.List(cmd.Context())
				if err != nil {
					return err
				}
				return printCounters(cmd.OutOrStdout(), counters, outputFmt)
			})
		},
	}
	cmd.Flags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json")

	cmd.AddCommand(flushCmd())
	cmd.AddCommand(resetCmd())
	return cmd
}

func flushCmd() *cobra.Command {
	var window string
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Delete counters not updated within the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(func(s store.Store, cfg config.Config) error {
				d := cfg.FlushWindow
				if window != "" {
					parsed, err := retention.ParseWindow(window)
					if err != nil {
						return err
					}
					d = parsed
				}
				if d <= 0 {
					return fmt.Errorf("no retention window: set LIMIT_FLUSH or pass --window")
				}
				n, err := s.Flush(cmd.Context(), d)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "flushed %d counter(s) older than %s\n", n, d)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&window, "window", "w", "", `Retention window, e.g. "-1 hour" or 30m (default LIMIT_FLUSH)`)
	return cmd
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset [KEY]",
		Short: "Delete one counter, or all of them when no key is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			return withStore(func(s store.Store, _ config.Config) error {
				n, err := s.Reset(cmd.Context(), key)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d counter(s)\n", n)
				return nil
			})
		},
	}
}

func withStore(fn func(store.Store, config.Config) error) error {
	cfg, err := config.Parse(getenv)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if !cfg.Debug {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s, err := store.Open(cfg.StoreBackend, cfg.LimitsDB, logger)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s, cfg)
}

func printCounters(w io.Writer, counters []models.Counter, format string) error {
	if format == "json" {
		if counters == nil {
			counters = []models.Counter{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(counters)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tCOUNT\tLAST UPDATE")
	for _, c := range counters {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", c.Key, c.Count, c.LastUpdate.Local().Format(time.DateTime))
	}
	return tw.Flush()
}
