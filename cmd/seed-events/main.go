// Command seed-events seeds a running leadscore service with synthetic
// companies and signals, triggers a nightly run and verifies the leaderboard.
package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/leadscore/internal/domain/model"
	"github.com/okian/leadscore/internal/seedevents"
	"github.com/okian/leadscore/pkg/logger"
	"github.com/spf13/cobra"
)

// Default configuration constants.
const (
	defaultCompanies        = 500
	defaultEventsPerCompany = 8
	defaultHorizonDays      = 180
	defaultTopN             = 50
	defaultWorkers          = 2 // multiplier for runtime.NumCPU()
	defaultTimeout          = 30 * time.Second
	defaultRunTimeout       = 10 * time.Minute
)

func newCmd() *cobra.Command {
	cfg := &seedevents.Config{}
	var asOf, logFormat string

	cmd := &cobra.Command{
		Use:          "seed-events",
		Short:        "Seed a leadscore service and verify its leaderboard",
		SilenceUsage: true,
		Example: `  # Seed a local service with default settings
  seed-events

  # Larger run against another host, reproducible
  seed-events --companies 5000 --workers 16 --seed 42 --url http://localhost:8080`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithFormat(logFormat), logger.WithWriter(cmd.ErrOrStderr())); err != nil {
				return err
			}
			if asOf != "" {
				t, err := model.ParseDate(asOf)
				if err != nil {
					return err
				}
				cfg.AsOf = t
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultRunTimeout)
			defer cancel()
			_, err := seedevents.Run(ctx, cfg)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "base URL of the service")
	f.IntVar(&cfg.Companies, "companies", defaultCompanies, "number of companies to create")
	f.IntVar(&cfg.EventsPerCompany, "events", defaultEventsPerCompany, "signals per company")
	f.IntVar(&cfg.HorizonDays, "horizon", defaultHorizonDays, "spread signals over this many days")
	f.StringVar(&asOf, "as-of", "", "scoring date YYYY-MM-DD (default today, UTC)")
	f.IntVar(&cfg.TopN, "top", defaultTopN, "leaderboard entries to fetch and verify")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*defaultWorkers, "concurrent HTTP workers")
	f.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	f.Uint64Var(&cfg.Seed, "seed", 0, "PRNG seed (default derived from the clock)")
	f.StringVar(&cfg.OutputFile, "output", "", "write the generated dataset to this file")
	f.BoolVar(&cfg.Verbose, "verbose", false, "log every failed request")
	f.StringVar(&logFormat, "log-format", "text", "log format: text or json")
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
