package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/okian/leadscore/internal/adapters/http/api"
	"github.com/okian/leadscore/internal/adapters/http/swagger"
	app "github.com/okian/leadscore/internal/app"
	"github.com/okian/leadscore/pkg/logger"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 60 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and schedule nightly runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, engines, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			ctx := cmd.Context()
			log := logger.Get()

			svc := app.New(
				app.WithLogger(log.Named("service")),
				app.WithDBPath(cfg.DBPath),
				app.WithWorkerCount(cfg.WorkerCount),
				app.WithQueueSize(cfg.QueueSize),
				app.WithDedupeSize(cfg.DedupeSize),
				app.WithDraftEnabled(cfg.DraftEnabled),
				app.WithEngines(engines),
			)
			if err := svc.Start(ctx); err != nil {
				return err
			}
			defer svc.Stop()

			mux := http.NewServeMux()
			swagger.Register(ctx, mux)
			api.NewServer(svc, svc, cfg.MaxLeaderboardLimit).Register(ctx, mux)

			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           mux,
				ReadTimeout:       readTimeout,
				WriteTimeout:      writeTimeout,
				IdleTimeout:       idleTimeout,
				ReadHeaderTimeout: readHeaderTimeout,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				log.Info(gctx, "shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			if cfg.NightlyEnabled {
				g.Go(func() error { return svc.Schedule(gctx, cfg.NightlyInterval) })
			}
			g.Go(func() error {
				startServiceMetricsUpdater(gctx, svc)
				return nil
			})

			err = g.Wait()
			log.Info(ctx, "server stopped")
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides LEADSCORE_ADDR")
	return cmd
}

// startServiceMetricsUpdater refreshes the service gauges until ctx ends.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats refreshes the ranked and worker gauges as a side effect.
			_ = svc.GetStats()
		}
	}
}
