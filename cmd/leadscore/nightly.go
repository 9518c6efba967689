package main

import (
	"encoding/json"
	"fmt"
	"time"

	app "github.com/okian/leadscore/internal/app"
	"github.com/okian/leadscore/internal/domain/model"
	"github.com/okian/leadscore/pkg/logger"
	"github.com/spf13/cobra"
)

func newNightlyCmd() *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "nightly",
		Short: "Score every eligible company once and print the run summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var day time.Time
			if asOf != "" {
				t, err := model.ParseDate(asOf)
				if err != nil {
					return fmt.Errorf("--as-of: %w", err)
				}
				day = t
			}
			cfg, engines, err := bootstrap(cmd)
			if err != nil {
				return err
			}

			svc := app.New(
				app.WithLogger(logger.Get().Named("service")),
				app.WithDBPath(cfg.DBPath),
				app.WithWorkerCount(cfg.WorkerCount),
				app.WithQueueSize(cfg.QueueSize),
				app.WithDraftEnabled(cfg.DraftEnabled),
				app.WithEngines(engines),
			)
			if err := svc.Start(cmd.Context()); err != nil {
				return err
			}
			defer svc.Stop()

			sum, err := svc.RunNightly(cmd.Context(), day)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sum)
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "scoring date YYYY-MM-DD (default today, UTC)")
	return cmd
}
