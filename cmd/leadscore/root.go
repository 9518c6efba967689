package main

import (
	"fmt"

	"github.com/okian/leadscore/internal/config"
	"github.com/okian/leadscore/pkg/logger"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "leadscore",
		Short:         "Company readiness scoring and outreach recommendations",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newServeCmd(), newNightlyCmd(), newCriticCmd())
	return root
}

// bootstrap loads configuration, sets up logging and builds the engines
// from the scoring pack.
func bootstrap(cmd *cobra.Command) (*config.Config, config.Engines, error) {
	ctx := cmd.Context()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, config.Engines{}, fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithWriter(cmd.ErrOrStderr())); err != nil {
		return nil, config.Engines{}, fmt.Errorf("init logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	pack, err := config.LoadPack(ctx, cfg.ScoringPack)
	if err != nil {
		return nil, config.Engines{}, err
	}
	engines, err := pack.Build()
	if err != nil {
		return nil, config.Engines{}, err
	}
	if cfg.ScoringPack != "" {
		logger.Get().Info(ctx, "scoring pack loaded", logger.String("path", cfg.ScoringPack))
	}
	return cfg, engines, nil
}
