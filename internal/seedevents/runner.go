package seedevents

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/leadscore/internal/domain/model"
	"github.com/okian/leadscore/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

const displayTopN = 10

// Run seeds the service, runs a nightly pass and verifies the leaderboard.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	asOf := cfg.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	asOf = model.DateOf(asOf)
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	logger.Get().Info(ctx, "starting seeding run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("companies", cfg.Companies),
		logger.Int("eventsPerCompany", cfg.EventsPerCompany),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
		logger.String("asOf", asOf.Format(model.DateLayout)),
		logger.Any("seed", seed))

	client := NewClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return stats, err
	}

	// Step 2: Generate dataset
	ds, err := NewGenerator(seed).Generate(ctx, cfg, asOf)
	if err != nil {
		return stats, err
	}
	ds.Seed = seed
	stats.EventsGenerated = len(ds.Events)

	// Step 3: Submit companies, then events
	if err := submitCompanies(ctx, cfg, client, ds.Companies, stats); err != nil {
		return stats, fmt.Errorf("company submission failed: %w", err)
	}
	if err := submitEvents(ctx, cfg, client, ds.Events, stats); err != nil {
		return stats, fmt.Errorf("event submission failed: %w", err)
	}

	// Step 4: Score
	sum, err := client.RunNightly(ctx, ds.AsOf)
	if err != nil {
		return stats, fmt.Errorf("nightly run failed: %w", err)
	}
	stats.Nightly = sum
	logger.Get().Info(ctx, "nightly run completed",
		logger.String("runID", sum.RunID),
		logger.Int("eligible", sum.Eligible),
		logger.Int("scored", sum.Scored),
		logger.Int("skipped", sum.Skipped),
		logger.Int("errors", sum.Errors))

	// Step 5: Verify the leaderboard and the rank endpoint agree
	board, err := client.Leaderboard(ctx, cfg.TopN)
	if err != nil {
		return stats, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	stats.LeaderboardEntries = len(board)
	if err := verifyLeaderboard(board); err != nil {
		return stats, err
	}
	if err := verifyRanks(ctx, cfg, client, board, stats); err != nil {
		return stats, fmt.Errorf("rank verification failed: %w", err)
	}
	displayTop(ctx, board, displayTopN)

	// Step 6: Save dataset
	if cfg.OutputFile != "" {
		if err := saveDataset(ctx, cfg.OutputFile, ds); err != nil {
			logger.Get().Warn(ctx, "failed to save dataset", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// saveDataset writes the generated dataset as indented JSON.
func saveDataset(ctx context.Context, filename string, ds Dataset) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal dataset: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	logger.Get().Info(ctx, "dataset saved to file", logger.String("filename", filename))
	return nil
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	var eventsPerSecond float64
	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsAccepted+stats.EventsDuplicate) / stats.Duration.Seconds()
	}
	logger.Get().Info(ctx, "final statistics",
		logger.Int("companiesCreated", stats.CompaniesCreated),
		logger.Int("companiesFailed", stats.CompaniesFailed),
		logger.Int("eventsGenerated", stats.EventsGenerated),
		logger.Int("eventsAccepted", stats.EventsAccepted),
		logger.Int("eventsDuplicate", stats.EventsDuplicate),
		logger.Int("eventsFailed", stats.EventsFailed),
		logger.Int("scored", stats.Nightly.Scored),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Int("ranksChecked", stats.RanksChecked),
		logger.Duration("duration", stats.Duration),
		logger.Float64("eventsPerSecond", eventsPerSecond))
}
