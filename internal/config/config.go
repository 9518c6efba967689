// Package config defines service configuration and the scoring pack.
//
// Values are layered: defaults, then an optional YAML file named by
// LEADSCORE_CONFIG, then LEADSCORE_* environment variables.
package config

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// DBPath is the sqlite database file; ":memory:" keeps everything in process.
	DBPath string `koanf:"db_path" validate:"required"`

	// WorkerCount sets how many companies a nightly run scores at once.
	WorkerCount int `koanf:"worker_count" validate:"gt=0"`

	// QueueSize bounds the nightly job queue.
	QueueSize int `koanf:"queue_size" validate:"gt=0"`

	// DedupeSize bounds the in-memory event id cache. Zero means unbounded.
	DedupeSize int `koanf:"dedupe_size" validate:"gte=0"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit" validate:"gt=0"`

	// NightlyEnabled schedules a scoring pass every NightlyInterval in serve.
	NightlyEnabled  bool          `koanf:"nightly_enabled"`
	NightlyInterval time.Duration `koanf:"nightly_interval" validate:"gt=0"`

	// DraftEnabled turns draft generation on for outreach recommendations.
	DraftEnabled bool `koanf:"draft_enabled"`

	// ScoringPack optionally points at a YAML file overriding scoring tables.
	ScoringPack string `koanf:"scoring_pack"`
}

// New returns a Config holding the defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		DBPath:              "leadscore.db",
		WorkerCount:         runtime.NumCPU(),
		QueueSize:           1024,
		DedupeSize:          50_000,
		MaxLeaderboardLimit: 100,
		NightlyEnabled:      true,
		NightlyInterval:     24 * time.Hour,
		DraftEnabled:        true,
	}
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
