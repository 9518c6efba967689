// Package repository persists companies, signals and scoring snapshots, and
// keeps the in-memory outreach leaderboard.
package repository

import (
	"context"
	"time"

	"github.com/okian/leadscore/internal/domain/engagement"
	"github.com/okian/leadscore/internal/domain/model"
	"github.com/okian/leadscore/internal/domain/outreach"
	"github.com/okian/leadscore/internal/domain/scoring"
)

// Counts summarises table sizes for /stats.
type Counts struct {
	Companies       int `json:"companies"`
	Events          int `json:"events"`
	Watchlist       int `json:"watchlist"`
	Readiness       int `json:"readiness_snapshots"`
	Engagement      int `json:"engagement_snapshots"`
	Recommendations int `json:"recommendations"`
}

// Store is the persistence collaborator of the service. Snapshot upserts
// are keyed by company and as-of date so reruns overwrite.
type Store interface {
	UpsertCompany(ctx context.Context, c model.Company) error
	GetCompany(ctx context.Context, id string) (model.Company, error)

	// InsertEvent stores e and reports whether it was new. Replays of a
	// known id are ignored.
	InsertEvent(ctx context.Context, e model.Event) (bool, error)
	// EventsBetween returns a company's timed events dated from..to inclusive.
	EventsBetween(ctx context.Context, companyID string, from, to time.Time) ([]model.Event, error)

	AddToWatchlist(ctx context.Context, companyID string) error
	RemoveFromWatchlist(ctx context.Context, companyID string) error

	RecordOutreach(ctx context.Context, a model.OutreachAttempt) error
	// OutreachHistory returns attempts sent on or before asOf, oldest first.
	OutreachHistory(ctx context.Context, companyID string, asOf time.Time) ([]model.OutreachAttempt, error)

	// EligibleCompanies lists companies with an event dated within
	// lookbackDays before asOf, plus every watchlisted company.
	EligibleCompanies(ctx context.Context, asOf time.Time, lookbackDays int) ([]string, error)

	UpsertReadiness(ctx context.Context, s scoring.Snapshot) error
	GetReadiness(ctx context.Context, companyID string, asOf time.Time) (scoring.Snapshot, error)
	// PressureHistory returns stored pressure scores dated from..to, oldest first.
	PressureHistory(ctx context.Context, companyID string, from, to time.Time) ([]engagement.PressurePoint, error)

	UpsertEngagement(ctx context.Context, s engagement.Snapshot) error
	GetEngagement(ctx context.Context, companyID string, asOf time.Time) (engagement.Snapshot, error)

	UpsertRecommendation(ctx context.Context, rec outreach.Recommendation) error
	GetRecommendation(ctx context.Context, companyID string, asOf time.Time) (outreach.Recommendation, error)

	// LatestEntries returns each company's most recent engagement snapshot
	// joined with the same-date composite, for rebuilding the Ranking.
	LatestEntries(ctx context.Context) ([]Entry, error)

	Counts(ctx context.Context) (Counts, error)
	Close() error
}
