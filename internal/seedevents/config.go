// Package seedevents drives a running leadscore service end to end: it seeds
// synthetic companies and signals, triggers a nightly run and checks the
// leaderboard it produces.
package seedevents

import (
	"time"

	"github.com/okian/leadscore/internal/adapters/repository"
)

// Config holds configuration for a seeding run.
type Config struct {
	BaseURL          string        // Base URL of the service
	Companies        int           // Number of companies to create
	EventsPerCompany int           // Signals generated per company
	HorizonDays      int           // Signals are spread over this many days before AsOf
	AsOf             time.Time     // Scoring date; zero means today (UTC)
	TopN             int           // Leaderboard entries to fetch and verify
	Workers          int           // Concurrent HTTP workers
	Timeout          time.Duration // HTTP request timeout
	Seed             uint64        // PRNG seed; zero picks one from the clock
	OutputFile       string        // Where to write the generated dataset; empty skips it
	Verbose          bool          // Log every failed request
}

// Company is the body of POST /companies.
type Company struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Domain               string `json:"domain"`
	Status               string `json:"status,omitempty"`
	AlignmentOKToContact *bool  `json:"alignment_ok_to_contact,omitempty"`
	HasCTO               *bool  `json:"has_cto,omitempty"`
}

// Event is the body of POST /events.
type Event struct {
	EventID    string  `json:"event_id"`
	CompanyID  string  `json:"company_id"`
	EventType  string  `json:"event_type"`
	EventTime  string  `json:"event_time"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// Dataset is everything one run generated.
type Dataset struct {
	Seed      uint64    `json:"seed"`
	AsOf      string    `json:"as_of"`
	Companies []Company `json:"companies"`
	Events    []Event   `json:"events"`
}

// Entry is a leaderboard row as served by the API.
type Entry = repository.Entry

// AckResponse is the reply to POST /events.
type AckResponse struct {
	Status    string `json:"status"`
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate"`
}

// NightlySummary is the subset of the POST /nightly reply the run checks.
type NightlySummary struct {
	RunID                  string `json:"run_id"`
	Eligible               int    `json:"eligible"`
	Scored                 int    `json:"scored"`
	Skipped                int    `json:"skipped"`
	RecommendationsWritten int    `json:"recommendations_written"`
	Errors                 int    `json:"errors"`
}

// Stats holds run statistics.
type Stats struct {
	CompaniesCreated   int
	CompaniesFailed    int
	EventsGenerated    int
	EventsAccepted     int
	EventsDuplicate    int
	EventsFailed       int
	Nightly            NightlySummary
	LeaderboardEntries int
	RanksChecked       int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
