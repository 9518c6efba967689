// Package model contains domain models passed between layers.
package model

import "time"

// DefaultConfidence is used for signals ingested without a confidence value.
const DefaultConfidence = 0.7

// EventLike is the minimal view of a signal the scoring engines consume.
// Persisted and derived signals both implement it.
type EventLike interface {
	EventType() string
	EventTime() time.Time
	// EventConfidence reports the confidence and whether one was recorded.
	EventConfidence() (float64, bool)
}

// Sourced is implemented by signals that carry provenance for explain traces.
type Sourced interface {
	EventSource() string
	EventURL() string
}

// Event is a persisted company signal (funding round, job posting, launch...).
type Event struct {
	ID         string    // unique id for idempotency
	CompanyID  string    // subject company
	Type       string    // open taxonomy, e.g. "funding_raised"
	Time       time.Time // when the signal happened; zero means unknown
	Confidence *float64  // nil when the source did not report one
	Source     string    // ingestion adapter name
	URL        string    // evidence link
}

func (e Event) EventType() string    { return e.Type }
func (e Event) EventTime() time.Time { return e.Time }
func (e Event) EventSource() string  { return e.Source }
func (e Event) EventURL() string     { return e.URL }

func (e Event) EventConfidence() (float64, bool) {
	if e.Confidence == nil {
		return 0, false
	}
	return *e.Confidence, true
}

// Synthetic is a signal derived from company state rather than observed,
// e.g. "no_cto_detected" when enrichment found no technical leader.
type Synthetic struct {
	Type       string
	Time       time.Time
	Confidence float64
	Reason     string
}

func (s Synthetic) EventType() string                { return s.Type }
func (s Synthetic) EventTime() time.Time             { return s.Time }
func (s Synthetic) EventConfidence() (float64, bool) { return s.Confidence, true }
func (s Synthetic) EventSource() string              { return "derived" }
func (s Synthetic) EventURL() string                 { return "" }

// ResolveConfidence returns the event confidence clamped to [0,1], or def
// when the event carries none.
func ResolveConfidence(e EventLike, def float64) float64 {
	c, ok := e.EventConfidence()
	if !ok {
		c = def
	}
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

// Events adapts a slice of concrete events to the engine input.
func Events(in []Event) []EventLike {
	out := make([]EventLike, len(in))
	for i := range in {
		out[i] = in[i]
	}
	return out
}

// Float returns a pointer to v, for optional confidence values.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v, for optional flags.
func Bool(v bool) *bool { return &v }
