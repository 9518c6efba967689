package model

import (
	"strings"
	"time"
)

// Company is the subject of scoring.
type Company struct {
	ID     string
	Name   string
	Domain string
	// Status is free text from enrichment; "acquired" and "dead" suppress scoring.
	Status string
	// AlignmentOKToContact is nil when nobody has reviewed fit yet.
	AlignmentOKToContact *bool
	// HasCTO is nil when unknown; false derives a no_cto_detected signal.
	HasCTO *bool
}

// NoCTOSignal is the derived event type used when a company is known to lack a CTO.
const NoCTOSignal = "no_cto_detected"

// DerivedSignals returns signals implied by company metadata as of asOf.
func (c Company) DerivedSignals(asOf time.Time) []EventLike {
	if c.HasCTO != nil && !*c.HasCTO {
		return []EventLike{Synthetic{
			Type:       NoCTOSignal,
			Time:       DateOf(asOf),
			Confidence: 1,
			Reason:     "company profile lists no technical leader",
		}}
	}
	return nil
}

// Outcome is the recorded result of an outreach attempt.
type Outcome string

// Outreach outcomes.
const (
	OutcomeUnknown  Outcome = ""
	OutcomeReplied  Outcome = "replied"
	OutcomeDeclined Outcome = "declined"
	OutcomeBounced  Outcome = "bounced"
	OutcomeNoReply  Outcome = "no_reply"
)

// ParseOutcome normalises free text into an Outcome. Unknown values map to OutcomeUnknown.
func ParseOutcome(s string) Outcome {
	switch o := Outcome(strings.ToLower(strings.TrimSpace(s))); o {
	case OutcomeReplied, OutcomeDeclined, OutcomeBounced, OutcomeNoReply:
		return o
	}
	return OutcomeUnknown
}

// OutreachAttempt is one row of the append-only outreach log.
type OutreachAttempt struct {
	CompanyID string
	SentAt    time.Time
	Outcome   Outcome
}

// ScoringJob asks a worker to score one company as of one date.
type ScoringJob struct {
	CompanyID string
	AsOf      time.Time
}
