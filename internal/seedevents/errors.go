package seedevents

import "errors"

// Errors returned by a seeding run.
var (
	ErrUnhealthy    = errors.New("service unhealthy")
	ErrStatus       = errors.New("unexpected status")
	ErrInconsistent = errors.New("leaderboard inconsistent")
	ErrNoData       = errors.New("nothing to verify")
)
