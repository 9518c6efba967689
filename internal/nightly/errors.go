package nightly

import "errors"

// Sentinel kinds for nightly errors.
var (
	ErrRunning    = errors.New("nightly run already in progress")
	ErrNoResult   = errors.New("engagement has no readiness composite")
	ErrNotScored  = errors.New("company was not reached before the run ended")
	ErrMissingDep = errors.New("missing dependency")
)
