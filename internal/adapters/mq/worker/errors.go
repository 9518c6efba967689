package worker

import "errors"

// Sentinel kinds for worker errors.
var (
	ErrPanic   = errors.New("job panicked")
	ErrStarted = errors.New("pool already started")
)
