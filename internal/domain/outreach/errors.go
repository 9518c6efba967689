package outreach

import "errors"

// Sentinel kinds for outreach errors.
var (
	ErrInvalidLibrary = errors.New("invalid draft library")
	ErrNoTemplate     = errors.New("no draft template for recommendation")
	ErrCompose        = errors.New("draft composition failed")
	ErrPersist        = errors.New("persist recommendation")
)
