package service

import (
	"errors"

	"github.com/okian/leadscore/internal/adapters/repository"
)

// Sentinel errors returned by the service.
var (
	ErrNotStarted = errors.New("service not started")
	// ErrInvalidInput is shared with the store so callers need one check.
	ErrInvalidInput = repository.ErrInvalidInput
)
