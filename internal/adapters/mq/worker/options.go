package worker

import (
	"github.com/okian/leadscore/pkg/logger"
)

// Option configures a Pool.
type Option func(*Pool)

// WithName prefixes worker names in logs.
func WithName(name string) Option {
	return func(p *Pool) {
		if name != "" {
			p.name = name
		}
	}
}

// WithLogger sets a custom logger for the pool and its workers.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithErrorHandler is called for every job whose processing failed or
// panicked. It may be called from several workers at once.
func WithErrorHandler(h ErrorHandler) Option {
	return func(p *Pool) {
		if h != nil {
			p.onError = h
		}
	}
}
