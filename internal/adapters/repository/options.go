package repository

import "time"

// Option configures a SQLStore.
type Option func(*SQLStore)

// WithClock overrides the time source used for bookkeeping columns.
func WithClock(now func() time.Time) Option {
	return func(s *SQLStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBusyTimeout sets how long sqlite waits on a locked database. Only
// Open applies it.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *SQLStore) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}
