package nightly

import (
	"github.com/okian/leadscore/internal/domain/engagement"
	"github.com/okian/leadscore/internal/domain/outreach"
	"github.com/okian/leadscore/internal/domain/scoring"
	"github.com/okian/leadscore/pkg/logger"
)

// Option configures a Runner.
type Option func(*Runner)

// WithReadiness sets the readiness engine.
func WithReadiness(e *scoring.Engine) Option {
	return func(r *Runner) {
		if e != nil {
			r.readiness = e
		}
	}
}

// WithEngagement sets the engagement engine.
func WithEngagement(e *engagement.Engine) Option {
	return func(r *Runner) {
		if e != nil {
			r.engagement = e
		}
	}
}

// WithPipeline enables the outreach step. Without it the run stops after
// the engagement snapshot.
func WithPipeline(p *outreach.Pipeline) Option {
	return func(r *Runner) { r.pipeline = p }
}

// WithRanking keeps a leaderboard in step with engagement snapshots.
func WithRanking(rk Ranker) Option {
	return func(r *Runner) { r.ranking = rk }
}

// WithWorkerCount sets how many companies are scored at once.
func WithWorkerCount(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithQueueSize bounds the job buffer between planner and workers.
func WithQueueSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

// WithEligibilityDays sets the trailing event window for eligibility.
func WithEligibilityDays(days int) Option {
	return func(r *Runner) {
		if days > 0 {
			r.eligibilityDays = days
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}
