// Package nightly scores every eligible company for one as-of date: readiness,
// then engagement, then the optional outreach recommendation.
package nightly

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/leadscore/internal/adapters/mq/queue"
	"github.com/okian/leadscore/internal/adapters/mq/worker"
	"github.com/okian/leadscore/internal/adapters/repository"
	"github.com/okian/leadscore/internal/domain/engagement"
	"github.com/okian/leadscore/internal/domain/model"
	"github.com/okian/leadscore/internal/domain/outreach"
	"github.com/okian/leadscore/internal/domain/scoring"
	"github.com/okian/leadscore/pkg/logger"
	"github.com/okian/leadscore/pkg/metrics"
)

const (
	defaultQueueSize       = 1024
	defaultEligibilityDays = 365
	enqueueRetryDelay      = time.Millisecond
)

// Store is the persistence the runner reads and writes.
type Store interface {
	GetCompany(ctx context.Context, id string) (model.Company, error)
	EventsBetween(ctx context.Context, companyID string, from, to time.Time) ([]model.Event, error)
	EligibleCompanies(ctx context.Context, asOf time.Time, lookbackDays int) ([]string, error)
	UpsertReadiness(ctx context.Context, s scoring.Snapshot) error
	GetReadiness(ctx context.Context, companyID string, asOf time.Time) (scoring.Snapshot, error)
	PressureHistory(ctx context.Context, companyID string, from, to time.Time) ([]engagement.PressurePoint, error)
	OutreachHistory(ctx context.Context, companyID string, asOf time.Time) ([]model.OutreachAttempt, error)
	UpsertEngagement(ctx context.Context, s engagement.Snapshot) error
}

// Ranker receives the latest outreach score per company.
type Ranker interface {
	Upsert(ctx context.Context, e repository.Entry) error
}

// Failure is one company that did not finish.
type Failure struct {
	CompanyID string `json:"company_id"`
	Error     string `json:"error"`
}

// Summary is the result of one run. Scored, EngagementWritten and
// RecommendationsWritten count rows written, including those of a company
// whose chain failed later. Skipped is every eligible company whose chain
// did not finish; Errors counts the failures behind them.
type Summary struct {
	RunID                  string        `json:"run_id"`
	AsOf                   time.Time     `json:"as_of"`
	Eligible               int           `json:"eligible"`
	Scored                 int           `json:"scored"`
	Skipped                int           `json:"skipped"`
	EngagementWritten      int           `json:"engagement_written"`
	RecommendationsWritten int           `json:"recommendations_written"`
	Errors                 int           `json:"errors"`
	Failures               []Failure     `json:"failures"`
	StartedAt              time.Time     `json:"started_at"`
	Duration               time.Duration `json:"duration_ns"`
}

// CompanyResult is what one company produced. Fields stay nil for steps
// that did not run.
type CompanyResult struct {
	Readiness      scoring.Snapshot
	Engagement     *engagement.Snapshot
	Recommendation *outreach.Recommendation
}

// Runner orchestrates scoring runs. Run is safe to call concurrently but
// only one run executes at a time.
type Runner struct {
	store           Store
	readiness       *scoring.Engine
	engagement      *engagement.Engine
	pipeline        *outreach.Pipeline
	ranking         Ranker
	workers         int
	queueSize       int
	eligibilityDays int
	logger          logger.Logger

	running atomic.Bool
}

// New returns a runner over store.
func New(store Store, opts ...Option) (*Runner, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store", ErrMissingDep)
	}
	r := &Runner{
		store:           store,
		workers:         runtime.NumCPU(),
		queueSize:       defaultQueueSize,
		eligibilityDays: defaultEligibilityDays,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.readiness == nil {
		r.readiness = scoring.NewDefaultEngine()
	}
	if r.engagement == nil {
		r.engagement = engagement.NewDefaultEngine()
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("nightly")
	}
	return r, nil
}

// tally collects per-company outcomes from the workers.
type tally struct {
	mu        sync.Mutex
	handled   map[string]struct{}
	completed int
	scored    int
	engWrote  int
	recWrote  int
	errors    int
	failures  []Failure
}

// written counts the rows a company produced, whether or not its chain
// finished.
func (t *tally) written(res CompanyResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if res.Readiness.CompanyID != "" {
		t.scored++
	}
	if res.Engagement != nil {
		t.engWrote++
	}
	if res.Recommendation != nil {
		t.recWrote++
	}
}

func (t *tally) success(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handled[id] = struct{}{}
	t.completed++
}

func (t *tally) failure(job queue.Job, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handled[job.CompanyID] = struct{}{}
	t.errors++
	t.failures = append(t.failures, Failure{CompanyID: job.CompanyID, Error: err.Error()})
	metrics.RecordCompanySkipped()
}

// Run scores every eligible company as of the date of asOf. A company that
// fails is logged and counted as skipped; the run itself only fails when the
// eligible set cannot be read.
func (r *Runner) Run(ctx context.Context, asOf time.Time) (Summary, error) {
	if !r.running.CompareAndSwap(false, true) {
		return Summary{}, ErrRunning
	}
	defer r.running.Store(false)

	started := time.Now()
	asOf = model.DateOf(asOf)
	sum := Summary{RunID: uuid.NewString(), AsOf: asOf, StartedAt: started.UTC(), Failures: []Failure{}}
	log := r.logger.With(logger.String("run_id", sum.RunID), logger.String("as_of", asOf.Format(model.DateLayout)))

	ids, err := r.store.EligibleCompanies(ctx, asOf, r.eligibilityDays)
	if err != nil {
		return sum, fmt.Errorf("list eligible companies: %w", err)
	}
	sum.Eligible = len(ids)
	log.Info(ctx, "nightly run started", logger.Int("eligible", len(ids)), logger.Int("workers", r.workers))

	t := &tally{handled: make(map[string]struct{}, len(ids))}
	q := queue.NewInMemoryQueue(queue.WithCapacity(r.queueSize))
	pool := worker.NewPool(r.workers, q,
		worker.ProcessorFunc(func(ctx context.Context, job queue.Job) error {
			res, err := r.ScoreCompany(ctx, job.CompanyID, job.AsOf)
			t.written(res)
			if err != nil {
				return err
			}
			t.success(job.CompanyID)
			return nil
		}),
		worker.WithName("nightly"),
		worker.WithLogger(log),
		worker.WithErrorHandler(t.failure),
	)
	if err := pool.Start(ctx); err != nil {
		return sum, err
	}
	planErr := r.plan(ctx, q, ids, asOf)
	if err := pool.Shutdown(context.WithoutCancel(ctx)); err != nil {
		log.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}

	for _, id := range ids {
		if _, ok := t.handled[id]; !ok {
			t.failures = append(t.failures, Failure{CompanyID: id, Error: ErrNotScored.Error()})
			metrics.RecordCompanySkipped()
		}
	}

	sum.Scored = t.scored
	sum.EngagementWritten = t.engWrote
	sum.RecommendationsWritten = t.recWrote
	sum.Errors = t.errors
	sum.Skipped = sum.Eligible - t.completed
	sum.Failures = append(sum.Failures, t.failures...)
	sum.Duration = time.Since(started)
	metrics.RecordNightlyRun(sum.Duration.Seconds(), float64(time.Now().Unix()), sum.Eligible)

	log.Info(ctx, "nightly run finished",
		logger.Int("scored", sum.Scored),
		logger.Int("skipped", sum.Skipped),
		logger.Int("engagement_written", sum.EngagementWritten),
		logger.Int("recommendations_written", sum.RecommendationsWritten),
		logger.Int("errors", sum.Errors),
		logger.Duration("duration", sum.Duration),
	)
	if planErr != nil {
		log.Warn(ctx, "nightly run interrupted", logger.Error(planErr))
	}
	return sum, nil
}

// plan feeds the queue, waiting for room when it is full.
func (r *Runner) plan(ctx context.Context, q *queue.InMemoryQueue, ids []string, asOf time.Time) error {
	for _, id := range ids {
		job := queue.Job{CompanyID: id, AsOf: asOf}
		for {
			err := q.Enqueue(ctx, job)
			if err == nil {
				break
			}
			if !errors.Is(err, queue.ErrFull) {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(enqueueRetryDelay):
			}
		}
	}
	return nil
}

// ScoreCompany runs the full chain for one company and persists every
// snapshot it produces. Unknown companies are scored from their events alone.
func (r *Runner) ScoreCompany(ctx context.Context, companyID string, asOf time.Time) (CompanyResult, error) {
	asOf = model.DateOf(asOf)
	var res CompanyResult

	company, err := r.store.GetCompany(ctx, companyID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		company = model.Company{ID: companyID}
	case err != nil:
		return res, err
	}

	from := asOf.AddDate(0, 0, -r.readiness.Config().LookbackDays())
	events, err := r.store.EventsBetween(ctx, companyID, from, asOf)
	if err != nil {
		return res, err
	}
	observed := model.Events(events)
	signals := append(observed, company.DerivedSignals(asOf)...)

	snap := scoring.Snapshot{
		CompanyID: companyID,
		AsOf:      asOf,
		Result:    r.readiness.Score(signals, asOf, company.Status),
	}
	if err := r.store.UpsertReadiness(ctx, snap); err != nil {
		return res, err
	}
	res.Readiness = snap
	metrics.RecordCompanyScored()

	eng, err := r.engage(ctx, company, observed, asOf)
	if err != nil {
		return res, err
	}
	res.Engagement = &eng.snapshot

	if r.ranking != nil {
		entry := repository.Entry{
			CompanyID:      companyID,
			OutreachScore:  eng.snapshot.OutreachScore,
			Composite:      eng.composite,
			Recommendation: eng.snapshot.EngagementType,
			AsOf:           asOf,
		}
		if err := r.ranking.Upsert(ctx, entry); err != nil {
			return res, fmt.Errorf("rank %s: %w", companyID, err)
		}
	}

	if r.pipeline == nil {
		return res, nil
	}
	esl := eng.result.ESLScore
	rec, err := r.pipeline.Run(ctx, outreach.Input{
		Company:           company,
		AsOf:              asOf,
		Composite:         eng.composite,
		StabilityModifier: eng.result.StabilityModifier,
		ESLComposite:      &esl,
		CooldownActive:    eng.result.CadenceBlocked,
		AlignmentHigh:     company.AlignmentOKToContact == nil || *company.AlignmentOKToContact,
	})
	if err != nil {
		return res, err
	}
	metrics.RecordRecommendation(string(rec.RecommendationType))
	if rec.CriticResult != nil {
		for _, v := range rec.CriticResult.Violations {
			metrics.RecordCriticViolation(violationRule(v))
		}
	}
	if n := len(rec.States); n > 0 && rec.States[n-1] == outreach.StatePersist {
		res.Recommendation = &rec
	}
	return res, nil
}

type engaged struct {
	composite int
	result    engagement.Result
	snapshot  engagement.Snapshot
}

// engage evaluates and persists the engagement snapshot. The composite is
// read back from the stored same-date readiness snapshot.
func (r *Runner) engage(ctx context.Context, company model.Company, events []model.EventLike, asOf time.Time) (engaged, error) {
	stored, err := r.store.GetReadiness(ctx, company.ID, asOf)
	if errors.Is(err, repository.ErrNotFound) {
		return engaged{}, fmt.Errorf("%w: %s", ErrNoResult, company.ID)
	}
	if err != nil {
		return engaged{}, err
	}

	cfg := r.engagement.Config()
	history, err := r.store.PressureHistory(ctx, company.ID, asOf.AddDate(0, 0, -cfg.Sustained.WindowDays), asOf)
	if err != nil {
		return engaged{}, err
	}
	attempts, err := r.store.OutreachHistory(ctx, company.ID, asOf)
	if err != nil {
		return engaged{}, err
	}

	composite := stored.Composite
	result, ok := r.engagement.Evaluate(engagement.Input{
		Composite:            &composite,
		Events:               events,
		PressureHistory:      history,
		Outreach:             attempts,
		AlignmentOKToContact: company.AlignmentOKToContact,
		AsOf:                 asOf,
	})
	if !ok {
		return engaged{}, fmt.Errorf("%w: %s", ErrNoResult, company.ID)
	}

	snap := engagement.NewSnapshot(company.ID, asOf, result)
	if err := r.store.UpsertEngagement(ctx, snap); err != nil {
		return engaged{}, err
	}
	metrics.RecordEngagementWritten()
	return engaged{composite: composite, result: result, snapshot: snap}, nil
}

// violationRule strips the detail from a critic violation for metric labels.
func violationRule(v string) string {
	rule, _, _ := strings.Cut(v, ":")
	return rule
}

// Loop runs a scoring pass every interval until ctx ends. Each pass scores
// as of the current date.
func (r *Runner) Loop(ctx context.Context, interval time.Duration, now func() time.Time) error {
	if now == nil {
		now = time.Now
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Run(ctx, now()); err != nil && !errors.Is(err, ErrRunning) {
				r.logger.Error(ctx, "scheduled nightly run failed", logger.Error(err))
			}
		}
	}
}
