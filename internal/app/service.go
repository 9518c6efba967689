// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/leadscore/internal/adapters/repository"
	"github.com/okian/leadscore/internal/config"
	"github.com/okian/leadscore/internal/domain/critic"
	"github.com/okian/leadscore/internal/domain/dedupe"
	"github.com/okian/leadscore/internal/domain/engagement"
	"github.com/okian/leadscore/internal/domain/model"
	"github.com/okian/leadscore/internal/domain/outreach"
	"github.com/okian/leadscore/internal/domain/scoring"
	"github.com/okian/leadscore/internal/nightly"
	"github.com/okian/leadscore/pkg/logger"
	"github.com/okian/leadscore/pkg/metrics"
)

// Service implements the API dependencies for lead scoring.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	ranking  *repository.Ranking
	deduper  dedupe.Deduper
	runner   *nightly.Runner
	pipeline *outreach.Pipeline
	engines  *config.Engines

	// Configuration
	dbPath          string
	workerCount     int
	queueSize       int
	dedupeSize      int
	eligibilityDays int
	draftEnabled    bool
	now             func() time.Time

	// State
	started bool
	ownsDB  bool
	lastRun *nightly.Summary

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets how many companies a nightly run scores at once.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the job buffer of a nightly run.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the event id cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithEligibilityDays sets the trailing event window that makes a company eligible.
func WithEligibilityDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.eligibilityDays = days
		}
	}
}

// WithDraftEnabled toggles draft generation in the outreach pipeline.
func WithDraftEnabled(enabled bool) Option {
	return func(s *Service) { s.draftEnabled = enabled }
}

// WithDBPath sets the sqlite database opened on Start.
func WithDBPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.dbPath = path
		}
	}
}

// WithStore uses an already opened store instead of opening one on Start.
func WithStore(store repository.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithEngines sets the engines built from a scoring pack.
func WithEngines(e config.Engines) Option {
	return func(s *Service) { s.engines = &e }
}

// WithClock sets the clock used for defaulted as-of dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dbPath:          "leadscore.db",
		workerCount:     runtime.NumCPU(),
		queueSize:       1024,
		dedupeSize:      50000,
		eligibilityDays: 365,
		draftEnabled:    true,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store, rebuilds the leaderboard and wires the engines.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting leadscore service...")

	if s.engines == nil {
		e, err := config.DefaultPack().Build()
		if err != nil {
			return err
		}
		s.engines = &e
	}

	if s.store == nil {
		store, err := repository.Open(ctx, s.dbPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = store
		s.ownsDB = true
		s.logger.Info(ctx, "using sqlite store", logger.String("path", s.dbPath))
	}

	if err := s.wire(ctx); err != nil {
		if s.ownsDB {
			_ = s.store.Close()
			s.store = nil
		}
		return err
	}

	s.started = true
	metrics.UpdateWorkerCount(s.workerCount)
	s.logger.Info(ctx, "leadscore service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("ranked", s.ranking.Count(ctx)),
		logger.Bool("drafts", s.draftEnabled),
	)
	return nil
}

func (s *Service) wire(ctx context.Context) error {
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))

	s.ranking = repository.NewRanking()
	entries, err := s.store.LatestEntries(ctx)
	if err != nil {
		return fmt.Errorf("rebuild leaderboard: %w", err)
	}
	for _, e := range entries {
		if err := s.ranking.Upsert(ctx, e); err != nil {
			return fmt.Errorf("rebuild leaderboard: %w", err)
		}
	}

	composer, err := outreach.NewTemplateComposer(s.engines.Library)
	if err != nil {
		return err
	}
	s.pipeline, err = outreach.NewPipeline(
		outreach.WithCritic(s.engines.Critic),
		outreach.WithComposer(composer),
		outreach.WithRewriter(composer),
		outreach.WithChannel(composer.Channel()),
		outreach.WithSink(s.store),
		outreach.WithDrafts(s.draftEnabled),
	)
	if err != nil {
		return err
	}

	s.runner, err = nightly.New(s.store,
		nightly.WithReadiness(s.engines.Readiness),
		nightly.WithEngagement(s.engines.Engagement),
		nightly.WithPipeline(s.pipeline),
		nightly.WithRanking(s.ranking),
		nightly.WithWorkerCount(s.workerCount),
		nightly.WithQueueSize(s.queueSize),
		nightly.WithEligibilityDays(s.eligibilityDays),
		nightly.WithLogger(s.logger.Named("nightly")),
	)
	return err
}

// Stop releases the store when the service opened it.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(context.Background(), "stopping leadscore service...")
	if s.ownsDB && s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(context.Background(), "close store", logger.Error(err))
		}
		s.store = nil
	}
	s.started = false
	s.logger.Info(context.Background(), "leadscore service stopped")
}

// ready returns the live components or ErrNotStarted.
func (s *Service) ready() (repository.Store, *nightly.Runner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.store, s.runner, nil
}

// SeenAndRecord atomically checks if an event id was seen and records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordEventDuplicate()
	}
	return seen
}

// Unrecord removes an event id from the seen list, allowing it to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// IngestEvent stores a signal once per event id. An empty id gets a fresh
// one. The returned id is the one stored; duplicate reports a replay.
func (s *Service) IngestEvent(ctx context.Context, e model.Event) (id string, duplicate bool, err error) {
	store, _, err := s.ready()
	if err != nil {
		return "", false, err
	}
	e.CompanyID = strings.TrimSpace(e.CompanyID)
	e.Type = strings.TrimSpace(e.Type)
	if e.CompanyID == "" || e.Type == "" {
		return "", false, fmt.Errorf("%w: event needs company_id and event_type", ErrInvalidInput)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	if s.SeenAndRecord(ctx, e.ID) {
		return e.ID, true, nil
	}
	fresh, err := store.InsertEvent(ctx, e)
	if err != nil {
		s.Unrecord(ctx, e.ID)
		return e.ID, false, err
	}
	if !fresh {
		metrics.RecordEventDuplicate()
		return e.ID, true, nil
	}
	metrics.RecordEventIngested()
	s.logger.Debug(ctx, "event ingested",
		logger.String("eventID", e.ID),
		logger.String("companyID", e.CompanyID),
		logger.String("type", e.Type),
	)
	return e.ID, false, nil
}

// UpsertCompany creates or replaces a company profile.
func (s *Service) UpsertCompany(ctx context.Context, c model.Company) error {
	store, _, err := s.ready()
	if err != nil {
		return err
	}
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: company needs an id", ErrInvalidInput)
	}
	return store.UpsertCompany(ctx, c)
}

// RecordOutreach appends an attempt to the outreach log.
func (s *Service) RecordOutreach(ctx context.Context, a model.OutreachAttempt) error {
	store, _, err := s.ready()
	if err != nil {
		return err
	}
	if strings.TrimSpace(a.CompanyID) == "" || a.SentAt.IsZero() {
		return fmt.Errorf("%w: outreach needs company_id and sent_at", ErrInvalidInput)
	}
	return store.RecordOutreach(ctx, a)
}

// AddToWatchlist makes a company eligible for every nightly run.
func (s *Service) AddToWatchlist(ctx context.Context, companyID string) error {
	store, _, err := s.ready()
	if err != nil {
		return err
	}
	return store.AddToWatchlist(ctx, companyID)
}

// RemoveFromWatchlist drops a company from the watchlist.
func (s *Service) RemoveFromWatchlist(ctx context.Context, companyID string) error {
	store, _, err := s.ready()
	if err != nil {
		return err
	}
	return store.RemoveFromWatchlist(ctx, companyID)
}

// Readiness returns the stored snapshot for the company and date, scoring
// it first when none exists.
func (s *Service) Readiness(ctx context.Context, companyID string, asOf time.Time) (scoring.Snapshot, error) {
	store, _, err := s.ready()
	if err != nil {
		return scoring.Snapshot{}, err
	}
	asOf = s.dateOr(asOf)
	snap, err := store.GetReadiness(ctx, companyID, asOf)
	if !errors.Is(err, repository.ErrNotFound) {
		return snap, err
	}
	res, err := s.score(ctx, companyID, asOf)
	if err != nil {
		return scoring.Snapshot{}, err
	}
	return res.Readiness, nil
}

// Engagement returns the stored engagement snapshot, scoring on demand.
func (s *Service) Engagement(ctx context.Context, companyID string, asOf time.Time) (engagement.Snapshot, error) {
	store, _, err := s.ready()
	if err != nil {
		return engagement.Snapshot{}, err
	}
	asOf = s.dateOr(asOf)
	snap, err := store.GetEngagement(ctx, companyID, asOf)
	if !errors.Is(err, repository.ErrNotFound) {
		return snap, err
	}
	res, err := s.score(ctx, companyID, asOf)
	if err != nil {
		return engagement.Snapshot{}, err
	}
	if res.Engagement == nil {
		return engagement.Snapshot{}, fmt.Errorf("%w: engagement %s", repository.ErrNotFound, companyID)
	}
	return *res.Engagement, nil
}

// Recommendation returns the stored recommendation, running the pipeline on demand.
func (s *Service) Recommendation(ctx context.Context, companyID string, asOf time.Time) (outreach.Recommendation, error) {
	store, _, err := s.ready()
	if err != nil {
		return outreach.Recommendation{}, err
	}
	asOf = s.dateOr(asOf)
	rec, err := store.GetRecommendation(ctx, companyID, asOf)
	if !errors.Is(err, repository.ErrNotFound) {
		return rec, err
	}
	res, err := s.score(ctx, companyID, asOf)
	if err != nil {
		return outreach.Recommendation{}, err
	}
	if res.Recommendation == nil {
		return outreach.Recommendation{}, fmt.Errorf("%w: recommendation %s", repository.ErrNotFound, companyID)
	}
	return *res.Recommendation, nil
}

// score runs the nightly chain for one company. Companies with neither a
// profile nor any event in the scoring window are reported as not found.
func (s *Service) score(ctx context.Context, companyID string, asOf time.Time) (nightly.CompanyResult, error) {
	store, runner, err := s.ready()
	if err != nil {
		return nightly.CompanyResult{}, err
	}
	if _, err := store.GetCompany(ctx, companyID); errors.Is(err, repository.ErrNotFound) {
		from := asOf.AddDate(0, 0, -s.engines.Readiness.Config().LookbackDays())
		events, err := store.EventsBetween(ctx, companyID, from, asOf)
		if err != nil {
			return nightly.CompanyResult{}, err
		}
		if len(events) == 0 {
			return nightly.CompanyResult{}, fmt.Errorf("%w: company %s", repository.ErrNotFound, companyID)
		}
	} else if err != nil {
		return nightly.CompanyResult{}, err
	}
	return runner.ScoreCompany(ctx, companyID, asOf)
}

func (s *Service) dateOr(asOf time.Time) time.Time {
	if asOf.IsZero() {
		asOf = s.now()
	}
	return model.DateOf(asOf)
}

// RunNightly scores every eligible company as of asOf, or today when zero.
func (s *Service) RunNightly(ctx context.Context, asOf time.Time) (nightly.Summary, error) {
	_, runner, err := s.ready()
	if err != nil {
		return nightly.Summary{}, err
	}
	sum, err := runner.Run(ctx, s.dateOr(asOf))
	if err != nil {
		return sum, err
	}
	s.mu.Lock()
	s.lastRun = &sum
	s.mu.Unlock()
	return sum, nil
}

// Schedule runs a nightly pass every interval until ctx ends.
func (s *Service) Schedule(ctx context.Context, interval time.Duration) error {
	_, runner, err := s.ready()
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "nightly scheduler started", logger.Duration("interval", interval))
	return runner.Loop(ctx, interval, s.now)
}

// CheckDraft runs the configured critic over a draft.
func (s *Service) CheckDraft(subject, message string) critic.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := critic.Default()
	if s.engines != nil && s.engines.Critic != nil {
		c = s.engines.Critic
	}
	return c.Check(subject, message)
}

// TopN returns the top N leaderboard entries.
func (s *Service) TopN(ctx context.Context, n int) ([]repository.Entry, error) {
	if _, _, err := s.ready(); err != nil {
		return nil, err
	}
	return s.ranking.TopN(ctx, n)
}

// Rank returns the leaderboard position of a company.
func (s *Service) Rank(ctx context.Context, companyID string) (repository.Entry, error) {
	if _, _, err := s.ready(); err != nil {
		return repository.Entry{}, err
	}
	return s.ranking.Rank(ctx, companyID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":      s.started,
		"workerCount":  s.workerCount,
		"queueSize":    s.queueSize,
		"dedupeSize":   s.dedupeSize,
		"draftEnabled": s.draftEnabled,
	}
	if !s.started {
		return stats
	}

	ranked := s.ranking.Count(ctx)
	stats["rankedCompanies"] = ranked
	stats["dedupeEntries"] = s.deduper.Size()
	if counts, err := s.store.Counts(ctx); err != nil {
		s.logger.Warn(ctx, "stats counts", logger.Error(err))
	} else {
		stats["counts"] = counts
	}
	if s.lastRun != nil {
		stats["lastRun"] = *s.lastRun
	}
	metrics.UpdateRankedCompanies(ranked)
	metrics.UpdateWorkerCount(s.workerCount)
	return stats
}
