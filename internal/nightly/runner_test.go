package nightly_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/leadscore/internal/adapters/repository"
	"github.com/okian/leadscore/internal/domain/engagement"
	"github.com/okian/leadscore/internal/domain/model"
	"github.com/okian/leadscore/internal/domain/outreach"
	"github.com/okian/leadscore/internal/domain/scoring"
	"github.com/okian/leadscore/internal/nightly"
	"github.com/okian/leadscore/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
	m.Run()
}

var asOf = time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time { return asOf.AddDate(0, 0, -n) }

func seed(ctx context.Context) *repository.SQLStore {
	s, err := repository.Open(ctx, ":memory:")
	So(err, ShouldBeNil)

	So(s.UpsertCompany(ctx, model.Company{ID: "acme", Name: "Acme"}), ShouldBeNil)
	So(s.UpsertCompany(ctx, model.Company{ID: "beta", Name: "Beta", AlignmentOKToContact: model.Bool(false)}), ShouldBeNil)
	So(s.UpsertCompany(ctx, model.Company{ID: "gone", Name: "Gone", Status: "Acquired"}), ShouldBeNil)

	events := []model.Event{
		{ID: "a1", CompanyID: "acme", Type: scoring.FundingRaised, Time: daysAgo(5), Confidence: model.Float(1)},
		{ID: "a2", CompanyID: "acme", Type: "cto_role_posted", Time: daysAgo(50)},
		{ID: "b1", CompanyID: "beta", Type: "api_launched", Time: daysAgo(20)},
		{ID: "g1", CompanyID: "gone", Type: scoring.FundingRaised, Time: daysAgo(10)},
		{ID: "s1", CompanyID: "stale", Type: scoring.FundingRaised, Time: daysAgo(400)},
	}
	for _, e := range events {
		_, err := s.InsertEvent(ctx, e)
		So(err, ShouldBeNil)
	}
	So(s.AddToWatchlist(ctx, "quiet"), ShouldBeNil)
	return s
}

func newRunner(s nightly.Store, opts ...nightly.Option) *nightly.Runner {
	r, err := nightly.New(s, append([]nightly.Option{nightly.WithWorkerCount(3), nightly.WithQueueSize(2)}, opts...)...)
	So(err, ShouldBeNil)
	return r
}

type stored struct {
	Readiness      map[string]scoring.Snapshot
	Engagement     map[string]engagement.Snapshot
	Recommendation map[string]outreach.Recommendation
}

func load(ctx context.Context, s *repository.SQLStore, ids ...string) stored {
	out := stored{
		Readiness:      map[string]scoring.Snapshot{},
		Engagement:     map[string]engagement.Snapshot{},
		Recommendation: map[string]outreach.Recommendation{},
	}
	for _, id := range ids {
		r, err := s.GetReadiness(ctx, id, asOf)
		So(err, ShouldBeNil)
		out.Readiness[id] = r
		e, err := s.GetEngagement(ctx, id, asOf)
		So(err, ShouldBeNil)
		out.Engagement[id] = e
		rec, err := s.GetRecommendation(ctx, id, asOf)
		So(err, ShouldBeNil)
		out.Recommendation[id] = rec
	}
	return out
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store with active, watchlisted, suppressed and stale companies", t, func() {
		s := seed(ctx)
		defer s.Close()
		ranking := repository.NewRanking()
		pipeline, err := outreach.NewPipeline(outreach.WithSink(s))
		So(err, ShouldBeNil)
		r := newRunner(s, nightly.WithPipeline(pipeline), nightly.WithRanking(ranking))

		sum, err := r.Run(ctx, asOf.Add(15*time.Hour))
		So(err, ShouldBeNil)

		Convey("Then every eligible company is scored and persisted", func() {
			So(sum.AsOf, ShouldEqual, asOf)
			So(sum.RunID, ShouldNotBeEmpty)
			So(sum.Eligible, ShouldEqual, 4)
			So(sum.Scored, ShouldEqual, 4)
			So(sum.Skipped, ShouldEqual, 0)
			So(sum.Errors, ShouldEqual, 0)
			So(sum.EngagementWritten, ShouldEqual, 4)
			So(sum.RecommendationsWritten, ShouldEqual, 4)
			So(sum.Failures, ShouldBeEmpty)
		})

		Convey("Then acme carries its readiness and outreach score", func() {
			snap, err := s.GetReadiness(ctx, "acme", asOf)
			So(err, ShouldBeNil)
			So(snap.Momentum, ShouldEqual, 35)
			So(snap.Pressure, ShouldEqual, 20)
			So(snap.LeadershipGap, ShouldEqual, 70)
			So(snap.Composite, ShouldEqual, 26)

			e, err := ranking.Rank(ctx, "acme")
			So(err, ShouldBeNil)
			So(e.Composite, ShouldEqual, 26)
			So(ranking.Count(ctx), ShouldEqual, 4)
		})

		Convey("Then the suppressed company scores zero and is never drafted", func() {
			snap, _ := s.GetReadiness(ctx, "gone", asOf)
			So(snap.Composite, ShouldEqual, 0)
			So(snap.Explain.SuppressorsApplied, ShouldContain, "company_status_suppressed")
			rec, _ := s.GetRecommendation(ctx, "gone", asOf)
			So(rec.RecommendationType, ShouldEqual, engagement.ObserveOnly)
			So(rec.DraftVariants, ShouldBeEmpty)
		})

		Convey("Then the alignment veto caps beta", func() {
			rec, _ := s.GetRecommendation(ctx, "beta", asOf)
			So(rec.SafeguardsTriggered, ShouldContain, outreach.SafeguardAlignmentVeto)
		})

		Convey("When the same date is run again", func() {
			ids := []string{"acme", "beta", "gone", "quiet"}
			before := load(ctx, s, ids...)
			again, err := r.Run(ctx, asOf)
			So(err, ShouldBeNil)
			after := load(ctx, s, ids...)

			Convey("Then stored values are unchanged", func() {
				So(again.Scored, ShouldEqual, sum.Scored)
				So(again.RunID, ShouldNotEqual, sum.RunID)
				So(cmp.Diff(before, after), ShouldBeEmpty)
				c, _ := s.Counts(ctx)
				So(c.Readiness, ShouldEqual, 4)
				So(c.Recommendations, ShouldEqual, 4)
			})
		})
	})
}

// faultyStore fails or panics for chosen companies.
type faultyStore struct {
	*repository.SQLStore
	failCompany  string
	panicCompany string
	failSink     string
	block        chan struct{}
	entered      chan struct{}
	eligibleErr  error
}

func (f *faultyStore) GetCompany(ctx context.Context, id string) (model.Company, error) {
	if id == f.failCompany {
		return model.Company{}, errors.New("connection reset")
	}
	return f.SQLStore.GetCompany(ctx, id)
}

func (f *faultyStore) EventsBetween(ctx context.Context, id string, from, to time.Time) ([]model.Event, error) {
	if id == f.panicCompany {
		panic("corrupt row")
	}
	return f.SQLStore.EventsBetween(ctx, id, from, to)
}

func (f *faultyStore) UpsertRecommendation(ctx context.Context, rec outreach.Recommendation) error {
	if rec.CompanyID == f.failSink {
		return errors.New("disk full")
	}
	return f.SQLStore.UpsertRecommendation(ctx, rec)
}

func (f *faultyStore) EligibleCompanies(ctx context.Context, asOf time.Time, days int) ([]string, error) {
	if f.block != nil {
		close(f.entered)
		<-f.block
	}
	if f.eligibleErr != nil {
		return nil, f.eligibleErr
	}
	return f.SQLStore.EligibleCompanies(ctx, asOf, days)
}

func TestRunAcquiredUnderUrgency(t *testing.T) {
	ctx := context.Background()

	Convey("Given an acquired company with a burst of recent urgency", t, func() {
		s := seed(ctx)
		defer s.Close()
		So(s.UpsertCompany(ctx, model.Company{ID: "sold", Name: "Sold", Status: "acquired"}), ShouldBeNil)
		burst := []string{
			"founder_urgency_language",
			"regulatory_deadline",
			"enterprise_customer",
			"revenue_milestone",
			scoring.FundingRaised,
		}
		for i, typ := range burst {
			_, err := s.InsertEvent(ctx, model.Event{
				ID:        "u" + typ,
				CompanyID: "sold",
				Type:      typ,
				Time:      daysAgo(3 + i),
			})
			So(err, ShouldBeNil)
		}
		pipeline, err := outreach.NewPipeline(outreach.WithSink(s))
		So(err, ShouldBeNil)
		r := newRunner(s, nightly.WithPipeline(pipeline))

		res, err := r.ScoreCompany(ctx, "sold", asOf)
		So(err, ShouldBeNil)

		Convey("Then it is observed only, ahead of the stability cap", func() {
			So(res.Readiness.Composite, ShouldEqual, 0)
			So(res.Engagement, ShouldNotBeNil)
			So(res.Engagement.ESLScore, ShouldEqual, 0)
			So(res.Engagement.EngagementType, ShouldEqual, engagement.ObserveOnly)
			So(res.Engagement.Explain.StabilityCapTriggered, ShouldBeFalse)

			So(res.Recommendation, ShouldNotBeNil)
			So(res.Recommendation.RecommendationType, ShouldEqual, engagement.ObserveOnly)
			So(res.Recommendation.DraftVariants, ShouldBeEmpty)
			So(res.Recommendation.SafeguardsTriggered, ShouldResemble, []string{outreach.SafeguardZeroEngagement})

			stored, err := s.GetRecommendation(ctx, "sold", asOf)
			So(err, ShouldBeNil)
			So(stored.RecommendationType, ShouldEqual, engagement.ObserveOnly)
		})
	})
}

func TestRunIsolation(t *testing.T) {
	ctx := context.Background()

	Convey("Given one company that errors and one that panics", t, func() {
		s := seed(ctx)
		defer s.Close()
		r := newRunner(&faultyStore{SQLStore: s, failCompany: "beta", panicCompany: "quiet"})

		sum, err := r.Run(ctx, asOf)

		Convey("Then the batch finishes and both are reported as skipped", func() {
			So(err, ShouldBeNil)
			So(sum.Eligible, ShouldEqual, 4)
			So(sum.Scored, ShouldEqual, 2)
			So(sum.Skipped, ShouldEqual, 2)
			So(sum.Errors, ShouldEqual, 2)
			So(sum.RecommendationsWritten, ShouldEqual, 0)

			failed := map[string]string{}
			for _, f := range sum.Failures {
				failed[f.CompanyID] = f.Error
			}
			So(failed["beta"], ShouldContainSubstring, "connection reset")
			So(failed["quiet"], ShouldContainSubstring, "panicked")

			_, err := s.GetEngagement(ctx, "acme", asOf)
			So(err, ShouldBeNil)
		})
	})

	Convey("Given a recommendation that cannot be persisted", t, func() {
		s := seed(ctx)
		defer s.Close()
		fs := &faultyStore{SQLStore: s, failSink: "acme"}
		pipeline, err := outreach.NewPipeline(outreach.WithSink(fs))
		So(err, ShouldBeNil)
		r := newRunner(fs, nightly.WithPipeline(pipeline))

		sum, err := r.Run(ctx, asOf)
		So(err, ShouldBeNil)

		Convey("Then the rows written before the failure are still counted", func() {
			So(sum.Eligible, ShouldEqual, 4)
			So(sum.Scored, ShouldEqual, 4)
			So(sum.EngagementWritten, ShouldEqual, 4)
			So(sum.RecommendationsWritten, ShouldEqual, 3)
			So(sum.Errors, ShouldEqual, 1)
			So(sum.Skipped, ShouldEqual, 1)
			So(sum.Failures, ShouldHaveLength, 1)
			So(sum.Failures[0].CompanyID, ShouldEqual, "acme")
			So(sum.Failures[0].Error, ShouldContainSubstring, "disk full")

			_, err := s.GetReadiness(ctx, "acme", asOf)
			So(err, ShouldBeNil)
			_, err = s.GetEngagement(ctx, "acme", asOf)
			So(err, ShouldBeNil)
			_, err = s.GetRecommendation(ctx, "acme", asOf)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})

	Convey("Given the eligible set cannot be read", t, func() {
		s := seed(ctx)
		defer s.Close()
		r := newRunner(&faultyStore{SQLStore: s, eligibleErr: errors.New("locked")})
		_, err := r.Run(ctx, asOf)
		So(err, ShouldNotBeNil)
	})

	Convey("Given a run already in progress", t, func() {
		s := seed(ctx)
		defer s.Close()
		fs := &faultyStore{SQLStore: s, block: make(chan struct{}), entered: make(chan struct{})}
		r := newRunner(fs)

		done := make(chan error, 1)
		go func() {
			_, err := r.Run(ctx, asOf)
			done <- err
		}()
		<-fs.entered

		_, err := r.Run(ctx, asOf)
		So(errors.Is(err, nightly.ErrRunning), ShouldBeTrue)
		close(fs.block)
		So(<-done, ShouldBeNil)
	})

	Convey("Given no store", t, func() {
		_, err := nightly.New(nil)
		So(errors.Is(err, nightly.ErrMissingDep), ShouldBeTrue)
	})
}
