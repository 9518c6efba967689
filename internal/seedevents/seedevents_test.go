package seedevents

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/okian/leadscore/internal/adapters/http/api"
	service "github.com/okian/leadscore/internal/app"
	"github.com/okian/leadscore/internal/domain/model"
	"github.com/okian/leadscore/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

var asOf = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func TestGenerator(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		ctx := context.Background()
		cfg := &Config{Companies: 12, EventsPerCompany: 4, HorizonDays: 30}

		a, err := NewGenerator(7).Generate(ctx, cfg, asOf)
		So(err, ShouldBeNil)

		Convey("Then the same seed yields the same dataset", func() {
			b, err := NewGenerator(7).Generate(ctx, cfg, asOf)
			So(err, ShouldBeNil)
			So(b, ShouldResemble, a)
		})

		Convey("Then a different seed yields different ids", func() {
			b, err := NewGenerator(8).Generate(ctx, cfg, asOf)
			So(err, ShouldBeNil)
			So(b.Companies[0].ID, ShouldNotEqual, a.Companies[0].ID)
		})

		Convey("Then sizes and fields are well formed", func() {
			So(a.Companies, ShouldHaveLength, 12)
			So(a.Events, ShouldHaveLength, 48)
			So(a.AsOf, ShouldEqual, "2025-03-01")

			known := map[string]bool{}
			for _, s := range signalMix {
				known[s.typ] = true
			}
			ids := map[string]bool{}
			for _, c := range a.Companies {
				id, err := uuid.Parse(c.ID)
				So(err, ShouldBeNil)
				So(id.Version(), ShouldEqual, uuid.Version(4))
				ids[c.ID] = true
			}
			for _, e := range a.Events {
				So(ids[e.CompanyID], ShouldBeTrue)
				So(known[e.EventType], ShouldBeTrue)
				So(e.Confidence, ShouldBeBetweenOrEqual, 0.5, 1.0)
				ts, err := time.Parse(time.RFC3339, e.EventTime)
				So(err, ShouldBeNil)
				So(ts.After(asOf), ShouldBeFalse)
				So(ts.Before(asOf.AddDate(0, 0, -30)), ShouldBeFalse)
			}
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := NewGenerator(7).Generate(cctx, cfg, asOf)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestVerifyLeaderboard(t *testing.T) {
	Convey("Given leaderboard rows", t, func() {
		ok := []Entry{
			{Rank: 1, CompanyID: "b", OutreachScore: 80, Composite: 60},
			{Rank: 2, CompanyID: "a", OutreachScore: 70, Composite: 90},
			{Rank: 3, CompanyID: "c", OutreachScore: 70, Composite: 50},
			{Rank: 4, CompanyID: "d", OutreachScore: 70, Composite: 50},
		}

		Convey("Then a well ordered board passes", func() {
			So(verifyLeaderboard(ok), ShouldBeNil)
		})

		Convey("Then an empty board has nothing to verify", func() {
			So(errors.Is(verifyLeaderboard(nil), ErrNoData), ShouldBeTrue)
		})

		Convey("Then a rank gap is inconsistent", func() {
			bad := append([]Entry(nil), ok...)
			bad[2].Rank = 4
			So(errors.Is(verifyLeaderboard(bad), ErrInconsistent), ShouldBeTrue)
		})

		Convey("Then a tie broken against company id is inconsistent", func() {
			bad := append([]Entry(nil), ok...)
			bad[2].CompanyID, bad[3].CompanyID = "d", "c"
			So(errors.Is(verifyLeaderboard(bad), ErrInconsistent), ShouldBeTrue)
		})
	})
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	svc := service.New(
		service.WithDBPath(":memory:"),
		service.WithWorkerCount(2),
		service.WithQueueSize(8),
	)
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start service: %v", err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc, 100).Register(ctx, mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		svc.Stop()
	})
	return srv
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		srv := newTestServer(t)
		out := filepath.Join(t.TempDir(), "data", "dataset.json")
		cfg := &Config{
			BaseURL:          srv.URL,
			Companies:        20,
			EventsPerCompany: 5,
			HorizonDays:      90,
			AsOf:             asOf,
			TopN:             10,
			Workers:          4,
			Timeout:          5 * time.Second,
			Seed:             42,
			OutputFile:       out,
		}

		Convey("When a seeding run completes", func() {
			stats, err := Run(context.Background(), cfg)

			Convey("Then everything was ingested and scored", func() {
				So(err, ShouldBeNil)
				So(stats.CompaniesCreated, ShouldEqual, 20)
				So(stats.EventsGenerated, ShouldEqual, 100)
				So(stats.EventsAccepted, ShouldEqual, 100)
				So(stats.EventsFailed, ShouldEqual, 0)
				So(stats.Nightly.Eligible, ShouldEqual, 20)
				So(stats.Nightly.Errors, ShouldEqual, 0)
				So(stats.LeaderboardEntries, ShouldEqual, 10)
				So(stats.RanksChecked, ShouldEqual, 10)
			})

			Convey("Then the dataset was written", func() {
				So(err, ShouldBeNil)
				raw, rerr := os.ReadFile(out)
				So(rerr, ShouldBeNil)
				var ds Dataset
				So(json.Unmarshal(raw, &ds), ShouldBeNil)
				So(ds.Seed, ShouldEqual, 42)
				So(ds.AsOf, ShouldEqual, asOf.Format(model.DateLayout))
				So(ds.Events, ShouldHaveLength, 100)
			})

			Convey("And replaying the same seed only produces duplicates", func() {
				So(err, ShouldBeNil)
				again, err := Run(context.Background(), cfg)
				So(err, ShouldBeNil)
				So(again.EventsAccepted, ShouldEqual, 0)
				So(again.EventsDuplicate, ShouldEqual, 100)
			})
		})
	})

	Convey("Given nothing listening", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()
		_, err := Run(context.Background(), &Config{BaseURL: srv.URL, Workers: 1, Timeout: time.Second, Seed: 1})
		So(errors.Is(err, ErrUnhealthy), ShouldBeTrue)
	})
}
