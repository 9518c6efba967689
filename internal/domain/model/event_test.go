package model_test

import (
	"testing"
	"time"

	"github.com/okian/leadscore/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestResolveConfidence(t *testing.T) {
	Convey("Given events with and without confidence", t, func() {
		Convey("When confidence is absent", func() {
			e := model.Event{Type: "funding_raised"}
			So(model.ResolveConfidence(e, model.DefaultConfidence), ShouldEqual, 0.7)
		})

		Convey("When confidence is outside [0,1]", func() {
			So(model.ResolveConfidence(model.Event{Confidence: model.Float(1.4)}, 0.7), ShouldEqual, 1.0)
			So(model.ResolveConfidence(model.Event{Confidence: model.Float(-0.2)}, 0.7), ShouldEqual, 0.0)
		})

		Convey("When confidence is in range", func() {
			So(model.ResolveConfidence(model.Event{Confidence: model.Float(0.35)}, 0.7), ShouldEqual, 0.35)
		})

		Convey("When the default itself is out of range", func() {
			So(model.ResolveConfidence(model.Event{}, 3), ShouldEqual, 1.0)
		})
	})
}

func TestEventLikeImplementations(t *testing.T) {
	Convey("Given a persisted event and a synthetic one", t, func() {
		ts := time.Date(2025, 3, 1, 15, 4, 5, 0, time.UTC)
		var persisted model.EventLike = model.Event{Type: "api_launched", Time: ts, Source: "crawler", URL: "https://x.test"}
		var derived model.EventLike = model.Synthetic{Type: model.NoCTOSignal, Time: ts, Confidence: 1}

		Convey("Then both expose the three accessors", func() {
			So(persisted.EventType(), ShouldEqual, "api_launched")
			So(persisted.EventTime(), ShouldEqual, ts)
			_, ok := persisted.EventConfidence()
			So(ok, ShouldBeFalse)

			c, ok := derived.EventConfidence()
			So(ok, ShouldBeTrue)
			So(c, ShouldEqual, 1.0)
		})

		Convey("Then both carry provenance", func() {
			So(persisted.(model.Sourced).EventURL(), ShouldEqual, "https://x.test")
			So(derived.(model.Sourced).EventSource(), ShouldEqual, "derived")
		})
	})
}

func TestCompanyDerivedSignals(t *testing.T) {
	Convey("Given companies with different CTO knowledge", t, func() {
		asOf := time.Date(2025, 6, 30, 18, 0, 0, 0, time.UTC)

		Convey("Unknown CTO status derives nothing", func() {
			So(model.Company{ID: "a"}.DerivedSignals(asOf), ShouldBeEmpty)
		})

		Convey("A known CTO derives nothing", func() {
			So(model.Company{ID: "a", HasCTO: model.Bool(true)}.DerivedSignals(asOf), ShouldBeEmpty)
		})

		Convey("No CTO derives a no_cto_detected signal dated as_of", func() {
			got := model.Company{ID: "a", HasCTO: model.Bool(false)}.DerivedSignals(asOf)
			So(got, ShouldHaveLength, 1)
			So(got[0].EventType(), ShouldEqual, model.NoCTOSignal)
			So(got[0].EventTime(), ShouldEqual, model.DateOf(asOf))
		})
	})
}

func TestDates(t *testing.T) {
	Convey("Given calendar arithmetic", t, func() {
		asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

		So(model.DaysBetween(asOf, asOf.Add(-5*24*time.Hour)), ShouldEqual, 5)
		So(model.DaysBetween(asOf, time.Date(2025, 6, 29, 23, 59, 0, 0, time.UTC)), ShouldEqual, 1)
		So(model.DaysBetween(asOf, asOf.Add(48*time.Hour)), ShouldEqual, -2)

		d, err := model.ParseDate("2025-02-03")
		So(err, ShouldBeNil)
		So(d, ShouldEqual, time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC))

		_, err = model.ParseDate("03/02/2025")
		So(err, ShouldNotBeNil)

		So(model.ParseOutcome(" Declined "), ShouldEqual, model.OutcomeDeclined)
		So(model.ParseOutcome("maybe"), ShouldEqual, model.OutcomeUnknown)
	})
}
