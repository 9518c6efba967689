package engagement_test

import (
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/okian/leadscore/internal/domain/engagement"
	"github.com/okian/leadscore/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var asOf = time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time { return asOf.AddDate(0, 0, -n) }

func composite(v int) *int { return &v }

// active is a single calm signal on as_of, so the timeline has no silence.
func active() []model.EventLike {
	return []model.EventLike{model.Event{Type: "launch_major", Time: asOf}}
}

func urgencyBurst() []model.EventLike {
	var out []model.EventLike
	for i, t := range engagement.DefaultConfig().Stress.UrgencyTypes {
		out = append(out, model.Event{Type: t, Time: daysAgo(i + 1)})
	}
	return out
}

func TestBandsMap(t *testing.T) {
	Convey("Given the default bands", t, func() {
		b := engagement.DefaultBands()

		Convey("Then boundaries are inclusive-lower", func() {
			So(b.Map(0), ShouldEqual, engagement.ObserveOnly)
			So(b.Map(0.1999), ShouldEqual, engagement.ObserveOnly)
			So(b.Map(0.2), ShouldEqual, engagement.SoftValueShare)
			So(b.Map(0.4), ShouldEqual, engagement.LowPressureIntro)
			So(b.Map(0.6999), ShouldEqual, engagement.LowPressureIntro)
			So(b.Map(0.7), ShouldEqual, engagement.StandardOutreach)
			So(b.Map(0.9), ShouldEqual, engagement.DirectStrategicOutreach)
			So(b.Map(1), ShouldEqual, engagement.DirectStrategicOutreach)
		})

		Convey("Then tiers can be capped", func() {
			So(engagement.DirectStrategicOutreach.AtMost(engagement.LowPressureIntro), ShouldEqual, engagement.LowPressureIntro)
			So(engagement.SoftValueShare.AtMost(engagement.LowPressureIntro), ShouldEqual, engagement.SoftValueShare)
		})
	})
}

func TestConfigValidate(t *testing.T) {
	Convey("Given the default config", t, func() {
		cfg := engagement.DefaultConfig()
		So(cfg.Validate(), ShouldBeNil)

		Convey("When stability weights do not sum to one", func() {
			cfg.Weights.CSI = 0.3
			So(errors.Is(cfg.Validate(), engagement.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When bands are unordered", func() {
			cfg.Bands = engagement.Bands{{Lower: 0.5, Type: engagement.SoftValueShare}, {Lower: 0.1, Type: engagement.ObserveOnly}}
			So(errors.Is(cfg.Validate(), engagement.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When a band names an unknown tier", func() {
			cfg.Bands[0].Type = "Cold Call"
			_, err := engagement.NewEngine(cfg)
			So(errors.Is(err, engagement.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestEvaluate(t *testing.T) {
	engine := engagement.NewDefaultEngine()

	Convey("Given no readiness composite", t, func() {
		_, ok := engine.Evaluate(engagement.Input{AsOf: asOf})

		Convey("Then there is no result", func() {
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given a calm, recently active company", t, func() {
		res, ok := engine.Evaluate(engagement.Input{Composite: composite(80), Events: active(), AsOf: asOf})

		Convey("Then every modifier is neutral", func() {
			So(ok, ShouldBeTrue)
			So(res.StabilityModifier, ShouldEqual, 1.0)
			So(res.CSI, ShouldEqual, 1.0)
			So(res.ESLScore, ShouldAlmostEqual, 0.8, 1e-9)
			So(res.Recommendation, ShouldEqual, engagement.StandardOutreach)
			So(res.OutreachScore, ShouldEqual, 64)
			So(res.Explain.BaseEngageability, ShouldAlmostEqual, 0.8, 1e-9)
		})
	})

	Convey("Given composites around band boundaries", t, func() {
		r20, _ := engine.Evaluate(engagement.Input{Composite: composite(20), Events: active(), AsOf: asOf})
		r19, _ := engine.Evaluate(engagement.Input{Composite: composite(19), Events: active(), AsOf: asOf})
		r95, _ := engine.Evaluate(engagement.Input{Composite: composite(95), Events: active(), AsOf: asOf})
		So(r20.Recommendation, ShouldEqual, engagement.SoftValueShare)
		So(r19.Recommendation, ShouldEqual, engagement.ObserveOnly)
		So(r95.Recommendation, ShouldEqual, engagement.DirectStrategicOutreach)
	})

	Convey("Given a zero composite under a burst of urgency", t, func() {
		res, _ := engine.Evaluate(engagement.Input{Composite: composite(0), Events: urgencyBurst(), AsOf: asOf})

		Convey("Then Observe Only takes precedence over the stability cap", func() {
			So(res.StabilityModifier, ShouldBeLessThan, engine.Config().StabilityCap)
			So(res.CadenceBlocked, ShouldBeFalse)
			So(res.ESLScore, ShouldEqual, 0.0)
			So(res.Recommendation, ShouldEqual, engagement.ObserveOnly)
			So(res.StabilityCapTriggered, ShouldBeFalse)
			So(res.OutreachScore, ShouldEqual, 0)
		})
	})

	Convey("Given a burst of every urgency type", t, func() {
		in := engagement.Input{Composite: composite(90), Events: urgencyBurst(), AsOf: asOf}
		res, _ := engine.Evaluate(in)

		Convey("Then stress volatility saturates and the stability cap applies", func() {
			So(res.SVI, ShouldEqual, 1.0)
			So(res.StabilityModifier, ShouldAlmostEqual, 0.6, 1e-9)
			So(res.StabilityCapTriggered, ShouldBeTrue)
			So(res.Recommendation, ShouldEqual, engagement.SoftValueShare)
			So(res.Explain.UrgencyTypesSeen, ShouldHaveLength, 5)
		})

		Convey("When the company was contacted ten days ago", func() {
			in.Outreach = []model.OutreachAttempt{{SentAt: daysAgo(10)}}
			res, _ := engine.Evaluate(in)

			Convey("Then Observe Only takes precedence over the stability cap", func() {
				So(res.CadenceBlocked, ShouldBeTrue)
				So(res.CadenceModifier, ShouldEqual, 0.0)
				So(res.ESLScore, ShouldEqual, 0.0)
				So(res.OutreachScore, ShouldEqual, 0)
				So(res.Recommendation, ShouldEqual, engagement.ObserveOnly)
				So(res.StabilityCapTriggered, ShouldBeFalse)
				So(*res.Explain.DaysSinceLastOutreach, ShouldEqual, 10)
			})
		})
	})

	Convey("Given an outreach declined 120 days ago", t, func() {
		res, _ := engine.Evaluate(engagement.Input{
			Composite: composite(80),
			Outreach:  []model.OutreachAttempt{{SentAt: daysAgo(120), Outcome: model.OutcomeDeclined}},
			AsOf:      asOf,
		})

		Convey("Then cadence is blocked", func() {
			So(res.DeclinedRecently, ShouldBeTrue)
			So(res.CadenceBlocked, ShouldBeTrue)
			So(res.Recommendation, ShouldEqual, engagement.ObserveOnly)
		})
	})

	Convey("Given an outreach 61 days ago that was not declined", t, func() {
		res, _ := engine.Evaluate(engagement.Input{
			Composite: composite(80),
			Outreach:  []model.OutreachAttempt{{SentAt: daysAgo(61), Outcome: model.OutcomeNoReply}},
			AsOf:      asOf,
		})

		Convey("Then cadence is open but the silence is penalised", func() {
			So(res.CadenceBlocked, ShouldBeFalse)
			So(res.CSI, ShouldAlmostEqual, 0.7, 1e-9)
			So(res.StabilityModifier, ShouldAlmostEqual, 0.925, 1e-9)
			So(res.Recommendation, ShouldEqual, engagement.StandardOutreach)
			So(res.OutreachScore, ShouldEqual, 59)
		})
	})

	Convey("Given alignment explicitly vetoed", t, func() {
		res, _ := engine.Evaluate(engagement.Input{Composite: composite(80), Events: active(), AlignmentOKToContact: model.Bool(false), AsOf: asOf})
		So(res.AlignmentModifier, ShouldEqual, 0.5)
		So(res.ESLScore, ShouldAlmostEqual, 0.4, 1e-9)
		So(res.Recommendation, ShouldEqual, engagement.LowPressureIntro)
	})

	Convey("Given alignment not reviewed", t, func() {
		res, _ := engine.Evaluate(engagement.Input{Composite: composite(80), AsOf: asOf})
		So(res.AlignmentModifier, ShouldEqual, 1.0)
	})
}

func TestSustainedPressure(t *testing.T) {
	engine := engagement.NewDefaultEngine()

	Convey("Given pressure at or above 60 across the whole window", t, func() {
		var history []engagement.PressurePoint
		for age := 90; age >= 0; age -= 10 {
			history = append(history, engagement.PressurePoint{AsOf: daysAgo(age), Pressure: 60})
		}
		res, _ := engine.Evaluate(engagement.Input{Composite: composite(80), Events: active(), PressureHistory: history, AsOf: asOf})

		Convey("Then the sustained index is high", func() {
			So(res.SPI, ShouldEqual, 0.7)
			So(res.Explain.SustainedPressureDays, ShouldEqual, 90)
			So(res.StabilityModifier, ShouldAlmostEqual, 0.755, 1e-9)
		})

		Convey("When a dip 40 days ago breaks the run", func() {
			history[5].Pressure = 40
			res, _ := engine.Evaluate(engagement.Input{Composite: composite(80), Events: active(), PressureHistory: history, AsOf: asOf})

			Convey("Then only the run since the dip counts", func() {
				So(res.SPI, ShouldEqual, 0.0)
				So(res.Explain.SustainedPressureDays, ShouldEqual, 30)
			})
		})

		Convey("When pressure fell below the threshold at the latest snapshot", func() {
			for i := range history {
				if age := model.DaysBetween(asOf, history[i].AsOf); age < 30 {
					history[i].Pressure = 55
				}
			}
			res, _ := engine.Evaluate(engagement.Input{Composite: composite(80), Events: active(), PressureHistory: history, AsOf: asOf})

			Convey("Then an earlier long run no longer counts", func() {
				So(res.SPI, ShouldEqual, 0.0)
				So(res.Explain.SustainedPressureDays, ShouldEqual, 0)
			})
		})
	})

	Convey("Given no pressure history", t, func() {
		res, _ := engine.Evaluate(engagement.Input{Composite: composite(80), Events: active(), AsOf: asOf})
		So(res.SPI, ShouldEqual, 0.0)
		So(res.Explain.SustainedPressureDays, ShouldEqual, 0)
	})
}

func TestCommunicationStability(t *testing.T) {
	Convey("Given signals 80 and 40 days ago", t, func() {
		events := []model.EventLike{
			model.Event{Type: "launch_major", Time: daysAgo(80)},
			model.Event{Type: "launch_major", Time: daysAgo(40)},
		}
		res, _ := engagement.NewDefaultEngine().Evaluate(engagement.Input{Composite: composite(50), Events: events, AsOf: asOf})

		Convey("Then each silent stretch costs a penalty", func() {
			So(res.Explain.SilenceGaps, ShouldEqual, 2)
			So(res.CSI, ShouldAlmostEqual, 0.4, 1e-9)
			So(res.StabilityModifier, ShouldAlmostEqual, 0.85, 1e-9)
		})
	})
}

func TestCommunicationStabilitySilence(t *testing.T) {
	engine := engagement.NewDefaultEngine()

	Convey("Given no activity at all in the window", t, func() {
		silent, _ := engine.Evaluate(engagement.Input{Composite: composite(80), AsOf: asOf})

		Convey("Then the whole window is one silent stretch", func() {
			So(silent.Explain.SilenceGaps, ShouldEqual, 1)
			So(silent.CSI, ShouldAlmostEqual, 0.7, 1e-9)
			So(silent.StabilityModifier, ShouldAlmostEqual, 0.925, 1e-9)
		})

		Convey("Then it is no more stable than a single old signal", func() {
			nearly, _ := engine.Evaluate(engagement.Input{
				Composite: composite(80),
				Events:    []model.EventLike{model.Event{Type: "launch_major", Time: daysAgo(85)}},
				AsOf:      asOf,
			})
			So(silent.CSI, ShouldBeLessThanOrEqualTo, nearly.CSI)
			So(silent.CSI, ShouldAlmostEqual, nearly.CSI, 1e-9)
		})

		Convey("Then recent activity is more stable", func() {
			recent, _ := engine.Evaluate(engagement.Input{Composite: composite(80), Events: active(), AsOf: asOf})
			So(recent.CSI, ShouldBeGreaterThan, silent.CSI)
		})
	})
}

func TestSnapshot(t *testing.T) {
	Convey("Given an evaluated result", t, func() {
		res, _ := engagement.NewDefaultEngine().Evaluate(engagement.Input{Composite: composite(80), AsOf: asOf})
		s := engagement.NewSnapshot("acme", asOf, res)
		So(s.CompanyID, ShouldEqual, "acme")
		So(s.EngagementType, ShouldEqual, res.Recommendation)
		So(s.OutreachScore, ShouldEqual, res.OutreachScore)
		So(s.Explain.ESLComposite, ShouldEqual, res.ESLScore)
	})
}

func TestEngagementProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	engine := engagement.NewDefaultEngine()
	urgency := engine.Config().Stress.UrgencyTypes

	properties.Property("esl stays in [0,1], score in [0,100], blocked or zero esl means Observe Only", prop.ForAll(
		func(comp int, eventAges []int, outreachAges []int, veto bool) bool {
			var events []model.EventLike
			for i, a := range eventAges {
				events = append(events, model.Event{Type: urgency[i%len(urgency)], Time: daysAgo(a)})
			}
			var outreach []model.OutreachAttempt
			for _, a := range outreachAges {
				outreach = append(outreach, model.OutreachAttempt{SentAt: daysAgo(a)})
			}
			res, ok := engine.Evaluate(engagement.Input{
				Composite:            &comp,
				Events:               events,
				Outreach:             outreach,
				AlignmentOKToContact: model.Bool(!veto),
				AsOf:                 asOf,
			})
			if !ok || res.ESLScore < 0 || res.ESLScore > 1 || res.OutreachScore < 0 || res.OutreachScore > 100 {
				return false
			}
			if res.CadenceBlocked && (res.Recommendation != engagement.ObserveOnly || res.ESLScore != 0) {
				return false
			}
			if res.ESLScore == 0 && (res.Recommendation != engagement.ObserveOnly || res.StabilityCapTriggered) {
				return false
			}
			return true
		},
		gen.IntRange(-10, 120),
		gen.SliceOf(gen.IntRange(0, 120)),
		gen.SliceOf(gen.IntRange(0, 200)),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
