// Package engagement implements the engagement suitability layer: stability
// indices, cadence and alignment modifiers, and the recommendation band that
// decide whether it is appropriate to reach out now.
package engagement

import (
	"math"
	"sort"
	"time"

	"github.com/okian/leadscore/internal/domain/model"
)

// PressurePoint is one historical Pressure sub-score.
type PressurePoint struct {
	AsOf     time.Time `json:"as_of"`
	Pressure int       `json:"pressure"`
}

// Input gathers everything the engine reads for one company and date.
type Input struct {
	// Composite is the same-date readiness composite; nil means no snapshot.
	Composite            *int
	Events               []model.EventLike
	PressureHistory      []PressurePoint
	Outreach             []model.OutreachAttempt
	AlignmentOKToContact *bool
	AsOf                 time.Time
}

// Explain is the engagement explain trace.
type Explain struct {
	BaseEngageability     float64            `json:"base_engageability"`
	StabilityModifier     float64            `json:"stability_modifier"`
	CadenceModifier       float64            `json:"cadence_modifier"`
	AlignmentModifier     float64            `json:"alignment_modifier"`
	SVI                   float64            `json:"svi"`
	SPI                   float64            `json:"spi"`
	CSI                   float64            `json:"csi"`
	ESLComposite          float64            `json:"esl_composite"`
	RecommendationType    RecommendationType `json:"recommendation_type"`
	CadenceBlocked        bool               `json:"cadence_blocked"`
	StabilityCapTriggered bool               `json:"stability_cap_triggered"`
	DeclinedRecently      bool               `json:"declined_recently,omitempty"`
	DaysSinceLastOutreach *int               `json:"days_since_last_outreach,omitempty"`
	UrgencyTypesSeen      []string           `json:"urgency_types_seen,omitempty"`
	SilenceGaps           int                `json:"silence_gaps"`
	SustainedPressureDays int                `json:"sustained_pressure_days"`
}

// Result is the engine output for one company and date.
type Result struct {
	ESLScore              float64
	SVI                   float64
	SPI                   float64
	CSI                   float64
	StabilityModifier     float64
	CadenceModifier       float64
	AlignmentModifier     float64
	CadenceBlocked        bool
	StabilityCapTriggered bool
	DeclinedRecently      bool
	Recommendation        RecommendationType
	OutreachScore         int
	Explain               Explain
}

// Engine evaluates engagement suitability. It holds no mutable state.
type Engine struct {
	cfg     Config
	urgency map[string]struct{}
}

// NewEngine validates cfg and returns an engine bound to it.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, urgency: make(map[string]struct{}, len(cfg.Stress.UrgencyTypes))}
	for _, t := range cfg.Stress.UrgencyTypes {
		e.urgency[t] = struct{}{}
	}
	return e, nil
}

// NewDefaultEngine returns an engine over DefaultConfig.
func NewDefaultEngine() *Engine {
	e, err := NewEngine(DefaultConfig())
	if err != nil {
		panic("engagement: default config invalid: " + err.Error())
	}
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Evaluate computes the engagement result. It reports false when no readiness
// composite is available, which callers must not treat as a zero score.
func (e *Engine) Evaluate(in Input) (Result, bool) {
	if in.Composite == nil {
		return Result{}, false
	}
	asOf := model.DateOf(in.AsOf)
	composite := min(max(*in.Composite, 0), 100)

	be := float64(composite) / 100
	svi, seen := e.stressVolatility(in.Events, asOf)
	spi, sustained := e.sustainedPressure(in.PressureHistory, asOf)
	csi, gaps := e.communicationStability(in.Events, in.Outreach, asOf)

	w := e.cfg.Weights
	sm := clampUnit(1 - (w.SVI*svi + w.SPI*spi + w.CSI*(1-csi)))

	cm := 1.0
	daysSince, declined := e.cadence(in.Outreach, asOf)
	blocked := declined || (daysSince != nil && *daysSince < e.cfg.Cadence.CooldownDays)
	if blocked {
		cm = 0
	}

	am := 1.0
	if in.AlignmentOKToContact != nil && !*in.AlignmentOKToContact {
		am = e.cfg.AlignmentPenalty
	}

	esl := clampUnit(be * sm * cm * am)

	var rec RecommendationType
	capped := false
	switch {
	case blocked, esl == 0:
		// Observe Only is terminal: a zero composite, including a suppressed
		// company, never reaches the stability cap.
		rec = ObserveOnly
	case sm < e.cfg.StabilityCap:
		rec = SoftValueShare
		capped = true
	default:
		rec = e.cfg.Bands.Map(esl)
	}

	res := Result{
		ESLScore:              esl,
		SVI:                   svi,
		SPI:                   spi,
		CSI:                   csi,
		StabilityModifier:     sm,
		CadenceModifier:       cm,
		AlignmentModifier:     am,
		CadenceBlocked:        blocked,
		StabilityCapTriggered: capped,
		DeclinedRecently:      declined,
		Recommendation:        rec,
		OutreachScore:         OutreachScore(composite, esl),
	}
	res.Explain = Explain{
		BaseEngageability:     be,
		StabilityModifier:     sm,
		CadenceModifier:       cm,
		AlignmentModifier:     am,
		SVI:                   svi,
		SPI:                   spi,
		CSI:                   csi,
		ESLComposite:          esl,
		RecommendationType:    rec,
		CadenceBlocked:        blocked,
		StabilityCapTriggered: capped,
		DeclinedRecently:      declined,
		DaysSinceLastOutreach: daysSince,
		UrgencyTypesSeen:      seen,
		SilenceGaps:           gaps,
		SustainedPressureDays: sustained,
	}
	return res, true
}

// stressVolatility is the share of urgency types seen inside the window.
func (e *Engine) stressVolatility(events []model.EventLike, asOf time.Time) (float64, []string) {
	seen := map[string]struct{}{}
	for _, ev := range events {
		if ev == nil || ev.EventTime().IsZero() {
			continue
		}
		if _, ok := e.urgency[ev.EventType()]; !ok {
			continue
		}
		if age := model.DaysBetween(asOf, ev.EventTime()); age <= e.cfg.Stress.WindowDays {
			seen[ev.EventType()] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return 0, nil
	}
	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return clampUnit(float64(len(types)) / float64(len(e.cfg.Stress.UrgencyTypes))), types
}

// sustainedPressure measures the run of snapshots at or above the threshold
// that ends at the latest snapshot in the window and reports its span in
// days. A run that has since dropped below the threshold does not count.
// Days without a snapshot carry the previous value.
func (e *Engine) sustainedPressure(history []PressurePoint, asOf time.Time) (float64, int) {
	cfg := e.cfg.Sustained
	byDate := map[time.Time]int{}
	for _, p := range history {
		d := model.DateOf(p.AsOf)
		if age := model.DaysBetween(asOf, d); age < 0 || age > cfg.WindowDays {
			continue
		}
		byDate[d] = p.Pressure
	}
	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	if len(dates) == 0 || byDate[dates[len(dates)-1]] < cfg.Threshold {
		return cfg.Low, 0
	}
	last := dates[len(dates)-1]
	start := last
	for i := len(dates) - 2; i >= 0 && byDate[dates[i]] >= cfg.Threshold; i-- {
		start = dates[i]
	}
	span := model.DaysBetween(last, start)
	if span >= cfg.SustainDays {
		return cfg.High, span
	}
	return cfg.Low, span
}

// communicationStability penalises silent stretches in the event and
// outreach timeline, closed by as_of. A window with no activity at all is
// one silent stretch.
func (e *Engine) communicationStability(events []model.EventLike, outreach []model.OutreachAttempt, asOf time.Time) (float64, int) {
	cfg := e.cfg.Communication
	var timeline []time.Time
	add := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if age := model.DaysBetween(asOf, t); age >= 0 && age <= cfg.WindowDays {
			timeline = append(timeline, model.DateOf(t))
		}
	}
	for _, ev := range events {
		if ev != nil {
			add(ev.EventTime())
		}
	}
	for _, o := range outreach {
		add(o.SentAt)
	}
	if len(timeline) == 0 {
		if cfg.WindowDays < cfg.GapDays {
			return cfg.Baseline, 0
		}
		return clampUnit(cfg.Baseline - cfg.Penalty), 1
	}
	timeline = append(timeline, asOf)
	sort.Slice(timeline, func(i, j int) bool { return timeline[i].Before(timeline[j]) })

	gaps := 0
	for i := 1; i < len(timeline); i++ {
		if model.DaysBetween(timeline[i], timeline[i-1]) >= cfg.GapDays {
			gaps++
		}
	}
	return clampUnit(cfg.Baseline - float64(gaps)*cfg.Penalty), gaps
}

// cadence returns days since the most recent attempt (nil when none) and
// whether any attempt inside the decline lookback was declined.
func (e *Engine) cadence(outreach []model.OutreachAttempt, asOf time.Time) (*int, bool) {
	var last *int
	declined := false
	for _, o := range outreach {
		if o.SentAt.IsZero() {
			continue
		}
		days := max(model.DaysBetween(asOf, o.SentAt), 0)
		if last == nil || days < *last {
			d := days
			last = &d
		}
		if o.Outcome == model.OutcomeDeclined && days <= e.cfg.Cadence.DeclineLookbackDays {
			declined = true
		}
	}
	return last, declined
}

// OutreachScore is round(composite * modifier), clamped to [0,100].
func OutreachScore(composite int, modifier float64) int {
	v := math.Round(float64(composite) * modifier)
	return int(math.Max(0, math.Min(v, 100)))
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(v, 1))
}
