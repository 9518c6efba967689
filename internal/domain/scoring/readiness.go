// Package scoring implements the readiness engine: decayed Momentum,
// Complexity and Pressure dimensions, the state-based Leadership-Gap
// dimension, and their weighted composite.
package scoring

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/okian/leadscore/internal/domain/model"
)

// Engine scores event lists. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	cfg        Config
	suppressed map[string]struct{}
}

// NewEngine validates cfg and returns an engine bound to it.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, suppressed: make(map[string]struct{}, len(cfg.SuppressedStatuses))}
	for _, s := range cfg.SuppressedStatuses {
		e.suppressed[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return e, nil
}

// NewDefaultEngine returns an engine over DefaultConfig.
func NewDefaultEngine() *Engine {
	e, err := NewEngine(DefaultConfig())
	if err != nil {
		panic("scoring: default config invalid: " + err.Error())
	}
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// scoredEvent carries one usable input event through the dimensions.
type scoredEvent struct {
	ev    model.EventLike
	idx   int
	age   int
	conf  float64
	total float64
}

// Score computes the readiness result for events as of asOf. Events with an
// unknown type or a zero timestamp are ignored. status is the company status;
// suppressed statuses zero every output.
func (e *Engine) Score(events []model.EventLike, asOf time.Time, status string) Result {
	asOf = model.DateOf(asOf)
	res := Result{Explain: Explain{
		Weights:            e.cfg.Weights.Fractions(),
		TopEvents:          []TopEvent{},
		SuppressorsApplied: []string{},
	}}

	if _, ok := e.suppressed[strings.ToLower(strings.TrimSpace(status))]; ok {
		res.Explain.SuppressorsApplied = append(res.Explain.SuppressorsApplied, SuppressorCompanyStatus)
		return res
	}

	usable := make([]*scoredEvent, 0, len(events))
	for i, ev := range events {
		if ev == nil || ev.EventTime().IsZero() {
			continue
		}
		age := model.DaysBetween(asOf, ev.EventTime())
		if age < 0 {
			age = 0
		}
		usable = append(usable, &scoredEvent{
			ev:   ev,
			idx:  i,
			age:  age,
			conf: model.ResolveConfidence(ev, e.cfg.DefaultConfidence),
		})
	}

	quiet := e.cfg.QuietSignal.Enabled && !e.recentTrigger(usable)
	amplified := map[string]struct{}{}

	res.Momentum = e.dimension(e.cfg.Momentum, usable, quiet, amplified)
	res.Complexity = e.dimension(e.cfg.Complexity, usable, quiet, amplified)
	res.Pressure = e.dimension(e.cfg.Pressure, usable, quiet, amplified)

	var suppressors []string
	res.LeadershipGap, suppressors = e.leadershipGap(usable)
	res.Explain.SuppressorsApplied = append(res.Explain.SuppressorsApplied, suppressors...)

	res.Composite = Compose(e.cfg.Weights, res.Momentum, res.Complexity, res.Pressure, res.LeadershipGap)
	res.Explain.Dimensions = Dimensions{
		M: res.Momentum, C: res.Complexity, P: res.Pressure, G: res.LeadershipGap, R: res.Composite,
	}
	res.Explain.TopEvents = e.topEvents(usable)

	if len(amplified) > 0 {
		types := make([]string, 0, len(amplified))
		for t := range amplified {
			types = append(types, t)
		}
		sort.Strings(types)
		res.Explain.QuietSignalAmplificationApplied = types
	}
	return res
}

// recentTrigger reports whether the quiet-signal trigger (funding) happened
// inside its window.
func (e *Engine) recentTrigger(events []*scoredEvent) bool {
	for _, se := range events {
		if se.ev.EventType() == e.cfg.QuietSignal.TriggerType && se.age <= e.cfg.QuietSignal.WindowDays {
			return true
		}
	}
	return false
}

// dimension sums decayed contributions, caps buckets, and rounds once.
func (e *Engine) dimension(d DimensionConfig, events []*scoredEvent, quiet bool, amplified map[string]struct{}) int {
	bucketOf := make(map[string]int, len(d.Buckets))
	for i, b := range d.Buckets {
		for _, t := range b.Types {
			bucketOf[t] = i
		}
	}

	var rest float64
	bucketSums := make([]float64, len(d.Buckets))
	contrib := make(map[*scoredEvent]float64, len(events))
	for _, se := range events {
		t := se.ev.EventType()
		base, ok := d.BaseScores[t]
		if !ok || se.age > d.LookbackDays {
			continue
		}
		if quiet {
			if q, ok := d.QuietBaseScores[t]; ok {
				base = q
				amplified[t] = struct{}{}
			}
		}
		points := base * d.Decay.Factor(se.age) * se.conf
		contrib[se] = points
		if b, ok := bucketOf[t]; ok {
			bucketSums[b] += points
		} else {
			rest += points
		}
	}

	total := rest
	scale := make([]float64, len(d.Buckets))
	for i, sum := range bucketSums {
		scale[i] = 1
		if limit := d.Buckets[i].Cap; sum > limit {
			if sum > 0 {
				scale[i] = limit / sum
			}
			sum = limit
		}
		total += sum
	}

	// Attribute post-cap points so the trace adds up to what counted.
	for se, points := range contrib {
		if b, ok := bucketOf[se.ev.EventType()]; ok {
			points *= scale[b]
		}
		se.total += points
	}

	return clampScore(math.Round(total), d.Cap)
}

// leadershipGap sums each role and detection signal type once, clamps, then
// applies the hire suppressor of the nearest hire signal.
func (e *Engine) leadershipGap(events []*scoredEvent) (int, []string) {
	lc := e.cfg.Leadership

	latest := map[string]*scoredEvent{}
	var hire *scoredEvent
	for _, se := range events {
		t := se.ev.EventType()
		if t == lc.HireType {
			if hire == nil || se.age < hire.age {
				hire = se
			}
			continue
		}
		window := 0
		if _, ok := lc.RoleScores[t]; ok {
			window = lc.RoleWindowDays
		} else if _, ok := lc.DetectionScores[t]; ok {
			window = lc.DetectionWindowDays
		} else {
			continue
		}
		if se.age > window {
			continue
		}
		if cur, ok := latest[t]; !ok || se.age < cur.age {
			latest[t] = se
		}
	}

	var sum float64
	for t, se := range latest {
		base, ok := lc.RoleScores[t]
		if !ok {
			base = lc.DetectionScores[t]
		}
		sum += base
		se.total += base
	}
	gap := math.Max(0, math.Min(sum, float64(lc.Cap)))

	var applied []string
	if hire != nil {
		for _, step := range lc.Suppressors {
			if hire.age <= step.WithinDays {
				gap = math.Max(gap-step.Penalty, 0)
				applied = append(applied, step.Label)
				break
			}
		}
	}
	return clampScore(math.Round(gap), lc.Cap), applied
}

// topEvents ranks events by cross-dimension contribution.
func (e *Engine) topEvents(events []*scoredEvent) []TopEvent {
	ranked := make([]*scoredEvent, 0, len(events))
	for _, se := range events {
		if se.total > 0 {
			ranked = append(ranked, se)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.total != b.total {
			return a.total > b.total
		}
		if !a.ev.EventTime().Equal(b.ev.EventTime()) {
			return a.ev.EventTime().After(b.ev.EventTime())
		}
		if a.ev.EventType() != b.ev.EventType() {
			return a.ev.EventType() < b.ev.EventType()
		}
		return a.idx < b.idx
	})
	if limit := e.cfg.TopEventsLimit; len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]TopEvent, 0, len(ranked))
	for _, se := range ranked {
		te := TopEvent{
			EventType:          se.ev.EventType(),
			EventTime:          se.ev.EventTime().UTC(),
			ContributionPoints: math.Round(se.total*100) / 100,
			Confidence:         se.conf,
		}
		if src, ok := se.ev.(model.Sourced); ok {
			te.Source = src.EventSource()
			te.URL = src.EventURL()
		}
		out = append(out, te)
	}
	return out
}

// Compose returns the weighted composite of the four dimensions, rounded
// half away from zero and clamped to [0,100].
func Compose(w Weights, m, c, p, g int) int {
	num := w.Momentum*m + w.Complexity*c + w.Pressure*p + w.Leadership*g
	return clampScore(math.Round(float64(num)/WeightScale), MaxScore)
}

func clampScore(v float64, maxScore int) int {
	switch {
	case v < 0:
		return 0
	case v > float64(maxScore):
		return maxScore
	}
	return int(v)
}
