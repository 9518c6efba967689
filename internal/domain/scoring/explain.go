package scoring

import "time"

// CompositeWeights are the weights as fractions, as shown in explain traces.
type CompositeWeights struct {
	M float64 `json:"M"`
	C float64 `json:"C"`
	P float64 `json:"P"`
	G float64 `json:"G"`
}

// Dimensions echoes the final dimension scores and the composite R.
type Dimensions struct {
	M int `json:"M"`
	C int `json:"C"`
	P int `json:"P"`
	G int `json:"G"`
	R int `json:"R"`
}

// TopEvent is one contributing signal in the explain trace.
type TopEvent struct {
	EventType          string    `json:"event_type"`
	EventTime          time.Time `json:"event_time"`
	Source             string    `json:"source,omitempty"`
	URL                string    `json:"url,omitempty"`
	ContributionPoints float64   `json:"contribution_points"`
	Confidence         float64   `json:"confidence"`
}

// Explain is the readiness explain trace persisted next to each snapshot.
type Explain struct {
	Weights                         CompositeWeights `json:"weights"`
	Dimensions                      Dimensions       `json:"dimensions"`
	TopEvents                       []TopEvent       `json:"top_events"`
	SuppressorsApplied              []string         `json:"suppressors_applied"`
	QuietSignalAmplificationApplied []string         `json:"quiet_signal_amplification_applied,omitempty"`
}

// Fractions converts basis-point weights for display.
func (w Weights) Fractions() CompositeWeights {
	return CompositeWeights{
		M: float64(w.Momentum) / WeightScale,
		C: float64(w.Complexity) / WeightScale,
		P: float64(w.Pressure) / WeightScale,
		G: float64(w.Leadership) / WeightScale,
	}
}

// Result holds the four dimensions, the composite and the trace.
type Result struct {
	Momentum      int     `json:"momentum"`
	Complexity    int     `json:"complexity"`
	Pressure      int     `json:"pressure"`
	LeadershipGap int     `json:"leadership_gap"`
	Composite     int     `json:"composite"`
	Explain       Explain `json:"explain"`
}

// Snapshot is a Result keyed by company and as-of date. Recomputing the same
// key overwrites the previous row.
type Snapshot struct {
	CompanyID string    `json:"company_id"`
	AsOf      time.Time `json:"as_of"`
	Result
}
