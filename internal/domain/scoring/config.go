package scoring

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// WeightScale is the basis-point denominator of composite weights.
// Integer weights make "sums to 1.0" an exact check.
const WeightScale = 10_000

// MaxScore bounds every dimension and the composite.
const MaxScore = 100

var validate = validator.New()

// Bucket caps the summed contribution of a group of signal types inside one
// dimension, e.g. job postings may add at most 30 Momentum points.
type Bucket struct {
	Name  string   `koanf:"name" validate:"required"`
	Types []string `koanf:"types" validate:"required,min=1"`
	Cap   float64  `koanf:"cap" validate:"gte=0"`
}

// DimensionConfig describes one decayed dimension (Momentum, Complexity, Pressure).
type DimensionConfig struct {
	LookbackDays int                `koanf:"lookback_days" validate:"gt=0"`
	BaseScores   map[string]float64 `koanf:"base_scores" validate:"required,min=1"`
	// QuietBaseScores replace BaseScores for the same types when the company
	// has no recent funding signal.
	QuietBaseScores map[string]float64 `koanf:"quiet_base_scores"`
	Decay           DecayCurve         `koanf:"decay"`
	Buckets         []Bucket           `koanf:"buckets" validate:"dive"`
	Cap             int                `koanf:"cap" validate:"gt=0,lte=100"`
}

// SuppressorStep subtracts Penalty from the leadership gap when the most
// recent hire signal is at most WithinDays old.
type SuppressorStep struct {
	WithinDays int     `koanf:"within_days" validate:"gte=0"`
	Penalty    float64 `koanf:"penalty" validate:"gte=0"`
	Label      string  `koanf:"label" validate:"required"`
}

// LeadershipConfig drives the state-based Leadership-Gap dimension.
type LeadershipConfig struct {
	RoleScores          map[string]float64 `koanf:"role_scores" validate:"required"`
	RoleWindowDays      int                `koanf:"role_window_days" validate:"gt=0"`
	DetectionScores     map[string]float64 `koanf:"detection_scores"`
	DetectionWindowDays int                `koanf:"detection_window_days" validate:"gt=0"`
	HireType            string             `koanf:"hire_type" validate:"required"`
	Suppressors         []SuppressorStep   `koanf:"suppressors" validate:"dive"`
	Cap                 int                `koanf:"cap" validate:"gt=0,lte=100"`
}

// Weights are composite weights in basis points of WeightScale.
type Weights struct {
	Momentum   int `koanf:"momentum" validate:"gte=0"`
	Complexity int `koanf:"complexity" validate:"gte=0"`
	Pressure   int `koanf:"pressure" validate:"gte=0"`
	Leadership int `koanf:"leadership" validate:"gte=0"`
}

// Sum returns the total basis points.
func (w Weights) Sum() int {
	return w.Momentum + w.Complexity + w.Pressure + w.Leadership
}

// QuietSignalConfig controls quiet-signal amplification.
type QuietSignalConfig struct {
	Enabled     bool   `koanf:"enabled"`
	TriggerType string `koanf:"trigger_type" validate:"required"`
	WindowDays  int    `koanf:"window_days" validate:"gt=0"`
}

// Config is the immutable parameter set of the readiness engine. Callers get
// a fresh copy from DefaultConfig and may override any table before passing
// it to NewEngine.
type Config struct {
	Momentum           DimensionConfig   `koanf:"momentum"`
	Complexity         DimensionConfig   `koanf:"complexity"`
	Pressure           DimensionConfig   `koanf:"pressure"`
	Leadership         LeadershipConfig  `koanf:"leadership"`
	Weights            Weights           `koanf:"weights"`
	QuietSignal        QuietSignalConfig `koanf:"quiet_signal"`
	SuppressedStatuses []string          `koanf:"suppressed_statuses"`
	DefaultConfidence  float64           `koanf:"default_confidence" validate:"gte=0,lte=1"`
	TopEventsLimit     int               `koanf:"top_events_limit" validate:"gte=0"`
}

// DefaultConfig returns the production tables.
func DefaultConfig() Config {
	return Config{
		Momentum: DimensionConfig{
			LookbackDays: 120,
			BaseScores: map[string]float64{
				FundingRaised:        35,
				JobPostedEngineering: 10,
				JobPostedInfra:       10,
				HeadcountGrowth:      20,
				LaunchMajor:          15,
				APILaunched:          10,
			},
			QuietBaseScores: map[string]float64{
				JobPostedInfra: 15,
				APILaunched:    15,
			},
			Decay:   MomentumDecay(),
			Buckets: []Bucket{{Name: "jobs", Types: []string{JobPostedEngineering, JobPostedInfra}, Cap: 30}},
			Cap:     MaxScore,
		},
		Complexity: DimensionConfig{
			LookbackDays: 400,
			BaseScores: map[string]float64{
				APILaunched:          20,
				ComplianceMentioned:  15,
				EnterpriseFeature:    15,
				AIFeatureLaunched:    15,
				MultiRegionExpansion: 20,
				JobPostedInfra:       10,
			},
			QuietBaseScores: map[string]float64{
				APILaunched:         30,
				ComplianceMentioned: 25,
				JobPostedInfra:      15,
			},
			Decay:   ComplexityDecay(),
			Buckets: []Bucket{{Name: "jobs", Types: []string{JobPostedInfra}, Cap: 20}},
			Cap:     MaxScore,
		},
		Pressure: DimensionConfig{
			LookbackDays: 365,
			BaseScores: map[string]float64{
				RegulatoryDeadline:     30,
				EnterpriseCustomer:     25,
				RevenueMilestone:       15,
				FundingRaised:          20,
				FounderUrgencyLanguage: 15,
			},
			Decay:   PressureDecay(),
			Buckets: []Bucket{{Name: "founder_urgency", Types: []string{FounderUrgencyLanguage}, Cap: 30}},
			Cap:     MaxScore,
		},
		Leadership: LeadershipConfig{
			RoleScores: map[string]float64{
				CTORolePosted:     70,
				FractionalRequest: 50,
				AdvisorRequest:    40,
			},
			RoleWindowDays:      120,
			DetectionScores:     map[string]float64{NoCTODetected: 30},
			DetectionWindowDays: 365,
			HireType:            CTOHired,
			Suppressors: []SuppressorStep{
				{WithinDays: 60, Penalty: 70, Label: SuppressorCTOHiredRecent},
				{WithinDays: 180, Penalty: 50, Label: SuppressorCTOHired},
			},
			Cap: MaxScore,
		},
		Weights: Weights{Momentum: 3000, Complexity: 3000, Pressure: 2500, Leadership: 1500},
		QuietSignal: QuietSignalConfig{
			Enabled:     true,
			TriggerType: FundingRaised,
			WindowDays:  365,
		},
		SuppressedStatuses: []string{"acquired", "dead"},
		DefaultConfidence:  0.7,
		TopEventsLimit:     8,
	}
}

// Validate checks struct constraints and the cross-field invariants.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Weights.Sum() != WeightScale {
		return fmt.Errorf("%w: composite weights sum to %d basis points, want %d", ErrInvalidConfig, c.Weights.Sum(), WeightScale)
	}
	for name, d := range map[string]DimensionConfig{"momentum": c.Momentum, "complexity": c.Complexity, "pressure": c.Pressure} {
		if !d.Decay.ascending() {
			return fmt.Errorf("%w: %s decay steps must be strictly ascending", ErrInvalidConfig, name)
		}
	}
	for i := 1; i < len(c.Leadership.Suppressors); i++ {
		if c.Leadership.Suppressors[i].WithinDays <= c.Leadership.Suppressors[i-1].WithinDays {
			return fmt.Errorf("%w: leadership suppressors must be strictly ascending", ErrInvalidConfig)
		}
	}
	return nil
}

// LookbackDays is the widest window any table reads, i.e. how far back a
// caller must load events for Score to see everything that can count.
func (c Config) LookbackDays() int {
	days := max(c.Momentum.LookbackDays, c.Complexity.LookbackDays, c.Pressure.LookbackDays,
		c.Leadership.RoleWindowDays, c.Leadership.DetectionWindowDays, c.QuietSignal.WindowDays)
	for _, s := range c.Leadership.Suppressors {
		days = max(days, s.WithinDays)
	}
	return days
}
