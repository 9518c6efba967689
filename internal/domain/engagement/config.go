package engagement

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// StressConfig drives the stress-volatility index.
type StressConfig struct {
	UrgencyTypes []string `koanf:"urgency_types" validate:"required,min=1"`
	WindowDays   int      `koanf:"window_days" validate:"gt=0"`
}

// SustainedPressureConfig drives the sustained-pressure index.
type SustainedPressureConfig struct {
	WindowDays  int     `koanf:"window_days" validate:"gt=0"`
	Threshold   int     `koanf:"threshold" validate:"gte=0,lte=100"`
	SustainDays int     `koanf:"sustain_days" validate:"gt=0"`
	High        float64 `koanf:"high" validate:"gte=0,lte=1"`
	Low         float64 `koanf:"low" validate:"gte=0,lte=1"`
}

// CommunicationConfig drives the communication-stability index.
type CommunicationConfig struct {
	WindowDays int     `koanf:"window_days" validate:"gt=0"`
	GapDays    int     `koanf:"gap_days" validate:"gt=0"`
	Penalty    float64 `koanf:"penalty" validate:"gte=0,lte=1"`
	Baseline   float64 `koanf:"baseline" validate:"gte=0,lte=1"`
}

// StabilityWeights weigh SVI, SPI and (1-CSI) in the stability modifier.
type StabilityWeights struct {
	SVI float64 `koanf:"svi" validate:"gte=0"`
	SPI float64 `koanf:"spi" validate:"gte=0"`
	CSI float64 `koanf:"csi" validate:"gte=0"`
}

// CadenceConfig controls the outreach cooldown.
type CadenceConfig struct {
	CooldownDays        int `koanf:"cooldown_days" validate:"gte=0"`
	DeclineLookbackDays int `koanf:"decline_lookback_days" validate:"gte=0"`
}

// Config is the immutable parameter set of the engagement engine.
type Config struct {
	Stress        StressConfig            `koanf:"stress"`
	Sustained     SustainedPressureConfig `koanf:"sustained"`
	Communication CommunicationConfig     `koanf:"communication"`
	Weights       StabilityWeights        `koanf:"weights"`
	Cadence       CadenceConfig           `koanf:"cadence"`
	// AlignmentPenalty is the alignment modifier when contact was explicitly vetoed.
	AlignmentPenalty float64 `koanf:"alignment_penalty" validate:"gte=0,lte=1"`
	// StabilityCap is the modifier below which only Soft Value Share is allowed.
	StabilityCap float64 `koanf:"stability_cap" validate:"gte=0,lte=1"`
	Bands        Bands   `koanf:"bands" validate:"required,min=1,dive"`
}

// DefaultConfig returns the production parameters.
func DefaultConfig() Config {
	return Config{
		Stress: StressConfig{
			UrgencyTypes: []string{
				"founder_urgency_language",
				"regulatory_deadline",
				"enterprise_customer",
				"revenue_milestone",
				"funding_raised",
			},
			WindowDays: 14,
		},
		Sustained: SustainedPressureConfig{
			WindowDays:  90,
			Threshold:   60,
			SustainDays: 60,
			High:        0.7,
			Low:         0.0,
		},
		Communication: CommunicationConfig{
			WindowDays: 90,
			GapDays:    30,
			Penalty:    0.3,
			Baseline:   1.0,
		},
		Weights:          StabilityWeights{SVI: 0.4, SPI: 0.35, CSI: 0.25},
		Cadence:          CadenceConfig{CooldownDays: 60, DeclineLookbackDays: 180},
		AlignmentPenalty: 0.5,
		StabilityCap:     0.7,
		Bands:            DefaultBands(),
	}
}

const weightTolerance = 1e-9

// Validate checks struct constraints and the cross-field invariants.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if sum := c.Weights.SVI + c.Weights.SPI + c.Weights.CSI; math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: stability weights sum to %v, want 1", ErrInvalidConfig, sum)
	}
	if !c.Bands.ascending() {
		return fmt.Errorf("%w: bands must be strictly ascending", ErrInvalidConfig)
	}
	for _, b := range c.Bands {
		if !b.Type.Valid() {
			return fmt.Errorf("%w: unknown recommendation type %q", ErrInvalidConfig, b.Type)
		}
	}
	return nil
}
