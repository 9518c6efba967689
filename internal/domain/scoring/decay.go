package scoring

// DecayStep applies Factor to signals aged at most MaxDays.
type DecayStep struct {
	MaxDays int     `koanf:"max_days" validate:"gte=0"`
	Factor  float64 `koanf:"factor" validate:"gte=0,lte=1"`
}

// DecayCurve is a day-bucketed multiplier. Steps are ascending by MaxDays;
// ages beyond the last step use Tail.
type DecayCurve struct {
	Steps []DecayStep `koanf:"steps" validate:"required,min=1,dive"`
	Tail  float64     `koanf:"tail" validate:"gte=0,lte=1"`
}

// Factor returns the multiplier for a signal that is days old.
// Negative ages (signals dated after as_of) are treated as fresh.
func (c DecayCurve) Factor(days int) float64 {
	if days < 0 {
		days = 0
	}
	for _, s := range c.Steps {
		if days <= s.MaxDays {
			return s.Factor
		}
	}
	return c.Tail
}

func (c DecayCurve) ascending() bool {
	for i := 1; i < len(c.Steps); i++ {
		if c.Steps[i].MaxDays <= c.Steps[i-1].MaxDays {
			return false
		}
	}
	return true
}

// MomentumDecay is the default Momentum curve: 1.0 / 0.7 / 0.4 / 0.0.
func MomentumDecay() DecayCurve {
	return DecayCurve{Steps: []DecayStep{{30, 1.0}, {60, 0.7}, {90, 0.4}}, Tail: 0.0}
}

// PressureDecay is the default Pressure curve: 1.0 / 0.85 / 0.6 / 0.2.
func PressureDecay() DecayCurve {
	return DecayCurve{Steps: []DecayStep{{30, 1.0}, {60, 0.85}, {120, 0.6}}, Tail: 0.2}
}

// ComplexityDecay is the default Complexity curve: 1.0 / 0.8 / 0.6 / 0.4.
func ComplexityDecay() DecayCurve {
	return DecayCurve{Steps: []DecayStep{{90, 1.0}, {180, 0.8}, {365, 0.6}}, Tail: 0.4}
}
