package outreach

import (
	"github.com/okian/leadscore/internal/domain/engagement"
)

// Safeguard labels recorded when a gate rule fires.
const (
	SafeguardCooldown       = "cooldown_active"
	SafeguardZeroEngagement = "zero_engagement"
	SafeguardStabilityCap   = "stability_cap"
	SafeguardAlignmentVeto  = "alignment_veto"
)

// GateInput is what the policy gate decides on.
type GateInput struct {
	CooldownActive    bool
	StabilityModifier float64
	// ESLComposite is the engagement composite when one was computed. Without
	// it the stability modifier is mapped through the bands instead.
	ESLComposite  *float64
	AlignmentHigh bool
}

// Decision is the gate verdict.
type Decision struct {
	Recommendation      engagement.RecommendationType `json:"recommendation_type"`
	ShouldGenerateDraft bool                          `json:"should_generate_draft"`
	SafeguardsTriggered []string                      `json:"safeguards_triggered"`
}

// Rule is one row of the decision table. Rules are tried in order and the
// first whose Match returns true decides.
type Rule struct {
	Name   string
	Match  func(GateInput) bool
	Decide func(GateInput) Decision
}

// GateConfig parameterises the default decision table.
type GateConfig struct {
	StabilityCap float64                       `koanf:"stability_cap" validate:"gte=0,lte=1"`
	Bands        engagement.Bands              `koanf:"bands" validate:"required,min=1,dive"`
	VetoCeiling  engagement.RecommendationType `koanf:"veto_ceiling" validate:"required"`
}

// DefaultGateConfig mirrors the engagement defaults.
func DefaultGateConfig() GateConfig {
	ec := engagement.DefaultConfig()
	return GateConfig{
		StabilityCap: ec.StabilityCap,
		Bands:        ec.Bands,
		VetoCeiling:  engagement.LowPressureIntro,
	}
}

// Gate evaluates an ordered decision table.
type Gate struct {
	rules []Rule
}

// NewGate builds the standard table: cooldown, zero engagement, stability
// cap, band mapping with alignment veto.
func NewGate(cfg GateConfig) *Gate {
	return &Gate{rules: []Rule{
		{
			Name:  SafeguardCooldown,
			Match: func(in GateInput) bool { return in.CooldownActive },
			Decide: func(GateInput) Decision {
				return Decision{
					Recommendation:      engagement.ObserveOnly,
					SafeguardsTriggered: []string{SafeguardCooldown},
				}
			},
		},
		{
			Name:  SafeguardZeroEngagement,
			Match: func(in GateInput) bool { return in.ESLComposite != nil && *in.ESLComposite == 0 },
			Decide: func(GateInput) Decision {
				return Decision{
					Recommendation:      engagement.ObserveOnly,
					SafeguardsTriggered: []string{SafeguardZeroEngagement},
				}
			},
		},
		{
			Name:  SafeguardStabilityCap,
			Match: func(in GateInput) bool { return in.StabilityModifier < cfg.StabilityCap },
			Decide: func(GateInput) Decision {
				return Decision{
					Recommendation:      engagement.SoftValueShare,
					ShouldGenerateDraft: true,
					SafeguardsTriggered: []string{SafeguardStabilityCap},
				}
			},
		},
		{
			Name:  "band",
			Match: func(GateInput) bool { return true },
			Decide: func(in GateInput) Decision {
				v := in.StabilityModifier
				if in.ESLComposite != nil {
					v = *in.ESLComposite
				}
				d := Decision{Recommendation: cfg.Bands.Map(v), SafeguardsTriggered: []string{}}
				if !in.AlignmentHigh {
					d.Recommendation = d.Recommendation.AtMost(cfg.VetoCeiling)
					d.SafeguardsTriggered = append(d.SafeguardsTriggered, SafeguardAlignmentVeto)
				}
				d.ShouldGenerateDraft = d.Recommendation != engagement.ObserveOnly
				return d
			},
		},
	}}
}

// NewGateWithRules builds a gate over a custom table.
func NewGateWithRules(rules ...Rule) *Gate {
	return &Gate{rules: rules}
}

// Decide returns the verdict of the first matching rule, or Observe Only
// when nothing matches.
func (g *Gate) Decide(in GateInput) Decision {
	for _, r := range g.rules {
		if r.Match(in) {
			return r.Decide(in)
		}
	}
	return Decision{Recommendation: engagement.ObserveOnly, SafeguardsTriggered: []string{}}
}
