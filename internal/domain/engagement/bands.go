package engagement

import "sort"

// RecommendationType labels how (or whether) to approach a company.
type RecommendationType string

// Recommendation tiers, from least to most assertive.
const (
	ObserveOnly             RecommendationType = "Observe Only"
	SoftValueShare          RecommendationType = "Soft Value Share"
	LowPressureIntro        RecommendationType = "Low-Pressure Intro"
	StandardOutreach        RecommendationType = "Standard Outreach"
	DirectStrategicOutreach RecommendationType = "Direct Strategic Outreach"
)

var tierRank = map[RecommendationType]int{
	ObserveOnly:             0,
	SoftValueShare:          1,
	LowPressureIntro:        2,
	StandardOutreach:        3,
	DirectStrategicOutreach: 4,
}

// Valid reports whether t is one of the five tiers.
func (t RecommendationType) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// AtMost returns the less assertive of t and ceiling.
func (t RecommendationType) AtMost(ceiling RecommendationType) RecommendationType {
	if tierRank[t] > tierRank[ceiling] {
		return ceiling
	}
	return t
}

// Band starts at Lower (inclusive) and runs up to the next band's Lower.
type Band struct {
	Lower float64            `koanf:"lower" validate:"gte=0,lte=1"`
	Type  RecommendationType `koanf:"type" validate:"required"`
}

// Bands is an ascending boundary table.
type Bands []Band

// DefaultBands returns <0.2 Observe Only, <0.4 Soft Value Share,
// <0.7 Low-Pressure Intro, <0.9 Standard Outreach, else Direct Strategic Outreach.
func DefaultBands() Bands {
	return Bands{
		{Lower: 0, Type: ObserveOnly},
		{Lower: 0.2, Type: SoftValueShare},
		{Lower: 0.4, Type: LowPressureIntro},
		{Lower: 0.7, Type: StandardOutreach},
		{Lower: 0.9, Type: DirectStrategicOutreach},
	}
}

// Map returns the type of the last band whose lower bound is <= v. Values
// below the first bound map to the first band.
func (b Bands) Map(v float64) RecommendationType {
	if len(b) == 0 {
		return ObserveOnly
	}
	i := sort.Search(len(b), func(i int) bool { return b[i].Lower > v })
	if i == 0 {
		return b[0].Type
	}
	return b[i-1].Type
}

func (b Bands) ascending() bool {
	for i := 1; i < len(b); i++ {
		if b[i].Lower <= b[i-1].Lower {
			return false
		}
	}
	return true
}
