package engagement

import "time"

// Snapshot is the persisted engagement row for one company and date.
type Snapshot struct {
	CompanyID      string             `json:"company_id"`
	AsOf           time.Time          `json:"as_of"`
	ESLScore       float64            `json:"esl_score"`
	EngagementType RecommendationType `json:"engagement_type"`
	SVI            float64            `json:"stress_volatility_index"`
	SPI            float64            `json:"sustained_pressure_index"`
	CSI            float64            `json:"communication_stability_index"`
	CadenceBlocked bool               `json:"cadence_blocked"`
	OutreachScore  int                `json:"outreach_score"`
	Explain        Explain            `json:"explain"`
}

// NewSnapshot keys r by company and date.
func NewSnapshot(companyID string, asOf time.Time, r Result) Snapshot {
	return Snapshot{
		CompanyID:      companyID,
		AsOf:           asOf,
		ESLScore:       r.ESLScore,
		EngagementType: r.Recommendation,
		SVI:            r.SVI,
		SPI:            r.SPI,
		CSI:            r.CSI,
		CadenceBlocked: r.CadenceBlocked,
		OutreachScore:  r.OutreachScore,
		Explain:        r.Explain,
	}
}
