package seedevents

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/okian/leadscore/internal/domain/model"
	"github.com/okian/leadscore/internal/domain/scoring"
	"github.com/okian/leadscore/pkg/logger"
)

// signalMix weights the generated signal types. Hiring and launch signals
// dominate; CTO hires are rare so most companies stay unsuppressed.
var signalMix = []struct {
	typ    string
	weight int
}{
	{scoring.FundingRaised, 6},
	{scoring.JobPostedEngineering, 12},
	{scoring.JobPostedInfra, 6},
	{scoring.HeadcountGrowth, 8},
	{scoring.LaunchMajor, 5},
	{scoring.APILaunched, 6},
	{scoring.ComplianceMentioned, 5},
	{scoring.EnterpriseFeature, 5},
	{scoring.AIFeatureLaunched, 5},
	{scoring.MultiRegionExpansion, 3},
	{scoring.RegulatoryDeadline, 2},
	{scoring.EnterpriseCustomer, 4},
	{scoring.RevenueMilestone, 3},
	{scoring.FounderUrgencyLanguage, 3},
	{scoring.CTORolePosted, 4},
	{scoring.FractionalRequest, 2},
	{scoring.AdvisorRequest, 2},
	{scoring.CTOHired, 1},
}

const statusAcquired = "acquired"

var sources = []string{"crunchbase", "linkedin", "news", "careers_page", "changelog"}

// Generator produces a reproducible dataset from a seed.
type Generator struct {
	rng   *rand.Rand
	total int
}

// NewGenerator creates a generator seeded with seed.
func NewGenerator(seed uint64) *Generator {
	total := 0
	for _, s := range signalMix {
		total += s.weight
	}
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), total: total}
}

// Generate builds companies and their signals. Company and event ids are
// derived from the PRNG so a seed always yields the same dataset.
func (g *Generator) Generate(ctx context.Context, cfg *Config, asOf time.Time) (Dataset, error) {
	logger.Get().Info(ctx, "generating dataset",
		logger.Int("companies", cfg.Companies),
		logger.Int("eventsPerCompany", cfg.EventsPerCompany))

	ds := Dataset{
		AsOf:      asOf.Format(model.DateLayout),
		Companies: make([]Company, 0, cfg.Companies),
		Events:    make([]Event, 0, cfg.Companies*cfg.EventsPerCompany),
	}
	horizon := max(cfg.HorizonDays, 1)

	for i := 0; i < cfg.Companies; i++ {
		if err := ctx.Err(); err != nil {
			return Dataset{}, fmt.Errorf("generation cancelled: %w", err)
		}
		c := g.company(i)
		ds.Companies = append(ds.Companies, c)
		for j := 0; j < cfg.EventsPerCompany; j++ {
			ds.Events = append(ds.Events, g.event(c.ID, asOf, horizon))
		}
	}

	logger.Get().Info(ctx, "generated dataset", logger.Int("events", len(ds.Events)))
	return ds, nil
}

func (g *Generator) company(i int) Company {
	id := g.uuid()
	c := Company{
		ID:     id.String(),
		Name:   fmt.Sprintf("Company %d", i+1),
		Domain: fmt.Sprintf("company-%d.example.com", i+1),
	}
	// Roughly one in ten opts out of contact and one in twenty is acquired.
	switch n := g.rng.IntN(20); {
	case n == 0:
		c.Status = statusAcquired
	case n <= 2:
		no := false
		c.AlignmentOKToContact = &no
	}
	switch g.rng.IntN(4) {
	case 0:
		yes := true
		c.HasCTO = &yes
	case 1:
		no := false
		c.HasCTO = &no
	}
	return c
}

func (g *Generator) event(companyID string, asOf time.Time, horizon int) Event {
	age := time.Duration(g.rng.IntN(horizon)) * 24 * time.Hour
	return Event{
		EventID:    g.uuid().String(),
		CompanyID:  companyID,
		EventType:  g.signal(),
		EventTime:  asOf.Add(-age).Format(time.RFC3339),
		Confidence: 0.5 + float64(g.rng.IntN(51))/100,
		Source:     sources[g.rng.IntN(len(sources))],
	}
}

func (g *Generator) signal() string {
	n := g.rng.IntN(g.total)
	for _, s := range signalMix {
		if n < s.weight {
			return s.typ
		}
		n -= s.weight
	}
	return signalMix[len(signalMix)-1].typ
}

// uuid builds a version 4 UUID from the PRNG.
func (g *Generator) uuid() uuid.UUID {
	var b [16]byte
	for i := 0; i < len(b); i += 8 {
		v := g.rng.Uint64()
		for j := 0; j < 8; j++ {
			b[i+j] = byte(v >> (8 * j))
		}
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return uuid.UUID(b)
}
