// Package outreach turns readiness and engagement results into a gated
// recommendation with an optional draft that has passed the critic.
package outreach

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/okian/leadscore/internal/domain/critic"
	"github.com/okian/leadscore/internal/domain/engagement"
	"github.com/okian/leadscore/internal/domain/model"
)

// State is a step of the recommendation state machine.
type State string

// Pipeline states.
const (
	StateGateCheck       State = "GATE_CHECK"
	StateDraftGeneration State = "DRAFT_GENERATION"
	StateCriticCheck     State = "CRITIC_CHECK"
	StateRewriteOnce     State = "REWRITE_ONCE"
	StateCriticCheck2    State = "CRITIC_CHECK_2"
	StateAccept          State = "ACCEPT"
	StateFlagForReview   State = "FLAG_FOR_REVIEW"
	StateSkipDraft       State = "SKIP_DRAFT"
	StatePersist         State = "PERSIST"
	stateDone            State = ""
)

// idNamespace scopes recommendation ids so reruns for the same company and
// date keep their id.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("leadscore/outreach-recommendation"))

// Input is everything the pipeline needs for one company and date.
type Input struct {
	Company           model.Company
	AsOf              time.Time
	Composite         int
	StabilityModifier float64
	ESLComposite      *float64
	CooldownActive    bool
	AlignmentHigh     bool
}

// Recommendation is the persisted pipeline output.
type Recommendation struct {
	ID                  string                        `json:"id"`
	CompanyID           string                        `json:"company_id"`
	AsOf                time.Time                     `json:"as_of"`
	RecommendationType  engagement.RecommendationType `json:"recommendation_type"`
	OutreachScore       int                           `json:"outreach_score"`
	Channel             string                        `json:"channel"`
	DraftVariants       []Draft                       `json:"draft_variants"`
	SafeguardsTriggered []string                      `json:"safeguards_triggered"`
	CriticResult        *critic.Result                `json:"critic_result,omitempty"`
	Rewritten           bool                          `json:"rewritten"`
	FlaggedForReview    bool                          `json:"flagged_for_review"`
	States              []State                       `json:"states"`
}

// Sink persists recommendations.
type Sink interface {
	UpsertRecommendation(ctx context.Context, rec Recommendation) error
}

// Pipeline runs GATE_CHECK through PERSIST.
type Pipeline struct {
	gate         *Gate
	critic       *critic.Critic
	composer     Composer
	rewriter     Rewriter
	sink         Sink
	channel      string
	draftEnabled bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithGate replaces the default decision table.
func WithGate(g *Gate) Option { return func(p *Pipeline) { p.gate = g } }

// WithCritic sets the critic.
func WithCritic(c *critic.Critic) Option { return func(p *Pipeline) { p.critic = c } }

// WithComposer sets the draft composer.
func WithComposer(c Composer) Option { return func(p *Pipeline) { p.composer = c } }

// WithRewriter sets the one-shot rewriter used after a critic failure.
func WithRewriter(r Rewriter) Option { return func(p *Pipeline) { p.rewriter = r } }

// WithSink sets where recommendations are persisted. Without one the
// pipeline stops before PERSIST.
func WithSink(s Sink) Option { return func(p *Pipeline) { p.sink = s } }

// WithChannel sets the delivery channel label.
func WithChannel(ch string) Option { return func(p *Pipeline) { p.channel = ch } }

// WithDrafts toggles draft generation; when off every recommendation skips drafting.
func WithDrafts(enabled bool) Option { return func(p *Pipeline) { p.draftEnabled = enabled } }

// NewPipeline returns a pipeline using the embedded template library unless
// options override it.
func NewPipeline(opts ...Option) (*Pipeline, error) {
	p := &Pipeline{draftEnabled: true}
	for _, opt := range opts {
		opt(p)
	}
	if p.gate == nil {
		p.gate = NewGate(DefaultGateConfig())
	}
	if p.critic == nil {
		p.critic = critic.Default()
	}
	if p.composer == nil || p.rewriter == nil {
		tc, err := NewTemplateComposer(DefaultLibrary())
		if err != nil {
			return nil, err
		}
		if p.composer == nil {
			p.composer = tc
		}
		if p.rewriter == nil {
			p.rewriter = tc
		}
		if p.channel == "" {
			p.channel = tc.Channel()
		}
	}
	if p.channel == "" {
		p.channel = DefaultChannel
	}
	return p, nil
}

// RecommendationID is the stable id of the recommendation for a company and date.
func RecommendationID(companyID string, asOf time.Time) string {
	key := companyID + "|" + model.DateOf(asOf).Format(model.DateLayout)
	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}

// Run drives the state machine for one company. Composer and sink failures
// are returned; a draft that fails the critic twice is kept and flagged.
func (p *Pipeline) Run(ctx context.Context, in Input) (Recommendation, error) {
	asOf := model.DateOf(in.AsOf)
	rec := Recommendation{
		ID:                  RecommendationID(in.Company.ID, asOf),
		CompanyID:           in.Company.ID,
		AsOf:                asOf,
		Channel:             p.channel,
		DraftVariants:       []Draft{},
		SafeguardsTriggered: []string{},
	}
	req := Request{CompanyID: in.Company.ID, CompanyName: in.Company.Name, AsOf: asOf}

	modifier := in.StabilityModifier
	if in.ESLComposite != nil {
		modifier = *in.ESLComposite
	}
	rec.OutreachScore = engagement.OutreachScore(in.Composite, modifier)

	var (
		decision Decision
		draft    Draft
		verdict  critic.Result
	)
	state := StateGateCheck
	for state != stateDone {
		rec.States = append(rec.States, state)
		switch state {
		case StateGateCheck:
			decision = p.gate.Decide(GateInput{
				CooldownActive:    in.CooldownActive,
				StabilityModifier: in.StabilityModifier,
				ESLComposite:      in.ESLComposite,
				AlignmentHigh:     in.AlignmentHigh,
			})
			rec.RecommendationType = decision.Recommendation
			rec.SafeguardsTriggered = append(rec.SafeguardsTriggered, decision.SafeguardsTriggered...)
			req.Recommendation = decision.Recommendation
			state = StateSkipDraft
			if decision.ShouldGenerateDraft && p.draftEnabled {
				state = StateDraftGeneration
			}

		case StateDraftGeneration:
			d, err := p.composer.Compose(ctx, req)
			if err != nil {
				return rec, fmt.Errorf("%w: %s: %w", ErrCompose, in.Company.ID, err)
			}
			draft = d
			state = StateCriticCheck

		case StateCriticCheck:
			verdict = p.critic.Check(draft.Subject, draft.Message)
			state = StateRewriteOnce
			if verdict.Passed {
				state = StateAccept
			}

		case StateRewriteOnce:
			d, err := p.rewriter.Rewrite(ctx, req, draft, verdict)
			if err != nil {
				return rec, fmt.Errorf("%w: %s rewrite: %w", ErrCompose, in.Company.ID, err)
			}
			second := p.critic.Check(d.Subject, d.Message)
			rec.Rewritten = true
			// A failed rewrite is discarded; the stored verdict stays with the
			// stored draft.
			if second.Passed {
				draft, verdict = d, second
			}
			state = StateCriticCheck2

		case StateCriticCheck2:
			state = StateFlagForReview
			if verdict.Passed {
				state = StateAccept
			}

		case StateAccept:
			rec.DraftVariants = []Draft{draft}
			v := verdict
			rec.CriticResult = &v
			state = p.persistOrDone()

		case StateFlagForReview:
			// The original draft is kept so a human can review it.
			rec.DraftVariants = []Draft{draft}
			v := verdict
			rec.CriticResult = &v
			rec.FlaggedForReview = true
			state = p.persistOrDone()

		case StateSkipDraft:
			state = p.persistOrDone()

		case StatePersist:
			if err := p.sink.UpsertRecommendation(ctx, rec); err != nil {
				return rec, fmt.Errorf("%w: %s: %w", ErrPersist, in.Company.ID, err)
			}
			state = stateDone
		}
	}
	return rec, nil
}

func (p *Pipeline) persistOrDone() State {
	if p.sink == nil {
		return stateDone
	}
	return StatePersist
}
