package outreach

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"text/template"
	"time"

	"github.com/okian/leadscore/internal/domain/critic"
	"github.com/okian/leadscore/internal/domain/engagement"
	"github.com/okian/leadscore/internal/domain/model"
)

// DefaultChannel is used when the library names none.
const DefaultChannel = "email"

// Draft is one outreach variant.
type Draft struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Request describes the draft to compose.
type Request struct {
	CompanyID      string
	CompanyName    string
	AsOf           time.Time
	Recommendation engagement.RecommendationType
}

// Composer produces a draft for a request.
type Composer interface {
	Compose(ctx context.Context, req Request) (Draft, error)
}

// Rewriter produces a replacement for a draft the critic rejected.
type Rewriter interface {
	Rewrite(ctx context.Context, req Request, rejected Draft, verdict critic.Result) (Draft, error)
}

type compiled struct {
	subject *template.Template
	message *template.Template
}

// TemplateComposer renders library frames. Asset choice is a stable hash of
// company and date, so the same inputs always give the same draft.
type TemplateComposer struct {
	lib      *Library
	frames   map[engagement.RecommendationType][]compiled
	fallback compiled
}

// NewTemplateComposer compiles every template of lib.
func NewTemplateComposer(lib *Library) (*TemplateComposer, error) {
	c := &TemplateComposer{lib: lib, frames: map[engagement.RecommendationType][]compiled{}}
	for tier, frames := range lib.Frames {
		for i, f := range frames {
			t, err := compileTemplate(fmt.Sprintf("%s/%d", tier, i), f)
			if err != nil {
				return nil, err
			}
			c.frames[tier] = append(c.frames[tier], t)
		}
	}
	fb, err := compileTemplate("fallback", lib.Fallback)
	if err != nil {
		return nil, err
	}
	c.fallback = fb
	return c, nil
}

// Channel returns the delivery channel drafts are written for.
func (c *TemplateComposer) Channel() string { return c.lib.Channel }

// Compose renders a frame for the request's tier.
func (c *TemplateComposer) Compose(ctx context.Context, req Request) (Draft, error) {
	if err := ctx.Err(); err != nil {
		return Draft{}, err
	}
	frames := c.frames[req.Recommendation]
	ctas := c.lib.CTAs[req.Recommendation]
	if len(frames) == 0 || len(ctas) == 0 {
		return Draft{}, fmt.Errorf("%w: %q", ErrNoTemplate, req.Recommendation)
	}
	data := assetData{
		Company: displayName(req),
		Value:   pick(c.lib.Values, req, "value"),
		CTA:     pick(ctas, req, "cta"),
		OptOut:  pick(c.lib.OptOuts, req, "opt_out"),
	}
	return render(frames[index(len(frames), req, "frame")], data)
}

// Rewrite renders the known-compliant fallback template.
func (c *TemplateComposer) Rewrite(ctx context.Context, req Request, _ Draft, _ critic.Result) (Draft, error) {
	if err := ctx.Err(); err != nil {
		return Draft{}, err
	}
	return render(c.fallback, assetData{Company: displayName(req)})
}

type assetData struct {
	Company string
	Value   string
	CTA     string
	OptOut  string
}

func compileTemplate(name string, t Template) (compiled, error) {
	subject, err := template.New(name + ".subject").Option("missingkey=error").Parse(t.Subject)
	if err != nil {
		return compiled{}, fmt.Errorf("%w: %s subject: %w", ErrInvalidLibrary, name, err)
	}
	message, err := template.New(name + ".message").Option("missingkey=error").Parse(t.Message)
	if err != nil {
		return compiled{}, fmt.Errorf("%w: %s message: %w", ErrInvalidLibrary, name, err)
	}
	return compiled{subject: subject, message: message}, nil
}

func render(t compiled, data assetData) (Draft, error) {
	var subject, message strings.Builder
	if err := t.subject.Execute(&subject, data); err != nil {
		return Draft{}, fmt.Errorf("render subject: %w", err)
	}
	if err := t.message.Execute(&message, data); err != nil {
		return Draft{}, fmt.Errorf("render message: %w", err)
	}
	return Draft{Subject: strings.TrimSpace(subject.String()), Message: strings.TrimSpace(message.String())}, nil
}

func displayName(req Request) string {
	if name := strings.TrimSpace(req.CompanyName); name != "" {
		return name
	}
	return req.CompanyID
}

func pick(options []string, req Request, salt string) string {
	return options[index(len(options), req, salt)]
}

func index(n int, req Request, salt string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(req.CompanyID))
	_, _ = h.Write([]byte(model.DateOf(req.AsOf).Format(model.DateLayout)))
	_, _ = h.Write([]byte(salt))
	return int(h.Sum32() % uint32(n))
}
