// Package critic lints outreach drafts for surveillance and urgency language,
// a single call to action, and an explicit opt-out.
package critic

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Violation prefixes.
const (
	RuleSurveillance  = "Surveillance phrase"
	RuleUrgency       = "Urgency language"
	RuleMultipleCTAs  = "Multiple CTAs"
	RuleMissingOptOut = "Missing opt-out"
)

var validate = validator.New()

// Rules are the phrase lists the critic matches, case-insensitively.
type Rules struct {
	Surveillance []string `koanf:"surveillance" json:"surveillance"`
	Urgency      []string `koanf:"urgency" json:"urgency"`
	CTAs         []string `koanf:"ctas" json:"ctas"`
	OptOuts      []string `koanf:"opt_outs" json:"opt_outs" validate:"required,min=1"`
}

// DefaultRules returns the production phrase lists.
func DefaultRules() Rules {
	return Rules{
		Surveillance: []string{
			"I noticed you",
			"I saw that you",
			"I saw you",
			"after your recent funding",
			"congrats on the funding",
			"you're hiring",
			"you are hiring",
			"I've been tracking",
			"I've been following",
			"our data shows",
		},
		Urgency: []string{
			"ASAP",
			"urgent",
			"urgently",
			"before it's too late",
			"quickly",
			"act now",
			"limited time",
			"don't miss",
			"right away",
		},
		CTAs: []string{
			"want me to send",
			"would it help if I",
			"would you be open to",
			"can I send",
			"shall I send",
			"happy to share",
			"book a call",
			"schedule a call",
			"hop on a call",
			"reply with",
		},
		OptOuts: []string{
			"no worries if",
			"no pressure",
			"if now isn't the time",
			"feel free to ignore",
		},
	}
}

// Result is the verdict on one draft.
type Result struct {
	Passed     bool     `json:"passed"`
	Violations []string `json:"violations"`
}

type phrase struct {
	text string
	re   *regexp.Regexp
}

// Critic holds compiled rules. It is immutable and safe for concurrent use.
type Critic struct {
	surveillance []phrase
	urgency      []phrase
	ctas         []phrase
	optOuts      []phrase
}

// New compiles rules.
func New(rules Rules) (*Critic, error) {
	if err := validate.Struct(rules); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRules, err)
	}
	c := &Critic{}
	var err error
	if c.surveillance, err = compile(rules.Surveillance); err != nil {
		return nil, err
	}
	if c.urgency, err = compile(rules.Urgency); err != nil {
		return nil, err
	}
	if c.ctas, err = compile(rules.CTAs); err != nil {
		return nil, err
	}
	if c.optOuts, err = compile(rules.OptOuts); err != nil {
		return nil, err
	}
	return c, nil
}

// Default returns a critic over DefaultRules.
func Default() *Critic {
	c, err := New(DefaultRules())
	if err != nil {
		panic("critic: default rules invalid: " + err.Error())
	}
	return c
}

// Check validates a draft. Surveillance and urgency are searched in subject and
// message, calls to action in the message only, opt-outs in both.
func (c *Critic) Check(subject, message string) Result {
	full := subject + "\n" + message
	var violations []string

	for _, p := range c.surveillance {
		if p.re.MatchString(full) {
			violations = append(violations, fmt.Sprintf("%s: %q", RuleSurveillance, p.text))
		}
	}
	for _, p := range c.urgency {
		if p.re.MatchString(full) {
			violations = append(violations, fmt.Sprintf("%s: %q", RuleUrgency, p.text))
		}
	}

	var ctas []string
	for _, p := range c.ctas {
		if p.re.MatchString(message) {
			ctas = append(ctas, fmt.Sprintf("%q", p.text))
		}
	}
	if len(ctas) > 1 {
		violations = append(violations, fmt.Sprintf("%s: %d found (%s)", RuleMultipleCTAs, len(ctas), strings.Join(ctas, ", ")))
	}

	optedOut := false
	for _, p := range c.optOuts {
		if p.re.MatchString(full) {
			optedOut = true
			break
		}
	}
	if !optedOut {
		violations = append(violations, RuleMissingOptOut+": add a low-pressure exit such as \"no worries if\"")
	}

	if violations == nil {
		violations = []string{}
	}
	return Result{Passed: len(violations) == 0, Violations: violations}
}

func compile(phrases []string) ([]phrase, error) {
	out := make([]phrase, 0, len(phrases))
	for _, text := range phrases {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		re, err := regexp.Compile(pattern(text))
		if err != nil {
			return nil, fmt.Errorf("%w: phrase %q: %w", ErrInvalidRules, text, err)
		}
		out = append(out, phrase{text: text, re: re})
	}
	return out, nil
}

// pattern anchors phrase on word boundaries where it starts or ends with a
// word character, collapses whitespace, and accepts straight or curly apostrophes.
func pattern(text string) string {
	words := strings.Fields(text)
	for i, w := range words {
		words[i] = strings.ReplaceAll(regexp.QuoteMeta(w), "'", "['’]")
	}
	body := strings.Join(words, `\s+`)

	runes := []rune(text)
	if isWord(runes[0]) {
		body = `\b` + body
	}
	if isWord(runes[len(runes)-1]) {
		body += `\b`
	}
	return "(?i)" + body
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
