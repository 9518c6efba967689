package outreach

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/okian/leadscore/internal/domain/engagement"
	"gopkg.in/yaml.v3"
)

//go:embed assets/library.yaml
var defaultLibrary []byte

// Template is a subject/message pair of text/template strings.
type Template struct {
	Subject string `yaml:"subject"`
	Message string `yaml:"message"`
}

// Library is the draft asset library: pattern frames and calls to action per
// tier, value assets, opt-outs, and the known-compliant fallback.
type Library struct {
	Channel  string                                       `yaml:"channel"`
	Values   []string                                     `yaml:"values"`
	OptOuts  []string                                     `yaml:"opt_outs"`
	CTAs     map[engagement.RecommendationType][]string   `yaml:"ctas"`
	Frames   map[engagement.RecommendationType][]Template `yaml:"frames"`
	Fallback Template                                     `yaml:"fallback"`
}

// draftTiers are the tiers that may produce a draft.
var draftTiers = []engagement.RecommendationType{
	engagement.SoftValueShare,
	engagement.LowPressureIntro,
	engagement.StandardOutreach,
	engagement.DirectStrategicOutreach,
}

// ParseLibrary decodes and checks a YAML asset library.
func ParseLibrary(data []byte) (*Library, error) {
	var lib Library
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLibrary, err)
	}
	if lib.Channel == "" {
		lib.Channel = DefaultChannel
	}
	if len(lib.Values) == 0 || len(lib.OptOuts) == 0 {
		return nil, fmt.Errorf("%w: values and opt_outs must not be empty", ErrInvalidLibrary)
	}
	if lib.Fallback.Subject == "" || lib.Fallback.Message == "" {
		return nil, fmt.Errorf("%w: fallback template is required", ErrInvalidLibrary)
	}
	for _, tier := range draftTiers {
		if len(lib.Frames[tier]) == 0 || len(lib.CTAs[tier]) == 0 {
			return nil, fmt.Errorf("%w: tier %q needs frames and ctas", ErrInvalidLibrary, tier)
		}
	}
	return &lib, nil
}

// LoadLibraryFile reads a library from disk.
func LoadLibraryFile(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read draft library %s: %w", path, err)
	}
	return ParseLibrary(data)
}

// DefaultLibrary returns the embedded library.
func DefaultLibrary() *Library {
	lib, err := ParseLibrary(defaultLibrary)
	if err != nil {
		panic("outreach: embedded library invalid: " + err.Error())
	}
	return lib
}
