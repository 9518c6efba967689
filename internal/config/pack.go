package config

import (
	"context"
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/okian/leadscore/internal/domain/critic"
	"github.com/okian/leadscore/internal/domain/engagement"
	"github.com/okian/leadscore/internal/domain/outreach"
	"github.com/okian/leadscore/internal/domain/scoring"
)

// Pack is the tunable scoring configuration. Any table may be overridden;
// maps merge key by key over the defaults and lists replace them.
type Pack struct {
	Readiness  scoring.Config    `koanf:"readiness"`
	Engagement engagement.Config `koanf:"engagement"`
	Critic     critic.Rules      `koanf:"critic"`
	// Library is an optional path to a draft library YAML file.
	Library string `koanf:"library"`
}

// DefaultPack returns the built-in tables.
func DefaultPack() Pack {
	return Pack{
		Readiness:  scoring.DefaultConfig(),
		Engagement: engagement.DefaultConfig(),
		Critic:     critic.DefaultRules(),
	}
}

// LoadPack reads a YAML pack over the defaults. An empty path returns the
// defaults unchanged.
func LoadPack(_ context.Context, path string) (Pack, error) {
	p := DefaultPack()
	if path == "" {
		return p, nil
	}
	k := koanf.New(koanfDelim)
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return Pack{}, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
	}
	if err := k.UnmarshalWithConf("", &p, unmarshalConf); err != nil {
		return Pack{}, fmt.Errorf("%w: %s: %w", ErrInvalidPack, path, err)
	}
	if err := p.Validate(); err != nil {
		return Pack{}, err
	}
	return p, nil
}

// Validate checks every table.
func (p Pack) Validate() error {
	if err := p.Readiness.Validate(); err != nil {
		return fmt.Errorf("%w: readiness: %w", ErrInvalidPack, err)
	}
	if err := p.Engagement.Validate(); err != nil {
		return fmt.Errorf("%w: engagement: %w", ErrInvalidPack, err)
	}
	if _, err := critic.New(p.Critic); err != nil {
		return fmt.Errorf("%w: critic: %w", ErrInvalidPack, err)
	}
	return nil
}

// Engines are the engines configured by a pack.
type Engines struct {
	Readiness  *scoring.Engine
	Engagement *engagement.Engine
	Critic     *critic.Critic
	Library    *outreach.Library
}

// Build constructs the engines and loads the draft library.
func (p Pack) Build() (Engines, error) {
	var (
		e   Engines
		err error
	)
	if e.Readiness, err = scoring.NewEngine(p.Readiness); err != nil {
		return Engines{}, fmt.Errorf("%w: %w", ErrInvalidPack, err)
	}
	if e.Engagement, err = engagement.NewEngine(p.Engagement); err != nil {
		return Engines{}, fmt.Errorf("%w: %w", ErrInvalidPack, err)
	}
	if e.Critic, err = critic.New(p.Critic); err != nil {
		return Engines{}, fmt.Errorf("%w: %w", ErrInvalidPack, err)
	}
	e.Library = outreach.DefaultLibrary()
	if p.Library != "" {
		if e.Library, err = outreach.LoadLibraryFile(p.Library); err != nil {
			return Engines{}, fmt.Errorf("%w: %w", ErrInvalidPack, err)
		}
	}
	return e, nil
}
