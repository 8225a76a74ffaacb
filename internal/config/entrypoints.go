package config

import (
	"fmt"

	"github.com/pagerelay/pagerelay/internal/llm"
)

// Entry point kinds.
const (
	KindGenerate = "generate"
	KindImage    = "image"
)

// Persona strategies.
const (
	PersonaNone    = "none"
	PersonaKeyword = "keyword"
)

// Destination rules.
const (
	// DestTask writes to the task record.
	DestTask = "task"
	// DestSource writes to the first referenced record.
	DestSource = "source"
	// DestBoth writes to both.
	DestBoth = "both"
	// DestRecord honors the task record's own output-destination selector.
	DestRecord = "record"
)

// EntryPoint is one webhook's pipeline configuration. Historically each
// webhook was its own near-identical handler diverging in exactly these
// knobs; here they are data.
type EntryPoint struct {
	Kind string `mapstructure:"kind" yaml:"kind"`
	// Secret overrides the global webhook secret when set.
	Secret string `mapstructure:"secret" yaml:"secret"`

	MaxReferences int `mapstructure:"max_references" yaml:"max_references"`
	CharBudget    int `mapstructure:"char_budget" yaml:"char_budget"`

	Chain llm.Chain `mapstructure:"chain" yaml:"chain"`

	// PersonaStrategy is "none" or "keyword".
	PersonaStrategy string `mapstructure:"persona_strategy" yaml:"persona_strategy"`
	// Destination is "task", "source", "both", or "record".
	Destination string `mapstructure:"destination" yaml:"destination"`
	// FirstRefIsPrimary promotes the first resolved reference to the primary
	// instruction source.
	FirstRefIsPrimary bool `mapstructure:"first_ref_is_primary" yaml:"first_ref_is_primary"`
	// UseSystemContext prepends the shared system-context document to the
	// system prompt.
	UseSystemContext bool `mapstructure:"use_system_context" yaml:"use_system_context"`
	// WriteResponseProperty mirrors a result snippet into the record's
	// Response property and clears the trigger checkbox.
	WriteResponseProperty bool `mapstructure:"write_response_property" yaml:"write_response_property"`

	MarkerEmoji string `mapstructure:"marker_emoji" yaml:"marker_emoji"`
	MarkerColor string `mapstructure:"marker_color" yaml:"marker_color"`
}

// Validate checks one entry point record.
func (e EntryPoint) Validate() error {
	switch e.Kind {
	case KindGenerate, KindImage:
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	switch e.PersonaStrategy {
	case "", PersonaNone, PersonaKeyword:
	default:
		return fmt.Errorf("unknown persona strategy %q", e.PersonaStrategy)
	}
	switch e.Destination {
	case "", DestTask, DestSource, DestBoth, DestRecord:
	default:
		return fmt.Errorf("unknown destination %q", e.Destination)
	}
	if e.Kind == KindGenerate {
		if err := e.Chain.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// applyEntryPointDefaults fills missing entry points with the built-in set
// and completes partial records from the shared defaults.
func applyEntryPointDefaults(cfg *Config) {
	if cfg.EntryPoints == nil {
		cfg.EntryPoints = map[string]EntryPoint{}
	}
	for name, ep := range builtinEntryPoints() {
		if _, ok := cfg.EntryPoints[name]; !ok {
			cfg.EntryPoints[name] = ep
		}
	}
	for name, ep := range cfg.EntryPoints {
		if ep.MaxReferences <= 0 {
			ep.MaxReferences = cfg.Defaults.MaxReferences
		}
		if ep.CharBudget <= 0 {
			ep.CharBudget = cfg.Defaults.CharBudget
		}
		if ep.Kind == KindGenerate && len(ep.Chain) == 0 {
			ep.Chain = DefaultChain()
		}
		if ep.PersonaStrategy == "" {
			ep.PersonaStrategy = PersonaNone
		}
		if ep.Destination == "" {
			ep.Destination = DestTask
		}
		cfg.EntryPoints[name] = ep
	}
}

// DefaultChain is the stock generation fallback: latest model with thinking
// disabled first, previous generation second.
func DefaultChain() llm.Chain {
	thinkingOff := false
	return llm.Chain{
		{Model: "moonshot/kimi-k2.5", Options: llm.Options{Thinking: &thinkingOff}},
		{Model: "moonshot/kimi-k2-0905-preview"},
	}
}

// AnalysisChain is the stock chain for the synchronous analysis endpoint:
// the reasoning model requires its default temperature, the fallback does not.
func AnalysisChain() llm.Chain {
	tempOne := 1.0
	tempLow := 0.7
	return llm.Chain{
		{Model: "moonshot/kimi-k2.5", Options: llm.Options{Temperature: &tempOne}},
		{Model: "moonshot/kimi-k2-0905-preview", Options: llm.Options{Temperature: &tempLow}},
	}
}

// builtinEntryPoints mirrors the original deployment's webhook surface.
func builtinEntryPoints() map[string]EntryPoint {
	return map[string]EntryPoint{
		"generate": {
			Kind:                  KindGenerate,
			Chain:                 DefaultChain(),
			PersonaStrategy:       PersonaNone,
			Destination:           DestTask,
			WriteResponseProperty: true,
			MarkerEmoji:           "💡",
		},
		"agent": {
			Kind:              KindGenerate,
			MaxReferences:     10,
			CharBudget:        800000,
			Chain:             DefaultChain(),
			PersonaStrategy:   PersonaKeyword,
			Destination:       DestRecord,
			FirstRefIsPrimary: true,
			UseSystemContext:  true,
			MarkerEmoji:       "🤖",
		},
		"image": {
			Kind:        KindImage,
			Destination: DestTask,
			MarkerEmoji: "🖼️",
		},
	}
}
