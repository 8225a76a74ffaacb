// Package llm provides a provider-agnostic generation client with a tiered
// fallback chain. Providers differ in wire format and in which option
// combinations they accept; the adapter layer absorbs that so callers never
// branch per provider.
package llm

import (
	"fmt"
	"net/http"
	"strings"
)

// Options are per-invocation knobs, passed through to the provider adapter.
// Providers ignore what they do not support.
type Options struct {
	// Temperature controls randomness; nil uses the endpoint default.
	// Reasoning-only models reject non-default temperatures, which is one
	// reason fallback chains exist.
	Temperature *float64 `mapstructure:"temperature" yaml:"temperature"`
	// Thinking toggles deep reasoning on models that expose it. nil leaves
	// the provider default.
	Thinking *bool `mapstructure:"thinking" yaml:"thinking"`
	// WebSearch enables provider-side search augmentation.
	WebSearch bool `mapstructure:"web_search" yaml:"web_search"`
	// MaxTokens limits response length; 0 uses the endpoint default.
	MaxTokens int `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// Provider adapts one upstream generation API.
type Provider interface {
	// Name returns the provider identifier used in model refs.
	Name() string
	// BuildURL constructs the completion endpoint from a base URL.
	BuildURL(baseURL string) string
	// SetHeaders adds provider-specific authentication headers.
	SetHeaders(req *http.Request, apiKey string)
	// BuildRequestBody serializes one invocation.
	BuildRequestBody(model, system, user string, opts Options) ([]byte, error)
	// ParseResponse extracts the generated text.
	ParseResponse(data []byte) (string, error)
}

var registry = map[string]Provider{}

// RegisterProvider adds a provider adapter. Called from init.
func RegisterProvider(p Provider) {
	registry[p.Name()] = p
}

// lookupProvider resolves a provider by name.
func lookupProvider(name string) (Provider, error) {
	p, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	return p, nil
}

// SplitModelRef splits "provider/model" into its parts.
func SplitModelRef(ref string) (provider, model string, err error) {
	provider, model, ok := strings.Cut(ref, "/")
	if !ok || provider == "" || model == "" {
		return "", "", fmt.Errorf("invalid model ref %q, want provider/model", ref)
	}
	return provider, model, nil
}
