package llm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pagerelay/pagerelay/internal/metrics"
)

// ErrGenerationExhausted reports that every entry of a fallback chain failed.
var ErrGenerationExhausted = errors.New("generation exhausted: all fallback models failed")

// ChainEntry is one (model, options) pair of a fallback chain.
type ChainEntry struct {
	Model   string  `mapstructure:"model" yaml:"model"`
	Options Options `mapstructure:"options" yaml:"options"`
}

// Chain is an ordered list of alternatives tried until one succeeds.
// Providers are not uniformly available or compatible; the chain absorbs
// per-provider incompatibility without branching in callers.
type Chain []ChainEntry

// Validate rejects empty or malformed chains.
func (c Chain) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("fallback chain must have at least one entry")
	}
	for i, entry := range c {
		if _, _, err := SplitModelRef(entry.Model); err != nil {
			return fmt.Errorf("chain entry %d: %w", i, err)
		}
	}
	return nil
}

// Invoker runs fallback chains against a generation client.
type Invoker struct {
	client *Client
	logger *zap.Logger
}

// NewInvoker creates an invoker.
func NewInvoker(client *Client, logger *zap.Logger) *Invoker {
	return &Invoker{client: client, logger: logger}
}

// InvokeChain tries chain entries strictly in order and returns the first
// success along with the model that produced it. Each failure is logged as a
// warning naming the failed entry. An exhausted chain fails with
// ErrGenerationExhausted carrying the last error.
func (inv *Invoker) InvokeChain(ctx context.Context, chain Chain, system, user string) (string, string, error) {
	if err := chain.Validate(); err != nil {
		return "", "", err
	}

	var lastErr error
	for _, entry := range chain {
		text, err := inv.client.Invoke(ctx, entry.Model, system, user, entry.Options)
		if err == nil {
			return text, entry.Model, nil
		}
		lastErr = err
		inv.logger.Warn("Fallback chain entry failed, trying next",
			zap.String("model", entry.Model),
			zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	metrics.FallbackExhausted.Inc()
	return "", "", fmt.Errorf("%w: %v", ErrGenerationExhausted, lastErr)
}
