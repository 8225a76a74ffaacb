package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pagerelay/pagerelay/internal/metrics"
)

// maxResponseSize bounds provider response bodies.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// ProviderConfig holds the credentials and endpoint for one provider.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// Config configures the generation client.
type Config struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Timeout   time.Duration             `mapstructure:"timeout"`
}

// Client invokes generation providers resolved from model refs.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a generation client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 110 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Invoke calls one provider-model with the given prompts and options.
// modelRef has the form "provider/model".
func (c *Client) Invoke(ctx context.Context, modelRef, system, user string, opts Options) (string, error) {
	providerName, model, err := SplitModelRef(modelRef)
	if err != nil {
		return "", err
	}
	provider, err := lookupProvider(providerName)
	if err != nil {
		return "", err
	}
	// The Gemini endpoint path embeds the model id.
	if gp, ok := provider.(*GoogleProvider); ok {
		provider = gp.BindModel(model)
	}

	pcfg := c.cfg.Providers[providerName]
	body, err := provider.BuildRequestBody(model, system, user, opts)
	if err != nil {
		return "", fmt.Errorf("build request for %s: %w", modelRef, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.BuildURL(pcfg.BaseURL), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(req, pcfg.APIKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.GenerationAttempts.WithLabelValues(modelRef, "transport_error").Inc()
		return "", fmt.Errorf("invoke %s: %w", modelRef, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	metrics.GenerationDuration.WithLabelValues(modelRef).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GenerationAttempts.WithLabelValues(modelRef, "read_error").Inc()
		return "", fmt.Errorf("read response from %s: %w", modelRef, err)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.GenerationAttempts.WithLabelValues(modelRef, "http_error").Inc()
		return "", fmt.Errorf("invoke %s: status %d: %s", modelRef, resp.StatusCode, snippet(data))
	}

	text, err := provider.ParseResponse(data)
	if err != nil {
		metrics.GenerationAttempts.WithLabelValues(modelRef, "parse_error").Inc()
		return "", fmt.Errorf("invoke %s: %w", modelRef, err)
	}
	metrics.GenerationAttempts.WithLabelValues(modelRef, "ok").Inc()
	c.logger.Debug("Generation completed",
		zap.String("model", modelRef),
		zap.Int("response_len", len(text)),
		zap.Duration("duration", time.Since(start)))
	return text, nil
}

func snippet(data []byte) string {
	const max = 300
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
