package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pagerelay/pagerelay/internal/metrics"
)

// maxResponseSize bounds workspace API response bodies.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// AppendBatchCeiling is the workspace API's per-call limit on appended
// blocks. Callers must batch; the client rejects oversized calls outright.
const AppendBatchCeiling = 100

// Client is the document-workspace API surface the pipeline depends on.
// Implemented by HTTPClient in production and by fakes in tests.
type Client interface {
	FetchPage(ctx context.Context, pageID string) (*Page, error)
	FetchDocument(ctx context.Context, pageID string) (*Document, error)
	AppendBlocks(ctx context.Context, parentID string, blocks []Block) error
	UpdateProperties(ctx context.Context, pageID string, props map[string]Property) error
}

// Config holds workspace API connection settings.
type Config struct {
	BaseURL    string        `mapstructure:"base_url"`
	Token      string        `mapstructure:"token"`
	APIVersion string        `mapstructure:"api_version"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// HTTPClient talks to the workspace over its REST API.
type HTTPClient struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewHTTPClient creates a workspace client with defaults applied.
func NewHTTPClient(cfg Config, logger *zap.Logger) *HTTPClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.notion.com"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2022-06-28"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	return &HTTPClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// FetchPage retrieves a page's structured fields.
func (c *HTTPClient) FetchPage(ctx context.Context, pageID string) (*Page, error) {
	var page Page
	if err := c.do(ctx, http.MethodGet, "/v1/pages/"+pageID, nil, &page); err != nil {
		return nil, fmt.Errorf("fetch page %s: %w", pageID, err)
	}
	return &page, nil
}

// FetchDocument retrieves a page plus its rendered content.
func (c *HTTPClient) FetchDocument(ctx context.Context, pageID string) (*Document, error) {
	page, err := c.FetchPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	content, err := c.pageContent(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("fetch content %s: %w", pageID, err)
	}
	return &Document{ID: pageID, Title: pageTitle(page), Content: content}, nil
}

// AppendBlocks appends content blocks under a parent. One call, one batch;
// batching across the ceiling is the materializer's job.
func (c *HTTPClient) AppendBlocks(ctx context.Context, parentID string, blocks []Block) error {
	if len(blocks) == 0 {
		return nil
	}
	if len(blocks) > AppendBatchCeiling {
		return fmt.Errorf("append %d blocks exceeds batch ceiling %d", len(blocks), AppendBatchCeiling)
	}
	body := map[string]any{"children": blocks}
	if err := c.do(ctx, http.MethodPatch, "/v1/blocks/"+parentID+"/children", body, nil); err != nil {
		return fmt.Errorf("append blocks to %s: %w", parentID, err)
	}
	return nil
}

// UpdateProperties patches page fields.
func (c *HTTPClient) UpdateProperties(ctx context.Context, pageID string, props map[string]Property) error {
	body := map[string]any{"properties": props}
	if err := c.do(ctx, http.MethodPatch, "/v1/pages/"+pageID, body, nil); err != nil {
		return fmt.Errorf("update page %s: %w", pageID, err)
	}
	return nil
}

// blockChild is a read-side block with pagination bookkeeping.
type blockChild struct {
	Block
	ID          string `json:"id"`
	HasChildren bool   `json:"has_children"`
}

type childrenResponse struct {
	Results    []blockChild `json:"results"`
	HasMore    bool         `json:"has_more"`
	NextCursor string       `json:"next_cursor"`
}

func (c *HTTPClient) pageContent(ctx context.Context, pageID string) (string, error) {
	var blocks []blockChild
	cursor := ""
	for {
		path := "/v1/blocks/" + pageID + "/children?page_size=100"
		if cursor != "" {
			path += "&start_cursor=" + cursor
		}
		var page childrenResponse
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return "", err
		}
		blocks = append(blocks, page.Results...)
		if !page.HasMore || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	return renderBlocks(blocks), nil
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		req.Header.Set("Notion-Version", c.cfg.APIVersion)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			metrics.WorkspaceCalls.WithLabelValues(method, "transport_error").Inc()
			continue
		}

		data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		resp.Body.Close()
		metrics.WorkspaceCallDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("workspace API status %d", resp.StatusCode)
			metrics.WorkspaceCalls.WithLabelValues(method, "retryable_error").Inc()
			c.logger.Warn("Workspace call failed, retrying",
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1))
			continue
		}
		if resp.StatusCode >= 400 {
			var apiErr apiError
			if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
				return fmt.Errorf("workspace API %d: %s", resp.StatusCode, apiErr.Message)
			}
			return fmt.Errorf("workspace API status %d", resp.StatusCode)
		}
		if readErr != nil {
			return readErr
		}
		metrics.WorkspaceCalls.WithLabelValues(method, "ok").Inc()
		if out != nil {
			return json.Unmarshal(data, out)
		}
		return nil
	}
	return lastErr
}

// pageTitle finds the page's title property. The workspace allows renaming
// the title column, so any property of type title counts; common names win.
func pageTitle(p *Page) string {
	for _, name := range []string{"title", "Name", "Task name"} {
		if prop, ok := p.Properties[name]; ok && len(prop.Title) > 0 {
			return PlainText(prop.Title)
		}
	}
	for _, prop := range p.Properties {
		if len(prop.Title) > 0 {
			return PlainText(prop.Title)
		}
	}
	return "Untitled"
}
