// Package imagejob submits asynchronous image-generation jobs to an external
// provider and polls them to a terminal state.
package imagejob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const maxResponseSize = 4 * 1024 * 1024 // 4MB

// Provider lifecycle states reported by the poll endpoint.
const (
	stateSuccess = "success"
	stateFail    = "fail"
)

// Config holds the image job provider settings.
type Config struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Params describes one generation job.
type Params struct {
	Prompt      string
	ImageInputs []string
	AspectRatio string
	Resolution  string
}

// Status is one poll observation of a job.
type Status struct {
	State     string
	ResultURL string
	FailMsg   string
}

// Client is the async job provider surface.
type Client interface {
	CreateJob(ctx context.Context, params Params) (string, error)
	PollJob(ctx context.Context, jobID string) (*Status, error)
}

// HTTPClient talks to a Kie-style jobs API.
type HTTPClient struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewHTTPClient creates an image job client with defaults applied.
func NewHTTPClient(cfg Config, logger *zap.Logger) *HTTPClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.kie.ai/api/v1/jobs"
	}
	if cfg.Model == "" {
		cfg.Model = "nano-banana-pro"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPClient{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

type createRequest struct {
	Model string      `json:"model"`
	Input createInput `json:"input"`
}

type createInput struct {
	Prompt       string   `json:"prompt"`
	ImageInput   []string `json:"image_input,omitempty"`
	AspectRatio  string   `json:"aspect_ratio,omitempty"`
	Resolution   string   `json:"resolution,omitempty"`
	OutputFormat string   `json:"output_format"`
}

type apiEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type createData struct {
	TaskID string `json:"taskId"`
}

type recordData struct {
	State      string `json:"state"`
	ResultJSON string `json:"resultJson"`
	FailMsg    string `json:"failMsg"`
}

type resultPayload struct {
	ResultURLs []string `json:"resultUrls"`
}

// CreateJob submits a generation job and returns the provider's job id.
func (c *HTTPClient) CreateJob(ctx context.Context, params Params) (string, error) {
	body := createRequest{
		Model: c.cfg.Model,
		Input: createInput{
			Prompt:       params.Prompt,
			ImageInput:   params.ImageInputs,
			AspectRatio:  params.AspectRatio,
			Resolution:   params.Resolution,
			OutputFormat: "png",
		},
	}
	env, err := c.call(ctx, http.MethodPost, c.cfg.BaseURL+"/createTask", body)
	if err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	var data createData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.TaskID == "" {
		return "", fmt.Errorf("create job: no task id in response: %s", env.Msg)
	}
	return data.TaskID, nil
}

// PollJob reads the job's lifecycle state. A terminal success carries the
// first result URL extracted from the job's result structure.
func (c *HTTPClient) PollJob(ctx context.Context, jobID string) (*Status, error) {
	env, err := c.call(ctx, http.MethodGet, c.cfg.BaseURL+"/recordInfo?taskId="+url.QueryEscape(jobID), nil)
	if err != nil {
		return nil, fmt.Errorf("poll job %s: %w", jobID, err)
	}
	var data recordData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("poll job %s: decode data: %w", jobID, err)
	}

	status := &Status{State: data.State, FailMsg: data.FailMsg}
	if data.State == stateSuccess && data.ResultJSON != "" {
		var result resultPayload
		if err := json.Unmarshal([]byte(data.ResultJSON), &result); err == nil && len(result.ResultURLs) > 0 {
			status.ResultURL = result.ResultURLs[0]
		}
	}
	return status, nil
}

func (c *HTTPClient) call(ctx context.Context, method, endpoint string, body any) (*apiEnvelope, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}
	var env apiEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope (status %d): %w", resp.StatusCode, err)
	}
	if env.Code != 200 {
		return nil, fmt.Errorf("provider code %d: %s", env.Code, env.Msg)
	}
	return &env, nil
}
