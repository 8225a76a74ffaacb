package imagejob

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedClient struct {
	statuses []Status
	errs     []error
	calls    int
}

func (s *scriptedClient) CreateJob(context.Context, Params) (string, error) {
	return "job-1", nil
}

func (s *scriptedClient) PollJob(context.Context, string) (*Status, error) {
	i := s.calls
	s.calls++
	if i >= len(s.statuses) {
		i = len(s.statuses) - 1
	}
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	st := s.statuses[i]
	return &st, nil
}

func TestAwaitSuccess(t *testing.T) {
	client := &scriptedClient{statuses: []Status{
		{State: "waiting"},
		{State: "generating"},
		{State: "success", ResultURL: "https://img.example/out.png"},
	}}
	p := NewPoller(client, time.Millisecond, 10, zap.NewNop())

	res := p.Await(context.Background(), "job-1")
	assert.Equal(t, Succeeded, res.State)
	assert.Equal(t, "https://img.example/out.png", res.ResultURL)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, client.calls, "polling stops at the first terminal state")
}

func TestAwaitFailure(t *testing.T) {
	client := &scriptedClient{statuses: []Status{
		{State: "generating"},
		{State: "fail", FailMsg: "content policy"},
	}}
	p := NewPoller(client, time.Millisecond, 10, zap.NewNop())

	res := p.Await(context.Background(), "job-1")
	assert.Equal(t, Failed, res.State)
	assert.Equal(t, "content policy", res.FailMsg)
}

func TestAwaitFailureDefaultMessage(t *testing.T) {
	client := &scriptedClient{statuses: []Status{{State: "fail"}}}
	p := NewPoller(client, time.Millisecond, 5, zap.NewNop())

	res := p.Await(context.Background(), "job-1")
	assert.Equal(t, Failed, res.State)
	assert.Equal(t, "Generation failed", res.FailMsg)
}

func TestAwaitCeilingExhausted(t *testing.T) {
	client := &scriptedClient{statuses: []Status{{State: "generating"}}}
	p := NewPoller(client, time.Millisecond, 4, zap.NewNop())

	res := p.Await(context.Background(), "job-1")
	assert.Equal(t, TimedOut, res.State)
	assert.Equal(t, "Timeout waiting for image generation", res.FailMsg)
	assert.Equal(t, 4, res.Attempts)
}

func TestAwaitPollErrorsAreRetried(t *testing.T) {
	client := &scriptedClient{
		statuses: []Status{{}, {}, {State: "success", ResultURL: "https://img.example/x.png"}},
		errs:     []error{fmt.Errorf("transient"), fmt.Errorf("transient")},
	}
	p := NewPoller(client, time.Millisecond, 10, zap.NewNop())

	res := p.Await(context.Background(), "job-1")
	assert.Equal(t, Succeeded, res.State)
	assert.Equal(t, 3, res.Attempts)
}

func TestAwaitContextCancelled(t *testing.T) {
	client := &scriptedClient{statuses: []Status{{State: "generating"}}}
	p := NewPoller(client, 50*time.Millisecond, 100, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	res := p.Await(ctx, "job-1")
	assert.Equal(t, TimedOut, res.State)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "succeeded", Succeeded.String())
	assert.True(t, Succeeded.Terminal())
	assert.True(t, Failed.Terminal())
	assert.True(t, TimedOut.Terminal())
	assert.False(t, Polling.Terminal())
	assert.False(t, Submitted.Terminal())
}

func TestHTTPClientCreateJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/createTask", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))

		var req createRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nano-banana-pro", req.Model)
		assert.Equal(t, "a lighthouse", req.Input.Prompt)
		assert.Equal(t, "16:9", req.Input.AspectRatio)
		assert.Equal(t, "png", req.Input.OutputFormat)

		_, _ = w.Write([]byte(`{"code":200,"msg":"ok","data":{"taskId":"t-42"}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL, APIKey: "k"}, zap.NewNop())
	id, err := c.CreateJob(context.Background(), Params{Prompt: "a lighthouse", AspectRatio: "16:9"})
	require.NoError(t, err)
	assert.Equal(t, "t-42", id)
}

func TestHTTPClientCreateJobProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":402,"msg":"insufficient credits"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL}, zap.NewNop())
	_, err := c.CreateJob(context.Background(), Params{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient credits")
}

func TestHTTPClientPollJob(t *testing.T) {
	resultJSON := `{"resultUrls":["https://img.example/final.png","https://img.example/alt.png"]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/recordInfo", r.URL.Path)
		assert.Equal(t, "t-42", r.URL.Query().Get("taskId"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]any{"state": "success", "resultJson": resultJSON},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL}, zap.NewNop())
	status, err := c.PollJob(context.Background(), "t-42")
	require.NoError(t, err)
	assert.Equal(t, "success", status.State)
	assert.Equal(t, "https://img.example/final.png", status.ResultURL)
}

func TestHTTPClientPollJobFailState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":200,"data":{"state":"fail","failMsg":"nsfw"}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL}, zap.NewNop())
	status, err := c.PollJob(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, "fail", status.State)
	assert.Equal(t, "nsfw", status.FailMsg)
	assert.Empty(t, status.ResultURL)
}
