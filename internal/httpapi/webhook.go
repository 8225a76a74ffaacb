package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pagerelay/pagerelay/internal/config"
	"github.com/pagerelay/pagerelay/internal/llm"
	"github.com/pagerelay/pagerelay/internal/metrics"
	"github.com/pagerelay/pagerelay/internal/pipeline"
	"github.com/pagerelay/pagerelay/internal/task"
)

// secretHeader carries the shared webhook secret. Header lookup is
// case-insensitive; comparison is exact string equality.
const secretHeader = "X-Webhook-Secret"

// maxBodySize bounds webhook payloads.
const maxBodySize = 1 << 20 // 1MB

// WebhookHandler serves one POST endpoint per configured entry point.
type WebhookHandler struct {
	pipe   *pipeline.Pipeline
	secret string
	server config.ServerConfig
	logger *zap.Logger

	mu          sync.RWMutex
	entryPoints map[string]config.EntryPoint
}

// NewWebhookHandler creates the handler.
func NewWebhookHandler(pipe *pipeline.Pipeline, cfg *config.Config, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		pipe:        pipe,
		secret:      cfg.WebhookSecret,
		server:      cfg.Server,
		logger:      logger,
		entryPoints: cfg.EntryPoints,
	}
}

// RegisterRoutes mounts the webhook endpoints.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/{entrypoint}", h.handle)
}

// Reload swaps in a hot-reloaded configuration.
func (h *WebhookHandler) Reload(cfg *config.Config) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.secret = cfg.WebhookSecret
	h.entryPoints = cfg.EntryPoints
}

func (h *WebhookHandler) entryPoint(name string) (config.EntryPoint, string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ep, ok := h.entryPoints[name]
	secret := h.secret
	if ep.Secret != "" {
		secret = ep.Secret
	}
	return ep, secret, ok
}

func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("entrypoint")
	ep, secret, ok := h.entryPoint(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown entry point"})
		return
	}

	// The auth gate runs before any external call.
	if r.Header.Get(secretHeader) != secret || secret == "" {
		metrics.WebhookRequests.WithLabelValues(name, "401").Inc()
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil || len(body) == 0 {
		metrics.WebhookRequests.WithLabelValues(name, "400").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.WebhookRequests.WithLabelValues(name, "400").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	taskID, rule := extractTaskID(payload)
	if taskID == "" {
		metrics.WebhookRequests.WithLabelValues(name, "400").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No page ID"})
		return
	}
	h.logger.Info("Webhook accepted",
		zap.String("entry_point", name),
		zap.String("task_id", taskID),
		zap.String("payload_shape", rule))

	timeout := h.server.RequestTimeout
	if ep.Kind == config.KindImage {
		timeout = h.server.ImageRequestTimeout
	}
	ctx := r.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := h.pipe.Run(ctx, name, ep, taskID)
	if err != nil {
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, task.ErrNotFound):
			code = http.StatusNotFound
		case errors.Is(err, pipeline.ErrNoInstruction):
			code = http.StatusBadRequest
		}
		metrics.WebhookRequests.WithLabelValues(name, strconv.Itoa(code)).Inc()
		h.logger.Error("Pipeline failed",
			zap.String("entry_point", name),
			zap.String("task_id", taskID),
			zap.Error(err))
		writeJSON(w, code, map[string]string{"error": err.Error()})
		return
	}

	metrics.WebhookRequests.WithLabelValues(name, "200").Inc()
	writeJSON(w, http.StatusOK, webhookResponse{Success: true, Result: result})
}

type webhookResponse struct {
	Success bool `json:"success"`
	*pipeline.Result
}

// Health is a liveness probe.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Models lists the model catalogue grouped by provider.
func Models(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"default": llm.DefaultModel,
		"models":  llm.ModelsByProvider(),
	})
}
