package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/pagerelay/pagerelay/internal/assemble"
	"github.com/pagerelay/pagerelay/internal/config"
	"github.com/pagerelay/pagerelay/internal/llm"
	"github.com/pagerelay/pagerelay/internal/personas"
	"github.com/pagerelay/pagerelay/internal/refs"
	"github.com/pagerelay/pagerelay/internal/workspace"
)

// AnalyzeHandler serves the synchronous document-analysis endpoint: fetch a
// page and its related pages, classify a persona, and return the analysis
// directly instead of materializing it into the workspace.
type AnalyzeHandler struct {
	ws        workspace.Client
	assembler *assemble.Assembler
	invoker   *llm.Invoker
	chain     llm.Chain
	defaults  config.PipelineDefaults
	secret    string
	logger    *zap.Logger
}

// NewAnalyzeHandler creates the handler.
func NewAnalyzeHandler(ws workspace.Client, assembler *assemble.Assembler, invoker *llm.Invoker, cfg *config.Config, logger *zap.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{
		ws:        ws,
		assembler: assembler,
		invoker:   invoker,
		chain:     config.AnalysisChain(),
		defaults:  cfg.Defaults,
		secret:    cfg.WebhookSecret,
		logger:    logger,
	}
}

// RegisterRoutes mounts the analysis endpoints.
func (h *AnalyzeHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/analyze", h.handleAnalyze)
	mux.HandleFunc("GET /v1/models", Models)
}

type analyzeRequest struct {
	PageURL         string   `json:"page_url"`
	Question        string   `json:"question,omitempty"`
	RelatedPageURLs []string `json:"related_page_urls,omitempty"`
}

type analyzeResponse struct {
	Analysis          string `json:"analysis"`
	PageTitle         string `json:"page_title"`
	Persona           string `json:"persona"`
	Model             string `json:"model"`
	RelatedPagesCount int    `json:"related_pages_count"`
}

func (h *AnalyzeHandler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(secretHeader) != h.secret || h.secret == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	var req analyzeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.PageURL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "page_url is required"})
		return
	}
	mainID, ok := refs.FromURL(req.PageURL)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid page_url"})
		return
	}

	ctx := r.Context()
	main, err := h.ws.FetchDocument(ctx, mainID)
	if err != nil {
		h.logger.Error("Failed to fetch analysis page", zap.String("page_id", mainID), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	var related []refs.DocumentReference
	for _, url := range req.RelatedPageURLs {
		if id, ok := refs.FromURL(url); ok {
			related = append(related, refs.DocumentReference{ID: id})
		}
	}
	bundle, err := h.assembler.Build(ctx, "", related, assemble.Options{
		MaxReferences: h.defaults.MaxReferences,
		CharBudget:    h.defaults.CharBudget,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	context := "# " + main.Title + "\n\n" + main.Content
	if bundle.Text != "" {
		context += "\n\n" + bundle.Text
	}
	context = assemble.Truncate(context, h.defaults.CharBudget)

	persona := personas.Classify(context)
	system := persona.SystemPrompt + analysisPromptSuffix

	user := "Analyze this document and provide key insights:\n\n" + context
	if req.Question != "" {
		user = req.Question + "\n\n---\n\nDocument content:\n\n" + context
	}

	analysis, model, err := h.invoker.InvokeChain(ctx, h.chain, system, user)
	if err != nil {
		h.logger.Error("Analysis generation failed", zap.String("page_id", mainID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		Analysis:          analysis,
		PageTitle:         main.Title,
		Persona:           persona.ID,
		Model:             model,
		RelatedPagesCount: bundle.Resolved,
	})
}

const analysisPromptSuffix = `

You are analyzing workspace documents. Preserve all markdown formatting in your response.
Provide structured, actionable insights. Use headers, bullet points, and tables where appropriate.
Be concise but thorough. Highlight key findings, risks, and recommendations.`
