package llm

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

func init() {
	RegisterProvider(&MoonshotProvider{})
	RegisterProvider(&OpenAIProvider{})
	RegisterProvider(&AnthropicProvider{})
	RegisterProvider(&GoogleProvider{})
}

// --- OpenAI-compatible chat completions (OpenAI, Moonshot) ---

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`

	// Moonshot extensions; omitted for plain OpenAI.
	Thinking *thinkingToggle `json:"thinking,omitempty"`
	Tools    []chatTool      `json:"tools,omitempty"`
}

type thinkingToggle struct {
	Type string `json:"type"` // "enabled" | "disabled"
}

type chatTool struct {
	Type     string           `json:"type"`
	Function chatToolFunction `json:"function"`
}

type chatToolFunction struct {
	Name string `json:"name"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func buildChatBody(model, system, user string, opts Options, moonshot bool) ([]byte, error) {
	req := chatRequest{
		Model:       model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if system != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: system})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: user})

	if moonshot {
		if opts.Thinking != nil {
			mode := "disabled"
			if *opts.Thinking {
				mode = "enabled"
			}
			req.Thinking = &thinkingToggle{Type: mode}
		}
		if opts.WebSearch {
			req.Tools = []chatTool{{
				Type:     "builtin_function",
				Function: chatToolFunction{Name: "$web_search"},
			}}
		}
	}
	return json.Marshal(req)
}

func parseChatResponse(data []byte) (string, error) {
	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("provider error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// MoonshotProvider implements the Moonshot (Kimi) chat API.
type MoonshotProvider struct{}

func (p *MoonshotProvider) Name() string { return "moonshot" }

func (p *MoonshotProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "https://api.moonshot.ai"
	}
	return strings.TrimSuffix(baseURL, "/") + "/v1/chat/completions"
}

func (p *MoonshotProvider) SetHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
}

func (p *MoonshotProvider) BuildRequestBody(model, system, user string, opts Options) ([]byte, error) {
	return buildChatBody(model, system, user, opts, true)
}

func (p *MoonshotProvider) ParseResponse(data []byte) (string, error) {
	return parseChatResponse(data)
}

// OpenAIProvider implements the OpenAI chat completions API.
type OpenAIProvider struct{}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	return strings.TrimSuffix(baseURL, "/") + "/v1/chat/completions"
}

func (p *OpenAIProvider) SetHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
}

func (p *OpenAIProvider) BuildRequestBody(model, system, user string, opts Options) ([]byte, error) {
	return buildChatBody(model, system, user, opts, false)
}

func (p *OpenAIProvider) ParseResponse(data []byte) (string, error) {
	return parseChatResponse(data)
}

// --- Anthropic messages API ---

const anthropicVersion = "2023-06-01"

// AnthropicProvider implements the Anthropic messages API.
type AnthropicProvider struct{}

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	return strings.TrimSuffix(baseURL, "/") + "/v1/messages"
}

func (p *AnthropicProvider) SetHeaders(req *http.Request, apiKey string) {
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
}

func (p *AnthropicProvider) BuildRequestBody(model, system, user string, opts Options) ([]byte, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return json.Marshal(anthropicRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      system,
		Messages:    []chatMessage{{Role: "user", Content: user}},
		Temperature: opts.Temperature,
	})
}

func (p *AnthropicProvider) ParseResponse(data []byte) (string, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("provider error: %s", resp.Error.Message)
	}
	var b strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("empty content in response")
	}
	return b.String(), nil
}

// --- Google generative language API ---

// GoogleProvider implements the Gemini generateContent API.
type GoogleProvider struct {
	model string
}

type googleRequest struct {
	SystemInstruction *googleContent   `json:"system_instruction,omitempty"`
	Contents          []googleContent  `json:"contents"`
	GenerationConfig  *googleGenConfig `json:"generationConfig,omitempty"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text"`
}

type googleGenConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type googleResponse struct {
	Candidates []struct {
		Content googleContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *GoogleProvider) Name() string { return "google" }

// BuildURL returns the endpoint template; the model segment is injected by
// the client through BindModel before the call.
func (p *GoogleProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	return strings.TrimSuffix(baseURL, "/") + "/v1beta/models/" + p.model + ":generateContent"
}

// BindModel returns a copy bound to a concrete model id, since the Gemini
// endpoint path embeds the model instead of the request body.
func (p *GoogleProvider) BindModel(model string) *GoogleProvider {
	return &GoogleProvider{model: model}
}

func (p *GoogleProvider) SetHeaders(req *http.Request, apiKey string) {
	req.Header.Set("x-goog-api-key", apiKey)
}

func (p *GoogleProvider) BuildRequestBody(model, system, user string, opts Options) ([]byte, error) {
	body := googleRequest{
		Contents: []googleContent{{Parts: []googlePart{{Text: user}}}},
	}
	if system != "" {
		body.SystemInstruction = &googleContent{Parts: []googlePart{{Text: system}}}
	}
	if opts.Temperature != nil || opts.MaxTokens > 0 {
		body.GenerationConfig = &googleGenConfig{
			Temperature:     opts.Temperature,
			MaxOutputTokens: opts.MaxTokens,
		}
	}
	return json.Marshal(body)
}

func (p *GoogleProvider) ParseResponse(data []byte) (string, error) {
	var resp googleResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("provider error: %s", resp.Error.Message)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty candidates in response")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String(), nil
}
