package external

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// LLM generates text from a prompt.
type LLM interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-1.5-flash"

// Gemini calls the Google Generative Language REST API.
type Gemini struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewGemini creates a Gemini client.
func NewGemini(apiKey, model string, timeout time.Duration) *Gemini {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{
		baseURL: "https://generativelanguage.googleapis.com",
		apiKey:  apiKey,
		model:   model,
		client:  newHTTPClient(timeout),
	}
}

// WithBaseURL points the client at another endpoint. Used by tests.
func (g *Gemini) WithBaseURL(u string) *Gemini {
	g.baseURL = strings.TrimRight(u, "/")
	return g
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// GenerateContent returns the text of the first candidate.
func (g *Gemini) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if g.apiKey == "" {
		return "", ErrNotConfigured
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.baseURL, url.PathEscape(g.model), url.QueryEscape(g.apiKey))
	body := geminiRequest{Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}}}

	var out geminiResponse
	if err := doJSON(ctx, g.client, http.MethodPost, endpoint, nil, body, &out); err != nil {
		return "", err
	}
	if len(out.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates returned", ErrUpstream)
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}
