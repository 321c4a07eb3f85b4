package narration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/teslashibe/go-pathfinder/internal/httpc"
)

const providerGemini = "gemini"

// Gemini defaults.
const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel   = "gemini-1.5-flash"
)

// Gemini generates phrases with Google's Gemini generateContent API.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// GeminiOption configures a Gemini generator.
type GeminiOption func(*Gemini)

// WithGeminiModel overrides the model name.
func WithGeminiModel(model string) GeminiOption {
	return func(g *Gemini) {
		if model != "" {
			g.model = model
		}
	}
}

// WithGeminiBaseURL overrides the API base URL.
func WithGeminiBaseURL(url string) GeminiOption {
	return func(g *Gemini) { g.baseURL = url }
}

// WithGeminiHTTPClient sets the HTTP client.
func WithGeminiHTTPClient(c *http.Client) GeminiOption {
	return func(g *Gemini) { g.http = c }
}

// WithGeminiLogger sets the logger.
func WithGeminiLogger(l *slog.Logger) GeminiOption {
	return func(g *Gemini) { g.logger = l }
}

// NewGemini creates a Gemini generator.
func NewGemini(apiKey string, opts ...GeminiOption) (*Gemini, error) {
	if apiKey == "" {
		return nil, WrapError(providerGemini, ErrNoAPIKey)
	}
	g := &Gemini{
		apiKey:  apiKey,
		model:   DefaultGeminiModel,
		baseURL: DefaultGeminiBaseURL,
		http:    httpc.Client,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "narration.gemini")
	return g, nil
}

// Generate implements Generator.
func (g *Gemini) Generate(ctx context.Context, c Context) (string, error) {
	start := time.Now()

	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]interface{}{{"text": Prompt(c)}}},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     0.3,
			"maxOutputTokens": 24,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", WrapError(providerGemini, err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", WrapError(providerGemini, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", WrapError(providerGemini, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", g.parseError(resp)
	}

	var result geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", WrapError(providerGemini, fmt.Errorf("decode response: %w", err))
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", WrapError(providerGemini, ErrEmptyPhrase)
	}

	text := Clean(result.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", WrapError(providerGemini, ErrEmptyPhrase)
	}
	g.logger.Debug("phrase generated", "text", text, "latency_ms", time.Since(start).Milliseconds())
	return text, nil
}

func (g *Gemini) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	message := string(body)
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}
	return &APIError{StatusCode: resp.StatusCode, Message: message, Provider: providerGemini}
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}
