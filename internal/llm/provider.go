package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/curator/internal/fetch"
	"github.com/ppiankov/curator/internal/model"
)

// Provider is one hosted or local model behind the oracle.
type Provider interface {
	Name() string

	// Complete sends one prompt and returns the raw model text.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Ping checks credentials and reachability without spending a completion.
	Ping(ctx context.Context) error
}

// CompletionRequest is a single stage prompt.
type CompletionRequest struct {
	System    string // task role; providers fall back to a generic news desk role
	Prompt    string
	Model     string // overrides the configured model when set
	MaxTokens int
	JSON      bool // ask for a bare JSON object where the API supports it
}

// CompletionResponse is the model answer plus accounting.
type CompletionResponse struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int

	// Truncated is set when the model hit its output limit, which for a JSON
	// answer means the object is cut short.
	Truncated bool
}

// Tokens is the total billed for the call.
func (r *CompletionResponse) Tokens() int {
	return r.InputTokens + r.OutputTokens
}

// Config configures a provider.
type Config struct {
	Provider    string // gemini, openai, anthropic, ollama
	Model       string
	APIKey      string
	BaseURL     string // custom endpoint: local Ollama or an OpenAI-compatible gateway
	Timeout     int    // seconds
	MaxTokens   int
	Temperature float32

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// ConfigFromModel builds a provider config from the curator config sections.
func ConfigFromModel(llm model.LLMConfig, proxy model.ProxyConfig) Config {
	return Config{
		Provider:    llm.Provider,
		Model:       llm.Model,
		APIKey:      llm.APIKey,
		BaseURL:     llm.BaseURL,
		Timeout:     llm.Timeout,
		MaxTokens:   llm.MaxTokens,
		Temperature: llm.Temperature,
		HTTPProxy:   proxy.HTTP,
		HTTPSProxy:  proxy.HTTPS,
		NoProxy:     proxy.NoProxy,
	}
}

// StatusError is a non-2xx answer from a provider speaking raw HTTP.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

const defaultSystem = "You are a careful news desk assistant. Answer with a single JSON object and nothing else."

// httpClient builds the client every provider shares: per-call timeout and
// the configured proxy.
func httpClient(cfg Config, fallback time.Duration) *http.Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = fallback
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: fetch.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
		},
	}
}

func (c Config) maxTokens(req CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 4096
}

func (c Config) model(req CompletionRequest, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	if c.Model != "" {
		return c.Model
	}
	return fallback
}

func systemFor(req CompletionRequest) string {
	if s := strings.TrimSpace(req.System); s != "" {
		return s
	}
	return defaultSystem
}
