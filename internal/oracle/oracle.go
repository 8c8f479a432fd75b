// Package oracle is the completion boundary: prompt text in, reply text out.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lucasnoah/sprintfactory/internal/config"
	"github.com/lucasnoah/sprintfactory/internal/metrics"
)

var (
	// ErrEmptyResponse is returned when a backend answers with no text.
	ErrEmptyResponse = errors.New("oracle returned an empty response")
	// ErrUnsupportedProvider is returned when no transport can serve a model id.
	ErrUnsupportedProvider = errors.New("unsupported provider")
)

// ConnectionPrompt is sent by TestConnection.
const ConnectionPrompt = "Say 'Connection successful' if you can read this."

// Oracle turns a prompt into completion text. Invoke blocks until the
// backend answers or ctx is done.
type Oracle interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Func adapts a plain function to the Oracle interface.
type Func func(ctx context.Context, prompt string) (string, error)

// Invoke calls f.
func (f Func) Invoke(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Settings are the model settings a client is built from.
type Settings struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration // zero = no client-side timeout
	Endpoint    string        // overrides the provider's API root (proxies, tests)
}

// SettingsFromConfig converts the llm section of the config.
func SettingsFromConfig(c config.LLM) (Settings, error) {
	timeout, err := c.TimeoutDuration()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		Model:       c.Model,
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		Timeout:     timeout,
	}, nil
}

// New builds the HTTP client for the provider the settings resolve to.
// Credentials are exported to the provider's env vars as a side effect.
func New(s Settings) (Oracle, error) {
	res := Resolve(s)
	ApplyCredentials(res.Provider, s.APIKey, s.BaseURL)

	httpClient := &http.Client{Timeout: s.Timeout}
	maxTokens := s.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	base := func(info ProviderInfo, useBaseURL bool) string {
		switch {
		case s.Endpoint != "":
			return strings.TrimRight(s.Endpoint, "/")
		case useBaseURL && strings.TrimSpace(s.BaseURL) != "":
			return strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
		default:
			return info.DefaultBase
		}
	}

	switch res.Provider {
	case ProviderOllama:
		info := providers[ProviderOllama]
		return &ollamaClient{http: httpClient, base: base(info, true), model: res.Model, temperature: s.Temperature}, nil
	case ProviderOpenAI:
		info := providers[ProviderOpenAI]
		return &chatClient{http: httpClient, base: base(info, true), model: res.Model, key: apiKey(info, s.APIKey),
			temperature: s.Temperature, maxTokens: maxTokens}, nil
	case ProviderAnthropic:
		info := providers[ProviderAnthropic]
		return &anthropicClient{http: httpClient, base: base(info, false), model: res.Model, key: apiKey(info, s.APIKey),
			temperature: s.Temperature, maxTokens: maxTokens}, nil
	case ProviderGemini, ProviderGoogle:
		info := providers[res.Provider]
		return &geminiClient{http: httpClient, base: base(info, false), model: res.Model, key: apiKey(info, s.APIKey),
			temperature: s.Temperature, maxTokens: maxTokens}, nil
	}

	// Unknown prefixes and bare names go to an OpenAI-compatible endpoint
	// with the full id, which is how most gateways route them.
	root := s.Endpoint
	if root == "" {
		root = strings.TrimSpace(s.BaseURL)
	}
	if root == "" {
		return nil, fmt.Errorf("model %q: %w (set a base URL for OpenAI-compatible gateways)", res.ModelID, ErrUnsupportedProvider)
	}
	return &chatClient{http: httpClient, base: strings.TrimRight(root, "/"), model: res.ModelID, key: s.APIKey,
		temperature: s.Temperature, maxTokens: maxTokens}, nil
}

// TestConnection sends a short probe prompt and returns the reply.
func TestConnection(ctx context.Context, o Oracle) (string, error) {
	reply, err := o.Invoke(ctx, ConnectionPrompt)
	if err != nil {
		return "", fmt.Errorf("connection test: %w", err)
	}
	return reply, nil
}

// Instrument wraps o so every call is counted and timed under purpose.
func Instrument(o Oracle, purpose string) Oracle {
	return Func(func(ctx context.Context, prompt string) (string, error) {
		start := time.Now()
		out, err := o.Invoke(ctx, prompt)
		metrics.ObserveOracle(purpose, start, err)
		return out, err
	})
}
