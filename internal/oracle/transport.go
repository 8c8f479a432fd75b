package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// anthropicVersion is the Messages API version header value.
const anthropicVersion = "2023-06-01"

// errorBodyLimit caps how much of a failed response body ends up in an error.
const errorBodyLimit = 512

type ollamaClient struct {
	http        *http.Client
	base        string
	model       string
	temperature float64
}

func (c *ollamaClient) Invoke(ctx context.Context, prompt string) (string, error) {
	body := map[string]interface{}{
		"model":   c.model,
		"prompt":  prompt,
		"stream":  false,
		"options": map[string]interface{}{"temperature": c.temperature},
	}
	var out struct {
		Response string `json:"response"`
	}
	if err := postJSON(ctx, c.http, c.base+"/api/generate", nil, body, &out); err != nil {
		return "", fmt.Errorf("ollama %s: %w", c.model, err)
	}
	return nonEmpty(out.Response)
}

// chatClient speaks the OpenAI chat completions protocol.
type chatClient struct {
	http        *http.Client
	base        string
	model       string
	key         string
	temperature float64
	maxTokens   int
}

func (c *chatClient) Invoke(ctx context.Context, prompt string) (string, error) {
	body := map[string]interface{}{
		"model":       c.model,
		"messages":    []map[string]string{{"role": "user", "content": prompt}},
		"temperature": c.temperature,
		"max_tokens":  c.maxTokens,
	}
	headers := map[string]string{}
	if c.key != "" {
		headers["Authorization"] = "Bearer " + c.key
	}
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := postJSON(ctx, c.http, c.base+"/chat/completions", headers, body, &out); err != nil {
		return "", fmt.Errorf("chat completion %s: %w", c.model, err)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return nonEmpty(out.Choices[0].Message.Content)
}

type anthropicClient struct {
	http        *http.Client
	base        string
	model       string
	key         string
	temperature float64
	maxTokens   int
}

func (c *anthropicClient) Invoke(ctx context.Context, prompt string) (string, error) {
	body := map[string]interface{}{
		"model":       c.model,
		"max_tokens":  c.maxTokens,
		"temperature": c.temperature,
		"messages":    []map[string]string{{"role": "user", "content": prompt}},
	}
	headers := map[string]string{
		"x-api-key":         c.key,
		"anthropic-version": anthropicVersion,
	}
	var out struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := postJSON(ctx, c.http, c.base+"/v1/messages", headers, body, &out); err != nil {
		return "", fmt.Errorf("anthropic %s: %w", c.model, err)
	}
	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" || block.Type == "" {
			sb.WriteString(block.Text)
		}
	}
	return nonEmpty(sb.String())
}

type geminiClient struct {
	http        *http.Client
	base        string
	model       string
	key         string
	temperature float64
	maxTokens   int
}

func (c *geminiClient) Invoke(ctx context.Context, prompt string) (string, error) {
	body := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"role": "user", "parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     c.temperature,
			"maxOutputTokens": c.maxTokens,
		},
	}
	// The key travels in a header; transport errors quote the URL.
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.base, url.PathEscape(c.model))
	var out struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	headers := map[string]string{"x-goog-api-key": c.key}
	if err := postJSON(ctx, c.http, endpoint, headers, body, &out); err != nil {
		return "", fmt.Errorf("gemini %s: %w", c.model, err)
	}
	if len(out.Candidates) == 0 {
		return "", ErrEmptyResponse
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return nonEmpty(sb.String())
}

func postJSON(ctx context.Context, client *http.Client, endpoint string, headers map[string]string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func nonEmpty(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", ErrEmptyResponse
	}
	return s, nil
}
