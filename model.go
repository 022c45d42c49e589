package boardflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ModelClient is the external chat-completion capability.
//
// Given a system prompt and a user prompt it returns raw model output,
// which the calling stage is responsible for parsing. Implementations
// should return a *ModelError (or a wrappable cause) on timeout or
// transport failure; they never interpret the content.
type ModelClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ScriptedModel is a deterministic ModelClient for tests and demos.
//
// It returns canned responses in order and records every call it
// receives. Safe for concurrent use.
type ScriptedModel struct {
	mu        sync.Mutex
	responses []string
	calls     []ScriptedCall
	err       error
}

// ScriptedCall records one Complete invocation.
type ScriptedCall struct {
	SystemPrompt string
	UserPrompt   string
}

// NewScriptedModel creates a model that replays the given responses in
// order. Once responses run out, further calls fail.
func NewScriptedModel(responses ...string) *ScriptedModel {
	return &ScriptedModel{responses: responses}
}

// FailWith makes every subsequent call return the given error.
func (m *ScriptedModel) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns a copy of the recorded calls.
func (m *ScriptedModel) Calls() []ScriptedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ScriptedCall(nil), m.calls...)
}

// Complete implements ModelClient.
func (m *ScriptedModel) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, ScriptedCall{SystemPrompt: systemPrompt, UserPrompt: userPrompt})
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "", fmt.Errorf("scripted model exhausted after %d calls", len(m.calls))
	}
	next := m.responses[0]
	m.responses = m.responses[1:]
	return next, nil
}

// HTTPModel calls an OpenAI-compatible chat completion endpoint.
//
// Only the narrow surface the pipeline needs is implemented: one system
// message, one user message, first choice text back.
type HTTPModel struct {
	baseURL string
	apiKey  string
	name    string
	client  *http.Client
}

// NewHTTPModel creates a ModelClient for the given endpoint.
//
// baseURL is the full URL of the chat completions endpoint, name the
// model identifier to request. timeout bounds each call.
func NewHTTPModel(baseURL, apiKey, name string, timeout time.Duration) *HTTPModel {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPModel{
		baseURL: baseURL,
		apiKey:  apiKey,
		name:    name,
		client:  &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete implements ModelClient.
func (m *HTTPModel) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: m.name,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("chat completion returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode chat completion: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// extractJSON pulls the first JSON object out of model output, tolerating
// markdown code fences and surrounding prose.
func extractJSON(output string) (string, bool) {
	trimmed := strings.TrimSpace(output)
	if fence := strings.Index(trimmed, "```"); fence >= 0 {
		rest := trimmed[fence+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			trimmed = strings.TrimSpace(rest[:end])
		} else {
			trimmed = strings.TrimSpace(rest)
		}
	}
	start := strings.IndexByte(trimmed, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(trimmed); i++ {
		c := trimmed[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return trimmed[start : i+1], true
			}
		}
	}
	return "", false
}
