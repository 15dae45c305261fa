package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Completer sends one prompt and returns the raw reply text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // e.g. https://api.openai.com/v1
	Model      string
	HTTPClient *http.Client
}

// OpenAICompleter calls an OpenAI-compatible chat completions endpoint and
// asks for a reply that matches the report JSON schema.
type OpenAICompleter struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewOpenAICompleter(cfg OpenAIConfig, logger *slog.Logger) (*OpenAICompleter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("generator: completion API key is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		// The caller's context carries the deadline.
		hc = &http.Client{}
	}
	return &OpenAICompleter{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: hc,
		logger:     logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat json.RawMessage `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete makes the call, retrying once if the connection failed before any
// reply arrived. HTTP error statuses are never retried.
func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature:    0.2,
		ResponseFormat: reportResponseFormat,
	})
	if err != nil {
		return "", fmt.Errorf("generator: encoding request: %w", err)
	}

	const attempts = 2
	var lastErr error
	for i := 0; i < attempts; i++ {
		text, err := c.send(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !isTransient(ctx, err) {
			break
		}
		c.logger.Warn("completion request failed, retrying", "attempt", i+1, "error", err)
	}
	return "", lastErr
}

func (c *OpenAICompleter) send(ctx context.Context, body []byte) (string, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("generator: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generator: calling completion API: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("generator: reading completion response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", newUpstreamError(resp.StatusCode, raw)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &ParseError{Raw: string(raw), Err: fmt.Errorf("decoding completion envelope: %w", err)}
	}
	if parsed.Error != nil {
		return "", newUpstreamError(resp.StatusCode, []byte(parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}

	c.logger.Debug("completion finished", "model", c.model, "duration", time.Since(start),
		"finish_reason", parsed.Choices[0].FinishReason)
	return parsed.Choices[0].Message.Content, nil
}

// isTransient reports a network failure worth one more attempt: the request
// never got an HTTP reply and our own deadline has not passed.
func isTransient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var upstream *UpstreamError
	var parse *ParseError
	if errors.As(err, &upstream) || errors.As(err, &parse) || errors.Is(err, ErrEmptyCompletion) {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// reportResponseFormat is the strict JSON schema for the report object.
var reportResponseFormat = mustJSON(map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "trust_report",
		"strict": true,
		"schema": object(map[string]any{
			"candidateHeader": object(map[string]any{
				"name": str, "role": str, "company": str, "headline": str,
			}),
			"whatYouSharedVsWhatCandidateBrings": arrayOf(object(map[string]any{
				"youShared": str, "candidateBrings": str,
			})),
			"evidenceSummary":            arrayOf(str),
			"considerationsAndWatchouts": arrayOf(str),
			"outcomesAndTrackRecord":     arrayOf(str),
			"leadershipDataFraming":      arrayOf(str),
			"resumeNoteAndSchedulingOptions": object(map[string]any{
				"resumeNote": str, "schedulingOptions": arrayOf(str),
			}),
		}),
	},
})

var str = map[string]any{"type": "string"}

func arrayOf(items any) map[string]any {
	return map[string]any{"type": "array", "items": items}
}

// object builds a strict-mode object schema: every property required, no
// extras.
func object(props map[string]any) map[string]any {
	required := make([]string, 0, len(props))
	for k := range props {
		required = append(required, k)
	}
	sort.Strings(required)
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
