// Package openaiapi is a minimal client for OpenAI-compatible HTTP APIs
// (OpenAI, Ollama's /v1 endpoint, and hosted compatible services).
package openaiapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	OllamaBaseURL  = "http://localhost:11434/v1"
)

// Client sends JSON requests and classifies failures into domain errors.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	kind    domain.ErrorKind
}

// NewClient builds a client whose errors carry kind.
func NewClient(baseURL, apiKey string, kind domain.ErrorKind) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		// Per-call deadlines come from the caller's context.
		http: &http.Client{Timeout: 5 * time.Minute},
		kind: kind,
	}
}

// APIKeyFromEnv reads the key named by env, failing with a configuration error when unset.
func APIKeyFromEnv(env string) (string, error) {
	key := os.Getenv(env)
	if key == "" {
		return "", domain.NewError(domain.KindConfiguration, "read api key",
			fmt.Errorf("API key not found in environment variable: %s", env))
	}
	return key, nil
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type errorEnvelope struct {
	Error *apiError `json:"error,omitempty"`
}

// PostJSON posts req to path and decodes the 200 response into resp.
// 408, 409, 429, 5xx and network failures are transient; other statuses are permanent.
func (c *Client) PostJSON(ctx context.Context, op, path string, req, resp any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return domain.NewError(c.kind, op, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return domain.NewError(c.kind, op, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domain.NewTransientError(c.kind, op, fmt.Errorf("send request: %w", err))
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) || ctx.Err() != nil {
			return domain.NewTransientError(c.kind, op, fmt.Errorf("read response: %w", err))
		}
		return domain.NewError(c.kind, op, fmt.Errorf("read response: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return c.statusError(op, httpResp.StatusCode, body)
	}

	var envelope errorEnvelope
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil {
		return domain.NewError(c.kind, op, fmt.Errorf("API error: %s", envelope.Error.Message))
	}

	if err := json.Unmarshal(body, resp); err != nil {
		return domain.NewError(c.kind, op, fmt.Errorf("failed to parse response (body: %s): %w", preview(body), err))
	}
	return nil
}

func (c *Client) statusError(op string, status int, body []byte) error {
	msg := preview(body)
	var envelope errorEnvelope
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil {
		msg = envelope.Error.Message
	}
	err := fmt.Errorf("API returned status %d: %s", status, msg)

	if Retryable(status) {
		return domain.NewTransientError(c.kind, op, err)
	}
	return domain.NewError(c.kind, op, err)
}

// Retryable reports whether an HTTP status is worth retrying.
func Retryable(status int) bool {
	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusConflict,
		status == http.StatusTooManyRequests,
		status >= 500:
		return true
	default:
		return false
	}
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
