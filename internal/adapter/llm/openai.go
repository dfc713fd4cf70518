// Package llm provides language model adapters for answer generation.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/openaiapi"
	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
)

// Config holds settings for an OpenAI-compatible chat model.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// OpenAILLM calls an OpenAI-compatible /chat/completions endpoint.
type OpenAILLM struct {
	client      *openaiapi.Client
	model       string
	temperature float64
	maxTokens   int
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func NewOpenAILLM(cfg Config) *OpenAILLM {
	model := cfg.Model
	if model == "" {
		model = "gpt-4"
	}
	return &OpenAILLM{
		client:      openaiapi.NewClient(cfg.BaseURL, cfg.APIKey, domain.KindGeneration),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (l *OpenAILLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	var resp chatResponse
	err := l.client.PostJSON(ctx, "generate", "/chat/completions", chatRequest{
		Model:       l.model,
		Messages:    messages,
		MaxTokens:   l.maxTokens,
		Temperature: l.temperature,
	}, &resp)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", domain.NewTransientError(domain.KindGeneration, "generate", errors.New("no choices in response"))
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", domain.NewTransientError(domain.KindGeneration, "generate", errors.New("empty completion"))
	}
	return text, nil
}

func (l *OpenAILLM) ModelName() string {
	return l.model
}
