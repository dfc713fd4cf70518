package embedding

import (
	"context"
	"fmt"

	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/openaiapi"
	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	client    *openaiapi.Client
	model     string
	dimension int
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Usage embeddingUsage  `json:"usage"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

func NewOpenAIEmbedder(apiKeyEnv, model string, dimension int) (*OpenAIEmbedder, error) {
	return NewOpenAICompatibleEmbedder(apiKeyEnv, model, openaiapi.DefaultBaseURL, dimension)
}

// NewOllamaEmbedder targets a local Ollama server; no API key is needed.
func NewOllamaEmbedder(model, baseURL string, dimension int) (*OpenAIEmbedder, error) {
	if baseURL == "" {
		baseURL = openaiapi.OllamaBaseURL
	}
	if dimension <= 0 {
		dimension = knownDimension(model)
	}
	return &OpenAIEmbedder{
		client:    openaiapi.NewClient(baseURL, "", domain.KindEmbedding),
		model:     model,
		dimension: dimension,
	}, nil
}

func NewOpenAICompatibleEmbedder(apiKeyEnv, model, baseURL string, dimension int) (*OpenAIEmbedder, error) {
	apiKey, err := openaiapi.APIKeyFromEnv(apiKeyEnv)
	if err != nil {
		return nil, err
	}
	if dimension <= 0 {
		dimension = knownDimension(model)
	}
	return &OpenAIEmbedder{
		client:    openaiapi.NewClient(baseURL, apiKey, domain.KindEmbedding),
		model:     model,
		dimension: dimension,
	}, nil
}

func knownDimension(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	case "nomic-embed-text":
		return 768
	case "mxbai-embed-large", "jina-embeddings-v3":
		return 1024
	case "all-minilm":
		return 384
	default:
		return 1536
	}
}

// Embed sends texts as a single request. Batching is done by ResilientEmbedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embeddingResponse
	err := e.client.PostJSON(ctx, "embed", "/embeddings", embeddingRequest{Input: texts, Model: e.model}, &resp)
	if err != nil {
		return nil, err
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index >= 0 && data.Index < len(embeddings) {
			embeddings[data.Index] = data.Embedding
		}
	}
	for i, v := range embeddings {
		if len(v) != e.dimension {
			return nil, domain.NewError(domain.KindEmbedding, "embed",
				fmt.Errorf("%w: input %d returned %d dimensions, expected %d", domain.ErrDimensionMismatch, i, len(v), e.dimension))
		}
	}

	return embeddings, nil
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}
