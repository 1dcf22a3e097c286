package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"docrag/internal/domain"
)

const (
	defaultOpenAIURL = "https://api.openai.com/v1"
	defaultOllamaURL = "http://localhost:11434/v1"
)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	provider   string
	apiKey     string
	model      string
	baseURL    string
	maxRetries int
	backoff    time.Duration
	client     *http.Client
	logger     *slog.Logger

	// dimension is zero until configured, known from the model name, or
	// adopted from the first valid response.
	mu        sync.Mutex
	dimension int
}

// Options tunes an OpenAIEmbedder.
type Options struct {
	Provider   string
	APIKey     string
	Model      string
	BaseURL    string
	Dimension  int // 0 = derived from the model name, else from the first response
	Timeout    time.Duration
	MaxRetries int
	Logger     *slog.Logger
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Model string          `json:"model"`
	Usage embeddingUsage  `json:"usage"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code,omitempty"`
}

// NewOpenAIEmbedder returns an embedder for the hosted OpenAI API.
func NewOpenAIEmbedder(apiKey, model string) (*OpenAIEmbedder, error) {
	return New(Options{Provider: "openai", APIKey: apiKey, Model: model, BaseURL: defaultOpenAIURL})
}

// NewOllamaEmbedder returns an embedder for a local Ollama server through its
// OpenAI-compatible endpoint.
func NewOllamaEmbedder(model, baseURL string) (*OpenAIEmbedder, error) {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	return New(Options{Provider: "ollama", APIKey: "ollama", Model: model, BaseURL: baseURL, Timeout: 120 * time.Second})
}

// New builds an embedder for any OpenAI-compatible provider.
func New(opts Options) (*OpenAIEmbedder, error) {
	if opts.Model == "" {
		return nil, &domain.ConfigurationError{Field: "Embedding.Model", Err: errors.New("model is required")}
	}
	if opts.APIKey == "" {
		return nil, &domain.ConfigurationError{Field: "Embedding.APIKeyEnv", Err: errors.New("API key is empty")}
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultOpenAIURL
	}
	if opts.Provider == "" {
		opts.Provider = "openai"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Dimension <= 0 {
		opts.Dimension = modelDimension(opts.Model)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &OpenAIEmbedder{
		provider:   opts.Provider,
		apiKey:     opts.APIKey,
		model:      opts.Model,
		baseURL:    opts.BaseURL,
		dimension:  opts.Dimension,
		maxRetries: opts.MaxRetries,
		backoff:    200 * time.Millisecond,
		client: &http.Client{
			Timeout: opts.Timeout,
		},
		logger: opts.Logger,
	}, nil
}

// modelDimension returns the known vector size of a model, or 0.
func modelDimension(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "nomic-embed-text":
		return 768
	case "mxbai-embed-large":
		return 1024
	case "all-minilm":
		return 384
	}
	return 0
}

// Embed embeds a single text, retrying transient failures with exponential
// backoff. Auth and malformed-response failures are returned immediately.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			sleep := e.backoff * time.Duration(1<<uint(attempt-1))
			sleep += time.Duration(rand.Int64N(int64(e.backoff)))
			e.logger.Debug("retrying embedding request", "provider", e.provider, "attempt", attempt+1, "sleep", sleep, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, e.wrap(domain.ProviderNetwork, 0, ctx.Err())
			case <-time.After(sleep):
			}
		}

		vec, err := e.embedOnce(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err

		var pe *domain.ProviderError
		if !errors.As(err, &pe) || !pe.Transient() || ctx.Err() != nil {
			return nil, err
		}
		e.logger.Warn("embedding attempt failed", "provider", e.provider, "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

func (e *OpenAIEmbedder) embedOnce(ctx context.Context, text string) ([]float32, error) {
	jsonData, err := json.Marshal(embeddingRequest{Input: []string{text}, Model: e.model})
	if err != nil {
		return nil, e.wrap(domain.ProviderRejected, 0, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, e.wrap(domain.ProviderRejected, 0, fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, e.wrap(domain.ProviderNetwork, 0, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, e.wrap(domain.ProviderNetwork, resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, e.wrap(classifyStatus(resp.StatusCode), resp.StatusCode, fmt.Errorf("API returned: %s", preview(body)))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, e.wrap(domain.ProviderMalformed, resp.StatusCode,
			fmt.Errorf("%w: failed to parse response (body: %s): %v", domain.ErrMalformedResponse, preview(body), err))
	}

	if embResp.Error != nil {
		return nil, e.wrap(domain.ProviderRejected, resp.StatusCode, fmt.Errorf("API error: %s", embResp.Error.Message))
	}

	vec, err := e.validate(embResp)
	if err != nil {
		return nil, e.wrap(domain.ProviderMalformed, resp.StatusCode, err)
	}
	return vec, nil
}

// validate checks the response shape for a single-input request.
func (e *OpenAIEmbedder) validate(resp embeddingResponse) ([]float32, error) {
	if len(resp.Data) != 1 {
		return nil, fmt.Errorf("%w: expected 1 embedding, got %d", domain.ErrMalformedResponse, len(resp.Data))
	}
	data := resp.Data[0]
	if data.Index != 0 {
		return nil, fmt.Errorf("%w: unexpected embedding index %d", domain.ErrMalformedResponse, data.Index)
	}
	if len(data.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", domain.ErrMalformedResponse)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dimension == 0 {
		e.dimension = len(data.Embedding)
		e.logger.Debug("adopted embedding dimension", "model", e.model, "dimension", e.dimension)
	}
	if len(data.Embedding) != e.dimension {
		return nil, fmt.Errorf("%w: %w: expected %d, got %d", domain.ErrMalformedResponse, domain.ErrDimensionMismatch, e.dimension, len(data.Embedding))
	}
	return data.Embedding, nil
}

func (e *OpenAIEmbedder) wrap(kind domain.ProviderErrorKind, status int, err error) error {
	return &domain.ProviderError{Provider: e.provider, Kind: kind, StatusCode: status, Err: err}
}

func classifyStatus(status int) domain.ProviderErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ProviderAuth
	case status == http.StatusTooManyRequests:
		return domain.ProviderQuota
	case status >= 500:
		return domain.ProviderServer
	}
	return domain.ProviderRejected
}

func preview(body []byte) string {
	if len(body) > 200 {
		return string(body[:200])
	}
	return string(body)
}

// Dimension returns the vector size, or 0 while it is still unknown.
func (e *OpenAIEmbedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimension
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}
