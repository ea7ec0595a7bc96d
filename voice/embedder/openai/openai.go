// Package openai provides an Embedder over any OpenAI-compatible embeddings
// API. Provider rejections are classified into the voice error taxonomy so
// the retry adapter can tell a quota stop from a transient hiccup.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/CylentisAI/Inbox-scout/voice"
)

// Config configures the provider.
type Config struct {
	// BaseURL of the API; defaults to https://api.openai.com/v1.
	BaseURL string

	// APIKey is sent as a Bearer token when set.
	APIKey string

	// Model is the embedding model; defaults to text-embedding-3-small.
	Model string

	// Dimensions of the returned vectors; defaults to 1536.
	Dimensions int

	// Timeout per request; defaults to 30s.
	Timeout time.Duration
}

// Embedder calls the embeddings endpoint.
type Embedder struct {
	cfg    Config
	client *http.Client
}

// New creates the provider.
func New(cfg Config) *Embedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 1536
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Embedder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type embedRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed converts text to an embedding vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", voice.ErrInvalidInput)
	}

	body, err := json.Marshal(embedRequest{Input: text, Model: e.cfg.Model})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", voice.ErrInvalidInput, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", voice.ErrTransient, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", voice.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, classifyStatus(resp.StatusCode, string(b))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", voice.ErrTransient, err)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", voice.ErrTransient)
	}
	return result.Data[0].Embedding, nil
}

// Dimensions returns the configured vector size.
func (e *Embedder) Dimensions() int {
	return e.cfg.Dimensions
}

func classifyStatus(status int, body string) error {
	switch status {
	case http.StatusTooManyRequests, http.StatusPaymentRequired:
		return fmt.Errorf("%w: provider status %d: %s", voice.ErrQuotaExceeded, status, body)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: provider status %d: %s", voice.ErrInvalidInput, status, body)
	default:
		return fmt.Errorf("%w: provider status %d: %s", voice.ErrTransient, status, body)
	}
}
