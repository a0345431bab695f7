package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// EmbedderConfig describes an OpenAI-compatible embeddings endpoint
type EmbedderConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// HTTPEmbedder computes embeddings through a provider API. Vectors are
// normalized to unit length so similarity search can use the inner product.
type HTTPEmbedder struct {
	cfg        EmbedderConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPEmbedder creates an embeddings client
func NewHTTPEmbedder(cfg EmbedderConfig, logger *zap.Logger) *HTTPEmbedder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &HTTPEmbedder{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the unit-length embedding vector for the text
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(embeddingRequest{Model: e.cfg.Model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.cfg.BaseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			Provider:   "embeddings",
			StatusCode: resp.StatusCode,
			Type:       "embedding_error",
			Message:    string(body),
		}
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshaling embedding response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no vectors")
	}

	return normalize(parsed.Data[0].Embedding), nil
}

// HashingEmbedder is a deterministic, network-free embedder that feature-
// hashes the text's words into a fixed-dimension vector. It trades semantic
// quality for zero dependencies, so near-duplicate prompts still match while
// unrelated prompts stay apart.
type HashingEmbedder struct {
	dim int
}

// NewHashingEmbedder creates a hashing embedder. Dimension zero selects 256.
func NewHashingEmbedder(dim int) *HashingEmbedder {
	if dim <= 0 {
		dim = 256
	}
	return &HashingEmbedder{dim: dim}
}

// Embed hashes each lowercased word into a bucket and returns the unit-
// normalized bucket counts.
func (h *HashingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		bucket := xxhash.Sum64String(word) % uint64(h.dim)
		vec[bucket]++
	}
	return normalize(vec), nil
}

// normalize scales the vector to unit length. Zero vectors pass through
// unchanged.
func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}
