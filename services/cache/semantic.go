package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

const (
	// DefaultThreshold is the minimum inner-product similarity for a hit
	DefaultThreshold = 0.95

	// DefaultTTL is how long an entry stays servable
	DefaultTTL = 24 * time.Hour
)

// Embedder computes a fixed-dimension unit vector for a text. The gateway
// treats embedding as an injected capability; tests use deterministic fakes.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Entry is a cached prompt/response pair together with its embedding
type Entry struct {
	Prompt    string
	Response  string
	Backend   string
	LatencyMS float64
	Embedding []float32
	StoredAt  time.Time
	Metadata  map[string]string
}

// Match is a successful similarity lookup
type Match struct {
	Entry      *Entry
	Similarity float32
}

// Stats summarizes the cache contents
type Stats struct {
	Entries   int
	ByBackend map[string]int
	Threshold float32
	TTL       time.Duration
}

// SemanticCache stores prompt/response pairs indexed by embedding similarity.
// An entry and its vector are always inserted and removed together under one
// mutex, so the key map and the similarity index cannot drift apart.
type SemanticCache struct {
	embedder  Embedder
	threshold float32
	ttl       time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	entries map[uint64]*Entry
	index   *vectorIndex
	dim     int
}

// New creates a semantic cache. Zero threshold or TTL select the defaults.
func New(embedder Embedder, threshold float32, ttl time.Duration, logger *zap.Logger) *SemanticCache {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SemanticCache{
		embedder:  embedder,
		threshold: threshold,
		ttl:       ttl,
		logger:    logger,
		entries:   make(map[uint64]*Entry),
		index:     newVectorIndex(),
	}
}

// Key derives the deterministic cache key for a prompt/backend pair
func Key(prompt, backend string) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(prompt)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(backend)
	return h.Sum64()
}

// Lookup finds the single most similar cached entry for the prompt. A zero
// threshold selects the cache default. Expired matches are removed and
// reported as a miss; a miss returns (nil, nil).
func (c *SemanticCache) Lookup(ctx context.Context, prompt string, threshold float32) (*Match, error) {
	if threshold <= 0 {
		threshold = c.threshold
	}

	c.mu.Lock()
	empty := len(c.entries) == 0
	c.mu.Unlock()
	if empty {
		return nil, nil
	}

	query, err := c.embedder.Embed(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key, similarity, ok := c.index.Search(query)
	if !ok || similarity < threshold {
		return nil, nil
	}

	entry, ok := c.entries[key]
	if !ok {
		// Unreachable while the shared-mutex invariant holds.
		c.index.Remove(key)
		return nil, nil
	}

	if time.Since(entry.StoredAt) > c.ttl {
		c.removeLocked(key)
		return nil, nil
	}

	c.logger.Debug("semantic cache hit",
		zap.Float32("similarity", similarity),
		zap.String("backend", entry.Backend))

	return &Match{Entry: entry, Similarity: similarity}, nil
}

// Store embeds the prompt and inserts the entry, overwriting any previous
// entry for the same prompt/backend pair. Every store also sweeps expired
// entries.
func (c *SemanticCache) Store(ctx context.Context, prompt, response, backend string, latencyMS float64, metadata map[string]string) error {
	vec, err := c.embedder.Embed(ctx, prompt)
	if err != nil {
		return fmt.Errorf("embedding prompt: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dim == 0 {
		c.dim = len(vec)
	} else if len(vec) != c.dim {
		return fmt.Errorf("embedding dimension %d does not match index dimension %d", len(vec), c.dim)
	}

	key := Key(prompt, backend)
	c.entries[key] = &Entry{
		Prompt:    prompt,
		Response:  response,
		Backend:   backend,
		LatencyMS: latencyMS,
		Embedding: vec,
		StoredAt:  time.Now(),
		Metadata:  metadata,
	}
	c.index.Add(key, vec)

	c.sweepExpiredLocked()
	return nil
}

// Stats returns a snapshot of the cache contents
func (c *SemanticCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	byBackend := make(map[string]int)
	for _, e := range c.entries {
		byBackend[e.Backend]++
	}
	return Stats{
		Entries:   len(c.entries),
		ByBackend: byBackend,
		Threshold: c.threshold,
		TTL:       c.ttl,
	}
}

// Clear drops every entry and vector
func (c *SemanticCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]*Entry)
	c.index = newVectorIndex()
}

func (c *SemanticCache) removeLocked(key uint64) {
	delete(c.entries, key)
	c.index.Remove(key)
}

func (c *SemanticCache) sweepExpiredLocked() {
	var expired []uint64
	for key, e := range c.entries {
		if time.Since(e.StoredAt) > c.ttl {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		c.removeLocked(key)
	}
	if len(expired) > 0 {
		c.logger.Debug("swept expired cache entries", zap.Int("count", len(expired)))
	}
}
