package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/ai-gateway/services/health"
	"github.com/upb/ai-gateway/services/registry"
)

// HTTPProber checks backend availability by listing the provider's models
// endpoint. The backend's registry profile maps it to the right provider
// endpoint.
type HTTPProber struct {
	registry   *registry.Registry
	endpoints  map[string]Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPProber creates a prober over the configured provider endpoints
func NewHTTPProber(reg *registry.Registry, endpoints map[string]Config, timeout time.Duration, logger *zap.Logger) *HTTPProber {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProber{
		registry:   reg,
		endpoints:  endpoints,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Probe checks the provider endpoint behind the backend. A 2xx/3xx answer is
// healthy, a 4xx answer counts as degraded but still available, and network
// failures or 5xx answers mark the backend unavailable.
func (p *HTTPProber) Probe(ctx context.Context, backend string) (health.Record, error) {
	profile, ok := p.registry.Get(backend)
	if !ok {
		return health.Record{}, fmt.Errorf("unknown backend %q", backend)
	}
	cfg, ok := p.endpoints[profile.Provider]
	if !ok {
		return health.Record{}, fmt.Errorf("no endpoint configured for provider %q", profile.Provider)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/models", nil)
	if err != nil {
		return health.Record{}, fmt.Errorf("building probe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		return health.Record{}, fmt.Errorf("probing %s: %w", profile.Provider, err)
	}
	defer resp.Body.Close()

	rec := health.Record{
		LatencyMS:  latency,
		ObservedAt: time.Now(),
	}
	switch {
	case resp.StatusCode < 400:
		rec.Available = true
		rec.SuccessRate = 1.0
		rec.Status = "healthy"
	case resp.StatusCode < 500:
		rec.Available = true
		rec.SuccessRate = 0.5
		rec.Status = "degraded"
	default:
		rec.Status = "unavailable"
	}
	return rec, nil
}

// StaticProber reports a fixed health record for every backend. It backs
// deployments that disable active probing.
type StaticProber struct {
	record health.Record
}

// NewStaticProber creates a prober that always answers with a healthy record
func NewStaticProber() *StaticProber {
	return &StaticProber{record: health.Record{
		Available:   true,
		SuccessRate: 1.0,
		Status:      "healthy",
	}}
}

func (s *StaticProber) Probe(_ context.Context, _ string) (health.Record, error) {
	rec := s.record
	rec.ObservedAt = time.Now()
	return rec, nil
}
