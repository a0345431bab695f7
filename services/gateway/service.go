package gateway

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/ai-gateway/internal/observability"
	"github.com/upb/ai-gateway/services"
	"github.com/upb/ai-gateway/services/cache"
	"github.com/upb/ai-gateway/services/cost"
	"github.com/upb/ai-gateway/services/health"
	"github.com/upb/ai-gateway/services/metrics"
	"github.com/upb/ai-gateway/services/ratelimit"
	"github.com/upb/ai-gateway/services/registry"
	"github.com/upb/ai-gateway/services/routing"
)

// Version is reported on the health endpoint
const Version = "1.0.0"

const (
	defaultMaxTokens   = 1000
	defaultTemperature = 0.7
)

// CompletionRequest is what the gateway sends to an upstream provider
type CompletionRequest struct {
	Provider    string
	Backend     string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// CompletionResult is the upstream provider's answer. Token counts of zero
// are estimated from the text.
type CompletionResult struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// CompletionClient performs the actual upstream call. Production wiring uses
// a per-provider HTTP mux; tests inject fakes.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
}

// Request is one caller request into the gateway. A nil Temperature means
// the caller left it unset; zero is a deliberate choice.
type Request struct {
	CallerID    string
	Prompt      string
	Backend     string
	MaxTokens   int
	Temperature *float64
	Options     Options
}

// Response is the gateway's answer, with routing and cost attribution
type Response struct {
	RequestID    string  `json:"request_id"`
	Text         string  `json:"text"`
	Backend      string  `json:"backend"`
	Provider     string  `json:"provider"`
	Cached       bool    `json:"cached"`
	Similarity   float32 `json:"similarity,omitempty"`
	Cost         float64 `json:"cost"`
	LatencyMS    float64 `json:"latency_ms"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Attempts     int     `json:"attempts"`
}

// Service orchestrates the request pipeline: admission, cache lookup, backend
// selection, the upstream call with failover, and cost/metrics attribution.
type Service struct {
	registry    *registry.Registry
	selector    *routing.Selector
	cache       *cache.SemanticCache
	limiter     *ratelimit.Limiter
	accountant  *cost.Accountant
	collector   *metrics.Collector
	monitor     *health.Monitor
	client      CompletionClient
	promMetrics observability.Metrics
	logger      *zap.Logger

	inflight atomic.Int64
	capacity int64
}

// NewService wires the gateway pipeline. Capacity is the concurrency level
// treated as full load for the adaptive limiter.
func NewService(
	reg *registry.Registry,
	selector *routing.Selector,
	respCache *cache.SemanticCache,
	limiter *ratelimit.Limiter,
	accountant *cost.Accountant,
	collector *metrics.Collector,
	monitor *health.Monitor,
	client CompletionClient,
	promMetrics observability.Metrics,
	capacity int,
	logger *zap.Logger,
) *Service {
	if capacity <= 0 {
		capacity = 100
	}
	return &Service{
		registry:    reg,
		selector:    selector,
		cache:       respCache,
		limiter:     limiter,
		accountant:  accountant,
		collector:   collector,
		monitor:     monitor,
		client:      client,
		promMetrics: promMetrics,
		capacity:    int64(capacity),
		logger:      logger,
	}
}

// Complete runs one request through the full pipeline
func (s *Service) Complete(ctx context.Context, req Request) (*Response, error) {
	s.inflight.Add(1)
	defer s.inflight.Add(-1)

	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}
	if req.Temperature == nil {
		v := defaultTemperature
		req.Temperature = &v
	}

	requestID := uuid.NewString()

	if !s.limiter.Allow(req.CallerID) {
		s.collector.RecordRateLimited()
		return nil, services.NewRateLimitError(s.limiter.RetryAfter(req.CallerID))
	}
	s.limiter.RecordRequest(req.CallerID)

	if req.Options.CacheEnabled {
		match, err := s.cache.Lookup(ctx, req.Prompt, 0)
		if err != nil {
			s.logger.Warn("cache lookup failed", zap.Error(err))
		} else if match != nil {
			s.collector.RecordCacheHit()
			s.collector.RecordRequest(metrics.Sample{
				Backend:  match.Entry.Backend,
				Provider: s.providerOf(match.Entry.Backend),
				Success:  true,
				Cached:   true,
			})
			s.promMetrics.ObserveRequest(observability.RequestLabels{
				Backend:  match.Entry.Backend,
				Provider: s.providerOf(match.Entry.Backend),
				Status:   "cached",
			}, 0)
			return &Response{
				RequestID:  requestID,
				Text:       match.Entry.Response,
				Backend:    match.Entry.Backend,
				Provider:   s.providerOf(match.Entry.Backend),
				Cached:     true,
				Similarity: match.Similarity,
				Cost:       0,
			}, nil
		} else {
			s.collector.RecordCacheMiss()
		}
	}

	profile := s.selector.Select(ctx, req.Prompt, req.Backend, req.Options.Requirements)

	resp, err := s.attempt(ctx, req, profile)
	if err == nil {
		resp.RequestID = requestID
		resp.Attempts = 1
		s.storeInCache(ctx, req, resp)
		return resp, nil
	}

	if !req.Options.FailoverEnabled {
		return nil, err
	}

	s.logger.Warn("primary backend failed, starting failover",
		zap.String("backend", profile.Name),
		zap.Error(err))

	resp, attempts, ferr := s.failover(ctx, req, profile.Name)
	if ferr != nil {
		return nil, ferr
	}
	resp.RequestID = requestID
	resp.Attempts = attempts + 1
	s.storeInCache(ctx, req, resp)
	return resp, nil
}

// attempt performs one upstream call against a specific backend and settles
// its cost and metrics.
func (s *Service) attempt(ctx context.Context, req Request, profile *registry.BackendProfile) (*Response, error) {
	start := time.Now()
	result, err := s.client.Complete(ctx, CompletionRequest{
		Provider:    profile.Provider,
		Backend:     profile.Name,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: *req.Temperature,
	})
	latency := time.Since(start)

	labels := observability.RequestLabels{Backend: profile.Name, Provider: profile.Provider}

	if err != nil {
		labels.Status = "error"
		s.promMetrics.ObserveRequest(labels, latency.Seconds())
		s.collector.RecordRequest(metrics.Sample{
			Backend:   profile.Name,
			Provider:  profile.Provider,
			LatencyMS: float64(latency.Milliseconds()),
			Success:   false,
		})
		return nil, services.NewCompletionError(profile.Name, err)
	}

	inTokens := result.InputTokens
	if inTokens == 0 {
		inTokens = estimateTokens(req.Prompt)
	}
	outTokens := result.OutputTokens
	if outTokens == 0 {
		outTokens = estimateTokens(result.Text)
	}

	requestCost := s.accountant.Calculate(profile.Provider, profile.Name, inTokens, outTokens)

	labels.Status = "success"
	s.promMetrics.ObserveRequest(labels, latency.Seconds())
	s.promMetrics.AddTokens(labels, inTokens, outTokens)
	s.promMetrics.AddCost(labels, requestCost)
	s.collector.RecordRequest(metrics.Sample{
		Backend:   profile.Name,
		Provider:  profile.Provider,
		LatencyMS: float64(latency.Milliseconds()),
		Cost:      requestCost,
		Success:   true,
	})

	return &Response{
		Text:         result.Text,
		Backend:      profile.Name,
		Provider:     profile.Provider,
		Cost:         requestCost,
		LatencyMS:    float64(latency.Milliseconds()),
		InputTokens:  inTokens,
		OutputTokens: outTokens,
	}, nil
}

// failover walks the remaining available backends in registration order,
// skipping the one that just failed. It returns the number of extra attempts
// made.
func (s *Service) failover(ctx context.Context, req Request, failed string) (*Response, int, error) {
	attempts := 0
	for _, p := range s.selector.Available(ctx) {
		if p.Name == failed {
			continue
		}
		attempts++
		resp, err := s.attempt(ctx, req, p)
		if err == nil {
			return resp, attempts, nil
		}
		s.logger.Warn("failover attempt failed",
			zap.String("backend", p.Name),
			zap.Error(err))
	}
	return nil, attempts, services.NewAllBackendsFailedError(failed)
}

func (s *Service) storeInCache(ctx context.Context, req Request, resp *Response) {
	if !req.Options.CacheEnabled {
		return
	}
	if err := s.cache.Store(ctx, req.Prompt, resp.Text, resp.Backend, resp.LatencyMS, nil); err != nil {
		s.logger.Warn("cache store failed", zap.Error(err))
	}
}

func (s *Service) providerOf(backend string) string {
	if p, ok := s.registry.Get(backend); ok {
		return p.Provider
	}
	return ""
}

// estimateTokens approximates a token count when the provider reports none
func estimateTokens(text string) int {
	return len(strings.Fields(text))
}

// BackendStatus is one backend's row in the status report
type BackendStatus struct {
	Name        string  `json:"name"`
	Provider    string  `json:"provider"`
	Available   bool    `json:"available"`
	Status      string  `json:"status"`
	LatencyMS   float64 `json:"latency_ms"`
	SuccessRate float64 `json:"success_rate"`
	HealthScore float64 `json:"health_score"`
}

// ProviderStatus reports every registered backend's current health
func (s *Service) ProviderStatus(ctx context.Context) []BackendStatus {
	out := make([]BackendStatus, 0, s.registry.Len())
	for _, p := range s.registry.Profiles() {
		rec := s.monitor.Check(ctx, p.Name)
		out = append(out, BackendStatus{
			Name:        p.Name,
			Provider:    p.Provider,
			Available:   rec.Available,
			Status:      rec.Status,
			LatencyMS:   rec.LatencyMS,
			SuccessRate: rec.SuccessRate,
			HealthScore: s.collector.HealthScore(p.Name),
		})
	}
	return out
}

// Metrics returns the aggregate request metrics for a time range
func (s *Service) Metrics(timeRange, backend string) metrics.Snapshot {
	return s.collector.GetSnapshot(timeRange, backend)
}

// CostReport returns the cost breakdown for a time range
func (s *Service) CostReport(timeRange string) cost.Report {
	return s.accountant.GenerateReport(timeRange)
}

// PredictCost estimates request cost before sending
func (s *Service) PredictCost(promptTokens, expectedOutput int, model string) []cost.Prediction {
	return s.accountant.Predict(promptTokens, expectedOutput, model)
}

// CostRecommendations suggests cheaper configurations for current usage
func (s *Service) CostRecommendations(currentUsage map[string]int) []cost.Recommendation {
	return s.accountant.Recommend(currentUsage)
}

// CacheStats exposes the response cache contents
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// LimiterStats exposes limiter-wide admission state
func (s *Service) LimiterStats() ratelimit.GlobalStats {
	return s.limiter.Global()
}

// HealthInfo is the liveness payload
type HealthInfo struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Backends  int       `json:"backends"`
}

// Health reports gateway liveness
func (s *Service) Health() HealthInfo {
	return HealthInfo{
		Status:    "ok",
		Version:   Version,
		Timestamp: time.Now().UTC(),
		Backends:  s.registry.Len(),
	}
}

// Load returns the current in-flight fraction of capacity
func (s *Service) Load() float64 {
	return float64(s.inflight.Load()) / float64(s.capacity)
}

// StartLoadMonitor periodically feeds the in-flight load fraction into the
// adaptive rate limiter until the context is cancelled.
func (s *Service) StartLoadMonitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.limiter.UpdateLoad(s.Load())
			}
		}
	}()
}
