package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/upb/ai-gateway/config"
	"github.com/upb/ai-gateway/internal/observability"
	"github.com/upb/ai-gateway/services/cache"
	"github.com/upb/ai-gateway/services/classify"
	"github.com/upb/ai-gateway/services/cost"
	"github.com/upb/ai-gateway/services/gateway"
	"github.com/upb/ai-gateway/services/health"
	"github.com/upb/ai-gateway/services/metrics"
	"github.com/upb/ai-gateway/services/providers"
	"github.com/upb/ai-gateway/services/ratelimit"
	"github.com/upb/ai-gateway/services/registry"
	"github.com/upb/ai-gateway/services/routing"
)

// Dependencies is the central wiring point for the gateway. Everything the
// HTTP layer needs hangs off this struct.
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	Registry   *registry.Registry
	Monitor    *health.Monitor
	Selector   *routing.Selector
	Cache      *cache.SemanticCache
	Limiter    *ratelimit.Limiter
	Accountant *cost.Accountant
	Collector  *metrics.Collector
	Gateway    *gateway.Service

	PromRegistry *prometheus.Registry
}

// NewDependencies creates and wires all gateway services
func NewDependencies(cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	reg, err := registry.New(cfg.BackendProfiles())
	if err != nil {
		return nil, fmt.Errorf("building backend registry: %w", err)
	}
	deps.Registry = reg

	endpoints := providerEndpoints(cfg)
	deps.Monitor = health.NewMonitor(newProber(cfg, reg, endpoints, logger), cfg.Health.Freshness, logger)
	deps.Selector = routing.NewSelector(reg, deps.Monitor, classify.New(), logger)

	embedder, err := newEmbedder(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("building embedder: %w", err)
	}
	deps.Cache = cache.New(embedder, cfg.Cache.Threshold, cfg.Cache.TTL, logger)

	deps.Limiter = ratelimit.NewLimiter(cfg.RateLimit.LimiterConfig(), logger)
	deps.Accountant = cost.NewAccountant(nil, logger)
	deps.Collector = metrics.NewCollector(logger)

	deps.PromRegistry = prometheus.NewRegistry()
	var promMetrics observability.Metrics = observability.NewNopMetrics()
	if cfg.Observability.MetricsEnabled {
		promMetrics = observability.NewPrometheusMetrics(deps.PromRegistry)
	}

	deps.Gateway = gateway.NewService(
		reg,
		deps.Selector,
		deps.Cache,
		deps.Limiter,
		deps.Accountant,
		deps.Collector,
		deps.Monitor,
		newCompletionMux(cfg, endpoints, logger),
		promMetrics,
		cfg.Gateway.MaxConcurrent,
		logger,
	)

	logger.Info("dependencies initialized",
		zap.Int("backends", reg.Len()),
		zap.Strings("providers", reg.Providers()))
	return deps, nil
}

// Close flushes the logger
func (d *Dependencies) Close() {
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}
}

func providerEndpoints(cfg *config.Config) map[string]providers.Config {
	endpoints := make(map[string]providers.Config, len(cfg.Providers))
	for name, p := range cfg.Providers {
		endpoints[name] = providers.Config{
			Name:       name,
			BaseURL:    p.BaseURL,
			APIKey:     p.APIKey,
			Timeout:    p.Timeout,
			MaxRetries: p.MaxRetries,
		}
	}
	return endpoints
}

func newCompletionMux(cfg *config.Config, endpoints map[string]providers.Config, logger *zap.Logger) *providers.Mux {
	clients := make(map[string]gateway.CompletionClient, len(endpoints))
	for name, endpoint := range endpoints {
		clients[name] = providers.NewClient(endpoint, logger)
	}
	return providers.NewMux(clients)
}

func newProber(cfg *config.Config, reg *registry.Registry, endpoints map[string]providers.Config, logger *zap.Logger) health.Prober {
	if cfg.Health.Static {
		return providers.NewStaticProber()
	}
	return providers.NewHTTPProber(reg, endpoints, cfg.Health.ProbeTimeout, logger)
}

func newEmbedder(cfg *config.Config, logger *zap.Logger) (cache.Embedder, error) {
	switch cfg.Embeddings.Kind {
	case "http":
		return providers.NewHTTPEmbedder(providers.EmbedderConfig{
			BaseURL: cfg.Embeddings.BaseURL,
			APIKey:  cfg.Embeddings.APIKey,
			Model:   cfg.Embeddings.Model,
		}, logger), nil
	case "hashing", "":
		return providers.NewHashingEmbedder(cfg.Embeddings.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embeddings kind %q", cfg.Embeddings.Kind)
	}
}
