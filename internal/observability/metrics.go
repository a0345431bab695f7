package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RequestLabels are the metric dimensions attached to each observation
type RequestLabels struct {
	Backend  string
	Provider string
	Status   string
}

// Metrics records request-level observations. The HTTP layer and the gateway
// share one instance; tests use NewNopMetrics.
type Metrics interface {
	ObserveRequest(labels RequestLabels, latencySeconds float64)
	AddTokens(labels RequestLabels, input, output int)
	AddCost(labels RequestLabels, cost float64)
}

// PrometheusMetrics exports request observations through a prometheus
// registry, served on /metrics.
type PrometheusMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	tokens   *prometheus.CounterVec
	cost     *prometheus.CounterVec
}

// NewPrometheusMetrics registers the gateway metric families on the given
// registerer. A nil registerer uses the default registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "requests_total",
			Help:      "Completed requests by backend, provider and status.",
		}, []string{"backend", "provider", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Request latency by backend.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "provider", "status"}),
		tokens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "tokens_total",
			Help:      "Token throughput by backend and direction.",
		}, []string{"backend", "provider", "direction"}),
		cost: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "cost_usd_total",
			Help:      "Accumulated request cost in USD by backend.",
		}, []string{"backend", "provider"}),
	}
}

func (m *PrometheusMetrics) ObserveRequest(labels RequestLabels, latencySeconds float64) {
	m.requests.WithLabelValues(labels.Backend, labels.Provider, labels.Status).Inc()
	m.latency.WithLabelValues(labels.Backend, labels.Provider, labels.Status).Observe(latencySeconds)
}

func (m *PrometheusMetrics) AddTokens(labels RequestLabels, input, output int) {
	m.tokens.WithLabelValues(labels.Backend, labels.Provider, "input").Add(float64(input))
	m.tokens.WithLabelValues(labels.Backend, labels.Provider, "output").Add(float64(output))
}

func (m *PrometheusMetrics) AddCost(labels RequestLabels, cost float64) {
	m.cost.WithLabelValues(labels.Backend, labels.Provider).Add(cost)
}

// NopMetrics discards every observation
type NopMetrics struct{}

// NewNopMetrics returns a metrics sink that records nothing
func NewNopMetrics() NopMetrics { return NopMetrics{} }

func (NopMetrics) ObserveRequest(RequestLabels, float64) {}
func (NopMetrics) AddTokens(RequestLabels, int, int)     {}
func (NopMetrics) AddCost(RequestLabels, float64)        {}
