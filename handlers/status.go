package handlers

import (
	"net/http"

	"github.com/upb/ai-gateway/app"
	"github.com/upb/ai-gateway/utils"
)

// ProvidersStatusHandler reports every backend's current health
func ProvidersStatusHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteOK(w, map[string]interface{}{
			"backends": deps.Gateway.ProviderStatus(r.Context()),
		})
	}
}

// MetricsHandler returns aggregate request metrics for a time range,
// optionally filtered by backend.
func MetricsHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		timeRange, err := parseTimeRange(r)
		if err != nil {
			_ = utils.WriteBadRequest(w, err.Error(), nil)
			return
		}
		backend := r.URL.Query().Get("backend")
		_ = utils.WriteOK(w, deps.Gateway.Metrics(timeRange, backend))
	}
}

// StatsHandler exposes cache and limiter internals for operators
func StatsHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteOK(w, map[string]interface{}{
			"cache":   deps.Gateway.CacheStats(),
			"limiter": deps.Gateway.LimiterStats(),
			"load":    deps.Gateway.Load(),
		})
	}
}

// HealthCheck reports gateway liveness
func HealthCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteOK(w, deps.Gateway.Health())
	}
}
