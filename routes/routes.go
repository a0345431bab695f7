package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/upb/ai-gateway/app"
	"github.com/upb/ai-gateway/handlers"
)

// SetupRoutes configures all gateway routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(deps.Config.Gateway.CompletionTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Caller-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", handlers.HealthCheck(deps))

	if deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(deps.PromRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/complete", handlers.CompletionHandler(deps))
		r.Get("/providers/status", handlers.ProvidersStatusHandler(deps))
		r.Get("/metrics", handlers.MetricsHandler(deps))
		r.Get("/stats", handlers.StatsHandler(deps))

		r.Route("/costs", func(r chi.Router) {
			r.Get("/report", handlers.CostReportHandler(deps))
			r.Post("/predict", handlers.CostPredictHandler(deps))
			r.Post("/recommendations", handlers.CostRecommendationsHandler(deps))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
