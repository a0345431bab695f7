package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/ai-gateway/app"
	"github.com/upb/ai-gateway/config"
)

// upstream fakes an OpenAI-compatible chat completions endpoint
func upstream(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "fake answer"}},
			},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestDeps(t *testing.T, upstreamStatus int, mutate func(*config.Config)) *app.Dependencies {
	t.Helper()
	srv := upstream(t, upstreamStatus)

	cfg := config.Default()
	cfg.Health.Static = true
	// MaxRetries -1 disables client retries so failure tests stay fast.
	for name := range cfg.Providers {
		cfg.Providers[name] = config.Provider{BaseURL: srv.URL, APIKey: "test", MaxRetries: -1}
	}
	if mutate != nil {
		mutate(cfg)
	}

	deps, err := app.NewDependencies(cfg, zap.NewNop())
	require.NoError(t, err)
	return deps
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Caller-ID", "test-caller")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestCompletionHandler_Success(t *testing.T) {
	deps := newTestDeps(t, http.StatusOK, nil)

	rec := doJSON(t, CompletionHandler(deps), http.MethodPost, "/api/v1/complete",
		`{"prompt":"what is a mutex","max_tokens":100}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "fake answer", resp["text"])
	assert.NotEmpty(t, resp["backend"])
	assert.NotEmpty(t, resp["request_id"])
	assert.Equal(t, false, resp["cached"])
	assert.Greater(t, resp["cost"], 0.0)
}

func TestCompletionHandler_Validation(t *testing.T) {
	deps := newTestDeps(t, http.StatusOK, nil)
	handler := CompletionHandler(deps)

	t.Run("missing prompt", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/api/v1/complete", `{"max_tokens":10}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Prompt")
	})

	t.Run("max_tokens too large", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/api/v1/complete",
			`{"prompt":"hi","max_tokens":50000}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("temperature out of range", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/api/v1/complete",
			`{"prompt":"hi","temperature":3.5}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("temperature zero accepted", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/api/v1/complete",
			`{"prompt":"deterministic please","temperature":0}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/api/v1/complete", `{not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCompletionHandler_RateLimited(t *testing.T) {
	deps := newTestDeps(t, http.StatusOK, func(cfg *config.Config) {
		cfg.RateLimit.Burst = 2
		cfg.Cache.Enabled = false
	})
	handler := CompletionHandler(deps)

	for i := 0; i < 2; i++ {
		rec := doJSON(t, handler, http.MethodPost, "/api/v1/complete", `{"prompt":"hi"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/complete", `{"prompt":"hi"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "retry_after_seconds")
}

func TestCompletionHandler_AllBackendsFailed(t *testing.T) {
	deps := newTestDeps(t, http.StatusServiceUnavailable, nil)

	rec := doJSON(t, CompletionHandler(deps), http.MethodPost, "/api/v1/complete",
		`{"prompt":"hi"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCompletionHandler_CachedSecondRequest(t *testing.T) {
	deps := newTestDeps(t, http.StatusOK, nil)
	handler := CompletionHandler(deps)
	body := `{"prompt":"explain the scheduler"}`

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/complete", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/complete", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["cached"])
	assert.Equal(t, 0.0, resp["cost"])
}

func TestProvidersStatusHandler(t *testing.T) {
	deps := newTestDeps(t, http.StatusOK, nil)

	rec := doJSON(t, ProvidersStatusHandler(deps), http.MethodGet, "/api/v1/providers/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Backends []struct {
			Name      string `json:"name"`
			Available bool   `json:"available"`
		} `json:"backends"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Backends, 9)
	assert.True(t, resp.Backends[0].Available)
}

func TestMetricsHandler(t *testing.T) {
	deps := newTestDeps(t, http.StatusOK, nil)
	handler := MetricsHandler(deps)

	t.Run("default range", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/api/v1/metrics", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"time_range":"24h"`)
	})

	t.Run("explicit range", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/api/v1/metrics?time_range=1h", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"time_range":"1h"`)
	})

	t.Run("invalid range", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/api/v1/metrics?time_range=2h", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCostHandlers(t *testing.T) {
	deps := newTestDeps(t, http.StatusOK, nil)

	t.Run("report", func(t *testing.T) {
		rec := doJSON(t, CostReportHandler(deps), http.MethodGet, "/api/v1/costs/report?time_range=7d", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"time_range":"7d"`)
	})

	t.Run("report invalid range", func(t *testing.T) {
		rec := doJSON(t, CostReportHandler(deps), http.MethodGet, "/api/v1/costs/report?time_range=x", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("predict", func(t *testing.T) {
		rec := doJSON(t, CostPredictHandler(deps), http.MethodPost, "/api/v1/costs/predict",
			`{"prompt_tokens":1000,"expected_output_tokens":500,"model":"gpt-5"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Predictions []struct {
				Model     string  `json:"model"`
				TotalCost float64 `json:"total_cost"`
			} `json:"predictions"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Predictions, 1)
		assert.Equal(t, "gpt-5", resp.Predictions[0].Model)
		assert.InDelta(t, 10.5, resp.Predictions[0].TotalCost, 1e-9)
	})

	t.Run("predict rejects negatives", func(t *testing.T) {
		rec := doJSON(t, CostPredictHandler(deps), http.MethodPost, "/api/v1/costs/predict",
			`{"prompt_tokens":-1}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("recommendations", func(t *testing.T) {
		rec := doJSON(t, CostRecommendationsHandler(deps), http.MethodPost, "/api/v1/costs/recommendations",
			`{"current_usage":{"o3":100}}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "switch_model")
	})

	t.Run("recommendations with empty body", func(t *testing.T) {
		rec := doJSON(t, CostRecommendationsHandler(deps), http.MethodPost, "/api/v1/costs/recommendations", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestStatsHandler(t *testing.T) {
	deps := newTestDeps(t, http.StatusOK, nil)

	rec := doJSON(t, StatsHandler(deps), http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cache")
	assert.Contains(t, rec.Body.String(), "limiter")
}

func TestHealthCheck(t *testing.T) {
	deps := newTestDeps(t, http.StatusOK, nil)

	rec := doJSON(t, HealthCheck(deps), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"version":"1.0.0"`)
}
