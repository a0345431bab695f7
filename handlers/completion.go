package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/upb/ai-gateway/app"
	"github.com/upb/ai-gateway/services/gateway"
	"github.com/upb/ai-gateway/utils"
)

// CompletionRequest is the body of POST /api/v1/complete
type CompletionRequest struct {
	Prompt      string   `json:"prompt" validate:"required"`
	Backend     string   `json:"backend,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty" validate:"gte=0,lte=32000"`
	Temperature *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`

	LowLatency  bool `json:"low_latency,omitempty"`
	LowCost     bool `json:"low_cost,omitempty"`
	HighQuality bool `json:"high_quality,omitempty"`

	NoCache    bool `json:"no_cache,omitempty"`
	NoFailover bool `json:"no_failover,omitempty"`
}

// CompletionHandler routes a prompt through the gateway pipeline
func CompletionHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			_ = utils.WriteBadRequest(w, "invalid JSON body", nil)
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			details := make(map[string]interface{})
			for field, msg := range utils.GetValidationFields(err) {
				details[field] = msg
			}
			_ = utils.WriteBadRequest(w, "validation failed", details)
			return
		}

		opts := gateway.DefaultOptions()
		opts.LowLatency = req.LowLatency
		opts.LowCost = req.LowCost
		opts.HighQuality = req.HighQuality
		if req.NoCache || !deps.Config.Cache.Enabled {
			opts.CacheEnabled = false
		}
		if req.NoFailover || !deps.Config.Gateway.FailoverEnabled {
			opts.FailoverEnabled = false
		}

		resp, err := deps.Gateway.Complete(r.Context(), gateway.Request{
			CallerID:    callerID(r),
			Prompt:      req.Prompt,
			Backend:     req.Backend,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
			Options:     opts,
		})
		if err != nil {
			writeDomainError(w, deps.Logger, err)
			return
		}

		_ = utils.WriteOK(w, resp)
	}
}
