package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/upb/ai-gateway/app"
	"github.com/upb/ai-gateway/utils"
)

// CostReportHandler returns the cost breakdown for a time range
func CostReportHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		timeRange, err := parseTimeRange(r)
		if err != nil {
			_ = utils.WriteBadRequest(w, err.Error(), nil)
			return
		}
		_ = utils.WriteOK(w, deps.Gateway.CostReport(timeRange))
	}
}

// CostPredictRequest is the body of POST /api/v1/costs/predict
type CostPredictRequest struct {
	PromptTokens         int    `json:"prompt_tokens" validate:"gte=0"`
	ExpectedOutputTokens int    `json:"expected_output_tokens" validate:"gte=0"`
	Model                string `json:"model,omitempty"`
}

// CostPredictHandler estimates request cost before sending
func CostPredictHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CostPredictRequest
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

		_ = utils.WriteOK(w, map[string]interface{}{
			"predictions": deps.Gateway.PredictCost(req.PromptTokens, req.ExpectedOutputTokens, req.Model),
		})
	}
}

// CostRecommendationsRequest is the body of POST /api/v1/costs/recommendations
type CostRecommendationsRequest struct {
	CurrentUsage map[string]int `json:"current_usage"`
}

// CostRecommendationsHandler suggests cheaper configurations
func CostRecommendationsHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CostRecommendationsRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				_ = utils.WriteBadRequest(w, "invalid JSON body", nil)
				return
			}
		}

		_ = utils.WriteOK(w, map[string]interface{}{
			"recommendations": deps.Gateway.CostRecommendations(req.CurrentUsage),
		})
	}
}
