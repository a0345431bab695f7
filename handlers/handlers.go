package handlers

import (
	"errors"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/ai-gateway/services"
	"github.com/upb/ai-gateway/utils"
)

// timeRanges are the reporting windows every aggregation endpoint accepts
var timeRanges = []string{"1h", "24h", "7d", "30d"}

// callerID identifies the client for rate limiting. Callers set X-Caller-ID;
// anonymous clients fall back to their IP.
func callerID(r *http.Request) string {
	if id := r.Header.Get("X-Caller-ID"); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeDomainError maps service errors onto HTTP status codes
func writeDomainError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var de *services.DomainError
	if !errors.As(err, &de) {
		logger.Error("unclassified error", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	switch de.Type {
	case services.ErrorTypeRateLimit:
		retry, _ := services.RetryAfter(err)
		_ = utils.WriteTooManyRequests(w, retry, de.Message)
	case services.ErrorTypeValidation:
		_ = utils.WriteBadRequest(w, de.Message, de.Details)
	case services.ErrorTypeBackendUnavailable:
		_ = utils.WriteServiceUnavailable(w, de.Message)
	case services.ErrorTypeCompletionFailure, services.ErrorTypeAllBackendsFailed:
		_ = utils.WriteBadGateway(w, de.Message)
	default:
		logger.Error("internal error", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
	}
}

// parseTimeRange validates the time_range query parameter, defaulting to 24h
func parseTimeRange(r *http.Request) (string, error) {
	timeRange := r.URL.Query().Get("time_range")
	if timeRange == "" {
		return "24h", nil
	}
	if err := utils.ValidateOneOf(timeRange, "time_range", timeRanges); err != nil {
		return "", err
	}
	return timeRange, nil
}
