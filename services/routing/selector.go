package routing

import (
	"context"

	"github.com/upb/ai-gateway/services/classify"
	"github.com/upb/ai-gateway/services/health"
	"github.com/upb/ai-gateway/services/registry"
	"go.uber.org/zap"
)

// unavailableScore is the sentinel assigned to backends whose health check
// reports them down. It keeps the ordering total without removing the backend
// from consideration, so selection stays deterministic even when every
// backend is unavailable; the failure surfaces at the completion attempt.
const unavailableScore = -1000

// Requirements are the caller's stated routing preferences
type Requirements struct {
	LowLatency  bool
	LowCost     bool
	HighQuality bool
}

// HealthChecker reports the current health record for a backend
type HealthChecker interface {
	Check(ctx context.Context, backend string) health.Record
}

// Selector scores every registered backend against the prompt's task
// category and the caller's requirements, and picks the best one.
type Selector struct {
	registry   *registry.Registry
	health     HealthChecker
	classifier *classify.Classifier
	logger     *zap.Logger
}

// NewSelector creates a scoring selector
func NewSelector(reg *registry.Registry, hc HealthChecker, cls *classify.Classifier, logger *zap.Logger) *Selector {
	return &Selector{
		registry:   reg,
		health:     hc,
		classifier: cls,
		logger:     logger,
	}
}

// Select picks a backend for the prompt. When explicit names a known profile
// it is returned directly, bypassing scoring. Ties break by registration
// order (first-registered wins), and an all-unavailable registry still yields
// a deterministic choice rather than an error.
func (s *Selector) Select(ctx context.Context, prompt, explicit string, reqs Requirements) *registry.BackendProfile {
	if explicit != "" && explicit != "auto" {
		if p, ok := s.registry.Get(explicit); ok {
			return p
		}
		s.logger.Warn("unknown explicit backend, falling back to scoring",
			zap.String("backend", explicit))
	}

	category := s.classifier.Classify(prompt)

	var best *registry.BackendProfile
	bestScore := 0.0
	for _, p := range s.registry.Profiles() {
		score := s.score(ctx, p, category, reqs, len(prompt))
		if best == nil || score > bestScore {
			best = p
			bestScore = score
		}
	}

	s.logger.Info("selected backend",
		zap.String("backend", best.Name),
		zap.String("category", string(category)),
		zap.Float64("score", bestScore))

	return best
}

// score computes the selection score for one backend
func (s *Selector) score(ctx context.Context, p *registry.BackendProfile, category classify.Category, reqs Requirements, promptLen int) float64 {
	score := 0.0

	if p.HasSpecialty(string(category)) {
		score += 20
	}

	if reqs.HighQuality {
		score += p.QualityScore * 30
	} else {
		score += p.QualityScore * 10
	}

	if reqs.LowLatency {
		latencyScore := 100 - p.AvgLatencyMS/10
		if latencyScore < 0 {
			latencyScore = 0
		}
		score += latencyScore * 0.3
	}

	if reqs.LowCost {
		// Output tokens dominate spend, so the output rate drives the term.
		costScore := 100 - p.OutputCostPerMillion
		if costScore < 0 {
			costScore = 0
		}
		score += costScore * 0.3
	}

	if promptLen > p.ContextWindow/2 {
		if p.ContextWindow >= 1_000_000 {
			score += 15
		} else {
			score -= 20
		}
	}

	rec := s.health.Check(ctx, p.Name)
	if !rec.Available {
		return unavailableScore
	}
	score += rec.SuccessRate * 10

	return score
}

// Available returns the backends whose health check currently reports them
// up, in registration order.
func (s *Selector) Available(ctx context.Context) []*registry.BackendProfile {
	var out []*registry.BackendProfile
	for _, p := range s.registry.Profiles() {
		if s.health.Check(ctx, p.Name).Available {
			out = append(out, p)
		}
	}
	return out
}
