package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/ai-gateway/services/classify"
	"github.com/upb/ai-gateway/services/health"
	"github.com/upb/ai-gateway/services/registry"
	"go.uber.org/zap"
)

// stubHealth reports configurable availability per backend, defaulting to
// healthy with a perfect success rate.
type stubHealth struct {
	down        map[string]bool
	successRate map[string]float64
}

func (s *stubHealth) Check(_ context.Context, backend string) health.Record {
	if s.down[backend] {
		return health.Record{Available: false, Status: "unreachable"}
	}
	rate := 1.0
	if r, ok := s.successRate[backend]; ok {
		rate = r
	}
	return health.Record{Available: true, SuccessRate: rate, Status: "healthy"}
}

func newTestSelector(t *testing.T, profiles []registry.BackendProfile, hc HealthChecker) *Selector {
	t.Helper()
	reg, err := registry.New(profiles)
	require.NoError(t, err)
	return NewSelector(reg, hc, classify.New(), zap.NewNop())
}

func TestSelect_ExplicitBackendBypassesScoring(t *testing.T) {
	sel := newTestSelector(t, registry.DefaultCatalog(), &stubHealth{})

	// Explicit selection wins even when the requirements would favor others.
	p := sel.Select(context.Background(), "anything", "grok-4", Requirements{LowCost: true, LowLatency: true})
	assert.Equal(t, "grok-4", p.Name)
}

func TestSelect_UnknownExplicitFallsBackToScoring(t *testing.T) {
	sel := newTestSelector(t, registry.DefaultCatalog(), &stubHealth{})

	p := sel.Select(context.Background(), "hello", "no-such-model", Requirements{})
	assert.NotNil(t, p)
	assert.NotEqual(t, "no-such-model", p.Name)
}

func TestSelect_SpecialtyBonusWins(t *testing.T) {
	profiles := []registry.BackendProfile{
		{Name: "generalist", Provider: "a", ContextWindow: 100000, QualityScore: 0.90},
		{Name: "coder", Provider: "b", ContextWindow: 100000, QualityScore: 0.90, Specialties: []string{"code"}},
	}
	sel := newTestSelector(t, profiles, &stubHealth{})

	p := sel.Select(context.Background(), "Write a function to reverse a string", "auto", Requirements{})
	assert.Equal(t, "coder", p.Name)
}

func TestSelect_HighQualityWeighting(t *testing.T) {
	profiles := []registry.BackendProfile{
		// Faster but much lower quality. With LowLatency alone the latency
		// spread (9 points at x0.3) beats the quality gap at x10 (4.9), but
		// loses once HighQuality raises the gap to x30 (14.7).
		{Name: "budget", Provider: "a", ContextWindow: 100000, QualityScore: 0.50, AvgLatencyMS: 400},
		{Name: "premium", Provider: "b", ContextWindow: 100000, QualityScore: 0.99, AvgLatencyMS: 700},
	}
	sel := newTestSelector(t, profiles, &stubHealth{})

	p := sel.Select(context.Background(), "hello", "auto", Requirements{LowLatency: true})
	assert.Equal(t, "budget", p.Name)

	p = sel.Select(context.Background(), "hello", "auto", Requirements{LowLatency: true, HighQuality: true})
	assert.Equal(t, "premium", p.Name)
}

func TestSelect_LowLatencyAndLowCost(t *testing.T) {
	profiles := []registry.BackendProfile{
		{Name: "slow-expensive", Provider: "a", ContextWindow: 100000, QualityScore: 0.9, AvgLatencyMS: 1000, OutputCostPerMillion: 90},
		{Name: "fast-cheap", Provider: "b", ContextWindow: 100000, QualityScore: 0.85, AvgLatencyMS: 100, OutputCostPerMillion: 1},
	}
	sel := newTestSelector(t, profiles, &stubHealth{})

	p := sel.Select(context.Background(), "hello", "auto", Requirements{LowLatency: true, LowCost: true})
	assert.Equal(t, "fast-cheap", p.Name)
}

func TestSelect_ContextWindowAdjustment(t *testing.T) {
	longPrompt := make([]byte, 600)
	for i := range longPrompt {
		longPrompt[i] = 'x'
	}

	profiles := []registry.BackendProfile{
		// Prompt exceeds half this window: -20.
		{Name: "small-window", Provider: "a", ContextWindow: 1000, QualityScore: 0.95},
		{Name: "roomy", Provider: "b", ContextWindow: 100000, QualityScore: 0.90},
	}
	sel := newTestSelector(t, profiles, &stubHealth{})

	p := sel.Select(context.Background(), string(longPrompt), "auto", Requirements{})
	assert.Equal(t, "roomy", p.Name)
}

func TestSelect_LongContextReward(t *testing.T) {
	prompt := make([]byte, 600_000)
	for i := range prompt {
		prompt[i] = 'x'
	}

	profiles := []registry.BackendProfile{
		{Name: "huge-window", Provider: "a", ContextWindow: 1_000_000, QualityScore: 0.85},
		{Name: "regular", Provider: "b", ContextWindow: 2_000_000, QualityScore: 0.90},
	}
	sel := newTestSelector(t, profiles, &stubHealth{})

	// Both have >=1M windows but only huge-window crosses the half-window
	// threshold, earning +15 that outweighs the 0.5 quality gap.
	p := sel.Select(context.Background(), string(prompt), "auto", Requirements{})
	assert.Equal(t, "huge-window", p.Name)
}

func TestSelect_UnavailableBackendExcluded(t *testing.T) {
	profiles := []registry.BackendProfile{
		{Name: "best", Provider: "a", ContextWindow: 100000, QualityScore: 0.99},
		{Name: "backup", Provider: "b", ContextWindow: 100000, QualityScore: 0.70},
	}
	hc := &stubHealth{down: map[string]bool{"best": true}}
	sel := newTestSelector(t, profiles, hc)

	p := sel.Select(context.Background(), "hello", "auto", Requirements{HighQuality: true})
	assert.Equal(t, "backup", p.Name)
}

func TestSelect_AllUnavailableStillDeterministic(t *testing.T) {
	profiles := []registry.BackendProfile{
		{Name: "first", Provider: "a", ContextWindow: 100000, QualityScore: 0.5},
		{Name: "second", Provider: "b", ContextWindow: 100000, QualityScore: 0.9},
	}
	hc := &stubHealth{down: map[string]bool{"first": true, "second": true}}
	sel := newTestSelector(t, profiles, hc)

	// Sentinel scoring keeps the ordering total; first-registered wins.
	for i := 0; i < 5; i++ {
		p := sel.Select(context.Background(), "hello", "auto", Requirements{})
		assert.Equal(t, "first", p.Name)
	}
}

func TestSelect_SuccessRateBreaksNearTies(t *testing.T) {
	profiles := []registry.BackendProfile{
		{Name: "flaky", Provider: "a", ContextWindow: 100000, QualityScore: 0.9},
		{Name: "steady", Provider: "b", ContextWindow: 100000, QualityScore: 0.9},
	}
	hc := &stubHealth{successRate: map[string]float64{"flaky": 0.5, "steady": 1.0}}
	sel := newTestSelector(t, profiles, hc)

	p := sel.Select(context.Background(), "hello", "auto", Requirements{})
	assert.Equal(t, "steady", p.Name)
}

func TestAvailable_FiltersAndPreservesOrder(t *testing.T) {
	profiles := []registry.BackendProfile{
		{Name: "one", Provider: "a", ContextWindow: 1000},
		{Name: "two", Provider: "b", ContextWindow: 1000},
		{Name: "three", Provider: "c", ContextWindow: 1000},
	}
	hc := &stubHealth{down: map[string]bool{"two": true}}
	sel := newTestSelector(t, profiles, hc)

	var names []string
	for _, p := range sel.Available(context.Background()) {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"one", "three"}, names)
}
