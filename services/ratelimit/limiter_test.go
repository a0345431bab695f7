package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLimiter(cfg Config) *Limiter {
	return NewLimiter(cfg, zap.NewNop())
}

func TestLimiter_BurstCeiling(t *testing.T) {
	l := newTestLimiter(Config{RequestsPerMinute: 100, RequestsPerHour: 1000, Burst: 10})

	for i := 0; i < 10; i++ {
		require.True(t, l.Allow("alice"), "request %d should be admitted", i+1)
		l.RecordRequest("alice")
	}

	assert.False(t, l.Allow("alice"), "11th request must be rejected")
	assert.Greater(t, l.RetryAfter("alice"), 0)
}

func TestLimiter_BurstUnaffectedByLoad(t *testing.T) {
	l := newTestLimiter(Config{RequestsPerMinute: 100, RequestsPerHour: 1000, Burst: 5})

	// Low load raises rpm/rph, but the burst ceiling stays hard.
	l.UpdateLoad(0.1)
	for i := 0; i < 5; i++ {
		require.True(t, l.Allow("bob"))
		l.RecordRequest("bob")
	}
	assert.False(t, l.Allow("bob"))
}

func TestLimiter_RPMLimitScalesWithLoad(t *testing.T) {
	l := newTestLimiter(Config{RequestsPerMinute: 10, RequestsPerHour: 1000, Burst: 100})

	// load > 0.8 halves the rpm limit: 10 -> 5.
	l.UpdateLoad(0.9)
	for i := 0; i < 5; i++ {
		require.True(t, l.Allow("carol"))
		l.RecordRequest("carol")
	}
	assert.False(t, l.Allow("carol"))

	// Back to normal load the same occupancy is admitted again.
	l.UpdateLoad(0.5)
	assert.True(t, l.Allow("carol"))
}

func TestLimiter_LoadTiers(t *testing.T) {
	l := newTestLimiter(DefaultConfig())

	tests := []struct {
		load float64
		want float64
	}{
		{0.9, 0.5},
		{0.81, 0.5},
		{0.7, 0.7},
		{0.61, 0.7},
		{0.5, 1.0},
		{0.3, 1.0},
		{0.29, 1.2},
		{0.0, 1.2},
	}
	for _, tt := range tests {
		l.UpdateLoad(tt.load)
		assert.Equal(t, tt.want, l.currentMultiplier(), "load %.2f", tt.load)
	}
}

func TestLimiter_HourWindow(t *testing.T) {
	l := newTestLimiter(Config{RequestsPerMinute: 1000, RequestsPerHour: 3, Burst: 1000})

	cw := l.caller("dave")
	now := time.Now()
	// Three requests spread over the past hour: outside the minute window
	// but inside the hour window.
	cw.mu.Lock()
	cw.hour = []time.Time{
		now.Add(-50 * time.Minute),
		now.Add(-30 * time.Minute),
		now.Add(-10 * time.Minute),
	}
	cw.mu.Unlock()

	assert.False(t, l.Allow("dave"))
}

func TestLimiter_WindowsArePruned(t *testing.T) {
	l := newTestLimiter(Config{RequestsPerMinute: 2, RequestsPerHour: 1000, Burst: 10})

	cw := l.caller("erin")
	now := time.Now()
	cw.mu.Lock()
	cw.minute = []time.Time{now.Add(-2 * time.Minute), now.Add(-90 * time.Second)}
	cw.hour = []time.Time{now.Add(-2 * time.Hour), now.Add(-90 * time.Minute)}
	cw.mu.Unlock()

	// Every stale entry ages out, so the caller is admitted.
	assert.True(t, l.Allow("erin"))

	stats := l.Stats("erin")
	assert.Equal(t, 0, stats.RequestsLastMinute)
	assert.Equal(t, 0, stats.RequestsLastHour)
}

func TestLimiter_RetryAfter(t *testing.T) {
	l := newTestLimiter(DefaultConfig())

	t.Run("empty window", func(t *testing.T) {
		assert.Equal(t, 0, l.RetryAfter("nobody"))
	})

	t.Run("oldest entry drives the wait", func(t *testing.T) {
		cw := l.caller("frank")
		cw.mu.Lock()
		cw.minute = []time.Time{time.Now().Add(-20 * time.Second)}
		cw.mu.Unlock()

		retry := l.RetryAfter("frank")
		assert.InDelta(t, 40, retry, 2)
	})

	t.Run("never negative", func(t *testing.T) {
		cw := l.caller("grace")
		cw.mu.Lock()
		cw.minute = []time.Time{time.Now().Add(-2 * time.Minute)}
		cw.mu.Unlock()

		assert.Equal(t, 0, l.RetryAfter("grace"))
	})
}

func TestLimiter_CallersAreIndependent(t *testing.T) {
	l := newTestLimiter(Config{RequestsPerMinute: 100, RequestsPerHour: 1000, Burst: 2})

	l.RecordRequest("a")
	l.RecordRequest("a")
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
}

func TestLimiter_GlobalStats(t *testing.T) {
	l := newTestLimiter(DefaultConfig())
	l.UpdateLoad(0.9)

	l.RecordRequest("a")
	l.RecordRequest("a")
	l.RecordRequest("b")
	l.caller("idle")

	stats := l.Global()
	assert.Equal(t, 2, stats.ActiveCallers)
	assert.Equal(t, 3, stats.RequestsLastMinute)
	assert.Equal(t, 3, stats.RequestsLastHour)
	assert.Equal(t, 0.9, stats.Load)
	assert.Equal(t, 0.5, stats.Multiplier)
}

func TestLimiter_Reset(t *testing.T) {
	l := newTestLimiter(Config{RequestsPerMinute: 100, RequestsPerHour: 1000, Burst: 1})

	l.RecordRequest("x")
	assert.False(t, l.Allow("x"))

	l.Reset("x")
	assert.True(t, l.Allow("x"))
}

func TestLimiter_StatsReflectsLimits(t *testing.T) {
	l := newTestLimiter(Config{RequestsPerMinute: 60, RequestsPerHour: 1000, Burst: 10})
	l.UpdateLoad(0.9)

	l.RecordRequest("y")
	stats := l.Stats("y")

	assert.Equal(t, 1, stats.RequestsLastMinute)
	assert.Equal(t, 30, stats.RPMLimit)
	assert.Equal(t, 500, stats.RPHLimit)
	assert.Equal(t, 10, stats.Burst)
	assert.False(t, stats.LastRequest.IsZero())
}
