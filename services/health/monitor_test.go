package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProber struct {
	calls  int
	record Record
	err    error
}

func (f *fakeProber) Probe(_ context.Context, _ string) (Record, error) {
	f.calls++
	return f.record, f.err
}

func TestMonitor_CachesWithinFreshness(t *testing.T) {
	prober := &fakeProber{record: Record{Available: true, SuccessRate: 0.99, Status: "healthy"}}
	m := NewMonitor(prober, time.Minute, zap.NewNop())

	ctx := context.Background()
	first := m.Check(ctx, "gpt-5")
	second := m.Check(ctx, "gpt-5")

	require.True(t, first.Available)
	assert.Equal(t, first.ObservedAt, second.ObservedAt)
	assert.Equal(t, 1, prober.calls)
}

func TestMonitor_RefreshesStaleRecord(t *testing.T) {
	prober := &fakeProber{record: Record{Available: true, Status: "healthy"}}
	m := NewMonitor(prober, time.Minute, zap.NewNop())

	ctx := context.Background()
	m.Check(ctx, "gpt-5")

	// Age the cached record past the freshness window.
	m.mu.Lock()
	rec := m.records["gpt-5"]
	rec.ObservedAt = time.Now().Add(-2 * time.Minute)
	m.records["gpt-5"] = rec
	m.mu.Unlock()

	prober.record = Record{Available: true, Status: "degraded", SuccessRate: 0.8}
	refreshed := m.Check(ctx, "gpt-5")

	assert.Equal(t, "degraded", refreshed.Status)
	assert.Equal(t, 2, prober.calls)
}

func TestMonitor_ProbeFailureDegradesToUnavailable(t *testing.T) {
	prober := &fakeProber{err: errors.New("connection timed out")}
	m := NewMonitor(prober, time.Minute, zap.NewNop())

	rec := m.Check(context.Background(), "grok-4")

	assert.False(t, rec.Available)
	assert.Equal(t, "unreachable", rec.Status)
	assert.False(t, rec.ObservedAt.IsZero())
}

func TestMonitor_RecordsPerBackend(t *testing.T) {
	prober := &fakeProber{record: Record{Available: true, Status: "healthy"}}
	m := NewMonitor(prober, 0, zap.NewNop())

	ctx := context.Background()
	m.Check(ctx, "gpt-5")
	m.Check(ctx, "o3")

	assert.Equal(t, 2, prober.calls)
	assert.Equal(t, DefaultFreshness, m.freshness)
}
