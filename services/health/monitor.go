package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultFreshness is how long a probe result stays valid before the backend
// is probed again.
const DefaultFreshness = 60 * time.Second

// Record is a point-in-time health observation for one backend. Records are
// superseded, never merged, on refresh.
type Record struct {
	Available   bool
	LatencyMS   float64
	SuccessRate float64
	Status      string
	ObservedAt  time.Time
}

// Prober performs the actual availability check for a backend. Production
// implementations hit the provider over the network; tests inject
// deterministic fakes.
type Prober interface {
	Probe(ctx context.Context, backend string) (Record, error)
}

// Monitor is a short-TTL cache of per-backend health records. Stale records
// are recomputed lazily on first access past the freshness window.
type Monitor struct {
	prober    Prober
	freshness time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	records map[string]Record
}

// NewMonitor creates a health monitor. A freshness of zero selects
// DefaultFreshness.
func NewMonitor(prober Prober, freshness time.Duration, logger *zap.Logger) *Monitor {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	return &Monitor{
		prober:    prober,
		freshness: freshness,
		logger:    logger,
		records:   make(map[string]Record),
	}
}

// Check returns the current health record for a backend, probing when the
// cached record is missing or stale. A probe failure degrades to an
// unavailable record rather than propagating the error.
func (m *Monitor) Check(ctx context.Context, backend string) Record {
	m.mu.Lock()
	rec, ok := m.records[backend]
	m.mu.Unlock()

	if ok && time.Since(rec.ObservedAt) < m.freshness {
		return rec
	}

	fresh, err := m.prober.Probe(ctx, backend)
	if err != nil {
		m.logger.Warn("health probe failed",
			zap.String("backend", backend),
			zap.Error(err))
		fresh = Record{
			Available:  false,
			Status:     "unreachable",
			ObservedAt: time.Now(),
		}
	}
	if fresh.ObservedAt.IsZero() {
		fresh.ObservedAt = time.Now()
	}

	m.mu.Lock()
	m.records[backend] = fresh
	m.mu.Unlock()

	return fresh
}
