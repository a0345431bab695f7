package metrics

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// ringCapacity bounds the per-request sample ring
	ringCapacity = 1000

	// bucketRetention bounds the per-minute time series
	bucketRetention = 24 * time.Hour

	// percentile sample floors: below these the estimate is too noisy to report
	p95MinSamples = 20
	p99MinSamples = 100

	// healthWindow is how many recent samples feed a backend's health score
	healthWindow = 100
)

// Sample is one completed request observation
type Sample struct {
	Timestamp time.Time
	Backend   string
	Provider  string
	LatencyMS float64
	Cost      float64
	Success   bool
	Cached    bool
}

// backendTotals accumulates lifetime counters for one backend
type backendTotals struct {
	requests   int
	successes  int
	failures   int
	latencySum float64
	costSum    float64
}

// minuteBucket aggregates request counts per wall-clock minute
type minuteBucket struct {
	minute   time.Time
	requests int
	failures int
}

// Collector keeps a bounded ring of recent request samples plus running
// counters. All aggregation happens at read time from the ring, so writes
// stay cheap on the request path.
type Collector struct {
	logger *zap.Logger

	mu          sync.Mutex
	ring        []Sample
	next        int
	filled      bool
	totals      map[string]*backendTotals
	buckets     []minuteBucket
	cacheHits   int
	cacheMisses int
	rateLimited int
}

// NewCollector creates an empty collector
func NewCollector(logger *zap.Logger) *Collector {
	return &Collector{
		logger: logger,
		ring:   make([]Sample, ringCapacity),
		totals: make(map[string]*backendTotals),
	}
}

// RecordRequest stores one completed request observation
func (c *Collector) RecordRequest(s Sample) {
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.ring[c.next] = s
	c.next++
	if c.next == ringCapacity {
		c.next = 0
		c.filled = true
	}

	bt, ok := c.totals[s.Backend]
	if !ok {
		bt = &backendTotals{}
		c.totals[s.Backend] = bt
	}
	bt.requests++
	if s.Success {
		bt.successes++
	} else {
		bt.failures++
	}
	bt.latencySum += s.LatencyMS
	bt.costSum += s.Cost

	c.bucketLocked(s)
}

func (c *Collector) bucketLocked(s Sample) {
	minute := s.Timestamp.Truncate(time.Minute)
	if n := len(c.buckets); n > 0 && c.buckets[n-1].minute.Equal(minute) {
		c.buckets[n-1].requests++
		if !s.Success {
			c.buckets[n-1].failures++
		}
	} else {
		b := minuteBucket{minute: minute, requests: 1}
		if !s.Success {
			b.failures = 1
		}
		c.buckets = append(c.buckets, b)
	}

	cutoff := time.Now().Add(-bucketRetention)
	i := 0
	for i < len(c.buckets) && c.buckets[i].minute.Before(cutoff) {
		i++
	}
	c.buckets = c.buckets[i:]
}

// RecordCacheHit counts a request served from the response cache
func (c *Collector) RecordCacheHit() {
	c.mu.Lock()
	c.cacheHits++
	c.mu.Unlock()
}

// RecordCacheMiss counts a cache lookup that found nothing
func (c *Collector) RecordCacheMiss() {
	c.mu.Lock()
	c.cacheMisses++
	c.mu.Unlock()
}

// RecordRateLimited counts a request rejected by the rate limiter
func (c *Collector) RecordRateLimited() {
	c.mu.Lock()
	c.rateLimited++
	c.mu.Unlock()
}

// LatencyStats summarizes latency over a sample set. P95 and P99 are zero
// until enough samples accumulate for the estimate to be meaningful.
type LatencyStats struct {
	Min    float64 `json:"min_ms"`
	Max    float64 `json:"max_ms"`
	Mean   float64 `json:"mean_ms"`
	Median float64 `json:"median_ms"`
	P95    float64 `json:"p95_ms,omitempty"`
	P99    float64 `json:"p99_ms,omitempty"`
}

// BackendSnapshot summarizes one backend within a snapshot window
type BackendSnapshot struct {
	Requests    int     `json:"requests"`
	Failures    int     `json:"failures"`
	SuccessRate float64 `json:"success_rate"`
	AvgLatency  float64 `json:"avg_latency_ms"`
	TotalCost   float64 `json:"total_cost"`
}

// Snapshot is the aggregate view over a time range
type Snapshot struct {
	TimeRange         string                     `json:"time_range"`
	TotalRequests     int                        `json:"total_requests"`
	CachedRequests    int                        `json:"cached_requests"`
	SuccessRate       float64                    `json:"success_rate"`
	Latency           LatencyStats               `json:"latency"`
	TotalCost         float64                    `json:"total_cost"`
	AvgCostPerRequest float64                    `json:"avg_cost_per_request"`
	RequestsPerMinute float64                    `json:"requests_per_minute"`
	CacheHitRate      float64                    `json:"cache_hit_rate"`
	CacheHits         int                        `json:"cache_hits"`
	CacheMisses       int                        `json:"cache_misses"`
	RateLimited       int                        `json:"rate_limited"`
	ByBackend         map[string]BackendSnapshot `json:"by_backend"`
}

func rangeHours(timeRange string) float64 {
	switch timeRange {
	case "1h":
		return 1
	case "24h":
		return 24
	case "7d":
		return 168
	case "30d":
		return 720
	default:
		return 24
	}
}

// samplesLocked returns ring samples in insertion order
func (c *Collector) samplesLocked() []Sample {
	if !c.filled {
		return c.ring[:c.next]
	}
	out := make([]Sample, 0, ringCapacity)
	out = append(out, c.ring[c.next:]...)
	out = append(out, c.ring[:c.next]...)
	return out
}

// GetSnapshot aggregates ring samples within the time range, optionally
// restricted to one backend. Supported ranges are 1h, 24h, 7d and 30d;
// anything else means 24h.
func (c *Collector) GetSnapshot(timeRange, backend string) Snapshot {
	hours := rangeHours(timeRange)
	cutoff := time.Now().Add(-time.Duration(hours * float64(time.Hour)))

	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		TimeRange:   timeRange,
		CacheHits:   c.cacheHits,
		CacheMisses: c.cacheMisses,
		RateLimited: c.rateLimited,
		ByBackend:   make(map[string]BackendSnapshot),
	}
	if lookups := c.cacheHits + c.cacheMisses; lookups > 0 {
		snap.CacheHitRate = float64(c.cacheHits) / float64(lookups)
	}

	var latencies []float64
	successes := 0
	perBackend := make(map[string]*BackendSnapshot)

	for _, s := range c.samplesLocked() {
		if s.Timestamp.Before(cutoff) {
			continue
		}
		if backend != "" && s.Backend != backend {
			continue
		}

		snap.TotalRequests++
		snap.TotalCost += s.Cost
		latencies = append(latencies, s.LatencyMS)
		if s.Success {
			successes++
		}
		if s.Cached {
			snap.CachedRequests++
		}

		bs, ok := perBackend[s.Backend]
		if !ok {
			bs = &BackendSnapshot{}
			perBackend[s.Backend] = bs
		}
		bs.Requests++
		if !s.Success {
			bs.Failures++
		}
		bs.AvgLatency += s.LatencyMS
		bs.TotalCost += s.Cost
	}

	if snap.TotalRequests > 0 {
		snap.SuccessRate = float64(successes) / float64(snap.TotalRequests)
		snap.AvgCostPerRequest = snap.TotalCost / float64(snap.TotalRequests)
		snap.Latency = latencyStats(latencies)
	}
	snap.RequestsPerMinute = float64(snap.TotalRequests) / (hours * 60)

	for name, bs := range perBackend {
		if bs.Requests > 0 {
			bs.AvgLatency /= float64(bs.Requests)
			bs.SuccessRate = float64(bs.Requests-bs.Failures) / float64(bs.Requests)
		}
		snap.ByBackend[name] = *bs
	}

	return snap
}

func latencyStats(latencies []float64) LatencyStats {
	if len(latencies) == 0 {
		return LatencyStats{}
	}
	sorted := make([]float64, len(latencies))
	copy(sorted, latencies)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	stats := LatencyStats{
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   sum / float64(len(sorted)),
		Median: percentile(sorted, 0.50),
	}
	if len(sorted) > p95MinSamples {
		stats.P95 = percentile(sorted, 0.95)
	}
	if len(sorted) > p99MinSamples {
		stats.P99 = percentile(sorted, 0.99)
	}
	return stats
}

// percentile reads the nearest-rank value from an already sorted slice
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// HealthScore derives a 0-100 score for one backend from its most recent
// samples. Success rate contributes up to 50 points and low latency the
// other 50. A backend with no samples scores 100.
func (c *Collector) HealthScore(backend string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var recent []Sample
	for _, s := range c.samplesLocked() {
		if s.Backend == backend {
			recent = append(recent, s)
		}
	}
	if len(recent) == 0 {
		return 100
	}
	if len(recent) > healthWindow {
		recent = recent[len(recent)-healthWindow:]
	}

	successes := 0
	var latencySum float64
	for _, s := range recent {
		if s.Success {
			successes++
		}
		latencySum += s.LatencyMS
	}
	successRate := float64(successes) / float64(len(recent))
	avgLatency := latencySum / float64(len(recent))

	latencyScore := 50 - avgLatency/20
	if latencyScore < 0 {
		latencyScore = 0
	}

	score := successRate*50 + latencyScore
	if score > 100 {
		score = 100
	}
	return score
}

// TimelinePoint is one minute of request counts
type TimelinePoint struct {
	Minute   time.Time `json:"minute"`
	Requests int       `json:"requests"`
	Failures int       `json:"failures"`
}

// Timeline returns per-minute request counts inside the time range
func (c *Collector) Timeline(timeRange string) []TimelinePoint {
	hours := rangeHours(timeRange)
	cutoff := time.Now().Add(-time.Duration(hours * float64(time.Hour)))

	c.mu.Lock()
	defer c.mu.Unlock()

	var out []TimelinePoint
	for _, b := range c.buckets {
		if b.minute.Before(cutoff) {
			continue
		}
		out = append(out, TimelinePoint{Minute: b.minute, Requests: b.requests, Failures: b.failures})
	}
	return out
}

// BackendTotals is the lifetime counter view for one backend
type BackendTotals struct {
	Requests   int     `json:"requests"`
	Successes  int     `json:"successes"`
	Failures   int     `json:"failures"`
	AvgLatency float64 `json:"avg_latency_ms"`
	TotalCost  float64 `json:"total_cost"`
}

// Totals returns lifetime counters per backend
func (c *Collector) Totals() map[string]BackendTotals {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]BackendTotals, len(c.totals))
	for name, bt := range c.totals {
		t := BackendTotals{
			Requests:  bt.requests,
			Successes: bt.successes,
			Failures:  bt.failures,
			TotalCost: bt.costSum,
		}
		if bt.requests > 0 {
			t.AvgLatency = bt.latencySum / float64(bt.requests)
		}
		out[name] = t
	}
	return out
}
