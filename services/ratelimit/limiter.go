package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	minuteWindow = 60 * time.Second
	hourWindow   = 3600 * time.Second
)

// Config holds the base admission limits for every caller
type Config struct {
	RequestsPerMinute int
	RequestsPerHour   int
	Burst             int
}

// DefaultConfig returns the default admission limits
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		RequestsPerHour:   1000,
		Burst:             10,
	}
}

// callerWindow holds one caller's sliding windows. Each caller has its own
// mutex so admission checks for different callers never contend; a caller's
// state is only ever mutated under its own lock.
type callerWindow struct {
	mu          sync.Mutex
	minute      []time.Time
	hour        []time.Time
	lastRequest time.Time
}

// prune drops window entries older than the window length. Called on every
// access so the windows cannot grow without bound.
func (cw *callerWindow) prune(now time.Time) {
	minuteCutoff := now.Add(-minuteWindow)
	i := 0
	for i < len(cw.minute) && cw.minute[i].Before(minuteCutoff) {
		i++
	}
	cw.minute = cw.minute[i:]

	hourCutoff := now.Add(-hourWindow)
	i = 0
	for i < len(cw.hour) && cw.hour[i].Before(hourCutoff) {
		i++
	}
	cw.hour = cw.hour[i:]
}

// Limiter is a per-caller sliding-window admission controller. A global load
// signal scales the per-minute and per-hour limits through a fixed multiplier
// table; the burst ceiling is a hard limit unaffected by load.
type Limiter struct {
	cfg    Config
	logger *zap.Logger

	mu         sync.Mutex
	callers    map[string]*callerWindow
	load       float64
	multiplier float64
}

// NewLimiter creates a limiter with the given base limits
func NewLimiter(cfg Config, logger *zap.Logger) *Limiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = DefaultConfig().RequestsPerMinute
	}
	if cfg.RequestsPerHour <= 0 {
		cfg.RequestsPerHour = DefaultConfig().RequestsPerHour
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultConfig().Burst
	}
	return &Limiter{
		cfg:        cfg,
		logger:     logger,
		callers:    make(map[string]*callerWindow),
		multiplier: 1.0,
	}
}

func (l *Limiter) caller(id string) *callerWindow {
	l.mu.Lock()
	defer l.mu.Unlock()
	cw, ok := l.callers[id]
	if !ok {
		cw = &callerWindow{}
		l.callers[id] = cw
	}
	return cw
}

func (l *Limiter) currentMultiplier() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.multiplier
}

// Allow reports whether the caller may issue another request right now
func (l *Limiter) Allow(callerID string) bool {
	now := time.Now()
	mult := l.currentMultiplier()
	cw := l.caller(callerID)

	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.prune(now)

	if len(cw.minute) >= l.cfg.Burst {
		l.logger.Warn("caller hit burst limit", zap.String("caller", callerID))
		return false
	}

	rpm := int(float64(l.cfg.RequestsPerMinute) * mult)
	if len(cw.minute) >= rpm {
		l.logger.Warn("caller exceeded rpm limit",
			zap.String("caller", callerID),
			zap.Int("limit", rpm))
		return false
	}

	rph := int(float64(l.cfg.RequestsPerHour) * mult)
	if len(cw.hour) >= rph {
		l.logger.Warn("caller exceeded rph limit",
			zap.String("caller", callerID),
			zap.Int("limit", rph))
		return false
	}

	return true
}

// RecordRequest appends the current time to the caller's windows
func (l *Limiter) RecordRequest(callerID string) {
	now := time.Now()
	cw := l.caller(callerID)

	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.minute = append(cw.minute, now)
	cw.hour = append(cw.hour, now)
	cw.lastRequest = now
}

// RetryAfter returns how many seconds until the oldest minute-window entry
// ages out, or 0 when the window is empty.
func (l *Limiter) RetryAfter(callerID string) int {
	cw := l.caller(callerID)

	cw.mu.Lock()
	defer cw.mu.Unlock()
	if len(cw.minute) == 0 {
		return 0
	}
	retry := 60 - int(time.Since(cw.minute[0]).Seconds())
	if retry < 0 {
		return 0
	}
	return retry
}

// UpdateLoad sets the global load signal and derives the limit multiplier
// from the fixed tier table.
func (l *Limiter) UpdateLoad(load float64) {
	var mult float64
	switch {
	case load > 0.8:
		mult = 0.5
	case load > 0.6:
		mult = 0.7
	case load < 0.3:
		mult = 1.2
	default:
		mult = 1.0
	}

	l.mu.Lock()
	l.load = load
	l.multiplier = mult
	l.mu.Unlock()

	l.logger.Info("updated adaptive limits",
		zap.Float64("load", load),
		zap.Float64("multiplier", mult))
}

// CallerStats reports one caller's current window occupancy and limits
type CallerStats struct {
	CallerID           string
	RequestsLastMinute int
	RequestsLastHour   int
	LastRequest        time.Time
	RPMLimit           int
	RPHLimit           int
	Burst              int
}

// Stats returns the current rate limiting state for one caller
func (l *Limiter) Stats(callerID string) CallerStats {
	now := time.Now()
	mult := l.currentMultiplier()
	cw := l.caller(callerID)

	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.prune(now)

	return CallerStats{
		CallerID:           callerID,
		RequestsLastMinute: len(cw.minute),
		RequestsLastHour:   len(cw.hour),
		LastRequest:        cw.lastRequest,
		RPMLimit:           int(float64(l.cfg.RequestsPerMinute) * mult),
		RPHLimit:           int(float64(l.cfg.RequestsPerHour) * mult),
		Burst:              l.cfg.Burst,
	}
}

// GlobalStats aggregates limiter state across callers
type GlobalStats struct {
	ActiveCallers      int
	RequestsLastMinute int
	RequestsLastHour   int
	Load               float64
	Multiplier         float64
}

// Global returns limiter-wide statistics
func (l *Limiter) Global() GlobalStats {
	now := time.Now()

	l.mu.Lock()
	windows := make([]*callerWindow, 0, len(l.callers))
	for _, cw := range l.callers {
		windows = append(windows, cw)
	}
	stats := GlobalStats{Load: l.load, Multiplier: l.multiplier}
	l.mu.Unlock()

	for _, cw := range windows {
		cw.mu.Lock()
		cw.prune(now)
		if len(cw.minute) > 0 || len(cw.hour) > 0 {
			stats.ActiveCallers++
			stats.RequestsLastMinute += len(cw.minute)
			stats.RequestsLastHour += len(cw.hour)
		}
		cw.mu.Unlock()
	}

	return stats
}

// Reset clears one caller's windows
func (l *Limiter) Reset(callerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.callers, callerID)
}
