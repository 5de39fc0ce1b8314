package observability

import (
	"sync"
	"time"
)

// OpSnapshot is the per-operation view exposed on /metrics.
type OpSnapshot struct {
	Count         int64   `json:"count"`
	Errors        int64   `json:"errors"`
	InFlight      int64   `json:"in_flight"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms"`
	LastLatencyMs float64 `json:"last_latency_ms"`
}

// Snapshot is the full metrics view.
type Snapshot struct {
	UptimeSec       int64                 `json:"uptime_sec"`
	TotalRequests   int64                 `json:"total_requests"`
	TotalErrors     int64                 `json:"total_errors"`
	InFlight        int64                 `json:"in_flight"`
	BreakerOpens    int64                 `json:"breaker_opens"`
	RateLimitWaits  int64                 `json:"rate_limit_waits"`
	RateLimitWaitMs int64                 `json:"rate_limit_wait_ms"`
	Operations      map[string]OpSnapshot `json:"operations"`
}

type opStats struct {
	count        int64
	errors       int64
	inFlight     int64
	totalLatency time.Duration
	maxLatency   time.Duration
	lastLatency  time.Duration
}

// Metrics is a process-wide, mutex-guarded registry of checkout operation
// stats plus breaker and rate-limit counters.
type Metrics struct {
	mu             sync.Mutex
	start          time.Time
	ops            map[string]*opStats
	breakerOpens   int64
	rateLimitWaits int64
	rateLimitWait  time.Duration
}

// Span tracks a single in-flight operation.
type Span struct {
	metrics *Metrics
	op      string
	start   time.Time
}

// NewMetrics constructs an empty registry.
func NewMetrics() *Metrics {
	return &Metrics{
		start: time.Now(),
		ops:   make(map[string]*opStats),
	}
}

// Start opens a span for the named operation.
func (m *Metrics) Start(op string) *Span {
	if m == nil {
		return &Span{}
	}
	m.mu.Lock()
	m.ensure(op).inFlight++
	m.mu.Unlock()
	return &Span{metrics: m, op: op, start: time.Now()}
}

// End closes the span, recording latency and whether the call failed.
func (s *Span) End(err error) {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.finish(s.op, time.Since(s.start), err != nil)
}

// AddBreakerOpen counts a circuit-open transition.
func (m *Metrics) AddBreakerOpen() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.breakerOpens++
	m.mu.Unlock()
}

// AddRateLimitWait records time spent waiting on the ingress limiter.
func (m *Metrics) AddRateLimitWait(d time.Duration) {
	if m == nil || d <= 0 {
		return
	}
	m.mu.Lock()
	m.rateLimitWaits++
	m.rateLimitWait += d
	m.mu.Unlock()
}

// Snapshot returns a consistent copy of all counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		UptimeSec:       int64(time.Since(m.start).Seconds()),
		BreakerOpens:    m.breakerOpens,
		RateLimitWaits:  m.rateLimitWaits,
		RateLimitWaitMs: int64(m.rateLimitWait / time.Millisecond),
		Operations:      make(map[string]OpSnapshot),
	}

	for op, stats := range m.ops {
		avg := 0.0
		if stats.count > 0 {
			avg = float64(stats.totalLatency.Milliseconds()) / float64(stats.count)
		}
		snap.Operations[op] = OpSnapshot{
			Count:         stats.count,
			Errors:        stats.errors,
			InFlight:      stats.inFlight,
			AvgLatencyMs:  avg,
			MaxLatencyMs:  float64(stats.maxLatency.Milliseconds()),
			LastLatencyMs: float64(stats.lastLatency.Milliseconds()),
		}
		snap.TotalRequests += stats.count
		snap.TotalErrors += stats.errors
		snap.InFlight += stats.inFlight
	}

	return snap
}

func (m *Metrics) ensure(op string) *opStats {
	stats, ok := m.ops[op]
	if !ok {
		stats = &opStats{}
		m.ops[op] = stats
	}
	return stats
}

func (m *Metrics) finish(op string, dur time.Duration, failed bool) {
	m.mu.Lock()
	stats := m.ensure(op)
	stats.inFlight--
	stats.count++
	if failed {
		stats.errors++
	}
	stats.totalLatency += dur
	if dur > stats.maxLatency {
		stats.maxLatency = dur
	}
	stats.lastLatency = dur
	m.mu.Unlock()
}
