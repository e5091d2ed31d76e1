package generation

import (
	"sync/atomic"
	"time"
)

// Metrics collects aggregate usage counters for the generation client.
// It is injected into the client rather than kept as package state so
// tests and multi-instance deployments get independent collectors.
type Metrics struct {
	requests  int64
	retries   int64
	fallbacks int64
	failures  int64
	latencyMs int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) recordRequest(elapsed time.Duration) {
	atomic.AddInt64(&m.requests, 1)
	atomic.AddInt64(&m.latencyMs, elapsed.Milliseconds())
}

func (m *Metrics) recordRetry()    { atomic.AddInt64(&m.retries, 1) }
func (m *Metrics) recordFallback() { atomic.AddInt64(&m.fallbacks, 1) }
func (m *Metrics) recordFailure()  { atomic.AddInt64(&m.failures, 1) }

// Snapshot is the read-only view served by the stats endpoint.
type Snapshot struct {
	Requests     int64 `json:"requests"`
	Retries      int64 `json:"retries"`
	Fallbacks    int64 `json:"fallbacks"`
	Failures     int64 `json:"failures"`
	AvgLatencyMs int64 `json:"avg_latency_ms"`
}

func (m *Metrics) Snapshot() Snapshot {
	req := atomic.LoadInt64(&m.requests)
	var avg int64
	if req > 0 {
		avg = atomic.LoadInt64(&m.latencyMs) / req
	}
	return Snapshot{
		Requests:     req,
		Retries:      atomic.LoadInt64(&m.retries),
		Fallbacks:    atomic.LoadInt64(&m.fallbacks),
		Failures:     atomic.LoadInt64(&m.failures),
		AvgLatencyMs: avg,
	}
}
