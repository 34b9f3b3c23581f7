package monitor

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"broker-gateway/pkg/broker"
)

// SystemMetrics tracks gateway performance.
type SystemMetrics struct {
	mu sync.RWMutex

	// Latency histograms
	APILatency     *LatencyHistogram
	AdapterLatency map[broker.Kind]*LatencyHistogram

	// Counters
	apiRequests     uint64
	apiErrors       uint64
	adapterCalls    uint64
	adapterFailures uint64
}

// LatencyHistogram tracks latency samples with a sliding window and lazily
// computed stats.
type LatencyHistogram struct {
	mu          sync.Mutex
	samples     []float64
	maxSize     int
	dirty       bool
	cachedStats LatencyStats
}

// NewSystemMetrics creates a new metrics instance with one adapter histogram
// per supported broker kind.
func NewSystemMetrics() *SystemMetrics {
	adapters := make(map[broker.Kind]*LatencyHistogram, len(broker.Kinds()))
	for _, k := range broker.Kinds() {
		adapters[k] = NewLatencyHistogram(1000)
	}
	return &SystemMetrics{
		APILatency:     NewLatencyHistogram(1000),
		AdapterLatency: adapters,
	}
}

// NewLatencyHistogram creates a sliding window histogram.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, 0, size),
		maxSize: size,
		dirty:   true,
	}
}

// Record adds a latency sample in milliseconds.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) >= h.maxSize {
		// Shift window: remove oldest
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, latencyMs)
	h.dirty = true
}

// RecordDuration converts duration to ms and records.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg, p50, p95, p99. Only recomputes when samples
// have changed.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty && h.cachedStats.Count > 0 {
		return h.cachedStats
	}

	n := len(h.samples)
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)

	var sum float64
	min, max := sorted[0], sorted[n-1]
	for _, v := range sorted {
		sum += v
	}

	h.cachedStats = LatencyStats{
		Min:   min,
		Max:   max,
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n)*0.95)],
		P99:   sorted[int(float64(n)*0.99)],
		Count: n,
	}
	h.dirty = false

	return h.cachedStats
}

// LatencyStats holds computed latency statistics.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

// IncrementAPI increments the API request counter.
func (m *SystemMetrics) IncrementAPI() {
	atomic.AddUint64(&m.apiRequests, 1)
}

// IncrementAPIErrors increments the API error counter.
func (m *SystemMetrics) IncrementAPIErrors() {
	atomic.AddUint64(&m.apiErrors, 1)
}

// RecordAdapterCall records one adapter invocation with its latency and
// outcome.
func (m *SystemMetrics) RecordAdapterCall(kind broker.Kind, elapsed time.Duration, failed bool) {
	atomic.AddUint64(&m.adapterCalls, 1)
	if failed {
		atomic.AddUint64(&m.adapterFailures, 1)
	}
	m.mu.RLock()
	h := m.AdapterLatency[kind]
	m.mu.RUnlock()
	if h != nil {
		h.RecordDuration(elapsed)
	}
}

// MetricsSnapshot is a point-in-time view served on /metrics.
type MetricsSnapshot struct {
	APILatency      LatencyStats                    `json:"api_latency"`
	AdapterLatency  map[broker.Kind]LatencyStats    `json:"adapter_latency"`
	APIRequests     uint64                          `json:"api_requests"`
	APIErrors       uint64                          `json:"api_errors"`
	AdapterCalls    uint64                          `json:"adapter_calls"`
	AdapterFailures uint64                          `json:"adapter_failures"`
	GoroutineCount  int                             `json:"goroutine_count"`
	HeapAlloc       uint64                          `json:"heap_alloc_bytes"`
	HeapSys         uint64                          `json:"heap_sys_bytes"`
	Timestamp       time.Time                       `json:"timestamp"`
}

// GetSnapshot returns a point-in-time metrics snapshot.
func (m *SystemMetrics) GetSnapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.mu.RLock()
	adapterStats := make(map[broker.Kind]LatencyStats, len(m.AdapterLatency))
	for k, h := range m.AdapterLatency {
		adapterStats[k] = h.Stats()
	}
	m.mu.RUnlock()

	return MetricsSnapshot{
		APILatency:      m.APILatency.Stats(),
		AdapterLatency:  adapterStats,
		APIRequests:     atomic.LoadUint64(&m.apiRequests),
		APIErrors:       atomic.LoadUint64(&m.apiErrors),
		AdapterCalls:    atomic.LoadUint64(&m.adapterCalls),
		AdapterFailures: atomic.LoadUint64(&m.adapterFailures),
		GoroutineCount:  runtime.NumGoroutine(),
		HeapAlloc:       memStats.HeapAlloc,
		HeapSys:         memStats.HeapSys,
		Timestamp:       time.Now(),
	}
}

// Timer helps measure operation duration.
type Timer struct {
	start     time.Time
	histogram *LatencyHistogram
}

// NewTimer creates a timer that records to the given histogram.
func NewTimer(h *LatencyHistogram) *Timer {
	return &Timer{
		start:     time.Now(),
		histogram: h,
	}
}

// Stop records elapsed time to histogram.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.histogram != nil {
		t.histogram.RecordDuration(elapsed)
	}
	return elapsed
}
