package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Runs            map[string]uint64 // "job/status"
	RunDurationNs   int64
	ProcessedURLs   uint64
	WindowClicks    uint64
	ItemFailures    uint64
	Alerts          map[string]uint64
	ExportedRecords uint64
	AIInvocations   map[string]uint64 // "kind/outcome"
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	runDurationNs   int64
	processedURLs   uint64
	windowClicks    uint64
	itemFailures    uint64
	exportedRecords uint64

	mu            sync.Mutex
	runs          map[string]uint64
	alerts        map[string]uint64
	aiInvocations map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		runs:          make(map[string]uint64),
		alerts:        make(map[string]uint64),
		aiInvocations: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Runs:            copyCounts(m.runs),
		RunDurationNs:   atomic.LoadInt64(&m.runDurationNs),
		ProcessedURLs:   atomic.LoadUint64(&m.processedURLs),
		WindowClicks:    atomic.LoadUint64(&m.windowClicks),
		ItemFailures:    atomic.LoadUint64(&m.itemFailures),
		Alerts:          copyCounts(m.alerts),
		ExportedRecords: atomic.LoadUint64(&m.exportedRecords),
		AIInvocations:   copyCounts(m.aiInvocations),
	}
}

// IncRun counts a finished run.
func (m *InMemoryRecorder) IncRun(job, status string) {
	m.inc(m.runs, job+"/"+status)
}

// ObserveRunDuration accumulates run time.
func (m *InMemoryRecorder) ObserveRunDuration(job string, duration time.Duration) {
	atomic.AddInt64(&m.runDurationNs, duration.Nanoseconds())
}

// AddProcessedURLs adds to the processed URL counter.
func (m *InMemoryRecorder) AddProcessedURLs(period string, n int) {
	atomic.AddUint64(&m.processedURLs, uint64(n))
}

// AddWindowClicks adds to the window click counter.
func (m *InMemoryRecorder) AddWindowClicks(period string, n int) {
	atomic.AddUint64(&m.windowClicks, uint64(n))
}

// IncItemFailure counts an identifier skipped after an error.
func (m *InMemoryRecorder) IncItemFailure(period string) {
	atomic.AddUint64(&m.itemFailures, 1)
}

// IncAlert counts an alert decision.
func (m *InMemoryRecorder) IncAlert(outcome string) {
	m.inc(m.alerts, outcome)
}

// AddExportedRecords adds to the exported record counter.
func (m *InMemoryRecorder) AddExportedRecords(n int) {
	atomic.AddUint64(&m.exportedRecords, uint64(n))
}

// IncAIInvocation counts a text generation call.
func (m *InMemoryRecorder) IncAIInvocation(kind, outcome string) {
	m.inc(m.aiInvocations, kind+"/"+outcome)
}

func (m *InMemoryRecorder) inc(counts map[string]uint64, key string) {
	m.mu.Lock()
	counts[key]++
	m.mu.Unlock()
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
