// Package metrics provides instrumentation hooks for the analytics jobs.
package metrics

import "time"

// Run statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Recorder captures process metrics for the application.
// Implementations can expose these to Prometheus, tests, etc.
type Recorder interface {
	// Job metrics
	IncRun(job, status string)
	ObserveRunDuration(job string, duration time.Duration)

	// Aggregation metrics
	AddProcessedURLs(period string, n int)
	AddWindowClicks(period string, n int)
	IncItemFailure(period string)

	// Side channels
	IncAlert(outcome string) // outcome: sent, suppressed, capped, failed, state_unavailable
	AddExportedRecords(n int)
	IncAIInvocation(kind, outcome string) // kind: trend, insight, alarm
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
