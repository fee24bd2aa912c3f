package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncRun is a no-op.
func (n *NoopRecorder) IncRun(job, status string) {}

// ObserveRunDuration is a no-op.
func (n *NoopRecorder) ObserveRunDuration(job string, duration time.Duration) {}

// AddProcessedURLs is a no-op.
func (n *NoopRecorder) AddProcessedURLs(period string, count int) {}

// AddWindowClicks is a no-op.
func (n *NoopRecorder) AddWindowClicks(period string, count int) {}

// IncItemFailure is a no-op.
func (n *NoopRecorder) IncItemFailure(period string) {}

// IncAlert is a no-op.
func (n *NoopRecorder) IncAlert(outcome string) {}

// AddExportedRecords is a no-op.
func (n *NoopRecorder) AddExportedRecords(count int) {}

// IncAIInvocation is a no-op.
func (n *NoopRecorder) IncAIInvocation(kind, outcome string) {}
