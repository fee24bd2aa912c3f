package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "shortify_analytics"

// PrometheusRecorder exports Recorder events through a private registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	runs            *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	processedURLs   *prometheus.CounterVec
	windowClicks    *prometheus.CounterVec
	itemFailures    *prometheus.CounterVec
	alerts          *prometheus.CounterVec
	exportedRecords prometheus.Counter
	aiInvocations   *prometheus.CounterVec
}

// NewPrometheus registers the analytics collectors plus the Go and process
// collectors on a fresh registry.
func NewPrometheus() *PrometheusRecorder {
	p := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "runs_total",
			Help:      "Completed job invocations by job and status.",
		}, []string{"job", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: promNamespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of job invocations.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"job"}),
		processedURLs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "processed_urls_total",
			Help:      "Identifiers whose insight was written.",
		}, []string{"period_key"}),
		windowClicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "window_clicks_total",
			Help:      "Click events aggregated across runs.",
		}, []string{"period_key"}),
		itemFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "item_failures_total",
			Help:      "Identifiers skipped after a read or write error.",
		}, []string{"period_key"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "alerts_total",
			Help:      "Alert decisions by outcome.",
		}, []string{"outcome"}),
		exportedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "exported_records_total",
			Help:      "Fact records written by the export pipeline.",
		}),
		aiInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "ai_invocations_total",
			Help:      "Text generation calls by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.runs, p.runDuration, p.processedURLs, p.windowClicks,
		p.itemFailures, p.alerts, p.exportedRecords, p.aiInvocations,
	)
	return p
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PrometheusRecorder) IncRun(job, status string) {
	p.runs.WithLabelValues(job, status).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(job string, duration time.Duration) {
	p.runDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) AddProcessedURLs(period string, n int) {
	p.processedURLs.WithLabelValues(period).Add(float64(n))
}

func (p *PrometheusRecorder) AddWindowClicks(period string, n int) {
	p.windowClicks.WithLabelValues(period).Add(float64(n))
}

func (p *PrometheusRecorder) IncItemFailure(period string) {
	p.itemFailures.WithLabelValues(period).Inc()
}

func (p *PrometheusRecorder) IncAlert(outcome string) {
	p.alerts.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) AddExportedRecords(n int) {
	p.exportedRecords.Add(float64(n))
}

func (p *PrometheusRecorder) IncAIInvocation(kind, outcome string) {
	p.aiInvocations.WithLabelValues(kind, outcome).Inc()
}
