// Package metrics records analysis counters on a caller-owned Prometheus registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "depcompliance"

// Recorder is what pipeline stages report to.
type Recorder interface {
	StageDuration(stage string, d time.Duration)
	PackagesResolved(strategy string, n int)
	VulnChunk(status string)
	Findings(severity string, n int)
	Analysis(status string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) StageDuration(string, time.Duration) {}
func (Nop) PackagesResolved(string, int)        {}
func (Nop) VulnChunk(string)                    {}
func (Nop) Findings(string, int)                {}
func (Nop) Analysis(string)                     {}

// OrNop returns r, or a Nop recorder when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}

// Metrics is the Prometheus-backed Recorder.
type Metrics struct {
	Registry *prometheus.Registry

	StageSeconds    *prometheus.HistogramVec
	PackagesTotal   *prometheus.CounterVec
	VulnChunksTotal *prometheus.CounterVec
	FindingsTotal   *prometheus.CounterVec
	AnalysesTotal   *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry, so two
// analyses in one process never share counters.
func New() *Metrics {
	m := &Metrics{Registry: prometheus.NewRegistry()}

	m.StageSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each analysis stage in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	m.PackagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packages_resolved_total",
			Help:      "Packages resolved, by producing strategy",
		},
		[]string{"strategy"},
	)

	m.VulnChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vuln_chunks_total",
			Help:      "Vulnerability database batch requests, by outcome",
		},
		[]string{"status"},
	)

	m.FindingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_total",
			Help:      "Vulnerability findings, by severity",
		},
		[]string{"severity"},
	)

	m.AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Completed analyses, by report status",
		},
		[]string{"status"},
	)

	m.Registry.MustRegister(
		m.StageSeconds,
		m.PackagesTotal,
		m.VulnChunksTotal,
		m.FindingsTotal,
		m.AnalysesTotal,
	)
	return m
}

func (m *Metrics) StageDuration(stage string, d time.Duration) {
	m.StageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) PackagesResolved(strategy string, n int) {
	m.PackagesTotal.WithLabelValues(strategy).Add(float64(n))
}

func (m *Metrics) VulnChunk(status string) {
	m.VulnChunksTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) Findings(severity string, n int) {
	m.FindingsTotal.WithLabelValues(severity).Add(float64(n))
}

func (m *Metrics) Analysis(status string) {
	m.AnalysesTotal.WithLabelValues(status).Inc()
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
