// Package metrics provides Prometheus metrics for spectrumlabel.
//
// Features:
//   - Counters for accepted and rejected windows, committed events, undos
//   - Gauges for remaining windows and session uptime
//   - Histograms for per-window annotation time
//   - Text exposition to a writer or a node-exporter textfile
package metrics

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"spectrumlabel/internal/window"
)

const namespace = "spectrumlabel"

// LabelerMetrics holds all labeling metrics on a private registry.
type LabelerMetrics struct {
	registry *prometheus.Registry
	started  time.Time

	// Counters
	WindowsAccepted *prometheus.CounterVec
	WindowsRejected *prometheus.CounterVec
	WindowsResumed  prometheus.Counter
	EventsCommitted prometheus.Counter
	Undos           prometheus.Counter
	ProtocolErrors  *prometheus.CounterVec

	// Gauges
	WindowsRemaining prometheus.Gauge
	UptimeSeconds    prometheus.Gauge

	// Histograms
	AnnotationSeconds prometheus.Histogram
	EventsPerWindow   prometheus.Histogram
}

// New creates and registers all labeling metrics.
func New() *LabelerMetrics {
	m := &LabelerMetrics{
		registry: prometheus.NewRegistry(),
		started:  time.Now(),

		WindowsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_accepted_total",
			Help:      "Total number of windows accepted by the planner",
		}, []string{"dataset"}),
		WindowsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_rejected_total",
			Help:      "Total number of candidate windows rejected by the planner",
		}, []string{"reason"}),
		WindowsResumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_resumed_total",
			Help:      "Windows skipped because they were already journaled",
		}),
		EventsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_committed_total",
			Help:      "Total number of labeled events committed",
		}),
		Undos: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "undos_total",
			Help:      "Total number of undo operations",
		}),
		ProtocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Gestures rejected by the annotation session",
		}, []string{"kind"}),
		WindowsRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "windows_remaining",
			Help:      "Estimated number of windows left in the current recording",
		}),
		UptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the labeling session started",
		}),
		AnnotationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "annotation_duration_seconds",
			Help:      "Time spent annotating a single window",
			Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}),
		EventsPerWindow: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "events_per_window",
			Help:      "Number of events labeled per committed window",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32},
		}),
	}

	m.registry.MustRegister(
		m.WindowsAccepted,
		m.WindowsRejected,
		m.WindowsResumed,
		m.EventsCommitted,
		m.Undos,
		m.ProtocolErrors,
		m.WindowsRemaining,
		m.UptimeSeconds,
		m.AnnotationSeconds,
		m.EventsPerWindow,
	)
	return m
}

// Registry returns the registry the metrics are registered on.
func (m *LabelerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// PlannerObserver returns a window.Observer that counts planner decisions
// for the named dataset.
func (m *LabelerMetrics) PlannerObserver(dataset string) window.Observer {
	return plannerObserver{m: m, dataset: dataset}
}

type plannerObserver struct {
	m       *LabelerMetrics
	dataset string
}

func (o plannerObserver) WindowAccepted(window.Window) {
	o.m.WindowsAccepted.WithLabelValues(o.dataset).Inc()
}

func (o plannerObserver) WindowRejected(_ float64, r window.Rejection) {
	o.m.WindowsRejected.WithLabelValues(r.String()).Inc()
}

// RecordWindow records a committed window.
func (m *LabelerMetrics) RecordWindow(events int, elapsed time.Duration) {
	m.EventsCommitted.Add(float64(events))
	m.EventsPerWindow.Observe(float64(events))
	m.AnnotationSeconds.Observe(elapsed.Seconds())
}

// RecordUndo records an undo operation.
func (m *LabelerMetrics) RecordUndo() {
	m.Undos.Inc()
}

// RecordResumed records a window skipped during resume.
func (m *LabelerMetrics) RecordResumed() {
	m.WindowsResumed.Inc()
}

// RecordProtocolError records a rejected gesture by kind.
func (m *LabelerMetrics) RecordProtocolError(kind string) {
	m.ProtocolErrors.WithLabelValues(kind).Inc()
}

// SetRemaining updates the remaining window estimate.
func (m *LabelerMetrics) SetRemaining(n int) {
	m.WindowsRemaining.Set(float64(n))
}

// UpdateUptime updates the uptime metric.
func (m *LabelerMetrics) UpdateUptime() {
	m.UptimeSeconds.Set(time.Since(m.started).Seconds())
}

// WritePrometheus writes all metrics in Prometheus text format.
func (m *LabelerMetrics) WritePrometheus(w io.Writer) error {
	m.UpdateUptime()
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// WriteFile writes all metrics to path for a node-exporter textfile
// collector. The file is replaced atomically.
func (m *LabelerMetrics) WriteFile(path string) error {
	m.UpdateUptime()
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	return nil
}

var (
	globalMetrics *LabelerMetrics
	globalOnce    sync.Once
)

// Default returns the process-wide metrics instance.
func Default() *LabelerMetrics {
	globalOnce.Do(func() {
		globalMetrics = New()
	})
	return globalMetrics
}
