package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics tracks the vision, OCR and parse stages shared by api and worker.
type PipelineMetrics struct {
	visionCalls    *prometheus.CounterVec
	visionDuration *prometheus.HistogramVec
	ocr            *prometheus.CounterVec
	parse          *prometheus.CounterVec
	analyses       *prometheus.CounterVec
	reconciled     prometheus.Counter
	pages          prometheus.Histogram
}

func NewPipelineMetrics(registerer prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		visionCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "vision_calls_total",
				Help:      "Vision backend calls by backend and outcome.",
			},
			[]string{"backend", "outcome"},
		),
		visionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "vision_call_duration_seconds",
				Help:      "Vision backend call duration in seconds.",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"backend"},
		),
		ocr: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ocr_extractions_total",
				Help:      "OCR stage outcomes (ok, empty, cached, skipped).",
			},
			[]string{"outcome"},
		),
		parse: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parse_recovery_total",
				Help:      "Model output parses by recovery tier.",
			},
			[]string{"tier"},
		),
		analyses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analyses_total",
				Help:      "Structured analyses by outcome.",
			},
			[]string{"outcome"},
		),
		reconciled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconciled_documents_total",
				Help:      "Documents failed by the stale analysis reconciler.",
			},
		),
		pages: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "normalized_pages",
				Help:      "Images produced per normalized document.",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 10},
			},
		),
	}

	registerer.MustRegister(m.visionCalls, m.visionDuration, m.ocr, m.parse, m.analyses, m.reconciled, m.pages)
	return m
}

func (m *PipelineMetrics) ObserveVisionCall(backend, outcome string, duration time.Duration) {
	if backend == "" {
		backend = "unknown"
	}
	m.visionCalls.WithLabelValues(backend, outcome).Inc()
	m.visionDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveNormalizedPages(n int) {
	m.pages.Observe(float64(n))
}

func (m *PipelineMetrics) ObserveOCR(outcome string) {
	m.ocr.WithLabelValues(outcome).Inc()
}

func (m *PipelineMetrics) ObserveParse(tier string) {
	m.parse.WithLabelValues(tier).Inc()
}

func (m *PipelineMetrics) ObserveAnalysis(outcome string) {
	m.analyses.WithLabelValues(outcome).Inc()
}

func (m *PipelineMetrics) ObserveReconciled(n int) {
	if n <= 0 {
		return
	}
	m.reconciled.Add(float64(n))
}
