package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
)

// Auto-analysis outcomes, one per uploaded-document event.
const (
	WorkerOutcomeAnalyzed     = "analyzed"
	WorkerOutcomeMissing      = "document_missing"
	WorkerOutcomeUnsupported  = "unsupported_format"
	WorkerOutcomeBackendError = "backend_error"
	WorkerOutcomeSuperseded   = "superseded"
	WorkerOutcomePersistence  = "persistence_error"
	WorkerOutcomeTimeout      = "timeout"
	WorkerOutcomeError        = "error"
)

// WorkerOutcome maps an AnalyzeUploaded result to its outcome label.
// Redelivered completed documents and held claims return nil and count as analyzed.
func WorkerOutcome(err error) string {
	switch {
	case err == nil:
		return WorkerOutcomeAnalyzed
	case errors.Is(err, domain.ErrDocumentNotFound):
		return WorkerOutcomeMissing
	case errors.Is(err, domain.ErrUnsupportedFormat), errors.Is(err, domain.ErrFormatConversion):
		return WorkerOutcomeUnsupported
	case errors.Is(err, domain.ErrAnalysisSuperseded):
		return WorkerOutcomeSuperseded
	case errors.Is(err, domain.ErrPersistence):
		return WorkerOutcomePersistence
	case errors.Is(err, domain.ErrAnalysisBackend):
		return WorkerOutcomeBackendError
	case errors.Is(err, context.DeadlineExceeded):
		return WorkerOutcomeTimeout
	default:
		return WorkerOutcomeError
	}
}

type WorkerMetrics struct {
	service  string
	registry *prometheus.Registry

	documentsTotal   *prometheus.CounterVec
	documentDuration *prometheus.HistogramVec
	inFlight         prometheus.Gauge
	queueLag         prometheus.Histogram
	reconcileRuns    *prometheus.CounterVec
}

// NewWorkerMetrics builds the worker registry. Pipeline metrics register on
// Registry() too, so one /metrics endpoint serves both.
func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	documentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "uploaded_documents_total",
			Help:        "Uploaded-document events handled, by analysis outcome.",
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)
	documentDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "auto_analysis_duration_seconds",
			Help:        "Time from event receipt to a terminal document status.",
			Buckets:     []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "auto_analyses_in_flight",
			Help:        "Documents currently being auto-analyzed.",
			ConstLabels: constLabels,
		},
	)
	queueLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "upload_to_analysis_lag_seconds",
			Help:        "Delay between a document upload and the start of its auto-analysis.",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: constLabels,
		},
	)
	reconcileRuns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "reconcile_runs_total",
			Help:        "Stale-analysis sweeps by result.",
			ConstLabels: constLabels,
		},
		[]string{"result"},
	)

	registry.MustRegister(documentsTotal, documentDuration, inFlight, queueLag, reconcileRuns)

	return &WorkerMetrics{
		service:          service,
		registry:         registry,
		documentsTotal:   documentsTotal,
		documentDuration: documentDuration,
		inFlight:         inFlight,
		queueLag:         queueLag,
		reconcileRuns:    reconcileRuns,
	}
}

func (m *WorkerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartDocument() {
	m.inFlight.Inc()
}

func (m *WorkerMetrics) FinishDocument(duration time.Duration, err error) {
	m.inFlight.Dec()
	outcome := WorkerOutcome(err)
	m.documentsTotal.WithLabelValues(outcome).Inc()
	m.documentDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveQueueLag drops negative lags from clock skew between API and worker.
func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.Observe(lag.Seconds())
}

// ObserveReconcileRun records one sweep: "idle" found nothing, "reconciled"
// failed at least one document, "error" hit an update or listing error.
func (m *WorkerMetrics) ObserveReconcileRun(reconciled int, err error) {
	result := "idle"
	switch {
	case err != nil:
		result = "error"
	case reconciled > 0:
		result = "reconciled"
	}
	m.reconcileRuns.WithLabelValues(result).Inc()
}
