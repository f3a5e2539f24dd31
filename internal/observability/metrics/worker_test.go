package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
)

func scrape(t *testing.T, m *WorkerMetrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestWorkerMetricsLabelAutoAnalysisOutcomes(t *testing.T) {
	m := NewWorkerMetrics("worker")

	m.StartDocument()
	m.FinishDocument(3*time.Second, nil)
	m.StartDocument()
	m.FinishDocument(time.Second, domain.WrapError(domain.ErrAnalysisBackend, "vision generate", errors.New("503")))
	m.StartDocument()
	m.FinishDocument(time.Second, fmt.Errorf("fetch document by id: %w", domain.ErrDocumentNotFound))
	m.ObserveQueueLag(-time.Second)

	body := scrape(t, m)
	for _, want := range []string{
		`blueprint_worker_uploaded_documents_total{outcome="analyzed",service="worker"} 1`,
		`blueprint_worker_uploaded_documents_total{outcome="backend_error",service="worker"} 1`,
		`blueprint_worker_uploaded_documents_total{outcome="document_missing",service="worker"} 1`,
		`blueprint_worker_auto_analyses_in_flight{service="worker"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics output to contain %q", want)
		}
	}
	if !strings.Contains(body, `blueprint_worker_upload_to_analysis_lag_seconds_count{service="worker"} 0`) {
		t.Fatalf("expected negative lag to be dropped")
	}
}

func TestWorkerOutcomeClassifiesDomainErrors(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, WorkerOutcomeAnalyzed},
		{domain.WrapError(domain.ErrUnsupportedFormat, "normalize", errors.New("dwg")), WorkerOutcomeUnsupported},
		{domain.WrapError(domain.ErrFormatConversion, "rasterize", errors.New("pdftoppm")), WorkerOutcomeUnsupported},
		{domain.WrapError(domain.ErrAnalysisSuperseded, "save analysis", errors.New("id=doc-1")), WorkerOutcomeSuperseded},
		{domain.WrapError(domain.ErrPersistence, "save analysis", errors.New("reset")), WorkerOutcomePersistence},
		{fmt.Errorf("extract: %w", context.DeadlineExceeded), WorkerOutcomeTimeout},
		{errors.New("unexpected"), WorkerOutcomeError},
	}
	for _, tc := range cases {
		if got := WorkerOutcome(tc.err); got != tc.want {
			t.Fatalf("WorkerOutcome(%v): expected %q, got %q", tc.err, tc.want, got)
		}
	}
}

func TestWorkerMetricsCountReconcileRuns(t *testing.T) {
	m := NewWorkerMetrics("worker")

	m.ObserveReconcileRun(0, nil)
	m.ObserveReconcileRun(2, nil)
	m.ObserveReconcileRun(1, errors.New("db down"))

	body := scrape(t, m)
	for _, want := range []string{
		`blueprint_worker_reconcile_runs_total{result="idle",service="worker"} 1`,
		`blueprint_worker_reconcile_runs_total{result="reconciled",service="worker"} 1`,
		`blueprint_worker_reconcile_runs_total{result="error",service="worker"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics output to contain %q", want)
		}
	}
}
