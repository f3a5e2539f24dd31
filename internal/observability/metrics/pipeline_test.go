package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPipelineMetricsExposedOnHTTPRegistry(t *testing.T) {
	httpMetrics := NewHTTPServerMetrics("api")
	pipeline := NewPipelineMetrics(httpMetrics.Registry())

	pipeline.ObserveVisionCall("ollama", "ok", 2*time.Second)
	pipeline.ObserveParse("fenced_json")
	pipeline.ObserveOCR("cached")
	pipeline.ObserveReconciled(2)
	pipeline.ObserveReconciled(0)

	handler := httpMetrics.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/documents/abc", nil))

	rec := httptest.NewRecorder()
	httpMetrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`blueprint_vision_calls_total{backend="ollama",outcome="ok"} 1`,
		`blueprint_parse_recovery_total{tier="fenced_json"} 1`,
		`blueprint_ocr_extractions_total{outcome="cached"} 1`,
		`blueprint_reconciled_documents_total 2`,
		`blueprint_http_requests_total{method="GET",route="/v1/documents/{id}",service="api",status="404"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics output to contain %q", want)
		}
	}
}
