package httpadapter

import (
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/kirillkom/blueprint-assistant/internal/config"
	"github.com/kirillkom/blueprint-assistant/internal/core/ports"
	"github.com/kirillkom/blueprint-assistant/internal/observability/metrics"
)

//go:embed openapi.yaml
var openAPISpec []byte

// Services bundles the inbound ports served over HTTP.
type Services struct {
	Uploader ports.DocumentUploader
	Reader   ports.DocumentReader
	Analyzer ports.DocumentAnalyzer
	Chat     ports.DocumentChat
	Comparer ports.DocumentComparer
	Searcher ports.DocumentSearcher
}

type Router struct {
	svc     Services
	metrics *metrics.HTTPServerMetrics
	logger  *slog.Logger
	auth    authenticator

	maxUploadBytes   int64
	rateLimitRPS     float64
	rateLimitBurst   int
	maxInflight      int
	backpressureWait time.Duration
}

func NewRouter(cfg config.Config, svc Services, httpMetrics *metrics.HTTPServerMetrics, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		svc:              svc,
		metrics:          httpMetrics,
		logger:           logger,
		auth:             newAuthenticator(cfg.AuthJWTSecret, cfg.AuthDevUser),
		maxUploadBytes:   cfg.MaxUploadBytes,
		rateLimitRPS:     cfg.APIRateLimitRPS,
		rateLimitBurst:   cfg.APIRateLimitBurst,
		maxInflight:      cfg.APIMaxInflight,
		backpressureWait: time.Duration(cfg.APIBackpressureWaitMS) * time.Millisecond,
	}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/documents", rt.uploadDocument)
	api.HandleFunc("GET /v1/documents", rt.listDocuments)
	api.HandleFunc("GET /v1/documents/{id}", rt.getDocument)
	api.HandleFunc("POST /analyze", rt.analyze)
	api.HandleFunc("POST /chat", rt.chat)
	api.HandleFunc("GET /chat/{conversationId}", rt.getConversation)
	api.HandleFunc("POST /compare", rt.compare)
	api.HandleFunc("GET /compare", rt.compareHistory)
	api.HandleFunc("POST /search", rt.search)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", serveOpenAPI)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("/", rt.auth.middleware(api))

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.maxInflight, rt.backpressureWait)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	handler = accessLogMiddleware(rt.logger, handler)
	handler = requestIDMiddleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func serveOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPISpec)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
