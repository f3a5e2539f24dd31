package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/blueprint-assistant/internal/bootstrap"
	"github.com/kirillkom/blueprint-assistant/internal/config"
	"github.com/kirillkom/blueprint-assistant/internal/core/ports"
	"github.com/kirillkom/blueprint-assistant/internal/observability/logging"
	"github.com/kirillkom/blueprint-assistant/internal/observability/metrics"
)

const service = "worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger(service, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(service)
	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{
		Registerer:       workerMetrics.Registry(),
		HandlerTimeout:   5 * time.Minute,
		QueueLagObserver: func(lag time.Duration) { workerMetrics.ObserveQueueLag(lag) },
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsMux(workerMetrics),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	go runReconciler(ctx, app.Reconciler, cfg.ReconcileInterval, workerMetrics, logger)

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeDocumentUploaded(ctx, func(handlerCtx context.Context, documentID string) error {
		workerMetrics.StartDocument()
		started := time.Now()
		err := app.Analyzer.AnalyzeUploaded(handlerCtx, documentID)
		workerMetrics.FinishDocument(time.Since(started), err)
		return err
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
	}
}

func metricsMux(m *metrics.WorkerMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// runReconciler fails analyses left in the analyzing state by a crashed worker.
func runReconciler(ctx context.Context, reconciler ports.AnalysisReconciler, interval time.Duration, m *metrics.WorkerMetrics, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := reconciler.ReconcileStale(ctx)
		if ctx.Err() == nil {
			m.ObserveReconcileRun(n, err)
		}
		if err != nil && ctx.Err() == nil {
			logger.Warn("reconcile_failed", "error", err)
		} else if n > 0 {
			logger.Info("reconcile_completed", "failed_documents", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
