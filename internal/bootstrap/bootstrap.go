package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/blueprint-assistant/internal/config"
	"github.com/kirillkom/blueprint-assistant/internal/core/ports"
	"github.com/kirillkom/blueprint-assistant/internal/core/usecase"
	"github.com/kirillkom/blueprint-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/blueprint-assistant/internal/infrastructure/llm/anthropic"
	"github.com/kirillkom/blueprint-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/blueprint-assistant/internal/infrastructure/normalize"
	"github.com/kirillkom/blueprint-assistant/internal/infrastructure/ocr"
	"github.com/kirillkom/blueprint-assistant/internal/infrastructure/ocr/pdftext"
	"github.com/kirillkom/blueprint-assistant/internal/infrastructure/ocr/textract"
	"github.com/kirillkom/blueprint-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/blueprint-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/blueprint-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/blueprint-assistant/internal/infrastructure/storage/fetch"
	"github.com/kirillkom/blueprint-assistant/internal/infrastructure/storage/localfs"
	s3store "github.com/kirillkom/blueprint-assistant/internal/infrastructure/storage/s3"
	"github.com/kirillkom/blueprint-assistant/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/blueprint-assistant/internal/infrastructure/vision"
	"github.com/kirillkom/blueprint-assistant/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue *nats.Queue

	Uploader   ports.DocumentUploader
	Reader     ports.DocumentReader
	Analyzer   ports.DocumentAnalyzer
	Chat       ports.DocumentChat
	Comparer   ports.DocumentComparer
	Searcher   ports.DocumentSearcher
	Reconciler ports.AnalysisReconciler

	closeFn func()
}

// Options tune process-specific wiring.
type Options struct {
	// Registerer receives pipeline metrics. Nil uses a private registry.
	Registerer prometheus.Registerer
	// QueueLagObserver is passed to the NATS subscriber.
	QueueLagObserver func(time.Duration)
	// HandlerTimeout bounds one queued document. Zero means no deadline.
	HandlerTimeout time.Duration
	// SkipQueue leaves Queue nil, for processes that neither publish nor consume.
	SkipQueue bool
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	registerer := opts.Registerer
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	pipelineMetrics := metrics.NewPipelineMetrics(registerer)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	closers := []func(){func() { _ = db.Close() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*App, error) {
		closeAll()
		return nil, err
	}

	if err := postgres.Migrate(ctx, db); err != nil {
		return fail(fmt.Errorf("migrate schema: %w", err))
	}
	documents := postgres.NewDocumentRepository(db)
	conversations := postgres.NewConversationRepository(db)
	comparisons := postgres.NewComparisonRepository(db)

	executor := resilience.NewExecutor(resilience.DefaultConfig(), logger)

	blobs, fetcher, err := buildStorage(ctx, cfg, executor)
	if err != nil {
		return fail(err)
	}

	normalizer := normalize.New(
		normalize.NewPopplerRasterizer(cfg.PDFToPPMPath, nil),
		nil,
		normalize.Options{MaxPages: cfg.PDFMaxPages, RenderScale: cfg.PDFRenderScale},
		logger,
	)

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaVisionModel, cfg.OllamaEmbedModel, ollama.WithExecutor(executor))
	backend, err := buildVisionBackend(cfg, ollamaClient, executor)
	if err != nil {
		return fail(err)
	}
	visionClient := vision.New(fetcher, normalizer, backend, pipelineMetrics, logger)

	extractor, err := buildOCR(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}

	var indexer *usecase.AnalysisIndexer
	if cfg.SearchPrefilterEnabled {
		indexer = usecase.NewAnalysisIndexer(
			chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
			ollama.NewEmbedder(ollamaClient),
			qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, executor),
			cfg.SearchPrefilterTopK,
		)
	}

	var queue *nats.Queue
	if !opts.SkipQueue {
		queue, err = nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			HandlerTimeout:     opts.HandlerTimeout,
			ResilienceExecutor: executor,
			LagObserver:        opts.QueueLagObserver,
			Logger:             logger,
		})
		if err != nil {
			return fail(fmt.Errorf("init message queue: %w", err))
		}
		closers = append(closers, queue.Close)
	}

	ocrCache := usecase.NewOCRCache(documents, fetcher, extractor, pipelineMetrics, logger)
	structured := usecase.NewStructuredExtractionService(visionClient, pipelineMetrics, logger)

	app := &App{
		Config: cfg,
		Logger: logger,
		Queue:  queue,

		Reader:     usecase.NewDocumentQueryUseCase(documents),
		Analyzer:   usecase.NewAnalyzeDocumentUseCase(documents, structured, ocrCache, indexer, pipelineMetrics, logger, cfg.AnalysisStaleAfter),
		Chat:       usecase.NewChatUseCase(documents, conversations, visionClient, ocrCache, logger),
		Comparer:   usecase.NewCompareUseCase(documents, comparisons, visionClient, ocrCache, pipelineMetrics, logger),
		Searcher:   usecase.NewSearchUseCase(documents, visionClient, indexer, pipelineMetrics, logger),
		Reconciler: usecase.NewReconcileAnalysesUseCase(documents, cfg.AnalysisStaleAfter, pipelineMetrics, logger),

		closeFn: closeAll,
	}
	if queue != nil {
		app.Uploader = usecase.NewUploadDocumentUseCase(documents, blobs, queue, cfg.MaxUploadBytes, logger)
	}
	return app, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func buildStorage(ctx context.Context, cfg config.Config, executor *resilience.Executor) (ports.BlobStore, ports.BlobFetcher, error) {
	fetchOpts := []fetch.Option{fetch.WithExecutor(executor)}

	var blobs ports.BlobStore
	switch cfg.StorageBackend {
	case "s3":
		store, err := s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			return nil, nil, fmt.Errorf("init s3 storage: %w", err)
		}
		blobs = store
		fetchOpts = append(fetchOpts, fetch.WithBackend("s3", store))
	case "", "localfs":
		store, err := localfs.New(cfg.StoragePath)
		if err != nil {
			return nil, nil, fmt.Errorf("init local storage: %w", err)
		}
		blobs = store
		fetchOpts = append(fetchOpts, fetch.WithBackend("file", store))
	default:
		return nil, nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
	return blobs, fetch.New(fetchOpts...), nil
}

// buildVisionBackend returns nil for "none"; the vision client then fails
// every call with an analysis backend error.
func buildVisionBackend(cfg config.Config, ollamaClient *ollama.Client, executor *resilience.Executor) (ports.VisionBackend, error) {
	switch cfg.VisionBackend {
	case "", "ollama":
		return ollamaClient, nil
	case "anthropic":
		client, err := anthropic.New(anthropic.Config{
			APIKey:    cfg.AnthropicAPIKey,
			BaseURL:   cfg.AnthropicBaseURL,
			Model:     cfg.AnthropicModel,
			MaxTokens: int64(cfg.AnthropicMaxTokens),
		}, executor)
		if err != nil {
			return nil, fmt.Errorf("init anthropic backend: %w", err)
		}
		return client, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown VISION_BACKEND %q", cfg.VisionBackend)
	}
}

func buildOCR(ctx context.Context, cfg config.Config, logger *slog.Logger) (ports.TextExtractor, error) {
	switch cfg.OCRBackend {
	case "", "none":
		return ocr.Disabled{}, nil
	case "pdftext":
		return pdftext.NewExtractor(logger), nil
	case "textract":
		extractor, err := textract.New(ctx, cfg.AWSRegion, logger)
		if err != nil {
			return nil, fmt.Errorf("init textract: %w", err)
		}
		return extractor, nil
	default:
		return nil, fmt.Errorf("unknown OCR_BACKEND %q", cfg.OCRBackend)
	}
}
