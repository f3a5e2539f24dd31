// Package normalize converts uploaded blueprints into images a vision model accepts.
package normalize

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
)

const (
	defaultMaxPages    = 10
	defaultRenderScale = 2.0
	minRenderScale     = 2.0
	defaultConcurrency = 4
)

type Options struct {
	MaxPages    int
	RenderScale float64
	Concurrency int
}

func (o Options) normalize() Options {
	if o.MaxPages <= 0 {
		o.MaxPages = defaultMaxPages
	}
	if o.RenderScale < minRenderScale {
		o.RenderScale = defaultRenderScale
	}
	if o.Concurrency <= 0 {
		o.Concurrency = defaultConcurrency
	}
	return o
}

type Normalizer struct {
	detector   *FormatDetector
	rasterizer PageRasterizer
	opts       Options
	logger     *slog.Logger
}

func New(rasterizer PageRasterizer, detector *FormatDetector, opts Options, logger *slog.Logger) *Normalizer {
	if detector == nil {
		detector = NewFormatDetector()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		detector:   detector,
		rasterizer: rasterizer,
		opts:       opts.normalize(),
		logger:     logger,
	}
}

func (n *Normalizer) Normalize(ctx context.Context, data []byte, contentType, name string) (domain.NormalizedDocument, error) {
	switch domain.DetectMediaKind(contentType, name) {
	case domain.MediaPDF:
		images, err := n.normalizePDF(ctx, data)
		if err != nil {
			return domain.NormalizedDocument{}, err
		}
		return domain.NormalizedDocument{Images: images}, nil
	case domain.MediaCAD:
		n.logger.Warn("cad_parsing_not_implemented", "name", name, "content_type", contentType)
		return domain.NormalizedDocument{CAD: emptyCADPlaceholder()}, nil
	default:
		img, err := n.normalizeImage(data, contentType, name)
		if err != nil {
			return domain.NormalizedDocument{}, err
		}
		return domain.NormalizedDocument{Images: []domain.Image{img}}, nil
	}
}

func (n *Normalizer) normalizeImage(data []byte, contentType, name string) (domain.Image, error) {
	subtype, passthrough := n.detector.Detect(data, contentType, name)
	if passthrough {
		return domain.Image{Data: data, MimeType: subtype}, nil
	}
	return reencodePNG(data)
}

func (n *Normalizer) normalizePDF(ctx context.Context, data []byte) ([]domain.Image, error) {
	if n.rasterizer == nil {
		return nil, conversionError(errNoRasterizer)
	}

	images, err := n.paginate(ctx, data)
	if err == nil {
		return images, nil
	}
	n.logger.Warn("pdf_pagination_failed", "error", err)

	first, err := n.rasterizer.RenderPage(ctx, data, 1, n.opts.RenderScale)
	if err != nil {
		return nil, conversionError(err)
	}
	return []domain.Image{{Data: first, MimeType: "image/png"}}, nil
}

func (n *Normalizer) paginate(ctx context.Context, data []byte) ([]domain.Image, error) {
	count, err := n.rasterizer.PageCount(ctx, data)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, errNoPages
	}
	if count > n.opts.MaxPages {
		n.logger.Info("pdf_pages_truncated", "pages", count, "max_pages", n.opts.MaxPages)
		count = n.opts.MaxPages
	}

	pages := make([]domain.Image, count)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(n.opts.Concurrency)
	for i := range pages {
		group.Go(func() error {
			png, err := n.rasterizer.RenderPage(groupCtx, data, i+1, n.opts.RenderScale)
			if err != nil {
				return err
			}
			pages[i] = domain.Image{Data: png, MimeType: "image/png"}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}

func emptyCADPlaceholder() *domain.CADPlaceholder {
	return &domain.CADPlaceholder{
		Layers:     []string{},
		Dimensions: []string{},
		Blocks:     []string{},
		Text:       []string{},
	}
}
