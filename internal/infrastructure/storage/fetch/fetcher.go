package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
	"github.com/kirillkom/blueprint-assistant/internal/core/ports"
	"github.com/kirillkom/blueprint-assistant/internal/infrastructure/resilience"
)

const DefaultMaxBytes = 64 << 20

type fetchResult struct {
	data        []byte
	contentType string
}

// Fetcher resolves document URLs by scheme. http and https are fetched
// directly; other schemes go to the registered backend.
type Fetcher struct {
	httpClient *http.Client
	executor   *resilience.Executor
	maxBytes   int64
	backends   map[string]ports.BlobFetcher
}

type Option func(*Fetcher)

func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.httpClient = client
		}
	}
}

func WithExecutor(executor *resilience.Executor) Option {
	return func(f *Fetcher) { f.executor = executor }
}

func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// WithBackend routes scheme (file, s3) to backend.
func WithBackend(scheme string, backend ports.BlobFetcher) Option {
	return func(f *Fetcher) {
		if backend != nil {
			f.backends[strings.ToLower(scheme)] = backend
		}
	}
}

func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		maxBytes:   DefaultMaxBytes,
		backends:   make(map[string]ports.BlobFetcher),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, "", domain.WrapError(domain.ErrInvalidInput, "fetch document", err)
	}

	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "http", "https":
		res, err := resilience.Call(ctx, f.executor, "fetch.http", func(ctx context.Context) (fetchResult, error) {
			return f.get(ctx, u.String())
		}, resilience.ClassifyHTTP)
		if err != nil {
			return nil, "", resilience.WrapTemporary("fetch document", err, resilience.ClassifyHTTP)
		}
		return res.data, res.contentType, nil
	}

	backend, ok := f.backends[scheme]
	if !ok {
		return nil, "", domain.WrapError(domain.ErrInvalidInput, "fetch document", fmt.Errorf("unsupported url scheme %q", u.Scheme))
	}
	return backend.Fetch(ctx, rawURL)
}

func (f *Fetcher) get(ctx context.Context, target string) (fetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fetchResult{}, fmt.Errorf("create fetch request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fetchResult{}, fmt.Errorf("fetch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fetchResult{}, &resilience.HTTPStatusError{
			Service:    "fetch",
			Operation:  "get",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return fetchResult{}, fmt.Errorf("read fetch body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return fetchResult{}, fmt.Errorf("document exceeds %d bytes", f.maxBytes)
	}
	return fetchResult{data: data, contentType: resp.Header.Get("Content-Type")}, nil
}
