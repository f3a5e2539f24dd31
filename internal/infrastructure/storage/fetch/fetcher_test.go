package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
)

type backendFake struct {
	calls int
	url   string
}

func (b *backendFake) Fetch(_ context.Context, url string) ([]byte, string, error) {
	b.calls++
	b.url = url
	return []byte("local"), "image/png", nil
}

func TestFetchHTTPReturnsBodyAndContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	data, contentType, err := New().Fetch(context.Background(), server.URL+"/plan.pdf")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(data) != "%PDF-1.4" || contentType != "application/pdf" {
		t.Fatalf("unexpected result %q %s", data, contentType)
	}
}

func TestFetchHTTPServerErrorIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, _, err := New().Fetch(context.Background(), server.URL)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestFetchHTTPEnforcesSizeLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer server.Close()

	if _, _, err := New(WithMaxBytes(4)).Fetch(context.Background(), server.URL); err == nil {
		t.Fatalf("expected size limit error")
	}
}

func TestFetchRoutesRegisteredSchemes(t *testing.T) {
	files := &backendFake{}
	f := New(WithBackend("file", files))

	data, _, err := f.Fetch(context.Background(), "file:///blobs/u1/a.png")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(data) != "local" || files.calls != 1 || files.url != "file:///blobs/u1/a.png" {
		t.Fatalf("expected file backend call, got calls=%d url=%s", files.calls, files.url)
	}

	if _, _, err := f.Fetch(context.Background(), "s3://bucket/key"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unregistered scheme, got %v", err)
	}
}
