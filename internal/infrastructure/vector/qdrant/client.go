package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
	"github.com/kirillkom/blueprint-assistant/internal/infrastructure/resilience"
)

const (
	payloadDocumentID = "document_id"
	payloadOwnerID    = "owner_id"
	payloadChunkIndex = "chunk_index"
)

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredVectorSize int
}

func New(baseURL, collection string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		executor:   executor,
	}
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// ReplaceDocumentChunks drops every stored chunk of the affected documents
// and upserts the new ones.
func (c *Client) ReplaceDocumentChunks(ctx context.Context, chunks []domain.IndexChunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors))
	}
	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	seen := make(map[string]struct{})
	for _, chunk := range chunks {
		if _, ok := seen[chunk.DocumentID]; ok {
			continue
		}
		seen[chunk.DocumentID] = struct{}{}
		deleteBody := map[string]any{"filter": matchFilter(payloadDocumentID, chunk.DocumentID)}
		if err := c.do(ctx, http.MethodPost, "/points/delete?wait=true", deleteBody, nil, "delete"); err != nil {
			return err
		}
	}

	points := make([]point, 0, len(chunks))
	for i, chunk := range chunks {
		points = append(points, point{
			ID:     pointID(chunk.DocumentID, chunk.Index),
			Vector: vectors[i],
			Payload: map[string]any{
				payloadDocumentID: chunk.DocumentID,
				payloadOwnerID:    chunk.OwnerID,
				payloadChunkIndex: chunk.Index,
				"text":            chunk.Text,
			},
		})
	}
	return c.do(ctx, http.MethodPut, "/points?wait=true", map[string]any{"points": points}, nil, "upsert")
}

// SearchDocuments returns document ids of the owner's nearest chunks in
// rank order without repeats. A missing collection yields no ids.
func (c *Client) SearchDocuments(ctx context.Context, ownerID string, queryVector []float32, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": []string{payloadDocumentID},
		"filter":       matchFilter(payloadOwnerID, ownerID),
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	err := c.do(ctx, http.MethodPost, "/points/search", reqBody, &searchResp, "search")
	if err != nil {
		var statusErr *resilience.HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return []string{}, nil
		}
		return nil, err
	}

	seen := make(map[string]struct{}, len(searchResp.Result))
	out := make([]string, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		id := getStringPayload(r.Payload, payloadDocumentID)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	if c.ensuredVectorSize == vectorSize {
		return nil
	}

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	err := c.do(ctx, http.MethodPut, "", reqBody, nil, "ensure collection")
	var statusErr *resilience.HTTPStatusError
	if err != nil && !(errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict) {
		return err
	}

	// Filtered search needs keyword indexes on the payload keys.
	for _, field := range []string{payloadOwnerID, payloadDocumentID} {
		indexBody := map[string]any{"field_name": field, "field_schema": "keyword"}
		if err := c.do(ctx, http.MethodPut, "/index?wait=true", indexBody, nil, "create payload index"); err != nil {
			return err
		}
	}
	c.ensuredVectorSize = vectorSize
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}
	url := fmt.Sprintf("%s/collections/%s%s", c.baseURL, c.collection, path)

	call := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return &resilience.HTTPStatusError{
				Service:    "qdrant",
				Operation:  operation,
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Body:       string(raw),
			}
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}

	if c.executor == nil {
		return call(ctx)
	}
	op := "qdrant." + strings.ReplaceAll(operation, " ", "_")
	if err := c.executor.Execute(ctx, op, call, resilience.ClassifyHTTP); err != nil {
		return resilience.WrapTemporary("qdrant "+operation, err, resilience.ClassifyHTTP)
	}
	return nil
}

func matchFilter(key, value string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{"key": key, "match": map[string]any{"value": value}},
		},
	}
}

// pointID is stable per (document, chunk) so re-indexing overwrites in place.
func pointID(documentID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(documentID+"#"+strconv.Itoa(index))).String()
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
