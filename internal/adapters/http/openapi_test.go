package httpadapter

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
)

func loadSpec(t *testing.T) *openapi3.T {
	t.Helper()
	doc, err := openapi3.NewLoader().LoadFromData(openAPISpec)
	if err != nil {
		t.Fatalf("load openapi: %v", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		t.Fatalf("validate openapi: %v", err)
	}
	return doc
}

func TestOpenAPISpecIsServed(t *testing.T) {
	handler := NewRouter(devConfig(), defaultServices(), nil, nil).Handler()
	res := serve(handler, http.MethodGet, "/openapi.yaml", nil, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !bytes.Equal(res.Body.Bytes(), openAPISpec) {
		t.Fatalf("expected embedded spec body")
	}
	loadSpec(t)
}

func TestResponsesMatchOpenAPISpec(t *testing.T) {
	doc := loadSpec(t)
	handler := NewRouter(devConfig(), defaultServices(), nil, nil).Handler()

	cases := []struct {
		method     string
		target     string
		specPath   string
		pathParams map[string]string
		body       string
	}{
		{http.MethodGet, "/healthz", "/healthz", nil, ""},
		{http.MethodGet, "/v1/documents", "/v1/documents", nil, ""},
		{http.MethodGet, "/v1/documents/doc-9", "/v1/documents/{id}", map[string]string{"id": "doc-9"}, ""},
		{http.MethodPost, "/analyze", "/analyze", nil, `{"documentId":"doc-1"}`},
		{http.MethodPost, "/chat", "/chat", nil, `{"documentId":"doc-1","message":"how big?"}`},
		{http.MethodGet, "/chat/conv-1", "/chat/{conversationId}", map[string]string{"conversationId": "conv-1"}, ""},
		{http.MethodPost, "/compare", "/compare", nil, `{"documentId1":"a","documentId2":"b"}`},
		{http.MethodGet, "/compare?documentId1=a&documentId2=b", "/compare", nil, ""},
		{http.MethodPost, "/search", "/search", nil, `{"query":"elevator"}`},
		{http.MethodPost, "/analyze", "/analyze", nil, `{"documentId":`},
	}

	for _, tc := range cases {
		t.Run(tc.method+" "+tc.target, func(t *testing.T) {
			var body []byte
			if tc.body != "" {
				body = []byte(tc.body)
			}
			res := serve(handler, tc.method, tc.target, body, nil)

			pathItem := doc.Paths.Value(tc.specPath)
			if pathItem == nil {
				t.Fatalf("path %s missing from spec", tc.specPath)
			}
			operation := pathItem.GetOperation(tc.method)
			if operation == nil {
				t.Fatalf("operation %s %s missing from spec", tc.method, tc.specPath)
			}

			req := httptest.NewRequest(tc.method, tc.target, nil)
			input := &openapi3filter.ResponseValidationInput{
				RequestValidationInput: &openapi3filter.RequestValidationInput{
					Request:    req,
					PathParams: tc.pathParams,
					Route: &routers.Route{
						Spec:      doc,
						Path:      tc.specPath,
						PathItem:  pathItem,
						Method:    tc.method,
						Operation: operation,
					},
				},
				Status:  res.Code,
				Header:  res.Header(),
				Body:    io.NopCloser(bytes.NewReader(res.Body.Bytes())),
				Options: &openapi3filter.Options{IncludeResponseStatus: true},
			}
			if err := openapi3filter.ValidateResponse(context.Background(), input); err != nil {
				t.Fatalf("response %d does not match spec: %v\n%s", res.Code, err, res.Body.String())
			}
		})
	}
}
