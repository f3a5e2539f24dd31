package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
)

const (
	maxJSONBodyBytes   = 1 << 20
	multipartOverhead  = 1 << 20
	multipartMemoryMax = 32 << 20
)

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if rt.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemoryMax); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "upload exceeds size limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart form is required"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.svc.Uploader.Upload(
		r.Context(),
		userIDFromContext(r.Context()),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := rt.svc.Reader.ListDocuments(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	doc, err := rt.svc.Reader.GetDocument(r.Context(), userIDFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) analyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocumentID string `json:"documentId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	analysis, err := rt.svc.Analyzer.Analyze(r.Context(), userIDFromContext(r.Context()), strings.TrimSpace(req.DocumentID))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analysis": analysis})
}

func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocumentID     string `json:"documentId"`
		Message        string `json:"message"`
		ConversationID string `json:"conversationId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	reply, err := rt.svc.Chat.Converse(
		r.Context(),
		userIDFromContext(r.Context()),
		strings.TrimSpace(req.DocumentID),
		req.Message,
		strings.TrimSpace(req.ConversationID),
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (rt *Router) getConversation(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := pathParam(w, r, "conversationId")
	if !ok {
		return
	}
	conv, err := rt.svc.Chat.GetConversation(r.Context(), userIDFromContext(r.Context()), conversationID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (rt *Router) compare(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocumentID1 string `json:"documentId1"`
		DocumentID2 string `json:"documentId2"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := rt.svc.Comparer.Compare(
		r.Context(),
		userIDFromContext(r.Context()),
		strings.TrimSpace(req.DocumentID1),
		strings.TrimSpace(req.DocumentID2),
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comparison": result})
}

func (rt *Router) compareHistory(w http.ResponseWriter, r *http.Request) {
	documentID1, ok := requiredQueryParam(w, r, "documentId1")
	if !ok {
		return
	}
	documentID2, ok := requiredQueryParam(w, r, "documentId2")
	if !ok {
		return
	}
	history, err := rt.svc.Comparer.History(r.Context(), userIDFromContext(r.Context()), documentID1, documentID2)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if history == nil {
		history = []domain.Comparison{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"comparisons": history})
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	hits, err := rt.svc.Searcher.Search(r.Context(), userIDFromContext(r.Context()), req.Query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if hits == nil {
		hits = []domain.SearchHit{}
	}
	writeJSON(w, http.StatusOK, domain.SearchResults{Results: hits})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)).Decode(out); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return false
	}
	return true
}
