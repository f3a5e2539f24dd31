package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
)

type documentRepoFake struct {
	mu   sync.Mutex
	docs map[string]*domain.Document

	createErr      error
	saveErr        error
	markFailedErr  error
	ocrWrites      int
	markAnalyzing  []bool
	failedMessages map[string]string
	staleIDs       []string
	staleBefore    time.Time

	// interleave runs under the lock before a run finishes, to stage a
	// concurrent writer.
	interleave func(doc *domain.Document)
}

func newDocumentRepoFake(docs ...domain.Document) *documentRepoFake {
	f := &documentRepoFake{docs: map[string]*domain.Document{}, failedMessages: map[string]string{}}
	for i := range docs {
		doc := docs[i]
		f.docs[doc.ID] = &doc
	}
	return f
}

func (f *documentRepoFake) Create(_ context.Context, doc *domain.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copyDoc := *doc
	f.docs[doc.ID] = &copyDoc
	return nil
}

func (f *documentRepoFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	copyDoc := *doc
	return &copyDoc, nil
}

func (f *documentRepoFake) ListByOwner(_ context.Context, ownerID string) ([]domain.Document, error) {
	return f.list(func(d *domain.Document) bool { return d.OwnerID == ownerID }), nil
}

func (f *documentRepoFake) ListAnalyzedByOwner(_ context.Context, ownerID string) ([]domain.Document, error) {
	return f.list(func(d *domain.Document) bool { return d.OwnerID == ownerID && d.Analyzed }), nil
}

func (f *documentRepoFake) list(keep func(*domain.Document) bool) []domain.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Document, 0, len(f.docs))
	for _, doc := range f.docs {
		if keep(doc) {
			out = append(out, *doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *documentRepoFake) SaveOCRText(_ context.Context, id, text string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ocrWrites++
	doc := f.docs[id]
	if doc.OCRText == "" {
		doc.OCRText = text
		doc.OCRExtractedAt = &at
	}
	return nil
}

func (f *documentRepoFake) MarkAnalyzing(_ context.Context, id string, startedAt, staleBefore time.Time, auto bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markAnalyzing = append(f.markAnalyzing, auto)
	doc := f.docs[id]
	if doc.Status == domain.StatusAnalyzing && doc.AnalysisStartedAt != nil && !doc.AnalysisStartedAt.Before(staleBefore) {
		return domain.WrapError(domain.ErrAnalysisInProgress, "mark analyzing", errors.New(id))
	}
	doc.Status = domain.StatusAnalyzing
	doc.AnalysisStartedAt = &startedAt
	doc.AutoAnalyzed = doc.AutoAnalyzed || auto
	return nil
}

// ownsRun must be called with f.mu held.
func (f *documentRepoFake) ownsRun(id string, runStartedAt time.Time) (*domain.Document, bool) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, false
	}
	if f.interleave != nil {
		f.interleave(doc)
	}
	if doc.Status != domain.StatusAnalyzing || doc.AnalysisStartedAt == nil || !doc.AnalysisStartedAt.Equal(runStartedAt) {
		return nil, false
	}
	return doc, true
}

func (f *documentRepoFake) SaveAnalysis(_ context.Context, id string, runStartedAt time.Time, analysis domain.StructuredAnalysis, at time.Time) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.ownsRun(id, runStartedAt)
	if !ok {
		return domain.WrapError(domain.ErrAnalysisSuperseded, "save analysis", errors.New(id))
	}
	doc.Analysis = &analysis
	doc.Status = domain.StatusCompleted
	doc.Analyzed = true
	doc.Error = ""
	doc.UpdatedAt = at
	return nil
}

func (f *documentRepoFake) MarkFailed(_ context.Context, id string, runStartedAt time.Time, errMessage string, _ time.Time) error {
	if f.markFailedErr != nil {
		return f.markFailedErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.ownsRun(id, runStartedAt)
	if !ok {
		return domain.WrapError(domain.ErrAnalysisSuperseded, "mark failed", errors.New(id))
	}
	f.failedMessages[id] = errMessage
	doc.Status = domain.StatusFailed
	doc.Error = errMessage
	return nil
}

func (f *documentRepoFake) ListStaleAnalyzing(_ context.Context, startedBefore time.Time) ([]string, error) {
	f.staleBefore = startedBefore
	return f.staleIDs, nil
}

func (f *documentRepoFake) FailStale(_ context.Context, id string, startedBefore time.Time, errMessage string, _ time.Time) (bool, error) {
	if f.markFailedErr != nil {
		return false, f.markFailedErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok || doc.Status != domain.StatusAnalyzing {
		return false, nil
	}
	if doc.AnalysisStartedAt != nil && !doc.AnalysisStartedAt.Before(startedBefore) {
		return false, nil
	}
	f.failedMessages[id] = errMessage
	doc.Status = domain.StatusFailed
	doc.Error = errMessage
	return true, nil
}

type conversationRepoFake struct {
	convs   map[string]domain.Conversation
	saves   int
	saveErr error
}

func newConversationRepoFake() *conversationRepoFake {
	return &conversationRepoFake{convs: map[string]domain.Conversation{}}
}

func (f *conversationRepoFake) GetByID(_ context.Context, id string) (*domain.Conversation, error) {
	conv, ok := f.convs[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	conv.Turns = append([]domain.Turn(nil), conv.Turns...)
	return &conv, nil
}

func (f *conversationRepoFake) Save(_ context.Context, conv *domain.Conversation) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	stored, exists := f.convs[conv.ID]
	switch {
	case conv.IsNew() && exists:
		return domain.ErrVersionConflict
	case !conv.IsNew() && (!exists || stored.Version != conv.Version):
		return domain.ErrVersionConflict
	}
	f.saves++
	conv.Version++
	saved := *conv
	saved.Turns = append([]domain.Turn(nil), conv.Turns...)
	f.convs[conv.ID] = saved
	return nil
}

type comparisonRepoFake struct {
	items     []domain.Comparison
	appendErr error
}

func (f *comparisonRepoFake) Append(_ context.Context, cmp *domain.Comparison) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.items = append(f.items, *cmp)
	return nil
}

func (f *comparisonRepoFake) ListByPair(_ context.Context, userID, a, b string) ([]domain.Comparison, error) {
	key := domain.PairKey(a, b)
	out := make([]domain.Comparison, 0)
	for _, item := range f.items {
		if item.UserID == userID && domain.PairKey(item.DocumentAID, item.DocumentBID) == key {
			out = append(out, item)
		}
	}
	return out, nil
}

type visionCall struct {
	url          string
	prompt       string
	systemPrompt string
}

type visionFake struct {
	replies []string
	err     error
	calls   []visionCall
}

func (f *visionFake) Analyze(_ context.Context, url, prompt, systemPrompt string) (string, error) {
	f.calls = append(f.calls, visionCall{url: url, prompt: prompt, systemPrompt: systemPrompt})
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", nil
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

type fetcherFake struct {
	fetches int
	err     error
}

func (f *fetcherFake) Fetch(context.Context, string) ([]byte, string, error) {
	f.fetches++
	if f.err != nil {
		return nil, "", f.err
	}
	return []byte("bytes"), "image/png", nil
}

type textExtractorFake struct {
	available bool
	text      string
	calls     int
}

func (f *textExtractorFake) Available() bool { return f.available }

func (f *textExtractorFake) Extract(context.Context, []byte, string) domain.OCRResult {
	f.calls++
	result := domain.EmptyOCRResult()
	result.Text = f.text
	return result
}

type metricsFake struct {
	ocr        []string
	parse      []string
	analyses   []string
	reconciled int
}

func (m *metricsFake) ObserveOCR(outcome string)      { m.ocr = append(m.ocr, outcome) }
func (m *metricsFake) ObserveParse(tier string)       { m.parse = append(m.parse, tier) }
func (m *metricsFake) ObserveAnalysis(outcome string) { m.analyses = append(m.analyses, outcome) }
func (m *metricsFake) ObserveReconciled(n int)        { m.reconciled += n }

type chunkerFake struct{}

func (chunkerFake) Split(text string) []string {
	if text == "" {
		return nil
	}
	return []string{text}
}

type embedderFake struct {
	err     error
	queries []string
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

type vectorStoreFake struct {
	chunks    []domain.IndexChunk
	searchIDs []string
	searchErr error
	owner     string
}

func (f *vectorStoreFake) ReplaceDocumentChunks(_ context.Context, chunks []domain.IndexChunk, _ [][]float32) error {
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func (f *vectorStoreFake) SearchDocuments(_ context.Context, ownerID string, _ []float32, _ int) ([]string, error) {
	f.owner = ownerID
	return f.searchIDs, f.searchErr
}

type blobStoreFake struct {
	name string
	data []byte
	err  error
}

func (f *blobStoreFake) Put(_ context.Context, _ string, filename, _ string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.name = filename
	f.data = data
	return "file:///blobs/" + filename, nil
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishDocumentUploaded(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, documentID)
	return nil
}

func (f *queueFake) SubscribeDocumentUploaded(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

func ownedDoc(id, owner string) domain.Document {
	return domain.Document{
		ID:         id,
		OwnerID:    owner,
		Filename:   id + ".png",
		StorageURL: "file:///blobs/" + id + ".png",
		Status:     domain.StatusPending,
	}
}
