package textract

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
)

// RichPayloadLimit bounds the payload sent to table/form analysis.
const RichPayloadLimit = 5 * 1024 * 1024

// API is the subset of the Textract client the extractor calls.
type API interface {
	AnalyzeDocument(ctx context.Context, in *textract.AnalyzeDocumentInput, opts ...func(*textract.Options)) (*textract.AnalyzeDocumentOutput, error)
	DetectDocumentText(ctx context.Context, in *textract.DetectDocumentTextInput, opts ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error)
}

type Extractor struct {
	api    API
	logger *slog.Logger
}

// New loads the default AWS credential chain for region.
func New(ctx context.Context, region string, logger *slog.Logger) (*Extractor, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	return NewWithAPI(textract.NewFromConfig(cfg), logger), nil
}

func NewWithAPI(api API, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{api: api, logger: logger}
}

func (e *Extractor) Available() bool { return e.api != nil }

// Extract never returns an error; backend failures degrade to an empty result.
func (e *Extractor) Extract(ctx context.Context, data []byte, contentType string) domain.OCRResult {
	if e.api == nil || len(data) == 0 {
		return domain.EmptyOCRResult()
	}

	doc := &types.Document{Bytes: data}
	if len(data) < RichPayloadLimit {
		out, err := e.api.AnalyzeDocument(ctx, &textract.AnalyzeDocumentInput{
			Document:     doc,
			FeatureTypes: []types.FeatureType{types.FeatureTypeTables, types.FeatureTypeForms},
		})
		if err == nil {
			return buildResult(out.Blocks, true)
		}
		if !richUnsupported(err) {
			e.logFailure("analyze_document", contentType, len(data), err)
			return domain.EmptyOCRResult()
		}
		e.logger.Info("ocr_rich_unsupported", "content_type", contentType, "error", err)
	}

	out, err := e.api.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{Document: doc})
	if err != nil {
		e.logFailure("detect_document_text", contentType, len(data), err)
		return domain.EmptyOCRResult()
	}
	return buildResult(out.Blocks, false)
}

func (e *Extractor) logFailure(call, contentType string, size int, err error) {
	e.logger.Warn("ocr_backend_failed",
		"call", call,
		"content_type", contentType,
		"bytes", size,
		"error", domain.WrapError(domain.ErrOCRBackend, call, err),
	)
}

func richUnsupported(err error) bool {
	var unsupported *types.UnsupportedDocumentException
	var invalid *types.InvalidParameterException
	var tooLarge *types.DocumentTooLargeException
	return errors.As(err, &unsupported) || errors.As(err, &invalid) || errors.As(err, &tooLarge)
}

func buildResult(blocks []types.Block, rich bool) domain.OCRResult {
	result := domain.EmptyOCRResult()
	byID := make(map[string]types.Block, len(blocks))
	lines := make([]string, 0, len(blocks))

	for _, b := range blocks {
		if id := aws.ToString(b.Id); id != "" {
			byID[id] = b
		}
		if b.BlockType == types.BlockTypeLine {
			if text := strings.TrimSpace(aws.ToString(b.Text)); text != "" {
				lines = append(lines, text)
			}
		}
	}
	result.Text = strings.Join(lines, "\n")
	result.Blocks = lines
	if !rich {
		return result
	}

	for _, b := range blocks {
		switch b.BlockType {
		case types.BlockTypeTable:
			if rows := tableRows(b, byID); len(rows) > 0 {
				result.Tables = append(result.Tables, rows)
			}
		case types.BlockTypeKeyValueSet:
			if !hasEntity(b, types.EntityTypeKey) {
				continue
			}
			key := childText(b, byID)
			value := ""
			for _, id := range relatedIDs(b, types.RelationshipTypeValue) {
				if v, ok := byID[id]; ok {
					value = childText(v, byID)
				}
			}
			if key != "" {
				result.Forms = append(result.Forms, domain.OCRField{Key: key, Value: value})
			}
		}
	}
	return result
}

func tableRows(table types.Block, byID map[string]types.Block) []string {
	type cell struct {
		row, col int32
		text     string
	}
	cells := make([]cell, 0)
	for _, id := range relatedIDs(table, types.RelationshipTypeChild) {
		b, ok := byID[id]
		if !ok || b.BlockType != types.BlockTypeCell {
			continue
		}
		cells = append(cells, cell{
			row:  aws.ToInt32(b.RowIndex),
			col:  aws.ToInt32(b.ColumnIndex),
			text: childText(b, byID),
		})
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].row != cells[j].row {
			return cells[i].row < cells[j].row
		}
		return cells[i].col < cells[j].col
	})

	var rows []string
	var current []string
	lastRow := int32(-1)
	for _, c := range cells {
		if c.row != lastRow && current != nil {
			rows = append(rows, strings.Join(current, " | "))
			current = nil
		}
		lastRow = c.row
		current = append(current, c.text)
	}
	if current != nil {
		rows = append(rows, strings.Join(current, " | "))
	}
	return rows
}

func childText(b types.Block, byID map[string]types.Block) string {
	words := make([]string, 0)
	for _, id := range relatedIDs(b, types.RelationshipTypeChild) {
		child, ok := byID[id]
		if !ok {
			continue
		}
		switch child.BlockType {
		case types.BlockTypeWord, types.BlockTypeLine:
			words = append(words, aws.ToString(child.Text))
		case types.BlockTypeSelectionElement:
			words = append(words, string(child.SelectionStatus))
		}
	}
	return strings.TrimSpace(strings.Join(words, " "))
}

func relatedIDs(b types.Block, kind types.RelationshipType) []string {
	var ids []string
	for _, rel := range b.Relationships {
		if rel.Type == kind {
			ids = append(ids, rel.Ids...)
		}
	}
	return ids
}

func hasEntity(b types.Block, kind types.EntityType) bool {
	for _, e := range b.EntityTypes {
		if e == kind {
			return true
		}
	}
	return false
}
