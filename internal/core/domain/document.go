package domain

import (
	"path"
	"strings"
	"time"
)

type AnalysisStatus string

const (
	StatusPending   AnalysisStatus = "pending"
	StatusAnalyzing AnalysisStatus = "analyzing"
	StatusCompleted AnalysisStatus = "completed"
	StatusFailed    AnalysisStatus = "failed"
)

type MediaKind string

const (
	MediaPDF     MediaKind = "pdf"
	MediaRaster  MediaKind = "raster-image"
	MediaCAD     MediaKind = "cad"
	MediaUnknown MediaKind = "unknown"
)

type Document struct {
	ID                string              `json:"id"`
	OwnerID           string              `json:"ownerId"`
	Filename          string              `json:"filename"`
	ContentType       string              `json:"contentType"`
	MediaKind         MediaKind           `json:"mediaKind"`
	StorageURL        string              `json:"storageUrl"`
	OCRText           string              `json:"ocrText,omitempty"`
	OCRExtractedAt    *time.Time          `json:"ocrExtractedAt,omitempty"`
	Analysis          *StructuredAnalysis `json:"analysis,omitempty"`
	Status            AnalysisStatus      `json:"status"`
	Analyzed          bool                `json:"analyzed"`
	AutoAnalyzed      bool                `json:"autoAnalyzed"`
	AnalysisStartedAt *time.Time          `json:"analysisStartedAt,omitempty"`
	Error             string              `json:"error,omitempty"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

// HasOCRText reports whether the OCR cache is populated. A populated cache is final.
func (d *Document) HasOCRText() bool {
	return strings.TrimSpace(d.OCRText) != ""
}

// AnalysisStale reports whether an in-flight analysis has outlived maxAge.
func (d *Document) AnalysisStale(now time.Time, maxAge time.Duration) bool {
	if d.Status != StatusAnalyzing {
		return false
	}
	if d.AnalysisStartedAt == nil {
		return true
	}
	return now.Sub(*d.AnalysisStartedAt) > maxAge
}

var cadContentTypes = map[string]struct{}{
	"application/acad":      {},
	"application/x-acad":    {},
	"application/x-dwg":     {},
	"application/dwg":       {},
	"image/vnd.dwg":         {},
	"image/x-dwg":           {},
	"application/dxf":       {},
	"application/x-dxf":     {},
	"image/vnd.dxf":         {},
	"image/x-dxf":           {},
	"application/vnd.dwg":   {},
	"application/vnd.dxf":   {},
	"drawing/x-dwf":         {},
	"application/x-autocad": {},
}

// DetectMediaKind classifies a file from its declared content type first and
// falls back to the extension of name, which may be a filename or a URL.
func DetectMediaKind(contentType, name string) MediaKind {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case ct == "application/pdf" || ct == "application/x-pdf":
		return MediaPDF
	case strings.HasPrefix(ct, "image/") && !isCADContentType(ct):
		return MediaRaster
	case isCADContentType(ct):
		return MediaCAD
	}

	switch Extension(name) {
	case "pdf":
		return MediaPDF
	case "png", "jpg", "jpeg", "webp", "gif", "bmp", "tif", "tiff":
		return MediaRaster
	case "dwg", "dxf":
		return MediaCAD
	default:
		return MediaUnknown
	}
}

// Extension returns the lower-cased extension of a filename or URL without the dot.
func Extension(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	return strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
}

func isCADContentType(ct string) bool {
	_, ok := cadContentTypes[ct]
	return ok
}
