package normalize

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
)

// Formats a vision backend accepts without re-encoding.
var passthroughFormats = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/webp": {},
	"image/gif":  {},
}

var extensionFormats = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"webp": "image/webp",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
}

// DetectStep returns an image subtype or "" when it has no opinion.
type DetectStep func(data []byte, contentType, name string) string

// FormatDetector resolves an image subtype through a prioritized chain.
type FormatDetector struct {
	steps []DetectStep
}

func NewFormatDetector(steps ...DetectStep) *FormatDetector {
	if len(steps) == 0 {
		steps = []DetectStep{FromContentType, FromExtension, FromBytes}
	}
	return &FormatDetector{steps: steps}
}

// Detect returns the first subtype any step reports and whether it can be
// sent as-is. An empty subtype means nothing matched.
func (d *FormatDetector) Detect(data []byte, contentType, name string) (string, bool) {
	for _, step := range d.steps {
		if subtype := step(data, contentType, name); subtype != "" {
			_, ok := passthroughFormats[subtype]
			return subtype, ok
		}
	}
	return "", false
}

func FromContentType(_ []byte, contentType, _ string) string {
	return canonicalImageType(contentType)
}

func FromExtension(_ []byte, _, name string) string {
	return extensionFormats[domain.Extension(name)]
}

func FromBytes(data []byte, _, _ string) string {
	if len(data) == 0 {
		return ""
	}
	return canonicalImageType(mimetype.Detect(data).String())
}

func canonicalImageType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if !strings.HasPrefix(ct, "image/") {
		return ""
	}
	switch ct {
	case "image/jpg", "image/pjpeg":
		return "image/jpeg"
	case "image/x-png":
		return "image/png"
	}
	return ct
}
