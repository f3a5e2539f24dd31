package normalize

import (
	"errors"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
)

var (
	errNoRasterizer = errors.New("no pdf rasterizer configured")
	errNoPages      = errors.New("pdf has no pages")
)

const conversionHint = "could not rasterize pdf; upload the drawing as a PNG or JPEG image instead"

func conversionError(cause error) error {
	return domain.WrapError(domain.ErrFormatConversion, conversionHint, cause)
}
