package normalize

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
)

func reencodePNG(data []byte) (domain.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.Image{}, domain.WrapError(domain.ErrUnsupportedFormat, "decode image", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return domain.Image{}, domain.WrapError(domain.ErrUnsupportedFormat, "encode png", err)
	}
	return domain.Image{Data: buf.Bytes(), MimeType: "image/png"}, nil
}
