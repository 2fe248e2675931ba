package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"go.uber.org/zap"
)

// Format is a screenshot output encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
)

// ParseFormat normalizes a format string. Unknown values default to
// PNG.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jpeg", "jpg":
		return FormatJPEG
	case "webp":
		return FormatWebP
	default:
		return FormatPNG
	}
}

// DefaultJPEGQuality matches what browsers use for lossy screenshots.
const DefaultJPEGQuality = 85

// Screenshot is an encoded capture of the frame store.
type Screenshot struct {
	Data   []byte
	Format Format
	Width  int
	Height int
}

// Base64 returns the encoded image as standard base64.
func (s Screenshot) Base64() string {
	return base64.StdEncoding.EncodeToString(s.Data)
}

// Capture encodes the full current frame. WebP is not supported by the
// encoder, so it silently degrades to PNG and reports PNG in the
// result.
func Capture(store *Store, format Format, quality int, logger *zap.Logger) (Screenshot, error) {
	img := store.Snapshot()
	return encode(img, format, quality, logger)
}

// CaptureRegion encodes a sub-rectangle of the current frame.
func CaptureRegion(store *Store, x, y, width, height int, format Format, quality int, logger *zap.Logger) (Screenshot, error) {
	img, err := store.Region(x, y, width, height)
	if err != nil {
		return Screenshot{}, err
	}
	return encode(img, format, quality, logger)
}

func encode(img *image.RGBA, format Format, quality int, logger *zap.Logger) (Screenshot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	if format == FormatWebP {
		logger.Debug("webp encoding unavailable, falling back to png")
		format = FormatPNG
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case FormatJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	default:
		format = FormatPNG
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return Screenshot{}, fmt.Errorf("encoding %s screenshot: %w", format, err)
	}

	bounds := img.Bounds()
	return Screenshot{
		Data:   buf.Bytes(),
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
