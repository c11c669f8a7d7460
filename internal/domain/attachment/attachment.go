// Package attachment turns uploaded documents into the base64 data URIs the
// vision models accept as images.
package attachment

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"log/slog"
	"strings"

	"github.com/matiasleandrokruk/vocalis/internal/infra/pdf"
)

const (
	// MaxPages is the largest PDF accepted for rasterization.
	MaxPages = 15
	// RenderDPI is 1.5x the 100 DPI base scale.
	RenderDPI   = 150
	jpegQuality = 90

	jpegPrefix = "data:image/jpeg;base64,"
)

var (
	// ErrTooManyPages is returned before any page is rendered.
	ErrTooManyPages = fmt.Errorf("attachment: pdf exceeds %d pages", MaxPages)
	// ErrInvalidImage reports an image that is not a base64 image data URI.
	ErrInvalidImage = errors.New("attachment: invalid image")
)

// Ingestor rasterizes documents.
type Ingestor struct {
	opener pdf.Opener
	logger *slog.Logger
}

// NewIngestor returns an Ingestor backed by opener.
func NewIngestor(opener pdf.Opener, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{opener: opener, logger: logger}
}

// RasterizePDF renders every page as a JPEG data URI, in page order.
func (in *Ingestor) RasterizePDF(ctx context.Context, data []byte) ([]string, error) {
	doc, err := in.opener.Open(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	n := doc.NumPages()
	if n > MaxPages {
		return nil, ErrTooManyPages
	}

	images := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := doc.RenderPage(i, RenderDPI)
		if err != nil {
			return nil, err
		}
		uri, err := EncodeJPEG(img)
		if err != nil {
			return nil, fmt.Errorf("attachment: page %d: %w", i+1, err)
		}
		images = append(images, uri)
	}
	in.logger.Debug("pdf rasterized", "pages", n)
	return images, nil
}

// EncodeJPEG flattens img to RGB and returns it as a JPEG data URI.
func EncodeJPEG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, toRGB(img), &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", err
	}
	return jpegPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// toRGB drops alpha by compositing onto white.
func toRGB(img image.Image) image.Image {
	switch img.(type) {
	case *image.YCbCr, *image.Gray:
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, image.White, image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}

// ValidateImages checks every entry is base64 image data, either bare or as a
// data:image/...;base64, URI.
func ValidateImages(images []string) error {
	for i, s := range images {
		payload := s
		if header, rest, ok := strings.Cut(s, ","); ok {
			if !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
				return fmt.Errorf("%w: item %d is not an image data URI", ErrInvalidImage, i)
			}
			payload = rest
		}
		if payload == "" {
			return fmt.Errorf("%w: item %d is empty", ErrInvalidImage, i)
		}
		if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
			return fmt.Errorf("%w: item %d: %v", ErrInvalidImage, i, err)
		}
	}
	return nil
}
