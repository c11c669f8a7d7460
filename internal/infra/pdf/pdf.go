// Package pdf opens PDF documents and renders pages to images using MuPDF
// through go-fitz.
package pdf

import (
	"errors"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// ErrInvalidDocument is returned when the bytes are not a readable PDF.
var ErrInvalidDocument = errors.New("pdf: invalid document")

// Document is an opened PDF.
type Document interface {
	NumPages() int
	// RenderPage rasterizes the zero-based page at dpi.
	RenderPage(page int, dpi float64) (image.Image, error)
	Close() error
}

// Opener opens PDF bytes held in memory.
type Opener interface {
	Open(data []byte) (Document, error)
}

// Fitz is the MuPDF-backed Opener.
type Fitz struct{}

// Open parses data. Page count is available without rendering anything.
func (Fitz) Open(data []byte) (Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidDocument)
	}
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return &fitzDocument{doc: doc}, nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (d *fitzDocument) NumPages() int { return d.doc.NumPage() }

func (d *fitzDocument) RenderPage(page int, dpi float64) (image.Image, error) {
	img, err := d.doc.ImageDPI(page, dpi)
	if err != nil {
		return nil, fmt.Errorf("pdf: render page %d: %w", page+1, err)
	}
	return img, nil
}

func (d *fitzDocument) Close() error { return d.doc.Close() }
