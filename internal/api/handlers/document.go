package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/matiasleandrokruk/vocalis/internal/domain/attachment"
)

// Rasterizer turns PDF bytes into image data URIs. *attachment.Ingestor
// satisfies it.
type Rasterizer interface {
	RasterizePDF(ctx context.Context, data []byte) ([]string, error)
}

type DocumentHandler struct {
	rasterizer Rasterizer
	logger     *slog.Logger
}

func NewDocumentHandler(rasterizer Rasterizer, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{rasterizer: rasterizer, logger: logger}
}

// UploadPDF serves POST /upload_pdf.
func (h *DocumentHandler) UploadPDF(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeBodyError(w, err, "No PDF file part.")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("pdf_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No PDF file part.")
		return
	}
	defer file.Close()
	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "No selected file.")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeBodyError(w, err, "No PDF file part.")
		return
	}

	images, err := h.rasterizer.RasterizePDF(r.Context(), data)
	if errors.Is(err, attachment.ErrTooManyPages) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("PDF exceeds %d pages.", attachment.MaxPages))
		return
	}
	if err != nil {
		requestLogger(r, h.logger).Error("pdf rasterization failed", "file", header.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to process PDF.")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"images": images})
}
