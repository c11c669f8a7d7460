// Package handlers implements the HTTP endpoints served to the browser UI.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/matiasleandrokruk/vocalis/internal/api/ctxkeys"
)

// multipartMemory is how much of a multipart form is held in memory before
// spilling to temp files.
const multipartMemory = 8 << 20

var errNotObject = errors.New("body is not a JSON object")

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeBodyError answers 413 for oversize bodies and 400 with message for
// everything else.
func writeBodyError(w http.ResponseWriter, err error, message string) {
	if isBodyTooLarge(err) {
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large.")
		return
	}
	writeError(w, http.StatusBadRequest, message)
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	// mime/multipart does not always wrap the reader error.
	return err != nil && strings.Contains(err.Error(), "request body too large")
}

// readJSONObject decodes the body as a JSON object.
func readJSONObject(r *http.Request) (map[string]any, error) {
	var m map[string]any
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errNotObject
	}
	return m, nil
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(r.Body)
}

func requestLogger(r *http.Request, fallback *slog.Logger) *slog.Logger {
	return ctxkeys.LoggerFrom(r.Context(), fallback)
}
