package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matiasleandrokruk/vocalis/internal/domain/attachment"
	"github.com/matiasleandrokruk/vocalis/internal/domain/sanitize"
	"github.com/matiasleandrokruk/vocalis/internal/infra/stt"
)

// TranscriptionObserver records transcription metrics.
type TranscriptionObserver interface {
	ObserveTranscription(d time.Duration, garbled bool)
}

type TranscribeHandler struct {
	stt      stt.Transcriber
	observer TranscriptionObserver
	logger   *slog.Logger
}

// NewTranscribeHandler wires the speech engine. observer may be nil.
func NewTranscribeHandler(transcriber stt.Transcriber, observer TranscriptionObserver, logger *slog.Logger) *TranscribeHandler {
	return &TranscribeHandler{stt: transcriber, observer: observer, logger: logger}
}

// Transcribe serves POST /transcribe. A garbled transcript is replaced by
// an empty one; an empty transcript with no images is reported as no_speech.
func (h *TranscribeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeBodyError(w, err, "No audio file.")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("audio_data")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No audio file.")
		return
	}
	defer file.Close()

	var images []string
	if raw := r.FormValue("images"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &images); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid images.")
			return
		}
	}
	if err := attachment.ValidateImages(images); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid images.")
		return
	}

	lang := r.FormValue("language")
	if lang == "" {
		lang = "en"
	}

	logger := requestLogger(r, h.logger)
	audio, err := io.ReadAll(file)
	if err != nil {
		writeBodyError(w, err, "No audio file.")
		return
	}

	start := time.Now()
	res, err := h.stt.Transcribe(r.Context(), stt.Request{
		Audio:    audio,
		Filename: uploadName(header.Filename),
		Language: stt.LanguageHint(lang),
	})
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("transcribe failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	text := sanitize.CleanTranscript(res.Text)
	garbled := text == "" && strings.TrimSpace(res.Text) != ""
	if h.observer != nil {
		h.observer.ObserveTranscription(elapsed, garbled)
	}
	if garbled {
		logger.Info("garbled transcript discarded", "text", res.Text)
	} else {
		logger.Info("transcribed", "language", stt.LanguageHint(lang), "chars", len(text), "duration_ms", elapsed.Milliseconds())
	}

	if text == "" && len(images) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"status": "no_speech"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transcribedText": text,
		"stt_duration":    elapsed.Seconds(),
	})
}

// uploadName gives every recording a unique name while keeping the client's
// extension as a format hint.
func uploadName(clientName string) string {
	ext := filepath.Ext(clientName)
	if ext == "" {
		ext = ".wav"
	}
	return "recording-" + uuid.NewString() + ext
}
