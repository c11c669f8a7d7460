package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/matiasleandrokruk/vocalis/internal/domain/settings"
	"github.com/matiasleandrokruk/vocalis/internal/domain/voice"
)

//go:embed templates/index.html
var templatesFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

type UIHandler struct {
	state   ModelState
	store   SettingsStore
	catalog *voice.Catalog
	logger  *slog.Logger
}

func NewUIHandler(state ModelState, store SettingsStore, catalog *voice.Catalog, logger *slog.Logger) *UIHandler {
	return &UIHandler{state: state, store: store, catalog: catalog, logger: logger}
}

type uiBoot struct {
	Settings settings.Settings `json:"settings"`
	Voices   []voice.Language  `json:"voices"`
}

type uiPage struct {
	Models       []string
	CurrentModel string
	Boot         uiBoot
}

// Index serves GET /. Settings are re-read on every request and nothing is
// cacheable.
func (h *UIHandler) Index(w http.ResponseWriter, r *http.Request) {
	page := uiPage{
		Models:       h.state.Models(),
		CurrentModel: h.state.Current(),
		Boot: uiBoot{
			Settings: h.store.Load(),
			Voices:   h.catalog.Languages,
		},
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, page); err != nil {
		requestLogger(r, h.logger).Error("render index", "error", err)
		http.Error(w, "Internal server error.", http.StatusInternalServerError)
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "text/html; charset=utf-8")
	hdr.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0, private")
	hdr.Set("Pragma", "no-cache")
	hdr.Set("Expires", "0")
	hdr.Set("X-Content-Type-Options", "nosniff")
	hdr.Set("X-Frame-Options", "DENY")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
