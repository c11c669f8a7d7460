package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/matiasleandrokruk/vocalis/internal/domain/settings"
	"github.com/matiasleandrokruk/vocalis/internal/domain/voice"
)

// SettingsStore is the slice of settings.Store the handlers use.
type SettingsStore interface {
	Load() settings.Settings
	Merge(patch map[string]any) (settings.Settings, error)
}

// ModelState is the slice of assistant.State the handlers use.
type ModelState interface {
	Models() []string
	Current() string
	IsAvailable(model string) bool
	SelectModel(model string) bool
}

type SettingsHandler struct {
	store   SettingsStore
	state   ModelState
	catalog *voice.Catalog
	logger  *slog.Logger
}

func NewSettingsHandler(store SettingsStore, state ModelState, catalog *voice.Catalog, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{store: store, state: state, catalog: catalog, logger: logger}
}

// Get serves GET /get_settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Load())
}

// Save serves POST /save_settings. The patch is validated as a whole; a
// failed write is logged and the request still succeeds.
func (h *SettingsHandler) Save(w http.ResponseWriter, r *http.Request) {
	patch, err := readJSONObject(r)
	if err != nil {
		writeBodyError(w, err, "Invalid settings payload.")
		return
	}

	if err := settings.Validate(patch, h.store.Load(), h.catalog); err != nil {
		var verr *settings.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid settings.", "problems": verr.Problems})
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid settings.")
		return
	}

	logger := requestLogger(r, h.logger)
	if model, ok := patch[settings.KeyModel].(string); ok {
		h.state.SelectModel(model)
	}
	if _, err := h.store.Merge(patch); err != nil {
		logger.Error("settings not persisted", "error", err)
	} else {
		logger.Info("settings saved", "keys", len(patch))
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
