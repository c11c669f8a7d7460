package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matiasleandrokruk/vocalis/internal/domain/conversation"
)

// ConversationStore is the slice of conversation.Store the handlers use.
type ConversationStore interface {
	List() []conversation.Session
	Insert(sess conversation.Session) error
	Update(id string, p conversation.Patch) error
	Delete(id string) error
}

type ConversationHandler struct {
	store  ConversationStore
	logger *slog.Logger
}

func NewConversationHandler(store ConversationStore, logger *slog.Logger) *ConversationHandler {
	return &ConversationHandler{store: store, logger: logger}
}

// List serves GET /conversations, newest first.
func (h *ConversationHandler) List(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.store.List())
}

// Create serves POST /conversations.
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeBodyError(w, err, "Invalid chat session format")
		return
	}
	sess, err := conversation.DecodeSession(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid chat session format")
		return
	}

	switch err := h.store.Insert(sess); {
	case errors.Is(err, conversation.ErrDuplicateID):
		writeError(w, http.StatusConflict, "Chat session already exists")
	case errors.Is(err, conversation.ErrValidation):
		writeError(w, http.StatusBadRequest, "Invalid chat session format")
	case err != nil:
		requestLogger(r, h.logger).Error("conversation insert failed", "id", sess.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error.")
	default:
		writeJSON(w, http.StatusCreated, sess)
	}
}

// Update serves PUT /conversations/{id}. An unknown id is reported before
// an unusable body.
func (h *ConversationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, err := readBody(r)
	if err != nil {
		writeBodyError(w, err, "No valid update data provided")
		return
	}
	patch, err := conversation.DecodePatch(data)
	if err != nil {
		patch = conversation.Patch{}
	}

	switch err := h.store.Update(id, patch); {
	case errors.Is(err, conversation.ErrNotFound):
		writeError(w, http.StatusNotFound, "History not found")
	case errors.Is(err, conversation.ErrValidation):
		writeError(w, http.StatusBadRequest, "No valid update data provided")
	case err != nil:
		requestLogger(r, h.logger).Error("conversation update failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error.")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

// Delete serves DELETE /conversations/{id}.
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	switch err := h.store.Delete(id); {
	case errors.Is(err, conversation.ErrNotFound):
		writeError(w, http.StatusNotFound, "History not found")
	case err != nil:
		requestLogger(r, h.logger).Error("conversation delete failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error.")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}
