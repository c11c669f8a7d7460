package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matiasleandrokruk/vocalis/internal/domain/attachment"
	"github.com/matiasleandrokruk/vocalis/internal/domain/conversation"
	"github.com/matiasleandrokruk/vocalis/internal/domain/settings"
	"github.com/matiasleandrokruk/vocalis/internal/domain/turn"
)

const (
	msgInvalidHistory = "Invalid history."
	msgUnavailable    = "Could not connect to Ollama. Please ensure it is running and accessible."
	msgChatInternal   = "An internal server error occurred."
)

// TurnRunner runs one conversation turn. *turn.Orchestrator satisfies it.
type TurnRunner interface {
	Run(ctx context.Context, req turn.Request) (*turn.Result, error)
}

type ChatHandler struct {
	turns  TurnRunner
	state  ModelState
	store  SettingsStore
	logger *slog.Logger
}

func NewChatHandler(turns TurnRunner, state ModelState, store SettingsStore, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{turns: turns, state: state, store: store, logger: logger}
}

// chatRequest fields are pointers or loose values so absent keys fall back
// to the saved settings.
type chatRequest struct {
	History       []conversation.Message `json:"history"`
	Model         *string                `json:"model"`
	TTSVoice      *string                `json:"tts_voice"`
	TTSSpeed      any                    `json:"tts_speed"`
	TTSLang       *string                `json:"tts_lang"`
	SystemMessage *string                `json:"system_message"`
	LLMOptions    map[string]any         `json:"llm_options"`
	TTSEnabled    any                    `json:"tts_enabled"`
	STTDuration   any                    `json:"stt_duration"`
}

type chatResponse struct {
	ResponseText string  `json:"responseText"`
	AudioData    *string `json:"audioData"`
	Warning      string  `json:"warning,omitempty"`
}

// Chat serves POST /chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBodyError(w, err, msgInvalidHistory)
		return
	}
	if err := turn.ValidateHistory(body.History); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidHistory)
		return
	}
	for _, m := range body.History {
		if err := attachment.ValidateImages(m.Images); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid image data.")
			return
		}
	}

	req := h.buildTurn(body)
	logger := requestLogger(r, h.logger).With("turn", req.ID)
	res, err := h.turns.Run(r.Context(), req)
	switch {
	case errors.Is(err, turn.ErrInvalidHistory):
		writeError(w, http.StatusBadRequest, msgInvalidHistory)
		return
	case errors.Is(err, turn.ErrServiceUnavailable):
		logger.Error("chat: inference daemon unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, msgUnavailable)
		return
	case err != nil:
		logger.Error("chat: turn failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgChatInternal)
		return
	}

	resp := chatResponse{ResponseText: res.ResponseText, Warning: res.Warning}
	if res.AudioData != "" {
		resp.AudioData = &res.AudioData
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ChatHandler) buildTurn(body chatRequest) turn.Request {
	saved := h.store.Load()
	req := turn.Request{
		ID:            uuid.NewString(),
		History:       body.History,
		Model:         h.state.Current(),
		Voice:         saved.String(settings.KeyTTSVoice),
		Speed:         saved.Float(settings.KeyTTSSpeed),
		Lang:          saved.String(settings.KeyTTSLang),
		SystemMessage: settings.DefaultSystemMessage,
		Options:       turn.ResolveDecodingOptions(body.LLMOptions),
		TTSEnabled:    ttsEnabled(body.TTSEnabled, saved.TTSEnabled()),
	}
	if body.Model != nil && *body.Model != "" {
		req.Model = *body.Model
	}
	if body.TTSVoice != nil && *body.TTSVoice != "" {
		req.Voice = *body.TTSVoice
	}
	if body.TTSLang != nil && *body.TTSLang != "" {
		req.Lang = *body.TTSLang
	}
	if body.SystemMessage != nil {
		req.SystemMessage = *body.SystemMessage
	}
	if f, ok := settings.Number(body.TTSSpeed); ok && f > 0 {
		req.Speed = f
	}
	if f, ok := settings.Number(body.STTDuration); ok && f > 0 {
		req.STTDuration = time.Duration(f * float64(time.Second))
	}
	return req
}

// ttsEnabled accepts the UI's "On"/"Off" strings or a JSON boolean. Absent
// means the saved setting.
func ttsEnabled(v any, saved bool) bool {
	switch t := v.(type) {
	case nil:
		return saved
	case bool:
		return t
	case string:
		return strings.EqualFold(t, settings.TTSOn)
	default:
		return false
	}
}
