// Package turn runs one conversation turn: model call, reply cleanup,
// context-window warning and optional speech synthesis.
package turn

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/matiasleandrokruk/vocalis/internal/domain/conversation"
	"github.com/matiasleandrokruk/vocalis/internal/domain/sanitize"
	"github.com/matiasleandrokruk/vocalis/internal/domain/voice"
	"github.com/matiasleandrokruk/vocalis/internal/infra/eventbus"
	"github.com/matiasleandrokruk/vocalis/internal/infra/llm"
	"github.com/matiasleandrokruk/vocalis/internal/infra/tts"
)

var (
	// ErrServiceUnavailable means the inference daemon could not serve the
	// turn. It is retryable.
	ErrServiceUnavailable = errors.New("turn: inference service unavailable")
	// ErrInvalidHistory means the history is empty, does not end with a user
	// message or carries an unknown role.
	ErrInvalidHistory = errors.New("turn: invalid history")
)

// Outcome labels published with every turn.
const (
	OutcomeOK          = "ok"
	OutcomeInvalid     = "invalid"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// warnRatio is the share of the context window that triggers a warning.
const warnRatio = 0.9

// Chatter is the slice of llm.Provider the orchestrator needs.
type Chatter interface {
	Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

// Request is everything one turn needs, borrowed from the caller.
type Request struct {
	ID            string
	History       []conversation.Message
	Model         string
	Voice         string
	Speed         float64
	Lang          string
	SystemMessage string
	Options       DecodingOptions
	TTSEnabled    bool
	// STTDuration is reported by the client for the timing report only.
	STTDuration time.Duration
}

// Result is the composite turn outcome.
type Result struct {
	ResponseText      string
	AudioData         string // base64 WAV, empty when synthesis was skipped
	Warning           string
	InferenceDuration time.Duration
	SynthesisDuration time.Duration
	PromptTokens      int
	CompletionTokens  int
}

// Stats is the eventbus.TopicTurnCompleted payload.
type Stats struct {
	ID                string
	Model             string
	Outcome           string
	STTDuration       time.Duration
	InferenceDuration time.Duration
	SynthesisDuration time.Duration
	PromptTokens      int
	CompletionTokens  int
	Warned            bool
}

// Total is the end-to-end time the user waited.
func (s Stats) Total() time.Duration {
	return s.STTDuration + s.InferenceDuration + s.SynthesisDuration
}

// Orchestrator runs turns. It holds no per-turn state and is safe for
// concurrent use.
type Orchestrator struct {
	chat    Chatter
	synth   tts.Synthesizer
	catalog *voice.Catalog
	bus     eventbus.EventBus
	logger  *slog.Logger
	now     func() time.Time
}

// NewOrchestrator wires the collaborators. bus may be nil.
func NewOrchestrator(chat Chatter, synth tts.Synthesizer, catalog *voice.Catalog, bus eventbus.EventBus, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if catalog == nil {
		catalog = voice.Default()
	}
	return &Orchestrator{chat: chat, synth: synth, catalog: catalog, bus: bus, logger: logger, now: time.Now}
}

// Run executes one turn.
func (o *Orchestrator) Run(ctx context.Context, req Request) (res *Result, err error) {
	stats := Stats{ID: req.ID, Model: req.Model, STTDuration: req.STTDuration}
	defer func() {
		stats.Outcome = outcomeOf(err)
		if res != nil {
			stats.InferenceDuration = res.InferenceDuration
			stats.SynthesisDuration = res.SynthesisDuration
			stats.PromptTokens = res.PromptTokens
			stats.CompletionTokens = res.CompletionTokens
			stats.Warned = res.Warning != ""
		}
		if o.bus != nil {
			o.bus.Publish(eventbus.TopicTurnCompleted, stats)
		}
	}()

	if err := ValidateHistory(req.History); err != nil {
		return nil, err
	}

	messages := BuildMessages(req.SystemMessage, req.History)
	started := o.now()
	reply, err := o.chat.Chat(ctx, llm.ChatRequest{
		Model:    req.Model,
		Messages: messages,
		Options:  req.Options.Map(),
	})
	inference := o.now().Sub(started)
	if err != nil {
		o.logger.Error("model call failed", "turn", req.ID, "model", req.Model, "error", err)
		if errors.Is(err, llm.ErrUnavailable) {
			return nil, fmt.Errorf("%w (%v)", ErrServiceUnavailable, err)
		}
		return nil, fmt.Errorf("turn: chat: %w", err)
	}

	res = &Result{
		ResponseText:      sanitize.CleanResponse(reply.Content),
		InferenceDuration: inference,
	}
	if reply.Done {
		res.PromptTokens = reply.PromptTokens
		res.CompletionTokens = reply.CompletionTokens
		res.Warning = ContextWarning(reply.TotalTokens(), req.Options.NumCtx)
		o.logger.Info("model reply finished",
			"turn", req.ID,
			"prompt_tokens", reply.PromptTokens,
			"completion_tokens", reply.CompletionTokens,
			"total_tokens", reply.TotalTokens())
		if res.Warning != "" {
			o.logger.Warn(res.Warning, "turn", req.ID)
		}
	}

	if req.TTSEnabled && res.ResponseText != "" {
		started = o.now()
		audio, err := o.synthesize(ctx, req, res.ResponseText)
		res.SynthesisDuration = o.now().Sub(started)
		if err != nil {
			o.logger.Error("speech synthesis failed", "turn", req.ID, "voice", req.Voice, "error", err)
			return res, fmt.Errorf("turn: synthesize: %w", err)
		}
		res.AudioData = audio
	}
	return res, nil
}

func (o *Orchestrator) synthesize(ctx context.Context, req Request, text string) (string, error) {
	speed := req.Speed
	if speed <= 0 {
		speed = 1.0
	}
	audio, err := o.synth.Synthesize(ctx, tts.Request{
		Text:  text,
		Voice: req.Voice,
		Speed: speed,
		Lang:  o.catalog.BackendLang(req.Lang),
	})
	if err != nil {
		return "", err
	}
	wav, err := tts.EncodeWAV(audio)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(wav), nil
}

// ValidateHistory requires a non-empty history of known roles ending with a
// user message.
func ValidateHistory(history []conversation.Message) error {
	if len(history) == 0 {
		return ErrInvalidHistory
	}
	for _, m := range history {
		switch m.Role {
		case conversation.RoleSystem, conversation.RoleUser, conversation.RoleAssistant:
		default:
			return ErrInvalidHistory
		}
	}
	if history[len(history)-1].Role != conversation.RoleUser {
		return ErrInvalidHistory
	}
	return nil
}

// BuildMessages prepends the system prompt and strips data-URI headers from
// attached images.
func BuildMessages(system string, history []conversation.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history)+1)
	out = append(out, llm.Message{Role: conversation.RoleSystem, Content: system})
	for _, m := range history {
		msg := llm.Message{Role: m.Role, Content: m.Content}
		if len(m.Images) > 0 {
			msg.Images = make([]string, len(m.Images))
			for i, img := range m.Images {
				msg.Images[i] = StripDataURI(img)
			}
		}
		out = append(out, msg)
	}
	return out
}

// StripDataURI returns the payload after the first comma, or the input
// unchanged when it has no header.
func StripDataURI(s string) string {
	if _, payload, ok := strings.Cut(s, ","); ok {
		return payload
	}
	return s
}

// ContextWarning returns the user-facing warning when total reaches 90% of
// numCtx, else "".
func ContextWarning(total, numCtx int) string {
	if numCtx <= 0 || float64(total) < float64(numCtx)*warnRatio {
		return ""
	}
	return fmt.Sprintf("Chat history is now %d tokens (Max: %d). The AI may start to lose track of the conversation.", total, numCtx)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrInvalidHistory):
		return OutcomeInvalid
	case errors.Is(err, ErrServiceUnavailable):
		return OutcomeUnavailable
	default:
		return OutcomeError
	}
}
