package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matiasleandrokruk/vocalis/internal/api/handlers"
	apmiddleware "github.com/matiasleandrokruk/vocalis/internal/api/middleware"
	"github.com/matiasleandrokruk/vocalis/internal/domain/voice"
	"github.com/matiasleandrokruk/vocalis/internal/infra/stt"
)

// AppState is what the handlers need from assistant.State.
type AppState interface {
	handlers.ModelState
	handlers.ModelRefresher
}

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	State         AppState
	Settings      handlers.SettingsStore
	Conversations handlers.ConversationStore
	Turns         handlers.TurnRunner
	Transcriber   stt.Transcriber
	Documents     handlers.Rasterizer
	Catalog       *voice.Catalog
	// Engines are checked by /health, keyed by display name.
	Engines map[string]handlers.HealthChecker
	// Metrics may be nil; /metrics is then not mounted.
	Metrics Metrics
	Logger  *slog.Logger
	// RestrictHost rejects requests whose Host header is not loopback.
	RestrictHost bool
}

// Metrics is the slice of *metrics.Metrics the router uses.
type Metrics interface {
	apmiddleware.RequestObserver
	handlers.TranscriptionObserver
	Handler() http.Handler
}

// NewRouter creates and configures the chi router with all routes.
func NewRouter(d Deps) *chi.Mux {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	catalog := d.Catalog
	if catalog == nil {
		catalog = voice.Default()
	}

	var reqObserver apmiddleware.RequestObserver
	var sttObserver handlers.TranscriptionObserver
	if d.Metrics != nil {
		reqObserver = d.Metrics
		sttObserver = d.Metrics
	}

	r := chi.NewRouter()

	// Global middleware (runs on all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apmiddleware.AccessLog(logger, reqObserver))
	r.Use(middleware.Recoverer)
	if d.RestrictHost {
		r.Use(apmiddleware.LoopbackHostOnly)
	}
	r.Use(apmiddleware.SecurityHeaders)
	r.Use(apmiddleware.BodyLimit(apmiddleware.MaxBodyBytes))

	ui := handlers.NewUIHandler(d.State, d.Settings, catalog, logger)
	settingsHandler := handlers.NewSettingsHandler(d.Settings, d.State, catalog, logger)
	documentHandler := handlers.NewDocumentHandler(d.Documents, logger)
	transcribeHandler := handlers.NewTranscribeHandler(d.Transcriber, sttObserver, logger)
	chatHandler := handlers.NewChatHandler(d.Turns, d.State, d.Settings, logger)
	conversationHandler := handlers.NewConversationHandler(d.Conversations, logger)
	systemHandler := handlers.NewSystemHandler(d.Engines, d.State, catalog)

	r.Get("/", ui.Index)
	r.Get("/get_settings", settingsHandler.Get)
	r.Post("/save_settings", settingsHandler.Save)
	r.Post("/upload_pdf", documentHandler.UploadPDF)
	r.Post("/transcribe", transcribeHandler.Transcribe)
	r.Post("/chat", chatHandler.Chat)

	r.Route("/conversations", func(r chi.Router) {
		r.Get("/", conversationHandler.List)
		r.Post("/", conversationHandler.Create)
		r.Put("/{id}", conversationHandler.Update)
		r.Delete("/{id}", conversationHandler.Delete)
	})

	r.Get("/health", systemHandler.Health)
	r.Get("/models", systemHandler.Models)
	r.Get("/voices", systemHandler.Voices)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	return r
}
