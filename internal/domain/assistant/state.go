// Package assistant holds the process-wide application state shared by the
// HTTP handlers: the installed model list and the model currently in use.
package assistant

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/matiasleandrokruk/vocalis/internal/domain/settings"
	"github.com/matiasleandrokruk/vocalis/internal/infra/eventbus"
	"github.com/matiasleandrokruk/vocalis/internal/infra/llm"
)

// State is safe for concurrent use.
type State struct {
	lister llm.ModelLister
	store  *settings.Store
	logger *slog.Logger

	mu      sync.RWMutex
	models  []string
	current string
}

// NewState returns an empty State. Call Init before serving.
func NewState(lister llm.ModelLister, store *settings.Store, logger *slog.Logger) *State {
	if logger == nil {
		logger = slog.Default()
	}
	return &State{lister: lister, store: store, logger: logger}
}

// Init discovers models and picks the starting model: the saved one when it
// is installed, otherwise the first listed, which is then persisted. With no
// models listed the built-in default stands in.
func (s *State) Init(ctx context.Context) string {
	models := s.list(ctx)
	saved := s.store.Load().Model()

	s.mu.Lock()
	s.models = models
	if saved != "" && slices.Contains(models, saved) {
		s.current = saved
		s.mu.Unlock()
		s.logger.Info("using last selected model", "model", saved)
		return saved
	}
	s.current = models[0]
	current := s.current
	s.mu.Unlock()

	s.logger.Info("defaulting to first available model", "model", current)
	if _, err := s.store.Merge(map[string]any{settings.KeyModel: current}); err != nil {
		s.logger.Error("failed to persist selected model", "model", current, "error", err)
	}
	return current
}

// Refresh re-lists installed models. The current model is kept even when it
// disappeared so an in-progress conversation is not switched silently.
func (s *State) Refresh(ctx context.Context) []string {
	models := s.list(ctx)
	s.mu.Lock()
	s.models = models
	current := s.current
	s.mu.Unlock()
	if current != "" && !slices.Contains(models, current) {
		s.logger.Warn("current model no longer listed", "model", current)
	}
	return slices.Clone(models)
}

func (s *State) list(ctx context.Context) []string {
	models, err := s.lister.ListModels(ctx)
	if err != nil || len(models) == 0 {
		s.logger.Warn("no models found, falling back to default", "model", settings.DefaultModel, "error", err)
		return []string{settings.DefaultModel}
	}
	return models
}

// Models returns a copy of the known model names.
func (s *State) Models() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.models)
}

// Current is the model used when a request names none.
func (s *State) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// IsAvailable reports whether model is in the known list.
func (s *State) IsAvailable(model string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.models, model)
}

// SelectModel switches the current model when it is available and reports
// whether it changed.
func (s *State) SelectModel(model string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if model == "" || model == s.current || !slices.Contains(s.models, model) {
		return false
	}
	s.current = model
	s.logger.Info("model changed", "model", model)
	return true
}

// Follow applies model changes from settings edited outside the process until
// ctx is done or the bus closes.
func (s *State) Follow(ctx context.Context, bus eventbus.EventBus) error {
	events := bus.Subscribe(eventbus.TopicSettingsChanged)
	defer bus.Unsubscribe(eventbus.TopicSettingsChanged, events)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if st, ok := ev.Payload.(settings.Settings); ok {
				s.SelectModel(st.Model())
			}
		}
	}
}
