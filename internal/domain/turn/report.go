package turn

import (
	"context"
	"log/slog"
	"time"

	"github.com/matiasleandrokruk/vocalis/internal/infra/eventbus"
)

// Observer receives per-turn measurements. *metrics.Metrics satisfies it.
type Observer interface {
	ObserveTurn(outcome string, inference, synthesis time.Duration, promptTokens, completionTokens int, warned bool)
}

// Reporter logs a timing report for every completed turn and forwards the
// numbers to an optional Observer.
type Reporter struct {
	bus      eventbus.EventBus
	events   <-chan eventbus.Event
	observer Observer
	logger   *slog.Logger
}

// NewReporter subscribes to completed turns. observer may be nil.
func NewReporter(bus eventbus.EventBus, observer Observer, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		bus:      bus,
		events:   bus.Subscribe(eventbus.TopicTurnCompleted),
		observer: observer,
		logger:   logger,
	}
}

// Run consumes events until ctx is done or the bus is closed.
func (r *Reporter) Run(ctx context.Context) error {
	defer r.bus.Unsubscribe(eventbus.TopicTurnCompleted, r.events)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-r.events:
			if !ok {
				return nil
			}
			stats, ok := ev.Payload.(Stats)
			if !ok {
				r.logger.Warn("unexpected turn event payload", "topic", ev.Topic)
				continue
			}
			r.report(stats)
		}
	}
}

func (r *Reporter) report(s Stats) {
	if r.observer != nil {
		r.observer.ObserveTurn(s.Outcome, s.InferenceDuration, s.SynthesisDuration, s.PromptTokens, s.CompletionTokens, s.Warned)
	}
	if s.Outcome != OutcomeOK {
		return
	}
	r.logger.Info("timing report",
		"turn", s.ID,
		"model", s.Model,
		"stt", seconds(s.STTDuration),
		"inference", seconds(s.InferenceDuration),
		"tts", seconds(s.SynthesisDuration),
		"total", seconds(s.Total()),
	)
}

func seconds(d time.Duration) string {
	return d.Round(10 * time.Millisecond).String()
}
