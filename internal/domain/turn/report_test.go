package turn

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matiasleandrokruk/vocalis/internal/infra/eventbus"
)

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
	done     chan struct{}
}

func (r *recordingObserver) ObserveTurn(outcome string, _, _ time.Duration, _, _ int, _ bool) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, outcome)
	n := len(r.outcomes)
	r.mu.Unlock()
	if n == 2 {
		close(r.done)
	}
}

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestReporter_LogsAndObserves(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	var logs syncBuffer
	obs := &recordingObserver{done: make(chan struct{})}
	r := NewReporter(bus, obs, slog.New(slog.NewTextHandler(&logs, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	bus.Publish(eventbus.TopicTurnCompleted, Stats{
		ID:                "abc",
		Model:             "llama3",
		Outcome:           OutcomeOK,
		STTDuration:       1500 * time.Millisecond,
		InferenceDuration: 2 * time.Second,
		SynthesisDuration: 500 * time.Millisecond,
	})
	bus.Publish(eventbus.TopicTurnCompleted, "not stats")
	bus.Publish(eventbus.TopicTurnCompleted, Stats{ID: "def", Outcome: OutcomeUnavailable})

	select {
	case <-obs.done:
	case <-time.After(2 * time.Second):
		t.Fatal("observer not called")
	}

	obs.mu.Lock()
	assert.Equal(t, []string{OutcomeOK, OutcomeUnavailable}, obs.outcomes)
	obs.mu.Unlock()

	out := logs.String()
	assert.Contains(t, out, "timing report")
	assert.Contains(t, out, "total=4s")
	assert.Contains(t, out, "stt=1.5s")
	assert.Contains(t, out, "unexpected turn event payload")
	assert.NotContains(t, out, "turn=def")

	bus.Close()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reporter did not stop on bus close")
	}
}

func TestReporter_StopsListeningOnCancel(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	r := NewReporter(bus, nil, slog.New(slog.NewTextHandler(&syncBuffer{}, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()
	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reporter did not stop on cancel")
	}

	// With no subscriber left nothing can back up.
	for i := 0; i < 200; i++ {
		bus.Publish(eventbus.TopicTurnCompleted, Stats{ID: "late"})
	}
	assert.Zero(t, bus.Dropped())
}
