package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matiasleandrokruk/vocalis/internal/domain/voice"
)

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func ok(context.Context) error { return nil }

func TestSystemHandler_Health(t *testing.T) {
	t.Parallel()

	h := NewSystemHandler(map[string]HealthChecker{"ollama": checkerFunc(ok), "tts": checkerFunc(ok)}, &fakeModelState{}, voice.Default())
	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d want=200", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "ok" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestSystemHandler_HealthDegraded(t *testing.T) {
	t.Parallel()

	down := checkerFunc(func(context.Context) error { return errors.New("connection refused") })
	h := NewSystemHandler(map[string]HealthChecker{"ollama": checkerFunc(ok), "stt": down}, &fakeModelState{}, voice.Default())
	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want=503", w.Code)
	}
	engines, _ := decodeBody(t, w)["engines"].(map[string]any)
	if engines["ollama"] != "ok" || engines["stt"] != "unavailable: connection refused" {
		t.Fatalf("unexpected engines %v", engines)
	}
}

func TestSystemHandler_ModelsAndVoices(t *testing.T) {
	t.Parallel()

	state := &fakeModelState{models: []string{"a", "b"}, current: "b"}
	h := NewSystemHandler(nil, state, voice.Default())

	w := httptest.NewRecorder()
	h.Models(w, httptest.NewRequest(http.MethodGet, "/models", nil))
	body := decodeBody(t, w)
	if body["current"] != "b" || len(body["models"].([]any)) != 2 {
		t.Fatalf("unexpected models body %v", body)
	}

	w = httptest.NewRecorder()
	h.Voices(w, httptest.NewRequest(http.MethodGet, "/voices", nil))
	langs, ok := decodeBody(t, w)["languages"].([]any)
	if !ok || len(langs) != len(voice.Default().Languages) {
		t.Fatalf("unexpected voices body %s", w.Body.String())
	}
}
