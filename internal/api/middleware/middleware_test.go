package middleware

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/matiasleandrokruk/vocalis/internal/api/ctxkeys"
)

type observed struct {
	method, route string
	status        int
}

type fakeObserver struct {
	mu   sync.Mutex
	seen []observed
}

func (f *fakeObserver) ObserveRequest(method, route string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, observed{method, route, status})
}

func TestAccessLog_RecordsRoutePatternAndStatus(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	obs := &fakeObserver{}
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(AccessLog(slog.New(slog.NewTextHandler(&logs, nil)), obs))
	r.Delete("/conversations/{id}", func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.LoggerFrom(r.Context(), nil) == slog.Default() {
			t.Error("request logger not injected")
		}
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodDelete, "/conversations/abc", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if len(obs.seen) != 1 {
		t.Fatalf("observations=%d want=1", len(obs.seen))
	}
	got := obs.seen[0]
	if got.route != "/conversations/{id}" || got.status != http.StatusNotFound || got.method != http.MethodDelete {
		t.Fatalf("unexpected observation %+v", got)
	}
	if !strings.Contains(logs.String(), "request_id=") {
		t.Fatalf("log line missing request id: %s", logs.String())
	}
}

func TestAccessLog_DefaultsStatusTo200(t *testing.T) {
	t.Parallel()

	obs := &fakeObserver{}
	h := AccessLog(slog.New(slog.NewTextHandler(io.Discard, nil)), obs)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	if obs.seen[0].status != http.StatusOK || obs.seen[0].route != "unmatched" {
		t.Fatalf("unexpected observation %+v", obs.seen[0])
	}
}

func TestBodyLimit_RejectsDeclaredOversize(t *testing.T) {
	t.Parallel()

	called := false
	h := BodyLimit(8)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("0123456789"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d want=413", w.Code)
	}
	if called {
		t.Fatal("handler must not run")
	}
}

func TestBodyLimit_CapsUndeclaredBody(t *testing.T) {
	t.Parallel()

	var readErr error
	h := BodyLimit(8)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("0123456789"))
	req.ContentLength = -1
	h.ServeHTTP(httptest.NewRecorder(), req)

	var maxErr *http.MaxBytesError
	if readErr == nil || !errors.As(readErr, &maxErr) {
		t.Fatalf("expected MaxBytesError, got %v", readErr)
	}
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Header().Get("X-Content-Type-Options") != "nosniff" || w.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("missing security headers: %v", w.Header())
	}
}

func TestLoopbackHostOnly(t *testing.T) {
	t.Parallel()

	h := LoopbackHostOnly(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := map[string]int{
		"localhost:5000":    http.StatusNoContent,
		"127.0.0.1:5000":    http.StatusNoContent,
		"[::1]:5000":        http.StatusNoContent,
		"attacker.example":  http.StatusForbidden,
		"192.168.0.20:5000": http.StatusForbidden,
	}
	for host, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = host
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != want {
			t.Errorf("host %q: status=%d want=%d", host, w.Code, want)
		}
	}
}
