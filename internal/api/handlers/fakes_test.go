package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"

	"github.com/matiasleandrokruk/vocalis/internal/domain/settings"
	"github.com/matiasleandrokruk/vocalis/internal/domain/turn"
	"github.com/matiasleandrokruk/vocalis/internal/infra/stt"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeSettingsStore struct {
	mu       sync.Mutex
	current  settings.Settings
	mergeErr error
	merges   int
}

func newFakeSettingsStore() *fakeSettingsStore {
	return &fakeSettingsStore{current: settings.Defaults()}
}

func (f *fakeSettingsStore) Load() settings.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current.Clone()
}

func (f *fakeSettingsStore) Merge(patch map[string]any) (settings.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.merges++
	for k, v := range patch {
		f.current[k] = v
	}
	return f.current.Clone(), f.mergeErr
}

type fakeModelState struct {
	models  []string
	current string
}

func (f *fakeModelState) Models() []string              { return slices.Clone(f.models) }
func (f *fakeModelState) Current() string               { return f.current }
func (f *fakeModelState) IsAvailable(model string) bool { return slices.Contains(f.models, model) }
func (f *fakeModelState) Refresh(context.Context) []string {
	return slices.Clone(f.models)
}

func (f *fakeModelState) SelectModel(model string) bool {
	if model == f.current || !f.IsAvailable(model) {
		return false
	}
	f.current = model
	return true
}

type fakeTurnRunner struct {
	res *turn.Result
	err error
	got turn.Request
}

func (f *fakeTurnRunner) Run(_ context.Context, req turn.Request) (*turn.Result, error) {
	f.got = req
	return f.res, f.err
}

type fakeTranscriber struct {
	text string
	err  error
	got  stt.Request
}

func (f *fakeTranscriber) Transcribe(_ context.Context, req stt.Request) (stt.Result, error) {
	f.got = req
	return stt.Result{Text: f.text}, f.err
}

func (f *fakeTranscriber) HealthCheck(context.Context) error { return f.err }
func (f *fakeTranscriber) Close() error                      { return nil }

// multipartRequest builds a multipart POST. files maps field -> [filename, content].
func multipartRequest(t *testing.T, url string, fields map[string]string, files map[string][2]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for field, f := range files {
		fw, err := mw.CreateFormFile(field, f[0])
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write([]byte(f[1])); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return m
}

func jsonRequest(t *testing.T, method, url string, v any) *http.Request {
	t.Helper()
	var body []byte
	switch b := v.(type) {
	case string:
		body = []byte(b)
	default:
		var err error
		body, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}
