package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/matiasleandrokruk/vocalis/internal/domain/voice"
	"github.com/matiasleandrokruk/vocalis/internal/version"
)

// HealthChecker is implemented by every engine client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ModelRefresher re-lists installed models. *assistant.State satisfies it.
type ModelRefresher interface {
	Refresh(ctx context.Context) []string
	Current() string
}

const healthTimeout = 3 * time.Second

type SystemHandler struct {
	engines map[string]HealthChecker
	models  ModelRefresher
	catalog *voice.Catalog
}

func NewSystemHandler(engines map[string]HealthChecker, models ModelRefresher, catalog *voice.Catalog) *SystemHandler {
	return &SystemHandler{engines: engines, models: models, catalog: catalog}
}

type healthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Engines map[string]string `json:"engines"`
}

// Health serves GET /health. Engines are checked concurrently; any failure
// turns the answer into 503 "degraded".
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	names := make([]string, 0, len(h.engines))
	for name := range h.engines {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]string, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.engines[name].HealthCheck(ctx); err != nil {
				results[i] = "unavailable: " + err.Error()
				return
			}
			results[i] = "ok"
		}()
	}
	wg.Wait()

	resp := healthResponse{Status: "ok", Version: version.Version, Engines: make(map[string]string, len(names))}
	for i, name := range names {
		resp.Engines[name] = results[i]
		if results[i] != "ok" {
			resp.Status = "degraded"
		}
	}
	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// Models serves GET /models with a fresh listing.
func (h *SystemHandler) Models(w http.ResponseWriter, r *http.Request) {
	models := h.models.Refresh(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"models": models, "current": h.models.Current()})
}

// Voices serves GET /voices.
func (h *SystemHandler) Voices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"languages": h.catalog.Languages})
}
