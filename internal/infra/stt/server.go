package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/matiasleandrokruk/vocalis/internal/infra/audioconv"
	"github.com/matiasleandrokruk/vocalis/internal/infra/netguard"
)

// ServerClient transcribes through a whisper.cpp server (`whisper-server`)
// listening on loopback. Recordings in a format audioconv understands are
// normalized to 16 kHz mono WAV before upload; anything else (webm, opus,
// m4a) is sent as is, which needs whisper-server started with --convert so
// it can shell out to ffmpeg.
type ServerClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewServerClient builds a client for baseURL, e.g. http://127.0.0.1:8178.
func NewServerClient(baseURL string, logger *slog.Logger) *ServerClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &ServerClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  netguard.LoopbackClient(2 * time.Minute),
		logger:  logger,
	}
}

type inferenceResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Error    string `json:"error"`
}

// Transcribe posts the recording to /inference.
func (c *ServerClient) Transcribe(ctx context.Context, req Request) (Result, error) {
	if len(req.Audio) == 0 {
		return Result{}, ErrEmptyAudio
	}
	audio, name := c.normalize(req)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return Result{}, fmt.Errorf("stt: create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return Result{}, fmt.Errorf("stt: write audio: %w", err)
	}
	fields := map[string]string{
		"response_format": "json",
		"temperature":     "0.0",
	}
	if lang := LanguageHint(req.Language); lang != "" {
		fields["language"] = lang
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return Result{}, fmt.Errorf("stt: write field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return Result{}, fmt.Errorf("stt: close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/inference", &buf)
	if err != nil {
		return Result{}, fmt.Errorf("stt: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, bytes.TrimSpace(body))
	}

	var out inferenceResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return Result{}, fmt.Errorf("stt: parse response: %w", err)
	}
	if out.Error != "" {
		return Result{}, fmt.Errorf("%w: %s", ErrUnavailable, out.Error)
	}
	lang := out.Language
	if lang == "" {
		lang = LanguageHint(req.Language)
	}
	return Result{Text: strings.TrimSpace(out.Text), Language: lang}, nil
}

func (c *ServerClient) normalize(req Request) ([]byte, string) {
	name := req.Filename
	if name == "" {
		name = "audio.webm"
	}
	pcm, err := audioconv.DecodeTo16k(bytes.NewReader(req.Audio), name, audioconv.Options{})
	if err != nil {
		if !errors.Is(err, audioconv.ErrUnsupported) {
			c.logger.Debug("audio normalization failed, uploading original", "file", name, "error", err)
		}
		return req.Audio, name
	}
	wav, err := audioconv.EncodeWAV(pcm.Samples, pcm.SampleRate)
	if err != nil {
		return req.Audio, name
	}
	return wav, strings.TrimSuffix(name, filepath.Ext(name)) + ".wav"
}

// HealthCheck treats any HTTP answer below 500 from the server root as alive.
func (c *ServerClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("stt healthcheck: build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// Close is a no-op; the server owns the model.
func (c *ServerClient) Close() error { return nil }
