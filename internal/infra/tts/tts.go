// Package tts synthesizes speech through a local Kokoro engine.
package tts

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/matiasleandrokruk/vocalis/internal/infra/audioconv"
	"github.com/matiasleandrokruk/vocalis/internal/infra/netguard"
)

// KokoroSampleRate is the fixed output rate of the engine.
const KokoroSampleRate = 24000

var (
	// ErrUnavailable wraps engine transport and status failures.
	ErrUnavailable = errors.New("tts: engine unavailable")
	// ErrEmptyText is returned when there is nothing to say.
	ErrEmptyText = errors.New("tts: empty text")
)

// Request is one utterance to synthesize.
type Request struct {
	Text  string
	Voice string
	Speed float64
	// Lang is the engine language tag (already mapped, e.g. "cmn").
	Lang string
}

// Audio is mono float32 PCM.
type Audio struct {
	Samples    []float32
	SampleRate int
}

// Synthesizer is implemented by every text-to-speech backend.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (Audio, error)
	HealthCheck(ctx context.Context) error
}

// EncodeWAV renders synthesized audio as a 16-bit PCM WAV file.
func EncodeWAV(a Audio) ([]byte, error) {
	return audioconv.EncodeWAV(a.Samples, a.SampleRate)
}

// KokoroClient talks to Kokoro's OpenAI-compatible speech endpoint on loopback.
type KokoroClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewKokoroClient builds a client for baseURL, e.g. http://127.0.0.1:8880.
func NewKokoroClient(baseURL string) *KokoroClient {
	return &KokoroClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   "kokoro",
		client:  netguard.LoopbackClient(2 * time.Minute),
	}
}

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Speed          float64 `json:"speed"`
	ResponseFormat string  `json:"response_format"`
	LangCode       string  `json:"lang_code,omitempty"`
	Stream         bool    `json:"stream"`
}

// Synthesize requests raw 24 kHz s16le PCM and converts it to float32.
func (k *KokoroClient) Synthesize(ctx context.Context, req Request) (Audio, error) {
	if strings.TrimSpace(req.Text) == "" {
		return Audio{}, ErrEmptyText
	}
	speed := req.Speed
	if speed <= 0 {
		speed = 1.0
	}
	body, err := json.Marshal(speechRequest{
		Model:          k.model,
		Input:          req.Text,
		Voice:          req.Voice,
		Speed:          speed,
		ResponseFormat: "pcm",
		LangCode:       req.Lang,
	})
	if err != nil {
		return Audio{}, fmt.Errorf("tts: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, k.baseURL+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return Audio{}, fmt.Errorf("tts: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := k.client.Do(httpReq)
	if err != nil {
		return Audio{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Audio{}, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, bytes.TrimSpace(msg))
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Audio{}, fmt.Errorf("%w: read audio: %v", ErrUnavailable, err)
	}
	return Audio{Samples: pcm16ToFloat32(raw), SampleRate: KokoroSampleRate}, nil
}

// HealthCheck calls GET /health.
func (k *KokoroClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("tts healthcheck: build request: %w", err)
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// pcm16ToFloat32 reads little-endian signed 16-bit samples. A trailing odd
// byte is ignored.
func pcm16ToFloat32(raw []byte) []float32 {
	out := make([]float32, len(raw)/2)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(raw[2*i:]))
		out[i] = float32(v) / 32768.0
	}
	return out
}
