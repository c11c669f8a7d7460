//go:build whispercpp

package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/matiasleandrokruk/vocalis/internal/infra/audioconv"
)

// Local runs whisper.cpp in-process. Contexts are not safe for concurrent
// use, so calls are serialized.
type Local struct {
	mu    sync.Mutex
	model whisper.Model
}

// NewLocal loads the ggml model at modelPath.
func NewLocal(modelPath string) (Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("stt: empty model path")
	}
	m, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("stt: load model: %w", err)
	}
	return &Local{model: m}, nil
}

// Transcribe decodes the upload to 16 kHz mono and runs the model.
func (l *Local) Transcribe(ctx context.Context, req Request) (Result, error) {
	if len(req.Audio) == 0 {
		return Result{}, ErrEmptyAudio
	}
	pcm, err := audioconv.DecodeTo16k(bytes.NewReader(req.Audio), req.Filename, audioconv.Options{})
	if errors.Is(err, audioconv.ErrUnsupported) {
		return Result{}, fmt.Errorf("stt: decode: %w; upload wav/mp3/ogg-vorbis or use the server backend with --convert", err)
	}
	if err != nil {
		return Result{}, fmt.Errorf("stt: decode: %w", err)
	}
	if len(pcm.Samples) == 0 {
		return Result{}, ErrEmptyAudio
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	wctx, err := l.model.NewContext()
	if err != nil {
		return Result{}, fmt.Errorf("stt: new context: %w", err)
	}
	lang := LanguageHint(req.Language)
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return Result{}, fmt.Errorf("stt: set language: %w", err)
	}
	wctx.SetThreads(uint(runtime.NumCPU()))

	if err := wctx.Process(pcm.Samples, nil, nil, nil); err != nil {
		return Result{}, fmt.Errorf("stt: process: %w", err)
	}

	var parts []string
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("stt: next segment: %w", err)
		}
		parts = append(parts, strings.TrimSpace(seg.Text))
	}

	detected := wctx.DetectedLanguage()
	if detected == "" {
		detected = wctx.Language()
	}
	return Result{Text: strings.Join(parts, " "), Language: detected}, nil
}

// HealthCheck reports whether a model is loaded.
func (l *Local) HealthCheck(context.Context) error {
	if l.model == nil {
		return ErrUnavailable
	}
	return nil
}

// Close releases the model.
func (l *Local) Close() error {
	if l.model == nil {
		return nil
	}
	return l.model.Close()
}
