// Package stt turns recorded speech into text through a local whisper engine.
package stt

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrUnavailable wraps engine transport and status failures.
	ErrUnavailable = errors.New("stt: engine unavailable")
	// ErrEmptyAudio is returned for zero-length uploads.
	ErrEmptyAudio = errors.New("stt: empty audio")
)

// Request is one recording to transcribe.
type Request struct {
	Audio    []byte
	Filename string
	// Language is a two-letter hint; empty lets the engine detect it.
	Language string
}

// Result is the engine output.
type Result struct {
	Text     string
	Language string
}

// Transcriber is implemented by every speech-to-text backend.
type Transcriber interface {
	Transcribe(ctx context.Context, req Request) (Result, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// LanguageHint reduces a UI language tag to the base code whisper expects:
// "en-us" -> "en", "pt-BR" -> "pt".
func LanguageHint(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	return tag
}
