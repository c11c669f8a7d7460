// Package settings persists the single user preference record.
package settings

import (
	"encoding/json"
	"maps"
	"strconv"
	"strings"
)

// Known keys.
const (
	KeyModel            = "model"
	KeyTTSLang          = "tts_lang"
	KeyTTSVoice         = "tts_voice"
	KeyTTSSpeed         = "tts_speed"
	KeySystemMessage    = "system_message"
	KeyTemperature      = "temperature"
	KeyTopK             = "top_k"
	KeyTopP             = "top_p"
	KeyFrequencyPenalty = "frequency_penalty"
	KeyRepeatPenalty    = "repeat_penalty"
	KeyNumCtx           = "num_ctx"
	KeyTTSEnabled       = "tts_enabled"
)

const (
	DefaultModel    = "gemma3:4b"
	DefaultTTSLang  = "en-us"
	DefaultTTSVoice = "af_heart"

	TTSOn  = "On"
	TTSOff = "Off"

	DefaultSystemMessage = "You are emulating Samantha from the movie 'Her.' Your responses are being converted into audio by a TTS system.  Focus on creating responses that sound great when read aloud. Keep your sentences clear and prioritize natural-sounding language.  Do not use emojis. Do not use markdown symbols: #, *. The user has the option to either type in messages or to use voice input. When using voice input an STT system converts the user's voice into text. There may be errors in the voice to text conversion. When that happens the messages you receive may not make sense."
)

// Settings is the flat preference record. Values keep whatever JSON type
// they were saved with; unknown keys are carried through untouched.
type Settings map[string]any

// Defaults returns a fresh record holding every default key.
func Defaults() Settings {
	return Settings{
		KeyModel:            DefaultModel,
		KeyTTSLang:          DefaultTTSLang,
		KeyTTSVoice:         DefaultTTSVoice,
		KeyTTSSpeed:         1.0,
		KeySystemMessage:    DefaultSystemMessage,
		KeyTemperature:      1.0,
		KeyTopK:             60,
		KeyTopP:             0.95,
		KeyFrequencyPenalty: 1.0,
		KeyRepeatPenalty:    1.0,
		KeyNumCtx:           16000,
		KeyTTSEnabled:       TTSOn,
	}
}

// Backfill adds any missing default key in place and returns s.
func (s Settings) Backfill() Settings {
	for k, v := range Defaults() {
		if _, ok := s[k]; !ok {
			s[k] = v
		}
	}
	return s
}

// Clone returns a shallow copy.
func (s Settings) Clone() Settings {
	return maps.Clone(s)
}

// String returns the value under key as a string, or "" when absent or not
// a string.
func (s Settings) String(key string) string {
	v, _ := s[key].(string)
	return v
}

// Float returns the numeric value under key, falling back to the default.
func (s Settings) Float(key string) float64 {
	if f, ok := Number(s[key]); ok {
		return f
	}
	f, _ := Number(Defaults()[key])
	return f
}

// Model is the selected model name.
func (s Settings) Model() string { return s.String(KeyModel) }

// TTSEnabled reports whether replies should be spoken.
func (s Settings) TTSEnabled() bool {
	return s.String(KeyTTSEnabled) != TTSOff
}

// Number coerces JSON numbers and numeric strings to float64. Form inputs
// arrive as strings, so "0.95" counts.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
