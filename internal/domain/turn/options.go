package turn

import (
	"math"

	"github.com/matiasleandrokruk/vocalis/internal/domain/settings"
)

// DecodingOptions are the sampling parameters forwarded to the model.
type DecodingOptions struct {
	NumCtx           int
	Temperature      float64
	TopK             int
	TopP             float64
	FrequencyPenalty float64
	RepeatPenalty    float64
}

// DefaultDecodingOptions mirrors the settings defaults.
func DefaultDecodingOptions() DecodingOptions {
	return DecodingOptions{
		NumCtx:           16000,
		Temperature:      1.0,
		TopK:             60,
		TopP:             0.95,
		FrequencyPenalty: 1.0,
		RepeatPenalty:    1.0,
	}
}

// ResolveDecodingOptions reads a loose option map as sent by the UI.
// Missing, non-numeric and out-of-range values fall back to the default;
// numeric strings are accepted and integer fields truncate. It never fails.
func ResolveDecodingOptions(raw map[string]any) DecodingOptions {
	o := DefaultDecodingOptions()
	o.NumCtx = intOpt(raw, settings.KeyNumCtx, o.NumCtx, 1, math.MaxInt32)
	o.Temperature = floatOpt(raw, settings.KeyTemperature, o.Temperature, 0, math.Inf(1))
	o.TopK = intOpt(raw, settings.KeyTopK, o.TopK, 1, math.MaxInt32)
	o.TopP = floatOpt(raw, settings.KeyTopP, o.TopP, 0, 1)
	o.FrequencyPenalty = floatOpt(raw, settings.KeyFrequencyPenalty, o.FrequencyPenalty, 0, math.Inf(1))
	o.RepeatPenalty = floatOpt(raw, settings.KeyRepeatPenalty, o.RepeatPenalty, 0, math.Inf(1))
	return o
}

func floatOpt(raw map[string]any, key string, def, lo, hi float64) float64 {
	f, ok := settings.Number(raw[key])
	if !ok || math.IsNaN(f) || f < lo || f > hi {
		return def
	}
	return f
}

func intOpt(raw map[string]any, key string, def int, lo, hi float64) int {
	f, ok := settings.Number(raw[key])
	if !ok || math.IsNaN(f) {
		return def
	}
	f = math.Trunc(f)
	if f < lo || f > hi {
		return def
	}
	return int(f)
}

// Map renders the options in the daemon's wire names.
func (o DecodingOptions) Map() map[string]any {
	return map[string]any{
		settings.KeyNumCtx:           o.NumCtx,
		settings.KeyTemperature:      o.Temperature,
		settings.KeyTopK:             o.TopK,
		settings.KeyTopP:             o.TopP,
		settings.KeyFrequencyPenalty: o.FrequencyPenalty,
		settings.KeyRepeatPenalty:    o.RepeatPenalty,
	}
}
