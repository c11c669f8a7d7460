package settings

import (
	"fmt"
	"math"
	"strings"

	"github.com/matiasleandrokruk/vocalis/internal/domain/voice"
)

// ValidationError lists every problem found in a patch.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid settings: " + strings.Join(e.Problems, "; ")
}

type numberRule struct {
	min, max     float64
	minExclusive bool
}

var numberRules = map[string]numberRule{
	KeyTTSSpeed:         {min: 0.5, max: 1.5},
	KeyTemperature:      {min: 0, max: math.Inf(1)},
	KeyTopK:             {min: 0, max: math.Inf(1), minExclusive: true},
	KeyTopP:             {min: 0, max: 1},
	KeyFrequencyPenalty: {min: 0, max: math.Inf(1)},
	KeyRepeatPenalty:    {min: 0, max: math.Inf(1)},
	KeyNumCtx:           {min: 0, max: math.Inf(1), minExclusive: true},
}

// Validate checks the known keys present in patch. current supplies the
// language when the patch changes only the voice. Unknown keys are ignored.
// A nil catalog skips the voice checks.
func Validate(patch map[string]any, current Settings, catalog *voice.Catalog) error {
	var problems []string

	for key, rule := range numberRules {
		raw, ok := patch[key]
		if !ok {
			continue
		}
		f, ok := Number(raw)
		switch {
		case !ok || math.IsNaN(f):
			problems = append(problems, fmt.Sprintf("%s must be a number", key))
		case rule.minExclusive && f <= rule.min:
			problems = append(problems, fmt.Sprintf("%s must be greater than %g", key, rule.min))
		case !rule.minExclusive && f < rule.min:
			problems = append(problems, fmt.Sprintf("%s must be at least %g", key, rule.min))
		case f > rule.max:
			problems = append(problems, fmt.Sprintf("%s must be at most %g", key, rule.max))
		}
	}

	for _, key := range []string{KeyModel, KeySystemMessage, KeyTTSLang, KeyTTSVoice, KeyTTSEnabled} {
		if raw, ok := patch[key]; ok {
			if _, isString := raw.(string); !isString {
				problems = append(problems, fmt.Sprintf("%s must be a string", key))
			}
		}
	}
	if m, ok := patch[KeyModel].(string); ok && strings.TrimSpace(m) == "" {
		problems = append(problems, "model must not be empty")
	}
	if e, ok := patch[KeyTTSEnabled].(string); ok && e != TTSOn && e != TTSOff {
		problems = append(problems, `tts_enabled must be "On" or "Off"`)
	}

	if catalog != nil {
		problems = append(problems, voiceProblems(patch, current, catalog)...)
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func voiceProblems(patch map[string]any, current Settings, catalog *voice.Catalog) []string {
	lang, langInPatch := patch[KeyTTSLang].(string)
	v, voiceInPatch := patch[KeyTTSVoice].(string)
	if !langInPatch && !voiceInPatch {
		return nil
	}
	if !langInPatch {
		lang = current.String(KeyTTSLang)
	}
	if !catalog.HasLanguage(lang) {
		return []string{fmt.Sprintf("unknown tts_lang %q", lang)}
	}
	if !voiceInPatch {
		v = current.String(KeyTTSVoice)
	}
	if !catalog.Valid(lang, v) {
		return []string{fmt.Sprintf("voice %q is not available for %q", v, lang)}
	}
	return nil
}
