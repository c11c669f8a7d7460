package settings

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matiasleandrokruk/vocalis/internal/domain/voice"
)

func TestValidate_AcceptsDefaultsAndStrings(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Validate(Defaults(), Defaults(), voice.Default()))
	assert.NoError(t, Validate(map[string]any{
		"temperature": "0.5", "top_k": "40", "top_p": "1", "num_ctx": 8192.0, "tts_speed": "1.5",
	}, Defaults(), voice.Default()))
}

func TestValidate_Ranges(t *testing.T) {
	t.Parallel()

	cases := []map[string]any{
		{"tts_speed": 0.4},
		{"tts_speed": 1.6},
		{"temperature": -0.1},
		{"top_k": 0},
		{"top_p": 1.01},
		{"frequency_penalty": -1},
		{"repeat_penalty": "-2"},
		{"num_ctx": 0},
		{"num_ctx": "lots"},
		{"tts_enabled": "Maybe"},
		{"model": "  "},
		{"model": 3},
	}
	for _, patch := range cases {
		err := Validate(patch, Defaults(), nil)
		var verr *ValidationError
		require.Truef(t, errors.As(err, &verr), "patch %v", patch)
		assert.Len(t, verr.Problems, 1)
	}
}

func TestValidate_IgnoresUnknownKeys(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Validate(map[string]any{"theme": []int{1}}, Defaults(), nil))
}

func TestValidate_VoiceCatalog(t *testing.T) {
	t.Parallel()

	cat := voice.Default()
	current := Defaults()

	assert.NoError(t, Validate(map[string]any{"tts_lang": "fr", "tts_voice": "ff_siwis"}, current, cat))
	// voice only, checked against the current language
	assert.NoError(t, Validate(map[string]any{"tts_voice": "am_michael"}, current, cat))
	assert.Error(t, Validate(map[string]any{"tts_voice": "ff_siwis"}, current, cat))
	// language only, current voice not offered there
	assert.Error(t, Validate(map[string]any{"tts_lang": "zh"}, current, cat))
	assert.Error(t, Validate(map[string]any{"tts_lang": "klingon", "tts_voice": "af_heart"}, current, cat))
}
