package turn

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveDecodingOptions_Defaults(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultDecodingOptions(), ResolveDecodingOptions(nil))
	assert.Equal(t, DefaultDecodingOptions(), ResolveDecodingOptions(map[string]any{}))
}

func TestResolveDecodingOptions_Values(t *testing.T) {
	t.Parallel()

	got := ResolveDecodingOptions(map[string]any{
		"num_ctx":           "8192",
		"temperature":       0.2,
		"top_k":             40.9,
		"top_p":             json.Number("0.5"),
		"frequency_penalty": 0,
		"repeat_penalty":    1.1,
	})
	assert.Equal(t, DecodingOptions{
		NumCtx:           8192,
		Temperature:      0.2,
		TopK:             40,
		TopP:             0.5,
		FrequencyPenalty: 0,
		RepeatPenalty:    1.1,
	}, got)
}

func TestResolveDecodingOptions_BadValuesFallBack(t *testing.T) {
	t.Parallel()

	got := ResolveDecodingOptions(map[string]any{
		"num_ctx":        "lots",
		"temperature":    -1.0,
		"top_k":          0,
		"top_p":          1.5,
		"repeat_penalty": []any{1},
	})
	assert.Equal(t, DefaultDecodingOptions(), got)
}

func TestDecodingOptions_Map(t *testing.T) {
	t.Parallel()

	m := DefaultDecodingOptions().Map()
	assert.Equal(t, 16000, m["num_ctx"])
	assert.Equal(t, 60, m["top_k"])
	assert.Equal(t, 0.95, m["top_p"])
	assert.Len(t, m, 6)
}
