package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_ContainsDefaults(t *testing.T) {
	t.Parallel()

	c := Default()
	assert.True(t, c.Valid("en-us", "af_heart"))
	assert.True(t, c.Valid("fr", "ff_siwis"))
	assert.False(t, c.Valid("fr", "af_heart"))
	assert.False(t, c.Valid("de", "af_heart"))
	assert.True(t, c.HasLanguage("pt-br"))
	assert.Len(t, c.Languages, 7)
}

func TestBackendLang(t *testing.T) {
	t.Parallel()

	c := Default()
	assert.Equal(t, "cmn", c.BackendLang("zh"))
	assert.Equal(t, "fr-fr", c.BackendLang("fr"))
	assert.Equal(t, "en-us", c.BackendLang("en-us"))
	assert.Equal(t, "pt-br", c.BackendLang("pt-br"))
}

func TestParse_Rejects(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("languages: []"))
	require.Error(t, err)

	_, err = Parse([]byte("languages:\n  - code: en\n    voices: []\n"))
	require.Error(t, err)

	_, err = Parse([]byte("languages:\n  - code: en\n    voices: [{id: a}]\n  - code: en\n    voices: [{id: b}]\n"))
	require.Error(t, err)

	_, err = Parse([]byte(":::"))
	require.Error(t, err)
}

func TestParse_MissingEngineLangIsEmptyMap(t *testing.T) {
	t.Parallel()

	c, err := Parse([]byte("languages:\n  - code: en\n    voices: [{id: a}]\n"))
	require.NoError(t, err)
	assert.Equal(t, "zh", c.BackendLang("zh"))
}
