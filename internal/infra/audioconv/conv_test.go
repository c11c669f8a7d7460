package audioconv

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(n, rate int, freq float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestEncodeWAV_Header(t *testing.T) {
	t.Parallel()

	data, err := EncodeWAV(sine(2400, 24000, 440), 24000)
	require.NoError(t, err)

	require.Greater(t, len(data), 44)
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	// 2400 samples * 2 bytes + 44-byte header
	assert.Equal(t, 2400*2+44, len(data))
}

func TestEncodeWAV_RejectsBadRate(t *testing.T) {
	t.Parallel()

	_, err := EncodeWAV([]float32{0}, 0)
	assert.Error(t, err)
}

func TestDecodeTo16k_WAVRoundTrip(t *testing.T) {
	t.Parallel()

	in := sine(48000, 48000, 220) // one second at 48 kHz
	data, err := EncodeWAV(in, 48000)
	require.NoError(t, err)

	pcm, err := DecodeTo16k(bytes.NewReader(data), "clip.bin", Options{})
	require.NoError(t, err)
	assert.Equal(t, WhisperRate, pcm.SampleRate)
	assert.InDelta(t, 16000, len(pcm.Samples), 1)
	assert.InDelta(t, 1.0, pcm.Duration(), 0.01)
}

func TestDecodeTo16k_MaxSamples(t *testing.T) {
	t.Parallel()

	data, err := EncodeWAV(sine(16000, 16000, 220), 16000)
	require.NoError(t, err)

	pcm, err := DecodeTo16k(bytes.NewReader(data), "a.wav", Options{MaxSamples: 100})
	require.NoError(t, err)
	assert.Len(t, pcm.Samples, 100)
}

func TestDecodeTo16k_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := DecodeTo16k(bytes.NewReader([]byte("\x1aE\xdf\xa3webm")), "rec.webm", Options{})
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestDownmixAndResample(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []float32{0.5, 0}, downmixInterleaved([]float32{1, 0, 0.5, -0.5}, 2))
	assert.Len(t, resampleLinear(make([]float32, 300), 48000, 16000), 100)
	assert.Empty(t, resampleLinear(nil, 48000, 16000))
}

func TestEncodeWAV_PatchesChunkSizes(t *testing.T) {
	t.Parallel()

	data, err := EncodeWAV(sine(1600, WhisperRate, 220), WhisperRate)
	require.NoError(t, err)

	require.Len(t, data, 44+1600*2)
	assert.Equal(t, uint32(len(data)-8), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, "data", string(data[36:40]))
	assert.Equal(t, uint32(1600*2), binary.LittleEndian.Uint32(data[40:44]))
}
