package audioconv

import (
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

const wavFormatPCM = 1

// EncodeWAV renders mono samples as a 16-bit PCM WAV file.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audioconv: invalid sample rate %d", sampleRate)
	}
	// The encoder seeks back to patch chunk sizes on Close.
	buf := &writerseeker.WriterSeeker{}
	enc := wav.NewEncoder(buf, sampleRate, 16, 1, wavFormatPCM)

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(math.Round(clamp(float64(s), -1, 1) * math.MaxInt16))
	}
	ib := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(ib); err != nil {
		return nil, fmt.Errorf("audioconv: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("audioconv: finalize wav: %w", err)
	}
	out, err := io.ReadAll(buf.Reader())
	if err != nil {
		return nil, fmt.Errorf("audioconv: read wav: %w", err)
	}
	return out, nil
}
