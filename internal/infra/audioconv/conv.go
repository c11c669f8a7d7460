// Package audioconv decodes uploaded recordings to mono float32 PCM and
// encodes PCM back to 16-bit WAV.
package audioconv

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// WhisperRate is the sample rate speech recognisers expect.
const WhisperRate = 16000

// ErrUnsupported is returned for containers this package cannot decode.
var ErrUnsupported = errors.New("audioconv: unsupported format")

// PCM is mono float32 audio in [-1, 1].
type PCM struct {
	Samples    []float32
	SampleRate int
}

// Duration in seconds.
func (p PCM) Duration() float64 {
	if p.SampleRate <= 0 {
		return 0
	}
	return float64(len(p.Samples)) / float64(p.SampleRate)
}

// Options bounds decoding.
type Options struct {
	MaxSamples int // 0 = unbounded
}

// DecodeTo16k decodes wav, mp3 or ogg-vorbis from r and resamples to 16 kHz
// mono. name is only used as a format hint; the magic bytes win.
func DecodeTo16k(r io.ReadSeeker, name string, opt Options) (PCM, error) {
	br := bufio.NewReader(r)
	magic, _ := br.Peek(4)
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return PCM{}, fmt.Errorf("audioconv: rewind: %w", err)
	}

	var (
		x   []float32
		err error
	)
	switch {
	case string(magic) == "RIFF":
		x, err = decodeWAV(r)
	case string(magic) == "OggS":
		x, err = decodeOggVorbis(r)
	case isMP3(magic) || strings.EqualFold(filepath.Ext(name), ".mp3"):
		x, err = decodeMP3(r)
	default:
		return PCM{}, fmt.Errorf("%w: %q", ErrUnsupported, filepath.Ext(name))
	}
	if err != nil {
		return PCM{}, err
	}
	if opt.MaxSamples > 0 && len(x) > opt.MaxSamples {
		x = x[:opt.MaxSamples]
	}
	return PCM{Samples: x, SampleRate: WhisperRate}, nil
}

// ID3 tag or an MPEG frame sync.
func isMP3(magic []byte) bool {
	if len(magic) < 3 {
		return false
	}
	if string(magic[:3]) == "ID3" {
		return true
	}
	return magic[0] == 0xFF && magic[1]&0xE0 == 0xE0
}

func decodeWAV(r io.ReadSeeker) ([]float32, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid wav", ErrUnsupported)
	}
	pb, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("audioconv: wav: %w", err)
	}
	if pb == nil || len(pb.Data) == 0 {
		return nil, errors.New("audioconv: empty wav")
	}

	bd := int(dec.BitDepth)
	if bd == 0 {
		bd = 16
	}
	x := intSliceToFloat32(pb.Data, bd)

	ch, sr := 1, 44100
	if pb.Format != nil {
		if pb.Format.NumChannels > 0 {
			ch = pb.Format.NumChannels
		}
		if pb.Format.SampleRate > 0 {
			sr = pb.Format.SampleRate
		}
	}
	return resampleLinear(downmixInterleaved(x, ch), sr, WhisperRate), nil
}

func decodeMP3(r io.Reader) ([]float32, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("audioconv: mp3: %w", err)
	}
	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return nil, fmt.Errorf("audioconv: mp3: %w", err)
	}
	ints := make([]int16, raw.Len()/2)
	if err := binary.Read(bytes.NewReader(raw.Bytes()), binary.LittleEndian, &ints); err != nil {
		return nil, fmt.Errorf("audioconv: mp3: %w", err)
	}
	// go-mp3 always emits interleaved stereo.
	x := downmixInterleaved(int16SliceToFloat32(ints), 2)

	sr := dec.SampleRate()
	if sr <= 0 {
		sr = 44100
	}
	return resampleLinear(x, sr, WhisperRate), nil
}

func decodeOggVorbis(r io.Reader) ([]float32, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("audioconv: ogg: %w", err)
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid ogg/vorbis stream", ErrUnsupported)
	}
	return resampleLinear(downmixInterleaved(pcm, format.Channels), format.SampleRate, WhisperRate), nil
}

// helpers

func intSliceToFloat32(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range data {
		out[i] = float32(clamp(float64(v)*scale, -1.0, 1.0))
	}
	return out
}

func int16SliceToFloat32(data []int16) []float32 {
	out := make([]float32, len(data))
	const scale = 1.0 / 32768.0
	for i, v := range data {
		out[i] = float32(float64(v) * scale)
	}
	return out
}

func downmixInterleaved(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	nFrames := len(in) / channels
	out := make([]float32, nFrames)
	for i := 0; i < nFrames; i++ {
		sum := 0.0
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += float64(in[base+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

func resampleLinear(in []float32, inSR, outSR int) []float32 {
	if inSR == outSR || len(in) == 0 {
		return in
	}
	ratio := float64(outSR) / float64(inSR)
	outN := int(math.Ceil(float64(len(in)) * ratio))
	out := make([]float32, outN)
	for i := 0; i < outN; i++ {
		src := float64(i) / ratio
		i0 := int(math.Floor(src))
		i1 := i0 + 1
		if i0 >= len(in) {
			out[i] = in[len(in)-1]
			continue
		}
		if i1 >= len(in) {
			out[i] = in[i0]
			continue
		}
		a := float32(src - float64(i0))
		out[i] = in[i0]*(1-a) + in[i1]*a
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
