package stt

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matiasleandrokruk/vocalis/internal/infra/audioconv"
)

func TestLanguageHint(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "en", LanguageHint("en-us"))
	assert.Equal(t, "pt", LanguageHint("pt-BR"))
	assert.Equal(t, "zh", LanguageHint("zh"))
	assert.Equal(t, "", LanguageHint("  "))
}

type capturedUpload struct {
	filename string
	fields   map[string]string
	head     []byte
}

func whisperServer(t *testing.T, status int, body string, got *capturedUpload) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		got.filename = hdr.Filename
		got.head = data[:min(4, len(data))]
		got.fields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			got.fields[k] = v[0]
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestServerClient_TranscribeNormalizesWAV(t *testing.T) {
	t.Parallel()

	var got capturedUpload
	srv := whisperServer(t, http.StatusOK, `{"text":"  hello world \n"}`, &got)
	defer srv.Close()

	samples := make([]float32, 4800)
	for i := range samples {
		samples[i] = float32(0.3 * math.Sin(float64(i)/10))
	}
	wav, err := audioconv.EncodeWAV(samples, 48000)
	require.NoError(t, err)

	c := NewServerClient(srv.URL+"/", nil)
	res, err := c.Transcribe(context.Background(), Request{Audio: wav, Filename: "rec.wav", Language: "en-us"})
	require.NoError(t, err)

	assert.Equal(t, "hello world", res.Text)
	assert.Equal(t, "en", res.Language)
	assert.Equal(t, "rec.wav", got.filename)
	assert.Equal(t, "RIFF", string(got.head))
	assert.Equal(t, "en", got.fields["language"])
	assert.Equal(t, "json", got.fields["response_format"])
}

func TestServerClient_PassesThroughUnknownFormat(t *testing.T) {
	t.Parallel()

	var got capturedUpload
	srv := whisperServer(t, http.StatusOK, `{"text":"hola","language":"es"}`, &got)
	defer srv.Close()

	c := NewServerClient(srv.URL, nil)
	res, err := c.Transcribe(context.Background(), Request{Audio: []byte("\x1aE\xdf\xa3rest"), Filename: "rec.webm"})
	require.NoError(t, err)

	assert.Equal(t, "hola", res.Text)
	assert.Equal(t, "es", res.Language)
	assert.Equal(t, "rec.webm", got.filename)
	_, hasLang := got.fields["language"]
	assert.False(t, hasLang)
}

func TestServerClient_Errors(t *testing.T) {
	t.Parallel()

	var got capturedUpload
	srv := whisperServer(t, http.StatusInternalServerError, `boom`, &got)
	defer srv.Close()

	c := NewServerClient(srv.URL, nil)
	_, err := c.Transcribe(context.Background(), Request{Audio: []byte("x")})
	assert.True(t, errors.Is(err, ErrUnavailable))

	_, err = c.Transcribe(context.Background(), Request{})
	assert.True(t, errors.Is(err, ErrEmptyAudio))
}

func TestServerClient_HealthCheck(t *testing.T) {
	t.Parallel()

	var got capturedUpload
	srv := whisperServer(t, http.StatusOK, "", &got)
	c := NewServerClient(srv.URL, nil)
	assert.NoError(t, c.HealthCheck(context.Background()))

	srv.Close()
	assert.Error(t, c.HealthCheck(context.Background()))
	assert.NoError(t, c.Close())
}

func TestNewLocal_RejectsEmptyModel(t *testing.T) {
	t.Parallel()

	_, err := NewLocal("")
	assert.Error(t, err)
}
