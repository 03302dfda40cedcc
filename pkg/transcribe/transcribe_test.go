package transcribe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsHallucination(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"", true},
		{".", true},
		{"?", true},
		{"obrigado", true},
		{"Obrigado.", true},
		{"Legendas pela comunidade Amara.org", true},
		// Short scraps carrying a noise marker are junk.
		{"eu?", true},
		{"ah.", true},
		// Short but clean commands are real speech.
		{"liga", false},
		{"sobe", false},
		{"pára", false},
		{"liga a luz", false},
		{"quanto é 2 mais 2", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsHallucination(tt.text), "text %q", tt.text)
	}
}

func TestApplyFixes(t *testing.T) {
	fixes := map[string]string{
		"fantasma": "Phantasma",
		"cera":     "será",
	}

	assert.Equal(t, "Phantasma, liga a luz", ApplyFixes("fantasma, liga a luz", fixes))
	assert.Equal(t, "Phantasma e Phantasma", ApplyFixes("Fantasma e FANTASMA", fixes))
	assert.Equal(t, "será que chove", ApplyFixes("cera que chove", fixes))
	assert.Equal(t, "sem alterações", ApplyFixes("sem alterações", nil))
}

func TestEncodeWAVRoundTrip(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32767, -32768, 42}

	data, err := encodeWAV(samples, 16000)
	require.NoError(t, err)

	dec := wav.NewDecoder(newReadSeeker(data))
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)

	require.Equal(t, 16000, buf.Format.SampleRate)
	require.Equal(t, 1, buf.Format.NumChannels)
	require.Len(t, buf.Data, len(samples))
	for i, s := range samples {
		assert.Equal(t, int(s), buf.Data[i], "sample %d", i)
	}
}

// spokenSamples fakes a recording loud enough to clear the silence gate.
func spokenSamples(n int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(2000 * (i%2*2 - 1))
	}
	return samples
}

func TestWhisperTranscribe(t *testing.T) {
	var gotLanguage, gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotLanguage = r.FormValue("language")
		gotPrompt = r.FormValue("prompt")

		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		file.Close()

		json.NewEncoder(w).Encode(map[string]string{"text": "  fantasma, que horas são?  "})
	}))
	defer srv.Close()

	w := NewWhisper(WhisperConfig{
		URL:           srv.URL,
		InitialPrompt: "Phantasma",
		Timeout:       5 * time.Second,
		Fixes:         map[string]string{"fantasma": "Phantasma"},
	})

	text, err := w.Transcribe(context.Background(), spokenSamples(160), 16000)
	require.NoError(t, err)
	assert.Equal(t, "Phantasma, que horas são?", text)
	assert.Equal(t, "pt", gotLanguage)
	assert.Equal(t, "Phantasma", gotPrompt)
}

func TestWhisperDiscardsHallucination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": "Obrigado."})
	}))
	defer srv.Close()

	w := NewWhisper(WhisperConfig{URL: srv.URL})

	text, err := w.Transcribe(context.Background(), spokenSamples(160), 16000)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestWhisperServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWhisper(WhisperConfig{URL: srv.URL})

	_, err := w.Transcribe(context.Background(), spokenSamples(160), 16000)
	assert.Error(t, err)
}

func TestWhisperEmptyRecording(t *testing.T) {
	w := NewWhisper(WhisperConfig{URL: "http://localhost:1"})

	_, err := w.Transcribe(context.Background(), nil, 16000)
	assert.ErrorIs(t, err, ErrEmptyRecording)
}

func TestWhisperSkipsSilentRecording(t *testing.T) {
	// The URL is unreachable on purpose: a silent recording must be
	// answered locally, without a server round trip.
	w := NewWhisper(WhisperConfig{URL: "http://localhost:1"})

	text, err := w.Transcribe(context.Background(), make([]int16, 16000), 16000)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestMockTranscriber(t *testing.T) {
	m := &MockTranscriber{Transcripts: []string{"um", "dois"}}

	got, err := m.Transcribe(context.Background(), nil, 16000)
	require.NoError(t, err)
	assert.Equal(t, "um", got)

	got, _ = m.Transcribe(context.Background(), nil, 16000)
	assert.Equal(t, "dois", got)

	// Repeats the last transcript once exhausted.
	got, _ = m.Transcribe(context.Background(), nil, 16000)
	assert.Equal(t, "dois", got)
	assert.Equal(t, 3, m.Calls())
}

// newReadSeeker adapts a byte slice for the wav decoder.
func newReadSeeker(data []byte) *readSeeker {
	return &readSeeker{data: data}
}

type readSeeker struct {
	data []byte
	pos  int
}

func (r *readSeeker) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

func (r *readSeeker) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(r.pos) + offset
	case io.SeekEnd:
		next = int64(len(r.data)) + offset
	}
	r.pos = int(next)
	return next, nil
}
