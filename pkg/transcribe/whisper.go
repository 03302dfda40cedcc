package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/mfalcao/phantasma/internal/httpc"
	"github.com/mfalcao/phantasma/internal/log"
	"github.com/mfalcao/phantasma/pkg/audioio"
)

// ErrEmptyRecording is returned when there is no audio to transcribe.
var ErrEmptyRecording = errors.New("transcribe: empty recording")

// WhisperConfig holds settings for the whisper server client.
type WhisperConfig struct {
	// URL is the server's inference endpoint, e.g. http://localhost:8080/inference.
	URL string
	// InitialPrompt biases decoding toward expected vocabulary.
	InitialPrompt string
	// Timeout bounds a single transcription call.
	Timeout time.Duration
	// Fixes maps common misrecognitions to their intended text.
	Fixes map[string]string
}

// DefaultWhisperConfig returns settings for a local whisper server.
func DefaultWhisperConfig() WhisperConfig {
	return WhisperConfig{
		URL:     "http://localhost:8080/inference",
		Timeout: 30 * time.Second,
	}
}

// Whisper is a client for a whisper.cpp-style HTTP server. It ships the
// recording as a WAV file and post-processes the transcript through the
// hallucination filter and phonetic fixes.
type Whisper struct {
	cfg    WhisperConfig
	client *http.Client
}

var _ Transcriber = (*Whisper)(nil)

// NewWhisper creates a whisper server client.
func NewWhisper(cfg WhisperConfig) *Whisper {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Whisper{
		cfg:    cfg,
		client: httpc.NewClient(cfg.Timeout),
	}
}

// silenceFloor is the normalized energy below which a recording is
// treated as nothing heard. Roughly amplitude 30 of 32767; speech sits
// orders of magnitude above it.
const silenceFloor = 1e-6

// Transcribe sends the samples to the whisper server and returns the
// cleaned transcript. Hallucinated output comes back as "". A recording
// that is essentially silent skips the server round trip entirely: the
// model would only hallucinate on it.
func (w *Whisper) Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error) {
	if len(samples) == 0 {
		return "", ErrEmptyRecording
	}
	if audioio.CalculateRMS(samples) < silenceFloor {
		return "", nil
	}

	wavData, err := encodeWAV(samples, sampleRate)
	if err != nil {
		return "", fmt.Errorf("transcribe: encode wav: %w", err)
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	part, err := mw.CreateFormFile("file", "command.wav")
	if err != nil {
		return "", fmt.Errorf("transcribe: build request: %w", err)
	}
	if _, err := part.Write(wavData); err != nil {
		return "", fmt.Errorf("transcribe: build request: %w", err)
	}
	mw.WriteField("response_format", "json")
	mw.WriteField("language", "pt")
	if w.cfg.InitialPrompt != "" {
		mw.WriteField("prompt", w.cfg.InitialPrompt)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("transcribe: build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, body)
	if err != nil {
		return "", fmt.Errorf("transcribe: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: whisper request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("transcribe: whisper returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("transcribe: decode response: %w", err)
	}

	text := strings.TrimSpace(result.Text)
	if IsHallucination(text) {
		log.Component("transcribe").Debug("transcript discarded as hallucination", "text", text)
		return "", nil
	}
	return ApplyFixes(text, w.cfg.Fixes), nil
}

// encodeWAV wraps mono PCM16 samples in a WAV container.
func encodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}

	buf := &seekBuffer{}
	enc := wav.NewEncoder(buf, sampleRate, 16, 1, 1)
	if err := enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           data,
	}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.data, nil
}

// seekBuffer is an in-memory io.WriteSeeker for the wav encoder, which
// rewinds to patch chunk sizes on Close.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.data) {
		grown := make([]byte, need)
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(b.pos) + offset
	case io.SeekEnd:
		next = int64(len(b.data)) + offset
	default:
		return 0, errors.New("transcribe: invalid whence")
	}
	if next < 0 {
		return 0, errors.New("transcribe: negative seek")
	}
	b.pos = int(next)
	return next, nil
}
