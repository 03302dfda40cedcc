// Package transcribe turns captured PCM audio into Portuguese text.
//
// The concrete backend is a local whisper server; everything downstream
// depends only on the Transcriber interface so tests can script transcripts.
package transcribe

import "context"

// Transcriber converts a PCM16 mono recording into text.
type Transcriber interface {
	// Transcribe returns the recognized text for the given samples.
	// An empty string with nil error means nothing usable was said.
	Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error)
}

// MockTranscriber returns scripted transcripts in order, repeating the
// last one. Test use only.
type MockTranscriber struct {
	Transcripts []string
	Err         error

	calls int
}

var _ Transcriber = (*MockTranscriber)(nil)

func (m *MockTranscriber) Transcribe(_ context.Context, _ []int16, _ int) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Transcripts) == 0 {
		return "", nil
	}
	i := m.calls
	if i >= len(m.Transcripts) {
		i = len(m.Transcripts) - 1
	}
	m.calls++
	return m.Transcripts[i], nil
}

// Calls reports how many transcriptions were requested.
func (m *MockTranscriber) Calls() int {
	return m.calls
}
