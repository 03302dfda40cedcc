// Package audioio provides audio capture for the assistant.
//
// Capture runs through the Source interface so the pipeline can be driven by
// a PortAudio microphone in production and a scripted mock in tests. Frames
// are fixed-size PCM16 chunks at whatever rate the hardware accepted; the
// decimation helpers bring them down to the rate the wake-word model expects.
package audioio

import (
	"context"
	"io"
)

// AudioChunk represents a chunk of PCM16 audio.
type AudioChunk struct {
	// Samples contains mono PCM16 samples.
	Samples []int16

	// SampleRate is the sample rate of this chunk.
	SampleRate int
}

// Duration returns the duration of this chunk in seconds.
func (c *AudioChunk) Duration() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Source captures audio from a microphone or other input device.
type Source interface {
	// Start begins audio capture.
	// After calling Start, chunks are available via Read or Stream.
	Start(ctx context.Context) error

	// Stop halts audio capture.
	// It is safe to call Stop multiple times.
	Stop() error

	// Read reads the next audio chunk, blocking if necessary.
	// Returns io.EOF when the source is stopped.
	Read(ctx context.Context) (AudioChunk, error)

	// Stream returns a channel that receives audio chunks.
	// The channel is closed when the source is stopped.
	Stream() <-chan AudioChunk

	// Drain discards any buffered chunks without stopping capture.
	Drain()

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name (e.g., "portaudio", "mock").
	Name() string

	// Close releases all resources.
	// After Close, the source cannot be restarted.
	io.Closer
}

// SourceStats contains statistics about an audio source.
type SourceStats struct {
	// ChunksRead is the total number of chunks produced.
	ChunksRead int64 `json:"chunks_read"`

	// Overruns is the number of dropped chunks (consumer too slow).
	Overruns int64 `json:"overruns"`

	// Running indicates if the source is currently capturing.
	Running bool `json:"running"`

	// Backend is the name of the audio backend.
	Backend string `json:"backend"`
}

// SourceWithStats extends Source with statistics.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}
