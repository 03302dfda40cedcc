package audioio

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource is a scripted audio source for testing.
// It replays queued chunks, then silence.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	queued   []AudioChunk
	streamCh chan AudioChunk
	stopCh   chan struct{}

	interval time.Duration

	chunksRead atomic.Int64
	overruns   atomic.Int64
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithChunks queues chunks to replay once started.
func WithChunks(chunks ...AudioChunk) MockSourceOption {
	return func(m *MockSource) {
		m.queued = append(m.queued, chunks...)
	}
}

// WithInterval sets the delay between emitted chunks.
// Zero (the default) emits as fast as the consumer reads.
func WithInterval(d time.Duration) MockSourceOption {
	return func(m *MockSource) {
		m.interval = d
	}
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MockSource{
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enqueue adds a chunk to be replayed. Safe to call while running.
func (m *MockSource) Enqueue(chunk AudioChunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		select {
		case m.streamCh <- chunk:
			m.chunksRead.Add(1)
		default:
			m.overruns.Add(1)
		}
		return
	}
	m.queued = append(m.queued, chunk)
}

// Start begins replaying queued chunks.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.running {
		return nil
	}

	m.running = true
	m.streamCh = make(chan AudioChunk, 64)
	m.stopCh = make(chan struct{})

	queued := m.queued
	m.queued = nil
	out, stop := m.streamCh, m.stopCh

	go func() {
		defer close(out)
		for _, chunk := range queued {
			if m.interval > 0 {
				select {
				case <-ctx.Done():
					return
				case <-stop:
					return
				case <-time.After(m.interval):
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case out <- chunk:
				m.chunksRead.Add(1)
			}
		}
		// Queue exhausted; stay open until stopped.
		select {
		case <-ctx.Done():
		case <-stop:
		}
	}()

	return nil
}

// Stop halts replay.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil
	}
	m.running = false
	close(m.stopCh)
	return nil
}

// Read reads the next audio chunk.
func (m *MockSource) Read(ctx context.Context) (AudioChunk, error) {
	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-m.streamCh:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stream returns the audio chunk channel.
func (m *MockSource) Stream() <-chan AudioChunk {
	return m.streamCh
}

// Drain discards buffered chunks.
func (m *MockSource) Drain() {
	for {
		select {
		case <-m.streamCh:
		default:
			return
		}
	}
}

// Config returns the audio configuration.
func (m *MockSource) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return "mock"
}

// Close releases resources.
func (m *MockSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	return m.Stop()
}

// Stats returns source statistics.
func (m *MockSource) Stats() SourceStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	return SourceStats{
		ChunksRead: m.chunksRead.Load(),
		Overruns:   m.overruns.Load(),
		Running:    running,
		Backend:    "mock",
	}
}

var _ SourceWithStats = (*MockSource)(nil)
