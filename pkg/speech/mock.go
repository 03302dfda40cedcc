package speech

import (
	"context"
	"os"
	"sync"
)

// MockSynthesizer writes the text itself to the output file. Test use only.
type MockSynthesizer struct {
	Err error

	mu    sync.Mutex
	texts []string
}

var _ Synthesizer = (*MockSynthesizer)(nil)

func (m *MockSynthesizer) Synthesize(_ context.Context, text, outPath string) error {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	return os.WriteFile(outPath, []byte(text), 0o644)
}

// Texts reports every synthesized text.
func (m *MockSynthesizer) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// MockPlayer records plays. When Block is set, Play waits for ctx
// cancellation, imitating long playback. Test use only.
type MockPlayer struct {
	Block bool

	mu     sync.Mutex
	played []string
}

var _ Player = (*MockPlayer)(nil)

func (m *MockPlayer) Play(ctx context.Context, path string) error {
	m.mu.Lock()
	m.played = append(m.played, path)
	block := m.Block
	m.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

// SetBlock changes blocking behavior mid-test.
func (m *MockPlayer) SetBlock(v bool) {
	m.mu.Lock()
	m.Block = v
	m.mu.Unlock()
}

// Played reports every played path.
func (m *MockPlayer) Played() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.played...)
}
