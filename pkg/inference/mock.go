package inference

import (
	"context"
	"sync"
)

// MockClient returns scripted answers in order, repeating the last one.
// Test use only.
type MockClient struct {
	Answers []string
	Err     error

	mu      sync.Mutex
	prompts []string
}

var _ Client = (*MockClient)(nil)

func (m *MockClient) Name() string { return "mock" }

func (m *MockClient) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Answers) == 0 {
		return "", nil
	}
	i := len(m.prompts) - 1
	if i >= len(m.Answers) {
		i = len(m.Answers) - 1
	}
	return m.Answers[i], nil
}

// Prompts reports every prompt received.
func (m *MockClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Calls reports how many generations were requested.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}
