package inference

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstClientWins(t *testing.T) {
	first := &MockClient{Answers: []string{"resposta primária"}}
	second := &MockClient{Answers: []string{"não devia chegar aqui"}}

	f, err := NewFailover(time.Second, first, second)
	require.NoError(t, err)

	answer, err := f.Generate(context.Background(), "pergunta")
	require.NoError(t, err)
	assert.Equal(t, "resposta primária", answer)
	assert.Equal(t, 1, first.Calls())
	assert.Zero(t, second.Calls())
}

func TestFallsOverOnError(t *testing.T) {
	first := &MockClient{Err: errors.New("connection refused")}
	second := &MockClient{Answers: []string{"resposta local"}}

	f, err := NewFailover(time.Second, first, second)
	require.NoError(t, err)

	answer, err := f.Generate(context.Background(), "pergunta")
	require.NoError(t, err)
	assert.Equal(t, "resposta local", answer)
	assert.Equal(t, 1, first.Calls())
	assert.Equal(t, 1, second.Calls())
}

func TestEmptyAnswerCountsAsFailure(t *testing.T) {
	first := &MockClient{Answers: []string{""}}
	second := &MockClient{Answers: []string{"resposta útil"}}

	f, err := NewFailover(time.Second, first, second)
	require.NoError(t, err)

	answer, err := f.Generate(context.Background(), "pergunta")
	require.NoError(t, err)
	assert.Equal(t, "resposta útil", answer)
}

func TestAllFailReturnsAggregate(t *testing.T) {
	first := &MockClient{Err: errors.New("down")}
	second := &MockClient{Err: errors.New("also down")}

	f, err := NewFailover(time.Second, first, second)
	require.NoError(t, err)

	_, err = f.Generate(context.Background(), "pergunta")
	require.Error(t, err)

	var fe *FailoverError
	require.ErrorAs(t, err, &fe)
	assert.Len(t, fe.Errors, 2)

	// Each endpoint was tried exactly once.
	assert.Equal(t, 1, first.Calls())
	assert.Equal(t, 1, second.Calls())
}

func TestNoClients(t *testing.T) {
	_, err := NewFailover(time.Second)
	assert.ErrorIs(t, err, ErrNoClients)

	_, err = NewFailoverFromTargets(time.Second, Target{Host: "", Model: "llama3"})
	assert.ErrorIs(t, err, ErrNoClients)
}

func TestFromTargetsSkipsEmptyHosts(t *testing.T) {
	f, err := NewFailoverFromTargets(time.Second,
		Target{Host: "", Model: "llama3"},
		Target{Host: "http://localhost:11434", Model: "llama3"},
	)
	require.NoError(t, err)
	assert.Len(t, f.clients, 1)
}

func TestCanceledContextStopsChain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	first := &MockClient{Err: errors.New("down")}
	second := &MockClient{Answers: []string{"nunca usado"}}

	f, err := NewFailover(time.Second, first, second)
	require.NoError(t, err)

	_, err = f.Generate(ctx, "pergunta")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, second.Calls())
}
