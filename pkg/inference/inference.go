// Package inference generates model answers through an ordered list of
// OpenAI-compatible endpoints, typically a beefy host on the LAN with a
// local Ollama as the safety net.
package inference

import "context"

// DefaultFallback is spoken when every endpoint fails. It is never cached.
const DefaultFallback = "As minhas sombras de processamento estão inalcançáveis de momento."

// Client generates a completion for an assembled prompt.
type Client interface {
	// Generate returns the model's answer. An empty answer with nil
	// error means the model produced nothing usable.
	Generate(ctx context.Context, prompt string) (string, error)

	// Name identifies the endpoint in logs.
	Name() string
}

// Target is one (host, model) endpoint in failover order.
type Target struct {
	Host  string
	Model string
}
