package inference

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Ollama talks to one OpenAI-compatible endpoint, normally an Ollama
// server's /v1 API.
type Ollama struct {
	target Target
	client *openai.Client
}

var _ Client = (*Ollama)(nil)

// Generation settings tuned against the persona models: factual but not
// flat, and hard stops so the model cannot drift into its own headers.
var (
	generationTemperature float32 = 0.6
	generationTopP        float32 = 0.9
	generationStops               = []string{"Utilizador:", "###"}
)

// NewOllama creates a client for one failover target.
func NewOllama(target Target) *Ollama {
	cfg := openai.DefaultConfig("ollama")
	cfg.BaseURL = strings.TrimRight(target.Host, "/") + "/v1"

	return &Ollama{
		target: target,
		client: openai.NewClientWithConfig(cfg),
	}
}

func (o *Ollama) Name() string {
	return fmt.Sprintf("%s (%s)", o.target.Host, o.target.Model)
}

// Generate runs one chat completion against the endpoint.
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.target.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: generationTemperature,
		TopP:        generationTopP,
		Stop:        generationStops,
	})
	if err != nil {
		return "", fmt.Errorf("inference: %s: %w", o.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("inference: %s: no choices returned", o.Name())
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
