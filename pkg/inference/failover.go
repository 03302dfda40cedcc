package inference

import (
	"context"
	"log/slog"
	"time"

	"github.com/mfalcao/phantasma/internal/log"
)

// DefaultTimeout bounds one endpoint attempt.
const DefaultTimeout = 2 * time.Minute

// Failover tries each client in order until one returns a non-empty
// answer.
type Failover struct {
	clients []Client
	timeout time.Duration
	logger  *slog.Logger
}

var _ Client = (*Failover)(nil)

// NewFailover creates a failover over the given clients.
// At least one client is required.
func NewFailover(timeout time.Duration, clients ...Client) (*Failover, error) {
	if len(clients) == 0 {
		return nil, ErrNoClients
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Failover{
		clients: clients,
		timeout: timeout,
		logger:  log.Component("inference"),
	}, nil
}

// NewFailoverFromTargets builds the standard Ollama failover chain.
func NewFailoverFromTargets(timeout time.Duration, targets ...Target) (*Failover, error) {
	clients := make([]Client, 0, len(targets))
	for _, t := range targets {
		if t.Host == "" {
			continue
		}
		clients = append(clients, NewOllama(t))
	}
	return NewFailover(timeout, clients...)
}

func (f *Failover) Name() string { return "failover" }

// Generate tries each endpoint in order. The first non-empty answer
// wins; an empty answer counts as a failure and the next endpoint is
// tried.
func (f *Failover) Generate(ctx context.Context, prompt string) (string, error) {
	var errs []error

	for i, c := range f.clients {
		attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
		answer, err := c.Generate(attemptCtx, prompt)
		cancel()

		if err == nil && answer != "" {
			if i > 0 {
				f.logger.Info("fallback endpoint succeeded", "endpoint", c.Name())
			}
			return answer, nil
		}

		if err == nil {
			err = ErrEmptyCompletion
		}
		errs = append(errs, err)
		f.logger.Warn("endpoint failed, trying next", "endpoint", c.Name(), "error", err)

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	return "", &FailoverError{Errors: errs}
}
