package llm

import (
	"context"

	"github.com/darrellrafa/Nutribot/internal/domain"
	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
	"github.com/darrellrafa/Nutribot/internal/logging"
)

// retryClient retries transient failures behind a circuit breaker. Streams
// are never retried because deltas may already have reached the caller.
type retryClient struct {
	inner   Client
	config  apperrors.RetryConfig
	breaker *apperrors.CircuitBreaker
	logger  logging.Logger
}

// WithRetry wraps client with retries and a circuit breaker.
func WithRetry(client Client, config apperrors.RetryConfig, breaker *apperrors.CircuitBreaker) StreamingClient {
	return &retryClient{
		inner:   client,
		config:  config,
		breaker: breaker,
		logger:  logging.NewComponentLogger("llm-retry"),
	}
}

func (c *retryClient) Generate(ctx context.Context, prompt, systemPrompt string, opts Options) (string, error) {
	return apperrors.RetryWithResult(ctx, c.config, func(ctx context.Context) (string, error) {
		return apperrors.ExecuteFunc(c.breaker, ctx, func(ctx context.Context) (string, error) {
			return c.inner.Generate(ctx, prompt, systemPrompt, opts)
		})
	}, c.logger)
}

func (c *retryClient) Chat(ctx context.Context, turns []domain.ConversationTurn, opts Options) (string, error) {
	return apperrors.RetryWithResult(ctx, c.config, func(ctx context.Context) (string, error) {
		return apperrors.ExecuteFunc(c.breaker, ctx, func(ctx context.Context) (string, error) {
			return c.inner.Chat(ctx, turns, opts)
		})
	}, c.logger)
}

func (c *retryClient) ChatStream(ctx context.Context, turns []domain.ConversationTurn, opts Options, onDelta func(string)) (string, error) {
	return apperrors.ExecuteFunc(c.breaker, ctx, func(ctx context.Context) (string, error) {
		return ChatStream(ctx, c.inner, turns, opts, onDelta)
	})
}

func (c *retryClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	lister, ok := c.inner.(ModelLister)
	if !ok {
		return nil, nil
	}
	return lister.ListModels(ctx)
}
