// Package llm is the language model gateway: one blocking interface over
// interchangeable text generation backends.
package llm

import (
	"context"
	"strings"

	"github.com/darrellrafa/Nutribot/internal/domain"
	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
)

// Options are the per-call sampling parameters. Model is forwarded verbatim.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Validate enforces temperature in [0,2], a positive token budget and a model id.
func (o Options) Validate() error {
	switch {
	case strings.TrimSpace(o.Model) == "":
		return apperrors.Validationf("model is required")
	case o.Temperature < 0 || o.Temperature > 2:
		return apperrors.Validationf("temperature %.2f outside [0,2]", o.Temperature)
	case o.MaxTokens <= 0:
		return apperrors.Validationf("max tokens must be positive")
	}
	return nil
}

// Client generates text. Both calls block until the backend answers, the
// context ends or the transport times out. Failures match
// errors.ErrModelUnavailable or errors.ErrGenerationFailed.
type Client interface {
	Generate(ctx context.Context, prompt, systemPrompt string, opts Options) (string, error)
	Chat(ctx context.Context, turns []domain.ConversationTurn, opts Options) (string, error)
}

// StreamingClient can deliver content incrementally. The returned string is
// identical to what Chat would return.
type StreamingClient interface {
	Client
	ChatStream(ctx context.Context, turns []domain.ConversationTurn, opts Options, onDelta func(string)) (string, error)
}

// ModelInfo is the normalized view of an installed model.
type ModelInfo struct {
	Name          string `json:"name"`
	Family        string `json:"family,omitempty"`
	ParameterSize string `json:"parameter_size,omitempty"`
	Quantization  string `json:"quantization,omitempty"`
	SizeBytes     int64  `json:"size_bytes,omitempty"`
}

// ModelLister enumerates models installed on a backend.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// ChatStream streams through client when it supports it and otherwise
// delivers the full reply as a single delta.
func ChatStream(ctx context.Context, client Client, turns []domain.ConversationTurn, opts Options, onDelta func(string)) (string, error) {
	if streaming, ok := client.(StreamingClient); ok {
		return streaming.ChatStream(ctx, turns, opts, onDelta)
	}
	reply, err := client.Chat(ctx, turns, opts)
	if err != nil {
		return "", err
	}
	if onDelta != nil && reply != "" {
		onDelta(reply)
	}
	return reply, nil
}

// generateTurns turns a prompt and optional system prompt into chat turns.
func generateTurns(prompt, systemPrompt string) []domain.ConversationTurn {
	turns := make([]domain.ConversationTurn, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		turns = append(turns, domain.ConversationTurn{Role: domain.RoleSystem, Content: systemPrompt})
	}
	return append(turns, domain.ConversationTurn{Role: domain.RoleUser, Content: prompt})
}
