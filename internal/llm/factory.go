package llm

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
	"github.com/darrellrafa/Nutribot/internal/logging"
)

// Provider names accepted by New.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config selects and tunes a backend.
type Config struct {
	Provider   string
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	Breaker    apperrors.CircuitBreakerConfig
	Metrics    *Metrics
}

// Gateway is what the rest of the application depends on.
type Gateway interface {
	StreamingClient
	ModelLister
}

// New builds the configured backend wrapped with retries, a circuit breaker
// and metrics.
func New(cfg Config) (Gateway, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	var base Client
	switch provider {
	case "", ProviderOllama:
		provider = ProviderOllama
		base = newOllamaClient(cfg.BaseURL, cfg.Timeout)
	case ProviderOpenAI:
		base = newOpenAIClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout)
	default:
		return nil, apperrors.Validationf("unsupported llm provider %q", cfg.Provider)
	}

	retry := apperrors.DefaultRetryConfig()
	if cfg.MaxRetries >= 0 {
		retry.MaxAttempts = cfg.MaxRetries
	}
	breakerCfg := cfg.Breaker
	if breakerCfg.FailureThreshold <= 0 {
		breakerCfg = apperrors.DefaultCircuitBreakerConfig()
	}
	if breakerCfg.OnStateChange == nil {
		breakerCfg.OnStateChange = cfg.Metrics.circuitChanged(provider)
	}
	breaker := apperrors.NewCircuitBreaker(fmt.Sprintf("llm-%s", provider), breakerCfg, logging.NewComponentLogger("llm-breaker"))

	return &instrumentedClient{
		inner:    WithRetry(base, retry, breaker),
		provider: provider,
		metrics:  cfg.Metrics,
	}, nil
}
