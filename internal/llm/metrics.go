package llm

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/darrellrafa/Nutribot/internal/domain"
	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
)

// Metrics tracks model call volume, outcome and latency.
type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	deltas   *prometheus.CounterVec
	circuit  *prometheus.GaugeVec
}

// MustNewMetrics registers gateway collectors on reg, reusing collectors that
// are already registered.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nutribot",
		Subsystem: "llm",
		Name:      "requests_total",
		Help:      "Model calls by provider, operation and outcome.",
	}, []string{"provider", "operation", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nutribot",
		Subsystem: "llm",
		Name:      "request_duration_seconds",
		Help:      "Model call latency.",
		Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
	}, []string{"provider", "operation"})
	deltas := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nutribot",
		Subsystem: "llm",
		Name:      "stream_deltas_total",
		Help:      "Streamed content fragments delivered to callers.",
	}, []string{"provider"})
	circuit := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "nutribot",
		Subsystem: "llm",
		Name:      "circuit_state",
		Help:      "Circuit breaker position per provider: 0 closed, 1 open, 2 half-open.",
	}, []string{"provider"})

	return &Metrics{
		requests: registerCollector(reg, requests),
		latency:  registerCollector(reg, latency),
		deltas:   registerCollector(reg, deltas),
		circuit:  registerCollector(reg, circuit),
	}
}

func registerCollector[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) observe(provider, operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(provider, operation, outcomeLabel(err)).Inc()
	m.latency.WithLabelValues(provider, operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) delta(provider string) {
	if m == nil {
		return
	}
	m.deltas.WithLabelValues(provider).Inc()
}

// circuitChanged feeds breaker transitions into the circuit_state gauge.
func (m *Metrics) circuitChanged(provider string) func(string, apperrors.CircuitState, apperrors.CircuitState) {
	return func(_ string, _, to apperrors.CircuitState) {
		if m == nil {
			return
		}
		m.circuit.WithLabelValues(provider).Set(float64(to))
	}
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	return string(apperrors.KindOf(err))
}

type instrumentedClient struct {
	inner    Client
	provider string
	metrics  *Metrics
}

// WithMetrics records every call made through client.
func WithMetrics(client Client, provider string, metrics *Metrics) StreamingClient {
	return &instrumentedClient{inner: client, provider: provider, metrics: metrics}
}

func (c *instrumentedClient) Generate(ctx context.Context, prompt, systemPrompt string, opts Options) (string, error) {
	started := time.Now()
	out, err := c.inner.Generate(ctx, prompt, systemPrompt, opts)
	c.metrics.observe(c.provider, "generate", started, err)
	return out, err
}

func (c *instrumentedClient) Chat(ctx context.Context, turns []domain.ConversationTurn, opts Options) (string, error) {
	started := time.Now()
	out, err := c.inner.Chat(ctx, turns, opts)
	c.metrics.observe(c.provider, "chat", started, err)
	return out, err
}

func (c *instrumentedClient) ChatStream(ctx context.Context, turns []domain.ConversationTurn, opts Options, onDelta func(string)) (string, error) {
	started := time.Now()
	out, err := ChatStream(ctx, c.inner, turns, opts, func(delta string) {
		c.metrics.delta(c.provider)
		if onDelta != nil {
			onDelta(delta)
		}
	})
	c.metrics.observe(c.provider, "chat_stream", started, err)
	return out, err
}

func (c *instrumentedClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	lister, ok := c.inner.(ModelLister)
	if !ok {
		return nil, nil
	}
	started := time.Now()
	models, err := lister.ListModels(ctx)
	c.metrics.observe(c.provider, "list_models", started, err)
	return models, err
}
