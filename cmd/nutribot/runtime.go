package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/darrellrafa/Nutribot/internal/async"
	"github.com/darrellrafa/Nutribot/internal/auth"
	"github.com/darrellrafa/Nutribot/internal/chatstore"
	"github.com/darrellrafa/Nutribot/internal/config"
	"github.com/darrellrafa/Nutribot/internal/foodstore"
	"github.com/darrellrafa/Nutribot/internal/llm"
	"github.com/darrellrafa/Nutribot/internal/logging"
	"github.com/darrellrafa/Nutribot/internal/observability"
	"github.com/darrellrafa/Nutribot/internal/rag"
	"github.com/darrellrafa/Nutribot/internal/utils/id"
)

const modelCheckTimeout = 5 * time.Second

// runtime holds the long-lived collaborators of the serve command.
type runtime struct {
	cfg       config.RuntimeConfig
	logger    logging.Logger
	registry  *prometheus.Registry
	tracer    *observability.TracerProvider
	gateway   llm.Gateway
	foods     foodstore.Store
	semantic  *foodstore.SemanticIndex
	assistant *rag.Orchestrator
	chats     chatstore.Store
	tokens    *auth.TokenManager
	closers   []io.Closer

	// Background tasks run on bgCtx and are stopped before closers run.
	bgCtx      context.Context
	stopBg     context.CancelFunc
	background sync.WaitGroup
}

// newRuntime wires every dependency from cfg. A missing food dataset is not
// fatal: replies are then generated without grounding.
func newRuntime(ctx context.Context, cfg config.RuntimeConfig) (*runtime, error) {
	rt := &runtime{
		cfg:      cfg,
		logger:   logging.NewComponentLogger("main"),
		registry: prometheus.NewRegistry(),
	}
	rt.bgCtx, rt.stopBg = context.WithCancel(context.WithoutCancel(ctx))
	rt.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	id.SetStrategy(id.ParseStrategy(cfg.Server.SessionIDStrategy))

	tracing := cfg.Tracing
	if tracing.ServiceName == "" {
		tracing.ServiceName = config.DefaultServiceName
	}
	tracer, err := observability.NewTracerProvider(tracing)
	if err != nil {
		rt.logger.Warn("tracing disabled: %v", err)
		tracer = observability.NoopTracerProvider()
	}
	rt.tracer = tracer

	gateway, err := llm.New(llm.Config{
		Provider:   cfg.LLM.Provider,
		BaseURL:    cfg.LLM.BaseURL,
		APIKey:     cfg.LLM.APIKey,
		Timeout:    cfg.LLM.Timeout,
		MaxRetries: cfg.LLM.MaxRetries,
		Metrics:    llm.MustNewMetrics(rt.registry),
	})
	if err != nil {
		return nil, fmt.Errorf("llm gateway: %w", err)
	}
	rt.gateway = gateway

	rt.foods = rt.openFoods(ctx)
	if cfg.RAG.SemanticSearch {
		rt.semantic = rt.openSemanticIndex()
	}

	opts := []rag.Option{
		rag.WithMetrics(rag.MustNewMetrics(rt.registry)),
		rag.WithTracer(rt.tracer),
		rag.WithLogger(logging.NewComponentLogger("rag")),
	}
	if rt.semantic != nil {
		opts = append(opts, rag.WithSemanticIndex(rt.semantic))
	}
	rt.assistant = rag.New(rag.Config{
		DefaultModel:       cfg.LLM.DefaultModel,
		SummarizationModel: cfg.LLM.SummarizationModel,
		RAGEnabled:         cfg.RAG.Enabled,
		PlanReplyThreshold: cfg.RAG.PlanReplyThreshold,
		CallTimeout:        cfg.LLM.Timeout,
	}, rt.gateway, rt.foods, opts...)

	chats, err := chatstore.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("chat store: %w", err)
	}
	rt.chats = chats
	rt.closers = append(rt.closers, chats)

	if cfg.Auth.JWTSecret == config.DevelopmentJWTSecret {
		rt.logger.Warn("auth.jwt_secret not set, using the development secret")
	}
	rt.tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	return rt, nil
}

func (rt *runtime) openFoods(ctx context.Context) foodstore.Store {
	store, err := foodstore.OpenSQLite(ctx, rt.cfg.Storage.FoodDBPath, foodstore.WithLogger(logging.NewComponentLogger("foodstore")))
	if err != nil {
		rt.logger.Warn("food database unavailable, replies will not be grounded: %v", err)
		return foodstore.Unavailable{Cause: err}
	}
	rt.closers = append(rt.closers, store)

	cached, err := foodstore.NewCachedStore(store, rt.cfg.Storage.FoodCacheSize)
	if err != nil {
		rt.logger.Warn("food cache disabled: %v", err)
		return store
	}
	return cached
}

// openSemanticIndex loads the persisted index. An in-memory index is filled
// in the background so startup is not blocked on embedding calls.
func (rt *runtime) openSemanticIndex() *foodstore.SemanticIndex {
	if _, unavailable := rt.foods.(foodstore.Unavailable); unavailable {
		return nil
	}
	idx, err := foodstore.NewSemanticIndex(
		foodstore.SemanticConfig{PersistPath: rt.cfg.RAG.IndexPath},
		rt.foods,
		foodstore.OllamaEmbeddingFunc(rt.cfg.RAG.EmbeddingModel, rt.cfg.LLM.BaseURL),
	)
	if err != nil {
		rt.logger.Warn("semantic search disabled: %v", err)
		return nil
	}
	if idx.Count() > 0 {
		rt.logger.Info("semantic index loaded with %d foods", idx.Count())
		return idx
	}
	if rt.cfg.RAG.IndexPath != "" {
		rt.logger.Warn("semantic index at %s is empty; run `nutribot index`", rt.cfg.RAG.IndexPath)
		return idx
	}
	rt.goBackground("semantic-index", func(ctx context.Context) {
		n, err := idx.IndexCategories(ctx, rt.cfg.RAG.IndexPerCategory)
		if err != nil {
			rt.logger.Warn("background semantic indexing stopped after %d foods: %v", n, err)
			return
		}
		rt.logger.Info("semantic index built with %d foods", n)
	})
	return idx
}

// goBackground runs fn on the runtime's background context. Close cancels
// that context and waits for fn to return.
func (rt *runtime) goBackground(name string, fn func(ctx context.Context)) {
	rt.background.Add(1)
	async.Go(rt.logger, name, func() {
		defer rt.background.Done()
		fn(rt.bgCtx)
	})
}

// checkModels warns about configured models the backend does not have.
func (rt *runtime) checkModels(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
	defer cancel()
	installed, err := rt.gateway.ListModels(ctx)
	if err != nil {
		rt.logger.Warn("could not list models at %s: %v", rt.cfg.LLM.BaseURL, err)
		return
	}
	for _, name := range []string{rt.cfg.LLM.DefaultModel, rt.cfg.LLM.SummarizationModel} {
		if _, ok := llm.ResolveModel(installed, name); !ok {
			rt.logger.Warn("model %s is not installed; available: %v", name, llm.ModelNames(installed))
		}
	}
}

// Close releases stores and flushes traces.
func (rt *runtime) Close(ctx context.Context) error {
	if rt.stopBg != nil {
		rt.stopBg()
	}
	rt.background.Wait()

	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if rt.tracer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := rt.tracer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
