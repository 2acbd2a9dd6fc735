// Package http exposes the assistant, the food reference data and the
// account and history store over a JSON API.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/darrellrafa/Nutribot/internal/auth"
	"github.com/darrellrafa/Nutribot/internal/chatstore"
	"github.com/darrellrafa/Nutribot/internal/domain"
	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
	"github.com/darrellrafa/Nutribot/internal/foodstore"
	"github.com/darrellrafa/Nutribot/internal/llm"
	"github.com/darrellrafa/Nutribot/internal/logging"
)

const (
	serviceName    = "NutriBot Backend"
	serviceVersion = "1.0.0"
)

// Assistant is the conversational core the API serves.
type Assistant interface {
	GenerateReply(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error)
	GenerateReplyStream(ctx context.Context, req domain.GenerationRequest, onDelta func(string)) (domain.GenerationResult, error)
	ComputeMealPlan(ctx context.Context, profile domain.UserProfile) (string, error)
}

// Options carries HTTP-level settings.
type Options struct {
	Address         string
	CORSOrigins     []string
	RateLimit       RateLimitConfig
	ShutdownTimeout time.Duration
	DefaultModel    string
	Debug           bool
}

// Deps are the collaborators a Server needs. Semantic, Models, Registry and
// Metrics are optional.
type Deps struct {
	Assistant Assistant
	Foods     foodstore.Store
	Semantic  *foodstore.SemanticIndex
	Models    llm.ModelLister
	Chats     chatstore.Store
	Tokens    *auth.TokenManager
	Metrics   *Metrics
	Registry  prometheus.Gatherer
	Logger    logging.Logger
}

// Server owns the gin engine and the listener.
type Server struct {
	opts       Options
	assistant  Assistant
	foods      foodstore.Store
	semantic   *foodstore.SemanticIndex
	models     llm.ModelLister
	chats      chatstore.Store
	tokens     *auth.TokenManager
	metrics    *Metrics
	registry   prometheus.Gatherer
	logger     logging.Logger
	upgrader   websocket.Upgrader
	engine     *gin.Engine
	httpServer *http.Server
	startedAt  time.Time
}

// New wires the router. It does not start listening.
func New(opts Options, deps Deps) (*Server, error) {
	if deps.Assistant == nil {
		return nil, errors.New("http server: assistant is required")
	}
	if deps.Foods == nil {
		return nil, errors.New("http server: food store is required")
	}
	if deps.Chats == nil || deps.Tokens == nil {
		return nil, errors.New("http server: chat store and token manager are required")
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		opts:      opts,
		assistant: deps.Assistant,
		foods:     deps.Foods,
		semantic:  deps.Semantic,
		models:    deps.Models,
		chats:     deps.Chats,
		tokens:    deps.Tokens,
		metrics:   deps.Metrics,
		registry:  deps.Registry,
		logger:    logging.OrNop(deps.Logger),
		startedAt: time.Now(),
	}
	if logging.IsNil(deps.Logger) {
		s.logger = logging.NewComponentLogger("http")
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.engine = s.routes()
	s.httpServer = &http.Server{
		Addr:              opts.Address,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on %s", s.opts.Address)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) routes() *gin.Engine {
	if !s.opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(recoveryMiddleware(s.logger))
	engine.Use(requestIDMiddleware())
	engine.Use(s.metrics.middleware())
	engine.Use(accessLogMiddleware(s.logger))
	engine.Use(corsMiddleware(s.opts.CORSOrigins))

	engine.GET("/", s.handleRoot)
	engine.GET("/health", s.handleHealth)
	if s.registry != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}

	api := engine.Group("/api")
	api.Use(s.authenticate())
	api.Use(rateLimitMiddleware(s.opts.RateLimit))
	{
		api.POST("/chat", s.handleChat)
		api.GET("/chat/stream", s.handleChatStream)
		api.POST("/meal-plan", s.handleMealPlan)
		api.POST("/nutrition", s.handleNutrition)

		api.POST("/search-foods", s.handleSearchFoods)
		api.POST("/search-foods/semantic", s.handleSemanticSearch)
		api.GET("/food-details/:fdc_id", s.handleFoodDetails)
		api.POST("/suggest-alternatives", s.handleSuggestAlternatives)
		api.GET("/categories", s.handleCategories)
		api.GET("/models", s.handleModels)
	}

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", s.handleRegister)
		authGroup.POST("/login", s.handleLogin)
		authGroup.GET("/me", requireUser(), s.handleMe)
		authGroup.PUT("/profile", requireUser(), s.handleUpdateProfile)
	}

	history := api.Group("/chat", requireUser())
	{
		history.GET("/history", s.handleGetHistory)
		history.POST("/history", s.handleSaveMessage)
		history.POST("/history/batch", s.handleSaveBatch)
		history.GET("/history/sessions", s.handleSessions)
		history.DELETE("/history/session/:session_id", s.handleDeleteSession)
		history.DELETE("/history/clear", s.handleClearHistory)
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "Endpoint not found", Kind: apperrors.KindNotFound})
	})
	return engine
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.opts.CORSOrigins) == 0 {
		return true
	}
	for _, allowed := range s.opts.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "NutriBot API is running! 🥗",
		"endpoints": gin.H{
			"health":    "/health",
			"chat":      "/api/chat",
			"meal_plan": "/api/meal-plan",
			"nutrition": "/api/nutrition",
		},
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
	})
}
