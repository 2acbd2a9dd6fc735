// Package config loads the immutable runtime configuration from defaults,
// an optional config file, a .env file and NUTRIBOT_* environment variables.
package config

import (
	"time"

	"github.com/darrellrafa/Nutribot/internal/observability"
)

const (
	DefaultServerHost          = "0.0.0.0"
	DefaultServerPort          = 5000
	DefaultCORSOrigin          = "http://localhost:3000"
	DefaultRateLimitPerMinute  = 60
	DefaultRateLimitBurst      = 10
	DefaultShutdownTimeout     = 10 * time.Second
	DefaultLLMProvider         = "ollama"
	DefaultLLMBaseURL          = "http://localhost:11434"
	DefaultChatModel           = "llama3.2:3b"
	DefaultSummarizationModel  = "qwen2.5:7b-instruct-q5_K_M"
	DefaultLLMTimeout          = 120 * time.Second
	DefaultLLMMaxRetries       = 2
	DefaultPlanReplyThreshold  = 500
	DefaultEmbeddingModel      = "nomic-embed-text"
	DefaultIndexPerCategory    = 200
	DefaultFoodDBPath          = "dataset/nutribot_foods.db"
	DefaultFoodCacheSize       = 2048
	DefaultStorageDriver       = "sqlite"
	DefaultStorageDSN          = "nutribot.db"
	DefaultTokenTTL            = 7 * 24 * time.Hour
	DefaultOTLPEndpoint        = "localhost:4318"
	DefaultServiceName         = "nutribot"
	DefaultSessionIDStrategy   = "ksuid"
	DevelopmentJWTSecret       = "nutribot-development-secret"
	EnvironmentDevelopment     = "development"
	EnvironmentProduction      = "production"
	envPrefix                  = "NUTRIBOT"
	defaultConfigName          = "nutribot"
	defaultEnvironmentFileName = ".env"
)

// RuntimeConfig is loaded once at startup and passed by value into
// constructors.
type RuntimeConfig struct {
	Environment string                      `mapstructure:"environment"`
	Server      ServerConfig                `mapstructure:"server"`
	LLM         LLMConfig                   `mapstructure:"llm"`
	RAG         RAGConfig                   `mapstructure:"rag"`
	Storage     StorageConfig               `mapstructure:"storage"`
	Auth        AuthConfig                  `mapstructure:"auth"`
	Log         LogConfig                   `mapstructure:"log"`
	Tracing     observability.TracingConfig `mapstructure:"tracing"`
	Metrics     MetricsConfig               `mapstructure:"metrics"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	CORSOrigins        []string      `mapstructure:"cors_origins"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute"`
	RateLimitBurst     int           `mapstructure:"rate_limit_burst"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	SessionIDStrategy  string        `mapstructure:"session_id_strategy"`
}

// LLMConfig selects the model backend.
type LLMConfig struct {
	Provider           string        `mapstructure:"provider"`
	BaseURL            string        `mapstructure:"base_url"`
	APIKey             string        `mapstructure:"api_key"`
	DefaultModel       string        `mapstructure:"default_model"`
	SummarizationModel string        `mapstructure:"summarization_model"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
}

// RAGConfig tunes retrieval and the secondary stage.
type RAGConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	PlanReplyThreshold int    `mapstructure:"plan_reply_threshold"`
	SemanticSearch     bool   `mapstructure:"semantic_search"`
	EmbeddingModel     string `mapstructure:"embedding_model"`
	IndexPath          string `mapstructure:"index_path"`
	IndexPerCategory   int    `mapstructure:"index_per_category"`
}

// StorageConfig locates the food reference dataset and the chat store.
type StorageConfig struct {
	FoodDBPath    string `mapstructure:"food_db_path"`
	FoodCacheSize int    `mapstructure:"food_cache_size"`
	Driver        string `mapstructure:"driver"`
	DSN           string `mapstructure:"dsn"`
}

// AuthConfig configures access tokens.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// LogConfig mirrors observability.LogConfig for file and env binding.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Observability converts to the logger configuration.
func (c LogConfig) Observability() observability.LogConfig {
	return observability.LogConfig{Level: c.Level, Format: c.Format}
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Address returns host:port for the HTTP listener.
func (c ServerConfig) Address() string {
	return joinHostPort(c.Host, c.Port)
}

// IsProduction reports whether the production environment is selected.
func (c RuntimeConfig) IsProduction() bool {
	return c.Environment == EnvironmentProduction
}
