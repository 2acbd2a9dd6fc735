package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
)

type loadOptions struct {
	configFile string
	envFiles   []string
	skipDotenv bool
}

// Option customises Load.
type Option func(*loadOptions)

// WithConfigFile reads an explicit config file instead of searching for
// nutribot.{yaml,json,toml} in the working directory and $HOME/.nutribot.
func WithConfigFile(path string) Option {
	return func(o *loadOptions) {
		o.configFile = strings.TrimSpace(path)
	}
}

// WithEnvFiles replaces the default .env file list.
func WithEnvFiles(paths ...string) Option {
	return func(o *loadOptions) {
		o.envFiles = paths
	}
}

// WithoutDotenv skips .env loading.
func WithoutDotenv() Option {
	return func(o *loadOptions) {
		o.skipDotenv = true
	}
}

// Load resolves configuration with precedence env > file > defaults.
// Variables from .env never override ones already set in the process.
func Load(opts ...Option) (RuntimeConfig, error) {
	options := loadOptions{envFiles: []string{defaultEnvironmentFileName}}
	for _, opt := range opts {
		opt(&options)
	}

	if !options.skipDotenv {
		if err := loadDotenv(options.envFiles); err != nil {
			return RuntimeConfig{}, err
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if options.configFile != "" {
		v.SetConfigFile(options.configFile)
	} else {
		v.SetConfigName(defaultConfigName)
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.nutribot")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if options.configFile != "" || !errors.As(err, &notFound) {
			return RuntimeConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg RuntimeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return RuntimeConfig{}, fmt.Errorf("decode config: %w", err)
	}
	normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		return RuntimeConfig{}, err
	}
	return cfg, nil
}

// Default returns the configuration with no file or environment applied.
func Default() RuntimeConfig {
	v := viper.New()
	setDefaults(v)
	var cfg RuntimeConfig
	// Defaults are static and always decode.
	_ = v.Unmarshal(&cfg)
	normalize(&cfg)
	return cfg
}

func loadDotenv(paths []string) error {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", EnvironmentDevelopment)

	v.SetDefault("server.host", DefaultServerHost)
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.cors_origins", []string{DefaultCORSOrigin})
	v.SetDefault("server.rate_limit_per_minute", DefaultRateLimitPerMinute)
	v.SetDefault("server.rate_limit_burst", DefaultRateLimitBurst)
	v.SetDefault("server.shutdown_timeout", DefaultShutdownTimeout)
	v.SetDefault("server.session_id_strategy", DefaultSessionIDStrategy)

	v.SetDefault("llm.provider", DefaultLLMProvider)
	v.SetDefault("llm.base_url", DefaultLLMBaseURL)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.default_model", DefaultChatModel)
	v.SetDefault("llm.summarization_model", DefaultSummarizationModel)
	v.SetDefault("llm.timeout", DefaultLLMTimeout)
	v.SetDefault("llm.max_retries", DefaultLLMMaxRetries)

	v.SetDefault("rag.enabled", true)
	v.SetDefault("rag.plan_reply_threshold", DefaultPlanReplyThreshold)
	v.SetDefault("rag.semantic_search", false)
	v.SetDefault("rag.embedding_model", DefaultEmbeddingModel)
	v.SetDefault("rag.index_path", "")
	v.SetDefault("rag.index_per_category", DefaultIndexPerCategory)

	v.SetDefault("storage.food_db_path", DefaultFoodDBPath)
	v.SetDefault("storage.food_cache_size", DefaultFoodCacheSize)
	v.SetDefault("storage.driver", DefaultStorageDriver)
	v.SetDefault("storage.dsn", DefaultStorageDSN)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", DefaultTokenTTL)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.otlp_endpoint", DefaultOTLPEndpoint)
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.service_name", DefaultServiceName)
	v.SetDefault("tracing.service_version", "")

	v.SetDefault("metrics.enabled", true)
}

func normalize(cfg *RuntimeConfig) {
	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	cfg.Server.Host = strings.TrimSpace(cfg.Server.Host)
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	cfg.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.LLM.BaseURL), "/")
	cfg.LLM.APIKey = strings.TrimSpace(cfg.LLM.APIKey)
	cfg.LLM.DefaultModel = strings.TrimSpace(cfg.LLM.DefaultModel)
	cfg.LLM.SummarizationModel = strings.TrimSpace(cfg.LLM.SummarizationModel)
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	cfg.Auth.JWTSecret = strings.TrimSpace(cfg.Auth.JWTSecret)

	if cfg.LLM.SummarizationModel == "" {
		cfg.LLM.SummarizationModel = cfg.LLM.DefaultModel
	}
	if cfg.LLM.MaxRetries < 0 {
		cfg.LLM.MaxRetries = 0
	}

	origins := make([]string, 0, len(cfg.Server.CORSOrigins))
	for _, origin := range cfg.Server.CORSOrigins {
		for _, part := range strings.Split(origin, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}
	cfg.Server.CORSOrigins = origins

	if cfg.Auth.JWTSecret == "" && cfg.Environment != EnvironmentProduction {
		cfg.Auth.JWTSecret = DevelopmentJWTSecret
	}
}

// Validate rejects configurations the server cannot start with.
func (c RuntimeConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return apperrors.Validationf("server.port %d out of range", c.Server.Port)
	}
	switch c.LLM.Provider {
	case "ollama", "openai":
	default:
		return apperrors.Validationf("llm.provider %q is not supported (ollama, openai)", c.LLM.Provider)
	}
	if c.LLM.DefaultModel == "" {
		return apperrors.Validationf("llm.default_model is required")
	}
	if c.LLM.Timeout <= 0 {
		return apperrors.Validationf("llm.timeout must be positive")
	}
	if c.RAG.PlanReplyThreshold <= 0 {
		return apperrors.Validationf("rag.plan_reply_threshold must be positive")
	}
	if c.Auth.TokenTTL <= 0 {
		return apperrors.Validationf("auth.token_ttl must be positive")
	}
	if c.IsProduction() && (c.Auth.JWTSecret == "" || c.Auth.JWTSecret == DevelopmentJWTSecret) {
		return apperrors.Validationf("auth.jwt_secret must be set in production")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return apperrors.Validationf("tracing.sample_rate must be within [0, 1]")
	}
	return nil
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
