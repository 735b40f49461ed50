package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/proposal-eval/internal/evalerr"
)

// Provider names accepted by provider.name.
const (
	ProviderAnthropic  = "anthropic"
	ProviderGemini     = "gemini"
	ProviderPerplexity = "perplexity"
)

// Store drivers accepted by store.driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Provider   ProviderConfig   `yaml:"provider" mapstructure:"provider"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ProviderConfig selects the text-generation provider used for narrative
// enrichment. It is read once at startup.
type ProviderConfig struct {
	Name              string  `yaml:"name" mapstructure:"name"`
	Temperature       float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens         int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerMinute int     `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// GeminiConfig holds Google Gemini API settings.
type GeminiConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// ExtractionConfig configures best-effort proposal document text extraction.
type ExtractionConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MistralKey    string `yaml:"mistral_key" mapstructure:"mistral_key"`
	MistralModel  string `yaml:"mistral_model" mapstructure:"mistral_model"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ScoringConfig tunes batch-level reporting. Scores themselves are fixed.
type ScoringConfig struct {
	LargeScaleBudget float64 `yaml:"large_scale_budget" mapstructure:"large_scale_budget"`
}

// PricingConfig holds token pricing for the models a provider may use.
type PricingConfig struct {
	Models []ModelPricing `yaml:"models" mapstructure:"models"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
// The cache multipliers apply to the input rate.
type ModelPricing struct {
	Model         string  `yaml:"model" mapstructure:"model"`
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// RetryConfig controls caller-side retries of failed evaluation runs.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROPEVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", DriverPostgres)
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("provider.name", ProviderAnthropic)
	v.SetDefault("provider.temperature", 0.2)
	v.SetDefault("provider.max_tokens", 8192)
	v.SetDefault("provider.timeout_secs", 120)
	v.SetDefault("provider.requests_per_minute", 30)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("gemini.key", "")
	v.SetDefault("gemini.model", "gemini-2.5-pro")
	v.SetDefault("perplexity.key", "")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("extraction.provider", "none")
	v.SetDefault("extraction.pdftotext_path", "pdftotext")
	v.SetDefault("extraction.mistral_key", "")
	v.SetDefault("extraction.mistral_model", "mistral-ocr-latest")
	v.SetDefault("extraction.timeout_secs", 30)
	v.SetDefault("scoring.large_scale_budget", 5_000_000)
	v.SetDefault("pricing.models", []map[string]any{
		{"model": "claude-sonnet-4-5-20250929", "input": 3.00, "output": 15.00, "cache_write_mul": 1.25, "cache_read_mul": 0.1},
		{"model": "claude-haiku-4-5-20251001", "input": 0.80, "output": 4.00, "cache_write_mul": 1.25, "cache_read_mul": 0.1},
		{"model": "gemini-2.5-pro", "input": 1.25, "output": 10.00},
		{"model": "sonar-pro", "input": 3.00, "output": 15.00},
	})
	v.SetDefault("retry.max_attempts", 1)
	v.SetDefault("retry.initial_backoff_ms", 1000)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is one of "evaluate",
// "serve" or "migrate". A missing provider credential is reported as a
// provider configuration error.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case DriverPostgres, DriverSQLite:
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	case DriverMemory:
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}

	if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		problems = append(problems, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}

	if mode == "evaluate" || mode == "serve" {
		if err := c.ValidateProvider(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateProvider checks that the selected provider is known and has a
// credential.
func (c *Config) ValidateProvider() error {
	var key string
	switch c.Provider.Name {
	case ProviderAnthropic:
		key = c.Anthropic.Key
	case ProviderGemini:
		key = c.Gemini.Key
	case ProviderPerplexity:
		key = c.Perplexity.Key
	default:
		return evalerr.New(evalerr.KindProviderConfiguration, "unknown provider %q", c.Provider.Name)
	}
	if strings.TrimSpace(key) == "" {
		return evalerr.New(evalerr.KindProviderConfiguration, "%s.key is required", c.Provider.Name)
	}
	if c.Provider.TimeoutSecs <= 0 {
		return evalerr.New(evalerr.KindProviderConfiguration, "provider.timeout_secs must be positive")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
