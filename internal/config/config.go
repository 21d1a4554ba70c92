package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all environment backed configuration for scribe-server.
type Config struct {
	// HTTP Server
	HTTPPort    int `env:"HTTP_PORT" envDefault:"8080"`
	MetricsPort int `env:"METRICS_PORT" envDefault:"9091"`

	// Document store
	DocstoreToken       string        `env:"DOCSTORE_TOKEN,notEmpty"`
	DocstoreBaseURL     string        `env:"DOCSTORE_BASE_URL" envDefault:"https://api.notion.com/v1"`
	DocstoreVersion     string        `env:"DOCSTORE_VERSION" envDefault:"2022-06-28"`
	DocstoreRootPageID  string        `env:"DOCSTORE_ROOT_PAGE_ID"`
	DocstoreConfigDBID  string        `env:"DOCSTORE_CONFIG_DB_ID"`
	DocstoreTimeout     time.Duration `env:"DOCSTORE_TIMEOUT" envDefault:"30s"`
	DocstoreBulkTimeout time.Duration `env:"DOCSTORE_BULK_TIMEOUT" envDefault:"60s"`
	DocstoreMaxRetries  int           `env:"DOCSTORE_MAX_RETRIES" envDefault:"3"`

	// LLM provider credentials, keyed by canonical provider id
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`

	// Model selection
	DefaultTextModel       string `env:"DEFAULT_TEXT_MODEL" envDefault:"gemini/gemini-2.0-flash-exp"`
	DefaultMultimodalModel string `env:"DEFAULT_MULTIMODAL_MODEL" envDefault:"gemini/gemini-2.0-flash-exp"`
	ModelCatalogFile       string `env:"MODEL_CATALOG_FILE"`
	StrictVision           bool   `env:"STRICT_VISION" envDefault:"false"`

	// LLM invocation
	LLMTimeout    time.Duration `env:"LLM_TIMEOUT" envDefault:"30s"`
	LLMMaxRetries int           `env:"LLM_MAX_RETRIES" envDefault:"1"`

	// Rate limiting (advisory, per process)
	RateLimitEnabled       bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitGlobalPerHour int  `env:"RATE_LIMIT_GLOBAL_PER_HOUR" envDefault:"1000"`

	// Observability / Logging
	OTLPEndpoint     string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPHeaders      string `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	ServiceName      string `env:"SERVICE_NAME" envDefault:"scribe-server"`
	ServiceNamespace string `env:"SERVICE_NAMESPACE" envDefault:"scribe"`
	Environment      string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load parses environment variables into Config and performs minimal validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if _, err := url.ParseRequestURI(cfg.DocstoreBaseURL); err != nil {
		return nil, fmt.Errorf("invalid DOCSTORE_BASE_URL: %w", err)
	}
	cfg.DocstoreBaseURL = strings.TrimRight(cfg.DocstoreBaseURL, "/")

	if cfg.DocstoreMaxRetries < 1 {
		cfg.DocstoreMaxRetries = 1
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	return cfg, nil
}

// APIKeyForProvider returns the configured credential for a canonical provider
// id, or empty when the provider has no key. Display names are never valid
// lookup keys here.
func (c *Config) APIKeyForProvider(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return c.OpenAIAPIKey
	case "gemini", "google":
		return c.GeminiAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	default:
		return ""
	}
}

// IsProviderAvailable reports whether a canonical provider id has credentials.
func (c *Config) IsProviderAvailable(provider string) bool {
	return c.APIKeyForProvider(provider) != ""
}

var Version = "dev"

func IsDev() bool {
	return strings.HasPrefix(Version, "dev")
}
