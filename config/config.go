package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/upb/ai-gateway/services/ratelimit"
	"github.com/upb/ai-gateway/services/registry"
)

const envPrefix = "GATEWAY_"

// Config is the complete gateway configuration
type Config struct {
	Environment   string              `koanf:"environment"`
	Server        ServerConfig        `koanf:"server"`
	RateLimit     RateLimitConfig     `koanf:"rate_limit"`
	Cache         CacheConfig         `koanf:"cache"`
	Gateway       GatewayConfig       `koanf:"gateway"`
	Providers     map[string]Provider `koanf:"providers"`
	Embeddings    EmbeddingsConfig    `koanf:"embeddings"`
	Health        HealthConfig        `koanf:"health"`
	Backends      []BackendConfig     `koanf:"backends"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Address returns the HTTP listen address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RateLimitConfig holds the base admission limits
type RateLimitConfig struct {
	RequestsPerMinute int `koanf:"requests_per_minute"`
	RequestsPerHour   int `koanf:"requests_per_hour"`
	Burst             int `koanf:"burst"`
}

// LimiterConfig converts to the rate limiter's config type
func (c RateLimitConfig) LimiterConfig() ratelimit.Config {
	return ratelimit.Config{
		RequestsPerMinute: c.RequestsPerMinute,
		RequestsPerHour:   c.RequestsPerHour,
		Burst:             c.Burst,
	}
}

// CacheConfig holds semantic cache settings
type CacheConfig struct {
	Enabled   bool          `koanf:"enabled"`
	Threshold float32       `koanf:"threshold"`
	TTL       time.Duration `koanf:"ttl"`
}

// GatewayConfig holds pipeline-level settings
type GatewayConfig struct {
	MaxConcurrent      int           `koanf:"max_concurrent"`
	LoadSampleInterval time.Duration `koanf:"load_sample_interval"`
	CompletionTimeout  time.Duration `koanf:"completion_timeout"`
	FailoverEnabled    bool          `koanf:"failover_enabled"`
}

// Provider holds one upstream vendor endpoint
type Provider struct {
	APIKey     string        `koanf:"api_key"`
	BaseURL    string        `koanf:"base_url"`
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries int           `koanf:"max_retries"`
}

// EmbeddingsConfig selects how cache embeddings are computed. Kind "hashing"
// needs no network; kind "http" uses an OpenAI-compatible endpoint.
type EmbeddingsConfig struct {
	Kind      string `koanf:"kind"`
	BaseURL   string `koanf:"base_url"`
	APIKey    string `koanf:"api_key"`
	Model     string `koanf:"model"`
	Dimension int    `koanf:"dimension"`
}

// HealthConfig holds backend probing settings. Static probing reports every
// backend healthy without network calls.
type HealthConfig struct {
	Static       bool          `koanf:"static"`
	Freshness    time.Duration `koanf:"freshness"`
	ProbeTimeout time.Duration `koanf:"probe_timeout"`
}

// BackendConfig overrides one backend profile from configuration
type BackendConfig struct {
	Name                 string   `koanf:"name"`
	Provider             string   `koanf:"provider"`
	ContextWindow        int      `koanf:"context_window"`
	AvgLatencyMS         float64  `koanf:"avg_latency_ms"`
	InputCostPerMillion  float64  `koanf:"input_cost_per_million"`
	OutputCostPerMillion float64  `koanf:"output_cost_per_million"`
	QualityScore         float64  `koanf:"quality_score"`
	Specialties          []string `koanf:"specialties"`
}

// ObservabilityConfig holds logging and metrics settings
type ObservabilityConfig struct {
	LogLevel       string `koanf:"log_level"`
	LogFormat      string `koanf:"log_format"`
	MetricsEnabled bool   `koanf:"metrics_enabled"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
			Burst:             10,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Threshold: 0.95,
			TTL:       24 * time.Hour,
		},
		Gateway: GatewayConfig{
			MaxConcurrent:      100,
			LoadSampleInterval: 5 * time.Second,
			CompletionTimeout:  120 * time.Second,
			FailoverEnabled:    true,
		},
		Providers: map[string]Provider{
			"openai":    {BaseURL: "https://api.openai.com/v1", APIKey: "${OPENAI_API_KEY}"},
			"anthropic": {BaseURL: "https://api.anthropic.com/v1", APIKey: "${ANTHROPIC_API_KEY}"},
			"google":    {BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai", APIKey: "${GEMINI_API_KEY}"},
			"xai":       {BaseURL: "https://api.x.ai/v1", APIKey: "${XAI_API_KEY}"},
		},
		Embeddings: EmbeddingsConfig{
			Kind:      "hashing",
			Dimension: 256,
			Model:     "text-embedding-3-small",
		},
		Health: HealthConfig{
			Static:       false,
			Freshness:    60 * time.Second,
			ProbeTimeout: 10 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			MetricsEnabled: true,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// GATEWAY_* environment variables, in increasing precedence. API keys may
// reference environment variables as ${VAR}.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env")

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment overrides: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	for name, p := range cfg.Providers {
		p.APIKey = expandEnv(p.APIKey)
		cfg.Providers[name] = p
	}
	cfg.Embeddings.APIKey = expandEnv(cfg.Embeddings.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// expandEnv resolves ${VAR} references. Literal values pass through.
func expandEnv(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		return os.Getenv(strings.TrimSuffix(strings.TrimPrefix(value, "${"), "}"))
	}
	return value
}

// Validate checks the configuration for values the gateway cannot run with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("requests_per_minute must be positive")
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("burst must be positive")
	}
	if c.Cache.Threshold < 0 || c.Cache.Threshold > 1 {
		return fmt.Errorf("cache threshold %f out of range [0,1]", c.Cache.Threshold)
	}
	if c.Gateway.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent must be positive")
	}
	switch c.Embeddings.Kind {
	case "hashing":
	case "http":
		if c.Embeddings.BaseURL == "" {
			return fmt.Errorf("http embeddings require a base_url")
		}
	default:
		return fmt.Errorf("unknown embeddings kind %q", c.Embeddings.Kind)
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}
	if c.IsProduction() {
		configured := 0
		for _, p := range c.Providers {
			if p.APIKey != "" {
				configured++
			}
		}
		if configured == 0 {
			return fmt.Errorf("at least one provider API key is required in production")
		}
	}
	return nil
}

// IsProduction reports whether the gateway runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// BackendProfiles returns the backend catalog: the configured overrides, or
// the built-in catalog when none are configured.
func (c *Config) BackendProfiles() []registry.BackendProfile {
	if len(c.Backends) == 0 {
		return registry.DefaultCatalog()
	}
	out := make([]registry.BackendProfile, 0, len(c.Backends))
	for _, b := range c.Backends {
		out = append(out, registry.BackendProfile{
			Name:                 b.Name,
			Provider:             b.Provider,
			ContextWindow:        b.ContextWindow,
			AvgLatencyMS:         b.AvgLatencyMS,
			InputCostPerMillion:  b.InputCostPerMillion,
			OutputCostPerMillion: b.OutputCostPerMillion,
			QualityScore:         b.QualityScore,
			Specialties:          b.Specialties,
		})
	}
	return out
}
