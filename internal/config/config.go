// Package config loads service configuration from a YAML file with
// environment overrides for secrets and endpoints.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/pagerelay/pagerelay/internal/imagejob"
	"github.com/pagerelay/pagerelay/internal/llm"
	"github.com/pagerelay/pagerelay/internal/workspace"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// RequestTimeout caps synchronous pipeline executions.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// ImageRequestTimeout caps the async image path, matched to the poll
	// budget rather than the synchronous ceiling.
	ImageRequestTimeout time.Duration `mapstructure:"image_request_timeout"`
}

// SystemContextConfig points at the shared operating-context page.
type SystemContextConfig struct {
	PageID string        `mapstructure:"page_id"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// PipelineDefaults are the shared tunables entry points inherit.
type PipelineDefaults struct {
	MaxReferences   int           `mapstructure:"max_references"`
	CharBudget      int           `mapstructure:"char_budget"`
	BlockCharLimit  int           `mapstructure:"block_char_limit"`
	BatchCeiling    int           `mapstructure:"batch_ceiling"`
	ErrorCap        int           `mapstructure:"error_cap"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	PollMaxAttempts int           `mapstructure:"poll_max_attempts"`
}

// RateLimitConfig bounds webhook ingress.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

// Config is the full service configuration.
type Config struct {
	Server        ServerConfig          `mapstructure:"server"`
	WebhookSecret string                `mapstructure:"webhook_secret"`
	AgentID       string                `mapstructure:"agent_id"`
	RedisURL      string                `mapstructure:"redis_url"`
	Workspace     workspace.Config      `mapstructure:"workspace"`
	LLM           llm.Config            `mapstructure:"llm"`
	ImageJob      imagejob.Config       `mapstructure:"image_job"`
	SystemContext SystemContextConfig   `mapstructure:"system_context"`
	Defaults      PipelineDefaults      `mapstructure:"defaults"`
	RateLimit     RateLimitConfig       `mapstructure:"rate_limit"`
	EntryPoints   map[string]EntryPoint `mapstructure:"entry_points"`
}

// Load reads the config file from CONFIG_PATH (default ./config.yaml),
// applies defaults, env overrides, and validation.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFile(path)
}

// LoadFile reads one config file. A missing file is not an error: defaults
// plus environment variables cover a minimal deployment.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyEnv(&cfg)
	applyEntryPointDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", "120s")
	v.SetDefault("server.image_request_timeout", "330s")
	v.SetDefault("defaults.max_references", 5)
	v.SetDefault("defaults.char_budget", 480000)
	v.SetDefault("defaults.block_char_limit", 2000)
	v.SetDefault("defaults.batch_ceiling", 100)
	v.SetDefault("defaults.error_cap", 2000)
	v.SetDefault("defaults.poll_interval", "5s")
	v.SetDefault("defaults.poll_max_attempts", 60)
	v.SetDefault("system_context.ttl", "5m")
	v.SetDefault("rate_limit.requests_per_minute", 60)
	v.SetDefault("rate_limit.burst", 10)
	v.SetDefault("workspace.timeout", "30s")
	v.SetDefault("llm.timeout", "110s")
	v.SetDefault("image_job.timeout", "30s")
}

// applyEnv lets secrets and endpoints come from the environment, which wins
// over the file.
func applyEnv(cfg *Config) {
	if s := os.Getenv("WEBHOOK_SECRET"); s != "" {
		cfg.WebhookSecret = s
	}
	if s := os.Getenv("WORKSPACE_TOKEN"); s != "" {
		cfg.Workspace.Token = s
	}
	if s := os.Getenv("REDIS_URL"); s != "" {
		cfg.RedisURL = s
	}
	if s := os.Getenv("IMAGE_JOB_API_KEY"); s != "" {
		cfg.ImageJob.APIKey = s
	}
	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = map[string]llm.ProviderConfig{}
	}
	for provider, env := range map[string]string{
		"moonshot":  "MOONSHOT_API_KEY",
		"openai":    "OPENAI_API_KEY",
		"anthropic": "ANTHROPIC_API_KEY",
		"google":    "GOOGLE_API_KEY",
	} {
		if key := os.Getenv(env); key != "" {
			pc := cfg.LLM.Providers[provider]
			pc.APIKey = key
			cfg.LLM.Providers[provider] = pc
		}
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.WebhookSecret == "" {
		return fmt.Errorf("webhook_secret is required")
	}
	for name, ep := range c.EntryPoints {
		if err := ep.Validate(); err != nil {
			return fmt.Errorf("entry point %q: %w", name, err)
		}
	}
	return nil
}
