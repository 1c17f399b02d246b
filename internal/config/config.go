package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Version is the application version, overridden at build time via ldflags.
var Version = "dev"

// Config holds all application configuration. It is loaded once at startup
// and treated as read-only afterwards; reconfiguration requires a restart.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// CacheConfig holds provider-response cache configuration.
type CacheConfig struct {
	// Backend selects the store implementation: "sqlite", "redis" or "memory".
	Backend    string      `mapstructure:"backend"`
	Path       string      `mapstructure:"path"`
	TTLMinutes int         `mapstructure:"ttl_minutes"`
	Redis      RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds the optional Redis cache backend settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ProviderConfig holds the settings shared by all metadata provider clients.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // seconds, per call
}

// ProvidersConfig holds per-provider settings plus the priority order used
// for merge tie-breaks and fan-out ordering.
type ProvidersConfig struct {
	Priority []string       `mapstructure:"priority"`
	TMDB     ProviderConfig `mapstructure:"tmdb"`
	TVDB     ProviderConfig `mapstructure:"tvdb"`
	OMDB     ProviderConfig `mapstructure:"omdb"`
}

// MatchingConfig holds the tunable scoring and auto-accept knobs.
// The defaults are empirically chosen starting points, not fixed behavior.
type MatchingConfig struct {
	AutoAcceptThreshold float64 `mapstructure:"auto_accept_threshold"`
	TitleWeight         float64 `mapstructure:"title_weight"`
	YearWeight          float64 `mapstructure:"year_weight"`
}

// RetryConfig holds the provider-call retry policy.
type RetryConfig struct {
	MaxAttempts        int `mapstructure:"max_attempts"`
	BaseDelaySeconds   int `mapstructure:"base_delay_seconds"`
	MaxDelaySeconds    int `mapstructure:"max_delay_seconds"`
	CallTimeoutSeconds int `mapstructure:"call_timeout_seconds"`
}

// PipelineConfig holds the worker pool settings. Workers 0 means
// 2 x GOMAXPROCS, since resolution work is network-bound.
type PipelineConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.reelmatch")
	}

	v.SetEnvPrefix("REELMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8585)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")

	v.SetDefault("cache.backend", "sqlite")
	v.SetDefault("cache.path", "./data/reelmatch-cache.db")
	v.SetDefault("cache.ttl_minutes", 360)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("providers.priority", []string{"tmdb", "tvdb", "omdb"})
	v.SetDefault("providers.tmdb.api_key", EmbeddedTMDBKey)
	v.SetDefault("providers.tmdb.base_url", "https://api.themoviedb.org/3")
	v.SetDefault("providers.tmdb.timeout", 10)
	v.SetDefault("providers.tvdb.api_key", EmbeddedTVDBKey)
	v.SetDefault("providers.tvdb.base_url", "https://api4.thetvdb.com/v4")
	v.SetDefault("providers.tvdb.timeout", 10)
	v.SetDefault("providers.omdb.api_key", "")
	v.SetDefault("providers.omdb.base_url", "https://www.omdbapi.com")
	v.SetDefault("providers.omdb.timeout", 10)

	v.SetDefault("matching.auto_accept_threshold", 0.65)
	v.SetDefault("matching.title_weight", 0.7)
	v.SetDefault("matching.year_weight", 0.3)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay_seconds", 2)
	v.SetDefault("retry.max_delay_seconds", 10)
	v.SetDefault("retry.call_timeout_seconds", 10)

	v.SetDefault("pipeline.workers", 0)
	v.SetDefault("pipeline.queue_size", 256)
}

// Validate rejects configurations the engine cannot run with. It is called
// once at startup, before any task is accepted.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.TTLMinutes <= 0 {
		return fmt.Errorf("cache.ttl_minutes must be positive, got %d", c.Cache.TTLMinutes)
	}

	if len(c.Providers.Priority) == 0 {
		return fmt.Errorf("providers.priority must list at least one provider")
	}
	configured := 0
	for _, name := range c.Providers.Priority {
		switch name {
		case "tmdb":
			if c.Providers.TMDB.APIKey != "" {
				configured++
			}
		case "tvdb":
			if c.Providers.TVDB.APIKey != "" {
				configured++
			}
		case "omdb":
			if c.Providers.OMDB.APIKey != "" {
				configured++
			}
		default:
			return fmt.Errorf("unknown provider %q in providers.priority", name)
		}
	}
	if configured == 0 {
		return fmt.Errorf("no metadata provider has credentials configured")
	}

	if c.Matching.AutoAcceptThreshold <= 0 || c.Matching.AutoAcceptThreshold > 1 {
		return fmt.Errorf("matching.auto_accept_threshold must be in (0,1], got %v", c.Matching.AutoAcceptThreshold)
	}
	if c.Matching.TitleWeight < 0 || c.Matching.YearWeight < 0 || c.Matching.TitleWeight+c.Matching.YearWeight == 0 {
		return fmt.Errorf("matching weights must be non-negative and not both zero")
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelaySeconds < 1 || c.Retry.MaxDelaySeconds < c.Retry.BaseDelaySeconds {
		return fmt.Errorf("retry delays invalid: base=%ds max=%ds", c.Retry.BaseDelaySeconds, c.Retry.MaxDelaySeconds)
	}
	if c.Retry.CallTimeoutSeconds < 1 {
		return fmt.Errorf("retry.call_timeout_seconds must be at least 1, got %d", c.Retry.CallTimeoutSeconds)
	}

	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("pipeline.workers must not be negative, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.QueueSize < 1 {
		return fmt.Errorf("pipeline.queue_size must be at least 1, got %d", c.Pipeline.QueueSize)
	}

	return nil
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
