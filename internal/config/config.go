// Package config loads the proxy configuration from defaults, an optional
// YAML file and FETCHSCHED_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/fetch-scheduler/pkg/logging"
	"github.com/Sternrassler/fetch-scheduler/pkg/provider"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// FETCHSCHED_PROVIDERS_OMDB_API_KEY for providers.omdb.api_key.
const EnvPrefix = "FETCHSCHED"

// Config is the complete proxy configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Redis     RedisConfig     `mapstructure:"redis"`
	UserAgent string          `mapstructure:"user_agent"`
	Providers ProvidersConfig `mapstructure:"providers"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RedisConfig configures the response cache. An empty URL disables caching.
type RedisConfig struct {
	URL string        `mapstructure:"url"`
	DB  int           `mapstructure:"db"`
	TTL time.Duration `mapstructure:"ttl"`
}

// ProvidersConfig holds one section per provider.
type ProvidersConfig struct {
	Trakt ProviderConfig `mapstructure:"trakt"`
	OMDB  ProviderConfig `mapstructure:"omdb"`
	IGDB  ProviderConfig `mapstructure:"igdb"`
}

// ProviderConfig overrides a provider preset and carries its credentials.
type ProviderConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`

	APIKey       string `mapstructure:"api_key"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	AccessToken  string `mapstructure:"access_token"`

	MaxConcurrent      int           `mapstructure:"max_concurrent"`
	MaxRetries         int           `mapstructure:"max_retries"`
	MinInterval        time.Duration `mapstructure:"min_interval"`
	DefaultRetryAfter  time.Duration `mapstructure:"default_retry_after"`
	RateLimitThreshold int           `mapstructure:"rate_limit_threshold"`
	RateLimitPause     time.Duration `mapstructure:"rate_limit_pause"`
	RatePerSecond      float64       `mapstructure:"rate_per_second"`
	Burst              int           `mapstructure:"burst"`
	BatchSize          int           `mapstructure:"batch_size"`
}

// Load reads the configuration. With an empty path, ./fetch-scheduler.yaml
// is used if it exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("fetch-scheduler")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatJSON)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "5m")

	v.SetDefault("user_agent", "fetch-scheduler/0.1.0")

	for _, p := range []provider.Preset{provider.Trakt(), provider.OMDB(), provider.IGDB()} {
		key := "providers." + p.Name + "."
		v.SetDefault(key+"enabled", true)
		v.SetDefault(key+"base_url", p.BaseURL)
		v.SetDefault(key+"api_key", "")
		v.SetDefault(key+"client_id", "")
		v.SetDefault(key+"client_secret", "")
		v.SetDefault(key+"access_token", "")
		v.SetDefault(key+"max_concurrent", p.Scheduler.MaxConcurrent)
		v.SetDefault(key+"max_retries", p.Scheduler.MaxRetries)
		v.SetDefault(key+"min_interval", p.Scheduler.MinInterval)
		v.SetDefault(key+"default_retry_after", p.Scheduler.DefaultRetryAfter)
		v.SetDefault(key+"rate_limit_threshold", p.Scheduler.RateLimitThreshold)
		v.SetDefault(key+"rate_limit_pause", p.Scheduler.RateLimitPause)
		v.SetDefault(key+"rate_per_second", p.Scheduler.RatePerSecond)
		v.SetDefault(key+"burst", p.Scheduler.Burst)
		v.SetDefault(key+"batch_size", p.BatchSize)
	}
}

// Validate checks the fields the scheduler presets cannot.
func (c *Config) Validate() error {
	if c.UserAgent == "" {
		return fmt.Errorf("user_agent is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535 (got %d)", c.Server.Port)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	for name, pc := range c.Providers.All() {
		if !pc.Enabled {
			continue
		}
		p, err := pc.Apply(name)
		if err != nil {
			return err
		}
		if err := p.Scheduler.Validate(); err != nil {
			return fmt.Errorf("providers.%s: %w", name, err)
		}
	}
	return nil
}

// All returns the provider sections keyed by provider name.
func (p ProvidersConfig) All() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		provider.NameTrakt: p.Trakt,
		provider.NameOMDB:  p.OMDB,
		provider.NameIGDB:  p.IGDB,
	}
}

// Apply returns the named preset with this section's overrides.
// Scheduler fields are taken as-is, so zero means zero: sections built in
// code should start from a Load()ed config. MaxConcurrent is the exception
// since zero is never valid there.
func (pc ProviderConfig) Apply(name string) (provider.Preset, error) {
	p, err := provider.Lookup(name)
	if err != nil {
		return provider.Preset{}, err
	}

	if pc.BaseURL != "" {
		p.BaseURL = pc.BaseURL
	}
	if pc.MaxConcurrent > 0 {
		p.Scheduler.MaxConcurrent = pc.MaxConcurrent
	}
	p.Scheduler.MaxRetries = pc.MaxRetries
	p.Scheduler.MinInterval = pc.MinInterval
	p.Scheduler.DefaultRetryAfter = pc.DefaultRetryAfter
	p.Scheduler.RateLimitThreshold = pc.RateLimitThreshold
	p.Scheduler.RateLimitPause = pc.RateLimitPause
	p.Scheduler.RatePerSecond = pc.RatePerSecond
	p.Scheduler.Burst = pc.Burst
	if pc.BatchSize > 0 {
		p.BatchSize = pc.BatchSize
	}
	return p, nil
}

// Credentials returns the secrets of this section.
func (pc ProviderConfig) Credentials() provider.Credentials {
	return provider.Credentials{
		APIKey:      pc.APIKey,
		ClientID:    pc.ClientID,
		AccessToken: pc.AccessToken,
	}
}
