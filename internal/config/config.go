// Package config loads service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Download  DownloadConfig  `yaml:"download"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig controls the listen address.
type ServerConfig struct {
	Host string `yaml:"host" env:"HOST_ADDR" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HOST_PORT" env-default:"8080"`
}

// DownloadConfig tunes the streaming proxy.
type DownloadConfig struct {
	// FirstByteTimeout bounds the wait for the first upstream byte; a
	// transfer that has started is never cut off by this.
	FirstByteTimeout time.Duration `yaml:"first_byte_timeout" env:"DOWNLOAD_FIRST_BYTE_TIMEOUT" env-default:"30s"`
}

// RateLimitConfig tunes the per-IP request throttle.
type RateLimitConfig struct {
	RPS   float64       `yaml:"rps" env:"RATE_LIMIT_RPS" env-default:"2"`
	Burst int           `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"10"`
	TTL   time.Duration `yaml:"ttl" env:"RATE_LIMIT_TTL" env-default:"10m"`
}

// ExtractorConfig holds per-platform knobs.
type ExtractorConfig struct {
	// FetchTimeout bounds each metadata round trip to a platform.
	FetchTimeout time.Duration `yaml:"fetch_timeout" env:"EXTRACTOR_FETCH_TIMEOUT" env-default:"30s"`
	// TikTokResolverURL overrides the third-party TikTok resolver endpoint.
	TikTokResolverURL string `yaml:"tiktok_resolver_url" env:"TIKTOK_RESOLVER_URL"`
	// ProxyURL routes platform requests through an HTTP proxy when set.
	ProxyURL string `yaml:"proxy_url" env:"EXTRACTOR_PROXY_URL"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// Addr returns the host:port pair the server binds to.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// Load reads path when it exists and applies environment overrides on
// top. A missing file is not an error; environment and defaults carry
// the whole configuration in that case.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
			}
			return cfg, nil
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration from environment: %w", err)
	}
	return cfg, nil
}
