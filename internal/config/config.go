package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/carepulse/console/internal/platform/session"
)

type Config struct {
	Port             string   `mapstructure:"PORT"`
	Env              string   `mapstructure:"ENV"`
	BackendURL       string   `mapstructure:"BACKEND_URL"`
	RequestTimeoutMS int      `mapstructure:"REQUEST_TIMEOUT_MS"`
	MaxRetries       int      `mapstructure:"MAX_RETRIES"`
	RetryDelayMS     int      `mapstructure:"RETRY_DELAY_MS"`
	CacheTTLSeconds  int      `mapstructure:"CACHE_TTL_SECONDS"`
	LogLevel         string   `mapstructure:"LOG_LEVEL"`
	CORSOrigins      []string `mapstructure:"CORS_ORIGINS"`
	AuthToken        string   `mapstructure:"AUTH_TOKEN"`
	AuthRole         string   `mapstructure:"AUTH_ROLE"`
	AuthName         string   `mapstructure:"AUTH_NAME"`
}

var keys = []string{
	"PORT", "ENV", "BACKEND_URL", "REQUEST_TIMEOUT_MS", "MAX_RETRIES",
	"RETRY_DELAY_MS", "CACHE_TTL_SECONDS", "LOG_LEVEL", "CORS_ORIGINS",
	"AUTH_TOKEN", "AUTH_ROLE", "AUTH_NAME",
}

// Load reads the environment and an optional .env file in the working
// directory. Environment variables win.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8090")
	v.SetDefault("ENV", "development")
	v.SetDefault("BACKEND_URL", "http://127.0.0.1:8000")
	v.SetDefault("REQUEST_TIMEOUT_MS", 10000)
	v.SetDefault("MAX_RETRIES", 1)
	v.SetDefault("RETRY_DELAY_MS", 350)
	v.SetDefault("CACHE_TTL_SECONDS", 60)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.BackendURL = strings.TrimRight(strings.TrimSpace(cfg.BackendURL), "/")

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Level is the parsed LOG_LEVEL. Validate rejects unknown levels.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Validate checks that the configuration is usable before anything dials
// the backend.
func (c *Config) Validate() error {
	if p, err := strconv.Atoi(c.Port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("PORT must be a TCP port, got %q", c.Port)
	}

	u, err := url.Parse(c.BackendURL)
	if err != nil {
		return fmt.Errorf("BACKEND_URL is not a URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("BACKEND_URL must be an absolute http(s) URL, got %q", c.BackendURL)
	}

	if c.RequestTimeoutMS <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_MS must be positive, got %d", c.RequestTimeoutMS)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must not be negative, got %d", c.MaxRetries)
	}
	if c.RetryDelayMS < 0 {
		return fmt.Errorf("RETRY_DELAY_MS must not be negative, got %d", c.RetryDelayMS)
	}
	if c.CacheTTLSeconds < 0 {
		return fmt.Errorf("CACHE_TTL_SECONDS must not be negative, got %d", c.CacheTTLSeconds)
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}

	if c.AuthRole != "" {
		if _, err := session.ParseRole(c.AuthRole); err != nil {
			return fmt.Errorf("AUTH_ROLE: %w", err)
		}
	}
	if c.AuthRole != "" && c.AuthToken == "" {
		return fmt.Errorf("AUTH_ROLE is set but AUTH_TOKEN is empty")
	}

	return nil
}
