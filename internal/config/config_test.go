package config

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range keys {
		t.Setenv(k, "")
	}
	t.Setenv("BACKEND_URL", "http://127.0.0.1:8000/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8090" {
		t.Errorf("expected port 8090, got %s", cfg.Port)
	}
	if cfg.BackendURL != "http://127.0.0.1:8000" {
		t.Errorf("expected the trailing slash to be trimmed, got %s", cfg.BackendURL)
	}
	if cfg.RequestTimeout() != 10*time.Second || cfg.RetryDelay() != 350*time.Millisecond || cfg.MaxRetries != 1 {
		t.Errorf("unexpected retry policy %+v", cfg)
	}
	if cfg.CacheTTL() != time.Minute {
		t.Errorf("expected a one minute cache ttl, got %s", cfg.CacheTTL())
	}
	if !cfg.IsDev() {
		t.Error("expected development mode")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9100")
	t.Setenv("ENV", "production")
	t.Setenv("BACKEND_URL", "https://api.carepulse.test")
	t.Setenv("MAX_RETRIES", "3")
	t.Setenv("CORS_ORIGINS", "https://a.test, https://b.test")
	t.Setenv("AUTH_TOKEN", "tok")
	t.Setenv("AUTH_ROLE", "Doctor")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9100" || cfg.IsDev() || cfg.MaxRetries != 3 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.test" {
		t.Errorf("unexpected origins %q", cfg.CORSOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:             "8090",
			Env:              "development",
			BackendURL:       "http://127.0.0.1:8000",
			RequestTimeoutMS: 10000,
			MaxRetries:       1,
			RetryDelayMS:     350,
			LogLevel:         "info",
		}
	}
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Port = "http" }, "PORT"},
		{"relative backend", func(c *Config) { c.BackendURL = "/api" }, "BACKEND_URL"},
		{"ftp backend", func(c *Config) { c.BackendURL = "ftp://files.test" }, "BACKEND_URL"},
		{"zero timeout", func(c *Config) { c.RequestTimeoutMS = 0 }, "REQUEST_TIMEOUT_MS"},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, "MAX_RETRIES"},
		{"negative delay", func(c *Config) { c.RetryDelayMS = -5 }, "RETRY_DELAY_MS"},
		{"unknown level", func(c *Config) { c.LogLevel = "loud" }, "LOG_LEVEL"},
		{"unknown role", func(c *Config) { c.AuthToken = "tok"; c.AuthRole = "janitor" }, "AUTH_ROLE"},
		{"role without token", func(c *Config) { c.AuthRole = "nurse" }, "AUTH_TOKEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected an error mentioning %s, got %v", tt.want, err)
			}
		})
	}
}

func TestConfig_Level(t *testing.T) {
	if (&Config{LogLevel: "DEBUG"}).Level() != zerolog.DebugLevel {
		t.Error("expected debug level")
	}
	if (&Config{}).Level() != zerolog.InfoLevel {
		t.Error("expected info when unset")
	}
}
