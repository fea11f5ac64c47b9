package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all daemon configuration.
type Config struct {
	Server    ServerConfig
	Terminal  TerminalConfig
	Repo      RepoConfig
	Auth      AuthConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"7420" yaml:"port"`
	Host string `envconfig:"HOST" default:"127.0.0.1" yaml:"host"`
}

// TerminalConfig holds terminal session defaults.
type TerminalConfig struct {
	Shell      string `envconfig:"WB_SHELL" yaml:"shell"`
	Scrollback int    `envconfig:"WB_SCROLLBACK" default:"1048576" yaml:"scrollback"`
	Cols       int    `envconfig:"WB_COLS" default:"80" yaml:"cols"`
	Rows       int    `envconfig:"WB_ROWS" default:"24" yaml:"rows"`
}

// RepoConfig holds version-control tool configuration.
type RepoConfig struct {
	GitBinary string `envconfig:"WB_GIT_BINARY" default:"git" yaml:"git_binary"`
}

// AuthConfig holds device-authorization endpoints. Defaults follow the
// GitHub device flow.
type AuthConfig struct {
	ClientID      string `envconfig:"WB_AUTH_CLIENT_ID" yaml:"client_id"`
	Scope         string `envconfig:"WB_AUTH_SCOPE" default:"read:user" yaml:"scope"`
	DeviceCodeURL string `envconfig:"WB_AUTH_DEVICE_CODE_URL" default:"https://github.com/login/device/code" yaml:"device_code_url"`
	TokenURL      string `envconfig:"WB_AUTH_TOKEN_URL" default:"https://github.com/login/oauth/access_token" yaml:"token_url"`
	UserURL       string `envconfig:"WB_AUTH_USER_URL" default:"https://api.github.com/user" yaml:"user_url"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadFile loads configuration from a YAML file layered over the
// defaults. Values absent from the file keep their defaults; use Load
// for environment-driven configuration.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "7420",
			Host: "127.0.0.1",
		},
		Terminal: TerminalConfig{
			Scrollback: 1 << 20,
			Cols:       80,
			Rows:       24,
		},
		Repo: RepoConfig{
			GitBinary: "git",
		},
		Auth: AuthConfig{
			Scope:         "read:user",
			DeviceCodeURL: "https://github.com/login/device/code",
			TokenURL:      "https://github.com/login/oauth/access_token",
			UserURL:       "https://api.github.com/user",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
