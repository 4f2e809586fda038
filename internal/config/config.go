// Package config provides configuration loading for tutord.
//
// Configuration is loaded from a YAML file and overridden by environment
// variables. Grading workflow files (tutor config JSON) are not handled
// here; see internal/directive.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// Config holds the complete tutord configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
	Gateway GatewayConfig `koanf:"gateway"`
	Tutor   TutorConfig   `koanf:"tutor"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds log output configuration.
// Mapped onto the logging package config by the daemon at startup.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// GatewayConfig holds model gateway configuration.
//
// The API key may be given inline (api_key) or named by environment
// variable (api_key_env). Inline keys rely on the 0600 permission check
// enforced by the loader.
type GatewayConfig struct {
	BaseURL           string   `koanf:"base_url"`
	APIKey            Secret   `koanf:"api_key"`
	APIKeyEnv         string   `koanf:"api_key_env"`
	Timeout           Duration `koanf:"timeout"`
	RequestsPerMinute float64  `koanf:"requests_per_minute"`
	Burst             int      `koanf:"burst"`
	MaxTokens         int      `koanf:"max_tokens"`
}

// TutorConfig holds grading pipeline configuration.
//
// ConfigPaths is an ordered list of grading config locations; the first
// source that loads and validates wins. WorkflowDir holds per-call
// workflow override files referenced by exemplary-solution payloads.
type TutorConfig struct {
	ConfigPaths         []string `koanf:"config_paths"`
	WorkflowDir         string   `koanf:"workflow_dir"`
	DefaultModel        string   `koanf:"default_model"`
	Temperature         float64  `koanf:"temperature"`
	OptionalCorrectness bool     `koanf:"optional_correctness"`
	MaxSubmissions      int      `koanf:"max_submissions"`
	Moderation          bool     `koanf:"moderation"`
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - Shutdown timeout is not positive
//   - Gateway base URL or API key source is missing
//   - Tutor has no grading config sources or no default model
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if c.Gateway.BaseURL == "" {
		return errors.New("gateway base_url is required")
	}
	if !c.Gateway.APIKey.IsSet() && c.Gateway.APIKeyEnv == "" {
		return errors.New("gateway requires api_key or api_key_env")
	}
	if c.Gateway.Timeout.Duration() <= 0 {
		return errors.New("gateway timeout must be positive")
	}
	if c.Gateway.RequestsPerMinute <= 0 {
		return fmt.Errorf("invalid gateway requests_per_minute: %v (must be > 0)", c.Gateway.RequestsPerMinute)
	}
	if c.Gateway.Burst < 1 {
		return fmt.Errorf("invalid gateway burst: %d (must be >= 1)", c.Gateway.Burst)
	}

	if len(c.Tutor.ConfigPaths) == 0 {
		return errors.New("tutor requires at least one config path")
	}
	if c.Tutor.DefaultModel == "" {
		return errors.New("tutor default_model is required")
	}
	if c.Tutor.Temperature < 0 || c.Tutor.Temperature > 2 {
		return fmt.Errorf("invalid tutor temperature: %v (must be 0-2)", c.Tutor.Temperature)
	}
	if c.Tutor.MaxSubmissions < 1 {
		return fmt.Errorf("invalid tutor max_submissions: %d (must be >= 1)", c.Tutor.MaxSubmissions)
	}

	return nil
}

// applyDefaults sets default values for missing configuration fields.
// home is the user's home directory, used for default file locations.
func applyDefaults(cfg *Config, home string) {
	// Server defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	// Gateway defaults
	if cfg.Gateway.BaseURL == "" {
		cfg.Gateway.BaseURL = "https://api.openai.com"
	}
	if !cfg.Gateway.APIKey.IsSet() && cfg.Gateway.APIKeyEnv == "" {
		cfg.Gateway.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Gateway.Timeout == 0 {
		cfg.Gateway.Timeout = Duration(60 * time.Second)
	}
	if cfg.Gateway.RequestsPerMinute == 0 {
		cfg.Gateway.RequestsPerMinute = 50
	}
	if cfg.Gateway.Burst == 0 {
		cfg.Gateway.Burst = 5
	}

	// Tutor defaults
	if len(cfg.Tutor.ConfigPaths) == 0 {
		cfg.Tutor.ConfigPaths = []string{
			filepath.Join(home, ".config", "tutord", "tutor.json"),
			"/etc/tutord/tutor.json",
		}
	}
	if cfg.Tutor.WorkflowDir == "" {
		cfg.Tutor.WorkflowDir = filepath.Join(home, ".config", "tutord", "workflows")
	}
	if cfg.Tutor.DefaultModel == "" {
		cfg.Tutor.DefaultModel = "gpt-4o-mini"
	}
	if cfg.Tutor.MaxSubmissions == 0 {
		cfg.Tutor.MaxSubmissions = 6
	}
}
