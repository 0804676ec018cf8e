// Package config loads sakina settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	core "github.com/webforspeed/sakina"
)

// Config holds all application configuration.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	SaveDir        string
	MaxIterations  int
	MaxRetries     int
	RequestTimeout time.Duration
	RepairJSON     bool
	FailFast       bool
	PromptLogPath  string
	TranscriptPath string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		APIKey:         getEnv("OPENAI_API_KEY", ""),
		BaseURL:        getEnv("OPENAI_BASE_URL", ""),
		Model:          getEnv("SAKINA_MODEL", "gpt-4.1-nano-2025-04-14"),
		SaveDir:        getEnv("SAKINA_SAVE_DIR", "."),
		MaxIterations:  getEnvInt("SAKINA_MAX_ITERATIONS", 15),
		MaxRetries:     getEnvInt("SAKINA_MAX_RETRIES", 2),
		RequestTimeout: getEnvDuration("SAKINA_REQUEST_TIMEOUT", 0),
		RepairJSON:     getEnvBool("SAKINA_REPAIR_JSON", false),
		FailFast:       getEnvBool("SAKINA_FAIL_FAST", false),
		PromptLogPath:  getEnv("SAKINA_PROMPT_LOG", ""),
		TranscriptPath: getEnv("SAKINA_TRANSCRIPT", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks ranges. The API key is checked when the agent is built
// so commands that never call the model can run without one.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("SAKINA_MODEL cannot be empty")
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("SAKINA_MAX_ITERATIONS must be > 0")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("SAKINA_MAX_RETRIES must be >= 0")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("SAKINA_REQUEST_TIMEOUT must be >= 0")
	}
	return nil
}

// Core converts to the agent configuration.
func (c *Config) Core() core.Config {
	return core.Config{
		APIKey:         c.APIKey,
		BaseURL:        c.BaseURL,
		Model:          c.Model,
		SaveDir:        c.SaveDir,
		MaxIterations:  c.MaxIterations,
		MaxRetries:     c.MaxRetries,
		RequestTimeout: c.RequestTimeout,
		PromptLogPath:  c.PromptLogPath,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
