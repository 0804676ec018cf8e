package core

import "time"

// Config holds the configuration for the agent.
type Config struct {
	APIKey         string        // Required: API key for authentication
	BaseURL        string        // Base URL for the API (empty uses the OpenAI default)
	Model          string        // Model to use (defaults to gpt-4.1-nano)
	SaveDir        string        // Directory the save tool writes into
	MaxIterations  int           // Model calls allowed per turn while tools run
	MaxRetries     int           // Client retries on transient API errors
	RequestTimeout time.Duration // Per-request timeout, 0 means none
	PromptLogPath  string        // Optional JSONL log of rendered system prompts
}

// Validate checks the configuration and sets defaults.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Model == "" {
		c.Model = "gpt-4.1-nano-2025-04-14"
	}
	if c.SaveDir == "" {
		c.SaveDir = "."
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 15
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return nil
}
