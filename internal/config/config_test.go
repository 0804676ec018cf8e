package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"OPENAI_API_KEY",
	"OPENAI_BASE_URL",
	"SAKINA_MODEL",
	"SAKINA_SAVE_DIR",
	"SAKINA_MAX_ITERATIONS",
	"SAKINA_MAX_RETRIES",
	"SAKINA_REQUEST_TIMEOUT",
	"SAKINA_REPAIR_JSON",
	"SAKINA_FAIL_FAST",
	"SAKINA_PROMPT_LOG",
	"SAKINA_TRANSCRIPT",
}

// clearEnv unsets every sakina variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.APIKey)
	assert.Empty(t, cfg.BaseURL)
	assert.Equal(t, "gpt-4.1-nano-2025-04-14", cfg.Model)
	assert.Equal(t, ".", cfg.SaveDir)
	assert.Equal(t, 15, cfg.MaxIterations)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Zero(t, cfg.RequestTimeout)
	assert.False(t, cfg.RepairJSON)
	assert.False(t, cfg.FailFast)
	assert.Empty(t, cfg.TranscriptPath)
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:8080/v1")
	t.Setenv("SAKINA_MODEL", "gpt-4o-mini")
	t.Setenv("SAKINA_SAVE_DIR", "/tmp/notes")
	t.Setenv("SAKINA_MAX_ITERATIONS", "4")
	t.Setenv("SAKINA_MAX_RETRIES", "0")
	t.Setenv("SAKINA_REQUEST_TIMEOUT", "30s")
	t.Setenv("SAKINA_REPAIR_JSON", "yes")
	t.Setenv("SAKINA_FAIL_FAST", "1")
	t.Setenv("SAKINA_TRANSCRIPT", "chat.yaml")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, "http://localhost:8080/v1", cfg.BaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, "/tmp/notes", cfg.SaveDir)
	assert.Equal(t, 4, cfg.MaxIterations)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.RepairJSON)
	assert.True(t, cfg.FailFast)
	assert.Equal(t, "chat.yaml", cfg.TranscriptPath)
}

func TestLoad_MalformedFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("SAKINA_MAX_ITERATIONS", "many")
	t.Setenv("SAKINA_REQUEST_TIMEOUT", "soon")
	t.Setenv("SAKINA_REPAIR_JSON", "maybe")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.MaxIterations)
	assert.Zero(t, cfg.RequestTimeout)
	assert.False(t, cfg.RepairJSON)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"SAKINA_MODEL", ""},
		{"SAKINA_MAX_ITERATIONS", "0"},
		{"SAKINA_MAX_RETRIES", "-1"},
		{"SAKINA_REQUEST_TIMEOUT", "-5s"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestConfigCore(t *testing.T) {
	cfg := &Config{
		APIKey:         "sk-test",
		BaseURL:        "http://localhost",
		Model:          "m",
		SaveDir:        "out",
		MaxIterations:  3,
		MaxRetries:     1,
		RequestTimeout: time.Minute,
		PromptLogPath:  "prompts.jsonl",
		RepairJSON:     true,
	}

	c := cfg.Core()
	assert.Equal(t, "sk-test", c.APIKey)
	assert.Equal(t, "http://localhost", c.BaseURL)
	assert.Equal(t, "m", c.Model)
	assert.Equal(t, "out", c.SaveDir)
	assert.Equal(t, 3, c.MaxIterations)
	assert.Equal(t, 1, c.MaxRetries)
	assert.Equal(t, time.Minute, c.RequestTimeout)
	assert.Equal(t, "prompts.jsonl", c.PromptLogPath)
}
