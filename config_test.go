package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	var empty Config
	assert.ErrorIs(t, empty.Validate(), ErrMissingAPIKey)

	c := Config{APIKey: "sk-test", MaxRetries: -3}
	assert.NoError(t, c.Validate())
	assert.Equal(t, "gpt-4.1-nano-2025-04-14", c.Model)
	assert.Equal(t, ".", c.SaveDir)
	assert.Equal(t, 15, c.MaxIterations)
	assert.Equal(t, 0, c.MaxRetries)

	c = Config{APIKey: "sk-test", Model: "gpt-4o", MaxIterations: 3}
	assert.NoError(t, c.Validate())
	assert.Equal(t, "gpt-4o", c.Model)
	assert.Equal(t, 3, c.MaxIterations)
}
