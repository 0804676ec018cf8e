package core

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAPIKey is returned when no API key is provided.
	ErrMissingAPIKey = errors.New("API key is required")

	// ErrNoChoices is returned when the API response has no choices.
	ErrNoChoices = errors.New("no choices in API response")

	// ErrPromptRender is returned when the system prompt cannot be rendered.
	ErrPromptRender = errors.New("prompt render failed")

	// ErrMaxIterations is returned when the agent keeps calling tools past its limit.
	ErrMaxIterations = errors.New("agent stopped due to iteration limit")

	// ErrUnknownTool is returned when the model calls a tool that is not registered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrEmptyReply is returned when the model output contains no JSON object.
	ErrEmptyReply = errors.New("empty reply")
)

// InvocationError wraps any failure of the remote model call, including
// tool failures raised while the agent runs.
type InvocationError struct {
	StatusCode int // HTTP status when the API answered, 0 otherwise
	Err        error
}

func (e *InvocationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("invocation failed (%d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("invocation failed: %v", e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// ToolError is returned when a tool cannot complete.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// ParseError is returned when raw model output cannot be mapped onto a
// StructuredReply. Field is empty for errors that are not tied to one field.
type ParseError struct {
	Raw   string
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("field %q: %v", e.Field, e.Err)
	}
	return e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }
