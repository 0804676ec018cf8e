// Package core provides the chat loop, prompt composer, reply interpreter and
// OpenAI agent behind the sakina CLI.
package core

// Role identifies who authored a history entry.
type Role string

const (
	RoleSystem Role = "system"
	RoleHuman  Role = "human"
)

func (r Role) String() string {
	return string(r)
}

// HistoryEntry is a single message in the conversation history.
type HistoryEntry struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// ToolResult contains the outcome of a tool execution.
type ToolResult struct {
	Success bool   // Whether the tool executed successfully
	Output  string // Result content to send back to the model
	Status  string // Human-readable status for display
	Error   error  // Error if execution failed
}

// State is the chat loop state.
type State int

const (
	StateAwaitingInput State = iota
	StateProcessing
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateAwaitingInput:
		return "awaiting_input"
	case StateProcessing:
		return "processing"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}
