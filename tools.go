package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// ToolDefinition describes a tool to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

// Tool is a side-effecting capability the model may call.
type Tool interface {
	Definition() ToolDefinition
	// Call runs the tool with JSON encoded arguments and returns the text
	// sent back to the model.
	Call(ctx context.Context, args string) (string, error)
}

// Toolbox dispatches tool calls by name.
type Toolbox struct {
	tools map[string]Tool
	order []string
}

// NewToolbox registers tools in the order given.
func NewToolbox(tools ...Tool) *Toolbox {
	tb := &Toolbox{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		name := t.Definition().Name
		if _, ok := tb.tools[name]; !ok {
			tb.order = append(tb.order, name)
		}
		tb.tools[name] = t
	}
	return tb
}

// Definitions returns the registered tool definitions in registration order.
func (tb *Toolbox) Definitions() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(tb.order))
	for _, name := range tb.order {
		defs = append(defs, tb.tools[name].Definition())
	}
	return defs
}

// Len returns the number of registered tools.
func (tb *Toolbox) Len() int {
	return len(tb.order)
}

// Execute dispatches to the named tool.
func (tb *Toolbox) Execute(ctx context.Context, name, args string) ToolResult {
	t, ok := tb.tools[name]
	if !ok {
		return ToolResult{
			Success: false,
			Error:   &ToolError{Tool: name, Err: ErrUnknownTool},
			Status:  "fail: unknown tool",
		}
	}

	start := time.Now()
	out, err := t.Call(ctx, args)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		var toolErr *ToolError
		if !errors.As(err, &toolErr) {
			err = &ToolError{Tool: name, Err: err}
		}
		return ToolResult{
			Success: false,
			Output:  out,
			Error:   err,
			Status:  fmt.Sprintf("fail (%.1fs)", elapsed),
		}
	}
	return ToolResult{
		Success: true,
		Output:  out,
		Status:  fmt.Sprintf("ok (%.1fs)", elapsed),
	}
}

// ============================================================================
// SAVE TOOL
// ============================================================================

// SaveToolName is the name the model uses to call SaveTool.
const SaveToolName = "save_text_to_file"

// DefaultSaveFile is used when the model gives no filename.
const DefaultSaveFile = "research_output.txt"

// SaveArgs are the arguments of SaveTool.
type SaveArgs struct {
	Data     string `json:"data" jsonschema:"The text to save"`
	Filename string `json:"filename,omitempty" jsonschema:"Destination file name, defaults to research_output.txt"`
}

// SaveTool appends text to a file inside Dir.
type SaveTool struct {
	Dir string
	Now func() time.Time

	params *jsonschema.Schema
}

var _ Tool = (*SaveTool)(nil)

// NewSaveTool creates a save tool writing into dir.
func NewSaveTool(dir string) (*SaveTool, error) {
	params, err := jsonschema.For[SaveArgs](&jsonschema.ForOptions{})
	if err != nil {
		return nil, fmt.Errorf("save tool schema: %w", err)
	}
	return &SaveTool{Dir: dir, Now: time.Now, params: params}, nil
}

func (t *SaveTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        SaveToolName,
		Description: "Saves structured research data to a text file.",
		Parameters:  t.params,
	}
}

func (t *SaveTool) Call(_ context.Context, args string) (string, error) {
	var a SaveArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return "", &ToolError{Tool: SaveToolName, Err: fmt.Errorf("unmarshal %q: %w", args, err)}
	}
	if strings.TrimSpace(a.Data) == "" {
		return "", &ToolError{Tool: SaveToolName, Err: errors.New("data is required")}
	}
	return t.Save(a.Data, a.Filename)
}

// Save appends data to filename and returns the confirmation text.
// Only the base name of filename is used.
func (t *SaveTool) Save(data, filename string) (string, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = DefaultSaveFile
	}

	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	entry := fmt.Sprintf("--- Research Output ---\nTimestamp: %s\n\n%s\n\n", now().Format("2006-01-02 15:04:05"), data)

	if err := os.MkdirAll(t.Dir, 0755); err != nil {
		return "", &ToolError{Tool: SaveToolName, Err: err}
	}
	f, err := os.OpenFile(filepath.Join(t.Dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return "", &ToolError{Tool: SaveToolName, Err: err}
	}
	defer f.Close()
	if _, err := f.WriteString(entry); err != nil {
		return "", &ToolError{Tool: SaveToolName, Err: err}
	}
	return "Data successfully saved to " + name, nil
}
