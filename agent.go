package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"go.uber.org/zap"
)

// Invoker runs one model turn: it receives the current query and the full
// history and returns the model's raw text output.
type Invoker interface {
	Invoke(ctx context.Context, query string, history []HistoryEntry) (string, error)
}

var _ Invoker = (*Agent)(nil)

// Agent calls the chat completions API and executes tools until the model
// answers with text.
type Agent struct {
	config    Config
	client    openai.Client
	composer  *PromptComposer
	promptCtx PromptContext
	tools     *Toolbox
	toolDefs  []openai.ChatCompletionToolParam

	// Logger receives tool and request logs. Defaults to a no-op logger.
	Logger *zap.Logger

	// Optional hooks - nil means default behavior (auto-execute, no output)

	// OnToolCall is called before executing a tool.
	// Return false to skip tool execution (sends "cancelled by user" as result).
	OnToolCall func(name string, args map[string]any) bool

	// OnToolDone is called after a tool executes.
	// Receives the tool name, args (for display), and result.
	OnToolDone func(name string, args map[string]any, result ToolResult)
}

// NewAgent creates an agent. Set hooks after creation to customize behavior.
// Without tools the agent gets a SaveTool writing into config.SaveDir.
func NewAgent(config Config, tools ...Tool) (*Agent, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if len(tools) == 0 {
		saveTool, err := NewSaveTool(config.SaveDir)
		if err != nil {
			return nil, err
		}
		tools = append(tools, saveTool)
	}

	promptCtx, err := DefaultPromptContext()
	if err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(config.MaxRetries),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.RequestTimeout))
	}

	toolbox := NewToolbox(tools...)
	toolDefs, err := toolParams(toolbox)
	if err != nil {
		return nil, err
	}

	return &Agent{
		config:    config,
		client:    openai.NewClient(opts...),
		composer:  DefaultComposer(config.PromptLogPath),
		promptCtx: promptCtx,
		tools:     toolbox,
		toolDefs:  toolDefs,
		Logger:    zap.NewNop(),
	}, nil
}

// SystemPrompt renders the system prompt sent on every turn.
func (a *Agent) SystemPrompt() (string, error) {
	return a.composer.Compose("", a.promptCtx)
}

// Hint renders the scripture hint for this agent's prompt context.
func (a *Agent) Hint() (string, error) {
	return RenderHint(a.promptCtx)
}

// Invoke composes the prompt and runs the tool-calling loop. Prompt render
// failures wrap ErrPromptRender; everything else is an *InvocationError.
func (a *Agent) Invoke(ctx context.Context, query string, history []HistoryEntry) (string, error) {
	system, err := a.SystemPrompt()
	if err != nil {
		return "", err
	}

	msgs, err := convEntries(ComposeMessages(system, history, query))
	if err != nil {
		return "", &InvocationError{Err: err}
	}

	params := openai.ChatCompletionNewParams{
		Model:    a.config.Model,
		Messages: msgs,
		Tools:    a.toolDefs,
	}

	for i := 0; i < a.config.MaxIterations; i++ {
		start := time.Now()
		resp, err := a.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return "", invocationError(err)
		}
		a.Logger.Debug("Model responded",
			zap.Int("iteration", i),
			zap.Int("messages", len(params.Messages)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int64("completion_tokens", resp.Usage.CompletionTokens))

		if len(resp.Choices) == 0 {
			return "", &InvocationError{Err: ErrNoChoices}
		}
		msg := resp.Choices[0].Message
		if msg.Refusal != "" {
			return "", &InvocationError{Err: fmt.Errorf("blocked: %s", msg.Refusal)}
		}

		// No tool calls = done
		if len(msg.ToolCalls) == 0 {
			return msg.Content, nil
		}

		params.Messages = append(params.Messages, msg.ToParam())
		for _, tc := range msg.ToolCalls {
			output, err := a.runTool(ctx, tc.Function.Name, tc.Function.Arguments)
			if err != nil {
				return "", &InvocationError{Err: err}
			}
			params.Messages = append(params.Messages, openai.ToolMessage(output, tc.ID))
		}
	}
	return "", &InvocationError{Err: ErrMaxIterations}
}

func (a *Agent) runTool(ctx context.Context, name, rawArgs string) (string, error) {
	var args map[string]any
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		a.Logger.Debug("Tool arguments are not a JSON object", zap.String("tool", name), zap.Error(err))
	}

	// Check if tool should execute
	if a.OnToolCall != nil && !a.OnToolCall(name, args) {
		a.Logger.Info("Tool call cancelled", zap.String("tool", name))
		return "cancelled by user", nil
	}

	result := a.tools.Execute(ctx, name, rawArgs)
	if errors.Is(result.Error, ErrUnknownTool) {
		// Let the model pick again.
		a.Logger.Warn("Unknown tool requested", zap.String("tool", name))
		return a.unknownToolObservation(name), nil
	}
	a.Logger.Info("Tool executed",
		zap.String("tool", name),
		zap.String("status", result.Status),
		zap.Bool("success", result.Success))

	if a.OnToolDone != nil {
		a.OnToolDone(name, args, result)
	}
	if !result.Success {
		return "", result.Error
	}
	return result.Output, nil
}

func (a *Agent) unknownToolObservation(name string) string {
	var names []string
	for _, def := range a.tools.Definitions() {
		names = append(names, def.Name)
	}
	return fmt.Sprintf("%s is not a valid tool, try one of [%s].", name, strings.Join(names, ", "))
}

func toolParams(tb *Toolbox) ([]openai.ChatCompletionToolParam, error) {
	if tb.Len() == 0 {
		return nil, nil
	}
	var out []openai.ChatCompletionToolParam
	for _, def := range tb.Definitions() {
		params, err := convSchema(def.Parameters)
		if err != nil {
			return nil, fmt.Errorf("tool %s parameters: %w", def.Name, err)
		}
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: param.NewOpt(def.Description),
				Parameters:  params,
			},
		})
	}
	return out, nil
}

func convEntries(entries []HistoryEntry) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(entries))
	for _, e := range entries {
		switch e.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(e.Content))
		case RoleHuman:
			out = append(out, openai.UserMessage(e.Content))
		default:
			return nil, fmt.Errorf("unexpected history role: %s", e.Role)
		}
	}
	return out, nil
}

func convSchema(s *jsonschema.Schema) (openai.FunctionParameters, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var m openai.FunctionParameters
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func invocationError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &InvocationError{StatusCode: apiErr.StatusCode, Err: err}
	}
	return &InvocationError{Err: err}
}
