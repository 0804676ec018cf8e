package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// SentinelPhrase ends the chat when typed on its own.
	SentinelPhrase = "end chat"

	greeting    = "What's on your mind?"
	farewell    = "Chat ended. Take care!"
	inputPrompt = "> "
)

// HintKeywords trigger the scripture hint when found anywhere in the input.
var HintKeywords = []string{"quran", "verse", "ayah", "allah", "hadith", "understand"}

// ErrSessionEnded is returned when a turn is attempted on an ended session.
var ErrSessionEnded = errors.New("session ended")

// IsSentinel reports whether input ends the chat.
func IsSentinel(input string) bool {
	return strings.ToLower(strings.TrimSpace(input)) == SentinelPhrase
}

// NeedsHint reports whether input mentions any hint keyword.
func NeedsHint(input string) bool {
	lower := strings.ToLower(input)
	return slices.ContainsFunc(HintKeywords, func(kw string) bool {
		return strings.Contains(lower, kw)
	})
}

// Session is the append-only conversation history of one chat.
type Session struct {
	ID string

	history []HistoryEntry
	state   State
}

// NewSession starts an empty session awaiting input.
func NewSession() *Session {
	return &Session{ID: uuid.NewString(), state: StateAwaitingInput}
}

// History returns a copy of the entries in order.
func (s *Session) History() []HistoryEntry {
	return slices.Clone(s.history)
}

// Len returns the number of entries.
func (s *Session) Len() int {
	return len(s.history)
}

// State returns the loop state of the session.
func (s *Session) State() State {
	return s.state
}

func (s *Session) append(role Role, content string) HistoryEntry {
	e := HistoryEntry{Role: role, Content: content}
	s.history = append(s.history, e)
	return e
}

// Outcome is the result of one turn.
type Outcome int

const (
	OutcomeEnded Outcome = iota
	OutcomeReplied
	OutcomeParseFailed
	OutcomeInvokeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEnded:
		return "ended"
	case OutcomeReplied:
		return "replied"
	case OutcomeParseFailed:
		return "parse_failed"
	case OutcomeInvokeFailed:
		return "invoke_failed"
	default:
		return "unknown"
	}
}

// Chat drives turns of a Session against an Invoker and prints the outcome
// of each turn.
type Chat struct {
	invoker     Invoker
	out         io.Writer
	hint        string
	interpreter Interpreter

	// FailFast makes invocation errors end the session instead of being
	// reported per turn.
	FailFast bool

	// Logger receives turn logs. Defaults to a no-op logger.
	Logger *zap.Logger

	// OnHint is called after a hint entry is appended.
	OnHint func(entry HistoryEntry)

	// OnReply is called after the interpreter ran, with the parse error if any.
	OnReply func(reply StructuredReply, err error)
}

// NewChat creates a chat writing to out. hint is the system entry appended
// on keyword turns.
func NewChat(invoker Invoker, out io.Writer, hint string) *Chat {
	return &Chat{
		invoker: invoker,
		out:     out,
		hint:    hint,
		Logger:  zap.NewNop(),
	}
}

// SetRepairJSON toggles JSON repair in the reply interpreter.
func (c *Chat) SetRepairJSON(repair bool) {
	c.interpreter.RepairJSON = repair
}

// Turn handles one line of user input. A non-nil error is fatal: the
// session is ended and the caller should stop.
func (c *Chat) Turn(ctx context.Context, s *Session, input string) (Outcome, error) {
	if s.state == StateEnded {
		return OutcomeEnded, ErrSessionEnded
	}

	if IsSentinel(input) {
		s.state = StateEnded
		fmt.Fprintln(c.out, farewell)
		c.Logger.Info("Chat ended", zap.String("session", s.ID), zap.Int("entries", s.Len()))
		return OutcomeEnded, nil
	}

	s.state = StateProcessing

	if NeedsHint(input) {
		e := s.append(RoleSystem, c.hint)
		c.Logger.Debug("Hint appended", zap.String("session", s.ID), zap.Int("entries", s.Len()))
		if c.OnHint != nil {
			c.OnHint(e)
		}
	}
	s.append(RoleHuman, input)

	start := time.Now()
	raw, err := c.invoker.Invoke(ctx, input, s.History())
	if err != nil {
		if c.FailFast || errors.Is(err, ErrPromptRender) || ctx.Err() != nil {
			s.state = StateEnded
			return OutcomeInvokeFailed, fmt.Errorf("invoke model: %w", err)
		}
		c.Logger.Warn("Invocation failed", zap.String("session", s.ID), zap.Error(err))
		fmt.Fprintf(c.out, "Error invoking model %v\n", err)
		s.state = StateAwaitingInput
		return OutcomeInvokeFailed, nil
	}
	c.Logger.Debug("Model invoked",
		zap.String("session", s.ID),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("raw_bytes", len(raw)))

	reply, perr := c.interpreter.Report(c.out, raw)
	if c.OnReply != nil {
		c.OnReply(reply, perr)
	}
	s.state = StateAwaitingInput
	if perr != nil {
		c.Logger.Warn("Reply did not match schema", zap.String("session", s.ID), zap.Error(perr))
		return OutcomeParseFailed, nil
	}
	return OutcomeReplied, nil
}

// Run reads lines from in until the sentinel phrase, end of input, a fatal
// error, or cancellation of ctx.
func (c *Chat) Run(ctx context.Context, s *Session, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fmt.Fprintln(c.out, greeting)

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for s.State() != StateEnded {
		fmt.Fprint(c.out, inputPrompt)
		select {
		case <-ctx.Done():
			s.state = StateEnded
			c.Logger.Info("Chat interrupted", zap.String("session", s.ID), zap.Int("entries", s.Len()))
			return fmt.Errorf("chat interrupted: %w", ctx.Err())
		case line, ok := <-lines:
			if !ok {
				s.state = StateEnded
				if ctx.Err() != nil {
					return fmt.Errorf("chat interrupted: %w", ctx.Err())
				}
				if err := <-readErr; err != nil {
					return fmt.Errorf("read input: %w", err)
				}
				c.Logger.Info("Input closed", zap.String("session", s.ID), zap.Int("entries", s.Len()))
				return nil
			}
			if _, err := c.Turn(ctx, s, line); err != nil {
				return err
			}
		}
	}
	return nil
}
