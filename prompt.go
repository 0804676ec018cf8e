package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
)

// ============================================================================
// TEMPLATES - Edit these to change the assistant's persona
// ============================================================================

const personaTemplate = `You are an empathetic, culturally and religiously sensitive AI assistant specializing in mental health support for {{.Audience}}. Your responses must always:

`

const behaviorTemplate = `1. Start with a kind acknowledgment of the user's feelings or situation.
2. Offer a gentle validation (e.g., "Many people feel this way" or "That makes sense").
3. Provide a brief, informative response or summary.
4. Ask a short, open-ended reflection question sensitive to {{.Audience}}'s needs ({{.Sensitivities}}).

`

const referenceTemplate = `Optionally, if the topic is deep and relevant, you may include a Quranic verse or tafsir snippet (use {{.Commentary}}).

`

const formatTemplate = `After thinking, return a JSON matching the StructuredReply schema. Don't output any other text.
{{.FormatInstructions}}`

// hintTemplate is the system hint injected when the user asks about
// scripture.
const hintTemplate = `If relevant, include a Qur'anic verse anecdote drawn from {{.Commentary}} (chapter and verse) with explanation of why it's relevant to this specific query. Otherwise skip it.`

// ============================================================================
// CONTEXT
// ============================================================================

// PromptContext holds the values interpolated into prompt templates.
type PromptContext struct {
	Audience           string // Who the assistant supports
	Sensitivities      string // Topics the reflection question must respect
	Commentary         string // Tafsir used for referenced excerpts
	FormatInstructions string // Output schema instructions
}

// DefaultPromptContext returns the context used by the CLI.
func DefaultPromptContext() (PromptContext, error) {
	instructions, err := FormatInstructions()
	if err != nil {
		return PromptContext{}, err
	}
	return PromptContext{
		Audience:           "Muslim women",
		Sensitivities:      "family, community, faith, privacy, modesty",
		Commentary:         "tafsir al-Mizan",
		FormatInstructions: instructions,
	}, nil
}

// ============================================================================
// ENRICHERS
// ============================================================================

// PromptEnricher transforms a prompt using context.
type PromptEnricher interface {
	Enrich(base string, ctx PromptContext) (string, error)
}

// PromptEnricherFunc adapts a function to PromptEnricher.
type PromptEnricherFunc func(base string, ctx PromptContext) (string, error)

func (f PromptEnricherFunc) Enrich(base string, ctx PromptContext) (string, error) {
	return f(base, ctx)
}

// PromptComposer chains multiple enrichers to build a complete prompt.
type PromptComposer struct {
	enrichers []PromptEnricher
}

// NewPromptComposer creates a composer with the given enrichers.
// Enrichers are applied in reverse order so that the first enricher's
// output appears first in the final prompt.
func NewPromptComposer(enrichers ...PromptEnricher) *PromptComposer {
	return &PromptComposer{enrichers: enrichers}
}

// Compose applies all enrichers to the base prompt. Any render failure
// aborts composition and wraps ErrPromptRender.
func (c *PromptComposer) Compose(base string, ctx PromptContext) (string, error) {
	result := base
	// Iterate in reverse so first-defined enricher appears first in output
	for i := len(c.enrichers) - 1; i >= 0; i-- {
		var err error
		result, err = c.enrichers[i].Enrich(result, ctx)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrPromptRender, err)
		}
	}
	return result, nil
}

// renderTemplate executes tmpl against ctx.
func renderTemplate(tmpl *template.Template, ctx PromptContext) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func parseTemplate(name, tmplStr string) *template.Template {
	return template.Must(template.New(name).Option("missingkey=error").Parse(tmplStr))
}

// templateEnricher creates an enricher that prepends rendered template.
func templateEnricher(name, tmplStr string) PromptEnricher {
	tmpl := parseTemplate(name, tmplStr)
	return PromptEnricherFunc(func(base string, ctx PromptContext) (string, error) {
		s, err := renderTemplate(tmpl, ctx)
		if err != nil {
			return "", err
		}
		return s + base, nil
	})
}

// PersonaEnricher adds the assistant's role and audience.
func PersonaEnricher() PromptEnricher {
	return templateEnricher("persona", personaTemplate)
}

// BehaviorEnricher adds the four mandatory response behaviors.
func BehaviorEnricher() PromptEnricher {
	return templateEnricher("behavior", behaviorTemplate)
}

// ReferenceEnricher permits an optional scripture excerpt.
func ReferenceEnricher() PromptEnricher {
	return templateEnricher("reference", referenceTemplate)
}

// FormatEnricher adds the output schema instructions. It must be the last
// content enricher so the instructions close the prompt.
func FormatEnricher() PromptEnricher {
	tmpl := parseTemplate("format", formatTemplate)
	return PromptEnricherFunc(func(base string, ctx PromptContext) (string, error) {
		if ctx.FormatInstructions == "" {
			return "", fmt.Errorf("format instructions are empty")
		}
		s, err := renderTemplate(tmpl, ctx)
		if err != nil {
			return "", err
		}
		return s + base, nil
	})
}

// LoggingEnricher appends the final prompt to a JSONL file (passthrough).
func LoggingEnricher(logPath string) PromptEnricher {
	return PromptEnricherFunc(func(base string, _ PromptContext) (string, error) {
		// Create logs dir if needed
		dir := filepath.Dir(logPath)
		os.MkdirAll(dir, 0755)

		// Append JSONL record
		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			defer f.Close()
			record := map[string]any{
				"ts":     time.Now().UTC().Format(time.RFC3339),
				"prompt": base,
			}
			if data, err := json.Marshal(record); err == nil {
				f.Write(data)
				f.WriteString("\n")
			}
		}
		return base, nil // passthrough
	})
}

// ============================================================================
// DEFAULT COMPOSERS
// ============================================================================

// DefaultComposer returns the system prompt composer used by the agent.
// A non-empty logPath logs every rendered prompt.
func DefaultComposer(logPath string) *PromptComposer {
	var enrichers []PromptEnricher
	if logPath != "" {
		enrichers = append(enrichers, LoggingEnricher(logPath)) // First = runs last, logs final prompt
	}
	enrichers = append(enrichers,
		PersonaEnricher(),   // Role and audience
		BehaviorEnricher(),  // Acknowledge, validate, inform, ask
		ReferenceEnricher(), // Optional tafsir excerpt
		FormatEnricher(),    // Schema instructions
	)
	return NewPromptComposer(enrichers...)
}

var hintTmpl = parseTemplate("hint", hintTemplate)

// RenderHint renders the scripture hint for ctx.
func RenderHint(ctx PromptContext) (string, error) {
	s, err := renderTemplate(hintTmpl, ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPromptRender, err)
	}
	return s, nil
}

// ComposeMessages orders the messages sent to the model: system prompt
// first, then the history, then the current query.
func ComposeMessages(system string, history []HistoryEntry, query string) []HistoryEntry {
	msgs := make([]HistoryEntry, 0, len(history)+2)
	msgs = append(msgs, HistoryEntry{Role: RoleSystem, Content: strings.TrimSpace(system)})
	msgs = append(msgs, history...)
	msgs = append(msgs, HistoryEntry{Role: RoleHuman, Content: query})
	return msgs
}
