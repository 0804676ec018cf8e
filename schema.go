package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// StructuredReply is the shape the model is asked to produce every turn.
type StructuredReply struct {
	Topic               string   `json:"topic" jsonschema:"The main subject the user is exploring"`
	EmpatheticResponse  string   `json:"empathetic_response" jsonschema:"A brief and kind acknowledgment of the user's feelings or situation"`
	InformativeResponse string   `json:"informative_response" jsonschema:"A concise and helpful summary or explanation related to the topic"`
	Quran               string   `json:"quran" jsonschema:"A relevant Quranic verse or tafsir snippet from tafsir al-Mizan if applicable and otherwise an empty string"`
	Question            string   `json:"question" jsonschema:"An open-ended reflection question sensitive to Muslim women's cultural and religious context"`
	Sources             []string `json:"sources" jsonschema:"Source URLs or references used to generate the response"`
	ToolsUsed           []string `json:"tools_used" jsonschema:"Names of any tools invoked during generation"`
}

// lineBreaks folds line breaks inside a field into spaces.
var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Format renders the four-line summary printed to the user. Each field is
// kept on a single line.
func (r StructuredReply) Format() string {
	return strings.Join([]string{
		lineBreaks.Replace(r.EmpatheticResponse),
		lineBreaks.Replace(r.InformativeResponse),
		lineBreaks.Replace(r.Quran),
		lineBreaks.Replace(r.Question),
	}, "\n")
}

// ReplyFields lists the JSON keys every reply must carry, in schema order.
var ReplyFields = []string{
	"topic",
	"empathetic_response",
	"informative_response",
	"quran",
	"question",
	"sources",
	"tools_used",
}

var replySchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	s, err := jsonschema.For[StructuredReply](&jsonschema.ForOptions{})
	if err != nil {
		return nil, err
	}
	s.Title = "StructuredReply"
	// Unknown keys are ignored on parse.
	s.AdditionalProperties = nil
	s.Required = append([]string(nil), ReplyFields...)
	// Lists are required to be arrays, never null.
	for _, field := range []string{"sources", "tools_used"} {
		prop, ok := s.Properties[field]
		if !ok {
			return nil, fmt.Errorf("reply schema: missing property %q", field)
		}
		prop.Types = nil
		prop.Type = "array"
	}
	return s, nil
})

var resolvedReplySchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	s, err := replySchema()
	if err != nil {
		return nil, err
	}
	return s.CloneSchemas().Resolve(&jsonschema.ResolveOptions{})
})

// ReplySchema returns a copy of the JSON schema of StructuredReply.
func ReplySchema() (*jsonschema.Schema, error) {
	s, err := replySchema()
	if err != nil {
		return nil, fmt.Errorf("reply schema: %w", err)
	}
	return s.CloneSchemas(), nil
}

const formatInstructionsTemplate = `The output should be formatted as a JSON instance that conforms to the JSON schema below.

As an example, for the schema {"properties": {"foo": {"description": "a list of strings", "type": "array", "items": {"type": "string"}}}, "required": ["foo"]}
the object {"foo": ["bar", "baz"]} is a well-formatted instance of the schema. The object {"properties": {"foo": ["bar", "baz"]}} is not well-formatted.

Here is the output schema:
` + "```" + `
%s
` + "```"

// FormatInstructions describes how the model must format its output.
func FormatInstructions() (string, error) {
	s, err := replySchema()
	if err != nil {
		return "", fmt.Errorf("reply schema: %w", err)
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal reply schema: %w", err)
	}
	return fmt.Sprintf(formatInstructionsTemplate, b), nil
}
