package core

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validReply = `{
  "topic": "exam anxiety",
  "empathetic_response": "It sounds like you are carrying a lot right now.",
  "informative_response": "Short breaks and steady breathing can ease exam stress.",
  "quran": "",
  "question": "What usually helps you feel grounded before a test?",
  "sources": [],
  "tools_used": []
}`

func TestInterpreterParse(t *testing.T) {
	var in Interpreter

	reply, err := in.Parse(validReply)
	require.NoError(t, err)

	assert.Equal(t, "exam anxiety", reply.Topic)
	assert.Equal(t, "It sounds like you are carrying a lot right now.", reply.EmpatheticResponse)
	assert.Empty(t, reply.Quran)
	assert.Empty(t, reply.Sources)
}

func TestInterpreterParse_Fenced(t *testing.T) {
	var in Interpreter

	for _, raw := range []string{
		"```json\n" + validReply + "\n```",
		"```\n" + validReply + "\n```",
		"\n\n" + validReply + "\n",
	} {
		reply, err := in.Parse(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, "exam anxiety", reply.Topic)
	}
}

func TestInterpreterParse_Lists(t *testing.T) {
	var in Interpreter
	raw := strings.Replace(validReply, `"sources": []`, `"sources": ["al-Mizan 2:153", "https://example.org"]`, 1)
	raw = strings.Replace(raw, `"tools_used": []`, `"tools_used": ["save_text_to_file"]`, 1)

	reply, err := in.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"al-Mizan 2:153", "https://example.org"}, reply.Sources)
	assert.Equal(t, []string{"save_text_to_file"}, reply.ToolsUsed)
}

func TestInterpreterParse_IgnoresUnknownFields(t *testing.T) {
	var in Interpreter
	raw := strings.Replace(validReply, `"topic"`, `"mood": "low", "topic"`, 1)

	_, err := in.Parse(raw)
	assert.NoError(t, err)
}

func TestInterpreterParse_Failures(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{name: "empty", raw: "   "},
		{name: "plain text", raw: "I'm sorry you feel that way."},
		{name: "array", raw: `["topic"]`},
		{name: "null", raw: `null`},
		{name: "truncated", raw: validReply[:40]},
		{
			name:  "missing quran",
			raw:   strings.Replace(validReply, `"quran": "",`, "", 1),
			field: "quran",
		},
		{
			name: "missing tools_used",
			raw: strings.Replace(validReply, `,
  "tools_used": []`, "", 1),
			field: "tools_used",
		},
		{name: "wrong type", raw: strings.Replace(validReply, `"question": "What usually helps you feel grounded before a test?"`, `"question": 42`, 1)},
		{name: "null sources", raw: strings.Replace(validReply, `"sources": []`, `"sources": null`, 1)},
		{name: "null tools_used", raw: strings.Replace(validReply, `"tools_used": []`, `"tools_used": null`, 1)},
		{name: "wrong list item", raw: strings.Replace(validReply, `"sources": []`, `"sources": [1, 2]`, 1)},
	}

	var in Interpreter
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := in.Parse(tt.raw)
			require.Error(t, err)

			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.raw, perr.Raw)
			if tt.field != "" {
				assert.Equal(t, tt.field, perr.Field)
			}
		})
	}
}

func TestInterpreterParse_Repair(t *testing.T) {
	// Trailing comma is a syntax error for encoding/json.
	raw := strings.Replace(validReply, `"tools_used": []`, `"tools_used": [],`, 1)

	strict := Interpreter{}
	_, err := strict.Parse(raw)
	require.Error(t, err)

	lenient := Interpreter{RepairJSON: true}
	reply, err := lenient.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "exam anxiety", reply.Topic)
}

func TestInterpreterParse_RepairStillValidates(t *testing.T) {
	lenient := Interpreter{RepairJSON: true}

	_, err := lenient.Parse(`{"topic": "x",}`)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "empathetic_response", perr.Field)
}

func TestStructuredReplyFormat(t *testing.T) {
	reply := StructuredReply{
		Topic:               "patience",
		EmpatheticResponse:  "E",
		InformativeResponse: "I",
		Quran:               "",
		Question:            "Q",
	}

	lines := strings.Split(reply.Format(), "\n")
	assert.Equal(t, []string{"E", "I", "", "Q"}, lines)
}

func TestStructuredReplyFormat_MultilineField(t *testing.T) {
	reply := StructuredReply{
		EmpatheticResponse:  "E",
		InformativeResponse: "first\r\nsecond",
		Quran:               "Surah 2:153\nSeek help through patience",
		Question:            "Q",
	}

	lines := strings.Split(reply.Format(), "\n")
	assert.Equal(t, []string{"E", "first second", "Surah 2:153 Seek help through patience", "Q"}, lines)
}

func TestInterpreterReport(t *testing.T) {
	var in Interpreter
	var out bytes.Buffer

	reply, err := in.Report(&out, validReply)
	require.NoError(t, err)

	assert.Equal(t, reply.Format()+"\n", out.String())
	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, reply.EmpatheticResponse, lines[0])
	assert.Equal(t, reply.InformativeResponse, lines[1])
	assert.Equal(t, reply.Quran, lines[2])
	assert.Equal(t, reply.Question, lines[3])
}

func TestInterpreterReport_Diagnostic(t *testing.T) {
	var in Interpreter
	var out bytes.Buffer

	_, err := in.Report(&out, "not json at all")
	require.Error(t, err)

	assert.True(t, strings.HasPrefix(out.String(), "Error parsing response "))
	assert.Contains(t, out.String(), "Raw Response - not json at all")
}
