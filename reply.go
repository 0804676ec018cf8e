package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Interpreter turns raw model output into a StructuredReply.
type Interpreter struct {
	// RepairJSON retries syntactically broken output through jsonrepair.
	RepairJSON bool
}

// Parse validates raw against the reply schema. Failures are always a
// *ParseError carrying the raw text.
func (in *Interpreter) Parse(raw string) (StructuredReply, error) {
	var reply StructuredReply

	text := stripFences(raw)
	if text == "" {
		return reply, &ParseError{Raw: raw, Err: ErrEmptyReply}
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		var syntaxErr *json.SyntaxError
		if !in.RepairJSON || !errors.As(err, &syntaxErr) {
			return reply, &ParseError{Raw: raw, Err: fmt.Errorf("invalid json: %w", err)}
		}
		fixed, rerr := jsonrepair.JSONRepair(text)
		if rerr != nil {
			return reply, &ParseError{Raw: raw, Err: fmt.Errorf("invalid json: %w", err)}
		}
		if err := json.Unmarshal([]byte(fixed), &obj); err != nil {
			return reply, &ParseError{Raw: raw, Err: fmt.Errorf("invalid json after repair: %w", err)}
		}
		text = fixed
	}
	if obj == nil {
		return reply, &ParseError{Raw: raw, Err: errors.New("reply is not a JSON object")}
	}

	for _, field := range ReplyFields {
		if _, ok := obj[field]; !ok {
			return reply, &ParseError{Raw: raw, Field: field, Err: errors.New("field required")}
		}
	}

	rs, err := resolvedReplySchema()
	if err != nil {
		return reply, &ParseError{Raw: raw, Err: fmt.Errorf("reply schema: %w", err)}
	}
	if err := rs.Validate(obj); err != nil {
		return reply, &ParseError{Raw: raw, Err: err}
	}

	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return reply, &ParseError{Raw: raw, Field: typeErr.Field, Err: err}
		}
		return reply, &ParseError{Raw: raw, Err: err}
	}
	return reply, nil
}

// Report parses raw and prints either the formatted reply or a diagnostic
// with the raw response. The parse error is returned for logging only.
func (in *Interpreter) Report(w io.Writer, raw string) (StructuredReply, error) {
	reply, err := in.Parse(raw)
	if err != nil {
		fmt.Fprintf(w, "Error parsing response %v Raw Response - %s\n", err, raw)
		return reply, err
	}
	fmt.Fprintln(w, reply.Format())
	return reply, nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
