package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ResultKind tags which branch of Result is populated
type ResultKind int

const (
	ResultNone ResultKind = iota
	ResultParsed
	ResultRaw
)

// Result is the payload returned by the transcription service. It is either a
// parsed JSON object or, when the response could not be parsed, the raw text.
// On the wire it is stored as a JSON object or a JSON string respectively.
type Result struct {
	kind   ResultKind
	object map[string]any
	text   string
}

// Parsed wraps a structured response
func Parsed(object map[string]any) Result {
	if object == nil {
		object = map[string]any{}
	}
	return Result{kind: ResultParsed, object: object}
}

// Raw wraps a response that could not be parsed
func Raw(text string) Result {
	return Result{kind: ResultRaw, text: text}
}

func (r Result) Kind() ResultKind { return r.kind }
func (r Result) IsZero() bool     { return r.kind == ResultNone }
func (r Result) IsParsed() bool   { return r.kind == ResultParsed }
func (r Result) IsRaw() bool      { return r.kind == ResultRaw }

// Object returns the parsed object; ok is false for raw or empty results
func (r Result) Object() (map[string]any, bool) {
	if r.kind != ResultParsed {
		return nil, false
	}
	return r.object, true
}

// Text returns the raw text; ok is false for parsed or empty results
func (r Result) Text() (string, bool) {
	if r.kind != ResultRaw {
		return "", false
	}
	return r.text, true
}

// Field returns a top-level field of a parsed result
func (r Result) Field(name string) (any, bool) {
	if r.kind != ResultParsed {
		return nil, false
	}
	v, ok := r.object[name]
	return v, ok
}

// Title reads "title", falling back to "titulo".
func (r Result) Title() string {
	for _, key := range []string{"title", "titulo"} {
		if v, ok := r.Field(key); ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// KeyPoints returns the key points when the service returned them as a list of strings
func (r Result) KeyPoints() []string {
	for _, key := range []string{"key_points", "puntos_importantes", "puntos"} {
		v, ok := r.Field(key)
		if !ok {
			continue
		}
		items, ok := v.([]any)
		if !ok {
			continue
		}
		points := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				points = append(points, s)
			}
		}
		return points
	}
	return nil
}

func (r Result) MarshalJSON() ([]byte, error) {
	switch r.kind {
	case ResultParsed:
		return json.Marshal(r.object)
	case ResultRaw:
		return json.Marshal(r.text)
	default:
		return []byte("null"), nil
	}
}

func (r *Result) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = Result{}
		return nil
	}

	switch data[0] {
	case '{':
		var object map[string]any
		if err := json.Unmarshal(data, &object); err != nil {
			return fmt.Errorf("decode parsed result: %w", err)
		}
		*r = Parsed(object)
	case '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return fmt.Errorf("decode raw result: %w", err)
		}
		*r = Raw(text)
	default:
		// arrays and scalars written by older clients are kept verbatim
		*r = Raw(string(data))
	}
	return nil
}
