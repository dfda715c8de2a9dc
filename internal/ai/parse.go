package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"voicenotes/internal/model"
)

// ErrParse reports a response that is not a JSON object. It is never fatal:
// callers keep the raw text instead.
var ErrParse = errors.New("response is not structured data")

var fenceReplacer = strings.NewReplacer("```json", "", "```JSON", "", "```", "")

// StripCodeFences removes Markdown code-fence markers (```json and ```)
// wherever they appear and trims the surrounding whitespace.
func StripCodeFences(content string) string {
	return strings.TrimSpace(fenceReplacer.Replace(content))
}

// ParseObject decodes a fenced or bare JSON object
func ParseObject(content string) (map[string]any, error) {
	cleaned := StripCodeFences(content)
	if !strings.HasPrefix(cleaned, "{") {
		return nil, fmt.Errorf("%w: no JSON object found", ErrParse)
	}

	var object map[string]any
	if err := json.Unmarshal([]byte(cleaned), &object); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return object, nil
}

// ParseResult turns a raw service response into a Result. Parse failures fall
// back to the raw text and are reported through err so callers can log them.
func ParseResult(content string) (model.Result, error) {
	object, err := ParseObject(content)
	if err != nil {
		return model.Raw(content), err
	}
	return model.Parsed(object), nil
}
