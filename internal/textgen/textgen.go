// Package textgen wraps the text-generation service and the permissive
// decoding its responses need.
package textgen

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrEmptyResponse is returned when the service answered without any text.
var ErrEmptyResponse = errors.New("empty text generation response")

// Generator produces text for a prompt. Callers treat the result as untrusted.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, maxTokens int) (string, error)
}

var (
	fencePattern  = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)\\s*```")
	objectPattern = regexp.MustCompile(`(\{[\s\S]*\}|\[[\s\S]*\])`)
)

// DecodeJSON extracts a JSON document from model output: it unwraps a fenced
// code block if present, then takes the outermost object or array. ok is
// false when nothing decodes.
func DecodeJSON(raw string) (any, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, false
	}

	if m := fencePattern.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	if m := objectPattern.FindString(s); m != "" {
		s = strings.TrimSpace(m)
	}

	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}

// DecodeObject is DecodeJSON restricted to JSON objects.
func DecodeObject(raw string) (map[string]any, bool) {
	v, ok := DecodeJSON(raw)
	if !ok {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}
