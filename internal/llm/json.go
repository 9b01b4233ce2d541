package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrMalformedResult marks a model answer that should have been a JSON object but was not.
var ErrMalformedResult = errors.New("malformed structured result")

// ParseJSONObject strips an optional markdown fence (```json ... ```) and decodes the
// remainder as a JSON object. On failure it logs and returns a nil map with an error
// wrapping ErrMalformedResult.
func ParseJSONObject(content string, logger *slog.Logger) (map[string]any, error) {
	if logger == nil {
		logger = slog.Default()
	}
	text := StripCodeFence(content)

	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		logger.Error("llm.json.parse_failed", "error", err, "bytes", len(text))
		return nil, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}
	if out == nil {
		logger.Error("llm.json.parse_failed", "error", "null document", "bytes", len(text))
		return nil, fmt.Errorf("%w: null document", ErrMalformedResult)
	}
	return out, nil
}

// StripCodeFence removes a leading ```json (or bare ```) marker and a trailing ``` marker.
func StripCodeFence(content string) string {
	text := strings.TrimSpace(content)
	switch {
	case strings.HasPrefix(text, "```json"):
		text = text[len("```json"):]
	case strings.HasPrefix(text, "```"):
		text = text[len("```"):]
	}
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
