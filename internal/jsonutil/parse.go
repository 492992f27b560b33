// Package jsonutil decodes JSON documents returned by language models, which
// often arrive wrapped in a markdown code fence.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripMarkdownFences trims text and removes one leading ```json or ``` fence
// and one trailing ``` fence, along with the whitespace next to them. Text
// without a leading fence is returned trimmed but otherwise unchanged.
func StripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(text, "```json"):
		text = strings.TrimPrefix(text, "```json")
	case strings.HasPrefix(text, "```"):
		text = strings.TrimPrefix(text, "```")
	default:
		return text
	}
	text = strings.TrimLeft(text, " \t\r\n")
	text = strings.TrimRight(text, " \t\r\n")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// ParseJSON strips markdown fences from raw and unmarshals the remainder
// into T. Prose around the document is not tolerated.
func ParseJSON[T any](raw string) (T, error) {
	var result T
	text := StripMarkdownFences(raw)
	if text == "" {
		return result, fmt.Errorf("empty response (raw length: %d)", len(raw))
	}
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		var zero T
		return zero, fmt.Errorf("invalid JSON: %w (text: %s)", err, Preview(text, 200))
	}
	return result, nil
}

// Preview truncates s to at most n bytes for log and error messages.
func Preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
