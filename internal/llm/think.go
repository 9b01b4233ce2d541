package llm

import (
	"regexp"
	"strings"
)

// Non-greedy and dot-matches-newline: each span is removed on its own.
var thinkSpan = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinkTags removes every <think>...</think> span and trims the result.
func StripThinkTags(text string) string {
	return strings.TrimSpace(thinkSpan.ReplaceAllString(text, ""))
}
