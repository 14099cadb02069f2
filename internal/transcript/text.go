package transcript

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// CharsPerToken is the fixed character-to-token ratio used for estimates.
const CharsPerToken = 4

// ExtractText returns the readable text of a message. Text-bearing blocks
// are joined with single spaces; tool invocations contribute nothing.
func ExtractText(m Message) string {
	c := m.Content
	if len(c.Blocks) == 0 {
		return c.Text
	}

	var texts []string
	for _, b := range c.Blocks {
		switch v := b.(type) {
		case TextBlock:
			if v.Text != "" {
				texts = append(texts, v.Text)
			}
		case ToolResultBlock:
			if v.Text != "" {
				texts = append(texts, v.Text)
			}
		}
	}
	return strings.Join(texts, " ")
}

// EstimateTokens approximates the token count of a message. When there is
// no extractable text it estimates from the serialized content instead,
// so tool calls and unreadable payloads still cost something.
func EstimateTokens(m Message) int {
	if text := ExtractText(m); text != "" {
		return EstimateTextTokens(text)
	}
	if m.Content.IsZero() {
		return 0
	}
	raw := m.Content.Raw
	if len(raw) == 0 {
		encoded, err := json.Marshal(m.Content)
		if err != nil {
			return 0
		}
		raw = encoded
	}
	return EstimateTextTokens(string(raw))
}

// EstimateTextTokens is ceil(len(s) / CharsPerToken).
func EstimateTextTokens(s string) int {
	return (len(s) + CharsPerToken - 1) / CharsPerToken
}

// ToolName returns the name of the first tool invocation in the message,
// falling back to the message-level field and then "unknown".
func ToolName(m Message) string {
	for _, b := range m.Content.Blocks {
		if v, ok := b.(ToolUseBlock); ok && v.Name != "" {
			return v.Name
		}
	}
	if m.ToolName != "" {
		return m.ToolName
	}
	return "unknown"
}

// ToolCallID returns the id of the first tool result in the message,
// falling back to the message-level field.
func ToolCallID(m Message) string {
	for _, b := range m.Content.Blocks {
		if v, ok := b.(ToolResultBlock); ok && v.ToolUseID != "" {
			return v.ToolUseID
		}
	}
	return m.ToolCallID
}

// HasToolUse reports whether the message carries a tool invocation block.
func HasToolUse(m Message) bool {
	for _, b := range m.Content.Blocks {
		if _, ok := b.(ToolUseBlock); ok {
			return true
		}
	}
	return false
}

// Truncate cuts s to at most max runes, marking the cut with "…".
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:max]), isSpace) + "…"
}

// Flatten collapses newlines and surrounding whitespace to single spaces.
func Flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Head returns the first n runes of s without any marker.
func Head(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
