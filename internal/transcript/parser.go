package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// Entry represents a single line in a Claude Code JSONL transcript.
// Lines without a nested message are tried as bare messages instead.
type Entry struct {
	Type    string          `json:"type"` // "user", "assistant", "system", "summary"
	Message json.RawMessage `json:"message"`
}

var systemReminderRe = regexp.MustCompile(`<system-reminder>[\s\S]*?</system-reminder>`)

// ParseFile reads a JSONL transcript file and returns its messages in order.
func ParseFile(path string) ([]Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	msgs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return msgs, nil
}

// Parse reads JSONL transcript lines from r. Malformed lines are skipped.
func Parse(r io.Reader) ([]Message, error) {
	var msgs []Message
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024) // tool output lines get large

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		msg, ok := parseLine(line)
		if ok {
			msgs = append(msgs, msg)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}

	return msgs, nil
}

// ParseLines parses transcript content from a string.
func ParseLines(content string) ([]Message, error) {
	return Parse(strings.NewReader(content))
}

func parseLine(line []byte) (Message, bool) {
	var entry Entry
	if err := json.Unmarshal(line, &entry); err != nil {
		return Message{}, false
	}

	raw := entry.Message
	nested := len(raw) > 0 && string(raw) != "null"
	if !nested {
		raw = line
	}

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, false
	}
	if msg.Role == "" && nested {
		msg.Role = entry.Type
	}
	if msg.Role == "" {
		return Message{}, false
	}

	return normalize(msg), true
}

// normalize strips injected system reminders and re-labels user turns that
// only carry tool results. Claude Code delivers tool output as role "user".
func normalize(msg Message) Message {
	msg.Content.Text = stripReminders(msg.Content.Text)

	if len(msg.Content.Blocks) > 0 {
		changed := false
		blocks := make([]Block, 0, len(msg.Content.Blocks))
		for _, b := range msg.Content.Blocks {
			if tb, ok := b.(TextBlock); ok {
				stripped := stripReminders(tb.Text)
				changed = changed || stripped != tb.Text
				if stripped == "" {
					changed = true
					continue
				}
				tb.Text = stripped
				b = tb
			}
			blocks = append(blocks, b)
		}
		msg.Content.Blocks = blocks
		// Raw still holds the reminders; re-encoding must not bring them back.
		if changed {
			msg.Content.Raw = nil
		}
	}

	if msg.Role == "user" && onlyToolResults(msg.Content.Blocks) {
		msg.Role = "tool"
	}
	return msg
}

func stripReminders(s string) string {
	if !strings.Contains(s, "<system-reminder>") {
		return s
	}
	return strings.TrimSpace(systemReminderRe.ReplaceAllString(s, ""))
}

func onlyToolResults(blocks []Block) bool {
	if len(blocks) == 0 {
		return false
	}
	for _, b := range blocks {
		if _, ok := b.(ToolResultBlock); !ok {
			return false
		}
	}
	return true
}

// CountRoles returns how many messages carry each role.
func CountRoles(msgs []Message) map[string]int {
	counts := make(map[string]int)
	for _, m := range msgs {
		counts[m.Role]++
	}
	return counts
}
