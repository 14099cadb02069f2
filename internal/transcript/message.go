package transcript

import (
	"encoding/json"
	"strings"
)

// Message is one conversational entry handed to the compaction pipeline.
// Role is free-form; the classifier decides what it means.
type Message struct {
	Role       string  `json:"role"`
	Content    Content `json:"content"`
	ToolName   string  `json:"tool_name,omitempty"`
	ToolCallID string  `json:"tool_call_id,omitempty"`
}

// Block is one element of block-sequence content. The set of variants is
// closed: TextBlock, ToolUseBlock and ToolResultBlock.
type Block interface {
	isBlock()
}

// TextBlock carries plain text.
type TextBlock struct {
	Text string
}

// ToolUseBlock is an assistant's tool invocation.
type ToolUseBlock struct {
	ID   string
	Name string
}

// ToolResultBlock is the output of a tool invocation.
type ToolResultBlock struct {
	ToolUseID string
	Text      string
}

func (TextBlock) isBlock()       {}
func (ToolUseBlock) isBlock()    {}
func (ToolResultBlock) isBlock() {}

// Content holds the polymorphic content field: either plain text or an
// ordered sequence of blocks. Raw keeps the original encoding when the
// shape was not a plain string, so token estimates survive content we
// cannot read.
type Content struct {
	Text   string
	Blocks []Block
	Raw    json.RawMessage
}

// TextContent returns plain-string content.
func TextContent(s string) Content {
	return Content{Text: s}
}

// BlockContent returns block-sequence content.
func BlockContent(blocks ...Block) Content {
	return Content{Blocks: blocks}
}

// IsZero reports whether the content is absent.
func (c Content) IsZero() bool {
	return c.Text == "" && len(c.Blocks) == 0 && len(c.Raw) == 0
}

// contentItem is the wire shape of a single content block. Field names
// cover both the Anthropic (snake_case) and OpenClaw (camelCase) spellings.
type contentItem struct {
	Type       string          `json:"type"`
	Text       string          `json:"text,omitempty"`
	ID         string          `json:"id,omitempty"`
	Name       string          `json:"name,omitempty"`
	ToolUseID  string          `json:"tool_use_id,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	Content    json.RawMessage `json:"content,omitempty"`
}

// UnmarshalJSON never fails: shapes it does not recognise decode to empty
// text with Raw preserved.
func (c *Content) UnmarshalJSON(data []byte) error {
	*c = Content{}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		return nil
	}

	c.Raw = append(json.RawMessage(nil), data...)

	var items []contentItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	for _, item := range items {
		if b := item.block(); b != nil {
			c.Blocks = append(c.Blocks, b)
		}
	}
	return nil
}

// MarshalJSON writes the original encoding when there is one. Otherwise
// plain text becomes a JSON string and blocks an array.
func (c Content) MarshalJSON() ([]byte, error) {
	if len(c.Raw) > 0 {
		return c.Raw, nil
	}
	if len(c.Blocks) == 0 {
		return json.Marshal(c.Text)
	}

	items := make([]contentItem, 0, len(c.Blocks))
	for _, b := range c.Blocks {
		switch v := b.(type) {
		case TextBlock:
			items = append(items, contentItem{Type: "text", Text: v.Text})
		case ToolUseBlock:
			items = append(items, contentItem{Type: "tool_use", ID: v.ID, Name: v.Name})
		case ToolResultBlock:
			raw, _ := json.Marshal(v.Text)
			items = append(items, contentItem{Type: "tool_result", ToolUseID: v.ToolUseID, Content: raw})
		}
	}
	return json.Marshal(items)
}

func (item contentItem) block() Block {
	switch item.Type {
	case "text":
		return TextBlock{Text: item.Text}
	case "tool_use", "toolUse", "toolCall":
		return ToolUseBlock{ID: item.ID, Name: item.Name}
	case "tool_result", "toolResult":
		id := item.ToolUseID
		if id == "" {
			id = item.ToolCallID
		}
		if id == "" {
			id = item.ID
		}
		text := item.Text
		if text == "" {
			text = nestedText(item.Content)
		}
		return ToolResultBlock{ToolUseID: id, Text: text}
	}
	return nil
}

// nestedText reads a tool_result's content, which is itself either a
// string or an array of text blocks.
func nestedText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var items []contentItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return ""
	}
	var texts []string
	for _, item := range items {
		if item.Type == "text" && item.Text != "" {
			texts = append(texts, item.Text)
		}
	}
	return strings.Join(texts, " ")
}

// UnmarshalJSON accepts the snake_case and camelCase spellings of the
// tool fallback fields.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wire struct {
		Role        string  `json:"role"`
		Content     Content `json:"content"`
		ToolName    string  `json:"tool_name"`
		ToolNameAlt string  `json:"toolName"`
		CallID      string  `json:"tool_call_id"`
		CallIDAlt   string  `json:"toolCallId"`
		UseID       string  `json:"tool_use_id"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*m = Message{
		Role:       wire.Role,
		Content:    wire.Content,
		ToolName:   firstNonEmpty(wire.ToolName, wire.ToolNameAlt),
		ToolCallID: firstNonEmpty(wire.CallID, wire.CallIDAlt, wire.UseID),
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
