package engine

import (
	"regexp"
	"unicode/utf8"

	"github.com/lazypower/hippocampus/internal/transcript"
)

// ackMaxChars bounds what counts as a bare acknowledgement.
const ackMaxChars = 50

var (
	toolRoles      = []string{"tool", "toolResult", "tool_result", "function"}
	userRoles      = []string{"user"}
	assistantRoles = []string{"assistant"}

	ephemeralUserRe = regexp.MustCompile(`(?i)heartbeat|\bno[_-]reply\b|^\s*/status\b`)

	ackRe = regexp.MustCompile(`(?i)^\s*(ok(ay)?|k|sure|got it|done|noted|thanks?( you)?|thx|yes|yep|no[_\- ]?reply|heartbeat_ok|👍|✅)[\s.!]*$`)

	decisionRe = regexp.MustCompile(`(?i)` +
		`\b(decided|decision|we will|we'll|i will|i'll|plan(s|ned)?|going to|let's|approach|agreed|conclusion|next steps?)\b` +
		`|beschlossen|entschieden|entscheidung|d[ée]cid[ée]|d[ée]cision|decidido|decisi[óo]n|decidimos|` +
		`решили|решение|план|决定|计划|方案|決定|計画|方針`)
)

// Rule is one row of the classification table. Every non-zero field must
// hold for the rule to match; the first matching rule wins.
type Rule struct {
	Name     string
	Roles    []string       // empty matches any role
	MaxChars int            // text must be shorter than this; 0 disables
	Pattern  *regexp.Regexp // matched against extracted text; nil disables
	ToolUse  bool           // message must carry a tool invocation
	Type     EntryType
}

func (r Rule) matches(m transcript.Message, text string) bool {
	if len(r.Roles) > 0 && !contains(r.Roles, m.Role) {
		return false
	}
	if r.MaxChars > 0 && utf8.RuneCountInString(text) >= r.MaxChars {
		return false
	}
	if r.Pattern != nil && !r.Pattern.MatchString(text) {
		return false
	}
	if r.ToolUse && !transcript.HasToolUse(m) {
		return false
	}
	return true
}

var defaultRules = []Rule{
	{Name: "tool-role", Roles: toolRoles, Type: TypeToolResult},
	{Name: "user-ephemeral", Roles: userRoles, Pattern: ephemeralUserRe, Type: TypeEphemeral},
	{Name: "user", Roles: userRoles, Type: TypeUserIntent},
	{Name: "assistant-ack", Roles: assistantRoles, MaxChars: ackMaxChars, Pattern: ackRe, Type: TypeEphemeral},
	{Name: "assistant-decision", Roles: assistantRoles, Pattern: decisionRe, Type: TypeDecision},
	{Name: "assistant-tool-use", Roles: assistantRoles, ToolUse: true, Type: TypeContext},
	{Name: "assistant", Roles: assistantRoles, Type: TypeContext},
}

// DefaultRules returns a copy of the built-in classification table.
func DefaultRules() []Rule {
	return append([]Rule(nil), defaultRules...)
}

// Classifier maps messages to entry types using an ordered rule table.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds a classifier over rules. Messages no rule matches
// classify as TypeUnknown.
func NewClassifier(rules []Rule) *Classifier {
	return &Classifier{rules: append([]Rule(nil), rules...)}
}

var defaultClassifier = NewClassifier(defaultRules)

// Classify returns the type of m under the default rule table.
func Classify(m transcript.Message) EntryType {
	return defaultClassifier.Classify(m)
}

// Classify returns the type of m. It is total and deterministic.
func (c *Classifier) Classify(m transcript.Message) EntryType {
	return c.classifyText(m, transcript.ExtractText(m))
}

func (c *Classifier) classifyText(m transcript.Message, text string) EntryType {
	for _, r := range c.rules {
		if r.matches(m, text) {
			return r.Type
		}
	}
	return TypeUnknown
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
