package hooks

// HookInput represents the JSON that Claude Code sends on stdin to hook handlers.
// All fields are optional; different events populate different subsets.
type HookInput struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	CWD            string `json:"cwd"`
	HookEventName  string `json:"hook_event_name"`

	// SessionStart: "startup", "resume", "clear" or "compact"
	Source string `json:"source,omitempty"`

	// PreCompact: "manual" or "auto"
	Trigger            string `json:"trigger,omitempty"`
	CustomInstructions string `json:"custom_instructions,omitempty"`
}

// restoresContext reports whether a SessionStart source continues an
// earlier conversation whose digest should be injected.
func (h *HookInput) restoresContext() bool {
	switch h.Source {
	case "compact", "resume":
		return true
	}
	return false
}
