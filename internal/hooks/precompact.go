package hooks

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/lazypower/hippocampus/internal/transcript"
)

// handlePreCompact parses the transcript locally and hands the messages to
// the server, which chains the session's previous digest and stores the
// new one for the SessionStart hook that follows the compaction.
func handlePreCompact(client *Client, input *HookInput) error {
	if input.SessionID == "" {
		return fmt.Errorf("precompact: no session_id")
	}
	if input.TranscriptPath == "" {
		return fmt.Errorf("precompact: no transcript_path")
	}

	msgs, err := transcript.ParseFile(input.TranscriptPath)
	if err != nil {
		return fmt.Errorf("precompact: %w", err)
	}

	trigger := input.Trigger
	if trigger == "" {
		trigger = "manual"
	}

	body, err := json.Marshal(map[string]any{
		"messages": msgs,
		"project":  input.CWD,
		"trigger":  trigger,
	})
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}

	if _, err := client.Post("/api/sessions/"+url.PathEscape(input.SessionID)+"/compact", body); err != nil {
		return err
	}
	return nil
}
