package hooks

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// handleStart injects the session's latest digest when the conversation
// continues after a compaction or resume. Anything else gets empty context.
func handleStart(client *Client, input *HookInput, stdout io.Writer) error {
	if input.SessionID == "" || !input.restoresContext() {
		return WriteSessionStartOutput(stdout, "")
	}

	data, err := client.Get("/api/sessions/" + url.PathEscape(input.SessionID) + "/summary")
	if err != nil {
		WriteSessionStartOutput(stdout, "")
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil
		}
		return err
	}

	var resp struct {
		Digest string `json:"digest"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		WriteSessionStartOutput(stdout, "")
		return fmt.Errorf("decode summary: %w", err)
	}

	return WriteSessionStartOutput(stdout, resp.Digest)
}
