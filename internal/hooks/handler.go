package hooks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Handle reads HookInput from stdin, dispatches on event, and writes any
// hook output to stdout. It never fails: errors are reported on stderr.
func Handle(event string, stdin io.Reader) {
	if err := Run(event, stdin, os.Stdout, NewClient()); err != nil {
		logError(err)
	}
}

// Run is Handle with explicit output and client. Output the host requires
// (the SessionStart JSON) is written even when an error is returned.
func Run(event string, stdin io.Reader, stdout io.Writer, client *Client) error {
	var input HookInput
	if err := json.NewDecoder(stdin).Decode(&input); err != nil {
		// Stdin may be empty for some events
		if event == "start" {
			WriteSessionStartOutput(stdout, "")
		}
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("decode stdin: %w", err)
	}

	// Server down: empty context, no error
	if !client.Healthy() {
		if event == "start" {
			WriteSessionStartOutput(stdout, "")
		}
		return nil
	}

	switch event {
	case "start":
		return handleStart(client, &input, stdout)
	case "precompact":
		return handlePreCompact(client, &input)
	default:
		return fmt.Errorf("unknown hook event: %s", event)
	}
}
