package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lazypower/hippocampus/internal/engine"
)

const sampleTranscript = `{"type":"user","message":{"role":"user","content":"Rename the config loader and keep the old name as an alias"}}
{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"Decision: add LoadFile and keep Load as a thin wrapper."},{"type":"tool_use","id":"t1","name":"Edit"}]}}
{"type":"user","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"edited config.go"}]}}
{"type":"assistant","message":{"role":"assistant","content":"ok"}}
`

// testEnv writes a config pointing the database into a temp dir and
// returns the config path and transcript path.
func testEnv(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()

	cfgPath := filepath.Join(dir, "config.toml")
	doc := "[database]\npath = \"" + filepath.ToSlash(filepath.Join(dir, "h.db")) + "\"\n"
	if err := os.WriteFile(cfgPath, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	tPath := filepath.Join(dir, "session.jsonl")
	if err := os.WriteFile(tPath, []byte(sampleTranscript), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
	t.Setenv("HIPPOCAMPUS_DB", "")
	return cfgPath, tPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "hippocampus dev") {
		t.Errorf("output = %q", out)
	}
}

func TestCompactPrintsDigest(t *testing.T) {
	cfgPath, tPath := testEnv(t)

	out, err := run(t, "-c", cfgPath, "compact", tPath)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if !strings.HasPrefix(out, engine.TitleLine) {
		t.Errorf("digest does not start with title: %q", out)
	}
	if !strings.Contains(out, "entries: 4") {
		t.Errorf("digest missing entry count: %q", out)
	}
}

func TestCompactJSON(t *testing.T) {
	cfgPath, tPath := testEnv(t)

	out, err := run(t, "-c", cfgPath, "compact", "--json", tPath)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	var d struct {
		Digest string `json:"digest"`
		Stats  struct {
			Entries int `json:"entries"`
		} `json:"stats"`
	}
	if err := json.Unmarshal([]byte(out), &d); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if d.Stats.Entries != 4 {
		t.Errorf("entries = %d, want 4", d.Stats.Entries)
	}
}

func TestCompactExplainJSON(t *testing.T) {
	cfgPath, tPath := testEnv(t)

	out, err := run(t, "-c", cfgPath, "compact", "--explain", "--json", tPath)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	var entries []engine.ScoredEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}
	want := []engine.EntryType{engine.TypeUserIntent, engine.TypeDecision, engine.TypeToolResult, engine.TypeEphemeral}
	for i, e := range entries {
		if e.Type != want[i] {
			t.Errorf("entry %d type = %s, want %s", i, e.Type, want[i])
		}
	}
}

func TestCompactExplainTable(t *testing.T) {
	cfgPath, tPath := testEnv(t)

	out, err := run(t, "-c", cfgPath, "compact", "--explain", tPath)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	for _, want := range []string{"RETENTION", "user_intent", "4 entries"} {
		if !strings.Contains(out, want) {
			t.Errorf("explain output missing %q:\n%s", want, out)
		}
	}
}

func TestCompactSessionChains(t *testing.T) {
	cfgPath, tPath := testEnv(t)

	if _, err := run(t, "-c", cfgPath, "compact", "--session", "s1", tPath); err != nil {
		t.Fatalf("first compact: %v", err)
	}
	out, err := run(t, "-c", cfgPath, "compact", "--session", "s1", tPath)
	if err != nil {
		t.Fatalf("second compact: %v", err)
	}
	if !strings.Contains(out, engine.PriorHeader) {
		t.Errorf("second digest missing prior context:\n%s", out)
	}

	list, err := run(t, "-c", cfgPath, "sessions")
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if !strings.Contains(list, "s1") {
		t.Errorf("sessions output missing s1:\n%s", list)
	}

	status, err := run(t, "-c", cfgPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(status, "compactions: 2") {
		t.Errorf("status output:\n%s", status)
	}
}

func TestCompactPreviousFile(t *testing.T) {
	cfgPath, tPath := testEnv(t)
	prev := filepath.Join(t.TempDir(), "prev.md")
	os.WriteFile(prev, []byte("earlier work on the parser"), 0o644)

	out, err := run(t, "-c", cfgPath, "compact", "--previous", prev, tPath)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if !strings.Contains(out, "earlier work on the parser") {
		t.Errorf("previous summary not spliced in:\n%s", out)
	}
}

func TestCompactInvalidConfig(t *testing.T) {
	_, tPath := testEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "bad.toml")
	os.WriteFile(cfgPath, []byte("[compaction]\nmax_sparse_index_tokens = -5\n"), 0o644)

	// A config that fails validation falls back to defaults.
	out, err := run(t, "-c", cfgPath, "compact", tPath)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if !strings.Contains(out, "sparse<0.25 compress<0.65") {
		t.Errorf("expected default thresholds:\n%s", out)
	}
}

func TestPruneAndEmptySessions(t *testing.T) {
	cfgPath, _ := testEnv(t)

	out, err := run(t, "-c", cfgPath, "sessions")
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if !strings.Contains(out, "No sessions yet") {
		t.Errorf("output = %q", out)
	}

	out, err = run(t, "-c", cfgPath, "prune", "--keep-days", "7")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if !strings.HasPrefix(out, "pruned 0 compactions") {
		t.Errorf("output = %q", out)
	}

	if _, err := run(t, "-c", cfgPath, "prune", "--keep-days", "0"); err == nil {
		t.Error("expected error for keep-days 0")
	}
}
