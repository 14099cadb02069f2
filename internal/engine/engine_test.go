package engine

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/lazypower/hippocampus/internal/transcript"
)

func TestCompactEmpty(t *testing.T) {
	d, err := Compact(nil, DefaultParams(), "")
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if !strings.HasPrefix(d.Text, TitleLine+"\n") {
		t.Errorf("digest does not start with title:\n%s", d.Text)
	}
	if !strings.Contains(d.Text, "entries: 0") {
		t.Errorf("digest missing entries: 0\n%s", d.Text)
	}
	if !strings.Contains(d.Text, "0tok → 0tok") {
		t.Errorf("digest missing 0tok → 0tok\n%s", d.Text)
	}
}

func TestCompactTrivialExchange(t *testing.T) {
	msgs := []transcript.Message{msg("user", "hi"), msg("assistant", "Hello!")}

	d, err := Compact(msgs, DefaultParams(), "")
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if !strings.Contains(d.Text, "<!-- entries: 2 |") {
		t.Errorf("digest missing entries: 2\n%s", d.Text)
	}
	if !strings.Contains(d.Text, "hippocampus stats:") {
		t.Errorf("digest missing stats line\n%s", d.Text)
	}
}

func TestCompactDecisionFloorSurvivesDecay(t *testing.T) {
	msgs := []transcript.Message{msg("assistant", "We decided to use PostgreSQL for the storage layer.")}
	for i := 0; i < 50; i++ {
		msgs = append(msgs, transcript.Message{
			Role:     "tool",
			ToolName: "Bash",
			Content:  transcript.TextContent(fmt.Sprintf("filler output %d", i)),
		})
	}

	entries, err := ScoreAll(msgs, DefaultParams())
	if err != nil {
		t.Fatalf("ScoreAll: %v", err)
	}
	decision := entries[0]
	if decision.Type != TypeDecision {
		t.Fatalf("Type = %s, want decision", decision.Type)
	}
	if decision.Age != 50 {
		t.Errorf("Age = %d, want 50", decision.Age)
	}
	if decision.Retention < 0.50 {
		t.Errorf("Retention = %v, want >= 0.50", decision.Retention)
	}
}

func TestCompactSparseBudgetDrops(t *testing.T) {
	var msgs []transcript.Message
	for i := 0; i < 20; i++ {
		msgs = append(msgs, transcript.Message{
			Role:     "tool",
			ToolName: "Bash",
			Content:  transcript.TextContent(fmt.Sprintf("output %02d ", i) + strings.Repeat("x", 400)),
		})
	}
	for i := 0; i < 5; i++ {
		msgs = append(msgs, msg("user", fmt.Sprintf("follow-up question %d", i)))
	}

	p := DefaultParams()
	p.MaxSparseIndexTokens = 60

	d, err := Compact(msgs, p, "")
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if d.Stats.Sparse != 20 {
		t.Errorf("Sparse = %d, want 20", d.Stats.Sparse)
	}
	if d.Stats.Dropped == 0 {
		t.Fatal("Dropped = 0, want nonzero")
	}
	if !strings.Contains(d.Text, fmt.Sprintf("<!-- %d entries dropped", d.Stats.Dropped)) {
		t.Errorf("dropped count not rendered\n%s", d.Text)
	}

	used := 0
	for _, line := range strings.Split(d.Text, "\n") {
		if strings.HasPrefix(line, "[TOOL:Bash]") {
			used += transcript.EstimateTextTokens(line)
		}
	}
	if used > p.MaxSparseIndexTokens {
		t.Errorf("sparse tokens = %d, budget %d", used, p.MaxSparseIndexTokens)
	}
}

func TestCompactTiersExhaustive(t *testing.T) {
	var msgs []transcript.Message
	for i := 0; i < 40; i++ {
		switch i % 4 {
		case 0:
			msgs = append(msgs, msg("user", fmt.Sprintf("request %d: update the handler", i)))
		case 1:
			msgs = append(msgs, msg("assistant", fmt.Sprintf("We decided on option %d", i)))
		case 2:
			msgs = append(msgs, msg("tool", fmt.Sprintf("tool output %d", i)))
		default:
			msgs = append(msgs, msg("assistant", "ok"))
		}
	}

	p := DefaultParams()
	entries, err := ScoreAll(msgs, p)
	if err != nil {
		t.Fatalf("ScoreAll: %v", err)
	}
	d := Assemble(entries, msgs, p, "")

	var sparse, compressed, full int
	for _, e := range entries {
		switch TierOf(e.Retention, p) {
		case TierSparse:
			sparse++
		case TierCompressed:
			compressed++
		case TierFull:
			full++
		}
		if e.Retention < 0 || e.Retention > 1 {
			t.Errorf("entry %d retention %v outside [0,1]", e.Index, e.Retention)
		}
		if floor := p.Floor(e.Type); e.Retention < floor {
			t.Errorf("entry %d retention %v below floor %v", e.Index, e.Retention, floor)
		}
	}
	if sparse+compressed+full != len(msgs) {
		t.Errorf("tiers cover %d entries, want %d", sparse+compressed+full, len(msgs))
	}
	if d.Stats.Sparse != sparse || d.Stats.Compressed != compressed || d.Stats.Kept != full {
		t.Errorf("Stats = %+v, want sparse=%d compressed=%d kept=%d", d.Stats, sparse, compressed, full)
	}
}

func TestCompactInvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"thresholds inverted", func(p *Params) { p.SparseThreshold, p.CompressThreshold = 0.7, 0.3 }},
		{"thresholds equal", func(p *Params) { p.SparseThreshold = p.CompressThreshold }},
		{"negative rate", func(p *Params) { p.DecayRates[TypeContext] = -0.1 }},
		{"zero rate", func(p *Params) { p.DecayRates[TypeEphemeral] = 0 }},
		{"floor above one", func(p *Params) { p.RetentionFloor[TypeDecision] = 1.5 }},
		{"threshold above one", func(p *Params) { p.CompressThreshold = 1.2 }},
		{"zero budget", func(p *Params) { p.MaxSparseIndexTokens = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)

			d, err := Compact([]transcript.Message{msg("user", "hello there")}, p, "")
			if !errors.Is(err, ErrInvalidParams) {
				t.Fatalf("err = %v, want ErrInvalidParams", err)
			}
			if d.Text != "" {
				t.Errorf("partial digest rendered: %q", d.Text)
			}
		})
	}
}

func TestEngineSnapshotsParams(t *testing.T) {
	p := DefaultParams()
	eng, err := New(p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	p.DecayRates[TypeDecision] = 9
	if got := eng.Params().Rate(TypeDecision); got != 0.03 {
		t.Errorf("engine rate = %v after caller mutation, want 0.03", got)
	}
}

func TestEngineConcurrentCompact(t *testing.T) {
	eng, err := New(DefaultParams())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	want := eng.Compact([]transcript.Message{msg("user", "shared request"), msg("assistant", "working on it")}, "").Text

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := eng.Compact([]transcript.Message{msg("user", "shared request"), msg("assistant", "working on it")}, "").Text
			if got != want {
				errs <- got
			}
		}()
	}
	wg.Wait()
	close(errs)

	for got := range errs {
		t.Errorf("concurrent digest differs:\n%s", got)
	}
}
