package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lazypower/hippocampus/internal/transcript"
)

// Section headers and markers of the rendered digest.
const (
	TitleLine         = "# hippocampus.md Compaction"
	GoalHeader        = "## Goal"
	PriorHeader       = "## Prior Context"
	ActiveHeader      = "## Active Context (high retention)"
	CompressedHeader  = "## Compressed (mid retention — re-fetch if needed)"
	SparseIndexHeader = "## Sparse Index (decayed — pointers only)"
)

// Preview lengths per rendering.
const (
	goalChars       = 150
	compressedChars = 200
	toolPtrChars    = 80
	quotedPtrChars  = 100
	ephemeralChars  = 40
	otherPtrChars   = 60
)

// Tier is the retention band an entry falls into.
type Tier int

const (
	TierSparse Tier = iota
	TierCompressed
	TierFull
)

func (t Tier) String() string {
	switch t {
	case TierFull:
		return "full"
	case TierCompressed:
		return "compressed"
	default:
		return "sparse"
	}
}

// TierOf places a retention score against the two thresholds.
func TierOf(retention float64, p Params) Tier {
	switch {
	case retention < p.SparseThreshold:
		return TierSparse
	case retention < p.CompressThreshold:
		return TierCompressed
	default:
		return TierFull
	}
}

// Stats counts what a compaction kept and what it cost. Sparse includes
// the Dropped entries; Entries == Sparse + Compressed + Kept.
type Stats struct {
	Entries      int     `json:"entries"`
	Sparse       int     `json:"sparse"`
	Compressed   int     `json:"compressed"`
	Kept         int     `json:"kept"`
	Dropped      int     `json:"dropped"`
	TokensBefore int     `json:"tokens_before"`
	TokensAfter  int     `json:"tokens_after"`
	Ratio        float64 `json:"ratio"`
}

// RatioText renders Ratio the way the stats comment does.
func (s Stats) RatioText() string {
	if math.IsInf(s.Ratio, 0) || s.TokensAfter == 0 {
		return "∞"
	}
	return strconv.FormatFloat(s.Ratio, 'f', 1, 64)
}

// MarshalJSON encodes an infinite ratio as null.
func (s Stats) MarshalJSON() ([]byte, error) {
	type plain Stats
	var ratio *float64
	if !math.IsInf(s.Ratio, 0) && !math.IsNaN(s.Ratio) {
		ratio = &s.Ratio
	}
	return json.Marshal(struct {
		plain
		Ratio *float64 `json:"ratio"`
	}{plain(s), ratio})
}

// Digest is the rendered result of a compaction pass.
type Digest struct {
	Text  string   `json:"digest"`
	Stats Stats    `json:"stats"`
	Goals []string `json:"goals,omitempty"`
}

// Assemble buckets scored entries into tiers and renders the digest.
// msgs must be the sequence the entries were scored from; it supplies
// tool names for pointer lines.
func Assemble(entries []ScoredEntry, msgs []transcript.Message, p Params, previous string) Digest {
	var (
		stats      = Stats{Entries: len(entries)}
		goals      []string
		full       []ScoredEntry
		compressed []ScoredEntry
		pointers   []string
		sparseUsed int
	)

	for _, e := range entries {
		stats.TokensBefore += e.Tokens

		if e.Type == TypeUserIntent && e.Retention >= p.SparseThreshold {
			goals = append(goals, transcript.Truncate(transcript.Flatten(e.Preview), goalChars))
		}

		switch TierOf(e.Retention, p) {
		case TierFull:
			stats.Kept++
			full = append(full, e)
		case TierCompressed:
			stats.Compressed++
			compressed = append(compressed, e)
		default:
			stats.Sparse++
			line := pointerLine(e, msgs)
			cost := transcript.EstimateTextTokens(line)
			if sparseUsed+cost > p.MaxSparseIndexTokens {
				stats.Dropped++
				continue
			}
			sparseUsed += cost
			pointers = append(pointers, line)
		}
	}

	var body strings.Builder
	after := 0

	if len(goals) > 0 {
		body.WriteString("\n" + GoalHeader + "\n\n")
		for _, g := range goals {
			body.WriteString("- " + g + "\n")
		}
	}

	if strings.TrimSpace(previous) != "" {
		body.WriteString("\n" + PriorHeader + "\n\n")
		body.WriteString(strings.TrimRight(previous, "\n"))
		body.WriteString("\n")
	}

	if len(full) > 0 {
		body.WriteString("\n" + ActiveHeader + "\n")
		for _, e := range full {
			block := fmt.Sprintf("\n### [%s] retention=%.2f\n%s\n", e.Type, e.Retention, e.Preview)
			after += transcript.EstimateTextTokens(block)
			body.WriteString(block)
		}
	}

	if len(compressed) > 0 {
		body.WriteString("\n" + CompressedHeader + "\n\n")
		for _, e := range compressed {
			line := fmt.Sprintf("- [%s r=%.2f] %s", e.Type, e.Retention,
				transcript.Truncate(transcript.Flatten(e.Preview), compressedChars))
			after += transcript.EstimateTextTokens(line)
			body.WriteString(line + "\n")
		}
	}

	if len(pointers) > 0 || stats.Dropped > 0 {
		body.WriteString("\n" + SparseIndexHeader + "\n\n")
		for _, line := range pointers {
			body.WriteString(line + "\n")
		}
		after += sparseUsed
		if stats.Dropped > 0 {
			fmt.Fprintf(&body, "<!-- %d entries dropped (sparse index budget: %d tokens) -->\n",
				stats.Dropped, p.MaxSparseIndexTokens)
		}
	}

	stats.TokensAfter = after
	if after > 0 {
		stats.Ratio = float64(stats.TokensBefore) / float64(after)
	} else {
		stats.Ratio = math.Inf(1)
	}

	var b strings.Builder
	b.WriteString(TitleLine + "\n")
	b.WriteString(decayComment(p) + "\n")
	fmt.Fprintf(&b, "<!-- entries: %d | sparse: %d | compressed: %d | kept: %d | dropped: %d -->\n",
		stats.Entries, stats.Sparse, stats.Compressed, stats.Kept, stats.Dropped)
	b.WriteString(body.String())
	fmt.Fprintf(&b, "\n<!-- hippocampus stats: %dtok → %dtok (%s× compression) -->\n",
		stats.TokensBefore, stats.TokensAfter, stats.RatioText())

	return Digest{Text: b.String(), Stats: stats, Goals: goals}
}

func decayComment(p Params) string {
	rates := make([]string, 0, len(EntryTypes))
	for _, t := range EntryTypes {
		rates = append(rates, fmt.Sprintf("%s=%s", t, formatFloat(p.Rate(t))))
	}
	return fmt.Sprintf("<!-- decay: %s | sparse<%s compress<%s -->",
		strings.Join(rates, " "), formatFloat(p.SparseThreshold), formatFloat(p.CompressThreshold))
}

// pointerLine renders the sparse-index reference for one entry.
func pointerLine(e ScoredEntry, msgs []transcript.Message) string {
	preview := transcript.Flatten(e.Preview)

	switch e.Type {
	case TypeToolResult:
		name := "unknown"
		if e.Index >= 0 && e.Index < len(msgs) {
			name = transcript.ToolName(msgs[e.Index])
		}
		return fmt.Sprintf("[TOOL:%s] %dtok → \"%s\"", name, e.Tokens, transcript.Truncate(preview, toolPtrChars))
	case TypeUserIntent:
		return fmt.Sprintf("[USER] \"%s\"", transcript.Truncate(preview, quotedPtrChars))
	case TypeDecision:
		return fmt.Sprintf("[DECISION] \"%s\"", transcript.Truncate(preview, quotedPtrChars))
	case TypeEphemeral:
		return "[EPHEMERAL] " + transcript.Truncate(preview, ephemeralChars)
	}

	role := strings.ToUpper(e.Role)
	if role == "" {
		role = "UNKNOWN"
	}
	return fmt.Sprintf("[%s] %s", role, transcript.Truncate(preview, otherPtrChars))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
