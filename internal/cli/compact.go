package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lazypower/hippocampus/internal/engine"
	"github.com/lazypower/hippocampus/internal/store"
	"github.com/lazypower/hippocampus/internal/transcript"
)

type compactOpts struct {
	previous string
	session  string
	explain  bool
	asJSON   bool
}

func newCompactCmd() *cobra.Command {
	var opts compactOpts

	cmd := &cobra.Command{
		Use:   "compact <transcript.jsonl>",
		Short: "Compact a transcript and print the digest",
		Long: `Compact a JSONL transcript ("-" reads stdin) and print the digest.

With --session the session's latest stored digest becomes the prior
context and the new digest is stored. --previous supplies prior context
from a file instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompact(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.previous, "previous", "", "file holding the previous summary")
	cmd.Flags().StringVar(&opts.session, "session", "", "chain and store the digest under this session id")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "show per-entry scores instead of the digest")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print JSON")

	return cmd
}

func runCompact(cmd *cobra.Command, source string, opts compactOpts) error {
	cfg := loadConfig(cmd)
	params, err := cfg.Compaction.Params()
	if err != nil {
		return fmt.Errorf("compaction config: %w", err)
	}

	msgs, err := readTranscript(cmd, source)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if opts.explain {
		entries, err := engine.ScoreAll(msgs, params)
		if err != nil {
			return err
		}
		if opts.asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		printExplain(out, entries, params)
		return nil
	}

	var previous string
	if opts.previous != "" {
		data, err := os.ReadFile(opts.previous)
		if err != nil {
			return fmt.Errorf("read previous summary: %w", err)
		}
		previous = string(data)
	}

	var db *store.DB
	if opts.session != "" {
		db, err = openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if previous == "" {
			latest, err := db.LatestCompaction(opts.session)
			if err != nil {
				return err
			}
			if latest != nil {
				previous = latest.Digest
			}
		}
	}

	digest, err := engine.Compact(msgs, params, previous)
	if err != nil {
		return err
	}

	if db != nil {
		saved, err := db.SaveCompaction(store.Compaction{
			SessionID:    opts.session,
			Trigger:      "cli",
			Digest:       digest.Text,
			Entries:      digest.Stats.Entries,
			Sparse:       digest.Stats.Sparse,
			Compressed:   digest.Stats.Compressed,
			Kept:         digest.Stats.Kept,
			Dropped:      digest.Stats.Dropped,
			TokensBefore: digest.Stats.TokensBefore,
			TokensAfter:  digest.Stats.TokensAfter,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "stored compaction %s for session %s\n", saved.ID, opts.session)
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(digest)
	}
	fmt.Fprintln(out, digest.Text)
	return nil
}

func readTranscript(cmd *cobra.Command, source string) ([]transcript.Message, error) {
	if source == "-" {
		msgs, err := transcript.Parse(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return msgs, nil
	}
	return transcript.ParseFile(source)
}

func printExplain(w io.Writer, entries []engine.ScoredEntry, p engine.Params) {
	t := newTable("#", "ROLE", "TYPE", "IMPORTANCE", "RETENTION", "TIER", "TOKENS", "PREVIEW")

	counts := make(map[engine.Tier]int)
	for _, e := range entries {
		tier := engine.TierOf(e.Retention, p)
		counts[tier]++
		t.Row(
			strconv.Itoa(e.Index),
			e.Role,
			string(e.Type),
			strconv.FormatFloat(e.Importance, 'f', 2, 64),
			strconv.FormatFloat(e.Retention, 'f', 2, 64),
			tierStyles[tier.String()].Render(tier.String()),
			strconv.Itoa(e.Tokens),
			transcript.Truncate(transcript.Flatten(e.Preview), 60),
		)
	}

	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, styleDim.Render(fmt.Sprintf("%d entries: %d full, %d compressed, %d sparse",
		len(entries), counts[engine.TierFull], counts[engine.TierCompressed], counts[engine.TierSparse])))
}
