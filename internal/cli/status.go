package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lazypower/hippocampus/internal/hooks"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server, database and compaction totals",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	out := cmd.OutOrStdout()

	addr := cfg.ListenAddr()
	serverState := styleError.Render("stopped")
	if hooks.NewClientWithURL("http://" + addr).Healthy() {
		serverState = styleSuccess.Render("running")
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := db.SchemaVersion()
	if err != nil {
		return err
	}
	totals, err := db.Totals()
	if err != nil {
		return err
	}

	size := "-"
	if fi, err := os.Stat(db.Path); err == nil {
		size = humanize.Bytes(uint64(fi.Size()))
	}

	fmt.Fprintf(out, "server:      %s (%s)\n", serverState, addr)
	fmt.Fprintf(out, "config:      %s\n", configPath(cmd))
	fmt.Fprintf(out, "database:    %s (%s, schema v%d)\n", db.Path, size, version)
	fmt.Fprintf(out, "sessions:    %s\n", humanize.Comma(int64(totals.Sessions)))
	fmt.Fprintf(out, "compactions: %s\n", humanize.Comma(int64(totals.Compactions)))
	if totals.TokensBefore > 0 {
		fmt.Fprintf(out, "tokens:      %s → %s (%s saved)\n",
			humanize.Comma(totals.TokensBefore),
			humanize.Comma(totals.TokensAfter),
			fmt.Sprintf("%.1f%%", 100*float64(totals.TokensBefore-totals.TokensAfter)/float64(totals.TokensBefore)))
	}
	return nil
}

func newSessionsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recently compacted sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd)
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			sessions, err := db.GetRecentSessions(limit)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions yet. Compact one first.")
				return nil
			}

			t := newTable("SESSION", "PROJECT", "COMPACTIONS", "LAST")
			for _, s := range sessions {
				project := s.Project
				if project == "" {
					project = styleDim.Render("-")
				}
				t.Row(s.SessionID, project, strconv.Itoa(s.CompactionCount), humanize.Time(time.UnixMilli(s.UpdatedAt)))
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of sessions")
	return cmd
}

func newPruneCmd() *cobra.Command {
	var keepDays int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old digests, keeping each session's latest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd)
			if !cmd.Flags().Changed("keep-days") {
				keepDays = cfg.Sweeper.KeepDays
			}
			if keepDays <= 0 {
				return fmt.Errorf("keep-days must be positive, got %d", keepDays)
			}

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			cutoff := time.Now().Add(-time.Duration(keepDays) * 24 * time.Hour)
			n, err := db.PruneCompactions(cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %s compactions older than %s\n",
				humanize.Comma(n), humanize.Time(cutoff))
			return nil
		},
	}
	cmd.Flags().IntVar(&keepDays, "keep-days", 30, "keep digests newer than this many days (default from config)")
	return cmd
}
