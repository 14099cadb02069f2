package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lazypower/hippocampus/internal/config"
	"github.com/lazypower/hippocampus/internal/store"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "hippocampus",
		Short:         "Decay-based context compaction for coding agents",
		Long:          "Hippocampus compacts agent transcripts by how much each entry still matters: recent intent and decisions stay verbatim, stale tool output fades to one-line pointers.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config file (default ~/.hippocampus/config.toml)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newCompactCmd())
	rootCmd.AddCommand(newHookCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newPruneCmd())

	return rootCmd
}

func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.DefaultPath()
	}
	return path
}

// loadConfig reads the config file. A broken file is reported and the
// defaults are used instead.
func loadConfig(cmd *cobra.Command) config.Config {
	cfg, err := config.Load(configPath(cmd))
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v (using defaults)\n", err)
	}
	return cfg
}

// openDB opens the database configured in cfg.
func openDB(cfg config.Config) (*store.DB, error) {
	db, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return db, nil
}
