package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lazypower/hippocampus/internal/hooks"
)

// Hook commands always exit 0; hooks.Handle reports failures on stderr.
func newHookCmd() *cobra.Command {
	hookCmd := &cobra.Command{
		Use:   "hook",
		Short: "Handle Claude Code hook events",
	}

	hookCmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Handle SessionStart hook",
		Run: func(cmd *cobra.Command, args []string) {
			hooks.Handle("start", os.Stdin)
		},
	})
	hookCmd.AddCommand(&cobra.Command{
		Use:   "precompact",
		Short: "Handle PreCompact hook",
		Run: func(cmd *cobra.Command, args []string) {
			hooks.Handle("precompact", os.Stdin)
		},
	})

	return hookCmd
}
