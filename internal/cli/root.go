// Package cli holds the schedpanel command line.
package cli

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X github.com/isdelr/schedpanel/internal/cli.Version=...".
var Version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "schedpanel",
		Short:         "Web panel for observing and controlling a job scheduler",
		Args:          cobra.NoArgs,
		RunE:          runServe,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addServeFlags(root)
	root.AddCommand(newServeCmd(), newMigrateCmd(), newTokenCmd(), newVersionCmd())
	return root
}

// Execute runs the root command and exits non-zero on failure. Without a subcommand it serves.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("schedpanel failed")
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the panel version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(Version)
		},
	}
}
