package cli

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/isdelr/schedpanel/internal/config"
	"github.com/isdelr/schedpanel/internal/logger"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the shared event store schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger.Init(cfg.LogLevel, cfg.LogJSON)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if !cfg.Clustered() {
				log.Info().Msg("No cluster driver configured, nothing to migrate")
				return nil
			}
			_, closeStore, err := openSharedStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			closeStore()
			return nil
		},
	}
}
