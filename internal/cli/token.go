package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/isdelr/schedpanel/internal/auth"
	"github.com/isdelr/schedpanel/internal/config"
)

func newTokenCmd() *cobra.Command {
	var (
		operator string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the control routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("%w: JWT_SECRET is not set", config.ErrInvalid)
			}
			authenticator, err := auth.NewAuthenticator(cfg.JWTSecret)
			if err != nil {
				return err
			}
			token, err := authenticator.GenerateJWT(operator, ttl)
			if err != nil {
				return err
			}
			cmd.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&operator, "operator", "admin", "operator name recorded in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
