package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/c50bossio/6fb-booking-sub001/pkg/middleware"
)

func tokenCmd() *cobra.Command {
	var (
		secret string
		user   string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("ADMIN_JWT_SECRET")
			}
			if secret == "" {
				return errors.New("no signing secret: pass --secret or set ADMIN_JWT_SECRET")
			}
			token, err := middleware.SignToken(secret, user, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC signing secret (defaults to ADMIN_JWT_SECRET)")
	cmd.Flags().StringVar(&user, "user", "operator", "User id claim")
	cmd.Flags().StringVar(&role, "role", middleware.RoleAdmin, "Role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}
