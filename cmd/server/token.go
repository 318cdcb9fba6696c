package main

import (
	"fmt"
	"time"

	"cardarena/internal/auth"
	"cardarena/internal/store/postgres"

	"github.com/spf13/cobra"
)

// newTokenCmd issues a session token, creating the user in the database first.
func newTokenCmd(a *app) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <username>",
		Short: "Create a user if needed and print a signed session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]
			if a.cfg.Postgres.DSN != "" {
				store, err := postgres.Open(cmd.Context(), a.cfg.Postgres.DSN, 2)
				if err != nil {
					return err
				}
				defer store.Close()
				u, err := store.EnsureUser(cmd.Context(), username)
				if err != nil {
					return err
				}
				a.log.Info("user ready", "user_id", u.ID, "user", u.Username)
			} else if !a.cfg.Auth.AutoProvision {
				a.log.Warn("memory mode without auth.auto_provision: the server will not know this user")
			}

			tok, err := auth.NewVerifier(a.cfg.Auth.JWTSecret, a.cfg.Auth.CookieName).Sign(username, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
