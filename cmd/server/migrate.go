package main

import (
	"context"
	"fmt"

	"cardarena/internal/store/postgres"
	cache "cardarena/internal/store/redis"

	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Apply or roll back the database schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Postgres.DSN == "" {
				return fmt.Errorf("postgres.dsn is not set")
			}
			m, err := postgres.NewMigrator(a.cfg.Postgres.DSN, a.log.Named("migrate"))
			if err != nil {
				return err
			}
			defer m.Close()

			switch args[0] {
			case "up":
				if err := m.Up(); err != nil {
					return err
				}
				return a.dropCatalogCache(cmd.Context())
			case "down":
				if err := m.Down(); err != nil {
					return err
				}
				return a.dropCatalogCache(cmd.Context())
			default:
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", v, dirty)
				return nil
			}
		},
	}
	return cmd
}

// dropCatalogCache clears the Redis card list after a schema change touched the
// cards table. Without a Redis address there is nothing to clear.
func (a *app) dropCatalogCache(ctx context.Context) error {
	if a.cfg.Redis.Addr == "" {
		return nil
	}
	client, err := cache.Connect(ctx, a.cfg.Redis.Addr)
	if err != nil {
		a.log.Warn("catalog cache not cleared", "error", err)
		return nil
	}
	defer client.Close()
	if err := cache.InvalidateCatalog(ctx, client); err != nil {
		return fmt.Errorf("clear catalog cache: %w", err)
	}
	a.log.Info("catalog cache cleared")
	return nil
}
