package main

import (
	"context"
	"fmt"

	"github.com/okian/xpand/internal/config"
	"github.com/okian/xpand/pkg/logger"
	"github.com/spf13/cobra"
)

type migrator interface {
	Migrate(ctx context.Context) error
}

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if c.cfg.Store != config.StoreMySQL {
				return fmt.Errorf("migrate needs store=%s, got %q", config.StoreMySQL, c.cfg.Store)
			}
			store, err := openStore(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			m, ok := store.(migrator)
			if !ok {
				return fmt.Errorf("store %q has no schema", c.cfg.Store)
			}
			if err := m.Migrate(ctx); err != nil {
				return err
			}
			logger.Get().Info(ctx, "schema migrated")
			return nil
		},
	}
}
