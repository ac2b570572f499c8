package cli

import (
	"context"
	"fmt"

	"season-quiz-service/internal/config"
	"season-quiz-service/internal/infra/postgres"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			return postgres.Migrate(cmd.Context(), db)
		},
	}
}

func openDB(cfg config.Config) (*bun.DB, error) {
	if cfg.Postgres.URL == "" {
		return nil, fmt.Errorf("postgres url not configured")
	}
	return postgres.Open(cfg.Postgres.URL), nil
}

func openMigratedDB(ctx context.Context, cfg config.Config) (*bun.DB, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
