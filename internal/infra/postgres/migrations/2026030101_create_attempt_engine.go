package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_create_attempt_engine.sql
var createAttemptEngineSQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createAttemptEngineSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `
				DROP TABLE IF EXISTS progress;
				DROP TABLE IF EXISTS attempts;
				DROP FUNCTION IF EXISTS attempts_freeze_total_questions();
				DROP TABLE IF EXISTS questions;
				DROP TABLE IF EXISTS seasons;
				DROP TABLE IF EXISTS users;
			`)
			return err
		},
	)
}
