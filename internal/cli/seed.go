package cli

import (
	"fmt"
	"log"

	"season-quiz-service/internal/config"
	"season-quiz-service/internal/infra/postgres"
	infraredis "season-quiz-service/internal/infra/redis"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewSeedCmd loads a YAML fixture of seasons, questions and users into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert seasons, questions and users from a YAML fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			fixture, err := config.LoadFixture(file)
			if err != nil {
				return err
			}
			db, err := openMigratedDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			catalog := postgres.Catalog{Seasons: fixture.Seasons, Questions: fixture.Questions, Users: fixture.Users}
			if err := postgres.Seed(cmd.Context(), db, catalog); err != nil {
				return err
			}
			log.Printf("seeded %d seasons, %d questions, %d users", len(fixture.Seasons), len(fixture.Questions), len(fixture.Users))

			if cfg.Redis.Addr == "" {
				return nil
			}
			client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
			defer client.Close()
			bank := infraredis.NewQuestionBank(client, nil, 0)
			for _, s := range fixture.Seasons {
				if err := bank.Invalidate(cmd.Context(), s.ID); err != nil {
					log.Printf("invalidate question cache for %s: %v", s.ID, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to YAML fixture")
	return cmd
}
