package cli

import (
	"context"
	"log"
	"time"

	"season-quiz-service/internal/app"
	"season-quiz-service/internal/config"
	"season-quiz-service/internal/domain"
	"season-quiz-service/internal/infra/memory"
	"season-quiz-service/internal/infra/postgres"
	infraredis "season-quiz-service/internal/infra/redis"
	"season-quiz-service/internal/policy"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

// backend holds the engine plus whatever must be closed on shutdown.
type backend struct {
	engine  *app.AttemptEngine
	closers []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackend wires Postgres when configured, the in-memory stores otherwise.
// Redis, when configured, fronts the question loader.
func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	b := &backend{}
	opts := []app.Option{app.WithPolicy(policy.New(cfg.DefaultThreshold(policy.DefaultThreshold)))}
	questionTTL := config.TTLDuration(cfg.Quiz.QuestionTTL, 10*time.Minute)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = redisClient.Close() })
	}

	bank := func(loader memory.QuestionLoader) app.QuestionBank {
		if redisClient != nil {
			return infraredis.NewQuestionBank(redisClient, loader, questionTTL)
		}
		return memory.NewQuestionBank(loader, questionTTL)
	}

	if cfg.Postgres.URL == "" {
		fixture, err := memoryFixture(cfg)
		if err != nil {
			b.Close()
			return nil, err
		}
		registry, err := memory.NewSeasonRegistry(fixture.Seasons...)
		if err != nil {
			b.Close()
			return nil, err
		}
		store := memory.NewAttemptStore(fixture.Users...)
		b.engine = app.NewAttemptEngine(registry, bank(memory.NewStaticQuestionLoader(fixture.Questions)), store, opts...)
		log.Printf("using in-memory stores: %d seasons, %d questions, %d users", len(fixture.Seasons), len(fixture.Questions), len(fixture.Users))
		return b, nil
	}

	db, err := openMigratedDB(ctx, cfg)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.closers = append(b.closers, func() { _ = db.Close() })

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.closers = append(b.closers, pool.Close)

	queryTimeout := config.TTLDuration(cfg.Quiz.QueryTimeout, 5*time.Second)
	b.engine = app.NewAttemptEngine(
		postgres.NewSeasonRegistry(db, queryTimeout),
		bank(postgres.NewQuestionLoader(pool)),
		postgres.NewAttemptStore(db),
		opts...,
	)
	return b, nil
}

func memoryFixture(cfg config.Config) (config.Fixture, error) {
	if cfg.Quiz.Fixture != "" {
		return config.LoadFixture(cfg.Quiz.Fixture)
	}
	return sampleFixture(time.Now()), nil
}

// sampleFixture is a small demo data set with an open qualification round.
func sampleFixture(now time.Time) config.Fixture {
	pct := 70
	return config.Fixture{
		Seasons: []domain.Season{
			{
				ID:                   "qualifier",
				Name:                 "Qualification round",
				StartAt:              now.AddDate(0, 0, -1),
				EndAt:                now.AddDate(0, 1, 0),
				IsActive:             true,
				IsQualificationRound: true,
			},
			{
				ID:                     "season-1",
				Name:                   "Season 1",
				StartAt:                now.AddDate(0, 1, 0),
				EndAt:                  now.AddDate(0, 2, 0),
				MinimumScorePercentage: &pct,
				RequiresQualification:  true,
			},
		},
		Questions: []domain.Question{
			{ID: "q1", SeasonID: "qualifier", Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectOption: "4", Category: "math", Difficulty: "easy", TimeLimitSec: 15},
			{ID: "q2", SeasonID: "qualifier", Prompt: "Capital of France?", Options: []string{"Paris", "Rome", "Madrid"}, CorrectOption: "Paris", Category: "geography", Difficulty: "easy", TimeLimitSec: 15},
			{ID: "q3", SeasonID: "qualifier", Prompt: "Largest planet?", Options: []string{"Mars", "Jupiter", "Venus"}, CorrectOption: "Jupiter", Category: "science", Difficulty: "medium", TimeLimitSec: 20},
			{ID: "q4", SeasonID: "season-1", Prompt: "Boiling point of water at sea level in C?", Options: []string{"90", "100", "110"}, CorrectOption: "100", Category: "science", Difficulty: "easy", TimeLimitSec: 15},
		},
		Users: []domain.User{
			{ID: "demo", DisplayName: "Demo player"},
		},
	}
}
