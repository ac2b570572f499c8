package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"season-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionLoader reads a season's question set from Postgres for the caches.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context, seasonID string) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, season_id, prompt, options, correct_option, category, difficulty, time_limit_sec
		FROM questions
		WHERE season_id = $1
		ORDER BY id`, seasonID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var (
			q   domain.Question
			raw []byte
		)
		if err := rows.Scan(&q.ID, &q.SeasonID, &q.Prompt, &raw, &q.CorrectOption, &q.Category, &q.Difficulty, &q.TimeLimitSec); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(raw, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options for %s: %w", q.ID, err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return out, nil
}
