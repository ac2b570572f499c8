package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"season-quiz-service/internal/domain"
	"github.com/uptrace/bun"
)

// Catalog is the reference data loaded by Seed.
type Catalog struct {
	Seasons   []domain.Season
	Questions []domain.Question
	Users     []domain.User
}

// Validate checks every entry before anything is written.
func (c Catalog) Validate() error {
	active := 0
	for _, s := range c.Seasons {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("season %q: %w", s.ID, err)
		}
		if s.IsActive {
			active++
		}
	}
	if active > 1 {
		return fmt.Errorf("%d active seasons: %w", active, domain.ErrInvalidSeason)
	}
	for _, q := range c.Questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %q: %w", q.ID, err)
		}
	}
	for _, u := range c.Users {
		if u.ID == "" {
			return fmt.Errorf("user without id: %w", domain.ErrInvalidSubmission)
		}
	}
	return nil
}

// Seed upserts the catalog in a single transaction. User progress flags are left
// alone on conflict so re-seeding never resets qualification state.
func Seed(ctx context.Context, db *bun.DB, c Catalog) error {
	if err := c.Validate(); err != nil {
		return err
	}
	err := db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if len(c.Seasons) > 0 {
			if hasActive(c.Seasons) {
				if _, err := tx.NewUpdate().
					Model((*seasonRow)(nil)).
					Set("is_active = FALSE").
					Where("is_active").
					Exec(ctx); err != nil {
					return err
				}
			}
			rows := make([]seasonRow, 0, len(c.Seasons))
			for _, s := range c.Seasons {
				rows = append(rows, newSeasonRow(s))
			}
			if _, err := tx.NewInsert().
				Model(&rows).
				On("CONFLICT (id) DO UPDATE").
				Set("name = EXCLUDED.name").
				Set("start_at = EXCLUDED.start_at").
				Set("end_at = EXCLUDED.end_at").
				Set("is_active = EXCLUDED.is_active").
				Set("is_qualification_round = EXCLUDED.is_qualification_round").
				Set("minimum_score_percentage = EXCLUDED.minimum_score_percentage").
				Set("requires_qualification = EXCLUDED.requires_qualification").
				Exec(ctx); err != nil {
				return err
			}
		}

		if len(c.Questions) > 0 {
			rows := make([]questionRow, 0, len(c.Questions))
			for _, q := range c.Questions {
				rows = append(rows, newQuestionRow(q))
			}
			if _, err := tx.NewInsert().
				Model(&rows).
				On("CONFLICT (id) DO UPDATE").
				Set("season_id = EXCLUDED.season_id").
				Set("prompt = EXCLUDED.prompt").
				Set("options = EXCLUDED.options").
				Set("correct_option = EXCLUDED.correct_option").
				Set("category = EXCLUDED.category").
				Set("difficulty = EXCLUDED.difficulty").
				Set("time_limit_sec = EXCLUDED.time_limit_sec").
				Exec(ctx); err != nil {
				return err
			}
		}

		if len(c.Users) > 0 {
			rows := make([]userRow, 0, len(c.Users))
			for _, u := range c.Users {
				rows = append(rows, userRow{
					ID:                     u.ID,
					DisplayName:            u.DisplayName,
					HasPassedQualification: u.HasPassedQualification,
					IsDisqualified:         u.IsDisqualified,
				})
			}
			if _, err := tx.NewInsert().
				Model(&rows).
				On("CONFLICT (id) DO UPDATE").
				Set("display_name = EXCLUDED.display_name").
				Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	return translate(err, nil)
}

func hasActive(seasons []domain.Season) bool {
	for _, s := range seasons {
		if s.IsActive {
			return true
		}
	}
	return false
}
