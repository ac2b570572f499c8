package postgres

import (
	"time"

	"season-quiz-service/internal/domain"
	"github.com/uptrace/bun"
)

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                         string     `bun:"id,pk"`
	DisplayName                string     `bun:"display_name,notnull"`
	HasPassedQualification     bool       `bun:"has_passed_qualification,notnull"`
	LastQualificationAttemptAt *time.Time `bun:"last_qualification_attempt_at"`
	IsDisqualified             bool       `bun:"is_disqualified,notnull"`
	CreatedAt                  time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:                         r.ID,
		DisplayName:                r.DisplayName,
		HasPassedQualification:     r.HasPassedQualification,
		LastQualificationAttemptAt: r.LastQualificationAttemptAt,
		IsDisqualified:             r.IsDisqualified,
	}
}

type seasonRow struct {
	bun.BaseModel `bun:"table:seasons,alias:s"`

	ID                     string    `bun:"id,pk"`
	Name                   string    `bun:"name,notnull"`
	StartAt                time.Time `bun:"start_at,notnull"`
	EndAt                  time.Time `bun:"end_at,notnull"`
	IsActive               bool      `bun:"is_active,notnull"`
	IsQualificationRound   bool      `bun:"is_qualification_round,notnull"`
	MinimumScorePercentage *int      `bun:"minimum_score_percentage"`
	RequiresQualification  bool      `bun:"requires_qualification,notnull"`
}

func newSeasonRow(s domain.Season) seasonRow {
	return seasonRow{
		ID:                     s.ID,
		Name:                   s.Name,
		StartAt:                s.StartAt,
		EndAt:                  s.EndAt,
		IsActive:               s.IsActive,
		IsQualificationRound:   s.IsQualificationRound,
		MinimumScorePercentage: s.MinimumScorePercentage,
		RequiresQualification:  s.RequiresQualification,
	}
}

func (r seasonRow) toDomain() domain.Season {
	return domain.Season{
		ID:                     r.ID,
		Name:                   r.Name,
		StartAt:                r.StartAt,
		EndAt:                  r.EndAt,
		IsActive:               r.IsActive,
		IsQualificationRound:   r.IsQualificationRound,
		MinimumScorePercentage: r.MinimumScorePercentage,
		RequiresQualification:  r.RequiresQualification,
	}
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID            string   `bun:"id,pk"`
	SeasonID      string   `bun:"season_id,nullzero"`
	Prompt        string   `bun:"prompt,notnull"`
	Options       []string `bun:"options,type:jsonb,notnull"`
	CorrectOption string   `bun:"correct_option,notnull"`
	Category      string   `bun:"category,notnull"`
	Difficulty    string   `bun:"difficulty,notnull"`
	TimeLimitSec  int      `bun:"time_limit_sec,notnull"`
}

func newQuestionRow(q domain.Question) questionRow {
	return questionRow{
		ID:            q.ID,
		SeasonID:      q.SeasonID,
		Prompt:        q.Prompt,
		Options:       q.Options,
		CorrectOption: q.CorrectOption,
		Category:      q.Category,
		Difficulty:    q.Difficulty,
		TimeLimitSec:  q.TimeLimitSec,
	}
}

type attemptRow struct {
	bun.BaseModel `bun:"table:attempts,alias:a"`

	ID                    string     `bun:"id,pk"`
	UserID                string     `bun:"user_id,notnull"`
	SeasonID              string     `bun:"season_id,nullzero"`
	StartedAt             time.Time  `bun:"started_at,notnull"`
	CompletedAt           *time.Time `bun:"completed_at"`
	TotalQuestions        int        `bun:"total_questions,notnull"`
	Score                 int        `bun:"score,notnull"`
	PercentageScore       int        `bun:"percentage_score,notnull"`
	Completed             bool       `bun:"completed,notnull"`
	QualifiesForNextRound bool       `bun:"qualifies_for_next_round,notnull"`
}

func (r attemptRow) toDomain() domain.Attempt {
	return domain.Attempt{
		ID:                    r.ID,
		UserID:                r.UserID,
		SeasonID:              r.SeasonID,
		StartedAt:             r.StartedAt,
		CompletedAt:           r.CompletedAt,
		TotalQuestions:        r.TotalQuestions,
		Score:                 r.Score,
		PercentageScore:       r.PercentageScore,
		Completed:             r.Completed,
		QualifiesForNextRound: r.QualifiesForNextRound,
	}
}

type progressRow struct {
	bun.BaseModel `bun:"table:progress,alias:p"`

	ID         string    `bun:"id,pk"`
	AttemptID  string    `bun:"attempt_id,notnull"`
	QuestionID string    `bun:"question_id,notnull"`
	Answer     string    `bun:"answer,notnull"`
	IsCorrect  bool      `bun:"is_correct,notnull"`
	AnsweredAt time.Time `bun:"answered_at,notnull"`
}

func (r progressRow) toDomain() domain.Progress {
	return domain.Progress{
		ID:         r.ID,
		AttemptID:  r.AttemptID,
		QuestionID: r.QuestionID,
		Answer:     r.Answer,
		IsCorrect:  r.IsCorrect,
		AnsweredAt: r.AnsweredAt,
	}
}

func progressToDomain(rows []progressRow) []domain.Progress {
	out := make([]domain.Progress, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}
