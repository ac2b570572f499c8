package postgres

import (
	"context"
	"database/sql"
	"time"

	"season-quiz-service/internal/app"
	"season-quiz-service/internal/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AttemptStore persists attempts, progress and user qualification state.
// Guards live in the schema: a partial unique index for active attempts and a
// unique (attempt_id, question_id) key for progress.
type AttemptStore struct {
	db *bun.DB
}

func NewAttemptStore(db *bun.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

func (s *AttemptStore) User(ctx context.Context, userID string) (domain.User, error) {
	var row userRow
	if err := s.db.NewSelect().Model(&row).Where("id = ?", userID).Scan(ctx); err != nil {
		return domain.User{}, translate(err, domain.ErrUserNotFound)
	}
	return row.toDomain(), nil
}

func (s *AttemptStore) SetDisqualified(ctx context.Context, userID string, disqualified bool) error {
	res, err := s.db.NewUpdate().
		Model((*userRow)(nil)).
		Set("is_disqualified = ?", disqualified).
		Where("id = ?", userID).
		Exec(ctx)
	return affectedOne(res, err, domain.ErrUserNotFound)
}

func (s *AttemptStore) Attempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	var row attemptRow
	if err := s.db.NewSelect().Model(&row).Where("id = ?", attemptID).Scan(ctx); err != nil {
		return domain.Attempt{}, translate(err, domain.ErrAttemptNotFound)
	}
	return row.toDomain(), nil
}

func (s *AttemptStore) FindActiveAttempt(ctx context.Context, userID, seasonID string) (domain.Attempt, error) {
	var row attemptRow
	err := s.db.NewSelect().
		Model(&row).
		Where("user_id = ?", userID).
		Where("season_id = ?", seasonID).
		Where("NOT completed").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Attempt{}, translate(err, domain.ErrAttemptNotFound)
	}
	return row.toDomain(), nil
}

func (s *AttemptStore) LatestAttempt(ctx context.Context, userID, seasonID string) (domain.Attempt, error) {
	var row attemptRow
	err := s.db.NewSelect().
		Model(&row).
		Where("user_id = ?", userID).
		Where("season_id = ?", seasonID).
		Order("started_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Attempt{}, translate(err, domain.ErrAttemptNotFound)
	}
	return row.toDomain(), nil
}

func (s *AttemptStore) LatestUserAttempt(ctx context.Context, userID string) (domain.Attempt, error) {
	var row attemptRow
	err := s.db.NewSelect().
		Model(&row).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Attempt{}, translate(err, domain.ErrAttemptNotFound)
	}
	return row.toDomain(), nil
}

func (s *AttemptStore) CreateAttempt(ctx context.Context, userID, seasonID string, totalQuestions int, startedAt time.Time) (domain.Attempt, error) {
	row := attemptRow{
		ID:             uuid.NewString(),
		UserID:         userID,
		SeasonID:       seasonID,
		StartedAt:      startedAt,
		TotalQuestions: totalQuestions,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return domain.Attempt{}, translate(err, nil)
	}
	return row.toDomain(), nil
}

func (s *AttemptStore) Progress(ctx context.Context, attemptID string) ([]domain.Progress, error) {
	return listProgress(ctx, s.db, attemptID)
}

// DeleteAttempt relies on ON DELETE CASCADE for progress rows.
func (s *AttemptStore) DeleteAttempt(ctx context.Context, attemptID string) error {
	res, err := s.db.NewDelete().
		Model((*attemptRow)(nil)).
		Where("id = ?", attemptID).
		Exec(ctx)
	return affectedOne(res, err, domain.ErrAttemptNotFound)
}

func (s *AttemptStore) Transact(ctx context.Context, fn func(ctx context.Context, tx app.AttemptTx) error) error {
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &attemptTx{tx: tx})
	})
	return translate(err, nil)
}

type attemptTx struct {
	tx bun.Tx
}

// LockAttempt takes a row lock held until commit; concurrent submitters for the
// same attempt queue here.
func (t *attemptTx) LockAttempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	var row attemptRow
	err := t.tx.NewSelect().
		Model(&row).
		Where("id = ?", attemptID).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		return domain.Attempt{}, translate(err, domain.ErrAttemptNotFound)
	}
	return row.toDomain(), nil
}

func (t *attemptTx) Progress(ctx context.Context, attemptID string) ([]domain.Progress, error) {
	return listProgress(ctx, t.tx, attemptID)
}

func (t *attemptTx) RecordProgress(ctx context.Context, p domain.Progress) error {
	row := progressRow{
		ID:         p.ID,
		AttemptID:  p.AttemptID,
		QuestionID: p.QuestionID,
		Answer:     p.Answer,
		IsCorrect:  p.IsCorrect,
		AnsweredAt: p.AnsweredAt,
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	_, err := t.tx.NewInsert().Model(&row).Exec(ctx)
	return translate(err, nil)
}

func (t *attemptTx) CompleteAttempt(ctx context.Context, attemptID string, outcome domain.Outcome, completedAt time.Time) error {
	res, err := t.tx.NewUpdate().
		Model((*attemptRow)(nil)).
		Set("completed = TRUE").
		Set("completed_at = ?", completedAt).
		Set("score = ?", outcome.Score).
		Set("percentage_score = ?", outcome.Percentage).
		Set("qualifies_for_next_round = ?", outcome.Qualifies).
		Where("id = ?", attemptID).
		Where("NOT completed").
		Exec(ctx)
	return affectedOne(res, err, domain.ErrAttemptCompleted)
}

func (t *attemptTx) RecordQualification(ctx context.Context, userID string, passed bool, at time.Time) error {
	res, err := t.tx.NewUpdate().
		Model((*userRow)(nil)).
		Set("has_passed_qualification = ?", passed).
		Set("last_qualification_attempt_at = ?", at).
		Where("id = ?", userID).
		Exec(ctx)
	return affectedOne(res, err, domain.ErrUserNotFound)
}

func listProgress(ctx context.Context, db bun.IDB, attemptID string) ([]domain.Progress, error) {
	var rows []progressRow
	err := db.NewSelect().
		Model(&rows).
		Where("attempt_id = ?", attemptID).
		Order("answered_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, translate(err, nil)
	}
	return progressToDomain(rows), nil
}

// affectedOne turns a zero-row write into none.
func affectedOne(res sql.Result, err error, none *domain.Error) error {
	if err != nil {
		return translate(err, none)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate(err, nil)
	}
	if n == 0 {
		return none
	}
	return nil
}
