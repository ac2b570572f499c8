package app

import (
	"context"
	"time"

	"season-quiz-service/internal/domain"
)

// SeasonRegistry reads seasons and switches the active one.
type SeasonRegistry interface {
	// EligibleSeason returns the active season of kind whose window contains now,
	// or domain.ErrNoEligibleSeason.
	EligibleSeason(ctx context.Context, kind domain.SeasonKind, now time.Time) (domain.Season, error)
	Season(ctx context.Context, seasonID string) (domain.Season, error)
	ListSeasons(ctx context.Context) ([]domain.Season, error)
	// Activate deactivates every season and activates seasonID in one transaction.
	Activate(ctx context.Context, seasonID string) (domain.Season, error)
}

// QuestionBank serves season question sets (cache/backing store).
type QuestionBank interface {
	QuestionsForSeason(ctx context.Context, seasonID string) ([]domain.Question, error)
	// CorrectAnswers maps question id to correct option for ids that belong to the season.
	CorrectAnswers(ctx context.Context, seasonID string, questionIDs []string) (map[string]string, error)
}

// AttemptStore owns attempt, progress and user qualification records.
type AttemptStore interface {
	User(ctx context.Context, userID string) (domain.User, error)
	SetDisqualified(ctx context.Context, userID string, disqualified bool) error

	Attempt(ctx context.Context, attemptID string) (domain.Attempt, error)
	FindActiveAttempt(ctx context.Context, userID, seasonID string) (domain.Attempt, error)
	// LatestAttempt returns the most recent attempt for the pair, completed or not.
	LatestAttempt(ctx context.Context, userID, seasonID string) (domain.Attempt, error)
	LatestUserAttempt(ctx context.Context, userID string) (domain.Attempt, error)
	// CreateAttempt fails with domain.ErrAttemptExists when an active attempt exists for the pair.
	CreateAttempt(ctx context.Context, userID, seasonID string, totalQuestions int, startedAt time.Time) (domain.Attempt, error)
	Progress(ctx context.Context, attemptID string) ([]domain.Progress, error)
	// DeleteAttempt removes an attempt and its progress rows.
	DeleteAttempt(ctx context.Context, attemptID string) error

	// Transact runs fn in a single all-or-nothing unit of work.
	Transact(ctx context.Context, fn func(ctx context.Context, tx AttemptTx) error) error
}

// AttemptTx is the write surface available inside AttemptStore.Transact.
type AttemptTx interface {
	// LockAttempt loads the attempt and holds it exclusively until the unit of work ends.
	LockAttempt(ctx context.Context, attemptID string) (domain.Attempt, error)
	Progress(ctx context.Context, attemptID string) ([]domain.Progress, error)
	// RecordProgress fails with domain.ErrAlreadyAnswered for a duplicate (attempt, question).
	RecordProgress(ctx context.Context, p domain.Progress) error
	// CompleteAttempt fails with domain.ErrAttemptCompleted when already sealed.
	CompleteAttempt(ctx context.Context, attemptID string, outcome domain.Outcome, completedAt time.Time) error
	RecordQualification(ctx context.Context, userID string, passed bool, at time.Time) error
}
