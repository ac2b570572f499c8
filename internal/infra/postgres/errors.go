package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"season-quiz-service/internal/domain"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
	codeExclusionViolation  = "23P01"
	codeQueryCanceled       = "57014"
)

// conflictByConstraint maps guard constraints to the sentinel callers expect.
var conflictByConstraint = map[string]*domain.Error{
	"attempts_one_active_idx":       domain.ErrAttemptExists,
	"progress_attempt_question_key": domain.ErrAlreadyAnswered,
}

var missingByConstraint = map[string]*domain.Error{
	"attempts_user_id_fkey":     domain.ErrUserNotFound,
	"attempts_season_id_fkey":   domain.ErrSeasonNotFound,
	"progress_question_id_fkey": domain.ErrQuestionNotFound,
	"progress_attempt_id_fkey":  domain.ErrAttemptNotFound,
}

// translate maps driver errors onto the domain taxonomy. notFound replaces sql.ErrNoRows.
// Domain errors pass through untouched.
func translate(err error, notFound *domain.Error) error {
	if err == nil {
		return nil
	}
	var derr *domain.Error
	if errors.As(err, &derr) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) && notFound != nil {
		return notFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrUnavailable
	}

	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		constraint := pgErr.Field('n')
		switch pgErr.Field('C') {
		case codeUniqueViolation:
			if mapped, ok := conflictByConstraint[constraint]; ok {
				return mapped
			}
			return domain.ErrConflict
		case codeExclusionViolation:
			return domain.ErrConflict
		case codeForeignKeyViolation:
			if mapped, ok := missingByConstraint[constraint]; ok {
				return mapped
			}
			return domain.ErrConflict
		case codeQueryCanceled:
			return domain.ErrUnavailable
		}
	}
	return fmt.Errorf("postgres: %w", err)
}
