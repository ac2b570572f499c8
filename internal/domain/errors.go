package domain

import "errors"

// Kind classifies an engine error for transports.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindForbidden   Kind = "forbidden"
	KindValidation  Kind = "validation"
	KindUnavailable Kind = "unavailable"
	KindInternal    Kind = "internal"
)

// Error carries a stable machine-readable code and a user-safe message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches errors with the same code so wrapped sentinels compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	// ErrSeasonNotFound is returned when a season id does not exist.
	ErrSeasonNotFound = newError(KindNotFound, "season_not_found", "season not found")
	// ErrNoEligibleSeason means no active season of the requested kind is open right now.
	ErrNoEligibleSeason = newError(KindNotFound, "no_eligible_season", "no eligible season")
	ErrQuestionNotFound = newError(KindNotFound, "question_not_found", "question not found")
	ErrAttemptNotFound  = newError(KindNotFound, "attempt_not_found", "attempt not found")
	ErrUserNotFound     = newError(KindNotFound, "user_not_found", "user not found")

	// ErrAttemptExists is raised by the store when an active attempt already exists for the pair.
	ErrAttemptExists = newError(KindConflict, "attempt_exists", "an active attempt already exists")
	// ErrAlreadyAnswered guards the (attempt, question) pair.
	ErrAlreadyAnswered = newError(KindConflict, "already_answered", "question already answered in this attempt")
	// ErrAttemptCompleted guards against double completion and retakes.
	ErrAttemptCompleted = newError(KindConflict, "attempt_completed", "attempt already completed")
	// ErrConflict covers constraint violations without a more specific sentinel.
	ErrConflict = newError(KindConflict, "conflict", "conflicting write")

	ErrDisqualified          = newError(KindForbidden, "disqualified", "user is disqualified")
	ErrQualificationRequired = newError(KindForbidden, "qualification_required", "season requires a passed qualification round")

	ErrInvalidSubmission = newError(KindValidation, "invalid_submission", "invalid answer submission")
	ErrInvalidSeasonKind = newError(KindValidation, "invalid_season_kind", "season kind must be qualification or regular")
	ErrInvalidSeason     = newError(KindValidation, "invalid_season", "season window or threshold is invalid")
	ErrInvalidQuestion   = newError(KindValidation, "invalid_question", "question must have at least two options including the correct one")

	// ErrUnavailable is returned when storage times out.
	ErrUnavailable = newError(KindUnavailable, "unavailable", "storage temporarily unavailable")
)

// ErrInternal is the user-facing stand-in for anything that is not a domain error.
var ErrInternal = newError(KindInternal, "internal", "internal error")

// AsError unwraps err to a domain error, falling back to ErrInternal.
func AsError(err error) *Error {
	var derr *Error
	if errors.As(err, &derr) {
		return derr
	}
	return ErrInternal
}
