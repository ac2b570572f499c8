package domain

import "time"

// SeasonKind selects between qualification rounds and regular rounds.
type SeasonKind string

const (
	KindQualification SeasonKind = "qualification"
	KindRegular       SeasonKind = "regular"
)

// Valid reports whether k is a known season kind.
func (k SeasonKind) Valid() bool {
	return k == KindQualification || k == KindRegular
}

// Season is a scheduled competition window.
type Season struct {
	ID                     string    `json:"id" yaml:"id"`
	Name                   string    `json:"name" yaml:"name"`
	StartAt                time.Time `json:"startAt" yaml:"startAt"`
	EndAt                  time.Time `json:"endAt" yaml:"endAt"`
	IsActive               bool      `json:"isActive" yaml:"isActive"`
	IsQualificationRound   bool      `json:"isQualificationRound" yaml:"isQualificationRound"`
	MinimumScorePercentage *int      `json:"minimumScorePercentage,omitempty" yaml:"minimumScorePercentage"`
	RequiresQualification  bool      `json:"requiresQualification" yaml:"requiresQualification"`
}

// Kind derives the season kind from the qualification flag.
func (s Season) Kind() SeasonKind {
	if s.IsQualificationRound {
		return KindQualification
	}
	return KindRegular
}

// Open reports whether now falls inside [StartAt, EndAt].
func (s Season) Open(now time.Time) bool {
	return !now.Before(s.StartAt) && !now.After(s.EndAt)
}

// Validate checks the season window and threshold bounds.
func (s Season) Validate() error {
	if s.ID == "" {
		return ErrInvalidSeason
	}
	if !s.StartAt.Before(s.EndAt) {
		return ErrInvalidSeason
	}
	if p := s.MinimumScorePercentage; p != nil && (*p < 0 || *p > 100) {
		return ErrInvalidSeason
	}
	return nil
}

// Question is a season-scoped multiple choice question including its answer key.
type Question struct {
	ID            string   `json:"id" yaml:"id"`
	SeasonID      string   `json:"seasonId,omitempty" yaml:"seasonId"`
	Prompt        string   `json:"prompt" yaml:"prompt"`
	Options       []string `json:"options" yaml:"options"`
	CorrectOption string   `json:"correctOption" yaml:"correctOption"`
	Category      string   `json:"category,omitempty" yaml:"category"`
	Difficulty    string   `json:"difficulty,omitempty" yaml:"difficulty"`
	TimeLimitSec  int      `json:"timeLimitSec" yaml:"timeLimitSec"`
}

// Validate enforces at least two options and a correct option drawn from them.
func (q Question) Validate() error {
	if q.ID == "" || len(q.Options) < 2 {
		return ErrInvalidQuestion
	}
	for _, opt := range q.Options {
		if opt == q.CorrectOption {
			return nil
		}
	}
	return ErrInvalidQuestion
}

// Public strips the answer key.
func (q Question) Public() PublicQuestion {
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	return PublicQuestion{
		ID:           q.ID,
		Prompt:       q.Prompt,
		Options:      options,
		Category:     q.Category,
		Difficulty:   q.Difficulty,
		TimeLimitSec: q.TimeLimitSec,
	}
}

// PublicQuestion is the client-facing view of a question.
type PublicQuestion struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	Category     string   `json:"category,omitempty"`
	Difficulty   string   `json:"difficulty,omitempty"`
	TimeLimitSec int      `json:"timeLimitSec"`
}

// User is the subset of the user record the engine reads and writes.
type User struct {
	ID                         string     `json:"id" yaml:"id"`
	DisplayName                string     `json:"displayName" yaml:"displayName"`
	HasPassedQualification     bool       `json:"hasPassedQualification" yaml:"hasPassedQualification"`
	LastQualificationAttemptAt *time.Time `json:"lastQualificationAttemptAt,omitempty" yaml:"-"`
	IsDisqualified             bool       `json:"isDisqualified" yaml:"isDisqualified"`
}

// Attempt is one user's single pass through a season's question set.
type Attempt struct {
	ID                    string     `json:"id"`
	UserID                string     `json:"userId"`
	SeasonID              string     `json:"seasonId"`
	StartedAt             time.Time  `json:"startedAt"`
	CompletedAt           *time.Time `json:"completedAt,omitempty"`
	TotalQuestions        int        `json:"totalQuestions"`
	Score                 int        `json:"score"`
	PercentageScore       int        `json:"percentageScore"`
	Completed             bool       `json:"completed"`
	QualifiesForNextRound bool       `json:"qualifiesForNextRound"`
}

// Progress records one answered question within an attempt.
type Progress struct {
	ID         string    `json:"id"`
	AttemptID  string    `json:"attemptId"`
	QuestionID string    `json:"questionId"`
	Answer     string    `json:"answer"`
	IsCorrect  bool      `json:"isCorrect"`
	AnsweredAt time.Time `json:"answeredAt"`
}

// Outcome is the sealed result written when an attempt completes.
type Outcome struct {
	Score      int
	Percentage int
	Qualifies  bool
}

// AnswerSubmission is one answer to one question. An empty answer is scored as wrong.
type AnswerSubmission struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

// StartStatus describes how a start request was resolved.
type StartStatus string

const (
	StartCreated          StartStatus = "created"
	StartResumed          StartStatus = "resumed"
	StartNoEligibleSeason StartStatus = "no_eligible_season"
)

// StartResult is returned by a start request.
type StartResult struct {
	Status                 StartStatus      `json:"status"`
	AttemptID              string           `json:"attemptId,omitempty"`
	SeasonID               string           `json:"seasonId,omitempty"`
	Questions              []PublicQuestion `json:"questions,omitempty"`
	AnsweredQuestionIDs    []string         `json:"answeredQuestionIds,omitempty"`
	TotalQuestions         int              `json:"totalQuestions"`
	MinimumScorePercentage int              `json:"minimumScorePercentage"`
}

// SubmitResult is returned by a per-question submission. The score fields stay
// zero until Completed is true and are always encoded.
type SubmitResult struct {
	Completed             bool `json:"completed"`
	AnsweredCount         int  `json:"answeredCount"`
	CorrectCount          int  `json:"correctCount"`
	TotalQuestions        int  `json:"totalQuestions"`
	Score                 int  `json:"score"`
	PercentageScore       int  `json:"percentageScore"`
	QualifiesForNextRound bool `json:"qualifiesForNextRound"`
}

// BatchResult is returned by a batch submission.
type BatchResult struct {
	Score           int  `json:"score"`
	TotalQuestions  int  `json:"totalQuestions"`
	PercentageScore int  `json:"percentageScore"`
	Passed          bool `json:"passed"`
}

// ProgressReport summarizes a user's most recent attempt.
type ProgressReport struct {
	HasAttempt            bool       `json:"hasAttempt"`
	AttemptID             string     `json:"attemptId,omitempty"`
	SeasonID              string     `json:"seasonId,omitempty"`
	Completed             bool       `json:"completed"`
	Score                 int        `json:"score"`
	TotalQuestions        int        `json:"totalQuestions"`
	PercentageScore       int        `json:"percentageScore"`
	QualifiesForNextRound bool       `json:"qualifiesForNextRound"`
	AnsweredCount         int        `json:"answeredCount"`
	CorrectCount          int        `json:"correctCount"`
	Progress              []Progress `json:"progress"`
}
