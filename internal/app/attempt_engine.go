package app

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"season-quiz-service/internal/domain"
	"season-quiz-service/internal/policy"
)

// AttemptEngine contains the attempt lifecycle use cases. It is the only writer
// of attempt and progress records.
type AttemptEngine struct {
	seasons   SeasonRegistry
	questions QuestionBank
	attempts  AttemptStore
	policy    policy.Policy
	now       func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// Option configures an AttemptEngine.
type Option func(*AttemptEngine)

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *AttemptEngine) { e.now = now }
}

// WithPolicy overrides the default qualification policy.
func WithPolicy(p policy.Policy) Option {
	return func(e *AttemptEngine) { e.policy = p }
}

// WithRand seeds question shuffling.
func WithRand(rnd *rand.Rand) Option {
	return func(e *AttemptEngine) { e.rnd = rnd }
}

func NewAttemptEngine(seasons SeasonRegistry, questions QuestionBank, attempts AttemptStore, opts ...Option) *AttemptEngine {
	e := &AttemptEngine{
		seasons:   seasons,
		questions: questions,
		attempts:  attempts,
		policy:    policy.New(policy.DefaultThreshold),
		now:       time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartAttempt creates or resumes the caller's attempt for the eligible season of kind.
// Having no eligible season is reported through the result status, not as an error.
func (e *AttemptEngine) StartAttempt(ctx context.Context, userID string, kind domain.SeasonKind) (domain.StartResult, error) {
	if !kind.Valid() {
		return domain.StartResult{}, domain.ErrInvalidSeasonKind
	}
	user, err := e.attempts.User(ctx, userID)
	if err != nil {
		return domain.StartResult{}, err
	}
	if user.IsDisqualified {
		return domain.StartResult{}, domain.ErrDisqualified
	}

	season, err := e.seasons.EligibleSeason(ctx, kind, e.now())
	if errors.Is(err, domain.ErrNoEligibleSeason) {
		return domain.StartResult{Status: domain.StartNoEligibleSeason}, nil
	}
	if err != nil {
		return domain.StartResult{}, err
	}
	if season.RequiresQualification && !user.HasPassedQualification {
		return domain.StartResult{}, domain.ErrQualificationRequired
	}

	latest, err := e.attempts.LatestAttempt(ctx, userID, season.ID)
	switch {
	case err == nil && latest.Completed:
		return domain.StartResult{}, domain.ErrAttemptCompleted
	case err == nil:
		return e.resume(ctx, season, latest)
	case !errors.Is(err, domain.ErrAttemptNotFound):
		return domain.StartResult{}, err
	}

	questions, err := e.questions.QuestionsForSeason(ctx, season.ID)
	if err != nil {
		return domain.StartResult{}, err
	}
	if len(questions) == 0 {
		log.Printf("season %s has no questions, refusing start for user %s", season.ID, userID)
		return domain.StartResult{Status: domain.StartNoEligibleSeason}, nil
	}

	attempt, err := e.attempts.CreateAttempt(ctx, userID, season.ID, len(questions), e.now())
	if errors.Is(err, domain.ErrAttemptExists) {
		// A concurrent start won; hand back its attempt.
		existing, ferr := e.attempts.FindActiveAttempt(ctx, userID, season.ID)
		if ferr != nil {
			return domain.StartResult{}, ferr
		}
		return e.resumeWith(ctx, season, existing, questions)
	}
	if err != nil {
		return domain.StartResult{}, err
	}
	log.Printf("attempt %s started: user=%s season=%s questions=%d", attempt.ID, userID, season.ID, attempt.TotalQuestions)
	return e.startResult(domain.StartCreated, season, attempt, questions, nil), nil
}

func (e *AttemptEngine) resume(ctx context.Context, season domain.Season, attempt domain.Attempt) (domain.StartResult, error) {
	questions, err := e.questions.QuestionsForSeason(ctx, season.ID)
	if err != nil {
		return domain.StartResult{}, err
	}
	return e.resumeWith(ctx, season, attempt, questions)
}

func (e *AttemptEngine) resumeWith(ctx context.Context, season domain.Season, attempt domain.Attempt, questions []domain.Question) (domain.StartResult, error) {
	rows, err := e.attempts.Progress(ctx, attempt.ID)
	if err != nil {
		return domain.StartResult{}, err
	}
	answered := make([]string, 0, len(rows))
	for _, p := range rows {
		answered = append(answered, p.QuestionID)
	}
	return e.startResult(domain.StartResumed, season, attempt, questions, answered), nil
}

func (e *AttemptEngine) startResult(status domain.StartStatus, season domain.Season, attempt domain.Attempt, questions []domain.Question, answered []string) domain.StartResult {
	return domain.StartResult{
		Status:                 status,
		AttemptID:              attempt.ID,
		SeasonID:               season.ID,
		Questions:              e.publicShuffled(questions),
		AnsweredQuestionIDs:    answered,
		TotalQuestions:         attempt.TotalQuestions,
		MinimumScorePercentage: e.policy.Threshold(season),
	}
}

// publicShuffled strips answer keys and draws a fresh order per request.
func (e *AttemptEngine) publicShuffled(questions []domain.Question) []domain.PublicQuestion {
	out := make([]domain.PublicQuestion, len(questions))
	for i, q := range questions {
		out[i] = q.Public()
	}
	e.rndMu.Lock()
	e.rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	e.rndMu.Unlock()
	return out
}

// SubmitAnswer records one answer and completes the attempt when it was the last one.
func (e *AttemptEngine) SubmitAnswer(ctx context.Context, attemptID, userID string, sub domain.AnswerSubmission) (domain.SubmitResult, error) {
	if sub.QuestionID == "" {
		return domain.SubmitResult{}, domain.ErrInvalidSubmission
	}
	attempt, season, err := e.ownedAttempt(ctx, attemptID, userID)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	if attempt.Completed {
		return domain.SubmitResult{}, domain.ErrAttemptCompleted
	}
	key, err := e.questions.CorrectAnswers(ctx, season.ID, []string{sub.QuestionID})
	if err != nil {
		return domain.SubmitResult{}, err
	}
	correctOption, ok := key[sub.QuestionID]
	if !ok {
		return domain.SubmitResult{}, domain.ErrQuestionNotFound
	}

	var (
		result  domain.SubmitResult
		outcome *domain.Outcome
	)
	err = e.attempts.Transact(ctx, func(ctx context.Context, tx AttemptTx) error {
		locked, err := tx.LockAttempt(ctx, attemptID)
		if err != nil {
			return err
		}
		if locked.Completed {
			return domain.ErrAttemptCompleted
		}
		rows, err := tx.Progress(ctx, attemptID)
		if err != nil {
			return err
		}
		correctCount := 0
		for _, p := range rows {
			if p.QuestionID == sub.QuestionID {
				return domain.ErrAlreadyAnswered
			}
			if p.IsCorrect {
				correctCount++
			}
		}

		now := e.now()
		isCorrect := sub.Answer == correctOption
		if err := tx.RecordProgress(ctx, domain.Progress{
			AttemptID:  attemptID,
			QuestionID: sub.QuestionID,
			Answer:     sub.Answer,
			IsCorrect:  isCorrect,
			AnsweredAt: now,
		}); err != nil {
			return err
		}
		if isCorrect {
			correctCount++
		}

		result = domain.SubmitResult{
			AnsweredCount:  len(rows) + 1,
			CorrectCount:   correctCount,
			TotalQuestions: locked.TotalQuestions,
		}
		if result.AnsweredCount < locked.TotalQuestions {
			return nil
		}
		sealed, err := e.complete(ctx, tx, locked, season, correctCount, now)
		if err != nil {
			return err
		}
		outcome = &sealed
		return nil
	})
	if err != nil {
		return domain.SubmitResult{}, err
	}
	if outcome != nil {
		result.Completed = true
		result.Score = outcome.Score
		result.PercentageScore = outcome.Percentage
		result.QualifiesForNextRound = outcome.Qualifies
		e.logCompletion(attemptID, season, *outcome, result.TotalQuestions)
	}
	return result, nil
}

// SubmitBatch scores a set of answers in one pass and always completes the attempt.
// Questions answered earlier keep their first recorded answer.
func (e *AttemptEngine) SubmitBatch(ctx context.Context, attemptID, userID string, answers []domain.AnswerSubmission) (domain.BatchResult, error) {
	if len(answers) == 0 {
		return domain.BatchResult{}, domain.ErrInvalidSubmission
	}
	ids := make([]string, 0, len(answers))
	seen := make(map[string]struct{}, len(answers))
	for _, a := range answers {
		if a.QuestionID == "" {
			return domain.BatchResult{}, domain.ErrInvalidSubmission
		}
		if _, dup := seen[a.QuestionID]; dup {
			return domain.BatchResult{}, domain.ErrInvalidSubmission
		}
		seen[a.QuestionID] = struct{}{}
		ids = append(ids, a.QuestionID)
	}

	attempt, season, err := e.ownedAttempt(ctx, attemptID, userID)
	if err != nil {
		return domain.BatchResult{}, err
	}
	if attempt.Completed {
		return domain.BatchResult{}, domain.ErrAttemptCompleted
	}
	key, err := e.questions.CorrectAnswers(ctx, season.ID, ids)
	if err != nil {
		return domain.BatchResult{}, err
	}
	for _, id := range ids {
		if _, ok := key[id]; !ok {
			return domain.BatchResult{}, domain.ErrQuestionNotFound
		}
	}

	var outcome domain.Outcome
	var total int
	err = e.attempts.Transact(ctx, func(ctx context.Context, tx AttemptTx) error {
		locked, err := tx.LockAttempt(ctx, attemptID)
		if err != nil {
			return err
		}
		if locked.Completed {
			return domain.ErrAttemptCompleted
		}
		rows, err := tx.Progress(ctx, attemptID)
		if err != nil {
			return err
		}
		answered := make(map[string]struct{}, len(rows))
		score := 0
		for _, p := range rows {
			answered[p.QuestionID] = struct{}{}
			if p.IsCorrect {
				score++
			}
		}

		now := e.now()
		for _, a := range answers {
			if _, ok := answered[a.QuestionID]; ok {
				continue
			}
			isCorrect := a.Answer == key[a.QuestionID]
			if err := tx.RecordProgress(ctx, domain.Progress{
				AttemptID:  attemptID,
				QuestionID: a.QuestionID,
				Answer:     a.Answer,
				IsCorrect:  isCorrect,
				AnsweredAt: now,
			}); err != nil {
				return err
			}
			if isCorrect {
				score++
			}
		}

		total = locked.TotalQuestions
		outcome, err = e.complete(ctx, tx, locked, season, score, now)
		return err
	})
	if err != nil {
		return domain.BatchResult{}, err
	}
	e.logCompletion(attemptID, season, outcome, total)
	return domain.BatchResult{
		Score:           outcome.Score,
		TotalQuestions:  total,
		PercentageScore: outcome.Percentage,
		Passed:          outcome.Qualifies,
	}, nil
}

// complete seals the attempt and, for qualification rounds, writes the user's
// qualification flag in the same unit of work.
func (e *AttemptEngine) complete(ctx context.Context, tx AttemptTx, attempt domain.Attempt, season domain.Season, score int, now time.Time) (domain.Outcome, error) {
	outcome := e.policy.Decide(season, score, attempt.TotalQuestions)
	if err := tx.CompleteAttempt(ctx, attempt.ID, outcome, now); err != nil {
		return domain.Outcome{}, err
	}
	if season.IsQualificationRound {
		if err := tx.RecordQualification(ctx, attempt.UserID, outcome.Qualifies, now); err != nil {
			return domain.Outcome{}, err
		}
	}
	return outcome, nil
}

func (e *AttemptEngine) logCompletion(attemptID string, season domain.Season, outcome domain.Outcome, total int) {
	log.Printf("attempt %s completed: season=%s score=%d/%d pct=%d qualifies=%v",
		attemptID, season.ID, outcome.Score, total, outcome.Percentage, outcome.Qualifies)
}

// ownedAttempt loads an attempt and its season; attempts of other users look absent.
func (e *AttemptEngine) ownedAttempt(ctx context.Context, attemptID, userID string) (domain.Attempt, domain.Season, error) {
	attempt, err := e.attempts.Attempt(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, domain.Season{}, err
	}
	if attempt.UserID != userID {
		return domain.Attempt{}, domain.Season{}, domain.ErrAttemptNotFound
	}
	season, err := e.seasons.Season(ctx, attempt.SeasonID)
	if err != nil {
		return domain.Attempt{}, domain.Season{}, err
	}
	return attempt, season, nil
}

// GetProgress reports on the user's most recent attempt.
func (e *AttemptEngine) GetProgress(ctx context.Context, userID string) (domain.ProgressReport, error) {
	attempt, err := e.attempts.LatestUserAttempt(ctx, userID)
	if errors.Is(err, domain.ErrAttemptNotFound) {
		return domain.ProgressReport{Progress: []domain.Progress{}}, nil
	}
	if err != nil {
		return domain.ProgressReport{}, err
	}
	rows, err := e.attempts.Progress(ctx, attempt.ID)
	if err != nil {
		return domain.ProgressReport{}, err
	}
	report := domain.ProgressReport{
		HasAttempt:            true,
		AttemptID:             attempt.ID,
		SeasonID:              attempt.SeasonID,
		Completed:             attempt.Completed,
		Score:                 attempt.Score,
		TotalQuestions:        attempt.TotalQuestions,
		PercentageScore:       attempt.PercentageScore,
		QualifiesForNextRound: attempt.QualifiesForNextRound,
		AnsweredCount:         len(rows),
		Progress:              rows,
	}
	for _, p := range rows {
		if p.IsCorrect {
			report.CorrectCount++
		}
	}
	return report, nil
}

// ActivateSeason makes seasonID the only active season.
func (e *AttemptEngine) ActivateSeason(ctx context.Context, seasonID string) (domain.Season, error) {
	season, err := e.seasons.Activate(ctx, seasonID)
	if err != nil {
		return domain.Season{}, err
	}
	log.Printf("season %s activated", season.ID)
	return season, nil
}

func (e *AttemptEngine) ListSeasons(ctx context.Context) ([]domain.Season, error) {
	return e.seasons.ListSeasons(ctx)
}

// SetDisqualified flips the user's disqualified flag. Completed attempts are left untouched.
func (e *AttemptEngine) SetDisqualified(ctx context.Context, userID string, disqualified bool) error {
	if err := e.attempts.SetDisqualified(ctx, userID, disqualified); err != nil {
		return err
	}
	log.Printf("user %s disqualified=%v", userID, disqualified)
	return nil
}

// ResetAttempt deletes an attempt and its progress so the user may start again.
func (e *AttemptEngine) ResetAttempt(ctx context.Context, attemptID string) error {
	if err := e.attempts.DeleteAttempt(ctx, attemptID); err != nil {
		return err
	}
	log.Printf("attempt %s reset", attemptID)
	return nil
}
