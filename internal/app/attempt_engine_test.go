package app_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"season-quiz-service/internal/app"
	"season-quiz-service/internal/domain"
	"season-quiz-service/internal/infra/memory"
	"season-quiz-service/internal/policy"
	"golang.org/x/sync/errgroup"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	engine   *app.AttemptEngine
	store    *memory.AttemptStore
	registry *memory.SeasonRegistry
}

func TestSixOfTenQualifies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	start := mustStart(t, f, "u1", domain.KindQualification)
	if start.Status != domain.StartCreated || start.TotalQuestions != 10 || len(start.Questions) != 10 {
		t.Fatalf("unexpected start %+v", start)
	}
	if start.MinimumScorePercentage != 50 {
		t.Fatalf("expected threshold 50, got %d", start.MinimumScorePercentage)
	}

	var last domain.SubmitResult
	for i := 1; i <= 10; i++ {
		answer := "right"
		if i > 6 {
			answer = "wrong"
		}
		res, err := f.engine.SubmitAnswer(ctx, start.AttemptID, "u1", domain.AnswerSubmission{QuestionID: qid(i), Answer: answer})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if i < 10 && (res.Completed || res.AnsweredCount != i) {
			t.Fatalf("submit %d: expected in-progress with %d answered, got %+v", i, i, res)
		}
		last = res
	}
	if !last.Completed || last.Score != 6 || last.PercentageScore != 60 || !last.QualifiesForNextRound || last.TotalQuestions != 10 {
		t.Fatalf("expected completed 6/10 60%% qualifying, got %+v", last)
	}

	user, _ := f.store.User(ctx, "u1")
	if !user.HasPassedQualification || user.LastQualificationAttemptAt == nil || !user.LastQualificationAttemptAt.Equal(testNow) {
		t.Fatalf("expected user qualified at %v, got %+v", testNow, user)
	}
	attempt, _ := f.store.Attempt(ctx, start.AttemptID)
	if attempt.PercentageScore != policy.Percentage(attempt.Score, attempt.TotalQuestions) {
		t.Fatalf("stored percentage %d does not match score %d/%d", attempt.PercentageScore, attempt.Score, attempt.TotalQuestions)
	}
}

func TestFourOfTenFailsQualification(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.PutUser(domain.User{ID: "u1", HasPassedQualification: true})

	start := mustStart(t, f, "u1", domain.KindQualification)
	var last domain.SubmitResult
	for i := 1; i <= 10; i++ {
		answer := "wrong"
		if i <= 4 {
			answer = "right"
		}
		res, err := f.engine.SubmitAnswer(ctx, start.AttemptID, "u1", domain.AnswerSubmission{QuestionID: qid(i), Answer: answer})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		last = res
	}
	if !last.Completed || last.PercentageScore != 40 || last.QualifiesForNextRound {
		t.Fatalf("expected 40%% not qualifying, got %+v", last)
	}
	user, _ := f.store.User(ctx, "u1")
	if user.HasPassedQualification {
		t.Fatalf("expected qualification flag cleared, got %+v", user)
	}
}

func TestDuplicateAnswerRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	start := mustStart(t, f, "u1", domain.KindQualification)

	res, err := f.engine.SubmitAnswer(ctx, start.AttemptID, "u1", domain.AnswerSubmission{QuestionID: "q1", Answer: "right"})
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if res.CorrectCount != 1 {
		t.Fatalf("expected 1 correct, got %+v", res)
	}
	_, err = f.engine.SubmitAnswer(ctx, start.AttemptID, "u1", domain.AnswerSubmission{QuestionID: "q1", Answer: "wrong"})
	if err != domain.ErrAlreadyAnswered {
		t.Fatalf("expected already answered, got %v", err)
	}

	report, err := f.engine.GetProgress(ctx, "u1")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if report.AnsweredCount != 1 || report.CorrectCount != 1 || report.Progress[0].Answer != "right" {
		t.Fatalf("expected only the first answer stored, got %+v", report)
	}
}

func TestConcurrentStartCreatesOneAttempt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ids := make([]string, 16)
	var g errgroup.Group
	for i := range ids {
		g.Go(func() error {
			res, err := f.engine.StartAttempt(ctx, "u1", domain.KindQualification)
			if err != nil {
				return err
			}
			ids[i] = res.AttemptID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, id := range ids {
		if id == "" || id != ids[0] {
			t.Fatalf("expected a single attempt id, got %v", ids)
		}
	}
	active, err := f.store.FindActiveAttempt(ctx, "u1", "s-qual")
	if err != nil || active.ID != ids[0] {
		t.Fatalf("expected active attempt %s, got %+v %v", ids[0], active, err)
	}
}

func TestActivateSwitchesSeason(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	activated, err := f.engine.ActivateSeason(ctx, "s-regular")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !activated.IsActive {
		t.Fatalf("expected returned season active, got %+v", activated)
	}
	seasons, _ := f.engine.ListSeasons(ctx)
	for _, s := range seasons {
		if s.IsActive != (s.ID == "s-regular") {
			t.Fatalf("season %s active=%v after activating s-regular", s.ID, s.IsActive)
		}
	}

	res := mustStart(t, f, "u1", domain.KindQualification)
	if res.Status != domain.StartNoEligibleSeason {
		t.Fatalf("expected qualification season inactive, got %+v", res)
	}
	if _, err := f.engine.ActivateSeason(ctx, "missing"); err != domain.ErrSeasonNotFound {
		t.Fatalf("expected season not found, got %v", err)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	f := newFixture(t)
	first := mustStart(t, f, "u1", domain.KindQualification)
	if _, err := f.engine.SubmitAnswer(context.Background(), first.AttemptID, "u1", domain.AnswerSubmission{QuestionID: "q3", Answer: "right"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	second := mustStart(t, f, "u1", domain.KindQualification)
	if second.AttemptID != first.AttemptID || second.Status != domain.StartResumed {
		t.Fatalf("expected resume of %s, got %+v", first.AttemptID, second)
	}
	if len(second.AnsweredQuestionIDs) != 1 || second.AnsweredQuestionIDs[0] != "q3" {
		t.Fatalf("expected q3 answered on resume, got %v", second.AnsweredQuestionIDs)
	}
}

func TestStartWithoutEligibleSeason(t *testing.T) {
	f := newFixture(t)
	res := mustStart(t, f, "u1", domain.KindRegular)
	if res.Status != domain.StartNoEligibleSeason || res.AttemptID != "" {
		t.Fatalf("expected no eligible season, got %+v", res)
	}
	if _, err := f.engine.StartAttempt(context.Background(), "u1", "weekly"); err != domain.ErrInvalidSeasonKind {
		t.Fatalf("expected invalid kind, got %v", err)
	}
}

func TestStartRefusesEmptyQuestionSet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	empty := domain.Season{ID: "s-empty", StartAt: testNow.Add(-time.Hour), EndAt: testNow.Add(time.Hour), IsActive: true, IsQualificationRound: true}
	if err := f.registry.Put(empty); err != nil {
		t.Fatalf("put season: %v", err)
	}
	res, err := f.engine.StartAttempt(ctx, "u1", domain.KindQualification)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res.Status != domain.StartNoEligibleSeason {
		t.Fatalf("expected empty season refused, got %+v", res)
	}
}

func TestDisqualifiedUserCannotStart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	start := mustStart(t, f, "u1", domain.KindQualification)
	if _, err := f.engine.SubmitBatch(ctx, start.AttemptID, "u1", allAnswers(10, 10)); err != nil {
		t.Fatalf("batch: %v", err)
	}
	if err := f.engine.SetDisqualified(ctx, "u1", true); err != nil {
		t.Fatalf("disqualify: %v", err)
	}
	if _, err := f.engine.StartAttempt(ctx, "u1", domain.KindQualification); err != domain.ErrDisqualified {
		t.Fatalf("expected disqualified, got %v", err)
	}
	attempt, _ := f.store.Attempt(ctx, start.AttemptID)
	if !attempt.Completed || attempt.Score != 10 || !attempt.QualifiesForNextRound {
		t.Fatalf("completed attempt must be untouched, got %+v", attempt)
	}
	if err := f.engine.SetDisqualified(ctx, "ghost", true); err != domain.ErrUserNotFound {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestRegularSeasonRequiresQualification(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.engine.ActivateSeason(ctx, "s-regular"); err != nil {
		t.Fatalf("activate: %v", err)
	}

	if _, err := f.engine.StartAttempt(ctx, "u1", domain.KindRegular); err != domain.ErrQualificationRequired {
		t.Fatalf("expected qualification required, got %v", err)
	}
	f.store.PutUser(domain.User{ID: "u1", HasPassedQualification: true})
	res := mustStart(t, f, "u1", domain.KindRegular)
	if res.Status != domain.StartCreated || res.TotalQuestions != 2 {
		t.Fatalf("expected regular attempt created, got %+v", res)
	}
	if res.MinimumScorePercentage != 70 {
		t.Fatalf("expected season threshold 70, got %d", res.MinimumScorePercentage)
	}

	out, err := f.engine.SubmitBatch(ctx, res.AttemptID, "u1", []domain.AnswerSubmission{
		{QuestionID: "r1", Answer: "right"},
		{QuestionID: "r2", Answer: "wrong"},
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if out.PercentageScore != 50 || out.Passed {
		t.Fatalf("expected 50%% to miss 70%%, got %+v", out)
	}
	user, _ := f.store.User(ctx, "u1")
	if !user.HasPassedQualification {
		t.Fatalf("regular rounds must not touch the qualification flag")
	}
}

func TestSingleAttemptPerSeasonUntilReset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	start := mustStart(t, f, "u1", domain.KindQualification)
	if _, err := f.engine.SubmitBatch(ctx, start.AttemptID, "u1", allAnswers(10, 3)); err != nil {
		t.Fatalf("batch: %v", err)
	}
	if _, err := f.engine.StartAttempt(ctx, "u1", domain.KindQualification); err != domain.ErrAttemptCompleted {
		t.Fatalf("expected retake refused, got %v", err)
	}
	if err := f.engine.ResetAttempt(ctx, start.AttemptID); err != nil {
		t.Fatalf("reset: %v", err)
	}
	again := mustStart(t, f, "u1", domain.KindQualification)
	if again.Status != domain.StartCreated || again.AttemptID == start.AttemptID {
		t.Fatalf("expected a fresh attempt after reset, got %+v", again)
	}
}

func TestSubmitBatchCompletesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	start := mustStart(t, f, "u1", domain.KindQualification)

	out, err := f.engine.SubmitBatch(ctx, start.AttemptID, "u1", allAnswers(10, 7))
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if out.Score != 7 || out.TotalQuestions != 10 || out.PercentageScore != 70 || !out.Passed {
		t.Fatalf("unexpected batch result %+v", out)
	}
	if _, err := f.engine.SubmitBatch(ctx, start.AttemptID, "u1", allAnswers(10, 10)); err != domain.ErrAttemptCompleted {
		t.Fatalf("expected completed on second batch, got %v", err)
	}
	if _, err := f.engine.SubmitAnswer(ctx, start.AttemptID, "u1", domain.AnswerSubmission{QuestionID: "q1", Answer: "right"}); err != domain.ErrAttemptCompleted {
		t.Fatalf("expected completed on late answer, got %v", err)
	}
}

func TestSubmitBatchKeepsEarlierAnswers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	start := mustStart(t, f, "u1", domain.KindQualification)

	if _, err := f.engine.SubmitAnswer(ctx, start.AttemptID, "u1", domain.AnswerSubmission{QuestionID: "q1", Answer: "wrong"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	out, err := f.engine.SubmitBatch(ctx, start.AttemptID, "u1", allAnswers(10, 10))
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if out.Score != 9 {
		t.Fatalf("expected the earlier wrong answer to stand, got score %d", out.Score)
	}
	rows, _ := f.store.Progress(ctx, start.AttemptID)
	if len(rows) != 10 {
		t.Fatalf("expected 10 progress rows, got %d", len(rows))
	}
}

func TestSubmitBatchValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	start := mustStart(t, f, "u1", domain.KindQualification)

	cases := map[string][]domain.AnswerSubmission{
		"empty":     nil,
		"missing":   {{QuestionID: "", Answer: "right"}},
		"duplicate": {{QuestionID: "q1", Answer: "right"}, {QuestionID: "q1", Answer: "wrong"}},
	}
	for name, answers := range cases {
		if _, err := f.engine.SubmitBatch(ctx, start.AttemptID, "u1", answers); err != domain.ErrInvalidSubmission {
			t.Fatalf("%s: expected invalid submission, got %v", name, err)
		}
	}
	if _, err := f.engine.SubmitBatch(ctx, start.AttemptID, "u1", []domain.AnswerSubmission{{QuestionID: "r1", Answer: "right"}}); err != domain.ErrQuestionNotFound {
		t.Fatalf("expected question from another season rejected, got %v", err)
	}
}

func TestSubmitRejectsForeignOrUnknown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.PutUser(domain.User{ID: "u2"})
	start := mustStart(t, f, "u1", domain.KindQualification)

	if _, err := f.engine.SubmitAnswer(ctx, start.AttemptID, "u2", domain.AnswerSubmission{QuestionID: "q1", Answer: "right"}); err != domain.ErrAttemptNotFound {
		t.Fatalf("expected foreign attempt hidden, got %v", err)
	}
	if _, err := f.engine.SubmitAnswer(ctx, "nope", "u1", domain.AnswerSubmission{QuestionID: "q1", Answer: "right"}); err != domain.ErrAttemptNotFound {
		t.Fatalf("expected attempt not found, got %v", err)
	}
	if _, err := f.engine.SubmitAnswer(ctx, start.AttemptID, "u1", domain.AnswerSubmission{QuestionID: "q99", Answer: "right"}); err != domain.ErrQuestionNotFound {
		t.Fatalf("expected question not found, got %v", err)
	}
	if _, err := f.engine.SubmitAnswer(ctx, start.AttemptID, "u1", domain.AnswerSubmission{Answer: "right"}); err != domain.ErrInvalidSubmission {
		t.Fatalf("expected invalid submission, got %v", err)
	}
}

func TestConcurrentDuplicateSubmissionsRecordOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	start := mustStart(t, f, "u1", domain.KindQualification)

	var ok, dup atomic.Int32
	var g errgroup.Group
	for i := 0; i < 20; i++ {
		answer := "right"
		if i%2 == 1 {
			answer = "wrong"
		}
		g.Go(func() error {
			_, err := f.engine.SubmitAnswer(ctx, start.AttemptID, "u1", domain.AnswerSubmission{QuestionID: "q1", Answer: answer})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrAlreadyAnswered):
				dup.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if ok.Load() != 1 || dup.Load() != 19 {
		t.Fatalf("expected 1 success and 19 duplicates, got %d/%d", ok.Load(), dup.Load())
	}
	rows, _ := f.store.Progress(ctx, start.AttemptID)
	if len(rows) != 1 {
		t.Fatalf("expected one progress row, got %d", len(rows))
	}
}

func TestConcurrentTerminalSubmissionsCompleteOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	start := mustStart(t, f, "u1", domain.KindQualification)
	for i := 1; i <= 9; i++ {
		if _, err := f.engine.SubmitAnswer(ctx, start.AttemptID, "u1", domain.AnswerSubmission{QuestionID: qid(i), Answer: "right"}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	var completions atomic.Int32
	var g errgroup.Group
	for i := 0; i < 10; i++ {
		batch := i%2 == 0
		g.Go(func() error {
			var err error
			if batch {
				_, err = f.engine.SubmitBatch(ctx, start.AttemptID, "u1", allAnswers(10, 10))
			} else {
				var res domain.SubmitResult
				res, err = f.engine.SubmitAnswer(ctx, start.AttemptID, "u1", domain.AnswerSubmission{QuestionID: "q10", Answer: "right"})
				if err == nil && !res.Completed {
					return fmt.Errorf("last answer did not complete: %+v", res)
				}
			}
			switch {
			case err == nil:
				completions.Add(1)
			case errors.Is(err, domain.ErrAttemptCompleted), errors.Is(err, domain.ErrAlreadyAnswered):
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("terminal submit: %v", err)
	}
	if completions.Load() != 1 {
		t.Fatalf("expected exactly one completion, got %d", completions.Load())
	}
	attempt, _ := f.store.Attempt(ctx, start.AttemptID)
	if !attempt.Completed || attempt.Score != 10 || attempt.PercentageScore != 100 {
		t.Fatalf("expected a single 10/10 completion, got %+v", attempt)
	}
}

func TestGetProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	report, err := f.engine.GetProgress(ctx, "u1")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if report.HasAttempt || report.Progress == nil {
		t.Fatalf("expected empty report, got %+v", report)
	}

	start := mustStart(t, f, "u1", domain.KindQualification)
	for i, answer := range []string{"right", "wrong", "right"} {
		if _, err := f.engine.SubmitAnswer(ctx, start.AttemptID, "u1", domain.AnswerSubmission{QuestionID: qid(i + 1), Answer: answer}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	report, err = f.engine.GetProgress(ctx, "u1")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if !report.HasAttempt || report.Completed || report.AnsweredCount != 3 || report.CorrectCount != 2 || report.TotalQuestions != 10 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestStartUnknownUser(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.StartAttempt(context.Background(), "ghost", domain.KindQualification); err != domain.ErrUserNotFound {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	seventy := 70
	registry, err := memory.NewSeasonRegistry(
		domain.Season{
			ID:                   "s-qual",
			Name:                 "Qualification",
			StartAt:              testNow.Add(-24 * time.Hour),
			EndAt:                testNow.Add(24 * time.Hour),
			IsActive:             true,
			IsQualificationRound: true,
		},
		domain.Season{
			ID:                     "s-regular",
			Name:                   "Round 1",
			StartAt:                testNow.Add(-24 * time.Hour),
			EndAt:                  testNow.Add(24 * time.Hour),
			MinimumScorePercentage: &seventy,
			RequiresQualification:  true,
		},
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	var questions []domain.Question
	for i := 1; i <= 10; i++ {
		questions = append(questions, question(qid(i), "s-qual"))
	}
	questions = append(questions, question("r1", "s-regular"), question("r2", "s-regular"))
	bank := memory.NewQuestionBank(memory.NewStaticQuestionLoader(questions), time.Minute)

	store := memory.NewAttemptStore(domain.User{ID: "u1", DisplayName: "Alice"})
	engine := app.NewAttemptEngine(registry, bank, store,
		app.WithClock(func() time.Time { return testNow }),
		app.WithRand(rand.New(rand.NewSource(1))),
	)
	return fixture{engine: engine, store: store, registry: registry}
}

func mustStart(t *testing.T, f fixture, userID string, kind domain.SeasonKind) domain.StartResult {
	t.Helper()
	res, err := f.engine.StartAttempt(context.Background(), userID, kind)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return res
}

func question(id, seasonID string) domain.Question {
	return domain.Question{
		ID:            id,
		SeasonID:      seasonID,
		Prompt:        "Pick the right one (" + id + ")",
		Options:       []string{"right", "wrong"},
		CorrectOption: "right",
		TimeLimitSec:  15,
	}
}

func qid(i int) string {
	return fmt.Sprintf("q%d", i)
}

// allAnswers answers q1..qN with the first `correct` answers right.
func allAnswers(n, correct int) []domain.AnswerSubmission {
	out := make([]domain.AnswerSubmission, 0, n)
	for i := 1; i <= n; i++ {
		answer := "wrong"
		if i <= correct {
			answer = "right"
		}
		out = append(out, domain.AnswerSubmission{QuestionID: qid(i), Answer: answer})
	}
	return out
}
