package memory

import (
	"context"
	"testing"
	"time"

	"season-quiz-service/internal/domain"
)

func TestQuestionBankCaches(t *testing.T) {
	loader := &countingLoader{QuestionLoader: NewStaticQuestionLoader(sampleQuestions())}
	bank := NewQuestionBank(loader, time.Minute)

	questions, err := bank.QuestionsForSeason(context.Background(), "s1")
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := bank.CorrectAnswers(context.Background(), "s1", []string{"q1"}); err != nil {
		t.Fatalf("answers: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}

	bank.Invalidate("s1")
	if _, err := bank.QuestionsForSeason(context.Background(), "s1"); err != nil {
		t.Fatalf("questions after invalidate: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls %d", loader.calls)
	}
}

func TestCorrectAnswersOnlyCoversSeason(t *testing.T) {
	bank := NewQuestionBank(NewStaticQuestionLoader(sampleQuestions()), time.Minute)

	key, err := bank.CorrectAnswers(context.Background(), "s1", []string{"q1", "q2", "other-q"})
	if err != nil {
		t.Fatalf("answers: %v", err)
	}
	if len(key) != 2 || key["q1"] != "4" || key["q2"] != "Paris" {
		t.Fatalf("unexpected answer key %+v", key)
	}

	key, err = bank.CorrectAnswers(context.Background(), "s2", []string{"q1"})
	if err != nil {
		t.Fatalf("answers s2: %v", err)
	}
	if _, ok := key["q1"]; ok {
		t.Fatalf("question of s1 leaked into s2 answer key")
	}
}

type countingLoader struct {
	QuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context, seasonID string) ([]domain.Question, error) {
	l.calls++
	return l.QuestionLoader.LoadQuestions(ctx, seasonID)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q1", SeasonID: "s1", Prompt: "What is 2 + 2?", Options: []string{"3", "4"}, CorrectOption: "4", TimeLimitSec: 10},
		{ID: "q2", SeasonID: "s1", Prompt: "Capital of France?", Options: []string{"Paris", "Rome"}, CorrectOption: "Paris", TimeLimitSec: 10},
	}
}

type ctxLoader struct{}

func (ctxLoader) LoadQuestions(ctx context.Context, seasonID string) ([]domain.Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return sampleQuestions(), nil
}

func TestQuestionBankLoadIgnoresCallerCancellation(t *testing.T) {
	bank := NewQuestionBank(ctxLoader{}, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	questions, err := bank.QuestionsForSeason(ctx, "s1")
	if err != nil {
		t.Fatalf("expected shared load to run detached, got %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
}
