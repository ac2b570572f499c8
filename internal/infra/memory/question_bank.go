package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"season-quiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches a season's questions from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, seasonID string) ([]domain.Question, error)
}

// QuestionBank caches season question sets with TTL to avoid repeated DB hits.
type QuestionBank struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedSet
}

type cachedSet struct {
	questions []domain.Question
	answers   map[string]string
	expiresAt time.Time
}

func NewQuestionBank(loader QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSet),
	}
}

// QuestionsForSeason returns a copy of the season's questions.
func (b *QuestionBank) QuestionsForSeason(ctx context.Context, seasonID string) ([]domain.Question, error) {
	set, err := b.load(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Question, len(set.questions))
	copy(out, set.questions)
	return out, nil
}

// CorrectAnswers returns the answer key for the requested ids that belong to the season.
func (b *QuestionBank) CorrectAnswers(ctx context.Context, seasonID string, questionIDs []string) (map[string]string, error) {
	set, err := b.load(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(questionIDs))
	for _, id := range questionIDs {
		if correct, ok := set.answers[id]; ok {
			out[id] = correct
		}
	}
	return out, nil
}

func (b *QuestionBank) load(ctx context.Context, seasonID string) (cachedSet, error) {
	now := b.clock()

	b.mu.RLock()
	if entry, ok := b.cache[seasonID]; ok && entry.expiresAt.After(now) {
		b.mu.RUnlock()
		return entry, nil
	}
	b.mu.RUnlock()

	// Detached so one caller cancelling does not fail every waiter.
	loadCtx := context.WithoutCancel(ctx)
	result, err, _ := b.sf.Do(seasonID, func() (interface{}, error) {
		now := b.clock()
		b.mu.RLock()
		if entry, ok := b.cache[seasonID]; ok && entry.expiresAt.After(now) {
			b.mu.RUnlock()
			return entry, nil
		}
		b.mu.RUnlock()

		questions, err := b.loader.LoadQuestions(loadCtx, seasonID)
		if err != nil {
			return cachedSet{}, err
		}

		entry := cachedSet{
			questions: questions,
			answers:   AnswerKey(questions),
		}
		// rnd is not safe for concurrent use; jitter is drawn under the write lock.
		b.mu.Lock()
		entry.expiresAt = now.Add(b.ttlWithJitter())
		b.cache[seasonID] = entry
		b.mu.Unlock()
		return entry, nil
	})
	if err != nil {
		return cachedSet{}, err
	}
	return result.(cachedSet), nil
}

// Invalidate drops a cached season so the next read goes to the loader.
func (b *QuestionBank) Invalidate(seasonID string) {
	b.mu.Lock()
	delete(b.cache, seasonID)
	b.mu.Unlock()
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// AnswerKey maps question id to correct option.
func AnswerKey(questions []domain.Question) map[string]string {
	key := make(map[string]string, len(questions))
	for _, q := range questions {
		key[q.ID] = q.CorrectOption
	}
	return key
}

// StaticQuestionLoader is a simple loader backed by an in-memory slice (useful for tests/demos).
type StaticQuestionLoader struct {
	bySeason map[string][]domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	bySeason := make(map[string][]domain.Question)
	for _, q := range questions {
		if q.SeasonID == "" {
			continue
		}
		bySeason[q.SeasonID] = append(bySeason[q.SeasonID], q)
	}
	return &StaticQuestionLoader{bySeason: bySeason}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, seasonID string) ([]domain.Question, error) {
	return l.bySeason[seasonID], nil
}
