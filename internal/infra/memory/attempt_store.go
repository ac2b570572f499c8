package memory

import (
	"context"
	"sync"
	"time"

	"season-quiz-service/internal/app"
	"season-quiz-service/internal/domain"
	"github.com/google/uuid"
)

// AttemptStore is an in-memory implementation of app.AttemptStore.
// A single mutex makes every call, and every Transact unit, a single writer.
type AttemptStore struct {
	mu       sync.Mutex
	users    map[string]domain.User
	attempts map[string]domain.Attempt
	order    []string
	progress map[string][]domain.Progress
	newID    func() string
}

func NewAttemptStore(users ...domain.User) *AttemptStore {
	s := &AttemptStore{
		users:    make(map[string]domain.User, len(users)),
		attempts: make(map[string]domain.Attempt),
		progress: make(map[string][]domain.Progress),
		newID:    uuid.NewString,
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

// PutUser inserts or replaces a user record.
func (s *AttemptStore) PutUser(user domain.User) {
	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()
}

func (s *AttemptStore) User(_ context.Context, userID string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *AttemptStore) SetDisqualified(_ context.Context, userID string, disqualified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.IsDisqualified = disqualified
	s.users[userID] = u
	return nil
}

func (s *AttemptStore) Attempt(_ context.Context, attemptID string) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return a, nil
}

func (s *AttemptStore) FindActiveAttempt(_ context.Context, userID, seasonID string) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.findLocked(func(a domain.Attempt) bool {
		return a.UserID == userID && a.SeasonID == seasonID && !a.Completed
	})
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return a, nil
}

func (s *AttemptStore) LatestAttempt(_ context.Context, userID, seasonID string) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.findLocked(func(a domain.Attempt) bool {
		return a.UserID == userID && a.SeasonID == seasonID
	})
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return a, nil
}

func (s *AttemptStore) LatestUserAttempt(_ context.Context, userID string) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.findLocked(func(a domain.Attempt) bool { return a.UserID == userID })
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return a, nil
}

// findLocked scans newest first.
func (s *AttemptStore) findLocked(match func(domain.Attempt) bool) (domain.Attempt, bool) {
	for i := len(s.order) - 1; i >= 0; i-- {
		a := s.attempts[s.order[i]]
		if match(a) {
			return a, true
		}
	}
	return domain.Attempt{}, false
}

func (s *AttemptStore) CreateAttempt(_ context.Context, userID, seasonID string, totalQuestions int, startedAt time.Time) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return domain.Attempt{}, domain.ErrUserNotFound
	}
	if _, exists := s.findLocked(func(a domain.Attempt) bool {
		return a.UserID == userID && a.SeasonID == seasonID && !a.Completed
	}); exists {
		return domain.Attempt{}, domain.ErrAttemptExists
	}
	a := domain.Attempt{
		ID:             s.newID(),
		UserID:         userID,
		SeasonID:       seasonID,
		StartedAt:      startedAt,
		TotalQuestions: totalQuestions,
	}
	s.attempts[a.ID] = a
	s.order = append(s.order, a.ID)
	return a, nil
}

func (s *AttemptStore) Progress(_ context.Context, attemptID string) ([]domain.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Progress{}, s.progress[attemptID]...), nil
}

func (s *AttemptStore) DeleteAttempt(_ context.Context, attemptID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[attemptID]; !ok {
		return domain.ErrAttemptNotFound
	}
	delete(s.attempts, attemptID)
	delete(s.progress, attemptID)
	for i, id := range s.order {
		if id == attemptID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Transact holds the store lock for the whole unit and applies staged writes
// only when fn succeeds and ctx is still live.
func (s *AttemptStore) Transact(ctx context.Context, fn func(ctx context.Context, tx app.AttemptTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:       s,
		completions: make(map[string]domain.Attempt),
		quals:       make(map[string]domain.User),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commitLocked()
	return nil
}

type memTx struct {
	store       *AttemptStore
	progress    []domain.Progress
	completions map[string]domain.Attempt
	quals       map[string]domain.User
}

func (t *memTx) LockAttempt(_ context.Context, attemptID string) (domain.Attempt, error) {
	if a, ok := t.completions[attemptID]; ok {
		return a, nil
	}
	a, ok := t.store.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return a, nil
}

func (t *memTx) Progress(_ context.Context, attemptID string) ([]domain.Progress, error) {
	out := append([]domain.Progress{}, t.store.progress[attemptID]...)
	for _, p := range t.progress {
		if p.AttemptID == attemptID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *memTx) RecordProgress(ctx context.Context, p domain.Progress) error {
	if _, ok := t.store.attempts[p.AttemptID]; !ok {
		return domain.ErrAttemptNotFound
	}
	existing, _ := t.Progress(ctx, p.AttemptID)
	for _, e := range existing {
		if e.QuestionID == p.QuestionID {
			return domain.ErrAlreadyAnswered
		}
	}
	if p.ID == "" {
		p.ID = t.store.newID()
	}
	t.progress = append(t.progress, p)
	return nil
}

func (t *memTx) CompleteAttempt(ctx context.Context, attemptID string, outcome domain.Outcome, completedAt time.Time) error {
	a, err := t.LockAttempt(ctx, attemptID)
	if err != nil {
		return err
	}
	if a.Completed {
		return domain.ErrAttemptCompleted
	}
	at := completedAt
	a.Completed = true
	a.CompletedAt = &at
	a.Score = outcome.Score
	a.PercentageScore = outcome.Percentage
	a.QualifiesForNextRound = outcome.Qualifies
	t.completions[attemptID] = a
	return nil
}

func (t *memTx) RecordQualification(_ context.Context, userID string, passed bool, at time.Time) error {
	u, ok := t.quals[userID]
	if !ok {
		u, ok = t.store.users[userID]
		if !ok {
			return domain.ErrUserNotFound
		}
	}
	ts := at
	u.HasPassedQualification = passed
	u.LastQualificationAttemptAt = &ts
	t.quals[userID] = u
	return nil
}

func (t *memTx) commitLocked() {
	s := t.store
	for _, p := range t.progress {
		s.progress[p.AttemptID] = append(s.progress[p.AttemptID], p)
	}
	for id, a := range t.completions {
		s.attempts[id] = a
	}
	for id, u := range t.quals {
		s.users[id] = u
	}
}
