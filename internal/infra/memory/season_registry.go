package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"season-quiz-service/internal/domain"
)

// SeasonRegistry is an in-memory implementation of app.SeasonRegistry.
// Activation happens under the write lock, so readers never see a partial switch.
type SeasonRegistry struct {
	mu      sync.RWMutex
	seasons map[string]domain.Season
}

// NewSeasonRegistry seeds the registry. Seasons that fail validation are rejected.
func NewSeasonRegistry(seasons ...domain.Season) (*SeasonRegistry, error) {
	r := &SeasonRegistry{seasons: make(map[string]domain.Season, len(seasons))}
	for _, s := range seasons {
		if err := r.Put(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Put inserts or replaces a season. Putting an active season deactivates the others.
func (r *SeasonRegistry) Put(season domain.Season) error {
	if err := season.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if season.IsActive {
		r.deactivateAllLocked()
	}
	r.seasons[season.ID] = season
	return nil
}

func (r *SeasonRegistry) EligibleSeason(_ context.Context, kind domain.SeasonKind, now time.Time) (domain.Season, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.seasons {
		if s.IsActive && s.Kind() == kind && s.Open(now) {
			return s, nil
		}
	}
	return domain.Season{}, domain.ErrNoEligibleSeason
}

func (r *SeasonRegistry) Season(_ context.Context, seasonID string) (domain.Season, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.seasons[seasonID]
	if !ok {
		return domain.Season{}, domain.ErrSeasonNotFound
	}
	return s, nil
}

func (r *SeasonRegistry) ListSeasons(_ context.Context) ([]domain.Season, error) {
	r.mu.RLock()
	out := make([]domain.Season, 0, len(r.seasons))
	for _, s := range r.seasons {
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (r *SeasonRegistry) Activate(_ context.Context, seasonID string) (domain.Season, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	target, ok := r.seasons[seasonID]
	if !ok {
		return domain.Season{}, domain.ErrSeasonNotFound
	}
	r.deactivateAllLocked()
	target.IsActive = true
	r.seasons[seasonID] = target
	return target, nil
}

func (r *SeasonRegistry) deactivateAllLocked() {
	for id, s := range r.seasons {
		if s.IsActive {
			s.IsActive = false
			r.seasons[id] = s
		}
	}
}
