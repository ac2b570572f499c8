package postgres

import (
	"context"
	"database/sql"
	"time"

	"season-quiz-service/internal/domain"
	"github.com/uptrace/bun"
)

// SeasonRegistry reads and activates seasons through bun.
type SeasonRegistry struct {
	db           *bun.DB
	queryTimeout time.Duration
}

// NewSeasonRegistry bounds listing queries by queryTimeout (zero disables the bound).
func NewSeasonRegistry(db *bun.DB, queryTimeout time.Duration) *SeasonRegistry {
	return &SeasonRegistry{db: db, queryTimeout: queryTimeout}
}

func (r *SeasonRegistry) EligibleSeason(ctx context.Context, kind domain.SeasonKind, now time.Time) (domain.Season, error) {
	var row seasonRow
	err := r.db.NewSelect().
		Model(&row).
		Where("is_active").
		Where("is_qualification_round = ?", kind == domain.KindQualification).
		Where("start_at <= ?", now).
		Where("end_at >= ?", now).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Season{}, translate(err, domain.ErrNoEligibleSeason)
	}
	return row.toDomain(), nil
}

func (r *SeasonRegistry) Season(ctx context.Context, seasonID string) (domain.Season, error) {
	var row seasonRow
	if err := r.db.NewSelect().Model(&row).Where("id = ?", seasonID).Scan(ctx); err != nil {
		return domain.Season{}, translate(err, domain.ErrSeasonNotFound)
	}
	return row.toDomain(), nil
}

// ListSeasons degrades to domain.ErrUnavailable when the query outlives the timeout.
func (r *SeasonRegistry) ListSeasons(ctx context.Context) ([]domain.Season, error) {
	if r.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.queryTimeout)
		defer cancel()
	}
	var rows []seasonRow
	if err := r.db.NewSelect().Model(&rows).Order("start_at ASC").Scan(ctx); err != nil {
		return nil, translate(err, nil)
	}
	out := make([]domain.Season, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Activate flips every season's flag in one UPDATE inside one transaction. The
// statement touches every row, so a concurrent activation waits on the row locks
// and re-evaluates instead of leaving two seasons active.
func (r *SeasonRegistry) Activate(ctx context.Context, seasonID string) (domain.Season, error) {
	var activated seasonRow
	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*seasonRow)(nil)).Where("id = ?", seasonID).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrSeasonNotFound
		}
		if _, err := tx.NewUpdate().
			Model((*seasonRow)(nil)).
			Set("is_active = (id = ?)", seasonID).
			Where("TRUE").
			Exec(ctx); err != nil {
			return err
		}
		return tx.NewSelect().Model(&activated).Where("id = ?", seasonID).Scan(ctx)
	})
	if err != nil {
		return domain.Season{}, translate(err, domain.ErrSeasonNotFound)
	}
	return activated.toDomain(), nil
}
