package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/provadm-api/internal/models"
)

// StatisticRepository reads and overwrites statistics aggregates.
type StatisticRepository struct {
	db *sqlx.DB
}

// NewStatisticRepository constructs the repository.
func NewStatisticRepository(db *sqlx.DB) *StatisticRepository {
	return &StatisticRepository{db: db}
}

// Get fetches the aggregate for (org unit, period, category).
func (r *StatisticRepository) Get(ctx context.Context, orgUnitCode, period, category string) (*models.StatAggregate, error) {
	const query = `SELECT id, org_unit_code, period, category, count, updated_at
	FROM stat_aggregates WHERE org_unit_code = $1 AND period = $2 AND category = $3`
	var agg models.StatAggregate
	if err := r.db.GetContext(ctx, &agg, query, orgUnitCode, period, category); err != nil {
		return nil, err
	}
	return &agg, nil
}

// GetCount returns the aggregate count, treating a missing row as zero.
func (r *StatisticRepository) GetCount(ctx context.Context, orgUnitCode, period, category string) (int, error) {
	agg, err := r.Get(ctx, orgUnitCode, period, category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return agg.Count, nil
}

// Overwrite sets the aggregate count, creating the row when absent. The
// write is a destructive overwrite, so repeating it with the same value
// is a no-op.
func (r *StatisticRepository) Overwrite(ctx context.Context, orgUnitCode, period, category string, count int) error {
	const upsert = `INSERT INTO stat_aggregates (id, org_unit_code, period, category, count, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (org_unit_code, period, category)
	DO UPDATE SET count = EXCLUDED.count, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, upsert, uuid.NewString(), orgUnitCode, period, category, count, time.Now().UTC()); err != nil {
		return fmt.Errorf("overwrite stat aggregate: %w", err)
	}
	return nil
}
