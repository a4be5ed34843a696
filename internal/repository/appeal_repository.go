package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/provadm-api/internal/models"
)

// AppealRepository persists appeal cases resolved by the workflow.
type AppealRepository struct {
	db *sqlx.DB
}

// NewAppealRepository constructs the repository.
func NewAppealRepository(db *sqlx.DB) *AppealRepository {
	return &AppealRepository{db: db}
}

// FindByCaseRef fetches an appeal case by its external reference.
func (r *AppealRepository) FindByCaseRef(ctx context.Context, caseRef string) (*models.AppealCase, error) {
	const query = `SELECT id, case_ref, status, resolution, resolved_at FROM appeal_cases WHERE case_ref = $1`
	var appeal models.AppealCase
	if err := r.db.GetContext(ctx, &appeal, query, caseRef); err != nil {
		return nil, err
	}
	return &appeal, nil
}

// Resolve stamps the resolution onto the case.
func (r *AppealRepository) Resolve(ctx context.Context, caseRef, resolution string) error {
	const update = `UPDATE appeal_cases SET status = $1, resolution = $2, resolved_at = $3 WHERE case_ref = $4`
	if _, err := r.db.ExecContext(ctx, update, models.AppealCaseResolved, resolution, time.Now().UTC(), caseRef); err != nil {
		return fmt.Errorf("resolve appeal case: %w", err)
	}
	return nil
}
