package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/provadm-api/internal/models"
)

// StatusLogRepository reads the append-only transition log. Writes go
// through insertStatusLogTx inside the request repository's
// transactions; there is deliberately no standalone insert, update, or
// delete on this table.
type StatusLogRepository struct {
	db *sqlx.DB
}

// NewStatusLogRepository constructs the repository.
func NewStatusLogRepository(db *sqlx.DB) *StatusLogRepository {
	return &StatusLogRepository{db: db}
}

// ListByRequest returns the transition history in causal order.
func (r *StatusLogRepository) ListByRequest(ctx context.Context, requestID string) ([]models.StatusLogEntry, error) {
	const query = `SELECT id, request_id, from_status, to_status, actor_id, reason, metadata, occurred_at
	FROM status_log WHERE request_id = $1 ORDER BY occurred_at ASC, id ASC`
	var entries []models.StatusLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, requestID); err != nil {
		return nil, fmt.Errorf("list status log: %w", err)
	}
	return entries, nil
}

// insertStatusLogTx appends one log entry inside an open transaction.
func insertStatusLogTx(ctx context.Context, tx *sqlx.Tx, entry *models.StatusLogEntry) error {
	const insert = `INSERT INTO status_log
	(id, request_id, from_status, to_status, actor_id, reason, metadata, occurred_at)
	VALUES (:id, :request_id, :from_status, :to_status, :actor_id, :reason, :metadata, :occurred_at)`
	if _, err := tx.NamedExecContext(ctx, insert, entry); err != nil {
		return fmt.Errorf("append status log: %w", err)
	}
	return nil
}
