package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/provadm-api/internal/models"
)

// RequestRepository persists change requests and their status log.
// Requests are never deleted; terminal rows are retained for audit.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `id, type, subject_scope, scope_tier, exam_center_code, district_code, province_code,
       status, payload, reason, created_by, created_at, updated_at`

// Create inserts a new request row together with its creation log entry
// in one transaction.
func (r *RequestRepository) Create(ctx context.Context, request *models.ChangeRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.StatusPending
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = request.CreatedAt

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create request: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertRequest = `INSERT INTO change_requests
	(id, type, subject_scope, scope_tier, exam_center_code, district_code, province_code, status, payload, reason, created_by, created_at, updated_at)
	VALUES (:id, :type, :subject_scope, :scope_tier, :exam_center_code, :district_code, :province_code, :status, :payload, :reason, :created_by, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertRequest, request); err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	entry := &models.StatusLogEntry{
		ID:         uuid.NewString(),
		RequestID:  request.ID,
		ToStatus:   request.Status,
		ActorID:    request.CreatedBy,
		Reason:     request.Reason,
		OccurredAt: request.CreatedAt,
	}
	if err := insertStatusLogTx(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.ChangeRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM change_requests WHERE id = $1`, requestColumns)
	var request models.ChangeRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns requests matching the filter (latest first).
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.ChangeRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM change_requests`, requestColumns))

	conditions := make([]string, 0, 5)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.ExamCenterCode != "" {
		args = append(args, filter.ExamCenterCode)
		conditions = append(conditions, fmt.Sprintf("exam_center_code = $%d", len(args)))
	}
	if filter.DistrictCode != "" {
		args = append(args, filter.DistrictCode)
		conditions = append(conditions, fmt.Sprintf("district_code = $%d", len(args)))
	}
	if filter.ProvinceCode != "" {
		args = append(args, filter.ProvinceCode)
		conditions = append(conditions, fmt.Sprintf("province_code = $%d", len(args)))
	}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.ChangeRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return requests, nil
}

// TransitionParams groups the fields of a status transition.
type TransitionParams struct {
	ID       string
	From     models.RequestStatus
	To       models.RequestStatus
	ActorID  string
	Reason   string
	Metadata []byte
}

// TransitionStatus advances a request with a compare-and-swap on the
// expected pre-state and appends the status log entry in the same
// transaction: the log commit IS the status commit. A CAS miss (another
// transition won the race, or the request is gone) returns sql.ErrNoRows.
func (r *RequestRepository) TransitionStatus(ctx context.Context, params TransitionParams) (*models.StatusLogEntry, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	const update = `UPDATE change_requests SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	result, err := tx.ExecContext(ctx, update, params.To, now, params.ID, params.From)
	if err != nil {
		return nil, fmt.Errorf("update request status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check transition rows: %w", err)
	}
	if rows == 0 {
		return nil, sql.ErrNoRows
	}

	entry := &models.StatusLogEntry{
		ID:         uuid.NewString(),
		RequestID:  params.ID,
		FromStatus: params.From,
		ToStatus:   params.To,
		ActorID:    params.ActorID,
		Reason:     params.Reason,
		Metadata:   params.Metadata,
		OccurredAt: now,
	}
	if err := insertStatusLogTx(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return entry, nil
}
