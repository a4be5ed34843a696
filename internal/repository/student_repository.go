package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/provadm-api/internal/models"
)

// StudentRepository reads and reassigns students for transfer requests.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID fetches a student by identifier.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, full_name, exam_center_code, active, updated_at FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// UpdateExamCenter moves the student to another exam center.
func (r *StudentRepository) UpdateExamCenter(ctx context.Context, id, examCenterCode string) error {
	const update = `UPDATE students SET exam_center_code = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, update, examCenterCode, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update student exam center: %w", err)
	}
	return nil
}
