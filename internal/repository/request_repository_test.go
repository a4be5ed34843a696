package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/provadm-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func requestRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "type", "subject_scope", "scope_tier", "exam_center_code", "district_code",
		"province_code", "status", "payload", "reason", "created_by", "created_at", "updated_at",
	})
}

func TestRequestRepositoryCreateAppendsLog(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO change_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO status_log")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	request := &models.ChangeRequest{
		Type:           models.RequestTypeStatCorrection,
		SubjectScope:   "EC-001",
		ScopeTier:      models.TierExamCenter,
		ExamCenterCode: "EC-001",
		DistrictCode:   "D-01",
		ProvinceCode:   "P-1",
		Payload:        []byte(`{"period":"2026","correctedCount":120}`),
		Reason:         "count off by ten",
		CreatedBy:      "adm-1",
	}
	require.NoError(t, repo.Create(context.Background(), request))
	assert.NotEmpty(t, request.ID)
	assert.Equal(t, models.StatusPending, request.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, type, subject_scope")).
		WithArgs("req-1").
		WillReturnRows(requestRows().AddRow(
			"req-1", "STAT_CORRECTION", "EC-001", "EXAM_CENTER", "EC-001", "D-01",
			"P-1", "PENDING", []byte(`{}`), "fix", "adm-1", now, now,
		))

	request, err := repo.GetByID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, request.Status)
	assert.Equal(t, "D-01", request.DistrictCode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, type, subject_scope")).
		WithArgs("PENDING", "D-01").
		WillReturnRows(requestRows().AddRow(
			"req-1", "APPEAL", "EC-001", "EXAM_CENTER", "EC-001", "D-01",
			"P-1", "PENDING", []byte(`{}`), "", "adm-1", now, now,
		))

	requests, err := repo.List(context.Background(), models.RequestFilter{
		Status:       []models.RequestStatus{models.StatusPending},
		DistrictCode: "D-01",
	})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "req-1", requests[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryTransitionStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE change_requests SET status")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO status_log")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	entry, err := repo.TransitionStatus(context.Background(), TransitionParams{
		ID:      "req-1",
		From:    models.StatusPending,
		To:      models.StatusApprovedTier1,
		ActorID: "rev-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, entry.FromStatus)
	assert.Equal(t, models.StatusApprovedTier1, entry.ToStatus)
	assert.NotEmpty(t, entry.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryTransitionStatusCASMiss(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectBegin()
	// Another transition already moved the row: zero rows match the
	// expected pre-state and nothing is logged.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE change_requests SET status")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.TransitionStatus(context.Background(), TransitionParams{
		ID:   "req-1",
		From: models.StatusPending,
		To:   models.StatusApprovedTier1,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}
