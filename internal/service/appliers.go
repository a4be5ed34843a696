package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/provadm-api/internal/models"
	appErrors "github.com/noah-isme/provadm-api/pkg/errors"
)

// Applier performs the terminal-state domain mutation for a request
// type. Apply must be safe to retry: when the target already matches
// the desired end-state it reports success without mutating again.
type Applier interface {
	Apply(ctx context.Context, request *models.ChangeRequest) ([]byte, error)
}

// ApplierFunc allows using plain functions as appliers.
type ApplierFunc func(ctx context.Context, request *models.ChangeRequest) ([]byte, error)

// Apply implements Applier.
func (f ApplierFunc) Apply(ctx context.Context, request *models.ChangeRequest) ([]byte, error) {
	return f(ctx, request)
}

type statStore interface {
	GetCount(ctx context.Context, orgUnitCode, period, category string) (int, error)
	Overwrite(ctx context.Context, orgUnitCode, period, category string, count int) error
}

// StatCorrectionApplier overwrites a statistics aggregate with the
// corrected count. The write is destructive, not additive, so retries
// converge on the same end-state.
type StatCorrectionApplier struct {
	stats  statStore
	logger *zap.Logger
}

// NewStatCorrectionApplier constructs the applier.
func NewStatCorrectionApplier(stats statStore, logger *zap.Logger) *StatCorrectionApplier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatCorrectionApplier{stats: stats, logger: logger}
}

type statCorrectionPayload struct {
	OrgUnitCode    string `json:"orgUnitCode"`
	Period         string `json:"period"`
	Category       string `json:"category"`
	CorrectedCount *int   `json:"correctedCount"`
}

// Apply overwrites the aggregate and returns the post-apply snapshot.
func (a *StatCorrectionApplier) Apply(ctx context.Context, request *models.ChangeRequest) ([]byte, error) {
	var payload statCorrectionPayload
	if err := json.Unmarshal(request.Payload, &payload); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid stat correction payload")
	}
	if payload.CorrectedCount == nil || *payload.CorrectedCount < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "correctedCount must be a non-negative number")
	}
	if strings.TrimSpace(payload.Period) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "period is required")
	}
	code := payload.OrgUnitCode
	if code == "" {
		code = request.SubjectScope
	}
	category := payload.Category
	if category == "" {
		category = models.StatCategoryRegistered
	}

	current, err := a.stats.GetCount(ctx, code, payload.Period, category)
	if err != nil {
		return nil, fmt.Errorf("read stat aggregate: %w", err)
	}
	if current != *payload.CorrectedCount {
		if err := a.stats.Overwrite(ctx, code, payload.Period, category, *payload.CorrectedCount); err != nil {
			return nil, err
		}
	} else {
		a.logger.Info("stat aggregate already at corrected value",
			zap.String("org_unit", code), zap.String("period", payload.Period))
	}
	return json.Marshal(map[string]interface{}{
		"orgUnitCode":   code,
		"period":        payload.Period,
		"category":      category,
		"previousCount": current,
		"count":         *payload.CorrectedCount,
	})
}

type studentStore interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	UpdateExamCenter(ctx context.Context, id, examCenterCode string) error
}

// StudentTransferApplier moves a student to another exam center. A
// student already at the destination counts as applied.
type StudentTransferApplier struct {
	students studentStore
	logger   *zap.Logger
}

// NewStudentTransferApplier constructs the applier.
func NewStudentTransferApplier(students studentStore, logger *zap.Logger) *StudentTransferApplier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentTransferApplier{students: students, logger: logger}
}

type studentTransferPayload struct {
	StudentID        string `json:"studentId"`
	ToExamCenterCode string `json:"toExamCenterCode"`
}

// Apply reassigns the student and returns the post-apply snapshot.
func (a *StudentTransferApplier) Apply(ctx context.Context, request *models.ChangeRequest) ([]byte, error) {
	var payload studentTransferPayload
	if err := json.Unmarshal(request.Payload, &payload); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid student transfer payload")
	}
	if payload.StudentID == "" || payload.ToExamCenterCode == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId and toExamCenterCode are required")
	}

	student, err := a.students.FindByID(ctx, payload.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student not found")
		}
		return nil, fmt.Errorf("load student: %w", err)
	}
	from := student.ExamCenterCode
	if from != payload.ToExamCenterCode {
		if err := a.students.UpdateExamCenter(ctx, student.ID, payload.ToExamCenterCode); err != nil {
			return nil, err
		}
	} else {
		a.logger.Info("student already at destination exam center",
			zap.String("student", student.ID), zap.String("exam_center", from))
	}
	return json.Marshal(map[string]interface{}{
		"studentId":      student.ID,
		"fromExamCenter": from,
		"toExamCenter":   payload.ToExamCenterCode,
	})
}

type appealStore interface {
	FindByCaseRef(ctx context.Context, caseRef string) (*models.AppealCase, error)
	Resolve(ctx context.Context, caseRef, resolution string) error
}

// AppealApplier stamps the approved resolution onto the appeal case.
type AppealApplier struct {
	appeals appealStore
	logger  *zap.Logger
}

// NewAppealApplier constructs the applier.
func NewAppealApplier(appeals appealStore, logger *zap.Logger) *AppealApplier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AppealApplier{appeals: appeals, logger: logger}
}

type appealPayload struct {
	CaseRef    string `json:"caseRef"`
	Resolution string `json:"resolution"`
}

// Apply resolves the case and returns the post-apply snapshot. A case
// already resolved with the same outcome counts as applied; a different
// outcome is a conflict, never silently overwritten.
func (a *AppealApplier) Apply(ctx context.Context, request *models.ChangeRequest) ([]byte, error) {
	var payload appealPayload
	if err := json.Unmarshal(request.Payload, &payload); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid appeal payload")
	}
	if payload.CaseRef == "" || strings.TrimSpace(payload.Resolution) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "caseRef and resolution are required")
	}

	appeal, err := a.appeals.FindByCaseRef(ctx, payload.CaseRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "appeal case not found")
		}
		return nil, fmt.Errorf("load appeal case: %w", err)
	}
	switch {
	case appeal.Status == models.AppealCaseResolved && appeal.Resolution != nil && *appeal.Resolution == payload.Resolution:
		a.logger.Info("appeal case already resolved", zap.String("case_ref", appeal.CaseRef))
	case appeal.Status == models.AppealCaseResolved:
		return nil, appErrors.Clone(appErrors.ErrConflict, "appeal case already resolved with a different outcome")
	default:
		if err := a.appeals.Resolve(ctx, appeal.CaseRef, payload.Resolution); err != nil {
			return nil, err
		}
	}
	return json.Marshal(map[string]interface{}{
		"caseRef":    appeal.CaseRef,
		"resolution": payload.Resolution,
	})
}
