package models

import "time"

// StatAggregate is the downstream statistics record mutated by an
// approved correction. It is keyed by (org unit code, period, category)
// and survives independently of the request that changed it.
type StatAggregate struct {
	ID          string    `db:"id" json:"id"`
	OrgUnitCode string    `db:"org_unit_code" json:"org_unit_code"`
	Period      string    `db:"period" json:"period"`
	Category    string    `db:"category" json:"category"`
	Count       int       `db:"count" json:"count"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// StatCategoryRegistered is the category backing registration metrics.
const StatCategoryRegistered = "REGISTERED"

// Student is the subject of transfer requests; only the fields the
// workflow touches are modeled here.
type Student struct {
	ID             string    `db:"id" json:"id"`
	FullName       string    `db:"full_name" json:"full_name"`
	ExamCenterCode string    `db:"exam_center_code" json:"exam_center_code"`
	Active         bool      `db:"active" json:"active"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// AppealCaseStatus tracks the lifecycle of an administrative appeal case.
type AppealCaseStatus string

const (
	AppealCaseOpen     AppealCaseStatus = "OPEN"
	AppealCaseResolved AppealCaseStatus = "RESOLVED"
)

// AppealCase is the record stamped with a resolution when an appeal
// request reaches final approval.
type AppealCase struct {
	ID         string           `db:"id" json:"id"`
	CaseRef    string           `db:"case_ref" json:"case_ref"`
	Status     AppealCaseStatus `db:"status" json:"status"`
	Resolution *string          `db:"resolution" json:"resolution,omitempty"`
	ResolvedAt *time.Time       `db:"resolved_at" json:"resolved_at,omitempty"`
}
