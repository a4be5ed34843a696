package models

import "time"

// RequestType enumerates supported change-request categories.
type RequestType string

const (
	RequestTypeStatCorrection  RequestType = "STAT_CORRECTION"
	RequestTypeStudentTransfer RequestType = "STUDENT_TRANSFER"
	RequestTypeAppeal          RequestType = "APPEAL"
)

// RequestStatus captures workflow states for change requests.
type RequestStatus string

const (
	StatusPending       RequestStatus = "PENDING"
	StatusApprovedTier1 RequestStatus = "APPROVED_TIER1"
	StatusApprovedTier2 RequestStatus = "APPROVED_TIER2"
	StatusRejected      RequestStatus = "REJECTED"
)

var validStatuses = map[RequestStatus]bool{
	StatusPending:       true,
	StatusApprovedTier1: true,
	StatusApprovedTier2: true,
	StatusRejected:      true,
}

var terminalStatuses = map[RequestStatus]bool{
	StatusApprovedTier2: true,
	StatusRejected:      true,
}

// IsValid reports whether the status is a known workflow status.
func (s RequestStatus) IsValid() bool {
	return validStatuses[s]
}

// IsTerminal reports whether the status admits no further transitions.
func (s RequestStatus) IsTerminal() bool {
	return terminalStatuses[s]
}

// ChangeRequest stores a scoped change request awaiting review. The
// subject scope's ancestor codes are denormalized at creation so
// authorization and listing never re-walk the tree.
type ChangeRequest struct {
	ID             string        `db:"id" json:"id"`
	Type           RequestType   `db:"type" json:"type"`
	SubjectScope   string        `db:"subject_scope" json:"subject_scope"`
	ScopeTier      OrgTier       `db:"scope_tier" json:"scope_tier"`
	ExamCenterCode string        `db:"exam_center_code" json:"exam_center_code,omitempty"`
	DistrictCode   string        `db:"district_code" json:"district_code,omitempty"`
	ProvinceCode   string        `db:"province_code" json:"province_code,omitempty"`
	Status         RequestStatus `db:"status" json:"status"`
	Payload        []byte        `db:"payload" json:"payload"`
	Reason         string        `db:"reason" json:"reason"`
	CreatedBy      string        `db:"created_by" json:"created_by"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// Path returns the denormalized ancestor chain of the request's subject.
func (r *ChangeRequest) Path() OrgPath {
	return OrgPath{
		ExamCenterCode: r.ExamCenterCode,
		DistrictCode:   r.DistrictCode,
		ProvinceCode:   r.ProvinceCode,
	}
}

// RequestFilter constrains listing queries.
type RequestFilter struct {
	Status         []RequestStatus
	Type           RequestType
	ExamCenterCode string
	DistrictCode   string
	ProvinceCode   string
	CreatedBy      string
	Limit          int
	Offset         int
}
