package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleExamCenterAdmin  UserRole = "EXAM_CENTER_ADMIN"
	RoleDistrictReviewer UserRole = "DISTRICT_REVIEWER"
	RoleProvinceReviewer UserRole = "PROVINCE_REVIEWER"
	RoleSystemAdmin      UserRole = "SYSTEM_ADMIN"
)

// SystemRank is the authority rank of system administrators, above every
// organizational tier.
const SystemRank = 3

// Rank maps the role to its reviewer authority rank. This is the single
// role->tier lookup consulted by authorization; handlers never compare
// role strings directly.
func (r UserRole) Rank() int {
	switch r {
	case RoleExamCenterAdmin:
		return TierRank(TierExamCenter)
	case RoleDistrictReviewer:
		return TierRank(TierDistrict)
	case RoleProvinceReviewer:
		return TierRank(TierProvince)
	case RoleSystemAdmin:
		return SystemRank
	default:
		return -1
	}
}

// Tier returns the organizational tier the role operates at. System
// administrators have no home tier and return "".
func (r UserRole) Tier() OrgTier {
	switch r {
	case RoleExamCenterAdmin:
		return TierExamCenter
	case RoleDistrictReviewer:
		return TierDistrict
	case RoleProvinceReviewer:
		return TierProvince
	default:
		return ""
	}
}

// IsSystem reports whether the role bypasses scope matching.
func (r UserRole) IsSystem() bool {
	return r == RoleSystemAdmin
}

// ScopeRefs carries the org-directory internal ids the actor is bound to.
// A ref is the storage id of an OrgUnit, not its code; resolution goes
// through the hierarchy service.
type ScopeRefs struct {
	ProvinceRef   string `json:"province_ref,omitempty"`
	DistrictRef   string `json:"district_ref,omitempty"`
	ExamCenterRef string `json:"exam_center_ref,omitempty"`
}

// RefAt returns the ref for the given tier, or "" when unset.
func (s ScopeRefs) RefAt(tier OrgTier) string {
	switch tier {
	case TierExamCenter:
		return s.ExamCenterRef
	case TierDistrict:
		return s.DistrictRef
	case TierProvince:
		return s.ProvinceRef
	default:
		return ""
	}
}

// JWTClaims represents the JWT payload for access tokens issued by the
// identity provider.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Scope    ScopeRefs `json:"scope"`
	jwt.RegisteredClaims
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
