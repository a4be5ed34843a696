package models

import "time"

// OrgTier identifies one level of the province -> district -> exam-center tree.
type OrgTier string

const (
	TierExamCenter OrgTier = "EXAM_CENTER"
	TierDistrict   OrgTier = "DISTRICT"
	TierProvince   OrgTier = "PROVINCE"
)

// TierRank orders tiers by reviewer authority. Unknown tiers rank below all.
func TierRank(tier OrgTier) int {
	switch tier {
	case TierExamCenter:
		return 0
	case TierDistrict:
		return 1
	case TierProvince:
		return 2
	default:
		return -1
	}
}

// OrgUnit is a node in the organizational tree. Code is the stable
// cross-request identity; the storage id is internal only.
type OrgUnit struct {
	ID         string    `db:"id" json:"id"`
	Code       string    `db:"code" json:"code"`
	ParentCode *string   `db:"parent_code" json:"parent_code,omitempty"`
	Tier       OrgTier   `db:"tier" json:"tier"`
	Name       string    `db:"name" json:"name"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// OrgPath holds the ancestor codes of an org unit up to the province.
// Slots above the unit's own tier are always set; slots below are empty
// (a district's path has no exam-center code).
type OrgPath struct {
	ExamCenterCode string `json:"exam_center_code,omitempty"`
	DistrictCode   string `json:"district_code,omitempty"`
	ProvinceCode   string `json:"province_code,omitempty"`
}

// CodeAt returns the path's code at the given tier, or "" when the path
// does not reach that tier.
func (p OrgPath) CodeAt(tier OrgTier) string {
	switch tier {
	case TierExamCenter:
		return p.ExamCenterCode
	case TierDistrict:
		return p.DistrictCode
	case TierProvince:
		return p.ProvinceCode
	default:
		return ""
	}
}
