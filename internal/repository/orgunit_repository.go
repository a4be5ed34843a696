package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/provadm-api/internal/models"
)

// OrgUnitRepository reads the org directory. The directory itself is
// maintained elsewhere; this service only resolves it.
type OrgUnitRepository struct {
	db *sqlx.DB
}

// NewOrgUnitRepository constructs the repository.
func NewOrgUnitRepository(db *sqlx.DB) *OrgUnitRepository {
	return &OrgUnitRepository{db: db}
}

const orgUnitColumns = `id, code, parent_code, tier, name, active, created_at`

// GetByID fetches an org unit by its internal storage id.
func (r *OrgUnitRepository) GetByID(ctx context.Context, id string) (*models.OrgUnit, error) {
	query := fmt.Sprintf(`SELECT %s FROM org_units WHERE id = $1`, orgUnitColumns)
	var unit models.OrgUnit
	if err := r.db.GetContext(ctx, &unit, query, id); err != nil {
		return nil, err
	}
	return &unit, nil
}

// GetByCode fetches an org unit by its stable code.
func (r *OrgUnitRepository) GetByCode(ctx context.Context, code string) (*models.OrgUnit, error) {
	query := fmt.Sprintf(`SELECT %s FROM org_units WHERE code = $1`, orgUnitColumns)
	var unit models.OrgUnit
	if err := r.db.GetContext(ctx, &unit, query, code); err != nil {
		return nil, err
	}
	return &unit, nil
}

// ListChildren returns the direct children of the given unit.
func (r *OrgUnitRepository) ListChildren(ctx context.Context, parentCode string) ([]models.OrgUnit, error) {
	query := fmt.Sprintf(`SELECT %s FROM org_units WHERE parent_code = $1 ORDER BY code`, orgUnitColumns)
	var units []models.OrgUnit
	if err := r.db.SelectContext(ctx, &units, query, parentCode); err != nil {
		return nil, fmt.Errorf("list org unit children: %w", err)
	}
	return units, nil
}

// Path resolves the ancestor chain of the given code. The tree is three
// levels deep, so at most two parent hops are needed.
func (r *OrgUnitRepository) Path(ctx context.Context, code string) (models.OrgPath, error) {
	var path models.OrgPath
	current, err := r.GetByCode(ctx, code)
	if err != nil {
		return path, err
	}
	for hops := 0; current != nil && hops < 3; hops++ {
		switch current.Tier {
		case models.TierExamCenter:
			path.ExamCenterCode = current.Code
		case models.TierDistrict:
			path.DistrictCode = current.Code
		case models.TierProvince:
			path.ProvinceCode = current.Code
		default:
			return models.OrgPath{}, fmt.Errorf("org unit %s has unknown tier %q", current.Code, current.Tier)
		}
		if current.ParentCode == nil || *current.ParentCode == "" {
			break
		}
		parent, err := r.GetByCode(ctx, *current.ParentCode)
		if err != nil {
			return models.OrgPath{}, fmt.Errorf("resolve parent of %s: %w", current.Code, err)
		}
		current = parent
	}
	return path, nil
}
