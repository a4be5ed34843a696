package workflow

import (
	"fmt"

	"github.com/noah-isme/provadm-api/internal/models"
	appErrors "github.com/noah-isme/provadm-api/pkg/errors"
)

// Registry maps request types to their transition tables. The three
// request variants currently share the same two-tier review shape but
// each owns its table so they can diverge independently.
type Registry struct {
	definitions map[models.RequestType]*Definition
}

// NewRegistry builds a registry from explicit per-type definitions.
func NewRegistry(definitions map[models.RequestType]*Definition) *Registry {
	return &Registry{definitions: definitions}
}

// Definition returns the table for the given request type.
func (r *Registry) Definition(t models.RequestType) (*Definition, error) {
	def, ok := r.definitions[t]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidAction, fmt.Sprintf("unsupported request type: %s", t))
	}
	return def, nil
}

// Types returns the registered request types.
func (r *Registry) Types() []models.RequestType {
	types := make([]models.RequestType, 0, len(r.definitions))
	for t := range r.definitions {
		types = append(types, t)
	}
	return types
}

// twoTierDefinition is the shared review shape: a district reviewer
// clears PENDING, a province reviewer finalizes APPROVED_TIER1, and
// rejection is possible at both stages with a substantive reason.
func twoTierDefinition(minRejectReason int) *Definition {
	rejectGuard := RequireReason(minRejectReason)
	return NewDefinition(models.StatusPending).
		Permit(models.StatusPending, ActionApprove, Transition{
			To:           models.StatusApprovedTier1,
			RequiredTier: models.TierDistrict,
			RequiredRank: models.TierRank(models.TierDistrict),
		}).
		Permit(models.StatusPending, ActionReject, Transition{
			To:           models.StatusRejected,
			RequiredTier: models.TierDistrict,
			RequiredRank: models.TierRank(models.TierDistrict),
			Guard:        rejectGuard,
		}).
		Permit(models.StatusApprovedTier1, ActionApprove, Transition{
			To:           models.StatusApprovedTier2,
			RequiredTier: models.TierProvince,
			RequiredRank: models.TierRank(models.TierProvince),
		}).
		Permit(models.StatusApprovedTier1, ActionReject, Transition{
			To:           models.StatusRejected,
			RequiredTier: models.TierProvince,
			RequiredRank: models.TierRank(models.TierProvince),
			Guard:        rejectGuard,
		})
}

// DefaultRegistry wires the transition tables for every supported
// request type.
func DefaultRegistry(minRejectReason int) *Registry {
	return NewRegistry(map[models.RequestType]*Definition{
		models.RequestTypeStatCorrection:  twoTierDefinition(minRejectReason),
		models.RequestTypeStudentTransfer: twoTierDefinition(minRejectReason),
		models.RequestTypeAppeal:          twoTierDefinition(minRejectReason),
	})
}
