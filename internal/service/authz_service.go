package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/provadm-api/internal/models"
	"github.com/noah-isme/provadm-api/internal/workflow"
	appErrors "github.com/noah-isme/provadm-api/pkg/errors"
)

type scopeResolver interface {
	ResolveScope(ctx context.Context, actor *models.JWTClaims, tier models.OrgTier) (string, error)
}

// AuthzService decides whether an actor may act on or see a request.
// Scope mismatches surface as NotFound so actors cannot probe for
// requests outside their scope.
type AuthzService struct {
	resolver scopeResolver
	registry *workflow.Registry
	logger   *zap.Logger
}

// NewAuthzService constructs the gate.
func NewAuthzService(resolver scopeResolver, registry *workflow.Registry, logger *zap.Logger) *AuthzService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthzService{resolver: resolver, registry: registry, logger: logger}
}

// CanAct returns nil when the actor may perform the action on the
// request in its current status. Scope is checked before the transition
// so out-of-scope actors learn nothing about the request's state.
func (s *AuthzService) CanAct(ctx context.Context, actor *models.JWTClaims, request *models.ChangeRequest, action workflow.Action) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if request == nil {
		return appErrors.ErrNotFound
	}

	def, err := s.registry.Definition(request.Type)
	if err != nil {
		return err
	}

	if !actor.Role.IsSystem() {
		if err := s.matchScope(ctx, actor, request); err != nil {
			return err
		}
	}

	tr, err := def.Lookup(request.Status, action)
	if err != nil {
		return err
	}

	if actor.Role.IsSystem() {
		return nil
	}
	if actor.Role.Rank() < tr.RequiredRank {
		// Insufficient authority is indistinguishable from absence.
		return appErrors.ErrNotFound
	}
	if actor.Role.Tier() != tr.RequiredTier {
		return appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("request awaits %s review", tr.RequiredTier))
	}
	return nil
}

// CanView applies the same scope-match rule reads follow.
func (s *AuthzService) CanView(ctx context.Context, actor *models.JWTClaims, request *models.ChangeRequest) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if request == nil {
		return appErrors.ErrNotFound
	}
	if actor.Role.IsSystem() {
		return nil
	}
	return s.matchScope(ctx, actor, request)
}

// ListFilter returns the listing constraint implied by the actor's tier
// and code. System actors list everything.
func (s *AuthzService) ListFilter(ctx context.Context, actor *models.JWTClaims) (models.RequestFilter, error) {
	if actor == nil {
		return models.RequestFilter{}, appErrors.ErrUnauthorized
	}
	if actor.Role.IsSystem() {
		return models.RequestFilter{}, nil
	}
	tier := actor.Role.Tier()
	code, err := s.resolver.ResolveScope(ctx, actor, tier)
	if err != nil {
		return models.RequestFilter{}, err
	}
	filter := models.RequestFilter{}
	switch tier {
	case models.TierExamCenter:
		filter.ExamCenterCode = code
	case models.TierDistrict:
		filter.DistrictCode = code
	case models.TierProvince:
		filter.ProvinceCode = code
	default:
		return models.RequestFilter{}, appErrors.ErrForbidden
	}
	return filter, nil
}

// matchScope requires the actor's resolved code at their own tier to
// exactly equal the request's ancestor code at that tier. No prefix or
// containment matching.
func (s *AuthzService) matchScope(ctx context.Context, actor *models.JWTClaims, request *models.ChangeRequest) error {
	tier := actor.Role.Tier()
	if tier == "" {
		return appErrors.ErrNotFound
	}
	code, err := s.resolver.ResolveScope(ctx, actor, tier)
	if err != nil {
		return err
	}
	want := request.Path().CodeAt(tier)
	if want == "" || want != code {
		return appErrors.ErrNotFound
	}
	return nil
}
