package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/provadm-api/internal/models"
	appErrors "github.com/noah-isme/provadm-api/pkg/errors"
)

type orgUnitStore interface {
	GetByID(ctx context.Context, id string) (*models.OrgUnit, error)
	GetByCode(ctx context.Context, code string) (*models.OrgUnit, error)
	ListChildren(ctx context.Context, parentCode string) ([]models.OrgUnit, error)
	Path(ctx context.Context, code string) (models.OrgPath, error)
}

// HierarchyService resolves org-directory references to stable codes and
// ancestor chains. Lookups are cached; a missing reference is always an
// explicit ScopeUndefined, never a silent default.
type HierarchyService struct {
	repo   orgUnitStore
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewHierarchyService constructs the service.
func NewHierarchyService(repo orgUnitStore, cache *CacheService, ttl time.Duration, logger *zap.Logger) *HierarchyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &HierarchyService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// ResolveCode resolves an org-directory internal id to the unit's stable
// code, verifying the unit sits at the expected tier.
func (s *HierarchyService) ResolveCode(ctx context.Context, ref string, tier models.OrgTier) (string, error) {
	if ref == "" {
		return "", appErrors.ErrScopeUndefined
	}

	cacheKey := fmt.Sprintf("org:ref:%s", ref)
	var cached models.OrgUnit
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit && cached.Tier == tier {
		return cached.Code, nil
	}

	unit, err := s.repo.GetByID(ctx, ref)
	if err != nil {
		return "", s.lookupError(err, "org unit")
	}
	if unit.Tier != tier {
		return "", appErrors.Clone(appErrors.ErrScopeUndefined,
			fmt.Sprintf("org unit %s is a %s, expected %s", unit.Code, unit.Tier, tier))
	}
	if err := s.cache.Set(ctx, cacheKey, unit, s.ttl); err != nil {
		s.logger.Warn("failed to cache org unit", zap.String("ref", ref), zap.Error(err))
	}
	return unit.Code, nil
}

// ResolveScope resolves the actor's own code at the given tier from the
// refs carried in their claims.
func (s *HierarchyService) ResolveScope(ctx context.Context, actor *models.JWTClaims, tier models.OrgTier) (string, error) {
	if actor == nil {
		return "", appErrors.ErrUnauthorized
	}
	return s.ResolveCode(ctx, actor.Scope.RefAt(tier), tier)
}

// Path returns the ancestor chain for an org unit code.
func (s *HierarchyService) Path(ctx context.Context, code string) (models.OrgPath, error) {
	if code == "" {
		return models.OrgPath{}, appErrors.ErrScopeUndefined
	}

	cacheKey := fmt.Sprintf("org:path:%s", code)
	var cached models.OrgPath
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return cached, nil
	}

	path, err := s.repo.Path(ctx, code)
	if err != nil {
		return models.OrgPath{}, s.lookupError(err, "org unit path")
	}
	if err := s.cache.Set(ctx, cacheKey, path, s.ttl); err != nil {
		s.logger.Warn("failed to cache org path", zap.String("code", code), zap.Error(err))
	}
	return path, nil
}

// Children lists the direct children of an org unit.
func (s *HierarchyService) Children(ctx context.Context, code string) ([]models.OrgUnit, error) {
	if code == "" {
		return nil, appErrors.ErrScopeUndefined
	}
	units, err := s.repo.ListChildren(ctx, code)
	if err != nil {
		return nil, s.lookupError(err, "org unit children")
	}
	return units, nil
}

// lookupError maps store failures: unknown units are NotFound, timeouts
// surface as a retryable Unavailable rather than an implicit deny.
func (s *HierarchyService) lookupError(err error, what string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, what+" not found")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "org directory lookup timed out")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve "+what)
	}
}
