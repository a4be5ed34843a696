package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/provadm-api/internal/models"
	"github.com/noah-isme/provadm-api/internal/workflow"
	appErrors "github.com/noah-isme/provadm-api/pkg/errors"
)

type scopeResolverStub struct {
	codes map[models.OrgTier]string
	err   error
}

func (s *scopeResolverStub) ResolveScope(ctx context.Context, actor *models.JWTClaims, tier models.OrgTier) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	code, ok := s.codes[tier]
	if !ok {
		return "", appErrors.ErrScopeUndefined
	}
	return code, nil
}

func pendingRequest() *models.ChangeRequest {
	return &models.ChangeRequest{
		ID:             "req-1",
		Type:           models.RequestTypeStatCorrection,
		SubjectScope:   "EC-001",
		ScopeTier:      models.TierExamCenter,
		ExamCenterCode: "EC-001",
		DistrictCode:   "D-01",
		ProvinceCode:   "P-1",
		Status:         models.StatusPending,
	}
}

func newAuthz(resolver scopeResolver) *AuthzService {
	return NewAuthzService(resolver, workflow.DefaultRegistry(workflow.DefaultMinRejectReason), nil)
}

func TestAuthzDistrictReviewerActsOnPending(t *testing.T) {
	resolver := &scopeResolverStub{codes: map[models.OrgTier]string{models.TierDistrict: "D-01"}}
	authz := newAuthz(resolver)
	actor := &models.JWTClaims{UserID: "rev-1", Role: models.RoleDistrictReviewer}

	err := authz.CanAct(context.Background(), actor, pendingRequest(), workflow.ActionApprove)
	require.NoError(t, err)
}

func TestAuthzOutOfScopeReadsAsNotFound(t *testing.T) {
	resolver := &scopeResolverStub{codes: map[models.OrgTier]string{models.TierDistrict: "D-99"}}
	authz := newAuthz(resolver)
	actor := &models.JWTClaims{UserID: "rev-1", Role: models.RoleDistrictReviewer}

	err := authz.CanAct(context.Background(), actor, pendingRequest(), workflow.ActionApprove)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	err = authz.CanView(context.Background(), actor, pendingRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestAuthzProvinceReviewerTooEarly(t *testing.T) {
	// In scope but the request still awaits district review: the actor may
	// know it exists, so the answer is an invalid transition, not absence.
	resolver := &scopeResolverStub{codes: map[models.OrgTier]string{models.TierProvince: "P-1"}}
	authz := newAuthz(resolver)
	actor := &models.JWTClaims{UserID: "rev-2", Role: models.RoleProvinceReviewer}

	err := authz.CanAct(context.Background(), actor, pendingRequest(), workflow.ActionApprove)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
}

func TestAuthzInsufficientRankReadsAsNotFound(t *testing.T) {
	resolver := &scopeResolverStub{codes: map[models.OrgTier]string{models.TierExamCenter: "EC-001"}}
	authz := newAuthz(resolver)
	actor := &models.JWTClaims{UserID: "adm-1", Role: models.RoleExamCenterAdmin}

	err := authz.CanAct(context.Background(), actor, pendingRequest(), workflow.ActionApprove)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestAuthzSystemAdminBypassesScope(t *testing.T) {
	authz := newAuthz(&scopeResolverStub{})
	actor := &models.JWTClaims{UserID: "sys-1", Role: models.RoleSystemAdmin}

	require.NoError(t, authz.CanAct(context.Background(), actor, pendingRequest(), workflow.ActionApprove))
	require.NoError(t, authz.CanView(context.Background(), actor, pendingRequest()))

	// Even system actors cannot act on terminal requests.
	terminal := pendingRequest()
	terminal.Status = models.StatusRejected
	err := authz.CanAct(context.Background(), actor, terminal, workflow.ActionApprove)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
}

func TestAuthzDistrictReviewerFinalStage(t *testing.T) {
	resolver := &scopeResolverStub{codes: map[models.OrgTier]string{models.TierDistrict: "D-01"}}
	authz := newAuthz(resolver)
	actor := &models.JWTClaims{UserID: "rev-1", Role: models.RoleDistrictReviewer}

	request := pendingRequest()
	request.Status = models.StatusApprovedTier1
	err := authz.CanAct(context.Background(), actor, request, workflow.ActionApprove)
	require.Error(t, err)
	// District rank is below the province requirement, so the request
	// reads as absent.
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestAuthzListFilterPerTier(t *testing.T) {
	resolver := &scopeResolverStub{codes: map[models.OrgTier]string{
		models.TierExamCenter: "EC-001",
		models.TierDistrict:   "D-01",
		models.TierProvince:   "P-1",
	}}
	authz := newAuthz(resolver)

	filter, err := authz.ListFilter(context.Background(), &models.JWTClaims{Role: models.RoleExamCenterAdmin})
	require.NoError(t, err)
	assert.Equal(t, "EC-001", filter.ExamCenterCode)
	assert.Empty(t, filter.DistrictCode)

	filter, err = authz.ListFilter(context.Background(), &models.JWTClaims{Role: models.RoleDistrictReviewer})
	require.NoError(t, err)
	assert.Equal(t, "D-01", filter.DistrictCode)

	filter, err = authz.ListFilter(context.Background(), &models.JWTClaims{Role: models.RoleProvinceReviewer})
	require.NoError(t, err)
	assert.Equal(t, "P-1", filter.ProvinceCode)

	filter, err = authz.ListFilter(context.Background(), &models.JWTClaims{Role: models.RoleSystemAdmin})
	require.NoError(t, err)
	assert.Equal(t, models.RequestFilter{}, filter)
}

func TestAuthzUndefinedScopeFailsClosed(t *testing.T) {
	authz := newAuthz(&scopeResolverStub{})
	actor := &models.JWTClaims{UserID: "rev-1", Role: models.RoleDistrictReviewer}

	err := authz.CanAct(context.Background(), actor, pendingRequest(), workflow.ActionApprove)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrScopeUndefined))
}
