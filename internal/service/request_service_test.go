package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/provadm-api/internal/dto"
	"github.com/noah-isme/provadm-api/internal/models"
	"github.com/noah-isme/provadm-api/internal/repository"
	"github.com/noah-isme/provadm-api/internal/workflow"
	appErrors "github.com/noah-isme/provadm-api/pkg/errors"
)

type requestStoreStub struct {
	requests      map[string]*models.ChangeRequest
	lastFilter    models.RequestFilter
	transitionErr error
	transitions   []repository.TransitionParams
}

func newRequestStoreStub() *requestStoreStub {
	return &requestStoreStub{requests: make(map[string]*models.ChangeRequest)}
}

func (s *requestStoreStub) Create(ctx context.Context, request *models.ChangeRequest) error {
	if request.ID == "" {
		request.ID = "req-1"
	}
	copy := *request
	s.requests[request.ID] = &copy
	return nil
}

func (s *requestStoreStub) GetByID(ctx context.Context, id string) (*models.ChangeRequest, error) {
	request, ok := s.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *request
	return &copy, nil
}

func (s *requestStoreStub) List(ctx context.Context, filter models.RequestFilter) ([]models.ChangeRequest, error) {
	s.lastFilter = filter
	result := make([]models.ChangeRequest, 0, len(s.requests))
	for _, request := range s.requests {
		result = append(result, *request)
	}
	return result, nil
}

func (s *requestStoreStub) TransitionStatus(ctx context.Context, params repository.TransitionParams) (*models.StatusLogEntry, error) {
	if s.transitionErr != nil {
		return nil, s.transitionErr
	}
	request, ok := s.requests[params.ID]
	if !ok || request.Status != params.From {
		return nil, sql.ErrNoRows
	}
	request.Status = params.To
	s.transitions = append(s.transitions, params)
	return &models.StatusLogEntry{
		ID:         "log-1",
		RequestID:  params.ID,
		FromStatus: params.From,
		ToStatus:   params.To,
		ActorID:    params.ActorID,
		Reason:     params.Reason,
		Metadata:   params.Metadata,
	}, nil
}

type statusLogStoreStub struct {
	entries []models.StatusLogEntry
}

func (s *statusLogStoreStub) ListByRequest(ctx context.Context, requestID string) ([]models.StatusLogEntry, error) {
	return s.entries, nil
}

type authorizerStub struct {
	canActErr  error
	canViewErr error
	filter     models.RequestFilter
}

func (a *authorizerStub) CanAct(ctx context.Context, actor *models.JWTClaims, request *models.ChangeRequest, action workflow.Action) error {
	return a.canActErr
}

func (a *authorizerStub) CanView(ctx context.Context, actor *models.JWTClaims, request *models.ChangeRequest) error {
	return a.canViewErr
}

func (a *authorizerStub) ListFilter(ctx context.Context, actor *models.JWTClaims) (models.RequestFilter, error) {
	return a.filter, nil
}

type pathResolverStub struct {
	paths  map[string]models.OrgPath
	scopes map[models.OrgTier]string
}

func (r *pathResolverStub) Path(ctx context.Context, code string) (models.OrgPath, error) {
	path, ok := r.paths[code]
	if !ok {
		return models.OrgPath{}, appErrors.ErrNotFound
	}
	return path, nil
}

func (r *pathResolverStub) ResolveScope(ctx context.Context, actor *models.JWTClaims, tier models.OrgTier) (string, error) {
	code, ok := r.scopes[tier]
	if !ok {
		return "", appErrors.ErrScopeUndefined
	}
	return code, nil
}

func defaultResolver() *pathResolverStub {
	return &pathResolverStub{
		paths: map[string]models.OrgPath{
			"EC-001": {ExamCenterCode: "EC-001", DistrictCode: "D-01", ProvinceCode: "P-1"},
			"D-01":   {DistrictCode: "D-01", ProvinceCode: "P-1"},
		},
		scopes: map[models.OrgTier]string{
			models.TierExamCenter: "EC-001",
			models.TierDistrict:   "D-01",
			models.TierProvince:   "P-1",
		},
	}
}

func newTestRequestService(store *requestStoreStub, logs *statusLogStoreStub, authz *authorizerStub, resolver *pathResolverStub, opts ...RequestServiceOption) *RequestService {
	registry := workflow.DefaultRegistry(workflow.DefaultMinRejectReason)
	return NewRequestService(store, logs, authz, resolver, registry, nil, opts...)
}

func TestRequestServiceSubmit(t *testing.T) {
	store := newRequestStoreStub()
	svc := newTestRequestService(store, &statusLogStoreStub{}, &authorizerStub{}, defaultResolver())
	actor := &models.JWTClaims{UserID: "adm-1", Role: models.RoleExamCenterAdmin}

	request, err := svc.Submit(context.Background(), dto.CreateRequestRequest{
		Type:         models.RequestTypeStatCorrection,
		SubjectScope: "EC-001",
		Reason:       "registered count off by ten",
		Payload:      json.RawMessage(`{"period":"2026","correctedCount":120}`),
	}, actor)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, request.Status)
	assert.Equal(t, models.TierExamCenter, request.ScopeTier)
	assert.Equal(t, "EC-001", request.ExamCenterCode)
	assert.Equal(t, "D-01", request.DistrictCode)
	assert.Equal(t, "P-1", request.ProvinceCode)
	assert.Equal(t, "adm-1", request.CreatedBy)
	require.Contains(t, store.requests, request.ID)
}

func TestRequestServiceSubmitUnknownScope(t *testing.T) {
	svc := newTestRequestService(newRequestStoreStub(), &statusLogStoreStub{}, &authorizerStub{}, defaultResolver())
	actor := &models.JWTClaims{UserID: "adm-1", Role: models.RoleExamCenterAdmin}

	_, err := svc.Submit(context.Background(), dto.CreateRequestRequest{
		Type:         models.RequestTypeStatCorrection,
		SubjectScope: "EC-404",
		Payload:      json.RawMessage(`{}`),
	}, actor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestRequestServiceSubmitOutsideOwnScope(t *testing.T) {
	resolver := defaultResolver()
	resolver.paths["EC-002"] = models.OrgPath{ExamCenterCode: "EC-002", DistrictCode: "D-02", ProvinceCode: "P-1"}
	svc := newTestRequestService(newRequestStoreStub(), &statusLogStoreStub{}, &authorizerStub{}, resolver)
	actor := &models.JWTClaims{UserID: "adm-1", Role: models.RoleExamCenterAdmin}

	_, err := svc.Submit(context.Background(), dto.CreateRequestRequest{
		Type:         models.RequestTypeStatCorrection,
		SubjectScope: "EC-002",
		Payload:      json.RawMessage(`{}`),
	}, actor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestRequestServiceSubmitValidation(t *testing.T) {
	svc := newTestRequestService(newRequestStoreStub(), &statusLogStoreStub{}, &authorizerStub{}, defaultResolver())
	actor := &models.JWTClaims{UserID: "adm-1", Role: models.RoleExamCenterAdmin}

	_, err := svc.Submit(context.Background(), dto.CreateRequestRequest{
		Type:         models.RequestType("BUDGET_CHANGE"),
		SubjectScope: "EC-001",
		Payload:      json.RawMessage(`{}`),
	}, actor)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Submit(context.Background(), dto.CreateRequestRequest{
		Type:         models.RequestTypeAppeal,
		SubjectScope: "EC-001",
		Payload:      json.RawMessage(`{not json`),
	}, actor)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Submit(context.Background(), dto.CreateRequestRequest{
		Type:    models.RequestTypeAppeal,
		Payload: json.RawMessage(`{}`),
	}, actor)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func seedRequest(store *requestStoreStub, status models.RequestStatus) *models.ChangeRequest {
	request := &models.ChangeRequest{
		ID:             "req-1",
		Type:           models.RequestTypeStatCorrection,
		SubjectScope:   "EC-001",
		ScopeTier:      models.TierExamCenter,
		ExamCenterCode: "EC-001",
		DistrictCode:   "D-01",
		ProvinceCode:   "P-1",
		Status:         status,
		Payload:        []byte(`{"period":"2026","correctedCount":120}`),
	}
	store.requests[request.ID] = request
	return request
}

func TestRequestServiceActFirstApproval(t *testing.T) {
	store := newRequestStoreStub()
	seedRequest(store, models.StatusPending)
	applied := false
	svc := newTestRequestService(store, &statusLogStoreStub{}, &authorizerStub{}, defaultResolver(),
		WithAppliers(map[models.RequestType]Applier{
			models.RequestTypeStatCorrection: ApplierFunc(func(ctx context.Context, request *models.ChangeRequest) ([]byte, error) {
				applied = true
				return []byte(`{}`), nil
			}),
		}))
	actor := &models.JWTClaims{UserID: "rev-1", Role: models.RoleDistrictReviewer}

	result, err := svc.Act(context.Background(), "req-1", dto.ActionRequest{Action: "APPROVE"}, actor)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApprovedTier1, result.NewStatus)
	assert.Equal(t, models.StatusApprovedTier1, store.requests["req-1"].Status)
	// The side effect only runs on the final approval.
	assert.False(t, applied)
}

func TestRequestServiceActFinalApprovalRunsSideEffect(t *testing.T) {
	store := newRequestStoreStub()
	seedRequest(store, models.StatusApprovedTier1)
	svc := newTestRequestService(store, &statusLogStoreStub{}, &authorizerStub{}, defaultResolver(),
		WithAppliers(map[models.RequestType]Applier{
			models.RequestTypeStatCorrection: ApplierFunc(func(ctx context.Context, request *models.ChangeRequest) ([]byte, error) {
				return []byte(`{"count":120}`), nil
			}),
		}))
	actor := &models.JWTClaims{UserID: "rev-2", Role: models.RoleProvinceReviewer}

	result, err := svc.Act(context.Background(), "req-1", dto.ActionRequest{Action: "approve", Note: "verified"}, actor)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApprovedTier2, result.NewStatus)
	assert.Equal(t, models.StatusApprovedTier2, store.requests["req-1"].Status)

	require.Len(t, store.transitions, 1)
	var meta transitionMetadata
	require.NoError(t, json.Unmarshal(store.transitions[0].Metadata, &meta))
	assert.Equal(t, "verified", meta.Note)
	assert.JSONEq(t, `{"count":120}`, string(meta.Applied))
}

func TestRequestServiceActSideEffectFailureLeavesStatus(t *testing.T) {
	store := newRequestStoreStub()
	seedRequest(store, models.StatusApprovedTier1)
	svc := newTestRequestService(store, &statusLogStoreStub{}, &authorizerStub{}, defaultResolver(),
		WithAppliers(map[models.RequestType]Applier{
			models.RequestTypeStatCorrection: ApplierFunc(func(ctx context.Context, request *models.ChangeRequest) ([]byte, error) {
				return nil, errors.New("stats backend down")
			}),
		}))
	actor := &models.JWTClaims{UserID: "rev-2", Role: models.RoleProvinceReviewer}

	_, err := svc.Act(context.Background(), "req-1", dto.ActionRequest{Action: "APPROVE"}, actor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrSideEffectFailed))
	assert.Equal(t, models.StatusApprovedTier1, store.requests["req-1"].Status)
	assert.Empty(t, store.transitions)
}

func TestRequestServiceActConcurrentConflict(t *testing.T) {
	store := newRequestStoreStub()
	seedRequest(store, models.StatusPending)
	store.transitionErr = sql.ErrNoRows
	svc := newTestRequestService(store, &statusLogStoreStub{}, &authorizerStub{}, defaultResolver())
	actor := &models.JWTClaims{UserID: "rev-1", Role: models.RoleDistrictReviewer}

	_, err := svc.Act(context.Background(), "req-1", dto.ActionRequest{Action: "APPROVE"}, actor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestRequestServiceActRejectNeedsReason(t *testing.T) {
	store := newRequestStoreStub()
	seedRequest(store, models.StatusPending)
	svc := newTestRequestService(store, &statusLogStoreStub{}, &authorizerStub{}, defaultResolver())
	actor := &models.JWTClaims{UserID: "rev-1", Role: models.RoleDistrictReviewer}

	_, err := svc.Act(context.Background(), "req-1", dto.ActionRequest{Action: "REJECT", Reason: "no"}, actor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	assert.Equal(t, models.StatusPending, store.requests["req-1"].Status)

	result, err := svc.Act(context.Background(), "req-1", dto.ActionRequest{Action: "REJECT", Reason: "figures inconsistent with source report"}, actor)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, result.NewStatus)
}

func TestRequestServiceActTerminalRequest(t *testing.T) {
	store := newRequestStoreStub()
	seedRequest(store, models.StatusRejected)
	svc := newTestRequestService(store, &statusLogStoreStub{}, &authorizerStub{}, defaultResolver())
	actor := &models.JWTClaims{UserID: "rev-1", Role: models.RoleDistrictReviewer}

	_, err := svc.Act(context.Background(), "req-1", dto.ActionRequest{Action: "APPROVE"}, actor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
}

func TestRequestServiceActUnknownRequest(t *testing.T) {
	svc := newTestRequestService(newRequestStoreStub(), &statusLogStoreStub{}, &authorizerStub{}, defaultResolver())
	actor := &models.JWTClaims{UserID: "rev-1", Role: models.RoleDistrictReviewer}

	_, err := svc.Act(context.Background(), "req-404", dto.ActionRequest{Action: "APPROVE"}, actor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestRequestServiceActAuthzDenied(t *testing.T) {
	store := newRequestStoreStub()
	seedRequest(store, models.StatusPending)
	svc := newTestRequestService(store, &statusLogStoreStub{}, &authorizerStub{canActErr: appErrors.ErrNotFound}, defaultResolver())
	actor := &models.JWTClaims{UserID: "rev-1", Role: models.RoleDistrictReviewer}

	_, err := svc.Act(context.Background(), "req-1", dto.ActionRequest{Action: "APPROVE"}, actor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.Empty(t, store.transitions)
}

func TestRequestServiceHistory(t *testing.T) {
	store := newRequestStoreStub()
	seedRequest(store, models.StatusApprovedTier1)
	logs := &statusLogStoreStub{entries: []models.StatusLogEntry{
		{RequestID: "req-1", ToStatus: models.StatusPending},
		{RequestID: "req-1", FromStatus: models.StatusPending, ToStatus: models.StatusApprovedTier1},
	}}
	svc := newTestRequestService(store, logs, &authorizerStub{}, defaultResolver())
	actor := &models.JWTClaims{UserID: "rev-1", Role: models.RoleDistrictReviewer}

	entries, err := svc.History(context.Background(), "req-1", actor)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.StatusPending, entries[0].ToStatus)
}

func TestRequestServiceListMergesScopeFilter(t *testing.T) {
	store := newRequestStoreStub()
	authz := &authorizerStub{filter: models.RequestFilter{DistrictCode: "D-01"}}
	svc := newTestRequestService(store, &statusLogStoreStub{}, authz, defaultResolver())
	actor := &models.JWTClaims{UserID: "rev-1", Role: models.RoleDistrictReviewer}

	_, err := svc.List(context.Background(), dto.RequestQuery{
		Status: []models.RequestStatus{models.StatusPending},
		Type:   models.RequestTypeAppeal,
		Limit:  10,
	}, actor)
	require.NoError(t, err)
	assert.Equal(t, "D-01", store.lastFilter.DistrictCode)
	assert.Equal(t, []models.RequestStatus{models.StatusPending}, store.lastFilter.Status)
	assert.Equal(t, models.RequestTypeAppeal, store.lastFilter.Type)
	assert.Equal(t, 10, store.lastFilter.Limit)
}
