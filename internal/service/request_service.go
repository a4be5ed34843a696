package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/provadm-api/internal/dto"
	"github.com/noah-isme/provadm-api/internal/models"
	"github.com/noah-isme/provadm-api/internal/repository"
	"github.com/noah-isme/provadm-api/internal/workflow"
	appErrors "github.com/noah-isme/provadm-api/pkg/errors"
)

type requestStore interface {
	Create(ctx context.Context, request *models.ChangeRequest) error
	GetByID(ctx context.Context, id string) (*models.ChangeRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.ChangeRequest, error)
	TransitionStatus(ctx context.Context, params repository.TransitionParams) (*models.StatusLogEntry, error)
}

type statusLogStore interface {
	ListByRequest(ctx context.Context, requestID string) ([]models.StatusLogEntry, error)
}

type requestAuthorizer interface {
	CanAct(ctx context.Context, actor *models.JWTClaims, request *models.ChangeRequest, action workflow.Action) error
	CanView(ctx context.Context, actor *models.JWTClaims, request *models.ChangeRequest) error
	ListFilter(ctx context.Context, actor *models.JWTClaims) (models.RequestFilter, error)
}

type subjectResolver interface {
	Path(ctx context.Context, code string) (models.OrgPath, error)
	ResolveScope(ctx context.Context, actor *models.JWTClaims, tier models.OrgTier) (string, error)
}

// RequestService orchestrates the change-request workflow: submission,
// authorization, transitions, side effects, and the status log.
type RequestService struct {
	repo     requestStore
	logs     statusLogStore
	authz    requestAuthorizer
	resolver subjectResolver
	registry  *workflow.Registry
	appliers  map[models.RequestType]Applier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// RequestServiceOption configures the service.
type RequestServiceOption func(*RequestService)

// WithAppliers sets the applier map keyed by request type.
func WithAppliers(appliers map[models.RequestType]Applier) RequestServiceOption {
	return func(s *RequestService) {
		for k, v := range appliers {
			s.appliers[k] = v
		}
	}
}

// WithRequestMetrics attaches workflow metrics.
func WithRequestMetrics(metrics *MetricsService) RequestServiceOption {
	return func(s *RequestService) {
		s.metrics = metrics
	}
}

// NewRequestService constructs the service.
func NewRequestService(repo requestStore, logs statusLogStore, authz requestAuthorizer, resolver subjectResolver, registry *workflow.Registry, logger *zap.Logger, opts ...RequestServiceOption) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &RequestService{
		repo:      repo,
		logs:      logs,
		authz:     authz,
		resolver:  resolver,
		registry:  registry,
		appliers:  make(map[models.RequestType]Applier),
		validator: validator.New(),
		logger:    logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Submit validates and stores a new change request in the workflow's
// initial status. The subject scope must resolve to an existing org
// unit; its ancestor codes are denormalized onto the row.
func (s *RequestService) Submit(ctx context.Context, req dto.CreateRequestRequest, actor *models.JWTClaims) (*models.ChangeRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	reqType := models.RequestType(strings.ToUpper(string(req.Type)))
	def, err := s.registry.Definition(reqType)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported request type: %s", req.Type))
	}
	subject := strings.TrimSpace(req.SubjectScope)
	if subject == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subjectScope is required")
	}
	if len(req.Payload) == 0 || !json.Valid(req.Payload) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payload must be valid JSON")
	}

	path, err := s.resolver.Path(ctx, subject)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown subject scope: %s", subject))
		}
		return nil, err
	}
	tier := subjectTier(subject, path)
	if tier == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown subject scope: %s", subject))
	}

	if !actor.Role.IsSystem() {
		actorTier := actor.Role.Tier()
		code, err := s.resolver.ResolveScope(ctx, actor, actorTier)
		if err != nil {
			return nil, err
		}
		if path.CodeAt(actorTier) != code {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "subject scope is outside your scope")
		}
	}

	request := &models.ChangeRequest{
		Type:           reqType,
		SubjectScope:   subject,
		ScopeTier:      tier,
		ExamCenterCode: path.ExamCenterCode,
		DistrictCode:   path.DistrictCode,
		ProvinceCode:   path.ProvinceCode,
		Status:         def.Initial(),
		Payload:        append([]byte(nil), req.Payload...),
		Reason:         strings.TrimSpace(req.Reason),
		CreatedBy:      actor.UserID,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}
	s.metrics.RecordSubmission(request.Type)
	s.logger.Info("change request submitted",
		zap.String("request_id", request.ID),
		zap.String("type", string(request.Type)),
		zap.String("subject_scope", request.SubjectScope))
	return request, nil
}

// transitionMetadata is stored on the status log so "what changed and
// why" is reconstructable without replaying business logic.
type transitionMetadata struct {
	Note    string          `json:"note,omitempty"`
	Applied json.RawMessage `json:"applied,omitempty"`
}

// Act performs a reviewer decision. The side effect runs before the
// terminal status commits; a compare-and-swap on the expected pre-state
// ensures at most one concurrent submission wins.
func (s *RequestService) Act(ctx context.Context, id string, req dto.ActionRequest, actor *models.JWTClaims) (*dto.ActionResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	action, ok := workflow.ParseAction(req.Action)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidAction, fmt.Sprintf("unknown action %q", req.Action))
	}

	request, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}

	if err := s.authz.CanAct(ctx, actor, request, action); err != nil {
		return nil, err
	}

	def, err := s.registry.Definition(request.Type)
	if err != nil {
		return nil, err
	}
	tr, err := def.Next(request.Status, action, workflow.Input{Reason: req.Reason, Note: req.Note})
	if err != nil {
		return nil, err
	}

	meta := transitionMetadata{Note: strings.TrimSpace(req.Note)}
	if tr.To == models.StatusApprovedTier2 {
		applier, ok := s.appliers[request.Type]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("no applier configured for %s", request.Type))
		}
		snapshot, err := applier.Apply(ctx, request)
		if err != nil {
			s.metrics.RecordSideEffectFailure(request.Type)
			s.logger.Error("side effect failed, request left in prior status",
				zap.String("request_id", request.ID), zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrSideEffectFailed.Code, appErrors.ErrSideEffectFailed.Status,
				"side effect failed; request unchanged")
		}
		meta.Applied = snapshot
	}

	metadata, err := json.Marshal(meta)
	if err != nil {
		metadata = []byte("{}")
	}
	entry, err := s.repo.TransitionStatus(ctx, repository.TransitionParams{
		ID:       request.ID,
		From:     request.Status,
		To:       tr.To,
		ActorID:  actor.UserID,
		Reason:   strings.TrimSpace(req.Reason),
		Metadata: metadata,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordConflict()
			return nil, appErrors.Clone(appErrors.ErrConflict, "request status changed concurrently; re-fetch and retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit transition")
	}

	s.metrics.RecordTransition(request.Type, tr.To)
	s.logger.Info("change request transitioned",
		zap.String("request_id", request.ID),
		zap.String("from", string(entry.FromStatus)),
		zap.String("to", string(entry.ToStatus)),
		zap.String("actor", actor.UserID))
	return &dto.ActionResponse{
		RequestID: request.ID,
		NewStatus: tr.To,
		Message:   fmt.Sprintf("request moved to %s", tr.To),
	}, nil
}

// Get returns a request enforcing the scope-match rule.
func (s *RequestService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ChangeRequest, error) {
	request, err := s.load(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	return request, nil
}

// History returns the ordered status log of a request.
func (s *RequestService) History(ctx context.Context, id string, actor *models.JWTClaims) ([]models.StatusLogEntry, error) {
	if _, err := s.load(ctx, id, actor); err != nil {
		return nil, err
	}
	entries, err := s.logs.ListByRequest(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status log")
	}
	return entries, nil
}

// List returns requests visible to the actor, automatically scoped to
// their tier and code.
func (s *RequestService) List(ctx context.Context, query dto.RequestQuery, actor *models.JWTClaims) ([]models.ChangeRequest, error) {
	filter, err := s.authz.ListFilter(ctx, actor)
	if err != nil {
		return nil, err
	}
	filter.Status = query.Status
	filter.Type = query.Type
	filter.Limit = query.Limit
	filter.Offset = query.Offset
	requests, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return requests, nil
}

func (s *RequestService) load(ctx context.Context, id string, actor *models.JWTClaims) (*models.ChangeRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if err := s.authz.CanView(ctx, actor, request); err != nil {
		return nil, err
	}
	return request, nil
}

// subjectTier identifies which tier the subject code sits at within its
// resolved path.
func subjectTier(subject string, path models.OrgPath) models.OrgTier {
	switch subject {
	case path.ExamCenterCode:
		return models.TierExamCenter
	case path.DistrictCode:
		return models.TierDistrict
	case path.ProvinceCode:
		return models.TierProvince
	default:
		return ""
	}
}
