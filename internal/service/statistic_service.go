package service

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/provadm-api/internal/dto"
	"github.com/noah-isme/provadm-api/internal/models"
	appErrors "github.com/noah-isme/provadm-api/pkg/errors"
)

type statReader interface {
	GetCount(ctx context.Context, orgUnitCode, period, category string) (int, error)
}

// StatisticService reports registered aggregates and the registration
// percentage, computed as current-period total over previous-period
// total. The field is omitted when the previous period has no data.
type StatisticService struct {
	stats    statReader
	resolver subjectResolver
	logger   *zap.Logger
}

// NewStatisticService constructs the service.
func NewStatisticService(stats statReader, resolver subjectResolver, logger *zap.Logger) *StatisticService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatisticService{stats: stats, resolver: resolver, logger: logger}
}

// Get returns the aggregate for the requested unit and period, scoped
// to the actor. Scoped actors default to their own unit.
func (s *StatisticService) Get(ctx context.Context, query dto.StatisticsQuery, actor *models.JWTClaims) (*dto.StatisticsResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	period := strings.TrimSpace(query.Period)
	year, err := strconv.Atoi(period)
	if err != nil || year <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "period must be a year, e.g. 2026")
	}
	previousPeriod := strconv.Itoa(year - 1)

	code := strings.TrimSpace(query.OrgUnitCode)
	if code == "" {
		if actor.Role.IsSystem() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "orgUnitCode is required for system actors")
		}
		code, err = s.resolver.ResolveScope(ctx, actor, actor.Role.Tier())
		if err != nil {
			return nil, err
		}
	} else if !actor.Role.IsSystem() {
		path, err := s.resolver.Path(ctx, code)
		if err != nil {
			return nil, err
		}
		actorCode, err := s.resolver.ResolveScope(ctx, actor, actor.Role.Tier())
		if err != nil {
			return nil, err
		}
		if path.CodeAt(actor.Role.Tier()) != actorCode {
			return nil, appErrors.ErrNotFound
		}
	}

	count, err := s.stats.GetCount(ctx, code, period, models.StatCategoryRegistered)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read statistics")
	}
	previous, err := s.stats.GetCount(ctx, code, previousPeriod, models.StatCategoryRegistered)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read statistics")
	}

	resp := &dto.StatisticsResponse{
		OrgUnitCode:    code,
		Period:         period,
		PreviousPeriod: previousPeriod,
		Count:          count,
		PreviousCount:  previous,
	}
	if previous > 0 {
		pct := float64(count) / float64(previous) * 100
		resp.RegistrationPct = &pct
	}
	return resp, nil
}
