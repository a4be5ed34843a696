package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/provadm-api/internal/dto"
	"github.com/noah-isme/provadm-api/internal/service"
	"github.com/noah-isme/provadm-api/pkg/response"
)

// StatisticHandler exposes registration statistics endpoints.
type StatisticHandler struct {
	statistics *service.StatisticService
}

// NewStatisticHandler constructs StatisticHandler.
func NewStatisticHandler(statistics *service.StatisticService) *StatisticHandler {
	return &StatisticHandler{statistics: statistics}
}

// Get godoc
// @Summary Registration statistics for an org unit and period
// @Tags Statistics
// @Produce json
// @Param orgUnitCode query string false "Org unit code (defaults to the caller's unit)"
// @Param period query string true "Exam period, e.g. 2026"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /statistics [get]
func (h *StatisticHandler) Get(c *gin.Context) {
	query := dto.StatisticsQuery{
		OrgUnitCode: strings.TrimSpace(c.Query("orgUnitCode")),
		Period:      strings.TrimSpace(c.Query("period")),
	}
	result, err := h.statistics.Get(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
