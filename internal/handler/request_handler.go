package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/provadm-api/internal/dto"
	"github.com/noah-isme/provadm-api/internal/models"
	appErrors "github.com/noah-isme/provadm-api/pkg/errors"
	"github.com/noah-isme/provadm-api/pkg/response"
)

type requestService interface {
	Submit(ctx context.Context, req dto.CreateRequestRequest, actor *models.JWTClaims) (*models.ChangeRequest, error)
	Act(ctx context.Context, id string, req dto.ActionRequest, actor *models.JWTClaims) (*dto.ActionResponse, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ChangeRequest, error)
	History(ctx context.Context, id string, actor *models.JWTClaims) ([]models.StatusLogEntry, error)
	List(ctx context.Context, query dto.RequestQuery, actor *models.JWTClaims) ([]models.ChangeRequest, error)
}

// RequestHandler exposes change request endpoints.
type RequestHandler struct {
	requests requestService
}

// NewRequestHandler constructs RequestHandler.
func NewRequestHandler(requests requestService) *RequestHandler {
	return &RequestHandler{requests: requests}
}

// Create godoc
// @Summary Submit a change request
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body dto.CreateRequestRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	var req dto.CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	request, err := h.requests.Submit(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// List godoc
// @Summary List change requests visible to the caller
// @Tags Requests
// @Produce json
// @Param status query string false "Comma-separated status filter"
// @Param type query string false "Request type filter"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	var query dto.RequestQuery
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := models.RequestStatus(strings.TrimSpace(part))
			if !status.IsValid() {
				response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown status "+strings.TrimSpace(part)))
				return
			}
			query.Status = append(query.Status, status)
		}
	}
	query.Type = models.RequestType(strings.TrimSpace(c.Query("type")))
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "0")); err == nil {
		query.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
		query.Offset = offset
	}

	requests, err := h.requests.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Get godoc
// @Summary Get change request detail
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	request, err := h.requests.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Act godoc
// @Summary Approve or reject a pending change request
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.ActionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /requests/{id}/actions [post]
func (h *RequestHandler) Act(c *gin.Context) {
	var req dto.ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.requests.Act(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// History godoc
// @Summary Get the status history of a change request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /requests/{id}/history [get]
func (h *RequestHandler) History(c *gin.Context) {
	entries, err := h.requests.History(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
