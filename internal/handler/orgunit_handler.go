package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/provadm-api/internal/service"
	"github.com/noah-isme/provadm-api/pkg/response"
)

// OrgUnitHandler exposes org-directory read endpoints.
type OrgUnitHandler struct {
	hierarchy *service.HierarchyService
}

// NewOrgUnitHandler constructs OrgUnitHandler.
func NewOrgUnitHandler(hierarchy *service.HierarchyService) *OrgUnitHandler {
	return &OrgUnitHandler{hierarchy: hierarchy}
}

// Children godoc
// @Summary List direct children of an org unit
// @Tags OrgUnits
// @Produce json
// @Param code path string true "Org unit code"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /org-units/{code}/children [get]
func (h *OrgUnitHandler) Children(c *gin.Context) {
	units, err := h.hierarchy.Children(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, units, nil)
}

// Path godoc
// @Summary Resolve the ancestor chain of an org unit
// @Tags OrgUnits
// @Produce json
// @Param code path string true "Org unit code"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /org-units/{code}/path [get]
func (h *OrgUnitHandler) Path(c *gin.Context) {
	path, err := h.hierarchy.Path(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, path, nil)
}
