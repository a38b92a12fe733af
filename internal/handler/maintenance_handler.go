package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/models"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/service"
	appErrors "github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/errors"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/response"
)

// MaintenanceHandler exposes maintenance-request endpoints.
type MaintenanceHandler struct {
	maintenance *service.MaintenanceService
}

// NewMaintenanceHandler constructs MaintenanceHandler.
func NewMaintenanceHandler(maintenance *service.MaintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{maintenance: maintenance}
}

// Types godoc
// @Summary List maintenance types
// @Tags Maintenance
// @Produce json
// @Param active query bool false "Only active types"
// @Success 200 {object} response.Envelope
// @Router /maintenance/types [get]
func (h *MaintenanceHandler) Types(c *gin.Context) {
	types, err := h.maintenance.Types(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types, nil)
}

// CreateType godoc
// @Summary Create maintenance type
// @Tags Maintenance
// @Accept json
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /maintenance/types [post]
func (h *MaintenanceHandler) CreateType(c *gin.Context) {
	var payload struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "name required"))
		return
	}
	mt, err := h.maintenance.CreateType(c.Request.Context(), payload.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, mt)
}

// Create godoc
// @Summary File a maintenance request
// @Tags Maintenance
// @Accept json
// @Produce json
// @Param payload body service.CreateMaintenanceRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Router /maintenance/requests [post]
func (h *MaintenanceHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateMaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	request, err := h.maintenance.Create(c.Request.Context(), claims.UserID, isAdmin(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// List godoc
// @Summary List maintenance requests
// @Tags Maintenance
// @Produce json
// @Param unitId query string false "Filter by unit"
// @Param state query string false "Filter by state"
// @Param priority query string false "Filter by priority"
// @Param mine query bool false "Only the caller's requests"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /maintenance/requests [get]
func (h *MaintenanceHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.MaintenanceFilter
	filter.UnitID = c.Query("unitId")
	filter.TypeID = c.Query("typeId")
	if state := c.Query("state"); state != "" {
		s := models.MaintenanceState(state)
		filter.State = &s
	}
	if priority := c.Query("priority"); priority != "" {
		p := models.MaintenancePriority(priority)
		filter.Priority = &p
	}
	switch claims.Role {
	case models.RoleMaintenance:
		// Workers see their own queue.
		filter.AssignedTo = claims.UserID
	case models.RoleAdministrator:
		if c.Query("mine") == "true" {
			filter.RequesterID = claims.UserID
		}
	default:
		filter.RequesterID = claims.UserID
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	requests, total, err := h.maintenance.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, paginationFor(filter.Page, filter.PageSize, total))
}

// Get godoc
// @Summary Get maintenance request detail
// @Tags Maintenance
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /maintenance/requests/{id} [get]
func (h *MaintenanceHandler) Get(c *gin.Context) {
	request, err := h.maintenance.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Assign godoc
// @Summary Assign a request to a maintenance worker
// @Tags Maintenance
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /maintenance/requests/{id}/assign [post]
func (h *MaintenanceHandler) Assign(c *gin.Context) {
	var payload struct {
		WorkerID string `json:"worker_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "worker_id required"))
		return
	}
	request, err := h.maintenance.Assign(c.Request.Context(), c.Param("id"), payload.WorkerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Start godoc
// @Summary Start work on an assigned request
// @Tags Maintenance
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /maintenance/requests/{id}/start [post]
func (h *MaintenanceHandler) Start(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.maintenance.Start(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Complete godoc
// @Summary Complete a request with a work report
// @Tags Maintenance
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body service.CompleteMaintenanceRequest true "Work report payload"
// @Success 200 {object} response.Envelope
// @Router /maintenance/requests/{id}/complete [post]
func (h *MaintenanceHandler) Complete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CompleteMaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	report, err := h.maintenance.Complete(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Cancel godoc
// @Summary Cancel a maintenance request
// @Tags Maintenance
// @Produce json
// @Param id path string true "Request ID"
// @Success 204 {object} response.Envelope
// @Router /maintenance/requests/{id}/cancel [post]
func (h *MaintenanceHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.maintenance.Cancel(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// WorkReport godoc
// @Summary Work report for a completed request
// @Tags Maintenance
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /maintenance/requests/{id}/report [get]
func (h *MaintenanceHandler) WorkReport(c *gin.Context) {
	report, err := h.maintenance.WorkReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
