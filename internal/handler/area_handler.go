package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/models"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/service"
	appErrors "github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/errors"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/response"
)

// AreaHandler exposes common-area endpoints.
type AreaHandler struct {
	areas *service.AreaService
}

// NewAreaHandler constructs AreaHandler.
func NewAreaHandler(areas *service.AreaService) *AreaHandler {
	return &AreaHandler{areas: areas}
}

// List godoc
// @Summary List common areas
// @Tags Areas
// @Produce json
// @Param category query string false "Filter by category"
// @Param state query string false "Filter by state"
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /areas [get]
func (h *AreaHandler) List(c *gin.Context) {
	var filter models.AreaFilter
	filter.Category = c.Query("category")
	filter.Search = strings.TrimSpace(c.Query("search"))
	if state := c.Query("state"); state != "" {
		s := models.AreaState(state)
		filter.State = &s
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	areas, total, err := h.areas.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, areas, paginationFor(filter.Page, filter.PageSize, total))
}

// Get godoc
// @Summary Get area detail
// @Tags Areas
// @Produce json
// @Param id path string true "Area ID"
// @Success 200 {object} response.Envelope
// @Router /areas/{id} [get]
func (h *AreaHandler) Get(c *gin.Context) {
	area, err := h.areas.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, area, nil)
}

// Create godoc
// @Summary Create common area
// @Tags Areas
// @Accept json
// @Produce json
// @Param payload body service.CreateAreaRequest true "Area payload"
// @Success 201 {object} response.Envelope
// @Router /areas [post]
func (h *AreaHandler) Create(c *gin.Context) {
	var req service.CreateAreaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	area, err := h.areas.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, area)
}

// Update godoc
// @Summary Update common area
// @Tags Areas
// @Accept json
// @Produce json
// @Param id path string true "Area ID"
// @Param payload body service.UpdateAreaRequest true "Area payload"
// @Success 200 {object} response.Envelope
// @Router /areas/{id} [put]
func (h *AreaHandler) Update(c *gin.Context) {
	var req service.UpdateAreaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	area, err := h.areas.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, area, nil)
}

// SetState godoc
// @Summary Change area state
// @Description Areas are disabled rather than deleted
// @Tags Areas
// @Accept json
// @Produce json
// @Param id path string true "Area ID"
// @Success 204 {object} response.Envelope
// @Router /areas/{id}/state [put]
func (h *AreaHandler) SetState(c *gin.Context) {
	var payload struct {
		State string `json:"state" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "state required"))
		return
	}
	if err := h.areas.SetState(c.Request.Context(), c.Param("id"), models.AreaState(payload.State)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
