package handler

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/models"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/service"
	appErrors "github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/errors"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/response"
)

// SecurityHandler exposes physical-security endpoints.
type SecurityHandler struct {
	security *service.SecurityService
}

// NewSecurityHandler constructs SecurityHandler.
func NewSecurityHandler(security *service.SecurityService) *SecurityHandler {
	return &SecurityHandler{security: security}
}

// imagePayload carries a base64 frame captured at the gate.
type imagePayload struct {
	Image string `json:"image" binding:"required"`
}

func (p imagePayload) decode() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(p.Image)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "image must be base64 encoded")
	}
	return data, nil
}

func directionFrom(c *gin.Context) models.AccessDirection {
	if c.DefaultQuery("direction", "entry") == "exit" {
		return models.AccessExit
	}
	return models.AccessEntry
}

// RegisterVisitor godoc
// @Summary Register a visitor entry
// @Tags Security
// @Accept json
// @Produce json
// @Param payload body service.RegisterVisitorRequest true "Visitor payload"
// @Success 201 {object} response.Envelope
// @Router /security/visitors [post]
func (h *SecurityHandler) RegisterVisitor(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.RegisterVisitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	visitor, err := h.security.RegisterVisitor(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, visitor)
}

// VisitorExit godoc
// @Summary Record a visitor leaving
// @Tags Security
// @Produce json
// @Param id path string true "Visitor ID"
// @Success 200 {object} response.Envelope
// @Router /security/visitors/{id}/exit [post]
func (h *SecurityHandler) VisitorExit(c *gin.Context) {
	visitor, err := h.security.VisitorExit(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visitor, nil)
}

// Visitors godoc
// @Summary List visitors
// @Tags Security
// @Produce json
// @Param unitId query string false "Filter by unit"
// @Param onSite query bool false "Only visitors currently inside"
// @Param limit query int false "Max entries"
// @Success 200 {object} response.Envelope
// @Router /security/visitors [get]
func (h *SecurityHandler) Visitors(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	visitors, err := h.security.Visitors(c.Request.Context(), c.Query("unitId"), c.Query("onSite") == "true", limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visitors, nil)
}

// RegisterVehicle godoc
// @Summary Register a vehicle
// @Tags Security
// @Accept json
// @Produce json
// @Param payload body service.RegisterVehicleRequest true "Vehicle payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /security/vehicles [post]
func (h *SecurityHandler) RegisterVehicle(c *gin.Context) {
	var req service.RegisterVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	vehicle, err := h.security.RegisterVehicle(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, vehicle)
}

// Vehicles godoc
// @Summary Vehicles registered to a unit
// @Tags Security
// @Produce json
// @Param unitId query string true "Unit ID"
// @Success 200 {object} response.Envelope
// @Router /security/vehicles [get]
func (h *SecurityHandler) Vehicles(c *gin.Context) {
	unitID := c.Query("unitId")
	if unitID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unitId is required"))
		return
	}
	vehicles, err := h.security.VehiclesByUnit(c.Request.Context(), unitID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, vehicles, nil)
}

// SetVehicleAuthorized godoc
// @Summary Authorize or revoke a vehicle
// @Tags Security
// @Accept json
// @Produce json
// @Param id path string true "Vehicle ID"
// @Success 204 {object} response.Envelope
// @Router /security/vehicles/{id}/authorization [put]
func (h *SecurityHandler) SetVehicleAuthorized(c *gin.Context) {
	var payload struct {
		Authorized *bool `json:"authorized" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "authorized required"))
		return
	}
	if err := h.security.SetVehicleAuthorized(c.Request.Context(), c.Param("id"), *payload.Authorized); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RecognizeFace godoc
// @Summary Run face recognition on a camera frame
// @Tags Security
// @Accept json
// @Produce json
// @Param direction query string false "entry or exit"
// @Success 200 {object} response.Envelope
// @Router /security/ai/recognize-face [post]
func (h *SecurityHandler) RecognizeFace(c *gin.Context) {
	var payload imagePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "image required"))
		return
	}
	image, err := payload.decode()
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.security.RecognizeFace(c.Request.Context(), image, directionFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ReadPlate godoc
// @Summary Run plate recognition on a camera frame
// @Tags Security
// @Accept json
// @Produce json
// @Param direction query string false "entry or exit"
// @Success 200 {object} response.Envelope
// @Router /security/ai/read-plate [post]
func (h *SecurityHandler) ReadPlate(c *gin.Context) {
	var payload imagePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "image required"))
		return
	}
	image, err := payload.decode()
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.security.ReadPlate(c.Request.Context(), image, directionFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// DetectAnomaly godoc
// @Summary Run anomaly detection on a camera frame
// @Description High-confidence detections open an incident automatically
// @Tags Security
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /security/ai/detect-anomaly [post]
func (h *SecurityHandler) DetectAnomaly(c *gin.Context) {
	var payload struct {
		imagePayload
		Kind string `json:"kind"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "image required"))
		return
	}
	image, err := payload.decode()
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.security.DetectAnomaly(c.Request.Context(), image, payload.Kind)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ReportIncident godoc
// @Summary Report a security incident
// @Tags Security
// @Accept json
// @Produce json
// @Param payload body service.ReportIncidentRequest true "Incident payload"
// @Success 201 {object} response.Envelope
// @Router /security/incidents [post]
func (h *SecurityHandler) ReportIncident(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.ReportIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	incident, err := h.security.ReportIncident(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, incident)
}

// Incidents godoc
// @Summary List incidents
// @Tags Security
// @Produce json
// @Param state query string false "Filter by state"
// @Param limit query int false "Max entries"
// @Success 200 {object} response.Envelope
// @Router /security/incidents [get]
func (h *SecurityHandler) Incidents(c *gin.Context) {
	var state *models.IncidentState
	if raw := c.Query("state"); raw != "" {
		s := models.IncidentState(raw)
		state = &s
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	incidents, err := h.security.Incidents(c.Request.Context(), state, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, incidents, nil)
}

// UpdateIncidentState godoc
// @Summary Move an incident through its lifecycle
// @Tags Security
// @Accept json
// @Produce json
// @Param id path string true "Incident ID"
// @Success 200 {object} response.Envelope
// @Router /security/incidents/{id}/state [put]
func (h *SecurityHandler) UpdateIncidentState(c *gin.Context) {
	var payload struct {
		State string `json:"state" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "state required"))
		return
	}
	incident, err := h.security.UpdateIncidentState(c.Request.Context(), c.Param("id"), models.IncidentState(payload.State))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, incident, nil)
}

// AccessLogs godoc
// @Summary Access log within a window
// @Tags Security
// @Produce json
// @Param from query string false "Window start (YYYY-MM-DD)"
// @Param to query string false "Window end (YYYY-MM-DD)"
// @Param limit query int false "Max entries"
// @Success 200 {object} response.Envelope
// @Router /security/access-logs [get]
func (h *SecurityHandler) AccessLogs(c *gin.Context) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -7)
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must use the YYYY-MM-DD form"))
			return
		}
		from = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must use the YYYY-MM-DD form"))
			return
		}
		// Include the whole closing day.
		to = t.AddDate(0, 0, 1)
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))

	logs, err := h.security.AccessLogs(c.Request.Context(), from, to, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}

// DelinquencyScore godoc
// @Summary Payment-risk score for a unit
// @Tags Security
// @Produce json
// @Param unitId path string true "Unit ID"
// @Success 200 {object} response.Envelope
// @Router /security/delinquency/{unitId} [get]
func (h *SecurityHandler) DelinquencyScore(c *gin.Context) {
	score, err := h.security.DelinquencyScore(c.Request.Context(), c.Param("unitId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, score, nil)
}
