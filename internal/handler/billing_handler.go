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

// BillingHandler exposes billing and payment endpoints.
type BillingHandler struct {
	billing *service.BillingService
}

// NewBillingHandler constructs BillingHandler.
func NewBillingHandler(billing *service.BillingService) *BillingHandler {
	return &BillingHandler{billing: billing}
}

// Concepts godoc
// @Summary List payment concepts
// @Tags Billing
// @Produce json
// @Param active query bool false "Only active concepts"
// @Success 200 {object} response.Envelope
// @Router /billing/concepts [get]
func (h *BillingHandler) Concepts(c *gin.Context) {
	concepts, err := h.billing.Concepts(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, concepts, nil)
}

// CreateConcept godoc
// @Summary Create payment concept
// @Tags Billing
// @Accept json
// @Produce json
// @Param payload body service.CreateConceptRequest true "Concept payload"
// @Success 201 {object} response.Envelope
// @Router /billing/concepts [post]
func (h *BillingHandler) CreateConcept(c *gin.Context) {
	var req service.CreateConceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	concept, err := h.billing.CreateConcept(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, concept)
}

// UpdateConcept godoc
// @Summary Update payment concept
// @Tags Billing
// @Accept json
// @Produce json
// @Param id path string true "Concept ID"
// @Param payload body service.UpdateConceptRequest true "Concept payload"
// @Success 200 {object} response.Envelope
// @Router /billing/concepts/{id} [put]
func (h *BillingHandler) UpdateConcept(c *gin.Context) {
	var req service.UpdateConceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	concept, err := h.billing.UpdateConcept(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, concept, nil)
}

// ListCharges godoc
// @Summary List charges
// @Tags Billing
// @Produce json
// @Param unitId query string false "Filter by unit"
// @Param period query string false "Filter by period (YYYY-MM)"
// @Param state query string false "Filter by state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /billing/charges [get]
func (h *BillingHandler) ListCharges(c *gin.Context) {
	var filter models.ChargeFilter
	filter.UnitID = c.Query("unitId")
	filter.ConceptID = c.Query("conceptId")
	filter.Period = c.Query("period")
	if state := c.Query("state"); state != "" {
		s := models.ChargeState(state)
		filter.State = &s
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	charges, total, err := h.billing.ListCharges(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, charges, paginationFor(filter.Page, filter.PageSize, total))
}

// MyCharges godoc
// @Summary Charges for the caller's units
// @Tags Billing
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /billing/charges/mine [get]
func (h *BillingHandler) MyCharges(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	charges, err := h.billing.MyCharges(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, charges, nil)
}

// GetCharge godoc
// @Summary Get charge detail
// @Tags Billing
// @Produce json
// @Param id path string true "Charge ID"
// @Success 200 {object} response.Envelope
// @Router /billing/charges/{id} [get]
func (h *BillingHandler) GetCharge(c *gin.Context) {
	charge, err := h.billing.GetCharge(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, charge, nil)
}

// CreateCharge godoc
// @Summary Create a manual charge
// @Tags Billing
// @Accept json
// @Produce json
// @Param payload body service.CreateChargeRequest true "Charge payload"
// @Success 201 {object} response.Envelope
// @Router /billing/charges [post]
func (h *BillingHandler) CreateCharge(c *gin.Context) {
	var req service.CreateChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	charge, err := h.billing.CreateCharge(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, charge)
}

// CancelCharge godoc
// @Summary Cancel a charge
// @Description Charges with registered payments cannot be cancelled
// @Tags Billing
// @Produce json
// @Param id path string true "Charge ID"
// @Success 204 {object} response.Envelope
// @Router /billing/charges/{id}/cancel [post]
func (h *BillingHandler) CancelCharge(c *gin.Context) {
	if err := h.billing.CancelCharge(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// GenerateMonthlyFees godoc
// @Summary Generate recurring charges for a period
// @Description Skips unit and concept pairs already charged for the period
// @Tags Billing
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /billing/charges/generate [post]
func (h *BillingHandler) GenerateMonthlyFees(c *gin.Context) {
	var payload struct {
		Period string `json:"period" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "period required"))
		return
	}
	result, err := h.billing.GenerateMonthlyFees(c.Request.Context(), payload.Period)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// RegisterPayment godoc
// @Summary Register a payment against a charge
// @Tags Billing
// @Accept json
// @Produce json
// @Param payload body service.RegisterPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /billing/payments [post]
func (h *BillingHandler) RegisterPayment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.RegisterPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	payment, charge, err := h.billing.RegisterPayment(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"payment": payment, "charge": charge})
}

// Payments godoc
// @Summary Payments registered against a charge
// @Tags Billing
// @Produce json
// @Param id path string true "Charge ID"
// @Success 200 {object} response.Envelope
// @Router /billing/charges/{id}/payments [get]
func (h *BillingHandler) Payments(c *gin.Context) {
	payments, err := h.billing.Payments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// MarkOverdue godoc
// @Summary Mark past-due charges as overdue
// @Tags Billing
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /billing/charges/mark-overdue [post]
func (h *BillingHandler) MarkOverdue(c *gin.Context) {
	updated, err := h.billing.MarkOverdue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"updated": updated}, nil)
}

// ApplyLateInterest godoc
// @Summary Apply monthly late interest to overdue charges
// @Tags Billing
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /billing/charges/apply-interest [post]
func (h *BillingHandler) ApplyLateInterest(c *gin.Context) {
	result, err := h.billing.ApplyLateInterest(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// DelinquencyReport godoc
// @Summary Delinquency report
// @Description Pass format=csv or format=pdf to get a signed download link
// @Tags Billing
// @Produce json
// @Param format query string false "Export format (csv or pdf)"
// @Success 200 {object} response.Envelope
// @Router /billing/reports/delinquency [get]
func (h *BillingHandler) DelinquencyReport(c *gin.Context) {
	report, err := h.billing.DelinquencyReport(c.Request.Context(), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// DownloadReport godoc
// @Summary Download an exported report
// @Description The token comes from a signed report URL
// @Tags Billing
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /billing/reports/download/{token} [get]
func (h *BillingHandler) DownloadReport(c *gin.Context) {
	path, err := h.billing.ResolveReportToken(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.File(path)
}

// Summary godoc
// @Summary Billing summary
// @Tags Billing
// @Produce json
// @Param period query string false "Restrict to a period (YYYY-MM)"
// @Success 200 {object} response.Envelope
// @Router /billing/summary [get]
func (h *BillingHandler) Summary(c *gin.Context) {
	summary, err := h.billing.Summary(c.Request.Context(), c.Query("period"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
