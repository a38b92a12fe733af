package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/models"
	appErrors "github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/errors"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/export"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/storage"
)

type billingRepository interface {
	ListConcepts(ctx context.Context, activeOnly bool) ([]models.PaymentConcept, error)
	ListRecurringConcepts(ctx context.Context) ([]models.PaymentConcept, error)
	FindConceptByID(ctx context.Context, id string) (*models.PaymentConcept, error)
	CreateConcept(ctx context.Context, concept *models.PaymentConcept) error
	UpdateConcept(ctx context.Context, concept *models.PaymentConcept) error

	FindChargeByID(ctx context.Context, id string) (*models.Charge, error)
	ListCharges(ctx context.Context, filter models.ChargeFilter) ([]models.Charge, int, error)
	ListChargesByUser(ctx context.Context, userID string) ([]models.Charge, error)
	CreateCharge(ctx context.Context, charge *models.Charge) error
	ExistsChargeForPeriod(ctx context.Context, unitID, conceptID, period string) (bool, error)
	UpdateChargeState(ctx context.Context, id string, state models.ChargeState) error
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
	ListOverdueCharges(ctx context.Context) ([]models.Charge, error)
	ApplyInterest(ctx context.Context, id string, interest float64, period string) error

	ApplyPayment(ctx context.Context, payment *models.Payment) (*models.Charge, error)
	ListPaymentsByCharge(ctx context.Context, chargeID string) ([]models.Payment, error)
	SetPaymentReceipt(ctx context.Context, id, receiptPath string) error

	DelinquencyEntries(ctx context.Context) ([]models.DelinquencyEntry, error)
	Summary(ctx context.Context, period string) (*models.BillingSummary, error)
}

type billingUnitRepository interface {
	FindByID(ctx context.Context, id string) (*models.HousingUnit, error)
	ListOccupied(ctx context.Context) ([]models.HousingUnit, error)
}

type billingCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type reportStore interface {
	Save(filename string, data []byte) (string, error)
	Path(filename string) string
}

// BillingConfig tunes interest, due dates and report caching.
type BillingConfig struct {
	LateInterestMonthlyRate float64
	DueDay                  int
	Currency                string
	SummaryTTL              time.Duration
}

// CreateConceptRequest registers a billable concept.
type CreateConceptRequest struct {
	Name       string  `json:"name" validate:"required"`
	Type       string  `json:"type" validate:"required,oneof=expense fine service other"`
	BaseAmount float64 `json:"base_amount" validate:"gte=0"`
	Recurring  bool    `json:"recurring"`
}

// UpdateConceptRequest applies partial changes to a concept.
type UpdateConceptRequest struct {
	Name       *string  `json:"name"`
	BaseAmount *float64 `json:"base_amount"`
	Recurring  *bool    `json:"recurring"`
	Active     *bool    `json:"active"`
}

// CreateChargeRequest assigns a one-off charge to a unit.
type CreateChargeRequest struct {
	UnitID      string   `json:"unit_id" validate:"required"`
	ConceptID   string   `json:"concept_id" validate:"required"`
	Period      string   `json:"period" validate:"required"`
	Amount      *float64 `json:"amount"`
	Description string   `json:"description"`
}

// RegisterPaymentRequest applies money against a charge.
type RegisterPaymentRequest struct {
	ChargeID  string  `json:"charge_id" validate:"required"`
	Amount    float64 `json:"amount" validate:"gt=0"`
	Method    string  `json:"method" validate:"required,oneof=cash transfer card qr"`
	Reference string  `json:"reference"`
}

// BillingService covers concepts, charges, payments, late interest and the
// delinquency report.
type BillingService struct {
	repo      billingRepository
	units     billingUnitRepository
	cache     billingCache
	store     reportStore
	signer    *storage.SignedURLSigner
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
	config    BillingConfig
	now       func() time.Time
}

// NewBillingService constructs a BillingService instance.
func NewBillingService(repo billingRepository, units billingUnitRepository, cache billingCache, store reportStore, signer *storage.SignedURLSigner, validate *validator.Validate, logger *zap.Logger, config BillingConfig) *BillingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.LateInterestMonthlyRate <= 0 {
		config.LateInterestMonthlyRate = 0.02
	}
	if config.DueDay <= 0 || config.DueDay > 28 {
		config.DueDay = 10
	}
	if config.Currency == "" {
		config.Currency = "BOB"
	}
	if config.SummaryTTL <= 0 {
		config.SummaryTTL = 15 * time.Minute
	}
	return &BillingService{
		repo:      repo,
		units:     units,
		cache:     cache,
		store:     store,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Concepts returns the payment concepts.
func (s *BillingService) Concepts(ctx context.Context, activeOnly bool) ([]models.PaymentConcept, error) {
	concepts, err := s.repo.ListConcepts(ctx, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list concepts")
	}
	return concepts, nil
}

// CreateConcept registers a billable concept.
func (s *BillingService) CreateConcept(ctx context.Context, req CreateConceptRequest) (*models.PaymentConcept, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid concept payload")
	}
	concept := &models.PaymentConcept{
		Name:       req.Name,
		Type:       models.ConceptType(req.Type),
		BaseAmount: req.BaseAmount,
		Recurring:  req.Recurring,
		Active:     true,
	}
	if err := s.repo.CreateConcept(ctx, concept); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create concept")
	}
	return concept, nil
}

// UpdateConcept applies partial changes to a concept. Deactivating a concept
// stops future bulk generation without touching existing charges.
func (s *BillingService) UpdateConcept(ctx context.Context, id string, req UpdateConceptRequest) (*models.PaymentConcept, error) {
	concept, err := s.repo.FindConceptByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "concept not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load concept")
	}
	if req.Name != nil {
		concept.Name = *req.Name
	}
	if req.BaseAmount != nil {
		if *req.BaseAmount < 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "base amount cannot be negative")
		}
		concept.BaseAmount = *req.BaseAmount
	}
	if req.Recurring != nil {
		concept.Recurring = *req.Recurring
	}
	if req.Active != nil {
		concept.Active = *req.Active
	}
	if err := s.repo.UpdateConcept(ctx, concept); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update concept")
	}
	return concept, nil
}

// GetCharge returns a charge by id.
func (s *BillingService) GetCharge(ctx context.Context, id string) (*models.Charge, error) {
	charge, err := s.repo.FindChargeByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "charge not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load charge")
	}
	return charge, nil
}

// ListCharges returns charges matching the filter.
func (s *BillingService) ListCharges(ctx context.Context, filter models.ChargeFilter) ([]models.Charge, int, error) {
	charges, total, err := s.repo.ListCharges(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list charges")
	}
	return charges, total, nil
}

// MyCharges returns the charges of every unit the user owns or rents.
func (s *BillingService) MyCharges(ctx context.Context, userID string) ([]models.Charge, error) {
	charges, err := s.repo.ListChargesByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list charges")
	}
	return charges, nil
}

// CreateCharge assigns a one-off charge to a unit. The amount defaults to the
// concept's base amount when not given.
func (s *BillingService) CreateCharge(ctx context.Context, req CreateChargeRequest) (*models.Charge, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid charge payload")
	}
	periodStart, err := parsePeriod(req.Period)
	if err != nil {
		return nil, err
	}
	if _, err := s.units.FindByID(ctx, req.UnitID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unit not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unit")
	}
	concept, err := s.repo.FindConceptByID(ctx, req.ConceptID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "concept not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load concept")
	}

	amount := concept.BaseAmount
	if req.Amount != nil {
		if *req.Amount <= 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be positive")
		}
		amount = *req.Amount
	}

	charge := &models.Charge{
		UnitID:      req.UnitID,
		ConceptID:   req.ConceptID,
		Period:      req.Period,
		Amount:      amount,
		DueDate:     s.dueDateFor(periodStart),
		State:       models.ChargePending,
		Description: req.Description,
	}
	if err := s.repo.CreateCharge(ctx, charge); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create charge")
	}
	s.invalidateSummary(ctx)
	return charge, nil
}

// CancelCharge voids a charge that has received no payments.
func (s *BillingService) CancelCharge(ctx context.Context, id string) error {
	charge, err := s.GetCharge(ctx, id)
	if err != nil {
		return err
	}
	if charge.State == models.ChargePaid || charge.State == models.ChargeCancelled {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "charge is already settled or cancelled")
	}
	if charge.PaidAmount > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "charge with registered payments cannot be cancelled")
	}
	if err := s.repo.UpdateChargeState(ctx, id, models.ChargeCancelled); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel charge")
	}
	s.invalidateSummary(ctx)
	return nil
}

// GenerateMonthlyFees creates one charge per occupied unit and recurring
// concept for the period. Per-item failures are collected, never aborting the
// run; already-billed pairs are skipped.
func (s *BillingService) GenerateMonthlyFees(ctx context.Context, period string) (*models.BulkGenerationResult, error) {
	periodStart, err := parsePeriod(period)
	if err != nil {
		return nil, err
	}
	units, err := s.units.ListOccupied(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list occupied units")
	}
	concepts, err := s.repo.ListRecurringConcepts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recurring concepts")
	}

	result := &models.BulkGenerationResult{Period: period}
	dueDate := s.dueDateFor(periodStart)
	for _, unit := range units {
		for _, concept := range concepts {
			exists, err := s.repo.ExistsChargeForPeriod(ctx, unit.ID, concept.ID, period)
			if err != nil {
				result.Errors = append(result.Errors, models.BulkGenerationError{
					UnitID: unit.ID, ConceptID: concept.ID, Message: err.Error(),
				})
				continue
			}
			if exists {
				result.Skipped++
				continue
			}
			charge := &models.Charge{
				UnitID:      unit.ID,
				ConceptID:   concept.ID,
				Period:      period,
				Amount:      concept.BaseAmount,
				DueDate:     dueDate,
				State:       models.ChargePending,
				Description: fmt.Sprintf("%s %s", concept.Name, period),
			}
			if err := s.repo.CreateCharge(ctx, charge); err != nil {
				result.Errors = append(result.Errors, models.BulkGenerationError{
					UnitID: unit.ID, ConceptID: concept.ID, Message: err.Error(),
				})
				continue
			}
			result.Created++
		}
	}

	s.invalidateSummary(ctx)
	s.logger.Info("monthly fees generated",
		zap.String("period", period),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}

// RegisterPayment applies money against a charge and renders a PDF receipt.
// Partial payments leave the charge in the partial state.
func (s *BillingService) RegisterPayment(ctx context.Context, userID string, req RegisterPaymentRequest) (*models.Payment, *models.Charge, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	existing, err := s.GetCharge(ctx, req.ChargeID)
	if err != nil {
		return nil, nil, err
	}
	if existing.State == models.ChargePaid || existing.State == models.ChargeCancelled {
		return nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "charge is already settled or cancelled")
	}
	if req.Amount > existing.Balance() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "payment exceeds the outstanding balance")
	}

	payment := &models.Payment{
		ChargeID:  req.ChargeID,
		UserID:    userID,
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: req.Reference,
		PaidAt:    s.now(),
	}
	charge, err := s.repo.ApplyPayment(ctx, payment)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply payment")
	}

	if path, err := s.renderReceipt(ctx, payment, charge); err != nil {
		s.logger.Warn("failed to render payment receipt", zap.String("payment_id", payment.ID), zap.Error(err))
	} else {
		payment.ReceiptPath = path
		if err := s.repo.SetPaymentReceipt(ctx, payment.ID, path); err != nil {
			s.logger.Warn("failed to store receipt path", zap.Error(err))
		}
	}

	s.invalidateSummary(ctx)
	s.logger.Info("payment registered",
		zap.String("charge_id", charge.ID),
		zap.Float64("amount", req.Amount),
		zap.String("state", string(charge.State)))
	return payment, charge, nil
}

// Payments returns the payments applied to a charge.
func (s *BillingService) Payments(ctx context.Context, chargeID string) ([]models.Payment, error) {
	if _, err := s.GetCharge(ctx, chargeID); err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPaymentsByCharge(ctx, chargeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, nil
}

// MarkOverdue flips pending and partial charges past their due date.
func (s *BillingService) MarkOverdue(ctx context.Context) (int64, error) {
	affected, err := s.repo.MarkOverdue(ctx, s.now())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark overdue charges")
	}
	if affected > 0 {
		s.invalidateSummary(ctx)
		s.logger.Info("charges marked overdue", zap.Int64("count", affected))
	}
	return affected, nil
}

// ApplyLateInterest adds monthly interest, prorated by days overdue, to every
// overdue charge. Each charge is stamped per period so repeated runs within
// the same month never compound.
func (s *BillingService) ApplyLateInterest(ctx context.Context) (*models.InterestApplicationResult, error) {
	now := s.now()
	period := now.Format("2006-01")
	overdue, err := s.repo.ListOverdueCharges(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list overdue charges")
	}

	result := &models.InterestApplicationResult{Period: period}
	for _, charge := range overdue {
		days := int(now.Sub(charge.DueDate).Hours() / 24)
		if days <= 0 {
			continue
		}
		interest := charge.Balance() * s.config.LateInterestMonthlyRate * float64(days) / 30
		if interest <= 0 {
			continue
		}
		if err := s.repo.ApplyInterest(ctx, charge.ID, interest, period); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// Already stamped for this period.
				continue
			}
			result.Errors = append(result.Errors, models.BulkGenerationError{
				UnitID: charge.UnitID, ConceptID: charge.ConceptID, Message: err.Error(),
			})
			continue
		}
		result.Applied++
		result.Total += interest
	}

	if result.Applied > 0 {
		s.invalidateSummary(ctx)
	}
	s.logger.Info("late interest applied",
		zap.String("period", period),
		zap.Int("applied", result.Applied),
		zap.Float64("total", result.Total))
	return result, nil
}

// DelinquencyReport builds the per-unit overdue report and, when a format is
// given, exports it and returns a signed download link.
func (s *BillingService) DelinquencyReport(ctx context.Context, format string) (*models.DelinquencyReport, error) {
	entries, err := s.repo.DelinquencyEntries(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load delinquency entries")
	}

	now := s.now()
	report := &models.DelinquencyReport{
		ID:          uuid.NewString(),
		GeneratedAt: now,
		Entries:     entries,
	}
	for i := range entries {
		days := int(now.Sub(entries[i].OldestDueDate).Hours() / 24)
		if days < 0 {
			days = 0
		}
		entries[i].DaysOverdue = days
		entries[i].RiskLevel = riskLevelForDays(days)
		report.TotalAmount += entries[i].OverdueAmount
	}

	if format == "" {
		return report, nil
	}

	data, ext, err := s.renderDelinquency(entries, format)
	if err != nil {
		return nil, err
	}
	if s.store == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "report storage is not configured")
	}
	filename := fmt.Sprintf("delinquency-%s.%s", report.ID, ext)
	relPath, err := s.store.Save(filename, data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report")
	}
	url, expiresAt, err := s.signer.Generate(report.ID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign report url")
	}
	report.DownloadURL = url
	report.ExpiresAt = &expiresAt
	return report, nil
}

// ResolveReportToken validates a signed download token and returns the
// absolute file path to serve.
func (s *BillingService) ResolveReportToken(token string) (string, error) {
	if s.signer == nil || s.store == nil {
		return "", appErrors.Clone(appErrors.ErrInternal, "report storage is not configured")
	}
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	return s.store.Path(relPath), nil
}

// Summary returns the finance dashboard aggregates, cached per period.
func (s *BillingService) Summary(ctx context.Context, period string) (*models.BillingSummary, error) {
	if period != "" {
		if _, err := parsePeriod(period); err != nil {
			return nil, err
		}
	}
	cacheKey := summaryCacheKey(period)
	if s.cache != nil {
		var cached models.BillingSummary
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	summary, err := s.repo.Summary(ctx, period)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load billing summary")
	}
	summary.Period = period

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, summary, s.config.SummaryTTL); err != nil {
			s.logger.Warn("failed to cache billing summary", zap.Error(err))
		}
	}
	return summary, nil
}

func (s *BillingService) renderReceipt(ctx context.Context, payment *models.Payment, charge *models.Charge) (string, error) {
	if s.store == nil {
		return "", fmt.Errorf("receipt storage is not configured")
	}

	conceptName := charge.ConceptID
	if concept, err := s.repo.FindConceptByID(ctx, charge.ConceptID); err == nil {
		conceptName = concept.Name
	}
	unitCode := charge.UnitID
	if unit, err := s.units.FindByID(ctx, charge.UnitID); err == nil {
		unitCode = unit.Code
	}

	dataset := export.Dataset{
		Headers: []string{"Field", "Value"},
		Rows: []map[string]string{
			{"Field": "Receipt", "Value": payment.ID},
			{"Field": "Date", "Value": payment.PaidAt.Format("2006-01-02 15:04")},
			{"Field": "Unit", "Value": unitCode},
			{"Field": "Concept", "Value": conceptName},
			{"Field": "Period", "Value": charge.Period},
			{"Field": "Amount", "Value": fmt.Sprintf("%.2f %s", payment.Amount, s.config.Currency)},
			{"Field": "Method", "Value": payment.Method},
			{"Field": "Reference", "Value": payment.Reference},
			{"Field": "Outstanding balance", "Value": fmt.Sprintf("%.2f %s", charge.Balance(), s.config.Currency)},
		},
	}
	data, err := s.pdf.Render(dataset, "Payment receipt")
	if err != nil {
		return "", fmt.Errorf("render receipt: %w", err)
	}
	return s.store.Save(fmt.Sprintf("receipt-%s.pdf", payment.ID), data)
}

func (s *BillingService) renderDelinquency(entries []models.DelinquencyEntry, format string) ([]byte, string, error) {
	dataset := export.Dataset{
		Headers: []string{"Unit", "Building", "Owner", "Overdue charges", "Overdue amount", "Days overdue", "Risk"},
	}
	for _, entry := range entries {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Unit":            entry.UnitCode,
			"Building":        entry.Building,
			"Owner":           entry.OwnerName,
			"Overdue charges": fmt.Sprintf("%d", entry.OverdueCount),
			"Overdue amount":  fmt.Sprintf("%.2f", entry.OverdueAmount),
			"Days overdue":    fmt.Sprintf("%d", entry.DaysOverdue),
			"Risk":            entry.RiskLevel,
		})
	}

	switch strings.ToLower(format) {
	case "csv":
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
		}
		return data, "csv", nil
	case "pdf":
		data, err := s.pdf.Render(dataset, "Delinquency report")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
		}
		return data, "pdf", nil
	}
	return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
}

func (s *BillingService) dueDateFor(periodStart time.Time) time.Time {
	return time.Date(periodStart.Year(), periodStart.Month(), s.config.DueDay, 0, 0, 0, 0, time.UTC)
}

func (s *BillingService) invalidateSummary(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "billing:summary:*"); err != nil {
		s.logger.Warn("failed to invalidate billing summary cache", zap.Error(err))
	}
}

func parsePeriod(period string) (time.Time, error) {
	t, err := time.Parse("2006-01", period)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "period must use the YYYY-MM form")
	}
	return t, nil
}

func summaryCacheKey(period string) string {
	if period == "" {
		return "billing:summary:all"
	}
	return "billing:summary:" + period
}

func riskLevelForDays(days int) string {
	switch {
	case days >= 90:
		return "critical"
	case days >= 60:
		return "high"
	case days >= 30:
		return "medium"
	default:
		return "low"
	}
}
