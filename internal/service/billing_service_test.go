package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/models"
	appErrors "github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/errors"
)

type mockBillingRepo struct {
	concepts map[string]*models.PaymentConcept
	charges  map[string]*models.Charge
	payments map[string]*models.Payment

	delinquency  []models.DelinquencyEntry
	failCreate   map[string]error // keyed unitID+conceptID
	summaryCalls int
}

func newMockBillingRepo() *mockBillingRepo {
	return &mockBillingRepo{
		concepts:   make(map[string]*models.PaymentConcept),
		charges:    make(map[string]*models.Charge),
		payments:   make(map[string]*models.Payment),
		failCreate: make(map[string]error),
	}
}

func (m *mockBillingRepo) ListConcepts(_ context.Context, activeOnly bool) ([]models.PaymentConcept, error) {
	var out []models.PaymentConcept
	for _, c := range m.concepts {
		if activeOnly && !c.Active {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockBillingRepo) ListRecurringConcepts(_ context.Context) ([]models.PaymentConcept, error) {
	var out []models.PaymentConcept
	for _, c := range m.concepts {
		if c.Active && c.Recurring {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockBillingRepo) FindConceptByID(_ context.Context, id string) (*models.PaymentConcept, error) {
	c, ok := m.concepts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

func (m *mockBillingRepo) CreateConcept(_ context.Context, concept *models.PaymentConcept) error {
	if concept.ID == "" {
		concept.ID = uuid.NewString()
	}
	m.concepts[concept.ID] = concept
	return nil
}

func (m *mockBillingRepo) UpdateConcept(_ context.Context, concept *models.PaymentConcept) error {
	m.concepts[concept.ID] = concept
	return nil
}

func (m *mockBillingRepo) FindChargeByID(_ context.Context, id string) (*models.Charge, error) {
	c, ok := m.charges[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *c
	return &copied, nil
}

func (m *mockBillingRepo) ListCharges(_ context.Context, _ models.ChargeFilter) ([]models.Charge, int, error) {
	var out []models.Charge
	for _, c := range m.charges {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *mockBillingRepo) ListChargesByUser(_ context.Context, _ string) ([]models.Charge, error) {
	var out []models.Charge
	for _, c := range m.charges {
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockBillingRepo) CreateCharge(_ context.Context, charge *models.Charge) error {
	if err, ok := m.failCreate[charge.UnitID+charge.ConceptID]; ok {
		return err
	}
	if charge.ID == "" {
		charge.ID = uuid.NewString()
	}
	copied := *charge
	m.charges[charge.ID] = &copied
	return nil
}

func (m *mockBillingRepo) ExistsChargeForPeriod(_ context.Context, unitID, conceptID, period string) (bool, error) {
	for _, c := range m.charges {
		if c.UnitID == unitID && c.ConceptID == conceptID && c.Period == period && c.State != models.ChargeCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockBillingRepo) UpdateChargeState(_ context.Context, id string, state models.ChargeState) error {
	c, ok := m.charges[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.State = state
	return nil
}

func (m *mockBillingRepo) MarkOverdue(_ context.Context, now time.Time) (int64, error) {
	var affected int64
	for _, c := range m.charges {
		if (c.State == models.ChargePending || c.State == models.ChargePartial) && c.DueDate.Before(now) {
			c.State = models.ChargeOverdue
			affected++
		}
	}
	return affected, nil
}

func (m *mockBillingRepo) ListOverdueCharges(_ context.Context) ([]models.Charge, error) {
	var out []models.Charge
	for _, c := range m.charges {
		if c.State == models.ChargeOverdue && c.Amount > c.PaidAmount {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockBillingRepo) ApplyInterest(_ context.Context, id string, interest float64, period string) error {
	c, ok := m.charges[id]
	if !ok {
		return sql.ErrNoRows
	}
	if c.LastInterestPeriod == period {
		return sql.ErrNoRows
	}
	c.Amount += interest
	c.LastInterestPeriod = period
	return nil
}

func (m *mockBillingRepo) ApplyPayment(_ context.Context, payment *models.Payment) (*models.Charge, error) {
	c, ok := m.charges[payment.ChargeID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	m.payments[payment.ID] = payment
	c.PaidAmount += payment.Amount
	if c.PaidAmount >= c.Amount {
		c.State = models.ChargePaid
	} else {
		c.State = models.ChargePartial
	}
	copied := *c
	return &copied, nil
}

func (m *mockBillingRepo) ListPaymentsByCharge(_ context.Context, chargeID string) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range m.payments {
		if p.ChargeID == chargeID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockBillingRepo) SetPaymentReceipt(_ context.Context, id, receiptPath string) error {
	p, ok := m.payments[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.ReceiptPath = receiptPath
	return nil
}

func (m *mockBillingRepo) DelinquencyEntries(_ context.Context) ([]models.DelinquencyEntry, error) {
	return m.delinquency, nil
}

func (m *mockBillingRepo) Summary(_ context.Context, _ string) (*models.BillingSummary, error) {
	m.summaryCalls++
	return &models.BillingSummary{TotalBilled: 1000}, nil
}

type mockBillingUnits struct {
	units map[string]*models.HousingUnit
}

func (m *mockBillingUnits) FindByID(_ context.Context, id string) (*models.HousingUnit, error) {
	u, ok := m.units[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (m *mockBillingUnits) ListOccupied(_ context.Context) ([]models.HousingUnit, error) {
	var out []models.HousingUnit
	for _, u := range m.units {
		if u.OwnerID != nil || u.TenantID != nil {
			out = append(out, *u)
		}
	}
	return out, nil
}

var billingNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func newBillingFixture() (*BillingService, *mockBillingRepo, *mockBillingUnits) {
	repo := newMockBillingRepo()
	units := &mockBillingUnits{units: make(map[string]*models.HousingUnit)}
	svc := NewBillingService(repo, units, nil, nil, nil, nil, nil, BillingConfig{
		LateInterestMonthlyRate: 0.02,
		DueDay:                  10,
		Currency:                "BOB",
	})
	svc.now = func() time.Time { return billingNow }
	return svc, repo, units
}

func addOccupiedUnit(units *mockBillingUnits, id, code string) {
	owner := "owner-" + id
	units.units[id] = &models.HousingUnit{ID: id, Code: code, Building: "A", OwnerID: &owner, State: models.UnitOccupied}
}

func TestGenerateMonthlyFeesSkipsExistingCharges(t *testing.T) {
	svc, repo, units := newBillingFixture()
	addOccupiedUnit(units, "unit-1", "A-101")
	addOccupiedUnit(units, "unit-2", "A-102")
	repo.concepts["concept-1"] = &models.PaymentConcept{ID: "concept-1", Name: "Monthly expenses", Type: models.ConceptExpense, BaseAmount: 350, Recurring: true, Active: true}
	repo.concepts["concept-2"] = &models.PaymentConcept{ID: "concept-2", Name: "Water", Type: models.ConceptService, BaseAmount: 80, Recurring: true, Active: true}

	// unit-1 already carries the expenses charge for the period.
	repo.charges["pre"] = &models.Charge{ID: "pre", UnitID: "unit-1", ConceptID: "concept-1", Period: "2026-09", Amount: 350, State: models.ChargePending}

	result, err := svc.GenerateMonthlyFees(context.Background(), "2026-09")
	require.NoError(t, err)

	assert.Equal(t, 3, result.Created)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, result.Errors)

	for _, charge := range repo.charges {
		if charge.ID == "pre" {
			continue
		}
		assert.Equal(t, time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC), charge.DueDate)
		assert.Equal(t, models.ChargePending, charge.State)
	}
}

func TestGenerateMonthlyFeesCollectsPerItemErrors(t *testing.T) {
	svc, repo, units := newBillingFixture()
	addOccupiedUnit(units, "unit-1", "A-101")
	addOccupiedUnit(units, "unit-2", "A-102")
	repo.concepts["concept-1"] = &models.PaymentConcept{ID: "concept-1", Name: "Monthly expenses", Type: models.ConceptExpense, BaseAmount: 350, Recurring: true, Active: true}
	repo.failCreate["unit-1concept-1"] = fmt.Errorf("insert failed")

	result, err := svc.GenerateMonthlyFees(context.Background(), "2026-09")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "unit-1", result.Errors[0].UnitID)
}

func TestGenerateMonthlyFeesRejectsBadPeriod(t *testing.T) {
	svc, _, _ := newBillingFixture()
	_, err := svc.GenerateMonthlyFees(context.Background(), "september")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRegisterPaymentPartialThenPaid(t *testing.T) {
	svc, repo, units := newBillingFixture()
	addOccupiedUnit(units, "unit-1", "A-101")
	repo.concepts["concept-1"] = &models.PaymentConcept{ID: "concept-1", Name: "Monthly expenses", Active: true}
	repo.charges["charge-1"] = &models.Charge{ID: "charge-1", UnitID: "unit-1", ConceptID: "concept-1", Period: "2026-09", Amount: 350, State: models.ChargePending}

	_, charge, err := svc.RegisterPayment(context.Background(), "user-1", RegisterPaymentRequest{
		ChargeID: "charge-1", Amount: 200, Method: "transfer", Reference: "TX-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ChargePartial, charge.State)
	assert.Equal(t, 150.0, charge.Balance())

	_, charge, err = svc.RegisterPayment(context.Background(), "user-1", RegisterPaymentRequest{
		ChargeID: "charge-1", Amount: 150, Method: "cash",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ChargePaid, charge.State)
	assert.Zero(t, charge.Balance())

	_, _, err = svc.RegisterPayment(context.Background(), "user-1", RegisterPaymentRequest{
		ChargeID: "charge-1", Amount: 10, Method: "cash",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestRegisterPaymentRejectsOverpayment(t *testing.T) {
	svc, repo, units := newBillingFixture()
	addOccupiedUnit(units, "unit-1", "A-101")
	repo.charges["charge-1"] = &models.Charge{ID: "charge-1", UnitID: "unit-1", ConceptID: "concept-1", Period: "2026-09", Amount: 350, State: models.ChargePending}

	_, _, err := svc.RegisterPayment(context.Background(), "user-1", RegisterPaymentRequest{
		ChargeID: "charge-1", Amount: 400, Method: "cash",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestApplyLateInterestStampsPeriod(t *testing.T) {
	svc, repo, _ := newBillingFixture()
	// Due 30 days before billingNow with a 1000 balance.
	repo.charges["charge-1"] = &models.Charge{
		ID: "charge-1", UnitID: "unit-1", ConceptID: "concept-1", Period: "2026-08",
		Amount: 1000, DueDate: billingNow.AddDate(0, 0, -30), State: models.ChargeOverdue,
	}

	result, err := svc.ApplyLateInterest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	assert.InDelta(t, 20.0, result.Total, 0.001)
	assert.InDelta(t, 1020.0, repo.charges["charge-1"].Amount, 0.001)

	// A second run in the same month is a no-op.
	result, err = svc.ApplyLateInterest(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Applied)
	assert.InDelta(t, 1020.0, repo.charges["charge-1"].Amount, 0.001)
}

func TestMarkOverdueFlipsPastDueCharges(t *testing.T) {
	svc, repo, _ := newBillingFixture()
	repo.charges["late"] = &models.Charge{ID: "late", UnitID: "unit-1", ConceptID: "c", Amount: 100, DueDate: billingNow.AddDate(0, 0, -5), State: models.ChargePending}
	repo.charges["current"] = &models.Charge{ID: "current", UnitID: "unit-1", ConceptID: "c", Amount: 100, DueDate: billingNow.AddDate(0, 0, 5), State: models.ChargePending}

	affected, err := svc.MarkOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.Equal(t, models.ChargeOverdue, repo.charges["late"].State)
	assert.Equal(t, models.ChargePending, repo.charges["current"].State)
}

func TestCancelChargeWithPaymentsFails(t *testing.T) {
	svc, repo, _ := newBillingFixture()
	repo.charges["charge-1"] = &models.Charge{ID: "charge-1", UnitID: "unit-1", ConceptID: "c", Amount: 350, PaidAmount: 100, State: models.ChargePartial}

	err := svc.CancelCharge(context.Background(), "charge-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	repo.charges["charge-2"] = &models.Charge{ID: "charge-2", UnitID: "unit-1", ConceptID: "c", Amount: 350, State: models.ChargePending}
	require.NoError(t, svc.CancelCharge(context.Background(), "charge-2"))
	assert.Equal(t, models.ChargeCancelled, repo.charges["charge-2"].State)
}

func TestCreateChargeDefaultsToConceptAmount(t *testing.T) {
	svc, repo, units := newBillingFixture()
	addOccupiedUnit(units, "unit-1", "A-101")
	repo.concepts["concept-1"] = &models.PaymentConcept{ID: "concept-1", Name: "Fine", Type: models.ConceptFine, BaseAmount: 150, Active: true}

	charge, err := svc.CreateCharge(context.Background(), CreateChargeRequest{
		UnitID: "unit-1", ConceptID: "concept-1", Period: "2026-09", Description: "Noise complaint",
	})
	require.NoError(t, err)
	assert.Equal(t, 150.0, charge.Amount)
	assert.Equal(t, time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC), charge.DueDate)
}

func TestDelinquencyReportComputesRisk(t *testing.T) {
	svc, repo, _ := newBillingFixture()
	repo.delinquency = []models.DelinquencyEntry{
		{UnitID: "unit-1", UnitCode: "A-101", OverdueCount: 3, OverdueAmount: 1200, OldestDueDate: billingNow.AddDate(0, 0, -95)},
		{UnitID: "unit-2", UnitCode: "A-102", OverdueCount: 1, OverdueAmount: 350, OldestDueDate: billingNow.AddDate(0, 0, -40)},
		{UnitID: "unit-3", UnitCode: "B-201", OverdueCount: 1, OverdueAmount: 80, OldestDueDate: billingNow.AddDate(0, 0, -5)},
	}

	report, err := svc.DelinquencyReport(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, report.Entries, 3)
	assert.Equal(t, "critical", report.Entries[0].RiskLevel)
	assert.Equal(t, 95, report.Entries[0].DaysOverdue)
	assert.Equal(t, "medium", report.Entries[1].RiskLevel)
	assert.Equal(t, "low", report.Entries[2].RiskLevel)
	assert.InDelta(t, 1630.0, report.TotalAmount, 0.001)
	assert.Empty(t, report.DownloadURL)
}
