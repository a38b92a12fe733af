package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/models"
)

const chargeColumns = `id, unit_id, concept_id, period, amount, paid_amount, due_date, state, description, last_interest_period, created_at, updated_at`

// BillingRepository provides persistence for payment concepts, charges and
// payments.
type BillingRepository struct {
	db *sqlx.DB
}

// NewBillingRepository creates the repository.
func NewBillingRepository(db *sqlx.DB) *BillingRepository {
	return &BillingRepository{db: db}
}

// --- concepts ---

// ListConcepts returns payment concepts, optionally only active ones.
func (r *BillingRepository) ListConcepts(ctx context.Context, activeOnly bool) ([]models.PaymentConcept, error) {
	query := `SELECT id, name, type, base_amount, recurring, active, created_at FROM payment_concepts`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY name`
	var concepts []models.PaymentConcept
	if err := r.db.SelectContext(ctx, &concepts, query); err != nil {
		return nil, fmt.Errorf("list payment concepts: %w", err)
	}
	return concepts, nil
}

// ListRecurringConcepts returns the active recurring concepts used by bulk
// fee generation.
func (r *BillingRepository) ListRecurringConcepts(ctx context.Context) ([]models.PaymentConcept, error) {
	const query = `SELECT id, name, type, base_amount, recurring, active, created_at FROM payment_concepts WHERE active = TRUE AND recurring = TRUE ORDER BY name`
	var concepts []models.PaymentConcept
	if err := r.db.SelectContext(ctx, &concepts, query); err != nil {
		return nil, fmt.Errorf("list recurring concepts: %w", err)
	}
	return concepts, nil
}

// FindConceptByID returns one payment concept.
func (r *BillingRepository) FindConceptByID(ctx context.Context, id string) (*models.PaymentConcept, error) {
	const query = `SELECT id, name, type, base_amount, recurring, active, created_at FROM payment_concepts WHERE id = $1 LIMIT 1`
	var concept models.PaymentConcept
	if err := r.db.GetContext(ctx, &concept, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment concept: %w", err)
	}
	return &concept, nil
}

// CreateConcept inserts a new payment concept.
func (r *BillingRepository) CreateConcept(ctx context.Context, concept *models.PaymentConcept) error {
	if concept.ID == "" {
		concept.ID = uuid.NewString()
	}
	if concept.CreatedAt.IsZero() {
		concept.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO payment_concepts (id, name, type, base_amount, recurring, active, created_at) VALUES (:id, :name, :type, :base_amount, :recurring, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, concept); err != nil {
		return fmt.Errorf("create payment concept: %w", err)
	}
	return nil
}

// UpdateConcept modifies a payment concept.
func (r *BillingRepository) UpdateConcept(ctx context.Context, concept *models.PaymentConcept) error {
	const query = `UPDATE payment_concepts SET name = :name, type = :type, base_amount = :base_amount, recurring = :recurring, active = :active WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, concept); err != nil {
		return fmt.Errorf("update payment concept: %w", err)
	}
	return nil
}

// --- charges ---

// FindChargeByID returns a charge by identifier.
func (r *BillingRepository) FindChargeByID(ctx context.Context, id string) (*models.Charge, error) {
	query := fmt.Sprintf(`SELECT %s FROM charges WHERE id = $1 LIMIT 1`, chargeColumns)
	var charge models.Charge
	if err := r.db.GetContext(ctx, &charge, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find charge by id: %w", err)
	}
	return &charge, nil
}

// ListCharges returns charges matching the filter with total count.
func (r *BillingRepository) ListCharges(ctx context.Context, filter models.ChargeFilter) ([]models.Charge, int, error) {
	baseQuery := `FROM charges WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.UnitID != "" {
		conditions = append(conditions, fmt.Sprintf("unit_id = $%d", len(args)+1))
		args = append(args, filter.UnitID)
	}
	if filter.ConceptID != "" {
		conditions = append(conditions, fmt.Sprintf("concept_id = $%d", len(args)+1))
		args = append(args, filter.ConceptID)
	}
	if filter.Period != "" {
		conditions = append(conditions, fmt.Sprintf("period = $%d", len(args)+1))
		args = append(args, filter.Period)
	}
	if filter.State != nil {
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)+1))
		args = append(args, *filter.State)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"due_date": true, "period": true, "amount": true, "created_at": true}
	if !allowedSorts[sortBy] {
		sortBy = "due_date"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", chargeColumns, baseQuery, sortBy, sortOrder, pageSize, offset)
	var charges []models.Charge
	if err := r.db.SelectContext(ctx, &charges, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list charges: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count charges: %w", err)
	}
	return charges, total, nil
}

// ListChargesByUser returns charges of the units the user occupies.
func (r *BillingRepository) ListChargesByUser(ctx context.Context, userID string) ([]models.Charge, error) {
	query := fmt.Sprintf(`SELECT %s FROM charges WHERE unit_id IN (SELECT id FROM housing_units WHERE owner_id = $1 OR tenant_id = $1) ORDER BY due_date DESC`, chargeColumns)
	var charges []models.Charge
	if err := r.db.SelectContext(ctx, &charges, query, userID); err != nil {
		return nil, fmt.Errorf("list charges by user: %w", err)
	}
	return charges, nil
}

// CreateCharge inserts a new charge.
func (r *BillingRepository) CreateCharge(ctx context.Context, charge *models.Charge) error {
	if charge.ID == "" {
		charge.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if charge.CreatedAt.IsZero() {
		charge.CreatedAt = now
	}
	charge.UpdatedAt = now
	const query = `INSERT INTO charges (id, unit_id, concept_id, period, amount, paid_amount, due_date, state, description, last_interest_period, created_at, updated_at) VALUES (:id, :unit_id, :concept_id, :period, :amount, :paid_amount, :due_date, :state, :description, :last_interest_period, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, charge); err != nil {
		return fmt.Errorf("create charge: %w", err)
	}
	return nil
}

// ExistsChargeForPeriod reports whether a charge already exists for the
// unit/concept/period triple. Used to keep bulk generation idempotent.
func (r *BillingRepository) ExistsChargeForPeriod(ctx context.Context, unitID, conceptID, period string) (bool, error) {
	const query = `SELECT COUNT(*) FROM charges WHERE unit_id = $1 AND concept_id = $2 AND period = $3 AND state <> 'cancelled'`
	var count int
	if err := r.db.GetContext(ctx, &count, query, unitID, conceptID, period); err != nil {
		return false, fmt.Errorf("check charge for period: %w", err)
	}
	return count > 0, nil
}

// UpdateChargeState transitions the charge lifecycle.
func (r *BillingRepository) UpdateChargeState(ctx context.Context, id string, state models.ChargeState) error {
	const query = `UPDATE charges SET state = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, state, time.Now().UTC()); err != nil {
		return fmt.Errorf("update charge state: %w", err)
	}
	return nil
}

// MarkOverdue flips pending and partial charges past their due date to
// overdue, returning how many rows changed.
func (r *BillingRepository) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	const query = `UPDATE charges SET state = 'overdue', updated_at = $1 WHERE state IN ('pending','partial') AND due_date < $1`
	result, err := r.db.ExecContext(ctx, query, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("mark overdue charges: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark overdue rows affected: %w", err)
	}
	return affected, nil
}

// ListOverdueCharges returns overdue charges with an outstanding balance.
func (r *BillingRepository) ListOverdueCharges(ctx context.Context) ([]models.Charge, error) {
	query := fmt.Sprintf(`SELECT %s FROM charges WHERE state = 'overdue' AND amount > paid_amount ORDER BY due_date`, chargeColumns)
	var charges []models.Charge
	if err := r.db.SelectContext(ctx, &charges, query); err != nil {
		return nil, fmt.Errorf("list overdue charges: %w", err)
	}
	return charges, nil
}

// ApplyInterest raises the charge amount by the accrued interest and stamps
// the period so a month is never charged twice.
func (r *BillingRepository) ApplyInterest(ctx context.Context, id string, interest float64, period string) error {
	const query = `UPDATE charges SET amount = amount + $2, last_interest_period = $3, updated_at = $4 WHERE id = $1 AND (last_interest_period IS NULL OR last_interest_period <> $3)`
	result, err := r.db.ExecContext(ctx, query, id, interest, period, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("apply interest: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply interest rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- payments ---

// ApplyPayment records a payment and updates the parent charge inside one
// transaction. The charge moves to partial or paid according to the new
// paid amount.
func (r *BillingRepository) ApplyPayment(ctx context.Context, payment *models.Payment) (*models.Charge, error) {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	if payment.PaidAt.IsZero() {
		payment.PaidAt = now
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin payment transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var charge models.Charge
	query := fmt.Sprintf(`SELECT %s FROM charges WHERE id = $1 FOR UPDATE`, chargeColumns)
	if err := tx.GetContext(ctx, &charge, query, payment.ChargeID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock charge row: %w", err)
	}

	const insertQuery = `INSERT INTO payments (id, charge_id, user_id, amount, method, reference, receipt_path, paid_at, created_at) VALUES (:id, :charge_id, :user_id, :amount, :method, :reference, :receipt_path, :paid_at, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, payment); err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}

	charge.PaidAmount += payment.Amount
	if charge.PaidAmount >= charge.Amount {
		charge.State = models.ChargePaid
	} else {
		charge.State = models.ChargePartial
	}
	charge.UpdatedAt = now
	const updateQuery = `UPDATE charges SET paid_amount = $2, state = $3, updated_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updateQuery, charge.ID, charge.PaidAmount, charge.State, now); err != nil {
		return nil, fmt.Errorf("update charge after payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit payment transaction: %w", err)
	}
	return &charge, nil
}

// ListPaymentsByCharge returns the payments applied to one charge.
func (r *BillingRepository) ListPaymentsByCharge(ctx context.Context, chargeID string) ([]models.Payment, error) {
	const query = `SELECT id, charge_id, user_id, amount, method, reference, receipt_path, paid_at, created_at FROM payments WHERE charge_id = $1 ORDER BY paid_at`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, chargeID); err != nil {
		return nil, fmt.Errorf("list payments by charge: %w", err)
	}
	return payments, nil
}

// SetPaymentReceipt stores the generated receipt path.
func (r *BillingRepository) SetPaymentReceipt(ctx context.Context, id, receiptPath string) error {
	const query = `UPDATE payments SET receipt_path = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, receiptPath); err != nil {
		return fmt.Errorf("set payment receipt: %w", err)
	}
	return nil
}

// --- reporting ---

// DelinquencyEntries aggregates overdue balances per unit for the
// delinquency report, worst debtors first.
func (r *BillingRepository) DelinquencyEntries(ctx context.Context) ([]models.DelinquencyEntry, error) {
	const query = `SELECT h.id AS unit_id, h.code AS unit_code, h.building AS building,
COALESCE(u.full_name, '') AS owner_name,
COUNT(c.id) AS overdue_count,
COALESCE(SUM(c.amount - c.paid_amount), 0) AS overdue_amount,
MIN(c.due_date) AS oldest_due_date
FROM charges c
JOIN housing_units h ON h.id = c.unit_id
LEFT JOIN users u ON u.id = h.owner_id
WHERE c.state = 'overdue' AND c.amount > c.paid_amount
GROUP BY h.id, h.code, h.building, u.full_name
ORDER BY overdue_amount DESC`
	var entries []models.DelinquencyEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("delinquency entries: %w", err)
	}
	return entries, nil
}

// Summary aggregates billed, collected and overdue totals for a period.
// An empty period aggregates across all periods.
func (r *BillingRepository) Summary(ctx context.Context, period string) (*models.BillingSummary, error) {
	baseQuery := `FROM charges WHERE state <> 'cancelled'`
	var args []interface{}
	if period != "" {
		baseQuery += fmt.Sprintf(" AND period = $%d", len(args)+1)
		args = append(args, period)
	}
	query := fmt.Sprintf(`SELECT
COALESCE(SUM(amount), 0) AS total_billed,
COALESCE(SUM(paid_amount), 0) AS total_collected,
COALESCE(SUM(CASE WHEN state = 'overdue' THEN amount - paid_amount ELSE 0 END), 0) AS total_overdue,
COUNT(CASE WHEN state IN ('pending','partial') THEN 1 END) AS pending_charges,
COUNT(CASE WHEN state = 'overdue' THEN 1 END) AS overdue_charges
%s`, baseQuery)
	var summary models.BillingSummary
	if err := r.db.GetContext(ctx, &summary, query, args...); err != nil {
		return nil, fmt.Errorf("billing summary: %w", err)
	}
	summary.Period = period
	return &summary, nil
}
