package models

import "time"

// ConceptType classifies a payment concept.
type ConceptType string

const (
	ConceptExpense ConceptType = "expense"
	ConceptFine    ConceptType = "fine"
	ConceptService ConceptType = "service"
	ConceptOther   ConceptType = "other"
)

// PaymentConcept is a billable item definition (monthly expenses, fines,
// one-off services). Recurring concepts participate in bulk fee generation.
type PaymentConcept struct {
	ID         string      `db:"id" json:"id"`
	Name       string      `db:"name" json:"name"`
	Type       ConceptType `db:"type" json:"type"`
	BaseAmount float64     `db:"base_amount" json:"base_amount"`
	Recurring  bool        `db:"recurring" json:"recurring"`
	Active     bool        `db:"active" json:"active"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}

// ChargeState is the payment-obligation lifecycle.
type ChargeState string

const (
	ChargePending   ChargeState = "pending"
	ChargePartial   ChargeState = "partial"
	ChargePaid      ChargeState = "paid"
	ChargeOverdue   ChargeState = "overdue"
	ChargeCancelled ChargeState = "cancelled"
)

// Charge is a payment obligation assigned to a housing unit for a period.
// Period uses the "YYYY-MM" form.
type Charge struct {
	ID                 string      `db:"id" json:"id"`
	UnitID             string      `db:"unit_id" json:"unit_id"`
	ConceptID          string      `db:"concept_id" json:"concept_id"`
	Period             string      `db:"period" json:"period"`
	Amount             float64     `db:"amount" json:"amount"`
	PaidAmount         float64     `db:"paid_amount" json:"paid_amount"`
	DueDate            time.Time   `db:"due_date" json:"due_date"`
	State              ChargeState `db:"state" json:"state"`
	Description        string      `db:"description" json:"description,omitempty"`
	LastInterestPeriod string      `db:"last_interest_period" json:"last_interest_period,omitempty"`
	CreatedAt          time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at" json:"updated_at"`
}

// Balance returns the outstanding amount.
func (c *Charge) Balance() float64 {
	balance := c.Amount - c.PaidAmount
	if balance < 0 {
		return 0
	}
	return balance
}

// ChargeFilter captures filtering criteria for listing charges.
type ChargeFilter struct {
	UnitID    string
	ConceptID string
	Period    string
	State     *ChargeState
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Payment records money applied against a charge.
type Payment struct {
	ID          string    `db:"id" json:"id"`
	ChargeID    string    `db:"charge_id" json:"charge_id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Amount      float64   `db:"amount" json:"amount"`
	Method      string    `db:"method" json:"method"`
	Reference   string    `db:"reference" json:"reference,omitempty"`
	ReceiptPath string    `db:"receipt_path" json:"receipt_path,omitempty"`
	PaidAt      time.Time `db:"paid_at" json:"paid_at"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// BulkGenerationError describes a single failed item in a bulk run.
type BulkGenerationError struct {
	UnitID    string `json:"unit_id"`
	ConceptID string `json:"concept_id"`
	Message   string `json:"message"`
}

// BulkGenerationResult aggregates a bulk fee-generation pass. Per-item
// failures never abort the run.
type BulkGenerationResult struct {
	Period  string                `json:"period"`
	Created int                   `json:"created"`
	Skipped int                   `json:"skipped"`
	Errors  []BulkGenerationError `json:"errors,omitempty"`
}

// InterestApplicationResult aggregates a late-interest pass.
type InterestApplicationResult struct {
	Period  string                `json:"period"`
	Applied int                   `json:"applied"`
	Total   float64               `json:"total"`
	Errors  []BulkGenerationError `json:"errors,omitempty"`
}

// DelinquencyEntry is one row of the delinquency report.
type DelinquencyEntry struct {
	UnitID        string    `db:"unit_id" json:"unit_id"`
	UnitCode      string    `db:"unit_code" json:"unit_code"`
	Building      string    `db:"building" json:"building"`
	OwnerName     string    `db:"owner_name" json:"owner_name"`
	OverdueCount  int       `db:"overdue_count" json:"overdue_count"`
	OverdueAmount float64   `db:"overdue_amount" json:"overdue_amount"`
	OldestDueDate time.Time `db:"oldest_due_date" json:"oldest_due_date"`
	DaysOverdue   int       `json:"days_overdue"`
	RiskLevel     string    `json:"risk_level"`
}

// DelinquencyReport wraps the exported report with its download token.
type DelinquencyReport struct {
	ID          string             `json:"id"`
	GeneratedAt time.Time          `json:"generated_at"`
	Entries     []DelinquencyEntry `json:"entries"`
	TotalAmount float64            `json:"total_amount"`
	DownloadURL string             `json:"download_url,omitempty"`
	ExpiresAt   *time.Time         `json:"expires_at,omitempty"`
}

// BillingSummary powers the finance dashboard endpoint.
type BillingSummary struct {
	Period         string  `json:"period"`
	TotalBilled    float64 `db:"total_billed" json:"total_billed"`
	TotalCollected float64 `db:"total_collected" json:"total_collected"`
	TotalOverdue   float64 `db:"total_overdue" json:"total_overdue"`
	PendingCharges int     `db:"pending_charges" json:"pending_charges"`
	OverdueCharges int     `db:"overdue_charges" json:"overdue_charges"`
}
