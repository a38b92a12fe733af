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

// SecurityRepository provides persistence for visitors, vehicles, access
// logs and incidents.
type SecurityRepository struct {
	db *sqlx.DB
}

// NewSecurityRepository creates the repository.
func NewSecurityRepository(db *sqlx.DB) *SecurityRepository {
	return &SecurityRepository{db: db}
}

// --- visitors ---

// CreateVisitor registers a guest entry.
func (r *SecurityRepository) CreateVisitor(ctx context.Context, v *models.Visitor) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	if v.EnteredAt.IsZero() {
		v.EnteredAt = now
	}
	const query = `INSERT INTO visitors (id, full_name, document, unit_id, reason, entered_at, exited_at, registered_by, created_at) VALUES (:id, :full_name, :document, :unit_id, :reason, :entered_at, :exited_at, :registered_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, v); err != nil {
		return fmt.Errorf("create visitor: %w", err)
	}
	return nil
}

// FindVisitorByID returns a visitor record.
func (r *SecurityRepository) FindVisitorByID(ctx context.Context, id string) (*models.Visitor, error) {
	const query = `SELECT id, full_name, document, unit_id, reason, entered_at, exited_at, registered_by, created_at FROM visitors WHERE id = $1 LIMIT 1`
	var v models.Visitor
	if err := r.db.GetContext(ctx, &v, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find visitor: %w", err)
	}
	return &v, nil
}

// MarkVisitorExit stamps the departure time.
func (r *SecurityRepository) MarkVisitorExit(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE visitors SET exited_at = $2 WHERE id = $1 AND exited_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("mark visitor exit: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark visitor exit rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListVisitors returns visitors, most recent entries first. Pass onSiteOnly
// to restrict the list to guests who have not exited.
func (r *SecurityRepository) ListVisitors(ctx context.Context, unitID string, onSiteOnly bool, limit int) ([]models.Visitor, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT id, full_name, document, unit_id, reason, entered_at, exited_at, registered_by, created_at FROM visitors WHERE 1=1`
	var args []interface{}
	if unitID != "" {
		query += fmt.Sprintf(" AND unit_id = $%d", len(args)+1)
		args = append(args, unitID)
	}
	if onSiteOnly {
		query += " AND exited_at IS NULL"
	}
	query += fmt.Sprintf(" ORDER BY entered_at DESC LIMIT %d", limit)
	var visitors []models.Visitor
	if err := r.db.SelectContext(ctx, &visitors, query, args...); err != nil {
		return nil, fmt.Errorf("list visitors: %w", err)
	}
	return visitors, nil
}

// --- vehicles ---

// CreateVehicle registers a plate for a unit.
func (r *SecurityRepository) CreateVehicle(ctx context.Context, v *models.Vehicle) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO vehicles (id, plate, unit_id, brand, model, color, authorized, created_at) VALUES (:id, :plate, :unit_id, :brand, :model, :color, :authorized, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, v); err != nil {
		return fmt.Errorf("create vehicle: %w", err)
	}
	return nil
}

// FindVehicleByPlate returns the vehicle registered under a plate.
// Plates are stored uppercase.
func (r *SecurityRepository) FindVehicleByPlate(ctx context.Context, plate string) (*models.Vehicle, error) {
	const query = `SELECT id, plate, unit_id, brand, model, color, authorized, created_at FROM vehicles WHERE plate = $1 LIMIT 1`
	var v models.Vehicle
	if err := r.db.GetContext(ctx, &v, query, strings.ToUpper(plate)); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find vehicle by plate: %w", err)
	}
	return &v, nil
}

// ListVehiclesByUnit returns vehicles registered to a unit.
func (r *SecurityRepository) ListVehiclesByUnit(ctx context.Context, unitID string) ([]models.Vehicle, error) {
	const query = `SELECT id, plate, unit_id, brand, model, color, authorized, created_at FROM vehicles WHERE unit_id = $1 ORDER BY plate`
	var vehicles []models.Vehicle
	if err := r.db.SelectContext(ctx, &vehicles, query, unitID); err != nil {
		return nil, fmt.Errorf("list vehicles by unit: %w", err)
	}
	return vehicles, nil
}

// SetVehicleAuthorized flips the authorization flag.
func (r *SecurityRepository) SetVehicleAuthorized(ctx context.Context, id string, authorized bool) error {
	const query = `UPDATE vehicles SET authorized = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, authorized); err != nil {
		return fmt.Errorf("set vehicle authorization: %w", err)
	}
	return nil
}

// --- access logs ---

// CreateAccessLog records a gate event.
func (r *SecurityRepository) CreateAccessLog(ctx context.Context, log *models.AccessLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = now
	}
	if log.OccurredAt.IsZero() {
		log.OccurredAt = now
	}
	const query = `INSERT INTO access_logs (id, user_id, vehicle_id, direction, method, confidence, detail, occurred_at, created_at) VALUES (:id, :user_id, :vehicle_id, :direction, :method, :confidence, :detail, :occurred_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create access log: %w", err)
	}
	return nil
}

// ListAccessLogs returns gate events in a time window, newest first.
func (r *SecurityRepository) ListAccessLogs(ctx context.Context, from, to time.Time, limit int) ([]models.AccessLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT id, user_id, vehicle_id, direction, method, confidence, detail, occurred_at, created_at FROM access_logs WHERE occurred_at >= $1 AND occurred_at < $2 ORDER BY occurred_at DESC LIMIT %d`, limit)
	var logs []models.AccessLog
	if err := r.db.SelectContext(ctx, &logs, query, from, to); err != nil {
		return nil, fmt.Errorf("list access logs: %w", err)
	}
	return logs, nil
}

// --- incidents ---

// CreateIncident stores a security incident.
func (r *SecurityRepository) CreateIncident(ctx context.Context, inc *models.Incident) error {
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if inc.CreatedAt.IsZero() {
		inc.CreatedAt = now
	}
	inc.UpdatedAt = now
	const query = `INSERT INTO incidents (id, kind, severity, state, description, detected_by, confidence, resolved_at, created_at, updated_at) VALUES (:id, :kind, :severity, :state, :description, :detected_by, :confidence, :resolved_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, inc); err != nil {
		return fmt.Errorf("create incident: %w", err)
	}
	return nil
}

// FindIncidentByID returns an incident by identifier.
func (r *SecurityRepository) FindIncidentByID(ctx context.Context, id string) (*models.Incident, error) {
	const query = `SELECT id, kind, severity, state, description, detected_by, confidence, resolved_at, created_at, updated_at FROM incidents WHERE id = $1 LIMIT 1`
	var inc models.Incident
	if err := r.db.GetContext(ctx, &inc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find incident: %w", err)
	}
	return &inc, nil
}

// ListIncidents returns incidents filtered by state, newest first.
func (r *SecurityRepository) ListIncidents(ctx context.Context, state *models.IncidentState, limit int) ([]models.Incident, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT id, kind, severity, state, description, detected_by, confidence, resolved_at, created_at, updated_at FROM incidents WHERE 1=1`
	var args []interface{}
	if state != nil {
		query += fmt.Sprintf(" AND state = $%d", len(args)+1)
		args = append(args, *state)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)
	var incidents []models.Incident
	if err := r.db.SelectContext(ctx, &incidents, query, args...); err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	return incidents, nil
}

// UpdateIncidentState transitions the investigation lifecycle.
func (r *SecurityRepository) UpdateIncidentState(ctx context.Context, id string, state models.IncidentState) error {
	now := time.Now().UTC()
	var resolvedAt *time.Time
	if state == models.IncidentResolved {
		resolvedAt = &now
	}
	const query = `UPDATE incidents SET state = $2, resolved_at = COALESCE($3, resolved_at), updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, state, resolvedAt, now); err != nil {
		return fmt.Errorf("update incident state: %w", err)
	}
	return nil
}

// PaymentHistoryRate returns the fraction of a unit's settled charges that
// were paid on or before their due date. Used by the delinquency scorer.
func (r *SecurityRepository) PaymentHistoryRate(ctx context.Context, unitID string) (onTime float64, total int, err error) {
	const query = `SELECT COUNT(*) AS total, COUNT(CASE WHEN p.paid_at <= c.due_date THEN 1 END) AS on_time
FROM charges c JOIN payments p ON p.charge_id = c.id
WHERE c.unit_id = $1 AND c.state = 'paid'`
	var row struct {
		Total  int `db:"total"`
		OnTime int `db:"on_time"`
	}
	if err := r.db.GetContext(ctx, &row, query, unitID); err != nil {
		return 0, 0, fmt.Errorf("payment history rate: %w", err)
	}
	if row.Total == 0 {
		return 1, 0, nil
	}
	return float64(row.OnTime) / float64(row.Total), row.Total, nil
}
