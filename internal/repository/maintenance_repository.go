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

const maintenanceColumns = `id, unit_id, requester_id, type_id, title, description, priority, state, assigned_to, assigned_at, photo_path, created_at, updated_at`

// MaintenanceRepository provides persistence for maintenance requests and
// work reports.
type MaintenanceRepository struct {
	db *sqlx.DB
}

// NewMaintenanceRepository creates the repository.
func NewMaintenanceRepository(db *sqlx.DB) *MaintenanceRepository {
	return &MaintenanceRepository{db: db}
}

// ListTypes returns maintenance types, optionally only active ones.
func (r *MaintenanceRepository) ListTypes(ctx context.Context, activeOnly bool) ([]models.MaintenanceType, error) {
	query := `SELECT id, name, active, created_at FROM maintenance_types`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY name`
	var types []models.MaintenanceType
	if err := r.db.SelectContext(ctx, &types, query); err != nil {
		return nil, fmt.Errorf("list maintenance types: %w", err)
	}
	return types, nil
}

// FindTypeByID returns one maintenance type.
func (r *MaintenanceRepository) FindTypeByID(ctx context.Context, id string) (*models.MaintenanceType, error) {
	const query = `SELECT id, name, active, created_at FROM maintenance_types WHERE id = $1 LIMIT 1`
	var mt models.MaintenanceType
	if err := r.db.GetContext(ctx, &mt, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find maintenance type: %w", err)
	}
	return &mt, nil
}

// CreateType inserts a new maintenance type.
func (r *MaintenanceRepository) CreateType(ctx context.Context, mt *models.MaintenanceType) error {
	if mt.ID == "" {
		mt.ID = uuid.NewString()
	}
	if mt.CreatedAt.IsZero() {
		mt.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO maintenance_types (id, name, active, created_at) VALUES (:id, :name, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, mt); err != nil {
		return fmt.Errorf("create maintenance type: %w", err)
	}
	return nil
}

// FindByID returns a maintenance request by identifier.
func (r *MaintenanceRepository) FindByID(ctx context.Context, id string) (*models.MaintenanceRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM maintenance_requests WHERE id = $1 LIMIT 1`, maintenanceColumns)
	var req models.MaintenanceRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find maintenance request: %w", err)
	}
	return &req, nil
}

// List returns maintenance requests matching the filter with total count.
func (r *MaintenanceRepository) List(ctx context.Context, filter models.MaintenanceFilter) ([]models.MaintenanceRequest, int, error) {
	baseQuery := `FROM maintenance_requests WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.UnitID != "" {
		conditions = append(conditions, fmt.Sprintf("unit_id = $%d", len(args)+1))
		args = append(args, filter.UnitID)
	}
	if filter.RequesterID != "" {
		conditions = append(conditions, fmt.Sprintf("requester_id = $%d", len(args)+1))
		args = append(args, filter.RequesterID)
	}
	if filter.AssignedTo != "" {
		conditions = append(conditions, fmt.Sprintf("assigned_to = $%d", len(args)+1))
		args = append(args, filter.AssignedTo)
	}
	if filter.TypeID != "" {
		conditions = append(conditions, fmt.Sprintf("type_id = $%d", len(args)+1))
		args = append(args, filter.TypeID)
	}
	if filter.State != nil {
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)+1))
		args = append(args, *filter.State)
	}
	if filter.Priority != nil {
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)+1))
		args = append(args, *filter.Priority)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"created_at": true, "priority": true, "state": true}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", maintenanceColumns, baseQuery, sortBy, sortOrder, pageSize, offset)
	var requests []models.MaintenanceRequest
	if err := r.db.SelectContext(ctx, &requests, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list maintenance requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count maintenance requests: %w", err)
	}
	return requests, total, nil
}

// Create inserts a new maintenance request.
func (r *MaintenanceRepository) Create(ctx context.Context, req *models.MaintenanceRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now
	const query = `INSERT INTO maintenance_requests (id, unit_id, requester_id, type_id, title, description, priority, state, assigned_to, assigned_at, photo_path, created_at, updated_at) VALUES (:id, :unit_id, :requester_id, :type_id, :title, :description, :priority, :state, :assigned_to, :assigned_at, :photo_path, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create maintenance request: %w", err)
	}
	return nil
}

// Assign sets the worker and moves the request to assigned.
func (r *MaintenanceRepository) Assign(ctx context.Context, id, workerID string) error {
	now := time.Now().UTC()
	const query = `UPDATE maintenance_requests SET assigned_to = $2, assigned_at = $3, state = $4, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, workerID, now, models.MaintenanceAssigned); err != nil {
		return fmt.Errorf("assign maintenance request: %w", err)
	}
	return nil
}

// UpdateState transitions the request lifecycle.
func (r *MaintenanceRepository) UpdateState(ctx context.Context, id string, state models.MaintenanceState) error {
	const query = `UPDATE maintenance_requests SET state = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, state, time.Now().UTC()); err != nil {
		return fmt.Errorf("update maintenance state: %w", err)
	}
	return nil
}

// CreateWorkReport stores the completion report and closes the request
// inside one transaction.
func (r *MaintenanceRepository) CreateWorkReport(ctx context.Context, report *models.WorkReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin work report transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertQuery = `INSERT INTO work_reports (id, request_id, notes, materials_cost, hours_spent, created_by, created_at) VALUES (:id, :request_id, :notes, :materials_cost, :hours_spent, :created_by, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, report); err != nil {
		return fmt.Errorf("insert work report: %w", err)
	}

	const closeQuery = `UPDATE maintenance_requests SET state = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, closeQuery, report.RequestID, models.MaintenanceCompleted, now); err != nil {
		return fmt.Errorf("close maintenance request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit work report transaction: %w", err)
	}
	return nil
}

// FindWorkReport returns the work report for a request.
func (r *MaintenanceRepository) FindWorkReport(ctx context.Context, requestID string) (*models.WorkReport, error) {
	const query = `SELECT id, request_id, notes, materials_cost, hours_spent, created_by, created_at FROM work_reports WHERE request_id = $1 LIMIT 1`
	var report models.WorkReport
	if err := r.db.GetContext(ctx, &report, query, requestID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find work report: %w", err)
	}
	return &report, nil
}
