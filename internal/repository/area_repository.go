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

const areaColumns = `id, name, category, description, capacity, operating_hours, min_duration_minutes, max_duration_minutes, min_lead_hours, max_lead_hours, hourly_rate, weekend_rate, deposit_amount, requires_authorization, permits_reservations, state, rating_average, rating_count, photo_path, created_at, updated_at`

// AreaRepository provides persistence for bookable common areas.
type AreaRepository struct {
	db *sqlx.DB
}

// NewAreaRepository creates the repository.
func NewAreaRepository(db *sqlx.DB) *AreaRepository {
	return &AreaRepository{db: db}
}

// FindByID returns an area by identifier.
func (r *AreaRepository) FindByID(ctx context.Context, id string) (*models.Area, error) {
	query := fmt.Sprintf(`SELECT %s FROM areas WHERE id = $1 LIMIT 1`, areaColumns)
	var area models.Area
	if err := r.db.GetContext(ctx, &area, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find area by id: %w", err)
	}
	return &area, nil
}

// List returns areas matching the filter with total count.
func (r *AreaRepository) List(ctx context.Context, filter models.AreaFilter) ([]models.Area, int, error) {
	baseQuery := `FROM areas WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.State != nil {
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)+1))
		args = append(args, *filter.State)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"name": true, "category": true, "rating_average": true, "created_at": true}
	if !allowedSorts[sortBy] {
		sortBy = "name"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "ASC"
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", areaColumns, baseQuery, sortBy, sortOrder, pageSize, offset)
	var areas []models.Area
	if err := r.db.SelectContext(ctx, &areas, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list areas: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count areas: %w", err)
	}
	return areas, total, nil
}

// Create inserts a new area.
func (r *AreaRepository) Create(ctx context.Context, area *models.Area) error {
	if area.ID == "" {
		area.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if area.CreatedAt.IsZero() {
		area.CreatedAt = now
	}
	area.UpdatedAt = now
	const query = `INSERT INTO areas (id, name, category, description, capacity, operating_hours, min_duration_minutes, max_duration_minutes, min_lead_hours, max_lead_hours, hourly_rate, weekend_rate, deposit_amount, requires_authorization, permits_reservations, state, rating_average, rating_count, photo_path, created_at, updated_at)
VALUES (:id, :name, :category, :description, :capacity, :operating_hours, :min_duration_minutes, :max_duration_minutes, :min_lead_hours, :max_lead_hours, :hourly_rate, :weekend_rate, :deposit_amount, :requires_authorization, :permits_reservations, :state, :rating_average, :rating_count, :photo_path, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, area); err != nil {
		return fmt.Errorf("create area: %w", err)
	}
	return nil
}

// Update modifies mutable fields of an area.
func (r *AreaRepository) Update(ctx context.Context, area *models.Area) error {
	area.UpdatedAt = time.Now().UTC()
	const query = `UPDATE areas SET name = :name, category = :category, description = :description, capacity = :capacity, operating_hours = :operating_hours, min_duration_minutes = :min_duration_minutes, max_duration_minutes = :max_duration_minutes, min_lead_hours = :min_lead_hours, max_lead_hours = :max_lead_hours, hourly_rate = :hourly_rate, weekend_rate = :weekend_rate, deposit_amount = :deposit_amount, requires_authorization = :requires_authorization, permits_reservations = :permits_reservations, state = :state, photo_path = :photo_path, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, area); err != nil {
		return fmt.Errorf("update area: %w", err)
	}
	return nil
}

// SetState transitions the area lifecycle state. Areas are never hard-deleted.
func (r *AreaRepository) SetState(ctx context.Context, id string, state models.AreaState) error {
	const query = `UPDATE areas SET state = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, state, time.Now().UTC()); err != nil {
		return fmt.Errorf("set area state: %w", err)
	}
	return nil
}

// ExistsByName reports whether an area with the same name exists.
func (r *AreaRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM areas WHERE LOWER(name) = LOWER($1) AND id <> $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, name, excludeID); err != nil {
		return false, fmt.Errorf("check area name: %w", err)
	}
	return count > 0, nil
}
