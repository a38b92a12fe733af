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

const unitColumns = `id, code, building, number, floor, area_m2, bedrooms, owner_id, tenant_id, state, created_at, updated_at`

// UnitRepository provides persistence for housing units.
type UnitRepository struct {
	db *sqlx.DB
}

// NewUnitRepository creates the repository.
func NewUnitRepository(db *sqlx.DB) *UnitRepository {
	return &UnitRepository{db: db}
}

// FindByID returns a unit by identifier.
func (r *UnitRepository) FindByID(ctx context.Context, id string) (*models.HousingUnit, error) {
	query := fmt.Sprintf(`SELECT %s FROM housing_units WHERE id = $1 LIMIT 1`, unitColumns)
	var unit models.HousingUnit
	if err := r.db.GetContext(ctx, &unit, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find unit by id: %w", err)
	}
	return &unit, nil
}

// List returns units matching the filter with total count.
func (r *UnitRepository) List(ctx context.Context, filter models.UnitFilter) ([]models.HousingUnit, int, error) {
	baseQuery := `FROM housing_units WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Building != "" {
		conditions = append(conditions, fmt.Sprintf("building = $%d", len(args)+1))
		args = append(args, filter.Building)
	}
	if filter.State != nil {
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)+1))
		args = append(args, *filter.State)
	}
	if filter.OccupByID != "" {
		conditions = append(conditions, fmt.Sprintf("(owner_id = $%d OR tenant_id = $%d)", len(args)+1, len(args)+1))
		args = append(args, filter.OccupByID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(code) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"code": true, "building": true, "created_at": true}
	if !allowedSorts[sortBy] {
		sortBy = "code"
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", unitColumns, baseQuery, sortBy, sortOrder, pageSize, offset)
	var units []models.HousingUnit
	if err := r.db.SelectContext(ctx, &units, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list units: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count units: %w", err)
	}
	return units, total, nil
}

// ListByUserID returns units where the user is owner or tenant.
func (r *UnitRepository) ListByUserID(ctx context.Context, userID string) ([]models.HousingUnit, error) {
	query := fmt.Sprintf(`SELECT %s FROM housing_units WHERE owner_id = $1 OR tenant_id = $1 ORDER BY code`, unitColumns)
	var units []models.HousingUnit
	if err := r.db.SelectContext(ctx, &units, query, userID); err != nil {
		return nil, fmt.Errorf("list units by user: %w", err)
	}
	return units, nil
}

// CountByUserID returns how many units the user occupies as owner or tenant.
func (r *UnitRepository) CountByUserID(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM housing_units WHERE owner_id = $1 OR tenant_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count units by user: %w", err)
	}
	return count, nil
}

// ListOccupied returns units with an owner or tenant, used by bulk fee generation.
func (r *UnitRepository) ListOccupied(ctx context.Context) ([]models.HousingUnit, error) {
	query := fmt.Sprintf(`SELECT %s FROM housing_units WHERE state <> $1 AND (owner_id IS NOT NULL OR tenant_id IS NOT NULL) ORDER BY code`, unitColumns)
	var units []models.HousingUnit
	if err := r.db.SelectContext(ctx, &units, query, models.UnitVacant); err != nil {
		return nil, fmt.Errorf("list occupied units: %w", err)
	}
	return units, nil
}

// Create inserts a new unit.
func (r *UnitRepository) Create(ctx context.Context, unit *models.HousingUnit) error {
	if unit.ID == "" {
		unit.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if unit.CreatedAt.IsZero() {
		unit.CreatedAt = now
	}
	unit.UpdatedAt = now
	const query = `INSERT INTO housing_units (id, code, building, number, floor, area_m2, bedrooms, owner_id, tenant_id, state, created_at, updated_at) VALUES (:id, :code, :building, :number, :floor, :area_m2, :bedrooms, :owner_id, :tenant_id, :state, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, unit); err != nil {
		return fmt.Errorf("create unit: %w", err)
	}
	return nil
}

// Update modifies mutable fields of a unit.
func (r *UnitRepository) Update(ctx context.Context, unit *models.HousingUnit) error {
	unit.UpdatedAt = time.Now().UTC()
	const query = `UPDATE housing_units SET building = :building, number = :number, floor = :floor, area_m2 = :area_m2, bedrooms = :bedrooms, owner_id = :owner_id, tenant_id = :tenant_id, state = :state, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, unit); err != nil {
		return fmt.Errorf("update unit: %w", err)
	}
	return nil
}

// ExistsByCode reports whether a unit with the code already exists.
func (r *UnitRepository) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM housing_units WHERE code = $1 AND id <> $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, code, excludeID); err != nil {
		return false, fmt.Errorf("check unit code: %w", err)
	}
	return count > 0, nil
}
