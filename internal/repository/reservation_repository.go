package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/models"
)

const reservationColumns = `id, code, area_id, user_id, unit_id, date, start_time, end_time, duration_minutes, event_type, guest_count, add_ons, base_cost, add_on_cost, deposit_amount, total_cost, state, approved_by, approved_at, cancel_reason, rating, rated_at, notes, created_at, updated_at`

// ErrSlotConflict is returned when the requested time range collides with an
// existing blocking reservation inside the booking transaction.
var ErrSlotConflict = fmt.Errorf("reservation slot conflict")

// ReservationRepository provides persistence for reservations.
type ReservationRepository struct {
	db *sqlx.DB
}

// NewReservationRepository creates the repository.
func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// FindByID returns a reservation by identifier.
func (r *ReservationRepository) FindByID(ctx context.Context, id string) (*models.Reservation, error) {
	query := fmt.Sprintf(`SELECT %s FROM reservations WHERE id = $1 LIMIT 1`, reservationColumns)
	var res models.Reservation
	if err := r.db.GetContext(ctx, &res, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find reservation by id: %w", err)
	}
	return &res, nil
}

// FindBlockingByAreaDate returns the reservations that occupy the calendar
// for the given area and date (everything except cancelled/rejected).
func (r *ReservationRepository) FindBlockingByAreaDate(ctx context.Context, areaID string, date time.Time) ([]models.Reservation, error) {
	query := fmt.Sprintf(`SELECT %s FROM reservations WHERE area_id = $1 AND date = $2 AND state = ANY($3) ORDER BY start_time`, reservationColumns)
	var reservations []models.Reservation
	if err := r.db.SelectContext(ctx, &reservations, query, areaID, date, pq.Array(models.BlockingStates())); err != nil {
		return nil, fmt.Errorf("find blocking reservations: %w", err)
	}
	return reservations, nil
}

// List returns reservations matching the filter with total count.
func (r *ReservationRepository) List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, int, error) {
	baseQuery := `FROM reservations WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.AreaID != "" {
		conditions = append(conditions, fmt.Sprintf("area_id = $%d", len(args)+1))
		args = append(args, filter.AreaID)
	}
	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.UnitID != "" {
		conditions = append(conditions, fmt.Sprintf("unit_id = $%d", len(args)+1))
		args = append(args, filter.UnitID)
	}
	if filter.State != nil {
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)+1))
		args = append(args, *filter.State)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"date": true, "created_at": true, "state": true, "total_cost": true}
	if !allowedSorts[sortBy] {
		sortBy = "date"
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, start_time ASC LIMIT %d OFFSET %d", reservationColumns, baseQuery, sortBy, sortOrder, pageSize, offset)
	var reservations []models.Reservation
	if err := r.db.SelectContext(ctx, &reservations, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list reservations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count reservations: %w", err)
	}
	return reservations, total, nil
}

// CreateBooked inserts a reservation inside a transaction that locks the
// area row and re-checks for conflicts, serializing concurrent bookings for
// the same area. Returns ErrSlotConflict when another blocking reservation
// overlaps the requested range.
func (r *ReservationRepository) CreateBooked(ctx context.Context, res *models.Reservation) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	res.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin booking transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var lockedID string
	if err := tx.GetContext(ctx, &lockedID, `SELECT id FROM areas WHERE id = $1 FOR UPDATE`, res.AreaID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock area row: %w", err)
	}

	var conflicts int
	const conflictQuery = `SELECT COUNT(*) FROM reservations WHERE area_id = $1 AND date = $2 AND state = ANY($3) AND NOT (end_time <= $4 OR start_time >= $5)`
	if err := tx.GetContext(ctx, &conflicts, conflictQuery, res.AreaID, res.Date, pq.Array(models.BlockingStates()), res.StartTime, res.EndTime); err != nil {
		return fmt.Errorf("recheck booking conflicts: %w", err)
	}
	if conflicts > 0 {
		return ErrSlotConflict
	}

	const insertQuery = `INSERT INTO reservations (id, code, area_id, user_id, unit_id, date, start_time, end_time, duration_minutes, event_type, guest_count, add_ons, base_cost, add_on_cost, deposit_amount, total_cost, state, approved_by, approved_at, cancel_reason, rating, rated_at, notes, created_at, updated_at)
VALUES (:id, :code, :area_id, :user_id, :unit_id, :date, :start_time, :end_time, :duration_minutes, :event_type, :guest_count, :add_ons, :base_cost, :add_on_cost, :deposit_amount, :total_cost, :state, :approved_by, :approved_at, :cancel_reason, :rating, :rated_at, :notes, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, res); err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit booking transaction: %w", err)
	}
	return nil
}

// Update persists mutable reservation fields after recomputation.
func (r *ReservationRepository) Update(ctx context.Context, res *models.Reservation) error {
	res.UpdatedAt = time.Now().UTC()
	const query = `UPDATE reservations SET date = :date, start_time = :start_time, end_time = :end_time, duration_minutes = :duration_minutes, event_type = :event_type, guest_count = :guest_count, add_ons = :add_ons, base_cost = :base_cost, add_on_cost = :add_on_cost, deposit_amount = :deposit_amount, total_cost = :total_cost, state = :state, approved_by = :approved_by, approved_at = :approved_at, cancel_reason = :cancel_reason, rating = :rating, rated_at = :rated_at, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, res); err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	return nil
}

// UpdateState transitions the reservation lifecycle.
func (r *ReservationRepository) UpdateState(ctx context.Context, id string, state models.ReservationState, approvedBy *string, cancelReason string) error {
	now := time.Now().UTC()
	var approvedAt *time.Time
	if approvedBy != nil {
		approvedAt = &now
	}
	const query = `UPDATE reservations SET state = $2, approved_by = COALESCE($3, approved_by), approved_at = COALESCE($4, approved_at), cancel_reason = $5, updated_at = $6 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, state, approvedBy, approvedAt, cancelReason, now); err != nil {
		return fmt.Errorf("update reservation state: %w", err)
	}
	return nil
}

// SetRating records the one-time rating and folds it into the area's
// running average inside one transaction.
func (r *ReservationRepository) SetRating(ctx context.Context, id, areaID string, rating int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rating transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE reservations SET rating = $2, rated_at = $3, updated_at = $3 WHERE id = $1`, id, rating, now); err != nil {
		return fmt.Errorf("set reservation rating: %w", err)
	}

	const areaQuery = `UPDATE areas SET rating_average = (rating_average * rating_count + $2) / (rating_count + 1), rating_count = rating_count + 1, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, areaQuery, areaID, rating, now); err != nil {
		return fmt.Errorf("update area rating: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rating transaction: %w", err)
	}
	return nil
}

// MonthOccupancy returns the blocking reservations for an area within a month,
// used by the calendar endpoint.
func (r *ReservationRepository) MonthOccupancy(ctx context.Context, areaID string, from, to time.Time) ([]models.Reservation, error) {
	query := fmt.Sprintf(`SELECT %s FROM reservations WHERE area_id = $1 AND date >= $2 AND date < $3 AND state = ANY($4) ORDER BY date, start_time`, reservationColumns)
	var reservations []models.Reservation
	if err := r.db.SelectContext(ctx, &reservations, query, areaID, from, to, pq.Array(models.BlockingStates())); err != nil {
		return nil, fmt.Errorf("month occupancy: %w", err)
	}
	return reservations, nil
}
