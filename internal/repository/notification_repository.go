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

const notificationColumns = `id, title, body, category_id, target, target_buildings, target_units, target_user_ids, channel_push, channel_email, channel_sms, urgent, state, scheduled_at, sent_at, recipient_count, sent_count, read_count, confirmed_count, error_count, created_by, created_at, updated_at`

// NotificationRepository provides persistence for notifications, their
// recipients and per-user preferences.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// --- categories ---

// ListCategories returns notification categories, optionally only active ones.
func (r *NotificationRepository) ListCategories(ctx context.Context, activeOnly bool) ([]models.NotificationCategory, error) {
	query := `SELECT id, name, color, icon, active, created_at FROM notification_categories`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY name`
	var categories []models.NotificationCategory
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("list notification categories: %w", err)
	}
	return categories, nil
}

// FindCategoryByID returns one category.
func (r *NotificationRepository) FindCategoryByID(ctx context.Context, id string) (*models.NotificationCategory, error) {
	const query = `SELECT id, name, color, icon, active, created_at FROM notification_categories WHERE id = $1 LIMIT 1`
	var cat models.NotificationCategory
	if err := r.db.GetContext(ctx, &cat, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find notification category: %w", err)
	}
	return &cat, nil
}

// CreateCategory inserts a new category.
func (r *NotificationRepository) CreateCategory(ctx context.Context, cat *models.NotificationCategory) error {
	if cat.ID == "" {
		cat.ID = uuid.NewString()
	}
	if cat.CreatedAt.IsZero() {
		cat.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notification_categories (id, name, color, icon, active, created_at) VALUES (:id, :name, :color, :icon, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, cat); err != nil {
		return fmt.Errorf("create notification category: %w", err)
	}
	return nil
}

// UpdateCategory modifies a category.
func (r *NotificationRepository) UpdateCategory(ctx context.Context, cat *models.NotificationCategory) error {
	const query = `UPDATE notification_categories SET name = :name, color = :color, icon = :icon, active = :active WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, cat); err != nil {
		return fmt.Errorf("update notification category: %w", err)
	}
	return nil
}

// --- notifications ---

// FindByID returns a notification by identifier.
func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE id = $1 LIMIT 1`, notificationColumns)
	var n models.Notification
	if err := r.db.GetContext(ctx, &n, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find notification by id: %w", err)
	}
	return &n, nil
}

// List returns notifications matching the filter with total count.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	baseQuery := `FROM notifications WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.CategoryID != "" {
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", len(args)+1))
		args = append(args, filter.CategoryID)
	}
	if filter.State != nil {
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)+1))
		args = append(args, *filter.State)
	}
	if filter.Urgent != nil {
		conditions = append(conditions, fmt.Sprintf("urgent = $%d", len(args)+1))
		args = append(args, *filter.Urgent)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"created_at": true, "scheduled_at": true, "sent_at": true, "title": true}
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", notificationColumns, baseQuery, sortBy, sortOrder, pageSize, offset)
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return notifications, total, nil
}

// Create inserts a new notification.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	const query = `INSERT INTO notifications (id, title, body, category_id, target, target_buildings, target_units, target_user_ids, channel_push, channel_email, channel_sms, urgent, state, scheduled_at, sent_at, recipient_count, sent_count, read_count, confirmed_count, error_count, created_by, created_at, updated_at)
VALUES (:id, :title, :body, :category_id, :target, :target_buildings, :target_units, :target_user_ids, :channel_push, :channel_email, :channel_sms, :urgent, :state, :scheduled_at, :sent_at, :recipient_count, :sent_count, :read_count, :confirmed_count, :error_count, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// UpdateState transitions the notification lifecycle.
func (r *NotificationRepository) UpdateState(ctx context.Context, id string, state models.NotificationState) error {
	now := time.Now().UTC()
	var sentAt *time.Time
	if state == models.NotificationSent {
		sentAt = &now
	}
	const query = `UPDATE notifications SET state = $2, sent_at = COALESCE($3, sent_at), updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, state, sentAt, now); err != nil {
		return fmt.Errorf("update notification state: %w", err)
	}
	return nil
}

// UpdateCounters refreshes the aggregate delivery counters after a dispatch pass.
func (r *NotificationRepository) UpdateCounters(ctx context.Context, id string) error {
	const query = `UPDATE notifications SET
recipient_count = (SELECT COUNT(*) FROM notification_recipients WHERE notification_id = $1),
sent_count = (SELECT COUNT(*) FROM notification_recipients WHERE notification_id = $1 AND state IN ('sent','delivered','read','confirmed')),
read_count = (SELECT COUNT(*) FROM notification_recipients WHERE notification_id = $1 AND state IN ('read','confirmed')),
confirmed_count = (SELECT COUNT(*) FROM notification_recipients WHERE notification_id = $1 AND state = 'confirmed'),
error_count = (SELECT COUNT(*) FROM notification_recipients WHERE notification_id = $1 AND state = 'error'),
updated_at = $2
WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("update notification counters: %w", err)
	}
	return nil
}

// ListScheduledDue returns scheduled notifications whose send time has passed.
func (r *NotificationRepository) ListScheduledDue(ctx context.Context, now time.Time) ([]models.Notification, error) {
	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE state = $1 AND scheduled_at IS NOT NULL AND scheduled_at <= $2 ORDER BY scheduled_at`, notificationColumns)
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, models.NotificationScheduled, now); err != nil {
		return nil, fmt.Errorf("list due scheduled notifications: %w", err)
	}
	return notifications, nil
}

// --- recipients ---

// CreateRecipients bulk-inserts the resolved recipient set, ignoring
// duplicates on (notification_id, user_id).
func (r *NotificationRepository) CreateRecipients(ctx context.Context, notificationID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	const query = `INSERT INTO notification_recipients (id, notification_id, user_id, state, created_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (notification_id, user_id) DO NOTHING`
	for _, userID := range userIDs {
		if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), notificationID, userID, models.RecipientNotSent, now); err != nil {
			return fmt.Errorf("create notification recipient: %w", err)
		}
	}
	return nil
}

// ListRecipients returns all recipient rows for a notification.
func (r *NotificationRepository) ListRecipients(ctx context.Context, notificationID string) ([]models.NotificationRecipient, error) {
	const query = `SELECT id, notification_id, user_id, state, sent_at, delivered_at, read_at, confirmed_at, error_message, created_at FROM notification_recipients WHERE notification_id = $1 ORDER BY created_at`
	var recipients []models.NotificationRecipient
	if err := r.db.SelectContext(ctx, &recipients, query, notificationID); err != nil {
		return nil, fmt.Errorf("list notification recipients: %w", err)
	}
	return recipients, nil
}

// FindRecipient returns the recipient row for one user on one notification.
func (r *NotificationRepository) FindRecipient(ctx context.Context, notificationID, userID string) (*models.NotificationRecipient, error) {
	const query = `SELECT id, notification_id, user_id, state, sent_at, delivered_at, read_at, confirmed_at, error_message, created_at FROM notification_recipients WHERE notification_id = $1 AND user_id = $2 LIMIT 1`
	var rec models.NotificationRecipient
	if err := r.db.GetContext(ctx, &rec, query, notificationID, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find notification recipient: %w", err)
	}
	return &rec, nil
}

// MarkRecipientSent records a successful channel send.
func (r *NotificationRepository) MarkRecipientSent(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE notification_recipients SET state = $2, sent_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.RecipientSent, at); err != nil {
		return fmt.Errorf("mark recipient sent: %w", err)
	}
	return nil
}

// MarkRecipientError records a failed channel send.
func (r *NotificationRepository) MarkRecipientError(ctx context.Context, id, message string) error {
	const query = `UPDATE notification_recipients SET state = $2, error_message = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.RecipientError, message); err != nil {
		return fmt.Errorf("mark recipient error: %w", err)
	}
	return nil
}

// MarkRecipientRead transitions the recipient to read.
func (r *NotificationRepository) MarkRecipientRead(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE notification_recipients SET state = $2, read_at = $3 WHERE id = $1 AND state NOT IN ('confirmed')`
	if _, err := r.db.ExecContext(ctx, query, id, models.RecipientRead, at); err != nil {
		return fmt.Errorf("mark recipient read: %w", err)
	}
	return nil
}

// MarkRecipientConfirmed transitions the recipient to confirmed.
func (r *NotificationRepository) MarkRecipientConfirmed(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE notification_recipients SET state = $2, confirmed_at = $3, read_at = COALESCE(read_at, $3) WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.RecipientConfirmed, at); err != nil {
		return fmt.Errorf("mark recipient confirmed: %w", err)
	}
	return nil
}

// ListInboxByUser returns notifications addressed to a user, newest first.
func (r *NotificationRepository) ListInboxByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE id IN (SELECT notification_id FROM notification_recipients WHERE user_id = $1) AND state = $2 ORDER BY sent_at DESC NULLS LAST LIMIT %d`, notificationColumns, limit)
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, userID, models.NotificationSent); err != nil {
		return nil, fmt.Errorf("list user inbox: %w", err)
	}
	return notifications, nil
}

// Stats aggregates delivery metrics across all notifications.
func (r *NotificationRepository) Stats(ctx context.Context) (*models.NotificationStats, error) {
	const query = `SELECT
(SELECT COUNT(*) FROM notifications) AS total,
(SELECT COUNT(*) FROM notifications WHERE state = 'sent') AS sent,
(SELECT COUNT(*) FROM notification_recipients WHERE state IN ('read','confirmed')) AS read,
(SELECT COUNT(*) FROM notification_recipients WHERE state = 'confirmed') AS confirmed,
(SELECT COUNT(*) FROM notification_recipients WHERE state = 'error') AS errored,
(SELECT COUNT(*) FROM notification_recipients) AS recipients`
	var stats models.NotificationStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("notification stats: %w", err)
	}
	return &stats, nil
}

// --- recipient resolution ---

// ActiveUserIDsByRoles returns the ids of active users holding any of the
// given roles.
func (r *NotificationRepository) ActiveUserIDsByRoles(ctx context.Context, roles []models.UserRole) ([]string, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	const query = `SELECT id FROM users WHERE active = TRUE AND role = ANY($1)`
	values := make([]string, len(roles))
	for i, role := range roles {
		values[i] = string(role)
	}
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, pq.Array(values)); err != nil {
		return nil, fmt.Errorf("resolve users by roles: %w", err)
	}
	return ids, nil
}

// OwnerUserIDs returns the active users that own at least one unit.
func (r *NotificationRepository) OwnerUserIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT u.id FROM users u JOIN housing_units h ON h.owner_id = u.id WHERE u.active = TRUE`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("resolve owner users: %w", err)
	}
	return ids, nil
}

// TenantUserIDs returns the active users that rent at least one unit.
func (r *NotificationRepository) TenantUserIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT u.id FROM users u JOIN housing_units h ON h.tenant_id = u.id WHERE u.active = TRUE`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("resolve tenant users: %w", err)
	}
	return ids, nil
}

// UserIDsByBuildings returns the active occupants (owners and tenants) of
// units in the given buildings.
func (r *NotificationRepository) UserIDsByBuildings(ctx context.Context, buildings []string) ([]string, error) {
	if len(buildings) == 0 {
		return nil, nil
	}
	const query = `SELECT DISTINCT u.id FROM users u JOIN housing_units h ON (h.owner_id = u.id OR h.tenant_id = u.id) WHERE u.active = TRUE AND h.building = ANY($1)`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, pq.Array(buildings)); err != nil {
		return nil, fmt.Errorf("resolve users by buildings: %w", err)
	}
	return ids, nil
}

// UserIDsByUnits returns the active occupants of the given units.
func (r *NotificationRepository) UserIDsByUnits(ctx context.Context, unitIDs []string) ([]string, error) {
	if len(unitIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT DISTINCT u.id FROM users u JOIN housing_units h ON (h.owner_id = u.id OR h.tenant_id = u.id) WHERE u.active = TRUE AND h.id = ANY($1)`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, pq.Array(unitIDs)); err != nil {
		return nil, fmt.Errorf("resolve users by units: %w", err)
	}
	return ids, nil
}

// ActiveUserIDsByIDs filters the given ids down to active users.
func (r *NotificationRepository) ActiveUserIDsByIDs(ctx context.Context, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT id FROM users WHERE active = TRUE AND id = ANY($1)`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, pq.Array(userIDs)); err != nil {
		return nil, fmt.Errorf("resolve users by ids: %w", err)
	}
	return ids, nil
}

// --- preferences ---

// FindPreferences returns the stored preferences for a user, or
// sql.ErrNoRows when the user never saved any.
func (r *NotificationRepository) FindPreferences(ctx context.Context, userID string) (*models.NotificationPreferences, error) {
	const query = `SELECT id, user_id, push_enabled, email_enabled, sms_enabled, allowed_from, allowed_until, weekend_quiet, muted_category_ids, updated_at FROM notification_preferences WHERE user_id = $1 LIMIT 1`
	var prefs models.NotificationPreferences
	if err := r.db.GetContext(ctx, &prefs, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find notification preferences: %w", err)
	}
	return &prefs, nil
}

// UpsertPreferences creates or replaces the preferences for a user.
func (r *NotificationRepository) UpsertPreferences(ctx context.Context, prefs *models.NotificationPreferences) error {
	if prefs.ID == "" {
		prefs.ID = uuid.NewString()
	}
	prefs.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO notification_preferences (id, user_id, push_enabled, email_enabled, sms_enabled, allowed_from, allowed_until, weekend_quiet, muted_category_ids, updated_at)
VALUES (:id, :user_id, :push_enabled, :email_enabled, :sms_enabled, :allowed_from, :allowed_until, :weekend_quiet, :muted_category_ids, :updated_at)
ON CONFLICT (user_id) DO UPDATE SET push_enabled = EXCLUDED.push_enabled, email_enabled = EXCLUDED.email_enabled, sms_enabled = EXCLUDED.sms_enabled, allowed_from = EXCLUDED.allowed_from, allowed_until = EXCLUDED.allowed_until, weekend_quiet = EXCLUDED.weekend_quiet, muted_category_ids = EXCLUDED.muted_category_ids, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, prefs); err != nil {
		return fmt.Errorf("upsert notification preferences: %w", err)
	}
	return nil
}
