package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/models"
	appErrors "github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/errors"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/jobs"
)

type notificationRepository interface {
	ListCategories(ctx context.Context, activeOnly bool) ([]models.NotificationCategory, error)
	FindCategoryByID(ctx context.Context, id string) (*models.NotificationCategory, error)
	CreateCategory(ctx context.Context, cat *models.NotificationCategory) error
	UpdateCategory(ctx context.Context, cat *models.NotificationCategory) error

	FindByID(ctx context.Context, id string) (*models.Notification, error)
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	Create(ctx context.Context, n *models.Notification) error
	UpdateState(ctx context.Context, id string, state models.NotificationState) error
	UpdateCounters(ctx context.Context, id string) error
	ListScheduledDue(ctx context.Context, now time.Time) ([]models.Notification, error)

	CreateRecipients(ctx context.Context, notificationID string, userIDs []string) error
	ListRecipients(ctx context.Context, notificationID string) ([]models.NotificationRecipient, error)
	FindRecipient(ctx context.Context, notificationID, userID string) (*models.NotificationRecipient, error)
	MarkRecipientSent(ctx context.Context, id string, at time.Time) error
	MarkRecipientError(ctx context.Context, id, message string) error
	MarkRecipientRead(ctx context.Context, id string, at time.Time) error
	MarkRecipientConfirmed(ctx context.Context, id string, at time.Time) error
	ListInboxByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	Stats(ctx context.Context) (*models.NotificationStats, error)

	ActiveUserIDsByRoles(ctx context.Context, roles []models.UserRole) ([]string, error)
	OwnerUserIDs(ctx context.Context) ([]string, error)
	TenantUserIDs(ctx context.Context) ([]string, error)
	UserIDsByBuildings(ctx context.Context, buildings []string) ([]string, error)
	UserIDsByUnits(ctx context.Context, unitIDs []string) ([]string, error)
	ActiveUserIDsByIDs(ctx context.Context, userIDs []string) ([]string, error)

	FindPreferences(ctx context.Context, userID string) (*models.NotificationPreferences, error)
	UpsertPreferences(ctx context.Context, prefs *models.NotificationPreferences) error
}

type notificationUserRepository interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

type notificationScheduler interface {
	EnqueueAt(job jobs.Job, at time.Time) error
}

type dispatchRecorder interface {
	RecordNotificationsDispatched(count int)
}

// CreateNotificationRequest is the payload for composing a notification.
type CreateNotificationRequest struct {
	Title           string                    `json:"title" validate:"required"`
	Body            string                    `json:"body" validate:"required"`
	CategoryID      string                    `json:"category_id" validate:"required"`
	Target          models.NotificationTarget `json:"target" validate:"required"`
	TargetBuildings []string                  `json:"target_buildings"`
	TargetUnits     []string                  `json:"target_units"`
	TargetUserIDs   []string                  `json:"target_user_ids"`
	ChannelPush     bool                      `json:"channel_push"`
	ChannelEmail    bool                      `json:"channel_email"`
	ChannelSMS      bool                      `json:"channel_sms"`
	Urgent          bool                      `json:"urgent"`
	ScheduledAt     *time.Time                `json:"scheduled_at"`
}

// UpdatePreferencesRequest updates the caller's delivery preferences.
type UpdatePreferencesRequest struct {
	PushEnabled      *bool    `json:"push_enabled"`
	EmailEnabled     *bool    `json:"email_enabled"`
	SMSEnabled       *bool    `json:"sms_enabled"`
	AllowedFrom      *string  `json:"allowed_from"`
	AllowedUntil     *string  `json:"allowed_until"`
	WeekendQuiet     *bool    `json:"weekend_quiet"`
	MutedCategoryIDs []string `json:"muted_category_ids"`
}

// NotificationService resolves recipients, applies per-user preferences and
// fans notifications out over the configured channels.
type NotificationService struct {
	repo      notificationRepository
	users     notificationUserRepository
	scheduler notificationScheduler
	senders   []ChannelSender
	metrics   dispatchRecorder
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewNotificationService constructs a NotificationService instance.
func NewNotificationService(repo notificationRepository, users notificationUserRepository, scheduler notificationScheduler, senders []ChannelSender, metrics dispatchRecorder, validate *validator.Validate, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &NotificationService{
		repo:      repo,
		users:     users,
		scheduler: scheduler,
		senders:   senders,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Categories returns the notification categories.
func (s *NotificationService) Categories(ctx context.Context, activeOnly bool) ([]models.NotificationCategory, error) {
	categories, err := s.repo.ListCategories(ctx, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}
	return categories, nil
}

// CreateCategory registers a notification category.
func (s *NotificationService) CreateCategory(ctx context.Context, name, color, icon string) (*models.NotificationCategory, error) {
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "category name is required")
	}
	cat := &models.NotificationCategory{Name: name, Color: color, Icon: icon, Active: true}
	if err := s.repo.CreateCategory(ctx, cat); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create category")
	}
	return cat, nil
}

// Get returns a notification by id.
func (s *NotificationService) Get(ctx context.Context, id string) (*models.Notification, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
	}
	return n, nil
}

// List returns notifications matching the filter.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	notifications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, total, nil
}

// Inbox returns the sent notifications addressed to a user.
func (s *NotificationService) Inbox(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	notifications, err := s.repo.ListInboxByUser(ctx, userID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load inbox")
	}
	return notifications, nil
}

// Stats summarises engagement across notifications.
func (s *NotificationService) Stats(ctx context.Context) (*models.NotificationStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification stats")
	}
	return stats, nil
}

// Create composes a notification and either dispatches it immediately or
// schedules it for the requested send time.
func (s *NotificationService) Create(ctx context.Context, creatorID string, req CreateNotificationRequest) (*models.Notification, *models.DispatchResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notification payload")
	}
	if !req.Target.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown target")
	}
	switch req.Target {
	case models.TargetByBuilding:
		if len(req.TargetBuildings) == 0 {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "target buildings are required")
		}
	case models.TargetByUnit:
		if len(req.TargetUnits) == 0 {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "target units are required")
		}
	case models.TargetUsers:
		if len(req.TargetUserIDs) == 0 {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "target users are required")
		}
	}
	if !req.ChannelPush && !req.ChannelEmail && !req.ChannelSMS {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "at least one channel is required")
	}
	if _, err := s.repo.FindCategoryByID(ctx, req.CategoryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "category not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
	}

	n := &models.Notification{
		Title:           req.Title,
		Body:            req.Body,
		CategoryID:      req.CategoryID,
		Target:          req.Target,
		TargetBuildings: req.TargetBuildings,
		TargetUnits:     req.TargetUnits,
		TargetUserIDs:   req.TargetUserIDs,
		ChannelPush:     req.ChannelPush,
		ChannelEmail:    req.ChannelEmail,
		ChannelSMS:      req.ChannelSMS,
		Urgent:          req.Urgent,
		State:           models.NotificationDraft,
		ScheduledAt:     req.ScheduledAt,
		CreatedBy:       creatorID,
	}

	if req.ScheduledAt != nil && req.ScheduledAt.After(s.now()) {
		n.State = models.NotificationScheduled
		if err := s.repo.Create(ctx, n); err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notification")
		}
		if s.scheduler != nil {
			job := jobs.Job{ID: uuid.NewString(), Type: "notification.dispatch", Payload: n.ID}
			if err := s.scheduler.EnqueueAt(job, *req.ScheduledAt); err != nil {
				s.logger.Warn("failed to schedule notification dispatch", zap.Error(err))
			}
		}
		return n, nil, nil
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notification")
	}
	result, err := s.Dispatch(ctx, n.ID)
	if err != nil {
		return n, nil, err
	}
	return n, result, nil
}

// Dispatch resolves recipients and fans the notification out over its
// channels, applying per-user preferences.
func (s *NotificationService) Dispatch(ctx context.Context, notificationID string) (*models.DispatchResult, error) {
	n, err := s.Get(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.State == models.NotificationSent || n.State == models.NotificationCancelled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "notification has already been dispatched or cancelled")
	}

	userIDs, err := s.resolveRecipients(ctx, n)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateState(ctx, n.ID, models.NotificationSending); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notification state")
	}
	if err := s.repo.CreateRecipients(ctx, n.ID, userIDs); err != nil {
		s.abortDispatch(ctx, n.ID)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create recipients")
	}

	users, err := s.users.FindByIDs(ctx, userIDs)
	if err != nil {
		s.abortDispatch(ctx, n.ID)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recipients")
	}
	usersByID := make(map[string]*models.User, len(users))
	for i := range users {
		usersByID[users[i].ID] = &users[i]
	}

	recipients, err := s.repo.ListRecipients(ctx, n.ID)
	if err != nil {
		s.abortDispatch(ctx, n.ID)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recipients")
	}

	result := &models.DispatchResult{NotificationID: n.ID, Recipients: len(recipients)}
	now := s.now()
	for _, recipient := range recipients {
		if recipient.State != models.RecipientNotSent {
			continue
		}
		user, ok := usersByID[recipient.UserID]
		if !ok {
			result.Errors++
			if err := s.repo.MarkRecipientError(ctx, recipient.ID, "user no longer exists"); err != nil {
				s.logger.Warn("failed to mark recipient error", zap.Error(err))
			}
			continue
		}

		prefs := s.preferencesFor(ctx, user.ID)
		if skip, reason := shouldSkip(n, prefs, now); skip {
			result.Skipped++
			s.logger.Debug("recipient skipped",
				zap.String("notification_id", n.ID),
				zap.String("user_id", user.ID),
				zap.String("reason", reason))
			continue
		}

		if s.deliver(ctx, n, user, prefs) {
			result.Sent++
			if err := s.repo.MarkRecipientSent(ctx, recipient.ID, now); err != nil {
				s.logger.Warn("failed to mark recipient sent", zap.Error(err))
			}
		} else {
			result.Errors++
			if err := s.repo.MarkRecipientError(ctx, recipient.ID, "all channels failed"); err != nil {
				s.logger.Warn("failed to mark recipient error", zap.Error(err))
			}
		}
	}

	if err := s.repo.UpdateCounters(ctx, n.ID); err != nil {
		s.logger.Warn("failed to refresh notification counters", zap.Error(err))
	}
	if err := s.repo.UpdateState(ctx, n.ID, models.NotificationSent); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalise notification")
	}

	if s.metrics != nil && result.Sent > 0 {
		s.metrics.RecordNotificationsDispatched(result.Sent)
	}
	s.logger.Info("notification dispatched",
		zap.String("notification_id", n.ID),
		zap.Int("recipients", result.Recipients),
		zap.Int("sent", result.Sent),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.Errors))
	return result, nil
}

// abortDispatch cancels a notification that failed after entering the sending
// state so it is not left stuck there.
func (s *NotificationService) abortDispatch(ctx context.Context, id string) {
	if err := s.repo.UpdateState(ctx, id, models.NotificationCancelled); err != nil {
		s.logger.Warn("failed to cancel notification after dispatch error",
			zap.String("notification_id", id),
			zap.Error(err))
	}
}

// DispatchDue sends every scheduled notification whose time has arrived.
// Called by the scheduler sweep so restarts do not lose pending sends.
func (s *NotificationService) DispatchDue(ctx context.Context) error {
	due, err := s.repo.ListScheduledDue(ctx, s.now())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list due notifications")
	}
	for _, n := range due {
		if _, err := s.Dispatch(ctx, n.ID); err != nil {
			s.logger.Error("failed to dispatch scheduled notification", zap.String("notification_id", n.ID), zap.Error(err))
		}
	}
	return nil
}

// CancelScheduled cancels a notification that has not been sent yet.
func (s *NotificationService) CancelScheduled(ctx context.Context, id string) error {
	n, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if n.State != models.NotificationScheduled && n.State != models.NotificationDraft {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "only draft or scheduled notifications can be cancelled")
	}
	if err := s.repo.UpdateState(ctx, id, models.NotificationCancelled); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel notification")
	}
	return nil
}

// MarkRead transitions the caller's recipient row to read.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, userID string) error {
	return s.markRecipient(ctx, notificationID, userID, s.repo.MarkRecipientRead)
}

// Confirm transitions the caller's recipient row to confirmed.
func (s *NotificationService) Confirm(ctx context.Context, notificationID, userID string) error {
	return s.markRecipient(ctx, notificationID, userID, s.repo.MarkRecipientConfirmed)
}

func (s *NotificationService) markRecipient(ctx context.Context, notificationID, userID string, mark func(context.Context, string, time.Time) error) error {
	recipient, err := s.repo.FindRecipient(ctx, notificationID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification was not addressed to this user")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recipient")
	}
	if err := mark(ctx, recipient.ID, s.now()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update recipient")
	}
	if err := s.repo.UpdateCounters(ctx, notificationID); err != nil {
		s.logger.Warn("failed to refresh notification counters", zap.Error(err))
	}
	return nil
}

// Preferences returns the caller's preferences, falling back to defaults.
func (s *NotificationService) Preferences(ctx context.Context, userID string) (*models.NotificationPreferences, error) {
	prefs, err := s.repo.FindPreferences(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DefaultPreferences(userID), nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load preferences")
	}
	return prefs, nil
}

// UpdatePreferences persists the caller's delivery preferences.
func (s *NotificationService) UpdatePreferences(ctx context.Context, userID string, req UpdatePreferencesRequest) (*models.NotificationPreferences, error) {
	prefs, err := s.Preferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.PushEnabled != nil {
		prefs.PushEnabled = *req.PushEnabled
	}
	if req.EmailEnabled != nil {
		prefs.EmailEnabled = *req.EmailEnabled
	}
	if req.SMSEnabled != nil {
		prefs.SMSEnabled = *req.SMSEnabled
	}
	if req.AllowedFrom != nil {
		if _, err := time.Parse("15:04", *req.AllowedFrom); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "allowed_from must use the HH:MM form")
		}
		prefs.AllowedFrom = *req.AllowedFrom
	}
	if req.AllowedUntil != nil {
		if _, err := time.Parse("15:04", *req.AllowedUntil); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "allowed_until must use the HH:MM form")
		}
		prefs.AllowedUntil = *req.AllowedUntil
	}
	if req.WeekendQuiet != nil {
		prefs.WeekendQuiet = *req.WeekendQuiet
	}
	if req.MutedCategoryIDs != nil {
		prefs.MutedCategoryIDs = req.MutedCategoryIDs
	}
	if err := s.repo.UpsertPreferences(ctx, prefs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save preferences")
	}
	return prefs, nil
}

// NotifyUsers sends a direct system notification to specific users over push
// and email. Other modules use it for lifecycle events such as maintenance
// assignments.
func (s *NotificationService) NotifyUsers(ctx context.Context, senderID string, userIDs []string, title, body string, urgent bool) error {
	categoryID, err := s.ensureSystemCategory(ctx)
	if err != nil {
		return err
	}
	_, _, err = s.Create(ctx, senderID, CreateNotificationRequest{
		Title:         title,
		Body:          body,
		CategoryID:    categoryID,
		Target:        models.TargetUsers,
		TargetUserIDs: userIDs,
		ChannelPush:   true,
		ChannelEmail:  true,
		Urgent:        urgent,
	})
	return err
}

func (s *NotificationService) ensureSystemCategory(ctx context.Context) (string, error) {
	categories, err := s.repo.ListCategories(ctx, true)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}
	for _, cat := range categories {
		if cat.Name == "System" {
			return cat.ID, nil
		}
	}
	cat := &models.NotificationCategory{Name: "System", Active: true}
	if err := s.repo.CreateCategory(ctx, cat); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create system category")
	}
	return cat.ID, nil
}

// resolveRecipients expands the broadcast target into a deduplicated,
// deterministic user-id list.
func (s *NotificationService) resolveRecipients(ctx context.Context, n *models.Notification) ([]string, error) {
	var (
		ids []string
		err error
	)
	switch n.Target {
	case models.TargetAll:
		ids, err = s.repo.ActiveUserIDsByRoles(ctx, []models.UserRole{
			models.RoleAdministrator, models.RoleResident, models.RoleSecurity, models.RoleMaintenance,
		})
	case models.TargetResidents:
		ids, err = s.repo.ActiveUserIDsByRoles(ctx, []models.UserRole{models.RoleResident})
	case models.TargetAdmins:
		ids, err = s.repo.ActiveUserIDsByRoles(ctx, []models.UserRole{models.RoleAdministrator})
	case models.TargetSecurity:
		ids, err = s.repo.ActiveUserIDsByRoles(ctx, []models.UserRole{models.RoleSecurity})
	case models.TargetMaintenance:
		ids, err = s.repo.ActiveUserIDsByRoles(ctx, []models.UserRole{models.RoleMaintenance})
	case models.TargetOwners:
		ids, err = s.repo.OwnerUserIDs(ctx)
	case models.TargetTenants:
		ids, err = s.repo.TenantUserIDs(ctx)
	case models.TargetByBuilding:
		ids, err = s.repo.UserIDsByBuildings(ctx, n.TargetBuildings)
	case models.TargetByUnit:
		ids, err = s.repo.UserIDsByUnits(ctx, n.TargetUnits)
	case models.TargetUsers:
		ids, err = s.repo.ActiveUserIDsByIDs(ctx, n.TargetUserIDs)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown target")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve recipients")
	}

	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	sort.Strings(unique)
	return unique, nil
}

func (s *NotificationService) preferencesFor(ctx context.Context, userID string) *models.NotificationPreferences {
	prefs, err := s.repo.FindPreferences(ctx, userID)
	if err != nil {
		return models.DefaultPreferences(userID)
	}
	return prefs
}

// shouldSkip applies the preference gates. A muted category always wins;
// urgent notifications bypass quiet hours but never a category opt-out.
func shouldSkip(n *models.Notification, prefs *models.NotificationPreferences, now time.Time) (bool, string) {
	for _, muted := range prefs.MutedCategoryIDs {
		if muted == n.CategoryID {
			return true, "category muted"
		}
	}
	if n.Urgent {
		return false, ""
	}
	clock := now.Format("15:04")
	if clock < prefs.AllowedFrom || clock >= prefs.AllowedUntil {
		return true, "outside allowed hours"
	}
	if prefs.WeekendQuiet && (now.Weekday() == time.Saturday || now.Weekday() == time.Sunday) {
		return true, "weekend quiet"
	}
	return false, ""
}

// deliver tries each enabled channel in order; a recipient counts as sent
// when at least one channel succeeds.
func (s *NotificationService) deliver(ctx context.Context, n *models.Notification, user *models.User, prefs *models.NotificationPreferences) bool {
	delivered := false
	for _, sender := range s.senders {
		if !channelEnabled(sender.Name(), n, prefs) {
			continue
		}
		if err := sender.Send(ctx, user, n); err != nil {
			s.logger.Warn("channel send failed",
				zap.String("channel", sender.Name()),
				zap.String("user_id", user.ID),
				zap.Error(err))
			continue
		}
		delivered = true
	}
	return delivered
}

func channelEnabled(channel string, n *models.Notification, prefs *models.NotificationPreferences) bool {
	switch channel {
	case "push":
		return n.ChannelPush && prefs.PushEnabled
	case "email":
		return n.ChannelEmail && prefs.EmailEnabled
	case "sms":
		return n.ChannelSMS && prefs.SMSEnabled
	}
	return false
}
