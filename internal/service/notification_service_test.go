package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/models"
	appErrors "github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/errors"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/jobs"
)

type mockNotificationRepo struct {
	categories    map[string]*models.NotificationCategory
	notifications map[string]*models.Notification
	recipients    map[string]*models.NotificationRecipient
	preferences   map[string]*models.NotificationPreferences

	failCreateRecipients bool

	usersByRole     map[models.UserRole][]string
	usersByBuilding map[string][]string
	usersByUnit     map[string][]string
	owners          []string
	tenants         []string
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{
		categories:      make(map[string]*models.NotificationCategory),
		notifications:   make(map[string]*models.Notification),
		recipients:      make(map[string]*models.NotificationRecipient),
		preferences:     make(map[string]*models.NotificationPreferences),
		usersByRole:     make(map[models.UserRole][]string),
		usersByBuilding: make(map[string][]string),
		usersByUnit:     make(map[string][]string),
	}
}

func (m *mockNotificationRepo) ListCategories(_ context.Context, activeOnly bool) ([]models.NotificationCategory, error) {
	out := make([]models.NotificationCategory, 0, len(m.categories))
	for _, cat := range m.categories {
		if activeOnly && !cat.Active {
			continue
		}
		out = append(out, *cat)
	}
	return out, nil
}

func (m *mockNotificationRepo) FindCategoryByID(_ context.Context, id string) (*models.NotificationCategory, error) {
	cat, ok := m.categories[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cat, nil
}

func (m *mockNotificationRepo) CreateCategory(_ context.Context, cat *models.NotificationCategory) error {
	if cat.ID == "" {
		cat.ID = uuid.NewString()
	}
	m.categories[cat.ID] = cat
	return nil
}

func (m *mockNotificationRepo) UpdateCategory(_ context.Context, cat *models.NotificationCategory) error {
	m.categories[cat.ID] = cat
	return nil
}

func (m *mockNotificationRepo) FindByID(_ context.Context, id string) (*models.Notification, error) {
	n, ok := m.notifications[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *n
	return &copied, nil
}

func (m *mockNotificationRepo) List(_ context.Context, _ models.NotificationFilter) ([]models.Notification, int, error) {
	out := make([]models.Notification, 0, len(m.notifications))
	for _, n := range m.notifications {
		out = append(out, *n)
	}
	return out, len(out), nil
}

func (m *mockNotificationRepo) Create(_ context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	copied := *n
	m.notifications[n.ID] = &copied
	return nil
}

func (m *mockNotificationRepo) UpdateState(_ context.Context, id string, state models.NotificationState) error {
	n, ok := m.notifications[id]
	if !ok {
		return sql.ErrNoRows
	}
	n.State = state
	return nil
}

func (m *mockNotificationRepo) UpdateCounters(_ context.Context, id string) error {
	n, ok := m.notifications[id]
	if !ok {
		return sql.ErrNoRows
	}
	n.SentCount, n.ReadCount, n.ErrorCount = 0, 0, 0
	for _, r := range m.recipients {
		if r.NotificationID != id {
			continue
		}
		switch r.State {
		case models.RecipientSent, models.RecipientDelivered:
			n.SentCount++
		case models.RecipientRead, models.RecipientConfirmed:
			n.SentCount++
			n.ReadCount++
		case models.RecipientError:
			n.ErrorCount++
		}
	}
	return nil
}

func (m *mockNotificationRepo) ListScheduledDue(_ context.Context, now time.Time) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range m.notifications {
		if n.State == models.NotificationScheduled && n.ScheduledAt != nil && !n.ScheduledAt.After(now) {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (m *mockNotificationRepo) CreateRecipients(_ context.Context, notificationID string, userIDs []string) error {
	if m.failCreateRecipients {
		return assert.AnError
	}
	for _, userID := range userIDs {
		exists := false
		for _, r := range m.recipients {
			if r.NotificationID == notificationID && r.UserID == userID {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		id := uuid.NewString()
		m.recipients[id] = &models.NotificationRecipient{
			ID:             id,
			NotificationID: notificationID,
			UserID:         userID,
			State:          models.RecipientNotSent,
		}
	}
	if n, ok := m.notifications[notificationID]; ok {
		n.RecipientCount = 0
		for _, r := range m.recipients {
			if r.NotificationID == notificationID {
				n.RecipientCount++
			}
		}
	}
	return nil
}

func (m *mockNotificationRepo) ListRecipients(_ context.Context, notificationID string) ([]models.NotificationRecipient, error) {
	var out []models.NotificationRecipient
	for _, r := range m.recipients {
		if r.NotificationID == notificationID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockNotificationRepo) FindRecipient(_ context.Context, notificationID, userID string) (*models.NotificationRecipient, error) {
	for _, r := range m.recipients {
		if r.NotificationID == notificationID && r.UserID == userID {
			return r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockNotificationRepo) MarkRecipientSent(_ context.Context, id string, at time.Time) error {
	r, ok := m.recipients[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.State = models.RecipientSent
	r.SentAt = &at
	return nil
}

func (m *mockNotificationRepo) MarkRecipientError(_ context.Context, id, message string) error {
	r, ok := m.recipients[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.State = models.RecipientError
	r.ErrorMessage = message
	return nil
}

func (m *mockNotificationRepo) MarkRecipientRead(_ context.Context, id string, at time.Time) error {
	r, ok := m.recipients[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.State = models.RecipientRead
	r.ReadAt = &at
	return nil
}

func (m *mockNotificationRepo) MarkRecipientConfirmed(_ context.Context, id string, at time.Time) error {
	r, ok := m.recipients[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.State = models.RecipientConfirmed
	r.ConfirmedAt = &at
	if r.ReadAt == nil {
		r.ReadAt = &at
	}
	return nil
}

func (m *mockNotificationRepo) ListInboxByUser(_ context.Context, userID string, _ int) ([]models.Notification, error) {
	var out []models.Notification
	for _, r := range m.recipients {
		if r.UserID != userID {
			continue
		}
		if n, ok := m.notifications[r.NotificationID]; ok && n.State == models.NotificationSent {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (m *mockNotificationRepo) Stats(_ context.Context) (*models.NotificationStats, error) {
	return &models.NotificationStats{Total: len(m.notifications)}, nil
}

func (m *mockNotificationRepo) ActiveUserIDsByRoles(_ context.Context, roles []models.UserRole) ([]string, error) {
	var out []string
	for _, role := range roles {
		out = append(out, m.usersByRole[role]...)
	}
	return out, nil
}

func (m *mockNotificationRepo) OwnerUserIDs(_ context.Context) ([]string, error) {
	return m.owners, nil
}

func (m *mockNotificationRepo) TenantUserIDs(_ context.Context) ([]string, error) {
	return m.tenants, nil
}

func (m *mockNotificationRepo) UserIDsByBuildings(_ context.Context, buildings []string) ([]string, error) {
	var out []string
	for _, building := range buildings {
		out = append(out, m.usersByBuilding[building]...)
	}
	return out, nil
}

func (m *mockNotificationRepo) UserIDsByUnits(_ context.Context, unitIDs []string) ([]string, error) {
	var out []string
	for _, unitID := range unitIDs {
		out = append(out, m.usersByUnit[unitID]...)
	}
	return out, nil
}

func (m *mockNotificationRepo) ActiveUserIDsByIDs(_ context.Context, userIDs []string) ([]string, error) {
	return userIDs, nil
}

func (m *mockNotificationRepo) FindPreferences(_ context.Context, userID string) (*models.NotificationPreferences, error) {
	prefs, ok := m.preferences[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return prefs, nil
}

func (m *mockNotificationRepo) UpsertPreferences(_ context.Context, prefs *models.NotificationPreferences) error {
	m.preferences[prefs.UserID] = prefs
	return nil
}

type mockUserLookup struct {
	users map[string]*models.User
}

func (m *mockUserLookup) FindByIDs(_ context.Context, ids []string) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

type mockScheduler struct {
	jobs []jobs.Job
	at   []time.Time
}

func (m *mockScheduler) EnqueueAt(job jobs.Job, at time.Time) error {
	m.jobs = append(m.jobs, job)
	m.at = append(m.at, at)
	return nil
}

type recordingSender struct {
	name string
	sent []string
	fail bool
}

func (r *recordingSender) Name() string { return r.name }

func (r *recordingSender) Send(_ context.Context, user *models.User, _ *models.Notification) error {
	if r.fail {
		return assert.AnError
	}
	r.sent = append(r.sent, user.ID)
	return nil
}

type notificationFixture struct {
	svc       *NotificationService
	repo      *mockNotificationRepo
	users     *mockUserLookup
	scheduler *mockScheduler
	push      *recordingSender
	email     *recordingSender
	sms       *recordingSender
}

func newNotificationFixture(now time.Time) *notificationFixture {
	repo := newMockNotificationRepo()
	users := &mockUserLookup{users: make(map[string]*models.User)}
	scheduler := &mockScheduler{}
	push := &recordingSender{name: "push"}
	email := &recordingSender{name: "email"}
	sms := &recordingSender{name: "sms"}

	svc := NewNotificationService(repo, users, scheduler, []ChannelSender{push, email, sms}, nil, nil, nil)
	svc.now = func() time.Time { return now }

	repo.categories["cat-general"] = &models.NotificationCategory{ID: "cat-general", Name: "General", Active: true}
	repo.categories["cat-events"] = &models.NotificationCategory{ID: "cat-events", Name: "Events", Active: true}

	return &notificationFixture{svc: svc, repo: repo, users: users, scheduler: scheduler, push: push, email: email, sms: sms}
}

func (f *notificationFixture) addUser(id string, role models.UserRole) {
	f.users.users[id] = &models.User{
		ID:        id,
		Email:     id + "@condo.test",
		PushToken: "token-" + id,
		Phone:     "+591700" + id,
		Role:      role,
		Active:    true,
	}
	f.repo.usersByRole[role] = append(f.repo.usersByRole[role], id)
}

// Tuesday 10:00, inside the default allowed window.
var dispatchNow = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

func TestCreateDispatchesImmediately(t *testing.T) {
	f := newNotificationFixture(dispatchNow)
	f.addUser("user-1", models.RoleResident)
	f.addUser("user-2", models.RoleResident)

	n, result, err := f.svc.Create(context.Background(), "admin-1", CreateNotificationRequest{
		Title:       "Water outage",
		Body:        "Tower A will have no water from 14:00 to 16:00.",
		CategoryID:  "cat-general",
		Target:      models.TargetResidents,
		ChannelPush: true,
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, models.NotificationSent, f.repo.notifications[n.ID].State)
	assert.Equal(t, 2, result.Recipients)
	assert.Equal(t, 2, result.Sent)
	assert.Zero(t, result.Skipped)
	assert.Zero(t, result.Errors)
	assert.Len(t, f.push.sent, 2)
}

func TestDispatchByBuildingDeduplicatesRecipients(t *testing.T) {
	f := newNotificationFixture(dispatchNow)
	f.addUser("user-1", models.RoleResident)
	f.addUser("user-2", models.RoleResident)
	// user-1 owns two units in tower A, so the join yields the id twice.
	f.repo.usersByBuilding["A"] = []string{"user-1", "user-1", "user-2"}

	_, result, err := f.svc.Create(context.Background(), "admin-1", CreateNotificationRequest{
		Title:           "Elevator maintenance",
		Body:            "The elevator in tower A is down for service.",
		CategoryID:      "cat-general",
		Target:          models.TargetByBuilding,
		TargetBuildings: []string{"A"},
		ChannelPush:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Recipients)
	assert.Equal(t, 2, result.Sent)
	assert.Len(t, f.push.sent, 2)
}

func TestQuietHoursSkipNonUrgent(t *testing.T) {
	// 23:30 is outside the default 07:00-22:00 window.
	f := newNotificationFixture(time.Date(2026, 9, 1, 23, 30, 0, 0, time.UTC))
	f.addUser("user-1", models.RoleResident)

	_, result, err := f.svc.Create(context.Background(), "admin-1", CreateNotificationRequest{
		Title:       "Gym schedule change",
		Body:        "New hours starting next week.",
		CategoryID:  "cat-general",
		Target:      models.TargetResidents,
		ChannelPush: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Sent)
	assert.Empty(t, f.push.sent)
}

func TestUrgentBypassesQuietHours(t *testing.T) {
	f := newNotificationFixture(time.Date(2026, 9, 1, 23, 30, 0, 0, time.UTC))
	f.addUser("user-1", models.RoleResident)

	_, result, err := f.svc.Create(context.Background(), "admin-1", CreateNotificationRequest{
		Title:       "Gas leak",
		Body:        "Evacuate tower B immediately.",
		CategoryID:  "cat-general",
		Target:      models.TargetResidents,
		ChannelPush: true,
		Urgent:      true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Sent)
	assert.Zero(t, result.Skipped)
}

func TestUrgentDoesNotBypassMutedCategory(t *testing.T) {
	f := newNotificationFixture(dispatchNow)
	f.addUser("user-1", models.RoleResident)
	f.repo.preferences["user-1"] = &models.NotificationPreferences{
		UserID:           "user-1",
		PushEnabled:      true,
		EmailEnabled:     true,
		AllowedFrom:      "07:00",
		AllowedUntil:     "22:00",
		MutedCategoryIDs: []string{"cat-events"},
	}

	_, result, err := f.svc.Create(context.Background(), "admin-1", CreateNotificationRequest{
		Title:       "Pool party tonight",
		Body:        "Join us at the pool at 20:00.",
		CategoryID:  "cat-events",
		Target:      models.TargetResidents,
		ChannelPush: true,
		Urgent:      true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Sent)
}

func TestWeekendQuietSkips(t *testing.T) {
	// 2026-09-05 is a Saturday, 10:00 inside the allowed window.
	f := newNotificationFixture(time.Date(2026, 9, 5, 10, 0, 0, 0, time.UTC))
	f.addUser("user-1", models.RoleResident)
	f.repo.preferences["user-1"] = &models.NotificationPreferences{
		UserID:       "user-1",
		PushEnabled:  true,
		AllowedFrom:  "07:00",
		AllowedUntil: "22:00",
		WeekendQuiet: true,
	}

	_, result, err := f.svc.Create(context.Background(), "admin-1", CreateNotificationRequest{
		Title:       "Parking reminder",
		Body:        "Visitor parking rules apply this weekend.",
		CategoryID:  "cat-general",
		Target:      models.TargetResidents,
		ChannelPush: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Sent)
}

func TestChannelSelectionHonorsPreferences(t *testing.T) {
	f := newNotificationFixture(dispatchNow)
	f.addUser("user-1", models.RoleResident)
	f.repo.preferences["user-1"] = &models.NotificationPreferences{
		UserID:       "user-1",
		PushEnabled:  false,
		EmailEnabled: true,
		SMSEnabled:   false,
		AllowedFrom:  "07:00",
		AllowedUntil: "22:00",
	}

	_, result, err := f.svc.Create(context.Background(), "admin-1", CreateNotificationRequest{
		Title:        "Assembly minutes",
		Body:         "The minutes from the last assembly are attached.",
		CategoryID:   "cat-general",
		Target:       models.TargetResidents,
		ChannelPush:  true,
		ChannelEmail: true,
		ChannelSMS:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Sent)
	assert.Empty(t, f.push.sent)
	assert.Len(t, f.email.sent, 1)
	assert.Empty(t, f.sms.sent)
}

func TestAllChannelsFailedMarksRecipientError(t *testing.T) {
	f := newNotificationFixture(dispatchNow)
	f.addUser("user-1", models.RoleResident)
	f.push.fail = true

	n, result, err := f.svc.Create(context.Background(), "admin-1", CreateNotificationRequest{
		Title:       "Package at the gate",
		Body:        "A package arrived for unit A-101.",
		CategoryID:  "cat-general",
		Target:      models.TargetResidents,
		ChannelPush: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Errors)
	assert.Zero(t, result.Sent)
	recipient, findErr := f.repo.FindRecipient(context.Background(), n.ID, "user-1")
	require.NoError(t, findErr)
	assert.Equal(t, models.RecipientError, recipient.State)
}

func TestDispatchFailureCancelsNotification(t *testing.T) {
	f := newNotificationFixture(dispatchNow)
	f.addUser("user-1", models.RoleResident)
	f.repo.failCreateRecipients = true

	n, result, err := f.svc.Create(context.Background(), "admin-1", CreateNotificationRequest{
		Title:       "Lobby painting",
		Body:        "The lobby is closed for painting on Friday.",
		CategoryID:  "cat-general",
		Target:      models.TargetResidents,
		ChannelPush: true,
	})
	require.Error(t, err)
	require.Nil(t, result)
	require.NotNil(t, n)

	// The notification must not stay stuck in sending.
	assert.Equal(t, models.NotificationCancelled, f.repo.notifications[n.ID].State)
	assert.Empty(t, f.push.sent)
}

func TestScheduledNotificationIsQueued(t *testing.T) {
	f := newNotificationFixture(dispatchNow)
	f.addUser("user-1", models.RoleResident)

	sendAt := dispatchNow.Add(3 * time.Hour)
	n, result, err := f.svc.Create(context.Background(), "admin-1", CreateNotificationRequest{
		Title:       "Assembly tomorrow",
		Body:        "General assembly at 19:00 in the common hall.",
		CategoryID:  "cat-general",
		Target:      models.TargetResidents,
		ChannelPush: true,
		ScheduledAt: &sendAt,
	})
	require.NoError(t, err)
	require.Nil(t, result)

	assert.Equal(t, models.NotificationScheduled, f.repo.notifications[n.ID].State)
	require.Len(t, f.scheduler.jobs, 1)
	assert.Equal(t, "notification.dispatch", f.scheduler.jobs[0].Type)
	assert.Equal(t, n.ID, f.scheduler.jobs[0].Payload)
	assert.Equal(t, sendAt, f.scheduler.at[0])
	assert.Empty(t, f.push.sent)
}

func TestDispatchDueSendsScheduled(t *testing.T) {
	f := newNotificationFixture(dispatchNow)
	f.addUser("user-1", models.RoleResident)

	past := dispatchNow.Add(-time.Minute)
	n := &models.Notification{
		Title:       "Scheduled reminder",
		Body:        "Monthly fees are due on the 10th.",
		CategoryID:  "cat-general",
		Target:      models.TargetResidents,
		ChannelPush: true,
		State:       models.NotificationScheduled,
		ScheduledAt: &past,
		CreatedBy:   "admin-1",
	}
	require.NoError(t, f.repo.Create(context.Background(), n))

	require.NoError(t, f.svc.DispatchDue(context.Background()))
	assert.Equal(t, models.NotificationSent, f.repo.notifications[n.ID].State)
	assert.Len(t, f.push.sent, 1)
}

func TestCancelScheduled(t *testing.T) {
	f := newNotificationFixture(dispatchNow)
	f.addUser("user-1", models.RoleResident)

	sendAt := dispatchNow.Add(time.Hour)
	n, _, err := f.svc.Create(context.Background(), "admin-1", CreateNotificationRequest{
		Title:       "Cancelled event",
		Body:        "This one never goes out.",
		CategoryID:  "cat-general",
		Target:      models.TargetResidents,
		ChannelPush: true,
		ScheduledAt: &sendAt,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.CancelScheduled(context.Background(), n.ID))
	assert.Equal(t, models.NotificationCancelled, f.repo.notifications[n.ID].State)

	_, err = f.svc.Dispatch(context.Background(), n.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestMarkReadAndConfirm(t *testing.T) {
	f := newNotificationFixture(dispatchNow)
	f.addUser("user-1", models.RoleResident)

	n, _, err := f.svc.Create(context.Background(), "admin-1", CreateNotificationRequest{
		Title:       "Read me",
		Body:        "Please confirm reception.",
		CategoryID:  "cat-general",
		Target:      models.TargetResidents,
		ChannelPush: true,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.MarkRead(context.Background(), n.ID, "user-1"))
	recipient, err := f.repo.FindRecipient(context.Background(), n.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.RecipientRead, recipient.State)

	require.NoError(t, f.svc.Confirm(context.Background(), n.ID, "user-1"))
	recipient, err = f.repo.FindRecipient(context.Background(), n.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.RecipientConfirmed, recipient.State)

	err = f.svc.MarkRead(context.Background(), n.ID, "stranger")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUpdatePreferencesValidatesTimes(t *testing.T) {
	f := newNotificationFixture(dispatchNow)

	bad := "25:99"
	_, err := f.svc.UpdatePreferences(context.Background(), "user-1", UpdatePreferencesRequest{AllowedFrom: &bad})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	from, until := "08:00", "21:00"
	sms := true
	prefs, err := f.svc.UpdatePreferences(context.Background(), "user-1", UpdatePreferencesRequest{
		AllowedFrom:  &from,
		AllowedUntil: &until,
		SMSEnabled:   &sms,
	})
	require.NoError(t, err)
	assert.Equal(t, "08:00", prefs.AllowedFrom)
	assert.Equal(t, "21:00", prefs.AllowedUntil)
	assert.True(t, prefs.SMSEnabled)

	stored, err := f.svc.Preferences(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "08:00", stored.AllowedFrom)
}
