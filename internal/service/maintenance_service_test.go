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
)

type mockMaintenanceRepo struct {
	types    map[string]*models.MaintenanceType
	requests map[string]*models.MaintenanceRequest
	reports  map[string]*models.WorkReport
}

func newMockMaintenanceRepo() *mockMaintenanceRepo {
	return &mockMaintenanceRepo{
		types:    make(map[string]*models.MaintenanceType),
		requests: make(map[string]*models.MaintenanceRequest),
		reports:  make(map[string]*models.WorkReport),
	}
}

func (m *mockMaintenanceRepo) ListTypes(_ context.Context, activeOnly bool) ([]models.MaintenanceType, error) {
	var out []models.MaintenanceType
	for _, t := range m.types {
		if activeOnly && !t.Active {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (m *mockMaintenanceRepo) FindTypeByID(_ context.Context, id string) (*models.MaintenanceType, error) {
	t, ok := m.types[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return t, nil
}

func (m *mockMaintenanceRepo) CreateType(_ context.Context, mt *models.MaintenanceType) error {
	if mt.ID == "" {
		mt.ID = uuid.NewString()
	}
	m.types[mt.ID] = mt
	return nil
}

func (m *mockMaintenanceRepo) FindByID(_ context.Context, id string) (*models.MaintenanceRequest, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *r
	return &copied, nil
}

func (m *mockMaintenanceRepo) List(_ context.Context, filter models.MaintenanceFilter) ([]models.MaintenanceRequest, int, error) {
	var out []models.MaintenanceRequest
	for _, r := range m.requests {
		if filter.RequesterID != "" && r.RequesterID != filter.RequesterID {
			continue
		}
		if filter.State != nil && r.State != *filter.State {
			continue
		}
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (m *mockMaintenanceRepo) Create(_ context.Context, req *models.MaintenanceRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	copied := *req
	m.requests[req.ID] = &copied
	return nil
}

func (m *mockMaintenanceRepo) Assign(_ context.Context, id, workerID string) error {
	r, ok := m.requests[id]
	if !ok {
		return sql.ErrNoRows
	}
	now := time.Now().UTC()
	r.AssignedTo = &workerID
	r.AssignedAt = &now
	r.State = models.MaintenanceAssigned
	return nil
}

func (m *mockMaintenanceRepo) UpdateState(_ context.Context, id string, state models.MaintenanceState) error {
	r, ok := m.requests[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.State = state
	return nil
}

func (m *mockMaintenanceRepo) CreateWorkReport(_ context.Context, report *models.WorkReport) error {
	r, ok := m.requests[report.RequestID]
	if !ok {
		return sql.ErrNoRows
	}
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	m.reports[report.RequestID] = report
	r.State = models.MaintenanceCompleted
	return nil
}

func (m *mockMaintenanceRepo) FindWorkReport(_ context.Context, requestID string) (*models.WorkReport, error) {
	report, ok := m.reports[requestID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return report, nil
}

type mockMaintenanceUsers struct {
	users map[string]*models.User
}

func (m *mockMaintenanceUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

type capturedNotice struct {
	userIDs []string
	title   string
	urgent  bool
}

type mockNotifier struct {
	notices []capturedNotice
}

func (m *mockNotifier) NotifyUsers(_ context.Context, _ string, userIDs []string, title, _ string, urgent bool) error {
	m.notices = append(m.notices, capturedNotice{userIDs: userIDs, title: title, urgent: urgent})
	return nil
}

type maintenanceFixture struct {
	svc      *MaintenanceService
	repo     *mockMaintenanceRepo
	users    *mockMaintenanceUsers
	notifier *mockNotifier
}

func newMaintenanceFixture() *maintenanceFixture {
	repo := newMockMaintenanceRepo()
	users := &mockMaintenanceUsers{users: make(map[string]*models.User)}
	units := &mockBillingUnits{units: make(map[string]*models.HousingUnit)}
	notifier := &mockNotifier{}

	owner := "resident-1"
	units.units["unit-1"] = &models.HousingUnit{ID: "unit-1", Code: "A-101", OwnerID: &owner, State: models.UnitOccupied}
	users.users["worker-1"] = &models.User{ID: "worker-1", Role: models.RoleMaintenance, Active: true}
	users.users["resident-1"] = &models.User{ID: "resident-1", Role: models.RoleResident, Active: true}
	repo.types["type-1"] = &models.MaintenanceType{ID: "type-1", Name: "Plumbing", Active: true}

	svc := NewMaintenanceService(repo, users, units, notifier, nil, nil)
	return &maintenanceFixture{svc: svc, repo: repo, users: users, notifier: notifier}
}

func (f *maintenanceFixture) fileRequest(t *testing.T) *models.MaintenanceRequest {
	t.Helper()
	request, err := f.svc.Create(context.Background(), "resident-1", false, CreateMaintenanceRequest{
		UnitID:      "unit-1",
		TypeID:      "type-1",
		Title:       "Leaking faucet",
		Description: "The kitchen faucet drips constantly.",
	})
	require.NoError(t, err)
	return request
}

func TestCreateRequestDefaultsToMediumPriority(t *testing.T) {
	f := newMaintenanceFixture()
	request := f.fileRequest(t)

	assert.Equal(t, models.MaintenanceReceived, request.State)
	assert.Equal(t, models.PriorityMedium, request.Priority)
}

func TestCreateRequestRejectsForeignUnit(t *testing.T) {
	f := newMaintenanceFixture()
	_, err := f.svc.Create(context.Background(), "stranger", false, CreateMaintenanceRequest{
		UnitID:      "unit-1",
		TypeID:      "type-1",
		Title:       "Broken light",
		Description: "Hallway light is out.",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAssignRequiresMaintenanceWorker(t *testing.T) {
	f := newMaintenanceFixture()
	request := f.fileRequest(t)

	_, err := f.svc.Assign(context.Background(), request.ID, "resident-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	assigned, err := f.svc.Assign(context.Background(), request.ID, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, models.MaintenanceAssigned, assigned.State)
	require.NotNil(t, assigned.AssignedTo)
	assert.Equal(t, "worker-1", *assigned.AssignedTo)

	require.Len(t, f.notifier.notices, 1)
	assert.Equal(t, []string{"worker-1"}, f.notifier.notices[0].userIDs)
}

func TestLifecycleCompletesWithWorkReport(t *testing.T) {
	f := newMaintenanceFixture()
	request := f.fileRequest(t)

	_, err := f.svc.Assign(context.Background(), request.ID, "worker-1")
	require.NoError(t, err)

	// Another worker cannot start someone else's assignment.
	f.users.users["worker-2"] = &models.User{ID: "worker-2", Role: models.RoleMaintenance, Active: true}
	_, err = f.svc.Start(context.Background(), request.ID, "worker-2", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	started, err := f.svc.Start(context.Background(), request.ID, "worker-1", false)
	require.NoError(t, err)
	assert.Equal(t, models.MaintenanceInProgress, started.State)

	report, err := f.svc.Complete(context.Background(), request.ID, "worker-1", false, CompleteMaintenanceRequest{
		Notes:         "Replaced the washer.",
		MaterialsCost: 25,
		HoursSpent:    1.5,
	})
	require.NoError(t, err)
	assert.Equal(t, "worker-1", report.CreatedBy)

	closed, err := f.svc.Get(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MaintenanceCompleted, closed.State)

	// Assignment notice plus completion notice to the requester.
	require.Len(t, f.notifier.notices, 2)
	assert.Equal(t, []string{"resident-1"}, f.notifier.notices[1].userIDs)
}

func TestCompleteRequiresInProgress(t *testing.T) {
	f := newMaintenanceFixture()
	request := f.fileRequest(t)

	_, err := f.svc.Complete(context.Background(), request.ID, "worker-1", false, CompleteMaintenanceRequest{Notes: "n/a"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestCancelRules(t *testing.T) {
	f := newMaintenanceFixture()
	request := f.fileRequest(t)

	// A stranger cannot cancel.
	err := f.svc.Cancel(context.Background(), request.ID, "stranger", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// The requester can cancel while pending.
	require.NoError(t, f.svc.Cancel(context.Background(), request.ID, "resident-1", false))

	// In-progress work needs an administrator.
	second := f.fileRequest(t)
	_, err = f.svc.Assign(context.Background(), second.ID, "worker-1")
	require.NoError(t, err)
	_, err = f.svc.Start(context.Background(), second.ID, "worker-1", false)
	require.NoError(t, err)

	err = f.svc.Cancel(context.Background(), second.ID, "resident-1", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, f.svc.Cancel(context.Background(), second.ID, "admin-1", true))
}
