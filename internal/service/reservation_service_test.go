package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/models"
	appErrors "github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/errors"
)

type mockReservationRepo struct {
	reservations map[string]*models.Reservation
	lastState    models.ReservationState
	ratings      map[string]int
}

func newMockReservationRepo() *mockReservationRepo {
	return &mockReservationRepo{
		reservations: make(map[string]*models.Reservation),
		ratings:      make(map[string]int),
	}
}

func (m *mockReservationRepo) FindByID(_ context.Context, id string) (*models.Reservation, error) {
	r, ok := m.reservations[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *r
	return &copy, nil
}

func (m *mockReservationRepo) FindBlockingByAreaDate(_ context.Context, areaID string, date time.Time) ([]models.Reservation, error) {
	var out []models.Reservation
	for _, r := range m.reservations {
		if r.AreaID == areaID && r.Date.Equal(date) && !r.State.Cancelled() {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockReservationRepo) List(_ context.Context, _ models.ReservationFilter) ([]models.Reservation, int, error) {
	var out []models.Reservation
	for _, r := range m.reservations {
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (m *mockReservationRepo) CreateBooked(_ context.Context, res *models.Reservation) error {
	if res.ID == "" {
		res.ID = "res-" + res.Code
	}
	copy := *res
	m.reservations[res.ID] = &copy
	return nil
}

func (m *mockReservationRepo) UpdateState(_ context.Context, id string, state models.ReservationState, _ *string, reason string) error {
	if r, ok := m.reservations[id]; ok {
		r.State = state
		r.CancelReason = reason
	}
	m.lastState = state
	return nil
}

func (m *mockReservationRepo) SetRating(_ context.Context, id, _ string, rating int) error {
	m.ratings[id] = rating
	if r, ok := m.reservations[id]; ok {
		r.Rating = &rating
	}
	return nil
}

func (m *mockReservationRepo) MonthOccupancy(_ context.Context, _ string, _, _ time.Time) ([]models.Reservation, error) {
	return nil, nil
}

type mockAreaRepo struct {
	areas map[string]*models.Area
}

func (m *mockAreaRepo) FindByID(_ context.Context, id string) (*models.Area, error) {
	a, ok := m.areas[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *a
	return &copy, nil
}

type mockUnitCountRepo struct {
	counts       map[string]int
	defaultCount int
}

func (m *mockUnitCountRepo) CountByUserID(_ context.Context, userID string) (int, error) {
	if n, ok := m.counts[userID]; ok {
		return n, nil
	}
	return m.defaultCount, nil
}

func allWeek(open, close string) models.OperatingHours {
	hours := models.OperatingHours{}
	for _, day := range []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"} {
		hours[day] = models.DayWindow{Open: open, Close: close, Active: true}
	}
	return hours
}

func poolArea() *models.Area {
	return &models.Area{
		ID:                  "pool",
		Name:                "Pool",
		Capacity:            30,
		OperatingHours:      allWeek("08:00", "20:00"),
		MinDurationMinutes:  60,
		MaxDurationMinutes:  240,
		HourlyRate:          100,
		PermitsReservations: true,
		State:               models.AreaAvailable,
	}
}

func hallArea() *models.Area {
	weekend := 70000.0
	return &models.Area{
		ID:                    "hall",
		Name:                  "Events Hall",
		Capacity:              80,
		OperatingHours:        allWeek("08:00", "23:00"),
		MinDurationMinutes:    60,
		MaxDurationMinutes:    360,
		HourlyRate:            50000,
		WeekendRate:           &weekend,
		DepositAmount:         100000,
		RequiresAuthorization: true,
		PermitsReservations:   true,
		State:                 models.AreaAvailable,
	}
}

func newTestService(repo *mockReservationRepo, areas *mockAreaRepo, now time.Time) *ReservationService {
	return newTestServiceWithUnits(repo, areas, &mockUnitCountRepo{defaultCount: 1}, now)
}

func newTestServiceWithUnits(repo *mockReservationRepo, areas *mockAreaRepo, units *mockUnitCountRepo, now time.Time) *ReservationService {
	svc := NewReservationService(repo, areas, units, nil, nil, nil, ReservationConfig{CancellationBuffer: 2 * time.Hour})
	svc.now = func() time.Time { return now }
	return svc
}

func TestAvailabilityMarksBookedSlots(t *testing.T) {
	repo := newMockReservationRepo()
	areas := &mockAreaRepo{areas: map[string]*models.Area{"pool": poolArea()}}
	date := time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)
	repo.reservations["r1"] = &models.Reservation{
		ID:        "r1",
		Code:      "RES-20260904-AB12CD",
		AreaID:    "pool",
		Date:      date,
		StartTime: "10:00",
		EndTime:   "12:00",
		State:     models.ReservationConfirmed,
	}
	svc := newTestService(repo, areas, time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC))

	day, err := svc.Availability(context.Background(), "pool", date)
	require.NoError(t, err)
	assert.True(t, day.Open)
	require.Len(t, day.Slots, 12)

	for _, slot := range day.Slots {
		switch slot.Start {
		case "10:00", "11:00":
			assert.False(t, slot.Available, "slot %s should be taken", slot.Start)
			assert.Equal(t, "RES-20260904-AB12CD", slot.Reason)
		default:
			assert.True(t, slot.Available, "slot %s should be free", slot.Start)
			assert.Empty(t, slot.Reason)
		}
	}
}

func TestAvailabilityReportsClosedDay(t *testing.T) {
	repo := newMockReservationRepo()
	area := poolArea()
	hours := allWeek("08:00", "20:00")
	hours["tuesday"] = models.DayWindow{Active: false}
	area.OperatingHours = hours
	areas := &mockAreaRepo{areas: map[string]*models.Area{"pool": area}}
	svc := newTestService(repo, areas, time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC))

	// 2026-09-01 is a Tuesday.
	day, err := svc.Availability(context.Background(), "pool", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, day.Open)
	assert.Equal(t, "not operating this day", day.Reason)
	assert.Empty(t, day.Slots)
}

func TestAvailabilityDropsPartialTrailingSlot(t *testing.T) {
	repo := newMockReservationRepo()
	area := poolArea()
	area.OperatingHours = allWeek("08:00", "20:30")
	areas := &mockAreaRepo{areas: map[string]*models.Area{"pool": area}}
	svc := newTestService(repo, areas, time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC))

	day, err := svc.Availability(context.Background(), "pool", time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, day.Slots, 12)
	assert.Equal(t, "20:00", day.Slots[len(day.Slots)-1].End)
}

func TestCreateWeekendReservation(t *testing.T) {
	repo := newMockReservationRepo()
	areas := &mockAreaRepo{areas: map[string]*models.Area{"hall": hallArea()}}
	svc := newTestService(repo, areas, time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC))

	// 2026-09-05 is a Saturday.
	reservation, err := svc.Create(context.Background(), "u1", CreateReservationRequest{
		AreaID:     "hall",
		Date:       "2026-09-05",
		StartTime:  "18:00",
		EndTime:    "21:00",
		GuestCount: 40,
	})
	require.NoError(t, err)
	assert.Equal(t, 210000.0, reservation.BaseCost)
	assert.Equal(t, 100000.0, reservation.DepositAmount)
	assert.Equal(t, 310000.0, reservation.TotalCost)
	assert.Equal(t, models.ReservationPending, reservation.State)
	assert.Equal(t, 180, reservation.DurationMinutes)
	assert.Contains(t, reservation.Code, "RES-20260905-")
}

func TestCreateRejectsGuestCountOverCapacity(t *testing.T) {
	repo := newMockReservationRepo()
	areas := &mockAreaRepo{areas: map[string]*models.Area{"hall": hallArea()}}
	svc := newTestService(repo, areas, time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC))

	_, err := svc.Create(context.Background(), "u1", CreateReservationRequest{
		AreaID:     "hall",
		Date:       "2026-09-05",
		StartTime:  "18:00",
		EndTime:    "21:00",
		GuestCount: 90,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestCreateRejectsOverlap(t *testing.T) {
	repo := newMockReservationRepo()
	areas := &mockAreaRepo{areas: map[string]*models.Area{"pool": poolArea()}}
	date := time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)
	repo.reservations["r1"] = &models.Reservation{
		ID:        "r1",
		AreaID:    "pool",
		Date:      date,
		StartTime: "10:00",
		EndTime:   "12:00",
		State:     models.ReservationConfirmed,
	}
	svc := newTestService(repo, areas, time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC))

	_, err := svc.Create(context.Background(), "u1", CreateReservationRequest{
		AreaID:     "pool",
		Date:       "2026-09-04",
		StartTime:  "11:00",
		EndTime:    "13:00",
		GuestCount: 5,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestCreateRequiresUnitAssociation(t *testing.T) {
	repo := newMockReservationRepo()
	areas := &mockAreaRepo{areas: map[string]*models.Area{"pool": poolArea()}}
	units := &mockUnitCountRepo{counts: map[string]int{"tenant-1": 1}}
	svc := newTestServiceWithUnits(repo, areas, units, time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC))

	req := CreateReservationRequest{
		AreaID:     "pool",
		Date:       "2026-09-04",
		StartTime:  "10:00",
		EndTime:    "11:00",
		GuestCount: 5,
	}

	_, err := svc.Create(context.Background(), "outsider", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Contains(t, err.Error(), "no housing unit")
	assert.Empty(t, repo.reservations)

	_, err = svc.Create(context.Background(), "tenant-1", req)
	require.NoError(t, err)
	assert.Len(t, repo.reservations, 1)
}

func TestCreateReportsDurationBeforeWindow(t *testing.T) {
	repo := newMockReservationRepo()
	area := hallArea()
	area.MinDurationMinutes = 120
	areas := &mockAreaRepo{areas: map[string]*models.Area{"hall": area}}
	svc := newTestService(repo, areas, time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC))

	// 22:30-23:30 is both shorter than the minimum and past closing; the
	// duration check comes first.
	_, err := svc.Create(context.Background(), "u1", CreateReservationRequest{
		AreaID:     "hall",
		Date:       "2026-09-05",
		StartTime:  "22:30",
		EndTime:    "23:30",
		GuestCount: 10,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "minimum duration")
}

func TestCancelRespectsBuffer(t *testing.T) {
	repo := newMockReservationRepo()
	areas := &mockAreaRepo{areas: map[string]*models.Area{"pool": poolArea()}}
	date := time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)
	repo.reservations["r1"] = &models.Reservation{
		ID:        "r1",
		AreaID:    "pool",
		UserID:    "u1",
		Date:      date,
		StartTime: "15:00",
		EndTime:   "16:00",
		State:     models.ReservationConfirmed,
	}

	// One hour before the start: inside the buffer, rejected.
	svc := newTestService(repo, areas, time.Date(2026, 9, 4, 14, 0, 0, 0, time.UTC))
	_, err := svc.Cancel(context.Background(), "r1", "u1", false, "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)

	// Three hours before the start: allowed.
	svc = newTestService(repo, areas, time.Date(2026, 9, 4, 12, 0, 0, 0, time.UTC))
	cancelled, err := svc.Cancel(context.Background(), "r1", "u1", false, "plans changed")
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCancelledByUser, cancelled.State)
}

func TestAdminCancelIgnoresBuffer(t *testing.T) {
	repo := newMockReservationRepo()
	areas := &mockAreaRepo{areas: map[string]*models.Area{"pool": poolArea()}}
	repo.reservations["r1"] = &models.Reservation{
		ID:        "r1",
		AreaID:    "pool",
		UserID:    "u1",
		Date:      time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC),
		StartTime: "15:00",
		EndTime:   "16:00",
		State:     models.ReservationConfirmed,
	}
	svc := newTestService(repo, areas, time.Date(2026, 9, 4, 14, 30, 0, 0, time.UTC))

	cancelled, err := svc.Cancel(context.Background(), "r1", "admin", true, "maintenance")
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCancelledByAdmin, cancelled.State)
}

func TestRateOnlyOnce(t *testing.T) {
	repo := newMockReservationRepo()
	areas := &mockAreaRepo{areas: map[string]*models.Area{"pool": poolArea()}}
	repo.reservations["r1"] = &models.Reservation{
		ID:     "r1",
		AreaID: "pool",
		UserID: "u1",
		Date:   time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC),
		State:  models.ReservationCompleted,
	}
	svc := newTestService(repo, areas, time.Date(2026, 9, 5, 12, 0, 0, 0, time.UTC))

	rated, err := svc.Rate(context.Background(), "r1", "u1", 5)
	require.NoError(t, err)
	require.NotNil(t, rated.Rating)
	assert.Equal(t, 5, *rated.Rating)

	_, err = svc.Rate(context.Background(), "r1", "u1", 3)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrAlreadyRated.Code, appErr.Code)
}

func TestApproveRequiresPending(t *testing.T) {
	repo := newMockReservationRepo()
	areas := &mockAreaRepo{areas: map[string]*models.Area{"hall": hallArea()}}
	repo.reservations["r1"] = &models.Reservation{
		ID:     "r1",
		AreaID: "hall",
		UserID: "u1",
		Date:   time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC),
		State:  models.ReservationConfirmed,
	}
	svc := newTestService(repo, areas, time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC))

	_, err := svc.Approve(context.Background(), "r1", "admin")
	require.Error(t, err)

	repo.reservations["r1"].State = models.ReservationPending
	approved, err := svc.Approve(context.Background(), "r1", "admin")
	require.NoError(t, err)
	assert.Equal(t, models.ReservationConfirmed, approved.State)
}
