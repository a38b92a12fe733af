package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/models"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/repository"
	appErrors "github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/errors"
)

type reservationRepository interface {
	FindByID(ctx context.Context, id string) (*models.Reservation, error)
	FindBlockingByAreaDate(ctx context.Context, areaID string, date time.Time) ([]models.Reservation, error)
	List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, int, error)
	CreateBooked(ctx context.Context, res *models.Reservation) error
	UpdateState(ctx context.Context, id string, state models.ReservationState, approvedBy *string, cancelReason string) error
	SetRating(ctx context.Context, id, areaID string, rating int) error
	MonthOccupancy(ctx context.Context, areaID string, from, to time.Time) ([]models.Reservation, error)
}

type reservationAreaRepository interface {
	FindByID(ctx context.Context, id string) (*models.Area, error)
}

type reservationUnitRepository interface {
	CountByUserID(ctx context.Context, userID string) (int, error)
}

type reservationCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// ReservationConfig tunes booking behaviour.
type ReservationConfig struct {
	CancellationBuffer time.Duration
	AvailabilityTTL    time.Duration
}

// CreateReservationRequest is the booking payload.
type CreateReservationRequest struct {
	AreaID     string            `json:"area_id" validate:"required"`
	UnitID     *string           `json:"unit_id"`
	Date       string            `json:"date" validate:"required"`
	StartTime  string            `json:"start_time" validate:"required"`
	EndTime    string            `json:"end_time" validate:"required"`
	EventType  string            `json:"event_type"`
	GuestCount int               `json:"guest_count" validate:"gt=0"`
	AddOns     models.AddOnFlags `json:"add_ons"`
	Notes      string            `json:"notes"`
}

// CostEstimate breaks down a quoted reservation price.
type CostEstimate struct {
	BaseCost      float64 `json:"base_cost"`
	AddOnCost     float64 `json:"add_on_cost"`
	DepositAmount float64 `json:"deposit_amount"`
	TotalCost     float64 `json:"total_cost"`
	WeekendRate   bool    `json:"weekend_rate"`
}

// ReservationService provides the booking use cases: availability, quoting,
// creation with conflict serialization, lifecycle transitions and rating.
type ReservationService struct {
	repo      reservationRepository
	areas     reservationAreaRepository
	units     reservationUnitRepository
	cache     reservationCache
	validator *validator.Validate
	logger    *zap.Logger
	config    ReservationConfig
	now       func() time.Time
}

// NewReservationService constructs a ReservationService instance.
func NewReservationService(repo reservationRepository, areas reservationAreaRepository, units reservationUnitRepository, cache reservationCache, validate *validator.Validate, logger *zap.Logger, config ReservationConfig) *ReservationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.CancellationBuffer <= 0 {
		config.CancellationBuffer = 2 * time.Hour
	}
	if config.AvailabilityTTL <= 0 {
		config.AvailabilityTTL = 5 * time.Minute
	}
	return &ReservationService{
		repo:      repo,
		areas:     areas,
		units:     units,
		cache:     cache,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Availability returns the hourly slot grid for an area on a date. Slots walk
// the operating window in one-hour steps; a trailing remainder shorter than an
// hour is dropped. Slots overlapping a blocking reservation carry that
// reservation's reference code as the unavailability reason. On a day the area
// is not operating the grid is empty and the reason says so.
func (s *ReservationService) Availability(ctx context.Context, areaID string, date time.Time) (*models.DayAvailability, error) {
	cacheKey := fmt.Sprintf("availability:%s:%s", areaID, date.Format("2006-01-02"))
	if s.cache != nil {
		var cached models.DayAvailability
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	area, err := s.loadArea(ctx, areaID)
	if err != nil {
		return nil, err
	}

	day := &models.DayAvailability{Date: date.Format("2006-01-02"), Slots: []models.TimeSlot{}}
	window, open := area.OperatingHours[models.WeekdayKey(date.Weekday())]
	if !open || !window.Active {
		day.Reason = "not operating this day"
	} else {
		day.Open = true
		reservations, err := s.repo.FindBlockingByAreaDate(ctx, areaID, date)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reservations")
		}
		day.Slots = buildHourlySlots(window, reservations)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, day, s.config.AvailabilityTTL); err != nil {
			s.logger.Warn("failed to cache availability", zap.Error(err))
		}
	}
	return day, nil
}

func buildHourlySlots(window models.DayWindow, reservations []models.Reservation) []models.TimeSlot {
	open, err := time.Parse("15:04", window.Open)
	if err != nil {
		return []models.TimeSlot{}
	}
	close, err := time.Parse("15:04", window.Close)
	if err != nil {
		return []models.TimeSlot{}
	}

	slots := make([]models.TimeSlot, 0, 16)
	for cursor := open; !cursor.Add(time.Hour).After(close); cursor = cursor.Add(time.Hour) {
		slot := models.TimeSlot{
			Start:     cursor.Format("15:04"),
			End:       cursor.Add(time.Hour).Format("15:04"),
			Available: true,
		}
		for _, r := range reservations {
			if overlaps(slot.Start, slot.End, r.StartTime, r.EndTime) {
				slot.Available = false
				slot.Reason = r.Code
				break
			}
		}
		slots = append(slots, slot)
	}
	return slots
}

// overlaps reports whether [aStart,aEnd) intersects [bStart,bEnd). Times use
// the "15:04" form, so string comparison follows clock order.
func overlaps(aStart, aEnd, bStart, bEnd string) bool {
	return !(aEnd <= bStart || aStart >= bEnd)
}

// Quote computes the price of a prospective reservation without booking it.
func (s *ReservationService) Quote(ctx context.Context, req CreateReservationRequest) (*CostEstimate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reservation payload")
	}
	area, err := s.loadArea(ctx, req.AreaID)
	if err != nil {
		return nil, err
	}
	date, start, end, err := parseBookingTimes(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	estimate := estimateCost(area, date, start, end, req.AddOns)
	return &estimate, nil
}

func estimateCost(area *models.Area, date time.Time, start, end time.Time, addOns models.AddOnFlags) CostEstimate {
	hours := end.Sub(start).Hours()
	rate := area.HourlyRate
	weekend := date.Weekday() == time.Saturday || date.Weekday() == time.Sunday
	if weekend && area.WeekendRate != nil {
		rate = *area.WeekendRate
	}
	base := rate * hours
	addOnCost := addOns.Cost()
	return CostEstimate{
		BaseCost:      base,
		AddOnCost:     addOnCost,
		DepositAmount: area.DepositAmount,
		TotalCost:     base + addOnCost + area.DepositAmount,
		WeekendRate:   weekend && area.WeekendRate != nil,
	}
}

// Create validates and books a reservation. The initial state is pending when
// the area requires authorization, confirmed otherwise. Slot conflicts are
// re-checked inside the booking transaction, so two concurrent requests for
// the same range cannot both succeed.
func (s *ReservationService) Create(ctx context.Context, userID string, req CreateReservationRequest) (*models.Reservation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reservation payload")
	}

	area, err := s.loadArea(ctx, req.AreaID)
	if err != nil {
		return nil, err
	}

	date, start, end, err := parseBookingTimes(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	if err := s.validateBooking(ctx, area, userID, date, start, end, req.GuestCount); err != nil {
		return nil, err
	}

	estimate := estimateCost(area, date, start, end, req.AddOns)

	state := models.ReservationConfirmed
	if area.RequiresAuthorization {
		state = models.ReservationPending
	}

	reservation := &models.Reservation{
		Code:            generateReservationCode(date),
		AreaID:          area.ID,
		UserID:          userID,
		UnitID:          req.UnitID,
		Date:            date,
		StartTime:       start.Format("15:04"),
		EndTime:         end.Format("15:04"),
		DurationMinutes: int(end.Sub(start).Minutes()),
		EventType:       req.EventType,
		GuestCount:      req.GuestCount,
		AddOns:          req.AddOns,
		BaseCost:        estimate.BaseCost,
		AddOnCost:       estimate.AddOnCost,
		DepositAmount:   estimate.DepositAmount,
		TotalCost:       estimate.TotalCost,
		State:           state,
		Notes:           req.Notes,
	}

	if err := s.repo.CreateBooked(ctx, reservation); err != nil {
		if errors.Is(err, repository.ErrSlotConflict) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "the requested time range is already reserved")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "area not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to book reservation")
	}

	s.invalidateAvailability(ctx, area.ID)
	s.logger.Info("reservation booked",
		zap.String("reservation_id", reservation.ID),
		zap.String("code", reservation.Code),
		zap.String("state", string(reservation.State)))
	return reservation, nil
}

// validateBooking runs the pre-booking checks in a fixed order so clients get
// deterministic error messages: area state, duration, lead time, capacity,
// operating window, slot conflicts and finally the requester's unit
// association.
func (s *ReservationService) validateBooking(ctx context.Context, area *models.Area, userID string, date time.Time, start, end time.Time, guestCount int) error {
	if !area.PermitsReservations || area.State != models.AreaAvailable {
		return appErrors.Clone(appErrors.ErrAreaUnavailable, "area does not accept reservations")
	}

	duration := int(end.Sub(start).Minutes())
	if duration < area.MinDurationMinutes {
		return appErrors.Clone(appErrors.ErrValidation, "reservation is shorter than the minimum duration")
	}
	if area.MaxDurationMinutes > 0 && duration > area.MaxDurationMinutes {
		return appErrors.Clone(appErrors.ErrValidation, "reservation exceeds the maximum duration")
	}

	startsAt := time.Date(date.Year(), date.Month(), date.Day(), start.Hour(), start.Minute(), 0, 0, time.UTC)
	lead := startsAt.Sub(s.now())
	if lead < time.Duration(area.MinLeadHours)*time.Hour {
		return appErrors.Clone(appErrors.ErrValidation, "reservation does not meet the minimum lead time")
	}
	if area.MaxLeadHours > 0 && lead > time.Duration(area.MaxLeadHours)*time.Hour {
		return appErrors.Clone(appErrors.ErrValidation, "reservation is too far in the future")
	}

	if guestCount > area.Capacity {
		return appErrors.Clone(appErrors.ErrValidation, "guest count exceeds area capacity")
	}

	window, open := area.OperatingHours[models.WeekdayKey(date.Weekday())]
	if !open || !window.Active {
		return appErrors.Clone(appErrors.ErrValidation, "area is closed on that day")
	}
	if start.Format("15:04") < window.Open || end.Format("15:04") > window.Close {
		return appErrors.Clone(appErrors.ErrValidation, "requested range is outside operating hours")
	}

	reservations, err := s.repo.FindBlockingByAreaDate(ctx, area.ID, date)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing reservations")
	}
	for _, r := range reservations {
		if overlaps(start.Format("15:04"), end.Format("15:04"), r.StartTime, r.EndTime) {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("time range conflicts with reservation %s", r.Code))
		}
	}

	unitCount, err := s.units.CountByUserID(ctx, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check unit association")
	}
	if unitCount == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "user has no housing unit associated")
	}
	return nil
}

// Get returns a reservation by id.
func (s *ReservationService) Get(ctx context.Context, id string) (*models.Reservation, error) {
	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "reservation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reservation")
	}
	return reservation, nil
}

// List returns reservations matching the filter.
func (s *ReservationService) List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, int, error) {
	reservations, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reservations")
	}
	return reservations, total, nil
}

// Calendar returns the blocking reservations for an area in a month.
func (s *ReservationService) Calendar(ctx context.Context, areaID string, year int, month time.Month) ([]models.Reservation, error) {
	if _, err := s.loadArea(ctx, areaID); err != nil {
		return nil, err
	}
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	reservations, err := s.repo.MonthOccupancy(ctx, areaID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar")
	}
	return reservations, nil
}

// Approve confirms a pending reservation.
func (s *ReservationService) Approve(ctx context.Context, id, adminID string) (*models.Reservation, error) {
	return s.decide(ctx, id, adminID, models.ReservationConfirmed, "")
}

// Reject declines a pending reservation.
func (s *ReservationService) Reject(ctx context.Context, id, adminID, reason string) (*models.Reservation, error) {
	return s.decide(ctx, id, adminID, models.ReservationRejected, reason)
}

func (s *ReservationService) decide(ctx context.Context, id, adminID string, state models.ReservationState, reason string) (*models.Reservation, error) {
	reservation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if reservation.State != models.ReservationPending {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only pending reservations can be decided")
	}
	if err := s.repo.UpdateState(ctx, id, state, &adminID, reason); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update reservation")
	}
	s.invalidateAvailability(ctx, reservation.AreaID)
	reservation.State = state
	reservation.CancelReason = reason
	return reservation, nil
}

// Start marks a confirmed reservation as in use.
func (s *ReservationService) Start(ctx context.Context, id string) (*models.Reservation, error) {
	reservation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if reservation.State != models.ReservationConfirmed {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only confirmed reservations can start")
	}
	if err := s.repo.UpdateState(ctx, id, models.ReservationInUse, nil, ""); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update reservation")
	}
	reservation.State = models.ReservationInUse
	return reservation, nil
}

// Complete closes an in-use reservation.
func (s *ReservationService) Complete(ctx context.Context, id string) (*models.Reservation, error) {
	reservation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if reservation.State != models.ReservationInUse {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only in-use reservations can complete")
	}
	if err := s.repo.UpdateState(ctx, id, models.ReservationCompleted, nil, ""); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update reservation")
	}
	reservation.State = models.ReservationCompleted
	return reservation, nil
}

// Cancel cancels a reservation. Owners must cancel at least the configured
// buffer ahead of the start time; administrators may cancel any non-terminal
// reservation at any time.
func (s *ReservationService) Cancel(ctx context.Context, id, requesterID string, isAdmin bool, reason string) (*models.Reservation, error) {
	reservation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if reservation.State.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "reservation is already finished")
	}

	state := models.ReservationCancelledByAdmin
	if !isAdmin {
		if reservation.UserID != requesterID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "reservation belongs to another user")
		}
		if reservation.StartsAt().Sub(s.now()) < s.config.CancellationBuffer {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
				fmt.Sprintf("reservations must be cancelled at least %s before the start time", s.config.CancellationBuffer))
		}
		state = models.ReservationCancelledByUser
	}

	if err := s.repo.UpdateState(ctx, id, state, nil, reason); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel reservation")
	}
	s.invalidateAvailability(ctx, reservation.AreaID)
	reservation.State = state
	reservation.CancelReason = reason
	return reservation, nil
}

// Rate records the one-time rating of a completed reservation and updates the
// area's running average.
func (s *ReservationService) Rate(ctx context.Context, id, requesterID string, rating int) (*models.Reservation, error) {
	if rating < 1 || rating > 5 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rating must be between 1 and 5")
	}
	reservation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if reservation.UserID != requesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "reservation belongs to another user")
	}
	if reservation.State != models.ReservationCompleted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only completed reservations can be rated")
	}
	if reservation.Rating != nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyRated, "")
	}

	if err := s.repo.SetRating(ctx, id, reservation.AreaID, rating); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save rating")
	}
	now := s.now()
	reservation.Rating = &rating
	reservation.RatedAt = &now
	return reservation, nil
}

func (s *ReservationService) loadArea(ctx context.Context, areaID string) (*models.Area, error) {
	area, err := s.areas.FindByID(ctx, areaID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "area not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load area")
	}
	return area, nil
}

func (s *ReservationService) invalidateAvailability(ctx context.Context, areaID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("availability:%s:*", areaID)); err != nil {
		s.logger.Warn("failed to invalidate availability cache", zap.Error(err))
	}
}

func parseBookingTimes(dateStr, startStr, endStr string) (time.Time, time.Time, time.Time, error) {
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return time.Time{}, time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "date must use the YYYY-MM-DD form")
	}
	start, err := time.Parse("15:04", startStr)
	if err != nil {
		return time.Time{}, time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "start time must use the HH:MM form")
	}
	end, err := time.Parse("15:04", endStr)
	if err != nil {
		return time.Time{}, time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "end time must use the HH:MM form")
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}
	return date, start, end, nil
}

func generateReservationCode(date time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("RES-%s-%s", date.Format("20060102"), suffix)
}
