package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/models"
	appErrors "github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/errors"
)

type areaRepository interface {
	FindByID(ctx context.Context, id string) (*models.Area, error)
	List(ctx context.Context, filter models.AreaFilter) ([]models.Area, int, error)
	Create(ctx context.Context, area *models.Area) error
	Update(ctx context.Context, area *models.Area) error
	SetState(ctx context.Context, id string, state models.AreaState) error
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
}

// CreateAreaRequest is the payload for registering a bookable area.
type CreateAreaRequest struct {
	Name                  string                `json:"name" validate:"required"`
	Category              string                `json:"category" validate:"required"`
	Description           string                `json:"description"`
	Capacity              int                   `json:"capacity" validate:"gt=0"`
	OperatingHours        models.OperatingHours `json:"operating_hours" validate:"required"`
	MinDurationMinutes    int                   `json:"min_duration_minutes" validate:"gt=0"`
	MaxDurationMinutes    int                   `json:"max_duration_minutes" validate:"gt=0"`
	MinLeadHours          int                   `json:"min_lead_hours" validate:"gte=0"`
	MaxLeadHours          int                   `json:"max_lead_hours" validate:"gt=0"`
	HourlyRate            float64               `json:"hourly_rate" validate:"gte=0"`
	WeekendRate           *float64              `json:"weekend_rate"`
	DepositAmount         float64               `json:"deposit_amount" validate:"gte=0"`
	RequiresAuthorization bool                  `json:"requires_authorization"`
	PermitsReservations   bool                  `json:"permits_reservations"`
}

// UpdateAreaRequest applies partial changes to an area.
type UpdateAreaRequest struct {
	Name                  *string                `json:"name"`
	Category              *string                `json:"category"`
	Description           *string                `json:"description"`
	Capacity              *int                   `json:"capacity"`
	OperatingHours        *models.OperatingHours `json:"operating_hours"`
	MinDurationMinutes    *int                   `json:"min_duration_minutes"`
	MaxDurationMinutes    *int                   `json:"max_duration_minutes"`
	MinLeadHours          *int                   `json:"min_lead_hours"`
	MaxLeadHours          *int                   `json:"max_lead_hours"`
	HourlyRate            *float64               `json:"hourly_rate"`
	WeekendRate           *float64               `json:"weekend_rate"`
	DepositAmount         *float64               `json:"deposit_amount"`
	RequiresAuthorization *bool                  `json:"requires_authorization"`
	PermitsReservations   *bool                  `json:"permits_reservations"`
}

// AreaService provides common-area management use cases.
type AreaService struct {
	repo      areaRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAreaService constructs an AreaService instance.
func NewAreaService(repo areaRepository, validate *validator.Validate, logger *zap.Logger) *AreaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AreaService{repo: repo, validator: validate, logger: logger}
}

// Get returns an area by id.
func (s *AreaService) Get(ctx context.Context, id string) (*models.Area, error) {
	area, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "area not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load area")
	}
	return area, nil
}

// List returns areas matching the filter.
func (s *AreaService) List(ctx context.Context, filter models.AreaFilter) ([]models.Area, int, error) {
	areas, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list areas")
	}
	return areas, total, nil
}

// Create registers a bookable area.
func (s *AreaService) Create(ctx context.Context, req CreateAreaRequest) (*models.Area, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid area payload")
	}
	if err := validateOperatingHours(req.OperatingHours); err != nil {
		return nil, err
	}
	if req.MaxDurationMinutes < req.MinDurationMinutes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "max duration must be at least min duration")
	}

	exists, err := s.repo.ExistsByName(ctx, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check area name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "area name already exists")
	}

	area := &models.Area{
		Name:                  req.Name,
		Category:              req.Category,
		Description:           req.Description,
		Capacity:              req.Capacity,
		OperatingHours:        req.OperatingHours,
		MinDurationMinutes:    req.MinDurationMinutes,
		MaxDurationMinutes:    req.MaxDurationMinutes,
		MinLeadHours:          req.MinLeadHours,
		MaxLeadHours:          req.MaxLeadHours,
		HourlyRate:            req.HourlyRate,
		WeekendRate:           req.WeekendRate,
		DepositAmount:         req.DepositAmount,
		RequiresAuthorization: req.RequiresAuthorization,
		PermitsReservations:   req.PermitsReservations,
		State:                 models.AreaAvailable,
	}
	if err := s.repo.Create(ctx, area); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create area")
	}

	s.logger.Info("area created", zap.String("area_id", area.ID), zap.String("name", area.Name))
	return area, nil
}

// Update applies partial changes to an area.
func (s *AreaService) Update(ctx context.Context, id string, req UpdateAreaRequest) (*models.Area, error) {
	area, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil && *req.Name != area.Name {
		exists, err := s.repo.ExistsByName(ctx, *req.Name, area.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check area name")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "area name already exists")
		}
		area.Name = *req.Name
	}
	if req.Category != nil {
		area.Category = *req.Category
	}
	if req.Description != nil {
		area.Description = *req.Description
	}
	if req.Capacity != nil {
		if *req.Capacity <= 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "capacity must be positive")
		}
		area.Capacity = *req.Capacity
	}
	if req.OperatingHours != nil {
		if err := validateOperatingHours(*req.OperatingHours); err != nil {
			return nil, err
		}
		area.OperatingHours = *req.OperatingHours
	}
	if req.MinDurationMinutes != nil {
		area.MinDurationMinutes = *req.MinDurationMinutes
	}
	if req.MaxDurationMinutes != nil {
		area.MaxDurationMinutes = *req.MaxDurationMinutes
	}
	if area.MaxDurationMinutes < area.MinDurationMinutes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "max duration must be at least min duration")
	}
	if req.MinLeadHours != nil {
		area.MinLeadHours = *req.MinLeadHours
	}
	if req.MaxLeadHours != nil {
		area.MaxLeadHours = *req.MaxLeadHours
	}
	if req.HourlyRate != nil {
		area.HourlyRate = *req.HourlyRate
	}
	if req.WeekendRate != nil {
		area.WeekendRate = req.WeekendRate
	}
	if req.DepositAmount != nil {
		area.DepositAmount = *req.DepositAmount
	}
	if req.RequiresAuthorization != nil {
		area.RequiresAuthorization = *req.RequiresAuthorization
	}
	if req.PermitsReservations != nil {
		area.PermitsReservations = *req.PermitsReservations
	}

	if err := s.repo.Update(ctx, area); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update area")
	}
	return area, nil
}

// SetState transitions the area lifecycle. Areas are disabled rather than
// deleted so historical reservations keep their reference.
func (s *AreaService) SetState(ctx context.Context, id string, state models.AreaState) error {
	switch state {
	case models.AreaAvailable, models.AreaMaintenance, models.AreaDisabled, models.AreaAdminHeld:
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown area state")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SetState(ctx, id, state); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set area state")
	}
	s.logger.Info("area state changed", zap.String("area_id", id), zap.String("state", string(state)))
	return nil
}

func validateOperatingHours(hours models.OperatingHours) error {
	for day, window := range hours {
		switch day {
		case "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday":
		default:
			return appErrors.Clone(appErrors.ErrValidation, "unknown weekday in operating hours")
		}
		if !window.Active {
			continue
		}
		open, err := time.Parse("15:04", window.Open)
		if err != nil {
			return appErrors.Clone(appErrors.ErrValidation, "invalid opening time")
		}
		close, err := time.Parse("15:04", window.Close)
		if err != nil {
			return appErrors.Clone(appErrors.ErrValidation, "invalid closing time")
		}
		if !close.After(open) {
			return appErrors.Clone(appErrors.ErrValidation, "closing time must be after opening time")
		}
	}
	return nil
}
