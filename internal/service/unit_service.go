package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/models"
	appErrors "github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/errors"
)

type unitRepository interface {
	FindByID(ctx context.Context, id string) (*models.HousingUnit, error)
	List(ctx context.Context, filter models.UnitFilter) ([]models.HousingUnit, int, error)
	ListByUserID(ctx context.Context, userID string) ([]models.HousingUnit, error)
	Create(ctx context.Context, unit *models.HousingUnit) error
	Update(ctx context.Context, unit *models.HousingUnit) error
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
}

// CreateUnitRequest is the payload for registering a housing unit.
type CreateUnitRequest struct {
	Code     string  `json:"code" validate:"required"`
	Building string  `json:"building" validate:"required"`
	Number   string  `json:"number" validate:"required"`
	Floor    int     `json:"floor"`
	AreaM2   float64 `json:"area_m2" validate:"gte=0"`
	Bedrooms int     `json:"bedrooms" validate:"gte=0"`
	OwnerID  *string `json:"owner_id"`
	TenantID *string `json:"tenant_id"`
}

// UpdateUnitRequest is the payload for partial unit updates, including
// occupant assignment.
type UpdateUnitRequest struct {
	Building *string `json:"building"`
	Number   *string `json:"number"`
	Floor    *int    `json:"floor"`
	AreaM2   *float64 `json:"area_m2"`
	Bedrooms *int    `json:"bedrooms"`
	OwnerID  *string `json:"owner_id"`
	TenantID *string `json:"tenant_id"`
	State    *string `json:"state"`
}

// UnitService provides housing-unit management use cases.
type UnitService struct {
	repo      unitRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUnitService constructs a UnitService instance.
func NewUnitService(repo unitRepository, validate *validator.Validate, logger *zap.Logger) *UnitService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UnitService{repo: repo, validator: validate, logger: logger}
}

// Get returns a unit by id.
func (s *UnitService) Get(ctx context.Context, id string) (*models.HousingUnit, error) {
	unit, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unit not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unit")
	}
	return unit, nil
}

// List returns units matching the filter.
func (s *UnitService) List(ctx context.Context, filter models.UnitFilter) ([]models.HousingUnit, int, error) {
	units, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list units")
	}
	return units, total, nil
}

// ListMine returns the units where the user is owner or tenant.
func (s *UnitService) ListMine(ctx context.Context, userID string) ([]models.HousingUnit, error) {
	units, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list user units")
	}
	return units, nil
}

// Create registers a housing unit.
func (s *UnitService) Create(ctx context.Context, req CreateUnitRequest) (*models.HousingUnit, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid unit payload")
	}

	exists, err := s.repo.ExistsByCode(ctx, req.Code, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check unit code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "unit code already exists")
	}

	state := models.UnitVacant
	if req.OwnerID != nil || req.TenantID != nil {
		state = models.UnitOccupied
	}

	unit := &models.HousingUnit{
		Code:     req.Code,
		Building: req.Building,
		Number:   req.Number,
		Floor:    req.Floor,
		AreaM2:   req.AreaM2,
		Bedrooms: req.Bedrooms,
		OwnerID:  req.OwnerID,
		TenantID: req.TenantID,
		State:    state,
	}
	if err := s.repo.Create(ctx, unit); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create unit")
	}

	s.logger.Info("unit created", zap.String("unit_id", unit.ID), zap.String("code", unit.Code))
	return unit, nil
}

// Update applies partial changes to a unit, recomputing the occupancy state
// when the occupants change.
func (s *UnitService) Update(ctx context.Context, id string, req UpdateUnitRequest) (*models.HousingUnit, error) {
	unit, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Building != nil {
		unit.Building = *req.Building
	}
	if req.Number != nil {
		unit.Number = *req.Number
	}
	if req.Floor != nil {
		unit.Floor = *req.Floor
	}
	if req.AreaM2 != nil {
		unit.AreaM2 = *req.AreaM2
	}
	if req.Bedrooms != nil {
		unit.Bedrooms = *req.Bedrooms
	}
	occupantsChanged := false
	if req.OwnerID != nil {
		if *req.OwnerID == "" {
			unit.OwnerID = nil
		} else {
			unit.OwnerID = req.OwnerID
		}
		occupantsChanged = true
	}
	if req.TenantID != nil {
		if *req.TenantID == "" {
			unit.TenantID = nil
		} else {
			unit.TenantID = req.TenantID
		}
		occupantsChanged = true
	}
	if req.State != nil {
		state := models.UnitState(*req.State)
		switch state {
		case models.UnitOccupied, models.UnitVacant, models.UnitMaintenance:
			unit.State = state
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown unit state")
		}
	} else if occupantsChanged {
		if unit.OwnerID == nil && unit.TenantID == nil {
			unit.State = models.UnitVacant
		} else if unit.State == models.UnitVacant {
			unit.State = models.UnitOccupied
		}
	}

	if err := s.repo.Update(ctx, unit); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update unit")
	}
	return unit, nil
}
