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

type maintenanceRepository interface {
	ListTypes(ctx context.Context, activeOnly bool) ([]models.MaintenanceType, error)
	FindTypeByID(ctx context.Context, id string) (*models.MaintenanceType, error)
	CreateType(ctx context.Context, mt *models.MaintenanceType) error

	FindByID(ctx context.Context, id string) (*models.MaintenanceRequest, error)
	List(ctx context.Context, filter models.MaintenanceFilter) ([]models.MaintenanceRequest, int, error)
	Create(ctx context.Context, req *models.MaintenanceRequest) error
	Assign(ctx context.Context, id, workerID string) error
	UpdateState(ctx context.Context, id string, state models.MaintenanceState) error
	CreateWorkReport(ctx context.Context, report *models.WorkReport) error
	FindWorkReport(ctx context.Context, requestID string) (*models.WorkReport, error)
}

type maintenanceUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type maintenanceUnitRepository interface {
	FindByID(ctx context.Context, id string) (*models.HousingUnit, error)
}

type maintenanceNotifier interface {
	NotifyUsers(ctx context.Context, senderID string, userIDs []string, title, body string, urgent bool) error
}

// CreateMaintenanceRequest reports an issue for a unit.
type CreateMaintenanceRequest struct {
	UnitID      string `json:"unit_id" validate:"required"`
	TypeID      string `json:"type_id" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	PhotoPath   string `json:"photo_path"`
}

// CompleteMaintenanceRequest closes a request with its work report.
type CompleteMaintenanceRequest struct {
	Notes         string  `json:"notes" validate:"required"`
	MaterialsCost float64 `json:"materials_cost" validate:"gte=0"`
	HoursSpent    float64 `json:"hours_spent" validate:"gte=0"`
}

// MaintenanceService routes resident-reported issues through the
// received -> assigned -> in_progress -> completed lifecycle.
type MaintenanceService struct {
	repo      maintenanceRepository
	users     maintenanceUserRepository
	units     maintenanceUnitRepository
	notifier  maintenanceNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMaintenanceService constructs a MaintenanceService instance.
func NewMaintenanceService(repo maintenanceRepository, users maintenanceUserRepository, units maintenanceUnitRepository, notifier maintenanceNotifier, validate *validator.Validate, logger *zap.Logger) *MaintenanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &MaintenanceService{repo: repo, users: users, units: units, notifier: notifier, validator: validate, logger: logger}
}

// Types returns the maintenance type catalogue.
func (s *MaintenanceService) Types(ctx context.Context, activeOnly bool) ([]models.MaintenanceType, error) {
	types, err := s.repo.ListTypes(ctx, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list maintenance types")
	}
	return types, nil
}

// CreateType registers a maintenance type.
func (s *MaintenanceService) CreateType(ctx context.Context, name string) (*models.MaintenanceType, error) {
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "type name is required")
	}
	mt := &models.MaintenanceType{Name: name, Active: true}
	if err := s.repo.CreateType(ctx, mt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create maintenance type")
	}
	return mt, nil
}

// Get returns a request by id.
func (s *MaintenanceService) Get(ctx context.Context, id string) (*models.MaintenanceRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "maintenance request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load maintenance request")
	}
	return request, nil
}

// List returns requests matching the filter.
func (s *MaintenanceService) List(ctx context.Context, filter models.MaintenanceFilter) ([]models.MaintenanceRequest, int, error) {
	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list maintenance requests")
	}
	return requests, total, nil
}

// Create files a new request. Residents can only report issues for a unit
// they own or rent.
func (s *MaintenanceService) Create(ctx context.Context, requesterID string, isAdmin bool, req CreateMaintenanceRequest) (*models.MaintenanceRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid maintenance payload")
	}

	unit, err := s.units.FindByID(ctx, req.UnitID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unit not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unit")
	}
	if !isAdmin && !unitBelongsTo(unit, requesterID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "requests can only be filed for your own unit")
	}

	mt, err := s.repo.FindTypeByID(ctx, req.TypeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "maintenance type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load maintenance type")
	}
	if !mt.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "maintenance type is inactive")
	}

	priority := models.PriorityMedium
	if req.Priority != "" {
		priority = models.MaintenancePriority(req.Priority)
	}

	request := &models.MaintenanceRequest{
		UnitID:      req.UnitID,
		RequesterID: requesterID,
		TypeID:      req.TypeID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    priority,
		State:       models.MaintenanceReceived,
		PhotoPath:   req.PhotoPath,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create maintenance request")
	}

	s.logger.Info("maintenance request created",
		zap.String("request_id", request.ID),
		zap.String("unit_id", request.UnitID),
		zap.String("priority", string(priority)))
	return request, nil
}

// Assign routes a request to a maintenance worker. Reassignment is allowed
// while the work has not started.
func (s *MaintenanceService) Assign(ctx context.Context, id, workerID string) (*models.MaintenanceRequest, error) {
	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.State != models.MaintenanceReceived && request.State != models.MaintenanceAssigned {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only pending requests can be assigned")
	}

	worker, err := s.users.FindByID(ctx, workerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "worker not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load worker")
	}
	if worker.Role != models.RoleMaintenance || !worker.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignee must be an active maintenance worker")
	}

	if err := s.repo.Assign(ctx, id, workerID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign request")
	}

	s.notify(ctx, request.RequesterID, []string{workerID},
		"Maintenance assignment",
		"You have been assigned to: "+request.Title,
		request.Priority == models.PriorityUrgent)
	return s.Get(ctx, id)
}

// Start moves an assigned request to in_progress. Only the assigned worker
// or an administrator may start it.
func (s *MaintenanceService) Start(ctx context.Context, id, actorID string, isAdmin bool) (*models.MaintenanceRequest, error) {
	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.State != models.MaintenanceAssigned {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only assigned requests can be started")
	}
	if !isAdmin && (request.AssignedTo == nil || *request.AssignedTo != actorID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned worker can start the request")
	}
	if err := s.repo.UpdateState(ctx, id, models.MaintenanceInProgress); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start request")
	}
	return s.Get(ctx, id)
}

// Complete closes an in-progress request with its work report and notifies
// the requester.
func (s *MaintenanceService) Complete(ctx context.Context, id, actorID string, isAdmin bool, req CompleteMaintenanceRequest) (*models.WorkReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid work report payload")
	}
	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.State != models.MaintenanceInProgress {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only in-progress requests can be completed")
	}
	if !isAdmin && (request.AssignedTo == nil || *request.AssignedTo != actorID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned worker can complete the request")
	}

	report := &models.WorkReport{
		RequestID:     id,
		Notes:         req.Notes,
		MaterialsCost: req.MaterialsCost,
		HoursSpent:    req.HoursSpent,
		CreatedBy:     actorID,
	}
	if err := s.repo.CreateWorkReport(ctx, report); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create work report")
	}

	s.notify(ctx, actorID, []string{request.RequesterID},
		"Maintenance completed",
		"Your request has been resolved: "+request.Title,
		false)
	s.logger.Info("maintenance request completed", zap.String("request_id", id))
	return report, nil
}

// Cancel voids a request. Requesters can cancel their own pending requests;
// in-progress work requires an administrator.
func (s *MaintenanceService) Cancel(ctx context.Context, id, actorID string, isAdmin bool) error {
	request, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	switch request.State {
	case models.MaintenanceCompleted, models.MaintenanceCancelled:
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "request is already closed")
	case models.MaintenanceInProgress:
		if !isAdmin {
			return appErrors.Clone(appErrors.ErrForbidden, "in-progress requests can only be cancelled by an administrator")
		}
	default:
		if !isAdmin && request.RequesterID != actorID {
			return appErrors.Clone(appErrors.ErrForbidden, "only the requester can cancel this request")
		}
	}
	if err := s.repo.UpdateState(ctx, id, models.MaintenanceCancelled); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel request")
	}

	if isAdmin && request.RequesterID != actorID {
		s.notify(ctx, actorID, []string{request.RequesterID},
			"Maintenance request cancelled",
			"Your request was cancelled: "+request.Title,
			false)
	}
	return nil
}

// WorkReport returns the report filed when a request was completed.
func (s *MaintenanceService) WorkReport(ctx context.Context, requestID string) (*models.WorkReport, error) {
	report, err := s.repo.FindWorkReport(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "work report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work report")
	}
	return report, nil
}

func (s *MaintenanceService) notify(ctx context.Context, senderID string, userIDs []string, title, body string, urgent bool) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyUsers(ctx, senderID, userIDs, title, body, urgent); err != nil {
		s.logger.Warn("failed to send maintenance notification", zap.Error(err))
	}
}

func unitBelongsTo(unit *models.HousingUnit, userID string) bool {
	if unit.OwnerID != nil && *unit.OwnerID == userID {
		return true
	}
	if unit.TenantID != nil && *unit.TenantID == userID {
		return true
	}
	return false
}
