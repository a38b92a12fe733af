package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/models"
	appErrors "github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/errors"
)

type securityRepository interface {
	CreateVisitor(ctx context.Context, v *models.Visitor) error
	FindVisitorByID(ctx context.Context, id string) (*models.Visitor, error)
	MarkVisitorExit(ctx context.Context, id string, at time.Time) error
	ListVisitors(ctx context.Context, unitID string, onSiteOnly bool, limit int) ([]models.Visitor, error)

	CreateVehicle(ctx context.Context, v *models.Vehicle) error
	FindVehicleByPlate(ctx context.Context, plate string) (*models.Vehicle, error)
	ListVehiclesByUnit(ctx context.Context, unitID string) ([]models.Vehicle, error)
	SetVehicleAuthorized(ctx context.Context, id string, authorized bool) error

	CreateAccessLog(ctx context.Context, log *models.AccessLog) error
	ListAccessLogs(ctx context.Context, from, to time.Time, limit int) ([]models.AccessLog, error)

	CreateIncident(ctx context.Context, inc *models.Incident) error
	FindIncidentByID(ctx context.Context, id string) (*models.Incident, error)
	ListIncidents(ctx context.Context, state *models.IncidentState, limit int) ([]models.Incident, error)
	UpdateIncidentState(ctx context.Context, id string, state models.IncidentState) error

	PaymentHistoryRate(ctx context.Context, unitID string) (onTime float64, total int, err error)
}

type securityUserRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
}

type securityChargeRepository interface {
	ListCharges(ctx context.Context, filter models.ChargeFilter) ([]models.Charge, int, error)
}

// SecurityConfig tunes the simulated recognition engines.
type SecurityConfig struct {
	FaceMatchThreshold    float64
	AutoIncidentThreshold float64
}

// RegisterVisitorRequest logs a guest at the gate.
type RegisterVisitorRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Document string `json:"document" validate:"required"`
	UnitID   string `json:"unit_id" validate:"required"`
	Reason   string `json:"reason"`
}

// RegisterVehicleRequest registers a plate for a unit.
type RegisterVehicleRequest struct {
	Plate  string `json:"plate" validate:"required"`
	UnitID string `json:"unit_id" validate:"required"`
	Brand  string `json:"brand"`
	Model  string `json:"model"`
	Color  string `json:"color"`
}

// ReportIncidentRequest files a manual security incident.
type ReportIncidentRequest struct {
	Kind        string `json:"kind" validate:"required"`
	Severity    string `json:"severity" validate:"required,oneof=low medium high critical"`
	Description string `json:"description" validate:"required"`
}

// SecurityService covers gate control (visitors, vehicles, access logs),
// incidents and the simulated recognition engines.
type SecurityService struct {
	repo      securityRepository
	users     securityUserRepository
	charges   securityChargeRepository
	units     maintenanceUnitRepository
	faces     FaceMatcher
	plates    PlateReader
	anomalies AnomalyDetector
	notifier  maintenanceNotifier
	validator *validator.Validate
	logger    *zap.Logger
	config    SecurityConfig
	now       func() time.Time
}

// NewSecurityService constructs a SecurityService instance.
func NewSecurityService(repo securityRepository, users securityUserRepository, charges securityChargeRepository, units maintenanceUnitRepository, faces FaceMatcher, plates PlateReader, anomalies AnomalyDetector, notifier maintenanceNotifier, validate *validator.Validate, logger *zap.Logger, config SecurityConfig) *SecurityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.FaceMatchThreshold <= 0 {
		config.FaceMatchThreshold = 75
	}
	if config.AutoIncidentThreshold <= 0 {
		config.AutoIncidentThreshold = 85
	}
	return &SecurityService{
		repo:      repo,
		users:     users,
		charges:   charges,
		units:     units,
		faces:     faces,
		plates:    plates,
		anomalies: anomalies,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RegisterVisitor logs a guest entry and the matching gate event.
func (s *SecurityService) RegisterVisitor(ctx context.Context, registeredBy string, req RegisterVisitorRequest) (*models.Visitor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid visitor payload")
	}
	if _, err := s.units.FindByID(ctx, req.UnitID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unit not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unit")
	}

	visitor := &models.Visitor{
		FullName:     req.FullName,
		Document:     req.Document,
		UnitID:       req.UnitID,
		Reason:       req.Reason,
		EnteredAt:    s.now(),
		RegisteredBy: registeredBy,
	}
	if err := s.repo.CreateVisitor(ctx, visitor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register visitor")
	}

	s.logAccess(ctx, &models.AccessLog{
		Direction:  models.AccessEntry,
		Method:     "manual",
		Detail:     "visitor " + visitor.FullName + " to unit " + visitor.UnitID,
		OccurredAt: visitor.EnteredAt,
	})
	return visitor, nil
}

// VisitorExit stamps the guest's departure.
func (s *SecurityService) VisitorExit(ctx context.Context, id string) (*models.Visitor, error) {
	visitor, err := s.repo.FindVisitorByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "visitor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load visitor")
	}
	if visitor.ExitedAt != nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "visitor has already left")
	}

	at := s.now()
	if err := s.repo.MarkVisitorExit(ctx, id, at); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark visitor exit")
	}
	visitor.ExitedAt = &at

	s.logAccess(ctx, &models.AccessLog{
		Direction:  models.AccessExit,
		Method:     "manual",
		Detail:     "visitor " + visitor.FullName,
		OccurredAt: at,
	})
	return visitor, nil
}

// Visitors lists guests, optionally only those still on site.
func (s *SecurityService) Visitors(ctx context.Context, unitID string, onSiteOnly bool, limit int) ([]models.Visitor, error) {
	visitors, err := s.repo.ListVisitors(ctx, unitID, onSiteOnly, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list visitors")
	}
	return visitors, nil
}

// RegisterVehicle registers a plate for a unit. Plates are stored uppercase
// and must be unique.
func (s *SecurityService) RegisterVehicle(ctx context.Context, req RegisterVehicleRequest) (*models.Vehicle, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid vehicle payload")
	}
	if _, err := s.units.FindByID(ctx, req.UnitID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unit not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unit")
	}

	plate := strings.ToUpper(strings.TrimSpace(req.Plate))
	if _, err := s.repo.FindVehicleByPlate(ctx, plate); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "plate is already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check plate")
	}

	vehicle := &models.Vehicle{
		Plate:      plate,
		UnitID:     req.UnitID,
		Brand:      req.Brand,
		Model:      req.Model,
		Color:      req.Color,
		Authorized: true,
	}
	if err := s.repo.CreateVehicle(ctx, vehicle); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register vehicle")
	}
	return vehicle, nil
}

// VehiclesByUnit lists the plates registered to a unit.
func (s *SecurityService) VehiclesByUnit(ctx context.Context, unitID string) ([]models.Vehicle, error) {
	vehicles, err := s.repo.ListVehiclesByUnit(ctx, unitID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list vehicles")
	}
	return vehicles, nil
}

// SetVehicleAuthorized toggles gate access for a registered plate.
func (s *SecurityService) SetVehicleAuthorized(ctx context.Context, id string, authorized bool) error {
	if err := s.repo.SetVehicleAuthorized(ctx, id, authorized); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "vehicle not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update vehicle")
	}
	return nil
}

// RecognizeFace runs the face matcher against active users and logs the gate
// event. Identical images always yield the same result.
func (s *SecurityService) RecognizeFace(ctx context.Context, image []byte, direction models.AccessDirection) (*models.FaceMatchResult, error) {
	if len(image) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "image data is required")
	}

	active := true
	users, _, err := s.users.List(ctx, models.UserFilter{Active: &active, PageSize: 1000})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidates")
	}
	candidateIDs := make([]string, 0, len(users))
	for _, u := range users {
		candidateIDs = append(candidateIDs, u.ID)
	}

	result := s.faces.Match(image, candidateIDs)

	log := &models.AccessLog{
		Direction:  direction,
		Method:     "face_recognition",
		Confidence: result.Confidence,
		OccurredAt: s.now(),
	}
	if result.Matched {
		log.UserID = &result.UserID
	} else {
		log.Detail = "unrecognized face"
	}
	s.logAccess(ctx, log)
	return &result, nil
}

// ReadPlate runs plate OCR, checks the registry and logs the gate event.
func (s *SecurityService) ReadPlate(ctx context.Context, image []byte, direction models.AccessDirection) (*models.PlateReadResult, error) {
	if len(image) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "image data is required")
	}

	plate, confidence := s.plates.Read(image)
	result := &models.PlateReadResult{Plate: plate, Confidence: confidence}

	log := &models.AccessLog{
		Direction:  direction,
		Method:     "plate_ocr",
		Confidence: confidence,
		OccurredAt: s.now(),
	}
	vehicle, err := s.repo.FindVehicleByPlate(ctx, plate)
	switch {
	case err == nil && vehicle.Authorized:
		result.Authorized = true
		result.VehicleID = vehicle.ID
		log.VehicleID = &vehicle.ID
	case err == nil:
		result.VehicleID = vehicle.ID
		log.VehicleID = &vehicle.ID
		log.Detail = "plate " + plate + " is not authorized"
	case errors.Is(err, sql.ErrNoRows):
		log.Detail = "unregistered plate " + plate
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check plate")
	}
	s.logAccess(ctx, log)
	return result, nil
}

// DetectAnomaly analyzes footage. Detections above the auto-incident
// threshold open an incident and page the security staff.
func (s *SecurityService) DetectAnomaly(ctx context.Context, image []byte, kind string) (*models.AnomalyResult, error) {
	if len(image) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "image data is required")
	}
	if kind == "" {
		kind = "unusual_activity"
	}

	result := s.anomalies.Analyze(image, kind)
	if !result.Detected || result.Confidence < s.config.AutoIncidentThreshold {
		return &result, nil
	}

	incident := &models.Incident{
		Kind:        result.Kind,
		Severity:    result.Severity,
		State:       models.IncidentOpen,
		Description: "automatically detected by the anomaly engine",
		DetectedBy:  "anomaly_detector",
		Confidence:  result.Confidence,
	}
	if err := s.repo.CreateIncident(ctx, incident); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create incident")
	}
	result.IncidentID = incident.ID

	s.logger.Warn("incident auto-created",
		zap.String("incident_id", incident.ID),
		zap.String("kind", incident.Kind),
		zap.Float64("confidence", incident.Confidence))
	return &result, nil
}

// ReportIncident files a manual security incident.
func (s *SecurityService) ReportIncident(ctx context.Context, reporterID string, req ReportIncidentRequest) (*models.Incident, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid incident payload")
	}
	incident := &models.Incident{
		Kind:        req.Kind,
		Severity:    models.IncidentSeverity(req.Severity),
		State:       models.IncidentOpen,
		Description: req.Description,
		DetectedBy:  reporterID,
	}
	if err := s.repo.CreateIncident(ctx, incident); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create incident")
	}
	return incident, nil
}

// Incidents lists incidents, optionally filtered by state.
func (s *SecurityService) Incidents(ctx context.Context, state *models.IncidentState, limit int) ([]models.Incident, error) {
	incidents, err := s.repo.ListIncidents(ctx, state, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list incidents")
	}
	return incidents, nil
}

// UpdateIncidentState moves an incident through its investigation lifecycle.
func (s *SecurityService) UpdateIncidentState(ctx context.Context, id string, state models.IncidentState) (*models.Incident, error) {
	switch state {
	case models.IncidentOpen, models.IncidentInvestigating, models.IncidentResolved:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown incident state")
	}
	incident, err := s.repo.FindIncidentByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "incident not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load incident")
	}
	if incident.State == models.IncidentResolved {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "incident is already resolved")
	}
	if err := s.repo.UpdateIncidentState(ctx, id, state); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update incident")
	}
	return s.repo.FindIncidentByID(ctx, id)
}

// AccessLogs lists gate events in a time range.
func (s *SecurityService) AccessLogs(ctx context.Context, from, to time.Time, limit int) ([]models.AccessLog, error) {
	logs, err := s.repo.ListAccessLogs(ctx, from, to, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list access logs")
	}
	return logs, nil
}

// DelinquencyScore predicts payment risk for a unit from its payment history
// and currently overdue charges.
func (s *SecurityService) DelinquencyScore(ctx context.Context, unitID string) (*models.DelinquencyScore, error) {
	if _, err := s.units.FindByID(ctx, unitID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unit not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unit")
	}

	onTimeRate, _, err := s.repo.PaymentHistoryRate(ctx, unitID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment history")
	}

	overdueState := models.ChargeOverdue
	_, overdueCount, err := s.charges.ListCharges(ctx, models.ChargeFilter{UnitID: unitID, State: &overdueState, PageSize: 1})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count overdue charges")
	}

	score := scoreDelinquency(unitID, onTimeRate, overdueCount)
	return &score, nil
}

func (s *SecurityService) logAccess(ctx context.Context, log *models.AccessLog) {
	if err := s.repo.CreateAccessLog(ctx, log); err != nil {
		s.logger.Warn("failed to record access log", zap.Error(err))
	}
}
