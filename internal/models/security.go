package models

import "time"

// Visitor records a guest entering the condominium.
type Visitor struct {
	ID          string     `db:"id" json:"id"`
	FullName    string     `db:"full_name" json:"full_name"`
	Document    string     `db:"document" json:"document"`
	UnitID      string     `db:"unit_id" json:"unit_id"`
	Reason      string     `db:"reason" json:"reason,omitempty"`
	EnteredAt   time.Time  `db:"entered_at" json:"entered_at"`
	ExitedAt    *time.Time `db:"exited_at" json:"exited_at,omitempty"`
	RegisteredBy string    `db:"registered_by" json:"registered_by"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Vehicle is a plate registered to a housing unit.
type Vehicle struct {
	ID         string    `db:"id" json:"id"`
	Plate      string    `db:"plate" json:"plate"`
	UnitID     string    `db:"unit_id" json:"unit_id"`
	Brand      string    `db:"brand" json:"brand,omitempty"`
	Model      string    `db:"model" json:"model,omitempty"`
	Color      string    `db:"color" json:"color,omitempty"`
	Authorized bool      `db:"authorized" json:"authorized"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AccessDirection marks entries versus exits.
type AccessDirection string

const (
	AccessEntry AccessDirection = "entry"
	AccessExit  AccessDirection = "exit"
)

// AccessLog records one gate event, whatever the method (manual, face, plate).
type AccessLog struct {
	ID         string          `db:"id" json:"id"`
	UserID     *string         `db:"user_id" json:"user_id,omitempty"`
	VehicleID  *string         `db:"vehicle_id" json:"vehicle_id,omitempty"`
	Direction  AccessDirection `db:"direction" json:"direction"`
	Method     string          `db:"method" json:"method"`
	Confidence float64         `db:"confidence" json:"confidence,omitempty"`
	Detail     string          `db:"detail" json:"detail,omitempty"`
	OccurredAt time.Time       `db:"occurred_at" json:"occurred_at"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// IncidentSeverity grades detected incidents.
type IncidentSeverity string

const (
	SeverityLow      IncidentSeverity = "low"
	SeverityMedium   IncidentSeverity = "medium"
	SeverityHigh     IncidentSeverity = "high"
	SeverityCritical IncidentSeverity = "critical"
)

// IncidentState is the investigation lifecycle.
type IncidentState string

const (
	IncidentOpen          IncidentState = "open"
	IncidentInvestigating IncidentState = "investigating"
	IncidentResolved      IncidentState = "resolved"
)

// Incident is a security event, reported manually or auto-created by the
// anomaly detector when confidence crosses the auto-incident threshold.
type Incident struct {
	ID          string           `db:"id" json:"id"`
	Kind        string           `db:"kind" json:"kind"`
	Severity    IncidentSeverity `db:"severity" json:"severity"`
	State       IncidentState    `db:"state" json:"state"`
	Description string           `db:"description" json:"description"`
	DetectedBy  string           `db:"detected_by" json:"detected_by"`
	Confidence  float64          `db:"confidence" json:"confidence,omitempty"`
	ResolvedAt  *time.Time       `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// FaceMatchResult is the outcome of a face-recognition attempt.
type FaceMatchResult struct {
	Matched    bool      `json:"matched"`
	UserID     string    `json:"user_id,omitempty"`
	Confidence float64   `json:"confidence"`
	Encoding   []float64 `json:"encoding,omitempty"`
}

// PlateReadResult is the outcome of a plate OCR attempt.
type PlateReadResult struct {
	Plate      string  `json:"plate"`
	Confidence float64 `json:"confidence"`
	Authorized bool    `json:"authorized"`
	VehicleID  string  `json:"vehicle_id,omitempty"`
}

// AnomalyResult is the outcome of an anomaly-detection pass.
type AnomalyResult struct {
	Detected   bool             `json:"detected"`
	Kind       string           `json:"kind"`
	Confidence float64          `json:"confidence"`
	Severity   IncidentSeverity `json:"severity"`
	IncidentID string           `json:"incident_id,omitempty"`
}

// DelinquencyScore predicts payment risk for a unit.
type DelinquencyScore struct {
	UnitID         string  `json:"unit_id"`
	Score          float64 `json:"score"`
	OnTimeRate     float64 `json:"on_time_rate"`
	RiskLevel      string  `json:"risk_level"`
	Recommendation string  `json:"recommendation"`
}
