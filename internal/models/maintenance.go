package models

import "time"

// MaintenancePriority orders work by urgency.
type MaintenancePriority string

const (
	PriorityLow    MaintenancePriority = "low"
	PriorityMedium MaintenancePriority = "medium"
	PriorityHigh   MaintenancePriority = "high"
	PriorityUrgent MaintenancePriority = "urgent"
)

// MaintenanceState is the request lifecycle.
type MaintenanceState string

const (
	MaintenanceReceived   MaintenanceState = "received"
	MaintenanceAssigned   MaintenanceState = "assigned"
	MaintenanceInProgress MaintenanceState = "in_progress"
	MaintenanceCompleted  MaintenanceState = "completed"
	MaintenanceCancelled  MaintenanceState = "cancelled"
)

// MaintenanceType catalogues the kinds of work residents can request.
type MaintenanceType struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// MaintenanceRequest is a resident-reported issue routed to maintenance staff.
type MaintenanceRequest struct {
	ID          string              `db:"id" json:"id"`
	UnitID      string              `db:"unit_id" json:"unit_id"`
	RequesterID string              `db:"requester_id" json:"requester_id"`
	TypeID      string              `db:"type_id" json:"type_id"`
	Title       string              `db:"title" json:"title"`
	Description string              `db:"description" json:"description"`
	Priority    MaintenancePriority `db:"priority" json:"priority"`
	State       MaintenanceState    `db:"state" json:"state"`
	AssignedTo  *string             `db:"assigned_to" json:"assigned_to,omitempty"`
	AssignedAt  *time.Time          `db:"assigned_at" json:"assigned_at,omitempty"`
	PhotoPath   string              `db:"photo_path" json:"photo_path,omitempty"`
	CreatedAt   time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time           `db:"updated_at" json:"updated_at"`
}

// WorkReport documents the completion of a maintenance request.
type WorkReport struct {
	ID            string    `db:"id" json:"id"`
	RequestID     string    `db:"request_id" json:"request_id"`
	Notes         string    `db:"notes" json:"notes"`
	MaterialsCost float64   `db:"materials_cost" json:"materials_cost"`
	HoursSpent    float64   `db:"hours_spent" json:"hours_spent"`
	CreatedBy     string    `db:"created_by" json:"created_by"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// MaintenanceFilter captures filtering criteria for listing requests.
type MaintenanceFilter struct {
	UnitID      string
	RequesterID string
	AssignedTo  string
	TypeID      string
	State       *MaintenanceState
	Priority    *MaintenancePriority
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}
