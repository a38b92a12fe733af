package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AreaState is the lifecycle state of a bookable common area. Areas are
// never hard-deleted; they are disabled through this state.
type AreaState string

const (
	AreaAvailable   AreaState = "available"
	AreaMaintenance AreaState = "maintenance"
	AreaDisabled    AreaState = "disabled"
	AreaAdminHeld   AreaState = "admin_held"
)

// DayWindow describes one weekday's operating window. Times use "15:04".
type DayWindow struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	Active bool   `json:"active"`
}

// OperatingHours maps lowercase English weekday names to their windows.
// Stored as a JSONB column.
type OperatingHours map[string]DayWindow

// Value implements driver.Valuer for JSONB storage.
func (h OperatingHours) Value() (driver.Value, error) {
	if h == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(h)
}

// Scan implements sql.Scanner for JSONB retrieval.
func (h *OperatingHours) Scan(src interface{}) error {
	if src == nil {
		*h = OperatingHours{}
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("operating hours: unexpected type %T", src)
	}
	return json.Unmarshal(raw, h)
}

// WeekdayKey maps a time.Weekday to the operating-hours map key.
func WeekdayKey(d time.Weekday) string {
	switch d {
	case time.Monday:
		return "monday"
	case time.Tuesday:
		return "tuesday"
	case time.Wednesday:
		return "wednesday"
	case time.Thursday:
		return "thursday"
	case time.Friday:
		return "friday"
	case time.Saturday:
		return "saturday"
	default:
		return "sunday"
	}
}

// Area is a bookable common facility (pool, hall, court).
type Area struct {
	ID                    string         `db:"id" json:"id"`
	Name                  string         `db:"name" json:"name"`
	Category              string         `db:"category" json:"category"`
	Description           string         `db:"description" json:"description,omitempty"`
	Capacity              int            `db:"capacity" json:"capacity"`
	OperatingHours        OperatingHours `db:"operating_hours" json:"operating_hours"`
	MinDurationMinutes    int            `db:"min_duration_minutes" json:"min_duration_minutes"`
	MaxDurationMinutes    int            `db:"max_duration_minutes" json:"max_duration_minutes"`
	MinLeadHours          int            `db:"min_lead_hours" json:"min_lead_hours"`
	MaxLeadHours          int            `db:"max_lead_hours" json:"max_lead_hours"`
	HourlyRate            float64        `db:"hourly_rate" json:"hourly_rate"`
	WeekendRate           *float64       `db:"weekend_rate" json:"weekend_rate,omitempty"`
	DepositAmount         float64        `db:"deposit_amount" json:"deposit_amount"`
	RequiresAuthorization bool           `db:"requires_authorization" json:"requires_authorization"`
	PermitsReservations   bool           `db:"permits_reservations" json:"permits_reservations"`
	State                 AreaState      `db:"state" json:"state"`
	RatingAverage         float64        `db:"rating_average" json:"rating_average"`
	RatingCount           int            `db:"rating_count" json:"rating_count"`
	PhotoPath             string         `db:"photo_path" json:"photo_path,omitempty"`
	CreatedAt             time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at" json:"updated_at"`
}

// AreaFilter captures filtering criteria for listing areas.
type AreaFilter struct {
	Category  string
	State     *AreaState
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// TimeSlot is one availability slot produced by the availability calculator.
type TimeSlot struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// DayAvailability is the slot grid for one area on one date. Open is false
// when the weekday has no active operating window, in which case Reason says
// why and Slots is empty.
type DayAvailability struct {
	Date   string     `json:"date"`
	Open   bool       `json:"open"`
	Reason string     `json:"reason,omitempty"`
	Slots  []TimeSlot `json:"slots"`
}
