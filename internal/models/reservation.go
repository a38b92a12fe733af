package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ReservationState follows the booking lifecycle. Pending is the initial
// state only when the area requires authorization; otherwise bookings start
// confirmed.
type ReservationState string

const (
	ReservationPending          ReservationState = "pending"
	ReservationConfirmed        ReservationState = "confirmed"
	ReservationRejected         ReservationState = "rejected"
	ReservationInUse            ReservationState = "in_use"
	ReservationCompleted        ReservationState = "completed"
	ReservationCancelledByUser  ReservationState = "cancelled_by_user"
	ReservationCancelledByAdmin ReservationState = "cancelled_by_admin"
)

// Cancelled reports whether the state is one of the cancellation states.
// Cancelled and rejected reservations do not block the calendar.
func (s ReservationState) Cancelled() bool {
	return s == ReservationCancelledByUser || s == ReservationCancelledByAdmin || s == ReservationRejected
}

// Terminal reports whether no further transitions are allowed, except the
// one-time rating on completed reservations.
func (s ReservationState) Terminal() bool {
	return s == ReservationCompleted || s.Cancelled()
}

// BlockingStates are the states that occupy the calendar for overlap checks.
func BlockingStates() []string {
	return []string{
		string(ReservationPending),
		string(ReservationConfirmed),
		string(ReservationInUse),
		string(ReservationCompleted),
	}
}

// AddOnFlags mark the optional services attached to a reservation.
// Stored as a JSONB column.
type AddOnFlags struct {
	Decoration    bool `json:"decoration"`
	Audio         bool `json:"audio"`
	Lighting      bool `json:"lighting"`
	Security      bool `json:"security"`
	ExtraCleaning bool `json:"extra_cleaning"`
}

// Value implements driver.Valuer for JSONB storage.
func (f AddOnFlags) Value() (driver.Value, error) {
	return json.Marshal(f)
}

// Scan implements sql.Scanner for JSONB retrieval.
func (f *AddOnFlags) Scan(src interface{}) error {
	if src == nil {
		*f = AddOnFlags{}
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("addon flags: unexpected type %T", src)
	}
	return json.Unmarshal(raw, f)
}

// AddOnSurcharges is the fixed per-flag surcharge table.
var AddOnSurcharges = struct {
	Decoration    float64
	Audio         float64
	Lighting      float64
	Security      float64
	ExtraCleaning float64
}{
	Decoration:    50,
	Audio:         30,
	Lighting:      20,
	Security:      100,
	ExtraCleaning: 40,
}

// Cost returns the total surcharge for the enabled flags.
func (f AddOnFlags) Cost() float64 {
	var total float64
	if f.Decoration {
		total += AddOnSurcharges.Decoration
	}
	if f.Audio {
		total += AddOnSurcharges.Audio
	}
	if f.Lighting {
		total += AddOnSurcharges.Lighting
	}
	if f.Security {
		total += AddOnSurcharges.Security
	}
	if f.ExtraCleaning {
		total += AddOnSurcharges.ExtraCleaning
	}
	return total
}

// Reservation is a time-bounded booking of an Area by a resident.
// Start and end times use the "15:04" wall-clock format; comparing these
// strings lexicographically matches temporal order.
type Reservation struct {
	ID              string           `db:"id" json:"id"`
	Code            string           `db:"code" json:"code"`
	AreaID          string           `db:"area_id" json:"area_id"`
	UserID          string           `db:"user_id" json:"user_id"`
	UnitID          *string          `db:"unit_id" json:"unit_id,omitempty"`
	Date            time.Time        `db:"date" json:"date"`
	StartTime       string           `db:"start_time" json:"start_time"`
	EndTime         string           `db:"end_time" json:"end_time"`
	DurationMinutes int              `db:"duration_minutes" json:"duration_minutes"`
	EventType       string           `db:"event_type" json:"event_type,omitempty"`
	GuestCount      int              `db:"guest_count" json:"guest_count"`
	AddOns          AddOnFlags       `db:"add_ons" json:"add_ons"`
	BaseCost        float64          `db:"base_cost" json:"base_cost"`
	AddOnCost       float64          `db:"add_on_cost" json:"add_on_cost"`
	DepositAmount   float64          `db:"deposit_amount" json:"deposit_amount"`
	TotalCost       float64          `db:"total_cost" json:"total_cost"`
	State           ReservationState `db:"state" json:"state"`
	ApprovedBy      *string          `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time       `db:"approved_at" json:"approved_at,omitempty"`
	CancelReason    string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
	Rating          *int             `db:"rating" json:"rating,omitempty"`
	RatedAt         *time.Time       `db:"rated_at" json:"rated_at,omitempty"`
	Notes           string           `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// StartsAt combines the reservation date and start time into an instant.
func (r *Reservation) StartsAt() time.Time {
	t, err := time.Parse("15:04", r.StartTime)
	if err != nil {
		return r.Date
	}
	return time.Date(r.Date.Year(), r.Date.Month(), r.Date.Day(), t.Hour(), t.Minute(), 0, 0, r.Date.Location())
}

// ReservationFilter captures filtering criteria for listing reservations.
type ReservationFilter struct {
	AreaID    string
	UserID    string
	UnitID    string
	State     *ReservationState
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
