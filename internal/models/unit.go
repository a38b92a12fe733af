package models

import "time"

// UnitState models the occupancy lifecycle of a housing unit.
type UnitState string

const (
	UnitOccupied    UnitState = "occupied"
	UnitVacant      UnitState = "vacant"
	UnitMaintenance UnitState = "maintenance"
)

// HousingUnit is an apartment or house inside the condominium. Owner and
// tenant reference users; a user is "associated" with a unit when they
// appear in either column.
type HousingUnit struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Building  string    `db:"building" json:"building"`
	Number    string    `db:"number" json:"number"`
	Floor     int       `db:"floor" json:"floor"`
	AreaM2    float64   `db:"area_m2" json:"area_m2"`
	Bedrooms  int       `db:"bedrooms" json:"bedrooms"`
	OwnerID   *string   `db:"owner_id" json:"owner_id,omitempty"`
	TenantID  *string   `db:"tenant_id" json:"tenant_id,omitempty"`
	State     UnitState `db:"state" json:"state"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// UnitFilter captures filtering criteria for listing units.
type UnitFilter struct {
	Building  string
	State     *UnitState
	OccupByID string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
