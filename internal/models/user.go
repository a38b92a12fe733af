package models

import "time"

// UserRole is the closed set of roles recognised by the access-control layer.
type UserRole string

const (
	RoleAdministrator UserRole = "ADMINISTRATOR"
	RoleResident      UserRole = "RESIDENT"
	RoleSecurity      UserRole = "SECURITY"
	RoleMaintenance   UserRole = "MAINTENANCE"
)

// Capability names an action a role may be granted. Authorization decisions
// go through RoleCan instead of comparing role strings at call sites.
type Capability string

const (
	CapManageUsers         Capability = "manage_users"
	CapManageUnits         Capability = "manage_units"
	CapManageAreas         Capability = "manage_areas"
	CapApproveReservations Capability = "approve_reservations"
	CapManageBilling       Capability = "manage_billing"
	CapSendNotifications   Capability = "send_notifications"
	CapManageMaintenance   Capability = "manage_maintenance"
	CapWorkMaintenance     Capability = "work_maintenance"
	CapSecurityOps         Capability = "security_ops"
	CapViewReports         Capability = "view_reports"
)

var roleCapabilities = map[UserRole]map[Capability]struct{}{
	RoleAdministrator: {
		CapManageUsers:         {},
		CapManageUnits:         {},
		CapManageAreas:         {},
		CapApproveReservations: {},
		CapManageBilling:       {},
		CapSendNotifications:   {},
		CapManageMaintenance:   {},
		CapWorkMaintenance:     {},
		CapSecurityOps:         {},
		CapViewReports:         {},
	},
	RoleResident: {},
	RoleSecurity: {
		CapSecurityOps: {},
	},
	RoleMaintenance: {
		CapWorkMaintenance: {},
	},
}

// RoleCan reports whether the role holds the given capability.
func RoleCan(role UserRole, cap Capability) bool {
	caps, ok := roleCapabilities[role]
	if !ok {
		return false
	}
	_, ok = caps[cap]
	return ok
}

// Valid reports whether the role belongs to the closed enumeration.
func (r UserRole) Valid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// User represents an application user stored in the users table. Profile
// fields (phone, emergency contact, push token) live on the same row.
type User struct {
	ID               string     `db:"id" json:"id"`
	Email            string     `db:"email" json:"email"`
	PasswordHash     string     `db:"password_hash" json:"-"`
	FullName         string     `db:"full_name" json:"full_name"`
	Role             UserRole   `db:"role" json:"role"`
	Phone            string     `db:"phone" json:"phone"`
	EmergencyContact string     `db:"emergency_contact" json:"emergency_contact,omitempty"`
	AvatarPath       string     `db:"avatar_path" json:"avatar_path,omitempty"`
	PushToken        string     `db:"push_token" json:"-"`
	Active           bool       `db:"active" json:"active"`
	LastLogin        *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Building  string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
