package models

import (
	"time"

	"github.com/lib/pq"
)

// NotificationTarget is the broadcast category used to resolve recipients.
type NotificationTarget string

const (
	TargetAll         NotificationTarget = "all"
	TargetResidents   NotificationTarget = "residents"
	TargetOwners      NotificationTarget = "owners"
	TargetTenants     NotificationTarget = "tenants"
	TargetAdmins      NotificationTarget = "admins"
	TargetSecurity    NotificationTarget = "security"
	TargetMaintenance NotificationTarget = "maintenance"
	TargetByBuilding  NotificationTarget = "by_building"
	TargetByUnit      NotificationTarget = "by_unit"
	TargetUsers       NotificationTarget = "users"
)

// Valid reports whether the target is a recognised broadcast category.
func (t NotificationTarget) Valid() bool {
	switch t {
	case TargetAll, TargetResidents, TargetOwners, TargetTenants, TargetAdmins,
		TargetSecurity, TargetMaintenance, TargetByBuilding, TargetByUnit, TargetUsers:
		return true
	}
	return false
}

// NotificationState tracks the dispatch lifecycle.
type NotificationState string

const (
	NotificationDraft     NotificationState = "draft"
	NotificationScheduled NotificationState = "scheduled"
	NotificationSending   NotificationState = "sending"
	NotificationSent      NotificationState = "sent"
	NotificationCancelled NotificationState = "cancelled"
)

// NotificationCategory groups notifications for display and per-user opt-out.
type NotificationCategory struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Color     string    `db:"color" json:"color,omitempty"`
	Icon      string    `db:"icon" json:"icon,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Notification is a message fanned out to a resolved recipient set.
type Notification struct {
	ID              string             `db:"id" json:"id"`
	Title           string             `db:"title" json:"title"`
	Body            string             `db:"body" json:"body"`
	CategoryID      string             `db:"category_id" json:"category_id"`
	Target          NotificationTarget `db:"target" json:"target"`
	TargetBuildings pq.StringArray     `db:"target_buildings" json:"target_buildings,omitempty"`
	TargetUnits     pq.StringArray     `db:"target_units" json:"target_units,omitempty"`
	TargetUserIDs   pq.StringArray     `db:"target_user_ids" json:"target_user_ids,omitempty"`
	ChannelPush     bool               `db:"channel_push" json:"channel_push"`
	ChannelEmail    bool               `db:"channel_email" json:"channel_email"`
	ChannelSMS      bool               `db:"channel_sms" json:"channel_sms"`
	Urgent          bool               `db:"urgent" json:"urgent"`
	State           NotificationState  `db:"state" json:"state"`
	ScheduledAt     *time.Time         `db:"scheduled_at" json:"scheduled_at,omitempty"`
	SentAt          *time.Time         `db:"sent_at" json:"sent_at,omitempty"`
	RecipientCount  int                `db:"recipient_count" json:"recipient_count"`
	SentCount       int                `db:"sent_count" json:"sent_count"`
	ReadCount       int                `db:"read_count" json:"read_count"`
	ConfirmedCount  int                `db:"confirmed_count" json:"confirmed_count"`
	ErrorCount      int                `db:"error_count" json:"error_count"`
	CreatedBy       string             `db:"created_by" json:"created_by"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `db:"updated_at" json:"updated_at"`
}

// RecipientState tracks per-recipient delivery progress.
type RecipientState string

const (
	RecipientNotSent   RecipientState = "not_sent"
	RecipientSent      RecipientState = "sent"
	RecipientDelivered RecipientState = "delivered"
	RecipientRead      RecipientState = "read"
	RecipientConfirmed RecipientState = "confirmed"
	RecipientError     RecipientState = "error"
)

// NotificationRecipient joins a notification to one recipient.
// Unique per (notification_id, user_id).
type NotificationRecipient struct {
	ID             string         `db:"id" json:"id"`
	NotificationID string         `db:"notification_id" json:"notification_id"`
	UserID         string         `db:"user_id" json:"user_id"`
	State          RecipientState `db:"state" json:"state"`
	SentAt         *time.Time     `db:"sent_at" json:"sent_at,omitempty"`
	DeliveredAt    *time.Time     `db:"delivered_at" json:"delivered_at,omitempty"`
	ReadAt         *time.Time     `db:"read_at" json:"read_at,omitempty"`
	ConfirmedAt    *time.Time     `db:"confirmed_at" json:"confirmed_at,omitempty"`
	ErrorMessage   string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// NotificationPreferences holds per-user channel opt-ins and quiet hours.
// The default allowed window is 07:00-22:00.
type NotificationPreferences struct {
	ID               string         `db:"id" json:"id"`
	UserID           string         `db:"user_id" json:"user_id"`
	PushEnabled      bool           `db:"push_enabled" json:"push_enabled"`
	EmailEnabled     bool           `db:"email_enabled" json:"email_enabled"`
	SMSEnabled       bool           `db:"sms_enabled" json:"sms_enabled"`
	AllowedFrom      string         `db:"allowed_from" json:"allowed_from"`
	AllowedUntil     string         `db:"allowed_until" json:"allowed_until"`
	WeekendQuiet     bool           `db:"weekend_quiet" json:"weekend_quiet"`
	MutedCategoryIDs pq.StringArray `db:"muted_category_ids" json:"muted_category_ids,omitempty"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// DefaultPreferences returns the preferences applied when a user has never
// saved their own.
func DefaultPreferences(userID string) *NotificationPreferences {
	return &NotificationPreferences{
		UserID:       userID,
		PushEnabled:  true,
		EmailEnabled: true,
		SMSEnabled:   false,
		AllowedFrom:  "07:00",
		AllowedUntil: "22:00",
		WeekendQuiet: false,
	}
}

// NotificationFilter captures filtering criteria for listing notifications.
type NotificationFilter struct {
	CategoryID string
	State      *NotificationState
	Urgent     *bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// DispatchResult aggregates a fan-out pass.
type DispatchResult struct {
	NotificationID string   `json:"notification_id"`
	Recipients     int      `json:"recipients"`
	Sent           int      `json:"sent"`
	Skipped        int      `json:"skipped"`
	Errors         int      `json:"errors"`
	ErrorMessages  []string `json:"error_messages,omitempty"`
}

// NotificationStats summarises engagement for the stats endpoint.
type NotificationStats struct {
	Total      int `db:"total" json:"total"`
	Sent       int `db:"sent" json:"sent"`
	Read       int `db:"read" json:"read"`
	Confirmed  int `db:"confirmed" json:"confirmed"`
	Errored    int `db:"errored" json:"errored"`
	Recipients int `db:"recipients" json:"recipients"`
}
