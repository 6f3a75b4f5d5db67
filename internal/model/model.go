// Package model defines the persisted domain records shared by the
// repository, services, and scheduler. Field names are stable: they form the
// on-disk JSON encoding of every record.
package model

import "time"

// Role identifies the privilege tier of a user account.
type Role string

const (
	RoleUser       Role = "user"
	RolePremium    Role = "premium"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// IsAdmin reports whether the role carries administrative privileges.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// User represents a registered account.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"password_hash"`
	Name         string     `json:"name"`
	Role         Role       `json:"role"`
	Department   *string    `json:"department,omitempty"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// Session is a bearer-token record. The token doubles as the storage key.
type Session struct {
	Token        string    `json:"token"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	Role         Role      `json:"role"`
	RefreshToken string    `json:"refresh_token"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Valid reports whether the session is still usable at the given instant.
func (s Session) Valid(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// LotStatus describes the operational state of a parking lot.
type LotStatus string

const (
	LotStatusActive      LotStatus = "active"
	LotStatusMaintenance LotStatus = "maintenance"
	LotStatusClosed      LotStatus = "closed"
)

// ParkingLot groups slots under one physical location. TotalSlots and
// AvailableSlots are derived from the live slot records at read time, never
// treated as authoritative.
type ParkingLot struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Address        string    `json:"address"`
	Status         LotStatus `json:"status"`
	TotalSlots     int       `json:"total_slots"`
	AvailableSlots int       `json:"available_slots"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SlotStatus describes the occupancy state of a single parking slot.
type SlotStatus string

const (
	SlotStatusAvailable   SlotStatus = "available"
	SlotStatusReserved    SlotStatus = "reserved"
	SlotStatusOccupied    SlotStatus = "occupied"
	SlotStatusMaintenance SlotStatus = "maintenance"
	SlotStatusDisabled    SlotStatus = "disabled"
	SlotStatusHomeOffice  SlotStatus = "homeoffice"
)

// ParkingSlot is a single bookable space. CurrentBooking is a weak
// back-reference for lookups only; the booking record owns the relationship.
type ParkingSlot struct {
	ID                    string     `json:"id"`
	LotID                 string     `json:"lot_id"`
	SlotNumber            string     `json:"slot_number"`
	Status                SlotStatus `json:"status"`
	CurrentBooking        *string    `json:"current_booking,omitempty"`
	ReservedForDepartment *string    `json:"reserved_for_department,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// BookingStatus tracks a booking through its lifecycle.
type BookingStatus string

const (
	BookingStatusPending      BookingStatus = "pending"
	BookingStatusConfirmed    BookingStatus = "confirmed"
	BookingStatusActive       BookingStatus = "active"
	BookingStatusCompleted    BookingStatus = "completed"
	BookingStatusCancelled    BookingStatus = "cancelled"
	BookingStatusExpired      BookingStatus = "expired"
	BookingStatusNoShow       BookingStatus = "no_show"
	BookingStatusAutoReleased BookingStatus = "auto_released"
)

// IsTerminal reports whether no further lifecycle transition is possible.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingStatusCompleted, BookingStatusCancelled, BookingStatusExpired,
		BookingStatusNoShow, BookingStatusAutoReleased:
		return true
	}
	return false
}

// RecurrenceRule describes how a template booking repeats. Weekdays uses
// time.Weekday numbering. ParentID is set on generated children and links
// them back to their template.
type RecurrenceRule struct {
	Weekdays []time.Weekday `json:"weekdays"`
	Until    string         `json:"until,omitempty"`
	ParentID *string        `json:"parent_id,omitempty"`
}

// Booking reserves one slot for one user over a time window.
type Booking struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	LotID          string          `json:"lot_id"`
	SlotID         string          `json:"slot_id"`
	LotName        string          `json:"lot_name,omitempty"`
	SlotNumber     string          `json:"slot_number,omitempty"`
	VehiclePlate   *string         `json:"vehicle_plate,omitempty"`
	Status         BookingStatus   `json:"status"`
	StartTime      time.Time       `json:"start_time"`
	EndTime        time.Time       `json:"end_time"`
	CheckedInAt    *time.Time      `json:"checked_in_at,omitempty"`
	ReminderSentAt *time.Time      `json:"reminder_sent_at,omitempty"`
	Notes          *string         `json:"notes,omitempty"`
	Recurrence     *RecurrenceRule `json:"recurrence,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// WaitlistEntry queues a user for a lot on a specific day. Date uses the
// YYYY-MM-DD form so lexical order matches chronological order.
type WaitlistEntry struct {
	ID        string    `json:"id"`
	LotID     string    `json:"lot_id"`
	UserID    string    `json:"user_id"`
	Date      string    `json:"date"`
	Notified  bool      `json:"notified"`
	CreatedAt time.Time `json:"created_at"`
}

// Vehicle is a license plate registered to a user.
type Vehicle struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Plate     string    `json:"plate"`
	Make      *string   `json:"make,omitempty"`
	Model     *string   `json:"model,omitempty"`
	Color     *string   `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HomeofficeSettings records the weekdays a user works remotely, keyed by
// user id.
type HomeofficeSettings struct {
	UserID    string         `json:"user_id"`
	Weekdays  []time.Weekday `json:"weekdays"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// LayoutElement is one shape on a lot's visual floor plan.
type LayoutElement struct {
	ID         string  `json:"id"`
	Kind       string  `json:"kind"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Rotation   float64 `json:"rotation"`
	SlotNumber *string `json:"slot_number,omitempty"`
	Label      *string `json:"label,omitempty"`
}

// LotLayout is the editable floor plan for a lot, keyed by lot id.
type LotLayout struct {
	LotID     string          `json:"lot_id"`
	Width     float64         `json:"width"`
	Height    float64         `json:"height"`
	Elements  []LayoutElement `json:"elements"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// PushSubscription stores a web-push endpoint registered by a user's client.
type PushSubscription struct {
	UserID    string    `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	P256DH    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	CreatedAt time.Time `json:"created_at"`
}

// DatabaseStats summarizes record counts across the primary tables.
type DatabaseStats struct {
	Users           int `json:"users"`
	ParkingLots     int `json:"parking_lots"`
	ParkingSlots    int `json:"parking_slots"`
	Bookings        int `json:"bookings"`
	Vehicles        int `json:"vehicles"`
	Sessions        int `json:"sessions"`
	WaitlistEntries int `json:"waitlist_entries"`
}
