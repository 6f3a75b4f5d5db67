package application

import (
	"time"

	"github.com/nash87/parkhub/internal/model"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Role   model.Role
}

// IsAdmin reports whether the principal carries administrative privileges.
func (p Principal) IsAdmin() bool {
	return p.Role.IsAdmin()
}

// RegisterParams captures the data required to create an account.
type RegisterParams struct {
	Username   string
	Email      string
	Password   string
	Name       string
	Department *string
}

// LoginParams captures the data required to authenticate. Identifier is a
// username or an email address.
type LoginParams struct {
	Identifier string
	Password   string
}

// AuthResult captures the outcome of a successful register or login.
type AuthResult struct {
	User    model.User
	Session model.Session
}

// RecurrenceInput describes an optional repeat pattern for a new booking.
// Until is a YYYY-MM-DD date; empty means 90 days after the start.
type RecurrenceInput struct {
	Weekdays []time.Weekday
	Until    string
}

// CreateBookingParams captures the data required to create a booking. When
// EndTime is zero, DurationMinutes is used; when both are absent the booking
// runs one hour.
type CreateBookingParams struct {
	Principal       Principal
	SlotID          string
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
	VehiclePlate    *string
	Notes           *string
	Recurrence      *RecurrenceInput
}

// JoinWaitlistParams captures the data required to join a lot's waitlist.
// Date is a YYYY-MM-DD day; empty means today (UTC).
type JoinWaitlistParams struct {
	Principal Principal
	LotID     string
	Date      string
}

// LotInput captures caller provided parking lot fields.
type LotInput struct {
	Name    string
	Address string
	Status  model.LotStatus
}

// SlotInput captures caller provided parking slot fields.
type SlotInput struct {
	LotID                 string
	SlotNumber            string
	ReservedForDepartment *string
}

// ProfileInput captures the user-editable profile fields. A nil Department
// clears the stored value.
type ProfileInput struct {
	Name       string
	Department *string
}

// VehicleInput captures caller provided vehicle fields. The plate is
// normalized before persistence.
type VehicleInput struct {
	Plate string
	Make  *string
	Model *string
	Color *string
}
