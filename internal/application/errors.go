package application

import "errors"

var (
	// ErrUnauthorized is returned when the caller presents no valid session.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrForbidden is returned when the acting principal lacks permission for an operation.
	ErrForbidden = errors.New("application: forbidden")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique attribute is already taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned for unknown identifiers or wrong passwords.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAccountDisabled is returned when the account is deactivated.
	ErrAccountDisabled = errors.New("application: account disabled")
	// ErrSlotUnavailable is returned when the requested slot cannot be booked.
	ErrSlotUnavailable = errors.New("application: slot unavailable")
	// ErrDepartmentRestricted is returned when a slot is reserved for another department.
	ErrDepartmentRestricted = errors.New("application: department restricted")
	// ErrInvalidStatus is returned when a lifecycle transition is not allowed
	// from the booking's current status.
	ErrInvalidStatus = errors.New("application: invalid status")
	// ErrBookingNotModifiable is returned when a booking is already in a terminal status.
	ErrBookingNotModifiable = errors.New("application: booking not modifiable")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}
