// Package testfixtures provides deterministic records, a controllable clock,
// and a temporary repository for tests across the module.
package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nash87/parkhub/internal/model"
)

var (
	userCounter     uint64
	lotCounter      uint64
	slotCounter     uint64
	bookingCounter  uint64
	waitlistCounter uint64
)

var referenceTime = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
// It falls on a Tuesday.
func ReferenceTime() time.Time {
	return referenceTime
}

// UserOption configures a generated user.
type UserOption func(*model.User)

// NewUserFixture returns a deterministic active user with optional overrides.
func NewUserFixture(opts ...UserOption) model.User {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(-time.Duration(idx) * time.Hour)
	user := model.User{
		ID:           id,
		Username:     fmt.Sprintf("driver%03d", idx),
		Email:        fmt.Sprintf("%s@example.com", id),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		Name:         fmt.Sprintf("Driver %03d", idx),
		Role:         model.RoleUser,
		IsActive:     true,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&user)
	}
	return user
}

// WithUserID overrides the generated user id.
func WithUserID(id string) UserOption {
	return func(u *model.User) {
		u.ID = id
	}
}

// WithUserRole sets the user's role.
func WithUserRole(role model.Role) UserOption {
	return func(u *model.User) {
		u.Role = role
	}
}

// WithUserDepartment sets the user's department.
func WithUserDepartment(department string) UserOption {
	return func(u *model.User) {
		u.Department = &department
	}
}

// WithUserInactive marks the account disabled.
func WithUserInactive() UserOption {
	return func(u *model.User) {
		u.IsActive = false
	}
}

// WithUserPasswordHash overrides the stored password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(u *model.User) {
		u.PasswordHash = hash
	}
}

// LotOption configures a generated lot.
type LotOption func(*model.ParkingLot)

// NewLotFixture returns a deterministic active lot with optional overrides.
func NewLotFixture(opts ...LotOption) model.ParkingLot {
	idx := atomic.AddUint64(&lotCounter, 1)
	created := referenceTime.Add(-time.Duration(idx) * time.Hour)
	lot := model.ParkingLot{
		ID:        fmt.Sprintf("lot-%03d", idx),
		Name:      fmt.Sprintf("Lot %03d", idx),
		Address:   fmt.Sprintf("%d Main Street", idx),
		Status:    model.LotStatusActive,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&lot)
	}
	return lot
}

// WithLotID overrides the generated lot id.
func WithLotID(id string) LotOption {
	return func(l *model.ParkingLot) {
		l.ID = id
	}
}

// WithLotStatus sets the lot's operational status.
func WithLotStatus(status model.LotStatus) LotOption {
	return func(l *model.ParkingLot) {
		l.Status = status
	}
}

// SlotOption configures a generated slot.
type SlotOption func(*model.ParkingSlot)

// NewSlotFixture returns a deterministic available slot in the given lot.
func NewSlotFixture(lotID string, opts ...SlotOption) model.ParkingSlot {
	idx := atomic.AddUint64(&slotCounter, 1)
	created := referenceTime.Add(-time.Duration(idx) * time.Hour)
	slot := model.ParkingSlot{
		ID:         fmt.Sprintf("slot-%03d", idx),
		LotID:      lotID,
		SlotNumber: fmt.Sprintf("A-%03d", idx),
		Status:     model.SlotStatusAvailable,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	for _, opt := range opts {
		opt(&slot)
	}
	return slot
}

// WithSlotID overrides the generated slot id.
func WithSlotID(id string) SlotOption {
	return func(s *model.ParkingSlot) {
		s.ID = id
	}
}

// WithSlotStatus sets the slot's status.
func WithSlotStatus(status model.SlotStatus) SlotOption {
	return func(s *model.ParkingSlot) {
		s.Status = status
	}
}

// WithSlotDepartment reserves the slot for a department.
func WithSlotDepartment(department string) SlotOption {
	return func(s *model.ParkingSlot) {
		s.ReservedForDepartment = &department
	}
}

// WithSlotCurrentBooking sets the slot's booking back-reference.
func WithSlotCurrentBooking(bookingID string) SlotOption {
	return func(s *model.ParkingSlot) {
		s.CurrentBooking = &bookingID
	}
}

// BookingOption configures a generated booking.
type BookingOption func(*model.Booking)

// NewBookingFixture returns a deterministic confirmed booking starting at
// ReferenceTime and lasting two hours.
func NewBookingFixture(userID, lotID, slotID string, opts ...BookingOption) model.Booking {
	idx := atomic.AddUint64(&bookingCounter, 1)
	booking := model.Booking{
		ID:         fmt.Sprintf("booking-%03d", idx),
		UserID:     userID,
		LotID:      lotID,
		SlotID:     slotID,
		Status:     model.BookingStatusConfirmed,
		StartTime:  referenceTime,
		EndTime:    referenceTime.Add(2 * time.Hour),
		CreatedAt:  referenceTime.Add(-time.Hour),
		UpdatedAt:  referenceTime.Add(-time.Hour),
		LotName:    "Lot",
		SlotNumber: "A-1",
	}
	for _, opt := range opts {
		opt(&booking)
	}
	return booking
}

// WithBookingID overrides the generated booking id.
func WithBookingID(id string) BookingOption {
	return func(b *model.Booking) {
		b.ID = id
	}
}

// WithBookingStatus sets the booking's lifecycle status.
func WithBookingStatus(status model.BookingStatus) BookingOption {
	return func(b *model.Booking) {
		b.Status = status
	}
}

// WithBookingWindow sets the booking's start and end times.
func WithBookingWindow(start, end time.Time) BookingOption {
	return func(b *model.Booking) {
		b.StartTime = start
		b.EndTime = end
	}
}

// WithBookingCheckedInAt marks the booking as checked in at t.
func WithBookingCheckedInAt(t time.Time) BookingOption {
	return func(b *model.Booking) {
		b.CheckedInAt = &t
	}
}

// WithBookingReminderSentAt marks the reminder as already sent at t.
func WithBookingReminderSentAt(t time.Time) BookingOption {
	return func(b *model.Booking) {
		b.ReminderSentAt = &t
	}
}

// WaitlistOption configures a generated waitlist entry.
type WaitlistOption func(*model.WaitlistEntry)

// NewWaitlistFixture returns a deterministic un-notified waitlist entry for
// the lot on ReferenceTime's date.
func NewWaitlistFixture(lotID, userID string, opts ...WaitlistOption) model.WaitlistEntry {
	idx := atomic.AddUint64(&waitlistCounter, 1)
	entry := model.WaitlistEntry{
		ID:        fmt.Sprintf("wait-%03d", idx),
		LotID:     lotID,
		UserID:    userID,
		Date:      referenceTime.Format("2006-01-02"),
		Notified:  false,
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Second),
	}
	for _, opt := range opts {
		opt(&entry)
	}
	return entry
}

// WithWaitlistDate sets the entry's date.
func WithWaitlistDate(date string) WaitlistOption {
	return func(e *model.WaitlistEntry) {
		e.Date = date
	}
}

// WithWaitlistNotified marks the entry as already notified.
func WithWaitlistNotified() WaitlistOption {
	return func(e *model.WaitlistEntry) {
		e.Notified = true
	}
}

// WithWaitlistCreatedAt sets the entry's creation time, which decides its
// queue position.
func WithWaitlistCreatedAt(t time.Time) WaitlistOption {
	return func(e *model.WaitlistEntry) {
		e.CreatedAt = t
	}
}
