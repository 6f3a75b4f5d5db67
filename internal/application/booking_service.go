package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nash87/parkhub/internal/model"
	"github.com/nash87/parkhub/internal/notify"
	"github.com/nash87/parkhub/internal/persistence"
	"github.com/nash87/parkhub/internal/recurrence"
)

// BookingService owns the booking lifecycle. Every transition runs its check
// and its mutation inside one Repository.Update, so the store's writer lock
// makes the slot-occupancy rule hold under concurrency. Notifier calls happen
// after commit; a delivery failure is logged and never rolls anything back.
type BookingService struct {
	repo        *persistence.Repository
	notifier    notify.Notifier
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewBookingService constructs a BookingService with the provided dependencies.
func NewBookingService(repo *persistence.Repository, notifier notify.Notifier, idGenerator func() string, now func() time.Time) *BookingService {
	return NewBookingServiceWithLogger(repo, notifier, idGenerator, now, nil)
}

// NewBookingServiceWithLogger constructs a BookingService with a specified logger.
func NewBookingServiceWithLogger(repo *persistence.Repository, notifier notify.Notifier, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BookingService {
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		repo:        repo,
		notifier:    notifier,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// notification captures a notifier call deferred until after commit.
type notification struct {
	kind string
	send func(context.Context) error
}

func (s *BookingService) dispatch(ctx context.Context, logger *slog.Logger, notes []notification) {
	if s.notifier == nil {
		return
	}
	for _, note := range notes {
		if err := note.send(ctx); err != nil {
			logger.ErrorContext(ctx, "notification failed", "kind", note.kind, "error", err)
		}
	}
}

// Create books a slot for the acting user. The slot must be available and,
// when reserved for a department, the user must belong to it unless they are
// an administrator. A recurrence input additionally creates one child booking
// per matching day after the template's own day.
func (s *BookingService) Create(ctx context.Context, params CreateBookingParams) (booking model.Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.repo == nil {
		err = fmt.Errorf("repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "Create",
		"user_id", params.Principal.UserID,
		"slot_id", params.SlotID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("booking_id", booking.ID).InfoContext(ctx, "booking created")
	}()

	now := s.now()
	start := params.StartTime
	end := params.EndTime
	if end.IsZero() && !start.IsZero() {
		duration := defaultBookingDuration
		if params.DurationMinutes > 0 {
			duration = time.Duration(params.DurationMinutes) * time.Minute
		}
		end = start.Add(duration)
	}

	vErr := &ValidationError{}
	if params.SlotID == "" {
		vErr.add("slot_id", "slot is required")
	}
	if start.IsZero() {
		vErr.add("start_time", "start time is required")
	} else {
		switch duration := end.Sub(start); {
		case !end.After(start):
			vErr.add("end_time", "must be after start time")
		case duration < minBookingDuration:
			vErr.add("end_time", "booking must run at least 15 minutes")
		case duration > maxBookingDuration:
			vErr.add("end_time", "booking cannot exceed 24 hours")
		}
		if start.Before(now.Add(-maxBookingBackdate)) {
			vErr.add("start_time", "start time is too far in the past")
		}
	}

	var plate *string
	if params.VehiclePlate != nil && strings.TrimSpace(*params.VehiclePlate) != "" {
		normalized := normalizePlate(*params.VehiclePlate)
		validatePlate(normalized, vErr)
		plate = &normalized
	}

	var until time.Time
	if params.Recurrence != nil {
		validateWeekdays(params.Recurrence.Weekdays, "recurrence", vErr)
		switch {
		case params.Recurrence.Until == "":
			until = start.Add(defaultRecurrenceSpan)
		default:
			parsed, parseErr := time.ParseInLocation(dateLayout, params.Recurrence.Until, start.Location())
			if parseErr != nil {
				vErr.add("recurrence", "until must be a YYYY-MM-DD date")
			} else {
				until = parsed
			}
		}
	}

	if vErr.HasErrors() {
		err = vErr
		return
	}

	var notes []notification
	err = s.repo.Update(ctx, func(txn *persistence.Txn) error {
		user, getErr := txn.GetUser(ctx, params.Principal.UserID)
		if getErr != nil {
			return getErr
		}
		slot, getErr := txn.GetSlot(ctx, params.SlotID)
		if getErr != nil {
			return getErr
		}
		if slot.Status != model.SlotStatusAvailable {
			return fmt.Errorf("%w: slot is %s", ErrSlotUnavailable, slot.Status)
		}
		if slot.ReservedForDepartment != nil && !params.Principal.IsAdmin() {
			if user.Department == nil || *user.Department != *slot.ReservedForDepartment {
				return ErrDepartmentRestricted
			}
		}
		lot, getErr := txn.GetLot(ctx, slot.LotID)
		if getErr != nil {
			return getErr
		}

		created := model.Booking{
			ID:           s.idGenerator(),
			UserID:       user.ID,
			LotID:        lot.ID,
			SlotID:       slot.ID,
			LotName:      lot.Name,
			SlotNumber:   slot.SlotNumber,
			VehiclePlate: plate,
			Status:       model.BookingStatusConfirmed,
			StartTime:    start,
			EndTime:      end,
			Notes:        normalizeOptionalString(params.Notes),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if params.Recurrence != nil && len(params.Recurrence.Weekdays) > 0 {
			created.Recurrence = &model.RecurrenceRule{
				Weekdays: params.Recurrence.Weekdays,
				Until:    until.Format(dateLayout),
			}
		}
		if saveErr := txn.SaveBooking(ctx, created); saveErr != nil {
			return saveErr
		}

		if created.Recurrence != nil {
			if childErr := s.createRecurrenceChildren(ctx, txn, created, until); childErr != nil {
				return childErr
			}
		}

		slot.Status = model.SlotStatusReserved
		slot.CurrentBooking = &created.ID
		slot.UpdatedAt = now
		if saveErr := txn.SaveSlot(ctx, slot); saveErr != nil {
			return saveErr
		}

		booking = created
		notes = append(notes, notification{kind: "booking_confirmed", send: func(ctx context.Context) error {
			return s.notifier.BookingConfirmed(ctx, user, created)
		}})
		return nil
	})
	if err != nil {
		err = mapRepoError(err)
		return
	}

	s.dispatch(ctx, logger, notes)
	return
}

// createRecurrenceChildren persists one confirmed child booking per occurrence
// of the template's weekday pattern. Children reference the template through
// ParentID and never touch slot state; day-of collisions surface when the
// child itself is acted on.
func (s *BookingService) createRecurrenceChildren(ctx context.Context, txn *persistence.Txn, template model.Booking, until time.Time) error {
	occurrences := recurrence.Expand(template.StartTime, template.EndTime, template.Recurrence.Weekdays, until)
	for _, occ := range occurrences {
		child := template
		child.ID = s.idGenerator()
		child.StartTime = occ.Start
		child.EndTime = occ.End
		rule := *template.Recurrence
		rule.ParentID = &template.ID
		child.Recurrence = &rule
		if err := txn.SaveBooking(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

// Get returns a booking visible to the actor: its owner or an administrator.
func (s *BookingService) Get(ctx context.Context, bookingID string, actor Principal) (model.Booking, error) {
	if s == nil {
		return model.Booking{}, fmt.Errorf("BookingService is nil")
	}
	if s.repo == nil {
		return model.Booking{}, fmt.Errorf("repository not configured")
	}

	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, mapRepoError(err)
	}
	if booking.UserID != actor.UserID && !actor.IsAdmin() {
		return model.Booking{}, ErrForbidden
	}
	return booking, nil
}

// ListForUser returns a user's bookings. Non-administrators may only list
// their own.
func (s *BookingService) ListForUser(ctx context.Context, userID string, actor Principal) ([]model.Booking, error) {
	if s == nil {
		return nil, fmt.Errorf("BookingService is nil")
	}
	if s.repo == nil {
		return nil, fmt.Errorf("repository not configured")
	}
	if userID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	bookings, err := s.repo.ListBookingsByUser(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return bookings, nil
}

// CheckIn moves a confirmed booking to active and marks its slot occupied.
func (s *BookingService) CheckIn(ctx context.Context, bookingID string, actor Principal) (booking model.Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.repo == nil {
		err = fmt.Errorf("repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CheckIn", "booking_id", bookingID, "actor_id", actor.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "check-in failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking checked in")
	}()

	now := s.now()
	err = s.repo.Update(ctx, func(txn *persistence.Txn) error {
		current, getErr := txn.GetBooking(ctx, bookingID)
		if getErr != nil {
			return getErr
		}
		if current.UserID != actor.UserID && !actor.IsAdmin() {
			return ErrForbidden
		}
		if current.Status != model.BookingStatusConfirmed {
			return fmt.Errorf("%w: cannot check in from %s", ErrInvalidStatus, current.Status)
		}

		checkedIn := now
		current.Status = model.BookingStatusActive
		current.CheckedInAt = &checkedIn
		current.UpdatedAt = now
		if saveErr := txn.SaveBooking(ctx, current); saveErr != nil {
			return saveErr
		}

		slot, getErr := txn.GetSlot(ctx, current.SlotID)
		if getErr != nil {
			return getErr
		}
		slot.Status = model.SlotStatusOccupied
		slot.CurrentBooking = &current.ID
		slot.UpdatedAt = now
		if saveErr := txn.SaveSlot(ctx, slot); saveErr != nil {
			return saveErr
		}

		booking = current
		return nil
	})
	if err != nil {
		err = mapRepoError(err)
	}
	return
}

// CheckOut completes an active booking and frees its slot.
func (s *BookingService) CheckOut(ctx context.Context, bookingID string, actor Principal) (booking model.Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.repo == nil {
		err = fmt.Errorf("repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CheckOut", "booking_id", bookingID, "actor_id", actor.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "check-out failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking checked out")
	}()

	now := s.now()
	err = s.repo.Update(ctx, func(txn *persistence.Txn) error {
		current, getErr := txn.GetBooking(ctx, bookingID)
		if getErr != nil {
			return getErr
		}
		if current.UserID != actor.UserID && !actor.IsAdmin() {
			return ErrForbidden
		}
		if current.Status != model.BookingStatusActive {
			return fmt.Errorf("%w: cannot check out from %s", ErrInvalidStatus, current.Status)
		}

		current.Status = model.BookingStatusCompleted
		current.UpdatedAt = now
		if saveErr := txn.SaveBooking(ctx, current); saveErr != nil {
			return saveErr
		}
		if freeErr := s.freeSlot(ctx, txn, current, now); freeErr != nil {
			return freeErr
		}

		booking = current
		return nil
	})
	if err != nil {
		err = mapRepoError(err)
	}
	return
}

// Cancel moves a non-terminal booking to cancelled, frees its slot, and
// promotes the head of the lot's waitlist for the booking's day.
func (s *BookingService) Cancel(ctx context.Context, bookingID string, actor Principal) (booking model.Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.repo == nil {
		err = fmt.Errorf("repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "Cancel", "booking_id", bookingID, "actor_id", actor.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "cancel failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking cancelled")
	}()

	now := s.now()
	var notes []notification
	err = s.repo.Update(ctx, func(txn *persistence.Txn) error {
		current, getErr := txn.GetBooking(ctx, bookingID)
		if getErr != nil {
			return getErr
		}
		if current.UserID != actor.UserID && !actor.IsAdmin() {
			return ErrForbidden
		}
		if current.Status.IsTerminal() {
			return fmt.Errorf("%w: booking is %s", ErrBookingNotModifiable, current.Status)
		}

		current.Status = model.BookingStatusCancelled
		current.UpdatedAt = now
		if saveErr := txn.SaveBooking(ctx, current); saveErr != nil {
			return saveErr
		}
		if freeErr := s.freeSlot(ctx, txn, current, now); freeErr != nil {
			return freeErr
		}

		note, cascadeErr := s.promoteWaitlist(ctx, txn, current.LotID, current.StartTime.UTC().Format(dateLayout))
		if cascadeErr != nil {
			return cascadeErr
		}
		if note != nil {
			notes = append(notes, *note)
		}

		booking = current
		return nil
	})
	if err != nil {
		err = mapRepoError(err)
		return
	}

	s.dispatch(ctx, logger, notes)
	return
}

// ReleaseOverdue auto-releases confirmed bookings that were never checked in
// once the grace window after their start time has elapsed. Each booking is
// re-validated and released in its own transaction; failures are logged and
// the sweep continues. It returns the number of bookings released.
func (s *BookingService) ReleaseOverdue(ctx context.Context, grace time.Duration) (released int, err error) {
	if s == nil {
		return 0, fmt.Errorf("BookingService is nil")
	}
	if s.repo == nil {
		return 0, fmt.Errorf("repository not configured")
	}
	if grace <= 0 {
		return 0, nil
	}

	logger := s.loggerWith(ctx, "ReleaseOverdue", "grace", grace.String())

	now := s.now()
	var candidates []string
	err = s.repo.View(ctx, func(txn *persistence.Txn) error {
		bookings, listErr := txn.ListBookings(ctx)
		if listErr != nil {
			return listErr
		}
		for _, b := range bookings {
			if bookingOverdue(b, now, grace) {
				candidates = append(candidates, b.ID)
			}
		}
		return nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "overdue scan failed", "error", err)
		return 0, err
	}

	for _, id := range candidates {
		var notes []notification
		didRelease := false
		updateErr := s.repo.Update(ctx, func(txn *persistence.Txn) error {
			current, getErr := txn.GetBooking(ctx, id)
			if errors.Is(getErr, persistence.ErrNotFound) {
				return nil
			}
			if getErr != nil {
				return getErr
			}
			// The state may have moved between the scan and this transaction.
			if !bookingOverdue(current, now, grace) {
				return nil
			}

			current.Status = model.BookingStatusAutoReleased
			current.UpdatedAt = now
			if saveErr := txn.SaveBooking(ctx, current); saveErr != nil {
				return saveErr
			}
			if freeErr := s.freeSlot(ctx, txn, current, now); freeErr != nil {
				return freeErr
			}

			note, cascadeErr := s.promoteWaitlist(ctx, txn, current.LotID, current.StartTime.UTC().Format(dateLayout))
			if cascadeErr != nil {
				return cascadeErr
			}
			if note != nil {
				notes = append(notes, *note)
			}

			user, userErr := txn.GetUser(ctx, current.UserID)
			if userErr == nil {
				released := current
				notes = append(notes, notification{kind: "booking_auto_released", send: func(ctx context.Context) error {
					return s.notifier.BookingAutoReleased(ctx, user, released)
				}})
			} else if !errors.Is(userErr, persistence.ErrNotFound) {
				return userErr
			}

			didRelease = true
			return nil
		})
		if updateErr != nil {
			logger.ErrorContext(ctx, "auto-release failed", "booking_id", id, "error", updateErr)
			continue
		}
		if didRelease {
			released++
			s.dispatch(ctx, logger, notes)
		}
	}

	if released > 0 {
		logger.With("released", released).InfoContext(ctx, "overdue bookings released")
	}
	return released, nil
}

// SendReminders notifies owners of confirmed bookings starting within the
// given window, at most once per booking: the reminder timestamp is persisted
// before the notifier runs. It returns the number of reminders marked.
func (s *BookingService) SendReminders(ctx context.Context, lower, upper time.Duration) (sent int, err error) {
	if s == nil {
		return 0, fmt.Errorf("BookingService is nil")
	}
	if s.repo == nil {
		return 0, fmt.Errorf("repository not configured")
	}

	logger := s.loggerWith(ctx, "SendReminders")

	now := s.now()
	var candidates []string
	err = s.repo.View(ctx, func(txn *persistence.Txn) error {
		bookings, listErr := txn.ListBookings(ctx)
		if listErr != nil {
			return listErr
		}
		for _, b := range bookings {
			if reminderDue(b, now, lower, upper) {
				candidates = append(candidates, b.ID)
			}
		}
		return nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "reminder scan failed", "error", err)
		return 0, err
	}

	for _, id := range candidates {
		var notes []notification
		didMark := false
		updateErr := s.repo.Update(ctx, func(txn *persistence.Txn) error {
			current, getErr := txn.GetBooking(ctx, id)
			if errors.Is(getErr, persistence.ErrNotFound) {
				return nil
			}
			if getErr != nil {
				return getErr
			}
			if !reminderDue(current, now, lower, upper) {
				return nil
			}

			remindedAt := now
			current.ReminderSentAt = &remindedAt
			current.UpdatedAt = now
			if saveErr := txn.SaveBooking(ctx, current); saveErr != nil {
				return saveErr
			}

			user, userErr := txn.GetUser(ctx, current.UserID)
			if userErr == nil {
				reminded := current
				notes = append(notes, notification{kind: "booking_reminder", send: func(ctx context.Context) error {
					return s.notifier.BookingReminder(ctx, user, reminded)
				}})
			} else if !errors.Is(userErr, persistence.ErrNotFound) {
				return userErr
			}

			didMark = true
			return nil
		})
		if updateErr != nil {
			logger.ErrorContext(ctx, "reminder failed", "booking_id", id, "error", updateErr)
			continue
		}
		if didMark {
			sent++
			s.dispatch(ctx, logger, notes)
		}
	}

	if sent > 0 {
		logger.With("sent", sent).InfoContext(ctx, "booking reminders sent")
	}
	return sent, nil
}

// JoinWaitlist queues the acting user for a lot on a given day. The date
// defaults to today (UTC). Duplicate entries are allowed; ordering is by
// creation time.
func (s *BookingService) JoinWaitlist(ctx context.Context, params JoinWaitlistParams) (entry model.WaitlistEntry, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.repo == nil {
		err = fmt.Errorf("repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "JoinWaitlist",
		"user_id", params.Principal.UserID,
		"lot_id", params.LotID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to join waitlist", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("entry_id", entry.ID, "date", entry.Date).InfoContext(ctx, "joined waitlist")
	}()

	now := s.now()
	date := params.Date
	if date == "" {
		date = now.UTC().Format(dateLayout)
	} else if _, parseErr := time.Parse(dateLayout, date); parseErr != nil {
		vErr := &ValidationError{}
		vErr.add("date", "must be a YYYY-MM-DD date")
		err = vErr
		return
	}
	if params.LotID == "" {
		vErr := &ValidationError{}
		vErr.add("lot_id", "lot is required")
		err = vErr
		return
	}

	err = s.repo.Update(ctx, func(txn *persistence.Txn) error {
		if _, getErr := txn.GetLot(ctx, params.LotID); getErr != nil {
			return getErr
		}
		created := model.WaitlistEntry{
			ID:        s.idGenerator(),
			LotID:     params.LotID,
			UserID:    params.Principal.UserID,
			Date:      date,
			Notified:  false,
			CreatedAt: now,
		}
		if saveErr := txn.SaveWaitlistEntry(ctx, created); saveErr != nil {
			return saveErr
		}
		entry = created
		return nil
	})
	if err != nil {
		err = mapRepoError(err)
	}
	return
}

// CleanupWaitlist removes waitlist entries dated before today (UTC) and
// returns how many were deleted.
func (s *BookingService) CleanupWaitlist(ctx context.Context) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("BookingService is nil")
	}
	if s.repo == nil {
		return 0, fmt.Errorf("repository not configured")
	}

	logger := s.loggerWith(ctx, "CleanupWaitlist")

	today := s.now().UTC().Format(dateLayout)
	removed, err := s.repo.DeleteWaitlistBefore(ctx, today)
	if err != nil {
		logger.ErrorContext(ctx, "waitlist cleanup failed", "error", err)
		return 0, err
	}
	if removed > 0 {
		logger.With("removed", removed).InfoContext(ctx, "waitlist entries cleaned up")
	}
	return removed, nil
}

// freeSlot returns the slot behind a finished booking to the pool. The
// back-reference is cleared only when it still points at this booking, and
// only the engine-owned statuses flip back to available; an admin-imposed
// status such as maintenance stays put. A missing slot is tolerated.
func (s *BookingService) freeSlot(ctx context.Context, txn *persistence.Txn, booking model.Booking, now time.Time) error {
	slot, err := txn.GetSlot(ctx, booking.SlotID)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if slot.CurrentBooking == nil || *slot.CurrentBooking != booking.ID {
		return nil
	}
	slot.CurrentBooking = nil
	if slot.Status == model.SlotStatusReserved || slot.Status == model.SlotStatusOccupied {
		slot.Status = model.SlotStatusAvailable
	}
	slot.UpdatedAt = now
	return txn.SaveSlot(ctx, slot)
}

// promoteWaitlist marks the head entry for (lot, date) as notified and
// returns the notifier call to run after commit. Only the head is promoted;
// an already-notified head means the day's notification was spent. Entries
// are removed by cleanup, never here.
func (s *BookingService) promoteWaitlist(ctx context.Context, txn *persistence.Txn, lotID, date string) (*notification, error) {
	entries, err := txn.ListWaitlistByLotDate(ctx, lotID, date)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	head := entries[0]
	if head.Notified {
		return nil, nil
	}

	head.Notified = true
	if err := txn.SaveWaitlistEntry(ctx, head); err != nil {
		return nil, err
	}

	user, err := txn.GetUser(ctx, head.UserID)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	lot, err := txn.GetLot(ctx, lotID)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	note := notification{kind: "waitlist_slot_available", send: func(ctx context.Context) error {
		return s.notifier.WaitlistSlotAvailable(ctx, user, lot, date)
	}}
	return &note, nil
}

func bookingOverdue(b model.Booking, now time.Time, grace time.Duration) bool {
	return b.Status == model.BookingStatusConfirmed && b.CheckedInAt == nil && now.Sub(b.StartTime) >= grace
}

func reminderDue(b model.Booking, now time.Time, lower, upper time.Duration) bool {
	if b.Status != model.BookingStatusConfirmed || b.ReminderSentAt != nil {
		return false
	}
	untilStart := b.StartTime.Sub(now)
	return untilStart >= lower && untilStart <= upper
}
