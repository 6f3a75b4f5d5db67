package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nash87/parkhub/internal/model"
	"github.com/nash87/parkhub/internal/persistence"
	"github.com/nash87/parkhub/internal/testfixtures"
)

// reserveSlot points a seeded slot at a seeded booking, mirroring the state
// Create leaves behind.
func reserveSlot(t *testing.T, sc *bookingScene, slotID, bookingID string) {
	t.Helper()

	err := sc.repo.Update(context.Background(), func(txn *persistence.Txn) error {
		slot, getErr := txn.GetSlot(context.Background(), slotID)
		if getErr != nil {
			return getErr
		}
		slot.Status = model.SlotStatusReserved
		slot.CurrentBooking = &bookingID
		return txn.SaveSlot(context.Background(), slot)
	})
	if err != nil {
		t.Fatalf("failed to reserve slot: %v", err)
	}
}

func TestBookingService_Create(t *testing.T) {
	t.Parallel()

	t.Run("books an available slot and reserves it", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		start := sc.clock.Now().Add(time.Hour)

		booking := sc.createBooking(t, CreateBookingParams{
			Principal:    principalFor(sc.user),
			SlotID:       sc.slot.ID,
			StartTime:    start,
			EndTime:      start.Add(2 * time.Hour),
			VehiclePlate: stringPtr(" ab-123 "),
			Notes:        stringPtr("near the entrance"),
		})

		if booking.Status != model.BookingStatusConfirmed {
			t.Errorf("expected confirmed, got %s", booking.Status)
		}
		if booking.LotName != sc.lot.Name {
			t.Errorf("expected lot name %q, got %q", sc.lot.Name, booking.LotName)
		}
		if booking.SlotNumber != sc.slot.SlotNumber {
			t.Errorf("expected slot number %q, got %q", sc.slot.SlotNumber, booking.SlotNumber)
		}
		if booking.VehiclePlate == nil || *booking.VehiclePlate != "AB123" {
			t.Errorf("expected normalized plate AB123, got %v", booking.VehiclePlate)
		}

		slot := sc.getSlot(t, sc.slot.ID)
		if slot.Status != model.SlotStatusReserved {
			t.Errorf("expected slot reserved, got %s", slot.Status)
		}
		if slot.CurrentBooking == nil || *slot.CurrentBooking != booking.ID {
			t.Errorf("expected slot to reference %s, got %v", booking.ID, slot.CurrentBooking)
		}

		calls := sc.notifier.byKind("confirmed")
		if len(calls) != 1 || calls[0].bookingID != booking.ID {
			t.Errorf("expected one confirmation for %s, got %v", booking.ID, calls)
		}
	})

	t.Run("defaults the end time to one hour", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		start := sc.clock.Now().Add(time.Hour)

		booking := sc.createBooking(t, CreateBookingParams{
			Principal: principalFor(sc.user),
			SlotID:    sc.slot.ID,
			StartTime: start,
		})
		if !booking.EndTime.Equal(start.Add(time.Hour)) {
			t.Errorf("expected end %v, got %v", start.Add(time.Hour), booking.EndTime)
		}
	})

	t.Run("honours the duration in minutes", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		start := sc.clock.Now().Add(time.Hour)

		booking := sc.createBooking(t, CreateBookingParams{
			Principal:       principalFor(sc.user),
			SlotID:          sc.slot.ID,
			StartTime:       start,
			DurationMinutes: 45,
		})
		if !booking.EndTime.Equal(start.Add(45 * time.Minute)) {
			t.Errorf("expected end %v, got %v", start.Add(45*time.Minute), booking.EndTime)
		}
	})

	t.Run("rejects a slot that is not available", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		taken := testfixtures.NewSlotFixture(sc.lot.ID, testfixtures.WithSlotStatus(model.SlotStatusReserved))
		testfixtures.SeedSlot(t, sc.repo, taken)

		_, err := sc.svc.Create(context.Background(), CreateBookingParams{
			Principal: principalFor(sc.user),
			SlotID:    taken.ID,
			StartTime: sc.clock.Now().Add(time.Hour),
		})
		if !errors.Is(err, ErrSlotUnavailable) {
			t.Fatalf("expected ErrSlotUnavailable, got %v", err)
		}
	})

	t.Run("enforces a department reservation", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		restricted := testfixtures.NewSlotFixture(sc.lot.ID, testfixtures.WithSlotDepartment("Security"))
		testfixtures.SeedSlot(t, sc.repo, restricted)
		start := sc.clock.Now().Add(time.Hour)

		_, err := sc.svc.Create(context.Background(), CreateBookingParams{
			Principal: principalFor(sc.user),
			SlotID:    restricted.ID,
			StartTime: start,
		})
		if !errors.Is(err, ErrDepartmentRestricted) {
			t.Fatalf("expected ErrDepartmentRestricted, got %v", err)
		}

		member := testfixtures.NewUserFixture(testfixtures.WithUserDepartment("Security"))
		testfixtures.SeedUser(t, sc.repo, member)
		if _, err := sc.svc.Create(context.Background(), CreateBookingParams{
			Principal: principalFor(member),
			SlotID:    restricted.ID,
			StartTime: start,
		}); err != nil {
			t.Fatalf("expected a department member to book, got %v", err)
		}

		restrictedToo := testfixtures.NewSlotFixture(sc.lot.ID, testfixtures.WithSlotDepartment("Security"))
		testfixtures.SeedSlot(t, sc.repo, restrictedToo)
		admin := testfixtures.NewUserFixture(testfixtures.WithUserRole(model.RoleAdmin))
		testfixtures.SeedUser(t, sc.repo, admin)
		if _, err := sc.svc.Create(context.Background(), CreateBookingParams{
			Principal: principalFor(admin),
			SlotID:    restrictedToo.ID,
			StartTime: start,
		}); err != nil {
			t.Fatalf("expected an administrator to bypass the restriction, got %v", err)
		}
	})

	t.Run("accumulates validation errors", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)

		_, err := sc.svc.Create(context.Background(), CreateBookingParams{Principal: principalFor(sc.user)})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected a validation error, got %v", err)
		}
		for _, field := range []string{"slot_id", "start_time"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Errorf("expected a field error for %s", field)
			}
		}
	})

	t.Run("rejects invalid windows", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		now := sc.clock.Now()

		tests := map[string]struct {
			start time.Time
			end   time.Time
			field string
		}{
			"end before start":     {start: now.Add(time.Hour), end: now, field: "end_time"},
			"shorter than minimum": {start: now.Add(time.Hour), end: now.Add(time.Hour + 10*time.Minute), field: "end_time"},
			"longer than maximum":  {start: now.Add(time.Hour), end: now.Add(26 * time.Hour), field: "end_time"},
			"start too far back":   {start: now.Add(-25 * time.Hour), end: now.Add(-24 * time.Hour), field: "start_time"},
		}

		for name, tc := range tests {
			t.Run(name, func(t *testing.T) {
				_, err := sc.svc.Create(context.Background(), CreateBookingParams{
					Principal: principalFor(sc.user),
					SlotID:    sc.slot.ID,
					StartTime: tc.start,
					EndTime:   tc.end,
				})
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected a validation error, got %v", err)
				}
				if _, ok := vErr.FieldErrors[tc.field]; !ok {
					t.Errorf("expected a field error for %s, got %v", tc.field, vErr.FieldErrors)
				}
			})
		}
	})

	t.Run("rejects a malformed plate", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)

		_, err := sc.svc.Create(context.Background(), CreateBookingParams{
			Principal:    principalFor(sc.user),
			SlotID:       sc.slot.ID,
			StartTime:    sc.clock.Now().Add(time.Hour),
			VehiclePlate: stringPtr("!"),
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected a validation error, got %v", err)
		}
		if _, ok := vErr.FieldErrors["plate"]; !ok {
			t.Errorf("expected a field error for plate, got %v", vErr.FieldErrors)
		}
	})

	t.Run("expands a weekly recurrence", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		// The reference clock sits on Tuesday 2026-03-10.
		start := sc.clock.Now().Add(time.Hour)
		until := start.AddDate(0, 0, 14)

		template := sc.createBooking(t, CreateBookingParams{
			Principal: principalFor(sc.user),
			SlotID:    sc.slot.ID,
			StartTime: start,
			EndTime:   start.Add(2 * time.Hour),
			Recurrence: &RecurrenceInput{
				Weekdays: []time.Weekday{time.Monday, time.Wednesday},
				Until:    until.Format("2006-01-02"),
			},
		})

		if template.Recurrence == nil || template.Recurrence.ParentID != nil {
			t.Fatalf("expected the template to carry the rule without a parent, got %+v", template.Recurrence)
		}

		bookings, err := sc.repo.ListBookingsByUser(context.Background(), sc.user.ID)
		if err != nil {
			t.Fatalf("failed to list bookings: %v", err)
		}
		if len(bookings) != 5 {
			t.Fatalf("expected the template plus 4 children, got %d", len(bookings))
		}

		children := 0
		for _, b := range bookings {
			if b.ID == template.ID {
				continue
			}
			children++
			if b.Recurrence == nil || b.Recurrence.ParentID == nil || *b.Recurrence.ParentID != template.ID {
				t.Errorf("expected child %s to reference the template, got %+v", b.ID, b.Recurrence)
			}
			if b.Status != model.BookingStatusConfirmed {
				t.Errorf("expected child %s confirmed, got %s", b.ID, b.Status)
			}
			if b.StartTime.Hour() != start.Hour() {
				t.Errorf("expected child %s to keep the start clock, got %v", b.ID, b.StartTime)
			}
			if got := b.EndTime.Sub(b.StartTime); got != 2*time.Hour {
				t.Errorf("expected child %s to keep the duration, got %v", b.ID, got)
			}
		}
		if children != 4 {
			t.Errorf("expected 4 children, got %d", children)
		}

		// Only the template holds the slot.
		slot := sc.getSlot(t, sc.slot.ID)
		if slot.CurrentBooking == nil || *slot.CurrentBooking != template.ID {
			t.Errorf("expected the slot to reference the template, got %v", slot.CurrentBooking)
		}
	})

	t.Run("treats an empty weekday set as a plain booking", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)

		booking := sc.createBooking(t, CreateBookingParams{
			Principal:  principalFor(sc.user),
			SlotID:     sc.slot.ID,
			StartTime:  sc.clock.Now().Add(time.Hour),
			Recurrence: &RecurrenceInput{},
		})
		if booking.Recurrence != nil {
			t.Errorf("expected no recurrence rule, got %+v", booking.Recurrence)
		}

		bookings, err := sc.repo.ListBookingsByUser(context.Background(), sc.user.ID)
		if err != nil {
			t.Fatalf("failed to list bookings: %v", err)
		}
		if len(bookings) != 1 {
			t.Errorf("expected a single booking, got %d", len(bookings))
		}
	})

	t.Run("rejects a malformed recurrence until", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)

		_, err := sc.svc.Create(context.Background(), CreateBookingParams{
			Principal: principalFor(sc.user),
			SlotID:    sc.slot.ID,
			StartTime: sc.clock.Now().Add(time.Hour),
			Recurrence: &RecurrenceInput{
				Weekdays: []time.Weekday{time.Monday},
				Until:    "soon",
			},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected a validation error, got %v", err)
		}
		if _, ok := vErr.FieldErrors["recurrence"]; !ok {
			t.Errorf("expected a field error for recurrence, got %v", vErr.FieldErrors)
		}
	})

	t.Run("a notifier failure does not fail the booking", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		sc.notifier.err = errors.New("smtp down")

		booking := sc.createBooking(t, CreateBookingParams{
			Principal: principalFor(sc.user),
			SlotID:    sc.slot.ID,
			StartTime: sc.clock.Now().Add(time.Hour),
		})
		if booking.Status != model.BookingStatusConfirmed {
			t.Errorf("expected confirmed, got %s", booking.Status)
		}
		if calls := sc.notifier.byKind("confirmed"); len(calls) != 0 {
			t.Errorf("expected no recorded deliveries, got %v", calls)
		}
	})

	t.Run("one writer wins when booking the same slot concurrently", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		start := sc.clock.Now().Add(time.Hour)

		const attempts = 8
		var created, rejected atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := sc.svc.Create(context.Background(), CreateBookingParams{
					Principal: principalFor(sc.user),
					SlotID:    sc.slot.ID,
					StartTime: start,
				})
				switch {
				case err == nil:
					created.Add(1)
				case errors.Is(err, ErrSlotUnavailable):
					rejected.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		if created.Load() != 1 {
			t.Errorf("expected exactly one booking to win, got %d", created.Load())
		}
		if rejected.Load() != attempts-1 {
			t.Errorf("expected %d rejections, got %d", attempts-1, rejected.Load())
		}
	})
}

func TestBookingService_Get(t *testing.T) {
	t.Parallel()

	sc := newBookingScene(t)
	booking := sc.createBooking(t, CreateBookingParams{
		Principal: principalFor(sc.user),
		SlotID:    sc.slot.ID,
		StartTime: sc.clock.Now().Add(time.Hour),
	})

	t.Run("returns the owner's booking", func(t *testing.T) {
		got, err := sc.svc.Get(context.Background(), booking.ID, principalFor(sc.user))
		if err != nil {
			t.Fatalf("expected the owner to read, got %v", err)
		}
		if got.ID != booking.ID {
			t.Errorf("expected %s, got %s", booking.ID, got.ID)
		}
	})

	t.Run("hides it from strangers", func(t *testing.T) {
		stranger := Principal{UserID: "someone-else", Role: model.RoleUser}
		if _, err := sc.svc.Get(context.Background(), booking.ID, stranger); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("allows an administrator", func(t *testing.T) {
		if _, err := sc.svc.Get(context.Background(), booking.ID, adminPrincipal()); err != nil {
			t.Fatalf("expected an administrator to read, got %v", err)
		}
	})

	t.Run("reports an unknown booking", func(t *testing.T) {
		if _, err := sc.svc.Get(context.Background(), "missing", adminPrincipal()); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestBookingService_ListForUser(t *testing.T) {
	t.Parallel()

	sc := newBookingScene(t)
	sc.createBooking(t, CreateBookingParams{
		Principal: principalFor(sc.user),
		SlotID:    sc.slot.ID,
		StartTime: sc.clock.Now().Add(time.Hour),
	})

	t.Run("lists the user's own bookings", func(t *testing.T) {
		bookings, err := sc.svc.ListForUser(context.Background(), sc.user.ID, principalFor(sc.user))
		if err != nil {
			t.Fatalf("expected the owner to list, got %v", err)
		}
		if len(bookings) != 1 {
			t.Errorf("expected one booking, got %d", len(bookings))
		}
	})

	t.Run("hides them from strangers", func(t *testing.T) {
		stranger := Principal{UserID: "someone-else", Role: model.RoleUser}
		if _, err := sc.svc.ListForUser(context.Background(), sc.user.ID, stranger); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("allows an administrator", func(t *testing.T) {
		bookings, err := sc.svc.ListForUser(context.Background(), sc.user.ID, adminPrincipal())
		if err != nil {
			t.Fatalf("expected an administrator to list, got %v", err)
		}
		if len(bookings) != 1 {
			t.Errorf("expected one booking, got %d", len(bookings))
		}
	})
}

func TestBookingService_CheckIn(t *testing.T) {
	t.Parallel()

	t.Run("moves a confirmed booking to active", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		booking := sc.createBooking(t, CreateBookingParams{
			Principal: principalFor(sc.user),
			SlotID:    sc.slot.ID,
			StartTime: sc.clock.Now().Add(time.Hour),
		})
		arrival := sc.clock.Advance(55 * time.Minute)

		checked, err := sc.svc.CheckIn(context.Background(), booking.ID, principalFor(sc.user))
		if err != nil {
			t.Fatalf("expected check-in to succeed, got %v", err)
		}
		if checked.Status != model.BookingStatusActive {
			t.Errorf("expected active, got %s", checked.Status)
		}
		if checked.CheckedInAt == nil || !checked.CheckedInAt.Equal(arrival) {
			t.Errorf("expected check-in at %v, got %v", arrival, checked.CheckedInAt)
		}

		slot := sc.getSlot(t, sc.slot.ID)
		if slot.Status != model.SlotStatusOccupied {
			t.Errorf("expected slot occupied, got %s", slot.Status)
		}
		if slot.CurrentBooking == nil || *slot.CurrentBooking != booking.ID {
			t.Errorf("expected slot to reference %s, got %v", booking.ID, slot.CurrentBooking)
		}
	})

	t.Run("rejects a stranger", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		booking := sc.createBooking(t, CreateBookingParams{
			Principal: principalFor(sc.user),
			SlotID:    sc.slot.ID,
			StartTime: sc.clock.Now().Add(time.Hour),
		})

		stranger := Principal{UserID: "someone-else", Role: model.RoleUser}
		if _, err := sc.svc.CheckIn(context.Background(), booking.ID, stranger); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("rejects a cancelled booking", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		booking := sc.createBooking(t, CreateBookingParams{
			Principal: principalFor(sc.user),
			SlotID:    sc.slot.ID,
			StartTime: sc.clock.Now().Add(time.Hour),
		})
		if _, err := sc.svc.Cancel(context.Background(), booking.ID, principalFor(sc.user)); err != nil {
			t.Fatalf("failed to cancel: %v", err)
		}

		if _, err := sc.svc.CheckIn(context.Background(), booking.ID, principalFor(sc.user)); !errors.Is(err, ErrInvalidStatus) {
			t.Fatalf("expected ErrInvalidStatus, got %v", err)
		}
	})

	t.Run("allows an administrator", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		booking := sc.createBooking(t, CreateBookingParams{
			Principal: principalFor(sc.user),
			SlotID:    sc.slot.ID,
			StartTime: sc.clock.Now().Add(time.Hour),
		})

		if _, err := sc.svc.CheckIn(context.Background(), booking.ID, adminPrincipal()); err != nil {
			t.Fatalf("expected an administrator to check in, got %v", err)
		}
	})
}

func TestBookingService_CheckOut(t *testing.T) {
	t.Parallel()

	t.Run("completes an active booking and frees the slot", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		booking := sc.createBooking(t, CreateBookingParams{
			Principal: principalFor(sc.user),
			SlotID:    sc.slot.ID,
			StartTime: sc.clock.Now().Add(time.Hour),
		})
		if _, err := sc.svc.CheckIn(context.Background(), booking.ID, principalFor(sc.user)); err != nil {
			t.Fatalf("failed to check in: %v", err)
		}

		completed, err := sc.svc.CheckOut(context.Background(), booking.ID, principalFor(sc.user))
		if err != nil {
			t.Fatalf("expected check-out to succeed, got %v", err)
		}
		if completed.Status != model.BookingStatusCompleted {
			t.Errorf("expected completed, got %s", completed.Status)
		}

		slot := sc.getSlot(t, sc.slot.ID)
		if slot.Status != model.SlotStatusAvailable {
			t.Errorf("expected slot available, got %s", slot.Status)
		}
		if slot.CurrentBooking != nil {
			t.Errorf("expected no slot reference, got %v", slot.CurrentBooking)
		}
	})

	t.Run("rejects a booking that is not active", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		booking := sc.createBooking(t, CreateBookingParams{
			Principal: principalFor(sc.user),
			SlotID:    sc.slot.ID,
			StartTime: sc.clock.Now().Add(time.Hour),
		})

		if _, err := sc.svc.CheckOut(context.Background(), booking.ID, principalFor(sc.user)); !errors.Is(err, ErrInvalidStatus) {
			t.Fatalf("expected ErrInvalidStatus, got %v", err)
		}
	})
}

func TestBookingService_Cancel(t *testing.T) {
	t.Parallel()

	t.Run("cancels a confirmed booking and frees the slot", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		booking := sc.createBooking(t, CreateBookingParams{
			Principal: principalFor(sc.user),
			SlotID:    sc.slot.ID,
			StartTime: sc.clock.Now().Add(time.Hour),
		})

		cancelled, err := sc.svc.Cancel(context.Background(), booking.ID, principalFor(sc.user))
		if err != nil {
			t.Fatalf("expected cancel to succeed, got %v", err)
		}
		if cancelled.Status != model.BookingStatusCancelled {
			t.Errorf("expected cancelled, got %s", cancelled.Status)
		}

		slot := sc.getSlot(t, sc.slot.ID)
		if slot.Status != model.SlotStatusAvailable {
			t.Errorf("expected slot available, got %s", slot.Status)
		}
		if slot.CurrentBooking != nil {
			t.Errorf("expected no slot reference, got %v", slot.CurrentBooking)
		}
	})

	t.Run("rejects a terminal booking", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		booking := sc.createBooking(t, CreateBookingParams{
			Principal: principalFor(sc.user),
			SlotID:    sc.slot.ID,
			StartTime: sc.clock.Now().Add(time.Hour),
		})
		if _, err := sc.svc.Cancel(context.Background(), booking.ID, principalFor(sc.user)); err != nil {
			t.Fatalf("failed to cancel: %v", err)
		}

		if _, err := sc.svc.Cancel(context.Background(), booking.ID, principalFor(sc.user)); !errors.Is(err, ErrBookingNotModifiable) {
			t.Fatalf("expected ErrBookingNotModifiable, got %v", err)
		}
	})

	t.Run("promotes the waitlist head", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		first := testfixtures.NewUserFixture()
		second := testfixtures.NewUserFixture()
		testfixtures.SeedUser(t, sc.repo, first)
		testfixtures.SeedUser(t, sc.repo, second)

		base := testfixtures.ReferenceTime()
		head := testfixtures.NewWaitlistFixture(sc.lot.ID, first.ID, testfixtures.WithWaitlistCreatedAt(base.Add(-2*time.Minute)))
		tail := testfixtures.NewWaitlistFixture(sc.lot.ID, second.ID, testfixtures.WithWaitlistCreatedAt(base.Add(-time.Minute)))
		testfixtures.SeedWaitlistEntry(t, sc.repo, head)
		testfixtures.SeedWaitlistEntry(t, sc.repo, tail)

		// Starts an hour after the reference clock, so its day matches the
		// waitlist fixtures.
		booking := sc.createBooking(t, CreateBookingParams{
			Principal: principalFor(sc.user),
			SlotID:    sc.slot.ID,
			StartTime: sc.clock.Now().Add(time.Hour),
		})
		if _, err := sc.svc.Cancel(context.Background(), booking.ID, principalFor(sc.user)); err != nil {
			t.Fatalf("failed to cancel: %v", err)
		}

		entries, err := sc.repo.ListWaitlistByLotDate(context.Background(), sc.lot.ID, head.Date)
		if err != nil {
			t.Fatalf("failed to list waitlist: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("expected both entries to remain, got %d", len(entries))
		}
		if !entries[0].Notified {
			t.Error("expected the head to be notified")
		}
		if entries[1].Notified {
			t.Error("expected the tail to stay unnotified")
		}

		calls := sc.notifier.byKind("waitlist")
		if len(calls) != 1 {
			t.Fatalf("expected one waitlist notification, got %d", len(calls))
		}
		if calls[0].userID != first.ID || calls[0].lotID != sc.lot.ID || calls[0].date != head.Date {
			t.Errorf("unexpected waitlist call %+v", calls[0])
		}
	})

	t.Run("spends only one notification per day", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		waiting := testfixtures.NewUserFixture()
		testfixtures.SeedUser(t, sc.repo, waiting)

		base := testfixtures.ReferenceTime()
		head := testfixtures.NewWaitlistFixture(sc.lot.ID, waiting.ID,
			testfixtures.WithWaitlistNotified(),
			testfixtures.WithWaitlistCreatedAt(base.Add(-2*time.Minute)))
		tail := testfixtures.NewWaitlistFixture(sc.lot.ID, waiting.ID,
			testfixtures.WithWaitlistCreatedAt(base.Add(-time.Minute)))
		testfixtures.SeedWaitlistEntry(t, sc.repo, head)
		testfixtures.SeedWaitlistEntry(t, sc.repo, tail)

		booking := sc.createBooking(t, CreateBookingParams{
			Principal: principalFor(sc.user),
			SlotID:    sc.slot.ID,
			StartTime: sc.clock.Now().Add(time.Hour),
		})
		if _, err := sc.svc.Cancel(context.Background(), booking.ID, principalFor(sc.user)); err != nil {
			t.Fatalf("failed to cancel: %v", err)
		}

		if calls := sc.notifier.byKind("waitlist"); len(calls) != 0 {
			t.Errorf("expected no waitlist notification, got %v", calls)
		}

		entries, err := sc.repo.ListWaitlistByLotDate(context.Background(), sc.lot.ID, tail.Date)
		if err != nil {
			t.Fatalf("failed to list waitlist: %v", err)
		}
		for _, entry := range entries {
			if entry.ID == tail.ID && entry.Notified {
				t.Error("expected the tail to stay unnotified")
			}
		}
	})

	t.Run("leaves a maintenance slot in maintenance", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		booking := sc.createBooking(t, CreateBookingParams{
			Principal: principalFor(sc.user),
			SlotID:    sc.slot.ID,
			StartTime: sc.clock.Now().Add(time.Hour),
		})

		err := sc.repo.Update(context.Background(), func(txn *persistence.Txn) error {
			slot, getErr := txn.GetSlot(context.Background(), sc.slot.ID)
			if getErr != nil {
				return getErr
			}
			slot.Status = model.SlotStatusMaintenance
			return txn.SaveSlot(context.Background(), slot)
		})
		if err != nil {
			t.Fatalf("failed to flag maintenance: %v", err)
		}

		if _, err := sc.svc.Cancel(context.Background(), booking.ID, principalFor(sc.user)); err != nil {
			t.Fatalf("failed to cancel: %v", err)
		}

		slot := sc.getSlot(t, sc.slot.ID)
		if slot.Status != model.SlotStatusMaintenance {
			t.Errorf("expected maintenance to stick, got %s", slot.Status)
		}
		if slot.CurrentBooking != nil {
			t.Errorf("expected the reference to clear, got %v", slot.CurrentBooking)
		}
	})
}

func TestBookingService_ReleaseOverdue(t *testing.T) {
	t.Parallel()

	t.Run("returns zero when disabled", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		released, err := sc.svc.ReleaseOverdue(context.Background(), 0)
		if err != nil {
			t.Fatalf("expected a no-op, got %v", err)
		}
		if released != 0 {
			t.Errorf("expected 0 released, got %d", released)
		}
	})

	t.Run("releases an overdue booking and cascades", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		now := sc.clock.Now()
		booking := testfixtures.NewBookingFixture(sc.user.ID, sc.lot.ID, sc.slot.ID,
			testfixtures.WithBookingWindow(now.Add(-30*time.Minute), now.Add(90*time.Minute)))
		testfixtures.SeedBooking(t, sc.repo, booking)
		reserveSlot(t, sc, sc.slot.ID, booking.ID)

		waiting := testfixtures.NewUserFixture()
		testfixtures.SeedUser(t, sc.repo, waiting)
		entry := testfixtures.NewWaitlistFixture(sc.lot.ID, waiting.ID)
		testfixtures.SeedWaitlistEntry(t, sc.repo, entry)

		released, err := sc.svc.ReleaseOverdue(context.Background(), 15*time.Minute)
		if err != nil {
			t.Fatalf("expected the sweep to succeed, got %v", err)
		}
		if released != 1 {
			t.Fatalf("expected 1 released, got %d", released)
		}

		got := sc.getBooking(t, booking.ID)
		if got.Status != model.BookingStatusAutoReleased {
			t.Errorf("expected auto_released, got %s", got.Status)
		}

		slot := sc.getSlot(t, sc.slot.ID)
		if slot.Status != model.SlotStatusAvailable {
			t.Errorf("expected slot available, got %s", slot.Status)
		}
		if slot.CurrentBooking != nil {
			t.Errorf("expected no slot reference, got %v", slot.CurrentBooking)
		}

		if calls := sc.notifier.byKind("auto_released"); len(calls) != 1 || calls[0].userID != sc.user.ID {
			t.Errorf("expected one auto-release notification for the owner, got %v", calls)
		}
		if calls := sc.notifier.byKind("waitlist"); len(calls) != 1 || calls[0].userID != waiting.ID {
			t.Errorf("expected the waitlist head to be notified, got %v", calls)
		}
	})

	t.Run("skips a checked-in booking", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		now := sc.clock.Now()
		booking := testfixtures.NewBookingFixture(sc.user.ID, sc.lot.ID, sc.slot.ID,
			testfixtures.WithBookingWindow(now.Add(-30*time.Minute), now.Add(90*time.Minute)),
			testfixtures.WithBookingStatus(model.BookingStatusActive),
			testfixtures.WithBookingCheckedInAt(now.Add(-20*time.Minute)))
		testfixtures.SeedBooking(t, sc.repo, booking)

		released, err := sc.svc.ReleaseOverdue(context.Background(), 15*time.Minute)
		if err != nil {
			t.Fatalf("expected the sweep to succeed, got %v", err)
		}
		if released != 0 {
			t.Errorf("expected 0 released, got %d", released)
		}
	})

	t.Run("skips a booking within its grace", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		now := sc.clock.Now()
		booking := testfixtures.NewBookingFixture(sc.user.ID, sc.lot.ID, sc.slot.ID,
			testfixtures.WithBookingWindow(now.Add(-10*time.Minute), now.Add(110*time.Minute)))
		testfixtures.SeedBooking(t, sc.repo, booking)

		released, err := sc.svc.ReleaseOverdue(context.Background(), 15*time.Minute)
		if err != nil {
			t.Fatalf("expected the sweep to succeed, got %v", err)
		}
		if released != 0 {
			t.Errorf("expected 0 released, got %d", released)
		}
	})

	t.Run("does not release twice", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		now := sc.clock.Now()
		booking := testfixtures.NewBookingFixture(sc.user.ID, sc.lot.ID, sc.slot.ID,
			testfixtures.WithBookingWindow(now.Add(-30*time.Minute), now.Add(90*time.Minute)))
		testfixtures.SeedBooking(t, sc.repo, booking)
		reserveSlot(t, sc, sc.slot.ID, booking.ID)

		if released, err := sc.svc.ReleaseOverdue(context.Background(), 15*time.Minute); err != nil || released != 1 {
			t.Fatalf("expected the first sweep to release 1, got %d, %v", released, err)
		}
		if released, err := sc.svc.ReleaseOverdue(context.Background(), 15*time.Minute); err != nil || released != 0 {
			t.Fatalf("expected the second sweep to release 0, got %d, %v", released, err)
		}
	})
}

func TestBookingService_SendReminders(t *testing.T) {
	t.Parallel()

	const (
		lower = 25 * time.Minute
		upper = 30 * time.Minute
	)

	t.Run("sends inside the window and marks the booking", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		now := sc.clock.Now()
		booking := testfixtures.NewBookingFixture(sc.user.ID, sc.lot.ID, sc.slot.ID,
			testfixtures.WithBookingWindow(now.Add(27*time.Minute), now.Add(2*time.Hour)))
		testfixtures.SeedBooking(t, sc.repo, booking)

		sent, err := sc.svc.SendReminders(context.Background(), lower, upper)
		if err != nil {
			t.Fatalf("expected the sweep to succeed, got %v", err)
		}
		if sent != 1 {
			t.Fatalf("expected 1 reminder, got %d", sent)
		}

		got := sc.getBooking(t, booking.ID)
		if got.ReminderSentAt == nil || !got.ReminderSentAt.Equal(now) {
			t.Errorf("expected the reminder timestamp %v, got %v", now, got.ReminderSentAt)
		}
		if calls := sc.notifier.byKind("reminder"); len(calls) != 1 || calls[0].bookingID != booking.ID {
			t.Errorf("expected one reminder for %s, got %v", booking.ID, calls)
		}
	})

	t.Run("does not send twice", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		now := sc.clock.Now()
		booking := testfixtures.NewBookingFixture(sc.user.ID, sc.lot.ID, sc.slot.ID,
			testfixtures.WithBookingWindow(now.Add(27*time.Minute), now.Add(2*time.Hour)))
		testfixtures.SeedBooking(t, sc.repo, booking)

		if sent, err := sc.svc.SendReminders(context.Background(), lower, upper); err != nil || sent != 1 {
			t.Fatalf("expected the first sweep to send 1, got %d, %v", sent, err)
		}
		if sent, err := sc.svc.SendReminders(context.Background(), lower, upper); err != nil || sent != 0 {
			t.Fatalf("expected the second sweep to send 0, got %d, %v", sent, err)
		}
		if calls := sc.notifier.byKind("reminder"); len(calls) != 1 {
			t.Errorf("expected a single delivery, got %d", len(calls))
		}
	})

	t.Run("ignores bookings outside the window", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		now := sc.clock.Now()
		early := testfixtures.NewBookingFixture(sc.user.ID, sc.lot.ID, sc.slot.ID,
			testfixtures.WithBookingWindow(now.Add(10*time.Minute), now.Add(2*time.Hour)))
		late := testfixtures.NewBookingFixture(sc.user.ID, sc.lot.ID, sc.slot.ID,
			testfixtures.WithBookingWindow(now.Add(45*time.Minute), now.Add(2*time.Hour)))
		testfixtures.SeedBooking(t, sc.repo, early)
		testfixtures.SeedBooking(t, sc.repo, late)

		sent, err := sc.svc.SendReminders(context.Background(), lower, upper)
		if err != nil {
			t.Fatalf("expected the sweep to succeed, got %v", err)
		}
		if sent != 0 {
			t.Errorf("expected 0 reminders, got %d", sent)
		}
	})

	t.Run("includes both window edges", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		now := sc.clock.Now()
		atLower := testfixtures.NewBookingFixture(sc.user.ID, sc.lot.ID, sc.slot.ID,
			testfixtures.WithBookingWindow(now.Add(lower), now.Add(2*time.Hour)))
		atUpper := testfixtures.NewBookingFixture(sc.user.ID, sc.lot.ID, sc.slot.ID,
			testfixtures.WithBookingWindow(now.Add(upper), now.Add(2*time.Hour)))
		testfixtures.SeedBooking(t, sc.repo, atLower)
		testfixtures.SeedBooking(t, sc.repo, atUpper)

		sent, err := sc.svc.SendReminders(context.Background(), lower, upper)
		if err != nil {
			t.Fatalf("expected the sweep to succeed, got %v", err)
		}
		if sent != 2 {
			t.Errorf("expected both edges to be included, got %d", sent)
		}
	})

	t.Run("skips already reminded bookings", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		now := sc.clock.Now()
		booking := testfixtures.NewBookingFixture(sc.user.ID, sc.lot.ID, sc.slot.ID,
			testfixtures.WithBookingWindow(now.Add(27*time.Minute), now.Add(2*time.Hour)),
			testfixtures.WithBookingReminderSentAt(now.Add(-5*time.Minute)))
		testfixtures.SeedBooking(t, sc.repo, booking)

		sent, err := sc.svc.SendReminders(context.Background(), lower, upper)
		if err != nil {
			t.Fatalf("expected the sweep to succeed, got %v", err)
		}
		if sent != 0 {
			t.Errorf("expected 0 reminders, got %d", sent)
		}
	})
}

func TestBookingService_JoinWaitlist(t *testing.T) {
	t.Parallel()

	t.Run("defaults the date to today", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		entry, err := sc.svc.JoinWaitlist(context.Background(), JoinWaitlistParams{
			Principal: principalFor(sc.user),
			LotID:     sc.lot.ID,
		})
		if err != nil {
			t.Fatalf("expected join to succeed, got %v", err)
		}
		if want := sc.clock.Now().UTC().Format("2006-01-02"); entry.Date != want {
			t.Errorf("expected date %s, got %s", want, entry.Date)
		}
		if entry.Notified {
			t.Error("expected a fresh entry to be unnotified")
		}
	})

	t.Run("allows duplicate entries", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		params := JoinWaitlistParams{Principal: principalFor(sc.user), LotID: sc.lot.ID, Date: "2026-03-12"}
		if _, err := sc.svc.JoinWaitlist(context.Background(), params); err != nil {
			t.Fatalf("failed to join: %v", err)
		}
		if _, err := sc.svc.JoinWaitlist(context.Background(), params); err != nil {
			t.Fatalf("expected a duplicate join to succeed, got %v", err)
		}

		entries, err := sc.repo.ListWaitlistByLotDate(context.Background(), sc.lot.ID, "2026-03-12")
		if err != nil {
			t.Fatalf("failed to list waitlist: %v", err)
		}
		if len(entries) != 2 {
			t.Errorf("expected 2 entries, got %d", len(entries))
		}
	})

	t.Run("rejects an unknown lot", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		_, err := sc.svc.JoinWaitlist(context.Background(), JoinWaitlistParams{
			Principal: principalFor(sc.user),
			LotID:     "missing",
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("rejects a malformed date", func(t *testing.T) {
		t.Parallel()

		sc := newBookingScene(t)
		_, err := sc.svc.JoinWaitlist(context.Background(), JoinWaitlistParams{
			Principal: principalFor(sc.user),
			LotID:     sc.lot.ID,
			Date:      "next tuesday",
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected a validation error, got %v", err)
		}
	})
}

func TestBookingService_CleanupWaitlist(t *testing.T) {
	t.Parallel()

	sc := newBookingScene(t)
	// The reference clock sits on 2026-03-10.
	for _, date := range []string{"2026-03-09", "2026-03-10", "2026-03-11"} {
		entry := testfixtures.NewWaitlistFixture(sc.lot.ID, sc.user.ID, testfixtures.WithWaitlistDate(date))
		testfixtures.SeedWaitlistEntry(t, sc.repo, entry)
	}

	removed, err := sc.svc.CleanupWaitlist(context.Background())
	if err != nil {
		t.Fatalf("expected cleanup to succeed, got %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}

	for _, date := range []string{"2026-03-10", "2026-03-11"} {
		entries, listErr := sc.repo.ListWaitlistByLotDate(context.Background(), sc.lot.ID, date)
		if listErr != nil {
			t.Fatalf("failed to list waitlist: %v", listErr)
		}
		if len(entries) != 1 {
			t.Errorf("expected the %s entry to survive, got %d", date, len(entries))
		}
	}
	if entries, listErr := sc.repo.ListWaitlistByLotDate(context.Background(), sc.lot.ID, "2026-03-09"); listErr != nil {
		t.Fatalf("failed to list waitlist: %v", listErr)
	} else if len(entries) != 0 {
		t.Errorf("expected the stale entry to be removed, got %d", len(entries))
	}
}
