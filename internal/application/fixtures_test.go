package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nash87/parkhub/internal/model"
	"github.com/nash87/parkhub/internal/persistence"
	"github.com/nash87/parkhub/internal/testfixtures"
)

func principalFor(user model.User) Principal {
	return Principal{UserID: user.ID, Role: user.Role}
}

func adminPrincipal() Principal {
	return Principal{UserID: "admin-actor", Role: model.RoleAdmin}
}

func stringPtr(value string) *string {
	return &value
}

type notifierCall struct {
	kind      string
	userID    string
	bookingID string
	lotID     string
	date      string
}

// captureNotifier records notifier calls for assertions. A non-nil err makes
// every delivery fail without recording.
type captureNotifier struct {
	mu    sync.Mutex
	calls []notifierCall
	err   error
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{}
}

func (n *captureNotifier) record(call notifierCall) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.calls = append(n.calls, call)
	return nil
}

func (n *captureNotifier) BookingConfirmed(ctx context.Context, user model.User, booking model.Booking) error {
	return n.record(notifierCall{kind: "confirmed", userID: user.ID, bookingID: booking.ID})
}

func (n *captureNotifier) BookingReminder(ctx context.Context, user model.User, booking model.Booking) error {
	return n.record(notifierCall{kind: "reminder", userID: user.ID, bookingID: booking.ID})
}

func (n *captureNotifier) BookingAutoReleased(ctx context.Context, user model.User, booking model.Booking) error {
	return n.record(notifierCall{kind: "auto_released", userID: user.ID, bookingID: booking.ID})
}

func (n *captureNotifier) WaitlistSlotAvailable(ctx context.Context, user model.User, lot model.ParkingLot, date string) error {
	return n.record(notifierCall{kind: "waitlist", userID: user.ID, lotID: lot.ID, date: date})
}

func (n *captureNotifier) byKind(kind string) []notifierCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	var matched []notifierCall
	for _, call := range n.calls {
		if call.kind == kind {
			matched = append(matched, call)
		}
	}
	return matched
}

// bookingScene wires a booking service against a real repository seeded with
// one user, one lot, and one available slot.
type bookingScene struct {
	repo     *persistence.Repository
	svc      *BookingService
	notifier *captureNotifier
	clock    *testfixtures.Clock
	ids      *testfixtures.IDSequence
	user     model.User
	lot      model.ParkingLot
	slot     model.ParkingSlot
}

func newBookingScene(t *testing.T) *bookingScene {
	t.Helper()

	repo := testfixtures.OpenRepository(t)
	clock := testfixtures.NewClock(time.Time{})
	ids := testfixtures.NewIDSequence("bkg")
	notifier := newCaptureNotifier()

	user := testfixtures.NewUserFixture()
	lot := testfixtures.NewLotFixture()
	slot := testfixtures.NewSlotFixture(lot.ID)
	testfixtures.SeedUser(t, repo, user)
	testfixtures.SeedLot(t, repo, lot)
	testfixtures.SeedSlot(t, repo, slot)

	return &bookingScene{
		repo:     repo,
		svc:      NewBookingService(repo, notifier, ids.NextFunc(), clock.NowFunc()),
		notifier: notifier,
		clock:    clock,
		ids:      ids,
		user:     user,
		lot:      lot,
		slot:     slot,
	}
}

func (sc *bookingScene) createBooking(t *testing.T, params CreateBookingParams) model.Booking {
	t.Helper()
	booking, err := sc.svc.Create(context.Background(), params)
	if err != nil {
		t.Fatalf("failed to create booking: %v", err)
	}
	return booking
}

func (sc *bookingScene) getSlot(t *testing.T, slotID string) model.ParkingSlot {
	t.Helper()
	slot, err := sc.repo.GetSlot(context.Background(), slotID)
	if err != nil {
		t.Fatalf("failed to load slot: %v", err)
	}
	return slot
}

func (sc *bookingScene) getBooking(t *testing.T, bookingID string) model.Booking {
	t.Helper()
	booking, err := sc.repo.GetBooking(context.Background(), bookingID)
	if err != nil {
		t.Fatalf("failed to load booking: %v", err)
	}
	return booking
}
