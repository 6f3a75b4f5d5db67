// Package notify delivers booking lifecycle notifications. The core services
// call a Notifier after commit and log failures; delivery is best-effort and
// never retried.
package notify

import (
	"context"
	"log/slog"

	"github.com/nash87/parkhub/internal/model"
)

// Notifier receives booking lifecycle events for one user.
type Notifier interface {
	BookingConfirmed(ctx context.Context, user model.User, booking model.Booking) error
	BookingReminder(ctx context.Context, user model.User, booking model.Booking) error
	BookingAutoReleased(ctx context.Context, user model.User, booking model.Booking) error
	WaitlistSlotAvailable(ctx context.Context, user model.User, lot model.ParkingLot, date string) error
}

// LogNotifier writes notification events to the log. It stands in when no
// email credentials are configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier constructs a LogNotifier. A nil logger falls back to
// slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "notifier")}
}

func (n *LogNotifier) BookingConfirmed(ctx context.Context, user model.User, booking model.Booking) error {
	n.logger.InfoContext(ctx, "booking confirmed",
		"user_id", user.ID,
		"booking_id", booking.ID,
		"lot", booking.LotName,
		"slot", booking.SlotNumber,
		"start_time", booking.StartTime,
	)
	return nil
}

func (n *LogNotifier) BookingReminder(ctx context.Context, user model.User, booking model.Booking) error {
	n.logger.InfoContext(ctx, "booking reminder",
		"user_id", user.ID,
		"booking_id", booking.ID,
		"lot", booking.LotName,
		"slot", booking.SlotNumber,
		"start_time", booking.StartTime,
	)
	return nil
}

func (n *LogNotifier) BookingAutoReleased(ctx context.Context, user model.User, booking model.Booking) error {
	n.logger.InfoContext(ctx, "booking auto-released",
		"user_id", user.ID,
		"booking_id", booking.ID,
		"lot", booking.LotName,
		"slot", booking.SlotNumber,
	)
	return nil
}

func (n *LogNotifier) WaitlistSlotAvailable(ctx context.Context, user model.User, lot model.ParkingLot, date string) error {
	n.logger.InfoContext(ctx, "waitlist slot available",
		"user_id", user.ID,
		"lot_id", lot.ID,
		"lot", lot.Name,
		"date", date,
	)
	return nil
}
