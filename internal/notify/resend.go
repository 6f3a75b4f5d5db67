package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/resendlabs/resend-go"

	"github.com/nash87/parkhub/internal/model"
)

const emailTimeLayout = "Mon, 02 Jan 2006 15:04"

// EmailNotifier delivers notifications over the Resend API.
type EmailNotifier struct {
	client *resend.Client
	from   string
}

// NewEmailNotifier constructs an EmailNotifier sending from the given
// address.
func NewEmailNotifier(apiKey, from string) (*EmailNotifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("notify: api key is required")
	}
	if from == "" {
		from = "ParkHub <noreply@parkhub.local>"
	}
	return &EmailNotifier{client: resend.NewClient(apiKey), from: from}, nil
}

func (n *EmailNotifier) send(to, subject, html string) error {
	_, err := n.client.Emails.Send(&resend.SendEmailRequest{
		From:    n.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return fmt.Errorf("notify: send %q to %s: %w", subject, to, err)
	}
	return nil
}

func (n *EmailNotifier) BookingConfirmed(ctx context.Context, user model.User, booking model.Booking) error {
	html := fmt.Sprintf(
		`<html><body><h2>Booking Confirmed</h2><p>Hello %s,</p><p>Your parking spot has been booked:</p><ul><li><b>Lot:</b> %s</li><li><b>Slot:</b> %s</li><li><b>From:</b> %s</li><li><b>Until:</b> %s</li></ul><p>Don't forget to check in!</p><p>ParkHub</p></body></html>`,
		user.Name, booking.LotName, booking.SlotNumber,
		formatEmailTime(booking.StartTime), formatEmailTime(booking.EndTime),
	)
	return n.send(user.Email, "ParkHub: Booking Confirmed", html)
}

func (n *EmailNotifier) BookingReminder(ctx context.Context, user model.User, booking model.Booking) error {
	html := fmt.Sprintf(
		`<html><body><h2>Booking Reminder</h2><p>Hello %s,</p><p>Your parking at <b>%s</b> slot <b>%s</b> starts at <b>%s</b>.</p><p>Remember to check in within 15 minutes.</p><p>ParkHub</p></body></html>`,
		user.Name, booking.LotName, booking.SlotNumber, formatEmailTime(booking.StartTime),
	)
	return n.send(user.Email, "ParkHub: Booking Reminder", html)
}

func (n *EmailNotifier) BookingAutoReleased(ctx context.Context, user model.User, booking model.Booking) error {
	html := fmt.Sprintf(
		`<html><body><h2>Booking Auto-Released</h2><p>Hello %s,</p><p>Your booking for <b>%s</b> at <b>%s</b> was auto-released (no check-in).</p><p>ParkHub</p></body></html>`,
		user.Name, booking.SlotNumber, booking.LotName,
	)
	return n.send(user.Email, "ParkHub: Booking Auto-Released", html)
}

func (n *EmailNotifier) WaitlistSlotAvailable(ctx context.Context, user model.User, lot model.ParkingLot, date string) error {
	html := fmt.Sprintf(
		`<html><body><h2>Spot Available!</h2><p>Hello %s,</p><p>A spot is now available at <b>%s</b> on <b>%s</b>. Book now!</p><p>ParkHub</p></body></html>`,
		user.Name, lot.Name, date,
	)
	return n.send(user.Email, "ParkHub: Spot Available", html)
}

func formatEmailTime(t time.Time) string {
	return t.Format(emailTimeLayout)
}
