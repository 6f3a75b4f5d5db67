package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/nash87/parkhub/internal/model"
	"github.com/nash87/parkhub/internal/persistence/kv"
)

func bookingIndexKey(userID, bookingID string) string {
	return userID + ":" + bookingID
}

// SaveBooking writes the booking and its user index entry in the enclosing
// commit.
func (t *Txn) SaveBooking(ctx context.Context, booking model.Booking) error {
	bookings, err := t.table(ctx, tableBookings)
	if err != nil {
		return err
	}
	byUser, err := t.table(ctx, tableBookingsByUser)
	if err != nil {
		return err
	}

	prev, err := bookings.Get(ctx, booking.ID)
	switch {
	case err == nil:
		previous, err := t.repo.bookings.Decode(prev)
		if err != nil {
			return err
		}
		if previous.UserID != booking.UserID {
			if _, err := byUser.Delete(ctx, bookingIndexKey(previous.UserID, booking.ID)); err != nil {
				return err
			}
		}
	case !errors.Is(err, kv.ErrKeyNotFound):
		return err
	}

	blob, err := t.repo.bookings.Encode(booking)
	if err != nil {
		return err
	}
	if err := bookings.Put(ctx, booking.ID, blob); err != nil {
		return err
	}
	return byUser.Put(ctx, bookingIndexKey(booking.UserID, booking.ID), []byte(booking.ID))
}

// GetBooking returns the booking stored under id.
func (t *Txn) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	bookings, err := t.table(ctx, tableBookings)
	if err != nil {
		return model.Booking{}, err
	}
	blob, err := bookings.Get(ctx, id)
	if err != nil {
		return model.Booking{}, mapKeyErr(err)
	}
	return t.repo.bookings.Decode(blob)
}

// ListBookings returns every booking in key order.
func (t *Txn) ListBookings(ctx context.Context) ([]model.Booking, error) {
	bookings, err := t.table(ctx, tableBookings)
	if err != nil {
		return nil, err
	}
	var out []model.Booking
	err = bookings.ForEach(ctx, func(_ string, blob []byte) error {
		booking, err := t.repo.bookings.Decode(blob)
		if err != nil {
			return err
		}
		out = append(out, booking)
		return nil
	})
	return out, err
}

// ListBookingsByUser resolves the user index to primary booking records.
func (t *Txn) ListBookingsByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	byUser, err := t.table(ctx, tableBookingsByUser)
	if err != nil {
		return nil, err
	}
	var out []model.Booking
	err = byUser.Range(ctx, userID+":", func(key string, id []byte) error {
		booking, err := t.GetBooking(ctx, string(id))
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: index %s[%s] points at missing booking %s", ErrCorruptRecord, tableBookingsByUser, key, id)
		}
		if err != nil {
			return err
		}
		out = append(out, booking)
		return nil
	})
	return out, err
}

// ListBookingsByLot returns every booking referencing the lot.
func (t *Txn) ListBookingsByLot(ctx context.Context, lotID string) ([]model.Booking, error) {
	all, err := t.ListBookings(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Booking
	for _, booking := range all {
		if booking.LotID == lotID {
			out = append(out, booking)
		}
	}
	return out, nil
}

// DeleteBooking removes the booking and its user index entry in the
// enclosing commit.
func (t *Txn) DeleteBooking(ctx context.Context, id string) error {
	booking, err := t.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	bookings, err := t.table(ctx, tableBookings)
	if err != nil {
		return err
	}
	byUser, err := t.table(ctx, tableBookingsByUser)
	if err != nil {
		return err
	}
	if _, err := bookings.Delete(ctx, id); err != nil {
		return err
	}
	_, err = byUser.Delete(ctx, bookingIndexKey(booking.UserID, id))
	return err
}

// GetBooking is the one-shot read form of Txn.GetBooking.
func (r *Repository) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	var booking model.Booking
	err := r.View(ctx, func(t *Txn) error {
		var err error
		booking, err = t.GetBooking(ctx, id)
		return err
	})
	return booking, err
}

// ListBookings is the one-shot read form of Txn.ListBookings.
func (r *Repository) ListBookings(ctx context.Context) ([]model.Booking, error) {
	var bookings []model.Booking
	err := r.View(ctx, func(t *Txn) error {
		var err error
		bookings, err = t.ListBookings(ctx)
		return err
	})
	return bookings, err
}

// ListBookingsByUser is the one-shot read form of Txn.ListBookingsByUser.
func (r *Repository) ListBookingsByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	var bookings []model.Booking
	err := r.View(ctx, func(t *Txn) error {
		var err error
		bookings, err = t.ListBookingsByUser(ctx, userID)
		return err
	})
	return bookings, err
}

// ListBookingsByLot is the one-shot read form of Txn.ListBookingsByLot.
func (r *Repository) ListBookingsByLot(ctx context.Context, lotID string) ([]model.Booking, error) {
	var bookings []model.Booking
	err := r.View(ctx, func(t *Txn) error {
		var err error
		bookings, err = t.ListBookingsByLot(ctx, lotID)
		return err
	})
	return bookings, err
}
