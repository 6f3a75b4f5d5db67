package persistence

import (
	"context"
	"sort"

	"github.com/nash87/parkhub/internal/model"
)

// SaveWaitlistEntry writes the waitlist entry.
func (t *Txn) SaveWaitlistEntry(ctx context.Context, entry model.WaitlistEntry) error {
	waitlist, err := t.table(ctx, tableWaitlist)
	if err != nil {
		return err
	}
	blob, err := t.repo.waitlist.Encode(entry)
	if err != nil {
		return err
	}
	return waitlist.Put(ctx, entry.ID, blob)
}

// GetWaitlistEntry returns the entry stored under id.
func (t *Txn) GetWaitlistEntry(ctx context.Context, id string) (model.WaitlistEntry, error) {
	waitlist, err := t.table(ctx, tableWaitlist)
	if err != nil {
		return model.WaitlistEntry{}, err
	}
	blob, err := waitlist.Get(ctx, id)
	if err != nil {
		return model.WaitlistEntry{}, mapKeyErr(err)
	}
	return t.repo.waitlist.Decode(blob)
}

// ListWaitlistByLotDate returns the entries for one lot and day, oldest
// first. Ties on created_at break by id so the order is total.
func (t *Txn) ListWaitlistByLotDate(ctx context.Context, lotID, date string) ([]model.WaitlistEntry, error) {
	entries, err := t.listWaitlist(ctx, func(e model.WaitlistEntry) bool {
		return e.LotID == lotID && e.Date == date
	})
	if err != nil {
		return nil, err
	}
	sortWaitlist(entries)
	return entries, nil
}

// ListWaitlistByLot returns every entry for the lot regardless of day.
func (t *Txn) ListWaitlistByLot(ctx context.Context, lotID string) ([]model.WaitlistEntry, error) {
	entries, err := t.listWaitlist(ctx, func(e model.WaitlistEntry) bool {
		return e.LotID == lotID
	})
	if err != nil {
		return nil, err
	}
	sortWaitlist(entries)
	return entries, nil
}

func (t *Txn) listWaitlist(ctx context.Context, keep func(model.WaitlistEntry) bool) ([]model.WaitlistEntry, error) {
	waitlist, err := t.table(ctx, tableWaitlist)
	if err != nil {
		return nil, err
	}
	var out []model.WaitlistEntry
	err = waitlist.ForEach(ctx, func(_ string, blob []byte) error {
		entry, err := t.repo.waitlist.Decode(blob)
		if err != nil {
			return err
		}
		if keep(entry) {
			out = append(out, entry)
		}
		return nil
	})
	return out, err
}

func sortWaitlist(entries []model.WaitlistEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}

// DeleteWaitlistEntry removes the entry and reports whether it existed.
func (t *Txn) DeleteWaitlistEntry(ctx context.Context, id string) (bool, error) {
	waitlist, err := t.table(ctx, tableWaitlist)
	if err != nil {
		return false, err
	}
	return waitlist.Delete(ctx, id)
}

// DeleteWaitlistBefore removes every entry whose date sorts strictly before
// the given YYYY-MM-DD day and returns how many were removed.
func (t *Txn) DeleteWaitlistBefore(ctx context.Context, date string) (int, error) {
	waitlist, err := t.table(ctx, tableWaitlist)
	if err != nil {
		return 0, err
	}
	removed := 0
	err = waitlist.ForEach(ctx, func(id string, blob []byte) error {
		entry, err := t.repo.waitlist.Decode(blob)
		if err != nil {
			return err
		}
		if entry.Date >= date {
			return nil
		}
		if _, err := waitlist.Delete(ctx, id); err != nil {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}

// ListWaitlistByLotDate is the one-shot read form of
// Txn.ListWaitlistByLotDate.
func (r *Repository) ListWaitlistByLotDate(ctx context.Context, lotID, date string) ([]model.WaitlistEntry, error) {
	var entries []model.WaitlistEntry
	err := r.View(ctx, func(t *Txn) error {
		var err error
		entries, err = t.ListWaitlistByLotDate(ctx, lotID, date)
		return err
	})
	return entries, err
}

// DeleteWaitlistBefore is the one-shot write form of
// Txn.DeleteWaitlistBefore.
func (r *Repository) DeleteWaitlistBefore(ctx context.Context, date string) (int, error) {
	var removed int
	err := r.Update(ctx, func(t *Txn) error {
		var err error
		removed, err = t.DeleteWaitlistBefore(ctx, date)
		return err
	})
	return removed, err
}
