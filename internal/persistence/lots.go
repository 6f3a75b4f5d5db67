package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/nash87/parkhub/internal/model"
	"github.com/nash87/parkhub/internal/persistence/kv"
)

func slotIndexKey(lotID, slotID string) string {
	return lotID + ":" + slotID
}

// SaveLot writes the lot record.
func (t *Txn) SaveLot(ctx context.Context, lot model.ParkingLot) error {
	lots, err := t.table(ctx, tableParkingLots)
	if err != nil {
		return err
	}
	blob, err := t.repo.lots.Encode(lot)
	if err != nil {
		return err
	}
	return lots.Put(ctx, lot.ID, blob)
}

// GetLot returns the lot stored under id.
func (t *Txn) GetLot(ctx context.Context, id string) (model.ParkingLot, error) {
	lots, err := t.table(ctx, tableParkingLots)
	if err != nil {
		return model.ParkingLot{}, err
	}
	blob, err := lots.Get(ctx, id)
	if err != nil {
		return model.ParkingLot{}, mapKeyErr(err)
	}
	return t.repo.lots.Decode(blob)
}

// ListLots returns every lot in key order.
func (t *Txn) ListLots(ctx context.Context) ([]model.ParkingLot, error) {
	lots, err := t.table(ctx, tableParkingLots)
	if err != nil {
		return nil, err
	}
	var out []model.ParkingLot
	err = lots.ForEach(ctx, func(_ string, blob []byte) error {
		lot, err := t.repo.lots.Decode(blob)
		if err != nil {
			return err
		}
		out = append(out, lot)
		return nil
	})
	return out, err
}

// DeleteLot removes the bare lot record. Cascading its slots, bookings,
// layout, and waitlist entries is composed by the caller in the same commit.
func (t *Txn) DeleteLot(ctx context.Context, id string) error {
	lots, err := t.table(ctx, tableParkingLots)
	if err != nil {
		return err
	}
	existed, err := lots.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !existed {
		return ErrNotFound
	}
	return nil
}

// SaveSlot writes the slot and its lot index entry in the enclosing commit.
// When the slot moved between lots, the stale index key is removed.
func (t *Txn) SaveSlot(ctx context.Context, slot model.ParkingSlot) error {
	slots, err := t.table(ctx, tableParkingSlots)
	if err != nil {
		return err
	}
	byLot, err := t.table(ctx, tableSlotsByLot)
	if err != nil {
		return err
	}

	prev, err := slots.Get(ctx, slot.ID)
	switch {
	case err == nil:
		previous, err := t.repo.slots.Decode(prev)
		if err != nil {
			return err
		}
		if previous.LotID != slot.LotID {
			if _, err := byLot.Delete(ctx, slotIndexKey(previous.LotID, slot.ID)); err != nil {
				return err
			}
		}
	case !errors.Is(err, kv.ErrKeyNotFound):
		return err
	}

	blob, err := t.repo.slots.Encode(slot)
	if err != nil {
		return err
	}
	if err := slots.Put(ctx, slot.ID, blob); err != nil {
		return err
	}
	return byLot.Put(ctx, slotIndexKey(slot.LotID, slot.ID), []byte(slot.ID))
}

// GetSlot returns the slot stored under id.
func (t *Txn) GetSlot(ctx context.Context, id string) (model.ParkingSlot, error) {
	slots, err := t.table(ctx, tableParkingSlots)
	if err != nil {
		return model.ParkingSlot{}, err
	}
	blob, err := slots.Get(ctx, id)
	if err != nil {
		return model.ParkingSlot{}, mapKeyErr(err)
	}
	return t.repo.slots.Decode(blob)
}

// ListSlotsByLot resolves the lot index to primary slot records.
func (t *Txn) ListSlotsByLot(ctx context.Context, lotID string) ([]model.ParkingSlot, error) {
	byLot, err := t.table(ctx, tableSlotsByLot)
	if err != nil {
		return nil, err
	}
	var out []model.ParkingSlot
	err = byLot.Range(ctx, lotID+":", func(key string, id []byte) error {
		slot, err := t.GetSlot(ctx, string(id))
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: index %s[%s] points at missing slot %s", ErrCorruptRecord, tableSlotsByLot, key, id)
		}
		if err != nil {
			return err
		}
		out = append(out, slot)
		return nil
	})
	return out, err
}

// ListSlots returns every slot in key order.
func (t *Txn) ListSlots(ctx context.Context) ([]model.ParkingSlot, error) {
	slots, err := t.table(ctx, tableParkingSlots)
	if err != nil {
		return nil, err
	}
	var out []model.ParkingSlot
	err = slots.ForEach(ctx, func(_ string, blob []byte) error {
		slot, err := t.repo.slots.Decode(blob)
		if err != nil {
			return err
		}
		out = append(out, slot)
		return nil
	})
	return out, err
}

// DeleteSlot removes the slot and its lot index entry in the enclosing
// commit.
func (t *Txn) DeleteSlot(ctx context.Context, id string) error {
	slot, err := t.GetSlot(ctx, id)
	if err != nil {
		return err
	}
	slots, err := t.table(ctx, tableParkingSlots)
	if err != nil {
		return err
	}
	byLot, err := t.table(ctx, tableSlotsByLot)
	if err != nil {
		return err
	}
	if _, err := slots.Delete(ctx, id); err != nil {
		return err
	}
	_, err = byLot.Delete(ctx, slotIndexKey(slot.LotID, id))
	return err
}

// SaveLotLayout writes the lot's floor plan, keyed by lot id.
func (t *Txn) SaveLotLayout(ctx context.Context, layout model.LotLayout) error {
	layouts, err := t.table(ctx, tableLotLayouts)
	if err != nil {
		return err
	}
	blob, err := t.repo.layouts.Encode(layout)
	if err != nil {
		return err
	}
	return layouts.Put(ctx, layout.LotID, blob)
}

// GetLotLayout returns the floor plan for a lot.
func (t *Txn) GetLotLayout(ctx context.Context, lotID string) (model.LotLayout, error) {
	layouts, err := t.table(ctx, tableLotLayouts)
	if err != nil {
		return model.LotLayout{}, err
	}
	blob, err := layouts.Get(ctx, lotID)
	if err != nil {
		return model.LotLayout{}, mapKeyErr(err)
	}
	return t.repo.layouts.Decode(blob)
}

// DeleteLotLayout removes the floor plan for a lot, reporting whether one
// existed.
func (t *Txn) DeleteLotLayout(ctx context.Context, lotID string) (bool, error) {
	layouts, err := t.table(ctx, tableLotLayouts)
	if err != nil {
		return false, err
	}
	return layouts.Delete(ctx, lotID)
}

// GetLot is the one-shot read form of Txn.GetLot.
func (r *Repository) GetLot(ctx context.Context, id string) (model.ParkingLot, error) {
	var lot model.ParkingLot
	err := r.View(ctx, func(t *Txn) error {
		var err error
		lot, err = t.GetLot(ctx, id)
		return err
	})
	return lot, err
}

// ListLots is the one-shot read form of Txn.ListLots.
func (r *Repository) ListLots(ctx context.Context) ([]model.ParkingLot, error) {
	var lots []model.ParkingLot
	err := r.View(ctx, func(t *Txn) error {
		var err error
		lots, err = t.ListLots(ctx)
		return err
	})
	return lots, err
}

// GetSlot is the one-shot read form of Txn.GetSlot.
func (r *Repository) GetSlot(ctx context.Context, id string) (model.ParkingSlot, error) {
	var slot model.ParkingSlot
	err := r.View(ctx, func(t *Txn) error {
		var err error
		slot, err = t.GetSlot(ctx, id)
		return err
	})
	return slot, err
}

// ListSlotsByLot is the one-shot read form of Txn.ListSlotsByLot.
func (r *Repository) ListSlotsByLot(ctx context.Context, lotID string) ([]model.ParkingSlot, error) {
	var slots []model.ParkingSlot
	err := r.View(ctx, func(t *Txn) error {
		var err error
		slots, err = t.ListSlotsByLot(ctx, lotID)
		return err
	})
	return slots, err
}

// GetLotLayout is the one-shot read form of Txn.GetLotLayout.
func (r *Repository) GetLotLayout(ctx context.Context, lotID string) (model.LotLayout, error) {
	var layout model.LotLayout
	err := r.View(ctx, func(t *Txn) error {
		var err error
		layout, err = t.GetLotLayout(ctx, lotID)
		return err
	})
	return layout, err
}
