package persistence

import (
	"context"

	"github.com/nash87/parkhub/internal/model"
)

// SaveVehicle writes the vehicle record.
func (t *Txn) SaveVehicle(ctx context.Context, vehicle model.Vehicle) error {
	vehicles, err := t.table(ctx, tableVehicles)
	if err != nil {
		return err
	}
	blob, err := t.repo.vehicles.Encode(vehicle)
	if err != nil {
		return err
	}
	return vehicles.Put(ctx, vehicle.ID, blob)
}

// GetVehicle returns the vehicle stored under id.
func (t *Txn) GetVehicle(ctx context.Context, id string) (model.Vehicle, error) {
	vehicles, err := t.table(ctx, tableVehicles)
	if err != nil {
		return model.Vehicle{}, err
	}
	blob, err := vehicles.Get(ctx, id)
	if err != nil {
		return model.Vehicle{}, mapKeyErr(err)
	}
	return t.repo.vehicles.Decode(blob)
}

// ListVehiclesByUser returns every vehicle registered to the user.
func (t *Txn) ListVehiclesByUser(ctx context.Context, userID string) ([]model.Vehicle, error) {
	vehicles, err := t.table(ctx, tableVehicles)
	if err != nil {
		return nil, err
	}
	var out []model.Vehicle
	err = vehicles.ForEach(ctx, func(_ string, blob []byte) error {
		vehicle, err := t.repo.vehicles.Decode(blob)
		if err != nil {
			return err
		}
		if vehicle.UserID == userID {
			out = append(out, vehicle)
		}
		return nil
	})
	return out, err
}

// DeleteVehicle removes the vehicle record.
func (t *Txn) DeleteVehicle(ctx context.Context, id string) error {
	vehicles, err := t.table(ctx, tableVehicles)
	if err != nil {
		return err
	}
	existed, err := vehicles.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !existed {
		return ErrNotFound
	}
	return nil
}

// GetVehicle is the one-shot read form of Txn.GetVehicle.
func (r *Repository) GetVehicle(ctx context.Context, id string) (model.Vehicle, error) {
	var vehicle model.Vehicle
	err := r.View(ctx, func(t *Txn) error {
		var err error
		vehicle, err = t.GetVehicle(ctx, id)
		return err
	})
	return vehicle, err
}

// ListVehiclesByUser is the one-shot read form of Txn.ListVehiclesByUser.
func (r *Repository) ListVehiclesByUser(ctx context.Context, userID string) ([]model.Vehicle, error) {
	var vehicles []model.Vehicle
	err := r.View(ctx, func(t *Txn) error {
		var err error
		vehicles, err = t.ListVehiclesByUser(ctx, userID)
		return err
	})
	return vehicles, err
}
