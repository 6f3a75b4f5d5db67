package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nash87/parkhub/internal/model"
	"github.com/nash87/parkhub/internal/persistence"
)

// LotService manages the parking inventory: lots, their slots, and the
// optional floor layout. Mutations are admin-only; reads are open to any
// authenticated user.
type LotService struct {
	repo        *persistence.Repository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewLotService constructs a LotService with the provided dependencies.
func NewLotService(repo *persistence.Repository, idGenerator func() string, now func() time.Time) *LotService {
	return NewLotServiceWithLogger(repo, idGenerator, now, nil)
}

// NewLotServiceWithLogger constructs a LotService with a specified logger.
func NewLotServiceWithLogger(repo *persistence.Repository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *LotService {
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	return &LotService{repo: repo, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *LotService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "LotService", operation, attrs...)
}

// CreateLot validates input and persists a new lot for administrators.
func (s *LotService) CreateLot(ctx context.Context, actor Principal, input LotInput) (lot model.ParkingLot, err error) {
	if s == nil {
		err = fmt.Errorf("LotService is nil")
		return
	}
	if s.repo == nil {
		err = fmt.Errorf("repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateLot", "actor_id", actor.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create lot", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("lot_id", lot.ID).InfoContext(ctx, "lot created")
	}()

	if !actor.IsAdmin() {
		err = ErrForbidden
		return
	}

	status := input.Status
	if status == "" {
		status = model.LotStatusActive
	}
	vErr := validateLotInput(input.Name, status)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	lot = model.ParkingLot{
		ID:        s.idGenerator(),
		Name:      strings.TrimSpace(input.Name),
		Address:   strings.TrimSpace(input.Address),
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.repo.Update(ctx, func(txn *persistence.Txn) error {
		return txn.SaveLot(ctx, lot)
	})
	if err != nil {
		err = mapRepoError(err)
	}
	return
}

// UpdateLot validates input and updates an existing lot for administrators.
func (s *LotService) UpdateLot(ctx context.Context, actor Principal, lotID string, input LotInput) (lot model.ParkingLot, err error) {
	if s == nil {
		err = fmt.Errorf("LotService is nil")
		return
	}
	if s.repo == nil {
		err = fmt.Errorf("repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateLot", "actor_id", actor.UserID, "lot_id", lotID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update lot", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "lot updated")
	}()

	if !actor.IsAdmin() {
		err = ErrForbidden
		return
	}

	status := input.Status
	if status == "" {
		status = model.LotStatusActive
	}
	vErr := validateLotInput(input.Name, status)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	err = s.repo.Update(ctx, func(txn *persistence.Txn) error {
		existing, getErr := txn.GetLot(ctx, lotID)
		if getErr != nil {
			return getErr
		}
		existing.Name = strings.TrimSpace(input.Name)
		existing.Address = strings.TrimSpace(input.Address)
		existing.Status = status
		existing.UpdatedAt = now
		if saveErr := txn.SaveLot(ctx, existing); saveErr != nil {
			return saveErr
		}
		lot = existing
		return nil
	})
	if err != nil {
		err = mapRepoError(err)
	}
	return
}

// GetLot returns a lot with its slot counts derived from current slot state.
func (s *LotService) GetLot(ctx context.Context, lotID string) (model.ParkingLot, error) {
	if s == nil {
		return model.ParkingLot{}, fmt.Errorf("LotService is nil")
	}
	if s.repo == nil {
		return model.ParkingLot{}, fmt.Errorf("repository not configured")
	}

	var lot model.ParkingLot
	err := s.repo.View(ctx, func(txn *persistence.Txn) error {
		found, getErr := txn.GetLot(ctx, lotID)
		if getErr != nil {
			return getErr
		}
		slots, listErr := txn.ListSlotsByLot(ctx, lotID)
		if listErr != nil {
			return listErr
		}
		lot = withSlotCounts(found, slots)
		return nil
	})
	if err != nil {
		return model.ParkingLot{}, mapRepoError(err)
	}
	return lot, nil
}

// ListLots returns all lots sorted by name, each with derived slot counts.
func (s *LotService) ListLots(ctx context.Context) (lots []model.ParkingLot, err error) {
	if s == nil {
		err = fmt.Errorf("LotService is nil")
		return
	}
	if s.repo == nil {
		err = fmt.Errorf("repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "ListLots")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list lots", "error", err, "error_kind", ErrorKind(err))
			return
		}
	}()

	err = s.repo.View(ctx, func(txn *persistence.Txn) error {
		raw, listErr := txn.ListLots(ctx)
		if listErr != nil {
			return listErr
		}
		lots = make([]model.ParkingLot, 0, len(raw))
		for _, lot := range raw {
			slots, slotErr := txn.ListSlotsByLot(ctx, lot.ID)
			if slotErr != nil {
				return slotErr
			}
			lots = append(lots, withSlotCounts(lot, slots))
		}
		return nil
	})
	if err != nil {
		err = mapRepoError(err)
		return
	}

	sort.Slice(lots, func(i, j int) bool {
		if strings.EqualFold(lots[i].Name, lots[j].Name) {
			return lots[i].ID < lots[j].ID
		}
		return strings.ToLower(lots[i].Name) < strings.ToLower(lots[j].Name)
	})
	return
}

// DeleteLot removes a lot together with its slots, bookings, layout, and
// waitlist entries in one transaction.
func (s *LotService) DeleteLot(ctx context.Context, actor Principal, lotID string) error {
	if s == nil {
		return fmt.Errorf("LotService is nil")
	}
	if s.repo == nil {
		return fmt.Errorf("repository not configured")
	}
	if !actor.IsAdmin() {
		return ErrForbidden
	}

	logger := s.loggerWith(ctx, "DeleteLot", "actor_id", actor.UserID, "lot_id", lotID)

	err := s.repo.Update(ctx, func(txn *persistence.Txn) error {
		if _, getErr := txn.GetLot(ctx, lotID); getErr != nil {
			return getErr
		}

		bookings, listErr := txn.ListBookingsByLot(ctx, lotID)
		if listErr != nil {
			return listErr
		}
		for _, booking := range bookings {
			if delErr := txn.DeleteBooking(ctx, booking.ID); delErr != nil {
				return delErr
			}
		}

		slots, listErr := txn.ListSlotsByLot(ctx, lotID)
		if listErr != nil {
			return listErr
		}
		for _, slot := range slots {
			if delErr := txn.DeleteSlot(ctx, slot.ID); delErr != nil {
				return delErr
			}
		}

		entries, listErr := txn.ListWaitlistByLot(ctx, lotID)
		if listErr != nil {
			return listErr
		}
		for _, entry := range entries {
			if _, delErr := txn.DeleteWaitlistEntry(ctx, entry.ID); delErr != nil {
				return delErr
			}
		}

		if _, delErr := txn.DeleteLotLayout(ctx, lotID); delErr != nil {
			return delErr
		}
		return txn.DeleteLot(ctx, lotID)
	})
	if err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "failed to delete lot", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "lot deleted")
	return nil
}

// CreateSlot adds a slot to a lot for administrators. Slot numbers are unique
// within their lot.
func (s *LotService) CreateSlot(ctx context.Context, actor Principal, input SlotInput) (slot model.ParkingSlot, err error) {
	if s == nil {
		err = fmt.Errorf("LotService is nil")
		return
	}
	if s.repo == nil {
		err = fmt.Errorf("repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateSlot", "actor_id", actor.UserID, "lot_id", input.LotID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create slot", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("slot_id", slot.ID).InfoContext(ctx, "slot created")
	}()

	if !actor.IsAdmin() {
		err = ErrForbidden
		return
	}

	vErr := &ValidationError{}
	if input.LotID == "" {
		vErr.add("lot_id", "lot is required")
	}
	number := strings.TrimSpace(input.SlotNumber)
	if number == "" {
		vErr.add("slot_number", "slot number is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	err = s.repo.Update(ctx, func(txn *persistence.Txn) error {
		if _, getErr := txn.GetLot(ctx, input.LotID); getErr != nil {
			return getErr
		}
		siblings, listErr := txn.ListSlotsByLot(ctx, input.LotID)
		if listErr != nil {
			return listErr
		}
		for _, sibling := range siblings {
			if sibling.SlotNumber == number {
				return fmt.Errorf("%w: slot %s already exists in lot", ErrAlreadyExists, number)
			}
		}

		created := model.ParkingSlot{
			ID:                    s.idGenerator(),
			LotID:                 input.LotID,
			SlotNumber:            number,
			Status:                model.SlotStatusAvailable,
			ReservedForDepartment: normalizeOptionalString(input.ReservedForDepartment),
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if saveErr := txn.SaveSlot(ctx, created); saveErr != nil {
			return saveErr
		}
		slot = created
		return nil
	})
	if err != nil {
		err = mapRepoError(err)
	}
	return
}

// UpdateSlotStatus lets an administrator place a slot in or out of service.
// The reserved and occupied states belong to the booking lifecycle and cannot
// be set here.
func (s *LotService) UpdateSlotStatus(ctx context.Context, actor Principal, slotID string, status model.SlotStatus) (slot model.ParkingSlot, err error) {
	if s == nil {
		err = fmt.Errorf("LotService is nil")
		return
	}
	if s.repo == nil {
		err = fmt.Errorf("repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateSlotStatus", "actor_id", actor.UserID, "slot_id", slotID, "status", string(status))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update slot status", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "slot status updated")
	}()

	if !actor.IsAdmin() {
		err = ErrForbidden
		return
	}

	switch status {
	case model.SlotStatusAvailable, model.SlotStatusMaintenance, model.SlotStatusDisabled, model.SlotStatusHomeOffice:
	case model.SlotStatusReserved, model.SlotStatusOccupied:
		err = fmt.Errorf("%w: %s is managed by the booking lifecycle", ErrInvalidStatus, status)
		return
	default:
		err = fmt.Errorf("%w: unknown slot status %q", ErrInvalidStatus, status)
		return
	}

	now := s.now()
	err = s.repo.Update(ctx, func(txn *persistence.Txn) error {
		existing, getErr := txn.GetSlot(ctx, slotID)
		if getErr != nil {
			return getErr
		}
		existing.Status = status
		existing.UpdatedAt = now
		if saveErr := txn.SaveSlot(ctx, existing); saveErr != nil {
			return saveErr
		}
		slot = existing
		return nil
	})
	if err != nil {
		err = mapRepoError(err)
	}
	return
}

// DeleteSlot removes a slot for administrators.
func (s *LotService) DeleteSlot(ctx context.Context, actor Principal, slotID string) error {
	if s == nil {
		return fmt.Errorf("LotService is nil")
	}
	if s.repo == nil {
		return fmt.Errorf("repository not configured")
	}
	if !actor.IsAdmin() {
		return ErrForbidden
	}

	logger := s.loggerWith(ctx, "DeleteSlot", "actor_id", actor.UserID, "slot_id", slotID)

	err := s.repo.Update(ctx, func(txn *persistence.Txn) error {
		if _, getErr := txn.GetSlot(ctx, slotID); getErr != nil {
			return getErr
		}
		return txn.DeleteSlot(ctx, slotID)
	})
	if err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "failed to delete slot", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "slot deleted")
	return nil
}

// SaveLayout stores the floor layout for a lot, replacing any previous one.
func (s *LotService) SaveLayout(ctx context.Context, actor Principal, layout model.LotLayout) error {
	if s == nil {
		return fmt.Errorf("LotService is nil")
	}
	if s.repo == nil {
		return fmt.Errorf("repository not configured")
	}
	if !actor.IsAdmin() {
		return ErrForbidden
	}

	logger := s.loggerWith(ctx, "SaveLayout", "actor_id", actor.UserID, "lot_id", layout.LotID)

	if layout.LotID == "" {
		vErr := &ValidationError{}
		vErr.add("lot_id", "lot is required")
		return vErr
	}

	err := s.repo.Update(ctx, func(txn *persistence.Txn) error {
		if _, getErr := txn.GetLot(ctx, layout.LotID); getErr != nil {
			return getErr
		}
		return txn.SaveLotLayout(ctx, layout)
	})
	if err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "failed to save layout", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "layout saved")
	return nil
}

// GetLayout returns the stored floor layout for a lot.
func (s *LotService) GetLayout(ctx context.Context, lotID string) (model.LotLayout, error) {
	if s == nil {
		return model.LotLayout{}, fmt.Errorf("LotService is nil")
	}
	if s.repo == nil {
		return model.LotLayout{}, fmt.Errorf("repository not configured")
	}

	layout, err := s.repo.GetLotLayout(ctx, lotID)
	if err != nil {
		return model.LotLayout{}, mapRepoError(err)
	}
	return layout, nil
}

// Stats reports store-level statistics to administrators.
func (s *LotService) Stats(ctx context.Context, actor Principal) (model.DatabaseStats, error) {
	if s == nil {
		return model.DatabaseStats{}, fmt.Errorf("LotService is nil")
	}
	if s.repo == nil {
		return model.DatabaseStats{}, fmt.Errorf("repository not configured")
	}
	if !actor.IsAdmin() {
		return model.DatabaseStats{}, ErrForbidden
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return model.DatabaseStats{}, err
	}
	return stats, nil
}

func validateLotInput(name string, status model.LotStatus) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(name) == "" {
		vErr.add("name", "name is required")
	}
	switch status {
	case model.LotStatusActive, model.LotStatusMaintenance, model.LotStatusClosed:
	default:
		vErr.add("status", "unknown lot status")
	}
	return vErr
}

func withSlotCounts(lot model.ParkingLot, slots []model.ParkingSlot) model.ParkingLot {
	lot.TotalSlots = len(slots)
	available := 0
	for _, slot := range slots {
		if slot.Status == model.SlotStatusAvailable {
			available++
		}
	}
	lot.AvailableSlots = available
	return lot
}
