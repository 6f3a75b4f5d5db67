package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nash87/parkhub/internal/model"
	"github.com/nash87/parkhub/internal/persistence"
)

// UserService handles account administration and the per-user extras:
// vehicles, homeoffice weekdays, and push subscriptions. Users act on their
// own records; administrators act on anyone's.
type UserService struct {
	repo        *persistence.Repository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewUserService constructs a UserService with the provided dependencies.
func NewUserService(repo *persistence.Repository, idGenerator func() string, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(repo, idGenerator, now, nil)
}

// NewUserServiceWithLogger constructs a UserService with a specified logger.
func NewUserServiceWithLogger(repo *persistence.Repository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{repo: repo, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// GetUser returns a user record to its owner or an administrator.
func (s *UserService) GetUser(ctx context.Context, userID string, actor Principal) (model.User, error) {
	if s == nil {
		return model.User{}, fmt.Errorf("UserService is nil")
	}
	if s.repo == nil {
		return model.User{}, fmt.Errorf("repository not configured")
	}
	if userID != actor.UserID && !actor.IsAdmin() {
		return model.User{}, ErrForbidden
	}

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return model.User{}, mapRepoError(err)
	}
	return user, nil
}

// ListUsers returns all accounts, sorted by username, to administrators.
func (s *UserService) ListUsers(ctx context.Context, actor Principal) (users []model.User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if s.repo == nil {
		err = fmt.Errorf("repository not configured")
		return
	}
	if !actor.IsAdmin() {
		err = ErrForbidden
		return
	}

	logger := s.loggerWith(ctx, "ListUsers", "actor_id", actor.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list users", "error", err, "error_kind", ErrorKind(err))
			return
		}
	}()

	users, err = s.repo.ListUsers(ctx)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Username < users[j].Username
	})
	return
}

// UpdateProfile changes a user's display name and department. A nil
// department clears the field.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, actor Principal, input ProfileInput) (user model.User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if s.repo == nil {
		err = fmt.Errorf("repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateProfile", "actor_id", actor.UserID, "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update profile", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "profile updated")
	}()

	if userID != actor.UserID && !actor.IsAdmin() {
		err = ErrForbidden
		return
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		vErr := &ValidationError{}
		vErr.add("name", "name is required")
		err = vErr
		return
	}

	now := s.now()
	err = s.repo.Update(ctx, func(txn *persistence.Txn) error {
		existing, getErr := txn.GetUser(ctx, userID)
		if getErr != nil {
			return getErr
		}
		existing.Name = name
		existing.Department = normalizeOptionalString(input.Department)
		existing.UpdatedAt = now
		if saveErr := txn.SaveUser(ctx, existing); saveErr != nil {
			return saveErr
		}
		user = existing
		return nil
	})
	if err != nil {
		err = mapRepoError(err)
	}
	return
}

// SetActive enables or disables an account. Deactivation also revokes the
// account's sessions. Administrators cannot deactivate themselves.
func (s *UserService) SetActive(ctx context.Context, actor Principal, userID string, active bool) (user model.User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if s.repo == nil {
		err = fmt.Errorf("repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "SetActive", "actor_id", actor.UserID, "user_id", userID, "active", active)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to set account state", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "account state changed")
	}()

	if !actor.IsAdmin() {
		err = ErrForbidden
		return
	}
	if !active && userID == actor.UserID {
		vErr := &ValidationError{}
		vErr.add("user_id", "cannot deactivate your own account")
		err = vErr
		return
	}

	now := s.now()
	err = s.repo.Update(ctx, func(txn *persistence.Txn) error {
		existing, getErr := txn.GetUser(ctx, userID)
		if getErr != nil {
			return getErr
		}
		existing.IsActive = active
		existing.UpdatedAt = now
		if saveErr := txn.SaveUser(ctx, existing); saveErr != nil {
			return saveErr
		}
		if !active {
			if _, delErr := txn.DeleteSessionsForUser(ctx, userID); delErr != nil {
				return delErr
			}
		}
		user = existing
		return nil
	})
	if err != nil {
		err = mapRepoError(err)
	}
	return
}

// DeleteUser removes an account along with its sessions, vehicles,
// homeoffice settings, and push subscriptions. Bookings are kept as history.
// Administrators cannot delete themselves.
func (s *UserService) DeleteUser(ctx context.Context, actor Principal, userID string) error {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if s.repo == nil {
		return fmt.Errorf("repository not configured")
	}
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if userID == actor.UserID {
		vErr := &ValidationError{}
		vErr.add("user_id", "cannot delete your own account")
		return vErr
	}

	logger := s.loggerWith(ctx, "DeleteUser", "actor_id", actor.UserID, "user_id", userID)

	err := s.repo.Update(ctx, func(txn *persistence.Txn) error {
		if _, getErr := txn.GetUser(ctx, userID); getErr != nil {
			return getErr
		}

		vehicles, listErr := txn.ListVehiclesByUser(ctx, userID)
		if listErr != nil {
			return listErr
		}
		for _, vehicle := range vehicles {
			if delErr := txn.DeleteVehicle(ctx, vehicle.ID); delErr != nil {
				return delErr
			}
		}

		if _, delErr := txn.DeleteSessionsForUser(ctx, userID); delErr != nil {
			return delErr
		}
		if _, delErr := txn.DeletePushSubscriptionsForUser(ctx, userID); delErr != nil {
			return delErr
		}
		if _, delErr := txn.DeleteHomeoffice(ctx, userID); delErr != nil {
			return delErr
		}
		return txn.DeleteUser(ctx, userID)
	})
	if err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "failed to delete user", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "user deleted")
	return nil
}

// AddVehicle registers a plate for the acting user.
func (s *UserService) AddVehicle(ctx context.Context, actor Principal, input VehicleInput) (vehicle model.Vehicle, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if s.repo == nil {
		err = fmt.Errorf("repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "AddVehicle", "actor_id", actor.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to add vehicle", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("vehicle_id", vehicle.ID).InfoContext(ctx, "vehicle added")
	}()

	plate := normalizePlate(input.Plate)
	vErr := &ValidationError{}
	validatePlate(plate, vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	err = s.repo.Update(ctx, func(txn *persistence.Txn) error {
		created := model.Vehicle{
			ID:        s.idGenerator(),
			UserID:    actor.UserID,
			Plate:     plate,
			Make:      normalizeOptionalString(input.Make),
			Model:     normalizeOptionalString(input.Model),
			Color:     normalizeOptionalString(input.Color),
			CreatedAt: now,
		}
		if saveErr := txn.SaveVehicle(ctx, created); saveErr != nil {
			return saveErr
		}
		vehicle = created
		return nil
	})
	if err != nil {
		err = mapRepoError(err)
	}
	return
}

// ListVehicles returns a user's vehicles to that user or an administrator.
func (s *UserService) ListVehicles(ctx context.Context, userID string, actor Principal) ([]model.Vehicle, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	if s.repo == nil {
		return nil, fmt.Errorf("repository not configured")
	}
	if userID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	vehicles, err := s.repo.ListVehiclesByUser(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return vehicles, nil
}

// RemoveVehicle deletes a vehicle owned by the actor, or any vehicle when
// the actor is an administrator.
func (s *UserService) RemoveVehicle(ctx context.Context, actor Principal, vehicleID string) error {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if s.repo == nil {
		return fmt.Errorf("repository not configured")
	}

	logger := s.loggerWith(ctx, "RemoveVehicle", "actor_id", actor.UserID, "vehicle_id", vehicleID)

	err := s.repo.Update(ctx, func(txn *persistence.Txn) error {
		vehicle, getErr := txn.GetVehicle(ctx, vehicleID)
		if getErr != nil {
			return getErr
		}
		if vehicle.UserID != actor.UserID && !actor.IsAdmin() {
			return ErrForbidden
		}
		return txn.DeleteVehicle(ctx, vehicleID)
	})
	if err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "failed to remove vehicle", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "vehicle removed")
	return nil
}

// SetHomeoffice stores the weekdays a user works remotely.
func (s *UserService) SetHomeoffice(ctx context.Context, actor Principal, userID string, weekdays []time.Weekday) (settings model.HomeofficeSettings, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if s.repo == nil {
		err = fmt.Errorf("repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "SetHomeoffice", "actor_id", actor.UserID, "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to set homeoffice weekdays", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "homeoffice weekdays saved")
	}()

	if userID != actor.UserID && !actor.IsAdmin() {
		err = ErrForbidden
		return
	}

	vErr := &ValidationError{}
	validateWeekdays(weekdays, "weekdays", vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	err = s.repo.Update(ctx, func(txn *persistence.Txn) error {
		if _, getErr := txn.GetUser(ctx, userID); getErr != nil {
			return getErr
		}
		updated := model.HomeofficeSettings{
			UserID:    userID,
			Weekdays:  weekdays,
			UpdatedAt: now,
		}
		if saveErr := txn.SaveHomeoffice(ctx, updated); saveErr != nil {
			return saveErr
		}
		settings = updated
		return nil
	})
	if err != nil {
		err = mapRepoError(err)
	}
	return
}

// GetHomeoffice returns a user's homeoffice weekdays. A user with none
// configured gets an empty default rather than an error.
func (s *UserService) GetHomeoffice(ctx context.Context, userID string, actor Principal) (model.HomeofficeSettings, error) {
	if s == nil {
		return model.HomeofficeSettings{}, fmt.Errorf("UserService is nil")
	}
	if s.repo == nil {
		return model.HomeofficeSettings{}, fmt.Errorf("repository not configured")
	}
	if userID != actor.UserID && !actor.IsAdmin() {
		return model.HomeofficeSettings{}, ErrForbidden
	}

	var settings model.HomeofficeSettings
	err := s.repo.View(ctx, func(txn *persistence.Txn) error {
		found, getErr := txn.GetHomeoffice(ctx, userID)
		if errors.Is(getErr, persistence.ErrNotFound) {
			settings = model.HomeofficeSettings{UserID: userID}
			return nil
		}
		if getErr != nil {
			return getErr
		}
		settings = found
		return nil
	})
	if err != nil {
		return model.HomeofficeSettings{}, mapRepoError(err)
	}
	return settings, nil
}

// SavePushSubscription stores a browser push endpoint for the acting user.
func (s *UserService) SavePushSubscription(ctx context.Context, actor Principal, sub model.PushSubscription) error {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if s.repo == nil {
		return fmt.Errorf("repository not configured")
	}

	logger := s.loggerWith(ctx, "SavePushSubscription", "actor_id", actor.UserID)

	if sub.Endpoint == "" {
		vErr := &ValidationError{}
		vErr.add("endpoint", "endpoint is required")
		return vErr
	}

	sub.UserID = actor.UserID
	sub.CreatedAt = s.now()
	err := s.repo.Update(ctx, func(txn *persistence.Txn) error {
		return txn.SavePushSubscription(ctx, sub)
	})
	if err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "failed to save push subscription", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "push subscription saved")
	return nil
}

// RemovePushSubscription deletes one of the acting user's push endpoints.
// Removing an unknown endpoint is a no-op.
func (s *UserService) RemovePushSubscription(ctx context.Context, actor Principal, endpoint string) error {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if s.repo == nil {
		return fmt.Errorf("repository not configured")
	}

	logger := s.loggerWith(ctx, "RemovePushSubscription", "actor_id", actor.UserID)

	err := s.repo.Update(ctx, func(txn *persistence.Txn) error {
		_, delErr := txn.DeletePushSubscription(ctx, actor.UserID, endpoint)
		return delErr
	})
	if err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "failed to remove push subscription", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "push subscription removed")
	return nil
}
