package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/nash87/parkhub/internal/model"
	"github.com/nash87/parkhub/internal/persistence/kv"
)

// SaveUser writes the user and both unique indices in the enclosing commit.
// A username or email already indexed to a different user fails the whole
// transaction with ErrDuplicate; when the user's own username or email
// changed, the stale index keys are removed.
func (t *Txn) SaveUser(ctx context.Context, user model.User) error {
	users, err := t.table(ctx, tableUsers)
	if err != nil {
		return err
	}
	byUsername, err := t.table(ctx, tableUsersByUsername)
	if err != nil {
		return err
	}
	byEmail, err := t.table(ctx, tableUsersByEmail)
	if err != nil {
		return err
	}

	if err := checkIndexOwner(ctx, byUsername, user.Username, user.ID, "username"); err != nil {
		return err
	}
	if err := checkIndexOwner(ctx, byEmail, user.Email, user.ID, "email"); err != nil {
		return err
	}

	prev, err := users.Get(ctx, user.ID)
	switch {
	case err == nil:
		previous, err := t.repo.users.Decode(prev)
		if err != nil {
			return err
		}
		if previous.Username != user.Username {
			if _, err := byUsername.Delete(ctx, previous.Username); err != nil {
				return err
			}
		}
		if previous.Email != user.Email {
			if _, err := byEmail.Delete(ctx, previous.Email); err != nil {
				return err
			}
		}
	case !errors.Is(err, kv.ErrKeyNotFound):
		return err
	}

	blob, err := t.repo.users.Encode(user)
	if err != nil {
		return err
	}
	if err := users.Put(ctx, user.ID, blob); err != nil {
		return err
	}
	if err := byUsername.Put(ctx, user.Username, []byte(user.ID)); err != nil {
		return err
	}
	return byEmail.Put(ctx, user.Email, []byte(user.ID))
}

// GetUser returns the user stored under id.
func (t *Txn) GetUser(ctx context.Context, id string) (model.User, error) {
	users, err := t.table(ctx, tableUsers)
	if err != nil {
		return model.User{}, err
	}
	blob, err := users.Get(ctx, id)
	if err != nil {
		return model.User{}, mapKeyErr(err)
	}
	return t.repo.users.Decode(blob)
}

// GetUserByUsername resolves the username index to its primary record.
func (t *Txn) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	return t.getUserByIndex(ctx, tableUsersByUsername, username)
}

// GetUserByEmail resolves the email index to its primary record.
func (t *Txn) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	return t.getUserByIndex(ctx, tableUsersByEmail, email)
}

func (t *Txn) getUserByIndex(ctx context.Context, indexTable, key string) (model.User, error) {
	index, err := t.table(ctx, indexTable)
	if err != nil {
		return model.User{}, err
	}
	id, err := index.Get(ctx, key)
	if err != nil {
		return model.User{}, mapKeyErr(err)
	}
	user, err := t.GetUser(ctx, string(id))
	if errors.Is(err, ErrNotFound) {
		return model.User{}, fmt.Errorf("%w: index %s[%s] points at missing user %s", ErrCorruptRecord, indexTable, key, id)
	}
	return user, err
}

// ListUsers returns every user in key order.
func (t *Txn) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := t.table(ctx, tableUsers)
	if err != nil {
		return nil, err
	}
	var out []model.User
	err = users.ForEach(ctx, func(_ string, blob []byte) error {
		user, err := t.repo.users.Decode(blob)
		if err != nil {
			return err
		}
		out = append(out, user)
		return nil
	})
	return out, err
}

// DeleteUser removes the user and both index entries in the enclosing
// commit.
func (t *Txn) DeleteUser(ctx context.Context, id string) error {
	user, err := t.GetUser(ctx, id)
	if err != nil {
		return err
	}
	users, err := t.table(ctx, tableUsers)
	if err != nil {
		return err
	}
	byUsername, err := t.table(ctx, tableUsersByUsername)
	if err != nil {
		return err
	}
	byEmail, err := t.table(ctx, tableUsersByEmail)
	if err != nil {
		return err
	}

	if _, err := users.Delete(ctx, id); err != nil {
		return err
	}
	if _, err := byUsername.Delete(ctx, user.Username); err != nil {
		return err
	}
	_, err = byEmail.Delete(ctx, user.Email)
	return err
}

func checkIndexOwner(ctx context.Context, index *kv.Table, key, id, field string) error {
	owner, err := index.Get(ctx, key)
	switch {
	case errors.Is(err, kv.ErrKeyNotFound):
		return nil
	case err != nil:
		return err
	}
	if string(owner) != id {
		return fmt.Errorf("%w: %s %q", ErrDuplicate, field, key)
	}
	return nil
}

// GetUser is the one-shot read form of Txn.GetUser.
func (r *Repository) GetUser(ctx context.Context, id string) (model.User, error) {
	var user model.User
	err := r.View(ctx, func(t *Txn) error {
		var err error
		user, err = t.GetUser(ctx, id)
		return err
	})
	return user, err
}

// GetUserByUsername is the one-shot read form of Txn.GetUserByUsername.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	var user model.User
	err := r.View(ctx, func(t *Txn) error {
		var err error
		user, err = t.GetUserByUsername(ctx, username)
		return err
	})
	return user, err
}

// GetUserByEmail is the one-shot read form of Txn.GetUserByEmail.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	var user model.User
	err := r.View(ctx, func(t *Txn) error {
		var err error
		user, err = t.GetUserByEmail(ctx, email)
		return err
	})
	return user, err
}

// ListUsers is the one-shot read form of Txn.ListUsers.
func (r *Repository) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.View(ctx, func(t *Txn) error {
		var err error
		users, err = t.ListUsers(ctx)
		return err
	})
	return users, err
}

// SaveUser is the one-shot write form of Txn.SaveUser.
func (r *Repository) SaveUser(ctx context.Context, user model.User) error {
	return r.Update(ctx, func(t *Txn) error {
		return t.SaveUser(ctx, user)
	})
}
