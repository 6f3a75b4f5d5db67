package persistence

import (
	"context"
	"errors"

	"github.com/nash87/parkhub/internal/model"
)

// GetSetting returns the raw string stored under key.
func (t *Txn) GetSetting(ctx context.Context, key string) (string, error) {
	settings, err := t.table(ctx, tableSettings)
	if err != nil {
		return "", err
	}
	value, err := settings.Get(ctx, key)
	if err != nil {
		return "", mapKeyErr(err)
	}
	return string(value), nil
}

// SetSetting stores a raw string under key.
func (t *Txn) SetSetting(ctx context.Context, key, value string) error {
	settings, err := t.table(ctx, tableSettings)
	if err != nil {
		return err
	}
	return settings.Put(ctx, key, []byte(value))
}

// DeleteSetting removes key and reports whether it existed.
func (t *Txn) DeleteSetting(ctx context.Context, key string) (bool, error) {
	settings, err := t.table(ctx, tableSettings)
	if err != nil {
		return false, err
	}
	return settings.Delete(ctx, key)
}

// SetupCompleted reports whether first-run setup has been performed.
func (t *Txn) SetupCompleted(ctx context.Context) (bool, error) {
	value, err := t.GetSetting(ctx, SettingSetupCompleted)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return value == "true", nil
}

// MarkSetupCompleted records that first-run setup has been performed.
func (t *Txn) MarkSetupCompleted(ctx context.Context) error {
	return t.SetSetting(ctx, SettingSetupCompleted, "true")
}

// SaveHomeoffice writes the user's remote-work pattern, keyed by user id.
func (t *Txn) SaveHomeoffice(ctx context.Context, settings model.HomeofficeSettings) error {
	homeoffice, err := t.table(ctx, tableHomeoffice)
	if err != nil {
		return err
	}
	blob, err := t.repo.homeoffice.Encode(settings)
	if err != nil {
		return err
	}
	return homeoffice.Put(ctx, settings.UserID, blob)
}

// GetHomeoffice returns the user's remote-work pattern.
func (t *Txn) GetHomeoffice(ctx context.Context, userID string) (model.HomeofficeSettings, error) {
	homeoffice, err := t.table(ctx, tableHomeoffice)
	if err != nil {
		return model.HomeofficeSettings{}, err
	}
	blob, err := homeoffice.Get(ctx, userID)
	if err != nil {
		return model.HomeofficeSettings{}, mapKeyErr(err)
	}
	return t.repo.homeoffice.Decode(blob)
}

// DeleteHomeoffice removes the user's remote-work pattern, reporting whether
// one existed.
func (t *Txn) DeleteHomeoffice(ctx context.Context, userID string) (bool, error) {
	homeoffice, err := t.table(ctx, tableHomeoffice)
	if err != nil {
		return false, err
	}
	return homeoffice.Delete(ctx, userID)
}

func pushKey(userID, endpoint string) string {
	return userID + ":" + endpoint
}

// SavePushSubscription stores the push subscription keyed by user and
// endpoint.
func (t *Txn) SavePushSubscription(ctx context.Context, sub model.PushSubscription) error {
	subs, err := t.table(ctx, tablePushSubscriptions)
	if err != nil {
		return err
	}
	blob, err := t.repo.push.Encode(sub)
	if err != nil {
		return err
	}
	return subs.Put(ctx, pushKey(sub.UserID, sub.Endpoint), blob)
}

// ListPushSubscriptionsByUser returns the user's push subscriptions.
func (t *Txn) ListPushSubscriptionsByUser(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	subs, err := t.table(ctx, tablePushSubscriptions)
	if err != nil {
		return nil, err
	}
	var out []model.PushSubscription
	err = subs.Range(ctx, userID+":", func(_ string, blob []byte) error {
		sub, err := t.repo.push.Decode(blob)
		if err != nil {
			return err
		}
		out = append(out, sub)
		return nil
	})
	return out, err
}

// DeletePushSubscription removes one subscription and reports whether it
// existed.
func (t *Txn) DeletePushSubscription(ctx context.Context, userID, endpoint string) (bool, error) {
	subs, err := t.table(ctx, tablePushSubscriptions)
	if err != nil {
		return false, err
	}
	return subs.Delete(ctx, pushKey(userID, endpoint))
}

// DeletePushSubscriptionsForUser removes every subscription the user
// registered.
func (t *Txn) DeletePushSubscriptionsForUser(ctx context.Context, userID string) (int, error) {
	subs, err := t.table(ctx, tablePushSubscriptions)
	if err != nil {
		return 0, err
	}
	removed := 0
	err = subs.Range(ctx, userID+":", func(key string, _ []byte) error {
		if _, err := subs.Delete(ctx, key); err != nil {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}

// GetSetting is the one-shot read form of Txn.GetSetting.
func (r *Repository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.View(ctx, func(t *Txn) error {
		var err error
		value, err = t.GetSetting(ctx, key)
		return err
	})
	return value, err
}

// SetSetting is the one-shot write form of Txn.SetSetting.
func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	return r.Update(ctx, func(t *Txn) error {
		return t.SetSetting(ctx, key, value)
	})
}

// SetupCompleted is the one-shot read form of Txn.SetupCompleted.
func (r *Repository) SetupCompleted(ctx context.Context) (bool, error) {
	var done bool
	err := r.View(ctx, func(t *Txn) error {
		var err error
		done, err = t.SetupCompleted(ctx)
		return err
	})
	return done, err
}
