// Package persistence stores every ParkHub record inside a table-based
// key-value store with transparent at-rest encryption. The Repository is the
// single facade the services and scheduler share; all multi-record mutations
// compose inside one Update transaction.
package persistence

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/nash87/parkhub/internal/crypto"
	"github.com/nash87/parkhub/internal/model"
	"github.com/nash87/parkhub/internal/persistence/kv"
)

// Table names. Index tables store raw id strings; every other table stores
// codec-encoded records. The settings table stores raw strings because the
// encryption salt must be readable before any key exists.
const (
	tableUsers             = "users"
	tableUsersByUsername   = "users_by_username"
	tableUsersByEmail      = "users_by_email"
	tableSessions          = "sessions"
	tableBookings          = "bookings"
	tableBookingsByUser    = "bookings_by_user"
	tableParkingLots       = "parking_lots"
	tableParkingSlots      = "parking_slots"
	tableSlotsByLot        = "slots_by_lot"
	tableVehicles          = "vehicles"
	tableSettings          = "settings"
	tableHomeoffice        = "homeoffice"
	tableLotLayouts        = "lot_layouts"
	tableWaitlist          = "waitlist"
	tablePushSubscriptions = "push_subscriptions"
)

// Reserved settings keys.
const (
	SettingEncryptionSalt     = "encryption_salt"
	SettingSchemaVersion      = "db_version"
	SettingSetupCompleted     = "setup_completed"
	SettingAutoReleaseMinutes = "auto_release_minutes"

	schemaVersion = "2"
)

// Options configures Open.
type Options struct {
	// Path locates the database file. The parent directory is created.
	Path string
	// Passphrase enables at-rest encryption when non-empty. The key is
	// derived once and held in memory for the process lifetime.
	Passphrase string
}

// Repository is the process-wide persistence facade. Open it once and share
// it by reference.
type Repository struct {
	store *kv.Store

	users      Codec[model.User]
	sessions   Codec[model.Session]
	lots       Codec[model.ParkingLot]
	slots      Codec[model.ParkingSlot]
	bookings   Codec[model.Booking]
	vehicles   Codec[model.Vehicle]
	waitlist   Codec[model.WaitlistEntry]
	homeoffice Codec[model.HomeofficeSettings]
	layouts    Codec[model.LotLayout]
	push       Codec[model.PushSubscription]
}

// Open opens (creating if necessary) the store at opts.Path, loads or
// generates the encryption salt, stamps the schema version, and derives the
// cipher key when a passphrase is configured.
func Open(ctx context.Context, opts Options) (*Repository, error) {
	store, err := kv.Open(kv.DefaultConfig(opts.Path))
	if err != nil {
		return nil, err
	}

	salt, err := bootstrap(ctx, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	var cipher *crypto.Cipher
	if opts.Passphrase != "" {
		cipher, err = crypto.NewCipher(crypto.DeriveKey(opts.Passphrase, salt))
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	return newRepository(store, cipher), nil
}

func newRepository(store *kv.Store, cipher *crypto.Cipher) *Repository {
	return &Repository{
		store:      store,
		users:      NewCodec[model.User](cipher),
		sessions:   NewCodec[model.Session](cipher),
		lots:       NewCodec[model.ParkingLot](cipher),
		slots:      NewCodec[model.ParkingSlot](cipher),
		bookings:   NewCodec[model.Booking](cipher),
		vehicles:   NewCodec[model.Vehicle](cipher),
		waitlist:   NewCodec[model.WaitlistEntry](cipher),
		homeoffice: NewCodec[model.HomeofficeSettings](cipher),
		layouts:    NewCodec[model.LotLayout](cipher),
		push:       NewCodec[model.PushSubscription](cipher),
	}
}

// bootstrap ensures the salt and schema version settings exist and returns
// the salt bytes.
func bootstrap(ctx context.Context, store *kv.Store) ([]byte, error) {
	var salt []byte
	err := store.Update(ctx, func(txn *kv.Txn) error {
		settings, err := txn.Table(ctx, tableSettings)
		if err != nil {
			return err
		}

		raw, err := settings.Get(ctx, SettingEncryptionSalt)
		switch {
		case errors.Is(err, kv.ErrKeyNotFound):
			salt, err = crypto.NewSalt()
			if err != nil {
				return err
			}
			if err := settings.Put(ctx, SettingEncryptionSalt, []byte(hex.EncodeToString(salt))); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			salt, err = hex.DecodeString(string(raw))
			if err != nil {
				return fmt.Errorf("%w: encryption salt: %v", ErrCorruptRecord, err)
			}
		}

		_, err = settings.Get(ctx, SettingSchemaVersion)
		if errors.Is(err, kv.ErrKeyNotFound) {
			return settings.Put(ctx, SettingSchemaVersion, []byte(schemaVersion))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return salt, nil
}

// Close releases the underlying store.
func (r *Repository) Close() error {
	return r.store.Close()
}

// Txn exposes every entity operation inside one open transaction. Write
// operations fail inside View transactions.
type Txn struct {
	repo *Repository
	kv   *kv.Txn
}

// Update runs fn inside a single atomic write transaction; writers are
// serialized process-wide.
func (r *Repository) Update(ctx context.Context, fn func(*Txn) error) error {
	return r.store.Update(ctx, func(txn *kv.Txn) error {
		return fn(&Txn{repo: r, kv: txn})
	})
}

// View runs fn on a read-only snapshot that never observes a concurrent
// writer's partial effects.
func (r *Repository) View(ctx context.Context, fn func(*Txn) error) error {
	return r.store.View(ctx, func(txn *kv.Txn) error {
		return fn(&Txn{repo: r, kv: txn})
	})
}

func (t *Txn) table(ctx context.Context, name string) (*kv.Table, error) {
	return t.kv.Table(ctx, name)
}

// Stats counts the records in the primary tables.
func (r *Repository) Stats(ctx context.Context) (model.DatabaseStats, error) {
	var stats model.DatabaseStats
	err := r.View(ctx, func(t *Txn) error {
		counts := []struct {
			table string
			out   *int
		}{
			{tableUsers, &stats.Users},
			{tableParkingLots, &stats.ParkingLots},
			{tableParkingSlots, &stats.ParkingSlots},
			{tableBookings, &stats.Bookings},
			{tableVehicles, &stats.Vehicles},
			{tableSessions, &stats.Sessions},
			{tableWaitlist, &stats.WaitlistEntries},
		}
		for _, c := range counts {
			tbl, err := t.table(ctx, c.table)
			if err != nil {
				return err
			}
			n, err := tbl.Len(ctx)
			if err != nil {
				return err
			}
			*c.out = n
		}
		return nil
	})
	return stats, err
}

// mapKeyErr converts the kv-level missing-key sentinel to the repository's
// not-found error.
func mapKeyErr(err error) error {
	if errors.Is(err, kv.ErrKeyNotFound) {
		return ErrNotFound
	}
	return err
}
