package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nash87/parkhub/internal/model"
	"github.com/nash87/parkhub/internal/persistence"
)

// OpenRepository opens a plaintext repository on a temporary directory. The
// store is closed when the test finishes.
func OpenRepository(tb testing.TB) *persistence.Repository {
	tb.Helper()
	return openRepository(tb, "")
}

// OpenEncryptedRepository opens a repository with at-rest encryption enabled.
func OpenEncryptedRepository(tb testing.TB, passphrase string) *persistence.Repository {
	tb.Helper()
	return openRepository(tb, passphrase)
}

func openRepository(tb testing.TB, passphrase string) *persistence.Repository {
	tb.Helper()

	repo, err := persistence.Open(context.Background(), persistence.Options{
		Path:       filepath.Join(tb.TempDir(), "parkhub.db"),
		Passphrase: passphrase,
	})
	if err != nil {
		tb.Fatalf("failed to open repository: %v", err)
	}
	tb.Cleanup(func() {
		_ = repo.Close()
	})
	return repo
}

// SeedUser persists a user record, failing the test on error.
func SeedUser(tb testing.TB, repo *persistence.Repository, user model.User) {
	tb.Helper()
	seed(tb, repo, func(ctx context.Context, txn *persistence.Txn) error {
		return txn.SaveUser(ctx, user)
	})
}

// SeedLot persists a lot record, failing the test on error.
func SeedLot(tb testing.TB, repo *persistence.Repository, lot model.ParkingLot) {
	tb.Helper()
	seed(tb, repo, func(ctx context.Context, txn *persistence.Txn) error {
		return txn.SaveLot(ctx, lot)
	})
}

// SeedSlot persists a slot record, failing the test on error.
func SeedSlot(tb testing.TB, repo *persistence.Repository, slot model.ParkingSlot) {
	tb.Helper()
	seed(tb, repo, func(ctx context.Context, txn *persistence.Txn) error {
		return txn.SaveSlot(ctx, slot)
	})
}

// SeedBooking persists a booking record, failing the test on error.
func SeedBooking(tb testing.TB, repo *persistence.Repository, booking model.Booking) {
	tb.Helper()
	seed(tb, repo, func(ctx context.Context, txn *persistence.Txn) error {
		return txn.SaveBooking(ctx, booking)
	})
}

// SeedWaitlistEntry persists a waitlist entry, failing the test on error.
func SeedWaitlistEntry(tb testing.TB, repo *persistence.Repository, entry model.WaitlistEntry) {
	tb.Helper()
	seed(tb, repo, func(ctx context.Context, txn *persistence.Txn) error {
		return txn.SaveWaitlistEntry(ctx, entry)
	})
}

func seed(tb testing.TB, repo *persistence.Repository, fn func(context.Context, *persistence.Txn) error) {
	tb.Helper()
	ctx := context.Background()
	if err := repo.Update(ctx, func(txn *persistence.Txn) error {
		return fn(ctx, txn)
	}); err != nil {
		tb.Fatalf("failed to seed repository: %v", err)
	}
}
