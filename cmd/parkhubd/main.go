package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/nash87/parkhub/internal/application"
	"github.com/nash87/parkhub/internal/config"
	"github.com/nash87/parkhub/internal/logging"
	"github.com/nash87/parkhub/internal/model"
	"github.com/nash87/parkhub/internal/notify"
	"github.com/nash87/parkhub/internal/persistence"
	"github.com/nash87/parkhub/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel, os.Stdout)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := persistence.Open(ctx, persistence.Options{
		Path:       filepath.Join(cfg.DataDir, "parkhub.db"),
		Passphrase: cfg.EncryptionKey,
	})
	if err != nil {
		logger.Error("failed to open repository", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := repo.Close(); cerr != nil {
			logger.Error("failed to close repository", "error", cerr)
		}
	}()

	if err := seedAdmin(ctx, repo, cfg, logger); err != nil {
		logger.Error("failed to seed administrator", "error", err)
		os.Exit(1)
	}

	notifier, err := selectNotifier(cfg, logger)
	if err != nil {
		logger.Error("failed to configure notifier", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	now := time.Now

	bookingService := application.NewBookingServiceWithLogger(repo, notifier, idGenerator, now, logger)

	sched := scheduler.NewWithLogger(repo, bookingService, scheduler.Config{}, logger)
	sched.Start(ctx)

	logger.Info("parkhubd running", "data_dir", cfg.DataDir)
	<-ctx.Done()

	logger.Info("shutting down")
	sched.Wait()
}

// seedAdmin creates the first super administrator account on a fresh store.
// When no password is configured one is generated and printed once.
func seedAdmin(ctx context.Context, repo *persistence.Repository, cfg config.Config, logger *slog.Logger) error {
	completed, err := repo.SetupCompleted(ctx)
	if err != nil {
		return err
	}
	if completed {
		return nil
	}

	password := cfg.AdminPassword
	generated := false
	if password == "" {
		password = uuid.NewString()
		generated = true
	}
	hash, err := application.HashPassword(password)
	if err != nil {
		return err
	}

	now := time.Now()
	admin := model.User{
		ID:           uuid.NewString(),
		Username:     cfg.AdminUsername,
		Email:        cfg.AdminEmail,
		PasswordHash: hash,
		Name:         "Administrator",
		Role:         model.RoleSuperAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	seeded := false
	err = repo.Update(ctx, func(txn *persistence.Txn) error {
		done, checkErr := txn.SetupCompleted(ctx)
		if checkErr != nil {
			return checkErr
		}
		if done {
			return nil
		}
		if saveErr := txn.SaveUser(ctx, admin); saveErr != nil {
			return saveErr
		}
		if markErr := txn.MarkSetupCompleted(ctx); markErr != nil {
			return markErr
		}
		seeded = true
		return nil
	})
	if err != nil {
		return err
	}
	if !seeded {
		return nil
	}

	logger.Info("initial administrator created", "username", admin.Username)
	if generated {
		logger.Warn("generated initial administrator password, store it now", "password", password)
	}
	return nil
}

func selectNotifier(cfg config.Config, logger *slog.Logger) (notify.Notifier, error) {
	if cfg.ResendAPIKey == "" {
		logger.Info("no email credentials configured, notifications go to the log")
		return notify.NewLogNotifier(logger), nil
	}
	return notify.NewEmailNotifier(cfg.ResendAPIKey, cfg.EmailFrom)
}
