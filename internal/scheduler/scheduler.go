// Package scheduler runs the background maintenance loops: auto-releasing
// unclaimed bookings, sending check-in reminders, and sweeping stale waitlist
// entries and sessions.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nash87/parkhub/internal/logging"
	"github.com/nash87/parkhub/internal/persistence"
)

const (
	defaultAutoReleaseInterval = time.Minute
	defaultReminderInterval    = 5 * time.Minute
	defaultCleanupInterval     = time.Hour

	reminderWindowLower = 25 * time.Minute
	reminderWindowUpper = 30 * time.Minute

	envAutoReleaseMinutes = "PARKHUB_AUTO_RELEASE_MINUTES"
)

// BookingEngine is the slice of the booking service the scheduler drives.
type BookingEngine interface {
	ReleaseOverdue(ctx context.Context, grace time.Duration) (int, error)
	SendReminders(ctx context.Context, lower, upper time.Duration) (int, error)
	CleanupWaitlist(ctx context.Context) (int, error)
}

// Store is the repository surface the scheduler reads settings from and
// sweeps sessions through.
type Store interface {
	GetSetting(ctx context.Context, key string) (string, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}

// Config adjusts loop timing. Zero values use the production defaults.
type Config struct {
	AutoReleaseInterval time.Duration
	ReminderInterval    time.Duration
	CleanupInterval     time.Duration
}

// Scheduler owns one goroutine per loop. Each loop holds only the handles it
// needs and stops when the context passed to Start is cancelled.
type Scheduler struct {
	store    Store
	bookings BookingEngine
	env      func(string) string
	now      func() time.Time
	logger   *slog.Logger

	autoReleaseInterval time.Duration
	reminderInterval    time.Duration
	cleanupInterval     time.Duration

	wg sync.WaitGroup
}

// New constructs a Scheduler with the provided dependencies.
func New(store Store, bookings BookingEngine, cfg Config) *Scheduler {
	return NewWithLogger(store, bookings, cfg, nil)
}

// NewWithLogger constructs a Scheduler with a specified logger.
func NewWithLogger(store Store, bookings BookingEngine, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.AutoReleaseInterval <= 0 {
		cfg.AutoReleaseInterval = defaultAutoReleaseInterval
	}
	if cfg.ReminderInterval <= 0 {
		cfg.ReminderInterval = defaultReminderInterval
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaultCleanupInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:               store,
		bookings:            bookings,
		env:                 os.Getenv,
		now:                 time.Now,
		logger:              logger.With("component", "scheduler"),
		autoReleaseInterval: cfg.AutoReleaseInterval,
		reminderInterval:    cfg.ReminderInterval,
		cleanupInterval:     cfg.CleanupInterval,
	}
}

// Start launches the three loops. They run until ctx is cancelled; call Wait
// to block until they have all returned.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.store == nil || s.bookings == nil {
		return
	}

	s.logger.InfoContext(ctx, "scheduler started",
		"auto_release_interval", s.autoReleaseInterval.String(),
		"reminder_interval", s.reminderInterval.String(),
		"cleanup_interval", s.cleanupInterval.String(),
	)

	s.wg.Add(3)
	go s.loop(ctx, s.autoReleaseInterval, s.runAutoRelease)
	go s.loop(ctx, s.reminderInterval, s.runReminders)
	go s.loop(ctx, s.cleanupInterval, s.runCleanup)
}

// Wait blocks until every loop started by Start has stopped.
func (s *Scheduler) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	defer s.wg.Done()
	// Service operations invoked by a tick log through the scheduler's
	// logger rather than the process default.
	ctx = logging.ContextWithLogger(ctx, s.logger)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

// runAutoRelease releases overdue bookings using the currently configured
// grace period. A grace of zero disables the sweep for this tick.
func (s *Scheduler) runAutoRelease(ctx context.Context) {
	minutes := s.graceMinutes(ctx)
	if minutes <= 0 {
		return
	}
	if _, err := s.bookings.ReleaseOverdue(ctx, time.Duration(minutes)*time.Minute); err != nil {
		s.logger.ErrorContext(ctx, "auto-release sweep failed", "error", err)
	}
}

func (s *Scheduler) runReminders(ctx context.Context) {
	if _, err := s.bookings.SendReminders(ctx, reminderWindowLower, reminderWindowUpper); err != nil {
		s.logger.ErrorContext(ctx, "reminder sweep failed", "error", err)
	}
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	if _, err := s.bookings.CleanupWaitlist(ctx); err != nil {
		s.logger.ErrorContext(ctx, "waitlist cleanup failed", "error", err)
	}
	if _, err := s.store.DeleteExpiredSessions(ctx, s.now()); err != nil {
		s.logger.ErrorContext(ctx, "session cleanup failed", "error", err)
	}
}

// graceMinutes resolves the auto-release grace period. The persisted setting
// wins, the environment is the fallback, and anything missing or malformed
// means disabled.
func (s *Scheduler) graceMinutes(ctx context.Context) int {
	raw, err := s.store.GetSetting(ctx, persistence.SettingAutoReleaseMinutes)
	if err != nil && !errors.Is(err, persistence.ErrNotFound) {
		s.logger.ErrorContext(ctx, "failed to read auto-release setting", "error", err)
		return 0
	}
	if strings.TrimSpace(raw) == "" {
		raw = s.env(envAutoReleaseMinutes)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes < 0 {
		s.logger.WarnContext(ctx, "ignoring invalid auto-release minutes", "value", raw)
		return 0
	}
	return minutes
}
