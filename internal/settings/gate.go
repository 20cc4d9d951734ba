package settings

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/daybook-app/daybook-api/internal/models"
	"github.com/daybook-app/daybook-api/internal/reminder"
	"github.com/daybook-app/daybook-api/internal/repository"
	"github.com/daybook-app/daybook-api/internal/scheduler"
)

// ErrPermissionRequired blocks enabling the master flag while the client has
// not reported a granted OS alert permission.
var ErrPermissionRequired = errors.New("settings: alert permission not granted")

// PermissionSource adapts the settings store to the scheduler's permission
// query. It exists separately from the Gate so the scheduler can be built
// before the Gate (the Gate needs the scheduler for its sweeps).
type PermissionSource struct {
	settings repository.SettingsRepository
}

func NewPermissionSource(settings repository.SettingsRepository) *PermissionSource {
	return &PermissionSource{settings: settings}
}

func (p *PermissionSource) PermissionGranted(ctx context.Context, userID string) (bool, error) {
	s, err := p.settings.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return s.Permission == models.PermissionGranted, nil
}

// Gate owns the master and per-category notification switches. Scheduling is
// allowed only when both the master flag and the category flag are on.
// Disabling sweeps live reminders so no orphaned OS-level alert survives a
// switch the user flipped off.
type Gate struct {
	settings repository.SettingsRepository
	ledger   repository.LedgerRepository
	sched    scheduler.Scheduler
	stores   map[models.ReminderCategory]reminder.EntityStore
	logger   zerolog.Logger
}

func NewGate(settings repository.SettingsRepository, ledger repository.LedgerRepository, sched scheduler.Scheduler, logger zerolog.Logger, stores ...reminder.EntityStore) *Gate {
	byCategory := make(map[models.ReminderCategory]reminder.EntityStore, len(stores))
	for _, store := range stores {
		byCategory[store.Category()] = store
	}
	return &Gate{
		settings: settings,
		ledger:   ledger,
		sched:    sched,
		stores:   byCategory,
		logger:   logger.With().Str("component", "settings_gate").Logger(),
	}
}

// Allows reports whether scheduling is permitted for the category. A missing
// category entry counts as enabled; the master flag is read as stored.
func (g *Gate) Allows(ctx context.Context, userID string, cat models.ReminderCategory) (bool, error) {
	s, err := g.settings.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return s.Enabled && s.CategoryEnabled(cat), nil
}

func (g *Gate) Get(ctx context.Context, userID string) (models.NotificationSettings, error) {
	return g.settings.Get(ctx, userID)
}

// PermissionGranted implements scheduler.PermissionSource.
func (g *Gate) PermissionGranted(ctx context.Context, userID string) (bool, error) {
	s, err := g.settings.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return s.Permission == models.PermissionGranted, nil
}

// RecordPermission stores the OS permission status reported by the client.
// A revoked permission does not sweep by itself; the OS already dropped the
// alerts and the next scheduling attempt will surface the denial.
func (g *Gate) RecordPermission(ctx context.Context, userID string, status models.PermissionStatus) error {
	return g.settings.SetPermission(ctx, userID, status)
}

// EnableMaster turns the master flag on. It requires a granted permission
// status so the switch never silently arms a scheduler the OS will reject.
func (g *Gate) EnableMaster(ctx context.Context, userID string) error {
	granted, err := g.PermissionGranted(ctx, userID)
	if err != nil {
		return err
	}
	if !granted {
		return ErrPermissionRequired
	}
	return g.settings.SetMaster(ctx, userID, true)
}

// DisableMaster turns the master flag off and sweeps every category: cancel
// all OS alerts, move every pending record to cancelled, then sever each
// entity's notification reference. The sweep must be complete; a partial one
// leaves orphaned OS-level alerts with no corresponding UI state.
func (g *Gate) DisableMaster(ctx context.Context, userID string) error {
	if err := g.settings.SetMaster(ctx, userID, false); err != nil {
		return err
	}

	if err := g.sched.CancelAll(ctx, userID); err != nil {
		g.logger.Warn().Err(err).Str("user_id", userID).Msg("scheduler cancel-all failed")
	}

	cancelled, err := g.ledger.CancelAllPending(ctx, userID)
	if err != nil {
		return err
	}

	var cleared int64
	for _, store := range g.stores {
		n, err := store.ClearReminders(ctx, userID)
		if err != nil {
			return err
		}
		cleared += n
	}

	g.logger.Info().
		Str("user_id", userID).
		Int64("records_cancelled", cancelled).
		Int64("entities_cleared", cleared).
		Msg("notifications disabled, reminders swept")
	return nil
}

// DisableCategory turns one category flag off and retires only that
// category's live reminders; other categories stay untouched.
func (g *Gate) DisableCategory(ctx context.Context, userID string, cat models.ReminderCategory) error {
	store, ok := g.stores[cat]
	if !ok {
		return reminder.ErrUnknownCategory
	}
	if err := g.settings.SetCategory(ctx, userID, cat, false); err != nil {
		return err
	}

	bindings, err := store.ListActiveReminders(ctx, userID)
	if err != nil {
		return err
	}
	for _, binding := range bindings {
		if binding.NotificationID == nil {
			continue
		}
		if err := g.sched.Cancel(ctx, *binding.NotificationID); err != nil {
			g.logger.Warn().Err(err).Str("handle", *binding.NotificationID).Msg("alert cancellation failed")
		}
	}

	if _, err := g.ledger.CancelPendingByCategory(ctx, userID, cat); err != nil {
		return err
	}
	if _, err := store.ClearReminders(ctx, userID); err != nil {
		return err
	}
	return nil
}

// EnableCategory turns one category flag back on. Reminders stored while the
// category was off are not retroactively scheduled.
func (g *Gate) EnableCategory(ctx context.Context, userID string, cat models.ReminderCategory) error {
	if _, ok := g.stores[cat]; !ok {
		return reminder.ErrUnknownCategory
	}
	return g.settings.SetCategory(ctx, userID, cat, true)
}

// ClearHistory purges delivered and cancelled records, optionally scoped to
// one category. Pending records are never touched.
func (g *Gate) ClearHistory(ctx context.Context, userID string, cat *models.ReminderCategory) (int64, error) {
	return g.ledger.ClearHistory(ctx, userID, cat)
}
