package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/daybook-app/daybook-api/internal/models"
	"github.com/daybook-app/daybook-api/internal/repository"
	"github.com/daybook-app/daybook-api/internal/scheduler"
)

var (
	// ErrPastReminder rejects reminder times that are not in the future.
	// Nothing is scheduled and no record is created.
	ErrPastReminder = errors.New("reminder: time is in the past")

	// ErrUnknownCategory means no entity store is registered for the
	// requested category.
	ErrUnknownCategory = errors.New("reminder: unknown category")
)

// EntityStore is the coordinator's view of a reminder-bearing entity
// collection. Task and birthday repositories implement it; the coordinator
// never talks to their tables directly.
type EntityStore interface {
	Category() models.ReminderCategory
	GetBinding(ctx context.Context, userID, entityID string) (models.ReminderBinding, error)
	SetReminder(ctx context.Context, userID, entityID string, reminderAt *time.Time, notificationID *string, cancelled bool) error
	ListActiveReminders(ctx context.Context, userID string) ([]models.ReminderBinding, error)
	ClearReminders(ctx context.Context, userID string) (int64, error)
}

// Gate answers whether scheduling is currently allowed for a category.
// Declared here so the settings package can depend on reminder without a
// cycle.
type Gate interface {
	Allows(ctx context.Context, userID string, cat models.ReminderCategory) (bool, error)
}

type AttachOutcome string

const (
	// OutcomeScheduled means an alert was scheduled and a pending record
	// appended.
	OutcomeScheduled AttachOutcome = "scheduled"
	// OutcomeStoredOnly means the reminder time was persisted but no alert
	// was scheduled because the gate denied the category or master flag.
	// Re-enabling notifications does not retroactively schedule it.
	OutcomeStoredOnly AttachOutcome = "stored_only"
	// OutcomeUnchanged means the requested time equals the current one and
	// nothing was done.
	OutcomeUnchanged AttachOutcome = "unchanged"
)

type AttachResult struct {
	Outcome AttachOutcome              `json:"outcome"`
	Record  *models.NotificationRecord `json:"record,omitempty"`
}

// Status is the per-entity read surface for the UI: the chosen time, the
// referenced record's status and read flag (zero values when no record
// exists), and the cancelled display mirror.
type Status struct {
	ReminderAt *time.Time                `json:"reminder_at,omitempty"`
	Status     models.NotificationStatus `json:"status,omitempty"`
	Read       bool                      `json:"read"`
	Cancelled  bool                      `json:"cancelled"`
}

// Coordinator orchestrates the reminder lifecycle. It is the only mutation
// entry point: handlers never call the scheduler or the ledger directly.
type Coordinator interface {
	Attach(ctx context.Context, userID string, cat models.ReminderCategory, entityID string, at time.Time) (AttachResult, error)
	Retire(ctx context.Context, userID string, cat models.ReminderCategory, entityID string) error
	Reschedule(ctx context.Context, userID string, cat models.ReminderCategory, entityID string, newAt time.Time) (AttachResult, error)
	EntityCompleted(ctx context.Context, userID string, cat models.ReminderCategory, entityID string) error
	EntityArchived(ctx context.Context, userID string, cat models.ReminderCategory, entityID string) error
	EntityDeleted(ctx context.Context, userID string, cat models.ReminderCategory, entityID string) error
	MarkDelivered(ctx context.Context, handle string) error
	MarkRead(ctx context.Context, userID, notificationID string) (models.NotificationRecord, error)
	Status(ctx context.Context, userID string, cat models.ReminderCategory, entityID string) (Status, error)
	UnreadCounts(ctx context.Context, userID string) (map[models.ReminderCategory]int, error)
	ActiveCounts(ctx context.Context, userID string) (map[models.ReminderCategory]int, error)
}

type coordinator struct {
	stores map[models.ReminderCategory]EntityStore
	ledger repository.LedgerRepository
	sched  scheduler.Scheduler
	gate   Gate
	logger zerolog.Logger
}

func NewCoordinator(ledger repository.LedgerRepository, sched scheduler.Scheduler, gate Gate, logger zerolog.Logger, stores ...EntityStore) Coordinator {
	byCategory := make(map[models.ReminderCategory]EntityStore, len(stores))
	for _, store := range stores {
		byCategory[store.Category()] = store
	}
	return &coordinator{
		stores: byCategory,
		ledger: ledger,
		sched:  sched,
		gate:   gate,
		logger: logger.With().Str("component", "reminder_coordinator").Logger(),
	}
}

func (c *coordinator) store(cat models.ReminderCategory) (EntityStore, error) {
	store, ok := c.stores[cat]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, cat)
	}
	return store, nil
}

// Attach sets a reminder for an entity. When a live alert already exists for
// the exact requested time the call is a no-op; a stored time with no live
// alert (a failed or gated earlier attach) never short-circuits, so retrying
// at the same time arms the reminder. If the entity already holds a live
// notification for a different time, that record is retired as
// modified_cancelled first, so at most one pending record ever references
// the entity.
func (c *coordinator) Attach(ctx context.Context, userID string, cat models.ReminderCategory, entityID string, at time.Time) (AttachResult, error) {
	store, err := c.store(cat)
	if err != nil {
		return AttachResult{}, err
	}
	binding, err := store.GetBinding(ctx, userID, entityID)
	if err != nil {
		return AttachResult{}, err
	}

	if binding.NotificationID != nil && binding.ReminderAt != nil && binding.ReminderAt.Equal(at) {
		return AttachResult{Outcome: OutcomeUnchanged}, nil
	}
	if !at.After(time.Now()) {
		return AttachResult{}, ErrPastReminder
	}

	// A reschedule retires the superseded record before anything else; if
	// we are interrupted past this point the entity ends up with no live
	// alert, which beats a duplicate one.
	if binding.NotificationID != nil {
		if err := c.retireRecord(ctx, *binding.NotificationID, models.NotificationStatusModifiedCancelled); err != nil {
			return AttachResult{}, err
		}
	}

	// Persist the chosen time first: a reminder time can exist without an
	// active alert, and a scheduling failure must not drop it.
	if err := store.SetReminder(ctx, userID, entityID, &at, nil, false); err != nil {
		return AttachResult{}, err
	}

	allowed, err := c.gate.Allows(ctx, userID, cat)
	if err != nil {
		return AttachResult{}, err
	}
	if !allowed {
		return AttachResult{Outcome: OutcomeStoredOnly}, nil
	}

	title, body, icon := alertContent(cat, binding.Title)
	handle, err := c.sched.Schedule(ctx, scheduler.AlertRequest{
		UserID:   userID,
		Category: cat,
		Title:    title,
		Body:     body,
		FireAt:   at,
	})
	if err != nil {
		return AttachResult{}, err
	}

	rec, err := c.ledger.Append(ctx, models.NotificationRecord{
		ID:           handle,
		UserID:       userID,
		Category:     cat,
		Title:        title,
		Body:         body,
		ScheduledAt:  at,
		CategoryIcon: icon,
	})
	if err != nil {
		// The alert exists but the ledger does not know it; cancel so it
		// can never fire unrecorded.
		if cancelErr := c.sched.Cancel(ctx, handle); cancelErr != nil {
			c.logger.Warn().Err(cancelErr).Str("handle", handle).Msg("failed to cancel unrecorded alert")
		}
		return AttachResult{}, err
	}

	if err := store.SetReminder(ctx, userID, entityID, &at, &rec.ID, false); err != nil {
		return AttachResult{}, err
	}

	c.logger.Info().
		Str("user_id", userID).
		Str("category", string(cat)).
		Str("entity_id", entityID).
		Str("handle", rec.ID).
		Time("fire_at", at).
		Msg("reminder scheduled")
	return AttachResult{Outcome: OutcomeScheduled, Record: &rec}, nil
}

// Retire removes an entity's reminder outright. The local state change is
// unconditional: the ledger's cancelled status records the user's intent
// even if the external cancel is delayed or fails. Calling it again is a
// no-op.
func (c *coordinator) Retire(ctx context.Context, userID string, cat models.ReminderCategory, entityID string) error {
	store, err := c.store(cat)
	if err != nil {
		return err
	}
	binding, err := store.GetBinding(ctx, userID, entityID)
	if err != nil {
		return err
	}
	if binding.ReminderAt == nil && binding.NotificationID == nil {
		return nil
	}

	hadRecord := binding.NotificationID != nil
	if hadRecord {
		if err := c.retireRecord(ctx, *binding.NotificationID, models.NotificationStatusCancelled); err != nil {
			return err
		}
	}
	return store.SetReminder(ctx, userID, entityID, nil, nil, hadRecord)
}

// retireRecord cancels the external alert (fire-and-forget) and moves the
// ledger record to the given terminal status.
func (c *coordinator) retireRecord(ctx context.Context, handle string, status models.NotificationStatus) error {
	if err := c.sched.Cancel(ctx, handle); err != nil {
		c.logger.Warn().Err(err).Str("handle", handle).Msg("alert cancellation failed")
	}
	transitioned, err := c.ledger.MarkTerminal(ctx, handle, status)
	if err != nil {
		return err
	}
	if !transitioned {
		c.logger.Debug().Str("handle", handle).Msg("record already terminal, nothing to retire")
	}
	return nil
}

func (c *coordinator) Reschedule(ctx context.Context, userID string, cat models.ReminderCategory, entityID string, newAt time.Time) (AttachResult, error) {
	return c.Attach(ctx, userID, cat, entityID, newAt)
}

// EntityCompleted cascades into retirement: a completed task must never
// still ring. Same for archive and delete below.
func (c *coordinator) EntityCompleted(ctx context.Context, userID string, cat models.ReminderCategory, entityID string) error {
	return c.Retire(ctx, userID, cat, entityID)
}

func (c *coordinator) EntityArchived(ctx context.Context, userID string, cat models.ReminderCategory, entityID string) error {
	return c.Retire(ctx, userID, cat, entityID)
}

func (c *coordinator) EntityDeleted(ctx context.Context, userID string, cat models.ReminderCategory, entityID string) error {
	return c.Retire(ctx, userID, cat, entityID)
}

// MarkDelivered is the delivery callback. A handle that is unknown or whose
// record already left pending is silently ignored: a late delivery for an
// already-retired reminder must not resurrect its displayed status.
func (c *coordinator) MarkDelivered(ctx context.Context, handle string) error {
	transitioned, err := c.ledger.MarkTerminal(ctx, handle, models.NotificationStatusSent)
	if err != nil {
		return err
	}
	if !transitioned {
		c.logger.Debug().Str("handle", handle).Msg("delivery callback for retired or unknown record")
	}
	return nil
}

// MarkRead flips the read flag and returns the updated record. The record's
// status is never touched from here.
func (c *coordinator) MarkRead(ctx context.Context, userID, notificationID string) (models.NotificationRecord, error) {
	if err := c.ledger.MarkRead(ctx, userID, notificationID); err != nil {
		return models.NotificationRecord{}, err
	}
	return c.ledger.Get(ctx, userID, notificationID)
}

func (c *coordinator) Status(ctx context.Context, userID string, cat models.ReminderCategory, entityID string) (Status, error) {
	store, err := c.store(cat)
	if err != nil {
		return Status{}, err
	}
	binding, err := store.GetBinding(ctx, userID, entityID)
	if err != nil {
		return Status{}, err
	}

	status := Status{
		ReminderAt: binding.ReminderAt,
		Cancelled:  binding.ReminderCancelled,
	}
	if binding.NotificationID != nil {
		rec, err := c.ledger.Get(ctx, userID, *binding.NotificationID)
		if err != nil {
			return Status{}, err
		}
		status.Status = rec.Status
		status.Read = rec.Read
	}
	return status, nil
}

func (c *coordinator) UnreadCounts(ctx context.Context, userID string) (map[models.ReminderCategory]int, error) {
	return c.ledger.UnreadCounts(ctx, userID)
}

func (c *coordinator) ActiveCounts(ctx context.Context, userID string) (map[models.ReminderCategory]int, error) {
	return c.ledger.PendingCounts(ctx, userID)
}

func alertContent(cat models.ReminderCategory, entityTitle string) (title, body, icon string) {
	switch cat {
	case models.CategoryBirthdays:
		return fmt.Sprintf("Birthday: %s", entityTitle), "Don't forget to send your wishes.", "gift"
	default:
		return entityTitle, "It's time for your task.", "checkmark"
	}
}
