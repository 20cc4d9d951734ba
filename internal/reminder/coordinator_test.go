package reminder_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybook-app/daybook-api/internal/models"
	"github.com/daybook-app/daybook-api/internal/reminder"
	"github.com/daybook-app/daybook-api/internal/scheduler"
	"github.com/daybook-app/daybook-api/internal/testutil"
)

type gateStub struct {
	allowed bool
	err     error
}

func (g gateStub) Allows(ctx context.Context, userID string, cat models.ReminderCategory) (bool, error) {
	return g.allowed, g.err
}

type fixture struct {
	ledger    *testutil.MemoryLedger
	sched     *testutil.FakeScheduler
	tasks     *testutil.MemoryEntityStore
	birthdays *testutil.MemoryEntityStore
	coord     reminder.Coordinator
}

func newFixture(t *testing.T, gate reminder.Gate) *fixture {
	t.Helper()
	f := &fixture{
		ledger:    testutil.NewMemoryLedger(),
		sched:     testutil.NewFakeScheduler(),
		tasks:     testutil.NewMemoryEntityStore(models.CategoryTasks),
		birthdays: testutil.NewMemoryEntityStore(models.CategoryBirthdays),
	}
	f.coord = reminder.NewCoordinator(f.ledger, f.sched, gate, zerolog.Nop(), f.tasks, f.birthdays)
	return f
}

func TestAttachSchedulesAndRecords(t *testing.T) {
	f := newFixture(t, gateStub{allowed: true})
	f.tasks.Add("user-1", "task-1", "Water the plants")
	at := time.Now().Add(time.Hour)

	res, err := f.coord.Attach(context.Background(), "user-1", models.CategoryTasks, "task-1", at)
	require.NoError(t, err)
	assert.Equal(t, reminder.OutcomeScheduled, res.Outcome)
	require.NotNil(t, res.Record)
	assert.Equal(t, models.NotificationStatusPending, res.Record.Status)
	assert.Equal(t, "Water the plants", res.Record.Title)

	binding, err := f.tasks.GetBinding(context.Background(), "user-1", "task-1")
	require.NoError(t, err)
	require.NotNil(t, binding.NotificationID)
	assert.Equal(t, res.Record.ID, *binding.NotificationID)
	require.NotNil(t, binding.ReminderAt)
	assert.True(t, binding.ReminderAt.Equal(at))
	assert.Equal(t, 1, f.sched.Live())
}

func TestAttachSameTimeIsNoop(t *testing.T) {
	f := newFixture(t, gateStub{allowed: true})
	f.tasks.Add("user-1", "task-1", "Water the plants")
	at := time.Now().Add(time.Hour)

	first, err := f.coord.Attach(context.Background(), "user-1", models.CategoryTasks, "task-1", at)
	require.NoError(t, err)
	require.Equal(t, reminder.OutcomeScheduled, first.Outcome)

	second, err := f.coord.Attach(context.Background(), "user-1", models.CategoryTasks, "task-1", at)
	require.NoError(t, err)
	assert.Equal(t, reminder.OutcomeUnchanged, second.Outcome)
	assert.Nil(t, second.Record)
	assert.Len(t, f.ledger.Records(), 1, "no second record for an identical time")
}

func TestRetrySameTimeAfterSchedulerFailure(t *testing.T) {
	f := newFixture(t, gateStub{allowed: true})
	f.tasks.Add("user-1", "task-1", "Water the plants")
	at := time.Now().Add(time.Hour)

	f.sched.ScheduleErr = scheduler.ErrSchedulerUnavailable
	_, err := f.coord.Attach(context.Background(), "user-1", models.CategoryTasks, "task-1", at)
	require.ErrorIs(t, err, scheduler.ErrSchedulerUnavailable)

	// The stored time must not swallow a retry at the same time.
	f.sched.ScheduleErr = nil
	res, err := f.coord.Attach(context.Background(), "user-1", models.CategoryTasks, "task-1", at)
	require.NoError(t, err)
	assert.Equal(t, reminder.OutcomeScheduled, res.Outcome)
	require.NotNil(t, res.Record)
	assert.Equal(t, 1, f.sched.Live())
}

func TestReattachSameTimeAfterGateOpens(t *testing.T) {
	gate := &gateStub{allowed: false}
	f := newFixture(t, gate)
	f.tasks.Add("user-1", "task-1", "Water the plants")
	at := time.Now().Add(time.Hour)

	res, err := f.coord.Attach(context.Background(), "user-1", models.CategoryTasks, "task-1", at)
	require.NoError(t, err)
	require.Equal(t, reminder.OutcomeStoredOnly, res.Outcome)

	// Re-enabling never schedules retroactively; an explicit attach at the
	// unchanged time is the arming path and must go through.
	gate.allowed = true
	res, err = f.coord.Attach(context.Background(), "user-1", models.CategoryTasks, "task-1", at)
	require.NoError(t, err)
	assert.Equal(t, reminder.OutcomeScheduled, res.Outcome)
	assert.Equal(t, 1, f.sched.Live())
}

func TestAttachRejectsPastTime(t *testing.T) {
	f := newFixture(t, gateStub{allowed: true})
	f.tasks.Add("user-1", "task-1", "Water the plants")

	_, err := f.coord.Attach(context.Background(), "user-1", models.CategoryTasks, "task-1", time.Now().Add(-time.Minute))
	require.ErrorIs(t, err, reminder.ErrPastReminder)

	binding, err := f.tasks.GetBinding(context.Background(), "user-1", "task-1")
	require.NoError(t, err)
	assert.Nil(t, binding.ReminderAt, "rejected time must not be persisted")
	assert.Empty(t, f.ledger.Records())
	assert.Equal(t, 0, f.sched.Live())
}

func TestAttachUnknownCategory(t *testing.T) {
	f := newFixture(t, gateStub{allowed: true})
	_, err := f.coord.Attach(context.Background(), "user-1", models.ReminderCategory("chores"), "x", time.Now().Add(time.Hour))
	require.ErrorIs(t, err, reminder.ErrUnknownCategory)
}

func TestAttachGateDeniedStoresTimeOnly(t *testing.T) {
	f := newFixture(t, gateStub{allowed: false})
	f.tasks.Add("user-1", "task-1", "Water the plants")
	at := time.Now().Add(time.Hour)

	res, err := f.coord.Attach(context.Background(), "user-1", models.CategoryTasks, "task-1", at)
	require.NoError(t, err)
	assert.Equal(t, reminder.OutcomeStoredOnly, res.Outcome)

	binding, err := f.tasks.GetBinding(context.Background(), "user-1", "task-1")
	require.NoError(t, err)
	require.NotNil(t, binding.ReminderAt)
	assert.True(t, binding.ReminderAt.Equal(at))
	assert.Nil(t, binding.NotificationID)
	assert.Equal(t, 0, f.sched.Live())
	assert.Empty(t, f.ledger.Records())
}

func TestRescheduleRetiresSupersededRecord(t *testing.T) {
	f := newFixture(t, gateStub{allowed: true})
	f.tasks.Add("user-1", "task-1", "Water the plants")

	first, err := f.coord.Attach(context.Background(), "user-1", models.CategoryTasks, "task-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	newAt := time.Now().Add(2 * time.Hour)
	second, err := f.coord.Reschedule(context.Background(), "user-1", models.CategoryTasks, "task-1", newAt)
	require.NoError(t, err)
	require.Equal(t, reminder.OutcomeScheduled, second.Outcome)
	assert.NotEqual(t, first.Record.ID, second.Record.ID, "handles are never reused")

	records := f.ledger.Records()
	require.Len(t, records, 2)
	assert.Equal(t, models.NotificationStatusModifiedCancelled, records[0].Status)
	assert.Equal(t, models.NotificationStatusPending, records[1].Status)

	assert.Contains(t, f.sched.CancelLog, first.Record.ID)
	assert.Equal(t, 1, f.sched.Live(), "exactly one live alert after a reschedule")

	binding, err := f.tasks.GetBinding(context.Background(), "user-1", "task-1")
	require.NoError(t, err)
	assert.Equal(t, second.Record.ID, *binding.NotificationID)
}

func TestAttachSchedulerFailureKeepsTime(t *testing.T) {
	f := newFixture(t, gateStub{allowed: true})
	f.tasks.Add("user-1", "task-1", "Water the plants")
	f.sched.ScheduleErr = scheduler.ErrSchedulerUnavailable
	at := time.Now().Add(time.Hour)

	_, err := f.coord.Attach(context.Background(), "user-1", models.CategoryTasks, "task-1", at)
	require.ErrorIs(t, err, scheduler.ErrSchedulerUnavailable)

	binding, err := f.tasks.GetBinding(context.Background(), "user-1", "task-1")
	require.NoError(t, err)
	require.NotNil(t, binding.ReminderAt, "chosen time survives a scheduling failure")
	assert.True(t, binding.ReminderAt.Equal(at))
	assert.Nil(t, binding.NotificationID)
}

func TestAttachLedgerFailureCancelsAlert(t *testing.T) {
	f := newFixture(t, gateStub{allowed: true})
	f.tasks.Add("user-1", "task-1", "Water the plants")
	f.ledger.AppendErr = errors.New("connection reset")

	_, err := f.coord.Attach(context.Background(), "user-1", models.CategoryTasks, "task-1", time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.Equal(t, 0, f.sched.Live(), "an unrecorded alert must never stay scheduled")
	assert.Len(t, f.sched.CancelLog, 1)
}

func TestRetireCancelsRecordAndClearsBinding(t *testing.T) {
	f := newFixture(t, gateStub{allowed: true})
	f.tasks.Add("user-1", "task-1", "Water the plants")

	res, err := f.coord.Attach(context.Background(), "user-1", models.CategoryTasks, "task-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, f.coord.Retire(context.Background(), "user-1", models.CategoryTasks, "task-1"))

	rec, err := f.ledger.Get(context.Background(), "user-1", res.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationStatusCancelled, rec.Status)

	binding, err := f.tasks.GetBinding(context.Background(), "user-1", "task-1")
	require.NoError(t, err)
	assert.Nil(t, binding.ReminderAt)
	assert.Nil(t, binding.NotificationID)
	assert.True(t, binding.ReminderCancelled)
	assert.Equal(t, 0, f.sched.Live())
}

func TestRetireIsIdempotent(t *testing.T) {
	f := newFixture(t, gateStub{allowed: true})
	f.tasks.Add("user-1", "task-1", "Water the plants")

	_, err := f.coord.Attach(context.Background(), "user-1", models.CategoryTasks, "task-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, f.coord.Retire(context.Background(), "user-1", models.CategoryTasks, "task-1"))
	require.NoError(t, f.coord.Retire(context.Background(), "user-1", models.CategoryTasks, "task-1"))
	assert.Len(t, f.sched.CancelLog, 1, "second retire must not reach the scheduler")
}

func TestRetireStoredOnlyReminder(t *testing.T) {
	f := newFixture(t, gateStub{allowed: false})
	f.tasks.Add("user-1", "task-1", "Water the plants")

	_, err := f.coord.Attach(context.Background(), "user-1", models.CategoryTasks, "task-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, f.coord.Retire(context.Background(), "user-1", models.CategoryTasks, "task-1"))

	binding, err := f.tasks.GetBinding(context.Background(), "user-1", "task-1")
	require.NoError(t, err)
	assert.Nil(t, binding.ReminderAt)
	assert.False(t, binding.ReminderCancelled, "no record existed, so nothing was cancelled")
}

func TestMarkDelivered(t *testing.T) {
	f := newFixture(t, gateStub{allowed: true})
	f.tasks.Add("user-1", "task-1", "Water the plants")

	res, err := f.coord.Attach(context.Background(), "user-1", models.CategoryTasks, "task-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, f.coord.MarkDelivered(context.Background(), res.Record.ID))

	rec, err := f.ledger.Get(context.Background(), "user-1", res.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationStatusSent, rec.Status)
}

func TestLateDeliveryAfterRetireIsNoop(t *testing.T) {
	f := newFixture(t, gateStub{allowed: true})
	f.tasks.Add("user-1", "task-1", "Water the plants")

	res, err := f.coord.Attach(context.Background(), "user-1", models.CategoryTasks, "task-1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, f.coord.Retire(context.Background(), "user-1", models.CategoryTasks, "task-1"))

	// The alert fired before the cancel reached the scheduler.
	require.NoError(t, f.coord.MarkDelivered(context.Background(), res.Record.ID))

	rec, err := f.ledger.Get(context.Background(), "user-1", res.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationStatusCancelled, rec.Status, "a late delivery must not overwrite a terminal status")
}

func TestMarkReadLeavesStatusAlone(t *testing.T) {
	f := newFixture(t, gateStub{allowed: true})
	f.tasks.Add("user-1", "task-1", "Water the plants")

	res, err := f.coord.Attach(context.Background(), "user-1", models.CategoryTasks, "task-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	rec, err := f.coord.MarkRead(context.Background(), "user-1", res.Record.ID)
	require.NoError(t, err)
	assert.True(t, rec.Read)
	assert.Equal(t, models.NotificationStatusPending, rec.Status)

	_, err = f.coord.MarkRead(context.Background(), "user-1", "no-such-record")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestMarkDeliveredUnknownHandle(t *testing.T) {
	f := newFixture(t, gateStub{allowed: true})
	require.NoError(t, f.coord.MarkDelivered(context.Background(), "no-such-handle"))
}

func TestEntityLifecycleCascades(t *testing.T) {
	cascades := map[string]func(reminder.Coordinator, context.Context, string, models.ReminderCategory, string) error{
		"completed": reminder.Coordinator.EntityCompleted,
		"archived":  reminder.Coordinator.EntityArchived,
		"deleted":   reminder.Coordinator.EntityDeleted,
	}
	for name, cascade := range cascades {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, gateStub{allowed: true})
			f.tasks.Add("user-1", "task-1", "Water the plants")

			res, err := f.coord.Attach(context.Background(), "user-1", models.CategoryTasks, "task-1", time.Now().Add(time.Hour))
			require.NoError(t, err)

			require.NoError(t, cascade(f.coord, context.Background(), "user-1", models.CategoryTasks, "task-1"))

			rec, err := f.ledger.Get(context.Background(), "user-1", res.Record.ID)
			require.NoError(t, err)
			assert.Equal(t, models.NotificationStatusCancelled, rec.Status)
			assert.Equal(t, 0, f.sched.Live())
		})
	}
}

func TestStatusReflectsRecord(t *testing.T) {
	f := newFixture(t, gateStub{allowed: true})
	f.birthdays.Add("user-1", "bd-1", "Ada")
	at := time.Now().Add(time.Hour)

	res, err := f.coord.Attach(context.Background(), "user-1", models.CategoryBirthdays, "bd-1", at)
	require.NoError(t, err)
	assert.Equal(t, "Birthday: Ada", res.Record.Title)
	assert.Equal(t, "gift", res.Record.CategoryIcon)

	status, err := f.coord.Status(context.Background(), "user-1", models.CategoryBirthdays, "bd-1")
	require.NoError(t, err)
	require.NotNil(t, status.ReminderAt)
	assert.True(t, status.ReminderAt.Equal(at))
	assert.Equal(t, models.NotificationStatusPending, status.Status)
	assert.False(t, status.Read)
	assert.False(t, status.Cancelled)
}

func TestCounts(t *testing.T) {
	f := newFixture(t, gateStub{allowed: true})
	f.tasks.Add("user-1", "task-1", "Water the plants")
	f.tasks.Add("user-1", "task-2", "File taxes")
	f.birthdays.Add("user-1", "bd-1", "Ada")

	_, err := f.coord.Attach(context.Background(), "user-1", models.CategoryTasks, "task-1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = f.coord.Attach(context.Background(), "user-1", models.CategoryTasks, "task-2", time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	res, err := f.coord.Attach(context.Background(), "user-1", models.CategoryBirthdays, "bd-1", time.Now().Add(3*time.Hour))
	require.NoError(t, err)

	require.NoError(t, f.coord.MarkDelivered(context.Background(), res.Record.ID))

	active, err := f.coord.ActiveCounts(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, active[models.CategoryTasks])
	assert.Equal(t, 0, active[models.CategoryBirthdays])

	unread, err := f.coord.UnreadCounts(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, unread[models.CategoryTasks])
	assert.Equal(t, 1, unread[models.CategoryBirthdays], "delivered but unread still counts")
}
