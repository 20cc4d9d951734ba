package settings_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybook-app/daybook-api/internal/models"
	"github.com/daybook-app/daybook-api/internal/reminder"
	"github.com/daybook-app/daybook-api/internal/settings"
	"github.com/daybook-app/daybook-api/internal/testutil"
)

type fixture struct {
	repo      *testutil.MemorySettings
	ledger    *testutil.MemoryLedger
	sched     *testutil.FakeScheduler
	tasks     *testutil.MemoryEntityStore
	birthdays *testutil.MemoryEntityStore
	gate      *settings.Gate
	coord     reminder.Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      testutil.NewMemorySettings(),
		ledger:    testutil.NewMemoryLedger(),
		sched:     testutil.NewFakeScheduler(),
		tasks:     testutil.NewMemoryEntityStore(models.CategoryTasks),
		birthdays: testutil.NewMemoryEntityStore(models.CategoryBirthdays),
	}
	f.gate = settings.NewGate(f.repo, f.ledger, f.sched, zerolog.Nop(), f.tasks, f.birthdays)
	f.coord = reminder.NewCoordinator(f.ledger, f.sched, f.gate, zerolog.Nop(), f.tasks, f.birthdays)
	return f
}

func (f *fixture) attach(t *testing.T, cat models.ReminderCategory, entityID string) reminder.AttachResult {
	t.Helper()
	res, err := f.coord.Attach(context.Background(), "user-1", cat, entityID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, reminder.OutcomeScheduled, res.Outcome)
	return res
}

func TestDefaultsAllowScheduling(t *testing.T) {
	f := newFixture(t)

	allowed, err := f.gate.Allows(context.Background(), "user-1", models.CategoryTasks)
	require.NoError(t, err)
	assert.True(t, allowed, "master defaults on and an absent category entry counts as enabled")
}

func TestCategoryDefaultOnAsymmetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Explicitly toggling a category off then on leaves a stored entry that
	// behaves exactly like the absent default.
	require.NoError(t, f.gate.DisableCategory(ctx, "user-1", models.CategoryBirthdays))
	allowed, err := f.gate.Allows(ctx, "user-1", models.CategoryBirthdays)
	require.NoError(t, err)
	assert.False(t, allowed)

	// The sibling category is untouched.
	allowed, err = f.gate.Allows(ctx, "user-1", models.CategoryTasks)
	require.NoError(t, err)
	assert.True(t, allowed)

	require.NoError(t, f.gate.EnableCategory(ctx, "user-1", models.CategoryBirthdays))
	allowed, err = f.gate.Allows(ctx, "user-1", models.CategoryBirthdays)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestEnableMasterRequiresPermission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.gate.EnableMaster(ctx, "user-1"), settings.ErrPermissionRequired)

	require.NoError(t, f.gate.RecordPermission(ctx, "user-1", models.PermissionDenied))
	require.ErrorIs(t, f.gate.EnableMaster(ctx, "user-1"), settings.ErrPermissionRequired)

	require.NoError(t, f.gate.RecordPermission(ctx, "user-1", models.PermissionGranted))
	require.NoError(t, f.gate.EnableMaster(ctx, "user-1"))

	s, err := f.gate.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, s.Enabled)
}

func TestDisableMasterSweepsEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.tasks.Add("user-1", "task-1", "Water the plants")
	f.tasks.Add("user-1", "task-2", "File taxes")
	f.birthdays.Add("user-1", "bd-1", "Ada")

	f.attach(t, models.CategoryTasks, "task-1")
	f.attach(t, models.CategoryTasks, "task-2")
	f.attach(t, models.CategoryBirthdays, "bd-1")
	require.Equal(t, 3, f.sched.Live())

	require.NoError(t, f.gate.DisableMaster(ctx, "user-1"))

	assert.Equal(t, 0, f.sched.Live(), "no OS alert survives the sweep")
	for _, rec := range f.ledger.Records() {
		assert.Equal(t, models.NotificationStatusCancelled, rec.Status)
	}
	for _, store := range []*testutil.MemoryEntityStore{f.tasks, f.birthdays} {
		bindings, err := store.ListActiveReminders(ctx, "user-1")
		require.NoError(t, err)
		assert.Empty(t, bindings)
	}

	allowed, err := f.gate.Allows(ctx, "user-1", models.CategoryTasks)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestDisableCategorySweepsOnlyThatCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.tasks.Add("user-1", "task-1", "Water the plants")
	f.birthdays.Add("user-1", "bd-1", "Ada")

	taskRes := f.attach(t, models.CategoryTasks, "task-1")
	f.attach(t, models.CategoryBirthdays, "bd-1")

	require.NoError(t, f.gate.DisableCategory(ctx, "user-1", models.CategoryTasks))

	assert.Contains(t, f.sched.CancelLog, taskRes.Record.ID)
	assert.Equal(t, 1, f.sched.Live(), "birthday alert stays scheduled")

	rec, err := f.ledger.Get(ctx, "user-1", taskRes.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationStatusCancelled, rec.Status)

	bindings, err := f.birthdays.ListActiveReminders(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, bindings, 1)
}

func TestDisableCategoryUnknown(t *testing.T) {
	f := newFixture(t)
	err := f.gate.DisableCategory(context.Background(), "user-1", models.ReminderCategory("chores"))
	require.ErrorIs(t, err, reminder.ErrUnknownCategory)
}

func TestReenableDoesNotRescheduleStoredReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.tasks.Add("user-1", "task-1", "Water the plants")

	require.NoError(t, f.gate.DisableCategory(ctx, "user-1", models.CategoryTasks))

	res, err := f.coord.Attach(ctx, "user-1", models.CategoryTasks, "task-1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, reminder.OutcomeStoredOnly, res.Outcome)

	require.NoError(t, f.gate.EnableCategory(ctx, "user-1", models.CategoryTasks))
	assert.Equal(t, 0, f.sched.Live(), "re-enabling must not arm stored-only reminders")
}

func TestClearHistorySkipsPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.tasks.Add("user-1", "task-1", "Water the plants")
	f.tasks.Add("user-1", "task-2", "File taxes")

	kept := f.attach(t, models.CategoryTasks, "task-1")
	delivered := f.attach(t, models.CategoryTasks, "task-2")
	require.NoError(t, f.coord.MarkDelivered(ctx, delivered.Record.ID))

	purged, err := f.gate.ClearHistory(ctx, "user-1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = f.ledger.Get(ctx, "user-1", kept.Record.ID)
	assert.NoError(t, err, "pending records survive a history purge")
}
