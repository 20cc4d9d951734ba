// Package testutil provides in-memory fakes for the persistence and
// scheduling collaborators so lifecycle tests run without Postgres or
// Temporal.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/daybook-app/daybook-api/internal/models"
	"github.com/daybook-app/daybook-api/internal/scheduler"
)

// MemoryLedger is an in-memory repository.LedgerRepository.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[string]*models.NotificationRecord
	order   []string

	AppendErr error
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{records: make(map[string]*models.NotificationRecord)}
}

func (l *MemoryLedger) Append(ctx context.Context, rec models.NotificationRecord) (models.NotificationRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.AppendErr != nil {
		return models.NotificationRecord{}, l.AppendErr
	}
	if _, exists := l.records[rec.ID]; exists {
		return models.NotificationRecord{}, fmt.Errorf("duplicate notification id %q", rec.ID)
	}
	rec.Status = models.NotificationStatusPending
	rec.CreatedAt = time.Now()
	stored := rec
	l.records[rec.ID] = &stored
	l.order = append(l.order, rec.ID)
	return stored, nil
}

func (l *MemoryLedger) Get(ctx context.Context, userID, id string) (models.NotificationRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[id]
	if !ok || rec.UserID != userID {
		return models.NotificationRecord{}, sql.ErrNoRows
	}
	return *rec, nil
}

func (l *MemoryLedger) MarkTerminal(ctx context.Context, id string, status models.NotificationStatus) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("status %q is not terminal", status)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[id]
	if !ok || rec.Status != models.NotificationStatusPending {
		return false, nil
	}
	rec.Status = status
	return true, nil
}

func (l *MemoryLedger) MarkRead(ctx context.Context, userID, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[id]
	if !ok || rec.UserID != userID {
		return sql.ErrNoRows
	}
	rec.Read = true
	return nil
}

func (l *MemoryLedger) ListRecent(ctx context.Context, userID string, limit int) ([]models.NotificationRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.NotificationRecord
	for i := len(l.order) - 1; i >= 0 && len(out) < limit; i-- {
		rec := l.records[l.order[i]]
		if rec.UserID == userID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (l *MemoryLedger) UnreadCounts(ctx context.Context, userID string) (map[models.ReminderCategory]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make(map[models.ReminderCategory]int)
	for _, rec := range l.records {
		if rec.UserID == userID && !rec.Read {
			counts[rec.Category]++
		}
	}
	return counts, nil
}

func (l *MemoryLedger) PendingCounts(ctx context.Context, userID string) (map[models.ReminderCategory]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make(map[models.ReminderCategory]int)
	for _, rec := range l.records {
		if rec.UserID == userID && rec.Status == models.NotificationStatusPending {
			counts[rec.Category]++
		}
	}
	return counts, nil
}

func (l *MemoryLedger) CancelAllPending(ctx context.Context, userID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for _, rec := range l.records {
		if rec.UserID == userID && rec.Status == models.NotificationStatusPending {
			rec.Status = models.NotificationStatusCancelled
			n++
		}
	}
	return n, nil
}

func (l *MemoryLedger) CancelPendingByCategory(ctx context.Context, userID string, cat models.ReminderCategory) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for _, rec := range l.records {
		if rec.UserID == userID && rec.Category == cat && rec.Status == models.NotificationStatusPending {
			rec.Status = models.NotificationStatusCancelled
			n++
		}
	}
	return n, nil
}

func (l *MemoryLedger) ClearHistory(ctx context.Context, userID string, cat *models.ReminderCategory) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	kept := l.order[:0]
	for _, id := range l.order {
		rec := l.records[id]
		purge := rec.UserID == userID &&
			rec.Status != models.NotificationStatusPending &&
			(cat == nil || rec.Category == *cat)
		if purge {
			delete(l.records, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	l.order = kept
	return n, nil
}

// Records returns a snapshot of every stored record, append order preserved.
func (l *MemoryLedger) Records() []models.NotificationRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.NotificationRecord, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.records[id])
	}
	return out
}

// MemoryEntityStore is an in-memory reminder.EntityStore keyed by
// userID/entityID.
type MemoryEntityStore struct {
	mu       sync.Mutex
	category models.ReminderCategory
	bindings map[string]*models.ReminderBinding
}

func NewMemoryEntityStore(cat models.ReminderCategory) *MemoryEntityStore {
	return &MemoryEntityStore{
		category: cat,
		bindings: make(map[string]*models.ReminderBinding),
	}
}

func key(userID, entityID string) string { return userID + "/" + entityID }

// Add registers an entity with no reminder set.
func (s *MemoryEntityStore) Add(userID, entityID, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[key(userID, entityID)] = &models.ReminderBinding{EntityID: entityID, Title: title}
}

func (s *MemoryEntityStore) Category() models.ReminderCategory { return s.category }

func (s *MemoryEntityStore) GetBinding(ctx context.Context, userID, entityID string) (models.ReminderBinding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	binding, ok := s.bindings[key(userID, entityID)]
	if !ok {
		return models.ReminderBinding{}, sql.ErrNoRows
	}
	return *binding, nil
}

func (s *MemoryEntityStore) SetReminder(ctx context.Context, userID, entityID string, reminderAt *time.Time, notificationID *string, cancelled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	binding, ok := s.bindings[key(userID, entityID)]
	if !ok {
		return sql.ErrNoRows
	}
	binding.ReminderAt = reminderAt
	binding.NotificationID = notificationID
	binding.ReminderCancelled = cancelled
	return nil
}

func (s *MemoryEntityStore) ListActiveReminders(ctx context.Context, userID string) ([]models.ReminderBinding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ReminderBinding
	for k, binding := range s.bindings {
		if binding.NotificationID != nil && k == key(userID, binding.EntityID) {
			out = append(out, *binding)
		}
	}
	return out, nil
}

func (s *MemoryEntityStore) ClearReminders(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, binding := range s.bindings {
		if binding.NotificationID != nil && k == key(userID, binding.EntityID) {
			binding.NotificationID = nil
			binding.ReminderCancelled = true
			n++
		}
	}
	return n, nil
}

// FakeScheduler records schedule and cancel calls and can be primed to fail.
type FakeScheduler struct {
	mu        sync.Mutex
	nextID    int
	Scheduled map[string]scheduler.AlertRequest
	CancelLog []string

	ScheduleErr error
}

func NewFakeScheduler() *FakeScheduler {
	return &FakeScheduler{Scheduled: make(map[string]scheduler.AlertRequest)}
}

func (f *FakeScheduler) Schedule(ctx context.Context, req scheduler.AlertRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ScheduleErr != nil {
		return "", f.ScheduleErr
	}
	f.nextID++
	handle := fmt.Sprintf("handle-%d", f.nextID)
	f.Scheduled[handle] = req
	return handle, nil
}

func (f *FakeScheduler) Cancel(ctx context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Scheduled, handle)
	f.CancelLog = append(f.CancelLog, handle)
	return nil
}

func (f *FakeScheduler) CancelAll(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for handle := range f.Scheduled {
		delete(f.Scheduled, handle)
		f.CancelLog = append(f.CancelLog, handle)
	}
	return nil
}

// Live reports how many alerts are currently scheduled.
func (f *FakeScheduler) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Scheduled)
}

// MemorySettings is an in-memory repository.SettingsRepository.
type MemorySettings struct {
	mu       sync.Mutex
	settings map[string]*models.NotificationSettings
}

func NewMemorySettings() *MemorySettings {
	return &MemorySettings{settings: make(map[string]*models.NotificationSettings)}
}

func (m *MemorySettings) get(userID string) *models.NotificationSettings {
	s, ok := m.settings[userID]
	if !ok {
		s = &models.NotificationSettings{
			UserID:     userID,
			Enabled:    true,
			Permission: models.PermissionUndetermined,
			Categories: make(map[models.ReminderCategory]bool),
		}
		m.settings[userID] = s
	}
	return s
}

func (m *MemorySettings) Get(ctx context.Context, userID string) (models.NotificationSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.get(userID)
	out := *s
	out.Categories = make(map[models.ReminderCategory]bool, len(s.Categories))
	for cat, enabled := range s.Categories {
		out.Categories[cat] = enabled
	}
	return out, nil
}

func (m *MemorySettings) SetMaster(ctx context.Context, userID string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(userID).Enabled = enabled
	return nil
}

func (m *MemorySettings) SetCategory(ctx context.Context, userID string, cat models.ReminderCategory, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(userID).Categories[cat] = enabled
	return nil
}

func (m *MemorySettings) SetPermission(ctx context.Context, userID string, status models.PermissionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(userID).Permission = status
	return nil
}
