package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybook-app/daybook-api/internal/authz"
	"github.com/daybook-app/daybook-api/internal/models"
	"github.com/daybook-app/daybook-api/internal/reminder"
	"github.com/daybook-app/daybook-api/internal/repository"
	"github.com/daybook-app/daybook-api/internal/scheduler"
)

// coordinatorStub fails every mutation with err and serves a fixed status.
type coordinatorStub struct {
	reminder.Coordinator
	err    error
	status reminder.Status
}

func (s coordinatorStub) Attach(ctx context.Context, userID string, cat models.ReminderCategory, entityID string, at time.Time) (reminder.AttachResult, error) {
	if s.err != nil {
		return reminder.AttachResult{}, s.err
	}
	return reminder.AttachResult{Outcome: reminder.OutcomeScheduled}, nil
}

func (s coordinatorStub) Retire(ctx context.Context, userID string, cat models.ReminderCategory, entityID string) error {
	return s.err
}

func (s coordinatorStub) Status(ctx context.Context, userID string, cat models.ReminderCategory, entityID string) (reminder.Status, error) {
	return s.status, s.err
}

type birthdayRepoStub struct {
	repository.BirthdayRepository
	birthday models.Birthday
	err      error
}

func (s birthdayRepoStub) Get(ctx context.Context, userID, birthdayID string) (models.Birthday, error) {
	return s.birthday, s.err
}

func setRequest(t *testing.T, entityID string) *http.Request {
	t.Helper()
	body := fmt.Sprintf(`{"remind_at":%q}`, time.Now().Add(time.Hour).Format(time.RFC3339))
	r := httptest.NewRequest(http.MethodPut, "/api/tasks/"+entityID+"/reminder", strings.NewReader(body))
	r = mux.SetURLVars(r, map[string]string{"entityID": entityID})
	return r.WithContext(authz.WithUser(r.Context(), "user-1"))
}

func TestSetErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"entity missing", sql.ErrNoRows, http.StatusNotFound, "not_found"},
		{"past time", reminder.ErrPastReminder, http.StatusUnprocessableEntity, "past_reminder"},
		{"invalid time from scheduler", scheduler.ErrInvalidTime, http.StatusUnprocessableEntity, "past_reminder"},
		{"permission denied", scheduler.ErrPermissionDenied, http.StatusForbidden, "permission_required"},
		{"scheduler down", scheduler.ErrSchedulerUnavailable, http.StatusServiceUnavailable, "schedule_failed"},
		{"unknown category", reminder.ErrUnknownCategory, http.StatusBadRequest, "unknown_category"},
		{"anything else", fmt.Errorf("connection reset"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewReminderHandler(coordinatorStub{err: tc.err}, nil, zerolog.Nop())
			w := httptest.NewRecorder()

			h.Set(models.CategoryTasks)(w, setRequest(t, "task-1"))

			assert.Equal(t, tc.wantStatus, w.Code)
			var resp map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tc.wantCode, resp["error"])
		})
	}
}

func TestSetRejectsBadPayload(t *testing.T) {
	h := NewReminderHandler(coordinatorStub{}, nil, zerolog.Nop())

	for _, body := range []string{"", "{}", `{"remind_at":"not a time"}`} {
		r := httptest.NewRequest(http.MethodPut, "/api/tasks/task-1/reminder", strings.NewReader(body))
		r = mux.SetURLVars(r, map[string]string{"entityID": "task-1"})
		r = r.WithContext(authz.WithUser(r.Context(), "user-1"))
		w := httptest.NewRecorder()

		h.Set(models.CategoryTasks)(w, r)
		assert.Equal(t, http.StatusBadRequest, w.Code, "payload %q", body)
	}
}

func TestSetRequiresUserContext(t *testing.T) {
	h := NewReminderHandler(coordinatorStub{}, nil, zerolog.Nop())
	r := httptest.NewRequest(http.MethodPut, "/api/tasks/task-1/reminder", strings.NewReader("{}"))
	w := httptest.NewRecorder()

	h.Set(models.CategoryTasks)(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRemoveReturnsNoContent(t *testing.T) {
	h := NewReminderHandler(coordinatorStub{}, nil, zerolog.Nop())
	r := httptest.NewRequest(http.MethodDelete, "/api/tasks/task-1/reminder", nil)
	r = mux.SetURLVars(r, map[string]string{"entityID": "task-1"})
	r = r.WithContext(authz.WithUser(r.Context(), "user-1"))
	w := httptest.NewRecorder()

	h.Remove(models.CategoryTasks)(w, r)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func statusRequest(cat string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/"+cat+"/e-1/reminder", nil)
	r = mux.SetURLVars(r, map[string]string{"entityID": "e-1"})
	return r.WithContext(authz.WithUser(r.Context(), "user-1"))
}

func TestBirthdayStatusFallbackTime(t *testing.T) {
	today := birthdayRepoStub{birthday: models.Birthday{BirthDate: time.Now().AddDate(-30, 0, 0)}}
	h := NewReminderHandler(coordinatorStub{}, today, zerolog.Nop())
	w := httptest.NewRecorder()

	h.Status(models.CategoryBirthdays)(w, statusRequest("birthdays"))

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "09:00", resp["fallback_time"])
}

func TestBirthdayStatusNoFallbackWhenNotToday(t *testing.T) {
	notToday := birthdayRepoStub{birthday: models.Birthday{BirthDate: time.Now().AddDate(-30, 0, 1)}}
	h := NewReminderHandler(coordinatorStub{}, notToday, zerolog.Nop())
	w := httptest.NewRecorder()

	h.Status(models.CategoryBirthdays)(w, statusRequest("birthdays"))

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	_, present := resp["fallback_time"]
	assert.False(t, present)
}

func TestStatusWithExplicitReminderSkipsFallback(t *testing.T) {
	at := time.Now().Add(time.Hour)
	stub := coordinatorStub{status: reminder.Status{ReminderAt: &at, Status: models.NotificationStatusPending}}
	h := NewReminderHandler(stub, birthdayRepoStub{birthday: models.Birthday{BirthDate: time.Now()}}, zerolog.Nop())
	w := httptest.NewRecorder()

	h.Status(models.CategoryBirthdays)(w, statusRequest("birthdays"))

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	_, present := resp["fallback_time"]
	assert.False(t, present)
	assert.Equal(t, string(models.NotificationStatusPending), resp["status"])
}
