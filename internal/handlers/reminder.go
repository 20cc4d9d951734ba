package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/daybook-app/daybook-api/internal/authz"
	"github.com/daybook-app/daybook-api/internal/models"
	"github.com/daybook-app/daybook-api/internal/reminder"
	"github.com/daybook-app/daybook-api/internal/repository"
	"github.com/daybook-app/daybook-api/internal/scheduler"
)

// birthdayFallbackTime is shown for a birthday that falls on the current day
// when no explicit reminder exists. Display only; it never schedules.
const birthdayFallbackTime = "09:00"

type ReminderHandler struct {
	reminders reminder.Coordinator
	birthdays repository.BirthdayRepository
	logger    zerolog.Logger
}

func NewReminderHandler(reminders reminder.Coordinator, birthdays repository.BirthdayRepository, logger zerolog.Logger) *ReminderHandler {
	return &ReminderHandler{
		reminders: reminders,
		birthdays: birthdays,
		logger:    logger.With().Str("handler", "reminder").Logger(),
	}
}

type setReminderRequest struct {
	RemindAt time.Time `json:"remind_at"`
}

// Set attaches or reschedules a reminder; the coordinator folds both intents
// into one operation.
func (h *ReminderHandler) Set(cat models.ReminderCategory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authz.UserIDFromRequest(r)
		if !ok {
			http.Error(w, "Missing user context", http.StatusUnauthorized)
			return
		}
		entityID := mux.Vars(r)["entityID"]

		var req setReminderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RemindAt.IsZero() {
			http.Error(w, "Invalid request payload", http.StatusBadRequest)
			return
		}

		result, err := h.reminders.Attach(r.Context(), userID, cat, entityID, req.RemindAt)
		if err != nil {
			h.writeReminderError(w, err, entityID)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (h *ReminderHandler) Remove(cat models.ReminderCategory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authz.UserIDFromRequest(r)
		if !ok {
			http.Error(w, "Missing user context", http.StatusUnauthorized)
			return
		}
		entityID := mux.Vars(r)["entityID"]

		if err := h.reminders.Retire(r.Context(), userID, cat, entityID); err != nil {
			h.writeReminderError(w, err, entityID)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *ReminderHandler) Status(cat models.ReminderCategory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authz.UserIDFromRequest(r)
		if !ok {
			http.Error(w, "Missing user context", http.StatusUnauthorized)
			return
		}
		entityID := mux.Vars(r)["entityID"]

		status, err := h.reminders.Status(r.Context(), userID, cat, entityID)
		if err != nil {
			h.writeReminderError(w, err, entityID)
			return
		}

		payload := map[string]interface{}{
			"reminder_at": status.ReminderAt,
			"status":      status.Status,
			"read":        status.Read,
			"cancelled":   status.Cancelled,
		}
		if cat == models.CategoryBirthdays && status.ReminderAt == nil {
			birthday, err := h.birthdays.Get(r.Context(), userID, entityID)
			if err == nil && birthday.IsToday(time.Now()) {
				payload["fallback_time"] = birthdayFallbackTime
			}
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

func (h *ReminderHandler) Counts(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	unread, err := h.reminders.UnreadCounts(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to count unread notifications")
		http.Error(w, "Failed to load counts", http.StatusInternalServerError)
		return
	}
	active, err := h.reminders.ActiveCounts(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to count active reminders")
		http.Error(w, "Failed to load counts", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"unread": unread,
		"active": active,
	})
}

// writeReminderError maps the lifecycle error taxonomy onto actionable
// responses: permission problems prompt the user to enable notifications,
// bad times are rejected as input errors, transient scheduler failures ask
// for a retry (the chosen time is preserved server-side).
func (h *ReminderHandler) writeReminderError(w http.ResponseWriter, err error, entityID string) {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, "not_found", "Entity not found")
	case errors.Is(err, reminder.ErrPastReminder), errors.Is(err, scheduler.ErrInvalidTime):
		writeError(w, http.StatusUnprocessableEntity, "past_reminder", "Reminder time must be in the future")
	case errors.Is(err, scheduler.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission_required", "Allow notifications in system settings to schedule reminders")
	case errors.Is(err, scheduler.ErrSchedulerUnavailable):
		writeError(w, http.StatusServiceUnavailable, "schedule_failed", "Couldn't schedule the reminder, try again")
	case errors.Is(err, reminder.ErrUnknownCategory):
		writeError(w, http.StatusBadRequest, "unknown_category", "Unknown reminder category")
	default:
		h.logger.Error().Err(err).Str("entity_id", entityID).Msg("reminder operation failed")
		writeError(w, http.StatusInternalServerError, "internal", "Reminder operation failed")
	}
}
