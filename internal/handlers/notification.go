package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/daybook-app/daybook-api/internal/authz"
	"github.com/daybook-app/daybook-api/internal/models"
	"github.com/daybook-app/daybook-api/internal/reminder"
	"github.com/daybook-app/daybook-api/internal/repository"
)

// NotificationHandler reads history straight from the ledger; the one
// mutation it exposes (the read flag) goes through the coordinator.
type NotificationHandler struct {
	ledger    repository.LedgerRepository
	reminders reminder.Coordinator
	logger    zerolog.Logger
}

func NewNotificationHandler(ledger repository.LedgerRepository, reminders reminder.Coordinator, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		ledger:    ledger,
		reminders: reminders,
		logger:    logger.With().Str("handler", "notification").Logger(),
	}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	limit := 25
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := h.ledger.ListRecent(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list notifications")
		http.Error(w, "Failed to list notifications", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": records,
	})
}

// MarkRead flips the read flag only; the record's status is never touched
// from here.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	notifID := strings.TrimSpace(mux.Vars(r)["notificationID"])
	if notifID == "" {
		http.Error(w, "Notification ID is required", http.StatusBadRequest)
		return
	}

	record, err := h.reminders.MarkRead(r.Context(), userID, notifID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Notification not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("notification_id", notifID).Msg("failed to mark notification as read")
		http.Error(w, "Failed to update notification", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	counts, err := h.ledger.UnreadCounts(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to count unread notifications")
		http.Error(w, "Failed to count notifications", http.StatusInternalServerError)
		return
	}

	total := 0
	for _, count := range counts {
		total += count
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":      total,
		"categories": counts,
	})
}

func parseCategoryFilter(r *http.Request) (*models.ReminderCategory, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("category"))
	if raw == "" {
		return nil, true
	}
	cat := models.ReminderCategory(raw)
	if !cat.IsValid() {
		return nil, false
	}
	return &cat, true
}
