package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/daybook-app/daybook-api/internal/authz"
	"github.com/daybook-app/daybook-api/internal/models"
	"github.com/daybook-app/daybook-api/internal/reminder"
	"github.com/daybook-app/daybook-api/internal/settings"
)

type SettingsHandler struct {
	gate   *settings.Gate
	logger zerolog.Logger
}

func NewSettingsHandler(gate *settings.Gate, logger zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{
		gate:   gate,
		logger: logger.With().Str("handler", "settings").Logger(),
	}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	s, err := h.gate.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load settings")
		http.Error(w, "Failed to load settings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type setMasterRequest struct {
	Enabled bool `json:"enabled"`
}

// SetMaster flips the master switch. Disabling sweeps every live reminder;
// enabling requires a granted permission status.
func (h *SettingsHandler) SetMaster(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	var req setMasterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	var err error
	if req.Enabled {
		err = h.gate.EnableMaster(r.Context(), userID)
	} else {
		err = h.gate.DisableMaster(r.Context(), userID)
	}
	if err != nil {
		if errors.Is(err, settings.ErrPermissionRequired) {
			writeError(w, http.StatusForbidden, "permission_required", "Allow notifications in system settings first")
			return
		}
		h.logger.Error().Err(err).Bool("enabled", req.Enabled).Msg("failed to update master flag")
		http.Error(w, "Failed to update settings", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setCategoryRequest struct {
	Category models.ReminderCategory `json:"category"`
	Enabled  bool                    `json:"enabled"`
}

func (h *SettingsHandler) SetCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	var req setCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Category.IsValid() {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	var err error
	if req.Enabled {
		err = h.gate.EnableCategory(r.Context(), userID, req.Category)
	} else {
		err = h.gate.DisableCategory(r.Context(), userID, req.Category)
	}
	if err != nil {
		if errors.Is(err, reminder.ErrUnknownCategory) {
			writeError(w, http.StatusBadRequest, "unknown_category", "Unknown reminder category")
			return
		}
		h.logger.Error().Err(err).Str("category", string(req.Category)).Msg("failed to update category flag")
		http.Error(w, "Failed to update settings", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type permissionRequest struct {
	Status models.PermissionStatus `json:"status"`
}

// RecordPermission stores the OS alert-permission status the client reports
// after prompting the user.
func (h *SettingsHandler) RecordPermission(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	var req permissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	switch req.Status {
	case models.PermissionGranted, models.PermissionDenied, models.PermissionUndetermined:
	default:
		http.Error(w, "Invalid permission status", http.StatusBadRequest)
		return
	}

	if err := h.gate.RecordPermission(r.Context(), userID, req.Status); err != nil {
		h.logger.Error().Err(err).Msg("failed to record permission status")
		http.Error(w, "Failed to update settings", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearHistory purges delivered and cancelled notifications; pending ones
// are never touched. An optional ?category= narrows the purge.
func (h *SettingsHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	cat, ok := parseCategoryFilter(r)
	if !ok {
		http.Error(w, "Invalid category filter", http.StatusBadRequest)
		return
	}

	purged, err := h.gate.ClearHistory(r.Context(), userID, cat)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to clear notification history")
		http.Error(w, "Failed to clear history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"purged": purged})
}
