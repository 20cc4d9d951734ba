package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/daybook-app/daybook-api/internal/authz"
	"github.com/daybook-app/daybook-api/internal/models"
	"github.com/daybook-app/daybook-api/internal/reminder"
	"github.com/daybook-app/daybook-api/internal/repository"
)

type BirthdayHandler struct {
	repo      repository.BirthdayRepository
	reminders reminder.Coordinator
	logger    zerolog.Logger
}

func NewBirthdayHandler(repo repository.BirthdayRepository, reminders reminder.Coordinator, logger zerolog.Logger) *BirthdayHandler {
	return &BirthdayHandler{
		repo:      repo,
		reminders: reminders,
		logger:    logger.With().Str("handler", "birthday").Logger(),
	}
}

type birthdayRequest struct {
	PersonName string    `json:"person_name"`
	BirthDate  time.Time `json:"birth_date"`
}

func (h *BirthdayHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	var req birthdayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	req.PersonName = strings.TrimSpace(req.PersonName)
	if req.PersonName == "" || req.BirthDate.IsZero() {
		http.Error(w, "Person name and birth date are required", http.StatusBadRequest)
		return
	}

	birthday, err := h.repo.Create(r.Context(), models.Birthday{
		UserID:     userID,
		PersonName: req.PersonName,
		BirthDate:  req.BirthDate,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create birthday")
		http.Error(w, "Failed to create birthday", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, birthday)
}

func (h *BirthdayHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	birthdays, err := h.repo.List(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list birthdays")
		http.Error(w, "Failed to list birthdays", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"birthdays": birthdays})
}

func (h *BirthdayHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	birthday, err := h.repo.Get(r.Context(), userID, mux.Vars(r)["entityID"])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Birthday not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load birthday", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, birthday)
}

func (h *BirthdayHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	var req birthdayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	birthday, err := h.repo.Update(r.Context(), models.Birthday{
		ID:         mux.Vars(r)["entityID"],
		UserID:     userID,
		PersonName: strings.TrimSpace(req.PersonName),
		BirthDate:  req.BirthDate,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Birthday not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Msg("failed to update birthday")
		http.Error(w, "Failed to update birthday", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, birthday)
}

func (h *BirthdayHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}
	birthdayID := mux.Vars(r)["entityID"]

	if err := h.reminders.EntityDeleted(r.Context(), userID, models.CategoryBirthdays, birthdayID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		h.logger.Error().Err(err).Str("birthday_id", birthdayID).Msg("failed to retire reminder before delete")
		http.Error(w, "Failed to delete birthday", http.StatusInternalServerError)
		return
	}

	if err := h.repo.Delete(r.Context(), userID, birthdayID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Birthday not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("birthday_id", birthdayID).Msg("failed to delete birthday")
		http.Error(w, "Failed to delete birthday", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
