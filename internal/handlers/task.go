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

type TaskHandler struct {
	repo      repository.TaskRepository
	reminders reminder.Coordinator
	logger    zerolog.Logger
}

func NewTaskHandler(repo repository.TaskRepository, reminders reminder.Coordinator, logger zerolog.Logger) *TaskHandler {
	return &TaskHandler{
		repo:      repo,
		reminders: reminders,
		logger:    logger.With().Str("handler", "task").Logger(),
	}
}

type taskRequest struct {
	Title string     `json:"title"`
	Notes string     `json:"notes"`
	DueAt *time.Time `json:"due_at,omitempty"`
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		http.Error(w, "Title is required", http.StatusBadRequest)
		return
	}

	task, err := h.repo.Create(r.Context(), models.Task{
		UserID: userID,
		Title:  req.Title,
		Notes:  req.Notes,
		DueAt:  req.DueAt,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create task")
		http.Error(w, "Failed to create task", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	var status *models.TaskStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		s := models.TaskStatus(raw)
		if !s.IsValid() {
			http.Error(w, "Invalid status filter", http.StatusBadRequest)
			return
		}
		status = &s
	}

	tasks, err := h.repo.List(r.Context(), userID, status)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list tasks")
		http.Error(w, "Failed to list tasks", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	task, err := h.repo.Get(r.Context(), userID, mux.Vars(r)["entityID"])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Task not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load task", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	task, err := h.repo.Update(r.Context(), models.Task{
		ID:     mux.Vars(r)["entityID"],
		UserID: userID,
		Title:  strings.TrimSpace(req.Title),
		Notes:  req.Notes,
		DueAt:  req.DueAt,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Task not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Msg("failed to update task")
		http.Error(w, "Failed to update task", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Complete marks the task completed and retires its reminder. A completed
// task must never still ring, so the retirement is not optional.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.TaskStatusCompleted)
}

func (h *TaskHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.TaskStatusArchived)
}

func (h *TaskHandler) transition(w http.ResponseWriter, r *http.Request, status models.TaskStatus) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}
	taskID := mux.Vars(r)["entityID"]

	var err error
	if status == models.TaskStatusCompleted {
		err = h.reminders.EntityCompleted(r.Context(), userID, models.CategoryTasks, taskID)
	} else {
		err = h.reminders.EntityArchived(r.Context(), userID, models.CategoryTasks, taskID)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Task not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("task_id", taskID).Msg("failed to retire reminder")
		http.Error(w, "Failed to update task", http.StatusInternalServerError)
		return
	}

	if err := h.repo.SetStatus(r.Context(), userID, taskID, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Task not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("task_id", taskID).Msg("failed to set task status")
		http.Error(w, "Failed to update task", http.StatusInternalServerError)
		return
	}

	task, err := h.repo.Get(r.Context(), userID, taskID)
	if err != nil {
		http.Error(w, "Failed to load task", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}
	taskID := mux.Vars(r)["entityID"]

	// Retire before the row disappears; the reminder must not outlive the
	// task.
	if err := h.reminders.EntityDeleted(r.Context(), userID, models.CategoryTasks, taskID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		h.logger.Error().Err(err).Str("task_id", taskID).Msg("failed to retire reminder before delete")
		http.Error(w, "Failed to delete task", http.StatusInternalServerError)
		return
	}

	if err := h.repo.Delete(r.Context(), userID, taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Task not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("task_id", taskID).Msg("failed to delete task")
		http.Error(w, "Failed to delete task", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
