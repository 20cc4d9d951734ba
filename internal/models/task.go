package models

import "time"

type TaskStatus string

const (
	TaskStatusOpen      TaskStatus = "open"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusArchived  TaskStatus = "archived"
)

func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusOpen, TaskStatusCompleted, TaskStatusArchived:
		return true
	default:
		return false
	}
}

// Task is a user-created to-do item. ReminderAt can be set without a live
// notification (notifications disabled); NotificationID is present iff an
// alert was successfully scheduled for the current ReminderAt.
type Task struct {
	ID                string     `json:"id" db:"id"`
	UserID            string     `json:"user_id" db:"user_id"`
	Title             string     `json:"title" db:"title"`
	Notes             string     `json:"notes" db:"notes"`
	DueAt             *time.Time `json:"due_at,omitempty" db:"due_at"`
	Status            TaskStatus `json:"status" db:"status"`
	ReminderAt        *time.Time `json:"reminder_at,omitempty" db:"reminder_at"`
	NotificationID    *string    `json:"notification_id,omitempty" db:"notification_id"`
	ReminderCancelled bool       `json:"reminder_cancelled" db:"reminder_cancelled"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}
