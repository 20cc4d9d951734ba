package models

import "time"

type NotificationStatus string

const (
	NotificationStatusPending           NotificationStatus = "pending"
	NotificationStatusSent              NotificationStatus = "sent"
	NotificationStatusCancelled         NotificationStatus = "cancelled"
	NotificationStatusModifiedCancelled NotificationStatus = "modified_cancelled"
)

// IsTerminal reports whether the status admits no further transitions.
// Every edge out of pending is terminal; there is no edge between terminal
// states and none back to pending.
func (s NotificationStatus) IsTerminal() bool {
	switch s {
	case NotificationStatusSent, NotificationStatusCancelled, NotificationStatusModifiedCancelled:
		return true
	default:
		return false
	}
}

func (s NotificationStatus) IsValid() bool {
	return s == NotificationStatusPending || s.IsTerminal()
}

type ReminderCategory string

const (
	CategoryTasks     ReminderCategory = "tasks"
	CategoryBirthdays ReminderCategory = "birthdays"
)

func (c ReminderCategory) IsValid() bool {
	switch c {
	case CategoryTasks, CategoryBirthdays:
		return true
	default:
		return false
	}
}

// NotificationRecord is one entry in the notification ledger. ID is the
// scheduler-assigned handle and the only key a later cancel can use. Title,
// body and fire time are frozen at schedule time; only Status and Read
// change afterwards.
type NotificationRecord struct {
	ID           string             `json:"id" db:"id"`
	UserID       string             `json:"user_id" db:"user_id"`
	Category     ReminderCategory   `json:"category" db:"category"`
	Title        string             `json:"title" db:"title"`
	Body         string             `json:"body" db:"body"`
	ScheduledAt  time.Time          `json:"scheduled_at" db:"scheduled_at"`
	Status       NotificationStatus `json:"status" db:"status"`
	Read         bool               `json:"read" db:"read"`
	CategoryIcon string             `json:"category_icon,omitempty" db:"category_icon"`
	CreatedAt    time.Time          `json:"created_at" db:"created_at"`
}

// ReminderBinding is the reminder-facing slice of a task or birthday row:
// the chosen time, the (at most one) live notification reference, and the
// display mirror of that record's cancelled-ness.
type ReminderBinding struct {
	EntityID          string
	Title             string
	ReminderAt        *time.Time
	NotificationID    *string
	ReminderCancelled bool
}
