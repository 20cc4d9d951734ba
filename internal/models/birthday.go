package models

import "time"

// Birthday tracks a person's birthday. Only month and day of BirthDate are
// significant for recurrence; the year is kept for age display.
type Birthday struct {
	ID                string     `json:"id" db:"id"`
	UserID            string     `json:"user_id" db:"user_id"`
	PersonName        string     `json:"person_name" db:"person_name"`
	BirthDate         time.Time  `json:"birth_date" db:"birth_date"`
	ReminderAt        *time.Time `json:"reminder_at,omitempty" db:"reminder_at"`
	NotificationID    *string    `json:"notification_id,omitempty" db:"notification_id"`
	ReminderCancelled bool       `json:"reminder_cancelled" db:"reminder_cancelled"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// IsToday reports whether the birthday falls on the given calendar day.
func (b Birthday) IsToday(now time.Time) bool {
	return b.BirthDate.Month() == now.Month() && b.BirthDate.Day() == now.Day()
}
