package models

import "time"

type PermissionStatus string

const (
	PermissionGranted      PermissionStatus = "granted"
	PermissionDenied       PermissionStatus = "denied"
	PermissionUndetermined PermissionStatus = "undetermined"
)

// NotificationSettings holds a user's master switch, per-category switches
// and the last OS alert-permission status reported by the client. Category
// flags default to enabled when no entry exists; the master flag is stored
// explicitly. That asymmetry is deliberate and mirrors user-visible defaults.
type NotificationSettings struct {
	UserID     string                    `json:"user_id" db:"user_id"`
	Enabled    bool                      `json:"enabled" db:"enabled"`
	Categories map[ReminderCategory]bool `json:"categories"`
	Permission PermissionStatus          `json:"permission" db:"permission"`
	UpdatedAt  time.Time                 `json:"updated_at" db:"updated_at"`
}

// CategoryEnabled applies the default-on rule for absent category entries.
func (s NotificationSettings) CategoryEnabled(cat ReminderCategory) bool {
	enabled, ok := s.Categories[cat]
	if !ok {
		return true
	}
	return enabled
}
