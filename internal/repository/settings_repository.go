package repository

import (
	"context"
	"database/sql"

	"github.com/daybook-app/daybook-api/internal/models"
)

// SettingsRepository persists the per-user notification switches. The master
// row is materialized on first write (enabled, permission undetermined);
// category rows exist only once a category has been explicitly toggled, so
// an absent row keeps the default-on behavior.
type SettingsRepository interface {
	Get(ctx context.Context, userID string) (models.NotificationSettings, error)
	SetMaster(ctx context.Context, userID string, enabled bool) error
	SetCategory(ctx context.Context, userID string, cat models.ReminderCategory, enabled bool) error
	SetPermission(ctx context.Context, userID string, status models.PermissionStatus) error
}

type settingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(ctx context.Context, userID string) (models.NotificationSettings, error) {
	settings := models.NotificationSettings{
		UserID:     userID,
		Enabled:    true,
		Permission: models.PermissionUndetermined,
		Categories: make(map[models.ReminderCategory]bool),
	}

	const masterQuery = `
		SELECT enabled, permission, updated_at
		FROM daybook.notification_settings
		WHERE user_id = $1
	`
	err := r.db.QueryRowContext(ctx, masterQuery, userID).Scan(
		&settings.Enabled,
		&settings.Permission,
		&settings.UpdatedAt,
	)
	if err != nil && err != sql.ErrNoRows {
		return models.NotificationSettings{}, err
	}

	const categoryQuery = `
		SELECT category, enabled
		FROM daybook.notification_category_settings
		WHERE user_id = $1
	`
	rows, err := r.db.QueryContext(ctx, categoryQuery, userID)
	if err != nil {
		return models.NotificationSettings{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cat     models.ReminderCategory
			enabled bool
		)
		if err := rows.Scan(&cat, &enabled); err != nil {
			return models.NotificationSettings{}, err
		}
		settings.Categories[cat] = enabled
	}
	if err := rows.Err(); err != nil {
		return models.NotificationSettings{}, err
	}
	return settings, nil
}

func (r *settingsRepository) SetMaster(ctx context.Context, userID string, enabled bool) error {
	const query = `
		INSERT INTO daybook.notification_settings (user_id, enabled)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET enabled = $2, updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, userID, enabled)
	return err
}

func (r *settingsRepository) SetCategory(ctx context.Context, userID string, cat models.ReminderCategory, enabled bool) error {
	const query = `
		INSERT INTO daybook.notification_category_settings (user_id, category, enabled)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, category) DO UPDATE SET enabled = $3
	`
	_, err := r.db.ExecContext(ctx, query, userID, cat, enabled)
	return err
}

func (r *settingsRepository) SetPermission(ctx context.Context, userID string, status models.PermissionStatus) error {
	const query = `
		INSERT INTO daybook.notification_settings (user_id, permission)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET permission = $2, updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, userID, status)
	return err
}
