package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/daybook-app/daybook-api/internal/models"
)

// LedgerRepository is the notification ledger: the single source of truth
// for which alerts exist and what happened to them. Append is the only way
// to create a record; rows are never deleted except by ClearHistory, which
// touches non-pending rows only. Terminal transitions are guarded in SQL by
// `status = 'pending'`, so a record that left pending can never change
// status again.
type LedgerRepository interface {
	Append(ctx context.Context, rec models.NotificationRecord) (models.NotificationRecord, error)
	Get(ctx context.Context, userID, id string) (models.NotificationRecord, error)
	MarkTerminal(ctx context.Context, id string, status models.NotificationStatus) (bool, error)
	MarkRead(ctx context.Context, userID, id string) error
	ListRecent(ctx context.Context, userID string, limit int) ([]models.NotificationRecord, error)
	UnreadCounts(ctx context.Context, userID string) (map[models.ReminderCategory]int, error)
	PendingCounts(ctx context.Context, userID string) (map[models.ReminderCategory]int, error)
	CancelAllPending(ctx context.Context, userID string) (int64, error)
	CancelPendingByCategory(ctx context.Context, userID string, cat models.ReminderCategory) (int64, error)
	ClearHistory(ctx context.Context, userID string, cat *models.ReminderCategory) (int64, error)
}

type ledgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

const notificationColumns = `id, user_id, category, title, body, scheduled_at, status, read, category_icon, created_at`

func (r *ledgerRepository) Append(ctx context.Context, rec models.NotificationRecord) (models.NotificationRecord, error) {
	const query = `
		INSERT INTO daybook.notifications (id, user_id, category, title, body, scheduled_at, status, category_icon)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + notificationColumns + `
	`
	row := r.db.QueryRowContext(ctx, query,
		rec.ID,
		rec.UserID,
		rec.Category,
		rec.Title,
		rec.Body,
		rec.ScheduledAt,
		models.NotificationStatusPending,
		rec.CategoryIcon,
	)
	return scanNotification(row)
}

func (r *ledgerRepository) Get(ctx context.Context, userID, id string) (models.NotificationRecord, error) {
	const query = `
		SELECT ` + notificationColumns + `
		FROM daybook.notifications
		WHERE id = $1 AND user_id = $2
	`
	return scanNotification(r.db.QueryRowContext(ctx, query, id, userID))
}

// MarkTerminal moves a pending record to the given terminal status and
// reports whether a transition happened. A record that is unknown or already
// terminal is left untouched and returns false; callers treat that as a
// benign race, not an error.
func (r *ledgerRepository) MarkTerminal(ctx context.Context, id string, status models.NotificationStatus) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("status %q is not terminal", status)
	}
	const query = `
		UPDATE daybook.notifications
		SET status = $2
		WHERE id = $1 AND status = 'pending'
	`
	res, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *ledgerRepository) MarkRead(ctx context.Context, userID, id string) error {
	const query = `
		UPDATE daybook.notifications
		SET read = TRUE
		WHERE id = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *ledgerRepository) ListRecent(ctx context.Context, userID string, limit int) ([]models.NotificationRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	const query = `
		SELECT ` + notificationColumns + `
		FROM daybook.notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.NotificationRecord
	for rows.Next() {
		rec, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *ledgerRepository) UnreadCounts(ctx context.Context, userID string) (map[models.ReminderCategory]int, error) {
	const query = `
		SELECT category, COUNT(*)
		FROM daybook.notifications
		WHERE user_id = $1 AND read = FALSE
		GROUP BY category
	`
	return r.countByCategory(ctx, query, userID)
}

func (r *ledgerRepository) PendingCounts(ctx context.Context, userID string) (map[models.ReminderCategory]int, error) {
	const query = `
		SELECT category, COUNT(*)
		FROM daybook.notifications
		WHERE user_id = $1 AND status = 'pending'
		GROUP BY category
	`
	return r.countByCategory(ctx, query, userID)
}

func (r *ledgerRepository) countByCategory(ctx context.Context, query, userID string) (map[models.ReminderCategory]int, error) {
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.ReminderCategory]int)
	for rows.Next() {
		var (
			cat   models.ReminderCategory
			count int
		)
		if err := rows.Scan(&cat, &count); err != nil {
			return nil, err
		}
		counts[cat] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *ledgerRepository) CancelAllPending(ctx context.Context, userID string) (int64, error) {
	const query = `
		UPDATE daybook.notifications
		SET status = 'cancelled'
		WHERE user_id = $1 AND status = 'pending'
	`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *ledgerRepository) CancelPendingByCategory(ctx context.Context, userID string, cat models.ReminderCategory) (int64, error) {
	const query = `
		UPDATE daybook.notifications
		SET status = 'cancelled'
		WHERE user_id = $1 AND category = $2 AND status = 'pending'
	`
	res, err := r.db.ExecContext(ctx, query, userID, cat)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearHistory purges non-pending records, optionally scoped to one
// category. Live pending records are never touched.
func (r *ledgerRepository) ClearHistory(ctx context.Context, userID string, cat *models.ReminderCategory) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if cat != nil {
		const query = `
			DELETE FROM daybook.notifications
			WHERE user_id = $1 AND category = $2 AND status <> 'pending'
		`
		res, err = r.db.ExecContext(ctx, query, userID, *cat)
	} else {
		const query = `
			DELETE FROM daybook.notifications
			WHERE user_id = $1 AND status <> 'pending'
		`
		res, err = r.db.ExecContext(ctx, query, userID)
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanNotification(scanner interface {
	Scan(dest ...interface{}) error
}) (models.NotificationRecord, error) {
	var (
		rec  models.NotificationRecord
		icon sql.NullString
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Category,
		&rec.Title,
		&rec.Body,
		&rec.ScheduledAt,
		&rec.Status,
		&rec.Read,
		&icon,
		&rec.CreatedAt,
	); err != nil {
		return models.NotificationRecord{}, err
	}
	if icon.Valid {
		rec.CategoryIcon = icon.String
	}
	return rec, nil
}
