package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/daybook-app/daybook-api/internal/models"
)

type BirthdayRepository interface {
	Create(ctx context.Context, birthday models.Birthday) (models.Birthday, error)
	Get(ctx context.Context, userID, birthdayID string) (models.Birthday, error)
	List(ctx context.Context, userID string) ([]models.Birthday, error)
	Update(ctx context.Context, birthday models.Birthday) (models.Birthday, error)
	Delete(ctx context.Context, userID, birthdayID string) error

	Category() models.ReminderCategory
	GetBinding(ctx context.Context, userID, birthdayID string) (models.ReminderBinding, error)
	SetReminder(ctx context.Context, userID, birthdayID string, reminderAt *time.Time, notificationID *string, cancelled bool) error
	ListActiveReminders(ctx context.Context, userID string) ([]models.ReminderBinding, error)
	ClearReminders(ctx context.Context, userID string) (int64, error)
}

type birthdayRepository struct {
	db *sql.DB
}

func NewBirthdayRepository(db *sql.DB) BirthdayRepository {
	return &birthdayRepository{db: db}
}

const birthdayColumns = `id, user_id, person_name, birth_date, reminder_at, notification_id, reminder_cancelled, created_at, updated_at`

func (r *birthdayRepository) Create(ctx context.Context, birthday models.Birthday) (models.Birthday, error) {
	const query = `
		INSERT INTO daybook.birthdays (user_id, person_name, birth_date)
		VALUES ($1, $2, $3)
		RETURNING ` + birthdayColumns + `
	`
	row := r.db.QueryRowContext(ctx, query, birthday.UserID, birthday.PersonName, birthday.BirthDate)
	return scanBirthday(row)
}

func (r *birthdayRepository) Get(ctx context.Context, userID, birthdayID string) (models.Birthday, error) {
	const query = `
		SELECT ` + birthdayColumns + `
		FROM daybook.birthdays
		WHERE id = $1 AND user_id = $2
	`
	return scanBirthday(r.db.QueryRowContext(ctx, query, birthdayID, userID))
}

func (r *birthdayRepository) List(ctx context.Context, userID string) ([]models.Birthday, error) {
	const query = `
		SELECT ` + birthdayColumns + `
		FROM daybook.birthdays
		WHERE user_id = $1
		ORDER BY person_name
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var birthdays []models.Birthday
	for rows.Next() {
		birthday, err := scanBirthday(rows)
		if err != nil {
			return nil, err
		}
		birthdays = append(birthdays, birthday)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return birthdays, nil
}

func (r *birthdayRepository) Update(ctx context.Context, birthday models.Birthday) (models.Birthday, error) {
	const query = `
		UPDATE daybook.birthdays
		SET person_name = $3, birth_date = $4, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + birthdayColumns + `
	`
	row := r.db.QueryRowContext(ctx, query, birthday.ID, birthday.UserID, birthday.PersonName, birthday.BirthDate)
	return scanBirthday(row)
}

func (r *birthdayRepository) Delete(ctx context.Context, userID, birthdayID string) error {
	const query = `
		DELETE FROM daybook.birthdays
		WHERE id = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, birthdayID, userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *birthdayRepository) Category() models.ReminderCategory {
	return models.CategoryBirthdays
}

func (r *birthdayRepository) GetBinding(ctx context.Context, userID, birthdayID string) (models.ReminderBinding, error) {
	const query = `
		SELECT id, person_name, reminder_at, notification_id, reminder_cancelled
		FROM daybook.birthdays
		WHERE id = $1 AND user_id = $2
	`
	return scanBinding(r.db.QueryRowContext(ctx, query, birthdayID, userID))
}

func (r *birthdayRepository) SetReminder(ctx context.Context, userID, birthdayID string, reminderAt *time.Time, notificationID *string, cancelled bool) error {
	const query = `
		UPDATE daybook.birthdays
		SET reminder_at = $3, notification_id = $4, reminder_cancelled = $5, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, birthdayID, userID, reminderAt, notificationID, cancelled)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *birthdayRepository) ListActiveReminders(ctx context.Context, userID string) ([]models.ReminderBinding, error) {
	const query = `
		SELECT id, person_name, reminder_at, notification_id, reminder_cancelled
		FROM daybook.birthdays
		WHERE user_id = $1 AND notification_id IS NOT NULL
	`
	return listBindings(ctx, r.db, query, userID)
}

func (r *birthdayRepository) ClearReminders(ctx context.Context, userID string) (int64, error) {
	const query = `
		UPDATE daybook.birthdays
		SET notification_id = NULL, reminder_cancelled = TRUE, updated_at = NOW()
		WHERE user_id = $1 AND notification_id IS NOT NULL
	`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanBirthday(scanner interface {
	Scan(dest ...interface{}) error
}) (models.Birthday, error) {
	var (
		birthday       models.Birthday
		reminderAt     sql.NullTime
		notificationID sql.NullString
	)
	if err := scanner.Scan(
		&birthday.ID,
		&birthday.UserID,
		&birthday.PersonName,
		&birthday.BirthDate,
		&reminderAt,
		&notificationID,
		&birthday.ReminderCancelled,
		&birthday.CreatedAt,
		&birthday.UpdatedAt,
	); err != nil {
		return models.Birthday{}, err
	}
	if reminderAt.Valid {
		t := reminderAt.Time
		birthday.ReminderAt = &t
	}
	if notificationID.Valid {
		id := notificationID.String
		birthday.NotificationID = &id
	}
	return birthday, nil
}
