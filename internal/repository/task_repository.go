package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/daybook-app/daybook-api/internal/models"
)

type TaskRepository interface {
	Create(ctx context.Context, task models.Task) (models.Task, error)
	Get(ctx context.Context, userID, taskID string) (models.Task, error)
	List(ctx context.Context, userID string, status *models.TaskStatus) ([]models.Task, error)
	Update(ctx context.Context, task models.Task) (models.Task, error)
	SetStatus(ctx context.Context, userID, taskID string, status models.TaskStatus) error
	Delete(ctx context.Context, userID, taskID string) error

	// Entity-store surface used by the reminder coordinator and the
	// settings gate; the coordinator never issues SQL of its own.
	Category() models.ReminderCategory
	GetBinding(ctx context.Context, userID, taskID string) (models.ReminderBinding, error)
	SetReminder(ctx context.Context, userID, taskID string, reminderAt *time.Time, notificationID *string, cancelled bool) error
	ListActiveReminders(ctx context.Context, userID string) ([]models.ReminderBinding, error)
	ClearReminders(ctx context.Context, userID string) (int64, error)
}

type taskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) TaskRepository {
	return &taskRepository{db: db}
}

const taskColumns = `id, user_id, title, notes, due_at, status, reminder_at, notification_id, reminder_cancelled, created_at, updated_at`

func (r *taskRepository) Create(ctx context.Context, task models.Task) (models.Task, error) {
	const query = `
		INSERT INTO daybook.tasks (user_id, title, notes, due_at, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + taskColumns + `
	`
	status := task.Status
	if status == "" {
		status = models.TaskStatusOpen
	}
	row := r.db.QueryRowContext(ctx, query, task.UserID, task.Title, task.Notes, task.DueAt, status)
	return scanTask(row)
}

func (r *taskRepository) Get(ctx context.Context, userID, taskID string) (models.Task, error) {
	const query = `
		SELECT ` + taskColumns + `
		FROM daybook.tasks
		WHERE id = $1 AND user_id = $2
	`
	return scanTask(r.db.QueryRowContext(ctx, query, taskID, userID))
}

func (r *taskRepository) List(ctx context.Context, userID string, status *models.TaskStatus) ([]models.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM daybook.tasks
		WHERE user_id = $1
	`
	args := []interface{}{userID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *taskRepository) Update(ctx context.Context, task models.Task) (models.Task, error) {
	const query = `
		UPDATE daybook.tasks
		SET title = $3, notes = $4, due_at = $5, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + taskColumns + `
	`
	row := r.db.QueryRowContext(ctx, query, task.ID, task.UserID, task.Title, task.Notes, task.DueAt)
	return scanTask(row)
}

func (r *taskRepository) SetStatus(ctx context.Context, userID, taskID string, status models.TaskStatus) error {
	const query = `
		UPDATE daybook.tasks
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, taskID, userID, status)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *taskRepository) Delete(ctx context.Context, userID, taskID string) error {
	const query = `
		DELETE FROM daybook.tasks
		WHERE id = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, taskID, userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *taskRepository) Category() models.ReminderCategory {
	return models.CategoryTasks
}

func (r *taskRepository) GetBinding(ctx context.Context, userID, taskID string) (models.ReminderBinding, error) {
	const query = `
		SELECT id, title, reminder_at, notification_id, reminder_cancelled
		FROM daybook.tasks
		WHERE id = $1 AND user_id = $2
	`
	return scanBinding(r.db.QueryRowContext(ctx, query, taskID, userID))
}

func (r *taskRepository) SetReminder(ctx context.Context, userID, taskID string, reminderAt *time.Time, notificationID *string, cancelled bool) error {
	const query = `
		UPDATE daybook.tasks
		SET reminder_at = $3, notification_id = $4, reminder_cancelled = $5, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, taskID, userID, reminderAt, notificationID, cancelled)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *taskRepository) ListActiveReminders(ctx context.Context, userID string) ([]models.ReminderBinding, error) {
	const query = `
		SELECT id, title, reminder_at, notification_id, reminder_cancelled
		FROM daybook.tasks
		WHERE user_id = $1 AND notification_id IS NOT NULL
	`
	return listBindings(ctx, r.db, query, userID)
}

func (r *taskRepository) ClearReminders(ctx context.Context, userID string) (int64, error) {
	const query = `
		UPDATE daybook.tasks
		SET notification_id = NULL, reminder_cancelled = TRUE, updated_at = NOW()
		WHERE user_id = $1 AND notification_id IS NOT NULL
	`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanTask(scanner interface {
	Scan(dest ...interface{}) error
}) (models.Task, error) {
	var (
		task           models.Task
		dueAt          sql.NullTime
		reminderAt     sql.NullTime
		notificationID sql.NullString
	)
	if err := scanner.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Notes,
		&dueAt,
		&task.Status,
		&reminderAt,
		&notificationID,
		&task.ReminderCancelled,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return models.Task{}, err
	}
	if dueAt.Valid {
		t := dueAt.Time
		task.DueAt = &t
	}
	if reminderAt.Valid {
		t := reminderAt.Time
		task.ReminderAt = &t
	}
	if notificationID.Valid {
		id := notificationID.String
		task.NotificationID = &id
	}
	return task, nil
}

func scanBinding(scanner interface {
	Scan(dest ...interface{}) error
}) (models.ReminderBinding, error) {
	var (
		binding        models.ReminderBinding
		reminderAt     sql.NullTime
		notificationID sql.NullString
	)
	if err := scanner.Scan(
		&binding.EntityID,
		&binding.Title,
		&reminderAt,
		&notificationID,
		&binding.ReminderCancelled,
	); err != nil {
		return models.ReminderBinding{}, err
	}
	if reminderAt.Valid {
		t := reminderAt.Time
		binding.ReminderAt = &t
	}
	if notificationID.Valid {
		id := notificationID.String
		binding.NotificationID = &id
	}
	return binding, nil
}

func listBindings(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([]models.ReminderBinding, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []models.ReminderBinding
	for rows.Next() {
		binding, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, binding)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bindings, nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
