package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/daybook-app/daybook-api/internal/models"
)

var (
	// ErrPermissionDenied means the user has not granted alert permission.
	// Callers surface it as an "enable notifications" prompt, not a failure.
	ErrPermissionDenied = errors.New("scheduler: alert permission not granted")

	// ErrInvalidTime means the requested fire time is not strictly in the
	// future.
	ErrInvalidTime = errors.New("scheduler: fire time must be in the future")

	// ErrSchedulerUnavailable covers any lower-level scheduling failure,
	// including timeouts.
	ErrSchedulerUnavailable = errors.New("scheduler: scheduling service unavailable")
)

// AlertRequest describes one alert to be fired at an absolute time. Title
// and body are frozen by the caller before scheduling.
type AlertRequest struct {
	UserID   string
	Category models.ReminderCategory
	Title    string
	Body     string
	FireAt   time.Time
}

// Scheduler is the adapter over the external alert-scheduling service. It is
// the only component allowed to create or cancel OS-level alerts and it
// never touches the notification ledger.
//
// Schedule returns a fresh, never-reused handle. Cancel is idempotent:
// cancelling a fired, already-cancelled or unknown handle is a no-op, since
// handles legitimately go stale. CancelAll is best effort.
type Scheduler interface {
	Schedule(ctx context.Context, req AlertRequest) (string, error)
	Cancel(ctx context.Context, handle string) error
	CancelAll(ctx context.Context, userID string) error
}

// DeliveryFunc is invoked with the handle when an alert fires. Drivers call
// it from their own goroutines; implementations must tolerate handles whose
// records were already retired.
type DeliveryFunc func(ctx context.Context, handle string)

// PermissionSource reports whether a user has granted alert permission.
type PermissionSource interface {
	PermissionGranted(ctx context.Context, userID string) (bool, error)
}
