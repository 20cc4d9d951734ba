package activities

import (
	"context"

	"github.com/daybook-app/daybook-api/internal/reminder"
	"github.com/pkg/errors"
	"go.temporal.io/sdk/activity"
)

type Activities struct {
	Reminders reminder.Coordinator
}

// DeliverAlertActivity reports a fired alert back to the coordinator. A
// handle whose record was retired in the meantime is not an error; the
// coordinator treats it as a no-op.
func (a *Activities) DeliverAlertActivity(ctx context.Context, handle string) error {
	logger := activity.GetLogger(ctx)
	logger.Info("Delivering alert", "handle", handle)

	if err := a.Reminders.MarkDelivered(ctx, handle); err != nil {
		return errors.Wrap(err, "failed to mark alert delivered")
	}
	return nil
}
