package workflows

import (
	"github.com/daybook-app/daybook-api/internal/temporal"
	"github.com/daybook-app/daybook-api/internal/temporal/activities"
	"go.temporal.io/sdk/workflow"
)

// AlertWorkflow sleeps until the alert's fire time and then runs the deliver
// activity. Cancelling the workflow during the sleep is the external cancel
// path: the workflow simply unwinds and nothing is delivered.
func AlertWorkflow(ctx workflow.Context, params temporal.AlertParams) error {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: temporal.DefaultActivityTimeout,
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	logger := workflow.GetLogger(ctx)
	logger.Info("Alert workflow started", "Handle", params.Handle, "FireAt", params.FireAt)

	wait := params.FireAt.Sub(workflow.Now(ctx))
	if wait > 0 {
		if err := workflow.Sleep(ctx, wait); err != nil {
			// Cancelled while waiting; the ledger record was already
			// retired by the caller.
			logger.Info("Alert workflow cancelled before firing", "Handle", params.Handle)
			return err
		}
	}

	// The actual implementation is on the worker; this is just a proxy.
	var a *activities.Activities

	// Delivery must run even if cancellation raced the timer expiring.
	deliverCtx, _ := workflow.NewDisconnectedContext(ctx)
	if err := workflow.ExecuteActivity(deliverCtx, a.DeliverAlertActivity, params.Handle).Get(deliverCtx, nil); err != nil {
		logger.Error("Failed to deliver alert.", "Handle", params.Handle, "error", err)
		return err
	}

	logger.Info("Alert delivered", "Handle", params.Handle)
	return nil
}
