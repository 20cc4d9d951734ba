package temporal

import "time"

// TaskQueueName is the Temporal task queue for Daybook alert workflows.
const TaskQueueName = "DAYBOOK_ALERTS"

// AlertWorkflowName is the registered name of the alert workflow; the
// scheduler driver starts it by name to stay decoupled from the workflow
// package.
const AlertWorkflowName = "AlertWorkflow"

// AlertWorkflowIDPrefix is the prefix used for alert workflow IDs. The
// scheduler handle follows the prefix, so a handle maps 1:1 to a workflow.
const AlertWorkflowIDPrefix = "daybook-alert-"

// DefaultActivityTimeout bounds the delivery activity.
const DefaultActivityTimeout = time.Minute

// AlertParams is the input to the alert workflow. Title and body were frozen
// at schedule time by the coordinator.
type AlertParams struct {
	Handle   string
	UserID   string
	Category string
	Title    string
	Body     string
	FireAt   time.Time
}
