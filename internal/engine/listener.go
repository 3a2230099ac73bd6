package engine

import "context"

// NotificationKind names a scheduler callback. The set is open: adapters for other schedulers
// may report kinds not listed here.
type NotificationKind string

const (
	TriggerFired       NotificationKind = "TriggerFired"
	TriggerMisfired    NotificationKind = "TriggerMisfired"
	TriggerComplete    NotificationKind = "TriggerComplete"
	TriggerPaused      NotificationKind = "TriggerPaused"
	TriggerResumed     NotificationKind = "TriggerResumed"
	TriggerScheduled   NotificationKind = "TriggerScheduled"
	TriggerUnscheduled NotificationKind = "TriggerUnscheduled"

	JobWasExecuted NotificationKind = "JobWasExecuted"
	JobAdded       NotificationKind = "JobAdded"
	JobDeleted     NotificationKind = "JobDeleted"
	JobPaused      NotificationKind = "JobPaused"
	JobResumed     NotificationKind = "JobResumed"

	SchedulerStarted  NotificationKind = "SchedulerStarted"
	SchedulerStandby  NotificationKind = "SchedulerInStandbyMode"
	SchedulerShutdown NotificationKind = "SchedulerShutdown"
)

// Notification is a raw scheduler callback as delivered to a Listener.
type Notification struct {
	Kind           NotificationKind
	Key            string // "group.name" of the job or trigger, empty for scheduler callbacks
	FireInstanceID string
	Err            error
}

// Listener receives scheduler callbacks. Notify is called synchronously from the scheduler's
// own goroutines and must not block for long.
type Listener interface {
	Notify(ctx context.Context, n Notification, exec *ExecutionContext)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, n Notification, exec *ExecutionContext)

func (f ListenerFunc) Notify(ctx context.Context, n Notification, exec *ExecutionContext) {
	f(ctx, n, exec)
}
